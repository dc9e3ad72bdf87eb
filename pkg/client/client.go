// Package client is an HTTP client for the workflow API. It satisfies
// editor.Saver so a sync loop can push graphs to a remote server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/services"
	"github.com/gofiber/fiber/v3"
	fiberclient "github.com/gofiber/fiber/v3/client"
)

const (
	userHeader     = "X-User-ID"
	defaultTimeout = 30 * time.Second
)

// APIError is a problem document returned by the server.
type APIError struct {
	Status int    `json:"status"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Type, e.Detail)
	}

	return fmt.Sprintf("%d %s", e.Status, e.Type)
}

// Is lets callers match server failures against the service error kinds.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case fiber.StatusBadRequest:
		return target == services.ErrInvalidRequest
	case fiber.StatusUnauthorized:
		return target == services.ErrUnauthenticated
	case fiber.StatusForbidden:
		return target == services.ErrForbidden
	case fiber.StatusNotFound:
		return target == persistence.ErrWorkflowNotFound
	case fiber.StatusConflict:
		return target == services.ErrConflict
	default:
		return target == services.ErrInternal
	}
}

type Client struct {
	http   *fiberclient.Client
	userID string
}

type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(timeout) }
}

// New returns a client calling baseURL on behalf of userID.
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		http:   fiberclient.New().SetBaseURL(baseURL).SetTimeout(defaultTimeout),
		userID: userID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) request(ctx context.Context) *fiberclient.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(userHeader, c.userID)
}

// CreateRequest carries the optional fields of a new workflow.
type CreateRequest struct {
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (*models.Workflow, error) {
	resp, err := c.request(ctx).SetJSON(req).Post("/workflows")
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	defer resp.Close()

	workflow := &models.Workflow{}

	if err := decode(resp, fiber.StatusCreated, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (c *Client) List(ctx context.Context, page, pageSize int, search string) (*models.Page[*models.Workflow], error) {
	req := c.request(ctx)

	if page > 0 {
		req.SetParam("page", strconv.Itoa(page))
	}

	if pageSize > 0 {
		req.SetParam("pageSize", strconv.Itoa(pageSize))
	}

	if search != "" {
		req.SetParam("search", search)
	}

	resp, err := req.Get("/workflows")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer resp.Close()

	result := &models.Page[*models.Workflow]{}

	if err := decode(resp, fiber.StatusOK, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) Get(ctx context.Context, workflowID string) (*models.WorkflowGraph, error) {
	resp, err := c.request(ctx).Get(workflowPath(workflowID))
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow %s: %w", workflowID, err)
	}
	defer resp.Close()

	graph := &models.WorkflowGraph{Workflow: &models.Workflow{}}

	if err := decode(resp, fiber.StatusOK, graph); err != nil {
		return nil, err
	}

	return graph, nil
}

type graphBody struct {
	Nodes []models.GraphNode `json:"nodes"`
	Edges []models.GraphEdge `json:"edges"`
}

// UpdateGraph replaces the whole graph of the workflow.
func (c *Client) UpdateGraph(
	ctx context.Context,
	workflowID string,
	nodes []models.GraphNode,
	edges []models.GraphEdge,
) (*models.Workflow, error) {
	if nodes == nil {
		nodes = []models.GraphNode{}
	}

	if edges == nil {
		edges = []models.GraphEdge{}
	}

	resp, err := c.request(ctx).
		SetJSON(graphBody{Nodes: nodes, Edges: edges}).
		Put(workflowPath(workflowID) + "/graph")
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow %s: %w", workflowID, err)
	}
	defer resp.Close()

	var result struct {
		Workflow *models.Workflow `json:"workflow"`
	}

	if err := decode(resp, fiber.StatusOK, &result); err != nil {
		return nil, err
	}

	return result.Workflow, nil
}

// SaveGraph implements editor.Saver.
func (c *Client) SaveGraph(ctx context.Context, workflowID string, nodes []models.GraphNode, edges []models.GraphEdge) error {
	_, err := c.UpdateGraph(ctx, workflowID, nodes, edges)

	return err
}

func (c *Client) Rename(ctx context.Context, workflowID, name string) (*models.Workflow, error) {
	resp, err := c.request(ctx).
		SetJSON(map[string]string{"name": name}).
		Patch(workflowPath(workflowID))
	if err != nil {
		return nil, fmt.Errorf("failed to rename workflow %s: %w", workflowID, err)
	}
	defer resp.Close()

	workflow := &models.Workflow{}

	if err := decode(resp, fiber.StatusOK, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (c *Client) Remove(ctx context.Context, workflowID string) (*models.Workflow, error) {
	resp, err := c.request(ctx).Delete(workflowPath(workflowID))
	if err != nil {
		return nil, fmt.Errorf("failed to remove workflow %s: %w", workflowID, err)
	}
	defer resp.Close()

	workflow := &models.Workflow{}

	if err := decode(resp, fiber.StatusOK, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func workflowPath(workflowID string) string {
	return "/workflows/" + url.PathEscape(workflowID)
}

func decode(resp *fiberclient.Response, expected int, dest any) error {
	if resp.StatusCode() != expected {
		apiErr := &APIError{Status: resp.StatusCode()}

		if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Type == "" {
			apiErr.Type = "unexpected_status"
			apiErr.Detail = string(resp.Body())
		}

		apiErr.Status = resp.StatusCode()

		return apiErr
	}

	err := json.Unmarshal(resp.Body(), dest)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

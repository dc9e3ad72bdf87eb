package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowstore/pkg/entitlements"
	"github.com/dukex/flowstore/pkg/eventbus"
	"github.com/dukex/flowstore/pkg/events"
	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/otelhelper"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 5
	MaxPageSize     = 100

	seedNodeName = "Initial Node"
)

type Workflow struct {
	persistence  persistence.Persistence
	entitlements entitlements.Checker
	publisher    eventbus.EventPublisher
	validate     *validator.Validate
	tracer       trace.Tracer
	logger       *slog.Logger
	now          func() time.Time
	slug         func() string
}

// Option customizes a Workflow service.
type Option func(*Workflow)

// WithEventPublisher publishes lifecycle events after every committed write.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(w *Workflow) { w.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = tracer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

func WithValidator(validate *validator.Validate) Option {
	return func(w *Workflow) { w.validate = validate }
}

// WithClock replaces the time source used for created and updated stamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, checker entitlements.Checker, opts ...Option) *Workflow {
	w := &Workflow{
		persistence:  persistence,
		entitlements: checker,
		validate:     NewValidator(),
		tracer:       otel.Tracer("github.com/dukex/flowstore/pkg/services"),
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		slug:         randomSlug,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest holds the optional fields of a new workflow.
type CreateWorkflowRequest struct {
	Name        string  `json:"name"                  validate:"max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// Create stores a new workflow seeded with one INITIAL node. Callers without
// a premium entitlement get ErrForbidden and nothing is written.
func (w *Workflow) Create(ctx context.Context, ownerID string, req CreateWorkflowRequest) (*models.Workflow, error) {
	const op = "Create"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.Create",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
	)
	defer span.End()

	workflow, err := w.create(ctx, op, ownerID, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))

	w.publish(ctx, workflow.ID, events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, workflow.ID, ownerID),
		Name:      workflow.Name,
	})

	return workflow, nil
}

func (w *Workflow) create(ctx context.Context, op, ownerID string, req CreateWorkflowRequest) (*models.Workflow, error) {
	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError(op, "invalid_workflow", err.Error(), err)
	}

	premium, err := w.entitlements.IsPremium(ctx, ownerID)
	if err != nil {
		return nil, newInternalError(op, "failed to check subscription", err)
	}

	if !premium {
		return nil, newForbiddenError(op, "an active subscription is required to create workflows")
	}

	name := req.Name
	if name == "" {
		name = w.slug()
	}

	now := w.now()

	workflow := &models.Workflow{
		ID:          idgen.New(idgen.Workflows),
		Name:        name,
		Description: req.Description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	seed := &models.Node{
		ID:         idgen.New(idgen.Nodes),
		WorkflowID: workflow.ID,
		Name:       seedNodeName,
		Type:       models.NodeTypeInitial,
		Position:   models.Position{X: 0, Y: 0},
		Data:       models.NodeData{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = w.persistence.WorkflowRepository().Create(ctx, workflow, seed)
	if err != nil {
		if persistence.IsConflict(err) {
			return nil, newConflictError(op, "generated identifier already in use, retry", err)
		}

		return nil, newInternalError(op, "failed to create workflow", err)
	}

	return workflow, nil
}

// ListWorkflowsRequest selects one page of the caller's workflows.
type ListWorkflowsRequest struct {
	Page     int    `validate:"min=1"`
	PageSize int    `validate:"min=1,max=100"`
	Search   string `validate:"max=255"`
}

// ListWorkflowsResponse is one page of workflows with its metadata.
type ListWorkflowsResponse = models.Page[*models.Workflow]

// List returns the caller's workflows, newest first, filtered by a
// case-insensitive substring of the name.
func (w *Workflow) List(ctx context.Context, ownerID string, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	const op = "List"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.List",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
	)
	defer span.End()

	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	if req.Page == 0 {
		req.Page = DefaultPage
	}

	if req.PageSize == 0 {
		req.PageSize = DefaultPageSize
	}

	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError(op, "invalid_pagination", err.Error(), err)
	}

	repo := w.persistence.WorkflowRepository()

	var (
		items []*models.Workflow
		total int
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error

		items, err = repo.List(groupCtx, persistence.ListOptions{
			OwnerID: ownerID,
			Search:  req.Search,
			Limit:   req.PageSize,
			Offset:  (req.Page - 1) * req.PageSize,
		})

		return err
	})

	group.Go(func() error {
		var err error

		total, err = repo.Count(groupCtx, ownerID, req.Search)

		return err
	})

	err = group.Wait()
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, newInternalError(op, "failed to list workflows", err)
	}

	page := models.NewPage(items, total, req.Page, req.PageSize)

	return &page, nil
}

// UpdateWorkflowRequest carries the complete graph held by an editor.
type UpdateWorkflowRequest struct {
	Nodes []models.GraphNode `json:"nodes" validate:"dive"`
	Edges []models.GraphEdge `json:"edges" validate:"dive"`
}

// UpdateWorkflowResponse holds the workflow after a graph replacement.
type UpdateWorkflowResponse struct {
	Workflow *models.Workflow `json:"workflow"`

	// CoercedNodes and DroppedEdges report the silent degradations applied.
	CoercedNodes []string           `json:"-"`
	DroppedEdges []models.GraphEdge `json:"-"`
}

// Update replaces the whole graph of the caller's workflow atomically.
// NotFound is returned as is, uniqueness violations become ErrConflict and
// every other failure becomes ErrInternal.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID, ownerID string,
	req UpdateWorkflowRequest,
) (*UpdateWorkflowResponse, error) {
	const op = "Update"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.Update",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.OwnerIDKey, ownerID),
		attribute.Int(otelhelper.NodeCountKey, len(req.Nodes)),
		attribute.Int(otelhelper.EdgeCountKey, len(req.Edges)),
	)
	defer span.End()

	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError(op, "invalid_graph", err.Error(), err)
	}

	result, err := w.persistence.WorkflowRepository().ReplaceGraph(ctx, workflowID, ownerID, persistence.GraphReplacement{
		Nodes: req.Nodes,
		Edges: req.Edges,
		At:    w.now(),
	})
	if err != nil {
		otelhelper.SetError(span, err)

		switch {
		case persistence.IsWorkflowNotFound(err):
			return nil, err
		case persistence.IsConflict(err):
			return nil, newConflictError(op, "graph reuses an identifier already stored, retry", err)
		default:
			return nil, newInternalError(op, "failed to update workflow", err)
		}
	}

	span.SetAttributes(
		attribute.Int(otelhelper.CoercedNodesKey, len(result.CoercedNodes)),
		attribute.Int(otelhelper.DroppedEdgesKey, len(result.DroppedEdges)),
	)

	w.publish(ctx, workflowID, events.WorkflowGraphReplaced{
		BaseEvent:    events.NewBaseEvent(events.WorkflowGraphReplacedEvent, workflowID, ownerID),
		NodeCount:    result.NodeCount,
		EdgeCount:    result.EdgeCount,
		CoercedNodes: result.CoercedNodes,
		DroppedEdges: result.DroppedEdges,
	})

	return &UpdateWorkflowResponse{
		Workflow:     result.Workflow,
		CoercedNodes: result.CoercedNodes,
		DroppedEdges: result.DroppedEdges,
	}, nil
}

type updateNameRequest struct {
	Name string `validate:"required,max=255"`
}

// UpdateName renames the caller's workflow.
func (w *Workflow) UpdateName(ctx context.Context, workflowID, ownerID, name string) (*models.Workflow, error) {
	const op = "UpdateName"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.UpdateName",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	err := w.validate.Struct(updateNameRequest{Name: name})
	if err != nil {
		return nil, NewValidationError(op, "invalid_name", err.Error(), err)
	}

	workflow, err := w.persistence.WorkflowRepository().UpdateName(ctx, workflowID, ownerID, name, w.now())
	if err != nil {
		otelhelper.SetError(span, err)

		if persistence.IsWorkflowNotFound(err) {
			return nil, err
		}

		return nil, newInternalError(op, "failed to rename workflow", err)
	}

	w.publish(ctx, workflowID, events.WorkflowRenamed{
		BaseEvent: events.NewBaseEvent(events.WorkflowRenamedEvent, workflowID, ownerID),
		Name:      workflow.Name,
	})

	return workflow, nil
}

// Remove deletes the caller's workflow with its nodes and connections and
// returns the removed record.
func (w *Workflow) Remove(ctx context.Context, workflowID, ownerID string) (*models.Workflow, error) {
	const op = "Remove"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.Remove",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	workflow, err := w.persistence.WorkflowRepository().Delete(ctx, workflowID, ownerID)
	if err != nil {
		otelhelper.SetError(span, err)

		if persistence.IsWorkflowNotFound(err) {
			return nil, err
		}

		return nil, newInternalError(op, "failed to remove workflow", err)
	}

	w.publish(ctx, workflowID, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, workflowID, ownerID),
	})

	return workflow, nil
}

func (w *Workflow) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, key, event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"workflow_id", key,
			"error", err,
		)
	}
}

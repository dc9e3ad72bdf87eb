package editor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/robfig/cron/v3"
)

var (
	ErrNotMounted   = errors.New("no graph mounted")
	ErrSaveInFlight = errors.New("a save is already in flight")
)

// Saver stores the complete graph of a workflow.
type Saver interface {
	SaveGraph(ctx context.Context, workflowID string, nodes []models.GraphNode, edges []models.GraphEdge) error
}

// SyncLoop periodically pushes the mounted graph to a Saver when it changed
// since the last issued save. At most one save is outstanding at a time;
// ticks that find a save in flight are skipped.
type SyncLoop struct {
	saver   Saver
	logger  *slog.Logger
	onSaved func(workflowID string)
	onError func(workflowID string, err error)

	// armMu serializes arming and disarming so a new schedule only starts
	// once the previous one has stopped.
	armMu sync.Mutex

	mu         sync.Mutex
	settings   Settings
	graph      *Graph
	active     *session
	lastIssued []byte

	inFlight atomic.Bool
	saves    sync.WaitGroup
}

// session is one armed schedule, bound to a workflow and an interval.
type session struct {
	cron       *cron.Cron
	workflowID string
	interval   time.Duration
}

type SyncOption func(*SyncLoop)

func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(l *SyncLoop) { l.logger = logger }
}

// OnSaved registers a callback invoked after every successful save.
func OnSaved(fn func(workflowID string)) SyncOption {
	return func(l *SyncLoop) { l.onSaved = fn }
}

// OnError registers a callback invoked once per failed save.
func OnError(fn func(workflowID string, err error)) SyncOption {
	return func(l *SyncLoop) { l.onError = fn }
}

func NewSyncLoop(saver Saver, settings Settings, opts ...SyncOption) *SyncLoop {
	l := &SyncLoop{
		saver:    saver,
		settings: settings,
		logger:   slog.Default(),
		onSaved:  func(string) {},
		onError:  func(string, error) {},
	}

	for _, opt := range opts {
		opt(l)
	}

	l.logger = l.logger.With("module", "sync_loop")

	return l
}

// Mount binds the loop to an editing surface and arms it when auto-save is
// on. The first tick after mounting always saves.
func (l *SyncLoop) Mount(graph *Graph) {
	l.armMu.Lock()
	defer l.armMu.Unlock()

	l.mu.Lock()
	l.graph = graph
	l.lastIssued = nil
	l.mu.Unlock()

	l.rearm()
}

// Unmount detaches the editing surface and stops the schedule. A save
// already issued is left to complete.
func (l *SyncLoop) Unmount() {
	l.armMu.Lock()
	defer l.armMu.Unlock()

	l.mu.Lock()
	l.graph = nil
	l.mu.Unlock()

	l.rearm()
}

// ApplySettings switches to new settings, re-arming when auto-save was
// toggled or the interval changed.
func (l *SyncLoop) ApplySettings(settings Settings) {
	l.armMu.Lock()
	defer l.armMu.Unlock()

	l.mu.Lock()
	l.settings = settings
	l.mu.Unlock()

	l.rearm()
}

// Armed reports whether a schedule is running.
func (l *SyncLoop) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.active != nil
}

// Close stops the schedule and waits for outstanding saves.
func (l *SyncLoop) Close() {
	l.Unmount()
	l.saves.Wait()
}

// Flush stops the schedule, waits for outstanding saves and then saves the
// mounted graph if it changed since the last issued save. The graph stays
// mounted; a later settings change arms the schedule again.
func (l *SyncLoop) Flush(ctx context.Context) (bool, error) {
	l.armMu.Lock()
	defer l.armMu.Unlock()

	l.disarm()
	l.saves.Wait()

	return l.saveMounted(ctx, true)
}

// rearm must be called with armMu held.
func (l *SyncLoop) rearm() {
	l.mu.Lock()

	var (
		want       = l.graph != nil && l.settings.AutoSave
		workflowID string
		interval   = l.settings.Interval()
		old        = l.active
	)

	if l.graph != nil {
		workflowID = l.graph.WorkflowID()
	}

	if old != nil && want && old.workflowID == workflowID && old.interval == interval {
		l.mu.Unlock()

		return
	}

	l.mu.Unlock()

	l.disarm()

	if !want {
		return
	}

	s := &session{
		workflowID: workflowID,
		interval:   interval,
	}

	logger := cronLogger{logger: l.logger}
	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
	s.cron.Schedule(intervalSchedule{interval: interval}, cron.FuncJob(func() { l.tick(s) }))

	l.mu.Lock()
	l.active = s
	l.mu.Unlock()

	s.cron.Start()

	l.logger.Debug("Sync schedule armed", "workflow_id", workflowID, "interval", interval)
}

// disarm stops the active schedule, if any. It must be called with armMu held.
func (l *SyncLoop) disarm() {
	l.mu.Lock()
	old := l.active
	l.active = nil
	l.mu.Unlock()

	if old == nil {
		return
	}

	// Wait outside mu: a running tick may need it to finish.
	<-old.cron.Stop().Done()
	l.logger.Debug("Sync schedule stopped", "workflow_id", old.workflowID)
}

// tick issues a save when the graph changed and nothing is in flight.
func (l *SyncLoop) tick(s *session) {
	l.mu.Lock()

	if l.active != s || l.graph == nil || l.graph.WorkflowID() != s.workflowID {
		l.mu.Unlock()

		return
	}

	nodes, edges := l.graph.Snapshot()

	payload, err := Serialize(nodes, edges)
	if err != nil {
		l.mu.Unlock()
		l.logger.Error("Failed to serialize graph", "workflow_id", s.workflowID, "error", err)

		return
	}

	if bytes.Equal(payload, l.lastIssued) {
		l.mu.Unlock()

		return
	}

	if !l.inFlight.CompareAndSwap(false, true) {
		l.mu.Unlock()
		l.logger.Debug("Save in flight, skipping tick", "workflow_id", s.workflowID)

		return
	}

	l.lastIssued = payload
	l.saves.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.saves.Done()

		// Issued saves are never cancelled, so they do not inherit any
		// schedule or mount lifetime.
		l.save(context.Background(), s.workflowID, nodes, edges)
	}()
}

// SaveNow saves the mounted graph immediately, sharing the in-flight guard
// with scheduled ticks.
func (l *SyncLoop) SaveNow(ctx context.Context) error {
	_, err := l.saveMounted(ctx, false)

	return err
}

// SaveIfChanged saves the mounted graph only when it differs from the last
// issued save. It reports whether a save was issued.
func (l *SyncLoop) SaveIfChanged(ctx context.Context) (bool, error) {
	return l.saveMounted(ctx, true)
}

func (l *SyncLoop) saveMounted(ctx context.Context, onlyChanged bool) (bool, error) {
	l.mu.Lock()

	if l.graph == nil {
		l.mu.Unlock()

		return false, ErrNotMounted
	}

	workflowID := l.graph.WorkflowID()
	nodes, edges := l.graph.Snapshot()

	payload, err := Serialize(nodes, edges)
	if err != nil {
		l.mu.Unlock()

		return false, err
	}

	if onlyChanged && bytes.Equal(payload, l.lastIssued) {
		l.mu.Unlock()

		return false, nil
	}

	if !l.inFlight.CompareAndSwap(false, true) {
		l.mu.Unlock()

		return false, ErrSaveInFlight
	}

	l.lastIssued = payload
	l.saves.Add(1)
	l.mu.Unlock()

	defer l.saves.Done()

	return true, l.save(ctx, workflowID, nodes, edges)
}

func (l *SyncLoop) save(ctx context.Context, workflowID string, nodes []models.GraphNode, edges []models.GraphEdge) error {
	defer l.inFlight.Store(false)

	err := l.saver.SaveGraph(ctx, workflowID, nodes, edges)
	if err != nil {
		l.logger.Error("Failed to save graph", "workflow_id", workflowID, "error", err)
		l.onError(workflowID, err)

		return err
	}

	l.logger.Debug("Graph saved", "workflow_id", workflowID, "nodes", len(nodes), "edges", len(edges))
	l.onSaved(workflowID)

	return nil
}

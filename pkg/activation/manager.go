// Package activation orchestrates the bring-up and tear-down of workflows:
// webhook registration, event subscriptions, and the per-workflow activation
// error table.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hookplane/hookplane/pkg/bridge"
	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/eventbus"
	"github.com/hookplane/hookplane/pkg/events"
	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
	"github.com/hookplane/hookplane/pkg/router"
	"github.com/hookplane/hookplane/pkg/subscription"
)

// Manager owns the activation lifecycle of all workflows in the process. One
// instance exists per process, constructed with its collaborators injected.
// Callers must not issue overlapping Add/Remove calls for the same workflow id.
type Manager struct {
	persistence persistence.Persistence
	router      *router.Router
	active      *subscription.ActiveWorkflows
	bridge      *bridge.Bridge
	engine      engine.Engine
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	logger      *slog.Logger

	initialized bool

	// Guards the error table only; lifecycle calls themselves are not
	// serialized here.
	errMu            sync.RWMutex
	activationErrors map[string]*models.ActivationError
}

func NewManager(
	p persistence.Persistence,
	rt *router.Router,
	active *subscription.ActiveWorkflows,
	br *bridge.Bridge,
	eng engine.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		persistence:      p,
		router:           rt,
		active:           active,
		bridge:           br,
		engine:           eng,
		eventBus:         eventBus,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		logger:           logger.With("module", "activation_manager"),
		activationErrors: make(map[string]*models.ActivationError),
	}
}

// InitWebhooks brings every persisted-active workflow live. Webhook routes are
// rebuilt from scratch: the registration store is cleared first, since rows
// are not trusted to survive a restart consistently. Workflows are activated
// strictly sequentially; one workflow's failure is recorded in the error table
// and does not prevent the others from being attempted.
func (m *Manager) InitWebhooks(ctx context.Context) error {
	if err := m.persistence.WebhookRepository().Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear webhook registrations: %w", err)
	}

	m.initialized = true

	workflows, err := m.persistence.WorkflowRepository().GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active workflows: %w", err)
	}

	m.logger.Info("Activating persisted workflows", "count", len(workflows))

	for _, workflow := range workflows {
		if err := m.Add(ctx, workflow.ID, models.ActivationModeInit, workflow); err != nil {
			m.logger.Error("Failed to activate workflow during init",
				"workflow_id", workflow.ID,
				"workflow_name", workflow.Name,
				"error", err)

			continue
		}

		m.logger.Info("Activated workflow",
			"workflow_id", workflow.ID,
			"workflow_name", workflow.Name)
	}

	return nil
}

// Add brings one workflow from inactive to active: it validates the workflow
// is triggerable, registers its webhooks, and registers its event
// subscriptions. Any failure is recorded in the error table and re-raised;
// accumulated static data is persisted regardless of outcome.
func (m *Manager) Add(ctx context.Context, workflowID string, activationMode models.ActivationMode, preloaded *models.Workflow) error {
	workflow, err := m.addInternal(ctx, workflowID, activationMode, preloaded)

	if workflow != nil {
		if saveErr := m.persistence.WorkflowRepository().SaveStaticData(ctx, workflow.ID, workflow.StaticData); saveErr != nil {
			m.logger.Error("Failed to persist static data after activation",
				"workflow_id", workflow.ID,
				"error", saveErr)
		}
	}

	if err != nil {
		m.recordActivationError(workflowID, err)

		return err
	}

	m.clearActivationError(workflowID)
	m.publishLifecycleEvent(ctx, events.WorkflowActivated{
		BaseEvent:      events.NewBaseEvent(events.WorkflowActivatedEvent, workflowID),
		ActivationMode: string(activationMode),
	}, workflowID)

	return nil
}

func (m *Manager) addInternal(ctx context.Context, workflowID string, activationMode models.ActivationMode, preloaded *models.Workflow) (*models.Workflow, error) {
	workflow := preloaded

	if workflow == nil {
		var err error

		workflow, err = m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}
	}

	if err := m.validate.Struct(workflow); err != nil {
		return workflow, fmt.Errorf("workflow %s failed validation: %w", workflowID, err)
	}

	if !workflow.CanBeActivated() {
		return workflow, fmt.Errorf("%w: %s", ErrNotActivatable, workflowID)
	}

	execCtx, err := m.engine.BuildContext(ctx, workflow, "", models.ExecutionModeInternal)
	if err != nil {
		return workflow, fmt.Errorf("failed to build execution context for workflow %s: %w", workflowID, err)
	}

	if err := m.registerWebhooks(ctx, workflow); err != nil {
		return workflow, err
	}

	if workflow.HasLiveSubscriptionNodes() {
		err := m.active.Add(ctx, workflow.ID, workflow, execCtx,
			models.ExecutionModeTrigger, activationMode,
			m.bridge.TriggerFuncFactory(workflow, execCtx),
			m.bridge.PollFuncFactory(workflow, execCtx))
		if err != nil {
			return workflow, fmt.Errorf("failed to register subscriptions for workflow %s: %w", workflowID, err)
		}
	}

	return workflow, nil
}

// registerWebhooks registers all webhook routes of the workflow. On any
// failure it best-effort removes every row already written for this workflow,
// swallowing secondary errors, then propagates the original failure.
func (m *Manager) registerWebhooks(ctx context.Context, workflow *models.Workflow) error {
	definitions := workflow.WebhookDefinitions()
	if len(definitions) == 0 {
		return nil
	}

	if err := m.router.Register(ctx, workflow.ID, definitions); err != nil {
		if cleanupErr := m.router.Deregister(ctx, workflow.ID); cleanupErr != nil {
			m.logger.Error("Failed to roll back webhook registrations",
				"workflow_id", workflow.ID,
				"error", cleanupErr)
		}

		return err
	}

	return nil
}

// Remove tears one workflow down: webhook routes, error table entry, and any
// live subscription. Tear-down is best-effort throughout; a downstream
// cleanup failure is logged and must never leave the workflow stuck.
func (m *Manager) Remove(ctx context.Context, workflowID string) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	if err := m.router.Deregister(ctx, workflowID); err != nil {
		m.logger.Error("Failed to deregister webhook routes",
			"workflow_id", workflowID,
			"error", err)
	}

	m.clearActivationError(workflowID)

	if m.active.IsActive(workflowID) {
		m.active.Remove(workflowID)
	}

	m.publishLifecycleEvent(ctx, events.WorkflowDeactivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeactivatedEvent, workflowID),
	}, workflowID)

	return nil
}

// RemoveAll removes the union of workflows with live subscriptions and
// persisted-active workflows, concurrently. Each removal is independently
// best-effort, so one failure never aborts the rest.
func (m *Manager) RemoveAll(ctx context.Context) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	ids := make(map[string]bool)

	for _, id := range m.active.AllActiveIDs() {
		ids[id] = true
	}

	persisted, err := m.persistence.WorkflowRepository().GetActive(ctx)
	if err != nil {
		m.logger.Error("Failed to load persisted-active workflows for removal", "error", err)
	} else {
		for _, workflow := range persisted {
			ids[workflow.ID] = true
		}
	}

	var wg sync.WaitGroup

	for id := range ids {
		wg.Add(1)

		go func(workflowID string) {
			defer wg.Done()

			if err := m.Remove(ctx, workflowID); err != nil {
				m.logger.Error("Failed to remove workflow",
					"workflow_id", workflowID,
					"error", err)
			}
		}(id)
	}

	wg.Wait()

	return nil
}

// ListActive returns the ids of persisted-active workflows, excluding any
// carrying an activation error entry.
func (m *Manager) ListActive(ctx context.Context) ([]string, error) {
	workflows, err := m.persistence.WorkflowRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active workflows: %w", err)
	}

	m.errMu.RLock()
	defer m.errMu.RUnlock()

	ids := make([]string, 0, len(workflows))

	for _, workflow := range workflows {
		if _, failed := m.activationErrors[workflow.ID]; failed {
			continue
		}

		ids = append(ids, workflow.ID)
	}

	sort.Strings(ids)

	return ids, nil
}

// ActivationError returns the recorded activation failure for the workflow.
func (m *Manager) ActivationError(workflowID string) (*models.ActivationError, bool) {
	m.errMu.RLock()
	defer m.errMu.RUnlock()

	entry, exists := m.activationErrors[workflowID]

	return entry, exists
}

// IsActive reports the workflow's persisted active flag. Unlike ListActive it
// is not adjusted for error state.
func (m *Manager) IsActive(ctx context.Context, workflowID string) (bool, error) {
	workflow, err := m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return false, err
	}

	return workflow.Active, nil
}

// Initialized reports whether InitWebhooks has run.
func (m *Manager) Initialized() bool {
	return m.initialized
}

func (m *Manager) recordActivationError(workflowID string, err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.activationErrors[workflowID] = &models.ActivationError{
		Time:    time.Now().UTC(),
		Message: err.Error(),
	}
}

func (m *Manager) clearActivationError(workflowID string) {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	delete(m.activationErrors, workflowID)
}

func (m *Manager) publishLifecycleEvent(ctx context.Context, event eventbus.Event, workflowID string) {
	if m.eventBus == nil {
		return
	}

	if err := m.eventBus.Publish(ctx, workflowID, event); err != nil {
		m.logger.Warn("Failed to publish lifecycle event",
			"workflow_id", workflowID,
			"event_type", string(event.GetType()),
			"error", err)
	}
}

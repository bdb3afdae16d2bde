// Package persistence provides the storage abstraction layer for workflows
// and webhook registrations.
package persistence

import (
	"context"

	"github.com/hookplane/hookplane/pkg/models"
)

// WorkflowRepository stores workflow descriptors. Descriptors are read fresh
// on every lifecycle operation and every dispatch.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetActive(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	SaveStaticData(ctx context.Context, id string, staticData map[string]any) error
	Delete(ctx context.Context, id string) error
}

// WebhookRepository stores webhook registration rows. Insert must fail with
// ErrDuplicateWebhookPath when a static registration collides on (path, method).
type WebhookRepository interface {
	Insert(ctx context.Context, registration *models.WebhookRegistration) error
	GetStatic(ctx context.Context, path, method string) (*models.WebhookRegistration, error)
	GetDynamic(ctx context.Context, webhookID, method string, pathSegments int) ([]*models.WebhookRegistration, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WebhookRegistration, error)
	MethodsForPath(ctx context.Context, path string) ([]string, error)
	DeleteByWorkflow(ctx context.Context, workflowID string) error
	Clear(ctx context.Context) error
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	WebhookRepository() WebhookRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

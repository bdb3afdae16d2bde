// Package file provides file-based persistence for workflows and webhook
// registrations. It is the default backend for local development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/hookplane/hookplane/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	webhookRepo  *WebhookRepository
}

// NewPersistence creates a new file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		webhookRepo:  NewWebhookRepository(cleanRoot),
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) WebhookRepository() persistence.WebhookRepository {
	return fp.webhookRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is nothing
// to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

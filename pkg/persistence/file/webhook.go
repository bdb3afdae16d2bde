package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
)

// WebhookRepository stores all webhook registrations in a single JSON file
// under <root>/webhooks.json, guarded by a mutex. Registrations are rebuilt
// from scratch at every process start, so the file is small and churn is low.
type WebhookRepository struct {
	path string
	mu   sync.Mutex
}

func NewWebhookRepository(root string) *WebhookRepository {
	return &WebhookRepository{
		path: filepath.Join(root, "webhooks.json"),
	}
}

func (r *WebhookRepository) Insert(ctx context.Context, registration *models.WebhookRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return err
	}

	if !registration.IsDynamic() {
		for _, existing := range registrations {
			if !existing.IsDynamic() && existing.Path == registration.Path && existing.Method == registration.Method {
				return persistence.ErrDuplicateWebhookPath
			}
		}
	}

	registrations = append(registrations, registration)

	return r.store(registrations)
}

func (r *WebhookRepository) GetStatic(ctx context.Context, path, method string) (*models.WebhookRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, registration := range registrations {
		if !registration.IsDynamic() && registration.Path == path && registration.Method == method {
			return registration, nil
		}
	}

	return nil, persistence.ErrWebhookNotFound
}

func (r *WebhookRepository) GetDynamic(ctx context.Context, webhookID, method string, pathSegments int) ([]*models.WebhookRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return nil, err
	}

	matches := make([]*models.WebhookRegistration, 0)

	for _, registration := range registrations {
		if registration.IsDynamic() &&
			registration.WebhookID == webhookID &&
			registration.Method == method &&
			registration.PathSegments == pathSegments {
			matches = append(matches, registration)
		}
	}

	return matches, nil
}

func (r *WebhookRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WebhookRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return nil, err
	}

	matches := make([]*models.WebhookRegistration, 0)

	for _, registration := range registrations {
		if registration.WorkflowID == workflowID {
			matches = append(matches, registration)
		}
	}

	return matches, nil
}

func (r *WebhookRepository) MethodsForPath(ctx context.Context, path string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return nil, err
	}

	methods := make([]string, 0)

	for _, registration := range registrations {
		if !registration.IsDynamic() && registration.Path == path {
			methods = append(methods, registration.Method)
		}
	}

	return methods, nil
}

func (r *WebhookRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registrations, err := r.load()
	if err != nil {
		return err
	}

	remaining := make([]*models.WebhookRegistration, 0, len(registrations))

	for _, registration := range registrations {
		if registration.WorkflowID != workflowID {
			remaining = append(remaining, registration)
		}
	}

	return r.store(remaining)
}

func (r *WebhookRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store([]*models.WebhookRegistration{})
}

func (r *WebhookRepository) load() ([]*models.WebhookRegistration, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.WebhookRegistration{}, nil
		}

		return nil, fmt.Errorf("failed to read webhook registrations: %w", err)
	}

	var registrations []*models.WebhookRegistration
	if err := json.Unmarshal(data, &registrations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook registrations: %w", err)
	}

	return registrations, nil
}

func (r *WebhookRepository) store(registrations []*models.WebhookRegistration) error {
	if err := os.MkdirAll(filepath.Dir(r.path), workflowDirPerm); err != nil {
		return fmt.Errorf("failed to create persistence directory: %w", err)
	}

	data, err := json.MarshalIndent(registrations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal webhook registrations: %w", err)
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write webhook registrations: %w", err)
	}

	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
)

const (
	staticWebhooksKey    = "hookplane:webhooks:static"
	dynamicWebhookPrefix = "hookplane:webhooks:dynamic:"
	workflowWebhooksKey  = "hookplane:webhooks:workflow:"
)

// WebhookRepository stores webhook registration rows in Redis hashes. Static
// registrations live in one hash keyed by "method path"; HSetNX makes the
// uniqueness check atomic under concurrent activation. Dynamic registrations
// live in one hash per (webhook_id, method, segment count) family.
type WebhookRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewWebhookRepository creates a new webhook registration repository.
func NewWebhookRepository(client *redis.Client, logger *slog.Logger) *WebhookRepository {
	return &WebhookRepository{client: client, logger: logger}
}

// Insert stores one registration row. A static collision on (path, method)
// yields ErrDuplicateWebhookPath.
func (r *WebhookRepository) Insert(ctx context.Context, registration *models.WebhookRegistration) error {
	data, err := json.Marshal(registration)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook registration: %w", err)
	}

	if registration.IsDynamic() {
		key := dynamicFamilyKey(registration.WebhookID, registration.Method, registration.PathSegments)

		err = r.client.HSet(ctx, key, registration.Path, data).Err()
		if err != nil {
			return fmt.Errorf("failed to insert dynamic webhook registration: %w", err)
		}

		return r.trackForWorkflow(ctx, registration.WorkflowID, "dynamic|"+key+"|"+registration.Path)
	}

	field := staticField(registration.Method, registration.Path)

	inserted, err := r.client.HSetNX(ctx, staticWebhooksKey, field, data).Result()
	if err != nil {
		return fmt.Errorf("failed to insert static webhook registration: %w", err)
	}

	if !inserted {
		return fmt.Errorf("%w: %s %s", persistence.ErrDuplicateWebhookPath,
			registration.Method, registration.Path)
	}

	return r.trackForWorkflow(ctx, registration.WorkflowID, "static|"+field)
}

// GetStatic returns the static registration for an exact (path, method) pair.
func (r *WebhookRepository) GetStatic(ctx context.Context, path, method string) (*models.WebhookRegistration, error) {
	data, err := r.client.HGet(ctx, staticWebhooksKey, staticField(method, path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s %s", persistence.ErrWebhookNotFound, method, path)
		}

		return nil, fmt.Errorf("failed to read static webhook registration: %w", err)
	}

	return unmarshalRegistration(data)
}

// GetDynamic returns the dynamic registrations of one routing family.
func (r *WebhookRepository) GetDynamic(ctx context.Context, webhookID, method string, pathSegments int) ([]*models.WebhookRegistration, error) {
	values, err := r.client.HGetAll(ctx, dynamicFamilyKey(webhookID, method, pathSegments)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic webhook registrations: %w", err)
	}

	registrations := make([]*models.WebhookRegistration, 0, len(values))

	for _, value := range values {
		registration, err := unmarshalRegistration([]byte(value))
		if err != nil {
			return nil, err
		}

		registrations = append(registrations, registration)
	}

	return registrations, nil
}

// ListByWorkflow returns every registration row owned by a workflow.
func (r *WebhookRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WebhookRegistration, error) {
	entries, err := r.client.SMembers(ctx, workflowWebhooksKey+workflowID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow webhook index: %w", err)
	}

	registrations := make([]*models.WebhookRegistration, 0, len(entries))

	for _, entry := range entries {
		key, field, ok := parseTrackingEntry(entry)
		if !ok {
			continue
		}

		data, err := r.client.HGet(ctx, key, field).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to read webhook registration: %w", err)
		}

		registration, err := unmarshalRegistration(data)
		if err != nil {
			return nil, err
		}

		registrations = append(registrations, registration)
	}

	return registrations, nil
}

// MethodsForPath returns the methods of the static registrations on a path.
func (r *WebhookRepository) MethodsForPath(ctx context.Context, path string) ([]string, error) {
	fields, err := r.client.HKeys(ctx, staticWebhooksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read static webhook fields: %w", err)
	}

	methods := make([]string, 0)

	for _, field := range fields {
		method, fieldPath, ok := strings.Cut(field, " ")
		if ok && fieldPath == path {
			methods = append(methods, method)
		}
	}

	return methods, nil
}

// DeleteByWorkflow removes every registration row owned by a workflow.
func (r *WebhookRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	indexKey := workflowWebhooksKey + workflowID

	entries, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read workflow webhook index: %w", err)
	}

	pipe := r.client.TxPipeline()

	for _, entry := range entries {
		key, field, ok := parseTrackingEntry(entry)
		if !ok {
			continue
		}

		pipe.HDel(ctx, key, field)
	}

	pipe.Del(ctx, indexKey)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete webhook registrations: %w", err)
	}

	return nil
}

// Clear removes every registration row. Bootstrap rebuilds the store from the
// persisted active set.
func (r *WebhookRepository) Clear(ctx context.Context) error {
	patterns := []string{staticWebhooksKey, dynamicWebhookPrefix + "*", workflowWebhooksKey + "*"}

	for _, pattern := range patterns {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()

		for iter.Next(ctx) {
			err := r.client.Del(ctx, iter.Val()).Err()
			if err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan webhook keys: %w", err)
		}
	}

	return nil
}

func (r *WebhookRepository) trackForWorkflow(ctx context.Context, workflowID, entry string) error {
	err := r.client.SAdd(ctx, workflowWebhooksKey+workflowID, entry).Err()
	if err != nil {
		return fmt.Errorf("failed to track webhook registration: %w", err)
	}

	return nil
}

func unmarshalRegistration(data []byte) (*models.WebhookRegistration, error) {
	var registration models.WebhookRegistration

	err := json.Unmarshal(data, &registration)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook registration: %w", err)
	}

	return &registration, nil
}

func staticField(method, path string) string {
	return method + " " + path
}

func dynamicFamilyKey(webhookID, method string, pathSegments int) string {
	return fmt.Sprintf("%s%s:%s:%d", dynamicWebhookPrefix, webhookID, method, pathSegments)
}

// parseTrackingEntry splits a workflow index member back into the hash key and
// field holding the registration.
func parseTrackingEntry(entry string) (key, field string, ok bool) {
	kind, rest, found := strings.Cut(entry, "|")
	if !found {
		return "", "", false
	}

	switch kind {
	case "static":
		return staticWebhooksKey, rest, true
	case "dynamic":
		key, field, found = strings.Cut(rest, "|")

		return key, field, found
	default:
		return "", "", false
	}
}

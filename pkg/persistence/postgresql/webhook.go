package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
)

const uniqueViolationCode = "23505"

// WebhookRepository handles webhook registration rows. Static uniqueness on
// (path, method) is enforced by a partial unique index; the database is the
// arbiter under concurrent activation.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWebhookRepository creates a new webhook registration repository.
func NewWebhookRepository(db *sql.DB, logger *slog.Logger) *WebhookRepository {
	return &WebhookRepository{db: db, logger: logger}
}

// Insert stores one registration row. A static collision on (path, method)
// yields ErrDuplicateWebhookPath.
func (r *WebhookRepository) Insert(ctx context.Context, registration *models.WebhookRegistration) error {
	query := `
		INSERT INTO webhook_registrations (workflow_id, path, method, node_name, webhook_id, path_segments)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		registration.WorkflowID,
		registration.Path,
		registration.Method,
		registration.NodeName,
		nullableString(registration.WebhookID),
		registration.PathSegments,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s %s", persistence.ErrDuplicateWebhookPath,
				registration.Method, registration.Path)
		}

		return fmt.Errorf("failed to insert webhook registration: %w", err)
	}

	return nil
}

// GetStatic returns the static registration for an exact (path, method) pair.
func (r *WebhookRepository) GetStatic(ctx context.Context, path, method string) (*models.WebhookRegistration, error) {
	query := `
		SELECT workflow_id, path, method, node_name, webhook_id, path_segments
		FROM webhook_registrations
		WHERE path = $1 AND method = $2 AND webhook_id IS NULL
	`

	registration, err := scanRegistration(r.db.QueryRowContext(ctx, query, path, method))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", persistence.ErrWebhookNotFound, method, path)
		}

		return nil, fmt.Errorf("failed to scan webhook registration: %w", err)
	}

	return registration, nil
}

// GetDynamic returns the dynamic registrations of one routing family.
func (r *WebhookRepository) GetDynamic(ctx context.Context, webhookID, method string, pathSegments int) ([]*models.WebhookRegistration, error) {
	query := `
		SELECT workflow_id, path, method, node_name, webhook_id, path_segments
		FROM webhook_registrations
		WHERE webhook_id = $1 AND method = $2 AND path_segments = $3
	`

	return r.queryRegistrations(ctx, query, webhookID, method, pathSegments)
}

// ListByWorkflow returns every registration row owned by a workflow.
func (r *WebhookRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WebhookRegistration, error) {
	query := `
		SELECT workflow_id, path, method, node_name, webhook_id, path_segments
		FROM webhook_registrations
		WHERE workflow_id = $1
	`

	return r.queryRegistrations(ctx, query, workflowID)
}

// MethodsForPath returns the methods of the static registrations on a path.
func (r *WebhookRepository) MethodsForPath(ctx context.Context, path string) ([]string, error) {
	query := `
		SELECT method
		FROM webhook_registrations
		WHERE path = $1 AND webhook_id IS NULL
		ORDER BY method
	`

	rows, err := r.db.QueryContext(ctx, query, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook methods: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	methods := make([]string, 0)

	for rows.Next() {
		var method string

		if err := rows.Scan(&method); err != nil {
			return nil, fmt.Errorf("failed to scan method: %w", err)
		}

		methods = append(methods, method)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating methods: %w", err)
	}

	return methods, nil
}

// DeleteByWorkflow removes every registration row owned by a workflow.
func (r *WebhookRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhook_registrations WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook registrations: %w", err)
	}

	return nil
}

// Clear removes every registration row. Bootstrap rebuilds the table from the
// persisted active set.
func (r *WebhookRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhook_registrations`)
	if err != nil {
		return fmt.Errorf("failed to clear webhook registrations: %w", err)
	}

	return nil
}

func (r *WebhookRepository) queryRegistrations(ctx context.Context, query string, args ...any) ([]*models.WebhookRegistration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook registrations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	registrations := make([]*models.WebhookRegistration, 0)

	for rows.Next() {
		registration, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook registration: %w", err)
		}

		registrations = append(registrations, registration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook registrations: %w", err)
	}

	return registrations, nil
}

func scanRegistration(scanner interface {
	Scan(dest ...any) error
}) (*models.WebhookRegistration, error) {
	var (
		registration models.WebhookRegistration
		webhookID    sql.NullString
	)

	err := scanner.Scan(
		&registration.WorkflowID,
		&registration.Path,
		&registration.Method,
		&registration.NodeName,
		&webhookID,
		&registration.PathSegments,
	)
	if err != nil {
		return nil, err
	}

	registration.WebhookID = webhookID.String

	return &registration, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}

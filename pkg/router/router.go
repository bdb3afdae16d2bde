// Package router owns dynamic webhook path resolution and parameter
// extraction over the webhook registration store.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hookplane/hookplane/pkg/models"
	"github.com/hookplane/hookplane/pkg/persistence"
)

// Router resolves inbound method+path pairs to registered webhook routes.
type Router struct {
	webhooks persistence.WebhookRepository
	logger   *slog.Logger
}

// ResolvedRoute is the outcome of a successful resolution: the matched
// registration plus any path parameters extracted from a dynamic route.
type ResolvedRoute struct {
	Registration *models.WebhookRegistration
	Params       map[string]string
}

func NewRouter(webhooks persistence.WebhookRepository, logger *slog.Logger) *Router {
	return &Router{
		webhooks: webhooks,
		logger:   logger.With("module", "webhook_router"),
	}
}

// Register persists one registration row per webhook definition of the
// workflow. A definition whose path contains placeholder segments and whose
// owning node exposes a routing-group id is stored as dynamic; everything else
// is stored as static. Multi-row rollback on partial failure is the caller's
// responsibility.
func (r *Router) Register(ctx context.Context, workflowID string, definitions []*models.WebhookDefinition) error {
	for _, def := range definitions {
		path := models.NormalizeWebhookPath(def.Path)

		registration := &models.WebhookRegistration{
			WorkflowID: workflowID,
			Path:       path,
			Method:     def.Method,
			NodeName:   def.NodeName,
		}

		if models.HasPlaceholders(path) && def.WebhookID != "" {
			registration.WebhookID = def.WebhookID
			registration.PathSegments = len(models.SplitWebhookPath(path))
		}

		if err := r.webhooks.Insert(ctx, registration); err != nil {
			if persistence.IsDuplicateWebhookPath(err) {
				return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, def.Method, path)
			}

			return fmt.Errorf("failed to register webhook %s %s: %w", def.Method, path, err)
		}

		r.logger.Debug("Registered webhook route",
			"workflow_id", workflowID,
			"method", def.Method,
			"path", path,
			"dynamic", registration.IsDynamic())
	}

	return nil
}

// Deregister removes every registration row of the workflow.
func (r *Router) Deregister(ctx context.Context, workflowID string) error {
	return r.webhooks.DeleteByWorkflow(ctx, workflowID)
}

// Resolve finds the registration for an inbound method+path pair. Static
// registrations win outright; otherwise the first path segment is treated as a
// routing-group id and the remaining segments are matched against the dynamic
// candidates of that family.
func (r *Router) Resolve(ctx context.Context, method, path string) (*ResolvedRoute, error) {
	path = models.NormalizeWebhookPath(path)

	static, err := r.webhooks.GetStatic(ctx, path, method)
	if err == nil {
		return &ResolvedRoute{Registration: static, Params: map[string]string{}}, nil
	}

	if !persistence.IsWebhookNotFound(err) {
		return nil, fmt.Errorf("failed to look up static webhook %s %s: %w", method, path, err)
	}

	segments := models.SplitWebhookPath(path)
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: %s %s", ErrRouteNotFound, method, path)
	}

	webhookID := segments[0]
	remaining := segments[1:]

	candidates, err := r.webhooks.GetDynamic(ctx, webhookID, method, len(remaining))
	if err != nil {
		return nil, fmt.Errorf("failed to look up dynamic webhooks for group %s: %w", webhookID, err)
	}

	selected := selectCandidate(candidates, remaining)
	if selected == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrRouteNotFound, method, path)
	}

	return &ResolvedRoute{
		Registration: selected,
		Params:       extractParams(selected.Path, remaining),
	}, nil
}

// ListMethods returns every method statically registered for the exact path,
// sorted. Used to distinguish "method not allowed" from "not found".
func (r *Router) ListMethods(ctx context.Context, path string) ([]string, error) {
	methods, err := r.webhooks.MethodsForPath(ctx, models.NormalizeWebhookPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook methods: %w", err)
	}

	sort.Strings(methods)

	return methods, nil
}

// selectCandidate picks at most one dynamic candidate. A candidate is eligible
// when every literal segment of its stored path appears somewhere among the
// request segments; the match is by membership, not position. Among eligible
// candidates the one with the most literal segments wins. A fully wildcard
// candidate is kept only as a fallback until any candidate with a matching
// literal segment appears.
func selectCandidate(candidates []*models.WebhookRegistration, requestSegments []string) *models.WebhookRegistration {
	present := make(map[string]bool, len(requestSegments))
	for _, segment := range requestSegments {
		present[segment] = true
	}

	var selected *models.WebhookRegistration

	selectedLiterals := -1

	for _, candidate := range candidates {
		literals := literalSegments(candidate.Path)

		if len(literals) == 0 {
			if selected == nil {
				selected = candidate
				selectedLiterals = 0
			}

			continue
		}

		eligible := true

		for _, literal := range literals {
			if !present[literal] {
				eligible = false

				break
			}
		}

		if eligible && len(literals) > selectedLiterals {
			selected = candidate
			selectedLiterals = len(literals)
		}
	}

	return selected
}

// literalSegments returns the non-placeholder segments of a stored path.
func literalSegments(path string) []string {
	var literals []string

	for _, segment := range models.SplitWebhookPath(path) {
		if !models.IsPlaceholderSegment(segment) {
			literals = append(literals, segment)
		}
	}

	return literals
}

// extractParams binds placeholder names positionally. Segment counts are equal
// by construction of the dynamic candidate query, so every placeholder resolves.
func extractParams(storedPath string, requestSegments []string) map[string]string {
	params := map[string]string{}

	for i, segment := range models.SplitWebhookPath(storedPath) {
		if models.IsPlaceholderSegment(segment) {
			params[segment[1:]] = requestSegments[i]
		}
	}

	return params
}

package models

import "strings"

// WebhookRegistration is the persisted routing record for one webhook endpoint
// of a workflow. Static registrations are unique on (Path, Method). Dynamic
// registrations (paths containing placeholder segments) additionally carry the
// routing-group id of the owning node and the segment count of the path; the
// router disambiguates within that family at request time.
type WebhookRegistration struct {
	WorkflowID   string `json:"workflow_id"`
	Path         string `json:"path"`
	Method       string `json:"method"`
	NodeName     string `json:"node_name"`
	WebhookID    string `json:"webhook_id,omitempty"`    // Routing-group id, dynamic registrations only
	PathSegments int    `json:"path_segments,omitempty"` // Segment count, dynamic registrations only
}

// IsDynamic reports whether the registration participates in dynamic routing.
func (r *WebhookRegistration) IsDynamic() bool {
	return r.WebhookID != ""
}

// WebhookDefinition is the full per-node webhook description derived from the
// live graph at dispatch time. It is richer than the persisted registration:
// it carries response handling configuration alongside the routing subset.
type WebhookDefinition struct {
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	NodeName        string            `json:"node_name"`
	WebhookID       string            `json:"webhook_id,omitempty"`
	ResponseMode    string            `json:"response_mode,omitempty"`
	ResponseCode    int               `json:"response_code,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	PayloadSchema   map[string]any    `json:"payload_schema,omitempty"`
}

// NewWebhookDefinition builds a definition from a webhook trigger node's config.
func NewWebhookDefinition(node *WorkflowNode) *WebhookDefinition {
	def := &WebhookDefinition{
		Method:       strings.ToUpper(node.ConfigString("method", "GET")),
		Path:         NormalizeWebhookPath(node.ConfigString("path", "")),
		NodeName:     node.Name,
		WebhookID:    node.ConfigString("webhook_id", ""),
		ResponseMode: node.ConfigString("response_mode", "on_received"),
	}

	if headers, ok := node.Config["response_headers"].(map[string]any); ok {
		def.ResponseHeaders = make(map[string]string, len(headers))

		for name, value := range headers {
			if s, ok := value.(string); ok {
				def.ResponseHeaders[name] = s
			}
		}
	}

	if schema, ok := node.Config["payload_schema"].(map[string]any); ok {
		def.PayloadSchema = schema
	}

	return def
}

// NormalizeWebhookPath strips one leading and one trailing slash so that
// registrations and requests compare under a single canonical form.
func NormalizeWebhookPath(path string) string {
	path = strings.TrimPrefix(path, "/")

	return strings.TrimSuffix(path, "/")
}

// SplitWebhookPath splits a normalized path into its segments. The empty path
// yields no segments.
func SplitWebhookPath(path string) []string {
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// IsPlaceholderSegment reports whether a path segment is a parameter
// placeholder (":name" syntax).
func IsPlaceholderSegment(segment string) bool {
	return strings.HasPrefix(segment, ":")
}

// HasPlaceholders reports whether any segment of the path is a placeholder.
func HasPlaceholders(path string) bool {
	for _, segment := range SplitWebhookPath(path) {
		if IsPlaceholderSegment(segment) {
			return true
		}
	}

	return false
}

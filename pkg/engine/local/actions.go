package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hookplane/hookplane/pkg/models"
)

// logAction writes the input item to the structured log and passes it through.
func logAction(logger *slog.Logger) ActionFunc {
	return func(ctx context.Context, node *models.WorkflowNode, item map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
		logger.InfoContext(ctx, node.ConfigString("message", "Log action"),
			"workflow_id", execCtx.WorkflowID,
			"node_name", node.Name,
			"item", item)

		return item, nil
	}
}

// httpAction issues an HTTP request described by the node config and returns
// the decoded response.
func httpAction(ctx context.Context, node *models.WorkflowNode, item map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	url := node.ConfigString("url", "")
	if url == "" {
		return nil, fmt.Errorf("http action node %s has no url configured", node.Name)
	}

	method := strings.ToUpper(node.ConfigString("method", "GET"))

	var body io.Reader

	if method != http.MethodGet && item != nil {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		body = strings.NewReader(string(data))
	}

	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	output := map[string]any{"status": response.StatusCode}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err == nil {
		output["body"] = decoded
	} else {
		output["body"] = string(data)
	}

	return output, nil
}

// fetchItems performs one poll fetch and normalizes the response into items.
func fetchItems(ctx context.Context, url string) ([]map[string]any, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}

	switch value := decoded.(type) {
	case []any:
		items := make([]map[string]any, 0, len(value))

		for _, element := range value {
			if item, ok := element.(map[string]any); ok {
				items = append(items, item)
			}
		}

		return items, nil
	case map[string]any:
		return []map[string]any{value}, nil
	default:
		return nil, nil
	}
}

// Package mocks provides testify mock implementations of the control plane's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hookplane/hookplane/pkg/engine"
	"github.com/hookplane/hookplane/pkg/models"
)

// MockEngine is a mock implementation of the engine.Engine interface.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) BuildContext(ctx context.Context, workflow *models.Workflow, nodeName string, mode models.ExecutionMode) (*models.ExecutionContext, error) {
	args := m.Called(ctx, workflow, nodeName, mode)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionContext), args.Error(1)
}

func (m *MockEngine) RunWebhook(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, req *engine.WebhookRequest) (*engine.WebhookResult, error) {
	args := m.Called(ctx, workflow, startNode, execCtx, req)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*engine.WebhookResult), args.Error(1)
}

func (m *MockEngine) RunNode(ctx context.Context, workflow *models.Workflow, startNode *models.WorkflowNode, execCtx *models.ExecutionContext, seed []map[string]any, mode models.ExecutionMode) (string, error) {
	args := m.Called(ctx, workflow, startNode, execCtx, seed, mode)

	return args.String(0), args.Error(1)
}

func (m *MockEngine) Poll(ctx context.Context, workflow *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) ([]map[string]any, error) {
	args := m.Called(ctx, workflow, node, execCtx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]map[string]any), args.Error(1)
}

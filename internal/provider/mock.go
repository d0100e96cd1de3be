package provider

import (
	"context"

	"github.com/google/uuid"
)

// MockProvider returns a synthetic success with a mock message id, used in
// non-production environments (spec.md §4.3 step 5).
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Send(ctx context.Context, data EmailData) Result {
	return Result{Success: true, MessageID: "mock-" + uuid.NewString()}
}

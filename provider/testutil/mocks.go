package testutil

import (
	"context"
	"sync/atomic"

	"chatgate/model"
	"chatgate/stream"
)

// MockService implements provider.Service for testing. Each behavior can be
// replaced through its Func field.
type MockService struct {
	ID model.ProviderID

	ModelsFunc         func(ctx context.Context) ([]model.APIModel, error)
	CheckAvailableFunc func(ctx context.Context) bool
	CheckAPIKeyFunc    func(ctx context.Context, candidate string) bool
	ChatFunc           func(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error)

	ModelsCalls atomic.Int32
	ChatCalls   atomic.Int32
}

// NewMockService returns a mock that lists two models, is available, and
// answers every chat with "Mock response".
func NewMockService(id model.ProviderID) *MockService {
	m := &MockService{ID: id}
	m.ModelsFunc = func(context.Context) ([]model.APIModel, error) {
		return []model.APIModel{
			{ID: "mock-model-1", Name: "Mock Model 1"},
			{ID: "mock-model-2", Name: "Mock Model 2"},
		}, nil
	}
	m.CheckAvailableFunc = func(context.Context) bool { return true }
	m.CheckAPIKeyFunc = func(_ context.Context, candidate string) bool { return candidate != "" }
	m.ChatFunc = func(ctx context.Context, _ string, _ []model.Message) (*stream.TokenStream, error) {
		return stream.FromTokens(ctx, []string{"Mock ", "response"}, nil), nil
	}
	return m
}

func (m *MockService) Provider() model.ProviderID {
	return m.ID
}

func (m *MockService) Models(ctx context.Context) ([]model.APIModel, error) {
	m.ModelsCalls.Add(1)
	return m.ModelsFunc(ctx)
}

func (m *MockService) CheckAvailable(ctx context.Context) bool {
	return m.CheckAvailableFunc(ctx)
}

func (m *MockService) CheckAPIKey(ctx context.Context, candidate string) bool {
	return m.CheckAPIKeyFunc(ctx, candidate)
}

func (m *MockService) Chat(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error) {
	m.ChatCalls.Add(1)
	return m.ChatFunc(ctx, modelID, messages)
}

// MemoryCredentials is an in-memory model.CredentialStore.
type MemoryCredentials struct {
	values map[model.ProviderID]string
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{values: make(map[model.ProviderID]string)}
}

func (c *MemoryCredentials) Credential(p model.ProviderID) (string, bool) {
	v, ok := c.values[p]
	return v, ok
}

func (c *MemoryCredentials) SetCredential(p model.ProviderID, value string) error {
	c.values[p] = value
	return nil
}

func (c *MemoryCredentials) RemoveCredential(p model.ProviderID) error {
	delete(c.values, p)
	return nil
}

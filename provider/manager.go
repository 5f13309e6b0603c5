package provider

import (
	"context"
	"errors"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/patrickmn/go-cache"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	"chatgate/config"
	"chatgate/events"
	"chatgate/mcp"
	"chatgate/model"
	"chatgate/stream"
)

const defaultModelTTL = 5 * time.Minute

// ToolRunner is the tool sidecar the Manager forwards to. *mcp.Client
// satisfies it.
type ToolRunner interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
}

// ManagerOptions wires a Manager. Configs is required.
type ManagerOptions struct {
	Configs     *config.Manager
	Factory     *Factory // nil builds the default factory
	Credentials model.CredentialStore
	Metrics     *Metrics
	Tools       ToolRunner
	ModelTTL    time.Duration
	Logger      logrus.FieldLogger
}

// Manager is the single entry point for consumers. It composes the config
// manager and the adapter factory, and keeps adapters in step with config
// changes.
type Manager struct {
	configs     *config.Manager
	factory     *Factory
	creds       model.CredentialStore
	metrics     *Metrics
	tools       ToolRunner
	models      *cache.Cache
	log         logrus.FieldLogger
	unsubscribe func()
}

// NewManager builds the facade. Imported and migrated configs drop every
// cached adapter, since any provider may have changed.
func NewManager(opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	f := opts.Factory
	if f == nil {
		f = NewDefaultFactory(FactoryOptions{
			Configs:     opts.Configs,
			Credentials: opts.Credentials,
			Metrics:     opts.Metrics,
			Logger:      log,
		})
	}
	ttl := opts.ModelTTL
	if ttl <= 0 {
		ttl = defaultModelTTL
	}

	m := &Manager{
		configs: opts.Configs,
		factory: f,
		creds:   opts.Credentials,
		metrics: opts.Metrics,
		tools:   opts.Tools,
		models:  cache.New(ttl, 2*ttl),
		log:     log.WithField("component", "manager"),
	}
	m.unsubscribe = m.configs.Bus().Subscribe(func(e events.ConfigEvent) {
		m.log.WithField("event", e.Type).Debug("Config replaced, dropping adapters")
		m.factory.ResetAll()
		m.models.Flush()
	}, events.SubscribeOptions{EventTypes: []events.EventType{events.Imported, events.Migrated}})
	return m
}

// Close detaches the Manager from config events.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Factory returns the adapter registry.
func (m *Manager) Factory() *Factory {
	return m.factory
}

// Providers returns the registered providers.
func (m *Manager) Providers() []model.ProviderID {
	return m.factory.Registered()
}

func (m *Manager) invalidate(p model.ProviderID) {
	m.factory.Reset(p)
	m.models.Delete(string(p))
}

// Models lists the provider's models. Results are cached per provider until
// the TTL expires or the provider's config or credential changes.
func (m *Manager) Models(ctx context.Context, p model.ProviderID) ([]model.APIModel, error) {
	if cached, ok := m.models.Get(string(p)); ok {
		m.metrics.modelsListed(p, "cache")
		return cached.([]model.APIModel), nil
	}

	svc, err := m.factory.Get(p)
	if err != nil {
		return nil, err
	}
	models, err := svc.Models(ctx)
	if err != nil {
		return nil, err
	}
	m.models.Set(string(p), models, cache.DefaultExpiration)
	m.metrics.modelsListed(p, "api")
	return models, nil
}

type modelSource []model.APIModel

func (s modelSource) String(i int) string { return s[i].ID }
func (s modelSource) Len() int            { return len(s) }

// SearchModels fuzzy-matches query against model ids, best match first. An
// empty query returns every model.
func (m *Manager) SearchModels(ctx context.Context, p model.ProviderID, query string) ([]model.APIModel, error) {
	models, err := m.Models(ctx, p)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return models, nil
	}

	matches := fuzzy.FindFrom(query, modelSource(models))
	out := make([]model.APIModel, 0, len(matches))
	for _, match := range matches {
		out = append(out, models[match.Index])
	}
	return out, nil
}

// CheckAvailable reports whether p is reachable. Unregistered providers
// are unavailable.
func (m *Manager) CheckAvailable(ctx context.Context, p model.ProviderID) bool {
	svc, err := m.factory.Get(p)
	if err != nil {
		m.log.WithError(err).WithField("provider", p).Debug("Availability check skipped")
		return false
	}
	return svc.CheckAvailable(ctx)
}

// CheckAPIKey probes p with candidate without storing it.
func (m *Manager) CheckAPIKey(ctx context.Context, p model.ProviderID, candidate string) bool {
	svc, err := m.factory.Get(p)
	if err != nil {
		m.log.WithError(err).WithField("provider", p).Debug("Key check skipped")
		return false
	}
	return svc.CheckAPIKey(ctx, candidate)
}

// Chat starts a streaming completion on p. Cancelling ctx aborts it.
func (m *Manager) Chat(ctx context.Context, p model.ProviderID, modelID string, messages []model.Message) (*stream.TokenStream, error) {
	svc, err := m.factory.Get(p)
	if err != nil {
		return nil, err
	}
	return svc.Chat(ctx, modelID, messages)
}

// ChatWithHandlers runs a chat to its end, dispatching to h. A chat that
// could not start reports through OnError, or OnAbort when ctx was
// cancelled first.
func (m *Manager) ChatWithHandlers(ctx context.Context, p model.ProviderID, modelID string, messages []model.Message, h stream.Handlers) error {
	ts, err := m.Chat(ctx, p, modelID, messages)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAborted):
			if h.OnAbort != nil {
				h.OnAbort()
			}
		case h.OnError != nil:
			h.OnError(err)
		}
		return err
	}
	defer ts.Close()
	return stream.Consume(ts, h)
}

// Config returns the current config for p.
func (m *Manager) Config(p model.ProviderID) config.ServiceConfig {
	return m.configs.Config(p)
}

// UpdateConfig validates and applies patch, then drops the cached adapter
// so the next call is built from the new config.
func (m *Manager) UpdateConfig(p model.ProviderID, patch config.Patch) (config.ServiceConfig, error) {
	cfg, err := m.configs.Update(p, patch)
	m.invalidate(p)
	return cfg, err
}

// ResetConfig restores p's defaults.
func (m *Manager) ResetConfig(p model.ProviderID) config.ServiceConfig {
	cfg := m.configs.Reset(p)
	m.invalidate(p)
	return cfg
}

// ResetAllConfigs restores defaults for every provider.
func (m *Manager) ResetAllConfigs() {
	m.configs.ResetAll()
	m.factory.ResetAll()
	m.models.Flush()
}

// ExportConfigs returns the versioned envelope of every config.
func (m *Manager) ExportConfigs() (string, error) {
	return m.configs.Export()
}

// ImportConfigs replaces every config with the envelope in raw.
func (m *Manager) ImportConfigs(raw string) error {
	return m.configs.Import(raw)
}

// SetCredential stores a key for p.
func (m *Manager) SetCredential(p model.ProviderID, key string) error {
	if m.creds == nil {
		return errors.New("no credential store configured")
	}
	if err := m.creds.SetCredential(p, key); err != nil {
		return err
	}
	m.invalidate(p)
	return nil
}

// RemoveCredential deletes the stored key for p.
func (m *Manager) RemoveCredential(p model.ProviderID) error {
	if m.creds == nil {
		return errors.New("no credential store configured")
	}
	if err := m.creds.RemoveCredential(p); err != nil {
		return err
	}
	m.invalidate(p)
	return nil
}

// Status returns the last known status of p.
func (m *Manager) Status(p model.ProviderID) model.Status {
	return m.factory.Status().Get(p)
}

// Statuses returns every known status.
func (m *Manager) Statuses() map[model.ProviderID]model.Status {
	return m.factory.Status().All()
}

// SubscribeStatus registers l for status changes.
func (m *Manager) SubscribeStatus(l StatusListener) func() {
	return m.factory.Status().Subscribe(l)
}

// SubscribeConfig registers h for config events.
func (m *Manager) SubscribeConfig(h events.Handler, opts events.SubscribeOptions) func() {
	return m.configs.Bus().Subscribe(h, opts)
}

// Tools lists the tools of every connected tool server.
func (m *Manager) Tools(ctx context.Context) ([]mcp.Tool, error) {
	if m.tools == nil {
		return nil, nil
	}
	return m.tools.ListTools(ctx)
}

// CallTool invokes a server-qualified tool.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	if m.tools == nil {
		return nil, mcp.ErrNotConnected
	}
	return m.tools.CallTool(ctx, name, args)
}

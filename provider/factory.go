package provider

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"chatgate/config"
	"chatgate/model"
)

// ConfigSource hands out the current config snapshot for a provider.
// *config.Manager satisfies it.
type ConfigSource interface {
	Config(p model.ProviderID) config.ServiceConfig
}

// FactoryOptions carries the dependencies every adapter is built with.
type FactoryOptions struct {
	Configs     ConfigSource
	Credentials model.CredentialStore
	Status      *StatusStore
	Metrics     *Metrics
	HTTPClient  *http.Client
	Logger      logrus.FieldLogger
}

// Factory is the provider registry plus a cache holding at most one adapter
// per provider. Adapters are built on first use and rebuilt after Reset.
type Factory struct {
	mu           sync.RWMutex
	constructors map[model.ProviderID]Constructor
	instances    map[model.ProviderID]Service
	opts         FactoryOptions
	log          logrus.FieldLogger
}

// NewFactory returns an empty registry.
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Status == nil {
		opts.Status = NewStatusStore()
	}
	return &Factory{
		constructors: make(map[model.ProviderID]Constructor),
		instances:    make(map[model.ProviderID]Service),
		opts:         opts,
		log:          opts.Logger.WithField("component", "factory"),
	}
}

// NewDefaultFactory returns a registry holding the built-in providers.
func NewDefaultFactory(opts FactoryOptions) *Factory {
	f := NewFactory(opts)
	for _, p := range model.KnownProviders() {
		// Built-in ids cannot collide on a fresh registry.
		_ = f.Register(p, newBuiltin(p))
	}
	return f
}

// newBuiltin selects the adapter constructor for a built-in provider.
func newBuiltin(p model.ProviderID) Constructor {
	switch p {
	case model.ProviderOllama:
		return NewOllamaService
	case model.ProviderOpenAI, model.ProviderDeepSeek:
		return NewCompatService
	case model.ProviderAnthropic:
		return NewAnthropicService
	default:
		return nil
	}
}

// Status returns the status store adapters report to.
func (f *Factory) Status() *StatusStore {
	return f.opts.Status
}

// Register adds a constructor. Registering a provider twice is an error.
func (f *Factory) Register(p model.ProviderID, c Constructor) error {
	if c == nil {
		return fmt.Errorf("register %s: nil constructor", p)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.constructors[p]; ok {
		return &model.RegistryError{Provider: p, Err: model.ErrAlreadyRegistered}
	}
	f.constructors[p] = c
	f.log.WithField("provider", p).Debug("Registered provider")
	return nil
}

// Unregister removes a constructor and any cached adapter.
func (f *Factory) Unregister(p model.ProviderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.constructors[p]; !ok {
		return &model.RegistryError{Provider: p, Err: model.ErrNotRegistered}
	}
	delete(f.constructors, p)
	delete(f.instances, p)
	return nil
}

// IsRegistered reports whether p has a constructor.
func (f *Factory) IsRegistered(p model.ProviderID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[p]
	return ok
}

// Registered returns the registered providers in sorted order.
func (f *Factory) Registered() []model.ProviderID {
	f.mu.RLock()
	ids := make([]model.ProviderID, 0, len(f.constructors))
	for p := range f.constructors {
		ids = append(ids, p)
	}
	f.mu.RUnlock()

	model.SortProviders(ids)
	return ids
}

// Get returns the cached adapter for p, building it on first use from the
// current config.
func (f *Factory) Get(p model.ProviderID) (Service, error) {
	f.mu.RLock()
	svc, ok := f.instances[p]
	f.mu.RUnlock()
	if ok {
		return svc, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.instances[p]; ok {
		return svc, nil
	}
	ctor, ok := f.constructors[p]
	if !ok {
		return nil, &model.RegistryError{Provider: p, Err: model.ErrNotRegistered}
	}

	svc, err := ctor(f.deps(p))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s service: %w", p, err)
	}
	f.instances[p] = svc
	f.log.WithField("provider", p).Debug("Created service")
	return svc, nil
}

func (f *Factory) deps(p model.ProviderID) Deps {
	var cfg config.ServiceConfig
	if f.opts.Configs != nil {
		cfg = f.opts.Configs.Config(p)
	} else {
		cfg = config.DefaultServiceConfig(p)
	}
	return Deps{
		Provider:    p,
		Config:      cfg,
		Credentials: f.opts.Credentials,
		Status:      f.opts.Status,
		Metrics:     f.opts.Metrics,
		HTTPClient:  f.opts.HTTPClient,
		Logger:      f.opts.Logger,
	}
}

// Reset drops the cached adapter for p. The registration is kept, so the
// next Get builds a fresh instance.
func (f *Factory) Reset(p model.ProviderID) {
	f.mu.Lock()
	delete(f.instances, p)
	f.mu.Unlock()
}

// ResetAll drops every cached adapter.
func (f *Factory) ResetAll() {
	f.mu.Lock()
	f.instances = make(map[model.ProviderID]Service)
	f.mu.Unlock()
}

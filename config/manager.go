package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"chatgate/events"
	"chatgate/model"
)

// StorageKey is the key the versioned envelope is stored under.
const StorageKey = "llm-service-configs"

// Store is an opaque string-keyed blob store.
type Store interface {
	Load(key string) (string, bool, error)
	Save(key, value string) error
}

// Manager owns the authoritative provider -> config map.
//
// Every successful mutation is persisted synchronously. A failed save is
// logged and the in-memory state is kept, so the current session stays
// correct even if the next start does not see the change.
type Manager struct {
	mu        sync.RWMutex
	configs   map[model.ProviderID]ServiceConfig
	store     Store
	validator *Validator
	migrator  *Migrator
	bus       *events.Bus
	log       logrus.FieldLogger
}

// ManagerOptions carries the collaborators of a Manager. Nil fields get defaults.
type ManagerOptions struct {
	Store     Store
	Validator *Validator
	Migrator  *Migrator
	Bus       *events.Bus
	Logger    logrus.FieldLogger
}

// NewManager builds a manager and loads any previously persisted configs.
// Loading is best-effort: missing or unusable data yields an empty map.
func NewManager(opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		configs:   make(map[model.ProviderID]ServiceConfig),
		store:     opts.Store,
		validator: opts.Validator,
		migrator:  opts.Migrator,
		bus:       opts.Bus,
		log:       log.WithField("component", "config"),
	}
	if m.validator == nil {
		m.validator = NewValidator()
	}
	if m.migrator == nil {
		m.migrator = DefaultMigrator(log)
	}
	if m.bus == nil {
		m.bus = events.NewBus(log)
	}
	m.load()
	return m
}

// Bus returns the event bus configuration changes are published on.
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// Validator returns the validator used for updates.
func (m *Manager) Validator() *Validator {
	return m.validator
}

func (m *Manager) load() {
	if m.store == nil {
		return
	}
	raw, ok, err := m.store.Load(StorageKey)
	if err != nil {
		m.log.WithError(err).Warn("Failed to load stored configs, starting empty")
		return
	}
	if !ok || raw == "" {
		return
	}

	result, configs := m.migrator.CheckAndMigrate(raw)
	if !result.Success {
		m.log.WithError(result.Err).Warn("Stored configs unusable, starting empty")
		return
	}
	m.configs = configs

	if result.Migrated {
		m.log.Infof("Migrated stored configs from %s to %s", result.FromVersion, result.ToVersion)
		m.persistLocked()
		m.bus.Publish(events.ConfigEvent{
			Type:     events.Migrated,
			OldValue: result.FromVersion,
			NewValue: result.ToVersion,
		})
	}
}

// Config returns the config for p. A provider seen for the first time gets
// its defaults, which are kept in memory but not persisted until mutated.
func (m *Manager) Config(p model.ProviderID) ServiceConfig {
	m.mu.RLock()
	cfg, ok := m.configs[p]
	m.mu.RUnlock()
	if ok {
		return cfg.Clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[p]; ok {
		return cfg.Clone()
	}
	cfg = DefaultServiceConfig(p)
	m.configs[p] = cfg
	return cfg.Clone()
}

// Update merges patch over the current config and validates the merged
// result. On a validation failure nothing changes and a
// *model.ValidationError is returned.
func (m *Manager) Update(p model.ProviderID, patch Patch) (ServiceConfig, error) {
	m.mu.Lock()
	old, ok := m.configs[p]
	if !ok {
		old = DefaultServiceConfig(p)
	}
	merged := old.Apply(patch)
	if err := m.validator.Validate(p, merged).Err(p); err != nil {
		m.mu.Unlock()
		return old.Clone(), err
	}
	m.configs[p] = merged
	m.persistLocked()
	m.mu.Unlock()

	m.log.WithField("provider", p).Debug("Config updated")
	m.bus.Publish(events.ConfigEvent{
		Provider: p,
		Type:     events.Updated,
		OldValue: old.Clone(),
		NewValue: merged.Clone(),
	})
	return merged.Clone(), nil
}

// Reset restores the defaults for p.
func (m *Manager) Reset(p model.ProviderID) ServiceConfig {
	m.mu.Lock()
	old, ok := m.configs[p]
	if !ok {
		old = DefaultServiceConfig(p)
	}
	def := DefaultServiceConfig(p)
	m.configs[p] = def
	m.persistLocked()
	m.mu.Unlock()

	m.bus.Publish(events.ConfigEvent{
		Provider: p,
		Type:     events.Reset,
		OldValue: old.Clone(),
		NewValue: def.Clone(),
	})
	return def.Clone()
}

// ResetAll drops every stored config; providers fall back to defaults.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	old := m.snapshotLocked()
	m.configs = make(map[model.ProviderID]ServiceConfig)
	m.persistLocked()
	m.mu.Unlock()

	m.bus.Publish(events.ConfigEvent{
		Type:     events.Reset,
		OldValue: old,
		NewValue: map[model.ProviderID]ServiceConfig{},
	})
}

// Snapshot returns a copy of every config held in memory.
func (m *Manager) Snapshot() map[model.ProviderID]ServiceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Export serializes the current configs as a versioned envelope.
func (m *Manager) Export() (string, error) {
	m.mu.RLock()
	env := m.migrator.Envelope(m.snapshotLocked())
	m.mu.RUnlock()

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode configs: %w", err)
	}
	return string(data), nil
}

// Import replaces the configs with an envelope (any known version). Every
// imported config must validate, otherwise nothing changes.
func (m *Manager) Import(raw string) error {
	result, configs := m.migrator.CheckAndMigrate(raw)
	if !result.Success {
		return fmt.Errorf("failed to import configs: %w", result.Err)
	}
	for p, cfg := range configs {
		if err := m.validator.Validate(p, cfg).Err(p); err != nil {
			return err
		}
	}

	m.mu.Lock()
	old := m.snapshotLocked()
	m.configs = configs
	m.persistLocked()
	m.mu.Unlock()

	m.log.Infof("Imported %d provider configs (schema %s)", len(configs), result.FromVersion)
	m.bus.Publish(events.ConfigEvent{
		Type:     events.Imported,
		OldValue: old,
		NewValue: cloneMap(configs),
	})
	return nil
}

func (m *Manager) snapshotLocked() map[model.ProviderID]ServiceConfig {
	return cloneMap(m.configs)
}

// persistLocked must be called with m.mu held.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(m.migrator.Envelope(m.configs))
	if err != nil {
		m.log.WithError(err).Error("Failed to encode configs")
		return
	}
	if err := m.store.Save(StorageKey, string(data)); err != nil {
		m.log.WithError(err).Error("Failed to persist configs")
	}
}

func cloneMap(in map[model.ProviderID]ServiceConfig) map[model.ProviderID]ServiceConfig {
	out := make(map[model.ProviderID]ServiceConfig, len(in))
	for p, cfg := range in {
		out[p] = cfg.Clone()
	}
	return out
}

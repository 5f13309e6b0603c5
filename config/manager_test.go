package config

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/events"
	"chatgate/model"
)

type mapStore struct {
	mu      sync.Mutex
	data    map[string]string
	saves   int
	saveErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Load(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = value
	return nil
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	return NewManager(ManagerOptions{Store: store, Logger: quietLogger()})
}

func TestManagerConfigDefaults(t *testing.T) {
	store := newMapStore()
	m := newTestManager(t, store)

	for _, p := range model.KnownProviders() {
		assert.Equal(t, DefaultServiceConfig(p), m.Config(p))
	}
	assert.Zero(t, store.saves, "reading defaults must not persist")
}

func TestManagerUpdateMerges(t *testing.T) {
	store := newMapStore()
	m := newTestManager(t, store)

	var got []events.ConfigEvent
	m.Bus().Subscribe(func(e events.ConfigEvent) { got = append(got, e) }, events.SubscribeOptions{})

	updated, err := m.Update(model.ProviderOpenAI, Patch{
		APIKey:  StringPtr("sk-0123456789abcdefghijkl"),
		Timeout: IntPtr(5000),
	})
	require.NoError(t, err)

	want := DefaultServiceConfig(model.ProviderOpenAI)
	want.APIKey = "sk-0123456789abcdefghijkl"
	want.Timeout = IntPtr(5000)
	assert.Equal(t, want, updated)
	assert.Equal(t, want, m.Config(model.ProviderOpenAI))

	require.Len(t, got, 1)
	assert.Equal(t, events.Updated, got[0].Type)
	assert.Equal(t, model.ProviderOpenAI, got[0].Provider)
	assert.Equal(t, DefaultServiceConfig(model.ProviderOpenAI), got[0].OldValue)
	assert.Equal(t, want, got[0].NewValue)
	assert.False(t, got[0].Timestamp.IsZero())

	assert.Equal(t, 1, store.saves)
}

func TestManagerUpdateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		provider model.ProviderID
		patch    Patch
	}{
		{"negative timeout", model.ProviderOllama, Patch{Timeout: IntPtr(-1)}},
		{"invalid url", model.ProviderOpenAI, Patch{BaseURL: StringPtr("not a url")}},
		{"short credential", model.ProviderDeepSeek, Patch{APIKey: StringPtr("sk-123")}},
		{"valid field with invalid field", model.ProviderOpenAI, Patch{
			DefaultModel: StringPtr("gpt-4o"),
			APIKey:       StringPtr("short"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMapStore()
			m := newTestManager(t, store)
			before := m.Config(tt.provider)

			published := 0
			m.Bus().Subscribe(func(events.ConfigEvent) { published++ }, events.SubscribeOptions{})

			returned, err := m.Update(tt.provider, tt.patch)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, before, returned)
			assert.Equal(t, before, m.Config(tt.provider))
			assert.Zero(t, published)
			assert.Zero(t, store.saves)
		})
	}
}

func TestManagerResetRoundTrip(t *testing.T) {
	m := newTestManager(t, newMapStore())
	for _, p := range model.KnownProviders() {
		_, err := m.Update(p, Patch{DefaultModel: StringPtr("custom"), Timeout: IntPtr(1234)})
		require.NoError(t, err)

		m.Reset(p)
		assert.Equal(t, DefaultServiceConfig(p), m.Config(p), p)
	}
}

func TestManagerResetAll(t *testing.T) {
	m := newTestManager(t, newMapStore())
	_, err := m.Update(model.ProviderOllama, Patch{DefaultModel: StringPtr("qwen3")})
	require.NoError(t, err)

	var got []events.ConfigEvent
	m.Bus().Subscribe(func(e events.ConfigEvent) { got = append(got, e) }, events.SubscribeOptions{
		EventTypes: []events.EventType{events.Reset},
	})

	m.ResetAll()
	assert.Equal(t, DefaultServiceConfig(model.ProviderOllama), m.Config(model.ProviderOllama))
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Provider)
}

func TestManagerPersistsAcrossInstances(t *testing.T) {
	store := newMapStore()
	m := newTestManager(t, store)
	_, err := m.Update(model.ProviderOllama, Patch{Port: IntPtr(11500)})
	require.NoError(t, err)

	var env VersionedConfig
	require.NoError(t, json.Unmarshal([]byte(store.data[StorageKey]), &env))
	assert.Equal(t, CurrentVersion, env.Version)

	reloaded := newTestManager(t, store)
	assert.Equal(t, 11500, *reloaded.Config(model.ProviderOllama).Port)
}

func TestManagerSaveFailureKeepsMemory(t *testing.T) {
	store := newMapStore()
	store.saveErr = errors.New("disk full")
	m := newTestManager(t, store)

	_, err := m.Update(model.ProviderOllama, Patch{DefaultModel: StringPtr("mistral")})
	require.NoError(t, err)
	assert.Equal(t, "mistral", m.Config(model.ProviderOllama).DefaultModel)
}

func TestManagerLoadsAndMigratesLegacy(t *testing.T) {
	store := newMapStore()
	store.data[StorageKey] = `{"OpenAI":{"api_key":"sk-0123456789abcdefghijkl","apiUrl":"https://proxy.example.com/v1","timeout":30}}`

	m := newTestManager(t, store)
	cfg := m.Config(model.ProviderOpenAI)
	assert.Equal(t, "sk-0123456789abcdefghijkl", cfg.APIKey)
	assert.Equal(t, "https://proxy.example.com/v1", cfg.BaseURL)
	require.NotNil(t, cfg.Timeout)
	assert.Equal(t, 30000, *cfg.Timeout)

	// The migrated envelope was written back.
	var env VersionedConfig
	require.NoError(t, json.Unmarshal([]byte(store.data[StorageKey]), &env))
	assert.Equal(t, CurrentVersion, env.Version)
}

func TestManagerUnusableStoreStartsEmpty(t *testing.T) {
	store := newMapStore()
	store.data[StorageKey] = `{"version":"9.9.9","configs":{"ollama":{}}}`

	m := newTestManager(t, store)
	assert.Empty(t, m.Snapshot())
	assert.Equal(t, DefaultServiceConfig(model.ProviderOllama), m.Config(model.ProviderOllama))
}

func TestManagerExportImport(t *testing.T) {
	src := newTestManager(t, newMapStore())
	_, err := src.Update(model.ProviderDeepSeek, Patch{IncludeReasoning: BoolPtr(true)})
	require.NoError(t, err)

	raw, err := src.Export()
	require.NoError(t, err)

	dst := newTestManager(t, newMapStore())
	var got []events.ConfigEvent
	dst.Bus().Subscribe(func(e events.ConfigEvent) { got = append(got, e) }, events.SubscribeOptions{})

	require.NoError(t, dst.Import(raw))
	assert.True(t, dst.Config(model.ProviderDeepSeek).IncludeReasoning)
	require.Len(t, got, 1)
	assert.Equal(t, events.Imported, got[0].Type)
}

func TestManagerImportRejectsInvalid(t *testing.T) {
	m := newTestManager(t, newMapStore())
	_, err := m.Update(model.ProviderOllama, Patch{DefaultModel: StringPtr("keep-me")})
	require.NoError(t, err)

	err = m.Import(`{"version":"1.2.0","configs":{"openai":{"apiKey":"short"}}}`)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "keep-me", m.Config(model.ProviderOllama).DefaultModel)

	err = m.Import(`not json`)
	assert.Error(t, err)
}

func TestManagerConcurrentUpdates(t *testing.T) {
	m := newTestManager(t, newMapStore())

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = m.Update(model.ProviderOllama, Patch{Timeout: IntPtr(n * 100)})
			_ = m.Config(model.ProviderOllama)
		}(i)
	}
	wg.Wait()

	assert.True(t, m.Validator().Validate(model.ProviderOllama, m.Config(model.ProviderOllama)).Valid)
}

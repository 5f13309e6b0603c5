package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/model"
)

func TestCheckAndMigrateIdempotent(t *testing.T) {
	m := DefaultMigrator(quietLogger())
	raw := `{"version":"1.2.0","configs":{"ollama":{"baseUrl":"http://localhost","port":11434,"timeout":30000}}}`

	first, cfgA := m.CheckAndMigrate(raw)
	second, cfgB := m.CheckAndMigrate(raw)

	for _, res := range []MigrationResult{first, second} {
		assert.True(t, res.Success)
		assert.False(t, res.Migrated)
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, cfgA, cfgB)
	assert.Equal(t, ServiceConfig{BaseURL: "http://localhost", Port: IntPtr(11434), Timeout: IntPtr(30000)}, cfgA[model.ProviderOllama])
}

func TestCheckAndMigrateChain(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		from   Version
		expect map[model.ProviderID]ServiceConfig
	}{
		{
			name: "unversioned legacy map",
			raw:  `{"Ollama":{"host":"gpu-box:11500","timeout":10},"DEEPSEEK":{"api_key":"sk-0123456789abcdefghijkl"}}`,
			from: VersionLegacy,
			expect: map[model.ProviderID]ServiceConfig{
				model.ProviderOllama:   {BaseURL: "http://gpu-box", Port: IntPtr(11500), Timeout: IntPtr(10000)},
				model.ProviderDeepSeek: {APIKey: "sk-0123456789abcdefghijkl"},
			},
		},
		{
			name: "envelope without version",
			raw:  `{"configs":{"openai":{"api_url":"https://api.openai.com/v1"}}}`,
			from: VersionLegacy,
			expect: map[model.ProviderID]ServiceConfig{
				model.ProviderOpenAI: {BaseURL: "https://api.openai.com/v1"},
			},
		},
		{
			name: "seconds timeout",
			raw:  `{"version":"1.0.0","configs":{"openai":{"timeout":2.5}}}`,
			from: "1.0.0",
			expect: map[model.ProviderID]ServiceConfig{
				model.ProviderOpenAI: {Timeout: IntPtr(2500)},
			},
		},
		{
			name: "ollama host with scheme",
			raw:  `{"version":"1.1.0","configs":{"ollama":{"host":"https://ollama.lan"}}}`,
			from: "1.1.0",
			expect: map[model.ProviderID]ServiceConfig{
				model.ProviderOllama: {BaseURL: "https://ollama.lan"},
			},
		},
	}

	m := DefaultMigrator(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, cfg := m.CheckAndMigrate(tt.raw)
			require.NoError(t, res.Err)
			assert.True(t, res.Success)
			assert.True(t, res.Migrated)
			assert.Equal(t, tt.from, res.FromVersion)
			assert.Equal(t, CurrentVersion, res.ToVersion)
			assert.Equal(t, tt.expect, cfg)
		})
	}
}

func TestCheckAndMigrateFailuresAreEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		is   error
	}{
		{"garbage", `{{{`, nil},
		{"unknown version", `{"version":"0.5.0","configs":{"ollama":{}}}`, model.ErrNoMigrationPath},
		{"newer version", `{"version":"9.9.9","configs":{"ollama":{"timeout":30000}}}`, model.ErrNoMigrationPath},
		{"bad timeout type", `{"version":"1.0.0","configs":{"ollama":{"timeout":"soon"}}}`, nil},
	}

	m := DefaultMigrator(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, cfg := m.CheckAndMigrate(tt.raw)
			assert.False(t, res.Success)
			assert.Error(t, res.Err)
			if tt.is != nil {
				assert.True(t, errors.Is(res.Err, tt.is))
			}
			assert.NotNil(t, cfg)
			assert.Empty(t, cfg)
		})
	}
}

func TestMigratorRegistration(t *testing.T) {
	noop := func(in RawConfigs) (RawConfigs, error) { return in, nil }

	_, err := NewMigrator("2.0.0", quietLogger(),
		MigrationRule{From: "1.0.0", To: "2.0.0", Migrate: noop},
		MigrationRule{From: "1.0.0", To: "1.5.0", Migrate: noop},
	)
	assert.True(t, errors.Is(err, model.ErrAmbiguousMigration))

	_, err = NewMigrator("2.0.0", quietLogger(),
		MigrationRule{From: "1.0.0", To: "1.5.0", Migrate: noop},
	)
	assert.True(t, errors.Is(err, model.ErrNoMigrationPath), "dangling chain must be rejected")

	_, err = NewMigrator("3.0.0", quietLogger(),
		MigrationRule{From: "1.0.0", To: "2.0.0", Migrate: noop},
		MigrationRule{From: "2.0.0", To: "1.0.0", Migrate: noop},
	)
	assert.True(t, errors.Is(err, model.ErrNoMigrationPath), "cycle must be rejected")

	_, err = NewMigrator("2.0.0", quietLogger(), MigrationRule{From: "1.0.0", To: "2.0.0"})
	assert.Error(t, err)
}

func TestMigratorPath(t *testing.T) {
	m := DefaultMigrator(quietLogger())

	path, err := m.Path(VersionLegacy)
	require.NoError(t, err)
	var steps []string
	for _, r := range path {
		steps = append(steps, fmt.Sprintf("%s->%s", r.From, r.To))
	}
	assert.Equal(t, []string{"0.0.0->1.0.0", "1.0.0->1.1.0", "1.1.0->1.2.0"}, steps)

	path, err = m.Path(CurrentVersion)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestMigrationStepFailureWrapped(t *testing.T) {
	boom := errors.New("boom")
	m, err := NewMigrator("2.0.0", quietLogger(), MigrationRule{
		From:    "1.0.0",
		To:      "2.0.0",
		Migrate: func(RawConfigs) (RawConfigs, error) { return nil, boom },
	})
	require.NoError(t, err)

	res, cfg := m.CheckAndMigrate(`{"version":"1.0.0","configs":{}}`)
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, boom))
	var merr *model.MigrationError
	require.True(t, errors.As(res.Err, &merr))
	assert.Equal(t, "1.0.0", merr.From)
	assert.Empty(t, cfg)
}

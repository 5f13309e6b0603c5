package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/model"
)

func TestValidate(t *testing.T) {
	longKey := "sk-0123456789abcdefghijkl"

	tests := []struct {
		name     string
		provider model.ProviderID
		config   ServiceConfig
		fields   []string
	}{
		{
			name:     "defaults are valid for every provider",
			provider: model.ProviderOllama,
			config:   DefaultServiceConfig(model.ProviderOllama),
		},
		{
			name:     "negative timeout",
			provider: model.ProviderOllama,
			config:   ServiceConfig{Timeout: IntPtr(-1)},
			fields:   []string{"timeout"},
		},
		{
			name:     "zero timeout",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{Timeout: IntPtr(0)},
			fields:   []string{"timeout"},
		},
		{
			name:     "negative retries",
			provider: model.ProviderDeepSeek,
			config:   ServiceConfig{MaxRetries: IntPtr(-2)},
			fields:   []string{"maxRetries"},
		},
		{
			name:     "non http url",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{BaseURL: "ftp://example.com"},
			fields:   []string{"baseUrl"},
		},
		{
			name:     "url without host",
			provider: model.ProviderOllama,
			config:   ServiceConfig{BaseURL: "http://"},
			fields:   []string{"baseUrl"},
		},
		{
			name:     "short openai key",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{APIKey: "sk-short"},
			fields:   []string{"apiKey"},
		},
		{
			name:     "short deepseek key",
			provider: model.ProviderDeepSeek,
			config:   ServiceConfig{APIKey: "sk-short"},
			fields:   []string{"apiKey"},
		},
		{
			name:     "ollama ignores key length",
			provider: model.ProviderOllama,
			config:   ServiceConfig{APIKey: "x"},
		},
		{
			name:     "bad organization",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{APIKey: longKey, Organization: "acme"},
			fields:   []string{"organization"},
		},
		{
			name:     "good organization",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{APIKey: longKey, Organization: "org-abc123"},
		},
		{
			name:     "ollama port out of range",
			provider: model.ProviderOllama,
			config:   ServiceConfig{Port: IntPtr(70000)},
			fields:   []string{"port"},
		},
		{
			name:     "anthropic api version",
			provider: model.ProviderAnthropic,
			config:   ServiceConfig{APIVersion: "latest"},
			fields:   []string{"apiVersion"},
		},
		{
			name:     "collects every violation",
			provider: model.ProviderOpenAI,
			config:   ServiceConfig{Timeout: IntPtr(-5), BaseURL: "nope", APIKey: "short"},
			fields:   []string{"timeout", "baseUrl", "apiKey"},
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.provider, tt.config)
			var fields []string
			for _, fe := range res.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, len(tt.fields) == 0, res.Valid)
		})
	}
}

func TestValidateDefaultsForAllProviders(t *testing.T) {
	v := NewValidator()
	for _, p := range model.KnownProviders() {
		assert.True(t, v.Validate(p, DefaultServiceConfig(p)).Valid, p)
	}
}

func TestResultErr(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(model.ProviderOllama, ServiceConfig{}).Err(model.ProviderOllama))

	err := v.Validate(model.ProviderOllama, ServiceConfig{Timeout: IntPtr(0)}).Err(model.ProviderOllama)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, model.ProviderOllama, verr.Provider)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAddRules(t *testing.T) {
	v := NewValidator()
	acme := model.ProviderID("acme")

	v.AddRules(acme, Rule{
		Field:   "defaultModel",
		Check:   func(c ServiceConfig) bool { return c.DefaultModel != "" },
		Message: "is required",
	})
	assert.False(t, v.Validate(acme, ServiceConfig{}).Valid)
	assert.True(t, v.Validate(acme, ServiceConfig{DefaultModel: "m"}).Valid)

	// A panicking rule is a violation, not a crash.
	v.AddRules(acme, Rule{
		Field:   "port",
		Check:   func(c ServiceConfig) bool { return *c.Port > 0 },
		Message: "must be set",
	})
	res := v.Validate(acme, ServiceConfig{DefaultModel: "m"})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "port", res.Errors[0].Field)
}

func TestEndpointURL(t *testing.T) {
	cfg := ServiceConfig{BaseURL: "http://gpu-box", Port: IntPtr(11500)}
	assert.Equal(t, "http://gpu-box:11500", cfg.EndpointURL())

	cfg = ServiceConfig{BaseURL: "http://localhost:11434"}
	assert.Equal(t, "http://localhost:11434", cfg.EndpointURL())
}

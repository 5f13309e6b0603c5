package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/model"
)

func TestParsePatch(t *testing.T) {
	tests := []struct {
		field, value string
		check        func(t *testing.T, p Patch)
	}{
		{"baseUrl", "http://gpu:11434", func(t *testing.T, p Patch) {
			require.NotNil(t, p.BaseURL)
			assert.Equal(t, "http://gpu:11434", *p.BaseURL)
		}},
		{"timeout", "45000", func(t *testing.T, p Patch) {
			require.NotNil(t, p.Timeout)
			assert.Equal(t, 45000, *p.Timeout)
			assert.Nil(t, p.BaseURL)
		}},
		{"includeReasoning", "true", func(t *testing.T, p Patch) {
			require.NotNil(t, p.IncludeReasoning)
			assert.True(t, *p.IncludeReasoning)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			p, err := ParsePatch(tt.field, tt.value)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestParsePatchErrors(t *testing.T) {
	_, err := ParsePatch("colour", "blue")
	assert.ErrorContains(t, err, "unknown config field")

	_, err = ParsePatch("port", "eleven")
	assert.ErrorContains(t, err, "invalid port")

	_, err = ParsePatch("includeReasoning", "maybe")
	assert.Error(t, err)
}

func TestParsedPatchAppliesThroughValidation(t *testing.T) {
	p, err := ParsePatch("maxRetries", "-1")
	require.NoError(t, err)

	cfg := DefaultServiceConfig(model.ProviderOpenAI).Apply(p)
	assert.False(t, NewValidator().Validate(model.ProviderOpenAI, cfg).Valid)
}

func TestPatchFieldsSorted(t *testing.T) {
	fields := PatchFields()
	assert.Contains(t, fields, "apiKey")
	assert.IsIncreasing(t, fields)
}

package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"name":"llama3.1:latest","model":"llama3.1:latest","size":4920753328,
			 "details":{"format":"gguf","family":"llama","parameter_size":"8.0B","quantization_level":"Q4_K_M"}},
			{"name":"gemma2:2b","model":"gemma2:2b","details":{"family":"gemma2"}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, "llama3.1:latest", models[0].ID)
	assert.Equal(t, "gguf", models[0].Details.Format)
	assert.Equal(t, "8.0B", models[0].Details.ParameterSize)
	assert.Equal(t, "Q4_K_M", models[0].Details.QuantizationLevel)
	assert.True(t, models[0].Details.SupportsTools)
	assert.False(t, models[1].Details.SupportsTools)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:8b", true},
		{"llama3.2:3b", true},
		{"llama3:latest", false},
		{"llama3-gradient:8b", false},
		{"Qwen2.5-coder:7b", true},
		{"codellama:13b", false},
		{"unknown-model", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModelSupportsToolCalling(tt.model), tt.model)
	}
}

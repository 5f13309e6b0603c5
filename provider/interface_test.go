package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/config"
	"chatgate/model"
	"chatgate/provider"
	"chatgate/provider/testutil"
)

var (
	_ provider.Service = (*provider.OllamaService)(nil)
	_ provider.Service = (*provider.CompatService)(nil)
	_ provider.Service = (*provider.AnthropicService)(nil)
	_ provider.Service = (*testutil.MockService)(nil)
)

// fakeBackend answers the listing, liveness and chat endpoints of both wire
// protocols, streaming "Hello world".
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"name":"llama3.1:latest","model":"llama3.1:latest","details":{"family":"llama"}}]}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteStream(t, w, "application/x-ndjson", testutil.NDJSONBody("Hello", " world"))
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model","created":0,"owned_by":"openai"}]}`))
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteStream(t, w, "text/event-stream", testutil.SSEBody("Hello", " world"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func contractDeps(p model.ProviderID, baseURL string) provider.Deps {
	log, _ := test.NewNullLogger()
	creds := testutil.NewMemoryCredentials()
	_ = creds.SetCredential(p, "sk-contract")

	cfg := config.DefaultServiceConfig(p)
	cfg.BaseURL = baseURL
	cfg.Timeout = config.IntPtr(5000)
	cfg.MaxRetries = config.IntPtr(0)
	return provider.Deps{
		Provider:    p,
		Config:      cfg,
		Credentials: creds,
		Status:      provider.NewStatusStore(),
		Metrics:     provider.NewMetrics(nil),
		Logger:      log,
	}
}

// TestServiceContract runs the behavior every adapter shares against each
// implementation.
func TestServiceContract(t *testing.T) {
	srv := fakeBackend(t)

	tests := []struct {
		name  string
		id    model.ProviderID
		build func(provider.Deps) (provider.Service, error)
	}{
		{"Mock", "mock", func(d provider.Deps) (provider.Service, error) {
			return testutil.NewMockService(d.Provider), nil
		}},
		{"Ollama", model.ProviderOllama, provider.NewOllamaService},
		{"OpenAI", model.ProviderOpenAI, provider.NewCompatService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build(contractDeps(tt.id, srv.URL))
			require.NoError(t, err)

			t.Run("Identity", func(t *testing.T) {
				assert.Equal(t, tt.id, svc.Provider())
			})
			t.Run("Models", func(t *testing.T) {
				testServiceModels(t, svc)
			})
			t.Run("CheckAvailable", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				assert.True(t, svc.CheckAvailable(ctx))
			})
			t.Run("Chat", func(t *testing.T) {
				testServiceChat(t, svc)
			})
			t.Run("ChatCancelled", func(t *testing.T) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				ts, err := svc.Chat(ctx, "", testutil.SingleUserMessage("Hello"))
				if err != nil {
					assert.ErrorIs(t, err, model.ErrAborted)
					return
				}
				defer ts.Close()
				assert.False(t, ts.Next())
			})
		})
	}
}

func testServiceModels(t *testing.T, svc provider.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	models, err := svc.Models(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.NotEmpty(t, m.ID)
	}
}

func testServiceChat(t *testing.T, svc provider.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts, err := svc.Chat(ctx, "", testutil.SingleUserMessage("Hello"))
	require.NoError(t, err)
	defer ts.Close()

	full, err := ts.Collect()
	require.NoError(t, err)
	assert.NotEmpty(t, full)
	assert.Positive(t, ts.Count())
}

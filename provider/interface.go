// Package provider implements the chat backends behind a common Service
// contract and the Factory and Manager that hand them out.
//
// Each adapter is built from a config snapshot. When a provider's config
// changes the Manager evicts the cached adapter, so the next call observes
// the new settings without adapters having to watch for changes.
//
// # Streaming
//
// Chat returns a *stream.TokenStream rather than taking callbacks:
//
//	ts, err := mgr.Chat(ctx, model.ProviderOllama, "llama3.1:latest", msgs)
//	if err != nil {
//	    return err
//	}
//	defer ts.Close()
//	for ts.Next() {
//	    fmt.Print(ts.Token())
//	}
//	return ts.Err()
//
// Callers that prefer callbacks use Manager.ChatWithHandlers, which drives
// the stream through stream.Consume.
//
// # Adapters
//
//   - OllamaService: local daemon, NDJSON over /api/chat, no credential
//   - CompatService: OpenAI and DeepSeek, SSE over /chat/completions
//   - AnthropicService: Messages API through the official SDK
package provider

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"chatgate/config"
	"chatgate/model"
	"chatgate/stream"
)

// Service is the per-provider adapter contract.
type Service interface {
	Provider() model.ProviderID

	// Models fails with model.ErrCredentialMissing when the provider needs a
	// key and none is configured.
	Models(ctx context.Context) ([]model.APIModel, error)

	// CheckAvailable never fails; any error means false.
	CheckAvailable(ctx context.Context) bool

	// CheckAPIKey probes the provider with candidate and records the result
	// in the shared status. It never fails.
	CheckAPIKey(ctx context.Context, candidate string) bool

	// Chat starts a streaming completion. An empty modelID selects the
	// configured default model.
	Chat(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error)
}

// Deps is what a Constructor gets to build an adapter.
type Deps struct {
	Provider    model.ProviderID
	Config      config.ServiceConfig
	Credentials model.CredentialStore
	Status      *StatusStore
	Metrics     *Metrics
	HTTPClient  *http.Client // nil builds one from Config.Timeout
	Logger      logrus.FieldLogger
}

// Constructor builds an adapter from its dependencies.
type Constructor func(Deps) (Service, error)

package provider

import (
	"context"
	"fmt"
	"strings"

	"chatgate/model"
	"chatgate/ollama"
	"chatgate/stream"
)

// OllamaService talks to a local Ollama daemon.
//
// Chat posts to /api/chat and decodes the NDJSON body with
// stream.NDJSONSource. Listing and liveness go through the ollama package,
// which wraps the official API client. No credential is needed.
type OllamaService struct {
	base
	client   *ollama.Client
	endpoint string
}

// NewOllamaService builds the adapter. The Port override in the config is
// applied to BaseURL.
func NewOllamaService(d Deps) (Service, error) {
	b := newBase(d)
	endpoint := strings.TrimRight(b.cfg.EndpointURL(), "/")
	if endpoint == "" {
		endpoint = ollama.DefaultBaseURL
	}

	client, err := ollama.NewClient(endpoint, b.http)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaService{
		base:     b,
		client:   client,
		endpoint: endpoint,
	}, nil
}

// Models returns every locally pulled model. Ollama has no allow-list.
func (s *OllamaService) Models(ctx context.Context) ([]model.APIModel, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		s.setAvailable(false, err.Error())
		return nil, &model.NetworkError{Provider: s.provider, Err: err}
	}
	s.setAvailable(true, "")
	return models, nil
}

// CheckAvailable pings the daemon.
func (s *OllamaService) CheckAvailable(ctx context.Context) bool {
	if err := s.client.Ping(ctx); err != nil {
		s.log.WithError(err).Debug("Ollama not reachable")
		s.setAvailable(false, err.Error())
		return false
	}
	s.setAvailable(true, "")
	return true
}

// CheckAPIKey ignores candidate: Ollama has no authentication, so the probe
// is a liveness check.
func (s *OllamaService) CheckAPIKey(ctx context.Context, _ string) bool {
	return s.CheckAvailable(ctx)
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// Chat streams a completion from /api/chat.
func (s *OllamaService) Chat(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error) {
	started := s.beginChat()

	resp, err := s.postStream(ctx, s.endpoint+"/api/chat", nil, ollamaChatRequest{
		Model:    s.modelOrDefault(modelID),
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, s.failChat(ctx, started, err)
	}

	src := stream.NewNDJSONSource(resp.Body, s.provider, s.log)
	return s.openStream(ctx, started, src, resp.Body), nil
}

package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatgate/model"
	"chatgate/stream"
)

// CompatService serves OpenAI and DeepSeek, which share the chat completions
// wire format. They differ in endpoint, in the optional organization header
// (OpenAI) and in the reasoning delta (DeepSeek).
//
// Chat is decoded by stream.SSESource over a plain HTTP request. Model
// listing and key probes use the official openai-go client.
type CompatService struct {
	base
	baseURL string
}

// NewCompatService builds the adapter for an OpenAI compatible provider.
func NewCompatService(d Deps) (Service, error) {
	b := newBase(d)
	return &CompatService{
		base:    b,
		baseURL: strings.TrimRight(b.cfg.BaseURL, "/"),
	}, nil
}

// sdkClient builds an openai-go client for apiKey.
func (s *CompatService) sdkClient(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(s.baseURL + "/"),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(s.http),
		option.WithMaxRetries(s.cfg.Retries()),
	}
	if s.cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(s.cfg.Organization))
	}
	return openai.NewClient(opts...)
}

func (s *CompatService) listIDs(ctx context.Context, apiKey string) ([]string, error) {
	client := s.sdkClient(apiKey)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, s.wrapSDKError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// wrapSDKError maps an openai-go error onto the gateway taxonomy.
func (s *CompatService) wrapSDKError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.NetworkError{Provider: s.provider, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &model.NetworkError{Provider: s.provider, Err: err}
}

// Models lists the provider's models, restricted to the local catalog.
func (s *CompatService) Models(ctx context.Context) ([]model.APIModel, error) {
	key, err := s.apiKey()
	if err != nil {
		return nil, err
	}
	ids, err := s.listIDs(ctx, key)
	if err != nil {
		s.setAvailable(false, err.Error())
		return nil, err
	}
	s.setAvailable(true, "")
	return intersectCatalog(s.provider, ids), nil
}

// CheckAvailable reports whether the configured key can list models.
func (s *CompatService) CheckAvailable(ctx context.Context) bool {
	key, err := s.apiKey()
	if err != nil {
		s.setAvailable(false, err.Error())
		return false
	}
	return s.probe(ctx, key)
}

// CheckAPIKey lists models with candidate.
func (s *CompatService) CheckAPIKey(ctx context.Context, candidate string) bool {
	if candidate == "" {
		s.setAvailable(false, model.ErrCredentialMissing.Error())
		return false
	}
	return s.probe(ctx, candidate)
}

func (s *CompatService) probe(ctx context.Context, key string) bool {
	if _, err := s.listIDs(ctx, key); err != nil {
		msg := err.Error()
		var netErr *model.NetworkError
		if errors.As(err, &netErr) && (netErr.StatusCode == http.StatusUnauthorized || netErr.StatusCode == http.StatusForbidden) {
			msg = "invalid API key"
		}
		s.log.WithError(err).Debug("Key probe failed")
		s.setAvailable(false, msg)
		return false
	}
	s.setAvailable(true, "")
	return true
}

type compatChatRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// Chat streams a completion from /chat/completions.
func (s *CompatService) Chat(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error) {
	key, err := s.apiKey()
	if err != nil {
		return nil, err
	}

	started := s.beginChat()
	headers := map[string]string{
		"Authorization": "Bearer " + key,
		"Accept":        "text/event-stream",
	}
	if s.cfg.Organization != "" {
		headers["OpenAI-Organization"] = s.cfg.Organization
	}

	resp, err := s.postStream(ctx, s.baseURL+"/chat/completions", headers, compatChatRequest{
		Model:    s.modelOrDefault(modelID),
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, s.failChat(ctx, started, err)
	}

	src := stream.NewSSESource(resp.Body, s.provider, s.log, stream.WithReasoning(s.cfg.IncludeReasoning))
	return s.openStream(ctx, started, src, resp.Body), nil
}

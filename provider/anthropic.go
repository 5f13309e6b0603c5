package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"chatgate/model"
	"chatgate/stream"
)

// defaultMaxTokens is sent for models missing from the catalog. The
// Messages API requires an explicit limit.
const defaultMaxTokens = 4096

// AnthropicService talks to the Anthropic Messages API through the official
// SDK. Streaming events are adapted to stream.Source, so cancellation and
// status reporting work the same as for the HTTP adapters.
type AnthropicService struct {
	base
	baseURL string
}

// NewAnthropicService builds the adapter.
func NewAnthropicService(d Deps) (Service, error) {
	b := newBase(d)
	return &AnthropicService{
		base:    b,
		baseURL: strings.TrimRight(b.cfg.BaseURL, "/"),
	}, nil
}

func (s *AnthropicService) sdkClient(apiKey string) anthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(s.http),
		option.WithMaxRetries(s.cfg.Retries()),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL+"/"))
	}
	if s.cfg.APIVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", s.cfg.APIVersion))
	}
	return anthropic.NewClient(opts...)
}

// wrapSDKError maps an SDK error onto the gateway taxonomy.
func (s *AnthropicService) wrapSDKError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &model.NetworkError{Provider: s.provider, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &model.NetworkError{Provider: s.provider, Err: err}
}

func (s *AnthropicService) listIDs(ctx context.Context, apiKey string) ([]string, error) {
	client := s.sdkClient(apiKey)
	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, s.wrapSDKError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Models lists the Claude models the key can use, restricted to the catalog.
func (s *AnthropicService) Models(ctx context.Context) ([]model.APIModel, error) {
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
func (s *AnthropicService) CheckAvailable(ctx context.Context) bool {
	key, err := s.apiKey()
	if err != nil {
		s.setAvailable(false, err.Error())
		return false
	}
	return s.probe(ctx, key)
}

// CheckAPIKey lists models with candidate.
func (s *AnthropicService) CheckAPIKey(ctx context.Context, candidate string) bool {
	if candidate == "" {
		s.setAvailable(false, model.ErrCredentialMissing.Error())
		return false
	}
	return s.probe(ctx, candidate)
}

func (s *AnthropicService) probe(ctx context.Context, key string) bool {
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

// Chat streams a completion through the Messages API.
func (s *AnthropicService) Chat(ctx context.Context, modelID string, messages []model.Message) (*stream.TokenStream, error) {
	key, err := s.apiKey()
	if err != nil {
		return nil, err
	}

	modelID = s.modelOrDefault(modelID)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		Messages:  toAnthropicMessages(messages),
		MaxTokens: int64(maxTokensFor(s.provider, modelID, defaultMaxTokens)),
	}
	if prompt, ok := model.SystemPrompt(messages); ok {
		params.System = []anthropic.TextBlockParam{{Text: prompt}}
	}

	started := s.beginChat()
	client := s.sdkClient(key)
	// A streamed request cannot be replayed once tokens were delivered.
	events := client.Messages.NewStreaming(ctx, params, option.WithMaxRetries(0))

	// The SDK reports HTTP failures on the first Next. Pulling it here lets
	// Chat fail synchronously like the other adapters.
	src := &anthropicSource{events: events, provider: s.provider, wrap: s.wrapSDKError}
	if !events.Next() {
		err := events.Err()
		events.Close()
		if err == nil {
			err = &model.ProviderError{Provider: s.provider, Message: "empty response"}
		} else {
			err = s.wrapSDKError(err)
		}
		return nil, s.failChat(ctx, started, err)
	}
	src.primed = true

	return s.openStream(ctx, started, src, events), nil
}

func toAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

// anthropicSource turns SDK stream events into text fragments.
type anthropicSource struct {
	events   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	provider model.ProviderID
	wrap     func(error) error
	primed   bool
	done     bool
}

func (a *anthropicSource) Next() (string, error) {
	for !a.done {
		if a.primed {
			a.primed = false
		} else if !a.events.Next() {
			if err := a.events.Err(); err != nil {
				return "", a.wrap(err)
			}
			return "", io.EOF
		}

		switch ev := a.events.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				return delta.Text, nil
			}
		case anthropic.MessageStopEvent:
			a.done = true
		}
	}
	return "", io.EOF
}

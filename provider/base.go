package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chatgate/config"
	"chatgate/model"
	"chatgate/stream"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 4096
)

// base carries what every adapter shares: the config snapshot, credential
// lookup, status publishing and the HTTP plumbing for streaming requests.
type base struct {
	provider model.ProviderID
	cfg      config.ServiceConfig
	creds    model.CredentialStore
	status   *StatusStore
	metrics  *Metrics
	http     *http.Client
	log      logrus.FieldLogger
}

func newBase(d Deps) base {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	status := d.Status
	if status == nil {
		status = NewStatusStore()
	}
	client := d.HTTPClient
	if client == nil {
		client = newHTTPClient(d.Config.TimeoutDuration(defaultTimeout))
	}
	return base{
		provider: d.Provider,
		cfg:      d.Config,
		creds:    d.Credentials,
		status:   status,
		metrics:  d.Metrics,
		http:     client,
		log:      log.WithField("provider", d.Provider),
	}
}

// newHTTPClient bounds connection setup and time-to-first-byte by timeout.
// http.Client.Timeout would also cap reading a streamed body, so it is unset.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

func (b *base) Provider() model.ProviderID {
	return b.provider
}

// apiKey returns the configured key, falling back to the credential store.
func (b *base) apiKey() (string, error) {
	if b.cfg.APIKey != "" {
		return b.cfg.APIKey, nil
	}
	if b.creds != nil {
		if key, ok := b.creds.Credential(b.provider); ok {
			return key, nil
		}
	}
	return "", fmt.Errorf("%s: %w", b.provider, model.ErrCredentialMissing)
}

func (b *base) modelOrDefault(modelID string) string {
	if modelID != "" {
		return modelID
	}
	return b.cfg.DefaultModel
}

func (b *base) setAvailable(ok bool, errMsg string) {
	b.status.Update(b.provider, func(s *model.Status) {
		s.IsAvailable = ok
		s.Error = errMsg
	})
}

// postStream sends a JSON POST and returns the response once a 2xx status
// has been received. Anything else becomes a *model.NetworkError.
func (b *base) postStream(ctx context.Context, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &model.NetworkError{Provider: b.provider, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Provider: b.provider, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &model.NetworkError{
			Provider:   b.provider,
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorMessage(msg, resp.Status)),
		}
	}
	return resp, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Error) > 0 {
		var s string
		if json.Unmarshal(parsed.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(parsed.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}

// beginChat marks the provider as loading and starts the latency clock.
func (b *base) beginChat() time.Time {
	b.status.BeginChat(b.provider)
	return b.metrics.chatStarted(b.provider)
}

// failChat records a chat that ended before a stream existed. A request
// cut short by ctx is an abort and yields model.ErrAborted.
func (b *base) failChat(ctx context.Context, started time.Time, err error) error {
	if ctx.Err() != nil {
		b.finishChat(started, stream.Aborted, model.ErrAborted, 0)
		return model.ErrAborted
	}
	b.finishChat(started, stream.Failed, err, 0)
	return err
}

// finishChat publishes the final status of a chat. Aborts record no error.
func (b *base) finishChat(started time.Time, outcome stream.Outcome, err error, tokens int) {
	b.metrics.chatFinished(b.provider, started, outcome, tokens)

	b.status.EndChat(b.provider, func(s *model.Status) {
		switch outcome {
		case stream.Completed:
			s.IsAvailable = true
			s.Error = ""
		case stream.Failed:
			s.Error = err.Error()
			var netErr *model.NetworkError
			if errors.As(err, &netErr) && netErr.StatusCode == 0 {
				s.IsAvailable = false
			}
		}
	})

	entry := b.log.WithFields(logrus.Fields{"outcome": outcome.String(), "tokens": tokens})
	switch outcome {
	case stream.Failed:
		entry.WithError(err).Warn("Chat failed")
	default:
		entry.Debug("Chat finished")
	}
}

// openStream wraps src in a TokenStream that reports its outcome.
func (b *base) openStream(ctx context.Context, started time.Time, src stream.Source, body io.Closer) *stream.TokenStream {
	return stream.New(ctx, src,
		stream.WithBody(body),
		stream.OnFinish(func(o stream.Outcome, err error, tokens int) {
			b.finishChat(started, o, err, tokens)
		}),
	)
}

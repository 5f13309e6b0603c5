package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"chatgate/model"
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// SSESource decodes OpenAI compatible chat completion streams. Only data:
// lines are considered. [DONE] ends the stream and nothing after it is read.
type SSESource struct {
	r                *bufio.Reader
	provider         model.ProviderID
	includeReasoning bool
	done             bool
	pending          string
	log              logrus.FieldLogger
}

// SSEOption configures an SSESource.
type SSEOption func(*SSESource)

// WithReasoning also emits delta.reasoning_content (DeepSeek reasoner).
func WithReasoning(enabled bool) SSEOption {
	return func(s *SSESource) {
		s.includeReasoning = enabled
	}
}

// NewSSESource wraps r.
func NewSSESource(r io.Reader, provider model.ProviderID, log logrus.FieldLogger, opts ...SSEOption) *SSESource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &SSESource{
		r:        bufio.NewReaderSize(r, 64*1024),
		provider: provider,
		log:      log.WithField("provider", provider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SSESource) Next() (string, error) {
	for {
		if s.pending != "" {
			tok := s.pending
			s.pending = ""
			return tok, nil
		}
		if s.done {
			return "", io.EOF
		}

		line, err := s.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if frag := bytes.TrimSpace(line); len(frag) > 0 {
					s.log.Warnf("Dropping unterminated SSE fragment (%d bytes)", len(frag))
				}
				return "", io.EOF
			}
			return "", err
		}

		payload, ok := ssePayload(line)
		if !ok {
			continue
		}
		if bytes.Equal(payload, doneSentinel) {
			s.done = true
			return "", io.EOF
		}

		var chunk sseChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			s.log.WithError(err).Warn("Skipping malformed SSE frame")
			continue
		}
		if chunk.Error != nil {
			return "", &model.ProviderError{Provider: s.provider, Message: chunk.Error.Message}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if s.includeReasoning && delta.ReasoningContent != "" {
			s.pending = delta.Content
			return delta.ReasoningContent, nil
		}
		if delta.Content != "" {
			return delta.Content, nil
		}
	}
}

// ssePayload returns the value of a data: line, minus one optional space.
func ssePayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	val := line[len(dataPrefix):]
	if len(val) > 0 && val[0] == ' ' {
		val = val[1:]
	}
	return bytes.TrimSpace(val), true
}

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

// Source yields decoded tokens from a response body. Next returns io.EOF
// when the stream ended normally; any other error fails the stream.
type Source interface {
	Next() (string, error)
}

type ndjsonChunk struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// NDJSONSource decodes Ollama style newline-delimited JSON. A line only
// counts once its terminating newline has been read, so frames may straddle
// any number of reads. The stream ends at end of body; done:true is not a
// sentinel.
type NDJSONSource struct {
	r        *bufio.Reader
	provider model.ProviderID
	log      logrus.FieldLogger
}

// NewNDJSONSource wraps r.
func NewNDJSONSource(r io.Reader, provider model.ProviderID, log logrus.FieldLogger) *NDJSONSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NDJSONSource{
		r:        bufio.NewReaderSize(r, 64*1024),
		provider: provider,
		log:      log.WithField("provider", provider),
	}
}

func (s *NDJSONSource) Next() (string, error) {
	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if frag := bytes.TrimSpace(line); len(frag) > 0 {
					s.log.Warnf("Dropping unterminated NDJSON fragment (%d bytes)", len(frag))
				}
				return "", io.EOF
			}
			return "", err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk ndjsonChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.log.WithError(err).Warn("Skipping malformed NDJSON line")
			continue
		}
		if chunk.Error != "" {
			return "", &model.ProviderError{Provider: s.provider, Message: chunk.Error}
		}
		if chunk.Message != nil && chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
}

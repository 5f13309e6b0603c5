package stream

import (
	"context"
	"io"
	"strings"
)

// Handlers is the callback view of a stream. Any field may be nil. Exactly
// one of OnComplete, OnError or OnAbort runs, after the last OnToken.
type Handlers struct {
	OnToken    func(token string)
	OnComplete func(full string)
	OnError    func(err error)
	OnAbort    func()
}

// Consume drives ts to its end, dispatching to h on the calling goroutine.
// It returns ts.Err().
func Consume(ts *TokenStream, h Handlers) error {
	var sb strings.Builder
	for ts.Next() {
		tok := ts.Token()
		sb.WriteString(tok)
		if h.OnToken != nil {
			h.OnToken(tok)
		}
	}

	switch ts.Outcome() {
	case Completed:
		if h.OnComplete != nil {
			h.OnComplete(sb.String())
		}
	case Aborted:
		if h.OnAbort != nil {
			h.OnAbort()
		}
	case Failed:
		if h.OnError != nil {
			h.OnError(ts.Err())
		}
	}
	return ts.Err()
}

type sliceSource struct {
	tokens []string
	err    error
}

func (s *sliceSource) Next() (string, error) {
	if len(s.tokens) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

// FromTokens returns a stream over fixed tokens that then ends with err, or
// completes when err is nil. Used for canned responses and tests.
func FromTokens(ctx context.Context, tokens []string, err error, opts ...Option) *TokenStream {
	return New(ctx, &sliceSource{tokens: append([]string(nil), tokens...), err: err}, opts...)
}

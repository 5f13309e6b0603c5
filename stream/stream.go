// Package stream turns provider response bodies into a pull-based sequence
// of text tokens.
//
// A TokenStream ends in exactly one Outcome. Cancelling the request context
// or closing the stream early yields Aborted, which is reported separately
// from failures so callers never mistake a user stop for an error.
package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"chatgate/model"
)

// Outcome is how a stream ended.
type Outcome int

const (
	Pending Outcome = iota
	Completed
	Failed
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// FinishFunc observes the end of a stream. It runs exactly once.
type FinishFunc func(outcome Outcome, err error, tokens int)

// TokenStream is a lazily produced, cancellable sequence of tokens. It is
// consumed on one goroutine; only Close may be called from another.
type TokenStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	src    Source
	body   io.Closer

	mu       sync.Mutex
	token    string
	count    int
	outcome  Outcome
	err      error
	onFinish []FinishFunc
}

// Option configures a TokenStream.
type Option func(*TokenStream)

// WithBody makes the stream close body when it finishes.
func WithBody(body io.Closer) Option {
	return func(s *TokenStream) {
		s.body = body
	}
}

// OnFinish registers a hook that runs once the outcome is known.
func OnFinish(fn FinishFunc) Option {
	return func(s *TokenStream) {
		s.onFinish = append(s.onFinish, fn)
	}
}

// New builds a stream reading from src until ctx is cancelled.
func New(ctx context.Context, src Source, opts ...Option) *TokenStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &TokenStream{ctx: ctx, cancel: cancel, src: src}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances to the next token. It returns false once the stream has
// ended; Outcome and Err then describe why.
func (s *TokenStream) Next() bool {
	if s.Outcome() != Pending {
		return false
	}
	if s.ctx.Err() != nil {
		s.finish(Aborted, model.ErrAborted)
		return false
	}

	tok, err := s.src.Next()

	// A cancellation observed while blocked in Next wins over whatever the
	// read produced, so no token is delivered after it.
	if s.ctx.Err() != nil {
		s.finish(Aborted, model.ErrAborted)
		return false
	}
	switch {
	case errors.Is(err, io.EOF):
		s.finish(Completed, nil)
		return false
	case err != nil:
		s.finish(Failed, err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A Close on another goroutine may have settled the outcome before its
	// cancel reached ctx.
	if s.outcome != Pending {
		return false
	}
	s.token = tok
	s.count++
	return true
}

// Token returns the token produced by the last successful Next.
func (s *TokenStream) Token() string {
	return s.token
}

// Count returns how many tokens have been delivered.
func (s *TokenStream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Outcome returns Pending until the stream has ended.
func (s *TokenStream) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Err is nil for Completed and Pending, model.ErrAborted for Aborted, and the
// failure otherwise.
func (s *TokenStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream. Closing before completion is an abort. Close is
// idempotent and safe to call from another goroutine.
func (s *TokenStream) Close() error {
	s.finish(Aborted, model.ErrAborted)
	return nil
}

// Collect drains the stream and returns everything delivered, including the
// partial text of a failed or aborted stream.
func (s *TokenStream) Collect() (string, error) {
	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Token())
	}
	return sb.String(), s.Err()
}

// Tokens adapts the stream to a range-over-func iterator. Breaking out of
// the loop leaves the stream open; call Close.
func (s *TokenStream) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		for s.Next() {
			if !yield(s.Token()) {
				return
			}
		}
	}
}

func (s *TokenStream) finish(outcome Outcome, err error) {
	s.mu.Lock()
	if s.outcome != Pending {
		s.mu.Unlock()
		return
	}
	s.outcome = outcome
	s.err = err
	hooks := s.onFinish
	s.onFinish = nil
	count := s.count
	s.mu.Unlock()

	s.cancel()
	if s.body != nil {
		_ = s.body.Close()
	}
	for _, fn := range hooks {
		fn(outcome, err, count)
	}
}

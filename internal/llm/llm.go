// Package llm streams chat replies from language-model backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rbright/ari/internal/conversation"
)

var (
	// ErrModelUnavailable marks a call that could not be made or failed before any fragment.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelError marks a stream that terminated abnormally after it started.
	ErrModelError = errors.New("model error")
)

// Kind classifies a backend failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindModel       Kind = "model"
)

// Error carries the provider and failure kind of a backend error.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	if e.Kind == KindModel {
		return ErrModelError
	}
	return ErrModelUnavailable
}

// Model streams one reply for an ordered turn list.
//
// Stream fails with ErrModelUnavailable when the call cannot be made. The returned sequence
// yields fragments in arrival order; a mid-stream failure is yielded once as a non-nil error
// wrapping ErrModelError, after which iteration stops.
type Model interface {
	Stream(ctx context.Context, turns []conversation.Turn) (iter.Seq2[string, error], error)
}

func unavailable(provider string, err error) error {
	return &Error{Provider: provider, Kind: KindUnavailable, Err: err}
}

func modelError(provider string, err error) error {
	return &Error{Provider: provider, Kind: KindModel, Err: err}
}

// Package recovery runs lookups under a timeout with exponential backoff,
// classifies their failures and serves stale results when retries run out.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the failure taxonomy shown to users.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindAPI
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindTimeout:
		return "TimeoutError"
	case KindAPI:
		return "ApiError"
	case KindCache:
		return "CacheError"
	default:
		return "UnknownError"
	}
}

// Retryable reports whether failures of this kind are worth another attempt.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindTimeout || k == KindAPI
}

// ErrNoFallback is returned by stores when no fresh entry exists.
var ErrNoFallback = errors.New("no fallback data")

// Error is a classified lookup failure.
type Error struct {
	Kind              Kind
	Message           string
	Retryable         bool
	FallbackAvailable bool
	OccurredAt        time.Time
	Cause             error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error of kind k. Retryable follows the kind.
func NewError(k Kind, msg string, cause error) *Error {
	return &Error{
		Kind:      k,
		Message:   msg,
		Retryable: k.Retryable(),
		Cause:     cause,
	}
}

// Classify maps err onto the taxonomy. Typed errors keep their kind;
// anything else is classified by its message text.
func Classify(err error, now time.Time) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		out := *typed
		if out.OccurredAt.IsZero() {
			out.OccurredAt = now
		}
		return &out
	}

	k := classifyText(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		k = KindTimeout
	}

	e := NewError(k, err.Error(), err)
	e.OccurredAt = now
	return e
}

var kindKeywords = []struct {
	kind  Kind
	words []string
}{
	{KindTimeout, []string{"timeout", "timed out", "aborted"}},
	{KindNetwork, []string{"network", "fetch", "connection"}},
	{KindAPI, []string{"api", "server", "response"}},
	{KindCache, []string{"cache", "storage"}},
}

func classifyText(msg string) Kind {
	msg = strings.ToLower(msg)
	for _, kw := range kindKeywords {
		for _, w := range kw.words {
			if strings.Contains(msg, w) {
				return kw.kind
			}
		}
	}
	return KindUnknown
}

// Package provider defines the normalized token stream shared by every
// code-generation backend.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ID identifies a provider slot. The string value is the wire name used in
// requests and in the X-AI-Provider response header.
type ID string

const (
	// Claude is provider A, Anthropic's Messages API.
	Claude ID = "claude"
	// Gemini is provider B, Google's Gemini API.
	Gemini ID = "gemini"
)

// String returns the wire name.
func (id ID) String() string { return string(id) }

// IsValid reports whether id names one of the two provider slots.
func (id ID) IsValid() bool {
	return id == Claude || id == Gemini
}

// Alternate returns the other provider slot.
func (id ID) Alternate() ID {
	if id == Gemini {
		return Claude
	}
	return Gemini
}

// ParseID parses a wire name. The empty string parses to the zero ID.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if id == "" || id.IsValid() {
		return id, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Provider wraps one AI backend.
//
// Generate returns an error when the request cannot be started (authentication,
// quota, rate limit, network); such errors are candidates for fallback. Once a
// channel is returned, later failures arrive as a single KindError event. The
// channel carries zero or more KindText events followed by exactly one terminal
// event and is then closed. Cancelling ctx releases the upstream stream.
type Provider interface {
	Name() ID
	Generate(ctx context.Context, req *Request) (<-chan TokenEvent, error)
}

// ErrEmptyPrompt is returned for requests without a prompt.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// Send delivers ev unless ctx is cancelled first. Adapters use it so an
// abandoned consumer never blocks the producing goroutine.
func Send(ctx context.Context, ch chan<- TokenEvent, ev TokenEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// TransportError rewrites a failed HTTP round trip as a network error. The
// request URL is dropped so path segments such as "streamGenerateContent"
// never reach the fallback and friendly-message pattern tables. Other errors
// are returned unchanged.
func TransportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if errors.Is(ue.Err, context.Canceled) || errors.Is(ue.Err, context.DeadlineExceeded) {
			return ue.Err
		}
		return fmt.Errorf("network error: %w", ue.Err)
	}
	return err
}

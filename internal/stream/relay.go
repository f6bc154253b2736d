package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhengjr9/vibes/internal/provider"
)

var (
	// ErrTruncated means the event channel closed before a terminal event.
	ErrTruncated = errors.New("stream ended without a terminal event")
	// ErrClientGone wraps write failures on the outbound response.
	ErrClientGone = errors.New("client connection lost")
	// ErrUpstream wraps a mid-stream provider failure.
	ErrUpstream = errors.New("provider stream failed")
)

// Stats summarises a relayed stream.
type Stats struct {
	Chunks int
	Bytes  int
}

// Relay forwards events to enc in arrival order until a terminal event.
//
// On success the Done frame has been written and the error is nil. Any other
// return means the response is incomplete and the caller should abort the
// connection. The caller must cancel ctx when Relay returns early so the
// provider releases its upstream stream.
func Relay(ctx context.Context, enc *Encoder, events <-chan provider.TokenEvent) (Stats, error) {
	var st Stats
	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return st, ErrTruncated
			}
			switch ev.Kind {
			case provider.KindText:
				if err := enc.WriteText(ev.Text); err != nil {
					return st, fmt.Errorf("%w: %w", ErrClientGone, err)
				}
				st.Chunks++
				st.Bytes += len(ev.Text)
			case provider.KindDone:
				if err := enc.WriteDone(); err != nil {
					return st, fmt.Errorf("%w: %w", ErrClientGone, err)
				}
				return st, nil
			case provider.KindError:
				return st, fmt.Errorf("%w: %w", ErrUpstream, ev.Err)
			}
		}
	}
}

package provider

// EventKind discriminates TokenEvent values.
type EventKind int

const (
	// KindText carries a generated chunk in Text.
	KindText EventKind = iota
	// KindDone ends a successful stream.
	KindDone
	// KindError ends a failed stream; Err holds the cause.
	KindError
)

// String returns the lower-case kind name.
func (k EventKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// TokenEvent is one element of a normalized generation stream.
type TokenEvent struct {
	Kind EventKind
	// Text is the chunk for KindText events.
	Text string
	// Err is set for KindError events.
	Err error
}

// Text returns a text chunk event.
func Text(s string) TokenEvent { return TokenEvent{Kind: KindText, Text: s} }

// Done returns the successful terminal event.
func Done() TokenEvent { return TokenEvent{Kind: KindDone} }

// Failed returns the error terminal event.
func Failed(err error) TokenEvent { return TokenEvent{Kind: KindError, Err: err} }

// IsTerminal reports whether e ends a stream.
func (e TokenEvent) IsTerminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Payload returns the text chunk or the error message.
func (e TokenEvent) Payload() string {
	if e.Kind == KindError && e.Err != nil {
		return e.Err.Error()
	}
	return e.Text
}

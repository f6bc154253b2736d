// Package stream carries TokenEvents over HTTP as Server-Sent Events.
//
// Each text chunk is written as `data: {"text":"..."}` followed by a blank
// line, and a successful stream ends with `data: [DONE]`. Errors are never
// encoded; a stream that stops without the Done marker is a failure.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// chunk is the JSON payload of one text event.
type chunk struct {
	Text string `json:"text"`
}

// Encoder writes SSE frames and flushes after each one when the underlying
// writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// WriteText writes one text chunk frame.
func (e *Encoder) WriteText(text string) error {
	e.buf.Reset()
	e.buf.WriteString(dataPrefix)
	je := json.NewEncoder(&e.buf)
	je.SetEscapeHTML(false)
	if err := je.Encode(chunk{Text: text}); err != nil {
		return err
	}
	// json.Encoder terminates with '\n'; one more ends the frame.
	e.buf.WriteByte('\n')
	return e.flush()
}

// WriteDone writes the terminal frame.
func (e *Encoder) WriteDone() error {
	e.buf.Reset()
	e.buf.WriteString(dataPrefix + doneMarker + "\n\n")
	return e.flush()
}

func (e *Encoder) flush() error {
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

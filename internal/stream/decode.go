package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; generated sketches arrive in small
// chunks but a proxy may coalesce them.
const maxLineSize = 4 * 1024 * 1024

// Decode reads frames from r and calls onText for each text chunk in order.
// It returns done=true once the Done marker is seen and stops reading there.
// Lines without the data prefix and payloads that are not a text chunk
// are skipped. done=false with a nil error means r ended early.
func Decode(r io.Reader, onText func(string)) (done bool, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), dataPrefix)
		if !ok {
			continue
		}
		if payload == doneMarker {
			return true, nil
		}
		var c struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal([]byte(payload), &c); err != nil || c.Text == nil {
			continue
		}
		if onText != nil {
			onText(*c.Text)
		}
	}
	return false, scanner.Err()
}

package provider

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/zhengjr9/vibes/internal/prompts"
)

// Image is a decoded reference image.
type Image struct {
	MediaType string
	Data      []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (img *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// Request is one generation request as seen by a Provider.
type Request struct {
	Prompt         string
	PriorCode      string
	IsModification bool
	// ReferenceImage is nil when no image was supplied or it could not be parsed.
	ReferenceImage *Image
	Preference     ID
}

// Validate reports whether the request can be sent to a provider.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// NewRequest builds a Request from wire fields. The modification flag is only
// honoured when prior code is present and is not the starter sketch, and an
// unparsable reference image is dropped.
func NewRequest(prompt, priorCode string, isModification bool, referenceImage string, pref ID) *Request {
	req := &Request{
		Prompt:         prompt,
		IsModification: isModification && IsModification(priorCode),
		ReferenceImage: ParseImage(referenceImage),
		Preference:     pref,
	}
	if req.IsModification {
		req.PriorCode = priorCode
	}
	return req
}

// IsModification reports whether priorCode should be treated as code to modify.
func IsModification(priorCode string) bool {
	return priorCode != "" && priorCode != prompts.StarterCode()
}

var dataURIPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// ParseImage decodes a data URI of the form data:<mime>;base64,<payload>.
// It returns nil for empty or malformed input.
func ParseImage(dataURI string) *Image {
	if dataURI == "" {
		return nil
	}
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil
	}
	return &Image{MediaType: m[1], Data: data}
}

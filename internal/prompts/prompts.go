// Package prompts holds the instruction templates sent to the code-generation providers.
//
// The catalogue is embedded as YAML so wording changes do not touch Go code.
package prompts

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var catalogYAML []byte

const (
	currentCodePlaceholder = "{{CURRENT_CODE}}"
	requestPlaceholder     = "{{REQUEST}}"
)

// Catalog is the parsed prompt catalogue.
type Catalog struct {
	Version        string            `yaml:"version"`
	System         string            `yaml:"system"`
	Modify         string            `yaml:"modify"`
	ReferenceImage string            `yaml:"reference_image"`
	UserRequest    string            `yaml:"user_request"`
	StarterCode    string            `yaml:"starter_code"`
	Examples       map[string]string `yaml:"examples"`
}

var (
	catalog     *Catalog
	catalogOnce sync.Once
)

// Default returns the embedded catalogue.
func Default() *Catalog {
	catalogOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			// The embedded file is covered by tests; an empty catalogue keeps callers nil-safe.
			slog.Error("failed to load embedded prompts", "error", err)
			c = &Catalog{}
		}
		catalog = c
	})
	return catalog
}

// Parse decodes a YAML prompt catalogue and checks the modify template.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal prompts: %w", err)
	}
	if c.System == "" {
		return nil, fmt.Errorf("prompts: system prompt is empty")
	}
	if !strings.Contains(c.Modify, currentCodePlaceholder) || !strings.Contains(c.Modify, requestPlaceholder) {
		return nil, fmt.Errorf("prompts: modify template must contain %s and %s", currentCodePlaceholder, requestPlaceholder)
	}
	return &c, nil
}

// ModifyPrompt embeds the prior code and the new request into the modify template.
// Substitution is single-pass: placeholder text inside code or request is left alone.
func (c *Catalog) ModifyPrompt(currentCode, request string) string {
	return strings.NewReplacer(
		currentCodePlaceholder, currentCode,
		requestPlaceholder, request,
	).Replace(c.Modify)
}

// UserMessage returns the text a provider should send for this request.
func (c *Catalog) UserMessage(prompt, priorCode string, isModification bool) string {
	if isModification && priorCode != "" {
		return c.ModifyPrompt(priorCode, prompt)
	}
	return prompt
}

// WithReferenceImage prefixes msg with the reference-image instruction.
func (c *Catalog) WithReferenceImage(msg string) string {
	return c.ReferenceImage + msg
}

// System returns the system prompt of the embedded catalogue.
func System() string { return Default().System }

// StarterCode returns the sketch shown before anything has been generated.
func StarterCode() string { return Default().StarterCode }

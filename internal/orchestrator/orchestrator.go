// Package orchestrator selects a provider for each generation and retries
// once against the alternate provider on transient quota failures.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/provider"
)

// State names the orchestrator's progress through one request; it is logged
// on every transition.
type State string

const (
	StateIdle       State = "idle"
	StateSelected   State = "selected"
	StateFailedOver State = "failed_over"
	StateStreaming  State = "streaming"
	StateError      State = "error"
)

// Class is the classification of a provider setup error.
type Class string

const (
	ClassTransient Class = "transient"
	ClassFatal     Class = "fatal"
)

// Rule maps an error-message substring to a classification. Matching is
// case-sensitive.
type Rule struct {
	Pattern string
	Class   Class
}

// DefaultRules are the transient patterns that trigger fallback.
var DefaultRules = []Rule{
	{Pattern: "credit", Class: ClassTransient},
	{Pattern: "rate", Class: ClassTransient},
	{Pattern: "quota", Class: ClassTransient},
}

// Classify returns the class of the first rule whose pattern occurs in err's
// message, or ClassFatal.
func Classify(rules []Rule, err error) Class {
	if err == nil {
		return ClassFatal
	}
	msg := err.Error()
	for _, r := range rules {
		if strings.Contains(msg, r.Pattern) {
			return r.Class
		}
	}
	return ClassFatal
}

// Result is the unified stream handed back to the caller.
type Result struct {
	// Provider is the slot that ultimately served the request.
	Provider provider.ID
	Events   <-chan provider.TokenEvent
}

// Orchestrator chooses between the configured providers.
type Orchestrator struct {
	providers map[provider.ID]provider.Provider
	fallback  provider.ID
	rules     []Rule
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRules replaces the fallback classification table.
func WithRules(rules []Rule) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithDefault sets the provider used when a request has no preference.
func WithDefault(id provider.ID) Option {
	return func(o *Orchestrator) {
		if id.IsValid() {
			o.fallback = id
		}
	}
}

// New builds an Orchestrator from the configured providers. A nil entry means
// that provider has no credentials.
func New(providers []provider.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: make(map[provider.ID]provider.Provider, 2),
		fallback:  provider.Claude,
		rules:     DefaultRules,
	}
	for _, p := range providers {
		if p != nil {
			o.providers[p.Name()] = p
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether id has credentials.
func (o *Orchestrator) Configured(id provider.ID) bool {
	_, ok := o.providers[id]
	return ok
}

// Select applies the selection rule: the preference (or default) when
// configured, otherwise whichever provider is configured.
func (o *Orchestrator) Select(pref provider.ID) (provider.ID, error) {
	if !pref.IsValid() {
		pref = o.fallback
	}
	if o.Configured(pref) {
		return pref, nil
	}
	if alt := pref.Alternate(); o.Configured(alt) {
		return alt, nil
	}
	return "", apierrors.ErrNoProvider
}

// Generate runs req against the selected provider, falling back once to the
// alternate provider when the setup error is transient.
func (o *Orchestrator) Generate(ctx context.Context, req *provider.Request) (*Result, error) {
	log := slog.With("prompt_len", len(req.Prompt), "modification", req.IsModification)
	log.Debug("orchestrator transition", "state", StateIdle)

	selected, err := o.Select(req.Preference)
	if err != nil {
		log.Debug("orchestrator transition", "state", StateError, "error", err)
		return nil, err
	}
	log.Info("using provider", "provider", selected, "state", StateSelected)

	events, err := o.providers[selected].Generate(ctx, req)
	if err == nil {
		log.Debug("orchestrator transition", "state", StateStreaming, "provider", selected)
		return &Result{Provider: selected, Events: events}, nil
	}

	alt := selected.Alternate()
	if Classify(o.rules, err) != ClassTransient || !o.Configured(alt) {
		log.Debug("orchestrator transition", "state", StateError, "provider", selected, "error", err)
		return nil, err
	}

	log.Warn("provider failed, falling back", "from", selected, "to", alt, "state", StateFailedOver, "error", err)
	events, altErr := o.providers[alt].Generate(ctx, req)
	if altErr != nil {
		log.Debug("orchestrator transition", "state", StateError, "provider", alt, "error", altErr)
		return nil, altErr
	}
	log.Debug("orchestrator transition", "state", StateStreaming, "provider", alt)
	return &Result{Provider: alt, Events: events}, nil
}

package errors

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedBody = errors.New("malformed request body")
	ErrEmptyPrompt   = errors.New("Prompt is required")
	ErrNoProvider    = errors.New("No AI provider configured. Please add ANTHROPIC_API_KEY or GOOGLE_AI_API_KEY to your .env.local file.")
)

type jsonError struct {
	Error string `json:"error"`
}

// GenerationError is the body returned when a generation request fails before streaming.
type GenerationError struct {
	Error          string `json:"error"`
	ErrorRef       string `json:"errorRef"`
	TechnicalError string `json:"technicalError"`
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message})
}

// WriteGenerationError writes a 500 carrying the friendly message, reference and raw detail.
func WriteGenerationError(w http.ResponseWriter, body GenerationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(body)
}

// NewGenerationError annotates err with a fresh reference code and a friendly message.
func NewGenerationError(err error) GenerationError {
	technical := "Failed to generate code"
	if err != nil {
		technical = err.Error()
	}
	return GenerationError{
		Error:          FriendlyMessage(technical),
		ErrorRef:       NewErrorRef(),
		TechnicalError: technical,
	}
}

// NewErrorRef returns a support correlation code such as "VB-M2X9K1PQ-7ZQ4".
func NewErrorRef() string {
	return newErrorRef(time.Now())
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func newErrorRef(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "VB-" + ts + "-" + string(suffix)
}

type friendlyRule struct {
	patterns []string
	message  string
}

// friendlyRules is evaluated in order; the first rule with a matching pattern wins.
var friendlyRules = []friendlyRule{
	{patterns: []string{"credit", "quota"}, message: "Our AI helpers are taking a break. Please try again in a moment!"},
	{patterns: []string{"rate"}, message: "Whoa, too many requests! Give our AI wizards a few seconds to catch up."},
	{patterns: []string{"network", "fetch"}, message: "Having trouble connecting to our magic servers. Check your internet!"},
}

const genericFriendlyMessage = "Something went wrong while creating your masterpiece."

// FriendlyMessage maps a raw technical message to the sentence shown to users.
func FriendlyMessage(technical string) string {
	for _, rule := range friendlyRules {
		for _, p := range rule.patterns {
			if strings.Contains(technical, p) {
				return rule.message
			}
		}
	}
	return genericFriendlyMessage
}

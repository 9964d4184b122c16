package llmfailover

import (
	"strings"

	"github.com/nimbus-labs/llmfailover/providers"
)

// Responder produces deterministic canned answers when every backend is
// unavailable. Routing is keyword-based over the user messages and total:
// every input maps to exactly one response, so a degraded system stays
// predictable.
type Responder struct {
	safetyTerms   []string
	greetingTerms []string
}

// Canned fallback responses.
const (
	fallbackSafetyText = "I'm currently unable to reach my knowledge services. " +
		"For questions about medications, dosages, or potential interactions, " +
		"please consult a pharmacist or medical professional rather than relying " +
		"on a degraded automated answer."

	fallbackGreetingText = "Hello! I'm running in a degraded mode right now and " +
		"can't generate a full response. Please try again in a few moments."

	fallbackGenericText = "I'm temporarily unable to process your request because " +
		"all of my backends are unavailable. Please try again shortly."
)

// NewResponder creates a Responder with the default keyword routes.
func NewResponder() *Responder {
	return &Responder{
		safetyTerms: []string{
			"dose", "dosage", "medication", "medicine", "drug",
			"prescription", "overdose", "interaction", "side effect",
		},
		greetingTerms: []string{
			"hello", "hi ", "hey", "good morning", "good afternoon",
			"good evening",
		},
	}
}

// Respond returns the canned answer for req. It never fails and consults
// no external state.
func (r *Responder) Respond(req providers.Request) string {
	text := strings.ToLower(req.UserText())
	// Pad so prefix terms like "hi " match at the end of the input too.
	padded := " " + text + " "

	for _, term := range r.safetyTerms {
		if strings.Contains(text, term) {
			return fallbackSafetyText
		}
	}
	for _, term := range r.greetingTerms {
		if strings.Contains(padded, term) {
			return fallbackGreetingText
		}
	}
	return fallbackGenericText
}

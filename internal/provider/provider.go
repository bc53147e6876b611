// Package provider wraps one or more chat-completion backends with
// retry, fallback, and response-caching behavior.
package provider

import (
	"context"
)

// Provider is a single chat-completion backend.
type Provider interface {
	// ChatWithSystem sends message to model, optionally preceded by
	// systemPrompt, and returns the completion text.
	ChatWithSystem(ctx context.Context, systemPrompt, message, model string, temperature float64) (string, error)
}

// Named pairs a Provider with the name used in logs and aggregated
// failure messages.
type Named struct {
	Name string
	Provider
}

// Package provider defines the interface for reply delivery backends.
package provider

import (
	"context"
	"fmt"

	"github.com/shineum/mail-reply-relay/internal/email"
)

// Provider is the interface that reply delivery backends must implement.
// Each provider makes exactly one delivery attempt per Send call.
type Provider interface {
	// Send delivers a reply through this provider.
	// A non-success response from the remote API is reported as *StatusError.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}

// StatusError reports a non-success HTTP response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Package stdout implements a Provider that prints replies instead of
// sending them.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mail-reply-relay/internal/email"
)

// Provider prints replies in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the reply. Write errors are ignored; the dry-run provider
// always reports success.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	for _, name := range email.ThreadingHeaders {
		if v, ok := msg.Headers[name]; ok {
			fmt.Fprintf(&b, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintf(&b, "Options: %s\n", formatOptions(msg.Options))
	b.WriteString("Body:\n")
	b.WriteString(msg.TextBody + "\n")
	b.WriteString("========================================\n")

	_, _ = fmt.Fprint(p.writer, b.String())
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func formatOptions(o email.DeliveryOptions) string {
	return fmt.Sprintf("dkim=%s tracking=%s clicks=%s opens=%s",
		onOff(o.DKIM), onOff(o.Tracking), onOff(o.TrackingClicks), onOff(o.TrackingOpens))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

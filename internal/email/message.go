// Package email defines the message model shared by the webhook relay and
// the reply providers.
package email

import "net/textproto"

// Threading headers copied from an inbound message onto its reply.
const (
	HeaderInReplyTo  = "In-Reply-To"
	HeaderReferences = "References"
)

// ThreadingHeaders lists the inbound headers carried over to a reply, in the
// order they are written to the outbound request.
var ThreadingHeaders = []string{HeaderInReplyTo, HeaderReferences}

// Inbound is a message received through the provider's inbound webhook.
// It only lives for the duration of one request.
type Inbound struct {
	From      string
	Recipient string
	Subject   string
	// Headers is keyed by canonical MIME header name (Message-Id).
	Headers   map[string]string
	Text      string
	BodyPlain string
}

// Header returns the value of the named inbound header and whether it was
// present. Headers is keyed by canonical MIME header name, so name matches
// case-insensitively.
func (m *Inbound) Header(name string) (string, bool) {
	if m == nil || m.Headers == nil {
		return "", false
	}
	v, ok := m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Email is an outgoing reply handed to a provider.
type Email struct {
	From     string
	To       []string
	Subject  string
	TextBody string

	// Headers holds custom headers such as In-Reply-To and References.
	Headers map[string]string

	Options DeliveryOptions
}

// DeliveryOptions are provider-side directives attached to a reply.
type DeliveryOptions struct {
	DKIM           bool
	Tracking       bool
	TrackingClicks bool
	TrackingOpens  bool
}

// ReplyOptions are the fixed directives every reply is sent with.
var ReplyOptions = DeliveryOptions{DKIM: true}

// NewReply builds the reply to an inbound message. Only the threading headers
// present on the inbound message are copied.
func NewReply(from string, in *Inbound, text string) *Email {
	headers := make(map[string]string, len(ThreadingHeaders))
	for _, name := range ThreadingHeaders {
		if v, ok := in.Header(name); ok {
			headers[name] = v
		}
	}

	return &Email{
		From:     from,
		To:       []string{in.From},
		Subject:  in.Subject,
		TextBody: text,
		Headers:  headers,
		Options:  ReplyOptions,
	}
}

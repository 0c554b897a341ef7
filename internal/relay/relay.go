// Package relay turns inbound-email webhooks into replies.
//
// A Service receives the provider's inbound webhook, routes the message by
// subject to a registered Handler and, when the handler produces reply text,
// sends one reply back to the sender through a provider.Provider.
// Handlers are registered before the service starts taking traffic; the
// registry is read-only afterwards.
package relay

import (
	"context"
	"log/slog"

	"github.com/shineum/mail-reply-relay/internal/email"
	"github.com/shineum/mail-reply-relay/internal/provider"
	"github.com/shineum/mail-reply-relay/internal/provider/mailgun"
)

// defaultMaxBodyBytes is 25 MB, enough for Mailgun's largest inbound post.
const defaultMaxBodyBytes = 26214400

// Handler answers one inbound message. A non-empty reply is sent back to the
// sender. An error is handled according to the ReplyMode of the request.
type Handler interface {
	Handle(ctx context.Context, msg *email.Inbound) (reply string, err error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *email.Inbound) (string, error)

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg *email.Inbound) (string, error) {
	return f(ctx, msg)
}

// Verifier authenticates the raw webhook fields before dispatch. Release is
// called for a verified webhook that ends in a 5xx, so the provider's
// redelivery of it is not rejected as a replay.
type Verifier interface {
	Verify(ctx context.Context, fields map[string]string) error
	Release(ctx context.Context, fields map[string]string) error
}

// ReplyMode selects what happens when a handler returns an error.
type ReplyMode int

const (
	// ReplyErrors sends the error text to the sender as the reply.
	ReplyErrors ReplyMode = iota
	// FireAndForget drops the error and answers the webhook with 200.
	FireAndForget
)

func (m ReplyMode) String() string {
	switch m {
	case ReplyErrors:
		return "reply-errors"
	case FireAndForget:
		return "fire-and-forget"
	default:
		return "unknown"
	}
}

// Options configures a Service. Address, Domain, Key and Logger are required.
type Options struct {
	// Address is the From address of every reply.
	Address string
	// Domain is the sending domain registered with the provider.
	Domain string
	// Key is the provider API key.
	Key string
	// Logger receives one info record per accepted message and per provider
	// response, and error records for failures.
	Logger *slog.Logger

	// API overrides the provider API host (default api.mailgun.net).
	API string
	// Normalize maps raw subjects to dispatch keys. Nil leaves them unchanged.
	Normalize func(string) string

	// Provider overrides the reply sender. Nil builds a Mailgun provider
	// from API, Domain and Key.
	Provider provider.Provider
	// Verifier, when set, rejects webhooks that fail authentication.
	Verifier Verifier
	// MaxBodyBytes caps the inbound body. Zero uses 25 MB, negative disables.
	MaxBodyBytes int64
}

// Service is the webhook relay. It is safe for concurrent use once all
// handlers are registered.
type Service struct {
	address      string
	domain       string
	key          string
	api          string
	logger       *slog.Logger
	normalize    func(string) string
	provider     provider.Provider
	verifier     Verifier
	maxBodyBytes int64

	handlers map[string]Handler
}

// New validates opts and creates a Service.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Address == "":
		return nil, missingOption("address")
	case opts.Domain == "":
		return nil, missingOption("domain")
	case opts.Key == "":
		return nil, missingOption("key")
	case opts.Logger == nil:
		return nil, missingOption("logger")
	}

	s := &Service{
		address:      opts.Address,
		domain:       opts.Domain,
		key:          opts.Key,
		api:          opts.API,
		logger:       opts.Logger,
		normalize:    opts.Normalize,
		provider:     opts.Provider,
		verifier:     opts.Verifier,
		maxBodyBytes: opts.MaxBodyBytes,
		handlers:     make(map[string]Handler),
	}
	if s.maxBodyBytes == 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.provider == nil {
		s.provider = mailgun.New(mailgun.Config{
			APIHost: s.api,
			Domain:  s.domain,
			Key:     s.key,
		})
	}
	return s, nil
}

// On registers h for messages whose normalized subject equals subject.
// Registering the same subject twice is an error.
func (s *Service) On(subject string, h Handler) error {
	if _, exists := s.handlers[subject]; exists {
		return duplicateSubject(subject)
	}
	s.handlers[subject] = h
	return nil
}

// MustOn is like On but panics on error. It is meant for init-time wiring.
func (s *Service) MustOn(subject string, h Handler) {
	if err := s.On(subject, h); err != nil {
		panic(err)
	}
}

// Subjects returns the number of registered subjects.
func (s *Service) Subjects() int {
	return len(s.handlers)
}

// ProviderName returns the name of the reply provider in use.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) normalizeSubject(raw string) string {
	if s.normalize == nil {
		return raw
	}
	return s.normalize(raw)
}

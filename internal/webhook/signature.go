package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shineum/mail-reply-relay/internal/replay"
)

var (
	// ErrMissingSignature is returned when timestamp, token or signature is absent.
	ErrMissingSignature = errors.New("webhook: missing signature fields")
	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("webhook: invalid signature")
	// ErrStaleTimestamp is returned when the timestamp is older than MaxAge.
	ErrStaleTimestamp = errors.New("webhook: stale timestamp")
	// ErrReplayed is returned when a token has been seen before.
	ErrReplayed = errors.New("webhook: token replayed")
)

// Sign computes the Mailgun webhook signature: hex HMAC-SHA256 of
// timestamp+token keyed with the webhook signing key.
func Sign(signingKey, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks the signature fields Mailgun attaches to every webhook.
type Verifier struct {
	signingKey string
	maxAge     time.Duration
	guard      replay.Guard
	now        func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithMaxAge rejects timestamps older than d. Zero disables the check.
func WithMaxAge(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.maxAge = d }
}

// WithReplayGuard rejects tokens the guard has already seen.
func WithReplayGuard(g replay.Guard) VerifierOption {
	return func(v *Verifier) { v.guard = g }
}

// NewVerifier creates a Verifier for the given signing key.
func NewVerifier(signingKey string, opts ...VerifierOption) *Verifier {
	v := &Verifier{signingKey: signingKey, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates the timestamp, token and signature fields.
func (v *Verifier) Verify(ctx context.Context, fields map[string]string) error {
	timestamp := fields[FieldTimestamp]
	token := fields[FieldToken]
	signature := fields[FieldSignature]
	if timestamp == "" || token == "" || signature == "" {
		return ErrMissingSignature
	}

	expected := Sign(v.signingKey, timestamp, token)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	if v.maxAge > 0 {
		secs, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStaleTimestamp, err)
		}
		if v.now().Sub(time.Unix(secs, 0)) > v.maxAge {
			return ErrStaleTimestamp
		}
	}

	if v.guard != nil {
		seen, err := v.guard.Seen(ctx, token)
		if err != nil {
			return fmt.Errorf("replay check failed: %w", err)
		}
		if seen {
			return ErrReplayed
		}
	}

	return nil
}

// Release forgets the token of an already verified webhook so the provider's
// redelivery passes the replay guard. It is a no-op without a guard.
func (v *Verifier) Release(ctx context.Context, fields map[string]string) error {
	if v.guard == nil || fields[FieldToken] == "" {
		return nil
	}
	if err := v.guard.Forget(ctx, fields[FieldToken]); err != nil {
		return fmt.Errorf("failed to release token: %w", err)
	}
	return nil
}

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shineum/mail-reply-relay/internal/replay"
)

func signedFields(key string, ts int64, token string) map[string]string {
	timestamp := strconv.FormatInt(ts, 10)
	return map[string]string{
		FieldTimestamp: timestamp,
		FieldToken:     token,
		FieldSignature: Sign(key, timestamp, token),
	}
}

func TestSignKnownVector(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha256.New, []byte("key-secret"))
	mac.Write([]byte("1700000000" + "tok"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := Sign("key-secret", "1700000000", "tok"); got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestVerify_Valid(t *testing.T) {
	t.Parallel()

	v := NewVerifier("key-secret")
	if err := v.Verify(context.Background(), signedFields("key-secret", 1700000000, "tok-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerify_Failures(t *testing.T) {
	t.Parallel()

	good := signedFields("key-secret", 1700000000, "tok-1")

	tampered := signedFields("key-secret", 1700000000, "tok-1")
	tampered[FieldToken] = "tok-2"

	tests := []struct {
		name   string
		fields map[string]string
		want   error
	}{
		{name: "missing all", fields: map[string]string{}, want: ErrMissingSignature},
		{name: "missing signature", fields: map[string]string{FieldTimestamp: good[FieldTimestamp], FieldToken: "tok-1"}, want: ErrMissingSignature},
		{name: "wrong key", fields: signedFields("other", 1700000000, "tok-1"), want: ErrInvalidSignature},
		{name: "tampered token", fields: tampered, want: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewVerifier("key-secret").Verify(context.Background(), tt.fields)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify(): got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerify_MaxAge(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700001000, 0)
	v := NewVerifier("k", WithMaxAge(5*time.Minute))
	v.now = func() time.Time { return now }

	if err := v.Verify(context.Background(), signedFields("k", now.Add(-time.Minute).Unix(), "fresh")); err != nil {
		t.Errorf("fresh timestamp: unexpected error %v", err)
	}
	err := v.Verify(context.Background(), signedFields("k", now.Add(-10*time.Minute).Unix(), "old"))
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("old timestamp: got %v, want %v", err, ErrStaleTimestamp)
	}
}

func TestVerify_ReplayGuard(t *testing.T) {
	t.Parallel()

	v := NewVerifier("k", WithReplayGuard(replay.NewMemory(time.Hour)))
	fields := signedFields("k", 1700000000, "once")

	if err := v.Verify(context.Background(), fields); err != nil {
		t.Fatalf("first delivery: unexpected error %v", err)
	}
	if err := v.Verify(context.Background(), fields); !errors.Is(err, ErrReplayed) {
		t.Errorf("second delivery: got %v, want %v", err, ErrReplayed)
	}
}

func TestVerify_InvalidSignatureDoesNotConsumeToken(t *testing.T) {
	t.Parallel()

	guard := replay.NewMemory(time.Hour)
	v := NewVerifier("k", WithReplayGuard(guard))

	forged := signedFields("wrong", 1700000000, "tok")
	if err := v.Verify(context.Background(), forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("forged: got %v, want %v", err, ErrInvalidSignature)
	}
	if guard.Len() != 0 {
		t.Errorf("guard should not record tokens of forged requests, has %d", guard.Len())
	}
}

func TestVerifier_ReleaseAcceptsRedelivery(t *testing.T) {
	t.Parallel()

	guard := replay.NewMemory(time.Hour)
	v := NewVerifier("k", WithReplayGuard(guard))
	fields := signedFields("k", 1700000000, "retry-me")

	if err := v.Verify(context.Background(), fields); err != nil {
		t.Fatalf("first delivery: unexpected error %v", err)
	}
	if err := v.Release(context.Background(), fields); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := v.Verify(context.Background(), fields); err != nil {
		t.Errorf("redelivery after release: unexpected error %v", err)
	}
}

func TestVerifier_ReleaseWithoutGuard(t *testing.T) {
	t.Parallel()

	v := NewVerifier("k")
	if err := v.Release(context.Background(), signedFields("k", 1700000000, "tok")); err != nil {
		t.Errorf("Release without guard: %v", err)
	}
}

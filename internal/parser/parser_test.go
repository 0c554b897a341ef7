package parser

import (
	"strings"
	"testing"
)

func TestParseInbound_PlainText(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: Alice <alice@example.com>",
		"To: bot@example.com",
		"Subject: hello",
		"Message-Id: <m1@example.com>",
		"References: <m0@example.com>",
		"Content-Type: text/plain",
		"",
		"Hello, this is a plain text email.",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.From != "Alice <alice@example.com>" {
		t.Errorf("From: got %q, want %q", msg.From, "Alice <alice@example.com>")
	}
	if msg.Recipient != "bot@example.com" {
		t.Errorf("Recipient: got %q, want %q", msg.Recipient, "bot@example.com")
	}
	if msg.Subject != "hello" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "hello")
	}
	if v, _ := msg.Header("Message-Id"); v != "<m1@example.com>" {
		t.Errorf("Message-Id: got %q, want %q", v, "<m1@example.com>")
	}
	if v, _ := msg.Header("References"); v != "<m0@example.com>" {
		t.Errorf("References: got %q, want %q", v, "<m0@example.com>")
	}
	if msg.BodyPlain != "Hello, this is a plain text email." {
		t.Errorf("BodyPlain: got %q", msg.BodyPlain)
	}
	if msg.Text != "Hello, this is a plain text email." {
		t.Errorf("Text: got %q", msg.Text)
	}
}

func TestParseInbound_CanonicalHeaderKeys(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"from: a@example.com",
		"in-reply-to: <x@example.com>",
		"",
		"body",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := msg.Header("In-Reply-To"); !ok || v != "<x@example.com>" {
		t.Errorf("In-Reply-To: got %q (present=%v)", v, ok)
	}
}

func TestParseInbound_EncodedSubject(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: a@example.com",
		"Subject: =?UTF-8?q?Gr=C3=BC=C3=9Fe?=",
		"",
		"body",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Grüße" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Grüße")
	}
}

func TestParseInbound_QuotedPrintableBody(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: a@example.com",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"h=C3=A9 there",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.BodyPlain != "hé there" {
		t.Errorf("BodyPlain: got %q, want %q", msg.BodyPlain, "hé there")
	}
}

func TestParseInbound_MultipartPrefersPlainText(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"Subject: Multipart Test",
		"Content-Type: multipart/alternative; boundary=boundary123",
		"",
		"--boundary123",
		"Content-Type: text/html",
		"",
		"<p>HTML body</p>",
		"--boundary123",
		"Content-Type: text/plain",
		"",
		"Plain text body",
		"--boundary123--",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.BodyPlain != "Plain text body" {
		t.Errorf("BodyPlain: got %q, want %q", msg.BodyPlain, "Plain text body")
	}
}

func TestParseInbound_NestedMultipartSkipsAttachments(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"Subject: Nested Multipart",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: text/plain",
		"Content-Disposition: attachment; filename=\"notes.txt\"",
		"",
		"attached notes",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"Content-Transfer-Encoding: base64",
		"",
		"UGxhaW4gdGV4dCBwYXJ0",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>HTML part</p>",
		"--inner--",
		"--outer--",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.BodyPlain != "Plain text part" {
		t.Errorf("BodyPlain: got %q, want %q", msg.BodyPlain, "Plain text part")
	}
}

func TestParseInbound_HTMLOnly(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"Content-Type: text/html",
		"",
		"<p>only html</p>",
	}, "\r\n"))

	msg, err := ParseInbound(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.BodyPlain != "" || msg.Text != "" {
		t.Errorf("expected empty text, got BodyPlain=%q Text=%q", msg.BodyPlain, msg.Text)
	}
}

func TestParseInbound_Malformed(t *testing.T) {
	t.Parallel()

	t.Run("completely invalid message", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseInbound([]byte("not a valid email at all\x00\x01\x02")); err == nil {
			t.Error("expected error for completely invalid message, got nil")
		}
	})

	t.Run("multipart missing boundary", func(t *testing.T) {
		t.Parallel()
		raw := []byte(strings.Join([]string{
			"From: sender@example.com",
			"Content-Type: multipart/mixed",
			"",
			"some body",
		}, "\r\n"))

		if _, err := ParseInbound(raw); err == nil {
			t.Error("expected error for multipart missing boundary, got nil")
		}
	})

	t.Run("unparseable content type treated as plain text", func(t *testing.T) {
		t.Parallel()
		raw := []byte(strings.Join([]string{
			"From: sender@example.com",
			"Content-Type: ;;;",
			"",
			"still text",
		}, "\r\n"))

		msg, err := ParseInbound(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.BodyPlain != "still text" {
			t.Errorf("BodyPlain: got %q, want %q", msg.BodyPlain, "still text")
		}
	})
}

func TestStripQuoted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no quote", in: "just text\n", want: "just text"},
		{
			name: "trailing quote with attribution",
			in:   "Sounds good.\r\n\r\nOn Mon, Jan 1, 2024 at 10:00 Bob <bob@example.com> wrote:\r\n> earlier\r\n> message\r\n",
			want: "Sounds good.",
		},
		{
			name: "signature",
			in:   "Thanks\n-- \nAlice\nCEO",
			want: "Thanks",
		},
		{
			name: "inline quotes kept",
			in:   "> question?\nanswer",
			want: "> question?\nanswer",
		},
		{
			name: "attribution without quote kept",
			in:   "On Monday the team wrote:",
			want: "On Monday the team wrote:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripQuoted(tt.in); got != tt.want {
				t.Errorf("StripQuoted: got %q, want %q", got, tt.want)
			}
		})
	}
}

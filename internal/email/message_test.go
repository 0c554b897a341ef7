package email

import "testing"

func TestNewReply_CopiesThreadingHeaders(t *testing.T) {
	t.Parallel()

	in := &Inbound{
		From:    "a@x.com",
		Subject: "Hello",
		Headers: map[string]string{
			"In-Reply-To": "<id1>",
			"References":  "<id1>",
			"X-Mailer":    "test",
		},
	}

	reply := NewReply("bot@example.com", in, "Reply body")

	if reply.From != "bot@example.com" {
		t.Errorf("From: got %q, want %q", reply.From, "bot@example.com")
	}
	if len(reply.To) != 1 || reply.To[0] != "a@x.com" {
		t.Errorf("To: got %v, want [a@x.com]", reply.To)
	}
	if reply.Subject != "Hello" {
		t.Errorf("Subject: got %q, want %q", reply.Subject, "Hello")
	}
	if reply.TextBody != "Reply body" {
		t.Errorf("TextBody: got %q, want %q", reply.TextBody, "Reply body")
	}
	if len(reply.Headers) != 2 {
		t.Fatalf("Headers: got %v, want 2 entries", reply.Headers)
	}
	if reply.Headers["In-Reply-To"] != "<id1>" {
		t.Errorf("In-Reply-To: got %q, want %q", reply.Headers["In-Reply-To"], "<id1>")
	}
	if _, ok := reply.Headers["X-Mailer"]; ok {
		t.Error("X-Mailer should not be copied onto the reply")
	}
	if !reply.Options.DKIM || reply.Options.Tracking || reply.Options.TrackingClicks || reply.Options.TrackingOpens {
		t.Errorf("Options: got %+v, want DKIM only", reply.Options)
	}
}

func TestNewReply_NoHeaders(t *testing.T) {
	t.Parallel()

	reply := NewReply("bot@example.com", &Inbound{From: "a@x.com", Subject: "Hi"}, "ok")
	if len(reply.Headers) != 0 {
		t.Errorf("Headers: got %v, want empty", reply.Headers)
	}
}

func TestInboundHeader_NilReceiver(t *testing.T) {
	t.Parallel()

	var in *Inbound
	if _, ok := in.Header("References"); ok {
		t.Error("nil inbound should report no headers")
	}
}

func TestInboundHeader_CaseInsensitive(t *testing.T) {
	t.Parallel()

	in := &Inbound{Headers: map[string]string{"Message-Id": "<m1>"}}
	for _, name := range []string{"Message-ID", "message-id", "Message-Id"} {
		if v, ok := in.Header(name); !ok || v != "<m1>" {
			t.Errorf("Header(%q): got (%q, %v), want (%q, true)", name, v, ok, "<m1>")
		}
	}
}

package subject

import "testing"

func TestStripReplyPrefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "Hello"},
		{"Re: Hello", "Hello"},
		{"RE: re: Hello", "Hello"},
		{"Fwd: Re: Hello", "Hello"},
		{"FW:Hello", "Hello"},
		{"Aw: WG: Hello", "Hello"},
		{"Re[2]: Hello", "Hello"},
		{"  Re:   Hello  ", "Hello"},
		{"Regarding: Hello", "Regarding: Hello"},
		{"Hello Re: there", "Hello Re: there"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := StripReplyPrefixes(tt.in); got != tt.want {
				t.Errorf("StripReplyPrefixes(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	n := Chain(StripReplyPrefixes, Lower)
	if got := n("Re: HELLO"); got != "hello" {
		t.Errorf("Chain: got %q, want %q", got, "hello")
	}
}

func TestFromNames(t *testing.T) {
	t.Parallel()

	n, err := FromNames([]string{"trim", " STRIP-REPLY ", "lower"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := n("  Re: Status  "); got != "status" {
		t.Errorf("normalizer: got %q, want %q", got, "status")
	}
}

func TestFromNames_Empty(t *testing.T) {
	t.Parallel()

	n, err := FromNames([]string{"", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != nil {
		t.Error("expected nil normalizer for empty names")
	}
}

func TestFromNames_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := FromNames([]string{"upper"}); err == nil {
		t.Error("expected error for unknown normalizer")
	}
}

// Package responder builds relay handlers that answer with a fixed template.
package responder

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/shineum/mail-reply-relay/internal/email"
	"github.com/shineum/mail-reply-relay/internal/relay"
)

var funcs = template.FuncMap{
	// header returns the named inbound header or "" when absent.
	"header": func(msg *email.Inbound, name string) string {
		v, _ := msg.Header(name)
		return v
	},
	"trim":  strings.TrimSpace,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	// quote prefixes every line with "> ".
	"quote": func(s string) string {
		lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	},
}

// Template renders a reply from the inbound message. The template data is
// the *email.Inbound, so {{.From}}, {{.Subject}} and {{.Text}} are available
// along with the header, trim, lower, upper and quote functions.
type Template struct {
	tmpl *template.Template
}

// New parses text as a reply template.
func New(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reply template %q: %w", name, err)
	}
	return &Template{tmpl: tmpl}, nil
}

// Handle renders the template. A template that renders only whitespace
// yields an empty reply, so nothing is sent.
func (t *Template) Handle(_ context.Context, msg *email.Inbound) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, msg); err != nil {
		return "", fmt.Errorf("failed to render reply: %w", err)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", nil
	}
	return b.String(), nil
}

var _ relay.Handler = (*Template)(nil)

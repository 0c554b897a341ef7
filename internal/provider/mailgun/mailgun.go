// Package mailgun implements a Provider that sends replies via the Mailgun v3
// messages API.
package mailgun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shineum/mail-reply-relay/internal/email"
	"github.com/shineum/mail-reply-relay/internal/provider"
)

// DefaultAPIHost is the public Mailgun API host.
const DefaultAPIHost = "api.mailgun.net"

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 64 << 10

// Config holds the configuration for creating a Provider.
type Config struct {
	// APIHost overrides DefaultAPIHost, e.g. "api.eu.mailgun.net".
	APIHost string
	Domain  string
	Key     string
}

// Provider sends replies through POST /v3/{domain}/messages.
type Provider struct {
	baseURL    string
	domain     string
	key        string
	httpClient *http.Client
}

// New creates a Provider that talks to https://{APIHost}.
func New(cfg Config) *Provider {
	host := cfg.APIHost
	if host == "" {
		host = DefaultAPIHost
	}
	return NewWithBaseURL(cfg, "https://"+host, &http.Client{Timeout: 30 * time.Second})
}

// NewWithBaseURL creates a Provider with a custom base URL and HTTP client,
// used for testing.
func NewWithBaseURL(cfg Config, baseURL string, client *http.Client) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		domain:     cfg.Domain,
		key:        cfg.Key,
		httpClient: client,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mailgun"
}

// Send posts the reply as multipart form data. Only HTTP 200 counts as
// success; any other status is returned as *provider.StatusError carrying the
// drained response body.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	body, contentType, err := buildForm(msg)
	if err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.messagesURL(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth("api", p.key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &provider.StatusError{
		Provider:   p.Name(),
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
}

func (p *Provider) messagesURL() string {
	return fmt.Sprintf("%s/v3/%s/messages", p.baseURL, p.domain)
}

// buildForm encodes a reply into the field layout the messages API expects.
func buildForm(msg *email.Email) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"from", msg.From},
		{"to", strings.Join(msg.To, ", ")},
		{"subject", msg.Subject},
	}
	for _, name := range email.ThreadingHeaders {
		if v, ok := msg.Headers[name]; ok {
			fields = append(fields, [2]string{"h:" + name, v})
		}
	}
	fields = append(fields,
		[2]string{"text", msg.TextBody},
		[2]string{"o:dkim", yesNo(msg.Options.DKIM)},
		[2]string{"o:tracking", yesNo(msg.Options.Tracking)},
		[2]string{"o:tracking-clicks", yesNo(msg.Options.TrackingClicks)},
		[2]string{"o:tracking-opens", yesNo(msg.Options.TrackingOpens)},
	)

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

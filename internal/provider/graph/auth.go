package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shineum/mail-reply-relay/internal/provider"
)

const (
	// tokenExpiryBuffer is subtracted from the advertised lifetime so a reply
	// never goes out with a token in its last minutes.
	tokenExpiryBuffer = 5 * time.Minute

	graphScope = "https://graph.microsoft.com/.default"

	// maxTokenBody caps how much of an identity endpoint response is read.
	maxTokenBody = 64 << 10
)

var errNoAccessToken = errors.New("token response missing access_token")

type accessToken struct {
	value     string
	expiresAt time.Time
}

func (t accessToken) usable(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt)
}

// tokenCache holds the client-credentials token used to send replies. At most
// one token request is in flight; concurrent senders wait for it.
type tokenCache struct {
	tokenURL   string
	form       url.Values
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	current accessToken
}

func newTokenCache(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		tokenURL: tokenURL,
		form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"scope":         {graphScope},
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns the cached token, or fetches one when it is missing or about
// to expire.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.current.usable(tc.now()) {
		return tc.current.value, nil
	}

	tok, err := tc.fetch(ctx)
	if err != nil {
		return "", err
	}
	tc.current = tok
	return tok.value, nil
}

// Invalidate drops the cached token. Send calls it after a 401 so the next
// reply authenticates again.
func (tc *tokenCache) Invalidate() {
	tc.mu.Lock()
	tc.current = accessToken{}
	tc.mu.Unlock()
}

// fetch runs one client-credentials grant. A non-200 answer from the identity
// endpoint is a *provider.StatusError carrying its error_description.
func (tc *tokenCache) fetch(ctx context.Context) (accessToken, error) {
	issued := tc.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(tc.form.Encode()))
	if err != nil {
		return accessToken{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return accessToken{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return accessToken{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return accessToken{}, &provider.StatusError{
			Provider:   "msgraph-token",
			StatusCode: resp.StatusCode,
			Body:       tokenErrorMessage(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return accessToken{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return accessToken{}, errNoAccessToken
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	return accessToken{
		value:     tr.AccessToken,
		expiresAt: issued.Add(lifetime - tokenExpiryBuffer),
	}, nil
}

func tokenErrorMessage(body []byte) string {
	var te tokenErrorResponse
	if err := json.Unmarshal(body, &te); err == nil {
		switch {
		case te.ErrorDescription != "":
			return te.ErrorDescription
		case te.Error != "":
			return te.Error
		}
	}
	return string(body)
}

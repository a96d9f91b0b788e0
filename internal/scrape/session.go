package scrape

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultSessionProbeURL is a page that requires a signed-in session.
const DefaultSessionProbeURL = "https://www.linkedin.com/feed/"

// CookieSession checks a LinkedIn session cookie by requesting a page that
// needs sign-in, without following redirects.
type CookieSession struct {
	cookie   string
	probeURL string
	client   *http.Client
}

// NewCookieSession returns a session probe. An empty probeURL uses
// DefaultSessionProbeURL.
func NewCookieSession(cookie, probeURL string) *CookieSession {
	if probeURL == "" {
		probeURL = DefaultSessionProbeURL
	}
	return &CookieSession{
		cookie:   cookie,
		probeURL: probeURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// IsAuthenticated reports true for a 2xx response. A redirect to a sign-in
// page or a 401/403 means the cookie is missing or expired.
func (s *CookieSession) IsAuthenticated(ctx context.Context) (bool, error) {
	if s.cookie == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return false, eris.Wrap(err, "session: create request")
	}
	req.Header.Set("Cookie", s.cookie)
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "session: probe")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, eris.Errorf("session: unexpected status %d", resp.StatusCode)
	}
}

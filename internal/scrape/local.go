package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// notFoundMarkers appear on LinkedIn's "profile unavailable" pages, which are
// sometimes served with a 200.
var notFoundMarkers = []string{
	"this page doesn’t exist",
	"this page doesn't exist",
	"profile unavailable",
	"page not found",
}

// LocalOptions configures a LocalScraper.
type LocalOptions struct {
	// Cookie is sent verbatim as the Cookie header, e.g. "li_at=...".
	Cookie    string
	UserAgent string
	// RequestsPerSecond caps requests per host. Zero means 0.5.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// LocalScraper fetches profile HTML directly with the user's session cookie and
// extracts visible text.
type LocalScraper struct {
	client    *http.Client
	cookie    string
	userAgent string
	rps       rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalScraper creates a LocalScraper. Redirects to a sign-in page are not
// followed so they can be reported as a block.
func NewLocalScraper(opts LocalOptions) *LocalScraper {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if isAuthWallLocation(req.URL.Path) || len(via) >= 5 {
			return http.ErrUseLastResponse
		}
		return nil
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &LocalScraper{
		client:    client,
		cookie:    opts.Cookie,
		userAgent: ua,
		rps:       rate.Limit(rps),
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

func (l *LocalScraper) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, 1)
		l.limiters[host] = lim
	}
	return lim
}

// Scrape fetches targetURL and returns its visible text. 404 and 410 responses
// and LinkedIn's unavailable-profile page yield ErrNotFound.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse url")
	}
	if err := l.limiter(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "local_http: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if l.cookie != "" {
		req.Header.Set("Cookie", l.cookie)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, eris.Wrapf(ErrNotFound, "local_http: status %d", resp.StatusCode)
	}
	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := ExtractText(doc)

	lower := strings.ToLower(title + "\n" + text)
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) && len(text) < 2000 {
			return nil, eris.Wrapf(ErrNotFound, "local_http: %s", m)
		}
	}

	return &Result{
		URL:        targetURL,
		Title:      title,
		Text:       text,
		StatusCode: resp.StatusCode,
		Source:     "local_http",
	}, nil
}

// blockSelector lists the elements whose innermost instances become lines.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, div, section, dd, dt, td"

// ExtractText returns the visible text of doc, preferring <main>. Chrome such
// as scripts, navigation and footers is dropped and blank lines collapsed.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, nav, footer, header, aside, code").Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 || strings.TrimSpace(root.Text()) == "" {
		root = doc.Find("body")
	}

	var lines []string
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(dedupeAdjacent(lines), "\n")
}

// dedupeAdjacent drops consecutive duplicates, which LinkedIn emits for
// visually-hidden accessibility text.
func dedupeAdjacent(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(out) > 0 && out[len(out)-1] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}

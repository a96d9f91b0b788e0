package scrape

import (
	"context"
	"errors"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/jina"
)

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// JinaAdapter reads profiles through the Jina reader. A breaker skips the
// reader after repeated failures so a chain can move on quickly.
type JinaAdapter struct {
	client  jina.Client
	cookie  string
	breaker *resilience.Breaker
	policy  *bluemonday.Policy
}

// NewJinaAdapter wraps client. cookie is forwarded to LinkedIn when set.
func NewJinaAdapter(client jina.Client, cookie string) *JinaAdapter {
	return &JinaAdapter{
		client:  client,
		cookie:  cookie,
		breaker: resilience.NewBreaker("jina", resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute}),
		policy:  bluemonday.StrictPolicy(),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns false while the breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.BreakerOpen
}

// Scrape fetches targetURL via the reader. A 404 or 410 from the reader, or
// a not-found warning about the target, yields ErrNotFound. The reader's own
// page timeout follows the ctx deadline.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	opts := []jina.ReadOption{jina.WithCookie(j.cookie)}
	if dl, ok := ctx.Deadline(); ok {
		opts = append(opts, jina.WithPageTimeout(time.Until(dl)))
	}
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL, opts...)
		var se *jina.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusGone) {
			// The target is gone; the reader itself is healthy.
			return nil, nil
		}
		return resp, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina: read")
	}
	if resp == nil || strings.Contains(strings.ToLower(resp.Data.Warning), "404") {
		return nil, eris.Wrap(ErrNotFound, "jina: target returned 404")
	}

	text := j.clean(resp.Data.Content)
	if blocked, kind := DetectBlock(&http.Response{StatusCode: http.StatusOK}, []byte(text)); blocked && len(text) < 2000 {
		return nil, eris.Errorf("jina: blocked (%s)", kind)
	}

	return &Result{
		URL:        resp.Data.URL,
		Title:      resp.Data.Title,
		Text:       text,
		StatusCode: resp.Code,
		Source:     "jina",
	}, nil
}

// clean strips any markup the reader left in place and normalises spacing.
func (j *JinaAdapter) clean(content string) string {
	text := html.UnescapeString(j.policy.Sanitize(content))
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n"))
}

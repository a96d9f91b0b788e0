// Package profile fetches a lead's profile text and classifies the result as
// success, a missing profile or an error.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scrape"
)

// MinTextLength is the shortest profile text treated as a real page.
const MinTextLength = 50

// Kind classifies a fetch.
type Kind int

const (
	Success Kind = iota
	NotFound
	Error
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Outcome is the result of one fetch. Text is set only for Success; Reason
// only for NotFound and Error.
type Outcome struct {
	Kind   Kind
	Text   string
	Reason string
}

// notFoundKeywords in a failure message mark the profile as missing.
var notFoundKeywords = []string{"404", "not found", "page not found", "profile unavailable"}

// Fetcher wraps a page source with a timeout and outcome classification. It
// never retries.
type Fetcher struct {
	scraper scrape.Scraper
}

// NewFetcher creates a Fetcher.
func NewFetcher(s scrape.Scraper) *Fetcher {
	return &Fetcher{scraper: s}
}

// Fetch resolves ref to a profile URL and scrapes it, racing the scrape
// against timeout. The scrape context carries timeout as its deadline. A
// scrape still running when the timer fires is cancelled and its result
// discarded.
func (f *Fetcher) Fetch(ctx context.Context, ref string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = model.DefaultPageTimeoutSeconds * time.Second
	}
	url, err := scrape.ResolveProfileURL(ref)
	if err != nil {
		return classifyErr(err)
	}

	type result struct {
		res *scrape.Result
		err error
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		res, err := f.scraper.Scrape(sctx, url)
		done <- result{res, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
				return timedOut(url, timeout)
			}
			return classifyErr(r.err)
		}
		return classifyText(r.res)
	case <-timer.C:
		return timedOut(url, timeout)
	case <-ctx.Done():
		return Outcome{Kind: Error, Reason: "Scraping error: " + ctx.Err().Error()}
	}
}

func timedOut(url string, timeout time.Duration) Outcome {
	zap.L().Debug("profile: fetch timed out", zap.String("url", url), zap.Duration("timeout", timeout))
	return Outcome{
		Kind:   NotFound,
		Reason: fmt.Sprintf("Timeout after %d seconds - likely 404 or blocked profile", int(timeout.Seconds())),
	}
}

func classifyText(res *scrape.Result) Outcome {
	text := ""
	if res != nil {
		text = res.Text
	}
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return Outcome{
			Kind:   NotFound,
			Reason: fmt.Sprintf("Profile data too short (%d chars) - likely 404 or private profile", n),
		}
	}
	return Outcome{Kind: Success, Text: text}
}

func classifyErr(err error) Outcome {
	if errors.Is(err, scrape.ErrNotFound) {
		return Outcome{Kind: NotFound, Reason: "Profile not found (404) - " + err.Error()}
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, kw := range notFoundKeywords {
		if strings.Contains(lower, kw) {
			return Outcome{Kind: NotFound, Reason: msg}
		}
	}
	return Outcome{Kind: Error, Reason: "Scraping error: " + msg}
}

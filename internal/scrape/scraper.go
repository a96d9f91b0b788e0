// Package scrape fetches LinkedIn profile pages and extracts their visible text.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is the explicit not-found signal: the profile does not exist or
// has been removed. Callers must not retry it through another source.
var ErrNotFound = eris.New("profile not found")

// Result holds the extracted text of one page.
type Result struct {
	URL        string
	Title      string
	Text       string
	StatusCode int
	Source     string // e.g. "local_http", "jina"
}

// Scraper fetches a single URL and returns its visible text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// Session reports whether the scraper's LinkedIn session is signed in.
type Session interface {
	IsAuthenticated(ctx context.Context) (bool, error)
}

// StaticSession is a Session with a fixed answer, used when the page source
// needs no login.
type StaticSession bool

func (s StaticSession) IsAuthenticated(context.Context) (bool, error) { return bool(s), nil }

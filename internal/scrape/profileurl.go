package scrape

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrSalesNavigator rejects Sales Navigator links, which need a paid seat and
// do not map to a public profile.
var ErrSalesNavigator = eris.New("sales navigator urls are not supported; use linkedin.com/in/<username> or the bare username")

const profileBase = "https://www.linkedin.com/in/"

var (
	profilePathRe = regexp.MustCompile(`linkedin\.com/(?:in|pub)/([^/?\s&#]+)`)
	usernameRe    = regexp.MustCompile(`^[A-Za-z0-9\-._]+$`)
)

// ResolveProfileURL turns a profile URL or bare username into the canonical
// https://www.linkedin.com/in/<id> form.
func ResolveProfileURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", eris.New("scrape: empty profile reference")
	}
	if strings.Contains(ref, "linkedin.com/sales/") {
		return "", ErrSalesNavigator
	}
	if m := profilePathRe.FindStringSubmatch(ref); m != nil {
		return profileBase + m[1], nil
	}
	if !strings.Contains(ref, "/") && len(ref) > 2 && len(ref) < 100 && usernameRe.MatchString(ref) {
		return profileBase + ref, nil
	}
	return "", eris.Errorf("scrape: unrecognised profile reference %q", ref)
}

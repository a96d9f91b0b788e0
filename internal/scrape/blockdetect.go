package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes why a page could not be read.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockAuthWall   BlockType = "authwall"
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockRateLimit  BlockType = "rate_limit"
)

// DetectBlock checks a response for LinkedIn's sign-in wall and anti-bot pages.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 999 {
		return true, BlockRateLimit
	}
	if isAuthWallURL(resp.Request) || isAuthWallLocation(resp.Header.Get("Location")) {
		return true, BlockAuthWall
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, `class="authwall`) ||
		strings.Contains(lower, "join linkedin to see") ||
		strings.Contains(lower, "sign in to view"):
		return true, BlockAuthWall
	case strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification"):
		return true, BlockCloudflare
	case strings.Contains(lower, "captcha"):
		return true, BlockCaptcha
	}
	return false, BlockNone
}

func isAuthWallURL(req *http.Request) bool {
	return req != nil && req.URL != nil && isAuthWallLocation(req.URL.Path)
}

func isAuthWallLocation(loc string) bool {
	return strings.Contains(loc, "/authwall") ||
		strings.Contains(loc, "/login") ||
		strings.Contains(loc, "/uas/login") ||
		strings.Contains(loc, "/checkpoint/")
}

package static

import (
	"math/rand"
	"strings"
)

var webUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var mobileUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

// ResolveUserAgent maps "web" and "mobi" to a random browser user agent of
// that kind. Anything else is used verbatim; empty keeps colly's default.
func ResolveUserAgent(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "web":
		return webUserAgents[rand.Intn(len(webUserAgents))]
	case "mobi":
		return mobileUserAgents[rand.Intn(len(mobileUserAgents))]
	default:
		return value
	}
}

package netutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveScriptURL turns a script src into the absolute url to fetch. The src
// itself is left untouched in the document; only the fetch target is
// resolved against base.
func ResolveScriptURL(base *url.URL, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("resolve script url: empty src")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve script url %q: %w", raw, err)
	}
	if parsed.IsAbs() || base == nil {
		return parsed.String(), nil
	}
	return base.ResolveReference(parsed).String(), nil
}

// IsFetchable reports whether target uses a scheme the static host can fetch.
func IsFetchable(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	default:
		return false
	}
}

// ParseBase parses a page url used as a document base. An empty string
// means no base.
func ParseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("parse base url %q: not absolute", raw)
	}
	return parsed, nil
}

package openrouter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

// ErrBaseURL is returned for an OPENROUTER_BASE_URL that must not receive the
// API key.
var ErrBaseURL = errors.New("invalid OPENROUTER_BASE_URL")

var defaultAllowedHosts = map[string]struct{}{
	"openrouter.ai":     {},
	"api.openrouter.ai": {},
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts only absolute https URLs whose host is allowlisted.
// An empty allowlist means the public OpenRouter hosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBaseURL, err)
	}
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		return fmt.Errorf("%w %q: absolute URL with host is required", ErrBaseURL, baseURL)
	case u.User != nil:
		return fmt.Errorf("%w %q: userinfo is not allowed", ErrBaseURL, u.Redacted())
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("%w %q: query and fragment are not allowed", ErrBaseURL, baseURL)
	case !strings.EqualFold(u.Scheme, "https"):
		return fmt.Errorf("%w %q: https is required", ErrBaseURL, baseURL)
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := normalizeAllowedHosts(allowedHosts)[host]; !ok {
		return fmt.Errorf("%w %q: host %q is not in OPENROUTER_ALLOWED_HOSTS", ErrBaseURL, baseURL, host)
	}
	return nil
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if i := strings.IndexAny(v, ":/"); i >= 0 {
			v = v[:i]
		}
		if v != "" {
			out[v] = struct{}{}
		}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}

package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for cache keying: an https scheme is
// assumed when none is given, the host is lowercased and loses any leading
// "www.", and the query, fragment and trailing slash are dropped. The result
// is idempotent: normalizing a normalized URL is a no-op.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}

	return u.Scheme + "://" + host + path, nil
}

// HashURL returns the SHA-256 hex digest used as the cache key for a
// normalized URL.
func HashURL(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CacheKey normalizes and hashes in one step.
func CacheKey(raw string) (string, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	return HashURL(normalized), nil
}

package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters that vary per share link without
// changing the underlying video. They are stripped before fingerprinting so
// the same video shared twice dedupes to one job.
var trackingParams = map[string]struct{}{
	"feature":      {},
	"si":           {},
	"spm_id_from":  {},
	"share_source": {},
	"share_medium": {},
	"utm_campaign": {},
	"utm_content":  {},
	"utm_medium":   {},
	"utm_source":   {},
	"utm_term":     {},
}

// NormalizeSourceURL canonicalizes a video URL for fingerprinting: lowercase
// scheme and host, tracking parameters and fragment removed, remaining query
// parameters sorted, trailing slash trimmed.
func NormalizeSourceURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	values := parsed.Query()
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rebuilt := url.Values{}
	for _, key := range keys {
		for _, v := range values[key] {
			rebuilt.Add(key, v)
		}
	}
	parsed.RawQuery = rebuilt.Encode()
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

// FingerprintSourceURL returns the stable identity of a source URL: the
// SHA-256 digest of its normalized form, hex encoded.
func FingerprintSourceURL(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeSourceURL(raw)))
	return hex.EncodeToString(sum[:])
}

// inferTitleFromURL derives a provisional job title from the URL path. The
// download stage replaces it with the real video title once metadata arrives.
func inferTitleFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(raw)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segment := strings.TrimSpace(segments[i]); segment != "" {
			return segment
		}
	}
	return parsed.Host
}

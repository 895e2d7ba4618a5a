// Package ipfs extracts content identifiers from the URL/URI forms the
// broker's image field can carry. Grounded line-for-line on
// original_source/src/smart_fetcher.rs's extract_cid_from_url, using
// net/url in place of Rust's url crate.
package ipfs

import (
	"net/url"
	"strings"
)

// ExtractCID returns the content identifier embedded in raw, and whether
// one was found. Recognition rules are tried in order (spec.md §4.5):
// ipfs:// scheme, <cid>.ipfs.<domain> subdomain, legacy *.ipfs.dweb.link,
// /ipfs/<cid>/... path, bare-string fallback.
func ExtractCID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			return trimmed, true
		}
		return "", false
	}

	if u.Scheme == "ipfs" {
		if u.Host != "" {
			return u.Host, true
		}
		seg := firstPathSegment(u.Path)
		if seg != "" {
			return seg, true
		}
		return "", false
	}

	if u.Host != "" {
		if pos := strings.Index(u.Host, ".ipfs."); pos > 0 {
			return u.Host[:pos], true
		}
		if strings.HasSuffix(u.Host, ".ipfs.dweb.link") {
			first := strings.SplitN(u.Host, ".", 2)[0]
			if first != "" {
				return first, true
			}
		}
	}

	segs := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segs) >= 2 && segs[0] == "ipfs" && segs[1] != "" {
		return segs[1], true
	}

	return "", false
}

func firstPathSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	return parts[0]
}

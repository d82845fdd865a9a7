// Package shareid derives the short, stable identifiers used in share links
// (?v=video_xxx) and as comment thread keys.
package shareid

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf16"
)

const prefix = "video_"

// FromRef hashes ref with the 31-multiplier string hash over UTF-16 code units,
// truncated to 32 bits, and renders the magnitude in base 36.
func FromRef(ref string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(ref)) {
		h = (h << 5) - h + int32(c)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return prefix + strconv.FormatInt(n, 36)
}

// Resolve finds the ref in refs whose id matches.
func Resolve(refs []string, id string) (string, bool) {
	if !strings.HasPrefix(id, prefix) {
		return "", false
	}
	for _, ref := range refs {
		if FromRef(ref) == id {
			return ref, true
		}
	}
	return "", false
}

// ShareURL builds the link that opens ref directly in the player.
func ShareURL(baseURL, ref string) string {
	return strings.TrimSuffix(baseURL, "/") + "/?v=" + url.QueryEscape(FromRef(ref))
}

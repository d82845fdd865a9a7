package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

type nonceKey struct{}

// newNonce returns 16 random bytes, base64url encoded, for the CSP script and
// style sources of one response. It returns "" if the system RNG fails, which
// leaves inline player config blocked rather than open.
func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("security: failed to read random bytes for nonce", "error", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// pageNonce is the nonce the security headers advertised for this request.
func pageNonce(ctx context.Context) string {
	n, _ := ctx.Value(nonceKey{}).(string)
	return n
}

type SecurityConfig struct {
	BaseURL string
	// MediaOrigins are extra hosts videos are played from (object storage,
	// a separate video host).
	MediaOrigins []string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	mediaSuffix := ""
	for _, origin := range cfg.MediaOrigins {
		if origin != "" {
			mediaSuffix += " " + origin
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := newNonce()
			ctx := context.WithValue(r.Context(), nonceKey{}, nonce)

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), autoplay=(self), fullscreen=(self)")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:; media-src 'self' blob:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'%s; frame-ancestors 'self';",
				mediaSuffix, nonce, nonce, mediaSuffix,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package device

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookieName = "shorts_device"

// refreshAfter re-issues the cookie once it is older than this.
const refreshAfter = 30 * 24 * time.Hour

type contextKey string

const deviceIDKey contextKey = "device-id"

func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(deviceIDKey).(string); ok {
		return v
	}
	return ""
}

// Middleware resolves the device id from the cookie, minting a new device when
// the cookie is missing or invalid.
func Middleware(secret string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			reissue := true
			if c, err := r.Cookie(CookieName); err == nil {
				if claims, err := Parse(secret, c.Value); err == nil {
					id = claims.DeviceID
					reissue = claims.IssuedAt == nil || time.Since(claims.IssuedAt.Time) > refreshAfter
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			if reissue {
				setCookie(w, secret, id, secure)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithID(r.Context(), id)))
		})
	}
}

func setCookie(w http.ResponseWriter, secret, id string, secure bool) {
	token, err := Issue(secret, id)
	if err != nil {
		slog.Error("device: failed to sign device token", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

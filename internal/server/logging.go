package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shortsfeed/shortsfeed/internal/device"
)

// responseLog captures what the handler wrote so the access line can report it.
type responseLog struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (l *responseLog) WriteHeader(code int) {
	l.status = code
	l.ResponseWriter.WriteHeader(code)
}

func (l *responseLog) Write(b []byte) (int, error) {
	n, err := l.ResponseWriter.Write(b)
	l.bytes += n
	return n, err
}

func (l *responseLog) Unwrap() http.ResponseWriter {
	return l.ResponseWriter
}

// accessLevel picks the level for one access line. Player assets and video
// files are logged at debug since a single feed session fetches many of them.
func accessLevel(status int, path string) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400 && status != http.StatusNotFound:
		return slog.LevelWarn
	case !strings.HasPrefix(path, "/api/") && path != "/":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// slogMiddleware must run inside the device middleware to see the device id.
func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		rl := &responseLog{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rl, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		slog.Log(context.Background(), accessLevel(rl.status, r.URL.Path), "http request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", rl.status,
			"bytes", rl.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"device", device.FromContext(r.Context()),
			"browser", device.Describe(r.UserAgent()).Browser,
		)
	})
}

// Package geoip maps viewer addresses to an ISO country code. A missing or
// unreadable database disables lookups rather than failing startup.
package geoip

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

type Resolver struct {
	db *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

func Open(path string) *Resolver {
	if path == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		slog.Warn("geoip: cannot open database, country lookup disabled", "path", path, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: database loaded", "path", path, "type", db.Metadata.DatabaseType)
	return &Resolver{db: db}
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

// Country returns the ISO code for ip, or "" when unknown.
func (r *Resolver) Country(ip string) string {
	if !r.Enabled() {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	var rec countryRecord
	if err := r.db.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

func (r *Resolver) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.db.Close()
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package discovery

import (
	"log/slog"
	"strings"
)

const DefaultOrder = "manifest,dir,listing,s3,probe,static"

// Sources holds every method the deployment configured. Nil entries are skipped.
type Sources struct {
	Manifest Method
	Dir      Method
	Listing  Method
	S3       Method
	Probe    Method
	Static   Method
}

// ParseOrder splits a comma separated method list.
func ParseOrder(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Build assembles a Chain from the configured sources in the given order.
func Build(order []string, src Sources) *Chain {
	byName := map[string]Method{
		"manifest": src.Manifest,
		"dir":      src.Dir,
		"listing":  src.Listing,
		"s3":       src.S3,
		"probe":    src.Probe,
		"static":   src.Static,
	}
	var methods []Method
	seen := make(map[string]bool)
	for _, name := range order {
		m, known := byName[name]
		if !known {
			slog.Warn("discovery: unknown method in order", "method", name)
			continue
		}
		if m == nil || seen[name] {
			continue
		}
		seen[name] = true
		methods = append(methods, m)
	}
	return NewChain(methods...)
}

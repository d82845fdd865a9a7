// Package discovery builds the video catalog from an ordered list of methods.
// Each method either finds videos, finds nothing, or fails; the first method
// with a non-empty result wins.
package discovery

import (
	"context"
	"log/slog"
	"strings"
)

var SupportedExtensions = []string{".mp4", ".webm", ".ogg", ".mov"}

// IsVideoFile reports whether name ends in a supported extension, ignoring case.
func IsVideoFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

type Method interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
}

// Chain runs its methods sequentially and returns the first non-empty result.
// Failures never surface: an error is logged and treated as an empty result.
type Chain struct {
	methods []Method
}

func NewChain(methods ...Method) *Chain {
	return &Chain{methods: methods}
}

func (c *Chain) Name() string { return "chain" }

// Methods returns the configured method names in order.
func (c *Chain) Methods() []string {
	names := make([]string, 0, len(c.methods))
	for _, m := range c.methods {
		names = append(names, m.Name())
	}
	return names
}

func (c *Chain) Discover(ctx context.Context) ([]string, error) {
	for _, m := range c.methods {
		refs, err := m.Discover(ctx)
		if err != nil {
			slog.Info("discovery: method failed, trying next", "method", m.Name(), "error", err)
			continue
		}
		if len(refs) == 0 {
			slog.Debug("discovery: method found no videos", "method", m.Name())
			continue
		}
		slog.Info("discovery: catalog found", "method", m.Name(), "count", len(refs))
		return dedupe(refs), nil
	}
	slog.Warn("discovery: no videos found by any method", "methods", c.Methods())
	return nil, nil
}

func dedupe(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

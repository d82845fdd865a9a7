package discovery

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
)

// Dir lists video files directly inside Root. Refs are Prefix plus the
// path-escaped file name, the same shape the generated manifest uses.
type Dir struct {
	Root   string
	Prefix string
}

func (d Dir) Name() string { return "dir" }

func (d Dir) Discover(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("read video dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsVideoFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	refs := make([]string, 0, len(names))
	for _, name := range names {
		refs = append(refs, RefForName(d.Prefix, name))
	}
	return refs, nil
}

// RefForName builds the ref for a file name under prefix.
func RefForName(prefix, name string) string {
	return prefix + url.PathEscape(name)
}

// Command manifestgen scans a videos folder and writes the JSON manifest the
// feed's manifest discovery reads.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/shortsfeed/shortsfeed/internal/discovery"
)

func main() {
	dir := flag.String("dir", "videos", "folder containing the video files")
	out := flag.String("out", "manifest.json", "manifest file to write, - for stdout")
	prefix := flag.String("prefix", "videos/", "prefix prepended to every ref")
	flag.Parse()

	n, err := generate(context.Background(), *dir, *prefix, *out)
	if err != nil {
		log.Fatalf("manifestgen: %v", err)
	}
	if *out != "-" {
		log.Printf("wrote %d videos to %s", n, *out)
	}
}

func generate(ctx context.Context, dir, prefix, out string) (int, error) {
	refs, err := discovery.Dir{Root: dir, Prefix: prefix}.Discover(ctx)
	if err != nil {
		return 0, err
	}
	if refs == nil {
		refs = []string{}
	}

	if out == "-" {
		return len(refs), write(os.Stdout, refs)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".manifest-*.json")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp, refs); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return 0, fmt.Errorf("replace manifest: %w", err)
	}
	return len(refs), nil
}

func write(w io.Writer, refs []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(refs); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

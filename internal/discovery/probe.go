package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const DefaultMaxTrials = 50

// Prober checks whether a single ref exists.
type Prober interface {
	Exists(ctx context.Context, ref string) bool
}

// HTTPProber issues a HEAD request per ref; any 2xx means the video exists.
// Refs are resolved against BaseURL after Prefix is removed.
type HTTPProber struct {
	Client  *http.Client
	BaseURL string
	Prefix  string
}

func (p HTTPProber) Exists(ctx context.Context, ref string) bool {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	target := strings.TrimSuffix(p.BaseURL, "/") + "/" + strings.TrimPrefix(ref, p.Prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// DirProber stats refs inside a local directory.
type DirProber struct {
	Root   string
	Prefix string
}

func (p DirProber) Exists(_ context.Context, ref string) bool {
	name, err := url.PathUnescape(strings.TrimPrefix(ref, p.Prefix))
	if err != nil || name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	fi, err := os.Stat(filepath.Join(p.Root, name))
	return err == nil && fi.Mode().IsRegular()
}

// Probe guesses numbered file names (video1.mp4, 1.mp4, ...) and keeps the ones
// the Prober confirms. Checks run one at a time, in candidate order.
type Probe struct {
	Prober    Prober
	Prefix    string
	MaxTrials int
}

func (p Probe) Name() string { return "probe" }

func (p Probe) Candidates() []string {
	trials := p.MaxTrials
	if trials <= 0 {
		trials = DefaultMaxTrials
	}
	names := make([]string, 0, trials*len(SupportedExtensions)*2)
	for i := 1; i <= trials; i++ {
		for _, ext := range SupportedExtensions {
			names = append(names, fmt.Sprintf("video%d%s", i, ext), fmt.Sprintf("%d%s", i, ext))
		}
	}
	return names
}

func (p Probe) Discover(ctx context.Context) ([]string, error) {
	if p.Prober == nil {
		return nil, nil
	}
	var found []string
	for _, name := range p.Candidates() {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		ref := p.Prefix + name
		if p.Prober.Exists(ctx, ref) {
			found = append(found, ref)
		}
	}
	return found, nil
}

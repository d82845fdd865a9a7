package server

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PlaybackURLs turns a catalog ref into a URL the browser can play.
type PlaybackURLs interface {
	URL(ctx context.Context, ref string) (string, error)
}

// LocalURLs serves refs from this server, or from BaseURL when videos live on
// another host.
type LocalURLs struct {
	BaseURL string
	Prefix  string
}

func (l LocalURLs) URL(_ context.Context, ref string) (string, error) {
	if l.BaseURL == "" {
		return "/" + strings.TrimPrefix(ref, "/"), nil
	}
	return strings.TrimSuffix(l.BaseURL, "/") + "/" + strings.TrimPrefix(ref, l.Prefix), nil
}

type URLSigner interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// PresignedURLs treats refs as object keys and signs a time-limited GET.
type PresignedURLs struct {
	Signer URLSigner
	Expiry time.Duration
}

func (p PresignedURLs) URL(ctx context.Context, ref string) (string, error) {
	expiry := p.Expiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := p.Signer.GenerateDownloadURL(ctx, ref, expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	return u, nil
}

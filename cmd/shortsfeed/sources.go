package main

import (
	"net/url"
	"strings"

	"github.com/shortsfeed/shortsfeed/internal/discovery"
	"github.com/shortsfeed/shortsfeed/internal/server"
	"github.com/shortsfeed/shortsfeed/internal/storage"
)

// objectStore is the part of storage.Storage discovery needs.
type objectStore interface {
	discovery.ObjectLister
	discovery.Prober
}

// sources holds where videos may live. A local directory wins over a remote
// video host, which wins over the bucket, when choosing a prober.
type sources struct {
	prefix        string
	manifestPath  string
	videosDir     string
	videosBaseURL string
	objects       objectStore
	maxTrials     int
}

func (s sources) prober() discovery.Prober {
	switch {
	case s.videosDir != "":
		return discovery.DirProber{Root: s.videosDir, Prefix: s.prefix}
	case s.videosBaseURL != "":
		return discovery.HTTPProber{BaseURL: s.videosBaseURL, Prefix: s.prefix}
	case s.objects != nil:
		return s.objects
	}
	return nil
}

func (s sources) build() discovery.Sources {
	var src discovery.Sources
	if s.manifestPath != "" {
		src.Manifest = discovery.Manifest{Path: s.manifestPath}
	}
	if s.videosDir != "" {
		src.Dir = discovery.Dir{Root: s.videosDir, Prefix: s.prefix}
	}
	if s.videosBaseURL != "" {
		src.Listing = discovery.Listing{URL: s.videosBaseURL, Prefix: s.prefix}
	}
	if s.objects != nil {
		src.S3 = discovery.S3{Lister: s.objects, Prefix: s.prefix}
	}
	prober := s.prober()
	if prober != nil {
		src.Probe = discovery.Probe{Prober: prober, Prefix: s.prefix, MaxTrials: s.maxTrials}
	}
	src.Static = discovery.Static{Refs: discovery.DefaultStaticRefs(s.prefix), Prober: prober}
	return src
}

// playbackFor serves local and remote-host refs directly and signs bucket keys.
func playbackFor(s sources, store *storage.Storage) server.PlaybackURLs {
	if s.videosDir == "" && s.videosBaseURL == "" && store != nil {
		return server.PresignedURLs{Signer: store}
	}
	return server.LocalURLs{BaseURL: s.videosBaseURL, Prefix: s.prefix}
}

// originOf reduces a URL to scheme://host for the CSP.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host
}

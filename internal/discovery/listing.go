package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

const maxListingBytes = 4 << 20

// Listing fetches an HTML directory index (nginx autoindex, Apache, python -m
// http.server) and keeps every anchor that points at a video file.
type Listing struct {
	Client *http.Client
	URL    string
	Prefix string
}

func (l Listing) Name() string { return "listing" }

func (l Listing) Discover(ctx context.Context) ([]string, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch listing: status %d", resp.StatusCode)
	}

	names, err := ParseListing(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(names))
	for _, name := range names {
		refs = append(refs, l.Prefix+name)
	}
	return refs, nil
}

// ParseListing extracts the file names of video anchors from an HTML listing.
// Names keep the escaping used in the href.
func ParseListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	var names []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if name, ok := hrefName(attr.Val); ok {
					names = append(names, name)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return names, nil
}

func hrefName(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasSuffix(href, "/") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	name := path.Base(u.EscapedPath())
	if name == "." || name == "/" {
		return "", false
	}
	unescaped, err := url.PathUnescape(name)
	if err != nil || !IsVideoFile(unescaped) {
		return "", false
	}
	return name, true
}

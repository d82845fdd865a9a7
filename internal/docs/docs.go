// Package docs serves the OpenAPI description of the feed API and a reference
// page that renders it.
package docs

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
)

//go:embed openapi.yaml
var openAPI []byte

// Handler serves the API description for one deployment.
type Handler struct {
	document []byte
}

// New returns a Handler whose document lists baseURL as the API server, so
// "try it" requests from the reference page reach this deployment.
func New(baseURL string) *Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return &Handler{document: openAPI}
	}
	var buf bytes.Buffer
	buf.Write(bytes.TrimRight(openAPI, "\n"))
	fmt.Fprintf(&buf, "\nservers:\n  - url: %q\n", baseURL)
	return &Handler{document: buf.Bytes()}
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.document)
}

// Page loads the reference renderer from a CDN, so it relaxes the CSP for this
// page only.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"font-src 'self' https://cdn.jsdelivr.net data:; "+
			"img-src 'self' data:; connect-src 'self'; frame-ancestors 'self';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(pageHTML))
}

const pageHTML = `<!DOCTYPE html>
<html><head>
  <title>Shorts Feed API</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="/api/docs/openapi.yaml"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`

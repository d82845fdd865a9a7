package server

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/shortsfeed/shortsfeed/internal/shareid"
	"github.com/shortsfeed/shortsfeed/internal/validate"
)

var playerTemplate = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1, viewport-fit=cover">
    <title>{{.Title}}</title>
    <meta property="og:title" content="{{.Title}}">
    <meta property="og:type" content="video.other">
    {{if .Shared}}<meta property="og:url" content="{{.Shared.ShareURL}}">
    <meta property="og:video" content="{{.Shared.URL}}">{{end}}
    <link rel="stylesheet" href="/static/player.css">
</head>
<body>
    <main id="feed" class="feed">
        <video id="player" playsinline loop preload="auto"></video>
        <div id="empty" class="empty" hidden>No videos available</div>
        <nav class="actions">
            <button id="share" type="button" aria-label="Share">Share</button>
            {{if .Comments}}<button id="comments" type="button" aria-label="Comments">Comments <span id="comment-count"></span></button>{{end}}
            <button id="reset" type="button" aria-label="Reset progress">Reset</button>
        </nav>
        <div id="progress" class="progress"></div>
    </main>
    {{if .Comments}}<aside id="comment-panel" class="comment-panel" hidden>
        <header><h2>Comments</h2><button id="comment-close" type="button" aria-label="Close">&times;</button></header>
        <ul id="comment-list"></ul>
        <form id="comment-form">
            <input id="comment-name" name="username" maxlength="{{.Limits.username}}" placeholder="Name (optional)">
            <textarea id="comment-body" name="body" maxlength="{{.Limits.commentBody}}" placeholder="Add a comment" required></textarea>
            <button type="submit">Post</button>
        </form>
    </aside>{{end}}
    <script nonce="{{.Nonce}}">window.SHORTS = {{.Config}};</script>
    <script src="/static/player.js" nonce="{{.Nonce}}"></script>
</body>
</html>`))

type playerConfig struct {
	SharedID string `json:"sharedId,omitempty"`
	Comments bool   `json:"comments"`
}

type playerPage struct {
	Title    string
	Nonce    string
	Shared   *videoResponse
	Comments bool
	Limits   map[string]int
	Config   playerConfig
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	s.visit(r)

	page := playerPage{
		Title:    "Shorts",
		Nonce:    pageNonce(r.Context()),
		Comments: s.commentHandler != nil,
		Limits:   validate.FieldLimits(),
	}
	page.Config.Comments = page.Comments

	if id := r.URL.Query().Get("v"); id != "" && s.cfg.Catalog != nil {
		if refs, err := s.cfg.Catalog.Discover(r.Context()); err == nil {
			if ref, ok := shareid.Resolve(refs, id); ok {
				page.Config.SharedID = id
				if u, err := s.playback.URL(r.Context(), ref); err == nil {
					page.Shared = &videoResponse{Ref: ref, URL: u, ShareID: id, ShareURL: shareid.ShareURL(s.cfg.BaseURL, ref)}
				}
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := playerTemplate.Execute(w, page); err != nil {
		slog.Error("player: template execution failed", "error", err)
	}
}

package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shortsfeed/shortsfeed/internal/device"
	"github.com/shortsfeed/shortsfeed/internal/feed"
	"github.com/shortsfeed/shortsfeed/internal/httputil"
	"github.com/shortsfeed/shortsfeed/internal/shareid"
	"github.com/shortsfeed/shortsfeed/internal/validate"
)

type videoResponse struct {
	Ref      string `json:"ref"`
	URL      string `json:"url"`
	ShareID  string `json:"shareId"`
	ShareURL string `json:"shareUrl"`
}

type catalogEntry struct {
	Ref      string `json:"ref"`
	ShareID  string `json:"shareId"`
	ShareURL string `json:"shareUrl"`
}

type watchedRequest struct {
	Ref string `json:"ref"`
}

// engine holds the initialized engine for the requesting device, writing a
// 404 when no videos could be discovered. The caller must call release.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (eng *feed.Engine, release func(), ok bool) {
	eng, release = s.registry.Acquire(r.Context(), device.FromContext(r.Context()))
	if !eng.Init(r.Context()) {
		release()
		httputil.WriteError(w, http.StatusNotFound, "no videos available")
		return nil, nil, false
	}
	return eng, release, true
}

func (s *Server) writeVideo(w http.ResponseWriter, r *http.Request, ref string) {
	u, err := s.playback.URL(r.Context(), ref)
	if err != nil {
		slog.Error("feed: failed to resolve playback url", "ref", ref, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not resolve video url")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, videoResponse{
		Ref:      ref,
		URL:      u,
		ShareID:  shareid.FromRef(ref),
		ShareURL: shareid.ShareURL(s.cfg.BaseURL, ref),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	eng, release, ok := s.engine(w, r)
	if !ok {
		return
	}
	defer release()
	ref, ok := eng.Next(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "no videos available")
		return
	}
	s.writeVideo(w, r, ref)
}

func (s *Server) handleWatched(w http.ResponseWriter, r *http.Request) {
	var req watchedRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.Ref(req.Ref); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	eng, release, ok := s.engine(w, r)
	if !ok {
		return
	}
	defer release()
	if !eng.Contains(req.Ref) {
		httputil.WriteError(w, http.StatusBadRequest, "unknown video")
		return
	}
	eng.MarkWatched(r.Context(), req.Ref)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	eng, release, ok := s.engine(w, r)
	if !ok {
		return
	}
	defer release()
	eng.Reset(r.Context())
	httputil.WriteJSON(w, http.StatusOK, eng.Stats())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	eng, release := s.registry.Acquire(r.Context(), device.FromContext(r.Context()))
	defer release()
	httputil.WriteJSON(w, http.StatusOK, eng.Stats())
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	eng, release, ok := s.engine(w, r)
	if !ok {
		return
	}
	defer release()
	refs := eng.AllVideos()
	entries := make([]catalogEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, catalogEntry{
			Ref:      ref,
			ShareID:  shareid.FromRef(ref),
			ShareURL: shareid.ShareURL(s.cfg.BaseURL, ref),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	eng, release, ok := s.engine(w, r)
	if !ok {
		return
	}
	defer release()
	ref, found := shareid.Resolve(eng.AllVideos(), chi.URLParam(r, "id"))
	if !found {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	s.writeVideo(w, r, ref)
}

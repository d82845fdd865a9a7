package comment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shortsfeed/shortsfeed/internal/device"
	"github.com/shortsfeed/shortsfeed/internal/httputil"
	"github.com/shortsfeed/shortsfeed/internal/validate"
)

type Handler struct {
	store *Store
	// known reports whether a share id names a video in the catalog.
	known func(ctx context.Context, videoID string) bool
}

func NewHandler(store *Store, known func(ctx context.Context, videoID string) bool) *Handler {
	return &Handler{store: store, known: known}
}

type postCommentRequest struct {
	Username string `json:"username"`
	Body     string `json:"body"`
}

type commentResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Body      string `json:"body"`
	IsOwner   bool   `json:"isOwner"`
	CreatedAt string `json:"createdAt"`
}

type listResponse struct {
	Count    int               `json:"count"`
	Comments []commentResponse `json:"comments"`
}

func toResponse(c Comment, deviceID string) commentResponse {
	return commentResponse{
		ID:        c.ID,
		Username:  c.Username,
		Body:      c.Body,
		IsOwner:   deviceID != "" && c.DeviceID == deviceID,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Routes mounts the thread endpoints; post and delete go through writeLimit.
func (h *Handler) Routes(r chi.Router, writeLimit func(http.Handler) http.Handler) {
	r.Get("/{videoID}", h.List)
	r.Get("/{videoID}/count", h.Count)
	r.With(writeLimit).Post("/{videoID}", h.Post)
	r.With(writeLimit).Delete("/{videoID}/{commentID}", h.Delete)
}

func (h *Handler) videoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "videoID")
	if h.known != nil && !h.known(r.Context(), id) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return "", false
	}
	return id, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}
	comments, err := h.store.List(r.Context(), videoID)
	if err != nil {
		slog.Error("comment: list failed", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load comments")
		return
	}

	deviceID := device.FromContext(r.Context())
	items := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, toResponse(c, deviceID))
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Count: len(items), Comments: items})
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}
	n, err := h.store.Count(r.Context(), videoID)
	if err != nil {
		slog.Error("comment: count failed", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not count comments")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	var req postCommentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.CommentBody(req.Body); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Username(req.Username); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	deviceID := device.FromContext(r.Context())
	c, err := h.store.Post(r.Context(), videoID, deviceID, req.Username, req.Body)
	if err != nil {
		slog.Error("comment: post failed", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not post comment")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(c, deviceID))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}
	commentID := chi.URLParam(r, "commentID")

	err := h.store.Delete(r.Context(), videoID, commentID, device.FromContext(r.Context()))
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "comment not found")
	case err != nil:
		slog.Error("comment: delete failed", "comment_id", commentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not delete comment")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

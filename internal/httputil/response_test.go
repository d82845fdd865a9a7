package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"NotFound", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteJSON(rec, tt.status, map[string]string{"ref": "videos/a.mp4"})

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["ref"] != "videos/a.mp4" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "no videos available")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"no videos available"}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Ref string `json:"ref"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ref":"videos/b.mp4"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Ref != "videos/b.mp4" {
		t.Errorf("expected videos/b.mp4, got %q", v.Ref)
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	var v map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	var v map[string]any
	big := `{"x":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	if err := DecodeJSON(httptest.NewRecorder(), req, &v); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

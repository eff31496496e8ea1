// Package server is the HTTP endpoint the editor saves annotations to.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"polygon-annotator/internal/project"
	"polygon-annotator/pkg/geometry"
)

const maxBodySize = 4 << 20 // 4MB

type Handler struct {
	store *project.Store
}

func NewHandler(store *project.Store) *Handler {
	return &Handler{store: store}
}

type saveRequest struct {
	ImageName   string             `json:"image_name"`
	Annotations []geometry.Point2D `json:"annotations"`
}

type saveResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Points  int    `json:"points"`
	Closed  bool   `json:"closed"`
}

// NewRouter wires the annotation routes. Image names in paths must be
// URL-escaped; they are often URLs themselves.
func NewRouter(h *Handler, imageDir string) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(Recovery)
	r.Use(Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/save_annotation", h.Save).Methods("POST")
	r.HandleFunc("/annotations", h.List).Methods("GET")
	r.HandleFunc("/annotations/{name}", h.Get).Methods("GET")

	if imageDir != "" {
		r.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir(imageDir)))).Methods("GET")
	}
	return r
}

// Save handles POST /save_annotation.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ImageName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image_name is required"})
		return
	}

	f, err := h.store.Put(req.ImageName, req.Annotations)
	if err != nil {
		slog.Error("save annotation", "error", err, "image", req.ImageName)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store annotation"})
		return
	}

	slog.Info("annotation saved", "image", f.ImageName, "id", f.ID, "points", len(f.Annotations), "closed", f.Closed)
	writeJSON(w, http.StatusOK, saveResponse{
		Message: "Annotation saved",
		ID:      f.ID.String(),
		Points:  len(f.Annotations),
		Closed:  f.Closed,
	})
}

// List handles GET /annotations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List()
	if err != nil {
		slog.Error("list annotations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /annotations/{name}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image name"})
		return
	}

	f, err := h.store.Get(name)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "annotation not found"})
			return
		}
		slog.Error("get annotation", "error", err, "image", name)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Recovery turns handler panics into 500 responses.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("panic in handler", "panic", v, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger logs one line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

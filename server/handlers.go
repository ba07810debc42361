package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mediaqa/core"
	"mediaqa/processors"
	"mediaqa/qa"
	"mediaqa/storage"
)

// Server is the thin HTTP caller of the pipeline. All session bookkeeping
// (which media a question refers to) travels in the requests themselves.
type Server struct {
	pipeline *processors.Pipeline
	answerer *qa.Answerer
	store    storage.VectorStore
}

func New(pipeline *processors.Pipeline, answerer *qa.Answerer, store storage.VectorStore) *Server {
	return &Server{pipeline: pipeline, answerer: answerer, store: store}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/process-media", s.processMediaHandler)
	mux.HandleFunc("/query", s.queryHandler)
	mux.HandleFunc("/reset", s.resetHandler)
	mux.HandleFunc("/health", s.healthHandler)
}

func (s *Server) processMediaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	asset, err := readUploadedMedia(r)
	if err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := s.pipeline.ProcessMedia(r.Context(), asset)
	if err != nil {
		status, stage := classify(err)
		core.WriteJSON(w, status, map[string]any{
			"error": err.Error(),
			"stage": stage,
			"steps": resp.Steps,
		})
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req core.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "question required"})
		return
	}

	resp, err := s.answerer.Answer(r.Context(), req.MediaID, req.Question, req.TopK)
	if err != nil {
		status, stage := classify(err)
		core.WriteJSON(w, status, map[string]string{"error": err.Error(), "stage": stage})
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req core.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.MediaID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "media_id required"})
		return
	}
	removed, err := s.store.DeleteMedia(r.Context(), req.MediaID)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.ResetResponse{MediaID: req.MediaID, Removed: removed})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": s.store.Name()})
}

// readUploadedMedia pulls the file out of the multipart form and determines
// its kind from the declared content type, falling back to the extension
// allowlist.
func readUploadedMedia(r *http.Request) (core.MediaAsset, error) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		return core.MediaAsset{}, fmt.Errorf("parse upload: %w", err)
	}
	file, header, err := r.FormFile("media")
	if err != nil {
		return core.MediaAsset{}, errors.New("missing file field 'media'")
	}
	defer file.Close()

	kind, ok := core.KindFromContentType(header.Header.Get("Content-Type"))
	if !ok {
		kind, ok = core.KindFromFilename(header.Filename)
	}
	if !ok {
		return core.MediaAsset{}, fmt.Errorf("unsupported media type %q (supported extensions: %s)",
			header.Filename, strings.Join(core.SupportedExtensions(), ", "))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return core.MediaAsset{}, fmt.Errorf("read upload: %w", err)
	}
	return core.MediaAsset{Filename: header.Filename, Kind: kind, Data: data}, nil
}

// classify maps a pipeline error to an HTTP status and the stage name shown
// to the caller.
func classify(err error) (int, string) {
	var decodeErr *core.MediaDecodeError
	var transErr *core.TranscriptionError
	var indexErr *core.IndexWriteError
	var retrErr *core.RetrievalError
	var genErr *core.GenerationError

	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest, "normalize"
	case errors.As(err, &transErr):
		return http.StatusBadGateway, "transcribe"
	case errors.As(err, &indexErr):
		return http.StatusInternalServerError, "index"
	case errors.As(err, &retrErr):
		return http.StatusNotFound, "retrieve"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "generate"
	}
	return http.StatusInternalServerError, "pipeline"
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

type kbFileResponse struct {
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	LastModified float64 `json:"last_modified"`
	Type         string  `json:"type"`
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResult struct {
	Filename       string `json:"filename"`
	ContentSnippet string `json:"content_snippet"`
}

func (s *Server) handleListKB(w http.ResponseWriter, r *http.Request) {
	files, err := s.kb.List(r.Context())
	if errors.Is(err, entities.ErrKBMissing) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"files":   []kbFileResponse{},
			"message": "Knowledge base folder not found or not a directory",
		})
		return
	}
	if err != nil {
		writeError(w, fmt.Errorf("Error listing KB files: %w", err))
		return
	}

	out := make([]kbFileResponse, len(files))
	for i, f := range files {
		out[i] = kbFileResponse{
			Name:         f.Name,
			Size:         f.Size,
			LastModified: float64(f.LastModified.UnixNano()) / float64(time.Second),
			Type:         f.Type,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": out, "count": len(out)})
}

func (s *Server) handleGetKBFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	text, err := s.kb.Read(r.Context(), name)
	if errors.Is(err, entities.ErrKBFileNotFound) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("File '%s' not found in knowledge base", name))
		return
	}
	if err != nil {
		writeError(w, fmt.Errorf("Error reading file: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": name, "content": text})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	saveToKB := false
	if v := r.URL.Query().Get("save_to_kb"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "save_to_kb must be a boolean")
			return
		}
		saveToKB = b
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "A file must be uploaded in the 'file' form field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}

	start := time.Now()
	res, err := s.ingest.Process(r.Context(), usecases.ProcessRequest{
		Filename: header.Filename,
		Content:  content,
		SaveToKB: saveToKB,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveIngest(time.Since(start))

	resp := map[string]interface{}{
		"message":    "Document processed successfully",
		"session_id": res.SessionID,
	}
	if res.SavedToKB {
		resp["saved_to_kb"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := s.query.Ask(r.Context(), usecases.AskRequest{Question: req.Question, SessionID: req.SessionID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer.Text, "session_id": answer.SessionID})
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	records, sessionID, err := s.query.AskStream(r.Context(), usecases.AskRequest{Question: req.Question, SessionID: req.SessionID})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Session-ID", sessionID)
	w.WriteHeader(http.StatusOK)

	s.metrics.ObserveStreamEnd(writeStream(w, records))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n := s.ingest.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Session cleared successfully",
		"cleared": n,
	})
}

func (s *Server) handleSearchKB(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.query.SearchKnowledgeBase(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	matches := res.Matches()
	if res.Message != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": []searchResult{}, "message": res.Message})
		return
	}

	results := make([]searchResult, len(matches))
	for i, m := range matches {
		results[i] = searchResult{Filename: m.Filename, ContentSnippet: m.Snippet}
	}
	resp := map[string]interface{}{
		"results": results,
		"count":   len(results),
		"query":   res.Query,
	}
	if failures := res.Failures(); len(failures) > 0 {
		skipped := make([]string, len(failures))
		for i, f := range failures {
			skipped[i] = f.Filename
		}
		resp["skipped"] = skipped
		s.metrics.ObserveKBSkipped(len(failures))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"embedding_ready": s.embedder.Ready(),
		"sessions":        s.sessions.Len(),
	})
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeDetail(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, entities.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("writing response")
	}
}

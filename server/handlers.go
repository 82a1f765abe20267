package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/worker"
)

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

var internalError = []byte(`{"detail":"internal error"}`)

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		s.logger(r).WithError(err).WithField("status", status).Error("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(internalError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	s.respondJSON(w, r, status, errorResponse{Detail: detail})
}

// respondFailure maps pipeline errors, which are only ever cancellation or
// shutdown, onto status codes.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, worker.ErrClosed):
		s.respondError(w, r, http.StatusServiceUnavailable, "service is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, r, http.StatusGatewayTimeout, "analysis timed out")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		s.respondError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger(r).WithError(err).Error("analysis failed")
		s.respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]string{"message": "Mental Health Backend Running"})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.opts.Version != "" {
		body["version"] = s.opts.Version
	}
	if s.states != nil {
		body["models"] = s.states.States()
	}
	s.respondJSON(w, r, http.StatusOK, body)
}

func (s *Server) analyzeText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "field 'text' is required")
		return
	}
	res, err := s.analyzer.AnalyzeText(r.Context(), req.Text)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) analyzeAudio(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	res, err := s.analyzer.AnalyzeAudio(r.Context(), data)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) multimodal(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "form field 'text' is required")
		return
	}
	res, err := s.analyzer.AnalyzeMultimodal(r.Context(), text, data)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) moodHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.analyzer.History(r.Context(), limit)
	if err != nil {
		if r.Context().Err() != nil {
			s.respondFailure(w, r, err)
			return
		}
		s.logger(r).WithError(err).Error("history query failed")
		s.respondError(w, r, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.respondJSON(w, r, http.StatusOK, entries)
}

// readUpload returns the bytes of the multipart "file" field. It writes the
// error response itself and reports false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, false
		}
		s.respondError(w, r, http.StatusUnprocessableEntity, "expected multipart/form-data: "+err.Error())
		return nil, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "form field 'file' is required")
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "read upload: "+err.Error())
		return nil, false
	}
	s.logger(r).WithFields(logrus.Fields{
		"filename": hdr.Filename,
		"bytes":    len(data),
	}).Debug("upload received")
	return data, true
}

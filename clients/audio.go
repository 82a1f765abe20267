package clients

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
)

// AnalyzeAudio uploads the recording at path to /analyze-audio.
func (h *HTTP) AnalyzeAudio(ctx context.Context, path string) (*orchestrator.Result, error) {
	req, err := h.upload(ctx, "/analyze-audio", path, nil)
	if err != nil {
		return nil, err
	}
	var out orchestrator.Result
	if err := h.do("analyze-audio", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Multimodal uploads text and the recording at path to /multimodal-analysis.
func (h *HTTP) Multimodal(ctx context.Context, text, path string) (*orchestrator.Multimodal, error) {
	req, err := h.upload(ctx, "/multimodal-analysis", path, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var out orchestrator.Multimodal
	if err := h.do("multimodal-analysis", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) upload(ctx context.Context, route, path string, fields map[string]string) (*http.Request, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+route, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

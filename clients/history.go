package clients

import (
	"context"
	"fmt"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
)

// History fetches /mood-history. A non-positive limit uses the server
// default.
func (h *HTTP) History(ctx context.Context, limit int) ([]history.Entry, error) {
	path := "/mood-history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []history.Entry
	if err := h.get(ctx, "mood-history", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health fetches /healthz.
func (h *HTTP) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := h.get(ctx, "healthz", "/healthz", &out); err != nil {
		return nil, err
	}
	return out, nil
}

package feed

import (
	"context"
	"net/http"
	"time"

	"aidSentinel/internal/model"
)

// Record is one source-native report before normalization.
type Record struct {
	Source      model.Source
	SourceType  string
	Description string
	Lat         float64
	Lon         float64
	HasCoords   bool
	Severity    string
	Raw         map[string]interface{}
}

// Source is one external telemetry feed. FetchLatest returns a full
// snapshot of what the feed currently reports; it is stateless per
// call and may fail independently of sibling sources.
type Source interface {
	Name() model.Source
	FetchLatest(ctx context.Context) ([]Record, error)
}

// Status is per-source health surfaced beside events, never as an
// error that aborts a sibling poll.
type Status struct {
	Source    model.Source `json:"source"`
	OK        bool         `json:"ok"`
	Message   string       `json:"message"`
	Events    int          `json:"events"`
	CheckedAt time.Time    `json:"checked_at"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

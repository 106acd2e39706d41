package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aidSentinel/internal/model"
)

const eonetURL = "https://eonet.gsfc.nasa.gov/api/v3/events"

// EONET polls NASA's Earth Observatory Natural Event Tracker for open
// wildfire and volcano events. Wildfires and volcanoes persist, so
// events updated within the last seven days are kept; updates within
// the last day are tagged "active", older ones "recent".
type EONET struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewEONET(timeout time.Duration) *EONET {
	return &EONET{url: eonetURL, client: newHTTPClient(timeout), now: time.Now}
}

func (e *EONET) Name() model.Source { return model.SourceEONET }

type eonetPayload struct {
	Events []eonetEvent `json:"events"`
}

type eonetEvent struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Link       string `json:"link"`
	Categories []struct {
		ID string `json:"id"`
	} `json:"categories"`
	Geometry []eonetGeometry `json:"geometry"`
}

type eonetGeometry struct {
	Date        string    `json:"date"`
	Coordinates []float64 `json:"coordinates"`
}

// FetchLatest returns recently-updated open wildfire/volcano events.
func (e *EONET) FetchLatest(ctx context.Context) ([]Record, error) {
	q := url.Values{}
	q.Set("status", "open")
	q.Set("category", "wildfires,volcanoes")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eonet fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eonet fetch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("eonet read: %w", err)
	}

	var payload eonetPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("eonet parse: %w", err)
	}

	now := e.now().UTC()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	var records []Record
	for _, ev := range payload.Events {
		latest, ok := latestGeometry(ev.Geometry)
		if !ok {
			continue
		}
		ts, err := parseISO8601(latest.Date)
		if err != nil || ts.Before(weekAgo) {
			continue
		}

		lat, lon, hasCoords := 0.0, 0.0, false
		if len(latest.Coordinates) >= 2 {
			lon, lat = latest.Coordinates[0], latest.Coordinates[1]
			hasCoords = true
		}

		severity := "recent"
		if !ts.Before(dayAgo) {
			severity = "active"
		}

		category := "wildfire"
		if len(ev.Categories) > 0 && ev.Categories[0].ID != "" {
			category = strings.ToLower(ev.Categories[0].ID)
		}

		records = append(records, Record{
			Source:      model.SourceEONET,
			SourceType:  category,
			Description: ev.Title,
			Lat:         lat,
			Lon:         lon,
			HasCoords:   hasCoords,
			Severity:    severity,
			Raw: map[string]interface{}{
				"id":          ev.ID,
				"link":        ev.Link,
				"latest_date": latest.Date,
			},
		})
	}
	return records, nil
}

func latestGeometry(geoms []eonetGeometry) (eonetGeometry, bool) {
	var best eonetGeometry
	var bestTime time.Time
	found := false
	for _, g := range geoms {
		ts, err := parseISO8601(g.Date)
		if err != nil {
			continue
		}
		if !found || ts.After(bestTime) {
			best, bestTime, found = g, ts, true
		}
	}
	return best, found
}

func parseISO8601(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02T15:04:05Z07:00", strings.Replace(value, "Z", "+00:00", 1))
}

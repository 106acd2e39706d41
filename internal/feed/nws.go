package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aidSentinel/internal/model"
)

const (
	nwsAlertsURL = "https://api.weather.gov/alerts/active"
	nwsMaxAlerts = 20
)

var nwsKeywords = []string{
	"warning", "watch", "evac", "hurricane", "tornado",
	"tropical storm", "storm surge", "severe thunderstorm", "flash flood",
}

// NWS polls NOAA's active weather alerts (US coverage). Only warnings
// and watches are significant; advisories are dropped.
type NWS struct {
	url       string
	userAgent string
	client    *http.Client
}

func NewNWS(timeout time.Duration, userAgent string) *NWS {
	if userAgent == "" {
		userAgent = "aidSentinel/1.0"
	}
	return &NWS{url: nwsAlertsURL, userAgent: userAgent, client: newHTTPClient(timeout)}
}

func (n *NWS) Name() model.Source { return model.SourceNWS }

type nwsPayload struct {
	Features []struct {
		Geometry   *nwsGeometry  `json:"geometry"`
		Properties nwsProperties `json:"properties"`
	} `json:"features"`
}

type nwsGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type nwsProperties struct {
	ID          string `json:"id"`
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Severity    string `json:"severity"`
	SenderName  string `json:"senderName"`
	AreaDesc    string `json:"areaDesc"`
}

// FetchLatest returns the currently-active significant NWS alerts,
// capped at nwsMaxAlerts.
func (n *NWS) FetchLatest(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json;q=0.9")
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nws fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nws fetch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("nws read: %w", err)
	}

	var payload nwsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("nws parse: %w", err)
	}

	var records []Record
	for _, feat := range payload.Features {
		props := feat.Properties
		severity := strings.ToLower(strings.TrimSpace(props.Severity))
		if !significantAlert(props, severity) {
			continue
		}

		lat, lon, hasCoords := alertCoordinates(feat.Geometry)

		headline := strings.TrimSpace(props.Headline)
		if headline == "" {
			headline = strings.TrimSpace(props.Event)
		}
		if headline == "" {
			headline = "NWS Alert"
		}

		sev := severity
		if sev == "" {
			sev = headline
		}

		records = append(records, Record{
			Source:      model.SourceNWS,
			SourceType:  "storm",
			Description: headline,
			Lat:         lat,
			Lon:         lon,
			HasCoords:   hasCoords,
			Severity:    sev,
			Raw: map[string]interface{}{
				"id":          props.ID,
				"sender_name": props.SenderName,
				"headline":    props.Headline,
				"severity":    props.Severity,
				"description": props.Description,
				"instruction": props.Instruction,
				"area_desc":   props.AreaDesc,
			},
		})
		if len(records) >= nwsMaxAlerts {
			break
		}
	}
	return records, nil
}

func significantAlert(props nwsProperties, severity string) bool {
	if severity == "extreme" || severity == "severe" {
		return true
	}
	hay := strings.ToLower(props.Headline + " " + props.Description + " " + props.Instruction)
	for _, k := range nwsKeywords {
		if strings.Contains(hay, k) {
			return true
		}
	}
	return false
}

// alertCoordinates extracts a point from the alert geometry; polygons
// are reduced to the centroid of the outer ring.
func alertCoordinates(geom *nwsGeometry) (float64, float64, bool) {
	if geom == nil {
		return 0, 0, false
	}
	switch geom.Type {
	case "Point":
		var coords []float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil || len(coords) < 2 {
			return 0, 0, false
		}
		return coords[1], coords[0], true
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil || len(rings) == 0 || len(rings[0]) == 0 {
			return 0, 0, false
		}
		var sumLat, sumLon float64
		for _, c := range rings[0] {
			if len(c) < 2 {
				return 0, 0, false
			}
			sumLon += c[0]
			sumLat += c[1]
		}
		n := float64(len(rings[0]))
		return sumLat / n, sumLon / n, true
	}
	return 0, 0, false
}

package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aidSentinel/internal/model"
)

const gdacsRSSURL = "https://www.gdacs.org/xml/rss.xml"

// GDACS polls the Global Disaster Alert and Coordination System RSS
// feed. Only Red and Orange alert levels are significant enough to
// emit.
type GDACS struct {
	url    string
	client *http.Client
}

func NewGDACS(timeout time.Duration) *GDACS {
	return &GDACS{url: gdacsRSSURL, client: newHTTPClient(timeout)}
}

func (g *GDACS) Name() model.Source { return model.SourceGDACS }

type gdacsRSS struct {
	Channel struct {
		Items []gdacsItem `xml:"item"`
	} `xml:"channel"`
}

type gdacsItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	AlertLevel  string `xml:"http://www.gdacs.org alertlevel"`
	EventType   string `xml:"http://www.gdacs.org eventtype"`
	Point       string `xml:"http://www.georss.org/georss point"`
}

// FetchLatest returns the current Red/Orange GDACS alerts.
func (g *GDACS) FetchLatest(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdacs fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gdacs fetch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("gdacs read: %w", err)
	}

	var rss gdacsRSS
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("gdacs parse: %w", err)
	}

	records := make([]Record, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		level := strings.TrimSpace(item.AlertLevel)
		if level != "Red" && level != "Orange" {
			continue
		}

		lat, lon, ok := parseGeoRSSPoint(item.Point)
		records = append(records, Record{
			Source:      model.SourceGDACS,
			SourceType:  strings.ToLower(strings.TrimSpace(item.EventType)),
			Description: strings.TrimSpace(item.Description),
			Lat:         lat,
			Lon:         lon,
			HasCoords:   ok,
			Severity:    level,
			Raw: map[string]interface{}{
				"alert_level": level,
				"title":       item.Title,
				"link":        item.Link,
			},
		})
	}
	return records, nil
}

func parseGeoRSSPoint(point string) (float64, float64, bool) {
	fields := strings.Fields(point)
	if len(fields) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lon, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

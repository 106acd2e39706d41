package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Source identifies a telemetry feed.
type Source string

const (
	SourceGDACS    Source = "gdacs"
	SourceEONET    Source = "eonet"
	SourceNWS      Source = "nws"
	SourceScenario Source = "scenario"
)

// DisasterType is the stable trigger bucket heterogeneous source
// labels are mapped into.
type DisasterType string

const (
	DisasterQuake DisasterType = "quake"
	DisasterFire  DisasterType = "fire"
	DisasterStorm DisasterType = "storm"
	DisasterOther DisasterType = "other"
)

// CanonicalEvent is the normalized representation of a disaster report.
// The ID is the idempotency key for the rest of the pipeline; events are
// immutable once created and never deleted.
type CanonicalEvent struct {
	ID           string                 `json:"id"`
	Source       Source                 `json:"source"`
	DisasterType DisasterType           `json:"disaster_type"`
	SourceType   string                 `json:"source_type"`
	Lat          float64                `json:"lat"`
	Lon          float64                `json:"lon"`
	Description  string                 `json:"description"`
	Severity     string                 `json:"severity,omitempty"`
	RawPayload   map[string]interface{} `json:"raw_payload,omitempty"`
}

var spaceRE = regexp.MustCompile(`\s+`)

func normText(s string) string {
	return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// EventID derives a stable identifier from the source-native fields so
// that re-polling the same report always yields the same id.
func EventID(source Source, sourceType, description string, lat, lon float64) string {
	h := sha1.New()
	h.Write([]byte(normText(string(source))))
	h.Write([]byte(normText(sourceType)))
	h.Write([]byte(normText(description)))
	fmt.Fprintf(h, "%.4f,%.4f", lat, lon)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// BucketDisasterType maps a source-native type label to a trigger bucket.
func BucketDisasterType(sourceType string) DisasterType {
	t := normText(sourceType)
	for _, k := range []string{"earthquake", "quake", "seismic"} {
		if strings.Contains(t, k) {
			return DisasterQuake
		}
	}
	if t == "eq" {
		return DisasterQuake
	}
	for _, k := range []string{"wildfire", "fire", "volcano", "thermal"} {
		if strings.Contains(t, k) {
			return DisasterFire
		}
	}
	for _, k := range []string{"hurricane", "cyclone", "typhoon", "storm", "tornado", "flood", "tsunami"} {
		if strings.Contains(t, k) {
			return DisasterStorm
		}
	}
	if t == "fl" || t == "ts" || t == "tc" {
		return DisasterStorm
	}
	return DisasterOther
}

// ValidCoordinates reports whether lat/lon are inside WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

package oracle

import (
	"fmt"
	"math"
	"strings"

	"aidSentinel/internal/model"
)

var redSeverities = map[string]bool{"red": true, "severe": true, "extreme": true, "warning": true}

// Fallback is the deterministic rule-based policy used whenever the
// external oracle is unavailable or returns an invalid verdict. It is
// a pure function of (event, policy): same inputs, same decision.
func Fallback(event model.CanonicalEvent, policy model.Policy) model.Decision {
	severity := strings.ToLower(strings.TrimSpace(event.Severity))
	redAlert := redSeverities[severity]

	deny := func(reason string) model.Decision {
		return model.Decision{
			EventID:    event.ID,
			Authorized: false,
			Amount:     0,
			Confidence: 45,
			Reasoning:  reason,
			ProducedBy: model.ProducerFallback,
		}
	}

	switch event.DisasterType {
	case model.DisasterQuake:
		magnitude := magnitudeOf(event)
		if magnitude >= policy.QuakeMinMagnitude || redAlert {
			amount := 6500.0
			if magnitude > 0 {
				amount = math.Min(policy.MaxPayout, magnitude*1000)
			}
			return model.Decision{
				EventID:    event.ID,
				Authorized: true,
				Amount:     amount,
				Confidence: 85,
				Reasoning: fmt.Sprintf(
					"Significant seismic event at %.4f, %.4f. Severity: %s. Population centers potentially affected.",
					event.Lat, event.Lon, severityOrUnknown(severity)),
				ProducedBy: model.ProducerFallback,
			}
		}

	case model.DisasterFire:
		if redAlert || severity == "active" {
			return model.Decision{
				EventID:    event.ID,
				Authorized: true,
				Amount:     5500,
				Confidence: 82,
				Reasoning: fmt.Sprintf(
					"Thermal anomaly confirmed at %.4f, %.4f. Alert level: %s. Immediate risk to infrastructure.",
					event.Lat, event.Lon, severityOrUnknown(severity)),
				ProducedBy: model.ProducerFallback,
			}
		}

	case model.DisasterStorm:
		if redAlert || containsKeyword(event, "evacuation") || containsKeyword(event, "warning") {
			return model.Decision{
				EventID:    event.ID,
				Authorized: true,
				Amount:     7200,
				Confidence: 88,
				Reasoning: fmt.Sprintf(
					"Severe weather event at %.4f, %.4f. Official warnings issued. Population at significant risk.",
					event.Lat, event.Lon),
				ProducedBy: model.ProducerFallback,
			}
		}
	}

	return deny(fmt.Sprintf(
		"Event at %.4f, %.4f does not meet catastrophic thresholds. Severity level: %s. Monitoring continues.",
		event.Lat, event.Lon, severityOrUnknown(severity)))
}

// magnitudeOf digs a numeric magnitude out of the raw payload; zero
// when absent or non-numeric.
func magnitudeOf(event model.CanonicalEvent) float64 {
	raw, ok := event.RawPayload["magnitude"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%f", &f); err == nil {
			return f
		}
	}
	return 0
}

func containsKeyword(event model.CanonicalEvent, keyword string) bool {
	if strings.Contains(strings.ToLower(event.Description), keyword) {
		return true
	}
	for _, v := range event.RawPayload {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), keyword) {
			return true
		}
	}
	return false
}

func severityOrUnknown(severity string) string {
	if severity == "" {
		return "unknown"
	}
	return severity
}

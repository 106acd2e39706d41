package oracle

import (
	"testing"

	"aidSentinel/internal/model"
)

func event(dt model.DisasterType, severity string, raw map[string]interface{}) model.CanonicalEvent {
	return model.CanonicalEvent{
		ID:           "ev-" + string(dt),
		DisasterType: dt,
		Lat:          35.0,
		Lon:          139.0,
		Description:  "test event",
		Severity:     severity,
		RawPayload:   raw,
	}
}

func TestFallbackQuake(t *testing.T) {
	policy := model.DefaultPolicy()

	cases := []struct {
		name       string
		severity   string
		raw        map[string]interface{}
		authorized bool
		amount     float64
	}{
		{"large magnitude", "orange", map[string]interface{}{"magnitude": 8.2}, true, 8200},
		{"red alert low magnitude", "red", map[string]interface{}{"magnitude": 5.5}, true, 5500},
		{"red alert no magnitude", "red", nil, true, 6500},
		{"magnitude clamped to cap", "green", map[string]interface{}{"magnitude": 12.0}, true, 10000},
		{"string magnitude", "green", map[string]interface{}{"magnitude": "7.4"}, true, 7400},
		{"minor quake", "green", map[string]interface{}{"magnitude": 4.0}, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Fallback(event(model.DisasterQuake, tc.severity, tc.raw), policy)
			if d.Authorized != tc.authorized {
				t.Fatalf("authorized = %v, want %v", d.Authorized, tc.authorized)
			}
			if d.Amount != tc.amount {
				t.Fatalf("amount = %v, want %v", d.Amount, tc.amount)
			}
			if d.ProducedBy != model.ProducerFallback {
				t.Fatalf("producer = %s, want fallback", d.ProducedBy)
			}
			if tc.authorized && d.Confidence != 85 {
				t.Fatalf("confidence = %d, want 85", d.Confidence)
			}
		})
	}
}

func TestFallbackFire(t *testing.T) {
	policy := model.DefaultPolicy()

	d := Fallback(event(model.DisasterFire, "active", nil), policy)
	if !d.Authorized || d.Amount != 5500 || d.Confidence != 82 {
		t.Fatalf("active fire: got authorized=%v amount=%v confidence=%d", d.Authorized, d.Amount, d.Confidence)
	}

	d = Fallback(event(model.DisasterFire, "red", nil), policy)
	if !d.Authorized || d.Amount != 5500 {
		t.Fatalf("red fire: got authorized=%v amount=%v", d.Authorized, d.Amount)
	}

	d = Fallback(event(model.DisasterFire, "green", nil), policy)
	if d.Authorized {
		t.Fatalf("green fire should be denied")
	}
}

func TestFallbackStorm(t *testing.T) {
	policy := model.DefaultPolicy()

	cases := []struct {
		name       string
		severity   string
		raw        map[string]interface{}
		authorized bool
	}{
		{"extreme severity", "extreme", nil, true},
		{"evacuation keyword in payload", "moderate", map[string]interface{}{"instruction": "Mandatory Evacuation ordered"}, true},
		{"warning keyword in payload", "moderate", map[string]interface{}{"headline": "Hurricane Warning"}, true},
		{"no trigger", "moderate", map[string]interface{}{"headline": "breezy afternoon"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Fallback(event(model.DisasterStorm, tc.severity, tc.raw), policy)
			if d.Authorized != tc.authorized {
				t.Fatalf("authorized = %v, want %v", d.Authorized, tc.authorized)
			}
			if tc.authorized && (d.Amount != 7200 || d.Confidence != 88) {
				t.Fatalf("storm payout: amount=%v confidence=%d", d.Amount, d.Confidence)
			}
		})
	}
}

func TestFallbackOtherDenied(t *testing.T) {
	d := Fallback(event(model.DisasterOther, "red", nil), model.DefaultPolicy())
	if d.Authorized {
		t.Fatalf("unclassified events are never auto-paid")
	}
	if d.Amount != 0 || d.Confidence != 45 {
		t.Fatalf("denial must carry amount 0 confidence 45, got %v/%d", d.Amount, d.Confidence)
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	ev := event(model.DisasterQuake, "red", map[string]interface{}{"magnitude": 7.9})
	policy := model.DefaultPolicy()

	first := Fallback(ev, policy)
	for i := 0; i < 10; i++ {
		if got := Fallback(ev, policy); got != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

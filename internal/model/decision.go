package model

// DecisionProducer records which component produced a decision.
type DecisionProducer string

const (
	ProducerOracle   DecisionProducer = "oracle"
	ProducerFallback DecisionProducer = "fallback"
)

// Decision is the strict binary authorization for one event. Created
// once at analysis time, immutable, one-to-one with CanonicalEvent.
type Decision struct {
	EventID    string           `json:"event_id"`
	Authorized bool             `json:"authorized"`
	Amount     float64          `json:"amount"`
	Confidence int              `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	ProducedBy DecisionProducer `json:"produced_by"`
}

// Policy holds the parametric thresholds the oracle and fallback
// evaluate events against.
type Policy struct {
	MaxPayout           float64 `json:"max_payout"`
	QuakeMinMagnitude   float64 `json:"quake_min_magnitude"`
	ConfidenceThreshold int     `json:"confidence_threshold"`
}

// DefaultPolicy returns the default parametric policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxPayout:           10000,
		QuakeMinMagnitude:   7.0,
		ConfidenceThreshold: 70,
	}
}

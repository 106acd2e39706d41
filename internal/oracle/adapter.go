package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"aidSentinel/internal/model"
	"aidSentinel/internal/retry"
)

const maxResponseBytes = 64 * 1024

// Adapter wraps the unreliable external reasoning service behind a
// strict binary authorization. Anything other than a well-formed
// YES/NO verdict falls through to the deterministic fallback; the
// oracle is never retried on semantics, only on transport.
type Adapter struct {
	client     ReasoningClient
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewAdapter(client ReasoningClient, maxRetries int, backoff time.Duration, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// verdictKind tags the parse result of the oracle's raw text. Parsed
// once here; loosely-typed oracle output never travels further into
// the pipeline.
type verdictKind int

const (
	verdictAuthorized verdictKind = iota
	verdictDenied
	verdictInvalid
)

type verdict struct {
	kind       verdictKind
	amount     float64
	confidence int
	reasoning  string
	raw        string
}

// Authorize produces the Decision for an event. A nil client, transport
// failure after the retry budget, or an invalid verdict all route to
// the fallback policy.
func (a *Adapter) Authorize(ctx context.Context, event model.CanonicalEvent, policy model.Policy) model.Decision {
	if a.client == nil {
		return Fallback(event, policy)
	}

	prompt := buildPrompt(event, policy)

	var text string
	err := retry.Do(ctx, a.maxRetries, a.backoff, func(ctx context.Context) error {
		var err error
		text, err = a.client.Complete(ctx, prompt)
		if err != nil {
			a.logger.Warn("oracle call failed", zap.String("event_id", event.ID), zap.Error(err))
		}
		return err
	})
	if err != nil {
		a.logger.Warn("oracle unavailable, using fallback", zap.String("event_id", event.ID), zap.Error(err))
		return Fallback(event, policy)
	}

	v := parseVerdict(text, policy)
	switch v.kind {
	case verdictAuthorized:
		return model.Decision{
			EventID:    event.ID,
			Authorized: true,
			Amount:     v.amount,
			Confidence: v.confidence,
			Reasoning:  v.reasoning,
			ProducedBy: model.ProducerOracle,
		}
	case verdictDenied:
		return model.Decision{
			EventID:    event.ID,
			Authorized: false,
			Amount:     0,
			Confidence: v.confidence,
			Reasoning:  v.reasoning,
			ProducedBy: model.ProducerOracle,
		}
	default:
		a.logger.Warn("oracle verdict invalid, using fallback",
			zap.String("event_id", event.ID),
			zap.String("raw", truncate(v.raw, 200)),
		)
		return Fallback(event, policy)
	}
}

func buildPrompt(event model.CanonicalEvent, policy model.Policy) string {
	raw, err := json.Marshal(event.RawPayload)
	if err != nil {
		raw = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("ROLE: You are the Chief Risk Officer for an autonomous disaster-aid fund.\n\n")
	b.WriteString("INPUT DATA:\n")
	fmt.Fprintf(&b, "- Type: %s\n", event.DisasterType)
	fmt.Fprintf(&b, "- Raw Telemetry: %s\n", raw)
	fmt.Fprintf(&b, "- Location: %.4f, %.4f\n", event.Lat, event.Lon)
	fmt.Fprintf(&b, "- Severity: %s\n\n", event.Severity)
	b.WriteString("TASK: Decide whether this event is catastrophic, near a populated area, and well-sourced enough for an autonomous payout.\n\n")
	b.WriteString("OUTPUT FORMAT (JSON ONLY):\n")
	fmt.Fprintf(&b, `{"authorization": "YES" or "NO", "confidence_score": 0-100, "reasoning": "one sentence", "payout_amount": "amount up to %.0f"}`, policy.MaxPayout)
	b.WriteString("\n\nCRITICAL: the authorization field must be EXACTLY \"YES\" or \"NO\". Only \"YES\" authorizes fund release.")
	return b.String()
}

type oracleVerdictPayload struct {
	Authorization   string          `json:"authorization"`
	ConfidenceScore json.RawMessage `json:"confidence_score"`
	Reasoning       string          `json:"reasoning"`
	PayoutAmount    json.RawMessage `json:"payout_amount"`
}

// parseVerdict enforces the two-legal-literal contract. A response
// exceeding the size budget, a missing field, a value other than
// YES/NO, or a non-numeric/negative amount yields verdictInvalid.
func parseVerdict(text string, policy model.Policy) verdict {
	if len(text) > maxResponseBytes {
		return verdict{kind: verdictInvalid, raw: "response exceeds size budget"}
	}

	cleaned := stripFences(text)

	var payload oracleVerdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return verdict{kind: verdictInvalid, raw: text}
	}

	auth := strings.ToUpper(strings.TrimSpace(payload.Authorization))
	if auth != "YES" && auth != "NO" {
		return verdict{kind: verdictInvalid, raw: text}
	}

	confidence := parseIntField(payload.ConfidenceScore)
	if confidence < 0 || confidence > 100 {
		confidence = 0
	}

	reasoning := strings.TrimSpace(payload.Reasoning)
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	if auth == "NO" {
		return verdict{kind: verdictDenied, confidence: confidence, reasoning: reasoning}
	}

	amount, ok := parseAmountField(payload.PayoutAmount)
	if !ok || amount < 0 {
		return verdict{kind: verdictInvalid, raw: text}
	}
	if amount > policy.MaxPayout {
		amount = policy.MaxPayout
	}

	return verdict{kind: verdictAuthorized, amount: amount, confidence: confidence, reasoning: reasoning}
}

// stripFences removes markdown code fences the model tends to wrap
// JSON in.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseIntField(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func parseAmountField(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aidSentinel/internal/model"
)

// Normalizer maps source-native records into canonical events. It is
// stateless per call and always emits everything currently reported by
// the feed snapshot; deduplication is owned by the coordinator.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Poll fetches one snapshot from the source and normalizes it.
// Malformed records are dropped with a logged reason, never propagated
// as events. The returned Status captures per-source health.
func (n *Normalizer) Poll(ctx context.Context, source Source) ([]model.CanonicalEvent, Status) {
	status := Status{Source: source.Name(), CheckedAt: time.Now().UTC()}

	records, err := source.FetchLatest(ctx)
	if err != nil {
		n.logger.Warn("feed poll failed",
			zap.String("source", string(source.Name())),
			zap.Error(err),
		)
		status.OK = false
		status.Message = fmt.Sprintf("%s: %v", source.Name(), err)
		return nil, status
	}

	events := n.Normalize(records)
	status.OK = true
	status.Events = len(events)
	status.Message = fmt.Sprintf("%s: %d events", source.Name(), len(events))
	return events, status
}

// Normalize converts records to canonical events, dropping malformed
// ones.
func (n *Normalizer) Normalize(records []Record) []model.CanonicalEvent {
	events := make([]model.CanonicalEvent, 0, len(records))
	for _, rec := range records {
		ev, err := normalizeRecord(rec)
		if err != nil {
			n.logger.Warn("dropping malformed record",
				zap.String("source", string(rec.Source)),
				zap.String("description", rec.Description),
				zap.Error(err),
			)
			continue
		}
		events = append(events, ev)
	}
	return events
}

func normalizeRecord(rec Record) (model.CanonicalEvent, error) {
	if !rec.HasCoords {
		return model.CanonicalEvent{}, fmt.Errorf("missing coordinates")
	}
	if !model.ValidCoordinates(rec.Lat, rec.Lon) {
		return model.CanonicalEvent{}, fmt.Errorf("coordinates out of range: %.4f,%.4f", rec.Lat, rec.Lon)
	}
	if rec.Description == "" {
		return model.CanonicalEvent{}, fmt.Errorf("empty description")
	}

	return model.CanonicalEvent{
		ID:           model.EventID(rec.Source, rec.SourceType, rec.Description, rec.Lat, rec.Lon),
		Source:       rec.Source,
		DisasterType: model.BucketDisasterType(rec.SourceType),
		SourceType:   rec.SourceType,
		Lat:          rec.Lat,
		Lon:          rec.Lon,
		Description:  rec.Description,
		Severity:     rec.Severity,
		RawPayload:   rec.Raw,
	}, nil
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"aidSentinel/internal/feed"
	"aidSentinel/internal/model"
)

// Poller drives the polling loop: each source on its own ticker, fully
// in parallel, sharing only the append-only seen-id set. A failure
// polling one source never blocks or fails another.
type Poller struct {
	sources     []feed.Source
	normalizer  *feed.Normalizer
	coordinator *Coordinator
	interval    time.Duration
	logger      *zap.Logger

	seen *seenSet

	mu     sync.RWMutex
	health map[model.Source]feed.Status
}

func NewPoller(sources []feed.Source, normalizer *feed.Normalizer, coordinator *Coordinator, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		sources:     sources,
		normalizer:  normalizer,
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
		seen:        newSeenSet(),
		health:      make(map[model.Source]feed.Status),
	}
}

// Run polls until the context is cancelled. Each source polls once
// immediately, then on its interval.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, source := range p.sources {
		wg.Add(1)
		go func(src feed.Source) {
			defer wg.Done()
			p.pollLoop(ctx, src)
		}(source)
	}
	wg.Wait()
}

func (p *Poller) pollLoop(ctx context.Context, source feed.Source) {
	p.pollOnce(ctx, source)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, source)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, source feed.Source) {
	events, status := p.normalizer.Poll(ctx, source)

	p.mu.Lock()
	p.health[source.Name()] = status
	p.mu.Unlock()

	if !status.OK {
		p.coordinator.metrics.PollFailures.WithLabelValues(string(source.Name())).Inc()
		return
	}

	for _, event := range events {
		// The normalizer always emits the full snapshot; dedup is
		// centralized here.
		if !p.seen.add(event.ID) {
			continue
		}
		p.coordinator.metrics.EventsIngested.WithLabelValues(string(event.Source)).Inc()
		p.logger.Info("new event detected",
			zap.String("event_id", event.ID),
			zap.String("source", string(event.Source)),
			zap.String("description", event.Description),
		)

		res := p.coordinator.Process(ctx, event)
		if res.Err != nil {
			p.logger.Warn("pipeline finished with error",
				zap.String("event_id", event.ID),
				zap.String("state", string(res.State)),
				zap.Error(res.Err),
			)
		}
	}
}

// SourceStatus returns the latest per-source health snapshot.
func (p *Poller) SourceStatus() map[model.Source]feed.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[model.Source]feed.Status, len(p.health))
	for k, v := range p.health {
		out[k] = v
	}
	return out
}

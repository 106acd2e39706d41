package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aidSentinel/internal/directory"
	"aidSentinel/internal/executor"
	"aidSentinel/internal/ledger"
	"aidSentinel/internal/model"
)

// Authorizer produces the binary payout decision for an event.
type Authorizer interface {
	Authorize(ctx context.Context, event model.CanonicalEvent, policy model.Policy) model.Decision
}

// Notifier publishes terminal outcomes to collaborators. Publish
// failures never fail the pipeline.
type Notifier interface {
	PublishOutcome(ctx context.Context, entry model.HistoryEntry) error
}

// Result is the outcome of running one event through the pipeline.
type Result struct {
	Event     model.CanonicalEvent `json:"event"`
	State     model.EventState     `json:"state"`
	Decision  *model.Decision      `json:"decision,omitempty"`
	Recipient *model.Recipient     `json:"recipient,omitempty"`
	Transfer  *model.Transfer      `json:"transfer,omitempty"`
	Err       error                `json:"-"`
	Error     string               `json:"error,omitempty"`
}

// Config holds coordinator settings.
type Config struct {
	Policy         model.Policy
	InitialBalance float64
}

// Coordinator sequences the pipeline for each event and enforces
// at-most-one-payout-per-event. A single coordinator owns all decision
// state.
type Coordinator struct {
	cfg       Config
	store     ledger.Store
	oracle    Authorizer
	directory *directory.Directory
	executor  executor.Executor
	notifier  Notifier
	metrics   *Metrics
	logger    *zap.Logger
	scenarios *ScenarioSet

	claims *claimTable
	// transferMu serializes balance derivation and transfer execution
	// so two near-simultaneous payouts cannot both read a stale
	// balance.
	transferMu chan struct{}
}

func NewCoordinator(
	cfg Config,
	store ledger.Store,
	authorizer Authorizer,
	dir *directory.Directory,
	exec executor.Executor,
	logger *zap.Logger,
	opts ...Option,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		cfg:        cfg,
		store:      store,
		oracle:     authorizer,
		directory:  dir,
		executor:   exec,
		logger:     logger,
		scenarios:  DefaultScenarios(),
		claims:     newClaimTable(),
		transferMu: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

func WithNotifier(n Notifier) Option      { return func(c *Coordinator) { c.notifier = n } }
func WithMetrics(m *Metrics) Option       { return func(c *Coordinator) { c.metrics = m } }
func WithScenarios(s *ScenarioSet) Option { return func(c *Coordinator) { c.scenarios = s } }

// Process runs one event to a terminal state. The caller may abandon
// the request by cancelling ctx; the pipeline still completes
// internally so no event is ever left mid-transition.
func (c *Coordinator) Process(ctx context.Context, event model.CanonicalEvent) Result {
	done := make(chan Result, 1)
	go func() {
		done <- c.process(context.WithoutCancel(ctx), event)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{Event: event, Err: ctx.Err(), Error: ctx.Err().Error()}
	}
}

func (c *Coordinator) process(ctx context.Context, event model.CanonicalEvent) Result {
	if err := c.store.PutEvent(ctx, event); err != nil {
		return c.fail(ctx, event, nil, fmt.Errorf("persist event: %w", err))
	}

	if !c.claims.acquire(event.ID) {
		state, _, _ := c.store.EventState(ctx, event.ID)
		return Result{Event: event, State: state, Err: model.ErrEventInFlight, Error: model.ErrEventInFlight.Error()}
	}
	defer c.claims.release(event.ID)

	// A duplicate that lost the race earlier may have already driven
	// this event to a terminal state.
	if state, ok, err := c.store.EventState(ctx, event.ID); err == nil && ok && state.Terminal() {
		return c.terminalResult(ctx, event, state)
	}

	decision := c.oracle.Authorize(ctx, event, c.cfg.Policy)
	if err := c.store.PutDecision(ctx, decision); err != nil {
		return c.fail(ctx, event, &decision, fmt.Errorf("persist decision: %w", err))
	}
	if err := c.transition(ctx, event.ID, model.StateAnalyzed); err != nil {
		return c.fail(ctx, event, &decision, err)
	}
	c.metrics.Decisions.WithLabelValues(outcomeLabel(decision.Authorized), string(decision.ProducedBy)).Inc()

	if !decision.Authorized {
		if err := c.transition(ctx, event.ID, model.StateDenied); err != nil {
			return c.fail(ctx, event, &decision, err)
		}
		c.logger.Info("event denied",
			zap.String("event_id", event.ID),
			zap.String("produced_by", string(decision.ProducedBy)),
			zap.String("reasoning", decision.Reasoning),
		)
		res := Result{Event: event, State: model.StateDenied, Decision: &decision}
		c.publish(ctx, res)
		return res
	}

	if err := c.transition(ctx, event.ID, model.StateSelecting); err != nil {
		return c.fail(ctx, event, &decision, err)
	}

	recipient, ok := c.directory.Select(event.DisasterType, event.Lat, event.Lon)
	if !ok {
		err := fmt.Errorf("%w: disaster type %s at %.4f,%.4f", model.ErrNoEligibleRecipient, event.DisasterType, event.Lat, event.Lon)
		c.logger.Error("no eligible recipient, manual follow-up required",
			zap.String("event_id", event.ID),
			zap.String("disaster_type", string(event.DisasterType)),
			zap.Float64("lat", event.Lat),
			zap.Float64("lon", event.Lon),
		)
		return c.fail(ctx, event, &decision, err)
	}
	if err := c.transition(ctx, event.ID, model.StateSelected); err != nil {
		return c.fail(ctx, event, &decision, err)
	}

	if err := c.transition(ctx, event.ID, model.StateValidating); err != nil {
		return c.fail(ctx, event, &decision, err)
	}
	// Fresh read on purpose: closes the window where a recipient is
	// de-verified between selection and payout. A failure here means
	// corrupted reference data and is surfaced loudly.
	if err := c.directory.ValidateAddress(recipient.ID); err != nil {
		c.logger.Error("address validation failed, recipient directory may be corrupted",
			zap.String("event_id", event.ID),
			zap.String("recipient_id", recipient.ID),
			zap.Error(err),
		)
		return c.fail(ctx, event, &decision, err)
	}
	if err := c.transition(ctx, event.ID, model.StateValidated); err != nil {
		return c.fail(ctx, event, &decision, err)
	}

	transfer, err := c.executeTransfer(ctx, event, decision, recipient)
	if err != nil {
		res := c.fail(ctx, event, &decision, err)
		res.Recipient = &recipient
		res.Transfer = transfer
		return res
	}

	c.metrics.Payouts.Inc()
	c.metrics.PayoutAmount.Add(transfer.Amount)
	c.logger.Info("payout complete",
		zap.String("event_id", event.ID),
		zap.String("recipient", recipient.Name),
		zap.Float64("amount", transfer.Amount),
		zap.String("tx", transfer.TxReference),
	)

	res := Result{
		Event:     event,
		State:     model.StateTransferred,
		Decision:  &decision,
		Recipient: &recipient,
		Transfer:  transfer,
	}
	c.publish(ctx, res)
	return res
}

// executeTransfer performs the Transferring leg under the global
// transfer lock: the balance is derived from confirmed transfers while
// the lock is held, so concurrent payouts cannot overspend the vault.
func (c *Coordinator) executeTransfer(ctx context.Context, event model.CanonicalEvent, decision model.Decision, recipient model.Recipient) (*model.Transfer, error) {
	select {
	case c.transferMu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.transferMu }()

	confirmed, err := c.store.ConfirmedTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive balance: %w", err)
	}
	balance := c.cfg.InitialBalance - confirmed
	c.metrics.VaultBalance.Set(balance)
	if decision.Amount > balance {
		return nil, fmt.Errorf("%w: amount %.2f exceeds vault balance %.2f", model.ErrTransferTransport, decision.Amount, balance)
	}

	if err := c.transition(ctx, event.ID, model.StateTransferring); err != nil {
		return nil, err
	}

	transfer := model.Transfer{
		EventID:     event.ID,
		RecipientID: recipient.ID,
		Amount:      decision.Amount,
		Reason:      decision.Reasoning,
		Timestamp:   time.Now().UTC(),
		Status:      model.TransferPending,
	}
	if err := c.store.PutTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("persist transfer: %w", err)
	}

	receipt, err := c.executor.Execute(ctx, recipient, decision.Amount, decision.Reasoning)
	if err != nil {
		if uerr := c.store.UpdateTransferStatus(ctx, event.ID, model.TransferFailed, ""); uerr != nil {
			c.logger.Error("mark transfer failed", zap.String("event_id", event.ID), zap.Error(uerr))
		}
		transfer.Status = model.TransferFailed
		return &transfer, err
	}

	if err := c.store.UpdateTransferStatus(ctx, event.ID, model.TransferConfirmed, receipt.Reference); err != nil {
		return &transfer, fmt.Errorf("confirm transfer: %w", err)
	}
	if err := c.transition(ctx, event.ID, model.StateTransferred); err != nil {
		return &transfer, err
	}

	transfer.Status = model.TransferConfirmed
	transfer.TxReference = receipt.Reference
	c.metrics.VaultBalance.Set(balance - transfer.Amount)
	return &transfer, nil
}

// TriggerAnalysis runs the pipeline on-demand for a known event id.
func (c *Coordinator) TriggerAnalysis(ctx context.Context, eventID string) (Result, error) {
	event, ok, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("event %s: %w", eventID, model.ErrUnknownEvent)
	}
	return c.Process(ctx, event), nil
}

// Simulate injects a canned scenario event, bypassing the feed
// normalizer but running the identical pipeline.
func (c *Coordinator) Simulate(ctx context.Context, scenarioID string) (Result, error) {
	event, ok := c.scenarios.Event(scenarioID)
	if !ok {
		return Result{}, fmt.Errorf("unknown scenario %q", scenarioID)
	}
	return c.Process(ctx, event), nil
}

// Statistics derives dashboard numbers from the ledger.
func (c *Coordinator) Statistics(ctx context.Context) (model.Statistics, error) {
	return c.store.Statistics(ctx, c.cfg.InitialBalance)
}

// History returns past events with their terminal outcomes, newest
// first.
func (c *Coordinator) History(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	return c.store.History(ctx, limit)
}

// ListEligibleRecipients exposes the directory selection logic so
// displayed eligibility always matches actual payout behavior.
func (c *Coordinator) ListEligibleRecipients(dt model.DisasterType, lat, lon float64) []directory.Candidate {
	return c.directory.Eligible(dt, lat, lon)
}

// Policy returns the active parametric policy.
func (c *Coordinator) Policy() model.Policy { return c.cfg.Policy }

// ReconcileInflight resolves transfers left pending by a crash:
// references confirmed by the settlement client become confirmed
// transfers, everything else is marked failed.
func (c *Coordinator) ReconcileInflight(ctx context.Context) error {
	inflight, err := c.store.InflightTransfers(ctx)
	if err != nil {
		return fmt.Errorf("load inflight transfers: %w", err)
	}

	for _, t := range inflight {
		confirmed := false
		if t.TxReference != "" {
			ok, err := c.executor.ConfirmReference(ctx, t.TxReference)
			if err != nil {
				c.logger.Warn("reconciliation check failed",
					zap.String("event_id", t.EventID),
					zap.String("tx", t.TxReference),
					zap.Error(err),
				)
			}
			confirmed = ok && err == nil
		}

		status := model.TransferFailed
		state := model.StateFailed
		if confirmed {
			status = model.TransferConfirmed
			state = model.StateTransferred
		}
		if err := c.store.UpdateTransferStatus(ctx, t.EventID, status, ""); err != nil {
			return err
		}
		if err := c.store.SetEventState(ctx, t.EventID, state); err != nil {
			return err
		}
		c.logger.Info("inflight transfer reconciled",
			zap.String("event_id", t.EventID),
			zap.String("status", string(status)),
		)
	}
	return nil
}

func (c *Coordinator) transition(ctx context.Context, eventID string, state model.EventState) error {
	if err := c.store.SetEventState(ctx, eventID, state); err != nil {
		return fmt.Errorf("transition to %s: %w", state, err)
	}
	return nil
}

// fail drives the event to the Failed terminal state, preserving the
// error text for history.
func (c *Coordinator) fail(ctx context.Context, event model.CanonicalEvent, decision *model.Decision, err error) Result {
	if serr := c.store.SetEventState(ctx, event.ID, model.StateFailed); serr != nil && !errors.Is(serr, model.ErrUnknownEvent) {
		c.logger.Error("mark event failed", zap.String("event_id", event.ID), zap.Error(serr))
	}
	c.logger.Warn("event failed", zap.String("event_id", event.ID), zap.Error(err))

	res := Result{Event: event, State: model.StateFailed, Decision: decision, Err: err, Error: err.Error()}
	c.publish(ctx, res)
	return res
}

// terminalResult rebuilds the outcome of an already-terminal event
// from the ledger.
func (c *Coordinator) terminalResult(ctx context.Context, event model.CanonicalEvent, state model.EventState) Result {
	res := Result{Event: event, State: state, Err: model.ErrAlreadyTerminal, Error: model.ErrAlreadyTerminal.Error()}
	if d, err := c.store.GetDecision(ctx, event.ID); err == nil {
		res.Decision = d
	}
	if t, err := c.store.GetTransfer(ctx, event.ID); err == nil {
		res.Transfer = t
	}
	return res
}

func (c *Coordinator) publish(ctx context.Context, res Result) {
	if c.notifier == nil {
		return
	}
	entry := model.HistoryEntry{
		Event:    res.Event,
		State:    res.State,
		Decision: res.Decision,
		Transfer: res.Transfer,
	}
	if err := c.notifier.PublishOutcome(ctx, entry); err != nil {
		c.logger.Warn("outcome publish failed", zap.String("event_id", res.Event.ID), zap.Error(err))
	}
}

func outcomeLabel(authorized bool) string {
	if authorized {
		return "authorized"
	}
	return "denied"
}

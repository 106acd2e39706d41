package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aidSentinel/internal/directory"
	"aidSentinel/internal/executor"
	"aidSentinel/internal/ledger"
	"aidSentinel/internal/model"
	"aidSentinel/internal/oracle"
)

func testDirectory() *directory.Directory {
	return directory.NewFromRecipients([]model.Recipient{
		{
			ID:            "jp-relief",
			Name:          "Japan Relief",
			Address:       "0x1111bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6001",
			Verified:      true,
			DisasterTypes: []string{"quake"},
			Regions:       []string{"asia_pacific"},
		},
		{
			ID:            "global",
			Name:          "Global Coalition",
			Address:       "0x2222bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6002",
			Verified:      true,
			DisasterTypes: []string{"quake", "fire", "storm"},
			Regions:       []string{model.RegionGlobal},
		},
	}, nil)
}

type harness struct {
	coordinator *Coordinator
	store       *ledger.MemoryStore
	executor    *executor.MockExecutor
}

func newHarness(t *testing.T, initialBalance float64) *harness {
	t.Helper()
	store := ledger.NewMemoryStore()
	exec := executor.NewMockExecutor(10000)
	adapter := oracle.NewAdapter(nil, 0, time.Millisecond, nil)
	c := NewCoordinator(
		Config{Policy: model.DefaultPolicy(), InitialBalance: initialBalance},
		store, adapter, testDirectory(), exec, nil,
	)
	return &harness{coordinator: c, store: store, executor: exec}
}

func quakeEvent() model.CanonicalEvent {
	return model.CanonicalEvent{
		ID:           model.EventID(model.SourceScenario, "earthquake", "Magnitude 8.2 earthquake in Tokyo", 35.6764, 139.65),
		Source:       model.SourceScenario,
		DisasterType: model.DisasterQuake,
		SourceType:   "earthquake",
		Lat:          35.6764,
		Lon:          139.65,
		Description:  "Magnitude 8.2 earthquake in Tokyo",
		Severity:     "red",
		RawPayload:   map[string]interface{}{"magnitude": 8.2},
	}
}

func TestProcessAuthorizedPayout(t *testing.T) {
	h := newHarness(t, 10000)
	ctx := context.Background()

	res := h.coordinator.Process(ctx, quakeEvent())
	if res.Err != nil {
		t.Fatalf("process: %v", res.Err)
	}
	if res.State != model.StateTransferred {
		t.Fatalf("state = %s, want transferred", res.State)
	}
	if res.Recipient == nil || res.Recipient.ID != "jp-relief" {
		t.Fatalf("recipient = %+v, want jp-relief", res.Recipient)
	}
	if res.Transfer == nil || res.Transfer.Status != model.TransferConfirmed {
		t.Fatalf("transfer = %+v", res.Transfer)
	}
	if res.Transfer.Amount != 8200 {
		t.Fatalf("amount = %v, want 8200", res.Transfer.Amount)
	}
	if res.Transfer.TxReference == "" {
		t.Fatalf("confirmed transfer must carry a settlement reference")
	}

	stats, err := h.coordinator.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CurrentBalance != 1800 {
		t.Fatalf("balance = %v, want 1800", stats.CurrentBalance)
	}
}

func TestProcessDenied(t *testing.T) {
	h := newHarness(t, 10000)

	ev := quakeEvent()
	ev.ID = model.EventID(model.SourceScenario, "earthquake", "minor tremor", 35.0, 139.0)
	ev.Description = "minor tremor"
	ev.Severity = "green"
	ev.RawPayload = map[string]interface{}{"magnitude": 4.1}

	res := h.coordinator.Process(context.Background(), ev)
	if res.Err != nil {
		t.Fatalf("process: %v", res.Err)
	}
	if res.State != model.StateDenied {
		t.Fatalf("state = %s, want denied", res.State)
	}
	if res.Decision == nil || res.Decision.Authorized || res.Decision.Amount != 0 {
		t.Fatalf("decision = %+v", res.Decision)
	}
	if res.Transfer != nil {
		t.Fatalf("denied event must never produce a transfer")
	}
}

func TestProcessNoEligibleRecipient(t *testing.T) {
	// An authorized quake with a directory that only covers fires.
	dir := directory.NewFromRecipients([]model.Recipient{
		{
			ID:            "fire-only",
			Address:       "0x1111bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6001",
			Verified:      true,
			DisasterTypes: []string{"fire"},
			Regions:       []string{model.RegionGlobal},
		},
	}, nil)
	store := ledger.NewMemoryStore()
	c := NewCoordinator(
		Config{Policy: model.DefaultPolicy(), InitialBalance: 10000},
		store, oracle.NewAdapter(nil, 0, time.Millisecond, nil), dir, executor.NewMockExecutor(10000), nil,
	)

	res := c.Process(context.Background(), quakeEvent())
	if !errors.Is(res.Err, model.ErrNoEligibleRecipient) {
		t.Fatalf("expected ErrNoEligibleRecipient, got %v", res.Err)
	}
	if res.State != model.StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}

	stats, err := c.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CurrentBalance != 10000 {
		t.Fatalf("failed payout must not move the balance, got %v", stats.CurrentBalance)
	}
}

func TestProcessTransportFailure(t *testing.T) {
	h := newHarness(t, 10000)
	h.executor.FailNext()

	res := h.coordinator.Process(context.Background(), quakeEvent())
	if !errors.Is(res.Err, model.ErrTransferTransport) {
		t.Fatalf("expected transport error, got %v", res.Err)
	}
	if res.State != model.StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}
	if res.Transfer == nil || res.Transfer.Status != model.TransferFailed {
		t.Fatalf("transfer = %+v, want failed record", res.Transfer)
	}

	stats, err := h.coordinator.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CurrentBalance != 10000 {
		t.Fatalf("failed transfer must not reduce the balance, got %v", stats.CurrentBalance)
	}
}

func TestProcessInsufficientBalance(t *testing.T) {
	h := newHarness(t, 5000)

	// Fallback authorizes 8200 for this quake; the vault only holds
	// 5000.
	res := h.coordinator.Process(context.Background(), quakeEvent())
	if !errors.Is(res.Err, model.ErrTransferTransport) {
		t.Fatalf("expected balance failure, got %v", res.Err)
	}
	if res.State != model.StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}

	stats, err := h.coordinator.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CurrentBalance != 5000 {
		t.Fatalf("balance = %v, want untouched 5000", stats.CurrentBalance)
	}
}

func TestProcessDuplicateIsIdempotent(t *testing.T) {
	h := newHarness(t, 10000)
	ctx := context.Background()
	ev := quakeEvent()

	first := h.coordinator.Process(ctx, ev)
	if first.State != model.StateTransferred {
		t.Fatalf("first run: %s (%v)", first.State, first.Err)
	}

	second := h.coordinator.Process(ctx, ev)
	if !errors.Is(second.Err, model.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", second.Err)
	}
	if second.State != model.StateTransferred {
		t.Fatalf("replay state = %s", second.State)
	}
	if second.Transfer == nil || second.Transfer.TxReference != first.Transfer.TxReference {
		t.Fatalf("replay must surface the original transfer, got %+v", second.Transfer)
	}

	stats, err := h.coordinator.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.PayoutsCount != 1 {
		t.Fatalf("exactly one payout expected, got %d", stats.PayoutsCount)
	}
}

func TestProcessConcurrentDuplicates(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	ev := quakeEvent()

	const n = 8
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.coordinator.Process(ctx, ev)
		}(i)
	}
	wg.Wait()

	var transferred int
	for _, res := range results {
		if res.Err == nil && res.State == model.StateTransferred {
			transferred++
		} else if !errors.Is(res.Err, model.ErrEventInFlight) && !errors.Is(res.Err, model.ErrAlreadyTerminal) {
			t.Fatalf("unexpected result: state=%s err=%v", res.State, res.Err)
		}
	}
	if transferred != 1 {
		t.Fatalf("exactly one racer may pay out, got %d", transferred)
	}

	stats, err := h.coordinator.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.PayoutsCount != 1 || stats.TotalPayoutAmount != 8200 {
		t.Fatalf("payouts = %d total = %v", stats.PayoutsCount, stats.TotalPayoutAmount)
	}
}

func TestSimulateScenarios(t *testing.T) {
	h := newHarness(t, 50000)
	ctx := context.Background()

	cases := []struct {
		scenario string
		state    model.EventState
	}{
		{"quake", model.StateTransferred},
		{"fire", model.StateTransferred},
		{"storm", model.StateTransferred},
		{"minor", model.StateDenied},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			res, err := h.coordinator.Simulate(ctx, tc.scenario)
			if err != nil {
				t.Fatalf("simulate: %v", err)
			}
			if res.State != tc.state {
				t.Fatalf("state = %s, want %s (err: %v)", res.State, tc.state, res.Err)
			}
		})
	}

	if _, err := h.coordinator.Simulate(ctx, "no-such-scenario"); err == nil {
		t.Fatalf("unknown scenario must error")
	}
}

func TestTriggerAnalysisUnknownEvent(t *testing.T) {
	h := newHarness(t, 10000)
	_, err := h.coordinator.TriggerAnalysis(context.Background(), "does-not-exist")
	if !errors.Is(err, model.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestReconcileInflight(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	exec := executor.NewMockExecutor(10000)

	// One transfer confirmed by the settlement layer, one that never
	// made it out.
	receipt, err := exec.Execute(ctx, model.Recipient{Address: "0x1111bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6001"}, 5000, "landed")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, ev := range []model.CanonicalEvent{
		{ID: "landed", DisasterType: model.DisasterQuake, Description: "x", Lat: 35, Lon: 139},
		{ID: "lost", DisasterType: model.DisasterQuake, Description: "y", Lat: 36, Lon: 140},
	} {
		if err := store.PutEvent(ctx, ev); err != nil {
			t.Fatalf("put event: %v", err)
		}
		if err := store.SetEventState(ctx, ev.ID, model.StateTransferring); err != nil {
			t.Fatalf("set state: %v", err)
		}
	}
	if err := store.PutTransfer(ctx, model.Transfer{EventID: "landed", Amount: 5000, TxReference: receipt.Reference, Status: model.TransferPending}); err != nil {
		t.Fatalf("put transfer: %v", err)
	}
	if err := store.PutTransfer(ctx, model.Transfer{EventID: "lost", Amount: 3000, Status: model.TransferPending}); err != nil {
		t.Fatalf("put transfer: %v", err)
	}

	c := NewCoordinator(
		Config{Policy: model.DefaultPolicy(), InitialBalance: 10000},
		store, oracle.NewAdapter(nil, 0, time.Millisecond, nil), testDirectory(), exec, nil,
	)
	if err := c.ReconcileInflight(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	landed, err := store.GetTransfer(ctx, "landed")
	if err != nil || landed == nil || landed.Status != model.TransferConfirmed {
		t.Fatalf("landed transfer = %+v err = %v", landed, err)
	}
	state, _, _ := store.EventState(ctx, "landed")
	if state != model.StateTransferred {
		t.Fatalf("landed state = %s", state)
	}

	lost, err := store.GetTransfer(ctx, "lost")
	if err != nil || lost == nil || lost.Status != model.TransferFailed {
		t.Fatalf("lost transfer = %+v err = %v", lost, err)
	}
	state, _, _ = store.EventState(ctx, "lost")
	if state != model.StateFailed {
		t.Fatalf("lost state = %s", state)
	}
}

func TestProcessCallerCancellation(t *testing.T) {
	h := newHarness(t, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := quakeEvent()
	res := h.coordinator.Process(ctx, ev)
	if res.Err == nil {
		t.Fatalf("cancelled caller should get an error result")
	}

	// The pipeline keeps running internally; the event must still reach
	// a terminal state.
	deadline := time.After(2 * time.Second)
	for {
		state, ok, err := h.store.EventState(context.Background(), ev.ID)
		if err != nil {
			t.Fatalf("event state: %v", err)
		}
		if ok && state.Terminal() {
			if state != model.StateTransferred {
				t.Fatalf("terminal state = %s, want transferred", state)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("event never reached a terminal state, last state %s", state)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

package ledger

import (
	"context"

	"aidSentinel/internal/model"
)

// Store is the durable, append-friendly record of every event,
// decision, and transfer. It is the single source of truth for the
// vault balance; no other component keeps an independent counter.
type Store interface {
	PutEvent(ctx context.Context, event model.CanonicalEvent) error
	GetEvent(ctx context.Context, eventID string) (model.CanonicalEvent, bool, error)
	EventState(ctx context.Context, eventID string) (model.EventState, bool, error)
	SetEventState(ctx context.Context, eventID string, state model.EventState) error

	PutDecision(ctx context.Context, decision model.Decision) error
	GetDecision(ctx context.Context, eventID string) (*model.Decision, error)

	PutTransfer(ctx context.Context, transfer model.Transfer) error
	UpdateTransferStatus(ctx context.Context, eventID string, status model.TransferStatus, txReference string) error
	GetTransfer(ctx context.Context, eventID string) (*model.Transfer, error)
	InflightTransfers(ctx context.Context) ([]model.Transfer, error)

	// ConfirmedTotal sums confirmed transfer amounts; the current
	// balance is always derived as initial minus this, never kept as a
	// mutable counter.
	ConfirmedTotal(ctx context.Context) (float64, error)

	Statistics(ctx context.Context, initialBalance float64) (model.Statistics, error)
	History(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

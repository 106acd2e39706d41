package model

import "time"

// TransferStatus tracks the lifecycle of a payout transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

// Transfer records one payout attempt. At most one non-failed Transfer
// may exist per event id.
type Transfer struct {
	EventID     string         `json:"event_id"`
	RecipientID string         `json:"recipient_id"`
	Amount      float64        `json:"amount"`
	Reason      string         `json:"reason"`
	TxReference string         `json:"tx_reference,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      TransferStatus `json:"status"`
}

// VaultState is derived from the ledger, never kept as a mutable
// counter.
type VaultState struct {
	InitialBalance float64 `json:"initial_balance"`
	CurrentBalance float64 `json:"current_balance"`
}

// Statistics summarizes ledger contents for the dashboard surface.
type Statistics struct {
	EventsProcessed   int                  `json:"events_processed"`
	PayoutsCount      int                  `json:"payouts_count"`
	TotalPayoutAmount float64              `json:"total_payout_amount"`
	CurrentBalance    float64              `json:"current_balance"`
	EventsByType      map[DisasterType]int `json:"events_by_type"`
	LastPayout        *Transfer            `json:"last_payout,omitempty"`
}

// HistoryEntry pairs an event with its terminal outcome.
type HistoryEntry struct {
	Event    CanonicalEvent `json:"event"`
	State    EventState     `json:"state"`
	Decision *Decision      `json:"decision,omitempty"`
	Transfer *Transfer      `json:"transfer,omitempty"`
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aidSentinel/internal/model"
)

// Store provides Postgres persistence for the ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEvent inserts the event on first sighting; re-inserting the same
// id is a no-op so re-polling stays idempotent.
func (s *Store) PutEvent(ctx context.Context, event model.CanonicalEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (
			event_id, source, disaster_type, source_type, lat, lon,
			description, severity, raw_payload, state, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (event_id) DO NOTHING
	`,
		event.ID,
		string(event.Source),
		string(event.DisasterType),
		event.SourceType,
		event.Lat,
		event.Lon,
		event.Description,
		event.Severity,
		event.RawPayload,
		string(model.StateSeen),
	)
	return err
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (model.CanonicalEvent, bool, error) {
	var ev model.CanonicalEvent
	var source, disasterType string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, source, disaster_type, source_type, lat, lon, description, severity, raw_payload
		FROM events WHERE event_id = $1
	`, eventID).Scan(
		&ev.ID, &source, &disasterType, &ev.SourceType,
		&ev.Lat, &ev.Lon, &ev.Description, &ev.Severity, &ev.RawPayload,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CanonicalEvent{}, false, nil
	}
	if err != nil {
		return model.CanonicalEvent{}, false, err
	}
	ev.Source = model.Source(source)
	ev.DisasterType = model.DisasterType(disasterType)
	return ev, true, nil
}

func (s *Store) EventState(ctx context.Context, eventID string) (model.EventState, bool, error) {
	var state string
	err := s.pool.QueryRow(ctx, `SELECT state FROM events WHERE event_id = $1`, eventID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.EventState(state), true, nil
}

func (s *Store) SetEventState(ctx context.Context, eventID string, state model.EventState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET state = $2, updated_at = now() WHERE event_id = $1
	`, eventID, string(state))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set state %s: %w", eventID, model.ErrUnknownEvent)
	}
	return nil
}

func (s *Store) PutDecision(ctx context.Context, decision model.Decision) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decisions (
			event_id, authorized, amount, confidence, reasoning, produced_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (event_id) DO NOTHING
	`,
		decision.EventID,
		decision.Authorized,
		decision.Amount,
		decision.Confidence,
		decision.Reasoning,
		string(decision.ProducedBy),
	)
	return err
}

func (s *Store) GetDecision(ctx context.Context, eventID string) (*model.Decision, error) {
	var d model.Decision
	var producedBy string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, authorized, amount, confidence, reasoning, produced_by
		FROM decisions WHERE event_id = $1
	`, eventID).Scan(&d.EventID, &d.Authorized, &d.Amount, &d.Confidence, &d.Reasoning, &producedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ProducedBy = model.DecisionProducer(producedBy)
	return &d, nil
}

// PutTransfer inserts the payout record. The unique index on event_id
// for non-failed rows is the database-level backstop for the
// one-payout-per-event invariant.
func (s *Store) PutTransfer(ctx context.Context, transfer model.Transfer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transfers (
			event_id, recipient_id, amount, reason, tx_reference, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		transfer.EventID,
		transfer.RecipientID,
		transfer.Amount,
		transfer.Reason,
		transfer.TxReference,
		string(transfer.Status),
		transfer.Timestamp,
	)
	return err
}

func (s *Store) UpdateTransferStatus(ctx context.Context, eventID string, status model.TransferStatus, txReference string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transfers
		SET status = $2,
		    tx_reference = CASE WHEN $3 = '' THEN tx_reference ELSE $3 END
		WHERE event_id = $1
	`, eventID, string(status), txReference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transfer %s: %w", eventID, model.ErrUnknownEvent)
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, eventID string) (*model.Transfer, error) {
	var t model.Transfer
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, recipient_id, amount, reason, tx_reference, status, created_at
		FROM transfers WHERE event_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, eventID).Scan(&t.EventID, &t.RecipientID, &t.Amount, &t.Reason, &t.TxReference, &status, &t.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = model.TransferStatus(status)
	return &t, nil
}

func (s *Store) InflightTransfers(ctx context.Context) ([]model.Transfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, recipient_id, amount, reason, tx_reference, status, created_at
		FROM transfers WHERE status = $1
	`, string(model.TransferPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transfer
	for rows.Next() {
		var t model.Transfer
		var status string
		if err := rows.Scan(&t.EventID, &t.RecipientID, &t.Amount, &t.Reason, &t.TxReference, &status, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Status = model.TransferStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ConfirmedTotal(ctx context.Context) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transfers WHERE status = $1
	`, string(model.TransferConfirmed)).Scan(&total)
	return total, err
}

func (s *Store) Statistics(ctx context.Context, initialBalance float64) (model.Statistics, error) {
	stats := model.Statistics{EventsByType: make(map[model.DisasterType]int)}

	rows, err := s.pool.Query(ctx, `SELECT disaster_type, COUNT(*) FROM events GROUP BY disaster_type`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var dt string
		var count int
		if err := rows.Scan(&dt, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.EventsByType[model.DisasterType(dt)] = count
		stats.EventsProcessed += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transfers WHERE status = $1
	`, string(model.TransferConfirmed)).Scan(&stats.PayoutsCount, &stats.TotalPayoutAmount)
	if err != nil {
		return stats, err
	}

	last, err := s.lastConfirmedTransfer(ctx)
	if err != nil {
		return stats, err
	}
	stats.LastPayout = last

	stats.CurrentBalance = initialBalance - stats.TotalPayoutAmount
	if stats.CurrentBalance < 0 {
		stats.CurrentBalance = 0
	}
	return stats, nil
}

func (s *Store) lastConfirmedTransfer(ctx context.Context) (*model.Transfer, error) {
	var t model.Transfer
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, recipient_id, amount, reason, tx_reference, status, created_at
		FROM transfers WHERE status = $1
		ORDER BY created_at DESC LIMIT 1
	`, string(model.TransferConfirmed)).Scan(
		&t.EventID, &t.RecipientID, &t.Amount, &t.Reason, &t.TxReference, &status, &t.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = model.TransferStatus(status)
	return &t, nil
}

func (s *Store) History(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT e.event_id, e.source, e.disaster_type, e.source_type, e.lat, e.lon,
		       e.description, e.severity, e.raw_payload, e.state,
		       d.authorized, d.amount, d.confidence, d.reasoning, d.produced_by,
		       t.recipient_id, t.amount, t.reason, t.tx_reference, t.status, t.created_at
		FROM events e
		LEFT JOIN decisions d ON d.event_id = e.event_id
		LEFT JOIN transfers t ON t.event_id = e.event_id
		ORDER BY e.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var source, disasterType, state string
		var dAuthorized *bool
		var dAmount *float64
		var dConfidence *int
		var dReasoning, dProducedBy *string
		var tRecipient, tReason, tRef, tStatus *string
		var tAmount *float64
		var tCreated *time.Time

		if err := rows.Scan(
			&entry.Event.ID, &source, &disasterType, &entry.Event.SourceType,
			&entry.Event.Lat, &entry.Event.Lon, &entry.Event.Description,
			&entry.Event.Severity, &entry.Event.RawPayload, &state,
			&dAuthorized, &dAmount, &dConfidence, &dReasoning, &dProducedBy,
			&tRecipient, &tAmount, &tReason, &tRef, &tStatus, &tCreated,
		); err != nil {
			return nil, err
		}

		entry.Event.Source = model.Source(source)
		entry.Event.DisasterType = model.DisasterType(disasterType)
		entry.State = model.EventState(state)

		if dAuthorized != nil {
			entry.Decision = &model.Decision{
				EventID:    entry.Event.ID,
				Authorized: *dAuthorized,
				Amount:     deref(dAmount),
				Confidence: derefInt(dConfidence),
				Reasoning:  derefStr(dReasoning),
				ProducedBy: model.DecisionProducer(derefStr(dProducedBy)),
			}
		}
		if tRecipient != nil {
			entry.Transfer = &model.Transfer{
				EventID:     entry.Event.ID,
				RecipientID: *tRecipient,
				Amount:      deref(tAmount),
				Reason:      derefStr(tReason),
				TxReference: derefStr(tRef),
				Status:      model.TransferStatus(derefStr(tStatus)),
			}
			if tCreated != nil {
				entry.Transfer.Timestamp = *tCreated
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package executor

import (
	"context"
	"fmt"
	"time"

	"aidSentinel/internal/model"
)

// Receipt is the result of a settled transfer. Reference is the
// opaque settlement identifier of the underlying ledger.
type Receipt struct {
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Executor performs the mechanical, capped transfer. It never decides
// amounts or recipients; it enforces the single-transfer cap and
// submits. ConfirmReference supports the restart reconciliation pass
// for transfers left in flight.
type Executor interface {
	Execute(ctx context.Context, recipient model.Recipient, amount float64, reason string) (Receipt, error)
	ConfirmReference(ctx context.Context, reference string) (bool, error)
}

// checkCap rejects amounts over the configured maximum. Never clamped:
// exceeding the cap is a policy violation, not a rounding problem.
func checkCap(amount, cap float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount %.2f must be positive", model.ErrTransferTransport, amount)
	}
	if amount > cap {
		return fmt.Errorf("%w: amount %.2f exceeds cap %.2f", model.ErrCapExceeded, amount, cap)
	}
	return nil
}

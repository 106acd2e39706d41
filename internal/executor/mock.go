package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"aidSentinel/internal/model"
)

// MockExecutor synthesizes deterministic-looking settlement references
// without contacting any external ledger. Used by simulate mode and
// tests. FailNext injects a single transport failure.
type MockExecutor struct {
	Cap float64

	mu       sync.Mutex
	failNext bool
	refs     map[string]bool
}

func NewMockExecutor(cap float64) *MockExecutor {
	return &MockExecutor{Cap: cap, refs: make(map[string]bool)}
}

// FailNext makes the next Execute call fail with a transport error.
func (m *MockExecutor) FailNext() {
	m.mu.Lock()
	m.failNext = true
	m.mu.Unlock()
}

// Execute enforces the cap and returns a deterministic reference
// derived from the transfer parameters.
func (m *MockExecutor) Execute(_ context.Context, recipient model.Recipient, amount float64, reason string) (Receipt, error) {
	if err := checkCap(amount, m.Cap); err != nil {
		return Receipt{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		return Receipt{}, fmt.Errorf("%w: simulated settlement failure", model.ErrTransferTransport)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%s", recipient.Address, amount, reason)))
	ref := "0x" + hex.EncodeToString(sum[:])
	m.refs[ref] = true
	return Receipt{Reference: ref, SubmittedAt: time.Now().UTC()}, nil
}

// ConfirmReference reports whether this executor issued the reference.
func (m *MockExecutor) ConfirmReference(_ context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[reference], nil
}

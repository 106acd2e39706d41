package directory

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"aidSentinel/internal/model"
)

// Directory is the verified registry of eligible aid recipients.
// Loaded once at startup; read-only at runtime. Selection is
// deterministic: candidates keep file order, so ties always break the
// same way.
type Directory struct {
	mu         sync.RWMutex
	recipients []model.Recipient
	logger     *zap.Logger
}

// Candidate is a recipient annotated with the selection reasoning the
// eligibility listing exposes. It is produced by the same code path
// that drives actual payouts.
type Candidate struct {
	Recipient   model.Recipient `json:"recipient"`
	RegionMatch bool            `json:"region_match"`
	Reasoning   string          `json:"reasoning"`
}

// Load reads the recipient registry from a YAML file.
func Load(path string, logger *zap.Logger) (*Directory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}

	var recipients []model.Recipient
	if err := yaml.Unmarshal(data, &recipients); err != nil {
		return nil, fmt.Errorf("parse recipients: %w", err)
	}

	logger.Info("recipient directory loaded",
		zap.String("path", path),
		zap.Int("recipients", len(recipients)),
	)
	return &Directory{recipients: recipients, logger: logger}, nil
}

// NewFromRecipients builds a directory from an in-memory list.
func NewFromRecipients(recipients []model.Recipient, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{recipients: recipients, logger: logger}
}

// Select picks the recipient for a disaster, in order: verified and
// supporting the type, then region match, then global marker, then
// none.
func (d *Directory) Select(dt model.DisasterType, lat, lon float64) (model.Recipient, bool) {
	candidates := d.Eligible(dt, lat, lon)
	if len(candidates) == 0 {
		return model.Recipient{}, false
	}
	return candidates[0].Recipient, true
}

// Eligible returns every selectable recipient for the disaster, best
// first, with region-match flags and reasoning. The first entry is
// exactly what Select would pay.
func (d *Directory) Eligible(dt model.DisasterType, lat, lon float64) []Candidate {
	region := Region(lat, lon)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched, global []Candidate
	for _, r := range d.recipients {
		if !r.Verified || !r.SupportsDisaster(dt) {
			continue
		}
		switch {
		case r.InRegion(region):
			matched = append(matched, Candidate{
				Recipient:   r,
				RegionMatch: true,
				Reasoning:   fmt.Sprintf("verified, supports %s, region match (%s)", dt, region),
			})
		case r.Global():
			global = append(global, Candidate{
				Recipient: r,
				Reasoning: fmt.Sprintf("verified, supports %s, global fallback", dt),
			})
		}
	}
	return append(matched, global...)
}

// ValidateAddress re-reads the recipient fresh from the directory and
// checks the chain address format plus verification status. Run
// immediately before transfer: a recipient de-verified after selection
// must fail here.
func (d *Directory) ValidateAddress(recipientID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, r := range d.recipients {
		if r.ID != recipientID {
			continue
		}
		if !r.Verified {
			return fmt.Errorf("%w: recipient %s is not verified", model.ErrAddressValidation, recipientID)
		}
		if !common.IsHexAddress(r.Address) {
			return fmt.Errorf("%w: recipient %s address %q is not a valid hex address", model.ErrAddressValidation, recipientID, r.Address)
		}
		return nil
	}
	return fmt.Errorf("%w: recipient %s not found", model.ErrAddressValidation, recipientID)
}

// Get returns a recipient by id.
func (d *Directory) Get(recipientID string) (model.Recipient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.recipients {
		if r.ID == recipientID {
			return r, true
		}
	}
	return model.Recipient{}, false
}

// Verified returns all verified recipients in file order.
func (d *Directory) Verified() []model.Recipient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Recipient, 0, len(d.recipients))
	for _, r := range d.recipients {
		if r.Verified {
			out = append(out, r)
		}
	}
	return out
}

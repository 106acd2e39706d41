package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"aidSentinel/internal/model"
)

func testRecipients() []model.Recipient {
	return []model.Recipient{
		{
			ID:            "jp-relief",
			Name:          "Japan Relief",
			Address:       "0x1111bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6001",
			Verified:      true,
			DisasterTypes: []string{"quake"},
			Regions:       []string{RegionAsiaPacific},
		},
		{
			ID:            "na-fire",
			Name:          "NA Wildfire Fund",
			Address:       "0x2222bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6002",
			Verified:      true,
			DisasterTypes: []string{"fire"},
			Regions:       []string{RegionNorthAmerica},
		},
		{
			ID:            "global",
			Name:          "Global Coalition",
			Address:       "0x3333bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6003",
			Verified:      true,
			DisasterTypes: []string{"quake", "fire", "storm"},
			Regions:       []string{model.RegionGlobal},
		},
		{
			ID:            "unverified",
			Name:          "Pending Org",
			Address:       "0x4444bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6004",
			Verified:      false,
			DisasterTypes: []string{"quake"},
			Regions:       []string{model.RegionGlobal},
		},
		{
			ID:            "bad-address",
			Name:          "Broken Records Org",
			Address:       "not-an-address",
			Verified:      true,
			DisasterTypes: []string{"storm"},
			Regions:       []string{model.RegionGlobal},
		},
	}
}

func TestSelectPrefersRegionMatch(t *testing.T) {
	d := NewFromRecipients(testRecipients(), nil)

	// Tokyo quake: both jp-relief and global are eligible, region match
	// wins.
	r, ok := d.Select(model.DisasterQuake, 35.6764, 139.6500)
	if !ok {
		t.Fatalf("expected a recipient")
	}
	if r.ID != "jp-relief" {
		t.Fatalf("expected jp-relief, got %s", r.ID)
	}
}

func TestSelectGlobalFallback(t *testing.T) {
	d := NewFromRecipients(testRecipients(), nil)

	// Quake in Europe: no regional recipient, global catches it.
	r, ok := d.Select(model.DisasterQuake, 48.8566, 2.3522)
	if !ok {
		t.Fatalf("expected a recipient")
	}
	if r.ID != "global" {
		t.Fatalf("expected global fallback, got %s", r.ID)
	}
}

func TestSelectNoneEligible(t *testing.T) {
	d := NewFromRecipients(testRecipients(), nil)

	if _, ok := d.Select(model.DisasterOther, 35.0, 139.0); ok {
		t.Fatalf("no recipient supports type other, selection must report none")
	}
}

func TestSelectSkipsUnverified(t *testing.T) {
	d := NewFromRecipients([]model.Recipient{
		{
			ID:            "unverified",
			Address:       "0x4444bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6004",
			Verified:      false,
			DisasterTypes: []string{"quake"},
			Regions:       []string{model.RegionGlobal},
		},
	}, nil)

	if _, ok := d.Select(model.DisasterQuake, 35.0, 139.0); ok {
		t.Fatalf("unverified recipients must never be selected")
	}
}

func TestEligibleOrderAndReasoning(t *testing.T) {
	d := NewFromRecipients(testRecipients(), nil)

	candidates := d.Eligible(model.DisasterQuake, 35.6764, 139.6500)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if !candidates[0].RegionMatch || candidates[0].Recipient.ID != "jp-relief" {
		t.Fatalf("first candidate must be the region match, got %+v", candidates[0])
	}
	if candidates[1].RegionMatch || candidates[1].Recipient.ID != "global" {
		t.Fatalf("second candidate must be the global fallback, got %+v", candidates[1])
	}
}

func TestValidateAddress(t *testing.T) {
	d := NewFromRecipients(testRecipients(), nil)

	if err := d.ValidateAddress("jp-relief"); err != nil {
		t.Fatalf("valid recipient rejected: %v", err)
	}

	cases := []struct {
		name string
		id   string
	}{
		{"unverified recipient", "unverified"},
		{"malformed address", "bad-address"},
		{"unknown recipient", "no-such-org"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.ValidateAddress(tc.id)
			if err == nil {
				t.Fatalf("expected validation failure")
			}
			if !errors.Is(err, model.ErrAddressValidation) {
				t.Fatalf("expected ErrAddressValidation, got %v", err)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	content := `- id: org-1
  name: Test Org
  address: "0x1111bC1c2E3d4A5b6C7d8E9f0A1b2C3d4E5f6001"
  verified: true
  disaster_types: [quake]
  regions: [asia_pacific]
`
	path := filepath.Join(t.TempDir(), "recipients.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, ok := d.Get("org-1")
	if !ok {
		t.Fatalf("org-1 missing")
	}
	if !r.Verified || !r.SupportsDisaster(model.DisasterQuake) {
		t.Fatalf("recipient = %+v", r)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("missing file must error")
	}
}

func TestRegion(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"tokyo", 35.6764, 139.6500, RegionAsiaPacific},
		{"miami", 25.7617, -80.1918, RegionNorthAmerica},
		{"fiji", -17.7134, 178.0650, RegionPacific},
		{"tahiti", -17.6509, -149.4260, RegionPacific},
		{"paris", 48.8566, 2.3522, "global"},
		{"cape town", -33.9249, 18.4241, "global"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Region(tc.lat, tc.lon); got != tc.want {
				t.Fatalf("Region(%v, %v) = %s, want %s", tc.lat, tc.lon, got, tc.want)
			}
		})
	}
}

package model

// RegionGlobal marks a recipient that accepts payouts for any region.
const RegionGlobal = "global"

// Recipient is a pre-verified aid organization eligible to receive a
// payout. Static reference data, loaded at startup, read-only at
// runtime.
type Recipient struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Address       string   `json:"address" yaml:"address"`
	Verified      bool     `json:"verified" yaml:"verified"`
	DisasterTypes []string `json:"disaster_types" yaml:"disaster_types"`
	Regions       []string `json:"regions" yaml:"regions"`
	Description   string   `json:"description,omitempty" yaml:"description"`
}

// SupportsDisaster reports whether the recipient handles the given
// trigger bucket.
func (r Recipient) SupportsDisaster(dt DisasterType) bool {
	for _, t := range r.DisasterTypes {
		if DisasterType(t) == dt {
			return true
		}
	}
	return false
}

// InRegion reports whether the recipient covers the given region.
func (r Recipient) InRegion(region string) bool {
	for _, reg := range r.Regions {
		if reg == region {
			return true
		}
	}
	return false
}

// Global reports whether the recipient carries the global marker.
func (r Recipient) Global() bool {
	return r.InRegion(RegionGlobal)
}

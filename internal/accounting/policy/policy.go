// Package policy describes which accounts are pinned to the top of each
// statement section and the account codes the builders treat specially.
package policy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Section identifies a statement section that supports pinned rows.
type Section string

const (
	SectionRevenue           Section = "revenue"
	SectionCostOfSales       Section = "cost_of_sales"
	SectionOperatingExpenses Section = "operating_expenses"
	SectionCurrentAssets     Section = "current_assets"
)

// Pin fixes an account code at a position inside a section.
type Pin struct {
	Code     string `yaml:"code"`
	Priority int    `yaml:"priority"`
	// Label is used when the pinned account does not exist in the trial balance.
	Label string `yaml:"label,omitempty"`
	// Negate flips the sign of the balance within the section.
	Negate bool `yaml:"negate,omitempty"`
	// Always emits the line even when its amount is zero.
	Always bool `yaml:"always,omitempty"`
}

// Policy is the declarative ordering and classification policy.
type Policy struct {
	Pins map[Section][]Pin `yaml:"pins"`

	PrimaryInventoryCode         string   `yaml:"primary_inventory_code"`
	ExcludedCurrentAssetCodes    []string `yaml:"excluded_current_asset_codes"`
	ExcludedLiabilityCodes       []string `yaml:"excluded_liability_codes"`
	DisposalCodes                []string `yaml:"disposal_codes"`
	FixedAssetThreshold          int      `yaml:"fixed_asset_threshold"`
	NonCurrentLiabilityThreshold int      `yaml:"non_current_liability_threshold"`
	ReclassifyFinancedPurchases  bool     `yaml:"reclassify_financed_acquisitions"`
}

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		Pins: map[Section][]Pin{
			SectionRevenue: {
				{Code: "4000", Priority: 1, Label: "Sales"},
				{Code: "4200", Priority: 2, Label: "Other Gains"},
			},
			SectionCostOfSales: {
				{Code: "5210", Priority: 1, Label: "Gain on Sale of Assets", Negate: true, Always: true},
				{Code: "5220", Priority: 2, Label: "Loss on Sale of Assets", Always: true},
			},
			SectionOperatingExpenses: {
				{Code: "6900", Priority: 1, Label: "Impairment Loss"},
			},
			SectionCurrentAssets: {
				{Code: "1100", Priority: 1, Label: "Bank"},
				{Code: "1200", Priority: 2, Label: "Accounts Receivable"},
			},
		},
		PrimaryInventoryCode:         "1300",
		ExcludedCurrentAssetCodes:    []string{"1150", "1250", "1450"},
		ExcludedLiabilityCodes:       []string{"2150", "2250"},
		DisposalCodes:                []string{"5210", "5220"},
		FixedAssetThreshold:          1500,
		NonCurrentLiabilityThreshold: 2500,
		ReclassifyFinancedPurchases:  true,
	}
}

// Load reads a YAML policy file. Fields missing from the file keep their defaults.
func Load(path string) (Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate rejects policies with duplicated pins.
func (p Policy) Validate() error {
	seen := make(map[string]Section)
	for section, pins := range p.Pins {
		for _, pin := range pins {
			if pin.Code == "" {
				return fmt.Errorf("policy: %s pin without code", section)
			}
			if other, ok := seen[pin.Code]; ok {
				return fmt.Errorf("policy: code %s pinned in both %s and %s", pin.Code, other, section)
			}
			seen[pin.Code] = section
		}
	}
	if p.FixedAssetThreshold <= 0 || p.NonCurrentLiabilityThreshold <= 0 {
		return fmt.Errorf("policy: thresholds must be positive")
	}
	return nil
}

// PinsFor returns the pins of a section ordered by priority then code.
func (p Policy) PinsFor(section Section) []Pin {
	pins := append([]Pin(nil), p.Pins[section]...)
	sort.SliceStable(pins, func(i, j int) bool {
		if pins[i].Priority != pins[j].Priority {
			return pins[i].Priority < pins[j].Priority
		}
		return pins[i].Code < pins[j].Code
	})
	return pins
}

// PinnedCodes returns every pinned code across all sections.
func (p Policy) PinnedCodes() map[string]struct{} {
	out := make(map[string]struct{})
	for _, pins := range p.Pins {
		for _, pin := range pins {
			out[pin.Code] = struct{}{}
		}
	}
	return out
}

// SectionOf reports the section a code is pinned in.
func (p Policy) SectionOf(code string) (Section, bool) {
	for section, pins := range p.Pins {
		for _, pin := range pins {
			if pin.Code == code {
				return section, true
			}
		}
	}
	return "", false
}

// IsDisposalCode reports whether code is on the disposal gain/loss allow-list.
func (p Policy) IsDisposalCode(code string) bool {
	return contains(p.DisposalCodes, code)
}

// IsExcludedCurrentAsset reports whether code is explicitly excluded from current assets.
func (p Policy) IsExcludedCurrentAsset(code string) bool {
	return contains(p.ExcludedCurrentAssetCodes, code)
}

// IsExcludedLiability reports whether code is explicitly excluded from liabilities.
func (p Policy) IsExcludedLiability(code string) bool {
	return contains(p.ExcludedLiabilityCodes, code)
}

func contains(list []string, code string) bool {
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}

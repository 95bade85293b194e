package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinsForOrdersByPriority(t *testing.T) {
	p := Default()
	p.Pins[SectionRevenue] = []Pin{{Code: "4200", Priority: 2}, {Code: "4000", Priority: 1}, {Code: "4100", Priority: 2}}

	pins := p.PinsFor(SectionRevenue)
	require.Len(t, pins, 3)
	require.Equal(t, "4000", pins[0].Code)
	require.Equal(t, "4100", pins[1].Code)
	require.Equal(t, "4200", pins[2].Code)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := `
primary_inventory_code: "1310"
pins:
  revenue:
    - code: "4001"
      priority: 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "1310", p.PrimaryInventoryCode)
	require.Equal(t, "4001", p.PinsFor(SectionRevenue)[0].Code)
	require.Equal(t, 1500, p.FixedAssetThreshold)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	require.True(t, p.IsDisposalCode("5210"))
	require.True(t, p.IsExcludedCurrentAsset("1450"))
	require.True(t, p.IsExcludedLiability("2150"))
}

func TestValidateRejectsDuplicatePins(t *testing.T) {
	p := Default()
	p.Pins[SectionOperatingExpenses] = append(p.Pins[SectionOperatingExpenses], Pin{Code: "4000"})
	require.Error(t, p.Validate())
}

func TestSectionOf(t *testing.T) {
	p := Default()
	section, ok := p.SectionOf("5220")
	require.True(t, ok)
	require.Equal(t, SectionCostOfSales, section)
	_, ok = p.SectionOf("9999")
	require.False(t, ok)
}

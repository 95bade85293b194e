// Package cogs estimates cost of sales from invoice lines when the ledger has no
// cost-of-sales postings.
package cogs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// ItemTypeProduct marks invoice lines that carry inventory cost.
const ItemTypeProduct = "product"

var billedStatuses = map[string]struct{}{
	"sent":     {},
	"paid":     {},
	"approved": {},
	"posted":   {},
}

// Invoice is a sales invoice with its lines.
type Invoice struct {
	ID          int64
	Status      string
	InvoiceDate *time.Time
	SentAt      *time.Time
	Lines       []InvoiceLine
}

// InvoiceLine is a single billed line.
type InvoiceLine struct {
	Description string
	ItemType    string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CatalogItem is an item cost catalog entry.
type CatalogItem struct {
	Name      string          `json:"name"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

// Estimate is the derived cost-of-sales figure.
type Estimate struct {
	Amount   decimal.Decimal
	Lines    int
	Warnings []shared.Warning
}

type catalogEntry struct {
	key  string
	cost decimal.Decimal
}

// Estimator resolves unit costs against a catalog.
type Estimator struct {
	exact   map[string]decimal.Decimal
	entries []catalogEntry
}

// NewEstimator indexes the catalog. Later duplicates of a name are ignored.
func NewEstimator(catalog []CatalogItem) *Estimator {
	e := &Estimator{exact: make(map[string]decimal.Decimal, len(catalog))}
	for _, item := range catalog {
		key := normalize(item.Name)
		if key == "" {
			continue
		}
		if _, dup := e.exact[key]; dup {
			continue
		}
		e.exact[key] = item.CostPrice
		e.entries = append(e.entries, catalogEntry{key: key, cost: item.CostPrice})
	}
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].key < e.entries[j].key })
	return e
}

// Estimate accumulates unit cost × quantity over billed product lines in the window.
func (e *Estimator) Estimate(invoices []Invoice, w shared.Window) Estimate {
	out := Estimate{Amount: decimal.Zero}
	missing := 0
	for _, inv := range invoices {
		if !InPeriod(inv, w) {
			continue
		}
		for _, ln := range inv.Lines {
			if !strings.EqualFold(strings.TrimSpace(ln.ItemType), ItemTypeProduct) {
				continue
			}
			cost, ok := e.UnitCost(ln.Description)
			if !ok {
				cost = ln.UnitPrice
				missing++
			}
			out.Amount = out.Amount.Add(cost.Mul(ln.Quantity))
			out.Lines++
		}
	}
	if missing > 0 {
		out.Warnings = append(out.Warnings, shared.Warning{
			Kind:    shared.WarningDataQuality,
			Code:    shared.WarnMissingCostPrice,
			Message: fmt.Sprintf("%d invoice lines had no catalog cost; unit price used", missing),
			Count:   missing,
		})
	}
	return out
}

// UnitCost finds the catalog cost for an item name: exact match first, then a
// substring match in either direction.
func (e *Estimator) UnitCost(name string) (decimal.Decimal, bool) {
	key := normalize(name)
	if key == "" {
		return decimal.Zero, false
	}
	if cost, ok := e.exact[key]; ok {
		return cost, true
	}
	for _, entry := range e.entries {
		if strings.Contains(key, entry.key) || strings.Contains(entry.key, key) {
			return entry.cost, true
		}
	}
	return decimal.Zero, false
}

// InPeriod reports whether the invoice is billed and dated inside the window.
// SentAt takes precedence over the invoice date.
func InPeriod(inv Invoice, w shared.Window) bool {
	if _, ok := billedStatuses[strings.ToLower(strings.TrimSpace(inv.Status))]; !ok {
		return false
	}
	date := inv.SentAt
	if date == nil {
		date = inv.InvoiceDate
	}
	if date == nil {
		return false
	}
	return w.Contains(*date)
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

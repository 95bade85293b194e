// Package shared holds the value types, warnings and sentinel errors used by
// every stage of the statement engine.
package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories. Free-form strings coming from the
// database are converted into one of these values by the classifier.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeOther     AccountType = "OTHER"
)

// Side is the natural balance side of an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NaturalSide returns the side on which accounts of type t accumulate value.
func (t AccountType) NaturalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// LineStatus enumerates ledger line lifecycle values.
type LineStatus string

const (
	LineStatusPosted   LineStatus = "posted"
	LineStatusApproved LineStatus = "approved"
	LineStatusPending  LineStatus = "pending"
)

// LineOrigin identifies which physical source a ledger line was read from.
type LineOrigin string

const (
	// OriginJournal is the direct general ledger table. It wins on duplicates.
	OriginJournal LineOrigin = "journal"
	// OriginTransaction is the transaction-derived entries table.
	OriginTransaction LineOrigin = "transaction"
)

// AccountRecord is a chart of accounts row exactly as stored.
type AccountRecord struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      string
	IsActive  bool
}

// Account is a classified chart of accounts entry.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	IsActive  bool
}

// Side returns the natural balance side of the account.
func (a Account) Side() Side {
	return a.Type.NaturalSide()
}

// LedgerLine is a single debit or credit posting read from one of the ledger sources.
type LedgerLine struct {
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Date          *time.Time
	Status        LineStatus
	TransactionID uuid.UUID
	Description   string
	Origin        LineOrigin
}

// Window is the reporting period. Cumulative windows ignore Start.
type Window struct {
	Start      time.Time
	End        time.Time
	Cumulative bool
}

// PeriodWindow builds a window covering [start, end].
func PeriodWindow(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// CumulativeTo builds a window covering everything up to end.
func CumulativeTo(end time.Time) Window {
	return Window{End: end, Cumulative: true}
}

// Validate checks the window bounds.
func (w Window) Validate() error {
	if w.End.IsZero() {
		return fmt.Errorf("%w: end date required", ErrInvalidWindow)
	}
	if !w.Cumulative {
		if w.Start.IsZero() {
			return fmt.Errorf("%w: start date required", ErrInvalidWindow)
		}
		if w.End.Before(w.Start) {
			return fmt.Errorf("%w: end before start", ErrInvalidWindow)
		}
	}
	return nil
}

// Contains reports whether the date falls inside the window. Dates are compared
// at day granularity so an end date includes the whole day.
func (w Window) Contains(date time.Time) bool {
	day := truncateDay(date)
	if day.After(truncateDay(w.End)) {
		return false
	}
	if w.Cumulative {
		return true
	}
	return !day.Before(truncateDay(w.Start))
}

// Before reports whether the date falls before the window start.
func (w Window) Before(date time.Time) bool {
	if w.Cumulative {
		return false
	}
	return truncateDay(date).Before(truncateDay(w.Start))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WarningKind groups non-fatal findings.
type WarningKind string

const (
	WarningDataQuality WarningKind = "data_quality"
	WarningImbalance   WarningKind = "imbalance"
	WarningDegraded    WarningKind = "degraded"
)

// Warning reports a non-fatal finding produced while building statements.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	AccountID *int64      `json:"account_id,omitempty"`
	Count     int         `json:"count,omitempty"`
}

// Warning codes.
const (
	WarnNullDate           = "null_date"
	WarnOrphanLine         = "orphan_line"
	WarnUnmatchedContra    = "unmatched_contra"
	WarnMissingCostPrice   = "missing_cost_price"
	WarnNegativeVAT        = "negative_vat_receivable"
	WarnRawImbalance       = "raw_imbalance"
	WarnPlugDisagreement   = "plug_disagreement"
	WarnCollaboratorFailed = "collaborator_failed"
	WarnCashMismatch       = "cash_flow_mismatch"
	WarnUnclassified       = "unclassified_account"
)

var (
	// ErrSourceUnavailable indicates a required collaborator (accounts or ledger lines) failed.
	ErrSourceUnavailable = errors.New("accounting: source unavailable")
	// ErrInvalidWindow indicates malformed period bounds.
	ErrInvalidWindow = errors.New("accounting: invalid period window")
	// ErrCompanyRequired indicates a missing company id.
	ErrCompanyRequired = errors.New("accounting: company id required")
)

// Tolerances used across the engine.
var (
	// SuppressionThreshold hides rows and items whose magnitude is below one cent.
	SuppressionThreshold = decimal.RequireFromString("0.01")
	// BalanceTolerance is the balance sheet equation tolerance.
	BalanceTolerance = decimal.RequireFromString("0.1")
)

// Significant reports whether |v| >= 0.01.
func Significant(v decimal.Decimal) bool {
	return v.Abs().GreaterThanOrEqual(SuppressionThreshold)
}

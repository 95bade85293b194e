package accounting

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/cogs"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-engine/internal/platform/db"
)

const (
	// sqlStateUndefinedFunction is returned when compute_cash_flow is not installed.
	sqlStateUndefinedFunction = "42883"
	sqlStateUndefinedTable    = "42P01"
)

// Repository reads ledger data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-only repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) ListAccounts(ctx context.Context, companyID int64) ([]shared.AccountRecord, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, company_id, code, name, account_type, is_active
FROM accounts WHERE company_id=$1 ORDER BY code, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []shared.AccountRecord
	for rows.Next() {
		var a shared.AccountRecord
		var accountType pgtype.Text
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &accountType, &a.IsActive); err != nil {
			return nil, err
		}
		a.Type = accountType.String
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) ListJournalLines(ctx context.Context, companyID int64, end time.Time) ([]shared.LedgerLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT account_id, debit, credit, entry_date, status, transaction_id, description
FROM general_ledger
WHERE company_id=$1 AND (entry_date IS NULL OR entry_date <= $2)
ORDER BY entry_date NULLS FIRST, id`, companyID, dateParam(end))
	if err != nil {
		return nil, err
	}
	return scanLedgerLines(rows)
}

func (r *txRepository) ListTransactionLines(ctx context.Context, companyID int64, end time.Time) ([]shared.LedgerLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT te.account_id, te.debit_amount, te.credit_amount, t.transaction_date, t.status, te.transaction_id, te.description
FROM transaction_entries te
JOIN transactions t ON t.id = te.transaction_id
WHERE t.company_id=$1 AND (t.transaction_date IS NULL OR t.transaction_date <= $2)
ORDER BY t.transaction_date NULLS FIRST, te.id`, companyID, dateParam(end))
	if err != nil {
		return nil, err
	}
	return scanLedgerLines(rows)
}

func scanLedgerLines(rows pgx.Rows) ([]shared.LedgerLine, error) {
	defer rows.Close()
	var lines []shared.LedgerLine
	for rows.Next() {
		var (
			line          shared.LedgerLine
			debit, credit pgtype.Numeric
			date          pgtype.Date
			status        pgtype.Text
			txID          pgtype.UUID
			description   pgtype.Text
		)
		if err := rows.Scan(&line.AccountID, &debit, &credit, &date, &status, &txID, &description); err != nil {
			return nil, err
		}
		line.Debit = numericToDecimal(debit)
		line.Credit = numericToDecimal(credit)
		if date.Valid {
			d := date.Time
			line.Date = &d
		}
		line.Status = shared.LineStatus(strings.ToLower(strings.TrimSpace(status.String)))
		if txID.Valid {
			line.TransactionID = uuid.UUID(txID.Bytes)
		}
		line.Description = description.String
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// CashFlowAggregate calls compute_cash_flow. A database without the function
// yields a nil aggregate and no error.
func (r *Repository) CashFlowAggregate(ctx context.Context, companyID int64, start, end time.Time) (*reports.CashFlowAggregate, error) {
	var operating, investing, financing, opening, closing pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT operating, investing, financing, opening_cash, closing_cash
FROM compute_cash_flow($1, $2, $3)`, companyID, dateParam(start), dateParam(end)).
		Scan(&operating, &investing, &financing, &opening, &closing)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUndefinedFunction {
			return nil, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reports.CashFlowAggregate{
		Operating:   numericToDecimal(operating),
		Investing:   numericToDecimal(investing),
		Financing:   numericToDecimal(financing),
		OpeningCash: numericToDecimal(opening),
		ClosingCash: numericToDecimal(closing),
	}, nil
}

// OpeningNBV sums the floored NBV of fixed asset records tagged as opening balances.
func (r *Repository) OpeningNBV(ctx context.Context, companyID int64, end time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(GREATEST(cost - COALESCE(accumulated_depreciation, 0), 0)), 0)
FROM fixed_assets
WHERE company_id=$1 AND description LIKE '%' || $2 || '%' AND (purchase_date IS NULL OR purchase_date <= $3)`,
		companyID, reports.OpeningNBVDescTag, dateParam(end)).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}

// ContraLinks reads stored asset to contra account links. A database without
// the table yields an empty mapping.
func (r *Repository) ContraLinks(ctx context.Context, companyID int64) (classify.ExplicitLinkage, error) {
	rows, err := r.pool.Query(ctx, `SELECT asset_account_id, contra_account_id FROM account_contra_links
WHERE company_id=$1 ORDER BY asset_account_id, contra_account_id`, companyID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUndefinedTable {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	links := make(classify.ExplicitLinkage)
	for rows.Next() {
		var asset, contra int64
		if err := rows.Scan(&asset, &contra); err != nil {
			return nil, err
		}
		links[asset] = append(links[asset], contra)
	}
	return links, rows.Err()
}

// ItemCatalog lists items with a cost price.
func (r *Repository) ItemCatalog(ctx context.Context, companyID int64) ([]cogs.CatalogItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, cost_price FROM items
WHERE company_id=$1 AND cost_price IS NOT NULL ORDER BY name, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []cogs.CatalogItem
	for rows.Next() {
		var item cogs.CatalogItem
		var cost pgtype.Numeric
		if err := rows.Scan(&item.Name, &cost); err != nil {
			return nil, err
		}
		item.CostPrice = numericToDecimal(cost)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListInvoices returns invoices whose sent or invoice date falls in the period,
// with their lines. Status filtering is left to the estimator.
func (r *Repository) ListInvoices(ctx context.Context, companyID int64, start, end time.Time) ([]cogs.Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, status, invoice_date, sent_at FROM invoices
WHERE company_id=$1 AND COALESCE(sent_at::date, invoice_date) BETWEEN $2 AND $3
ORDER BY id`, companyID, dateParam(start), dateParam(end))
	if err != nil {
		return nil, err
	}
	var invoices []cogs.Invoice
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		var (
			inv         cogs.Invoice
			status      pgtype.Text
			invoiceDate pgtype.Date
			sentAt      pgtype.Timestamptz
		)
		if err := rows.Scan(&inv.ID, &status, &invoiceDate, &sentAt); err != nil {
			rows.Close()
			return nil, err
		}
		inv.Status = status.String
		if invoiceDate.Valid {
			t := invoiceDate.Time
			inv.InvoiceDate = &t
		}
		if sentAt.Valid {
			t := sentAt.Time
			inv.SentAt = &t
		}
		index[inv.ID] = len(invoices)
		ids = append(ids, inv.ID)
		invoices = append(invoices, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return invoices, nil
	}

	lineRows, err := r.pool.Query(ctx, `SELECT invoice_id, description, item_type, quantity, unit_price
FROM invoice_items WHERE invoice_id = ANY($1) ORDER BY invoice_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			invoiceID       int64
			ln              cogs.InvoiceLine
			description     pgtype.Text
			itemType        pgtype.Text
			quantity, price pgtype.Numeric
		)
		if err := lineRows.Scan(&invoiceID, &description, &itemType, &quantity, &price); err != nil {
			return nil, err
		}
		ln.Description = description.String
		ln.ItemType = itemType.String
		ln.Quantity = numericToDecimal(quantity)
		ln.UnitPrice = numericToDecimal(price)
		if i, ok := index[invoiceID]; ok {
			invoices[i].Lines = append(invoices[i].Lines, ln)
		}
	}
	return invoices, lineRows.Err()
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// numericToDecimal converts without going through float64. NULL, NaN and
// infinities read as zero.
func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// Package cli implements the ledgerctl commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-engine/internal/accounting"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// ErrImbalanced is returned by validate when debits and credits differ.
var ErrImbalanced = errors.New("ledger postings out of balance")

// CatalogBumper invalidates cached item catalogs.
type CatalogBumper interface {
	Bump(ctx context.Context) error
}

// Deps are resolved lazily so that --help never dials a database.
type Deps struct {
	Service func(ctx context.Context) (accounting.StatementService, func(), error)
	Jobs    func() (JobQueue, error)
	Catalog func(ctx context.Context) (CatalogBumper, func(), error)
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Financial statements from the general ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(statementsCommand(deps))
	root.AddCommand(validateCommand(deps))
	root.AddCommand(jobsCommand(deps))
	root.AddCommand(cacheCommand(deps))
	return root
}

// periodFlags are shared by every command that reads a window.
type periodFlags struct {
	companyID int64
	start     string
	end       string
	statuses  string
}

func (p *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&p.companyID, "company", 0, "company id")
	cmd.Flags().StringVar(&p.start, "start", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.end, "end", "", "period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.statuses, "status", "", "comma separated line statuses (default posted)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("end")
}

func (p *periodFlags) request() (accounting.StatementRequest, error) {
	req := accounting.StatementRequest{CompanyID: p.companyID}
	if p.start == "" {
		return req, fmt.Errorf("%w: --start required", shared.ErrInvalidWindow)
	}
	start, err := time.Parse(time.DateOnly, p.start)
	if err != nil {
		return req, fmt.Errorf("%w: start %q", shared.ErrInvalidWindow, p.start)
	}
	end, err := time.Parse(time.DateOnly, p.end)
	if err != nil {
		return req, fmt.Errorf("%w: end %q", shared.ErrInvalidWindow, p.end)
	}
	req.Start, req.End = start, end
	for _, raw := range strings.Split(p.statuses, ",") {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		switch status := shared.LineStatus(raw); status {
		case shared.LineStatusPosted, shared.LineStatusApproved, shared.LineStatusPending:
			req.Statuses = append(req.Statuses, status)
		default:
			return req, fmt.Errorf("unknown status %q", raw)
		}
	}
	return req, req.Validate()
}

func withService(ctx context.Context, deps Deps, fn func(accounting.StatementService) error) error {
	if deps.Service == nil {
		return errors.New("ledgerctl: statement service not configured")
	}
	svc, closeFn, err := deps.Service(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(svc)
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

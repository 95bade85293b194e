package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-engine/internal/accounting"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

var statementNames = []string{"all", "tb", "pl", "bs", "cf"}

func statementsCommand(deps Deps) *cobra.Command {
	var (
		period periodFlags
		format string
		only   string
	)
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Build the trial balance, income statement, balance sheet and cash flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := period.request()
			if err != nil {
				return err
			}
			if !validChoice(only, statementNames) {
				return fmt.Errorf("--only must be one of %s", strings.Join(statementNames, ", "))
			}
			return withService(cmd.Context(), deps, func(svc accounting.StatementService) error {
				pkg, err := svc.Statements(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if format == "json" {
					return writeJSON(out, selectStatement(pkg, only))
				}
				return writeText(out, pkg, only)
			})
		},
	}
	period.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&only, "only", "all", "statement to print: all, tb, pl, bs or cf")
	return cmd
}

func validateCommand(deps Deps) *cobra.Command {
	var period periodFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that posted debits equal credits for the period",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := period.request()
			if err != nil {
				return err
			}
			return withService(cmd.Context(), deps, func(svc accounting.StatementService) error {
				res, err := svc.Validate(cmd.Context(), req.CompanyID, req.Start, req.End)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fprintf(out, "company %d: %d lines, debit %s, credit %s, difference %s\n",
					res.CompanyID, res.LineCount,
					res.TotalDebit.StringFixed(2), res.TotalCredit.StringFixed(2), res.Difference.StringFixed(2))
				if !res.IsBalanced {
					return fmt.Errorf("%w by %s", ErrImbalanced, res.Difference.StringFixed(2))
				}
				fprintf(out, "balanced\n")
				return nil
			})
		},
	}
	period.register(cmd)
	return cmd
}

func selectStatement(pkg accounting.StatementPackage, only string) any {
	switch only {
	case "tb":
		return pkg.TrialBalance
	case "pl":
		return pkg.IncomeStatement
	case "bs":
		return pkg.BalanceSheet
	case "cf":
		return pkg.CashFlow
	default:
		return pkg
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, pkg accounting.StatementPackage, only string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	if only == "all" || only == "tb" {
		writeTrialBalance(tw, pkg.TrialBalance)
	}
	if only == "all" || only == "pl" {
		writeLines(tw, "INCOME STATEMENT", pkg.IncomeStatement.Lines)
	}
	if only == "all" || only == "bs" {
		writeLines(tw, "BALANCE SHEET", pkg.BalanceSheet.Lines)
		if pkg.Reconciliation.Disagree {
			fprintf(tw, "! plug %s hides raw difference %s\t\n",
				pkg.Reconciliation.Plug.StringFixed(2), pkg.Reconciliation.RawDifference.StringFixed(2))
		}
	}
	if only == "all" || only == "cf" {
		writeLines(tw, "CASH FLOW ("+string(pkg.CashFlow.Source)+")", pkg.CashFlow.Lines)
	}
	writeWarnings(tw, pkg.Warnings)
	return tw.Flush()
}

func writeTrialBalance(w io.Writer, tb reports.TrialBalanceView) {
	fprintf(w, "TRIAL BALANCE\t\t\t\t\n")
	fprintf(w, "code\taccount\tdebit\tcredit\t\n")
	for _, g := range tb.Groups {
		for _, a := range g.Accounts {
			fprintf(w, "%s\t%s\t%s\t%s\t\n", a.Code, a.Name, a.Debit.StringFixed(2), a.Credit.StringFixed(2))
		}
	}
	fprintf(w, "\ttotal\t%s\t%s\t\n\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
}

func writeLines(w io.Writer, title string, lines []reports.Line) {
	fprintf(w, "%s\t\t\n", title)
	for _, ln := range lines {
		switch ln.Kind {
		case reports.KindSpacer:
			fprintf(w, "\t\t\n")
		case reports.KindHeader, reports.KindSubheader:
			fprintf(w, "%s\t\t\n", ln.Label)
		case reports.KindItem:
			fprintf(w, "  %s\t%s\t\n", ln.Label, ln.Amount.StringFixed(2))
		default:
			fprintf(w, "%s\t%s\t\n", ln.Label, ln.Amount.StringFixed(2))
		}
	}
	fprintf(w, "\t\t\n")
}

func writeWarnings(w io.Writer, ws []shared.Warning) {
	for _, warn := range ws {
		label := warn.Code
		if warn.AccountID != nil {
			label += " account " + itoa(*warn.AccountID)
		}
		fprintf(w, "warning: %s: %s\t\n", label, warn.Message)
	}
}

func validChoice(v string, choices []string) bool {
	for _, c := range choices {
		if v == c {
			return true
		}
	}
	return false
}

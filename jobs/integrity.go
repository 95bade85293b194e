package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/ledger-engine/internal/jobs"
)

// LedgerValidator runs the raw postings check.
type LedgerValidator interface {
	Validate(ctx context.Context, companyID int64, start, end time.Time) (reports.IntegrityResult, error)
}

// IntegrityJob checks that posted debits equal credits for a company and period.
type IntegrityJob struct {
	Validator LedgerValidator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewIntegrityJob initialises the integrity handler.
func NewIntegrityJob(validator LedgerValidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Validator: validator,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one integrity check. An imbalance is reported, not retried.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Validator == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	start, end, err := payload.Window(j.now())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	began := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("company_id", payload.CompanyID),
		slog.String("start", start.Format(time.DateOnly)),
		slog.String("end", end.Format(time.DateOnly)),
	)

	res, err := j.Validator.Validate(ctx, payload.CompanyID, start, end)
	switch {
	case errors.Is(err, shared.ErrCompanyRequired), errors.Is(err, shared.ErrInvalidWindow):
		logger.Warn("integrity check rejected", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		logger.Error("integrity check failed", slog.Any("error", err))
		return err
	}

	j.metrics().RecordIntegrity(payload.CompanyID, res.IsBalanced)
	if !res.IsBalanced {
		logger.Warn("ledger postings out of balance",
			slog.String("difference", res.Difference.StringFixed(2)),
			slog.String("total_debit", res.TotalDebit.StringFixed(2)),
			slog.String("total_credit", res.TotalCredit.StringFixed(2)),
			slog.Int("lines", res.LineCount),
		)
		return nil
	}
	logger.Info("ledger integrity verified",
		slog.Int("lines", res.LineCount),
		slog.Duration("duration", j.now().Sub(began)),
	)
	return nil
}

func (j *IntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}

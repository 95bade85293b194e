package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-engine/jobs"
)

// JobQueue is the slice of the task queue ledgerctl needs.
type JobQueue interface {
	EnqueueIntegrity(ctx context.Context, companyID int64, start, end time.Time) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// EnqueueIntegrity schedules an integrity check for the window.
func (c *JobsCLI) EnqueueIntegrity(ctx context.Context, companyID int64, start, end time.Time) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueIntegrity(ctx, companyID, start, end)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Failed    int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

func jobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background ledger jobs",
	}

	var period periodFlags
	trigger := &cobra.Command{
		Use:   "trigger-integrity",
		Short: "Enqueue an integrity check for a company and period",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := period.request()
			if err != nil {
				return err
			}
			return withQueue(deps, func(q JobQueue) error {
				id, err := q.EnqueueIntegrity(cmd.Context(), req.CompanyID, req.Start, req.End)
				if err != nil {
					return err
				}
				fprintf(cmd.OutOrStdout(), "enqueued %s id=%s\n", jobs.TaskLedgerIntegrity, id)
				return nil
			})
		},
	}
	period.register(trigger)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(deps, func(q JobQueue) error {
				s, err := q.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
					s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Failed)
				return nil
			})
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}

func withQueue(deps Deps, fn func(JobQueue) error) error {
	if deps.Jobs == nil {
		return errors.New("ledgerctl: job queue not configured")
	}
	q, err := deps.Jobs()
	if err != nil {
		return fmt.Errorf("ledgerctl: job queue: %w", err)
	}
	defer func() { _ = q.Close() }()
	return fn(q)
}

func cacheCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the item catalog cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "bump",
		Short: "Invalidate cached catalogs on every instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Catalog == nil {
				return errors.New("ledgerctl: catalog cache not configured")
			}
			bumper, closeFn, err := deps.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			if err := bumper.Bump(cmd.Context()); err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "catalog cache invalidated\n")
			return nil
		},
	})
	return cmd
}

package refresh

import (
	"context"
	"database/sql"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/errcodes"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type EnqueueOptions struct {
	Mode       string
	ReplaceAll bool
	Priority   string
}

type RetrieveJobOptions struct {
	ID *int
}

type ListJobsOptions struct {
	Limit    *int
	Offset   *int
	ItemID   *int
	Statuses []string

	includeTotal bool
}

type UpdateJobOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// Enqueue queues an identification pass for an item. If a pending job for
// the same item already exists the call is a no-op and the existing job is
// returned, except that a higher priority or a full mode is promoted onto it
// so a later, stronger request is never downgraded by an earlier weak one.
func (svc *Service) Enqueue(ctx context.Context, itemID int, opts EnqueueOptions) (*models.RefreshJob, error) {
	if opts.Mode == "" {
		opts.Mode = models.RefreshModeDefault
	}
	if opts.Priority == "" {
		opts.Priority = models.RefreshPriorityNormal
	}

	job := &models.RefreshJob{}
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.
			NewSelect().
			Model(job).
			Where("rj.item_id = ?", itemID).
			Where("rj.status = ?", models.RefreshJobStatusPending).
			Scan(ctx)
		if err == nil {
			columns := []string{}
			if opts.Priority == models.RefreshPriorityHigh && job.Priority != models.RefreshPriorityHigh {
				job.Priority = models.RefreshPriorityHigh
				columns = append(columns, "priority")
			}
			if opts.Mode == models.RefreshModeFull && job.Mode != models.RefreshModeFull {
				job.Mode = models.RefreshModeFull
				columns = append(columns, "mode")
			}
			if opts.ReplaceAll && !job.ReplaceAll {
				job.ReplaceAll = true
				columns = append(columns, "replace_all")
			}
			if len(columns) == 0 {
				return nil
			}
			job.UpdatedAt = time.Now()
			columns = append(columns, "updated_at")
			_, err := tx.
				NewUpdate().
				Model(job).
				Column(columns...).
				WherePK().
				Exec(ctx)
			return errors.WithStack(err)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		now := time.Now()
		job.ItemID = itemID
		job.Mode = opts.Mode
		job.ReplaceAll = opts.ReplaceAll
		job.Priority = opts.Priority
		job.Status = models.RefreshJobStatusPending
		job.CreatedAt = now
		job.UpdatedAt = now

		_, err = tx.
			NewInsert().
			Model(job).
			Returning("*").
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return job, nil
}

func (svc *Service) RetrieveJob(ctx context.Context, opts RetrieveJobOptions) (*models.RefreshJob, error) {
	job := &models.RefreshJob{}

	q := svc.db.
		NewSelect().
		Model(job)

	if opts.ID != nil {
		q = q.Where("rj.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Refresh job")
		}
		return nil, errors.WithStack(err)
	}

	return job, nil
}

func (svc *Service) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*models.RefreshJob, error) {
	j, _, err := svc.listJobsWithTotal(ctx, opts)
	return j, errors.WithStack(err)
}

func (svc *Service) ListJobsWithTotal(ctx context.Context, opts ListJobsOptions) ([]*models.RefreshJob, int, error) {
	opts.includeTotal = true
	return svc.listJobsWithTotal(ctx, opts)
}

func (svc *Service) listJobsWithTotal(ctx context.Context, opts ListJobsOptions) ([]*models.RefreshJob, int, error) {
	jobs := []*models.RefreshJob{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&jobs).
		Order("rj.created_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.ItemID != nil {
		q = q.Where("rj.item_id = ?", *opts.ItemID)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("rj.status = ?", s)
			}
			return sq
		})
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return jobs, total, nil
}

// ClaimNextPending atomically claims the oldest pending job for a worker
// process. High-priority jobs are drained before normal ones. Returns nil
// when the queue is empty.
func (svc *Service) ClaimNextPending(ctx context.Context, processID string) (*models.RefreshJob, error) {
	job := &models.RefreshJob{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.
			NewSelect().
			Model(job).
			Where("rj.status = ?", models.RefreshJobStatusPending).
			OrderExpr("CASE rj.priority WHEN ? THEN 0 ELSE 1 END ASC, rj.created_at ASC", models.RefreshPriorityHigh).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		job.Status = models.RefreshJobStatusInProgress
		job.ProcessID = &processID
		job.UpdatedAt = time.Now()

		_, err = tx.
			NewUpdate().
			Model(job).
			Column("status", "process_id", "updated_at").
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return job, nil
}

func (svc *Service) UpdateJob(ctx context.Context, job *models.RefreshJob, opts UpdateJobOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	// Update updated_at.
	job.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(job).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Refresh job")
		}
		return errors.WithStack(err)
	}

	return nil
}

package items

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/errcodes"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/sortname"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID   *int
	Path *string
}

type ListItemsOptions struct {
	Limit    *int
	Offset   *int
	ParentID *int
	Kind     *string

	includeTotal bool
}

type UpdateItemOptions struct {
	Columns []string
}

type DeleteItemOptions struct {
	// RemoveFromDisk also removes the underlying file or directory. Targeted
	// scans never set this; they only drop stale catalog rows.
	RemoveFromDisk bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateItem(ctx context.Context, item *models.Item) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = item.CreatedAt

	if item.SortName == "" {
		item.SortName = sortname.ForTitle(item.Name)
	}

	_, err := svc.db.
		NewInsert().
		Model(item).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item)

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("i.path = ? COLLATE NOCASE", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Item")
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

// FindByPath looks up an item by its filesystem path, case-insensitively.
// Unlike RetrieveItem it returns nil without an error when no item matches,
// since "not cataloged yet" is the normal case during a targeted scan.
func (svc *Service) FindByPath(ctx context.Context, path string) (*models.Item, error) {
	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{Path: &path})
	if err != nil {
		if errcodes.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return item, nil
}

// ParentOf returns the catalog parent of an item, or nil when the item has
// none (it is the aggregate root or an orphan).
func (svc *Service) ParentOf(ctx context.Context, item *models.Item) (*models.Item, error) {
	if item.ParentID == nil {
		return nil, nil
	}

	parent, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: item.ParentID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return parent, nil
}

func (svc *Service) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.Item, error) {
	i, _, err := svc.listItemsWithTotal(ctx, opts)
	return i, errors.WithStack(err)
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		Order("i.sort_name ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.ParentID != nil {
		q = q.Where("i.parent_id = ?", *opts.ParentID)
	}
	if opts.Kind != nil {
		q = q.Where("i.kind = ?", *opts.Kind)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return items, total, nil
}

// ListDescendants returns every cataloged item strictly under a path,
// shallowest first. Used by deep reconciliation to compare the catalog
// against what is actually on disk.
func (svc *Service) ListDescendants(ctx context.Context, path string) ([]*models.Item, error) {
	items := []*models.Item{}

	prefix := strings.TrimRight(path, string(filepath.Separator)) + string(filepath.Separator)

	err := svc.db.
		NewSelect().
		Model(&items).
		Where("i.path LIKE ? COLLATE NOCASE", prefix+"%").
		OrderExpr("LENGTH(i.path) - LENGTH(REPLACE(i.path, ?, '')) ASC, i.path ASC", string(filepath.Separator)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return items, nil
}

func (svc *Service) UpdateItem(ctx context.Context, item *models.Item, opts UpdateItemOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	item.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(item).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Item")
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) DeleteItem(ctx context.Context, item *models.Item, opts DeleteItemOptions) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Drop any descendants first so we never leave orphaned rows pointing
		// at a deleted parent.
		prefix := strings.TrimRight(item.Path, string(filepath.Separator)) + string(filepath.Separator)
		_, err := tx.
			NewDelete().
			Model((*models.Item)(nil)).
			Where("path LIKE ? COLLATE NOCASE", prefix+"%").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model(item).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if opts.RemoveFromDisk {
		if err := os.RemoveAll(item.Path); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

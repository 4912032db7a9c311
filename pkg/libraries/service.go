package libraries

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/errcodes"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/sortname"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveLibraryOptions struct {
	ID *int
}

type ListLibrariesOptions struct {
	Limit          *int
	Offset         *int
	IncludeDeleted bool

	includeTotal bool
}

type UpdateLibraryOptions struct {
	Columns            []string
	UpdateLibraryPaths bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateLibrary inserts the library, its mount paths, and a collection
// folder item per mount path. The collection folder items are what anchor
// targeted scans: an ancestor walk up from a scanned path terminates once it
// reaches one of them.
func (svc *Service) CreateLibrary(ctx context.Context, library *models.Library) error {
	now := time.Now()
	if library.CreatedAt.IsZero() {
		library.CreatedAt = now
	}
	library.UpdatedAt = library.CreatedAt
	if library.Classification == "" {
		library.Classification = models.ClassificationMixed
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(library).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, path := range library.LibraryPaths {
			path.LibraryID = library.ID
			path.CreatedAt = library.CreatedAt
		}

		if len(library.LibraryPaths) > 0 {
			_, err := tx.
				NewInsert().
				Model(&library.LibraryPaths).
				Returning("*").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		for i, path := range library.LibraryPaths {
			item, err := upsertCollectionFolder(ctx, tx, library, path.Filepath)
			if err != nil {
				return errors.WithStack(err)
			}
			if i == 0 {
				library.ItemID = &item.ID
				_, err = tx.
					NewUpdate().
					Model(library).
					Column("item_id").
					WherePK().
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func upsertCollectionFolder(ctx context.Context, tx bun.Tx, library *models.Library, path string) (*models.Item, error) {
	existing := &models.Item{}
	err := tx.
		NewSelect().
		Model(existing).
		Where("i.path = ? COLLATE NOCASE", path).
		Scan(ctx)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	item := &models.Item{
		LibraryID: &library.ID,
		Path:      path,
		Name:      filepath.Base(path),
		SortName:  sortname.ForTitle(filepath.Base(path)),
		Kind:      models.KindCollectionFolder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = tx.
		NewInsert().
		Model(item).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) RetrieveLibrary(ctx context.Context, opts RetrieveLibraryOptions) (*models.Library, error) {
	library := &models.Library{}

	q := svc.db.
		NewSelect().
		Model(library).
		Column("l.*").
		Relation("LibraryPaths", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("filepath ASC")
		}).
		Group("l.id")

	if opts.ID != nil {
		q = q.Where("l.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Library")
		}
		return nil, errors.WithStack(err)
	}

	return library, nil
}

func (svc *Service) ListLibraries(ctx context.Context, opts ListLibrariesOptions) ([]*models.Library, error) {
	l, _, err := svc.listLibrariesWithTotal(ctx, opts)
	return l, errors.WithStack(err)
}

func (svc *Service) ListLibrariesWithTotal(ctx context.Context, opts ListLibrariesOptions) ([]*models.Library, int, error) {
	opts.includeTotal = true
	return svc.listLibrariesWithTotal(ctx, opts)
}

func (svc *Service) listLibrariesWithTotal(ctx context.Context, opts ListLibrariesOptions) ([]*models.Library, int, error) {
	libraries := []*models.Library{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&libraries).
		Column("l.*").
		Relation("LibraryPaths", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("filepath ASC")
		}).
		Group("l.id").
		Order("l.name ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if !opts.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return libraries, total, nil
}

func (svc *Service) UpdateLibrary(ctx context.Context, library *models.Library, opts UpdateLibraryOptions) error {
	if len(opts.Columns) == 0 && !opts.UpdateLibraryPaths {
		return nil
	}

	// Update updated_at.
	now := time.Now()
	library.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewUpdate().
			Model(library).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Library")
			}
			return errors.WithStack(err)
		}

		if opts.UpdateLibraryPaths {
			// Delete all existing library paths.
			_, err := tx.
				NewDelete().
				Model((*models.LibraryPath)(nil)).
				Where("library_id = ?", library.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			for _, path := range library.LibraryPaths {
				path.LibraryID = library.ID
				path.CreatedAt = now
			}

			// Insert new library paths.
			if len(library.LibraryPaths) > 0 {
				_, err := tx.
					NewInsert().
					Model(&library.LibraryPaths).
					Returning("*").
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}

			// Make sure each mount path has its collection folder anchor.
			for _, path := range library.LibraryPaths {
				if _, err := upsertCollectionFolder(ctx, tx, library, path.Filepath); err != nil {
					return errors.WithStack(err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// VirtualFolder is the wire shape external automation tools expect when they
// enumerate libraries before issuing targeted scans.
type VirtualFolder struct {
	Name           string   `json:"Name"`
	Locations      []string `json:"Locations"`
	CollectionType string   `json:"CollectionType"`
	ItemID         string   `json:"ItemId"`
}

func itemIDString(id int) string {
	return strconv.Itoa(id)
}

func (svc *Service) ListVirtualFolders(ctx context.Context) ([]VirtualFolder, error) {
	libraries, err := svc.ListLibraries(ctx, ListLibrariesOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	folders := make([]VirtualFolder, 0, len(libraries))
	for _, library := range libraries {
		vf := VirtualFolder{
			Name:           library.Name,
			Locations:      make([]string, 0, len(library.LibraryPaths)),
			CollectionType: library.Classification,
		}
		for _, path := range library.LibraryPaths {
			vf.Locations = append(vf.Locations, strings.TrimRight(path.Filepath, string(filepath.Separator)))
		}
		if library.ItemID != nil {
			vf.ItemID = itemIDString(*library.ItemID)
		}
		folders = append(folders, vf)
	}

	return folders, nil
}

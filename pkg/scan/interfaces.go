package scan

import (
	"context"
	"io/fs"

	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
)

// Store is the slice of the catalog the scanner needs. *items.Service
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	FindByPath(ctx context.Context, path string) (*models.Item, error)
	ParentOf(ctx context.Context, item *models.Item) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, item *models.Item, opts items.DeleteItemOptions) error
	ListDescendants(ctx context.Context, path string) ([]*models.Item, error)
	ResolveType(path string, isDir bool, parent *models.Item, classification string) *items.ResolvedType
	LibraryForPath(ctx context.Context, path string) (*models.Library, error)
}

// Probe answers existence and metadata questions about the filesystem.
// *filesystem.Service satisfies it.
type Probe interface {
	Exists(path string) bool
	Stat(path string) (fs.FileInfo, error)
}

// RefreshQueue enqueues asynchronous identification work. *refresh.Service
// satisfies it.
type RefreshQueue interface {
	Enqueue(ctx context.Context, itemID int, opts refresh.EnqueueOptions) (*models.RefreshJob, error)
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item kinds. Containers can have children; leaves cannot. A "folder" is a
// generic, provisionally-typed container: it is only a legitimate stopping
// point for an ancestor walk when it sits directly under a typed container
// or the catalog root.
const (
	KindAggregateRoot    = "aggregate_root"
	KindUserRoot         = "user_root"
	KindCollectionFolder = "collection_folder"
	KindFolder           = "folder"
	KindSeries           = "series"
	KindSeason           = "season"
	KindBoxSet           = "boxset"

	KindVideo   = "video"
	KindMovie   = "movie"
	KindEpisode = "episode"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LibraryID *int      `json:"library_id,omitempty"`
	ParentID  *int      `json:"parent_id,omitempty"`
	Path      string    `bun:",nullzero" json:"path"`
	Name      string    `bun:",nullzero" json:"name"`
	SortName  string    `bun:",nullzero" json:"sort_name"`
	Kind      string    `bun:",nullzero" json:"kind"`

	// Identification fields, filled in by the refresh worker.
	SizeBytes       *int64     `json:"size_bytes,omitempty"`
	MimeType        *string    `json:"mime_type,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	ProviderIDs     string     `bun:"provider_ids,nullzero" json:"-"`
	IdentifiedAt    *time.Time `json:"identified_at,omitempty"`
}

func (i *Item) IsContainer() bool {
	switch i.Kind {
	case KindAggregateRoot, KindUserRoot, KindCollectionFolder, KindFolder, KindSeries, KindSeason, KindBoxSet:
		return true
	}
	return false
}

func (i *Item) IsLeaf() bool {
	return !i.IsContainer()
}

// IsGenericContainer reports whether the item is a provisionally-typed
// container produced by an earlier, less precise indexing pass.
func (i *Item) IsGenericContainer() bool {
	return i.Kind == KindFolder
}

func (i *Item) IsTypedContainer() bool {
	return i.IsContainer() && !i.IsGenericContainer()
}

// IsLibraryRootKind reports whether the item terminates an ancestor refresh
// cascade: the catalog-wide aggregate root or a user's root folder.
func (i *Item) IsLibraryRootKind() bool {
	return i.Kind == KindAggregateRoot || i.Kind == KindUserRoot
}

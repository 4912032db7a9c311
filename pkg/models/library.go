package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Library content classifications. These drive how paths under a library's
// mount points are typed during a targeted scan.
const (
	ClassificationTVShows = "tvshows"
	ClassificationMovies  = "movies"
	ClassificationMusic   = "music"
	ClassificationMixed   = "mixed"
)

type Library struct {
	bun.BaseModel `bun:"table:libraries,alias:l"`

	ID             int            `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Name           string         `bun:",nullzero" json:"name"`
	Classification string         `bun:",nullzero,default:'mixed'" json:"classification"`
	ItemID         *int           `json:"item_id,omitempty"`
	LibraryPaths   []*LibraryPath `bun:"rel:has-many" json:"library_paths,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

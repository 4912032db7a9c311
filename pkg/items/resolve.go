package items

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/pkg/errors"
)

// Extensions we recognize as video without sniffing the file contents.
var videoExtensions = map[string]bool{
	".avi":  true,
	".flv":  true,
	".m2ts": true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".mp4":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
	".webm": true,
	".wmv":  true,
}

// ResolvedType is the outcome of typing a filesystem path against its
// catalog parent and the classification of the library it sits in.
type ResolvedType struct {
	Kind string
	Name string
}

// ResolveType decides what kind of item a path should become. It returns nil
// when the path is not catalogable at all (e.g. a subtitle or artwork file),
// which callers treat as "skip, don't create".
//
// Directories are typed by position: directly under a typed library container
// in a TV library they become series, under a series they become seasons, and
// anywhere else they become generic folders to be firmed up by a later deep
// scan. Files must look like video; their kind then follows the library
// classification.
func (svc *Service) ResolveType(path string, isDir bool, parent *models.Item, classification string) *ResolvedType {
	base := filepath.Base(path)

	if isDir {
		kind := models.KindFolder
		if classification == models.ClassificationTVShows && parent != nil {
			switch parent.Kind {
			// A generic folder only ever parents a creation when it was
			// adopted as a library mount point, so it behaves like a
			// collection root here.
			case models.KindCollectionFolder, models.KindUserRoot, models.KindAggregateRoot, models.KindFolder:
				kind = models.KindSeries
			case models.KindSeries:
				kind = models.KindSeason
			}
		}
		return &ResolvedType{Kind: kind, Name: base}
	}

	if !isVideoFile(path) {
		return nil
	}

	name := strings.TrimSuffix(base, filepath.Ext(base))
	kind := models.KindVideo
	switch classification {
	case models.ClassificationMovies:
		kind = models.KindMovie
	case models.ClassificationTVShows:
		if parent != nil && (parent.Kind == models.KindSeason || parent.Kind == models.KindSeries) {
			kind = models.KindEpisode
		}
	}

	return &ResolvedType{Kind: kind, Name: name}
}

// isVideoFile checks the extension table first and only falls back to
// content sniffing for extensions we don't recognize either way.
func isVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if videoExtensions[ext] {
		return true
	}
	if ext != "" {
		return false
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mtype.String(), "video/")
}

// LibraryForPath returns the library whose mount point is the longest prefix
// of the given path, or nil when the path is outside every library.
func (svc *Service) LibraryForPath(ctx context.Context, path string) (*models.Library, error) {
	libraryPaths := []*models.LibraryPath{}

	err := svc.db.
		NewSelect().
		Model(&libraryPaths).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	lowered := strings.ToLower(path)
	var best *models.LibraryPath
	for _, lp := range libraryPaths {
		prefix := strings.TrimRight(strings.ToLower(lp.Filepath), string(filepath.Separator))
		if lowered != prefix && !strings.HasPrefix(lowered, prefix+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(lp.Filepath) > len(best.Filepath) {
			best = lp
		}
	}
	if best == nil {
		return nil, nil
	}

	library := &models.Library{}
	err = svc.db.
		NewSelect().
		Model(library).
		Where("l.id = ?", best.LibraryID).
		Where("l.deleted_at IS NULL").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return library, nil
}

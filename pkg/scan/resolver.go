package scan

import (
	"context"
	"path/filepath"

	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/pkg/errors"
)

// resolution is the outcome of an ancestor walk: the nearest usable
// container above the target, plus the directories between them that are
// missing from the catalog, in the order the walk visited them (deepest
// first).
type resolution struct {
	ancestor *models.Item
	missing  []string
}

// resolveAncestor walks upward from the target's parent directory until it
// finds a container the chain can be built under. The walk only reads, so it
// runs without any lock and may race with other scans; everything it
// concludes is re-checked under the ancestor lock before being acted on.
func (svc *Service) resolveAncestor(ctx context.Context, path string, cache *LookupCache) (*resolution, error) {
	res := &resolution{}

	dir := filepath.Dir(path)
	for {
		item, err := svc.lookup(ctx, dir, cache)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		switch {
		case item == nil:
			// Not cataloged; part of the missing chain.
		case item.IsLeaf():
			// A leaf registered at a directory path can't parent anything.
			// Skip over it rather than crash; the creator will deal with the
			// conflicting row if the chain reaches it.
		case item.IsGenericContainer():
			stray, err := svc.isStray(ctx, item)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			if !stray {
				res.ancestor = item
				return res, nil
			}
			// A stray sits under another generic folder, so it can't be a
			// real mount point. Recreate it along with the rest.
		default:
			res.ancestor = item
			return res, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Filesystem root, nothing usable found.
			return res, nil
		}
		res.missing = append(res.missing, dir)
		dir = parent
	}
}

// isStray applies the type-correctness rule: a generic container is only a
// legitimate stopping point when its own parent is not generic too.
func (svc *Service) isStray(ctx context.Context, item *models.Item) (bool, error) {
	parent, err := svc.store.ParentOf(ctx, item)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return parent != nil && parent.IsGenericContainer(), nil
}

func (svc *Service) lookup(ctx context.Context, path string, cache *LookupCache) (*models.Item, error) {
	if item, ok := cache.Get(path); ok {
		return item, nil
	}

	item, err := svc.store.FindByPath(ctx, path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cache.Put(path, item)

	return item, nil
}

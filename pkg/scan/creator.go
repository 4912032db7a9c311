package scan

import (
	"context"
	"strconv"

	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
	"github.com/robinjoseph08/golib/logger"
)

// Scans only ever drop catalog rows; the files themselves stay on disk.
var deleteKeepFile = items.DeleteItemOptions{RemoveFromDisk: false}

func itemID(item *models.Item) string {
	return strconv.Itoa(item.ID)
}

// createUnderLock materializes the missing chain for a target path. It runs
// while holding the resolved ancestor's lock, so every existence conclusion
// from the unlocked resolution phase is re-checked against the store here.
func (svc *Service) createUnderLock(ctx context.Context, target string, res *resolution, cache *LookupCache) Result {
	log := svc.log.Root(logger.Data{"path": target, "ancestor": res.ancestor.Path})

	sctx, cancel := svc.storeCtx(ctx)
	library, err := svc.store.LibraryForPath(sctx, target)
	cancel()
	if err != nil {
		log.Err(err).Error("library lookup error")
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	classification := ""
	var libraryID *int
	if library != nil {
		classification = library.Classification
		libraryID = &library.ID
	}

	// Another request may have finished this exact path between our unlocked
	// resolution and the lock grant.
	existing, failed := svc.recheck(ctx, target, cache, log)
	if failed != nil {
		return *failed
	}
	if existing != nil {
		stray, err := svc.strayUnderLock(ctx, existing)
		if err != nil {
			log.Err(err).Error("stray check error")
			return Result{Status: StatusFailed, Message: err.Error()}
		}
		if !stray {
			svc.enqueueRefresh(ctx, existing, log)
			return Result{Status: StatusRefreshed, ItemID: itemID(existing), ItemName: existing.Name}
		}
		if r := svc.deleteUnderLock(ctx, existing, cache, log); r != nil {
			return *r
		}
	}

	// The resolver walked deepest-first; creation goes root-first, ending
	// with the target itself.
	segments := make([]string, 0, len(res.missing)+1)
	for i := len(res.missing) - 1; i >= 0; i-- {
		segments = append(segments, res.missing[i])
	}
	segments = append(segments, target)

	current := res.ancestor
	var last *models.Item
	for _, segment := range segments {
		// A holder of a different, higher ancestor key can have created a
		// shared intermediate segment while we were waiting for our lock.
		existing, failed := svc.recheck(ctx, segment, cache, log)
		if failed != nil {
			return *failed
		}
		if existing != nil {
			stray, err := svc.strayUnderLock(ctx, existing)
			if err != nil {
				log.Err(err).Error("stray check error")
				return Result{Status: StatusFailed, Message: err.Error()}
			}
			if !stray {
				last = existing
				if existing.IsLeaf() {
					break
				}
				current = existing
				continue
			}
			if r := svc.deleteUnderLock(ctx, existing, cache, log); r != nil {
				return *r
			}
		}

		info, err := svc.probe.Stat(segment)
		if err != nil {
			log.Err(err).Error("probe error")
			return Result{Status: StatusFailed, Message: err.Error()}
		}

		resolved := svc.store.ResolveType(segment, info.IsDir(), current, classification)
		if resolved == nil {
			// Unclassifiable node: abort instead of committing a half-built
			// chain past it.
			return Result{Status: StatusFailed, Message: "Unable to resolve a type for " + segment + "."}
		}

		item := &models.Item{
			LibraryID: libraryID,
			ParentID:  &current.ID,
			Path:      segment,
			Name:      resolved.Name,
			Kind:      resolved.Kind,
		}
		sctx, cancel := svc.storeCtx(ctx)
		err = svc.store.CreateItem(sctx, item)
		cancel()
		if err != nil {
			log.Err(err).Error("create item error")
			return Result{Status: StatusFailed, Message: err.Error()}
		}
		cache.Put(segment, item)

		// Identification starts right away; it never waits for the rest of
		// the chain.
		svc.enqueueRefresh(ctx, item, log)

		last = item
		if item.IsLeaf() {
			break
		}
		current = item
	}

	if last == nil {
		return Result{Status: StatusFailed, Message: "Nothing was created for " + target + "."}
	}

	return Result{Status: StatusCreated, ItemID: itemID(last), ItemName: last.Name}
}

// recheck bypasses the batch cache on purpose: under the lock only the store
// is authoritative. The fresh answer is written back into the cache.
func (svc *Service) recheck(ctx context.Context, path string, cache *LookupCache, log logger.Logger) (*models.Item, *Result) {
	sctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	item, err := svc.store.FindByPath(sctx, path)
	if err != nil {
		log.Err(err).Error("recheck lookup error")
		return nil, &Result{Status: StatusFailed, Message: err.Error()}
	}
	cache.Put(path, item)

	return item, nil
}

// strayUnderLock mirrors the resolver's rule for rows found under the lock:
// only a generic container sitting under another generic container is
// considered mis-typed leftovers worth replacing.
func (svc *Service) strayUnderLock(ctx context.Context, item *models.Item) (bool, error) {
	if !item.IsGenericContainer() {
		return false, nil
	}

	sctx, cancel := svc.storeCtx(ctx)
	defer cancel()
	return svc.isStray(sctx, item)
}

func (svc *Service) deleteUnderLock(ctx context.Context, item *models.Item, cache *LookupCache, log logger.Logger) *Result {
	sctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	if err := svc.store.DeleteItem(sctx, item, deleteKeepFile); err != nil {
		log.Err(err).Error("delete stray error")
		return &Result{Status: StatusFailed, Message: err.Error()}
	}
	cache.Put(item.Path, nil)

	return nil
}

func (svc *Service) enqueueRefresh(ctx context.Context, item *models.Item, log logger.Logger) {
	_, err := svc.queue.Enqueue(ctx, item.ID, refresh.EnqueueOptions{
		Mode:       models.RefreshModeFull,
		ReplaceAll: true,
		Priority:   models.RefreshPriorityHigh,
	})
	if err != nil {
		// Identification is fire-and-forget; a failed enqueue doesn't undo
		// the scan.
		log.Err(err).Error("enqueue refresh error")
	}
}

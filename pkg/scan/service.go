package scan

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robinjoseph08/golib/logger"
)

// Result statuses, as they appear on the wire.
const (
	StatusCreated        = "Created"
	StatusRefreshed      = "Refreshed"
	StatusPathNotFound   = "PathNotFound"
	StatusParentNotFound = "ParentNotFound"
	StatusFailed         = "Failed"
	StatusDiscovered     = "Discovered"
	StatusRemoved        = "Removed"
)

// Result is the outcome of scanning one path.
type Result struct {
	ItemID   string `json:"ItemId,omitempty"`
	ItemName string `json:"ItemName,omitempty"`
	Status   string `json:"Status"`
	Message  string `json:"Message,omitempty"`
	Path     string `json:"Path,omitempty"`
}

type Options struct {
	// StoreTimeout bounds each store call made while holding an ancestor
	// lock, so a stuck store can't pin the lock forever. Zero disables it.
	StoreTimeout time.Duration
	// Reconcile enables the detached deep-reconciliation pass on the
	// resolved ancestor after a successful scan.
	Reconcile bool
}

// Service inserts individual filesystem paths into the catalog without a
// full library scan, tolerating concurrent overlapping requests.
type Service struct {
	store Store
	probe Probe
	queue RefreshQueue
	log   logger.Logger

	locks          *Registry
	reconcileLocks *Registry

	storeTimeout time.Duration
	reconcile    bool
	background   sync.WaitGroup
}

func NewService(store Store, probe Probe, queue RefreshQueue, opts Options) *Service {
	return &Service{
		store:          store,
		probe:          probe,
		queue:          queue,
		log:            logger.New(),
		locks:          NewRegistry(),
		reconcileLocks: NewRegistry(),
		storeTimeout:   opts.StoreTimeout,
		reconcile:      opts.Reconcile,
	}
}

// ScanPath inserts a single path into the catalog. It is synchronous except
// for the detached reconciliation tail.
func (svc *Service) ScanPath(ctx context.Context, path string) Result {
	return svc.scanPath(ctx, path, nil)
}

// ScanPaths inserts a batch of paths. Duplicates are collapsed
// case-insensitively and the remainder is processed shallowest-first so
// ancestors are always handled before their descendants, sharing one lookup
// cache across the whole batch.
func (svc *Service) ScanPaths(ctx context.Context, paths []string) []Result {
	distinct := make([]string, 0, len(paths))
	seen := map[string]bool{}
	for _, path := range paths {
		key := strings.ToLower(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, path)
	}

	sort.SliceStable(distinct, func(i, j int) bool {
		di := strings.Count(distinct[i], string(filepath.Separator))
		dj := strings.Count(distinct[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return distinct[i] < distinct[j]
	})

	cache := NewLookupCache()
	results := make([]Result, 0, len(distinct))
	for _, path := range distinct {
		result := svc.scanPath(ctx, path, cache)
		result.Path = path
		results = append(results, result)
	}

	return results
}

func (svc *Service) scanPath(ctx context.Context, path string, cache *LookupCache) Result {
	log := svc.log.Root(logger.Data{"path": path})

	// Stale-entry cleanup, no lock needed: a path that vanished from disk
	// but still has a catalog row was renamed or deleted externally.
	if !svc.probe.Exists(path) {
		return svc.cleanupStaleEntry(ctx, path, cache)
	}

	res, err := svc.resolveAncestor(ctx, path, cache)
	if err != nil {
		log.Err(err).Error("ancestor resolution error")
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	if res.ancestor == nil {
		return Result{Status: StatusParentNotFound, Message: "No usable parent found for path."}
	}

	token := svc.locks.Acquire(res.ancestor.Path)
	result := svc.createUnderLock(ctx, path, res, cache)
	svc.locks.Release(token)

	if result.Status == StatusCreated || result.Status == StatusRefreshed {
		if err := svc.cascadeAncestors(ctx, res.ancestor); err != nil {
			log.Err(err).Error("ancestor cascade error")
		}
		if svc.reconcile {
			svc.scheduleReconcile(res.ancestor)
		}
	}

	return result
}

func (svc *Service) cleanupStaleEntry(ctx context.Context, path string, cache *LookupCache) Result {
	item, err := svc.store.FindByPath(ctx, path)
	if err != nil {
		svc.log.Root(logger.Data{"path": path}).Err(err).Error("stale lookup error")
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	if item == nil {
		return Result{Status: StatusPathNotFound, Message: "Path does not exist."}
	}

	// Only the catalog row goes away; the underlying file is never touched.
	err = svc.store.DeleteItem(ctx, item, deleteKeepFile)
	if err != nil {
		svc.log.Root(logger.Data{"path": path}).Err(err).Error("stale delete error")
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	cache.Put(path, nil)

	return Result{Status: StatusRemoved, ItemID: itemID(item), ItemName: item.Name}
}

// Wait blocks until all detached reconciliation passes have finished. Used
// on shutdown and in tests.
func (svc *Service) Wait() {
	svc.background.Wait()
}

// storeCtx bounds a store call made inside a lock window.
func (svc *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.storeTimeout)
}

package scan

import (
	"context"
	"time"

	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// reconcileTimeout bounds one detached reconciliation pass. These are
// allowed to take much longer than the request that spawned them.
const reconcileTimeout = 5 * time.Minute

// cascadeAncestors queues identification for the ancestor chain, outermost
// first. The ordering matters: an episode's identification depends on its
// series already carrying provider identifiers, so the series must be
// refreshed before the season, the season before anything below it.
func (svc *Service) cascadeAncestors(ctx context.Context, ancestor *models.Item) error {
	chain := []*models.Item{}

	current := ancestor
	for current != nil {
		chain = append(chain, current)
		if current.IsLibraryRootKind() {
			break
		}

		parent, err := svc.store.ParentOf(ctx, current)
		if err != nil {
			return errors.WithStack(err)
		}
		if parent == nil {
			// Top of the catalog; a top-level collection folder ends the
			// cascade the same way an explicit root marker does.
			break
		}
		current = parent
	}

	for i := len(chain) - 1; i >= 0; i-- {
		_, err := svc.queue.Enqueue(ctx, chain[i].ID, refresh.EnqueueOptions{
			Mode:     models.RefreshModeDefault,
			Priority: models.RefreshPriorityNormal,
		})
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// scheduleReconcile launches a detached deep pass over the ancestor subtree.
// If one is already running for this ancestor the new request is skipped
// outright rather than queued; the running pass will observe a state at
// least as fresh as ours. Failures are logged and swallowed — the original
// request has already been answered.
func (svc *Service) scheduleReconcile(ancestor *models.Item) {
	token, ok := svc.reconcileLocks.TryAcquire(ancestor.Path)
	if !ok {
		return
	}

	svc.background.Add(1)
	go func() {
		defer svc.background.Done()
		defer svc.reconcileLocks.Release(token)

		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		if err := svc.reconcileSubtree(ctx, ancestor); err != nil {
			svc.log.Root(logger.Data{"ancestor": ancestor.Path}).Err(err).Error("reconciliation error")
		}
	}()
}

// reconcileSubtree re-verifies every cataloged descendant of the ancestor
// against the filesystem, dropping rows whose files have vanished and
// re-queuing identification for anything never identified.
func (svc *Service) reconcileSubtree(ctx context.Context, ancestor *models.Item) error {
	descendants, err := svc.store.ListDescendants(ctx, ancestor.Path)
	if err != nil {
		return errors.WithStack(err)
	}

	removed := map[int]bool{}
	for _, item := range descendants {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		if item.ParentID != nil && removed[*item.ParentID] {
			// Already gone with its parent's delete.
			removed[item.ID] = true
			continue
		}

		if !svc.probe.Exists(item.Path) {
			if err := svc.store.DeleteItem(ctx, item, deleteKeepFile); err != nil {
				return errors.WithStack(err)
			}
			removed[item.ID] = true
			continue
		}

		if item.IsLeaf() && item.IdentifiedAt == nil {
			_, err := svc.queue.Enqueue(ctx, item.ID, refresh.EnqueueOptions{
				Mode:     models.RefreshModeDefault,
				Priority: models.RefreshPriorityNormal,
			})
			if err != nil {
				return errors.WithStack(err)
			}
		}
	}

	return nil
}

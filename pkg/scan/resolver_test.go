package scan

import (
	"context"
	"testing"

	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAncestor(t *testing.T) {
	t.Parallel()

	t.Run("typed parent is the ancestor", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/tv", nil)
		series := store.seed(models.KindSeries, "/media/tv/The Wire", root)
		season := store.seed(models.KindSeason, "/media/tv/The Wire/Season 01", series)

		res, err := svc.resolveAncestor(context.Background(), "/media/tv/The Wire/Season 01/S01E01.mkv", nil)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		assert.Equal(t, season.ID, res.ancestor.ID)
		assert.Empty(t, res.missing)
	})

	t.Run("missing directories collected deepest first", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/tv", nil)

		res, err := svc.resolveAncestor(context.Background(), "/media/tv/The Wire/Season 01/S01E01.mkv", nil)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		assert.Equal(t, root.ID, res.ancestor.ID)
		assert.Equal(t, []string{"/media/tv/The Wire/Season 01", "/media/tv/The Wire"}, res.missing)
	})

	t.Run("acceptable generic container stops the walk", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/movies", nil)
		folder := store.seed(models.KindFolder, "/media/movies/Heat (1995)", root)

		res, err := svc.resolveAncestor(context.Background(), "/media/movies/Heat (1995)/Heat (1995).mkv", nil)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		assert.Equal(t, folder.ID, res.ancestor.ID)
	})

	t.Run("stray generic container is skipped and recreated", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/tv", nil)
		outer := store.seed(models.KindFolder, "/media/tv/Pile", root)
		stray := store.seed(models.KindFolder, "/media/tv/Pile/Deeper", outer)

		res, err := svc.resolveAncestor(context.Background(), "/media/tv/Pile/Deeper/file.mkv", nil)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		// The outer folder sits directly under a typed container, so it is a
		// legitimate mount point; the inner one is stray and goes onto the
		// missing list.
		assert.Equal(t, outer.ID, res.ancestor.ID)
		assert.Equal(t, []string{stray.Path}, res.missing)
	})

	t.Run("leaf registered at a directory path is skipped", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/tv", nil)
		store.seed(models.KindVideo, "/media/tv/Oddity", root)

		res, err := svc.resolveAncestor(context.Background(), "/media/tv/Oddity/file.mkv", nil)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		assert.Equal(t, root.ID, res.ancestor.ID)
		assert.Equal(t, []string{"/media/tv/Oddity"}, res.missing)
	})

	t.Run("no usable ancestor", func(t *testing.T) {
		t.Parallel()
		svc, _, _, _, _ := newTestService(Options{})

		res, err := svc.resolveAncestor(context.Background(), "/somewhere/else/file.mkv", nil)
		require.NoError(t, err)
		assert.Nil(t, res.ancestor)
	})

	t.Run("cache avoids repeat store lookups", func(t *testing.T) {
		t.Parallel()
		svc, store, _, _, _ := newTestService(Options{})

		root := store.seed(models.KindCollectionFolder, "/media/tv", nil)
		cache := NewLookupCache()

		_, err := svc.resolveAncestor(context.Background(), "/media/tv/The Wire/S01E01.mkv", cache)
		require.NoError(t, err)

		// Poison the store; a second resolution of the same chain must be
		// answered entirely from the cache.
		store.findErr = assert.AnError

		res, err := svc.resolveAncestor(context.Background(), "/media/tv/The Wire/S01E02.mkv", cache)
		require.NoError(t, err)
		require.NotNil(t, res.ancestor)
		assert.Equal(t, root.ID, res.ancestor.ID)
	})
}

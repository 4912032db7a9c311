package items

import (
	"context"
	"testing"

	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveType(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	svc := NewService(db)

	collection := &models.Item{Kind: models.KindCollectionFolder}
	series := &models.Item{Kind: models.KindSeries}
	season := &models.Item{Kind: models.KindSeason}
	folder := &models.Item{Kind: models.KindFolder}

	t.Run("directories in a tv library", func(t *testing.T) {
		t.Parallel()

		resolved := svc.ResolveType("/media/tv/The Wire", true, collection, models.ClassificationTVShows)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindSeries, resolved.Kind)
		assert.Equal(t, "The Wire", resolved.Name)

		resolved = svc.ResolveType("/media/tv/The Wire/Season 01", true, series, models.ClassificationTVShows)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindSeason, resolved.Kind)

		// A directory below a season has no precise type yet.
		resolved = svc.ResolveType("/media/tv/The Wire/Season 01/Extras", true, season, models.ClassificationTVShows)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindFolder, resolved.Kind)
	})

	t.Run("directories in a movie library are generic", func(t *testing.T) {
		t.Parallel()

		resolved := svc.ResolveType("/media/movies/Heat (1995)", true, collection, models.ClassificationMovies)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindFolder, resolved.Kind)
	})

	t.Run("video files follow the classification", func(t *testing.T) {
		t.Parallel()

		resolved := svc.ResolveType("/media/movies/Heat (1995)/Heat (1995).mkv", false, folder, models.ClassificationMovies)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindMovie, resolved.Kind)
		assert.Equal(t, "Heat (1995)", resolved.Name)

		resolved = svc.ResolveType("/media/tv/The Wire/Season 01/S01E01.mkv", false, season, models.ClassificationTVShows)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindEpisode, resolved.Kind)

		// A video directly under a generic folder in a tv library is too
		// ambiguous to call an episode.
		resolved = svc.ResolveType("/media/tv/loose.mkv", false, folder, models.ClassificationTVShows)
		require.NotNil(t, resolved)
		assert.Equal(t, models.KindVideo, resolved.Kind)
	})

	t.Run("non-video files are skipped", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, svc.ResolveType("/media/movies/Heat (1995)/poster.jpg", false, folder, models.ClassificationMovies))
		assert.Nil(t, svc.ResolveType("/media/tv/The Wire/Season 01/S01E01.srt", false, season, models.ClassificationTVShows))
	})
}

func TestLibraryForPath(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	svc := NewService(db)
	createTestLibrary(t, db, models.ClassificationTVShows, "/media/tv")
	movies := createTestLibrary(t, db, models.ClassificationMovies, "/media/movies", "/mnt/movies")

	t.Run("matches the containing library", func(t *testing.T) {
		library, err := svc.LibraryForPath(ctx, "/media/movies/Heat (1995)/Heat (1995).mkv")
		require.NoError(t, err)
		require.NotNil(t, library)
		assert.Equal(t, movies.ID, library.ID)
	})

	t.Run("matches case-insensitively", func(t *testing.T) {
		library, err := svc.LibraryForPath(ctx, "/Media/Movies/Heat (1995)")
		require.NoError(t, err)
		require.NotNil(t, library)
		assert.Equal(t, movies.ID, library.ID)
	})

	t.Run("matches a secondary mount point", func(t *testing.T) {
		library, err := svc.LibraryForPath(ctx, "/mnt/movies/Alien (1979).mkv")
		require.NoError(t, err)
		require.NotNil(t, library)
		assert.Equal(t, movies.ID, library.ID)
	})

	t.Run("no prefix match returns nil", func(t *testing.T) {
		library, err := svc.LibraryForPath(ctx, "/media/music/album/track.flac")
		require.NoError(t, err)
		assert.Nil(t, library)
	})

	t.Run("sibling prefix does not match", func(t *testing.T) {
		library, err := svc.LibraryForPath(ctx, "/media/tvshows/file.mkv")
		require.NoError(t, err)
		assert.Nil(t, library)
	})
}

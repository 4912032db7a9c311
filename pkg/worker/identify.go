package worker

import (
	"context"
	"os"
	"strings"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// processRefreshJob runs one identification pass over an item. Everything it
// stamps comes from the file itself; a default-mode job on an already
// identified item is a no-op unless the job asks for a replacement.
func (w *Worker) processRefreshJob(ctx context.Context, job *models.RefreshJob) error {
	item, err := w.itemService.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &job.ItemID})
	if err != nil {
		return errors.WithStack(err)
	}

	if item.IdentifiedAt != nil && job.Mode != models.RefreshModeFull && !job.ReplaceAll {
		return nil
	}

	now := time.Now()
	columns := []string{"identified_at"}
	item.IdentifiedAt = &now

	if item.IsLeaf() {
		if err := w.identifyFile(ctx, item); err != nil {
			return errors.WithStack(err)
		}
		columns = append(columns, "size_bytes", "mime_type", "duration_seconds")
	}

	err = w.itemService.UpdateItem(ctx, item, items.UpdateItemOptions{Columns: columns})
	return errors.WithStack(err)
}

func (w *Worker) identifyFile(ctx context.Context, item *models.Item) error {
	log := logger.FromContext(ctx)

	info, err := os.Stat(item.Path)
	if err != nil {
		return errors.WithStack(err)
	}
	size := info.Size()
	item.SizeBytes = &size

	mtype, err := mimetype.DetectFile(item.Path)
	if err != nil {
		return errors.WithStack(err)
	}
	mt := mtype.String()
	item.MimeType = &mt

	// Duration is only probed for MP4-family files; other containers keep a
	// null duration until a richer probe is wired in.
	if isMP4Family(mt) {
		duration, err := probeDuration(item.Path)
		if err != nil {
			// A torn or still-copying file shouldn't fail identification.
			log.Err(err).Warn("duration probe error")
		} else {
			item.DurationSeconds = &duration
		}
	}

	return nil
}

func isMP4Family(mimeType string) bool {
	return mimeType == "video/mp4" || mimeType == "video/quicktime" ||
		strings.HasSuffix(mimeType, "/mp4")
}

func probeDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer f.Close()

	info, err := gomp4.Probe(f)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if info.Timescale == 0 {
		return 0, errors.New("mp4 probe returned a zero timescale")
	}

	return float64(info.Duration) / float64(info.Timescale), nil
}

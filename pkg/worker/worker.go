package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kinotekahq/kinoteka/pkg/config"
	"github.com/kinotekahq/kinoteka/pkg/items"
	"github.com/kinotekahq/kinoteka/pkg/models"
	"github.com/kinotekahq/kinoteka/pkg/refresh"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

// Worker drains the refresh queue: it claims pending identification jobs
// and fills in what can be derived from the file itself (size, mime type,
// duration). Provider matching against external metadata sources would hang
// off the same job, but is handled elsewhere.
type Worker struct {
	config *config.Config
	log    logger.Logger

	itemService    *items.Service
	refreshService *refresh.Service

	queue          chan *models.RefreshJob
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	itemService := items.NewService(db)
	refreshService := refresh.NewService(db)

	return &Worker{
		config: cfg,
		log:    logger.New(),

		itemService:    itemService,
		refreshService: refreshService,

		queue:          make(chan *models.RefreshJob, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := w.config.WorkerPollInterval
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			job, err := w.refreshService.ClaimNextPending(context.Background(), processID)
			if err != nil {
				w.log.Err(err).Error("claim job error")
				timer.Reset(duration)
				continue
			}
			if job == nil {
				timer.Reset(duration)
				continue
			}
			w.queue <- job
			// Keep claiming without delay while there's work.
			timer.Reset(0)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "item_id": job.ItemID, "process_id": processID})
			ctx := log.WithContext(context.Background())

			err = w.processRefreshJob(ctx, job)
			if err != nil {
				log.Err(err).Error("process error")

				job.Status = models.RefreshJobStatusFailed
				job.Error = pointerutil.String(err.Error())
				err = w.refreshService.UpdateJob(ctx, job, refresh.UpdateJobOptions{
					Columns: []string{"status", "error"},
				})
				if err != nil {
					log.Err(err).Error("update job error")
				}
				continue
			}

			// Update job to be completed so that it's not picked up anymore.
			job.Status = models.RefreshJobStatusCompleted

			err = w.refreshService.UpdateJob(ctx, job, refresh.UpdateJobOptions{
				Columns: []string{"status"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
			}
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

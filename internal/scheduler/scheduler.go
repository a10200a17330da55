// Package scheduler sweeps for due sources and runs the right crawler
// for each, wrapping every run in a tracked crawl job.
package scheduler

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/model"
)

// Stats is what a crawler reports back for the job record.
type Stats struct {
	PagesCrawled    int
	ProductsFound   int
	ProductsNew     int
	ProductsUpdated int
	ErrorCount      int
	Summary         string
}

// CrawlFunc runs one crawl against a source.
type CrawlFunc func(ctx context.Context, src *model.Source) (*Stats, error)

// Store is the persistence subset the scheduler drives.
type Store interface {
	ListDueSources(ctx context.Context, now time.Time) ([]model.Source, error)
	UpdateSourceCrawlTimes(ctx context.Context, sourceID string, lastCrawl, nextCrawl time.Time) error
	CreateJob(ctx context.Context, job *model.CrawlJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	FinishJob(ctx context.Context, job *model.CrawlJob) error
}

// Scheduler dispatches due sources to per-category crawlers.
type Scheduler struct {
	store    Store
	crawlers map[model.SourceCategory]CrawlFunc
	interval time.Duration
}

func New(st Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		store:    st,
		crawlers: map[model.SourceCategory]CrawlFunc{},
		interval: interval,
	}
}

// Register installs the crawler for one source category.
func (s *Scheduler) Register(cat model.SourceCategory, fn CrawlFunc) {
	s.crawlers[cat] = fn
}

// RunOnce sweeps all currently due sources. Each source runs under its
// own job; one failing source never blocks the rest of the sweep.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListDueSources(ctx, now)
	if err != nil {
		return 0, eris.Wrap(err, "scheduler: list due sources")
	}

	ran := 0
	for i := range due {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		src := &due[i]
		fn, ok := s.crawlers[src.Category]
		if !ok {
			zap.L().Debug("no crawler registered for category",
				zap.String("source", src.Slug),
				zap.String("category", string(src.Category)))
			continue
		}
		if err := s.runSource(ctx, src, fn, now); err != nil {
			zap.L().Error("scheduled crawl failed",
				zap.String("source", src.Slug), zap.Error(err))
		}
		ran++
	}
	return ran, nil
}

// runSource executes one crawl under a job record and reschedules the
// source afterwards, succeed or fail.
func (s *Scheduler) runSource(ctx context.Context, src *model.Source, fn CrawlFunc, now time.Time) error {
	job := &model.CrawlJob{SourceID: src.ID}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "scheduler: create job for %s", src.Slug)
	}
	if err := s.store.UpdateJobStatus(ctx, job.ID, model.JobRunning); err != nil {
		return eris.Wrapf(err, "scheduler: start job %s", job.ID)
	}

	started := time.Now()
	stats, runErr := fn(ctx, src)

	job.DurationMS = time.Since(started).Milliseconds()
	if stats != nil {
		job.PagesCrawled = stats.PagesCrawled
		job.ProductsFound = stats.ProductsFound
		job.ProductsNew = stats.ProductsNew
		job.ProductsUpdated = stats.ProductsUpdated
		job.ErrorCount = stats.ErrorCount
		job.Summary = stats.Summary
	}
	if runErr != nil {
		job.Status = model.JobFailed
		job.Summary = runErr.Error()
	} else {
		job.Status = model.JobCompleted
	}
	if err := s.store.FinishJob(ctx, job); err != nil {
		return eris.Wrapf(err, "scheduler: finish job %s", job.ID)
	}

	next := now.Add(time.Duration(src.CrawlFreqHrs) * time.Hour)
	if src.CrawlFreqHrs <= 0 {
		next = now.Add(7 * 24 * time.Hour)
	}
	if err := s.store.UpdateSourceCrawlTimes(ctx, src.ID, now, next); err != nil {
		return eris.Wrapf(err, "scheduler: reschedule %s", src.Slug)
	}
	return runErr
}

// Run sweeps on an interval until ctx is cancelled. One sweep fires
// immediately on start.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "scheduler"))
	log.Info("starting crawl scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("crawl scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, log *zap.Logger) {
	ran, err := s.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		log.Error("sweep failed", zap.Error(err))
		return
	}
	if ran > 0 {
		log.Info("sweep complete", zap.Int("sources_crawled", ran))
	}
}

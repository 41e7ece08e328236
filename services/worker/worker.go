package worker

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/placeworker/internal/scraper"
	"sjsage522/placeworker/logger"
	"sjsage522/placeworker/services/cache"
	"sjsage522/placeworker/services/publisher"
	"sjsage522/placeworker/services/store"
)

// runGateKey guards against overlapping runs when several worker replicas
// share one memcache.
const runGateKey = "placeworker:run-gate"

// ScrapeRunner runs one full scrape with retries
type ScrapeRunner interface {
	ScrapeResult(ctx context.Context) scraper.Result
}

// ScrapeReport summarizes one worker cycle
type ScrapeReport struct {
	Status     scraper.Status
	Scraped    int
	NewRecords int
	Attempts   int
	// Skipped is true when another replica held the run gate
	Skipped bool
}

// Worker schedules scrape runs and moves their results into the store and
// the publisher.
type Worker struct {
	ctx      context.Context
	runner   ScrapeRunner
	store    store.PlaceStore
	pub      publisher.Publisher
	cache    cache.CacheService
	interval time.Duration
	gateTTL  time.Duration
	log      *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	runner ScrapeRunner,
	st store.PlaceStore,
	pub publisher.Publisher,
	cacheService cache.CacheService,
	interval time.Duration,
	gateTTL time.Duration,
) *Worker {
	return &Worker{
		ctx:      ctx,
		runner:   runner,
		store:    st,
		pub:      pub,
		cache:    cacheService,
		interval: interval,
		gateTTL:  gateTTL,
		log:      logger.ForWorker(),
	}
}

// Start runs the worker loop until the context is cancelled. An empty store
// triggers an immediate run; otherwise the first run waits a full interval.
func (w *Worker) Start() error {
	count, err := w.store.Count(w.ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Could not count stored places, scraping immediately")
	}
	if err != nil || count == 0 {
		w.runCycle()
	} else {
		w.log.Info().Int64("stored", count).Dur("interval", w.interval).Msg("Store already populated, waiting for next cycle")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runCycle()
		case <-w.ctx.Done():
			w.log.Info().Msg("Worker stopping")
			return w.ctx.Err()
		}
	}
}

// RunScrape triggers one cycle out of schedule and delivers its report on
// the returned channel.
func (w *Worker) RunScrape() <-chan ScrapeReport {
	ch := make(chan ScrapeReport, 1)
	go func() {
		defer close(ch)
		ch <- w.runCycle()
	}()
	return ch
}

// runCycle performs one gated scrape-save-publish pass
func (w *Worker) runCycle() ScrapeReport {
	if _, err := w.cache.Get(runGateKey); err == nil {
		w.log.Info().Msg("Run gate held, skipping cycle")
		return ScrapeReport{Skipped: true}
	}
	if err := w.cache.Set(runGateKey, []byte("1"), w.gateTTL); err != nil {
		// A broken gate must not stop scraping, only deduplication suffers
		w.log.Warn().Err(err).Msg("Could not set run gate")
	}
	defer func() {
		if err := w.cache.Delete(runGateKey); err != nil {
			w.log.Warn().Err(err).Msg("Could not release run gate")
		}
	}()

	start := time.Now()
	result := w.runner.ScrapeResult(w.ctx)
	report := ScrapeReport{
		Status:   result.Status,
		Scraped:  len(result.Records),
		Attempts: result.Attempts,
	}

	if result.Status != scraper.StatusSucceeded {
		w.log.Warn().
			Str("status", string(result.Status)).
			Int("attempts", result.Attempts).
			Msg("Scrape produced nothing, nothing to save")
		return report
	}

	inserted, err := w.store.Save(w.ctx, result.Records)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to save scraped places")
		return report
	}
	report.NewRecords = inserted

	w.publishRecords(result.Records)

	if err := w.pub.TrimStreams(); err != nil {
		w.log.Error().Err(err).Msg("Failed to trim streams")
	}

	w.log.Info().
		Int("scraped", report.Scraped).
		Int("new", report.NewRecords).
		Int("attempts", report.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape cycle finished")
	return report
}

// publishRecords pushes every record to the stream; publish failures are
// per-record, a bad one never blocks the rest.
func (w *Worker) publishRecords(records []scraper.PlaceRecord) {
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			w.log.Error().Err(err).Str("place_id", rec.PlaceID).Msg("Failed to marshal place")
			continue
		}
		if err := w.pub.Publish(rec.PlaceID, data); err != nil {
			w.log.Error().Err(err).Str("place_id", rec.PlaceID).Msg("Failed to publish place")
		}
	}
}

package cmd

import (
	"context"
	"time"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/metrics"
	"github.com/eduard256/imgable-ai/internal/modelcache"
	"github.com/eduard256/imgable-ai/internal/tagger"
	"github.com/eduard256/imgable-ai/internal/worker"
)

const gaugeRefreshInterval = 30 * time.Second

// runMaintenance drives the periodic background chores: rescanning the queue
// for pending work, evicting expired model sessions, unloading everything
// after a long idle stretch, and refreshing the queue gauges.
func runMaintenance(
	ctx context.Context,
	cfg *config.Config,
	w *worker.Worker,
	queue *database.QueueRepository,
	models *modelcache.Manager,
	imageTagger *tagger.Tagger,
	m *metrics.Metrics,
	log *logger.Logger,
) {
	scan := newTicker(time.Duration(cfg.Worker.ScanInterval) * time.Second)
	defer scan.Stop()
	evict := newTicker(time.Duration(cfg.Models.TTLSeconds) * time.Second / 2)
	defer evict.Stop()
	idle := newTicker(time.Minute)
	defer idle.Stop()
	gauges := newTicker(gaugeRefreshInterval)
	defer gauges.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-scan.C:
			if w.Status() != worker.StatusIdle {
				continue
			}
			pending, err := queue.PendingCount(ctx)
			if err != nil {
				log.WithError(err).Warn("queue scan failed")
				continue
			}
			if pending > 0 {
				log.Infof("queue scan found %d pending photos, starting worker", pending)
				if err := w.Start(ctx); err != nil && err != worker.ErrAlreadyRunning {
					log.WithError(err).Warn("scan-triggered start failed")
				}
			}

		case <-evict.C:
			if n := models.EvictExpired(); n > 0 {
				imageTagger.DropCache()
			}

		case <-idle.C:
			if cfg.Models.IdleUnloadMinutes <= 0 || w.Status() != worker.StatusIdle || !models.AnyLoaded() {
				continue
			}
			last := w.LastActivity()
			cutoff := time.Duration(cfg.Models.IdleUnloadMinutes) * time.Minute
			if last == nil || time.Since(*last) < cutoff {
				continue
			}
			n := models.UnloadAll()
			imageTagger.DropCache()
			log.Infof("unloaded %d models after %d idle minutes", n, cfg.Models.IdleUnloadMinutes)

		case <-gauges.C:
			stats, err := queue.Stats(ctx)
			if err != nil {
				continue
			}
			m.SetQueueStats(stats.Pending, stats.Processing, stats.Done, stats.Error)
			m.ModelsLoaded.Set(float64(len(models.Info().Loaded)))
		}
	}
}

// newTicker returns a ticker that never fires when the interval is zero or
// negative, so disabled chores fall out of the select naturally.
func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}

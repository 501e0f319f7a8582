// Package maintenance runs periodic background tasks as Go tickers: the
// staleness watchdog that keeps the snapshot fresh without manual refreshes,
// and a WAL checkpoint for the file-backed store.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	StalenessInterval  time.Duration // Check snapshot age, refresh when stale
	CheckpointInterval time.Duration // Flush the SQLite write-ahead log
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		StalenessInterval:  1 * time.Hour,
		CheckpointInterval: 6 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, ctrl *refresh.Controller, st store.Store, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"staleness", cfg.StalenessInterval,
		"checkpoint", cfg.CheckpointInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.StalenessInterval > 0 {
		t := time.NewTicker(cfg.StalenessInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { stalenessCheck(ctx, ctrl, logger) })
	}

	// Only the file backend has a write-ahead log to flush.
	if cp, ok := st.(store.Checkpointer); ok && cfg.CheckpointInterval > 0 {
		t := time.NewTicker(cfg.CheckpointInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { checkpoint(ctx, cp, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// stalenessCheck requests an automatic refresh when the snapshot has aged
// past its TTL. Automatic requests bypass the manual cooldown; the
// controller still enforces one scrape at a time.
func stalenessCheck(ctx context.Context, ctrl *refresh.Controller, logger *slog.Logger) {
	st := ctrl.Status(ctx)
	if !st.Stale || st.IsScraping {
		return
	}
	d := ctrl.Request(false)
	logger.Info("Staleness check: snapshot stale, refresh requested",
		"outcome", d.Outcome)
}

// checkpoint flushes the WAL so the sidecar files stay bounded. Best
// effort: a busy database just tries again next tick.
func checkpoint(ctx context.Context, cp store.Checkpointer, logger *slog.Logger) {
	if err := cp.Checkpoint(ctx); err != nil {
		logger.Warn("Checkpoint: failed", "error", err)
		return
	}
	logger.Info("Checkpoint: WAL flushed")
}

// Package refresh is the single writer gate in front of the scraper: one
// scrape at a time process-wide, a cooldown on manual refreshes, and the
// staleness verdict the read side surfaces to clients.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/scrape"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// Outcome of a refresh request.
const (
	OutcomeStarted     = "started"
	OutcomeInProgress  = "in_progress"
	OutcomeRateLimited = "rate_limited"
)

// Decision is the controller's answer to a refresh request.
type Decision struct {
	Outcome    string `json:"status"`
	RetryAfter int    `json:"retryAfter,omitempty"` // whole seconds, rate_limited only
}

// Status is the externally visible refresh state.
type Status struct {
	IsScraping      bool            `json:"isScraping"`
	LastCompletedAt *time.Time      `json:"lastCompletedAt,omitempty"`
	LastError       string          `json:"lastError,omitempty"`
	Stale           bool            `json:"stale"`
	Progress        scrape.Progress `json:"progress"`
}

// Runner is the slice of the scraper the controller drives.
type Runner interface {
	Run(ctx context.Context) (*scrape.Result, error)
	Progress() scrape.Progress
}

// Controller serializes scrapes. Created once at process start and passed
// to every component that needs it; there are no package-level globals.
type Controller struct {
	runner   Runner
	store    store.Store
	ttl      time.Duration
	cooldown time.Duration
	logger   *slog.Logger

	// baseCtx scopes background scrapes to the process, not to the HTTP
	// request that happened to trigger one.
	baseCtx context.Context

	now func() time.Time // test hook

	mu              sync.Mutex
	scraping        bool
	lastCompletedAt *time.Time
	lastError       error
	lastManualStart time.Time
	done            chan struct{}
}

// New creates a controller. ctx bounds background scrapes; cancelling it
// (process shutdown) aborts an in-flight scrape cleanly.
func New(ctx context.Context, runner Runner, st store.Store, ttl, cooldown time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runner:   runner,
		store:    st,
		ttl:      ttl,
		cooldown: cooldown,
		logger:   logger,
		baseCtx:  ctx,
		now:      time.Now,
	}
}

// Request arbitrates a refresh. Manual requests respect the cooldown
// anchored on the last successful manual start; automatic requests (cold
// start, staleness ticker) bypass it. Both honor the single-writer rule.
func (c *Controller) Request(manual bool) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scraping {
		return Decision{Outcome: OutcomeInProgress}
	}
	if manual && !c.lastManualStart.IsZero() {
		elapsed := c.now().Sub(c.lastManualStart)
		if elapsed < c.cooldown {
			remaining := c.cooldown - elapsed
			return Decision{
				Outcome:    OutcomeRateLimited,
				RetryAfter: int((remaining + time.Second - 1) / time.Second),
			}
		}
	}

	c.scraping = true
	c.done = make(chan struct{})
	if manual {
		c.lastManualStart = c.now()
	}
	go c.scrapeLoop(c.done, manual)
	return Decision{Outcome: OutcomeStarted}
}

func (c *Controller) scrapeLoop(done chan struct{}, manual bool) {
	c.logger.Info("scrape starting", slog.Bool("manual", manual))
	_, err := c.runner.Run(c.baseCtx)

	c.mu.Lock()
	c.scraping = false
	if err != nil {
		c.lastError = err
	} else {
		c.lastError = nil
		t := c.now().UTC()
		c.lastCompletedAt = &t
	}
	c.mu.Unlock()
	close(done)
}

// Status reports the current refresh state. The completion timestamp falls
// back to store metadata so staleness survives restarts.
func (c *Controller) Status(ctx context.Context) Status {
	c.mu.Lock()
	st := Status{
		IsScraping:      c.scraping,
		LastCompletedAt: c.lastCompletedAt,
	}
	if c.lastError != nil {
		st.LastError = c.lastError.Error()
	}
	c.mu.Unlock()

	if st.IsScraping {
		st.Progress = c.runner.Progress()
	}
	if st.LastCompletedAt == nil {
		st.LastCompletedAt = c.persistedCompletedAt(ctx)
	}
	st.Stale = st.LastCompletedAt == nil || c.now().Sub(*st.LastCompletedAt) > c.ttl
	return st
}

// IsScraping reports whether a scrape is in flight.
func (c *Controller) IsScraping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scraping
}

// AwaitIdle blocks until no scrape is running.
func (c *Controller) AwaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.scraping {
			c.mu.Unlock()
			return nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) persistedCompletedAt(ctx context.Context) *time.Time {
	v, err := c.store.GetMetadata(ctx, model.MetaLastScrapeCompletedAt)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.logger.Warn("read last scrape timestamp", slog.Any("error", err))
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.logger.Warn("parse last scrape timestamp", slog.String("value", v), slog.Any("error", err))
		return nil
	}
	t = t.UTC()

	c.mu.Lock()
	if c.lastCompletedAt == nil {
		c.lastCompletedAt = &t
	}
	c.mu.Unlock()
	return &t
}

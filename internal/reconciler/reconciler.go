// Package reconciler periodically recomputes the cached availability flags and
// clears sold-out overrides that have run out.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/availability"
	"backoffice/internal/events"
	"backoffice/internal/lock"
	"backoffice/internal/metrics"
	"backoffice/internal/model"
	"backoffice/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the persistence the reconciler reads and writes. *db.DB implements it.
type Store interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	ClearCategorySoldOut(ctx context.Context, id int64, seen model.SoldOutRecord) (bool, error)
	UpdateCategoryFlags(ctx context.Context, id int64, isPaused, isSoldOut bool) error

	ListSpecials(ctx context.Context) ([]model.SpecialItem, error)
	ListSpecialHours(ctx context.Context) ([]model.SpecialHour, error)
	UpdateSpecialFlags(ctx context.Context, id int64, isPaused bool) error
}

// Config holds reconciler settings.
type Config struct {
	// Interval between ticks.
	Interval time.Duration
	// LockTTL bounds how long a crashed holder blocks other instances.
	LockTTL time.Duration
	// LockKey names the tick lock shared by all instances.
	LockKey string
	// Location is the restaurant time zone.
	Location *time.Location
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		LockTTL:  time.Minute,
		LockKey:  "reconcile",
		Location: time.Local,
	}
}

// Stats summarizes one tick.
type Stats struct {
	TickID     string    `json:"tick_id"`
	At         time.Time `json:"at"`
	Skipped    bool      `json:"skipped"`
	Categories int       `json:"categories"`
	Specials   int       `json:"specials"`
	Changed    int       `json:"changed"`
	Cleared    int       `json:"cleared"`
	Failed     int       `json:"failed"`
}

type Option func(*Reconciler)

func WithEventBus(bus *events.EventBus) Option {
	return func(r *Reconciler) { r.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock replaces time.Now for the scheduled loop and RunNow.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler owns all writes to cached flags and to sold-out expiry.
type Reconciler struct {
	config  Config
	store   Store
	locker  lock.Locker
	bus     *events.EventBus
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	last    Stats
}

func New(cfg Config, store Store, locker lock.Locker, logger zerolog.Logger, opts ...Option) *Reconciler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	if cfg.LockKey == "" {
		cfg.LockKey = def.LockKey
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	r := &Reconciler{
		config: cfg,
		store:  store,
		locker: locker,
		logger: logger.With().Str("component", "reconciler").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs a tick immediately and then every Interval until ctx is done or
// Stop is called. It blocks; run it in its own goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	stopCh := make(chan struct{})
	r.stopCh = stopCh
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.Info().
		Dur("interval", r.config.Interval).
		Str("timezone", r.config.Location.String()).
		Msg("reconciler started")

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.runScheduled(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped by context")
			return
		case <-stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.runScheduled(ctx)
		}
	}
}

// Stop ends the loop started by Start.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running && r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
}

// IsRunning reports whether the loop is active.
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastStats returns the summary of the most recent completed tick.
func (r *Reconciler) LastStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RunNow runs one tick at the current time.
func (r *Reconciler) RunNow(ctx context.Context) (Stats, error) {
	return r.Tick(ctx, r.now())
}

func (r *Reconciler) runScheduled(ctx context.Context) {
	if _, err := r.Tick(ctx, r.now()); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error().Err(err).Msg("reconcile tick failed")
	}
}

// Tick reconciles every category and special against the single reading now.
// When another tick holds the lock it returns Stats.Skipped without error.
func (r *Reconciler) Tick(ctx context.Context, now time.Time) (Stats, error) {
	stats := Stats{TickID: uuid.NewString(), At: now.In(r.config.Location)}

	lease, ok, err := r.locker.TryLock(ctx, r.config.LockKey, r.config.LockTTL)
	if err != nil {
		r.metrics.IncTick("error")
		return stats, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		stats.Skipped = true
		r.metrics.IncTick("skipped")
		r.logger.Debug().Str("tick_id", stats.TickID).Msg("tick skipped, lock held elsewhere")
		return stats, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			r.logger.Warn().Err(err).Str("tick_id", stats.TickID).Msg("release reconcile lock")
		}
	}()

	start := time.Now()
	err = r.reconcile(ctx, &stats)
	r.metrics.ObserveTick(time.Since(start).Seconds())

	if err != nil || stats.Failed > 0 {
		r.metrics.IncTick("error")
	} else {
		r.metrics.IncTick("ok")
	}

	r.mu.Lock()
	r.last = stats
	r.mu.Unlock()

	if stats.Changed > 0 || stats.Cleared > 0 {
		r.logger.Info().
			Str("tick_id", stats.TickID).
			Int("changed", stats.Changed).
			Int("cleared", stats.Cleared).
			Int("failed", stats.Failed).
			Msg("reconcile tick applied changes")
	}
	return stats, err
}

func (r *Reconciler) reconcile(ctx context.Context, stats *Stats) error {
	now := stats.At
	m := availability.MomentOf(now, r.config.Location)

	cats, err := r.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Categories++
		r.reconcileCategory(ctx, c, m, now, stats)
	}

	specials, err := r.store.ListSpecials(ctx)
	if err != nil {
		return fmt.Errorf("list specials: %w", err)
	}
	if len(specials) == 0 {
		return nil
	}
	rows, err := r.store.ListSpecialHours(ctx)
	if err != nil {
		return fmt.Errorf("list special hours: %w", err)
	}
	hours := model.SpecialHoursFrom(rows)

	for _, sp := range specials {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Specials++
		r.reconcileSpecial(ctx, sp, hours, m, stats)
	}
	return nil
}

func (r *Reconciler) reconcileCategory(ctx context.Context, c model.Category, m availability.Moment, now time.Time, stats *Stats) {
	log := r.logger.With().Str("tick_id", stats.TickID).Int64("category_id", c.ID).Logger()

	soldOut := c.SoldOut.Enabled
	if soldOut {
		override := c.SoldOut.Override()
		expired := schedule.CheckExpiry(override, m.Time)
		stale := override.ResumeAt != nil && c.SoldOut.SetBefore(now)
		if expired || stale {
			cleared, err := r.store.ClearCategorySoldOut(ctx, c.ID, c.SoldOut)
			switch {
			case err != nil:
				stats.Failed++
				log.Error().Err(err).Msg("clear sold-out override")
			case cleared:
				soldOut = false
				stats.Cleared++
				cause := "expired"
				if stale {
					cause = "stale"
				}
				r.metrics.IncSoldOutCleared(cause)
				r.publish(events.CategorySoldOutCleared, events.SoldOutCleared{
					TickID:   stats.TickID,
					ID:       c.ID,
					Name:     c.Name,
					ResumeAt: c.SoldOut.EndTime,
					Stale:    stale,
				})
				log.Info().Str("resume_at", c.SoldOut.EndTime).Bool("stale", stale).Msg("sold-out override cleared")
			default:
				// Replaced by an operator write since the read; the next tick sees it.
				log.Debug().Msg("sold-out override changed concurrently")
			}
		}
	}

	open := schedule.IsCategoryOpen(c.Schedule.Weekly(), m.Day, m.Time)
	isPaused := !open || c.ManualPause
	if isPaused == c.IsPaused && soldOut == c.IsSoldOut {
		return
	}

	if err := r.store.UpdateCategoryFlags(ctx, c.ID, isPaused, soldOut); err != nil {
		stats.Failed++
		log.Error().Err(err).Msg("update category flags")
		return
	}
	stats.Changed++
	r.metrics.IncStateChange("category")

	state := schedule.ResolveOpen(open, c.ManualPause, schedule.SoldOutOverride{Active: soldOut})
	r.publish(events.CategoryStateChanged, events.StateChange{
		TickID: stats.TickID,
		ID:     c.ID,
		Name:   c.Name,
		Open:   state.Open,
		Reason: state.Reason,
	})
	log.Info().Bool("open", state.Open).Str("reason", string(state.Reason)).Msg("category state changed")
}

func (r *Reconciler) reconcileSpecial(ctx context.Context, sp model.SpecialItem, hours schedule.SpecialHours, m availability.Moment, stats *Stats) {
	open := sp.Binding().IsOpen(hours, m.Day, m.Time)
	isPaused := !open || sp.ManualPause
	if isPaused == sp.IsPaused {
		return
	}

	log := r.logger.With().Str("tick_id", stats.TickID).Int64("special_id", sp.ID).Logger()
	if err := r.store.UpdateSpecialFlags(ctx, sp.ID, isPaused); err != nil {
		stats.Failed++
		log.Error().Err(err).Msg("update special flags")
		return
	}
	stats.Changed++
	r.metrics.IncStateChange("special")

	state := schedule.ResolveOpen(open, sp.ManualPause, schedule.SoldOutOverride{})
	r.publish(events.SpecialStateChanged, events.StateChange{
		TickID: stats.TickID,
		ID:     sp.ID,
		Name:   sp.Name,
		Open:   state.Open,
		Reason: state.Reason,
	})
	log.Info().Bool("open", state.Open).Str("reason", string(state.Reason)).Msg("special state changed")
}

func (r *Reconciler) publish(eventType string, payload any) {
	if r.bus == nil {
		return
	}
	ev, err := events.NewEvent(eventType, uuid.NewString(), payload)
	if err != nil {
		r.logger.Error().Err(err).Str("type", eventType).Msg("encode event")
		return
	}
	if err := r.bus.Publish(ev); err != nil {
		r.logger.Warn().Err(err).Str("type", eventType).Msg("event handler failed")
	}
}

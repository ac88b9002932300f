package presence

import (
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/models"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// SweepReport summarizes one sweep cycle.
type SweepReport struct {
	Scanned int
	Stale   int
	Evicted []string
	Failed  map[string]error
}

// Sweeper evicts participants whose lastSeen is older than Threshold.
type Sweeper struct {
	Registry    *Registry
	Interval    time.Duration
	Threshold   time.Duration
	Concurrency int

	// ready gates cycles; a cycle is skipped while it returns false.
	ready func() bool
	log   *slog.Logger
}

// NewSweeper builds a Sweeper. Zero values fall back to the reference
// period, threshold and concurrency.
func NewSweeper(r *Registry, interval, threshold time.Duration, concurrency int, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = config.DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = config.DefaultStaleThreshold
	}
	if concurrency <= 0 {
		concurrency = config.DefaultSweepConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		Registry:    r,
		Interval:    interval,
		Threshold:   threshold,
		Concurrency: concurrency,
		ready:       r.Storage.Ready,
		log:         log,
	}
}

// Run sweeps every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Presence sweeper started", "interval", s.Interval, "threshold", s.Threshold)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.ready() {
				s.log.Debug("Store not ready, skipping sweep")
				continue
			}
			report := s.Sweep(ctx)
			s.log.Debug("Sweep finished",
				"scanned", report.Scanned,
				"stale", report.Stale,
				"evicted", len(report.Evicted),
				"failed", len(report.Failed))
		}
	}
}

// Sweep runs one cycle and returns after every eviction has finished.
// A failure on one participant is recorded and does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{Failed: map[string]error{}}

	now := s.Registry.Now()
	participants, err := s.Registry.List(ctx)
	if err != nil {
		s.log.Error("Failed to read participants for sweep", "err", err)
		return report
	}
	report.Scanned = len(participants)

	stale := lo.Filter(participants, func(p models.Participant, _ int) bool {
		return p.IsStale(now, s.Threshold)
	})
	report.Stale = len(stale)
	if len(stale) == 0 {
		return report
	}

	cutoff := now.Add(-s.Threshold)
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.Concurrency)

	for _, p := range stale {
		g.Go(func() error {
			evicted, err := s.Registry.Evict(ctx, p, cutoff)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed[p.Name] = err
				s.log.Error("Failed to evict stale participant", "name", p.Name, "err", err)
			case evicted:
				report.Evicted = append(report.Evicted, p.Name)
			}
			return nil
		})
	}
	_ = g.Wait()

	return report
}

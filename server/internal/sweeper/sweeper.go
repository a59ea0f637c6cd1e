package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fridgekeep/fridgekeep/server/internal/files"
	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

// minInterval bounds how often Run may sweep. Tests lower it.
var minInterval = time.Second

// Policy controls when and how aggressively the sweeper evicts.
type Policy struct {
	// Interval between periodic sweeps.
	Interval time.Duration

	// MaxAgeHours is the age threshold; entries strictly older are evicted.
	MaxAgeHours float64

	// RemoveFiles deletes the evicted records' locations through the Remover.
	RemoveFiles bool
}

// Result summarises one sweep.
type Result struct {
	Evicted      []store.Metadata
	RemoveErrors int
	Took         time.Duration
}

// Recorder receives sweep observations, typically for metrics.
type Recorder interface {
	ObserveSweep(evicted int, took time.Duration)
}

// Sweeper is the cleanup collaborator for a store: it owns the eviction
// threshold and cadence and deletes evicted files when asked to.
type Sweeper struct {
	store    *store.Store
	remover  files.Remover
	recorder Recorder

	mu     sync.RWMutex
	policy Policy
	reset  chan struct{}
}

// New creates a Sweeper. remover may be nil when files are never removed.
func New(st *store.Store, remover files.Remover, policy Policy, recorder Recorder) *Sweeper {
	return &Sweeper{
		store:    st,
		remover:  remover,
		recorder: recorder,
		policy:   policy,
		reset:    make(chan struct{}, 1),
	}
}

// Policy returns the active policy.
func (s *Sweeper) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy replaces the active policy. A running loop picks up a changed
// interval immediately.
func (s *Sweeper) SetPolicy(p Policy) {
	s.mu.Lock()
	changed := p.Interval != s.policy.Interval
	s.policy = p
	s.mu.Unlock()

	if changed {
		select {
		case s.reset <- struct{}{}:
		default:
		}
	}
}

// SweepOnce evicts with the active policy's threshold.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	return s.SweepWith(ctx, s.Policy().MaxAgeHours)
}

// SweepWith evicts entries older than maxAgeHours and, if the policy says so,
// removes their files. File removal failures are logged and counted; the
// metadata stays evicted.
func (s *Sweeper) SweepWith(ctx context.Context, maxAgeHours float64) (Result, error) {
	start := time.Now()
	evicted, err := s.store.EvictOlderThan(maxAgeHours)
	if err != nil {
		return Result{}, fmt.Errorf("sweeper: %w", err)
	}

	res := Result{Evicted: evicted}
	if s.Policy().RemoveFiles && s.remover != nil {
		for _, m := range evicted {
			if err := s.remover.Remove(ctx, m.Location); err != nil {
				res.RemoveErrors++
				level := slog.LevelWarn
				if errors.Is(err, context.Canceled) {
					level = slog.LevelDebug
				}
				slog.Log(ctx, level, "sweeper: remove failed",
					"id", m.ID, "location", m.Location, "err", err)
			}
		}
	}
	res.Took = time.Since(start)

	if s.recorder != nil {
		s.recorder.ObserveSweep(len(evicted), res.Took)
	}
	if len(evicted) > 0 {
		slog.Info("sweeper: evicted expired resources",
			"count", len(evicted), "max_age_hours", maxAgeHours, "remove_errors", res.RemoveErrors)
	}
	return res, nil
}

// Run sweeps on the policy interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			t.Reset(s.interval())
			slog.Info("sweeper: interval changed", "interval", s.interval())
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				slog.Error("sweeper: sweep failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) interval() time.Duration {
	d := s.Policy().Interval
	if d < minInterval {
		d = minInterval
	}
	return d
}

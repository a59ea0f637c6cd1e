package analysis

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fridgekeep/fridgekeep/pkg/types"
	"github.com/fridgekeep/fridgekeep/server/internal/files"
	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

// Defaults applied to zero Options fields.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 100
	DefaultTimeout   = 30 * time.Second
)

// Analyzer recognises the items in one capture.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, error)
}

// Listener is told the outcome of every analysis attempt.
type Listener interface {
	AnalysisFinished(m store.Metadata, items int, err error)
}

// Options tunes a Dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration

	// DeleteAfter drops a capture from the store once it has been analysed.
	DeleteAfter bool
}

// Dispatcher queues registrations and feeds them to an Analyzer.
type Dispatcher struct {
	analyzer  Analyzer
	remover   files.Remover
	opts      Options
	listeners []Listener
	queue     chan store.Metadata
}

// New creates a Dispatcher. remover may be nil, in which case DeleteAfter only
// drops metadata.
func New(analyzer Analyzer, remover files.Remover, opts Options, listeners ...Listener) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		analyzer:  analyzer,
		remover:   remover,
		opts:      opts,
		listeners: listeners,
		queue:     make(chan store.Metadata, opts.QueueSize),
	}
}

// ResourceRegistered implements store.Observer. It never blocks: when the
// queue is full the capture is left for the sweeper.
func (d *Dispatcher) ResourceRegistered(m store.Metadata) {
	select {
	case d.queue <- m:
	default:
		slog.Warn("analysis: queue full, capture not analysed",
			"id", m.ID, "queue_cap", cap(d.queue))
	}
}

// ResourceRemoved implements store.Observer. Removed captures are skipped
// when their turn comes.
func (d *Dispatcher) ResourceRemoved(store.Metadata, store.Reason) {}

// Pending returns the number of queued captures.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Run processes queued captures against st until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, st *store.Store) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case m := <-d.queue:
					d.process(ctx, st, m)
				}
			}
		})
	}
	slog.Info("analysis: dispatcher started", "workers", d.opts.Workers)
	return g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, st *store.Store, queued store.Metadata) {
	cur, ok := st.Get(queued.ID)
	if !ok {
		slog.Debug("analysis: capture gone before analysis", "id", queued.ID)
		return
	}
	if !cur.CapturedAt.Equal(queued.CapturedAt) || cur.Location != queued.Location {
		// The newer registration has its own queue entry.
		slog.Debug("analysis: capture superseded", "id", queued.ID)
		return
	}

	actx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	res, err := d.analyzer.Analyze(actx, types.AnalysisRequest{
		ID:         cur.ID,
		OwnerID:    cur.OwnerID,
		Location:   cur.Location,
		CapturedAt: cur.CapturedAt.UTC(),
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("analysis: analyzer failed", "id", cur.ID, "err", err)
		d.notify(cur, 0, err)
		return
	}

	slog.Info("analysis: capture analysed", "id", cur.ID, "items", len(res.Items), "warnings", len(res.Warnings))
	d.notify(cur, len(res.Items), nil)

	if !d.opts.DeleteAfter || !st.DeleteIfUnchanged(cur) || d.remover == nil {
		return
	}
	if err := d.remover.Remove(ctx, cur.Location); err != nil {
		slog.Warn("analysis: remove analysed capture failed",
			"id", cur.ID, "location", cur.Location, "err", err)
	}
}

func (d *Dispatcher) notify(m store.Metadata, items int, err error) {
	for _, l := range d.listeners {
		l.AnalysisFinished(m, items, err)
	}
}

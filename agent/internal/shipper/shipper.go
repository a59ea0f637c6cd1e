package shipper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fridgekeep/fridgekeep/agent/internal/client"
	"github.com/fridgekeep/fridgekeep/pkg/types"
)

const (
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// backoffInitial is a var so tests can shorten the retry wait.
var backoffInitial = 1 * time.Second

// Registrar is the subset of client.Client the shipper needs.
type Registrar interface {
	Register(ctx context.Context, req types.RegisterRequest) (types.Resource, error)
}

// Shipper buffers registration requests and delivers them one at a time in
// order of arrival.
type Shipper struct {
	reg Registrar
	buf chan types.RegisterRequest
}

// New creates a Shipper holding at most bufferSize pending requests.
func New(reg Registrar, bufferSize int) *Shipper {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Shipper{
		reg: reg,
		buf: make(chan types.RegisterRequest, bufferSize),
	}
}

// Ship enqueues req. If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(req types.RegisterRequest) {
	for {
		select {
		case s.buf <- req:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest registration",
				"id", old.ID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending returns the number of buffered requests.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer until ctx is cancelled. A request that fails
// transiently is retried in place, so later captures of the same id can never
// overtake it.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.buf:
			if !s.deliver(ctx, req, bo) {
				return
			}
		}
	}
}

// deliver sends req until it succeeds or is rejected permanently. It returns
// false only when ctx is cancelled first.
func (s *Shipper) deliver(ctx context.Context, req types.RegisterRequest, bo *backoff) bool {
	for {
		err := s.send(ctx, req)
		switch {
		case err == nil:
			bo.reset()
			slog.Debug("shipper: registration delivered", "id", req.ID)
			return true

		case isPermanent(err):
			slog.Error("shipper: server rejected registration, discarding",
				"id", req.ID, "err", err)
			return true

		case ctx.Err() != nil:
			return false
		}

		wait := bo.next()
		slog.Warn("shipper: send failed, will retry",
			"id", req.ID, "err", err, "retry_in", wait, "pending", len(s.buf))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (s *Shipper) send(ctx context.Context, req types.RegisterRequest) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := s.reg.Register(sendCtx, req)
	return err
}

// isPermanent reports whether err means the request itself is unacceptable.
func isPermanent(err error) bool {
	return errors.Is(err, client.ErrPermanent)
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}

package activity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fridgekeep/fridgekeep/pkg/types"
	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

// DefaultCapacity is the number of events kept when no capacity is configured.
const DefaultCapacity = 256

// Event kinds recorded in the feed.
const (
	KindRegistered     = "registered"
	KindDeleted        = "deleted"
	KindEvicted        = "evicted"
	KindReplaced       = "replaced"
	KindAnalyzed       = "analyzed"
	KindAnalysisFailed = "analysis_failed"
)

// Log is a fixed-size ring of events, safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	events []types.Activity
	next   int // index the next event is written to
	full   bool

	now   func() time.Time
	newID func() string
}

// New creates a Log holding at most capacity events.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events: make([]types.Activity, capacity),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ResourceRegistered implements store.Observer.
func (l *Log) ResourceRegistered(m store.Metadata) {
	l.record(KindRegistered, m, "")
}

// ResourceRemoved implements store.Observer.
func (l *Log) ResourceRemoved(m store.Metadata, reason store.Reason) {
	kind := KindDeleted
	switch reason {
	case store.ReasonEvicted:
		kind = KindEvicted
	case store.ReasonReplaced:
		kind = KindReplaced
	}
	l.record(kind, m, "")
}

// AnalysisFinished records the outcome of handing m to the analyzer.
func (l *Log) AnalysisFinished(m store.Metadata, items int, err error) {
	if err != nil {
		l.record(KindAnalysisFailed, m, err.Error())
		return
	}
	l.record(KindAnalyzed, m, pluralItems(items))
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns every retained event.
func (l *Log) Recent(limit int) []types.Activity {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.Activity, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}

func (l *Log) record(kind string, m store.Metadata, detail string) {
	a := types.Activity{
		ID:         l.newID(),
		Kind:       kind,
		ResourceID: m.ID,
		OwnerID:    m.OwnerID,
		Location:   m.Location,
		Detail:     detail,
	}

	l.mu.Lock()
	a.At = l.now().UTC()
	l.events[l.next] = a
	l.next++
	if l.next == len(l.events) {
		l.next = 0
		l.full = true
	}
	l.mu.Unlock()
}

func pluralItems(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

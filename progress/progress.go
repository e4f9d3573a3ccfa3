package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/fleetsched/internal/clock"
)

// Delta represents an incremental counter change emitted by the allocator or
// the scheduler facade. Fields may be negative.
type Delta struct {
	Submitted  int
	Granted    int
	Deferred   int
	RolledBack int
	Released   int
	Retried    int
	Forced     int
	Skipped    int
	Waiting    int
}

// Progress keeps allocation counters. It is safe for concurrent use.
type Progress struct {
	StartedAt time.Time

	// Submitted counts Allocate commands processed by the worker.
	Submitted int
	// Granted counts grants confirmed by clients.
	Granted int
	// Deferred counts requests parked for a retry.
	Deferred int
	// RolledBack counts grants rejected by clients.
	RolledBack int
	// Released counts resources that became fully free.
	Released int
	// Retried counts retry passes.
	Retried int
	// Forced counts resources allocated immediately.
	Forced int
	// Skipped counts resources immediate allocation could not take.
	Skipped int
	// Waiting is the current size of the deferred set.
	Waiting int

	sync.Mutex
	onChange func(Progress)
}

// New creates a tracker.
func New(onChange func(Progress)) *Progress {
	return &Progress{StartedAt: clock.Now(), onChange: onChange}
}

// Update applies the supplied delta. The onChange callback, if any, runs
// outside the critical section with a copy of the counters.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.Submitted += d.Submitted
	p.Granted += d.Granted
	p.Deferred += d.Deferred
	p.RolledBack += d.RolledBack
	p.Released += d.Released
	p.Retried += d.Retried
	p.Forced += d.Forced
	p.Skipped += d.Skipped
	p.Waiting += d.Waiting
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) copy() Progress {
	return Progress{
		StartedAt:  p.StartedAt,
		Submitted:  p.Submitted,
		Granted:    p.Granted,
		Deferred:   p.Deferred,
		RolledBack: p.RolledBack,
		Released:   p.Released,
		Retried:    p.Retried,
		Forced:     p.Forced,
		Skipped:    p.Skipped,
		Waiting:    p.Waiting,
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// OnChange registers the callback invoked after every Update; nil disables
// it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in ctx.
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}

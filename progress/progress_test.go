package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var observed []Progress
	tracker := New(func(p Progress) { observed = append(observed, p) })

	tracker.Update(Delta{Submitted: 1, Deferred: 1, Waiting: 1})
	tracker.Update(Delta{Retried: 1, Waiting: -1})
	tracker.Update(Delta{Submitted: 1, Granted: 1})

	snapshot := tracker.Snapshot()
	assert.Equal(t, 2, snapshot.Submitted)
	assert.Equal(t, 1, snapshot.Granted)
	assert.Equal(t, 1, snapshot.Deferred)
	assert.Equal(t, 0, snapshot.Waiting)
	assert.Len(t, observed, 3)
	assert.Equal(t, 1, observed[0].Waiting)

	tracker.OnChange(nil)
	tracker.Update(Delta{Released: 2})
	assert.Len(t, observed, 3)
	assert.Equal(t, 2, tracker.Snapshot().Released)
}

func TestProgress_Concurrent(t *testing.T) {
	tracker := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(Delta{Submitted: 1, Granted: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tracker.Snapshot().Granted)
}

func TestProgress_Context(t *testing.T) {
	var nilTracker *Progress
	assert.NotPanics(t, func() { nilTracker.Update(Delta{Granted: 1}) })
	assert.Equal(t, Progress{}, nilTracker.Snapshot())

	tracker := New(nil)
	ctx := WithTracker(context.Background(), tracker)
	UpdateCtx(ctx, Delta{Forced: 3})
	UpdateCtx(context.Background(), Delta{Forced: 3})
	actual, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, 3, actual.Snapshot().Forced)
}

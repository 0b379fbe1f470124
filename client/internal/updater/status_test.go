package updater

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderDeliversToAllListeners(t *testing.T) {
	r := NewStatusRecorder()
	defer r.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	got := make([]Phase, 2)
	for i := 0; i < 2; i++ {
		i := i
		r.Subscribe(func(s CycleStatus) {
			got[i] = s.Phase
			wg.Done()
		})
	}

	r.Publish(CycleStatus{Phase: PhaseChecking})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listeners did not receive the event")
	}

	assert.Equal(t, []Phase{PhaseChecking, PhaseChecking}, got)
	assert.Equal(t, PhaseChecking, r.Status().Phase)
}

func TestRecorderUnsubscribe(t *testing.T) {
	r := NewStatusRecorder()
	defer r.Close()

	received := make(chan CycleStatus, 4)
	id := r.Subscribe(func(s CycleStatus) { received <- s })
	r.Unsubscribe(id)

	r.Publish(CycleStatus{Phase: PhaseChecking})

	select {
	case <-received:
		t.Fatal("unsubscribed listener received an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRecorderSlowListenerDropsOldest(t *testing.T) {
	r := NewStatusRecorder()
	defer r.Close()

	// a listener that never drains blocks its delivery goroutine on the
	// first event; subsequent publishes must not block Publish itself
	block := make(chan struct{})
	r.Subscribe(func(s CycleStatus) { <-block })

	published := make(chan struct{})
	go func() {
		for i := 0; i < eventQueueSize*3; i++ {
			r.Publish(CycleStatus{Phase: PhaseDownloading})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow listener")
	}
	close(block)
}

func TestRecorderStampsTimestamp(t *testing.T) {
	r := NewStatusRecorder()
	defer r.Close()

	r.Publish(CycleStatus{Phase: PhaseChecking})
	require.False(t, r.Status().Timestamp.IsZero())
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseUpToDate.Terminal())
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseChecking.Terminal())
	assert.False(t, PhaseIdle.Terminal())
	assert.False(t, PhaseUpdateAvailable.Terminal())
}

package updater

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Phase is the orchestrator's position in the cycle state machine
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseChecking        Phase = "checking"
	PhaseUpToDate        Phase = "up-to-date"
	PhaseUpdateAvailable Phase = "update-available"
	PhaseDownloading     Phase = "downloading"
	PhaseVerified        Phase = "verified"
	PhaseInstalling      Phase = "installing"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

// Terminal reports whether the phase ends a cycle
func (p Phase) Terminal() bool {
	switch p {
	case PhaseUpToDate, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

// CycleStatus is one transient status event. Not persisted by the engine;
// observers (presentation layer, logging) decide what to do with it.
type CycleStatus struct {
	CycleID   string
	Phase     Phase
	Message   string
	Progress  float64 // completed fraction, -1 when not applicable
	Timestamp time.Time
}

const eventQueueSize = 16

type statusListener struct {
	events chan CycleStatus
	done   chan struct{}
}

// StatusRecorder fans cycle status events out to registered observers.
// Delivery is asynchronous per listener; a slow observer loses the oldest
// queued events rather than stalling the cycle.
type StatusRecorder struct {
	mux       sync.Mutex
	listeners map[string]*statusListener
	last      CycleStatus
}

// NewStatusRecorder creates an empty recorder in the Idle phase
func NewStatusRecorder() *StatusRecorder {
	return &StatusRecorder{
		listeners: make(map[string]*statusListener),
		last:      CycleStatus{Phase: PhaseIdle, Progress: -1, Timestamp: time.Now()},
	}
}

// Subscribe registers fn to receive every published status. The returned
// id unregisters it via Unsubscribe.
func (r *StatusRecorder) Subscribe(fn func(CycleStatus)) string {
	l := &statusListener{
		events: make(chan CycleStatus, eventQueueSize),
		done:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-l.done:
				return
			case status := <-l.events:
				fn(status)
			}
		}
	}()

	id := uuid.New().String()

	r.mux.Lock()
	defer r.mux.Unlock()
	r.listeners[id] = l
	return id
}

// Unsubscribe stops delivery to the listener registered under id
func (r *StatusRecorder) Unsubscribe(id string) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if l, ok := r.listeners[id]; ok {
		close(l.done)
		delete(r.listeners, id)
	}
}

// Publish records status as the latest and queues it to every listener
func (r *StatusRecorder) Publish(status CycleStatus) {
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	r.mux.Lock()
	defer r.mux.Unlock()

	r.last = status
	for _, l := range r.listeners {
		select {
		case l.events <- status:
		default:
			// queue full: drop the oldest event, keep the newest
			select {
			case <-l.events:
			default:
			}
			select {
			case l.events <- status:
			default:
			}
		}
	}
}

// Status returns the most recently published status
func (r *StatusRecorder) Status() CycleStatus {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.last
}

// Close unregisters all listeners
func (r *StatusRecorder) Close() {
	r.mux.Lock()
	defer r.mux.Unlock()

	for id, l := range r.listeners {
		close(l.done)
		delete(r.listeners, id)
	}
	log.Debugf("status recorder closed")
}

package occupancy

import (
	"sync"
	"time"
)

// MinSessionDuration is the floor applied to every completed session.
const MinSessionDuration = time.Minute

// Timer remembers when each spot last became occupied. It lives in memory
// only; sessions open across a restart end without a notice.
type Timer struct {
	mu      sync.Mutex
	entered map[int64]time.Time
}

// NewTimer creates an empty timer.
func NewTimer() *Timer {
	return &Timer{entered: make(map[int64]time.Time)}
}

// Begin starts a session, overwriting any stale entry for the spot.
func (t *Timer) Begin(spotID int64, at time.Time) {
	t.mu.Lock()
	t.entered[spotID] = at
	t.mu.Unlock()
}

// End closes the session for spotID. It reports false when no session was
// open.
func (t *Timer) End(spotID int64, at time.Time) (time.Duration, bool) {
	t.mu.Lock()
	entered, ok := t.entered[spotID]
	delete(t.entered, spotID)
	t.mu.Unlock()

	if !ok {
		return 0, false
	}
	d := at.Sub(entered)
	if d < MinSessionDuration {
		d = MinSessionDuration
	}
	return d, true
}

// Active returns the start of the open session for spotID, if any.
func (t *Timer) Active(spotID int64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.entered[spotID]
	return at, ok
}

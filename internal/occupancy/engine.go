// Package occupancy owns the spot state machine: it applies normalized
// sensor events, times occupancy sessions and answers read queries.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"parking-status-backend/internal/keylock"
	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/parse"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/telemetry"
)

// MaxCASAttempts bounds the read/compare-and-set loop in Apply.
const MaxCASAttempts = 3

var (
	// ErrUnknownSpot is returned by the manual paths for ids outside 1..N.
	ErrUnknownSpot = errors.New("unknown spot")
	// ErrStoreConflict means the row kept changing underneath Apply.
	ErrStoreConflict = errors.New("spot state changed concurrently")
)

// Result classifies what Apply did with an event.
type Result int

const (
	ResultNone Result = iota
	ResultEnteredOccupied
	ResultExitedOccupied
)

func (r Result) String() string {
	switch r {
	case ResultEnteredOccupied:
		return "entered_occupied"
	case ResultExitedOccupied:
		return "exited_occupied"
	default:
		return "none"
	}
}

// Dispatcher accepts session notices without blocking.
type Dispatcher interface {
	Dispatch(n notification.Notice) bool
}

// Engine applies occupancy verdicts to the store. All writes to a spot,
// sensor driven or manual, are serialized on that spot's lock.
type Engine struct {
	store      store.SpotStore
	timer      *Timer
	locks      *keylock.Map[int64]
	notifier   Dispatcher
	totalSpots int
	log        *zap.Logger
}

// NewEngine creates an engine for spots 1..totalSpots. notifier may be nil.
func NewEngine(s store.SpotStore, timer *Timer, notifier Dispatcher, totalSpots int, log *zap.Logger) *Engine {
	if timer == nil {
		timer = NewTimer()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:      s,
		timer:      timer,
		locks:      keylock.New[int64](),
		notifier:   notifier,
		totalSpots: totalSpots,
		log:        log.Named("engine"),
	}
}

// TotalSpots is the configured number of spots.
func (e *Engine) TotalSpots() int {
	return e.totalSpots
}

// Timer exposes the session timer for read-only queries.
func (e *Engine) Timer() *Timer {
	return e.timer
}

// Known reports whether id is inside the configured range.
func (e *Engine) Known(id int64) bool {
	return id >= 1 && id <= int64(e.totalSpots)
}

// Apply folds one event into the spot state. Events for unknown spots and
// events that repeat the current state are no-ops.
func (e *Engine) Apply(ctx context.Context, ev telemetry.Event) (Result, error) {
	if !e.Known(ev.SpotID) {
		e.log.Debug("Ignoring event for unknown spot", zap.Int64("spot", ev.SpotID))
		return ResultNone, nil
	}

	unlock := e.locks.Lock(ev.SpotID)
	defer unlock()

	for attempt := 0; attempt < MaxCASAttempts; attempt++ {
		spot, err := e.store.GetSpot(ctx, ev.SpotID)
		if errors.Is(err, store.ErrSpotNotFound) {
			e.log.Warn("Spot row missing", zap.Int64("spot", ev.SpotID))
			return ResultNone, nil
		}
		if err != nil {
			return ResultNone, err
		}

		if spot.Occupied == ev.Occupied {
			if ev.Distance != nil {
				if err := e.store.RecordDistance(ctx, ev.SpotID, *ev.Distance, ev.ObservedAt); err != nil {
					return ResultNone, err
				}
			}
			return ResultNone, nil
		}

		swapped, err := e.store.CompareAndSetOccupied(ctx, ev.SpotID, spot.Occupied, ev.Occupied, ev.ObservedAt, ev.Distance)
		if err != nil {
			return ResultNone, err
		}
		if !swapped {
			metrics.CASConflicts.Inc()
			e.log.Debug("Compare-and-set lost, retrying", zap.Int64("spot", ev.SpotID), zap.Int("attempt", attempt+1))
			continue
		}

		result := e.afterTransition(ev)
		metrics.Transitions.WithLabelValues(result.String()).Inc()
		return result, nil
	}

	return ResultNone, fmt.Errorf("spot %d: %w", ev.SpotID, ErrStoreConflict)
}

func (e *Engine) afterTransition(ev telemetry.Event) Result {
	if ev.Occupied {
		e.timer.Begin(ev.SpotID, ev.ObservedAt)
		e.log.Info("Spot occupied", zap.Int64("spot", ev.SpotID), zap.Time("at", ev.ObservedAt))
		return ResultEnteredOccupied
	}

	d, ok := e.timer.End(ev.SpotID, ev.ObservedAt)
	e.log.Info("Spot freed", zap.Int64("spot", ev.SpotID), zap.Time("at", ev.ObservedAt), zap.Duration("duration", d))
	if ok {
		metrics.OccupancyDuration.Observe(d.Minutes())
		if e.notifier != nil {
			e.notifier.Dispatch(notification.Notice{
				SpotID:   ev.SpotID,
				SpotName: parse.SpotName(ev.SpotID),
				Duration: d,
				EndedAt:  ev.ObservedAt,
			})
		}
	}
	return ResultExitedOccupied
}

// Override forces the state of a spot. Sessions and notifications are not
// affected.
func (e *Engine) Override(ctx context.Context, id int64, occupied bool, at time.Time) error {
	if !e.Known(id) {
		return ErrUnknownSpot
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	return e.set(ctx, id, occupied, at)
}

// Toggle flips the state of a spot and returns the new value.
func (e *Engine) Toggle(ctx context.Context, id int64, at time.Time) (bool, error) {
	if !e.Known(id) {
		return false, ErrUnknownSpot
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	spot, err := e.store.GetSpot(ctx, id)
	if errors.Is(err, store.ErrSpotNotFound) {
		return false, ErrUnknownSpot
	}
	if err != nil {
		return false, err
	}

	next := !spot.Occupied
	if err := e.set(ctx, id, next, at); err != nil {
		return false, err
	}
	return next, nil
}

func (e *Engine) set(ctx context.Context, id int64, occupied bool, at time.Time) error {
	err := e.store.SetOccupied(ctx, id, occupied, at)
	if errors.Is(err, store.ErrSpotNotFound) {
		return ErrUnknownSpot
	}
	if err != nil {
		return err
	}
	e.log.Info("Spot state overridden", zap.Int64("spot", id), zap.Bool("occupied", occupied))
	return nil
}

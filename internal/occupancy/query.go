package occupancy

import (
	"context"
	"math"
	"time"

	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/parse"
	"parking-status-backend/internal/store"
)

// SpotView is the read model of a spot.
type SpotView struct {
	ID               int64
	Name             string
	Occupied         bool
	UpdatedAt        time.Time
	Distance         *float64
	SensorControlled bool
	OccupiedSince    *time.Time
}

// Stats summarizes occupancy across all spots.
type Stats struct {
	Total         int
	Occupied      int
	Free          int
	OccupancyRate float64
	ComputedAt    time.Time
}

// Query answers read-only questions straight from the store.
type Query struct {
	store  store.SpotStore
	timer  *Timer
	sensor map[int64]bool
	now    func() time.Time
}

// NewQuery creates a query service. sensorSpots lists the spots driven by
// physical sensors; timer may be nil.
func NewQuery(s store.SpotStore, timer *Timer, sensorSpots []int64) *Query {
	sensor := make(map[int64]bool, len(sensorSpots))
	for _, id := range sensorSpots {
		sensor[id] = true
	}
	return &Query{store: s, timer: timer, sensor: sensor, now: time.Now}
}

// ListSpots returns every spot ordered by id.
func (q *Query) ListSpots(ctx context.Context) ([]SpotView, error) {
	spots, err := q.store.ListSpots(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]SpotView, 0, len(spots))
	for _, s := range spots {
		v := SpotView{
			ID:               s.ID,
			Name:             parse.SpotName(s.ID),
			Occupied:         s.Occupied,
			UpdatedAt:        s.UpdatedAt,
			Distance:         s.LastDistance,
			SensorControlled: q.sensor[s.ID],
		}
		if s.Occupied && q.timer != nil {
			if since, ok := q.timer.Active(s.ID); ok {
				v.OccupiedSince = &since
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// Stats counts occupied and free spots. The rate is a percentage rounded to
// one decimal, zero when there are no spots.
func (q *Query) Stats(ctx context.Context) (Stats, error) {
	spots, err := q.store.ListSpots(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: len(spots), ComputedAt: q.now()}
	for _, s := range spots {
		if s.Occupied {
			st.Occupied++
		}
	}
	st.Free = st.Total - st.Occupied
	if st.Total > 0 {
		st.OccupancyRate = math.Round(float64(st.Occupied)/float64(st.Total)*1000) / 10
	}

	metrics.SpotsOccupied.Set(float64(st.Occupied))
	return st, nil
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/telemetry"
)

// recordingApplier captures events and returns a canned result.
type recordingApplier struct {
	mu     sync.Mutex
	events []telemetry.Event
	err    error
	panics bool
}

func (r *recordingApplier) Apply(_ context.Context, ev telemetry.Event) (occupancy.Result, error) {
	if r.panics {
		panic("store exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.err != nil {
		return occupancy.ResultNone, r.err
	}
	return occupancy.ResultEnteredOccupied, nil
}

func (r *recordingApplier) Events() []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Event(nil), r.events...)
}

func newTestPipeline(a Applier) *Pipeline {
	n := telemetry.NewNormalizer(telemetry.Thresholds{Distance: 1500, Delta: 2000}, time.UTC)
	return NewPipeline(n, a, nil)
}

func TestPipeline_HandleMessage(t *testing.T) {
	received := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		topic    string
		payload  string
		outcome  string
		occupied bool
	}{
		{name: "Firmware document", topic: "/vaga1/status", payload: `{"situacao":"ocupada","distancia_atual":900}`, outcome: metrics.OutcomeApplied, occupied: true},
		{name: "Plain status", topic: "vaga/A2/status", payload: "livre", outcome: metrics.OutcomeApplied},
		{name: "Plain distance", topic: "vaga/A2/distancia", payload: "800", outcome: metrics.OutcomeApplied, occupied: true},
		{name: "Unknown topic", topic: "casa/sala/temperatura", payload: "21", outcome: metrics.OutcomeUnknownTopic},
		{name: "Malformed document", topic: "/vaga1/status", payload: `{not json`, outcome: metrics.OutcomeMalformed},
		{name: "Dead-band delta", topic: "vaga/A1/diferenca", payload: "100", outcome: metrics.OutcomeNoVerdict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := &recordingApplier{}
			p := newTestPipeline(a)

			outcome := p.HandleMessage(context.Background(), tc.topic, []byte(tc.payload), received)
			assert.Equal(t, tc.outcome, outcome)

			if tc.outcome == metrics.OutcomeApplied {
				events := a.Events()
				require.Len(t, events, 1)
				assert.Equal(t, tc.occupied, events[0].Occupied)
				assert.Equal(t, received, events[0].ObservedAt)
			} else {
				assert.Empty(t, a.Events())
			}
		})
	}
}

func TestPipeline_SwallowsEngineErrors(t *testing.T) {
	p := newTestPipeline(&recordingApplier{err: errors.New("database is locked")})
	outcome := p.HandleMessage(context.Background(), "vaga/A1/status", []byte("ocupada"), time.Now())
	assert.Equal(t, metrics.OutcomeFailed, outcome)
}

func TestPipeline_RecoversFromPanic(t *testing.T) {
	p := newTestPipeline(&recordingApplier{panics: true})

	var outcome string
	assert.NotPanics(t, func() {
		outcome = p.HandleMessage(context.Background(), "vaga/A1/status", []byte("ocupada"), time.Now())
	})
	assert.Equal(t, metrics.OutcomePanic, outcome)
}

func TestPipeline_WithFakeSubscriber(t *testing.T) {
	a := &recordingApplier{}
	p := newTestPipeline(a)
	sub := NewFakeSubscriber()

	assert.False(t, sub.Deliver("vaga/A1/status", []byte("ocupada"), time.Now()))

	require.NoError(t, sub.Start(context.Background(), p.Handler(context.Background())))
	assert.True(t, sub.IsConnected())

	assert.True(t, sub.Deliver("vaga/A1/status", []byte("ocupada"), time.Now()))
	assert.True(t, sub.Deliver("vaga/A1/status", []byte("livre"), time.Now()))

	events := a.Events()
	require.Len(t, events, 2)
	assert.True(t, events[0].Occupied)
	assert.False(t, events[1].Occupied)

	sub.Stop()
	assert.True(t, sub.Stopped)
	assert.False(t, sub.IsConnected())
}

package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/config"
	"parking-status-backend/internal/db"
	"parking-status-backend/internal/ingest"
	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/telemetry"
)

// captureChannel is a notification.Channel that hands notices to the test.
type captureChannel struct {
	notices chan notification.Notice
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Send(_ context.Context, n notification.Notice) error {
	c.notices <- n
	return nil
}

type harness struct {
	store      store.Store
	engine     *occupancy.Engine
	subscriber *ingest.FakeSubscriber
	notices    chan notification.Notice
}

func newHarness(t *testing.T, dsn string) *harness {
	t.Helper()

	// Setup an in-memory SQLite database for testing.
	gdb, err := db.Open(&config.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	sqlDB, _ := gdb.DB()
	t.Cleanup(func() { sqlDB.Close() })

	_, err = db.Migrate(gdb)
	require.NoError(t, err)

	s := store.NewGormStore(gdb)
	require.NoError(t, store.EnsureSpots(context.Background(), s, 2))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	capture := &captureChannel{notices: make(chan notification.Notice, 16)}
	pool := notification.NewWorkerPool(2, 16, nil, capture)
	pool.Start(ctx)

	engine := occupancy.NewEngine(s, occupancy.NewTimer(), pool, 2, nil)
	normalizer := telemetry.NewNormalizer(telemetry.Thresholds{Distance: 1500, Delta: 2000}, time.UTC)
	pipeline := ingest.NewPipeline(normalizer, engine, nil)

	sub := ingest.NewFakeSubscriber()
	require.NoError(t, sub.Start(ctx, pipeline.Handler(ctx)))

	return &harness{store: s, engine: engine, subscriber: sub, notices: capture.notices}
}

func (h *harness) waitNotice(t *testing.T) notification.Notice {
	t.Helper()
	select {
	case n := <-h.notices:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a notice")
		return notification.Notice{}
	}
}

func (h *harness) assertNoNotice(t *testing.T) {
	t.Helper()
	select {
	case n := <-h.notices:
		t.Fatalf("unexpected notice %v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestOccupancyLifecycle drives a spot through a full session with firmware
// documents and verifies the stored state and the notice at each step.
func TestOccupancyLifecycle(t *testing.T) {
	h := newHarness(t, "file:lifecycle?mode=memory&cache=shared")
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// A car arrives.
	h.subscriber.Deliver("/vaga1/status", []byte(`{"situacao":"ocupada","distancia_atual":420,"timestamp":"2026-03-01T08:00:00"}`), t0)
	spot, err := h.store.GetSpot(ctx, 1)
	require.NoError(t, err)
	assert.True(t, spot.Occupied)
	assert.True(t, spot.UpdatedAt.Equal(t0))
	require.NotNil(t, spot.LastDistance)
	assert.Equal(t, 420.0, *spot.LastDistance)

	// Repeated readings neither flip the state nor notify.
	h.subscriber.Deliver("/vaga1/status", []byte(`{"situacao":"ocupada","distancia_atual":415}`), t0.Add(time.Minute))
	h.assertNoNotice(t)
	spot, _ = h.store.GetSpot(ctx, 1)
	assert.True(t, spot.UpdatedAt.Equal(t0))
	assert.Equal(t, 415.0, *spot.LastDistance)

	// It leaves 25 minutes later.
	h.subscriber.Deliver("/vaga1/status", []byte(`{"situacao":"livre","distancia_atual":2600,"timestamp":"2026-03-01T08:25:00"}`), t0.Add(25*time.Minute))
	spot, _ = h.store.GetSpot(ctx, 1)
	assert.False(t, spot.Occupied)

	n := h.waitNotice(t)
	assert.Equal(t, int64(1), n.SpotID)
	assert.Equal(t, "A1", n.SpotName)
	assert.Equal(t, 25, n.Minutes())
	assert.Equal(t, "O veículo ficou 25 minutos estacionado na vaga 1.", notification.EmailBody(n))
}

func TestPlainTopicsAndNoise(t *testing.T) {
	h := newHarness(t, "file:plain_topics?mode=memory&cache=shared")
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// Noise is dropped without touching state.
	h.subscriber.Deliver("vaga/A9/status", []byte("ocupada"), t0)
	h.subscriber.Deliver("vaga/A2/diferenca", []byte("150"), t0)
	h.subscriber.Deliver("vaga/A2/distancia", []byte("perto"), t0)
	h.subscriber.Deliver("casa/sala/temperatura", []byte("21"), t0)
	spots, err := h.store.ListSpots(ctx)
	require.NoError(t, err)
	for _, s := range spots {
		assert.False(t, s.Occupied)
	}

	// Distance then delta readings on the plain topics.
	h.subscriber.Deliver("vaga/A2/distancia", []byte("900"), t0)
	spot, _ := h.store.GetSpot(ctx, 2)
	assert.True(t, spot.Occupied)

	h.subscriber.Deliver("vaga/A2/diferenca", []byte("2500"), t0.Add(10*time.Second))
	spot, _ = h.store.GetSpot(ctx, 2)
	assert.False(t, spot.Occupied)

	// A ten second visit still reports one minute.
	n := h.waitNotice(t)
	assert.Equal(t, int64(2), n.SpotID)
	assert.Equal(t, time.Minute, n.Duration)
}

func TestConcurrentSensorsSingleNoticePerExit(t *testing.T) {
	h := newHarness(t, "file:concurrent?mode=memory&cache=shared")
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.subscriber.Deliver("vaga/A1/status", []byte("ocupada"), t0)
		}()
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.subscriber.Deliver("vaga/A1/status", []byte("livre"), t0.Add(5*time.Minute))
		}()
	}
	wg.Wait()

	n := h.waitNotice(t)
	assert.Equal(t, 5*time.Minute, n.Duration)
	h.assertNoNotice(t)
}

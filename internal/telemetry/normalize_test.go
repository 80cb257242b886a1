package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = Thresholds{Distance: 1500, Delta: 2000}

func TestNormalize_Verdicts(t *testing.T) {
	n := NewNormalizer(testThresholds, time.UTC)
	received := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		kind     Kind
		payload  string
		occupied bool
	}{
		{name: "Status occupied upper case", kind: KindStatus, payload: "OCUPADA", occupied: true},
		{name: "Status occupied masculine", kind: KindStatus, payload: "ocupado", occupied: true},
		{name: "Status occupied english", kind: KindStatus, payload: "occupied", occupied: true},
		{name: "Status one", kind: KindStatus, payload: "1", occupied: true},
		{name: "Status free", kind: KindStatus, payload: "livre", occupied: false},
		{name: "Status released with spaces", kind: KindStatus, payload: "  Liberada\n", occupied: false},
		{name: "Status zero", kind: KindStatus, payload: "0", occupied: false},
		{name: "Distance below threshold", kind: KindDistance, payload: "1200", occupied: true},
		{name: "Distance at threshold", kind: KindDistance, payload: "1500", occupied: false},
		{name: "Distance above threshold", kind: KindDistance, payload: "2400.5", occupied: false},
		{name: "Delta approaching", kind: KindDelta, payload: "-2500", occupied: true},
		{name: "Delta receding", kind: KindDelta, payload: "2500", occupied: false},
		{name: "Composite status wins", kind: KindComposite, payload: `{"situacao":"ocupada","distancia_atual":3000}`, occupied: true},
		{name: "Composite distance", kind: KindComposite, payload: `{"distancia_atual":800}`, occupied: true},
		{name: "Composite unknown text falls to distance", kind: KindComposite, payload: `{"situacao":"medindo","distancia_atual":3000}`, occupied: false},
		{name: "Composite numeric situacao falls to distance", kind: KindComposite, payload: `{"situacao":1,"distancia_atual":3000}`, occupied: false},
		{name: "Composite delta only", kind: KindComposite, payload: `{"diferenca":-2100}`, occupied: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := n.Normalize(1, tc.kind, []byte(tc.payload), received)
			require.NoError(t, err)
			assert.Equal(t, int64(1), ev.SpotID)
			assert.Equal(t, tc.occupied, ev.Occupied)
		})
	}
}

func TestNormalize_NoVerdict(t *testing.T) {
	n := NewNormalizer(testThresholds, time.UTC)

	testCases := []struct {
		name    string
		kind    Kind
		payload string
	}{
		{name: "Delta inside dead-band", kind: KindDelta, payload: "1999"},
		{name: "Delta exactly at band edge", kind: KindDelta, payload: "-2000"},
		{name: "Unknown status text", kind: KindStatus, payload: "medindo"},
		{name: "Composite empty document", kind: KindComposite, payload: `{}`},
		{name: "Composite unknown text only", kind: KindComposite, payload: `{"situacao":"calibrando"}`},
		{name: "Composite delta inside dead-band", kind: KindComposite, payload: `{"diferenca":150}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(1, tc.kind, []byte(tc.payload), time.Now())
			assert.ErrorIs(t, err, ErrNoVerdict)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	n := NewNormalizer(testThresholds, time.UTC)

	testCases := []struct {
		name    string
		kind    Kind
		payload string
	}{
		{name: "Composite not json", kind: KindComposite, payload: `{"situacao":`},
		{name: "Composite distance as string", kind: KindComposite, payload: `{"distancia_atual":"perto"}`},
		{name: "Distance not a number", kind: KindDistance, payload: "abc"},
		{name: "Distance not finite", kind: KindDistance, payload: "NaN"},
		{name: "Delta empty", kind: KindDelta, payload: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(1, tc.kind, []byte(tc.payload), time.Now())
			require.Error(t, err)

			var nerr *NormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, ReasonMalformedPayload, nerr.Reason)
			assert.Equal(t, tc.kind, nerr.Kind)
		})
	}
}

func TestNormalize_ObservedAt(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	n := NewNormalizer(testThresholds, loc)
	received := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Zone-less firmware timestamp uses configured location", func(t *testing.T) {
		ev, err := n.Normalize(1, KindComposite, []byte(`{"situacao":"ocupada","timestamp":"2026-01-02T06:59:00"}`), received)
		require.NoError(t, err)
		assert.True(t, ev.ObservedAt.Equal(time.Date(2026, 1, 2, 9, 59, 0, 0, time.UTC)))
	})

	t.Run("RFC3339 timestamp", func(t *testing.T) {
		ev, err := n.Normalize(1, KindComposite, []byte(`{"situacao":"ocupada","timestamp":"2026-01-02T09:58:00Z"}`), received)
		require.NoError(t, err)
		assert.True(t, ev.ObservedAt.Equal(time.Date(2026, 1, 2, 9, 58, 0, 0, time.UTC)))
	})

	t.Run("Unparseable timestamp falls back to receipt time", func(t *testing.T) {
		ev, err := n.Normalize(1, KindComposite, []byte(`{"situacao":"ocupada","timestamp":"ontem"}`), received)
		require.NoError(t, err)
		assert.Equal(t, received, ev.ObservedAt)
	})

	t.Run("Plain payloads use receipt time", func(t *testing.T) {
		ev, err := n.Normalize(1, KindStatus, []byte("livre"), received)
		require.NoError(t, err)
		assert.Equal(t, received, ev.ObservedAt)
	})
}

func TestNormalize_CarriesDistance(t *testing.T) {
	n := NewNormalizer(testThresholds, nil)

	ev, err := n.Normalize(2, KindComposite, []byte(`{"situacao":"livre","distancia_atual":2100.5}`), time.Now())
	require.NoError(t, err)
	require.NotNil(t, ev.Distance)
	assert.Equal(t, 2100.5, *ev.Distance)

	ev, err = n.Normalize(2, KindStatus, []byte("livre"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, ev.Distance)
}

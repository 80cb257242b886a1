// Package telemetry turns raw sensor payloads into occupancy verdicts.
//
// Sensor firmware disagrees on payload shape: some boards publish a JSON
// document, others a bare status word, distance or delta. Normalize hides
// that variability so the transition engine only ever sees a boolean.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Event is the normalized input to the transition engine.
type Event struct {
	SpotID     int64
	Occupied   bool
	ObservedAt time.Time
	Distance   *float64
}

// Thresholds are the per-deployment verdict cut-offs. They are independent
// quantities and are never derived from each other.
type Thresholds struct {
	// Distance: readings strictly below it mean an object is close (occupied).
	Distance float64
	// Delta: differences beyond ±Delta mean an object approached or receded.
	Delta float64
}

// Reason classifies a normalization failure.
type Reason string

const ReasonMalformedPayload Reason = "malformed_payload"

// NormalizationError reports a payload that could not be decoded.
type NormalizationError struct {
	Kind   Kind
	Reason Reason
	Err    error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("telemetry: %s %s payload: %v", e.Reason, e.Kind, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// ErrNoVerdict means the payload was well formed but ambiguous (unknown status
// text with no reading, or a delta inside the dead-band). The message must be
// dropped and the previous state retained.
var ErrNoVerdict = errors.New("telemetry: payload carries no verdict")

var (
	occupiedWords = map[string]bool{"ocupada": true, "ocupado": true, "occupied": true, "1": true}
	freeWords     = map[string]bool{"liberada": true, "liberado": true, "livre": true, "free": true, "0": true}
)

// localTimestampLayouts are tried, in order, for firmware timestamps that
// carry no zone.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Normalizer maps raw payloads to events. It is stateless and safe for
// concurrent use.
type Normalizer struct {
	thresholds Thresholds
	loc        *time.Location
}

// NewNormalizer creates a normalizer. Zone-less firmware timestamps are read
// in loc (UTC when nil).
func NewNormalizer(thresholds Thresholds, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{thresholds: thresholds, loc: loc}
}

// Thresholds returns the configured cut-offs.
func (n *Normalizer) Thresholds() Thresholds {
	return n.thresholds
}

// reading is everything a single payload may carry.
type reading struct {
	status   *string
	distance *float64
	delta    *float64
	observed *time.Time
}

// Normalize decodes payload and derives the verdict. The first applicable
// rule wins: recognized status text, then absolute distance, then delta.
func (n *Normalizer) Normalize(spotID int64, kind Kind, payload []byte, receivedAt time.Time) (Event, error) {
	r, err := n.decode(kind, payload)
	if err != nil {
		return Event{}, &NormalizationError{Kind: kind, Reason: ReasonMalformedPayload, Err: err}
	}

	occupied, ok := n.verdict(r)
	if !ok {
		return Event{}, ErrNoVerdict
	}

	ev := Event{
		SpotID:     spotID,
		Occupied:   occupied,
		ObservedAt: receivedAt,
		Distance:   r.distance,
	}
	if r.observed != nil {
		ev.ObservedAt = *r.observed
	}
	return ev, nil
}

func (n *Normalizer) verdict(r reading) (bool, bool) {
	if r.status != nil {
		word := strings.ToLower(strings.TrimSpace(*r.status))
		switch {
		case occupiedWords[word]:
			return true, true
		case freeWords[word]:
			return false, true
		}
	}

	if r.distance != nil {
		return *r.distance < n.thresholds.Distance, true
	}

	if r.delta != nil {
		switch d := *r.delta; {
		case d < -n.thresholds.Delta:
			return true, true
		case d > n.thresholds.Delta:
			return false, true
		}
	}

	return false, false
}

// compositePayload mirrors the ESP32 firmware document. situacao and
// timestamp are untyped because firmware versions send strings or numbers.
type compositePayload struct {
	Situacao       any      `json:"situacao"`
	DistanciaAtual *float64 `json:"distancia_atual"`
	Diferenca      *float64 `json:"diferenca"`
	Timestamp      any      `json:"timestamp"`
}

func (n *Normalizer) decode(kind Kind, payload []byte) (reading, error) {
	switch kind {
	case KindComposite:
		var p compositePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return reading{}, err
		}
		var r reading
		if s, ok := p.Situacao.(string); ok {
			r.status = &s
		}
		r.distance = finite(p.DistanciaAtual)
		r.delta = finite(p.Diferenca)
		if ts, ok := p.Timestamp.(string); ok {
			r.observed = n.parseTimestamp(ts)
		}
		return r, nil

	case KindStatus:
		s := string(payload)
		return reading{status: &s}, nil

	case KindDistance:
		v, err := parseNumber(payload)
		if err != nil {
			return reading{}, err
		}
		return reading{distance: &v}, nil

	case KindDelta:
		v, err := parseNumber(payload)
		if err != nil {
			return reading{}, err
		}
		return reading{delta: &v}, nil

	default:
		return reading{}, fmt.Errorf("unsupported payload kind %q", kind)
	}
}

func (n *Normalizer) parseTimestamp(ts string) *time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return &t
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, ts, n.loc); err == nil {
			return &t
		}
	}
	return nil
}

func parseNumber(payload []byte) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite reading %q", payload)
	}
	return v, nil
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

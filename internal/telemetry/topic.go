package telemetry

import (
	"errors"
	"regexp"
	"strings"

	"parking-status-backend/internal/parse"
)

// Kind identifies the payload shape carried by a topic.
type Kind string

const (
	// KindComposite is the ESP32 firmware JSON document
	// {"situacao", "distancia_atual", "diferenca", "timestamp"}.
	KindComposite Kind = "composite"
	// KindStatus is a plain free-text status such as "ocupada" or "livre".
	KindStatus Kind = "status"
	// KindDistance is a plain absolute distance reading.
	KindDistance Kind = "distance"
	// KindDelta is a plain signed difference between two readings.
	KindDelta Kind = "delta"
)

// ErrUnknownTopic is returned for topics that do not map to a spot and kind.
var ErrUnknownTopic = errors.New("telemetry: unrecognized topic")

var (
	firmwareTopicRe = regexp.MustCompile(`^/vaga(\d+)/status$`)
	plainTopicRe    = regexp.MustCompile(`^vaga/([^/]+)/([^/]+)$`)
)

var plainKinds = map[string]Kind{
	"status":    KindStatus,
	"distancia": KindDistance,
	"diferenca": KindDelta,
}

// ParseTopic recovers the spot id and payload kind from an MQTT topic.
// The spot id is not range-checked; that is the engine's concern.
func ParseTopic(topic string) (int64, Kind, error) {
	if m := firmwareTopicRe.FindStringSubmatch(topic); m != nil {
		id, err := parse.ParseSpotRef(m[1])
		if err != nil {
			return 0, "", ErrUnknownTopic
		}
		return id, KindComposite, nil
	}

	if m := plainTopicRe.FindStringSubmatch(topic); m != nil {
		kind, ok := plainKinds[strings.ToLower(m[2])]
		if !ok {
			return 0, "", ErrUnknownTopic
		}
		id, err := parse.ParseSpotRef(m[1])
		if err != nil {
			return 0, "", ErrUnknownTopic
		}
		return id, kind, nil
	}

	return 0, "", ErrUnknownTopic
}

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTopic(t *testing.T) {
	testCases := []struct {
		name      string
		topic     string
		spotID    int64
		kind      Kind
		expectErr bool
	}{
		{name: "Firmware document", topic: "/vaga1/status", spotID: 1, kind: KindComposite},
		{name: "Firmware document two digits", topic: "/vaga12/status", spotID: 12, kind: KindComposite},
		{name: "Plain status", topic: "vaga/A2/status", spotID: 2, kind: KindStatus},
		{name: "Plain distance", topic: "vaga/A1/distancia", spotID: 1, kind: KindDistance},
		{name: "Plain delta", topic: "vaga/3/diferenca", spotID: 3, kind: KindDelta},
		{name: "Upper case suffix", topic: "vaga/A1/STATUS", spotID: 1, kind: KindStatus},
		{name: "Unknown suffix", topic: "vaga/A1/temperatura", expectErr: true},
		{name: "Bad spot reference", topic: "vaga/B1/status", expectErr: true},
		{name: "Spot zero", topic: "/vaga0/status", expectErr: true},
		{name: "Unrelated", topic: "home/boiler/state", expectErr: true},
		{name: "Extra segment", topic: "vaga/A1/status/raw", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, kind, err := ParseTopic(tc.topic)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrUnknownTopic)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.spotID, id)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

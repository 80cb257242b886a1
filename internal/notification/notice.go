package notification

import (
	"fmt"
	"time"
)

// Notice describes a completed occupancy session on a spot.
type Notice struct {
	SpotID   int64
	SpotName string
	Duration time.Duration
	EndedAt  time.Time
}

// Minutes is the whole number of minutes reported to people, never below one.
func (n Notice) Minutes() int {
	m := int(n.Duration / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

func (n Notice) String() string {
	return fmt.Sprintf("spot %d free after %d min", n.SpotID, n.Minutes())
}

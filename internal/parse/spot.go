package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// spotRefRe accepts "A1", "a 1", "vaga A1" and bare "1".
var spotRefRe = regexp.MustCompile(`(?i)^(?:vaga\s*)?a?\s*(\d+)$`)

// ParseSpotRef extracts the numeric spot id from a spot reference as used by
// the dashboard ("A1") and by sensor topics ("A1", "1").
func ParseSpotRef(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	m := spotRefRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse spot reference: %q", raw)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("unable to parse spot reference: %q", raw)
	}
	return id, nil
}

// SpotName returns the display name of a spot ("A1" for id 1).
func SpotName(id int64) string {
	return "A" + strconv.FormatInt(id, 10)
}

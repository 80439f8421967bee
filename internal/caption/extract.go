// Package caption turns the captioning service's free-text answer into a
// caption and a 24-hour posting hour.
package caption

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultHour is used when the response carries no usable recommended time.
const DefaultHour = 12

var (
	markerRe = regexp.MustCompile(`(?i)recommended time:`)
	timeRe   = regexp.MustCompile(`(?i)recommended time:\s*(\d{1,2}):\d{2}\s*(AM|PM)\b`)
)

// Extract splits a response of the shape
//
//	<caption text>
//	Recommended Time: 3:00 PM
//
// into the trimmed caption and the hour on a 24-hour clock. Without a marker
// the whole trimmed text is the caption. A missing or malformed time yields
// DefaultHour.
func Extract(text string) (string, int) {
	caption := text
	if loc := markerRe.FindStringIndex(text); loc != nil {
		caption = text[:loc[0]]
	}
	caption = strings.TrimSpace(caption)

	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return caption, DefaultHour
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h < 1 || h > 12 {
		return caption, DefaultHour
	}

	hour := h % 12
	if strings.EqualFold(m[2], "PM") {
		hour += 12
	}
	return caption, hour
}

// HourSet holds the hours handed out during one poll pass. It is a hint for
// the captioning service, not a uniqueness guarantee.
type HourSet map[int]struct{}

func (s HourSet) Add(h int) {
	s[h] = struct{}{}
}

func (s HourSet) Has(h int) bool {
	_, ok := s[h]
	return ok
}

// Sorted returns the hours in ascending order.
func (s HourSet) Sorted() []int {
	hours := make([]int, 0, len(s))
	for h := range s {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

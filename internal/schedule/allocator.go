package schedule

import (
	"context"
	"strings"
	"time"
)

type Cadence string

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
)

// ParseCadence maps a configured frequency to a Cadence. Unknown values fall
// back to Daily; ok reports whether the value was recognised.
func ParseCadence(s string) (c Cadence, ok bool) {
	switch Cadence(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, true
	case Weekly:
		return Weekly, true
	case Monthly:
		return Monthly, true
	}
	return Daily, false
}

// Days is the slot spacing of the cadence. Monthly is a flat 30 days.
func (c Cadence) Days() int {
	switch c {
	case Weekly:
		return 7
	case Monthly:
		return 30
	}
	return 1
}

// NextSlot advances latest by one cadence unit and pins the result to hour:00:00
// in latest's location.
func NextSlot(c Cadence, latest time.Time, hour int) time.Time {
	next := latest.AddDate(0, 0, c.Days())
	return time.Date(next.Year(), next.Month(), next.Day(), hour, 0, 0, 0, next.Location())
}

// CooldownInstant is the earliest time an asset may be picked again by the
// image rotation. It is stored on the post and not enforced here.
func CooldownInstant(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, days)
}

type LatestScheduledReader interface {
	// LatestScheduledTime returns the furthest scheduled time across all
	// posts; ok is false when there are none.
	LatestScheduledTime(ctx context.Context) (t time.Time, ok bool, err error)
}

// Allocator extends the single post queue from its furthest scheduled time.
// It keeps no state between calls: every call rereads the posts table.
type Allocator struct {
	posts LatestScheduledReader
	loc   *time.Location
	now   func() time.Time
}

func NewAllocator(posts LatestScheduledReader, loc *time.Location) *Allocator {
	if loc == nil {
		loc = time.UTC
	}
	return &Allocator{posts: posts, loc: loc, now: time.Now}
}

// Next returns the slot after the furthest scheduled post (or after now when
// no post exists), at hour in the allocator's location.
func (a *Allocator) Next(ctx context.Context, c Cadence, hour int) (time.Time, error) {
	latest, ok, err := a.posts.LatestScheduledTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		latest = a.now()
	}
	return NextSlot(c, latest.In(a.loc), hour), nil
}

// Cooldown is CooldownInstant relative to the allocator's clock.
func (a *Allocator) Cooldown(days int) time.Time {
	return CooldownInstant(a.now(), days)
}

// internal/domain/notification/threshold.go
package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownThreshold = fmt.Errorf("unknown notification threshold")

// Thresholds is the canonical universe of reminder thresholds, in days before expiry.
// 0 means "on the expiry date itself".
var Thresholds = []int{45, 30, 15, 7, 5, 1, 0}

// ThresholdSet is a closed set over Thresholds. Each member is independently togglable.
type ThresholdSet uint8

func thresholdBit(days int) (ThresholdSet, bool) {
	for i, d := range Thresholds {
		if d == days {
			return ThresholdSet(1) << uint(i), true
		}
	}
	return 0, false
}

// AllThresholds returns a set with every canonical threshold enabled.
func AllThresholds() ThresholdSet {
	return ThresholdSet(1)<<uint(len(Thresholds)) - 1
}

// NewThresholdSet builds a set from day values, rejecting anything outside the universe.
// Duplicates are collapsed.
func NewThresholdSet(days ...int) (ThresholdSet, error) {
	var set ThresholdSet
	for _, d := range days {
		bit, ok := thresholdBit(d)
		if !ok {
			return 0, fmt.Errorf("%w: %d (allowed: %s)", ErrUnknownThreshold, d, FormatDays(Thresholds))
		}
		set |= bit
	}
	return set, nil
}

// ParseThresholdList parses a comma separated list such as "30,7,1,0".
func ParseThresholdList(s string) (ThresholdSet, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownThreshold, part)
		}
		days = append(days, d)
	}
	return NewThresholdSet(days...)
}

// ContainsDays reports whether the given days-until-expiry value is an enabled threshold.
func (s ThresholdSet) ContainsDays(days int) bool {
	bit, ok := thresholdBit(days)
	return ok && s&bit != 0
}

// With returns a copy of the set with the threshold toggled on or off.
// Unknown day values leave the set unchanged.
func (s ThresholdSet) With(days int, enabled bool) ThresholdSet {
	bit, ok := thresholdBit(days)
	if !ok {
		return s
	}
	if enabled {
		return s | bit
	}
	return s &^ bit
}

// Days lists the enabled thresholds in the canonical (descending) order.
func (s ThresholdSet) Days() []int {
	days := make([]int, 0, len(Thresholds))
	for _, d := range Thresholds {
		if s.ContainsDays(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s ThresholdSet) IsEmpty() bool {
	return s&AllThresholds() == 0
}

func (s ThresholdSet) String() string {
	return FormatDays(s.Days())
}

// FormatDays renders day values as "45,30,7".
func FormatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// DaysUntilExpiry returns the whole number of calendar days from today to the expiration date.
// Both inputs are reduced to their calendar date first (today in its own location, the
// expiration date as stored), so time-of-day components and DST shifts never change the count.
// Already expired licenses yield negative values.
func DaysUntilExpiry(today, expiration time.Time) int {
	ty, tm, td := today.Date()
	ey, em, ed := expiration.Date()
	from := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// DayBounds returns [midnight, next midnight) of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

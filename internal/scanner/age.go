package scanner

import "time"

// Day is the length of one threshold day.
const Day = 24 * time.Hour

// IsEligible reports whether a file last modified at modTime is old enough to
// be acted on. The comparison is strict: a file modified exactly at the cutoff
// is kept.
func IsEligible(modTime, cutoff time.Time) bool {
	return modTime.Before(cutoff)
}

// Cutoff returns the instant that is days threshold days before now.
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * Day)
}

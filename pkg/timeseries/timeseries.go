package timeseries

import "time"

// LatestAtOrBefore returns the last record whose instant, extracted by
// at, is at or before cutoff. records must already be sorted ascending
// by that instant; the feed ingestion layer guarantees this, so the
// scan is a single forward pass that exits on the first record past
// cutoff. When two records share an instant the later one in input
// order wins. Returns false if the slice is empty or every record is
// after cutoff.
func LatestAtOrBefore[T any](records []T, cutoff time.Time, at func(T) time.Time) (T, bool) {
	var best T
	found := false
	for _, r := range records {
		if at(r).After(cutoff) {
			break
		}
		best = r
		found = true
	}
	return best, found
}

// IsSortedBy reports whether records are ascending by the instant
// extracted by at. Used at the ingestion boundary; the resolver itself
// trusts the precondition.
func IsSortedBy[T any](records []T, at func(T) time.Time) bool {
	for i := 1; i < len(records); i++ {
		if at(records[i]).Before(at(records[i-1])) {
			return false
		}
	}
	return true
}

// Tail returns the trailing n records (or all of them when fewer).
func Tail[T any](records []T, n int) []T {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

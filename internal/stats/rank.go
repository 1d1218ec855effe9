package stats

import "sort"

// TopN returns up to n items ordered by score, highest first. Equal scores
// keep their input order, which callers rely on for tie-breaks. items is
// not modified.
func TopN[T any](items []T, score func(T) float64, n int) ([]T, error) {
	if n < 0 {
		return nil, invalid("limit", "must not be negative, got %d", n)
	}
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted, nil
}

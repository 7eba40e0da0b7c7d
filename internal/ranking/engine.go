// Package ranking computes the display order of the shared queue. Rank is a
// pure function: identical input always yields identical output, and the
// total order is fully determined by (score, addedAt, id).
package ranking

import (
	"jamsync/internal/models"
	"sort"
)

// stableTop is the number of leading positions the interaction lock
// protects. Reorders below this depth never feel jarring, so they are
// adopted immediately.
const stableTop = 10

// Rank orders entries into three bands: positive scores first (score
// descending, oldest first on ties), unvoted entries next (newest first, so
// a fresh add surfaces right below the voted block instead of sinking),
// negative scores last (score descending, oldest first on ties).
//
// When interactionActive is set and adopting the fresh order would change
// the identity of the top positions relative to prevOrder, the previous
// order is kept and only re-mapped onto current entry data: missing ids are
// dropped, new ids appended. The caller feeds the returned order back in as
// prevOrder on the next call.
func Rank(entries []*models.Entry, prevOrder []string, interactionActive bool) []*models.Entry {
	fresh := make([]*models.Entry, len(entries))
	copy(fresh, entries)
	sort.SliceStable(fresh, func(i, j int) bool {
		return less(fresh[i], fresh[j])
	})

	if !interactionActive || len(prevOrder) == 0 {
		return fresh
	}
	if sameTop(fresh, prevOrder, stableTop) {
		return fresh
	}

	return remap(fresh, prevOrder)
}

// Order extracts the id sequence of a ranked result.
func Order(entries []*models.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func band(e *models.Entry) int {
	switch {
	case e.Score > 0:
		return 0
	case e.Score == 0:
		return 1
	default:
		return 2
	}
}

func less(a, b *models.Entry) bool {
	ba, bb := band(a), band(b)
	if ba != bb {
		return ba < bb
	}
	switch ba {
	case 1:
		// Unvoted: newest first.
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.After(b.AddedAt)
		}
	default:
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
	}
	return a.ID < b.ID
}

func sameTop(fresh []*models.Entry, prev []string, n int) bool {
	for i := 0; i < n; i++ {
		if i >= len(fresh) && i >= len(prev) {
			return true
		}
		if i >= len(fresh) || i >= len(prev) {
			return false
		}
		if fresh[i].ID != prev[i] {
			return false
		}
	}
	return true
}

// remap keeps prev's positions but swaps in the freshly computed entry data
// so visible scores stay current while rows hold still.
func remap(fresh []*models.Entry, prev []string) []*models.Entry {
	byID := make(map[string]*models.Entry, len(fresh))
	for _, e := range fresh {
		byID[e.ID] = e
	}

	out := make([]*models.Entry, 0, len(fresh))
	seen := make(map[string]bool, len(prev))
	for _, id := range prev {
		if e, ok := byID[id]; ok {
			out = append(out, e)
			seen[id] = true
		}
	}
	for _, e := range fresh {
		if !seen[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

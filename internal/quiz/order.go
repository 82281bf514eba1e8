package quiz

import (
	"math/rand"
	"sort"
)

// byPosition returns a copy of qs sorted by position.
func byPosition(qs []Question) []Question {
	out := append([]Question(nil), qs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// snapshotOrder fixes the question order of a new attempt: a uniform
// permutation when randomize is set, position order otherwise.
func snapshotOrder(qs []Question, randomize bool, r *rand.Rand) []string {
	sorted := byPosition(qs)
	ids := make([]string, len(sorted))
	for i, q := range sorted {
		ids[i] = q.ID
	}
	if randomize && r != nil {
		r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}
	return ids
}

// replayOrder lays out the quiz's current questions in the attempt's
// snapshot order. Questions removed since issue are skipped; questions
// added since issue follow in position order.
func replayOrder(qs []Question, order []string) []Question {
	idx := make(map[string]Question, len(qs))
	for _, q := range qs {
		idx[q.ID] = q
	}
	out := make([]Question, 0, len(qs))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if q, ok := idx[id]; ok && !seen[id] {
			out = append(out, q)
			seen[id] = true
		}
	}
	for _, q := range byPosition(qs) {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

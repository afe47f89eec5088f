package detect

import "sort"

// Resolve selects a maximal non-overlapping subset of the candidate spans and
// returns it sorted by ascending start offset.
//
// Candidates are visited in (priority descending, length descending) order; a
// candidate overlapping an already-accepted span is discarded entirely, no
// sub-span is retained. Ties on both priority and length fall back to the
// original slice position, giving a total order: the output is uniquely
// determined by the input multiset, and Resolve(Resolve(x)) == Resolve(x).
func Resolve(spans []Span) []Span {
	type candidate struct {
		Span
		idx int
	}

	cands := make([]candidate, 0, len(spans))
	for i, s := range spans {
		if s.Start < 0 || s.End <= s.Start {
			continue
		}
		cands = append(cands, candidate{Span: s, idx: i})
	}

	sort.Slice(cands, func(i, j int) bool {
		pi, pj := cands[i].Type.Priority(), cands[j].Type.Priority()
		if pi != pj {
			return pi > pj
		}
		li, lj := cands[i].Len(), cands[j].Len()
		if li != lj {
			return li > lj
		}
		return cands[i].idx < cands[j].idx
	})

	var accepted []Span
	for _, c := range cands {
		conflict := false
		for _, a := range accepted {
			if c.overlaps(a) {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c.Span)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})

	return accepted
}

package pipeline

import "sort"

// confidenceBand is the bucket width rankPatches groups candidates by
// before the strategy tie-break (spec.md §4.7 step 5).
const confidenceBand = 0.1

// rankPatches orders candidates primarily by confidence (bucketed to
// confidenceBand so near-equal scores don't spuriously outrank
// strategy preference), falling back to strategy score
// (direct > conservative > alternative) within a band.
func rankPatches(candidates []RankedCandidate) []RankedCandidate {
	ranked := make([]RankedCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		bandI := confidenceBandOf(ranked[i].Candidate.Confidence)
		bandJ := confidenceBandOf(ranked[j].Candidate.Confidence)
		if bandI != bandJ {
			return bandI > bandJ
		}
		return strategyScore[ranked[i].Candidate.Strategy] > strategyScore[ranked[j].Candidate.Strategy]
	})
	return ranked
}

func confidenceBandOf(confidence float64) int {
	return int(confidence / confidenceBand)
}

package optimizer

import (
	"math"
	"sort"
)

// Rank totally orders the population by descending score. Scores equal to
// floating-point tolerance tie-break on the canonical value-tuple key so that
// re-ranking identical input always yields the identical order.
func Rank(population []*EvaluatedCombination) []*EvaluatedCombination {
	ranked := append([]*EvaluatedCombination{}, population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score, ranked[j].Score
		if math.Abs(si-sj) > floatTolerance {
			return si > sj
		}
		return ranked[i].Combination.Key() < ranked[j].Combination.Key()
	})
	return ranked
}

package pingpong

import "math"

// HeightScoreMap counts, for every rounded stack height, how many positions
// across both strands and all contigs were observed at that height.  The count
// doubles as a non-parametric rarity weight during grouping: rarer heights
// have lower frequencies and therefore smaller combined scores.
type HeightScoreMap map[int]float64

// TallyStackHeights visits every covered position of g and increments the
// bucket for its half-up-rounded stack height.  Singleton stacks contribute
// like any other.
func TallyStackHeights(g *GenomeCounts) HeightScoreMap {
	scores := make(HeightScoreMap)
	for strand := StrandPlus; strand <= StrandMinus; strand++ {
		for _, contig := range g[strand] {
			for _, p := range contig {
				scores[int(p.Reads+0.5)]++
			}
		}
	}
	return scores
}

// scoreOf returns the frequency bucket for a raw stack height.  The height is
// truncated, not rounded: bucket keys are produced by rounding but looked up
// by truncation.  A height with no bucket scores 0.
func (m HeightScoreMap) scoreOf(reads float64) float64 {
	return m[int(reads)]
}

// maxCombinedScore returns log10(f0*f0) where f0 is the frequency of the
// smallest observed stack height.  Two overlapping stacks of the smallest
// height are the most common combination, so this is the ceiling of the
// log-scaled combined score and fixes the height-score binning scale.
func (m HeightScoreMap) maxCombinedScore() float64 {
	first := true
	minHeight := 0
	for h := range m {
		if first || h < minHeight {
			minHeight = h
			first = false
		}
	}
	f0 := m[minHeight]
	return math.Log10(f0 * f0)
}

package pingpong

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func histTotal(h *Histogram) float64 {
	total := 0.0
	for d := MinOffset; d <= MaxOffset; d++ {
		total += offsetTotal(h, d)
	}
	return total
}

func offsetTotal(h *Histogram, d int) float64 {
	total := 0.0
	for _, cell := range h.Offset(d) {
		for i := range cell {
			for j := range cell[i] {
				for k := range cell[i][j] {
					total += cell[i][j][k]
				}
			}
		}
	}
	return total
}

func TestGroupSkipsEmptyWindows(t *testing.T) {
	g := NewGenomeCounts()
	g.position(StrandPlus, 0, 100).Reads = 1
	// Minus-strand coverage exists, but only outside the offset window.
	g.position(StrandMinus, 0, 100+MaxOffset+1).Reads = 5
	// A different contig with no minus-strand counterpart at all.
	g.position(StrandPlus, 1, 100).Reads = 1

	hist := GroupStacks(g, TallyStackHeights(g))
	expect.EQ(t, histTotal(hist), 0.0)
}

func TestGroupSignalCell(t *testing.T) {
	// Two stacks of height 1 with 5' ends 10 nt apart, both with uridine.
	g := NewGenomeCounts()
	plus := g.position(StrandPlus, 0, 100)
	plus.Reads = 1
	plus.UAt5PrimeEnd = true
	minus := g.position(StrandMinus, 0, 110)
	minus.Reads = 1
	minus.UAt5PrimeEnd = true

	scores := TallyStackHeights(g)
	expect.EQ(t, scores, HeightScoreMap{1: 2})
	hist := GroupStacks(g, scores)

	// Both stacks have the most common (indeed only) height, so the combined
	// score hits its ceiling and the hit lands in the topmost bin.  The stack
	// is the entire window, so it dominates local coverage.
	cell := hist.Offset(PingPongOffset)[HeightScoreBins-1]
	expect.EQ(t, cell[IsUridine][IsUridine][IsAboveCoverage], 1.0)
	expect.EQ(t, histTotal(hist), 1.0)
	// No minus-strand hit exists at any other offset.
	for d := MinOffset; d <= MaxOffset; d++ {
		if d != PingPongOffset {
			expect.EQ(t, offsetTotal(hist, d), 0.0)
		}
	}
}

func TestBackgroundProbabilityConservation(t *testing.T) {
	g := NewGenomeCounts()
	plus := g.position(StrandPlus, 0, 100)
	plus.Reads = 1
	plus.UAt5PrimeEnd = true
	// A single background hit at offset 5.  Its observed uridine status must
	// be ignored in favor of the fixed prior.
	minus := g.position(StrandMinus, 0, 105)
	minus.Reads = 1
	minus.UAt5PrimeEnd = true

	hist := GroupStacks(g, TallyStackHeights(g))

	cell := hist.Offset(5)[HeightScoreBins-1]
	sum := 0.0
	for i := range cell {
		for j := range cell[i] {
			sum += cell[i][j][IsAboveCoverage]
		}
	}
	// 0.25*0.25 + 0.75*0.25 + 0.25*0.75 + 0.75*0.75 == 1, exactly.
	expect.EQ(t, sum, 1.0)
	expect.EQ(t, cell[IsUridine][IsUridine][IsAboveCoverage], 0.0625)
	expect.EQ(t, cell[IsNotUridine][IsNotUridine][IsAboveCoverage], 0.5625)
	expect.EQ(t, histTotal(hist), 1.0)
	expect.EQ(t, offsetTotal(hist, PingPongOffset), 0.0)
}

func TestGroupLocalHeightSplit(t *testing.T) {
	// A dominant stack at the ping-pong offset next to a background dwarf: the
	// dominant one classifies as above local coverage, the dwarf as below.
	g := NewGenomeCounts()
	g.position(StrandPlus, 0, 100).Reads = 1
	g.position(StrandMinus, 0, 110).Reads = 20
	g.position(StrandMinus, 0, 103).Reads = 1

	hist := GroupStacks(g, TallyStackHeights(g))

	signal := 0.0
	for _, cell := range hist.Offset(PingPongOffset) {
		for i := range cell {
			for j := range cell[i] {
				signal += cell[i][j][IsAboveCoverage]
			}
		}
	}
	expect.EQ(t, signal, 1.0)

	background := 0.0
	for _, cell := range hist.Offset(3) {
		for i := range cell {
			for j := range cell[i] {
				background += cell[i][j][IsBelowCoverage]
			}
		}
	}
	expect.EQ(t, background, 1.0)
}

func TestHeightScoreBin(t *testing.T) {
	maxCombined := math.Log10(100)
	tests := []struct {
		combined float64
		want     int
	}{
		{100, HeightScoreBins - 1},  // ceiling
		{1, 0},                      // log10(1) == 0
		{0, 0},                      // absent height bucket; log10(0) is -Inf
		{1e12, HeightScoreBins - 1}, // clamp above
	}
	for _, tt := range tests {
		expect.EQ(t, heightScoreBin(tt.combined, maxCombined, HeightScoreBins), tt.want)
	}
	// Degenerate scale (single stack of frequency 1) must not panic or
	// produce an out-of-range bin.
	bin := heightScoreBin(1, 0, HeightScoreBins)
	expect.True(t, bin >= 0 && bin < HeightScoreBins)
}

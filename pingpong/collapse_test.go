package pingpong

import (
	"reflect"
	"testing"

	"github.com/grailbio/testutil/expect"
)

// fillBin sets every cell of one height-score bin of one offset to v.
func fillBin(h *Histogram, d, bin int, v float64) {
	cell := &h.Offset(d)[bin]
	for i := range cell {
		for j := range cell[i] {
			for k := range cell[i][j] {
				cell[i][j][k] = v
			}
		}
	}
}

func TestCollapseMergesUntilBackgroundFilled(t *testing.T) {
	hist := NewHistogram(3)
	for d := MinOffset; d <= MaxOffset; d++ {
		if d == PingPongOffset {
			continue
		}
		// Bin 0 is almost full, bin 1 supplies the one missing cell, bin 2
		// stands on its own.
		fillBin(hist, d, 0, 1)
		hist.Offset(d)[0][0][0][0] = 0
		hist.Offset(d)[1][0][0][0] = 1
		fillBin(hist, d, 2, 2)
	}
	// The ping-pong offset stays empty except for one observation; its
	// emptiness must not force additional merging.
	hist.Offset(PingPongOffset)[0][IsUridine][IsUridine][IsAboveCoverage] = 5

	collapsed := hist.Collapse()
	expect.EQ(t, collapsed.NumBins(), 2)

	for d := MinOffset; d <= MaxOffset; d++ {
		if d == PingPongOffset {
			continue
		}
		for bin := 0; bin < collapsed.NumBins(); bin++ {
			cell := &collapsed.Offset(d)[bin]
			for i := range cell {
				for j := range cell[i] {
					for k := range cell[i][j] {
						if cell[i][j][k] <= 0 {
							t.Fatalf("offset %d bin %d cell [%d][%d][%d] is empty after collapsing", d, bin, i, j, k)
						}
					}
				}
			}
		}
		// Bins 0+1 merge, bin 2 survives alone.
		expect.EQ(t, collapsed.Offset(d)[0][0][0][0], 1.0)
		expect.EQ(t, collapsed.Offset(d)[0][1][1][1], 1.0)
		expect.EQ(t, collapsed.Offset(d)[1][0][0][0], 2.0)
	}
	// The signal observation rides along with the merge.
	expect.EQ(t, collapsed.Offset(PingPongOffset)[0][IsUridine][IsUridine][IsAboveCoverage], 5.0)
}

func TestCollapseExhaustsSparseTail(t *testing.T) {
	hist := NewHistogram(4)
	for d := MinOffset; d <= MaxOffset; d++ {
		if d == PingPongOffset {
			continue
		}
		fillBin(hist, d, 0, 1)
		// Bins 1..3 never fill cell [0][0][0]; they all merge into one final
		// bin that stays incomplete because the input runs out.
		fillBin(hist, d, 1, 1)
		hist.Offset(d)[1][0][0][0] = 0
		hist.Offset(d)[2][0][0][0] = 0
		hist.Offset(d)[3][0][0][0] = 0
	}
	collapsed := hist.Collapse()
	expect.EQ(t, collapsed.NumBins(), 2)
	expect.EQ(t, collapsed.Offset(MinOffset)[1][0][0][0], 0.0)
}

func TestCollapseIdempotent(t *testing.T) {
	hist := NewHistogram(5)
	for d := MinOffset; d <= MaxOffset; d++ {
		if d == PingPongOffset {
			continue
		}
		fillBin(hist, d, 0, 0.25)
		fillBin(hist, d, 2, 1)
		hist.Offset(d)[0][1][1][0] = 0
		hist.Offset(d)[3][1][1][0] = 0.75
	}
	hist.Offset(PingPongOffset)[2][IsUridine][IsNotUridine][IsBelowCoverage] = 3

	once := hist.Collapse()
	twice := once.Collapse()
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("collapsing its own output changed the histogram: %v vs %v", once, twice)
	}
}

func TestCollapseAllEmptyInput(t *testing.T) {
	// With no background evidence at all the whole histogram folds into a
	// single bin.
	hist := NewHistogram(HeightScoreBins)
	hist.Offset(PingPongOffset)[HeightScoreBins-1][IsUridine][IsUridine][IsAboveCoverage] = 1
	collapsed := hist.Collapse()
	expect.EQ(t, collapsed.NumBins(), 1)
	expect.EQ(t, collapsed.Offset(PingPongOffset)[0][IsUridine][IsUridine][IsAboveCoverage], 1.0)
}

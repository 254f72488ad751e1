package pingpong

import "math"

// True ping-pong stacks sit on opposite strands with their 5' ends this many
// nt apart.  Offsets in [MinOffset, MaxOffset] other than PingPongOffset are
// used to estimate background noise.
const (
	PingPongOffset = 10
	MinOffset      = 0
	MaxOffset      = 20
	nOffsets       = MaxOffset - MinOffset + 1
)

// HeightScoreBins is the number of linear bins the log-scaled combined height
// score is divided into before collapsing.
const HeightScoreBins = 1000

// uridineProbability is the assumed probability of uridine at the 5' end of a
// read in non-piRNA data.  Background offsets split their evidence across the
// uridine cells with this prior instead of the observed base.
const uridineProbability = 0.25

// localHeightThreshold segregates ping-pong overlaps from arbitrary ones on
// the local height score.  The value is empirical.
const localHeightThreshold = 0.2

// Indexes of the binary histogram dimensions.
const (
	IsUridine = iota
	IsNotUridine
)
const (
	IsAboveCoverage = iota
	IsBelowCoverage
)

// BinCounts holds the evidence accumulators of one (offset, height-score bin)
// slot, indexed by [uridine on plus strand][uridine on minus strand][local
// height status].  Values are reals because background cells receive
// fractional probabilistic contributions.
type BinCounts [2][2][2]float64

// Histogram is the 5-dimensional evidence histogram: for each offset in
// [MinOffset, MaxOffset], a slice of height-score bins of BinCounts.  All
// offsets always have the same number of bins.
type Histogram struct {
	offsets [nOffsets][]BinCounts
}

// NewHistogram returns a histogram with the given number of zeroed
// height-score bins per offset.
func NewHistogram(bins int) *Histogram {
	h := &Histogram{}
	for d := range h.offsets {
		h.offsets[d] = make([]BinCounts, bins)
	}
	return h
}

// NumBins returns the number of height-score bins per offset.
func (h *Histogram) NumBins() int {
	return len(h.offsets[0])
}

// Offset returns the height-score-binned counts for offset d, which must lie
// in [MinOffset, MaxOffset].
func (h *Histogram) Offset(d int) []BinCounts {
	return h.offsets[d-MinOffset]
}

// heightScoreBin maps a combined height score onto [0, bins-1].  The score is
// log-scaled, normalized by the theoretical ceiling and rounded half-up.  A
// zero combined score (height absent from the frequency table) and any other
// out-of-range value clamp to the boundary bins.
func heightScoreBin(combined, maxCombined float64, bins int) int {
	v := math.Log10(combined) / maxCombined * float64(bins-1)
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= float64(bins-1) {
		return bins - 1
	}
	return int(v + 0.5)
}

// GroupStacks scans every plus-strand stack against all candidate
// opposite-strand offsets and builds the evidence histogram.
//
// For each plus-strand position, the minus strand is probed at all offsets in
// [MinOffset, MaxOffset].  The mean stack height over the window (misses
// counting as zero) and the window maximum are computed first; positions whose
// window is entirely empty are skipped.  Each hit then contributes one unit of
// evidence to its offset's histogram: an exact, uridine-resolved count at the
// ping-pong offset, a prior-weighted split across the four uridine cells at
// background offsets.
func GroupStacks(g *GenomeCounts, scores HeightScoreMap) *Histogram {
	hist := NewHistogram(HeightScoreBins)
	maxCombined := scores.maxCombinedScore()
	for refID, plusContig := range g[StrandPlus] {
		minusContig, ok := g[StrandMinus][refID]
		if !ok {
			continue
		}
		for pos, plus := range plusContig {
			var window [nOffsets]*Position
			meanHeight := 0.0
			maxHeight := 0.0
			for d := MinOffset; d <= MaxOffset; d++ {
				minus, ok := minusContig[pos+d]
				if !ok {
					continue
				}
				meanHeight += minus.Reads
				if minus.Reads > maxHeight {
					maxHeight = minus.Reads
				}
				window[d-MinOffset] = minus
			}
			meanHeight /= nOffsets
			if maxHeight <= 0 {
				continue
			}

			plusScore := scores.scoreOf(plus.Reads)
			for d := MinOffset; d <= MaxOffset; d++ {
				minus := window[d-MinOffset]
				if minus == nil {
					continue
				}
				combined := plusScore * scores.scoreOf(minus.Reads)
				bin := heightScoreBin(combined, maxCombined, hist.NumBins())

				// How far this stack rises above the rest of the window,
				// with its own contribution to the mean backed out,
				// normalized by the window peak.
				localScore := (minus.Reads - (meanHeight - minus.Reads/nOffsets)) / maxHeight
				local := IsAboveCoverage
				if localScore < localHeightThreshold {
					local = IsBelowCoverage
				}

				cell := &hist.offsets[d-MinOffset][bin]
				if d == PingPongOffset {
					uPlus := IsNotUridine
					if plus.UAt5PrimeEnd {
						uPlus = IsUridine
					}
					uMinus := IsNotUridine
					if minus.UAt5PrimeEnd {
						uMinus = IsUridine
					}
					cell[uPlus][uMinus][local]++
				} else {
					const p = uridineProbability
					cell[IsUridine][IsUridine][local] += p * p
					cell[IsNotUridine][IsUridine][local] += (1 - p) * p
					cell[IsUridine][IsNotUridine][local] += p * (1 - p)
					cell[IsNotUridine][IsNotUridine][local] += (1 - p) * (1 - p)
				}
			}
		}
	}
	return hist
}

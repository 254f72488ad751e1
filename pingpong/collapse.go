package pingpong

// Collapse merges consecutive height-score bins, left to right, until every
// cell of every background offset in the merged bin is populated, then starts
// the next output bin.  The ping-pong offset's cells never block merging: they
// are the quantity under test, not the reference.  The result has the same
// offset and cell extents but variable-width height-score bins, narrow where
// evidence is dense and wide where it is sparse; the input may end before the
// last output bin fills, in which case that bin keeps whatever it absorbed.
//
// Collapsing its own output again produces an identical histogram.
func (h *Histogram) Collapse() *Histogram {
	nBins := h.NumBins()
	out := NewHistogram(0)
	bin := 0
	for bin < nBins {
		var merged [nOffsets]BinCounts
		for {
			emptyBins := 0
			for d := 0; d < nOffsets; d++ {
				src := &h.offsets[d][bin]
				dst := &merged[d]
				for i := range dst {
					for j := range dst[i] {
						for k := range dst[i][j] {
							dst[i][j][k] += src[i][j][k]
							if d+MinOffset != PingPongOffset && dst[i][j][k] <= 0 {
								emptyBins++
							}
						}
					}
				}
			}
			bin++
			if emptyBins == 0 || bin >= nBins {
				break
			}
		}
		for d := 0; d < nOffsets; d++ {
			out.offsets[d] = append(out.offsets[d], merged[d])
		}
	}
	return out
}

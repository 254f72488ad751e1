// Package pingpong detects ping-pong signatures in small-RNA sequencing data:
// genomic loci where stacks of aligned reads on opposite strands have 5' ends
// exactly 10 nt apart, the footprint of the piRNA ping-pong amplification
// cycle.
//
// The pipeline runs four stages strictly in sequence:
//
//  1. accumulate per-position, per-strand read counts into sparse genome-wide
//     stacks (GenomeCounts),
//  2. tally stack heights into a frequency table used as a rarity score
//     (HeightScoreMap),
//  3. scan every plus-strand stack against candidate opposite-strand offsets
//     into a 5-dimensional evidence histogram (GroupStacks),
//  4. adaptively merge sparse height-score bins so the ping-pong offset can
//     later be compared bin-by-bin against the background offsets (Collapse).
//
// No stage mutates its predecessor's output.
package pingpong

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BioWu/pingpongpro/encoding/xam"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
)

// Opts configures a ping-pong run.
type Opts struct {
	// MinReadLength and MaxReadLength bound the read lengths (inclusive) that
	// contribute to stacks.
	MinReadLength int
	MaxReadLength int
	// MultiHits selects how multi-mapping reads are counted.
	MultiHits MultiHitPolicy
	// OutDir is the directory output files are written to; empty means the
	// working directory.
	OutDir string
	// Plot generates R plots of the background noise estimation.  Requires
	// Rscript on the PATH; plot scripts are written regardless.
	Plot bool
}

// DefaultOpts mirrors the command-line defaults.
var DefaultOpts = Opts{
	MinReadLength: 1,
	MaxReadLength: 1000,
	MultiHits:     MultiHitsWeighted,
}

// histogramFileName is the collapsed-histogram TSV written into OutDir.
const histogramFileName = "grouped-stack-counts.tsv"

func validateOpts(opts *Opts) error {
	if opts.MinReadLength < 1 {
		return fmt.Errorf("pingpong.Run: minimum read length (%d) must be at least 1", opts.MinReadLength)
	}
	if opts.MaxReadLength < opts.MinReadLength {
		return fmt.Errorf("pingpong.Run: maximum read length (%d) must not be lower than minimum read length (%d)", opts.MaxReadLength, opts.MinReadLength)
	}
	switch opts.MultiHits {
	case MultiHitsWeighted, MultiHitsDiscard, MultiHitsUnique:
	default:
		return fmt.Errorf("pingpong.Run: invalid multi-hit policy %d", int(opts.MultiHits))
	}
	return nil
}

func headerRefNames(header *sam.Header) []string {
	refs := header.Refs()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name())
	}
	return names
}

func sameRefNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// accumulateInputs reads every input in parallel, each job owning a private
// GenomeCounts, and merges the results in input order after verifying that
// all files report an identical, order-preserving set of contig names.
func accumulateInputs(ctx context.Context, inputPaths []string, opts *Opts) (*GenomeCounts, error) {
	perFile := make([]*GenomeCounts, len(inputPaths))
	refNames := make([][]string, len(inputPaths))
	err := traverse.Each(len(inputPaths), func(i int) (err error) {
		r, err := xam.Open(ctx, inputPaths[i])
		if err != nil {
			return err
		}
		defer func() {
			if e := r.Close(ctx); e != nil && err == nil {
				err = e
			}
		}()
		refNames[i] = headerRefNames(r.Header())
		counts := NewGenomeCounts()
		if err = counts.AccumulateReads(r, opts.MinReadLength, opts.MaxReadLength, opts.MultiHits); err != nil {
			return err
		}
		perFile[i] = counts
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(refNames); i++ {
		if !sameRefNames(refNames[0], refNames[i]) {
			return nil, fmt.Errorf("pingpong.Run: @SQ header lines of %s differ from those of previous input files", inputPaths[i])
		}
	}
	counts := perFile[0]
	for _, c := range perFile[1:] {
		counts.Merge(c)
	}
	return counts, nil
}

// Run executes the full pipeline over the given SAM/BAM inputs and returns the
// collapsed evidence histogram.  It also writes the histogram as a TSV into
// opts.OutDir and, when opts.Plot is set, renders the diagnostic R plots.
//
// All input decode errors, header mismatches between inputs and configuration
// violations are fatal: Run returns the error and produces no output.
func Run(ctx context.Context, inputPaths []string, opts *Opts) (*Histogram, error) {
	if err := validateOpts(opts); err != nil {
		return nil, err
	}
	if len(inputPaths) == 0 {
		inputPaths = []string{"-"}
	}
	if opts.OutDir != "" && !strings.Contains(opts.OutDir, "://") {
		if err := os.MkdirAll(opts.OutDir, 0777); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	counts, err := accumulateInputs(ctx, inputPaths, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("pingpong.Run: counted reads in %d file(s) (%d covered positions, %s)",
		len(inputPaths), counts.NumPositions(), time.Since(start).Round(time.Millisecond))

	start = time.Now()
	scores := TallyStackHeights(counts)
	if len(scores) == 0 {
		return nil, fmt.Errorf("pingpong.Run: no stacks accumulated from input")
	}
	log.Printf("pingpong.Run: %d distinct stack heights", len(scores))

	hist := GroupStacks(counts, scores)
	log.Printf("pingpong.Run: binned stacks (%s)", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	collapsed := hist.Collapse()
	log.Printf("pingpong.Run: collapsed %d height-score bins into %d (%s)",
		hist.NumBins(), collapsed.NumBins(), time.Since(start).Round(time.Millisecond))

	histPath := histogramFileName
	if opts.OutDir != "" {
		histPath = file.Join(opts.OutDir, histogramFileName)
	}
	if err := WriteHistogramTSV(ctx, histPath, collapsed); err != nil {
		return nil, err
	}
	if opts.Plot {
		if err := PlotHistograms(opts.OutDir, collapsed); err != nil {
			return nil, err
		}
	}
	return collapsed, nil
}

package pingpong

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// Strand indexes for GenomeCounts.
const (
	StrandPlus = iota
	StrandMinus
	nStrand
)

// Position holds the per-locus, per-strand stats accumulated from the
// alignment stream:
//   - Reads: the (multiplicity-weighted) number of reads whose 5' end lies at
//     this position.  This is the "stack height".
//   - UAt5PrimeEnd: whether any contributing read had uridine at its 5' end.
//     Sticky once set.
type Position struct {
	Reads        float64
	UAt5PrimeEnd bool
}

// ContigCounts maps a 0-based genomic position to its stack.  Absence of a key
// means zero coverage.
type ContigCounts map[int]*Position

// StrandCounts maps a reference ID to the per-position stacks of one strand.
type StrandCounts map[int]ContigCounts

// GenomeCounts is the sparse coverage model for the whole genome, one
// StrandCounts per strand.  It is built once by AccumulateReads and read-only
// afterwards.
type GenomeCounts [nStrand]StrandCounts

// NewGenomeCounts returns an empty coverage model.
func NewGenomeCounts() *GenomeCounts {
	var g GenomeCounts
	for strand := range g {
		g[strand] = make(StrandCounts)
	}
	return &g
}

// position returns the stack at (strand, refID, pos), creating it if absent.
func (g *GenomeCounts) position(strand, refID, pos int) *Position {
	contig, ok := g[strand][refID]
	if !ok {
		contig = make(ContigCounts)
		g[strand][refID] = contig
	}
	p, ok := contig[pos]
	if !ok {
		p = &Position{}
		contig[pos] = p
	}
	return p
}

// NumPositions returns the number of covered positions across both strands and
// all contigs.
func (g *GenomeCounts) NumPositions() int {
	n := 0
	for strand := range g {
		for _, contig := range g[strand] {
			n += len(contig)
		}
	}
	return n
}

// Merge folds other into g: per-position Reads are summed and UAt5PrimeEnd is
// OR-combined.  Both operations are commutative and associative, so merge
// order does not matter as long as reference IDs agree across inputs (see
// Run's header check).
func (g *GenomeCounts) Merge(other *GenomeCounts) {
	for strand := range other {
		for refID, contig := range other[strand] {
			for pos, p := range contig {
				dst := g.position(strand, refID, pos)
				dst.Reads += p.Reads
				dst.UAt5PrimeEnd = dst.UAt5PrimeEnd || p.UAt5PrimeEnd
			}
		}
	}
}

// MultiHitPolicy selects how multi-mapping reads (NH aux tag > 1) contribute
// to stack heights.
type MultiHitPolicy int

const (
	// MultiHitsWeighted counts each alignment of a multi-mapper as 1/NH reads.
	MultiHitsWeighted MultiHitPolicy = iota
	// MultiHitsDiscard ignores all alignments of multi-mappers.
	MultiHitsDiscard
	// MultiHitsUnique counts every alignment as a full read.
	MultiHitsUnique
)

// ParseMultiHitPolicy translates the command-line spelling of a policy.
func ParseMultiHitPolicy(s string) (MultiHitPolicy, error) {
	switch s {
	case "weighted":
		return MultiHitsWeighted, nil
	case "discard":
		return MultiHitsDiscard, nil
	case "unique":
		return MultiHitsUnique, nil
	}
	return 0, fmt.Errorf("pingpong.ParseMultiHitPolicy: unrecognized policy %q (want 'weighted', 'discard' or 'unique')", s)
}

// RecordIterator yields a sequence of alignment records.  Scan advances to the
// next record and reports whether one is available; Err reports the first
// decoding failure, which is fatal for the whole run.
type RecordIterator interface {
	Scan() bool
	Record() *sam.Record
	Err() error
}

var nhTag = sam.NewTag("NH")

// multiplicity returns the value of the NH aux tag, defaulting to 1 when the
// tag is absent.
func multiplicity(samr *sam.Record) int {
	aux := samr.AuxFields.Get(nhTag)
	if aux == nil {
		return 1
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v)
	case uint8:
		return int(v)
	case int16:
		return int(v)
	case uint16:
		return int(v)
	case int32:
		return int(v)
	case uint32:
		return int(v)
	case int:
		return v
	}
	return 1
}

// .bam seq nibble values of the two bases the 5'-uridine test cares about.
// Minus-strand reads are stored reverse-complemented, so uridine at their 5'
// end appears as adenine at the last aligned base.
const (
	nibbleA = 0x1
	nibbleT = 0x8
)

// seqNibble returns the .bam 4-bit encoding of base i of a packed sequence.
func seqNibble(seq sam.Seq, i int) byte {
	d := byte(seq.Seq[i>>1])
	if i&1 == 0 {
		return d >> 4
	}
	return d & 0x0f
}

// readWeight determines how much a record adds to its stack height under the
// given policy.  Records with weight <= 0 must leave no trace in the counts.
func readWeight(samr *sam.Record, policy MultiHitPolicy) float64 {
	if policy == MultiHitsUnique {
		return 1
	}
	n := multiplicity(samr)
	if policy == MultiHitsWeighted {
		return 1 / float64(n)
	}
	// MultiHitsDiscard
	if n == 1 {
		return 1
	}
	return 0
}

// AccumulateReads consumes every record from iter and folds it into g.
//
// Unmapped records and records whose sequence length falls outside
// [minReadLen, maxReadLen] are skipped.  For the rest, the record's weighted
// count is added to the stack at its 5' genomic position: the alignment start
// on the plus strand, the alignment start plus the reference-consuming CIGAR
// length on the minus strand.  The stack's UAt5PrimeEnd flag is raised when
// the first unclipped base is T (plus strand) or the last unclipped base is A
// (minus strand).
func (g *GenomeCounts) AccumulateReads(iter RecordIterator, minReadLen, maxReadLen int, policy MultiHitPolicy) error {
	for iter.Scan() {
		samr := iter.Record()
		if samr.Flags&sam.Unmapped != 0 || samr.Ref == nil || samr.Pos < 0 {
			continue
		}
		readLen := samr.Seq.Length
		if readLen < minReadLen || readLen > maxReadLen {
			continue
		}
		weight := readWeight(samr, policy)
		if weight <= 0 {
			continue
		}

		var p *Position
		cigar := samr.Cigar
		if samr.Flags&sam.Reverse != 0 {
			span, _ := cigar.Lengths()
			p = g.position(StrandMinus, samr.Ref.ID(), samr.Pos+span)
			clipped := 0
			if n := len(cigar); n > 1 && cigar[n-1].Type() == sam.CigarSoftClipped {
				clipped = cigar[n-1].Len()
			}
			if i := readLen - clipped - 1; i >= 0 && i < readLen && seqNibble(samr.Seq, i) == nibbleA {
				p.UAt5PrimeEnd = true
			}
		} else {
			p = g.position(StrandPlus, samr.Ref.ID(), samr.Pos)
			clipped := 0
			if len(cigar) > 0 && cigar[0].Type() == sam.CigarSoftClipped {
				clipped = cigar[0].Len()
			}
			if clipped < readLen && seqNibble(samr.Seq, clipped) == nibbleT {
				p.UAt5PrimeEnd = true
			}
		}
		p.Reads += weight
	}
	return iter.Err()
}

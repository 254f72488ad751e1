package main

/*
pingpongpro scans piRNA-seq alignments for signs of ping-pong cycle activity.
The ping-pong cycle produces piRNA molecules with complementary 5' ends; they
appear as stacks of aligned reads whose 5' ends overlap with the 5' ends of
reads on the opposite strand by exactly 10 bases.  The tool accumulates
genome-wide read stacks from one or more SAM/BAM inputs and writes a collapsed
evidence histogram comparing the 10 nt offset against a band of arbitrary
background offsets.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/BioWu/pingpongpro/pingpong"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	minReadLength = flag.Int("min-read-length", pingpong.DefaultOpts.MinReadLength, "Ignore reads in the input that are shorter than the specified length")
	maxReadLength = flag.Int("max-read-length", pingpong.DefaultOpts.MaxReadLength, "Ignore reads in the input that are longer than the specified length")
	multiHits     = flag.String("multihits", "weighted", "How to count multi-mapping reads; one of 'weighted', 'discard', 'unique'")
	outDir        = flag.String("out", "", "Write output to the specified directory; default is the working directory")
	plot          = flag.Bool("plot", false, "Generate R plots of the background noise estimation; requires Rscript")
)

func pingpongproUsage() {
	fmt.Printf("Usage: %s [OPTIONS] [input.{b,s}am ...]\n", os.Args[0])
	fmt.Printf("Reads SAM from stdin when no inputs are given or an input is '-'.\n")
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = pingpongproUsage
	shutdown := grail.Init()
	defer shutdown()

	policy, err := pingpong.ParseMultiHitPolicy(*multiHits)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := pingpong.Opts{
		MinReadLength: *minReadLength,
		MaxReadLength: *maxReadLength,
		MultiHits:     policy,
		OutDir:        *outDir,
		Plot:          *plot,
	}
	ctx := vcontext.Background()
	if _, err := pingpong.Run(ctx, flag.Args(), &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}

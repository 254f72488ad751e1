package pingpong

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// uridineLabels/localLabels translate cell indexes for TSV output.
var (
	uridineLabels = [...]string{"uridine", "not_uridine"}
	localLabels   = [...]string{"above_coverage", "below_coverage"}
)

// WriteHistogramTSV writes hist as a TSV: one row per (height-score bin,
// plus-strand uridine status, minus-strand uridine status, local height
// status), with one count column per offset.  The output is gzipped when path
// ends in ".gz".  path may be anything grailbio/base/file understands.
func WriteHistogramTSV(ctx context.Context, path string, hist *Histogram) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var w io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = gz
	}
	bw := bufio.NewWriter(w)

	bw.WriteString("bin\turidine_plus\turidine_minus\tlocal_height")
	for d := MinOffset; d <= MaxOffset; d++ {
		fmt.Fprintf(bw, "\toverlap_%d", d)
	}
	bw.WriteByte('\n')

	for bin := 0; bin < hist.NumBins(); bin++ {
		for i := range uridineLabels {
			for j := range uridineLabels {
				for k := range localLabels {
					fmt.Fprintf(bw, "%d\t%s\t%s\t%s", bin, uridineLabels[i], uridineLabels[j], localLabels[k])
					for d := MinOffset; d <= MaxOffset; d++ {
						bw.WriteByte('\t')
						bw.WriteString(strconv.FormatFloat(hist.Offset(d)[bin][i][j][k], 'g', -1, 64))
					}
					bw.WriteByte('\n')
				}
			}
		}
	}
	return bw.Flush()
}

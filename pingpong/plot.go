package pingpong

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/log"
	"v.io/x/lib/envvar"
	"v.io/x/lib/lookpath"
)

// histDimension selects which histogram dimension a diagnostic plot sums over.
type histDimension int

const (
	dimHeightScore histDimension = iota
	dimUridinePlus
	dimUridineMinus
	dimLocalHeight
)

// marginal sums the histogram over all dimensions except dim, producing one
// bar series per offset.
func (h *Histogram) marginal(dim histDimension) [][]float64 {
	bars := 2
	if dim == dimHeightScore {
		bars = h.NumBins()
	}
	m := make([][]float64, nOffsets)
	for d := range m {
		m[d] = make([]float64, bars)
		for bin := range h.offsets[d] {
			cell := &h.offsets[d][bin]
			for i := range cell {
				for j := range cell[i] {
					for k := range cell[i][j] {
						v := cell[i][j][k]
						switch dim {
						case dimHeightScore:
							m[d][bin] += v
						case dimUridinePlus:
							m[d][i] += v
						case dimUridineMinus:
							m[d][j] += v
						case dimLocalHeight:
							m[d][k] += v
						}
					}
				}
			}
		}
	}
	return m
}

// PlotHistograms writes one R script per histogram dimension into outDir and
// runs each with Rscript to render a PNG comparing the ping-pong offset
// against the background offsets.  A missing Rscript is only a warning: the
// scripts are still written so they can be run elsewhere.
func PlotHistograms(outDir string, hist *Histogram) error {
	plots := []struct {
		dim      histDimension
		title    string
		labels   []string
		logScale bool
	}{
		{dimHeightScore, "height score", nil, true},
		{dimUridinePlus, "base content at 5-prime end on forward strand", []string{"uridine", "not uridine"}, false},
		{dimUridineMinus, "base content at 5-prime end on reverse strand", []string{"uridine", "not uridine"}, false},
		{dimLocalHeight, "local height score", []string{"above coverage", "below coverage"}, false},
	}
	rscript, lookErr := lookpath.Look(envvar.SliceToMap(os.Environ()), "Rscript")
	if lookErr != nil {
		log.Error.Printf("PlotHistograms: Rscript not found on PATH; writing plot scripts without running them")
	}
	runDir := outDir
	if runDir == "" {
		runDir = "."
	}
	for _, p := range plots {
		name := strings.ReplaceAll(p.title, " ", "_")
		scriptName := name + ".R"
		if err := writePlotScript(filepath.Join(runDir, scriptName), name, hist.marginal(p.dim), p.title, p.labels, p.logScale); err != nil {
			return err
		}
		if lookErr != nil {
			continue
		}
		cmd := exec.Command(rscript, scriptName)
		cmd.Dir = runDir
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("pingpong.PlotHistograms: Rscript %s: %v: %s", scriptName, err, out)
		}
	}
	return nil
}

// writePlotScript renders an R script that draws the background offsets as
// translucent bars and the ping-pong offset as a red line.
func writePlotScript(path, name string, histograms [][]float64, title string, xAxisLabels []string, logScale bool) error {
	var buf bytes.Buffer
	nBars := len(histograms[0])

	buf.WriteString("histograms <- data.frame(")
	for d := MinOffset; d <= MaxOffset; d++ {
		fmt.Fprintf(&buf, "\noverlap_%d=c(", d)
		for bar, v := range histograms[d-MinOffset] {
			if bar%10 == 0 {
				// R cannot parse very long lines.
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "%g", v)
			if bar < nBars-1 {
				buf.WriteString(", ")
			}
		}
		buf.WriteString(")\n")
		if d < MaxOffset {
			buf.WriteString(", ")
		}
	}
	buf.WriteString(")\n")

	buf.WriteString("options(bitmapType='cairo')\n")
	fmt.Fprintf(&buf, "png('%s.png')\n", name)
	if logScale {
		buf.WriteString("histograms <- log10(histograms)\n")
		fmt.Fprintf(&buf, "plot(0, 0, xlim=c(0,%d), type='n', xlab='%s', ylim=c(0,max(histograms,0)), ylab='log10(frequency)', xaxt='n')\n", nBars, title)
	} else {
		fmt.Fprintf(&buf, "plot(0, 0, xlim=c(0,%d), type='n', xlab='%s', ylim=c(0,max(histograms)), ylab='frequency', xaxt='n')\n", nBars, title)
	}

	if len(xAxisLabels) == 0 {
		// Auto-generate tick positions from quantiles.
		fmt.Fprintf(&buf, "axis(1, at=quantile(c(0,%d), probs = seq(0, 1, 0.2))+0.5, labels=quantile(c(0,%d), probs = seq(0, 1, 0.2)))\n", nBars, nBars)
	} else {
		fmt.Fprintf(&buf, "axis(1, at=0:%d+0.5, labels=c(", len(xAxisLabels)-1)
		for i, label := range xAxisLabels {
			if i > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(&buf, "'%s'", label)
		}
		buf.WriteString("))\n")
	}

	fmt.Fprintf(&buf, "for (overlap in %d:%d)\n", MinOffset, MaxOffset)
	fmt.Fprintf(&buf, "	if (overlap != %d)\n", PingPongOffset)
	buf.WriteString("		barplot(histograms[,paste('overlap_', overlap, sep='')], col=rgb(0,0,0,alpha=0.1), border=NA, axes=FALSE, add=TRUE, width=1, space=0)\n")
	fmt.Fprintf(&buf, "for (bin in 1:%d)\n", nBars)
	fmt.Fprintf(&buf, "	lines(c(bin-1, bin), c(histograms[bin, 'overlap_%d'], histograms[bin, 'overlap_%d']), type='l', col='red', lwd=2)\n", PingPongOffset, PingPongOffset)
	fmt.Fprintf(&buf, "legend(x='top', c('%d nt overlap', 'arbitrary overlaps'), col=c('red', 'black'), ncol=2, lwd=c(3,3), xpd=TRUE, inset=-0.1)\n", PingPongOffset)
	buf.WriteString("garbage <- dev.off()\n")

	return os.WriteFile(path, buf.Bytes(), 0666)
}

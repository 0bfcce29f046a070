// Package report prints the island census and filter outcome for humans.
package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"voxelislands/pkg/islands"
)

// SuggestFraction is the share of islands the suggested threshold aims to
// keep. The largest size bin is always kept whole, so it may keep more.
const SuggestFraction = 0.1

// Text writes a plain text report to W. Write errors are ignored.
type Text struct {
	W io.Writer

	// Suggest adds a line with the threshold that keeps roughly the largest
	// SuggestFraction of the islands, and how many it keeps.
	Suggest bool
}

// NewText returns a Text reporter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{W: w, Suggest: true}
}

func (t *Text) ComponentsFound(n int) {
	fmt.Fprintf(t.W, "%d islands found\n", n)
}

// Histogram prints one line per size bin in ascending size, then the
// distribution statistics.
func (t *Text) Histogram(h islands.Histogram, stats islands.Stats) {
	for _, b := range h.Bins() {
		fmt.Fprintf(t.W, "Size:\t%d\t Count:\t%d\n", b.Size, b.Count)
	}
	if stats.Count == 0 {
		return
	}
	fmt.Fprintf(t.W, "Sizes: min %s, max %s, mean %.1f, median %.1f, stddev %.1f (%s voxels total)\n",
		humanize.Comma(int64(stats.Min)), humanize.Comma(int64(stats.Max)),
		stats.Mean, stats.Median, stats.StdDev, humanize.Comma(int64(stats.Voxels)))
	if t.Suggest {
		threshold := h.Suggest(SuggestFraction)
		fmt.Fprintf(t.W, "Suggested threshold: %s (keeps %s of %s islands)\n",
			humanize.Comma(int64(threshold)), humanize.Comma(int64(h.KeptAt(threshold))),
			humanize.Comma(int64(h.Total())))
	}
}

func (t *Text) Filtered(res islands.Result) {
	fmt.Fprintf(t.W, "Finished. %s islands retained, %s removed (%s voxels cleared).\n",
		humanize.Comma(int64(res.Retained)), humanize.Comma(int64(res.Removed)),
		humanize.Comma(int64(res.ClearedVoxels)))
}

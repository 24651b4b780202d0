package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	bd "github.com/isseis/go-huaban-board-downloader/board_downloader"
)

// consoleSink prints progress as whole percentages, skipping events that
// would repeat the previous line.
type consoleSink struct {
	w           io.Writer
	lastPercent int
	lastLabel   string
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w, lastPercent: -1}
}

func (c *consoleSink) OnProgress(fraction float64, label string) {
	percent := int(fraction * 100)
	if percent == c.lastPercent && label == c.lastLabel {
		return
	}
	c.lastPercent, c.lastLabel = percent, label
	fmt.Fprintf(c.w, "[%3d%%] %s\n", percent, label)
}

func (c *consoleSink) OnComplete(s bd.Summary) {
	fmt.Fprintf(c.w, "%s (%s written, %s skipped, %d failed, %s)\n",
		s, humanize.Bytes(uint64(s.Stats.Bytes)), humanize.Comma(int64(s.Stats.Skipped)),
		s.Stats.Failed, s.Duration.Round(time.Millisecond))
	if s.State == bd.StateFailed {
		fmt.Fprintln(c.w, "Download interrupted; run the same command again to resume.")
	}
}

package board_downloader

import (
	"fmt"
	"sync/atomic"
)

// DownloadStats holds the statistics of a download run
type DownloadStats struct {
	Downloaded int   // Number of assets fetched and written
	Skipped    int   // Number of assets already present locally
	Failed     int   // Number of assets that could not be stored
	Bytes      int64 // Bytes written to disk
}

// String returns a string representation of the download statistics
func (s DownloadStats) String() string {
	return fmt.Sprintf("downloaded=%d, skipped=%d, failed=%d, bytes=%d",
		s.Downloaded, s.Skipped, s.Failed, s.Bytes)
}

// Succeeded returns the number of pins available locally.
func (s DownloadStats) Succeeded() int {
	return s.Downloaded + s.Skipped
}

// statsCounter accumulates DownloadStats from concurrent workers.
type statsCounter struct {
	downloaded atomic.Int32
	skipped    atomic.Int32
	failed     atomic.Int32
	bytes      atomic.Int64
}

func (c *statsCounter) record(o Outcome) {
	switch o.Status {
	case OutcomeDownloaded:
		c.downloaded.Add(1)
		c.bytes.Add(o.Bytes)
	case OutcomeSkipped:
		c.skipped.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	}
}

func (c *statsCounter) snapshot() DownloadStats {
	return DownloadStats{
		Downloaded: int(c.downloaded.Load()),
		Skipped:    int(c.skipped.Load()),
		Failed:     int(c.failed.Load()),
		Bytes:      c.bytes.Load(),
	}
}

package board_downloader

import (
	"fmt"
	"time"

	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

// OutcomeStatus tags the variant of an Outcome.
type OutcomeStatus string

const (
	// OutcomeDownloaded means the asset was fetched and written.
	OutcomeDownloaded OutcomeStatus = "downloaded"
	// OutcomeSkipped means the file already existed (or the run is a dry run).
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed means the asset could not be stored; Err holds the reason.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the result of storing one pin. Downloaded and Skipped are both
// successes carrying the local path.
type Outcome struct {
	Status OutcomeStatus
	Path   string
	Bytes  int64
	Err    error
}

// Succeeded reports whether the pin is available locally.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeDownloaded || o.Status == OutcomeSkipped
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Path)
}

// ItemResult pairs a pin with its outcome.
type ItemResult struct {
	Pin     hb.Pin
	Outcome Outcome
}

// Result aggregates a whole run. Items follow the order in which pins were
// listed, regardless of the order downloads completed in.
type Result struct {
	RunID     string
	Board     *hb.Board
	Items     []ItemResult
	Succeeded int
	Total     int
	TargetDir string
	Stats     DownloadStats
	State     RunState
	Duration  time.Duration
}

// Failed returns the items whose asset could not be stored.
func (r *Result) Failed() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if !item.Outcome.Succeeded() {
			failed = append(failed, item)
		}
	}
	return failed
}

// Summary builds the terminal summary passed to the ProgressSink.
func (r *Result) Summary() Summary {
	title := ""
	if r.Board != nil {
		title = r.Board.Title
	}
	return Summary{
		BoardTitle: title,
		Succeeded:  r.Succeeded,
		Total:      r.Total,
		TargetDir:  r.TargetDir,
		Stats:      r.Stats,
		State:      r.State,
		Duration:   r.Duration,
	}
}

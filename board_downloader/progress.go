package board_downloader

import (
	"fmt"
	"sync"
	"time"
)

// listingShare is the part of the progress range reserved for fetching the
// board metadata and listing its pins.
const listingShare = 0.1

// ProgressSink receives progress updates of a run. Calls are serialized by
// the Downloader, so implementations need no locking of their own.
type ProgressSink interface {
	// OnProgress reports the completed fraction in [0, 1] and a short label.
	OnProgress(fraction float64, label string)
	// OnComplete is called once after the last progress event of a run that
	// reached the download stage.
	OnComplete(summary Summary)
}

// StateObserver may optionally be implemented by a ProgressSink to follow
// the state machine of a run.
type StateObserver interface {
	OnStateChange(from, to RunState)
}

// Summary is the terminal report of a run.
type Summary struct {
	BoardTitle string
	Succeeded  int
	Total      int
	TargetDir  string
	Stats      DownloadStats
	State      RunState
	Duration   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("board [%s]: %d/%d downloaded to %s", s.BoardTitle, s.Succeeded, s.Total, s.TargetDir)
}

// NopProgressSink discards all events.
type NopProgressSink struct{}

func (NopProgressSink) OnProgress(float64, string) {}
func (NopProgressSink) OnComplete(Summary)         {}

// progressTracker serializes events to a sink and keeps the reported
// fraction from ever going backwards.
type progressTracker struct {
	mu        sync.Mutex
	sink      ProgressSink
	last      float64
	total     int
	completed int
}

func newProgressTracker(sink ProgressSink) *progressTracker {
	return &progressTracker{sink: sink}
}

func (p *progressTracker) emit(fraction float64, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(fraction, label)
}

func (p *progressTracker) emitLocked(fraction float64, label string) {
	if fraction < p.last {
		fraction = p.last
	}
	if fraction > 1 {
		fraction = 1
	}
	p.last = fraction
	p.sink.OnProgress(fraction, label)
}

// start sets the number of items of the download stage.
func (p *progressTracker) start(total int) {
	p.mu.Lock()
	p.total = total
	p.completed = 0
	p.mu.Unlock()
}

// itemDone counts one finished item and reports the new fraction.
func (p *progressTracker) itemDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	fraction := listingShare + (1-listingShare)*float64(p.completed)/float64(p.total)
	p.emitLocked(fraction, fmt.Sprintf("Downloading %d/%d", p.completed, p.total))
}

func (p *progressTracker) complete(summary Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(1, "Download complete")
	p.sink.OnComplete(summary)
}

// finish reports the summary of an interrupted run without claiming completion.
func (p *progressTracker) finish(summary Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink.OnComplete(summary)
}

func (p *progressTracker) stateChanged(from, to RunState) {
	obs, ok := p.sink.(StateObserver)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	obs.OnStateChange(from, to)
}

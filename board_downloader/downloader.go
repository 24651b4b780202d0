package board_downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/isseis/go-huaban-board-downloader/filelock"
	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

const (
	// DefaultWorkers keeps downloads strictly sequential.
	DefaultWorkers = 1
	// MaxWorkers bounds the download pool.
	MaxWorkers = 8
	// DefaultRateLimit is the number of asset requests allowed per second.
	DefaultRateLimit = 10
	// DefaultBaseDir is the parent of per-board directories when no target is given.
	DefaultBaseDir = "huaban"
)

// Client abstracts the API session for the Downloader and testability.
type Client interface {
	AssetFetcher

	// Board retrieves the board metadata.
	Board(ctx context.Context, id hb.BoardID) (*hb.Board, error)

	// AllPins lists every pin of the board in page-arrival order.
	AllPins(ctx context.Context, id hb.BoardID) ([]hb.Pin, error)
}

// MetricsRecorder receives per-item and per-run measurements.
type MetricsRecorder interface {
	ObserveItem(outcome string, bytes int64, elapsed time.Duration)
	ObserveRun(state string, listed int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveItem(string, int64, time.Duration) {}
func (nopMetrics) ObserveRun(string, int)                   {}

// Downloader fetches a board and stores the assets of all its pins.
type Downloader struct {
	client  Client
	fs      FileSystemOperations
	store   *AssetStore
	logger  Logger
	sink    ProgressSink
	metrics MetricsRecorder
	limiter *rate.Limiter
	workers int
	baseDir string

	// dryRun lists the board without writing anything. Immutable after construction.
	dryRun bool

	// forceDownload re-downloads files even if they already exist.
	forceDownload bool
}

// DownloaderOption defines a function type to set options for Downloader.
type DownloaderOption func(*Downloader)

// WithLogger sets the logger for Downloader.
// If not set, a fallback logger printing to stdout is used.
func WithLogger(log Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = log
	}
}

// WithProgressSink sets the receiver of progress events.
func WithProgressSink(sink ProgressSink) DownloaderOption {
	return func(d *Downloader) {
		if sink != nil {
			d.sink = sink
		}
	}
}

// WithWorkers sets the number of concurrent downloads, clamped to [1, MaxWorkers].
func WithWorkers(n int) DownloaderOption {
	return func(d *Downloader) {
		d.workers = min(max(n, 1), MaxWorkers)
	}
}

// WithRateLimit paces asset requests to limit per second with the given burst.
// A non-positive limit disables pacing.
func WithRateLimit(limit float64, burst int) DownloaderOption {
	return func(d *Downloader) {
		if limit <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
	}
}

// WithBaseDir sets the parent of the default per-board target directory.
func WithBaseDir(dir string) DownloaderOption {
	return func(d *Downloader) {
		if dir != "" {
			d.baseDir = dir
		}
	}
}

// WithDryRun sets the dryRun option for Downloader.
func WithDryRun(dryRun bool) DownloaderOption {
	return func(d *Downloader) {
		d.dryRun = dryRun
	}
}

// WithForceDownload sets the forceDownload option for Downloader.
// When true, assets are fetched again even if their file exists.
func WithForceDownload(force bool) DownloaderOption {
	return func(d *Downloader) {
		d.forceDownload = force
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) DownloaderOption {
	return func(d *Downloader) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithFileSystem replaces the file system used to store assets.
func WithFileSystem(fs FileSystemOperations) DownloaderOption {
	return func(d *Downloader) {
		if fs != nil {
			d.fs = fs
		}
	}
}

// NewDownloader constructs a Downloader around an API client.
func NewDownloader(client Client, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:  client,
		fs:      &DefaultFileSystem{},
		sink:    NopProgressSink{},
		metrics: nopMetrics{},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		workers: DefaultWorkers,
		baseDir: DefaultBaseDir,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.store = NewAssetStore(client, d.fs)
	d.store.DryRun = d.dryRun
	d.store.ForceDownload = d.forceDownload
	d.store.Limiter = d.limiter
	return d
}

// IsDryRun returns true if the downloader is in dry-run mode.
func (d *Downloader) IsDryRun() bool {
	return d.dryRun
}

func (d *Downloader) getLogger() Logger {
	if d.logger != nil {
		return d.logger
	}
	return &fallbackLogger{}
}

// run holds the mutable state of one Run invocation.
type run struct {
	id       string
	boardID  hb.BoardID
	state    RunState
	progress *progressTracker
	stats    statsCounter
	log      Logger
	started  time.Time
}

func (r *run) transition(next RunState) {
	if !r.state.canTransition(next) {
		r.log.Warn("Ignoring invalid state transition", "run_id", r.id, "from", r.state, "to", next)
		return
	}
	prev := r.state
	r.state = next
	r.log.Debug("State changed", "run_id", r.id, "from", prev, "to", next)
	r.progress.stateChanged(prev, next)
}

// fail moves the run to Failed and returns err for convenience. listed is
// the number of pins listed so far, zero before the listing succeeded.
func (d *Downloader) fail(r *run, err error, listed int) error {
	r.transition(StateFailed)
	r.log.Error("Download failed", "run_id", r.id, "board_id", r.boardID, "error", err)
	d.metrics.ObserveRun(StateFailed.String(), listed)
	return err
}

// Run downloads every pin of a board into targetDir, which defaults to
// <base dir>/<board id> when empty.
//
// Failing to fetch the metadata or list the pins, an empty board, or a
// target directory locked by another process abort the run with a nil
// result. Failures of single pins are recorded in the result and never
// abort the run. If ctx is cancelled while pins remain to be started, no
// new pin is started and the partial result is returned together with the
// context error.
func (d *Downloader) Run(ctx context.Context, boardID hb.BoardID, targetDir string) (*Result, error) {
	r := &run{
		id:       uuid.NewString(),
		boardID:  boardID,
		state:    StateIdle,
		progress: newProgressTracker(d.sink),
		log:      d.getLogger(),
		started:  time.Now(),
	}
	r.log.Info("Download started", "run_id", r.id, "board_id", boardID, "dry_run", d.dryRun)

	r.transition(StateFetchingMetadata)
	r.progress.emit(0, "Fetching board info")
	board, err := d.client.Board(ctx, boardID)
	if err != nil {
		return nil, d.fail(r, fmt.Errorf("failed to fetch board %s: %w", boardID, err), 0)
	}
	r.log.Info("Board fetched", "run_id", r.id, "title", board.Title, "pin_count", board.PinCount, "owner", board.OwnerName)
	r.log.Debug("Board response", "run_id", r.id, "raw", string(board.Raw()))

	r.transition(StateListingItems)
	r.progress.emit(listingShare, "Listing pins")
	pins, err := d.client.AllPins(ctx, boardID)
	if err != nil {
		return nil, d.fail(r, fmt.Errorf("failed to list pins of board %s: %w", boardID, err), 0)
	}
	if len(pins) == 0 {
		return nil, d.fail(r, &EmptyCollectionError{BoardID: boardID}, 0)
	}
	if board.PinCount != len(pins) {
		r.log.Warn("Listed pin count differs from board metadata", "run_id", r.id, "listed", len(pins), "pin_count", board.PinCount)
	}

	if targetDir == "" {
		targetDir = filepath.Join(d.baseDir, string(boardID))
	}
	if !d.dryRun {
		unlock, err := d.lockTarget(targetDir)
		if err != nil {
			return nil, d.fail(r, err, len(pins))
		}
		defer unlock()
	}

	r.transition(StateDownloading)
	items, interrupted := d.downloadAll(ctx, r, pins, targetDir)

	stats := r.stats.snapshot()
	result := &Result{
		RunID:     r.id,
		Board:     board,
		Items:     items,
		Succeeded: stats.Succeeded(),
		Total:     len(pins),
		TargetDir: targetDir,
		Stats:     stats,
		Duration:  time.Since(r.started),
	}

	if err := interrupted; err != nil {
		r.transition(StateFailed)
		result.State = r.state
		r.log.Warn("Download interrupted", "run_id", r.id, "succeeded", result.Succeeded, "total", result.Total, "error", err)
		r.progress.finish(result.Summary())
		d.metrics.ObserveRun(result.State.String(), len(pins))
		return result, fmt.Errorf("download of board %s interrupted: %w", boardID, err)
	}

	r.transition(StateDone)
	result.State = r.state
	r.progress.complete(result.Summary())
	d.metrics.ObserveRun(result.State.String(), len(pins))
	r.log.Info("Download completed", "run_id", r.id, "target_dir", targetDir, "stats", stats.String(), "duration", result.Duration)
	return result, nil
}

// lockTarget creates the target directory and takes the cross-process lock on it.
func (d *Downloader) lockTarget(dir string) (func(), error) {
	if err := d.fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, &IoError{Op: "create directory", Path: dir, Err: err}
	}
	unlock, err := filelock.TryLock(dir)
	if err != nil {
		if errors.Is(err, filelock.ErrLockHeld) {
			owner, _ := filelock.ReadLockInfo(dir)
			return nil, &LockHeldError{Dir: dir, Owner: owner}
		}
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", dir, err)
	}
	return unlock, nil
}

// downloadAll stores every pin using a bounded pool of workers. Results are
// placed by index so the returned slice follows the listing order. The
// returned error is the context error when some pin was never started.
func (d *Downloader) downloadAll(ctx context.Context, r *run, pins []hb.Pin, dir string) ([]ItemResult, error) {
	items := make([]ItemResult, len(pins))
	started := make([]bool, len(pins))
	r.progress.start(len(pins))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, pin := range pins {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			outcome := d.downloadOne(ctx, r, pin, dir)
			items[i] = ItemResult{Pin: pin, Outcome: outcome}
			r.stats.record(outcome)
			r.progress.itemDone()
			return nil
		})
	}
	_ = g.Wait()

	var interrupted error
	for i, pin := range pins {
		if started[i] {
			continue
		}
		interrupted = ctx.Err()
		outcome := Outcome{Status: OutcomeFailed, Err: interrupted}
		items[i] = ItemResult{Pin: pin, Outcome: outcome}
		r.stats.record(outcome)
	}
	return items, interrupted
}

// downloadOne stores a single pin and converts any failure into an Outcome.
func (d *Downloader) downloadOne(ctx context.Context, r *run, pin hb.Pin, dir string) Outcome {
	start := time.Now()
	asset, err := d.store.Store(ctx, pin, dir)

	var outcome Outcome
	switch {
	case err != nil:
		outcome = Outcome{Status: OutcomeFailed, Path: asset.Path, Err: err}
		r.log.Error("Failed to download pin", "run_id", r.id, "pin_id", pin.ID, "asset_key", pin.AssetKey, "error", err)
	case asset.Cached:
		outcome = Outcome{Status: OutcomeSkipped, Path: asset.Path}
		r.log.Debug("Skipping pin, file already exists", "run_id", r.id, "pin_id", pin.ID, "path", asset.Path, "dry_run", d.dryRun)
	default:
		outcome = Outcome{Status: OutcomeDownloaded, Path: asset.Path, Bytes: asset.Bytes}
		r.log.Debug("Pin downloaded", "run_id", r.id, "pin_id", pin.ID, "label", pin.Label(), "path", asset.Path, "bytes", asset.Bytes)
	}
	d.metrics.ObserveItem(string(outcome.Status), outcome.Bytes, time.Since(start))
	return outcome
}

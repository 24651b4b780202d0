package board_downloader

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

// MockClient is a Client whose behavior is set per test through Func fields.
type MockClient struct {
	BoardFunc      func(ctx context.Context, id hb.BoardID) (*hb.Board, error)
	AllPinsFunc    func(ctx context.Context, id hb.BoardID) ([]hb.Pin, error)
	FetchAssetFunc func(ctx context.Context, key hb.AssetKey) (io.ReadCloser, int64, error)

	boardCalls   atomic.Int32
	allPinsCalls atomic.Int32
	fetchCalls   atomic.Int32
}

func (m *MockClient) Board(ctx context.Context, id hb.BoardID) (*hb.Board, error) {
	m.boardCalls.Add(1)
	if m.BoardFunc != nil {
		return m.BoardFunc(ctx, id)
	}
	return &hb.Board{ID: id, Title: "Test"}, nil
}

func (m *MockClient) AllPins(ctx context.Context, id hb.BoardID) ([]hb.Pin, error) {
	m.allPinsCalls.Add(1)
	if m.AllPinsFunc != nil {
		return m.AllPinsFunc(ctx, id)
	}
	return nil, errors.New("AllPinsFunc not set")
}

func (m *MockClient) FetchAsset(ctx context.Context, key hb.AssetKey) (io.ReadCloser, int64, error) {
	m.fetchCalls.Add(1)
	if m.FetchAssetFunc != nil {
		return m.FetchAssetFunc(ctx, key)
	}
	body := "content of " + string(key)
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

// MockFileSystem delegates to DefaultFileSystem unless a Func field is set.
type MockFileSystem struct {
	DefaultFileSystem

	MkdirAllFunc   func(path string, perm os.FileMode) error
	CreateTempFunc func(dir, pattern string) (TempFile, error)
	RenameFunc     func(oldpath, newpath string) error
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(path, perm)
	}
	return m.DefaultFileSystem.MkdirAll(path, perm)
}

func (m *MockFileSystem) CreateTemp(dir, pattern string) (TempFile, error) {
	if m.CreateTempFunc != nil {
		return m.CreateTempFunc(dir, pattern)
	}
	return m.DefaultFileSystem.CreateTemp(dir, pattern)
}

func (m *MockFileSystem) Rename(oldpath, newpath string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(oldpath, newpath)
	}
	return m.DefaultFileSystem.Rename(oldpath, newpath)
}

// failingReader returns some data and then err.
type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (r *failingReader) Close() error { return nil }

type progressEvent struct {
	fraction float64
	label    string
}

// recordingSink captures every event it receives.
type recordingSink struct {
	mu          sync.Mutex
	events      []progressEvent
	summaries   []Summary
	transitions [][2]RunState
}

func (s *recordingSink) OnProgress(fraction float64, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, progressEvent{fraction, label})
}

func (s *recordingSink) OnComplete(summary Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
}

func (s *recordingSink) OnStateChange(from, to RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, [2]RunState{from, to})
}

// nopLogger silences the downloader in tests.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// recordingMetrics counts observations by outcome.
type recordingMetrics struct {
	mu     sync.Mutex
	items  map[string]int
	bytes  int64
	runs   []string
	listed []int
}

func (m *recordingMetrics) ObserveItem(outcome string, bytes int64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]int)
	}
	m.items[outcome]++
	m.bytes += bytes
}

func (m *recordingMetrics) ObserveRun(state string, listed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, state)
	m.listed = append(m.listed, listed)
}

func strPtr(s string) *string { return &s }

// testPins builds n pins with descending IDs starting at first.
func testPins(first int64, n int) []hb.Pin {
	pins := make([]hb.Pin, n)
	for i := range pins {
		id := first - int64(i)
		pins[i] = hb.Pin{
			ID:       hb.PinID(id),
			AssetKey: hb.AssetKey("key" + strconv.FormatInt(id, 10)),
			MimeType: "image/jpeg",
			RawText:  strPtr("pin " + strconv.FormatInt(id, 10)),
		}
	}
	return pins
}

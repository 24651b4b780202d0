package board_downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

const (
	// maxNameRunes bounds the descriptive part of a file name.
	maxNameRunes = 50
	// chunkSize is the copy buffer used while streaming an asset to disk.
	chunkSize = 8 * 1024

	dirPerm = 0755
)

// AssetFetcher opens the byte stream of an asset.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, key hb.AssetKey) (io.ReadCloser, int64, error)
}

// RateLimiter paces asset requests. *rate.Limiter satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// StoredAsset describes the local file backing a pin.
type StoredAsset struct {
	Path   string
	Bytes  int64 // Bytes written; zero when Cached
	Cached bool  // The file already existed and no request was made
}

// AssetStore maps pins to local files and writes their assets.
// It is safe for concurrent use; calls targeting the same path are serialized.
type AssetStore struct {
	fetcher AssetFetcher
	fs      FileSystemOperations

	// DryRun reports the derived path without any network or file system mutation.
	DryRun bool
	// ForceDownload re-fetches assets even if the local file already exists.
	ForceDownload bool
	// Limiter, when set, is waited on before every request. Cached files do not consume it.
	Limiter RateLimiter

	locks pathLocks
}

// NewAssetStore creates an AssetStore. A nil fs selects DefaultFileSystem.
func NewAssetStore(fetcher AssetFetcher, fs FileSystemOperations) *AssetStore {
	if fs == nil {
		fs = &DefaultFileSystem{}
	}
	return &AssetStore{fetcher: fetcher, fs: fs}
}

// FileName derives the local file name of a pin. It depends only on the
// pin's display text, asset key and MIME type, so re-runs map every pin to
// the same file.
func FileName(pin hb.Pin) string {
	key := sanitizeName(string(pin.AssetKey))
	base := string(pin.AssetKey)
	if pin.RawText != nil {
		base = *pin.RawText
	}
	if r := []rune(base); len(r) > maxNameRunes {
		base = string(r[:maxNameRunes])
	}
	return fmt.Sprintf("%s_%s.%s", sanitizeName(base), key, extension(pin.MimeType))
}

// sanitizeName keeps ASCII letters, digits, space, '-' and '_'.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
}

// extension returns the last '/'-separated segment of a MIME type.
func extension(mimeType string) string {
	ext := mimeType
	if i := strings.LastIndex(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	ext = sanitizeName(ext)
	if ext == "" {
		return "bin"
	}
	return ext
}

// Store makes sure the asset of pin exists in dir.
// Parameters:
//   - ctx: Context bounding the transfer
//   - pin: The pin to store
//   - dir: Target directory, created if missing
//
// Returns:
//   - StoredAsset: The local path, with Cached set when an existing non-empty file was kept
//   - error: *IoError on file system failure
//   - error: *huaban_api.NetworkError when the asset could not be fetched
func (s *AssetStore) Store(ctx context.Context, pin hb.Pin, dir string) (StoredAsset, error) {
	if pin.AssetKey == "" {
		return StoredAsset{}, hb.ApiError(fmt.Sprintf("pin %d has no asset key", pin.ID))
	}
	path := filepath.Join(dir, FileName(pin))

	unlock := s.locks.lock(path)
	defer unlock()

	if !s.ForceDownload {
		exists, err := s.exists(path)
		if err != nil {
			return StoredAsset{Path: path}, err
		}
		if exists {
			return StoredAsset{Path: path, Cached: true}, nil
		}
	}
	if s.DryRun {
		return StoredAsset{Path: path, Cached: true}, nil
	}

	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return StoredAsset{Path: path}, &IoError{Op: "create directory", Path: dir, Err: err}
	}
	n, err := s.download(ctx, pin.AssetKey, path)
	if err != nil {
		return StoredAsset{Path: path}, err
	}
	return StoredAsset{Path: path, Bytes: n}, nil
}

// exists reports whether a usable file is already stored at path.
// Zero-length files are left over by interrupted writes of older versions
// and are downloaded again.
func (s *AssetStore) exists(path string) (bool, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &IoError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return false, &IoError{Op: "stat", Path: path, Err: fmt.Errorf("not a regular file")}
	}
	return info.Size() > 0, nil
}

// download streams the asset into a temporary file next to path and renames
// it into place once complete, so path never holds a partial asset.
func (s *AssetStore) download(ctx context.Context, key hb.AssetKey, path string) (int64, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	body, _, err := s.fetcher.FetchAsset(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	dir := filepath.Dir(path)
	tmp, err := s.fs.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, &IoError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	src := &readTracker{r: body}
	n, err := io.CopyBuffer(tmp, src, make([]byte, chunkSize))
	if err != nil {
		tmp.Close()
		if src.err != nil {
			return n, &hb.NetworkError{Op: "read asset", URL: string(key), Err: src.err}
		}
		return n, &IoError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &IoError{Op: "close", Path: tmpName, Err: err}
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		return n, &IoError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return n, nil
}

// readTracker remembers the first read error so a failed copy can be
// attributed to the network rather than the disk.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// pathLocks hands out one mutex per path, dropping it when the last holder releases it.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sync.Mutex
	refs int
}

func (p *pathLocks) lock(path string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*pathLock)
	}
	l, ok := p.locks[path]
	if !ok {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}

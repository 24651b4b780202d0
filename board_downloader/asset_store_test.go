package board_downloader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		pin  hb.Pin
		want string
	}{
		{
			name: "raw text and key",
			pin:  hb.Pin{AssetKey: "abc123-def", MimeType: "image/jpeg", RawText: strPtr("Sunset over the bay")},
			want: "Sunset over the bay_abc123-def.jpeg",
		},
		{
			name: "missing raw text falls back to key",
			pin:  hb.Pin{AssetKey: "xyz789", MimeType: "image/png"},
			want: "xyz789_xyz789.png",
		},
		{
			name: "empty raw text keeps an empty base",
			pin:  hb.Pin{AssetKey: "k5", MimeType: "image/png", RawText: strPtr("")},
			want: "_k5.png",
		},
		{
			name: "punctuation and non-ASCII removed",
			pin:  hb.Pin{AssetKey: "k1", MimeType: "image/gif", RawText: strPtr("猫 cat!")},
			want: " cat_k1.gif",
		},
		{
			name: "truncated before filtering",
			pin:  hb.Pin{AssetKey: "k2", MimeType: "image/png", RawText: strPtr(strings.Repeat("x", 49) + "!!!yyy")},
			want: strings.Repeat("x", 49) + "_k2.png",
		},
		{
			name: "long text truncated to 50 characters",
			pin:  hb.Pin{AssetKey: "k3", MimeType: "image/png", RawText: strPtr(strings.Repeat("a", 80))},
			want: strings.Repeat("a", 50) + "_k3.png",
		},
		{
			name: "key separators removed",
			pin:  hb.Pin{AssetKey: "dir/a:b", MimeType: "image/webp", RawText: strPtr("t")},
			want: "t_dirab.webp",
		},
		{
			name: "unknown mime type",
			pin:  hb.Pin{AssetKey: "k4", RawText: strPtr("t")},
			want: "t_k4.bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileName(tt.pin)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, FileName(tt.pin), "file name must be deterministic")
			for _, r := range got {
				ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
					r == ' ' || r == '-' || r == '_' || r == '.'
				assert.True(t, ok, "unexpected character %q in %q", r, got)
			}
		})
	}
}

func TestAssetStore_Store(t *testing.T) {
	pin := testPins(100, 1)[0]

	t.Run("writes the asset", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "board")
		client := &MockClient{}
		store := NewAssetStore(client, nil)

		asset, err := store.Store(context.Background(), pin, dir)
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "pin 100_key100.jpeg"), asset.Path)
		assert.False(t, asset.Cached)
		assert.Equal(t, int64(len("content of key100")), asset.Bytes)

		data, err := os.ReadFile(asset.Path)
		require.NoError(t, err)
		assert.Equal(t, "content of key100", string(data))
		assertNoTempFiles(t, dir)
	})

	t.Run("existing file is not fetched again", func(t *testing.T) {
		dir := t.TempDir()
		client := &MockClient{}
		store := NewAssetStore(client, nil)

		_, err := store.Store(context.Background(), pin, dir)
		require.NoError(t, err)
		asset, err := store.Store(context.Background(), pin, dir)
		require.NoError(t, err)

		assert.True(t, asset.Cached)
		assert.Equal(t, int32(1), client.fetchCalls.Load())
	})

	t.Run("zero length file is downloaded again", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName(pin))
		require.NoError(t, os.WriteFile(path, nil, 0644))
		client := &MockClient{}

		asset, err := NewAssetStore(client, nil).Store(context.Background(), pin, dir)
		require.NoError(t, err)

		assert.False(t, asset.Cached)
		assert.Equal(t, int32(1), client.fetchCalls.Load())
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("force download replaces existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName(pin))
		require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
		client := &MockClient{}
		store := NewAssetStore(client, nil)
		store.ForceDownload = true

		asset, err := store.Store(context.Background(), pin, dir)
		require.NoError(t, err)

		assert.False(t, asset.Cached)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "content of key100", string(data))
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "board")
		client := &MockClient{}
		store := NewAssetStore(client, nil)
		store.DryRun = true

		asset, err := store.Store(context.Background(), pin, dir)
		require.NoError(t, err)

		assert.True(t, asset.Cached)
		assert.Equal(t, filepath.Join(dir, FileName(pin)), asset.Path)
		assert.Zero(t, client.fetchCalls.Load())
		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "directory must not be created in dry run")
	})

	t.Run("empty asset key", func(t *testing.T) {
		_, err := NewAssetStore(&MockClient{}, nil).Store(context.Background(), hb.Pin{ID: 1}, t.TempDir())
		var apiErr hb.ApiError
		assert.ErrorAs(t, err, &apiErr)
	})
}

func TestAssetStore_StoreFailures(t *testing.T) {
	pin := testPins(200, 1)[0]

	t.Run("fetch error leaves no file", func(t *testing.T) {
		dir := t.TempDir()
		client := &MockClient{
			FetchAssetFunc: func(ctx context.Context, key hb.AssetKey) (io.ReadCloser, int64, error) {
				return nil, 0, &hb.NetworkError{Op: "fetch asset", URL: string(key), StatusCode: 404}
			},
		}

		asset, err := NewAssetStore(client, nil).Store(context.Background(), pin, dir)

		var netErr *hb.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 404, netErr.StatusCode)
		_, statErr := os.Stat(asset.Path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("interrupted stream leaves no partial file", func(t *testing.T) {
		dir := t.TempDir()
		client := &MockClient{
			FetchAssetFunc: func(ctx context.Context, key hb.AssetKey) (io.ReadCloser, int64, error) {
				return &failingReader{data: "partial", err: errors.New("connection reset")}, 100, nil
			},
		}

		asset, err := NewAssetStore(client, nil).Store(context.Background(), pin, dir)

		var netErr *hb.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Contains(t, err.Error(), "connection reset")
		_, statErr := os.Stat(asset.Path)
		assert.True(t, os.IsNotExist(statErr))
		assertNoTempFiles(t, dir)
	})

	t.Run("mkdir failure", func(t *testing.T) {
		fs := &MockFileSystem{
			MkdirAllFunc: func(path string, perm os.FileMode) error { return os.ErrPermission },
		}

		_, err := NewAssetStore(&MockClient{}, fs).Store(context.Background(), pin, filepath.Join(t.TempDir(), "x"))

		var ioErr *IoError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "create directory", ioErr.Op)
		assert.ErrorIs(t, err, os.ErrPermission)
	})

	t.Run("rename failure removes temp file", func(t *testing.T) {
		dir := t.TempDir()
		fs := &MockFileSystem{
			RenameFunc: func(oldpath, newpath string) error { return os.ErrPermission },
		}

		_, err := NewAssetStore(&MockClient{}, fs).Store(context.Background(), pin, dir)

		var ioErr *IoError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "rename", ioErr.Op)
		assertNoTempFiles(t, dir)
	})
}

func TestAssetStore_ConcurrentSamePath(t *testing.T) {
	dir := t.TempDir()
	pin := testPins(300, 1)[0]
	client := &MockClient{}
	store := NewAssetStore(client, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Store(context.Background(), pin, dir)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.fetchCalls.Load())
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return ctx.Err()
}

func TestAssetStore_Limiter(t *testing.T) {
	dir := t.TempDir()
	pin := testPins(400, 1)[0]
	limiter := &countingLimiter{}
	store := NewAssetStore(&MockClient{}, nil)
	store.Limiter = limiter

	_, err := store.Store(context.Background(), pin, dir)
	require.NoError(t, err)
	_, err = store.Store(context.Background(), pin, dir)
	require.NoError(t, err)

	assert.Equal(t, int32(1), limiter.calls.Load(), "cached files must not consume the limiter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &MockClient{}
	store = NewAssetStore(client, nil)
	store.Limiter = limiter
	_, err = store.Store(ctx, testPins(401, 1)[0], dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.fetchCalls.Load())
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"), "leftover temp file %s", e.Name())
	}
}

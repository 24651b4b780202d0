package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bd "github.com/isseis/go-huaban-board-downloader/board_downloader"
	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
)

func TestParseBoardID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    hb.BoardID
		wantErr bool
	}{
		{name: "numeric id", input: "94146939", want: "94146939"},
		{name: "surrounding spaces", input: " 94146939 ", want: "94146939"},
		{name: "board url", input: "https://huaban.com/boards/94146939", want: "94146939"},
		{name: "board url with trailing slash and query", input: "https://huaban.com/boards/94146939/?from=home", want: "94146939"},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "url without board", input: "https://huaban.com/pins/123", wantErr: true},
		{name: "non numeric board", input: "https://huaban.com/boards/latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBoardID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := newConsoleSink(&buf)

	sink.OnProgress(0, "Fetching board info")
	sink.OnProgress(0.1, "Listing pins")
	sink.OnProgress(0.1, "Listing pins")
	sink.OnProgress(0.55, "Downloading 1/2")
	sink.OnProgress(1, "Download complete")
	sink.OnComplete(bd.Summary{
		BoardTitle: "Test",
		Succeeded:  2,
		Total:      2,
		TargetDir:  "out",
		Stats:      bd.DownloadStats{Downloaded: 1, Skipped: 1, Bytes: 2_500_000},
		State:      bd.StateDone,
		Duration:   1500 * time.Millisecond,
	})

	assert.Equal(t, "[  0%] Fetching board info\n"+
		"[ 10%] Listing pins\n"+
		"[ 55%] Downloading 1/2\n"+
		"[100%] Download complete\n"+
		"board [Test]: 2/2 downloaded to out (2.5 MB written, 1 skipped, 0 failed, 1.5s)\n", buf.String())
}

// newFakeHuaban serves one board with two pins; the second pin's asset is missing.
func newFakeHuaban(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/boards/94146939", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"board":{"board_id":94146939,"title":"Test","pin_count":2,"follow_count":1,"updated_at":1700000000,"user":{"username":"alice"}}}`))
	})
	mux.HandleFunc("/v3/boards/94146939/pins", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pins":[
			{"pin_id":6002,"raw_text":"Sunset over the bay","file":{"key":"abc123-def","type":"image/jpeg"}},
			{"pin_id":6001,"raw_text":null,"file":{"key":"xyz789","type":"image/png"}}]}`))
	})
	mux.HandleFunc("/img/abc123-def", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg bytes"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRootCommand_Download(t *testing.T) {
	t.Chdir(t.TempDir())
	server := newFakeHuaban(t)
	t.Setenv("HUABAN_BASE_URL", server.URL+"/v3")
	t.Setenv("HUABAN_IMAGE_BASE_URL", server.URL+"/img")

	out := filepath.Join(t.TempDir(), "board")
	metricsFile := filepath.Join(t.TempDir(), "huaban.prom")
	var stdout bytes.Buffer
	cmd := newRootCommand(viper.New(), &stdout)
	cmd.SetArgs([]string{"https://huaban.com/boards/94146939", "-o", out, "--rate", "0", "--log-level", "error", "--metrics-file", metricsFile})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, errItemsFailed)

	text := stdout.String()
	assert.Contains(t, text, "[100%] Download complete")
	assert.Contains(t, text, "board [Test]: 1/2 downloaded to "+out)
	assert.Contains(t, text, "Title:       Test")
	assert.Contains(t, text, "failed: pin 6001")

	data, err := os.ReadFile(filepath.Join(out, "Sunset over the bay_abc123-def.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `huaban_items_total{outcome="failed"} 1`)
}

func TestRootCommand_DryRun(t *testing.T) {
	t.Chdir(t.TempDir())
	server := newFakeHuaban(t)
	t.Setenv("HUABAN_BASE_URL", server.URL+"/v3")
	t.Setenv("HUABAN_IMAGE_BASE_URL", server.URL+"/img")

	out := filepath.Join(t.TempDir(), "board")
	var stdout bytes.Buffer
	cmd := newRootCommand(viper.New(), &stdout)
	cmd.SetArgs([]string{"94146939", "--output", out, "--dry-run", "--log-level", "error"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, stdout.String(), "would write "+filepath.Join(out, "xyz789_xyz789.png"))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRootCommand_InvalidArguments(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newRootCommand(viper.New(), &bytes.Buffer{})
	cmd.SetArgs([]string{"not-a-board"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))

	cmd = newRootCommand(viper.New(), &bytes.Buffer{})
	cmd.SetArgs([]string{"1", "--workers", "20"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

package huaban_api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

//go:embed testdata/board_response.json
var cannedResponseBoard []byte

//go:embed testdata/pins_response.json
var cannedResponsePins []byte

// testSleeper records requested pauses instead of waiting.
type testSleeper struct {
	mu         sync.Mutex
	sleepCalls []time.Duration
}

func (s *testSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleepCalls = append(s.sleepCalls, d)
	s.mu.Unlock()
	return ctx.Err()
}

// testServer is an httptest server recording every request it receives.
type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *testServer {
	t.Helper()
	ts := &testServer{handler: handler}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		req := r.Clone(context.Background())
		ts.requests = append(ts.requests, req)
		ts.mu.Unlock()
		ts.handler(w, r)
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) recorded() []*http.Request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]*http.Request, len(ts.requests))
	copy(out, ts.requests)
	return out
}

// newTestSession creates a session pointing both base URLs at ts and
// replacing the sleeper with a recording one.
func newTestSession(t *testing.T, ts *testServer, cookie string) (*Session, *testSleeper) {
	t.Helper()
	s, err := NewSession(ts.server.URL+"/v3", cookie,
		WithHTTPClient(ts.server.Client()),
		WithImageBaseURL(ts.server.URL+"/img"),
	)
	require.NoError(t, err)
	sl := &testSleeper{}
	s.sleeper = sl
	return s, sl
}

// pinsBody renders a pins response with n pins, IDs counting down from first.
func pinsBody(first int64, n int) []byte {
	pins := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		id := first - int64(i)
		pins[i] = map[string]any{
			"pin_id":   id,
			"raw_text": fmt.Sprintf("pin %d", id),
			"file": map[string]string{
				"key":  "key" + strconv.FormatInt(id, 10),
				"type": "image/jpeg",
			},
		}
	}
	b, _ := json.Marshal(map[string]any{"pins": pins})
	return b
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

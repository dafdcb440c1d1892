package watch

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/terraingen/internal/archive"
	"github.com/lawnchairsociety/terraingen/internal/config"
	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

func openRules(alphabet string) *wfc.Rules {
	r := wfc.NewRules(alphabet)
	for _, sym := range r.Alphabet() {
		r.SetWeight(sym, 1)
		for _, d := range wfc.AllDirections() {
			r.SetNeighbors(sym, d, alphabet)
		}
	}
	return r
}

func testConfig() *config.GeneratorConfig {
	cfg := config.DefaultConfig()
	cfg.Watch.FrameDelayMS = 0
	cfg.Watch.MaxWidth = 10
	cfg.Watch.MaxHeight = 10
	cfg.Watch.AllowedOrigins = []string{"*"}
	return cfg
}

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// readAll reads text frames until the server closes the connection
func readAll(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frames []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return frames
		}
		frames = append(frames, string(msg))
	}
}

func TestStreamFrames(t *testing.T) {
	cfg := testConfig()
	url := startServer(t, NewServer(cfg.Watch, cfg.Map, openRules("xy"), nil))

	conn, _, err := websocket.DefaultDialer.Dial(url+"?width=3&height=2&seed=9", nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := readAll(t, conn)
	require.Len(t, frames, 7, "six steps plus a status frame")

	for i, frame := range frames[:6] {
		header, body, ok := strings.Cut(frame, "\n")
		require.True(t, ok, "frame %d has no body", i)
		assert.True(t, strings.HasPrefix(header, "step "), "frame %d header %q", i, header)
		assert.Equal(t, 2, strings.Count(body, "\n"), "frame %d should hold two rows", i)
	}
	_, last, _ := strings.Cut(frames[5], "\n")
	assert.Equal(t, 6, strings.Count(last, "x")+strings.Count(last, "y"), "last step frame should be fully solved")
	assert.Equal(t, "done state=solved seed=9 attempts=1 steps=6", frames[6])
}

func TestStreamArchivesRun(t *testing.T) {
	arc, err := archive.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer arc.Close()

	cfg := testConfig()
	url := startServer(t, NewServer(cfg.Watch, cfg.Map, openRules("xy"), arc))

	conn, _, err := websocket.DefaultDialer.Dial(url+"?width=2&height=2&seed=3", nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := readAll(t, conn)
	require.NotEmpty(t, frames)
	status := frames[len(frames)-1]
	assert.Contains(t, status, " run=")

	runs, err := arc.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, status, runs[0].ID.String())
	assert.Equal(t, int64(3), runs[0].Seed)
}

func TestRejectsBadSize(t *testing.T) {
	cfg := testConfig()
	url := startServer(t, NewServer(cfg.Watch, cfg.Map, nil, nil))

	for _, query := range []string{"?width=0", "?width=11&height=2", "?height=abc", "?seed=x"} {
		_, resp, err := websocket.DefaultDialer.Dial(url+query, nil)
		require.Error(t, err, query)
		require.NotNil(t, resp, query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.Watch.AllowedOrigins = []string{"https://maps.example.com"}
	srv := NewServer(cfg.Watch, cfg.Map, openRules("xy"), nil)
	url := startServer(t, srv)

	header := http.Header{"Origin": []string{"http://evil.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"?width=2&height=2", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The reserved slot must be released after a failed upgrade
	assert.Eventually(t, func() bool {
		return srv.limiter.Stats().Viewers == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRejectsOverLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Watch.MaxPerIP = 1
	srv := NewServer(cfg.Watch, cfg.Map, openRules("xy"), nil)
	url := startServer(t, srv)

	_, err := srv.limiter.TryAcquire("127.0.0.1", 4)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?width=2&height=2", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// A forged proxy header from an untrusted peer does not open a new slot
	header := http.Header{"X-Forwarded-For": []string{"203.0.113.9"}}
	_, resp, err = websocket.DefaultDialer.Dial(url+"?width=2&height=2", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRejectsOverCellBudget(t *testing.T) {
	cfg := testConfig()
	cfg.Watch.MaxCells = 50
	srv := NewServer(cfg.Watch, cfg.Map, openRules("xy"), nil)
	url := startServer(t, srv)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?width=10&height=10", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStreamReportsBuildFailure(t *testing.T) {
	rules := openRules("ab")
	rules.SetEdge(wfc.Top, "a")
	rules.SetEdge(wfc.Left, "b")

	cfg := testConfig()
	srv := NewServer(cfg.Watch, cfg.Map, rules, nil)
	url := startServer(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?width=3&height=3&seed=4", nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := readAll(t, conn)
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], "done state=failed seed=4 attempts=0 steps=0 error="), frames[0])
}

func TestHealthz(t *testing.T) {
	cfg := testConfig()
	ts := httptest.NewServer(NewServer(cfg.Watch, cfg.Map, nil, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFrame(t *testing.T) {
	assert.Equal(t, "done state=solved seed=1 attempts=2 steps=3 run=abc",
		StatusFrame(wfc.StateSolved.String(), 1, 2, 3, "abc", nil))

	frame := StatusFrame(wfc.StateContradicted.String(), 5, 1, 0, "", assert.AnError)
	assert.True(t, strings.HasPrefix(frame, "done state=contradicted seed=5 attempts=1 steps=0 error="), frame)
}

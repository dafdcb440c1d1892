package watch

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/terraingen/internal/render"
	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

const writeWait = 5 * time.Second

// Viewer is one browser watching a collapse run.
// Frames are written from a single goroutine; Listen runs on another and
// only reads, which is the split gorilla/websocket allows.
type Viewer struct {
	conn   *websocket.Conn
	gone   atomic.Bool
	frames int
}

// NewViewer wraps an upgraded connection.
func NewViewer(conn *websocket.Conn) *Viewer {
	return &Viewer{conn: conn}
}

// Listen drains incoming messages until the peer goes away.
// Viewers never send anything meaningful; reading keeps control frames flowing.
func (v *Viewer) Listen() {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			v.gone.Store(true)
			return
		}
	}
}

// Gone reports whether the peer has disconnected or a write has failed.
func (v *Viewer) Gone() bool {
	return v.gone.Load()
}

// Frames returns the number of frames written so far.
func (v *Viewer) Frames() int {
	return v.frames
}

// WriteLine sends message as one text frame.
func (v *Viewer) WriteLine(message string) error {
	if v.Gone() {
		return websocket.ErrCloseSent
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		v.gone.Store(true)
		return err
	}
	v.frames++
	return nil
}

// Close sends a normal closure and closes the connection.
func (v *Viewer) Close() error {
	if !v.Gone() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		v.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	return v.conn.Close()
}

// StepFrame renders the grid after one collapse step.
// The first line is a header: "step <n> attempt <a> cell <row>,<col> <symbol>".
func StepFrame(grid *wfc.Grid, attempt int, e wfc.StepEvent) string {
	return fmt.Sprintf("step %d attempt %d cell %d,%d %q\n%s",
		e.Step, attempt, e.Row, e.Col, string(rune(e.Symbol)), render.Text(grid))
}

// StateFailed is reported when no attempt could start, for example because
// the rule table contradicts itself along the border.
const StateFailed = "failed"

// StatusFrame summarizes a finished run in key=value form. state is a
// wfc.State name or StateFailed.
func StatusFrame(state string, seed int64, attempts, steps int, runID string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "done state=%s seed=%d attempts=%d steps=%d", state, seed, attempts, steps)
	if runID != "" {
		fmt.Fprintf(&b, " run=%s", runID)
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	return b.String()
}

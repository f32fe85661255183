package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heatfem/config"
	"heatfem/model"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func init() {
	log.SetLevel(log.WarnLevel)
}

const steadyProblem = `{
  "mesh_path": "rect:1:1:4:4",
  "problem": {"type": "steady"},
  "material": {"preset": "copper"},
  "boundary_condition": {"physical_group_name": "all", "type": "temperature", "temperature": 100}
}`

func transientProblem(total, dt float64, history bool) string {
	return `{
  "mesh_path": "rect:1:1:2:2",
  "problem": {
    "type": "transient", "total_time": ` + ftoa(total) + `, "time_step": ` + ftoa(dt) + `,
    "save_history": ` + map[bool]string{true: "true", false: "false"}[history] + `, "save_stride": 5,
    "initial_conditions": {"uniform_temperature": 500}
  },
  "material": {"preset": "steel"},
  "boundary_condition": {"physical_group_name": "all", "type": "convection", "alpha": 50, "ambient_temperature": 300}
}`
}

func ftoa(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func dial(t *testing.T) *websocket.Conn {
	conn, _ := dialWith(t, websocket.Upgrader{}, websocket.DefaultDialer)
	return conn
}

func dialWith(t *testing.T, upgrader websocket.Upgrader, dialer *websocket.Dialer) (*websocket.Conn, *http.Response) {
	settings := config.DefaultSettings()
	settings.FrameBuffer = 256
	settings.Threads = 2
	s := NewServer("", upgrader, settings)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, resp
}

func send(t *testing.T, conn *websocket.Conn, typ, content string) {
	require.NoError(t, conn.WriteJSON(model.Msg{Type: typ, Content: content}))
}

// readUntil collects messages up to and including the first one whose type
// is in final.
func readUntil(t *testing.T, conn *websocket.Conn, final ...string) []model.Msg {
	var got []model.Msg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	for {
		var m model.Msg
		require.NoError(t, conn.ReadJSON(&m))
		got = append(got, m)
		for _, f := range final {
			if m.Type == f {
				return got
			}
		}
	}
}

func ofType(msgs []model.Msg, typ string) []model.Msg {
	var out []model.Msg
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestSteadySolve(t *testing.T) {
	conn := dial(t)
	send(t, conn, model.MsgSolve, steadyProblem)
	msgs := readUntil(t, conn, model.MsgDone, model.MsgError)

	assert.Equal(t, model.MsgAccepted, msgs[0].Type)
	assert.Equal(t, "steady", msgs[0].Content)
	last := msgs[len(msgs)-1]
	require.Equal(t, model.MsgDone, last.Type, last.Content)

	var done DoneContent
	require.NoError(t, json.Unmarshal([]byte(last.Content), &done))
	assert.Equal(t, 25, done.Nodes)
	assert.Equal(t, "cholesky", done.Solver)
	require.Len(t, done.Temperature, 25)
	for _, v := range done.Temperature {
		assert.InDelta(t, 100, v, 1e-3)
	}
	assert.Equal(t, 16, done.AssemblyStats.ElementCount)
	assert.NotEmpty(t, ofType(msgs, model.MsgProgress))
}

func TestTransientStreamsSnapshots(t *testing.T) {
	conn := dial(t)
	send(t, conn, model.MsgSolve, transientProblem(1, 0.1, true))
	msgs := readUntil(t, conn, model.MsgDone, model.MsgError)
	require.Equal(t, model.MsgDone, msgs[len(msgs)-1].Type, msgs[len(msgs)-1].Content)

	snaps := ofType(msgs, model.MsgSnapshot)
	require.Len(t, snaps, 4)
	var times []float64
	for i, m := range snaps {
		var sc model.SnapshotContent
		require.NoError(t, json.Unmarshal([]byte(m.Content), &sc))
		assert.Equal(t, i, sc.Index)
		assert.Len(t, sc.Temperature, 9)
		times = append(times, sc.Time)
	}
	assert.InDeltaSlice(t, []float64{0, 0.1, 0.6, 1.0}, times, 1e-9)

	var first model.SnapshotContent
	require.NoError(t, json.Unmarshal([]byte(snaps[0].Content), &first))
	for _, v := range first.Temperature {
		assert.Equal(t, 500.0, v)
	}

	var solveSteps int
	for _, m := range ofType(msgs, model.MsgProgress) {
		var p model.ProgressContent
		require.NoError(t, json.Unmarshal([]byte(m.Content), &p))
		if p.Stage == "solve" {
			solveSteps++
			assert.Equal(t, 10, p.Total)
		}
	}
	assert.Equal(t, 10, solveSteps)
}

func TestCompressedSnapshots(t *testing.T) {
	conn, resp := dialWith(t, websocket.Upgrader{EnableCompression: true}, &websocket.Dialer{EnableCompression: true})
	assert.Contains(t, resp.Header.Get("Sec-WebSocket-Extensions"), "permessage-deflate")

	send(t, conn, model.MsgSolve, transientProblem(1, 0.1, true))
	msgs := readUntil(t, conn, model.MsgDone, model.MsgError)
	require.Equal(t, model.MsgDone, msgs[len(msgs)-1].Type, msgs[len(msgs)-1].Content)

	snaps := ofType(msgs, model.MsgSnapshot)
	require.Len(t, snaps, 4)
	for _, m := range snaps {
		var sc model.SnapshotContent
		require.NoError(t, json.Unmarshal([]byte(m.Content), &sc))
		assert.Len(t, sc.Temperature, 9)
	}
}

func TestStopCancelsRun(t *testing.T) {
	conn := dial(t)
	send(t, conn, model.MsgSolve, transientProblem(1e8, 1, false))
	msgs := readUntil(t, conn, model.MsgAccepted)
	assert.Equal(t, model.MsgAccepted, msgs[len(msgs)-1].Type)

	send(t, conn, model.MsgStop, "")
	msgs = readUntil(t, conn, model.MsgStopped, model.MsgDone, model.MsgError)
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.MsgStopped, last.Type)

	// the hub accepts a new analysis afterwards
	send(t, conn, model.MsgSolve, steadyProblem)
	msgs = readUntil(t, conn, model.MsgDone, model.MsgError)
	assert.Equal(t, model.MsgDone, msgs[len(msgs)-1].Type)
}

func TestStopWhenIdle(t *testing.T) {
	conn := dial(t)
	send(t, conn, model.MsgStop, "")
	msgs := readUntil(t, conn, model.MsgStopped)
	assert.Equal(t, "no analysis running", msgs[0].Content)
}

func TestRejectsBadRequests(t *testing.T) {
	conn := dial(t)

	send(t, conn, model.MsgSolve, `{"mesh_path": "rect:1:1:1:1"}`)
	msgs := readUntil(t, conn, model.MsgError)
	assert.NotEmpty(t, msgs[len(msgs)-1].Content)

	send(t, conn, "launch", "")
	msgs = readUntil(t, conn, model.MsgError)
	assert.Contains(t, msgs[len(msgs)-1].Content, "launch")
}

func TestFrameBufferDropsOldest(t *testing.T) {
	settings := config.DefaultSettings()
	settings.FrameBuffer = 8
	h := NewHub(nil, settings)
	for i := 0; i < 10; i++ {
		h.pushFrame(model.Msg{Type: model.MsgProgress, Content: ftoa(float64(i))})
	}
	assert.EqualValues(t, 2, h.dropped.Load())

	frames := h.frames.Drain()
	require.Len(t, frames, 8)
	assert.Equal(t, "2", frames[0].Content)
	assert.Equal(t, "9", frames[7].Content)
}

func TestProgressThrottle(t *testing.T) {
	settings := config.DefaultSettings()
	settings.FrameBuffer = 512
	h := NewHub(nil, settings)
	o := &streamObserver{h: h}
	const steps = 1000
	for s := 1; s <= steps; s++ {
		o.OnStep(s, steps, float64(s), mat.NewVecDense(2, []float64{1, 2}))
	}
	assert.Len(t, h.frames.Drain(), progressUpdates)
	assert.Zero(t, h.dropped.Load())
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"heatfem/assembler"
	"heatfem/config"
	"heatfem/deque"
	"heatfem/element"
	"heatfem/mesh"
	"heatfem/model"
	"heatfem/solver"
	"heatfem/solver/linear"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// progressUpdates is the number of transient progress messages per run.
const progressUpdates = 100

// Hub serves one websocket connection. Requests arrive on msg. The final
// reply of a run goes through out, after every frame queued before it.
// Progress and snapshot frames are kept in a bounded deque that drops the
// oldest frame when the client falls behind.
type Hub struct {
	conn     *websocket.Conn
	settings config.Settings

	// request
	msg chan model.Msg
	// response
	out    chan model.Msg
	notify chan struct{}

	// wmu serializes writes on conn
	wmu sync.Mutex

	mu     sync.Mutex
	frames *deque.Deque[model.Msg]
	cancel context.CancelFunc

	running atomic.Bool
	dropped atomic.Int64
}

func NewHub(conn *websocket.Conn, settings config.Settings) *Hub {
	return &Hub{
		conn:     conn,
		settings: settings,
		msg:      make(chan model.Msg, 10),
		out:      make(chan model.Msg, 10),
		notify:   make(chan struct{}, 1),
		frames:   deque.New[model.Msg](settings.FrameBuffer),
	}
}

func (h *Hub) handleRequest(ctx context.Context) {
	for {
		select {
		case msg := <-h.msg:
			switch msg.Type {
			case model.MsgSolve:
				h.startSolve(ctx, msg.Content)
			case model.MsgStop:
				if !h.stop() {
					h.write(model.Msg{Type: model.MsgStopped, Content: "no analysis running"})
				}
			default:
				log.WithField("type", msg.Type).Warn("unknown message type")
				h.write(model.Msg{Type: model.MsgError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleResponse(ctx context.Context) {
	for {
		select {
		case <-h.notify:
			if !h.flushFrames() {
				return
			}
		case reply := <-h.out:
			if !h.flushFrames() || !h.write(reply) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) write(m model.Msg) bool {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	if err := h.conn.WriteJSON(&m); err != nil {
		log.WithError(err).Warn("write failed")
		return false
	}
	return true
}

func (h *Hub) flushFrames() bool {
	h.mu.Lock()
	frames := h.frames.Drain()
	h.mu.Unlock()
	for _, f := range frames {
		if !h.write(f) {
			return false
		}
	}
	return true
}

func (h *Hub) reply(ctx context.Context, m model.Msg) {
	select {
	case h.out <- m:
	case <-ctx.Done():
	}
}

func (h *Hub) pushFrame(m model.Msg) {
	h.mu.Lock()
	if _, evicted := h.frames.PushLast(m); evicted {
		if h.dropped.Add(1) == 1 {
			log.WithField("capacity", h.frames.Capacity()).Debug("frame buffer full, dropping oldest frames")
		}
	}
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// stop cancels the running analysis and reports whether there was one.
func (h *Hub) stop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel == nil {
		return false
	}
	h.cancel()
	return true
}

func (h *Hub) startSolve(ctx context.Context, content string) {
	if !h.running.CompareAndSwap(false, true) {
		h.write(model.Msg{Type: model.MsgError, Content: "an analysis is already running"})
		return
	}
	pc, err := config.ParseProblem([]byte(content), config.JSON)
	if err != nil {
		h.running.Store(false)
		h.write(model.Msg{Type: model.MsgError, Content: err.Error()})
		return
	}

	h.dropped.Store(0)
	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	// written before the run starts so it precedes every frame
	h.write(model.Msg{Type: model.MsgAccepted, Content: pc.ProblemType.String()})
	go func() {
		done, err := h.run(runCtx, pc)
		stopped := runCtx.Err() != nil && ctx.Err() == nil

		h.mu.Lock()
		h.cancel = nil
		h.mu.Unlock()
		cancel()
		h.running.Store(false)

		switch {
		case err != nil && stopped:
			log.Info("analysis stopped by client")
			h.reply(ctx, model.Msg{Type: model.MsgStopped, Content: err.Error()})
		case err != nil:
			log.WithError(err).Error("analysis failed")
			h.reply(ctx, model.Msg{Type: model.MsgError, Content: err.Error()})
		default:
			h.reply(ctx, model.Msg{Type: model.MsgDone, Content: done})
		}
	}()
}

// DoneContent is the JSON payload of a done message.
type DoneContent struct {
	ProblemType   string                  `json:"problem_type"`
	Nodes         int                     `json:"nodes"`
	Solver        string                  `json:"solver"`
	Temperature   []float64               `json:"temperature"`
	SolverStats   solver.Stats            `json:"solver_stats"`
	AssemblyStats assembler.AssemblyStats `json:"assembly_stats"`
	DroppedFrames int64                   `json:"dropped_frames"`
}

func (h *Hub) run(ctx context.Context, pc *config.ProblemConfig) (string, error) {
	lt, err := linear.ParseType(h.settings.LinearSolver)
	if err != nil {
		return "", err
	}
	m, err := mesh.LoadMesh(ctx, pc.MeshPath)
	if err != nil {
		return "", err
	}
	b, err := element.NewBuilder(pc.Material, pc.BoundaryCondition, element.Options{
		QuadOrder: h.settings.QuadOrder,
		LineOrder: h.settings.LineOrder,
	})
	if err != nil {
		return "", err
	}

	asm := assembler.New(m, b, assembler.Options{
		Workers:      h.settings.Threads,
		WithCapacity: pc.ProblemType == model.Transient,
	})
	asm.OnProgress(func(decile int) {
		h.pushFrame(progressMsg(model.ProgressContent{Stage: "assembly", Step: decile, Total: 10}))
	})
	built, err := asm.Build(ctx)
	if err != nil {
		return "", err
	}

	gm := built.Matrices
	res, err := solver.Solve(ctx, gm.H, gm.C, gm.P, solver.Config{
		ProblemType:  pc.ProblemType,
		LinearSolver: lt,
		Transient:    pc.Transient,
		Observer:     &streamObserver{h: h},
	})
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(DoneContent{
		ProblemType:   pc.ProblemType.String(),
		Nodes:         m.NodesCount(),
		Solver:        lt.String(),
		Temperature:   mat.Col(nil, 0, res.FinalSolution()),
		SolverStats:   res.Stats,
		AssemblyStats: built.Stats,
		DroppedFrames: h.dropped.Load(),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func progressMsg(p model.ProgressContent) model.Msg {
	data, _ := json.Marshal(p)
	return model.Msg{Type: model.MsgProgress, Content: string(data)}
}

type streamObserver struct {
	h *Hub
}

func (o *streamObserver) OnStep(step, numSteps int, time float64, t *mat.VecDense) {
	every := max(numSteps/progressUpdates, 1)
	if step%every != 0 && step != numSteps {
		return
	}
	raw := t.RawVector().Data
	lo, hi := raw[0], raw[0]
	for _, v := range raw {
		lo, hi = min(lo, v), max(hi, v)
	}
	o.h.pushFrame(progressMsg(model.ProgressContent{
		Stage: "solve", Step: step, Total: numSteps, Time: time, MinTemp: lo, MaxTemp: hi,
	}))
}

func (o *streamObserver) OnSnapshot(index int, time float64, t *mat.VecDense) {
	data, _ := json.Marshal(model.SnapshotContent{Index: index, Time: time, Temperature: mat.Col(nil, 0, t)})
	o.h.pushFrame(model.Msg{Type: model.MsgSnapshot, Content: string(data)})
}

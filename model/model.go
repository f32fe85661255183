package model

// Msg is the envelope exchanged with websocket clients.
type Msg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// message types
const (
	MsgSolve    = "solve"
	MsgStop     = "stop"
	MsgAccepted = "accepted"
	MsgProgress = "progress"
	MsgSnapshot = "snapshot"
	MsgDone     = "done"
	MsgStopped  = "stopped"
	MsgError    = "error"
)

// ProgressContent is the JSON payload of a progress message.
type ProgressContent struct {
	Stage    string  `json:"stage"`
	Step     int     `json:"step"`
	Total    int     `json:"total"`
	Time     float64 `json:"time"`
	MinTemp  float64 `json:"min_temp"`
	MaxTemp  float64 `json:"max_temp"`
	Residual float64 `json:"residual,omitempty"`
}

// SnapshotContent is the JSON payload of a snapshot message.
type SnapshotContent struct {
	Index       int       `json:"index"`
	Time        float64   `json:"time"`
	Temperature []float64 `json:"temperature"`
}

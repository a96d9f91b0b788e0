package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/checkpoint"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/results"
)

// State is the pipeline lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateStopped }

// RunState is everything needed to continue a run from its cursor. It is the
// checkpoint payload.
type RunState struct {
	RunID      string               `json:"run_id"`
	ValidLeads []model.ValidLead    `json:"valid_leads"`
	Cursor     int                  `json:"cursor"`
	Results    *results.Store       `json:"results"`
	StartedAt  time.Time            `json:"started_at"`
	Skipped    int                  `json:"skipped"`
	Config     model.PipelineConfig `json:"config"`
}

// check rejects a restored state whose cursor and results disagree.
func (rs *RunState) check() error {
	if rs.Results == nil {
		rs.Results = results.NewStore()
	}
	switch {
	case len(rs.ValidLeads) == 0:
		return eris.Wrap(checkpoint.ErrCorrupt, "no leads")
	case rs.Cursor < 0 || rs.Cursor > len(rs.ValidLeads):
		return eris.Wrapf(checkpoint.ErrCorrupt, "cursor %d out of range", rs.Cursor)
	case rs.Results.Len() != rs.Cursor:
		return eris.Wrapf(checkpoint.ErrCorrupt, "cursor %d but %d results", rs.Cursor, rs.Results.Len())
	}
	return nil
}

// snapshot copies the state so it can be encoded while the loop continues.
func (rs *RunState) snapshot() *RunState {
	cp := *rs
	cp.Results = results.NewStore(rs.Results.Records()...)
	return &cp
}

// Progress is emitted after every lead and once more when the run ends.
type Progress struct {
	RunID     string        `json:"run_id"`
	State     State         `json:"state"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Label     string        `json:"label,omitempty"`
	Status    model.Status  `json:"status,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	ETA       time.Duration `json:"eta"`
	Final     bool          `json:"final"`
}

// ProgressSink receives progress notifications. Calls are fire-and-forget
// and happen on the pipeline goroutine.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// Report summarises a finished Run call.
type Report struct {
	RunID     string
	State     State
	Processed int
	Total     int
	Skipped   int
	Resumed   bool
	Results   *results.Store
	Warnings  []string
}

// Counts tallies the results by status.
func (r *Report) Counts() map[model.Status]int {
	if r.Results == nil {
		return map[model.Status]int{}
	}
	return r.Results.Counts()
}

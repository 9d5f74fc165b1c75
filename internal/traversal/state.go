package traversal

import "time"

type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type EndReason string

const (
	ReasonCompleted          EndReason = "completed"
	ReasonEmergencyEscalated EndReason = "emergency-escalated"
	ReasonAborted            EndReason = "aborted"
)

// Entry is one line of the report trail.
type Entry struct {
	NodeID      string    `json:"nodeId"`
	Title       string    `json:"title"`
	Instruction string    `json:"instruction"`
	Timestamp   time.Time `json:"timestamp"`
	ChosenLabel string    `json:"chosenLabel,omitempty"`
}

// State is an immutable snapshot of a session. Transitions return a new
// State and never touch the trail of the one they were given.
type State struct {
	Status        Status    `json:"status"`
	Reason        EndReason `json:"reason,omitempty"`
	CurrentNodeID string    `json:"currentNodeId,omitempty"`
	Trail         []Entry   `json:"trail"`
}

func (s State) Active() bool { return s.Status == StatusActive }

func (s State) Ended() bool { return s.Status == StatusEnded }

// Path lists the visited node ids in trail order.
func (s State) Path() []string {
	out := make([]string, len(s.Trail))
	for i, e := range s.Trail {
		out[i] = e.NodeID
	}
	return out
}

func (s State) withEntry(e Entry) State {
	trail := make([]Entry, len(s.Trail), len(s.Trail)+1)
	copy(trail, s.Trail)
	s.Trail = append(trail, e)
	return s
}

func (s State) popped() State {
	trail := make([]Entry, len(s.Trail)-1)
	copy(trail, s.Trail[:len(s.Trail)-1])
	s.Trail = trail
	return s
}

type ActionType string

const (
	ActionStart    ActionType = "start"
	ActionChoose   ActionType = "choose"
	ActionContinue ActionType = "continue"
	ActionBack     ActionType = "back"
	ActionAbort    ActionType = "abort"
)

type Action struct {
	Type   ActionType `json:"type"`
	Choice int        `json:"choice,omitempty"`
}

func Start() Action           { return Action{Type: ActionStart} }
func Choose(index int) Action { return Action{Type: ActionChoose, Choice: index} }
func Continue() Action        { return Action{Type: ActionContinue} }
func Back() Action            { return Action{Type: ActionBack} }
func Abort() Action           { return Action{Type: ActionAbort} }

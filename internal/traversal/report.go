package traversal

import "time"

// Report is the hand-off value for report/export collaborators.
type Report struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	SessionID    string    `json:"sessionId"`
	GraphID      string    `json:"graphId"`
	GraphName    string    `json:"graphName"`
	CategoryID   string    `json:"categoryId,omitempty"`
	GraphVersion int       `json:"graphVersion"`
	ExpertMode   bool      `json:"expertMode"`
	Status       Status    `json:"status"`
	Outcome      EndReason `json:"outcome,omitempty"`
	Steps        []Entry   `json:"steps"`
}

func (s *Session) Report() Report {
	r := Report{
		GeneratedAt: s.engine.clock(),
		SessionID:   s.id,
		ExpertMode:  s.engine.expertMode,
		Status:      s.state.Status,
		Outcome:     s.state.Reason,
		Steps:       s.Trail(),
	}
	if s.graph != nil {
		r.GraphID = s.graph.ID
		r.GraphName = s.graph.Name
		r.CategoryID = s.graph.CategoryID
		r.GraphVersion = s.graph.Version
	}
	return r
}

package lifecycle

import "github.com/okian/runboard/internal/domain/model"

// State is the verification and claim status of a run.
type State struct {
	Verified bool `json:"verified"`
	Claimed  bool `json:"claimed"`
}

// StateOf returns the state of run.
func StateOf(run model.Run) State {
	return State{Verified: run.Verified, Claimed: run.Claimed()}
}

func (s State) String() string {
	v, c := "unverified", "unclaimed"
	if s.Verified {
		v = "verified"
	}
	if s.Claimed {
		c = "claimed"
	}
	return v + "+" + c
}

// Failure is a follow-up step that failed after the transition was stored.
type Failure struct {
	Step     string `json:"step"`
	PlayerID string `json:"player_id,omitempty"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

func newFailure(step, playerID string, err error) Failure {
	return Failure{Step: step, PlayerID: playerID, Err: err, Message: err.Error()}
}

// Outcome reports a transition.
type Outcome struct {
	Run  model.Run `json:"run"`
	From State     `json:"from"`
	To   State     `json:"to"`
	// Recomputed lists the players whose totals were rebuilt.
	Recomputed []string `json:"recomputed,omitempty"`
	// Scheduled lists the players handed to the scheduler for a cascade.
	Scheduled []string  `json:"scheduled,omitempty"`
	Failures  []Failure `json:"failures,omitempty"`
}

// OK reports whether every follow-up step succeeded.
func (o Outcome) OK() bool { return len(o.Failures) == 0 }

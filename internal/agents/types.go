// Package agents provides the agent data model and the spawner that draws
// static per-citizen traits at construction time.
package agents

import (
	"github.com/talgya/uprising/internal/lattice"
)

// AgentID is a unique identifier for an agent. IDs are issued sequentially
// from 1 in grid scan order.
type AgentID uint64

// Kind is the closed agent variant set.
type Kind uint8

const (
	KindCitizen Kind = 0
	KindCop     Kind = 1
)

// String returns the kind name used in snapshots and persistence.
func (k Kind) String() string {
	if k == KindCop {
		return "cop"
	}
	return "citizen"
}

// Behavior is a citizen's mutually exclusive state.
type Behavior uint8

const (
	Quiescent Behavior = iota
	Active
	Jailed
)

// String returns the behavior name used in snapshots and persistence.
func (b Behavior) String() string {
	switch b {
	case Active:
		return "active"
	case Jailed:
		return "jailed"
	default:
		return "quiescent"
	}
}

// Agent is one member of the population. Citizen and Cop share the struct;
// Kind selects which fields are meaningful. Citizen traits are drawn once at
// spawn and never recomputed.
type Agent struct {
	ID     AgentID `json:"id"`
	Kind   Kind    `json:"kind"`
	Vision int     `json:"vision"`

	// Position is nil while the agent is jailed (off the grid).
	Position *lattice.Point `json:"position,omitempty"`

	// Citizen statics.
	Hardship     float64 `json:"hardship,omitempty"`
	RiskAversion float64 `json:"risk_aversion,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	Susceptible  bool    `json:"susceptible,omitempty"`
	Employed     bool    `json:"employed,omitempty"`

	// Citizen state.
	Behavior Behavior `json:"behavior"`
	JailTerm int      `json:"jail_term,omitempty"`

	// ReleasePoint is the cell held at arrest time, used for re-entry.
	ReleasePoint lattice.Point `json:"release_point"`
}

// OccupantID implements lattice.Occupant.
func (a *Agent) OccupantID() uint64 {
	return uint64(a.ID)
}

// Grievance is the citizen's static discontent under the given regime
// legitimacy.
func (a *Agent) Grievance(legitimacy float64) float64 {
	return a.Hardship * (1 - legitimacy)
}

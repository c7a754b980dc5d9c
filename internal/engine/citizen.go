// Citizen activation: jail countdown, movement, and the rebellion decision.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/uprising/internal/agents"
)

func (s *Simulation) stepCitizen(a *agents.Agent) {
	if a.Behavior == agents.Jailed {
		a.JailTerm--
		if a.JailTerm <= 0 {
			s.release(a)
		}
		return
	}

	// Survey happens after moving: the decision reflects the neighborhood
	// the citizen actually ends the step in.
	s.move(a)

	cops, actives := s.visibleCounts(a)
	grievance := a.Grievance(s.Config.Legitimacy)

	// Epstein estimator: visible rebels dilute the perceived arrest risk,
	// the +1 being the citizen counting itself among them.
	ratio := float64(cops) / float64(actives+1)
	arrestProb := 1 - math.Exp(-s.Config.ArrestProbConst*ratio)

	rebel := false
	if a.Susceptible {
		netRisk := a.RiskAversion * arrestProb * (1 - s.Config.CorruptionLevel)
		rebel = grievance-netRisk > a.Threshold
	} else {
		// Undeterrable: arrest risk never enters the decision.
		rebel = grievance > a.Threshold
	}

	if rebel {
		a.Behavior = agents.Active
	} else {
		a.Behavior = agents.Quiescent
	}
}

// release re-enters a citizen at its recorded release point, or the nearest
// free cell when that point is taken. The citizen takes no further action
// this step.
func (s *Simulation) release(a *agents.Agent) {
	limit := s.Config.Width
	if s.Config.Height > limit {
		limit = s.Config.Height
	}
	p, ok := s.grid.NearestFree(a.ReleasePoint, limit)
	if !ok {
		// Grid momentarily full; stay jailed one more step.
		a.JailTerm = 1
		return
	}
	if err := s.grid.Place(a, p); err != nil {
		panic(fmt.Sprintf("engine: release of citizen %d onto free cell %v: %v", a.ID, p, err))
	}
	a.Position = &p
	a.Behavior = agents.Quiescent
	a.JailTerm = 0
	s.record("release", "citizen %d released at (%d,%d)", a.ID, p.X, p.Y)
}

// move relocates an agent to a uniformly chosen empty cell within its vision
// radius, or leaves it in place when boxed in or movement is disabled.
func (s *Simulation) move(a *agents.Agent) {
	if !s.Config.Movement || a.Position == nil {
		return
	}
	empties := s.grid.EmptyNeighbors(*a.Position, a.Vision)
	if len(empties) == 0 {
		return
	}
	dest := empties[s.rand.Pick(len(empties))]
	if err := s.grid.Move(a, dest); err != nil {
		panic(fmt.Sprintf("engine: move of agent %d to empty cell %v: %v", a.ID, dest, err))
	}
	a.Position = &dest
}

// visibleCounts tallies cops and active citizens within the agent's vision.
// Jailed citizens hold no cell and are never counted.
func (s *Simulation) visibleCounts(a *agents.Agent) (cops, actives int) {
	for _, p := range s.grid.Neighborhood(*a.Position, a.Vision) {
		occ := s.grid.At(p)
		if occ == nil {
			continue
		}
		other := occ.(*agents.Agent)
		if other.Kind == agents.KindCop {
			cops++
		} else if other.Behavior == agents.Active {
			actives++
		}
	}
	return cops, actives
}

// visibleActives collects the active citizens within the agent's vision, in
// grid scan order.
func (s *Simulation) visibleActives(a *agents.Agent) []*agents.Agent {
	var out []*agents.Agent
	for _, p := range s.grid.Neighborhood(*a.Position, a.Vision) {
		occ := s.grid.At(p)
		if occ == nil {
			continue
		}
		other := occ.(*agents.Agent)
		if other.Kind == agents.KindCitizen && other.Behavior == agents.Active {
			out = append(out, other)
		}
	}
	return out
}

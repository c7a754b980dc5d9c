// Cop activation: movement, target selection, and arrest.
package engine

import (
	"github.com/talgya/uprising/internal/agents"
)

func (s *Simulation) stepCop(a *agents.Agent) {
	s.move(a)

	candidates := s.visibleActives(a)
	if len(candidates) == 0 {
		return
	}

	// Uniform choice among all visible actives — the documented
	// nondeterministic tie-break.
	target := candidates[s.rand.Pick(len(candidates))]

	target.Behavior = agents.Jailed
	target.JailTerm = s.rand.IntBetween(1, s.Config.MaxJailTerm)
	target.ReleasePoint = *target.Position
	s.grid.Remove(target)
	target.Position = nil

	s.record("arrest", "cop %d arrested citizen %d for %d steps", a.ID, target.ID, target.JailTerm)
}

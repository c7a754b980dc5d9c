// Agent spawning — populates the grid from the configured densities and
// draws each citizen's static traits.
package agents

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/uprising/internal/config"
	"github.com/talgya/uprising/internal/entropy"
	"github.com/talgya/uprising/internal/lattice"
)

// hardshipFieldFrequency scales grid coordinates into noise space when the
// hardship field is enabled. Lower values give broader deprived regions.
const hardshipFieldFrequency = 0.08

// Spawner creates the initial population.
type Spawner struct {
	cfg    config.Config
	rng    *entropy.Source
	noise  opensimplex.Noise
	nextID AgentID
}

// NewSpawner creates a spawner drawing from the given source. The seed only
// feeds the optional hardship noise field; all other draws come from src.
func NewSpawner(cfg config.Config, seed int64, src *entropy.Source) *Spawner {
	s := &Spawner{
		cfg:    cfg,
		rng:    src,
		nextID: 1,
	}
	if cfg.HardshipField {
		s.noise = opensimplex.NewNormalized(seed)
	}
	return s
}

// Populate scans the grid in row-major order; each cell independently
// becomes a cop, a citizen, or stays empty, per the configured densities.
// Agents are placed as they are created.
func (s *Spawner) Populate(g *lattice.Grid) ([]*Agent, error) {
	var out []*Agent
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := lattice.Point{X: x, Y: y}
			r := s.rng.Float()
			var a *Agent
			switch {
			case r < s.cfg.CopDensity:
				a = s.spawnCop(p)
			case r < s.cfg.CopDensity+s.cfg.CitizenDensity:
				a = s.spawnCitizen(p)
			default:
				continue
			}
			if err := g.Place(a, p); err != nil {
				return nil, fmt.Errorf("spawn agent %d: %w", a.ID, err)
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Spawner) spawnCop(p lattice.Point) *Agent {
	id := s.nextID
	s.nextID++
	return &Agent{
		ID:       id,
		Kind:     KindCop,
		Vision:   s.cfg.CopVision,
		Position: &p,
	}
}

func (s *Spawner) spawnCitizen(p lattice.Point) *Agent {
	id := s.nextID
	s.nextID++

	employed := s.rng.Float() >= s.cfg.UnemploymentRate

	// Hardship: uniform base, relieved by U(0.05, 0.15) when employed.
	base := s.rng.Float()
	if s.cfg.HardshipField {
		base = (base + s.fieldAt(p)) / 2
	}
	hardship := base
	if employed {
		hardship -= s.rng.UniformIn(0.05, 0.15)
	}
	hardship = clamp01(hardship)

	// Employment raises the bar for rebelling by the same band.
	threshold := s.cfg.ActiveThreshold
	if employed {
		threshold += s.rng.UniformIn(0.05, 0.15)
	}

	return &Agent{
		ID:           id,
		Kind:         KindCitizen,
		Vision:       s.cfg.CitizenVision,
		Position:     &p,
		Hardship:     hardship,
		RiskAversion: s.rng.Float(),
		Threshold:    threshold,
		Susceptible:  s.rng.Float() < s.cfg.SusceptibleLevel,
		Employed:     employed,
		Behavior:     Quiescent,
	}
}

// fieldAt samples the hardship noise field at a cell, in [0, 1].
func (s *Spawner) fieldAt(p lattice.Point) float64 {
	return s.noise.Eval2(float64(p.X)*hardshipFieldFrequency, float64(p.Y)*hardshipFieldFrequency)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

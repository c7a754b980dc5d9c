// Package engine runs the civil violence model: it owns the grid, the
// population, and the per-step activation schedule.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/uprising/internal/agents"
	"github.com/talgya/uprising/internal/config"
	"github.com/talgya/uprising/internal/entropy"
	"github.com/talgya/uprising/internal/lattice"
)

// ErrTerminated is returned by Step once the run has reached max_iters.
var ErrTerminated = errors.New("engine: simulation already terminated")

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Event is a notable occurrence during a run.
type Event struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Category    string `json:"category"` // "arrest", "release"
}

// StepStats is the per-step aggregate of citizen states.
type StepStats struct {
	Step      int `json:"step"`
	Quiescent int `json:"quiescent"`
	Active    int `json:"active"`
	Jailed    int `json:"jailed"`
	Employed  int `json:"employed"`
}

// AgentState is one row of the observable snapshot.
type AgentState struct {
	ID       agents.AgentID   `json:"id"`
	Kind     string           `json:"kind"`
	Position *lattice.Point   `json:"position,omitempty"`
	Behavior *agents.Behavior `json:"behavior,omitempty"`
}

// Simulation holds the complete model state. Exported methods are safe for
// concurrent use except where noted; agents only ever act one at a time
// within a step.
type Simulation struct {
	mu sync.Mutex

	Config config.Config
	Seed   int64

	grid   *lattice.Grid
	agents []*agents.Agent
	rand   *entropy.Source

	stepCount  int
	terminated bool
	events     []Event
	series     []StepStats
}

// New validates the configuration, spawns the population, and returns a
// running simulation. A zero config seed is replaced by a fresh random one,
// recorded in Seed.
func New(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.RandomSeed()
	}
	src := entropy.NewSource(seed)

	boundary := lattice.BoundaryTorus
	if cfg.Boundary == config.BoundaryBounded {
		boundary = lattice.BoundaryBounded
	}
	metric := lattice.MetricChebyshev
	if cfg.Metric == config.MetricEuclidean {
		metric = lattice.MetricEuclidean
	}
	grid := lattice.New(cfg.Width, cfg.Height, boundary, metric)

	spawner := agents.NewSpawner(cfg, seed, src)
	population, err := spawner.Populate(grid)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		Config: cfg,
		Seed:   seed,
		grid:   grid,
		agents: population,
		rand:   src,
	}
	s.series = append(s.series, s.collectStats())

	citizens, cops := 0, 0
	for _, a := range population {
		if a.Kind == agents.KindCop {
			cops++
		} else {
			citizens++
		}
	}
	slog.Info("simulation initialized",
		"grid", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"citizens", citizens,
		"cops", cops,
		"legitimacy", cfg.Legitimacy,
		"seed", seed,
	)
	return s, nil
}

// Step advances the simulation by exactly one round: every agent activates
// once, in a freshly shuffled order. Each agent's action is fully resolved
// before the next agent acts.
func (s *Simulation) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrTerminated
	}
	s.stepCount++

	for _, i := range s.rand.Perm(len(s.agents)) {
		a := s.agents[i]
		if a.Kind == agents.KindCop {
			s.stepCop(a)
		} else {
			s.stepCitizen(a)
		}
	}

	s.series = append(s.series, s.collectStats())

	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}

	if s.Config.MaxIters > 0 && s.stepCount >= s.Config.MaxIters {
		s.terminated = true
		slog.Info("simulation terminated", "step", s.stepCount)
	}
	return nil
}

// Run advances up to n steps, stopping early at termination. It returns the
// number of steps completed; ErrTerminated is returned only when no step
// could be taken at all.
func (s *Simulation) Run(n int) (int, error) {
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			if errors.Is(err, ErrTerminated) && i > 0 {
				return i, nil
			}
			return i, err
		}
	}
	return n, nil
}

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}

// Terminated reports whether the run has ended.
func (s *Simulation) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Snapshot returns the observable per-agent state, ordered by agent ID.
// Jailed citizens carry a nil position; cops carry a nil behavior.
func (s *Simulation) Snapshot() []AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AgentState, 0, len(s.agents))
	for _, a := range s.agents {
		st := AgentState{ID: a.ID, Kind: a.Kind.String()}
		if a.Position != nil {
			p := *a.Position
			st.Position = &p
		}
		if a.Kind == agents.KindCitizen {
			b := a.Behavior
			st.Behavior = &b
		}
		out = append(out, st)
	}
	return out
}

// Agents returns the live agent list without locking. It exists for
// single-threaded inspection in tests; concurrent readers must use
// AgentRecords or Snapshot instead.
func (s *Simulation) Agents() []*agents.Agent {
	return s.agents
}

// AgentRecords returns a copy of every agent's full row, taken under the
// simulation lock. Positions are duplicated, so the result stays consistent
// while the simulation keeps stepping.
func (s *Simulation) AgentRecords() []agents.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]agents.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		rec := *a
		if a.Position != nil {
			p := *a.Position
			rec.Position = &p
		}
		out = append(out, rec)
	}
	return out
}

// Grid returns the underlying lattice for read-only inspection.
func (s *Simulation) Grid() *lattice.Grid {
	return s.grid
}

// Series returns a copy of the per-step stats collected so far, including
// the construction-time row at step 0.
func (s *Simulation) Series() []StepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepStats, len(s.series))
	copy(out, s.series)
	return out
}

// Latest returns the most recent stats row.
func (s *Simulation) Latest() StepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series[len(s.series)-1]
}

// Events returns a copy of the recent event log.
func (s *Simulation) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Simulation) collectStats() StepStats {
	st := StepStats{Step: s.stepCount}
	for _, a := range s.agents {
		if a.Kind != agents.KindCitizen {
			continue
		}
		switch a.Behavior {
		case agents.Active:
			st.Active++
		case agents.Jailed:
			st.Jailed++
		default:
			st.Quiescent++
		}
		if a.Employed {
			st.Employed++
		}
	}
	return st
}

func (s *Simulation) record(category, format string, args ...any) {
	s.events = append(s.events, Event{
		Step:        s.stepCount,
		Description: fmt.Sprintf(format, args...),
		Category:    category,
	})
}

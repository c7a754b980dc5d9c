package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/talgya/uprising/internal/agents"
	"github.com/talgya/uprising/internal/config"
	"github.com/talgya/uprising/internal/entropy"
	"github.com/talgya/uprising/internal/lattice"
)

func mustNew(t *testing.T, cfg config.Config) *Simulation {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// bareSim builds a simulation around a hand-placed population.
func bareSim(t *testing.T, cfg config.Config, population []*agents.Agent) *Simulation {
	t.Helper()
	boundary := lattice.BoundaryTorus
	if cfg.Boundary == config.BoundaryBounded {
		boundary = lattice.BoundaryBounded
	}
	g := lattice.New(cfg.Width, cfg.Height, boundary, lattice.MetricChebyshev)
	for _, a := range population {
		if a.Position == nil {
			continue
		}
		if err := g.Place(a, *a.Position); err != nil {
			t.Fatalf("place agent %d: %v", a.ID, err)
		}
	}
	s := &Simulation{
		Config: cfg,
		Seed:   1,
		grid:   g,
		agents: population,
		rand:   entropy.NewSource(1),
	}
	s.series = append(s.series, s.collectStats())
	return s
}

func TestOccupancyInvariant(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 20, 20
	cfg.Legitimacy = 0.2 // unrest so arrests actually happen
	cfg.MaxJailTerm = 5
	cfg.Seed = 13
	cfg.MaxIters = 0
	s := mustNew(t, cfg)

	total := len(s.Agents())
	for step := 0; step < 30; step++ {
		if err := s.Step(); err != nil {
			t.Fatalf("step %d failed: %v", step, err)
		}
		jailed := s.Latest().Jailed
		if got := s.Grid().Occupied(); got != total-jailed {
			t.Fatalf("step %d: occupied = %d, want %d (total %d − jailed %d)",
				step, got, total-jailed, total, jailed)
		}
	}
}

func TestJailCountdownAndRelease(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 10, 10
	cfg.MaxIters = 0
	release := lattice.Point{X: 2, Y: 2}
	prisoner := &agents.Agent{
		ID:           1,
		Kind:         agents.KindCitizen,
		Vision:       cfg.CitizenVision,
		Behavior:     agents.Jailed,
		JailTerm:     3,
		ReleasePoint: release,
	}
	s := bareSim(t, cfg, []*agents.Agent{prisoner})

	for want := 2; want >= 1; want-- {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if prisoner.Behavior != agents.Jailed || prisoner.JailTerm != want {
			t.Fatalf("after step: behavior = %v, term = %d, want Jailed, %d",
				prisoner.Behavior, prisoner.JailTerm, want)
		}
		if prisoner.Position != nil {
			t.Fatal("jailed citizen holds a grid position")
		}
	}

	// Decrement reaches zero: released at the recorded point, no further
	// action this step.
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if prisoner.Behavior != agents.Quiescent {
		t.Errorf("behavior after release = %v, want Quiescent", prisoner.Behavior)
	}
	if prisoner.Position == nil || *prisoner.Position != release {
		t.Errorf("release position = %v, want %v", prisoner.Position, release)
	}
	if got := s.Grid().Occupied(); got != 1 {
		t.Errorf("occupied after release = %d, want 1", got)
	}
}

func TestReleasePointOccupiedFallsBackToNearestFree(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 10, 10
	cfg.Movement = false
	cfg.MaxIters = 0
	release := lattice.Point{X: 4, Y: 4}
	blockerPos := release
	blocker := &agents.Agent{ID: 1, Kind: agents.KindCop, Vision: 0, Position: &blockerPos}
	prisoner := &agents.Agent{
		ID:           2,
		Kind:         agents.KindCitizen,
		Vision:       1,
		Behavior:     agents.Jailed,
		JailTerm:     1,
		ReleasePoint: release,
	}
	s := bareSim(t, cfg, []*agents.Agent{blocker, prisoner})

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if prisoner.Behavior != agents.Quiescent || prisoner.Position == nil {
		t.Fatalf("prisoner not released: behavior = %v, position = %v", prisoner.Behavior, prisoner.Position)
	}
	if *prisoner.Position == release {
		t.Error("prisoner re-entered on the blocker's cell")
	}
	dx, dy := prisoner.Position.X-release.X, prisoner.Position.Y-release.Y
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
		t.Errorf("release fallback at %v, want adjacent to %v", *prisoner.Position, release)
	}
}

func TestSeedReproducibility(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 15, 15
	cfg.Seed = 77
	cfg.MaxIters = 0

	a := mustNew(t, cfg)
	b := mustNew(t, cfg)
	if _, err := a.Run(15); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Run(15); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
		t.Error("equal-seed runs diverged in agent snapshots")
	}
	if !reflect.DeepEqual(a.Series(), b.Series()) {
		t.Error("equal-seed runs diverged in step series")
	}
}

func TestJailTermBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 20, 20
	cfg.Legitimacy = 0.0 // maximal unrest
	cfg.MaxJailTerm = 7
	cfg.Seed = 5
	cfg.MaxIters = 0
	s := mustNew(t, cfg)

	arrests := 0
	for step := 0; step < 25; step++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		for _, a := range s.Agents() {
			if a.Kind == agents.KindCitizen && a.Behavior == agents.Jailed {
				arrests++
				if a.JailTerm < 0 || a.JailTerm > 7 {
					t.Fatalf("jail term %d outside [0, 7] while serving", a.JailTerm)
				}
			}
		}
	}
	if arrests == 0 {
		t.Error("no arrests in 25 steps at zero legitimacy; jail bound unexercised")
	}
}

func TestZeroCopsUprising(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 10, 10
	cfg.CitizenDensity = 1.0
	cfg.CopDensity = 0.0
	cfg.Legitimacy = 0.0
	cfg.CorruptionLevel = 0.0
	cfg.UnemploymentRate = 1.0 // no employment bias on the threshold
	cfg.ActiveThreshold = 0.0
	cfg.Seed = 21
	cfg.MaxIters = 0
	s := mustNew(t, cfg)

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	// No visible cops: the estimator collapses to zero and grievance equals
	// hardship, so every citizen with any hardship rebels.
	for _, a := range s.Agents() {
		if a.Hardship > 0 && a.Behavior != agents.Active {
			t.Fatalf("citizen %d with hardship %v is %v, want Active", a.ID, a.Hardship, a.Behavior)
		}
	}
}

func TestFullLegitimacyStaysQuiescent(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 15, 15
	cfg.Legitimacy = 1.0
	cfg.CorruptionLevel = 0.0
	cfg.Seed = 8
	cfg.MaxIters = 0
	s := mustNew(t, cfg)

	for step := 0; step < 10; step++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if got := s.Latest().Active; got != 0 {
			t.Fatalf("step %d: %d active citizens at full legitimacy, want 0", step, got)
		}
	}
}

func TestLoneActiveIsArrested(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 15, 15
	cfg.Boundary = config.BoundaryBounded
	cfg.Movement = false
	cfg.Legitimacy = 0.0
	cfg.ActiveThreshold = 0.0
	cfg.MaxJailTerm = 10
	cfg.MaxIters = 0

	copPos := lattice.Point{X: 7, Y: 7}
	rebelPos := lattice.Point{X: 5, Y: 5}
	cop := &agents.Agent{ID: 1, Kind: agents.KindCop, Vision: 7, Position: &copPos}
	// Non-susceptible with full hardship: rebels on grievance alone, so it
	// stays Active no matter which agent activates first.
	rebel := &agents.Agent{
		ID:          2,
		Kind:        agents.KindCitizen,
		Vision:      7,
		Position:    &rebelPos,
		Hardship:    1.0,
		Behavior:    agents.Active,
		Susceptible: false,
	}
	s := bareSim(t, cfg, []*agents.Agent{cop, rebel})

	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if rebel.Behavior != agents.Jailed {
		t.Fatalf("lone visible active citizen is %v after the cop's activation, want Jailed", rebel.Behavior)
	}
	if rebel.JailTerm < 1 || rebel.JailTerm > 10 {
		t.Errorf("jail term = %d, want [1, 10]", rebel.JailTerm)
	}
	if rebel.Position != nil {
		t.Error("jailed citizen still holds a grid position")
	}
	if rebel.ReleasePoint != rebelPos {
		t.Errorf("release point = %v, want %v", rebel.ReleasePoint, rebelPos)
	}
}

func TestStepAfterTermination(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 8, 8
	cfg.MaxIters = 3
	cfg.Seed = 2
	s := mustNew(t, cfg)

	done, err := s.Run(10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if done != 3 {
		t.Errorf("Run(10) completed %d steps, want 3 (max_iters)", done)
	}
	if !s.Terminated() {
		t.Error("simulation not terminated at max_iters")
	}
	if err := s.Step(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Step after termination = %v, want ErrTerminated", err)
	}
	if done, err := s.Run(5); done != 0 || !errors.Is(err, ErrTerminated) {
		t.Errorf("Run after termination = %d, %v, want 0, ErrTerminated", done, err)
	}
}

func TestSnapshotShape(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 12, 12
	cfg.Seed = 4
	cfg.Legitimacy = 0.1
	cfg.MaxIters = 0
	s := mustNew(t, cfg)
	if _, err := s.Run(10); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap) != len(s.Agents()) {
		t.Fatalf("snapshot has %d rows, want %d", len(snap), len(s.Agents()))
	}
	for i, st := range snap {
		if i > 0 && snap[i-1].ID >= st.ID {
			t.Fatal("snapshot not ordered by agent ID")
		}
		switch st.Kind {
		case "cop":
			if st.Behavior != nil {
				t.Error("cop snapshot carries a behavior")
			}
			if st.Position == nil {
				t.Error("cop snapshot missing position")
			}
		case "citizen":
			if st.Behavior == nil {
				t.Fatal("citizen snapshot missing behavior")
			}
			if *st.Behavior == agents.Jailed && st.Position != nil {
				t.Error("jailed citizen snapshot carries a position")
			}
			if *st.Behavior != agents.Jailed && st.Position == nil {
				t.Error("free citizen snapshot missing position")
			}
		default:
			t.Fatalf("unknown kind %q", st.Kind)
		}
	}
}

func TestAgentRecordsAreDetachedCopies(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 12, 12
	cfg.Seed = 6
	cfg.MaxIters = 0
	s := mustNew(t, cfg)
	if _, err := s.Run(5); err != nil {
		t.Fatal(err)
	}

	recs := s.AgentRecords()
	live := s.Agents()
	if len(recs) != len(live) {
		t.Fatalf("records has %d rows, want %d", len(recs), len(live))
	}
	for i, rec := range recs {
		a := live[i]
		if rec.ID != a.ID || rec.Kind != a.Kind || rec.Behavior != a.Behavior ||
			rec.Hardship != a.Hardship || rec.JailTerm != a.JailTerm {
			t.Fatalf("record %d = %+v, does not match agent %+v", i, rec, a)
		}
		if (rec.Position == nil) != (a.Position == nil) {
			t.Fatalf("record %d position presence mismatch", i)
		}
		if rec.Position != nil {
			if *rec.Position != *a.Position {
				t.Fatalf("record %d position = %v, want %v", i, *rec.Position, *a.Position)
			}
			if rec.Position == a.Position {
				t.Fatalf("record %d shares the live agent's position pointer", i)
			}
		}
	}

	// Positions held by the records stay put while the simulation keeps
	// stepping and moving the live agents.
	held := make([]*lattice.Point, len(recs))
	for i := range recs {
		if recs[i].Position != nil {
			p := *recs[i].Position
			held[i] = &p
		}
	}
	if _, err := s.Run(5); err != nil {
		t.Fatal(err)
	}
	for i := range recs {
		if (recs[i].Position == nil) != (held[i] == nil) {
			t.Fatalf("record %d position mutated by later steps", i)
		}
		if recs[i].Position != nil && *recs[i].Position != *held[i] {
			t.Fatalf("record %d position mutated by later steps", i)
		}
	}
}

func TestSeriesTracksCounts(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 12, 12
	cfg.Seed = 9
	cfg.MaxIters = 0
	s := mustNew(t, cfg)
	if _, err := s.Run(5); err != nil {
		t.Fatal(err)
	}

	series := s.Series()
	if len(series) != 6 { // construction row + 5 steps
		t.Fatalf("series has %d rows, want 6", len(series))
	}
	citizens := 0
	for _, a := range s.Agents() {
		if a.Kind == agents.KindCitizen {
			citizens++
		}
	}
	for _, row := range series {
		if row.Quiescent+row.Active+row.Jailed != citizens {
			t.Fatalf("step %d: states sum to %d, want %d citizens",
				row.Step, row.Quiescent+row.Active+row.Jailed, citizens)
		}
	}
}

// Tick loop for live mode: advances the simulation on a wall-clock cadence
// with a speed multiplier.
package engine

import (
	"errors"
	"log/slog"
	"time"
)

// Engine drives a Simulation forward in real time.
type Engine struct {
	Sim      *Simulation
	Speed    float64       // Multiplier: 1.0 = one step per interval, 0 = paused
	Interval time.Duration // Base step interval

	// OnStep runs after every completed step — used for periodic saves.
	OnStep func(step int)

	stop chan struct{}
}

// NewEngine creates a live driver for the simulation with default cadence.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:      sim,
		Speed:    1.0,
		Interval: time.Second,
		stop:     make(chan struct{}),
	}
}

// Run steps the simulation until it terminates or Stop is called. Blocks.
func (e *Engine) Run() {
	slog.Info("engine started", "step", e.Sim.StepCount(), "speed", e.Speed)

	for {
		select {
		case <-e.stop:
			slog.Info("engine stopped", "step", e.Sim.StepCount())
			return
		default:
		}

		if e.Speed <= 0 {
			// Paused.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		if err := e.Sim.Step(); err != nil {
			if errors.Is(err, ErrTerminated) {
				slog.Info("engine finished: simulation terminated", "step", e.Sim.StepCount())
				return
			}
			slog.Error("step failed", "error", err)
			return
		}
		if e.OnStep != nil {
			e.OnStep(e.Sim.StepCount())
		}

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}

// Stop halts the loop between steps. A run may only be stopped at a step
// boundary; the in-flight step always completes.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

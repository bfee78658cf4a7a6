// Package optim searches solver parameters for the run with the lowest
// value of a quality metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/sim"
)

var (
	ErrNoCandidates  = errors.New("optim: no candidate was evaluated")
	ErrUnknownParam  = errors.New("optim: unknown parameter")
	ErrMissingMetric = errors.New("optim: metric not reported")
)

// Evaluate runs one candidate and returns its metrics.
type Evaluate func(ctx context.Context, params map[string]float64) (map[string]float64, error)

// Trial is one evaluated combination.
type Trial struct {
	Params  map[string]float64
	Value   float64
	Metrics map[string]float64
	Err     error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search evaluates every combination of the ranges and returns the trial
// with the lowest metric, along with all trials in evaluation order.
// Failed candidates are kept in the trial list and never win.
func (g *GridSearch) Search(ctx context.Context, eval Evaluate, metricName string) (Trial, []Trial, error) {
	var trials []Trial
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), eval, metricName, &trials); err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Value: math.Inf(1)}
	found := false
	for _, t := range trials {
		if t.Err == nil && t.Value < best.Value {
			best = t
			found = true
		}
	}
	if !found {
		return Trial{}, trials, ErrNoCandidates
	}
	return best, trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval Evaluate,
	metricName string,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		t := Trial{Params: maps.Clone(current)}
		t.Metrics, t.Err = eval(ctx, t.Params)
		if t.Err == nil {
			val, ok := t.Metrics[metricName]
			if !ok {
				t.Err = fmt.Errorf("%w: %s", ErrMissingMetric, metricName)
			}
			t.Value = val
		}
		if errors.Is(t.Err, context.Canceled) || errors.Is(t.Err, context.DeadlineExceeded) {
			return t.Err
		}
		if t.Err != nil {
			fluid.Logger().Warn("candidate failed", "params", t.Params, "error", t.Err)
		}
		*trials = append(*trials, t)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := maps.Clone(current)
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, eval, metricName, trials); err != nil {
			return err
		}
	}
	return nil
}

// SolverParams are the parameters SolverEvaluator understands.
var SolverParams = []string{"jacobi_iterations", "extrapolation_passes", "length_unit"}

// ApplySolver returns a copy of base with the solver parameters set.
func ApplySolver(base *config.Config, params map[string]float64) (*config.Config, error) {
	c := *base
	for name, v := range params {
		switch name {
		case "jacobi_iterations":
			c.Solver.JacobiIterations = int(v)
		case "extrapolation_passes":
			c.Solver.ExtrapolationPasses = int(v)
		case "length_unit":
			c.Solver.LengthUnit = float32(v)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownParam, name)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SolverEvaluator runs base for ticks ticks with each candidate's solver
// parameters and reports the run metrics.
func SolverEvaluator(base *config.Config, ticks int) Evaluate {
	return func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
		cfg, err := ApplySolver(base, params)
		if err != nil {
			return nil, err
		}
		s, err := sim.New(cfg, sim.WithSampleEvery(max(ticks/20, 1)))
		if err != nil {
			return nil, err
		}
		defer s.Close()

		result, err := s.Run(ctx, ticks)
		if err != nil {
			return nil, err
		}
		return result.Metrics, nil
	}
}

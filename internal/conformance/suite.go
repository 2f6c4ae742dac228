package conformance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/factory"
	"github.com/Quidge/chatconform/internal/fixture"
)

// DefaultParallelism bounds how many scenarios RunAll executes at once.
const DefaultParallelism = 4

// Suite runs scenarios against client families. Behavior per family comes
// only from the profile attached to each instance.
type Suite struct {
	Factory   *factory.Factory
	Families  []string
	Scenarios []Scenario

	// Results receives every outcome. Created on first use when nil.
	Results *Results

	Parallelism int
	Log         zerolog.Logger

	once sync.Once
}

// results is safe to call from concurrent scenarios. A Results assigned
// before the first scenario starts is kept.
func (s *Suite) results() *Results {
	s.once.Do(func() {
		if s.Results == nil {
			s.Results = &Results{}
		}
	})
	return s.Results
}

// Execute runs one scenario against one family and records the result.
func (s *Suite) Execute(ctx context.Context, family string, sc Scenario) (res Result) {
	role := sc.Role
	if role == "" {
		role = factory.RoleTools
	}
	res = Result{Family: family, Scenario: sc.Name, Capability: sc.Requires}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		s.results().Add(res)
		s.Log.Debug().
			Str("family", family).
			Str("scenario", sc.Name).
			Str("outcome", string(res.Outcome)).
			Dur("elapsed", res.Elapsed).
			Err(res.Err).
			Msg("scenario finished")
	}()

	// Hard-skipped capabilities are decided from the profile alone, so they
	// never wait on a fixture.
	profile, err := s.Factory.Profile(family)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Mode = profile.Mode(sc.Requires)
	if res.Mode == capability.ModeSkip {
		res.Model, _ = s.Factory.ModelFor(role)
		res.Outcome = OutcomeSkipped
		return res
	}

	inst, err := s.Factory.Default(ctx, family, role)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Model = inst.ModelName()

	limit := inst.Parameters().Timeout
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	runErr := sc.Run(runCtx, inst)
	if runErr != nil && errors.Is(runErr, context.DeadlineExceeded) && runCtx.Err() != nil && ctx.Err() == nil {
		runErr = &fixture.TimeoutError{Op: "request", Key: inst.Fixture().Key, Limit: limit, Elapsed: time.Since(start)}
	}
	res.Outcome, res.Err = Classify(sc.Requires, res.Mode, runErr)
	return res
}

// RunAll runs every scenario against every family and returns the results.
// A failing scenario never stops the others.
func (s *Suite) RunAll(ctx context.Context) *Results {
	results := s.results()
	limit := s.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, family := range s.Families {
		for _, sc := range s.Scenarios {
			g.Go(func() error {
				s.Execute(ctx, family, sc)
				return nil
			})
		}
	}
	_ = g.Wait()
	return results
}

// Run runs the suite as subtests. Skipped outcomes call t.Skip and failures
// fail the subtest.
func (s *Suite) Run(t *testing.T) {
	s.results()
	for _, family := range s.Families {
		t.Run(family, func(t *testing.T) {
			for _, sc := range s.Scenarios {
				t.Run(sc.Name, func(t *testing.T) {
					t.Parallel()
					res := s.Execute(t.Context(), family, sc)
					switch res.Outcome {
					case OutcomeSkipped:
						t.Skipf("%s: %s not supported", family, sc.Requires)
					case OutcomeFailed:
						t.Fatalf("%s %s: %v", family, sc.Name, res.Err)
					case OutcomeExpectedFailureConfirmed:
						t.Logf("%s refused %s as declared", family, sc.Requires)
					}
				})
			}
		})
	}
}

package conformance

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/Quidge/chatconform/internal/capability"
)

// Outcome is the recorded result of one scenario.
type Outcome string

const (
	OutcomePassed                   Outcome = "passed"
	OutcomeSkipped                  Outcome = "skipped"
	OutcomeExpectedFailureConfirmed Outcome = "expected-failure-confirmed"
	OutcomeFailed                   Outcome = "failed"
)

// ErrUnexpectedSuccess is reported when a scenario in expect-rejection mode
// succeeds.
var ErrUnexpectedSuccess = errors.New("expected the request to be refused, but it succeeded")

// Classify maps the mode a scenario ran in and the error it returned to an
// outcome. The returned error explains a failure and is nil otherwise.
func Classify(c capability.Capability, mode capability.Mode, err error) (Outcome, error) {
	switch mode {
	case capability.ModeSkip:
		return OutcomeSkipped, nil
	case capability.ModeExpectRejection:
		if err == nil {
			return OutcomeFailed, fmt.Errorf("%s: %w", c, ErrUnexpectedSuccess)
		}
		if capability.IsUnsupported(err) {
			return OutcomeExpectedFailureConfirmed, nil
		}
		return OutcomeFailed, fmt.Errorf("%s: expected an unsupported capability error, got: %w", c, err)
	default:
		if err != nil {
			return OutcomeFailed, err
		}
		return OutcomePassed, nil
	}
}

// Result is one scenario run against one family.
type Result struct {
	Family     string
	Model      string
	Scenario   string
	Capability capability.Capability
	Mode       capability.Mode
	Outcome    Outcome
	Err        error
	Elapsed    time.Duration
}

// Results collects scenario results. It is safe for concurrent use.
type Results struct {
	mu      sync.Mutex
	results []Result
}

// Add records r.
func (rs *Results) Add(r Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results = append(rs.results, r)
}

// All returns the recorded results ordered by family, then scenario.
func (rs *Results) All() []Result {
	rs.mu.Lock()
	out := make([]Result, len(rs.results))
	copy(out, rs.results)
	rs.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Scenario < out[j].Scenario
	})
	return out
}

// Counts returns the number of results per outcome.
func (rs *Results) Counts() map[Outcome]int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	counts := make(map[Outcome]int)
	for _, r := range rs.results {
		counts[r.Outcome]++
	}
	return counts
}

// Failed reports whether any result failed.
func (rs *Results) Failed() bool {
	return rs.Counts()[OutcomeFailed] > 0
}

var outcomeColor = map[Outcome]*color.Color{
	OutcomePassed:                   color.New(color.FgGreen),
	OutcomeSkipped:                  color.New(color.FgYellow),
	OutcomeExpectedFailureConfirmed: color.New(color.FgCyan),
	OutcomeFailed:                   color.New(color.FgRed, color.Bold),
}

// Print writes one line per result followed by a summary.
func (rs *Results) Print(w io.Writer) {
	for _, r := range rs.All() {
		outcomeColor[r.Outcome].Fprintf(w, "%-27s", r.Outcome)
		fmt.Fprintf(w, " %-8s %-28s %s", r.Family, r.Scenario, r.Model)
		if r.Err != nil {
			fmt.Fprintf(w, ": %v", r.Err)
		}
		fmt.Fprintln(w)
	}

	counts := rs.Counts()
	fmt.Fprintf(w, "\n%d passed, %d skipped, %d expected failures confirmed, %d failed\n",
		counts[OutcomePassed], counts[OutcomeSkipped], counts[OutcomeExpectedFailureConfirmed], counts[OutcomeFailed])
}

package harness

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/scenario"
)

// Outcome captures one scenario execution.
type Outcome struct {
	// OutJSON is the canonical OUT document, nil when empty or failed.
	OutJSON []byte

	// Err is the parse or run failure, nil on success.
	Err error
}

// Run executes a scenario through a fresh engine. Diagnostics are
// discarded; failures surface through Outcome.Err.
func (s *Scenario) Run(ctx context.Context) Outcome {
	eng := scenario.NewEngine(engine.WithErrWriter(io.Discard))

	script, err := eng.Parse(s.Script)
	if err != nil {
		return Outcome{Err: err}
	}

	res, err := eng.Exec(ctx, script, []byte(s.Data), []byte(s.Keys))
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{OutJSON: res.OutJSON}
}

// Assert runs the scenario and checks its expectations. Golden scenarios
// compare the OUT document against testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func Assert(t *testing.T, s *Scenario) {
	t.Helper()

	outcome := s.Run(context.Background())

	if s.WantErr != "" {
		require.Error(t, outcome.Err, "scenario %s: expected failure", s.Name)
		require.Contains(t, outcome.Err.Error(), s.WantErr, "scenario %s: wrong failure", s.Name)
		return
	}

	require.NoError(t, outcome.Err, "scenario %s: unexpected failure", s.Name)

	if s.Golden {
		g := goldie.New(t)
		g.Assert(t, s.Name, outcome.OutJSON)
	}
}

// AssertDir loads every scenario under dir and runs each as a subtest.
func AssertDir(t *testing.T, dir string) {
	t.Helper()

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios, "no scenarios under %s", dir)

	for _, s := range scenarios {
		t.Run(strings.ReplaceAll(s.Name, " ", "_"), func(t *testing.T) {
			Assert(t, s)
		})
	}
}

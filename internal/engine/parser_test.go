package engine

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zendsl/internal/lang"
)

// stubLoader registers a fixed set of test patterns when loaded and
// counts its loads.
type stubLoader struct {
	reg   *Registry
	loads map[string]int
	fail  bool

	// invoked collects handler calls so tests can assert on the
	// parse/run separation and execution order.
	invoked []string
}

func newStubLoader(reg *Registry) *stubLoader {
	return &stubLoader{reg: reg, loads: map[string]int{}}
}

func (l *stubLoader) Load(name string) error {
	if l.fail {
		return errors.New("boom")
	}
	l.loads[name]++
	if l.loads[name] > 1 {
		return nil
	}
	l.reg.When("i test ''", func(w *WhenScope, args ...string) error {
		l.invoked = append(l.invoked, "test:"+args[0])
		return nil
	})
	l.reg.When("i fail", func(w *WhenScope, args ...string) error {
		l.invoked = append(l.invoked, "fail")
		return errors.New("handler failed")
	})
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *stubLoader) {
	t.Helper()
	n := 0
	e := New(
		WithErrWriter(io.Discard),
		WithRunIDs(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
	)
	l := newStubLoader(e.Registry())
	e.SetLoader(l)
	return e, l
}

func TestParse_TooShort(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Parse("Given")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeScriptTooShort))
}

func TestParse_InvalidStatement(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Parse("Because I said so\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeInvalidStatement))
}

func TestParse_InvalidTransition(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Parse("When I sign 'msg'\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeInvalidTransition))
	assert.Contains(t, err.Error(), "Invalid transition from feature")
}

func TestParse_UnknownStep(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Parse("Scenario 'stub'\nGiven I dance the tango\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeUnknownStep))
}

func TestParse_ScenarioWithoutName(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Parse("Scenario with no quoted name\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeInvalidStatement))
}

func TestParse_ScenarioLoadFailure(t *testing.T) {
	e, l := newTestEngine(t)
	l.fail = true
	_, err := e.Parse("Scenario 'stub'\nGiven I am 'Alice'\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeScenarioLoad))
}

func TestParse_NoLoaderConfigured(t *testing.T) {
	e := New(WithErrWriter(io.Discard))
	_, err := e.Parse("Scenario 'stub'\n")
	require.Error(t, err)
	assert.True(t, lang.IsParseError(err, lang.ErrCodeScenarioLoad))
}

func TestParse_BindsStepsInSourceOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	script, err := e.Parse("Scenario 'stub'\nGiven I am 'Alice'\nWhen I test 'one'\nand I test 'two'\nThen print 'draft'\n")
	require.NoError(t, err)

	require.Len(t, script.Steps, 4)
	for i, step := range script.Steps {
		assert.Equal(t, i+1, step.ID)
	}
	assert.Equal(t, []string{"Alice"}, script.Steps[0].Args)
	assert.Equal(t, lang.PhaseGiven, script.Steps[0].Phase)
	assert.Equal(t, lang.PhaseWhen, script.Steps[1].Phase)
	assert.Equal(t, lang.PhaseWhen, script.Steps[2].Phase)
	assert.Equal(t, []string{"two"}, script.Steps[2].Args)
	assert.Equal(t, lang.PhaseThen, script.Steps[3].Phase)
	assert.Equal(t, []string{"stub"}, script.Scenarios)
}

func TestParse_CommentsAndBlanksAreNoOps(t *testing.T) {
	e1, _ := newTestEngine(t)
	plain, err := e1.Parse("Scenario 'stub'\nGiven I am 'Alice'\nWhen I test 'x'\n")
	require.NoError(t, err)

	e2, _ := newTestEngine(t)
	commented, err := e2.Parse("# header\n\nScenario 'stub'\n\n  # before given\nGiven I am 'Alice'\n\nWhen I test 'x'\n# trailing\n")
	require.NoError(t, err)

	require.Len(t, commented.Steps, len(plain.Steps))
	for i := range plain.Steps {
		assert.Equal(t, plain.Steps[i].ID, commented.Steps[i].ID)
		assert.Equal(t, plain.Steps[i].Source, commented.Steps[i].Source)
		assert.Equal(t, plain.Steps[i].Pattern, commented.Steps[i].Pattern)
	}
}

func TestParse_NoHandlerRunsDuringParse(t *testing.T) {
	e, l := newTestEngine(t)
	_, err := e.Parse("Scenario 'stub'\nGiven I am 'Alice'\nWhen I test 'x'\nand I fail\n")
	require.NoError(t, err)
	assert.Empty(t, l.invoked, "parse must not invoke handlers")
}

func TestParse_ScenarioLoadIsIdempotent(t *testing.T) {
	e, l := newTestEngine(t)

	_, err := e.Parse("Scenario 'stub'\nGiven I am 'Alice'\nWhen I test 'x'\n")
	require.NoError(t, err)
	before := e.Registry().Patterns(lang.PhaseWhen)

	_, err = e.Parse("Scenario 'stub'\nGiven I am 'Alice'\nWhen I test 'y'\n")
	require.NoError(t, err)
	after := e.Registry().Patterns(lang.PhaseWhen)

	assert.Equal(t, 2, l.loads["stub"])
	assert.Equal(t, before, after, "registry state must not change on reload")
}

func TestParse_RuleLinesAreHeaders(t *testing.T) {
	e, _ := newTestEngine(t)
	script, err := e.Parse("Rule check version 1.0.0\nScenario 'stub'\nGiven I am 'Alice'\n")
	require.NoError(t, err)
	require.Len(t, script.Steps, 1)
	assert.Equal(t, "Given I am 'Alice'", script.Steps[0].Source)
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	e, _ := newTestEngine(t)
	script, err := e.Parse("SCENARIO 'stub'\nGIVEN I AM 'Alice'\nwhen i test 'x'\n")
	require.NoError(t, err)
	assert.Len(t, script.Steps, 2)
}

func TestScript_Hash(t *testing.T) {
	e, _ := newTestEngine(t)
	a, err := e.Parse("Scenario 'stub'\nGiven I am 'Alice'\n")
	require.NoError(t, err)
	b, err := e.Parse("Scenario 'stub'\nGiven I am 'Bob'\n")
	require.NoError(t, err)

	assert.Len(t, a.Hash(), 64)
	assert.NotEqual(t, a.Hash(), b.Hash())
}

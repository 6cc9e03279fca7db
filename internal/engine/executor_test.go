package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zendsl/internal/value"
)

func parseScript(t *testing.T, e *Engine, src string) *Script {
	t.Helper()
	script, err := e.Parse(src)
	require.NoError(t, err)
	return script
}

func TestExec_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I have 'message'\nThen print 'message'\n")

	res, err := e.Exec(context.Background(), script, []byte(`{"message":"hi"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"hi"}`, string(res.OutJSON))
	assert.Equal(t, "run-1", res.RunID)
}

func TestExec_EmptyOutEmitsNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I am 'Alice'\n")

	res, err := e.Exec(context.Background(), script, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res.OutJSON)
}

func TestExec_ArrayDataFlattens(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e,
		"Scenario 'stub'\nGiven I have 'a'\nand I have 'b'\nThen print 'a'\nand print 'b'\n")

	res, err := e.Exec(context.Background(), script, []byte(`[{"a":1},{"b":2}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(res.OutJSON))
}

func TestExec_ArrayDataLaterKeysWin(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I have 'a'\nThen print 'a'\n")

	res, err := e.Exec(context.Background(), script, []byte(`[{"a":1},{"a":2}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(res.OutJSON))
}

func TestExec_RejectsBadData(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I am 'Alice'\n")

	tests := []struct {
		name string
		data string
	}{
		{"scalar", `42`},
		{"array of scalars", `[1,2]`},
		{"malformed", `{"a":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Exec(context.Background(), script, []byte(tt.data), nil)
			require.Error(t, err)
			assert.True(t, IsRunError(err, ErrCodeCodec))
		})
	}
}

func TestExec_RejectsNonMappingKeys(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I am 'Alice'\n")

	_, err := e.Exec(context.Background(), script, nil, []byte(`[1]`))
	require.Error(t, err)
	assert.True(t, IsRunError(err, ErrCodeCodec))
}

func TestExec_InImmutableAcrossSteps(t *testing.T) {
	e, _ := newTestEngine(t)

	var seen []value.Value
	e.Registry().Given("i mutate the input", func(g *GivenScope, args ...string) error {
		seen = append(seen, value.Clone(g.In()["k"]))
		g.In()["k"] = value.String("mutated")
		g.In()["extra"] = value.Int(1)
		return nil
	})

	script := parseScript(t, e, "Scenario 'stub'\nGiven I mutate the input\nand I mutate the input\n")
	_, err := e.Exec(context.Background(), script, []byte(`{"k":"orig"}`), nil)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, value.String("orig"), seen[0])
	assert.Equal(t, value.String("orig"), seen[1], "mutation must not leak into the next step")
}

func TestExec_HandlerErrorAbortsWithDiagnostics(t *testing.T) {
	var errw bytes.Buffer
	e := New(WithErrWriter(&errw))
	l := newStubLoader(e.Registry())
	e.SetLoader(l)

	script := parseScript(t, e,
		"Scenario 'stub'\nGiven I am 'Alice'\nWhen I fail\nand I test 'never'\n")
	_, err := e.Exec(context.Background(), script, nil, nil)
	require.Error(t, err)

	// The failing step ran, the one after it did not.
	assert.Equal(t, []string{"fail"}, l.invoked)

	// Diagnostics carry the traceback and the compartment dumps.
	out := errw.String()
	assert.Contains(t, out, "Given I am 'Alice'")
	assert.Contains(t, out, "When I fail")
	assert.Contains(t, out, "[IN]")
	assert.Contains(t, out, "[TMP]")
	assert.Contains(t, out, "[ACK]")
	assert.Contains(t, out, "[OUT]")
	assert.Contains(t, out, "[SCHEMAS]")
}

func TestExec_SoftFailureAborts(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Registry().When("i check the impossible", func(w *WhenScope, args ...string) error {
		w.rc.Assert(false, "impossible condition")
		return nil
	})

	script := parseScript(t, e,
		"Scenario 'stub'\nGiven I am 'Alice'\nWhen I check the impossible\n")
	_, err := e.Exec(context.Background(), script, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impossible condition")
}

func TestExec_PanicIsGuarded(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Registry().When("i explode", func(w *WhenScope, args ...string) error {
		panic("kaboom")
	})

	script := parseScript(t, e, "Scenario 'stub'\nGiven I am 'Alice'\nWhen I explode\n")
	_, err := e.Exec(context.Background(), script, nil, nil)
	require.Error(t, err)
	assert.True(t, IsRunError(err, ErrCodeType))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestExec_ErrorCarriesStep(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I have 'missing'\n")

	_, err := e.Exec(context.Background(), script, []byte(`{"other":1}`), nil)
	require.Error(t, err)
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNotFound, re.Code)
	assert.Equal(t, 1, re.Step)
	assert.Equal(t, "Given I have 'missing'", re.Source)
}

func TestExec_ContextCancellation(t *testing.T) {
	e, _ := newTestEngine(t)
	script := parseScript(t, e, "Scenario 'stub'\nGiven I am 'Alice'\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Exec(ctx, script, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmitsOutOnStdout(t *testing.T) {
	e, _ := newTestEngine(t)
	var stdout bytes.Buffer

	_, err := e.Run(context.Background(),
		"Scenario 'stub'\nGiven I have 'message'\nThen print 'message'\n",
		[]byte(`{"message":"hi"}`), nil, &stdout)
	require.NoError(t, err)
	assert.Equal(t, "{\"message\":\"hi\"}\n", stdout.String())
}

func TestRun_ParseFailureEmitsNothing(t *testing.T) {
	var errw bytes.Buffer
	e := New(WithErrWriter(&errw))
	e.SetLoader(newStubLoader(e.Registry()))
	var stdout bytes.Buffer

	_, err := e.Run(context.Background(), "When I sign 'msg'\n", nil, nil, &stdout)
	require.Error(t, err)
	assert.Empty(t, stdout.String())
	assert.Contains(t, errw.String(), "Invalid transition from feature")
}

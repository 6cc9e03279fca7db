package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zendsl/internal/store"
	"github.com/roach88/zendsl/internal/testutil"
	"github.com/roach88/zendsl/internal/value"
)

func execCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errw bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errw)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errw.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_RoundTrip(t *testing.T) {
	script := writeFile(t, "roundtrip.zen",
		"Scenario 'eddsa'\nGiven I have 'message'\nThen print 'message'\n")
	data := writeFile(t, "data.json", `{"message":"hi"}`)

	stdout, _, err := execCommand(t, "run", script, "--data", data)
	require.NoError(t, err)
	assert.Equal(t, "{\"message\":\"hi\"}\n", stdout)
}

func TestRun_KeygenEmitsBase58Keyring(t *testing.T) {
	script := writeFile(t, "keygen.zen",
		"Scenario 'eddsa'\nGiven I am 'Alice'\nWhen I create the keypair\nThen print my 'keyring'\n")

	stdout, _, err := execCommand(t, "run", script)
	require.NoError(t, err)
	assert.Contains(t, stdout, `{"Alice":{"keyring":{"eddsa":"`)

	out := testutil.MustObject(t, stdout)
	kr, ok := out["Alice"].(value.Object)["keyring"].(value.Object)["eddsa"]
	require.True(t, ok)
	assert.IsType(t, value.String(""), kr)
}

func TestRun_ParseFailureExitCode(t *testing.T) {
	script := writeFile(t, "bad.zen", "When I sign 'msg'\n")

	stdout, stderr, err := execCommand(t, "run", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, stdout, "no stdout on failure")
	assert.Contains(t, stderr, "Invalid transition from feature")
}

func TestRun_ExecFailureExitCode(t *testing.T) {
	script := writeFile(t, "notfound.zen",
		"Scenario 'eddsa'\nGiven I have 'ghost'\n")

	stdout, stderr, err := execCommand(t, "run", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "ghost")
}

func TestRun_MissingScript(t *testing.T) {
	_, _, err := execCommand(t, "run", "/nonexistent/script.zen")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_RecordsAudit(t *testing.T) {
	script := writeFile(t, "audited.zen",
		"Scenario 'eddsa'\nGiven I have 'message'\nThen print 'message'\n")
	data := writeFile(t, "data.json", `{"message":"hi"}`)
	db := filepath.Join(t.TempDir(), "audit.db")

	_, _, err := execCommand(t, "run", script, "--data", data, "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusOK, runs[0].Status)
	assert.Equal(t, []string{"eddsa"}, runs[0].Scenarios)
	assert.Equal(t, `{"message":"hi"}`, runs[0].OutJSON)
}

func TestRun_RecordsFailedAudit(t *testing.T) {
	script := writeFile(t, "failing.zen",
		"Scenario 'eddsa'\nGiven I have 'ghost'\n")
	db := filepath.Join(t.TempDir(), "audit.db")

	_, _, err := execCommand(t, "run", script, "--db", db)
	require.Error(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "ghost")
}

func TestRun_CueSchemas(t *testing.T) {
	schemas := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(schemas, "transfer.cue"),
		[]byte(`{to: string, amount: int & >0}`), 0o644))

	script := writeFile(t, "transfer.zen",
		"Scenario 'eddsa'\nGiven I have a valid 'transfer'\nThen print 'transfer'\n")

	okData := writeFile(t, "ok.json", `{"transfer":{"to":"bob","amount":5}}`)
	stdout, _, err := execCommand(t, "run", script, "--data", okData, "--schemas", schemas)
	require.NoError(t, err)
	assert.Equal(t, "{\"transfer\":{\"amount\":5,\"to\":\"bob\"}}\n", stdout)

	badData := writeFile(t, "bad.json", `{"transfer":{"to":"bob","amount":0}}`)
	_, _, err = execCommand(t, "run", script, "--data", badData, "--schemas", schemas)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestParseCommand(t *testing.T) {
	script := writeFile(t, "parse.zen",
		"Scenario 'eddsa'\nGiven I am 'Alice'\nWhen I create the keypair\nThen print my 'keyring'\n")

	stdout, _, err := execCommand(t, "parse", script)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Given I am 'Alice'")
	assert.Contains(t, stdout, "3 steps")
}

func TestParseCommand_Failure(t *testing.T) {
	script := writeFile(t, "bad.zen", "Scenario 'eddsa'\nGiven I dance the tango\n")

	_, stderr, err := execCommand(t, "parse", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "Unknown")
}

func TestScenariosCommand(t *testing.T) {
	stdout, _, err := execCommand(t, "scenarios")
	require.NoError(t, err)
	assert.Contains(t, stdout, "eddsa")
	assert.Contains(t, stdout, "p256")
}

func TestScenariosCommand_Patterns(t *testing.T) {
	stdout, _, err := execCommand(t, "scenarios", "--patterns")
	require.NoError(t, err)
	assert.Contains(t, stdout, "i create the keypair")
	assert.Contains(t, stdout, "i create the p256 key")
}

func TestTraceCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "audit.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.WriteRun(context.Background(), store.RunRecord{
		ID:         "run-1",
		ScriptHash: "hash",
		Status:     store.StatusOK,
		OutJSON:    `{"k":1}`,
	}))
	require.NoError(t, st.Close())

	stdout, _, err := execCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run-1")

	stdout, _, err = execCommand(t, "trace", "--db", db, "run-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, `{"k":1}`)
}

func TestInvalidFormatFlag(t *testing.T) {
	_, _, err := execCommand(t, "scenarios", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

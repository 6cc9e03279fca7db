package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/scenario"
	"github.com/roach88/zendsl/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Data     string
	Keys     string
	Database string
	Schemas  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Parse and execute a script",
		Long: `Parse a ZenDSL script, bind every statement to a handler, and execute
the bound AST against the DATA and KEYS documents.

On success the final OUT document is printed to stdout as one canonical
JSON line (when non-empty). On failure the traceback is printed to stderr
and nothing reaches stdout.

Example:
  zendsl run keygen.zen
  zendsl run transfer.zen --data data.json --keys keys.json
  zendsl run transfer.zen --db ./audit.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "path to the DATA JSON document")
	cmd.Flags().StringVar(&opts.Keys, "keys", "", "path to the KEYS JSON document")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite audit database (optional)")
	cmd.Flags().StringVar(&opts.Schemas, "schemas", "", "directory of .cue schema files to register (optional)")

	return cmd
}

func runScript(cmd *cobra.Command, opts *RunOptions, scriptPath string) error {
	src, err := readInput(cmd.InOrStdin(), scriptPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	var data, keys []byte
	if opts.Data != "" {
		if data, err = os.ReadFile(opts.Data); err != nil {
			return WrapExitError(ExitCommandError, "failed to read DATA", err)
		}
	}
	if opts.Keys != "" {
		if keys, err = os.ReadFile(opts.Keys); err != nil {
			return WrapExitError(ExitCommandError, "failed to read KEYS", err)
		}
	}

	eng := scenario.NewEngine(engine.WithErrWriter(cmd.ErrOrStderr()))
	if opts.Schemas != "" {
		if err := loadCueSchemas(eng, opts.Schemas); err != nil {
			return WrapExitError(ExitCommandError, "failed to load schemas", err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	script, parseErr := eng.Parse(string(src))
	if parseErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[!] %v\n", parseErr)
		return WrapExitError(ExitFailure, "parse failed", parseErr)
	}

	res, execErr := eng.Exec(ctx, script, data, keys)
	if opts.Database != "" {
		if dbErr := recordRun(ctx, opts.Database, script, res, execErr); dbErr != nil {
			slog.Error("failed to record run", "error", dbErr)
		}
	}
	if execErr != nil {
		return WrapExitError(ExitFailure, "run failed", execErr)
	}

	if res.OutJSON != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.OutJSON)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// recordRun writes the audit row for one execution.
func recordRun(ctx context.Context, dbPath string, script *engine.Script, res *engine.Result, execErr error) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec := store.RunRecord{
		ScriptHash: script.Hash(),
		Scenarios:  script.Scenarios,
	}
	if execErr != nil {
		rec.ID = newAuditID()
		rec.Status = store.StatusFailed
		rec.Error = execErr.Error()
	} else {
		rec.ID = res.RunID
		rec.Status = store.StatusOK
		rec.OutJSON = string(res.OutJSON)
		rec.Traceback = renderTrace(res.Traceback)
	}
	return st.WriteRun(ctx, rec)
}

// newAuditID tags failed runs, which never got a result of their own.
func newAuditID() string { return uuid.NewString() }

func renderTrace(entries []engine.TraceEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// loadCueSchemas registers every .cue file of a directory as a named
// validator; the file stem is the schema name.
func loadCueSchemas(eng *engine.Engine, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".cue" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(entry.Name(), ".cue")
		if err := eng.Schemas().RegisterCUE(name, string(src)); err != nil {
			return err
		}
		slog.Debug("cue schema registered", "name", name)
	}
	return nil
}

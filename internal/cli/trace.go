package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zendsl/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewTraceCommand creates the trace command: inspection of the audit
// store written by run --db.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded runs",
		Long: `List the runs recorded in an audit database, or show one run in full
(traceback and OUT document) by id.

Example:
  zendsl trace --db ./audit.db
  zendsl trace --db ./audit.db 5f9b0c2e-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showRun(cmd, opts, args[0])
			}
			return listRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite audit database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func openStore(cmd *cobra.Command, opts *TraceOptions) (*store.Store, context.Context, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return st, ctx, nil
}

func listRuns(cmd *cobra.Command, opts *TraceOptions) error {
	st, ctx, err := openStore(cmd, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(runs)
	}

	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s  %s  %v\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.ID, r.Scenarios)
	}
	return nil
}

func showRun(cmd *cobra.Command, opts *TraceOptions, id string) error {
	st, ctx, err := openStore(cmd, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.GetRun(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(rec)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run      %s\n", rec.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "script   %s\n", rec.ScriptHash)
	fmt.Fprintf(cmd.OutOrStdout(), "status   %s\n", rec.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "created  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(rec.Scenarios) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "scenarios %v\n", rec.Scenarios)
	}
	if rec.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "error    %s\n", rec.Error)
	}
	if rec.Traceback != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s", rec.Traceback)
	}
	if rec.OutJSON != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", rec.OutJSON)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/scenario"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
}

// parsedStep is the JSON shape of one bound statement.
type parsedStep struct {
	ID      int      `json:"id"`
	Line    int      `json:"line"`
	Phase   string   `json:"phase"`
	Pattern string   `json:"pattern"`
	Args    []string `json:"args,omitempty"`
	Source  string   `json:"source"`
}

// parseReport is the JSON shape of a successful parse.
type parseReport struct {
	Scenarios []string     `json:"scenarios,omitempty"`
	Steps     []parsedStep `json:"steps"`
	Hash      string       `json:"hash"`
}

// NewParseCommand creates the parse command: the first lifecycle stage
// alone, for checking a script without running it.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <script>",
		Short: "Parse and bind a script without executing it",
		Long: `Validate a script's phase structure and bind every statement to a
registered pattern. Nothing executes; no handler runs.

Example:
  zendsl parse keygen.zen
  zendsl parse keygen.zen --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseScript(cmd, opts, args[0])
		},
	}

	return cmd
}

func parseScript(cmd *cobra.Command, opts *ParseOptions, scriptPath string) error {
	src, err := readInput(cmd.InOrStdin(), scriptPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	eng := scenario.NewEngine(engine.WithErrWriter(cmd.ErrOrStderr()))
	script, parseErr := eng.Parse(string(src))
	if parseErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[!] %v\n", parseErr)
		return WrapExitError(ExitFailure, "parse failed", parseErr)
	}

	report := parseReport{Scenarios: script.Scenarios, Hash: script.Hash()}
	for _, step := range script.Steps {
		report.Steps = append(report.Steps, parsedStep{
			ID:      step.ID,
			Line:    step.Line,
			Phase:   string(step.Phase),
			Pattern: step.Pattern,
			Args:    step.Args,
			Source:  step.Source,
		})
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(report)
	}

	for _, step := range report.Steps {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d %-5s %s\n", step.ID, step.Phase, step.Source)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d steps, scenarios: %v\n", len(report.Steps), report.Scenarios)
	return nil
}

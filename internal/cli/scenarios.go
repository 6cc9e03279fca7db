package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zendsl/internal/lang"
	"github.com/roach88/zendsl/internal/scenario"
)

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Patterns bool
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the loadable scenario plugins",
		Long: `List every scenario a Scenario line can load, and optionally the step
patterns each one registers.

Example:
  zendsl scenarios
  zendsl scenarios --patterns`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Patterns, "patterns", false, "show the patterns each scenario registers")

	return cmd
}

type scenarioReport struct {
	Name  string   `json:"name"`
	Given []string `json:"given,omitempty"`
	When  []string `json:"when,omitempty"`
	Then  []string `json:"then,omitempty"`
}

func listScenarios(cmd *cobra.Command, opts *ScenariosOptions) error {
	names := scenario.Names()

	if !opts.Patterns {
		if opts.Format == "json" {
			f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
			return f.Success(names)
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	}

	// A baseline engine with no scenario loaded keeps the built-ins out
	// of the diff, and a fresh engine per scenario keeps the scenarios
	// apart: only patterns the load added beyond the baseline are
	// reported.
	baseline := scenario.NewEngine()
	base := map[lang.Phase]map[string]bool{}
	for _, phase := range []lang.Phase{lang.PhaseGiven, lang.PhaseWhen, lang.PhaseThen} {
		base[phase] = map[string]bool{}
		for _, p := range baseline.Registry().Patterns(phase) {
			base[phase][p] = true
		}
	}

	var reports []scenarioReport
	for _, n := range names {
		eng := scenario.NewEngine()
		if err := scenario.NewLoader(eng.Registry(), eng.Schemas()).Load(n); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load scenario %q", n), err)
		}
		rep := scenarioReport{Name: n}
		for _, p := range eng.Registry().Patterns(lang.PhaseGiven) {
			if !base[lang.PhaseGiven][p] {
				rep.Given = append(rep.Given, p)
			}
		}
		for _, p := range eng.Registry().Patterns(lang.PhaseWhen) {
			if !base[lang.PhaseWhen][p] {
				rep.When = append(rep.When, p)
			}
		}
		for _, p := range eng.Registry().Patterns(lang.PhaseThen) {
			if !base[lang.PhaseThen][p] {
				rep.Then = append(rep.Then, p)
			}
		}
		reports = append(reports, rep)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(reports)
	}

	for _, rep := range reports {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", rep.Name)
		for _, p := range rep.Given {
			fmt.Fprintf(cmd.OutOrStdout(), "  given %s\n", p)
		}
		for _, p := range rep.When {
			fmt.Fprintf(cmd.OutOrStdout(), "  when  %s\n", p)
		}
		for _, p := range rep.Then {
			fmt.Fprintf(cmd.OutOrStdout(), "  then  %s\n", p)
		}
	}
	return nil
}

package cmd

import (
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/report"
)

// completionCmd wraps Cobra's built-in shell completion generator.
// The generated scripts call back into pulse to complete section names
// (report, export, chart) and --month values.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for pulse.

To load completions in the current shell session:

  # bash
  source <(pulse completion bash)

  # zsh
  source <(pulse completion zsh)

  # fish
  pulse completion fish | source

Persist across sessions by adding the source line to your shell profile
(~/.bashrc, ~/.zshrc, ~/.config/fish/completions/pulse.fish, etc.).

Section arguments complete from the active report definitions and --month
completes the last twelve months, newest first:

  pulse report you<TAB>        -> youtube
  pulse chart --month <TAB>    -> "October 2026" "September 2026" ...`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// ─── Dynamic completion ───────────────────────────────────────────────────────

// completionMonths is how many months --month offers.
const completionMonths = 12

// completeSections offers the section ids of the configured definitions
// that are not already on the command line. Commands taking a single
// section stop offering once one is given.
func completeSections(single bool) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if single && len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return matchPrefix(sectionIDs(), args, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeMonths offers the selectable month labels, newest first.
func completeMonths(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	months := period.MonthOptions(time.Now(), completionMonths)
	slices.Reverse(months)
	return matchPrefix(months, nil, toComplete), cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveKeepOrder
}

// sectionIDs loads the definitions named by the config, falling back to the
// built-in layout when the config cannot be read.
func sectionIDs() []string {
	path := ""
	if cfg, err := loadConfig(); err == nil {
		path = cfg.Definitions
	}
	defs, err := report.LoadDefinitions(path)
	if err != nil {
		if defs, err = report.LoadDefinitions(""); err != nil {
			return nil
		}
	}
	return defs.SectionIDs()
}

// matchPrefix returns the candidates starting with prefix, case-insensitively,
// minus those in used.
func matchPrefix(candidates, used []string, prefix string) []cobra.Completion {
	var out []cobra.Completion
	for _, c := range candidates {
		if slices.Contains(used, c) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(prefix)) {
			out = append(out, c)
		}
	}
	return out
}

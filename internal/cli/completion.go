package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathanaelphilip/gh-commit-ai/internal/completion"
	"github.com/nathanaelphilip/gh-commit-ai/internal/version"
)

func shellArgs(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(completion.Shells()))
	for _, s := range completion.Shells() {
		out = append(out, string(s))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish>",
		Short: "Print a shell completion script",
		Long: `Print the completion script for the given shell to stdout.

  source <(gh-commit-ai completion bash)
  gh-commit-ai completion zsh > "${fpath[1]}/_gh-commit-ai"
  gh-commit-ai completion fish > ~/.config/fish/completions/gh-commit-ai.fish

To install it for the current user in one step use install-completion.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: shellArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := completion.Parse(args[0])
			if err != nil {
				return err
			}
			return completion.Generate(cmd.Root(), sh, cmd.OutOrStdout())
		},
	}
}

func newInstallCompletionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install-completion [bash|zsh|fish]",
		Short: "Install shell completion for the current user",
		Long: `Write the completion script into your user completion directory.

Without an argument the shell is taken from $SHELL. Targets:
  bash  $XDG_DATA_HOME/bash-completion/completions/` + version.Name + `
  zsh   ~/.zsh/completions/_` + version.Name + `
  fish  ~/.config/fish/completions/` + version.Name + `.fish`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: shellArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sh  completion.Shell
				err error
			)
			if len(args) == 1 {
				sh, err = completion.Parse(args[0])
			} else {
				sh, err = completion.Detect(app.Getenv("SHELL"))
			}
			if err != nil {
				return err
			}

			inst, err := completion.NewInstaller(cmd.Root(), app.Logger())
			if err != nil {
				return err
			}
			if home := app.Getenv("HOME"); home != "" {
				inst.Home = home
			}
			inst.XDGDataHome = app.Getenv("XDG_DATA_HOME")

			res, err := inst.Install(sh)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✅ %s completion installed to %s\n", res.Shell, res.Path)
			if res.Hint != "" {
				fmt.Fprintf(app.Out, "Add this to your shell rc file if completion does not load:\n  %s\n", res.Hint)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", version.Name, version.Version)
		},
	}
}

package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nathanaelphilip/gh-commit-ai/internal/config"
)

func newConfigCmd(app *App, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, locate and inspect ~/.gh-commit-ai.yml",
		Long: `Manage the gh-commit-ai configuration file.

The file lives at ~/.gh-commit-ai.yml unless --config or GH_COMMIT_AI_CONFIG
points elsewhere. API keys are best kept in GROQ_API_KEY, ANTHROPIC_API_KEY
and OPENAI_API_KEY rather than in the file.`,
		Args: cobra.NoArgs,
	}

	path := func() string {
		if root.configPath != "" {
			return root.configPath
		}
		return config.DefaultPath()
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the example config to ~/.gh-commit-ai.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(app.Example) == 0 {
				return errors.New("no example config bundled with this build")
			}
			p := path()
			if err := config.Init(p, app.Example, force); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✅ wrote %s\n", p)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.Out, path())
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with API keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: root.configPath})
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			src := cfg.Path
			if src == "" {
				src = "defaults (no config file)"
			}
			fmt.Fprintf(app.Out, "# source: %s\n%s", src, out)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one key, e.g. provider or providers.groq.model",
		Long: `Update one key in the config file, keeping its comments.

Nested keys use dots. A comma separated value becomes a list:
  gh-commit-ai config set provider groq
  gh-commit-ai config set providers.ollama.model llama3.2
  gh-commit-ai config set fallback ollama,openai`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := path()
			if err := config.Set(p, args[0], args[1]); err != nil {
				return errors.Wrapf(err, "set %s", args[0])
			}
			fmt.Fprintf(app.Out, "✅ %s = %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(initCmd, pathCmd, showCmd, setCmd)
	return cmd
}

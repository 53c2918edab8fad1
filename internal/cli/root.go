// Package cli wires the cobra command tree for gh-commit-ai.
package cli

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nathanaelphilip/gh-commit-ai/internal/config"
	"github.com/nathanaelphilip/gh-commit-ai/internal/git"
	"github.com/nathanaelphilip/gh-commit-ai/internal/logger"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
	"github.com/nathanaelphilip/gh-commit-ai/internal/usecase"
	"github.com/nathanaelphilip/gh-commit-ai/internal/version"
)

const longHelp = version.Tagline + `

Reads the staged git diff, asks an AI provider to describe it and turns the
answer into a commit message you can accept, edit, regenerate or discard.

Run it directly or as a GitHub CLI extension:
  gh-commit-ai [flags]
  gh commit-ai [flags]

Providers:
  ollama     local inference (https://ollama.ai), no key needed
  groq       fast hosted inference with a free tier  (GROQ_API_KEY)
  anthropic  hosted inference                        (ANTHROPIC_API_KEY)
  openai     hosted inference                        (OPENAI_API_KEY)

Settings are read from ~/.gh-commit-ai.yml (see: gh-commit-ai config init),
then GH_COMMIT_AI_* environment variables, then flags.`

const examples = `  git add -p && gh commit-ai
  gh-commit-ai --provider groq --dry-run
  gh-commit-ai -t fix -s parser --yes
  gh-commit-ai --hook .git/COMMIT_EDITMSG`

// App holds the process level collaborators. Tests replace them.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Example is the starter config written by `config init`.
	Example []byte
	// Getenv reads the environment.
	Getenv func(string) string
	// IsTerminal reports whether the user can answer prompts.
	IsTerminal func() bool
	// NewRepo opens the repository in the working directory.
	NewRepo func(log *zap.Logger) git.Repository
	// NewGenerator builds the provider chain for cfg.
	NewGenerator func(cfg *config.Config, log *zap.Logger) (usecase.Generator, error)
	// Edit opens path in the user's editor.
	Edit func(ctx context.Context, path string) error

	log *zap.Logger
}

// NewApp returns an App bound to the real terminal, git and providers.
func NewApp(example []byte) *App {
	a := &App{
		In:      os.Stdin,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Example: example,
		Getenv:  os.Getenv,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		NewRepo: func(log *zap.Logger) git.Repository {
			return git.NewRepo("", log)
		},
		NewGenerator: func(cfg *config.Config, log *zap.Logger) (usecase.Generator, error) {
			return NewDispatcher(cfg, log)
		},
	}
	a.Edit = a.runEditor
	return a
}

// Logger returns the logger configured for this run.
func (a *App) Logger() *zap.Logger {
	if a.log == nil {
		return zap.NewNop()
	}
	return a.log
}

type rootOptions struct {
	configPath string
	verbose    bool
	dryRun     bool
	yes        bool
	hook       string
	commitType string
	context    string
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           version.Name + " [flags]",
		Short:         "AI-powered git commit message generator",
		Long:          longHelp,
		Example:       examples,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.log = logger.New(app.Err, opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runGenerate(cmd, opts)
		},
	}
	cmd.SetIn(app.In)
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.gh-commit-ai.yml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	f := cmd.Flags()
	f.StringP("provider", "p", "", "AI provider: "+strings.Join(providerNames(), ", "))
	f.StringP("model", "m", "", "model for the primary provider")
	f.StringSlice("fallback", nil, "providers tried in order when the primary fails")
	f.Bool("review", false, "review the diff for bugs before generating the message")
	f.String("review-model", "", "model used for --review")
	f.StringVarP(&opts.commitType, "type", "t", "", "force the commit type (feat, fix, docs, ...)")
	f.StringP("scope", "s", "", "force the Conventional Commits scope")
	f.StringVarP(&opts.context, "context", "c", "", "extra note passed to the model")
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "print the message without committing")
	f.BoolVarP(&opts.yes, "yes", "y", false, "commit without asking")
	f.StringVar(&opts.hook, "hook", "", "write the message into a commit message file (prepare-commit-msg hook)")
	f.Bool("no-ticket", false, "do not add the ticket found in the branch name")
	f.Bool("no-conventional", false, `use "TICKET [type] description" instead of Conventional Commits`)
	f.String("language", "", "language of the message (default english)")
	f.Int("max-bytes", 0, "diff budget sent to the model (default 32000)")
	f.Duration("timeout", 0, "timeout for each generation (default 40s)")
	f.Int("retries", 0, "retries per provider on transient errors (default 2)")

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	_ = cmd.RegisterFlagCompletionFunc("fallback", completeProviders)
	_ = cmd.RegisterFlagCompletionFunc("type", completeTypes)
	_ = cmd.MarkFlagFilename("hook")
	_ = cmd.MarkPersistentFlagFilename("config", "yml", "yaml")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "yes", "hook")

	cmd.AddCommand(
		newConfigCmd(app, opts),
		newDoctorCmd(app, opts),
		newCompletionCmd(),
		newInstallCompletionCmd(app),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context, app *App) error {
	return NewRootCmd(app).ExecuteContext(ctx)
}

func (a *App) loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: opts.configPath, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	a.Logger().Debug("configuration loaded",
		zap.String("path", cfg.Path),
		zap.String("provider", cfg.Provider),
		zap.Strings("fallback", cfg.Fallback))
	return cfg, nil
}

// runEditor opens path in $GIT_EDITOR, $EDITOR or vi. The variable may carry
// arguments (e.g. "code --wait"), so it goes through the shell.
func (a *App) runEditor(ctx context.Context, path string) error {
	editor := "vi"
	for _, k := range []string{"GIT_EDITOR", "VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(a.Getenv(k)); v != "" {
			editor = v
			break
		}
	}
	c := exec.CommandContext(ctx, "sh", "-c", editor+` "$1"`, "sh", path)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func providerNames() []string {
	names := provider.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func completeProviders(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(provider.Names()))
	for _, n := range provider.Names() {
		out = append(out, string(n)+"\t"+provider.Defaults[n].Description)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/nathanaelphilip/gh-commit-ai/internal/config"
	"github.com/nathanaelphilip/gh-commit-ai/internal/git"
	"github.com/nathanaelphilip/gh-commit-ai/internal/install"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
)

// MinGitVersion is the oldest git whose diff and commit flags we rely on.
const MinGitVersion = "2.20.0"

type gitVersioner interface {
	Version(ctx context.Context) (string, error)
}

type report struct {
	w      io.Writer
	failed int
}

func (r *report) ok(format string, args ...any) {
	fmt.Fprintf(r.w, "✅ "+format+"\n", args...)
}

func (r *report) warn(format string, args ...any) {
	fmt.Fprintf(r.w, "⚠️  "+format+"\n", args...)
}

func (r *report) fail(format string, args ...any) {
	r.failed++
	fmt.Fprintf(r.w, "❌ "+format+"\n", args...)
}

// checkGitVersion compares an installed git version against MinGitVersion.
func checkGitVersion(installed string) (bool, error) {
	have, err := goversion.NewVersion(installed)
	if err != nil {
		return false, errors.Wrapf(err, "parse git version %q", installed)
	}
	constraint, err := goversion.NewConstraint(">= " + MinGitVersion)
	if err != nil {
		return false, errors.Wrap(err, "parse version constraint")
	}
	return constraint.Check(have), nil
}

func newDoctorCmd(app *App, root *rootOptions) *cobra.Command {
	var (
		prefix    string
		installed bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check git, the repository, config, credentials and installed files",
		Long: `Run a series of checks and report what would stop gh-commit-ai from working:
the git binary and its version, the current repository, the config file,
credentials for every provider in the chain and, with --prefix, the files a
package installs (--installed looks next to the running executable).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			r := &report{w: app.Out}
			needsSetup := false
			log := app.Logger()
			repo := app.NewRepo(log)

			if v, ok := repo.(gitVersioner); ok {
				gitVer, err := v.Version(ctx)
				switch {
				case err != nil:
					r.fail("git not usable: %v", err)
				default:
					good, err := checkGitVersion(gitVer)
					switch {
					case err != nil:
						r.warn("%v", err)
					case good:
						r.ok("git %s", gitVer)
					default:
						r.fail("git %s is older than %s", gitVer, MinGitVersion)
					}
				}
			}

			if branch, err := repo.CurrentBranch(ctx); err != nil {
				if errors.Is(err, git.ErrNotRepository) {
					r.warn("not inside a git repository")
				} else {
					r.fail("repository: %v", err)
				}
			} else {
				r.ok("repository on branch %s", branch)
				if files, err := repo.StagedFiles(ctx); err != nil {
					r.warn("staged files: %v", err)
				} else if len(files) == 0 {
					r.warn("nothing staged yet (git add ...)")
				} else {
					r.ok("%d file(s) staged", len(files))
				}
			}

			cfg, err := config.Load(config.LoadOptions{Path: root.configPath})
			if err != nil {
				r.fail("config: %v", err)
			} else {
				if cfg.Path == "" {
					needsSetup = true
					r.warn("no config file, using defaults (run `gh-commit-ai config init`)")
				} else {
					r.ok("config %s", cfg.Path)
				}
				for i, name := range cfg.Chain() {
					s := cfg.ProviderSettings(name)
					_, err := provider.New(name, s)
					role := "fallback"
					if i == 0 {
						role = "primary"
					}
					switch {
					case err == nil:
						detail := "model " + modelOrDefault(name, s.Model)
						if name.NeedsKey() {
							detail += ", key from " + cfg.KeySource(name)
						}
						r.ok("%s provider %s ready (%s)", role, name, detail)
					case i == 0:
						r.fail("%s provider %s: %v", role, name, err)
					default:
						r.warn("%s provider %s will be skipped: %v", role, name, err)
					}
				}
			}

			if installed && prefix == "" {
				if prefix, err = install.DefaultPrefix(); err != nil {
					r.fail("%v", err)
				}
			}
			if prefix != "" {
				for _, c := range install.Verify(prefix) {
					if c.Present {
						r.ok("installed %s", c.Path)
					} else {
						r.fail("missing %s (from %s)", c.Path, c.Source)
					}
				}
			}

			if r.failed > 0 || needsSetup {
				guide := prefix
				if guide == "" {
					guide, _ = install.DefaultPrefix()
				}
				fmt.Fprintln(app.Out)
				fmt.Fprint(app.Out, install.Caveats(guide))
			}
			if r.failed > 0 {
				return errors.Newf("%d check(s) failed", r.failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "also verify the files installed under this prefix")
	cmd.Flags().BoolVar(&installed, "installed", false, "verify the files installed next to this executable")
	_ = cmd.MarkFlagDirname("prefix")
	return cmd
}

func modelOrDefault(name provider.Name, model string) string {
	if model != "" {
		return model
	}
	return provider.Defaults[name].Model
}

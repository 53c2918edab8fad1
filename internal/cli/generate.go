package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathanaelphilip/gh-commit-ai/internal/commit"
	"github.com/nathanaelphilip/gh-commit-ai/internal/config"
	"github.com/nathanaelphilip/gh-commit-ai/internal/prompt"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
	"github.com/nathanaelphilip/gh-commit-ai/internal/usecase"
)

// NewDispatcher builds the provider chain from cfg. A primary provider that
// cannot be built is an error; fallbacks without credentials are skipped.
func NewDispatcher(cfg *config.Config, log *zap.Logger) (*provider.Dispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var chain []provider.Provider
	for i, name := range cfg.Chain() {
		p, err := provider.New(name, cfg.ProviderSettings(name))
		if err != nil {
			if i == 0 {
				return nil, err
			}
			log.Warn("skipping fallback provider", zap.String("provider", string(name)), zap.Error(err))
			continue
		}
		chain = append(chain, p)
	}
	return provider.NewDispatcher(log, provider.Policy{
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, chain...), nil
}

func useCaseOptions(cfg *config.Config, opts *rootOptions) usecase.Options {
	return usecase.Options{
		ReviewModel:   cfg.ReviewModel,
		MaxBytes:      cfg.MaxDiffBytes,
		Exclude:       cfg.Exclude,
		Review:        cfg.Review,
		Conventional:  cfg.Conventional,
		IncludeTicket: cfg.IncludeTicket,
		Type:          opts.commitType,
		Scope:         cfg.Scope,
		Language:      cfg.Language,
		Context:       opts.context,
		RecentCommits: cfg.RecentCommits,
	}
}

func (a *App) runGenerate(cmd *cobra.Command, opts *rootOptions) error {
	if t := strings.TrimSpace(opts.commitType); t != "" && !commit.ValidType(t) {
		return errors.WithHintf(errors.Newf("unknown commit type %q", t),
			"choose one of: %s", strings.Join(commit.Types(), ", "))
	}

	cfg, err := a.loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log := a.Logger()

	gen, err := a.NewGenerator(cfg, log)
	if err != nil {
		return err
	}
	repo := a.NewRepo(log)
	svc := usecase.NewService(repo, gen, log)
	ucOpts := useCaseOptions(cfg, opts)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	generate := func() (usecase.Result, error) {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return svc.Execute(runCtx, ucOpts)
	}

	res, err := generate()
	if err != nil {
		return err
	}
	a.printReview(res)
	log.Debug("message generated",
		zap.String("provider", string(res.Provider)),
		zap.Bool("unstructured", res.Unstructured),
		zap.Strings("files", res.Diff.Paths()))

	switch {
	case opts.hook != "":
		if err := repo.WriteHook(opts.hook, res.Message.String()); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, res.Message.String())
		return nil
	case opts.dryRun:
		fmt.Fprintln(a.Out, res.Message.String())
		return nil
	case opts.yes:
		return a.commit(ctx, repo, res.Message)
	case !a.IsTerminal():
		// Nobody to ask: print it for piping.
		fmt.Fprintln(a.Out, res.Message.String())
		return nil
	}

	return a.confirm(ctx, repo, res, generate)
}

func (a *App) printReview(res usecase.Result) {
	if res.ReviewErr != nil {
		fmt.Fprintf(a.Err, "⚠️ review failed: %v\n", res.ReviewErr)
		return
	}
	review := strings.TrimSpace(res.Review)
	if review == "" || review == prompt.NoIssues {
		return
	}
	fmt.Fprintln(a.Out, renderReview(review))
	fmt.Fprintln(a.Out)
}

type committer interface {
	Commit(ctx context.Context, headline, body string) error
}

func (a *App) commit(ctx context.Context, repo committer, msg commit.Message) error {
	if err := repo.Commit(ctx, msg.Headline, msg.Body); err != nil {
		return errors.WithHint(errors.Wrap(err, "git commit failed"),
			"the message was:\n"+msg.String())
	}
	return nil
}

// confirm loops on [y]es / [n]o / [e]dit / [r]egenerate until the user
// commits or gives up.
func (a *App) confirm(ctx context.Context, repo committer, res usecase.Result, generate func() (usecase.Result, error)) error {
	in := bufio.NewReader(a.In)
	msg := res.Message
	for {
		fmt.Fprintln(a.Out, renderPreview(msg, res))
		fmt.Fprint(a.Out, "Use this message? [y]es / [n]o / [e]dit / [r]egenerate: ")

		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(a.Out)
			return errors.New("no answer, commit aborted")
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return a.commit(ctx, repo, msg)
		case "n", "no", "q":
			fmt.Fprintln(a.Out, "Commit aborted.")
			return nil
		case "e", "edit":
			edited, err := a.edit(ctx, msg)
			if err != nil {
				fmt.Fprintf(a.Err, "⚠️ edit failed: %v\n", err)
				continue
			}
			if edited.Headline == "" {
				fmt.Fprintln(a.Out, "Empty message, commit aborted.")
				return nil
			}
			msg = edited
		case "r", "regenerate":
			next, err := generate()
			if err != nil {
				fmt.Fprintf(a.Err, "⚠️ regenerate failed: %v\n", err)
				continue
			}
			res = next
			msg = next.Message
		default:
			fmt.Fprintf(a.Err, "⚠️ unrecognised answer %q\n", strings.TrimSpace(line))
		}
	}
}

const editTemplateFooter = `
# Edit the commit message above. Lines starting with '#' are ignored.
# An empty message aborts the commit.
`

func (a *App) edit(ctx context.Context, msg commit.Message) (commit.Message, error) {
	f, err := os.CreateTemp("", "gh-commit-ai-*.txt")
	if err != nil {
		return commit.Message{}, errors.Wrap(err, "create temp file")
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(msg.String() + "\n" + editTemplateFooter); err != nil {
		_ = f.Close()
		return commit.Message{}, errors.Wrap(err, "write temp file")
	}
	if err := f.Close(); err != nil {
		return commit.Message{}, errors.Wrap(err, "close temp file")
	}

	if err := a.Edit(ctx, path); err != nil {
		return commit.Message{}, errors.Wrap(err, "editor exited with an error")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return commit.Message{}, errors.Wrap(err, "read edited message")
	}
	return commit.ParseMessage(string(data)), nil
}

func completeTypes(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return commit.Types(), cobra.ShellCompDirectiveNoFileComp
}

package git

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"
)

// ErrNotRepository is returned when the working directory is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// Repository exposes git operations required by the application.
type Repository interface {
	StagedDiff(ctx context.Context) (string, error)
	StagedFiles(ctx context.Context) ([]string, error)
	CurrentBranch(ctx context.Context) (string, error)
	RecentSubjects(ctx context.Context, n int) ([]string, error)
	Commit(ctx context.Context, headline, body string) error
	WriteHook(path, message string) error
}

// Repo reads repository metadata through go-git and falls back to the git
// binary for the diff, committing, and anything go-git cannot open.
type Repo struct {
	Dir    string
	Exec   func(ctx context.Context, name string, args ...string) *exec.Cmd
	Stdout io.Writer
	Stderr io.Writer
	Log    *zap.Logger
}

// NewRepo returns a Repository rooted at dir (or the current directory when empty).
func NewRepo(dir string, log *zap.Logger) *Repo {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repo{
		Dir: dir,
		Exec: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, name, args...)
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    log,
	}
}

func (r *Repo) open() (*gogit.Repository, error) {
	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, errors.WithHint(ErrNotRepository, "run gh-commit-ai from inside a git working tree")
	}
	return repo, err
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := r.Exec(ctx, "git", args...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "git %s: %s", args[0], strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// StagedDiff returns the index diff with zero context lines and rename detection.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "diff", "--staged", "-U0", "-M", "--no-color", "--no-ext-diff")
	if err != nil {
		return "", errors.WithHint(err, "make sure git is installed and you are inside a repository")
	}
	return out, nil
}

// StagedFiles lists paths whose index entry differs from HEAD.
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	repo, err := r.open()
	if err != nil {
		return r.stagedFilesCLI(ctx)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return r.stagedFilesCLI(ctx)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, "read worktree status")
	}

	var files []string
	for path, st := range status {
		if st.Staging == gogit.Unmodified || st.Staging == gogit.Untracked {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (r *Repo) stagedFilesCLI(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--staged", "--name-only")
	if err != nil {
		return nil, err
	}
	files := strings.Fields(out)
	sort.Strings(files)
	return files, nil
}

// CurrentBranch returns the checked out branch, or the short commit hash on a detached HEAD.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := r.open()
	if errors.Is(err, ErrNotRepository) {
		return "", err
	}
	if err != nil {
		r.Log.Debug("go-git open failed, using git binary", zap.Error(err))
		return r.currentBranchCLI(ctx)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// unborn branch: HEAD is symbolic but points at nothing yet
		ref, refErr := repo.Storer.Reference(plumbing.HEAD)
		if refErr != nil {
			return "", errors.Wrap(refErr, "read HEAD")
		}
		return ref.Target().Short(), nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve HEAD")
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

func (r *Repo) currentBranchCLI(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	branch := strings.TrimSpace(out)
	if branch != "" && branch != "HEAD" {
		return branch, nil
	}

	out, err = r.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RecentSubjects returns up to n subject lines reachable from HEAD, newest first.
// A repository without commits yields an empty slice.
func (r *Repo) RecentSubjects(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve HEAD")
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, errors.Wrap(err, "walk history")
	}
	defer iter.Close()

	subjects := make([]string, 0, n)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject := strings.TrimSpace(strings.SplitN(c.Message, "\n", 2)[0])
		if subject != "" && !strings.HasPrefix(subject, "Merge ") {
			subjects = append(subjects, subject)
		}
		if len(subjects) >= n {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk history")
	}
	return subjects, nil
}

// Commit runs `git commit` with the headline and optional body as separate paragraphs.
func (r *Repo) Commit(ctx context.Context, headline, body string) error {
	if strings.TrimSpace(headline) == "" {
		return errors.New("empty headline")
	}

	args := []string{"commit", "-m", headline}
	if strings.TrimSpace(body) != "" {
		args = append(args, "-m", body)
	}

	cmd := r.Exec(ctx, "git", args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "git commit")
	}
	return nil
}

// WriteHook writes message into a commit message file handed to a
// prepare-commit-msg or commit-msg hook. Comment lines git already put in the
// file are kept below the message.
func (r *Repo) WriteHook(path, message string) error {
	var comments []string
	if existing, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(existing), "\n") {
			if strings.HasPrefix(line, "#") {
				comments = append(comments, line)
			}
		}
	}

	content := strings.TrimRight(message, "\n") + "\n"
	if len(comments) > 0 {
		content += "\n" + strings.Join(comments, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "write hook message %s", path)
	}
	return nil
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(\.\d+)?)`)

// Version returns the installed git version, e.g. "2.43.0".
func (r *Repo) Version(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	m := versionPattern.FindString(out)
	if m == "" {
		return "", errors.Newf("unrecognised git version output %q", strings.TrimSpace(out))
	}
	return m, nil
}

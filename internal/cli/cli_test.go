package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nathanaelphilip/gh-commit-ai/internal/config"
	"github.com/nathanaelphilip/gh-commit-ai/internal/git"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
	"github.com/nathanaelphilip/gh-commit-ai/internal/usecase"
)

const stagedDiff = "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-old\n+new\n"

type fakeRepo struct {
	branch    string
	branchErr error
	version   string
	hookPath  string
	hookMsg   string
	commits   [][2]string
}

func (f *fakeRepo) StagedDiff(context.Context) (string, error)    { return stagedDiff, nil }
func (f *fakeRepo) StagedFiles(context.Context) ([]string, error) { return []string{"main.go"}, nil }
func (f *fakeRepo) CurrentBranch(context.Context) (string, error) {
	return f.branch, f.branchErr
}
func (f *fakeRepo) RecentSubjects(context.Context, int) ([]string, error) { return nil, nil }
func (f *fakeRepo) Commit(_ context.Context, headline, body string) error {
	f.commits = append(f.commits, [2]string{headline, body})
	return nil
}
func (f *fakeRepo) WriteHook(path, message string) error {
	f.hookPath, f.hookMsg = path, message
	return nil
}
func (f *fakeRepo) Version(context.Context) (string, error) { return f.version, nil }

type fakeGen struct {
	answers []string
	calls   int
}

func (f *fakeGen) Generate(context.Context, provider.Request) (provider.Result, error) {
	a := f.answers[f.calls%len(f.answers)]
	f.calls++
	return provider.Result{Text: a, Provider: provider.Ollama}, nil
}

// isolate gives the test an empty HOME and no credentials or overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range os.Environ() {
		name, _, _ := strings.Cut(k, "=")
		if strings.HasPrefix(name, config.EnvPrefix) || strings.HasSuffix(name, "_API_KEY") || name == "OLLAMA_HOST" {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
	return home
}

type harness struct {
	app  *App
	repo *fakeRepo
	gen  *fakeGen
	out  *bytes.Buffer
	err  *bytes.Buffer
	home string
}

func newHarness(t *testing.T, input string, tty bool, answers ...string) *harness {
	t.Helper()
	h := &harness{
		repo: &fakeRepo{branch: "feature/GCA-7-hooks", version: "2.43.0"},
		gen:  &fakeGen{answers: answers},
		out:  &bytes.Buffer{},
		err:  &bytes.Buffer{},
		home: isolate(t),
	}
	if len(h.gen.answers) == 0 {
		h.gen.answers = []string{`{"commit_type":"feat","scope":"hook","description":"write message to hook file","body":"Supports prepare-commit-msg."}`}
	}
	h.app = &App{
		In:         strings.NewReader(input),
		Out:        h.out,
		Err:        h.err,
		Example:    []byte("# example\nprovider: ollama\n"),
		Getenv:     func(k string) string { return map[string]string{"HOME": h.home, "SHELL": "/bin/zsh"}[k] },
		IsTerminal: func() bool { return tty },
		NewRepo:    func(*zap.Logger) git.Repository { return h.repo },
		NewGenerator: func(*config.Config, *zap.Logger) (usecase.Generator, error) {
			return h.gen, nil
		},
	}
	h.app.Edit = func(context.Context, string) error { return nil }
	return h
}

func (h *harness) run(args ...string) error {
	cmd := NewRootCmd(h.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestHelpContainsTagline(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("--help"))
	assert.Contains(t, h.out.String(), "gh-commit-ai - AI-powered git commit message generator")
	assert.Contains(t, h.out.String(), "gh commit-ai")
	assert.Contains(t, h.out.String(), "install-completion")
}

func TestVersion(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("--version"))
	assert.Contains(t, h.out.String(), "1.0.0")

	h = newHarness(t, "", false)
	require.NoError(t, h.run("version"))
	assert.Equal(t, "gh-commit-ai version 1.0.0\n", h.out.String())
}

func TestDryRunPrintsMessage(t *testing.T) {
	h := newHarness(t, "", true)
	require.NoError(t, h.run("--dry-run"))

	assert.Equal(t, "feat(hook): write message to hook file\n\nSupports prepare-commit-msg.\n\nRefs: GCA-7\n", h.out.String())
	assert.Empty(t, h.repo.commits)
}

func TestFlagsReachTheMessage(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("-n", "--no-ticket", "--no-conventional", "-t", "docs"))
	assert.Equal(t, "[docs] write message to hook file\n\nSupports prepare-commit-msg.\n", h.out.String())
}

func TestHookWritesFile(t *testing.T) {
	h := newHarness(t, "", true)
	require.NoError(t, h.run("--hook", ".git/COMMIT_EDITMSG"))
	assert.Equal(t, ".git/COMMIT_EDITMSG", h.repo.hookPath)
	assert.True(t, strings.HasPrefix(h.repo.hookMsg, "feat(hook): write message to hook file"))
	assert.Empty(t, h.repo.commits)
}

func TestYesCommits(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("--yes"))
	require.Len(t, h.repo.commits, 1)
	assert.Equal(t, "feat(hook): write message to hook file", h.repo.commits[0][0])
}

func TestNonTerminalPrintsOnly(t *testing.T) {
	h := newHarness(t, "y\n", false)
	require.NoError(t, h.run())
	assert.Empty(t, h.repo.commits)
	assert.Contains(t, h.out.String(), "feat(hook): write message to hook file")
}

func TestConfirmRegenerateThenAbort(t *testing.T) {
	h := newHarness(t, "what\nr\nn\n", true,
		`{"commit_type":"fix","description":"first try"}`,
		`{"commit_type":"fix","description":"second try"}`)
	require.NoError(t, h.run())

	assert.Equal(t, 2, h.gen.calls)
	assert.Contains(t, h.out.String(), "first try")
	assert.Contains(t, h.out.String(), "second try")
	assert.Contains(t, h.out.String(), "Commit aborted.")
	assert.Contains(t, h.err.String(), `unrecognised answer "what"`)
	assert.Empty(t, h.repo.commits)
}

func TestConfirmEditThenCommit(t *testing.T) {
	h := newHarness(t, "e\ny\n", true)
	h.app.Edit = func(_ context.Context, path string) error {
		before, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !strings.Contains(string(before), "# Edit the commit message") {
			return errors.New("template footer missing")
		}
		return os.WriteFile(path, []byte("fix: hand written\n\nBody line.\n# ignored\n"), 0o600)
	}
	require.NoError(t, h.run())

	require.Len(t, h.repo.commits, 1)
	assert.Equal(t, [2]string{"fix: hand written", "Body line."}, h.repo.commits[0])
}

func TestConfirmEOFAborts(t *testing.T) {
	h := newHarness(t, "", true)
	err := h.run()
	require.Error(t, err)
	assert.Empty(t, h.repo.commits)
}

func TestUnknownType(t *testing.T) {
	h := newHarness(t, "", false)
	err := h.run("-n", "--type", "party")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "feat")
}

func TestMutuallyExclusiveModes(t *testing.T) {
	h := newHarness(t, "", false)
	assert.Error(t, h.run("--dry-run", "--yes"))
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t, "", false)
	path := filepath.Join(h.home, "custom.yml")

	require.NoError(t, h.run("--config", path, "config", "init"))
	assert.Contains(t, h.out.String(), "wrote "+path)
	assert.Error(t, h.run("--config", path, "config", "init"))
	require.NoError(t, h.run("--config", path, "config", "init", "--force"))

	h.out.Reset()
	require.NoError(t, h.run("--config", path, "config", "path"))
	assert.Equal(t, path+"\n", h.out.String())

	require.NoError(t, h.run("--config", path, "config", "set", "providers.groq.api_key", "gsk-abcdefghijklmnop"))

	h.out.Reset()
	require.NoError(t, h.run("--config", path, "config", "show"))
	assert.Contains(t, h.out.String(), "# source: "+path)
	assert.Contains(t, h.out.String(), "gsk-…mnop")
	assert.NotContains(t, h.out.String(), "gsk-abcdefghijklmnop")

	err := h.run("--config", path, "config", "set", "provider", "gorq")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "gorq"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gorq")
}

func TestCompletionCommands(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("completion", "fish"))
	assert.Contains(t, h.out.String(), "complete -c gh-commit-ai")

	h.out.Reset()
	require.NoError(t, h.run("install-completion"))
	target := filepath.Join(h.home, ".zsh", "completions", "_gh-commit-ai")
	assert.Contains(t, h.out.String(), "zsh completion installed to "+target)
	assert.FileExists(t, target)

	require.NoError(t, h.run("install-completion", "bash"))
	assert.FileExists(t, filepath.Join(h.home, ".local", "share", "bash-completion", "completions", "gh-commit-ai"))

	assert.Error(t, h.run("completion", "tcsh"))
}

func TestDoctor(t *testing.T) {
	h := newHarness(t, "", false)
	require.NoError(t, h.run("doctor"))
	out := h.out.String()
	assert.Contains(t, out, "✅ git 2.43.0")
	assert.Contains(t, out, "✅ repository on branch feature/GCA-7-hooks")
	assert.Contains(t, out, "✅ 1 file(s) staged")
	assert.Contains(t, out, "no config file")
	assert.Contains(t, out, "primary provider ollama ready (model qwen2.5-coder:1.5b)")
	assert.Contains(t, out, "OPENAI_API_KEY")

	h = newHarness(t, "", false)
	h.repo.version = "2.1.0"
	h.repo.branchErr = git.ErrNotRepository
	prefix := t.TempDir()
	err := h.run("doctor", "--prefix", prefix)
	require.Error(t, err)
	out = h.out.String()
	assert.Contains(t, out, "❌ git 2.1.0 is older than 2.20.0")
	assert.Contains(t, out, "not inside a git repository")
	assert.Contains(t, out, "missing "+filepath.Join(prefix, "bin", "gh-commit-ai"))
}

func TestDoctorReportsKeySource(t *testing.T) {
	h := newHarness(t, "", false)
	t.Setenv(config.EnvPrefix+"_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "gsk-from-env")
	require.NoError(t, h.run("doctor"))
	assert.Contains(t, h.out.String(), "primary provider groq ready (model llama-3.3-70b-versatile, key from GROQ_API_KEY)")
}

func TestCheckGitVersion(t *testing.T) {
	ok, err := checkGitVersion("2.20.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkGitVersion("2.19.1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = checkGitVersion("not-a-version")
	assert.Error(t, err)
}

func TestNewDispatcher(t *testing.T) {
	isolate(t)

	cfg := &config.Config{Provider: "groq"}
	_, err := NewDispatcher(cfg, nil)
	assert.True(t, errors.Is(err, provider.ErrMissingCredentials))

	cfg = &config.Config{Provider: "ollama", Fallback: []string{"groq", "anthropic"}}
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	d, err := NewDispatcher(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []provider.Name{provider.Ollama, provider.Anthropic}, d.Providers())
}

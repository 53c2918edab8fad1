package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
)

type fakeRepo struct {
	diff     string
	diffErr  error
	branch   string
	subjects []string
	asked    int
}

func (f *fakeRepo) StagedDiff(context.Context) (string, error) { return f.diff, f.diffErr }
func (f *fakeRepo) StagedFiles(context.Context) ([]string, error) {
	return nil, nil
}
func (f *fakeRepo) CurrentBranch(context.Context) (string, error) { return f.branch, nil }
func (f *fakeRepo) RecentSubjects(_ context.Context, n int) ([]string, error) {
	f.asked = n
	return f.subjects, nil
}
func (f *fakeRepo) Commit(context.Context, string, string) error { return nil }
func (f *fakeRepo) WriteHook(string, string) error              { return nil }

type fakeLLM struct {
	answers []string
	errs    []error
	reqs    []provider.Request
}

func (f *fakeLLM) Generate(_ context.Context, req provider.Request) (provider.Result, error) {
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return provider.Result{}, f.errs[i]
	}
	return provider.Result{Text: f.answers[i], Provider: provider.Groq}, nil
}

const stagedDiff = "diff --git a/internal/cli/root.go b/internal/cli/root.go\n--- a/internal/cli/root.go\n+++ b/internal/cli/root.go\n@@ -1 +1,2 @@\n-old\n+new\n+more\n"

func TestExecuteConventional(t *testing.T) {
	repo := &fakeRepo{diff: stagedDiff, branch: "feature/GCA-12-flags", subjects: []string{"feat: add x"}}
	llm := &fakeLLM{answers: []string{
		`{"commit_type":"feat","scope":"cli","description":"Add dry-run flag","summary":"print without committing","body":"Adds --dry-run."}`,
	}}
	svc := NewService(repo, llm, zaptest.NewLogger(t))

	res, err := svc.Execute(context.Background(), Options{
		MaxBytes: 10000, Conventional: true, IncludeTicket: true, RecentCommits: 3, Language: "english",
	})
	require.NoError(t, err)

	assert.Equal(t, "feat(cli): add dry-run flag", res.Message.Headline)
	assert.Equal(t, "Adds --dry-run.\n\nRefs: GCA-12", res.Message.Body)
	assert.Equal(t, provider.Groq, res.Provider)
	assert.False(t, res.Unstructured)
	assert.Equal(t, 3, repo.asked)

	require.Len(t, llm.reqs, 1)
	assert.Contains(t, llm.reqs[0].Prompt, "feature/GCA-12-flags")
	assert.Contains(t, llm.reqs[0].Prompt, "  - feat: add x")
	assert.Contains(t, llm.reqs[0].Prompt, "1 file changed, +2 -1")
	assert.Contains(t, llm.reqs[0].System, `"scope"`)
	assert.Equal(t, 0.2, llm.reqs[0].Temperature)
}

func TestExecuteWithReview(t *testing.T) {
	repo := &fakeRepo{diff: stagedDiff, branch: "main"}
	llm := &fakeLLM{answers: []string{"- possible nil deref", `{"commit_type":"fix","description":"guard nil"}`}}
	svc := NewService(repo, llm, nil)

	res, err := svc.Execute(context.Background(), Options{Review: true, ReviewModel: "big-model", Conventional: true})
	require.NoError(t, err)

	assert.Equal(t, "- possible nil deref", res.Review)
	assert.NoError(t, res.ReviewErr)
	assert.Equal(t, "fix: guard nil", res.Message.Headline)
	require.Len(t, llm.reqs, 2)
	assert.Equal(t, "big-model", llm.reqs[0].Model)
	assert.Equal(t, "", llm.reqs[1].Model)
}

func TestExecuteReviewFailureIsNotFatal(t *testing.T) {
	repo := &fakeRepo{diff: stagedDiff, branch: "main"}
	llm := &fakeLLM{
		answers: []string{"", `{"commit_type":"docs","description":"explain flags"}`},
		errs:    []error{errors.New("review boom")},
	}
	res, err := NewService(repo, llm, nil).Execute(context.Background(), Options{Review: true})
	require.NoError(t, err)
	assert.EqualError(t, res.ReviewErr, "review boom")
	assert.Equal(t, "[docs] explain flags", res.Message.Headline)
}

func TestExecuteFallsBackToFreeText(t *testing.T) {
	repo := &fakeRepo{diff: stagedDiff, branch: "main"}
	llm := &fakeLLM{answers: []string{"Fix flaky retry in dispatcher."}}

	res, err := NewService(repo, llm, nil).Execute(context.Background(), Options{Conventional: true, Type: "test", Scope: "provider"})
	require.NoError(t, err)
	assert.True(t, res.Unstructured)
	assert.Equal(t, "test(provider): fix flaky retry in dispatcher", res.Message.Headline)
	assert.Contains(t, llm.reqs[0].Prompt, `The commit_type MUST be "test"`)
}

func TestExecuteNoStagedChanges(t *testing.T) {
	svc := NewService(&fakeRepo{diff: " \n"}, &fakeLLM{}, nil)
	_, err := svc.Execute(context.Background(), Options{})
	assert.True(t, errors.Is(err, ErrNoStagedChanges))
	assert.Contains(t, errors.FlattenHints(err), "git add")
}

func TestExecutePropagatesErrors(t *testing.T) {
	svc := NewService(&fakeRepo{diffErr: errors.New("git missing")}, &fakeLLM{}, nil)
	_, err := svc.Execute(context.Background(), Options{})
	assert.EqualError(t, err, "git missing")

	llm := &fakeLLM{answers: []string{""}, errs: []error{&provider.StatusError{Provider: provider.Groq, Code: 401}}}
	svc = NewService(&fakeRepo{diff: stagedDiff, branch: "main"}, llm, nil)
	_, err = svc.Execute(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "generate commit message"))
}

func TestExecuteUninitialised(t *testing.T) {
	var svc *Service
	_, err := svc.Execute(context.Background(), Options{})
	assert.Error(t, err)
}

func TestExecuteTruncatesDiff(t *testing.T) {
	big := "diff --git a/a.go b/a.go\n@@ -1 +1,400 @@\n" + strings.Repeat("+some generated line\n", 400)
	repo := &fakeRepo{diff: big, branch: "main"}
	llm := &fakeLLM{answers: []string{`{"commit_type":"chore","description":"regenerate"}`}}

	res, err := NewService(repo, llm, nil).Execute(context.Background(), Options{MaxBytes: 500})
	require.NoError(t, err)
	assert.True(t, res.Diff.Truncated)
	assert.LessOrEqual(t, len(res.Diff.Text), 600)
}

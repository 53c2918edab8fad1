package usecase

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nathanaelphilip/gh-commit-ai/internal/commit"
	"github.com/nathanaelphilip/gh-commit-ai/internal/diff"
	"github.com/nathanaelphilip/gh-commit-ai/internal/git"
	"github.com/nathanaelphilip/gh-commit-ai/internal/prompt"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
)

// ErrNoStagedChanges is returned when the index matches HEAD.
var ErrNoStagedChanges = errors.New("no staged changes detected")

// ErrEmptyMessage is returned when nothing usable came back from the model.
var ErrEmptyMessage = errors.New("model returned an empty message")

// Generator represents the behaviour needed from the provider chain.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (provider.Result, error)
}

// Service orchestrates the review and commit message generation flow.
type Service struct {
	Repo git.Repository
	LLM  Generator
	Log  *zap.Logger
}

// Result captures the outputs of the use case.
type Result struct {
	Review    string
	ReviewErr error
	Message   commit.Message
	Diff      diff.Summary
	Branch    string
	Provider  provider.Name
	Raw       string
	// Unstructured is set when the answer was not JSON and the message was
	// salvaged from free text.
	Unstructured bool
}

// Options is a light copy of the config options needed inside the use case.
type Options struct {
	ReviewModel   string
	MaxBytes      int
	Exclude       []string
	Review        bool
	Conventional  bool
	IncludeTicket bool
	Type          string
	Scope         string
	Language      string
	Context       string
	RecentCommits int
}

// NewService constructs a Service with the provided dependencies.
func NewService(repo git.Repository, llm Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Repo: repo, LLM: llm, Log: log}
}

// Execute performs the review+generation workflow.
func (s *Service) Execute(ctx context.Context, opts Options) (Result, error) {
	if s == nil || s.Repo == nil || s.LLM == nil {
		return Result{}, errors.New("service not properly initialized")
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}

	raw, err := s.Repo.StagedDiff(ctx)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, errors.WithHint(ErrNoStagedChanges, "stage your changes first: `git add ...`")
	}

	summary := diff.Summarize(raw, diff.Options{MaxBytes: opts.MaxBytes, Exclude: opts.Exclude})
	if summary.Truncated {
		s.Log.Info("diff trimmed to fit the prompt budget",
			zap.Int("raw_bytes", len(raw)),
			zap.Int("max_bytes", opts.MaxBytes))
	}

	branch, err := s.Repo.CurrentBranch(ctx)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Diff:   summary,
		Branch: branch,
	}

	if opts.Review {
		review, err := s.LLM.Generate(ctx, provider.Request{
			Model:       opts.ReviewModel,
			System:      prompt.ReviewSystem(),
			Prompt:      prompt.ReviewUser(summary.Text),
			Temperature: 0.1,
			TopP:        0.9,
			MaxTokens:   400,
		})
		if err != nil {
			s.Log.Warn("review failed", zap.Error(err))
			result.ReviewErr = err
		} else {
			result.Review = strings.TrimSpace(review.Text)
		}
	}

	var recent []string
	if opts.RecentCommits > 0 {
		recent, err = s.Repo.RecentSubjects(ctx, opts.RecentCommits)
		if err != nil {
			s.Log.Debug("could not read recent commits", zap.Error(err))
			recent = nil
		}
	}

	in := prompt.CommitInput{
		Diff:           summary.Text,
		Branch:         branch,
		Types:          commit.Types(),
		Conventional:   opts.Conventional,
		ForceType:      opts.Type,
		ForceScope:     opts.Scope,
		Language:       opts.Language,
		Context:        opts.Context,
		RecentSubjects: recent,
	}
	gen, err := s.LLM.Generate(ctx, provider.Request{
		System:      prompt.CommitSystem(in),
		Prompt:      prompt.CommitUser(in),
		Temperature: 0.2,
		TopP:        0.9,
		MaxTokens:   300,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "generate commit message")
	}
	result.Provider = gen.Provider
	result.Raw = gen.Text

	parts, err := commit.ParseParts(gen.Text)
	if err != nil {
		s.Log.Debug("model answer was not structured, salvaging free text",
			zap.String("provider", string(gen.Provider)),
			zap.Error(err))
		parts = commit.FallbackParts(gen.Text)
		result.Unstructured = true
	}

	result.Message = commit.BuildMessage(parts, commit.Options{
		Branch:        branch,
		Conventional:  opts.Conventional,
		IncludeTicket: opts.IncludeTicket,
		ForceType:     opts.Type,
		ForceScope:    opts.Scope,
	})
	if strings.TrimSpace(result.Message.Headline) == "" {
		return Result{}, errors.WithHint(ErrEmptyMessage, "try a larger model or a smaller diff (--max-bytes)")
	}
	return result, nil
}

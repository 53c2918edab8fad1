package commit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParts(t *testing.T) {
	raw := "Sure! Here it is:\n```json\n" +
		`{"commit_type":"Feature","scope":"Git","description":"Add staged file listing.","summary":"list staged files via go-git","body":"Use the worktree status instead of shelling out.","breaking":"yes"}` +
		"\n```"

	p, err := ParseParts(raw)
	require.NoError(t, err)

	assert.Equal(t, "feat", p.CommitType)
	assert.Equal(t, "git", p.Scope)
	assert.Equal(t, "Add staged file listing", p.Description)
	assert.Equal(t, "list staged files via go-git", p.Summary)
	assert.Equal(t, "Use the worktree status instead of shelling out.", p.Body)
	assert.True(t, bool(p.Breaking))
}

func TestParsePartsErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "   ",
		"no object":      "feat: add things",
		"bad json":       `{"commit_type": }`,
		"no description": `{"commit_type":"fix","description":"  "}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParts(raw)
			assert.Error(t, err)
		})
	}
}

func TestNormaliseCommitType(t *testing.T) {
	tests := map[string]string{
		"":              "chore",
		"[FIX]":         "fix",
		"bugfix":        "fix",
		"features":      "feat",
		"documentation": "docs",
		"testing":       "test",
		"styles":        "style",
		"revert":        "revert",
		"whatever":      "chore",
	}
	for in, want := range tests {
		assert.Equal(t, want, normaliseCommitType(in), in)
	}
}

func TestFallbackParts(t *testing.T) {
	p := FallbackParts("```\nfix(api): Handle timeout when provider is slow.\n\nRetry once before failing.\n```")

	assert.Equal(t, "fix", p.CommitType)
	assert.Equal(t, "Handle timeout when provider is slow", p.Description)
	assert.Equal(t, "Retry once before failing.", p.Body)

	empty := FallbackParts("")
	assert.Equal(t, "update project files", empty.Description)
	assert.Equal(t, "chore", empty.CommitType)
}

func TestBuildMessageConventional(t *testing.T) {
	msg := BuildMessage(Parts{
		CommitType:  "feat",
		Scope:       "provider",
		Description: "Add groq support",
		Summary:     "talk to groq",
		Body:        "Groq exposes an OpenAI compatible API.",
	}, Options{Branch: "feature/GCA-42-groq", Conventional: true, IncludeTicket: true})

	assert.Equal(t, "feat(provider): add groq support", msg.Headline)
	assert.Equal(t, "Groq exposes an OpenAI compatible API.\n\nRefs: GCA-42", msg.Body)
	assert.Equal(t, msg.Headline+"\n\n"+msg.Body, msg.String())
}

func TestBuildMessageBreakingAndOverrides(t *testing.T) {
	msg := BuildMessage(Parts{
		CommitType:  "feat",
		Description: "Drop v1 config keys",
		Breaking:    true,
	}, Options{Branch: "main", Conventional: true, IncludeTicket: true, ForceType: "refactor", ForceScope: "Config Loader"})

	assert.Equal(t, "refactor(config-loader)!: drop v1 config keys", msg.Headline)
	assert.Equal(t, "Drop v1 config keys", msg.Body)
	assert.NotContains(t, msg.Body, "Refs:")
}

func TestBuildMessageTicketFormat(t *testing.T) {
	msg := BuildMessage(Parts{CommitType: "fix", Description: "handle nil pointer"}, Options{Branch: "bugfix/JIRA-7-nil", IncludeTicket: true})
	assert.Equal(t, "JIRA-7 [fix] handle nil pointer", msg.Headline)

	msg = BuildMessage(Parts{CommitType: "fix", Description: "handle nil pointer"}, Options{Branch: "release/next", IncludeTicket: true})
	assert.Equal(t, "next [fix] handle nil pointer", msg.Headline)

	msg = BuildMessage(Parts{CommitType: "fix", Description: "handle nil pointer"}, Options{})
	assert.Equal(t, "[fix] handle nil pointer", msg.Headline)
}

func TestTicketFromBranch(t *testing.T) {
	cases := map[string]string{
		"feature/ABC-42-core-api": "ABC-42",
		"GCA-7":                   "GCA-7",
		"bugfix/PROJ2-101_nil":    "PROJ2-101",
		"hotfix/python-3-support": "",
		"feature/oauth-2-login":   "",
		"release/v1-2":            "",
		"feature/abc-42-lower":    "",
		"feature/A-1-single":      "",
		"feature/ABC-12x":         "",
		"main":                    "",
	}
	for branch, want := range cases {
		got, ok := ticketFromBranch(branch)
		assert.Equal(t, want, got, branch)
		assert.Equal(t, want != "", ok, branch)
	}

	msg := BuildMessage(Parts{CommitType: "feat", Description: "python three support"},
		Options{Branch: "hotfix/python-3-support", Conventional: true, IncludeTicket: true})
	assert.NotContains(t, msg.Body, "Refs:")
}

func TestBuildMessageDefaults(t *testing.T) {
	msg := BuildMessage(Parts{}, Options{Conventional: true})
	assert.Equal(t, "chore: update project files", msg.Headline)
	assert.Equal(t, "update project files", msg.Body)

	msg = BuildMessage(Parts{Summary: "Bump deps."}, Options{Conventional: true})
	assert.Equal(t, "chore: bump deps", msg.Headline)
}

func TestBuildMessageKeepsAcronym(t *testing.T) {
	msg := BuildMessage(Parts{CommitType: "docs", Description: "README usage section"}, Options{Conventional: true})
	assert.Equal(t, "docs: README usage section", msg.Headline)
}

func TestSanitizeBodyWrapsBullets(t *testing.T) {
	long := "- " + strings.Repeat("word ", 20)
	body := sanitizeBody(long, "")

	lines := strings.Split(body, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "- word"))
	assert.True(t, strings.HasPrefix(lines[1], "  word"))
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 74)
	}
}

func TestDescriptionLimit(t *testing.T) {
	d := sanitizeDescription(strings.Repeat("a", 100))
	assert.Equal(t, 72, len([]rune(d)))
	assert.True(t, strings.HasSuffix(d, "…"))
}

func TestMessageStringWithoutBody(t *testing.T) {
	assert.Equal(t, "fix: x", Message{Headline: "fix: x", Body: "  "}.String())
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType("Feature"))
	assert.False(t, ValidType("party"))
	assert.Contains(t, Types(), "chore")
}

func TestParseMessage(t *testing.T) {
	edited := "# Please enter the commit message\n\nfeat(cli): add --hook flag  \n\nWrites the message for\nprepare-commit-msg.\n# trailing comment\n"
	m := ParseMessage(edited)
	assert.Equal(t, "feat(cli): add --hook flag", m.Headline)
	assert.Equal(t, "Writes the message for\nprepare-commit-msg.", m.Body)

	assert.Equal(t, Message{}, ParseMessage("# only comments\n\n"))
}

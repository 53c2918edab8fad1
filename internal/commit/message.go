package commit

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nathanaelphilip/gh-commit-ai/internal/util"
)

const (
	maxDescription = 72
	maxSummary     = 100
	maxBodyLine    = 300
	bodyWidth      = 72
	defaultType    = "chore"
	defaultSubject = "update project files"
)

// Flag is a bool that also accepts "true"/"yes" strings, which smaller models
// like to emit.
type Flag bool

// UnmarshalJSON accepts a JSON boolean or a yes-like string; anything else is false.
func (f *Flag) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = Flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*f = false
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Parts represents the structured information returned by the model.
type Parts struct {
	CommitType  string `json:"commit_type"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Body        string `json:"body"`
	Breaking    Flag   `json:"breaking"`
}

// Message holds the final headline and body to be presented or committed.
type Message struct {
	Headline string
	Body     string
}

// String renders the message the way git stores it.
func (m Message) String() string {
	if strings.TrimSpace(m.Body) == "" {
		return m.Headline
	}
	return m.Headline + "\n\n" + m.Body
}

// ParseMessage reads a message back from an edited file. Lines starting with
// '#' are dropped, as git does; the first non-blank line is the headline.
func ParseMessage(text string) Message {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	for len(kept) > 0 && strings.TrimSpace(kept[0]) == "" {
		kept = kept[1:]
	}
	if len(kept) == 0 {
		return Message{}
	}
	return Message{
		Headline: strings.TrimSpace(kept[0]),
		Body:     strings.TrimSpace(strings.Join(kept[1:], "\n")),
	}
}

// Options controls how Parts are rendered into a Message.
type Options struct {
	Branch        string
	Conventional  bool
	IncludeTicket bool
	// ForceType and ForceScope override what the model chose.
	ForceType  string
	ForceScope string
}

var (
	allowedCommitTypes = map[string]string{
		"feat":     "feat",
		"feature":  "feat",
		"fix":      "fix",
		"bugfix":   "fix",
		"hotfix":   "fix",
		"perf":     "perf",
		"refactor": "refactor",
		"docs":     "docs",
		"doc":      "docs",
		"test":     "test",
		"tests":    "test",
		"build":    "build",
		"chore":    "chore",
		"ci":       "ci",
		"style":    "style",
		"revert":   "revert",
	}
	// longest first so "feature..." wins over "feat..." deterministically
	typePrefixes = []string{"refactor", "feature", "bugfix", "hotfix", "revert", "chore", "build", "style", "tests", "docs", "feat", "perf", "test", "doc", "fix", "ci"}

	ticketPattern  = regexp.MustCompile(`^([A-Z][A-Z0-9]+-\d+)(?:[-_.]|$)`)
	typeEcho       = regexp.MustCompile(`^[a-z]+(\([^)]*\))?!?:\s*`)
	scopeSanitizer = regexp.MustCompile(`[^a-z0-9._/-]+`)
	commitKeywords = []string{"fix", "feat", "perf", "refactor", "docs", "test", "build", "ci"}
)

// Types lists the canonical commit types in the order they are offered to the model.
func Types() []string {
	return []string{"feat", "fix", "perf", "refactor", "docs", "test", "build", "ci", "style", "revert", "chore"}
}

// ValidType reports whether t maps onto a known commit type.
func ValidType(t string) bool {
	_, ok := allowedCommitTypes[strings.ToLower(strings.TrimSpace(t))]
	return ok
}

// ParseParts normalises the model output into Parts enforcing length limits.
func ParseParts(raw string) (Parts, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Parts{}, errors.New("empty response")
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || start > end {
		return Parts{}, errors.New("response missing JSON object")
	}

	var p Parts
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return Parts{}, errors.Wrap(err, "decode commit parts")
	}

	p = normaliseParts(p)
	if p.Description == "" {
		return Parts{}, errors.New("response missing description")
	}
	return p, nil
}

// FallbackParts attempts to build a meaningful Parts struct from an arbitrary string.
func FallbackParts(raw string) Parts {
	raw = stripFences(raw)
	lines := util.TrimLines(raw)

	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}

	commitType := detectCommitType(raw)
	if m := typeEcho.FindString(first); m != "" {
		commitType = normaliseCommitType(strings.SplitN(m, "(", 2)[0])
	}

	clean := sanitizeDescription(first)
	if clean == "" {
		clean = defaultSubject
	}

	summary := sanitizeSummary(first)
	if summary == "" {
		summary = util.TruncateShorten(clean, maxSummary)
	}

	body := ""
	if len(lines) > 1 {
		body = strings.Join(lines[1:], "\n")
	}

	return Parts{
		CommitType:  commitType,
		Description: clean,
		Summary:     summary,
		Body:        sanitizeBody(body, ""),
	}
}

// BuildMessage creates the final printable/committable representation.
func BuildMessage(parts Parts, opts Options) Message {
	commitType := normaliseCommitType(parts.CommitType)
	if opts.ForceType != "" {
		commitType = normaliseCommitType(opts.ForceType)
	}
	scope := sanitizeScope(parts.Scope)
	if opts.ForceScope != "" {
		scope = sanitizeScope(opts.ForceScope)
	}

	summary := sanitizeSummary(parts.Summary)

	description := sanitizeDescription(parts.Description)
	if description == "" {
		if summary != "" {
			description = sanitizeDescription(summary)
		} else {
			description = defaultSubject
		}
	}

	if summary == "" {
		summary = util.TruncateShorten(description, maxSummary)
	}

	body := sanitizeBody(parts.Body, summary)

	if !opts.Conventional {
		segments := []string{"[" + commitType + "]", description}
		if opts.IncludeTicket {
			segments = append([]string{extractTicket(opts.Branch)}, segments...)
		}
		return Message{
			Headline: strings.TrimSpace(strings.Join(segments, " ")),
			Body:     body,
		}
	}

	var head strings.Builder
	head.WriteString(commitType)
	if scope != "" {
		head.WriteString("(" + scope + ")")
	}
	if parts.Breaking {
		head.WriteString("!")
	}
	head.WriteString(": ")
	head.WriteString(util.LowerFirst(description))

	if opts.IncludeTicket {
		if ticket, ok := ticketFromBranch(opts.Branch); ok {
			trailer := "Refs: " + ticket
			if body == "" {
				body = trailer
			} else {
				body += "\n\n" + trailer
			}
		}
	}

	return Message{
		Headline: head.String(),
		Body:     body,
	}
}

func normaliseParts(p Parts) Parts {
	p.CommitType = normaliseCommitType(p.CommitType)
	p.Scope = sanitizeScope(p.Scope)
	p.Description = sanitizeDescription(p.Description)
	p.Summary = sanitizeSummary(p.Summary)
	p.Body = sanitizeBody(p.Body, p.Summary)
	return p
}

func normaliseCommitType(t string) string {
	candidate := strings.ToLower(strings.TrimSpace(t))
	candidate = strings.Trim(candidate, "[]")
	if candidate == "" {
		return defaultType
	}
	if mapped, ok := allowedCommitTypes[candidate]; ok {
		return mapped
	}
	for _, key := range typePrefixes {
		if strings.HasPrefix(candidate, key) {
			return allowedCommitTypes[key]
		}
	}
	return defaultType
}

func detectCommitType(raw string) string {
	lower := strings.ToLower(raw)
	for _, candidate := range commitKeywords {
		if strings.Contains(lower, candidate) {
			return normaliseCommitType(candidate)
		}
	}
	return defaultType
}

func sanitizeScope(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "()")
	s = scopeSanitizer.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func sanitizeDescription(s string) string {
	s = util.CondenseSpaces(strings.TrimSpace(s))
	s = typeEcho.ReplaceAllString(s, "")
	s = strings.Trim(s, "`\"' ")
	if s == "" {
		return ""
	}
	if len([]rune(s)) > maxDescription {
		s = util.TruncateShorten(s, maxDescription)
	}
	return strings.TrimRight(s, ". ")
}

func sanitizeSummary(s string) string {
	s = util.CondenseSpaces(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if len([]rune(s)) > maxSummary {
		s = util.TruncateShorten(s, maxSummary)
	}
	return s
}

func sanitizeBody(body, summary string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		body = summary
	}

	lines := util.TrimLines(body)
	if len(lines) == 0 {
		return ""
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = util.CondenseSpaces(line)
		if len([]rune(line)) > maxBodyLine {
			line = util.TruncateShorten(line, maxBodyLine)
		}

		indent := ""
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			indent = "  "
		}
		for i, w := range util.Wrap(line, bodyWidth) {
			if i > 0 {
				w = indent + w
			}
			out = append(out, w)
		}
	}

	return strings.Join(out, "\n")
}

func stripFences(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

func ticketFromBranch(branch string) (string, bool) {
	branch = strings.TrimSpace(branch)
	if idx := strings.LastIndex(branch, "/"); idx != -1 && idx < len(branch)-1 {
		branch = branch[idx+1:]
	}
	if m := ticketPattern.FindStringSubmatch(branch); len(m) == 2 {
		return m[1], true
	}
	return "", false
}

func extractTicket(branch string) string {
	branch = util.CondenseSpaces(strings.TrimSpace(branch))
	if branch == "" {
		return "unknown"
	}

	if ticket, ok := ticketFromBranch(branch); ok {
		return ticket
	}

	if idx := strings.LastIndex(branch, "/"); idx != -1 && idx < len(branch)-1 {
		branch = branch[idx+1:]
	}
	return branch
}

package prompt

import (
	"fmt"
	"strings"
)

// CommitInput carries everything the commit prompt can mention.
type CommitInput struct {
	Diff           string
	Branch         string
	Types          []string
	Conventional   bool
	ForceType      string
	ForceScope     string
	Language       string
	Context        string
	RecentSubjects []string
}

// CommitSystem returns the stable instructions for commit generation. Chat
// providers receive it as the system message.
func CommitSystem(in CommitInput) string {
	var b strings.Builder
	b.WriteString("You help craft git commit messages.\n")
	b.WriteString("Analyse the staged diff and respond with a single JSON object describing the commit.\n\n")

	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- \"commit_type\": choose the best fit from [%s].\n", quoteList(in.Types))
	if in.Conventional {
		b.WriteString("- \"scope\": optional short noun for the area touched (package, module or component), lower case, or \"\".\n")
	}
	b.WriteString("- \"description\": short imperative summary of what changed (<= 72 characters, no trailing punctuation, lower case start).\n")
	b.WriteString("- \"summary\": brief reason or impact of the change (<= 100 characters).\n")
	b.WriteString("- \"body\": 1-3 sentences that highlight key details or rationale (<= 300 characters). Use newline separators if listing items.\n")
	if in.Conventional {
		b.WriteString("- \"breaking\": true only when the change breaks a public API, CLI flag or config key.\n")
	}
	if lang := strings.TrimSpace(in.Language); lang != "" && !strings.EqualFold(lang, "english") {
		fmt.Fprintf(&b, "- Write description, summary and body in %s. Keep commit_type and scope in English.\n", lang)
	}
	b.WriteString("- Output only valid JSON. No prose, markdown, or backticks.\n\n")

	b.WriteString("Example:\n")
	if in.Conventional {
		b.WriteString(`{"commit_type":"fix","scope":"parser","description":"handle nil pointer in parser","summary":"avoid panic when schema metadata missing","body":"Add nil check before parser access to prevent runtime crash.","breaking":false}`)
	} else {
		b.WriteString(`{"commit_type":"fix","description":"handle nil pointer in parser","summary":"avoid panic when schema metadata missing","body":"Add nil check before parser access to prevent runtime crash."}`)
	}
	b.WriteString("\n")
	return b.String()
}

// CommitUser returns the per-run part of the prompt: branch, constraints and diff.
func CommitUser(in CommitInput) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Branch: %s\n", in.Branch)
	if t := strings.TrimSpace(in.ForceType); t != "" {
		fmt.Fprintf(&b, "- The commit_type MUST be %q.\n", t)
	}
	if s := strings.TrimSpace(in.ForceScope); s != "" {
		fmt.Fprintf(&b, "- The scope MUST be %q.\n", s)
	}
	if note := strings.TrimSpace(in.Context); note != "" {
		fmt.Fprintf(&b, "- Developer note: %s\n", note)
	}
	if len(in.RecentSubjects) > 0 {
		b.WriteString("- Recent commit subjects in this repository (match their tone):\n")
		for _, s := range in.RecentSubjects {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	b.WriteString("- Diff:\n")
	b.WriteString(in.Diff)
	b.WriteString("\n")
	return b.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = `"` + it + `"`
	}
	return strings.Join(quoted, ",")
}

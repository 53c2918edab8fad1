package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathanaelphilip/gh-commit-ai/internal/commit"
	"github.com/nathanaelphilip/gh-commit-ai/internal/usecase"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	headlineStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	reviewStyle   = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("214")).
			PaddingLeft(1)
)

// renderPreview boxes the message with a one-line footer naming the provider
// and the diff size.
func renderPreview(msg commit.Message, res usecase.Result) string {
	var b strings.Builder
	b.WriteString(headlineStyle.Render(msg.Headline))
	if body := strings.TrimSpace(msg.Body); body != "" {
		b.WriteString("\n\n" + body)
	}

	footer := fmt.Sprintf("%s · %d file(s) · +%d -%d", res.Provider, len(res.Diff.Files)+len(res.Diff.Excluded), res.Diff.Added, res.Diff.Removed)
	if res.Diff.Truncated {
		footer += " · diff truncated"
	}
	if res.Unstructured {
		footer += " · free-text answer"
	}
	return boxStyle.Render(b.String()) + "\n" + mutedStyle.Render(footer)
}

func renderReview(review string) string {
	return headlineStyle.Render("Review findings:") + "\n" + reviewStyle.Render(review)
}

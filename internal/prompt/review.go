package prompt

import "fmt"

// NoIssues is what the reviewer answers when it has nothing to report.
const NoIssues = "No blocking issues found."

// ReviewSystem holds the reviewer instructions.
func ReviewSystem() string {
	return `You are a meticulous senior engineer.
Review the following git diff and highlight any potential issues.

Return plain text following this format:
- If you see problems: list each on its own line starting with "- " and keep each finding under 160 characters.
- If the changes look good: respond with "` + NoIssues + `"

Focus on correctness, security, performance, tests, and edge cases. Do not mention formatting unless it hides a bug.
`
}

// ReviewUser wraps the diff under review.
func ReviewUser(diff string) string {
	return fmt.Sprintf("Diff:\n%s\n", diff)
}

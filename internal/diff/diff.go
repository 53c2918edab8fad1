// Package diff splits a staged unified diff into per-file entries and renders
// a budgeted summary that fits in a model prompt.
package diff

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/nathanaelphilip/gh-commit-ai/internal/util"
)

// Status is the kind of change a file went through.
type Status string

const (
	Added    Status = "A"
	Modified Status = "M"
	Deleted  Status = "D"
	Renamed  Status = "R"
)

// DefaultExclude lists generated files whose hunks rarely help the model.
var DefaultExclude = []string{
	"*.lock",
	"go.sum",
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
	"*.min.js",
	"*.min.css",
	"vendor/",
	"node_modules/",
}

// File is one file section of a unified diff.
type File struct {
	Path    string
	OldPath string
	Status  Status
	Binary  bool
	Added   int
	Removed int

	text string
}

// Text returns the raw diff section for the file.
func (f File) Text() string { return f.text }

// Stat renders a one line description such as "M internal/git/repo.go (+3 -1)".
func (f File) Stat() string {
	name := f.Path
	if f.Status == Renamed && f.OldPath != "" && f.OldPath != f.Path {
		name = f.OldPath + " → " + f.Path
	}
	if f.Binary {
		return fmt.Sprintf("%s %s (binary)", f.Status, name)
	}
	return fmt.Sprintf("%s %s (+%d -%d)", f.Status, name, f.Added, f.Removed)
}

// Parse splits the output of `git diff` into files. Text before the first
// "diff --git" header is ignored.
func Parse(raw string) []File {
	var (
		files   []File
		cur     *File
		buf     strings.Builder
		inHunks bool
	)

	flush := func() {
		if cur != nil {
			cur.text = buf.String()
			files = append(files, *cur)
		}
		buf.Reset()
		inHunks = false
	}

	for _, line := range strings.SplitAfter(raw, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(trimmed, "diff --git ") {
			flush()
			oldPath, newPath := parseGitHeader(trimmed)
			cur = &File{Path: newPath, OldPath: oldPath, Status: Modified}
			buf.WriteString(line)
			continue
		}
		if cur == nil {
			continue
		}
		buf.WriteString(line)

		if inHunks {
			switch {
			case strings.HasPrefix(trimmed, "+"):
				cur.Added++
			case strings.HasPrefix(trimmed, "-"):
				cur.Removed++
			}
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "@@"):
			inHunks = true
		case strings.HasPrefix(trimmed, "new file mode"):
			cur.Status = Added
		case strings.HasPrefix(trimmed, "deleted file mode"):
			cur.Status = Deleted
		case strings.HasPrefix(trimmed, "rename from "):
			cur.Status = Renamed
			cur.OldPath = strings.TrimPrefix(trimmed, "rename from ")
		case strings.HasPrefix(trimmed, "rename to "):
			cur.Status = Renamed
			cur.Path = strings.TrimPrefix(trimmed, "rename to ")
		case strings.HasPrefix(trimmed, "Binary files "):
			cur.Binary = true
		case strings.HasPrefix(trimmed, "+++ "):
			if p := strings.TrimPrefix(trimmed, "+++ "); p != "/dev/null" {
				cur.Path = strings.TrimPrefix(p, "b/")
			}
		case strings.HasPrefix(trimmed, "--- "):
			if p := strings.TrimPrefix(trimmed, "--- "); p != "/dev/null" {
				cur.OldPath = strings.TrimPrefix(p, "a/")
			}
		}
	}
	flush()

	return files
}

func parseGitHeader(line string) (string, string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	idx := strings.LastIndex(rest, " b/")
	if idx == -1 {
		return rest, rest
	}
	return strings.TrimPrefix(rest[:idx], "a/"), rest[idx+3:]
}

// Options tunes Summarize.
type Options struct {
	// MaxBytes caps the rendered text; zero or less disables the cap.
	MaxBytes int
	// Exclude holds path globs; a trailing slash matches a directory prefix.
	Exclude []string
}

// Summary is the prompt-ready view of a staged diff.
type Summary struct {
	Files     []File
	Excluded  []File
	Added     int
	Removed   int
	Text      string
	Truncated bool
}

// Empty reports whether there was nothing staged.
func (s Summary) Empty() bool {
	return len(s.Files) == 0 && len(s.Excluded) == 0
}

// Paths lists every staged path, excluded ones included.
func (s Summary) Paths() []string {
	out := make([]string, 0, len(s.Files)+len(s.Excluded))
	for _, f := range s.Files {
		out = append(out, f.Path)
	}
	for _, f := range s.Excluded {
		out = append(out, f.Path)
	}
	return out
}

// Summarize parses raw and renders a stat header followed by the file
// hunks. When the budget is exceeded the largest files collapse to their stat
// line first; whatever still does not fit is cut on a line boundary.
func Summarize(raw string, opts Options) Summary {
	var s Summary
	for _, f := range Parse(raw) {
		s.Added += f.Added
		s.Removed += f.Removed
		if Excluded(f.Path, opts.Exclude) {
			s.Excluded = append(s.Excluded, f)
			continue
		}
		s.Files = append(s.Files, f)
	}
	if s.Empty() {
		// Not something we could parse; hand the raw text through.
		s.Text = util.TrimTo(strings.TrimSpace(raw), opts.MaxBytes)
		s.Truncated = len(s.Text) < len(strings.TrimSpace(raw))
		return s
	}

	header := s.header()
	bodies := make([]string, len(s.Files))
	for i, f := range s.Files {
		bodies[i] = f.text
	}

	if opts.MaxBytes > 0 && size(header, bodies) > opts.MaxBytes {
		s.Truncated = true
		order := make([]int, len(bodies))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return len(bodies[order[a]]) > len(bodies[order[b]])
		})
		for _, i := range order {
			if size(header, bodies) <= opts.MaxBytes {
				break
			}
			stub := fmt.Sprintf("diff --git a/%s b/%s (hunks omitted: %s)\n", s.Files[i].OldPath, s.Files[i].Path, s.Files[i].Stat())
			if len(stub) < len(bodies[i]) {
				bodies[i] = stub
			}
		}
	}

	text := header + "\n" + strings.Join(bodies, "")
	if opts.MaxBytes > 0 && len(text) > opts.MaxBytes {
		s.Truncated = true
		text = util.TrimTo(text, opts.MaxBytes)
	}
	s.Text = strings.TrimRight(text, "\n")
	return s
}

func (s Summary) header() string {
	var b strings.Builder
	total := len(s.Files) + len(s.Excluded)
	noun := "files"
	if total == 1 {
		noun = "file"
	}
	fmt.Fprintf(&b, "%d %s changed, +%d -%d\n", total, noun, s.Added, s.Removed)
	for _, f := range s.Files {
		b.WriteString(" " + f.Stat() + "\n")
	}
	for _, f := range s.Excluded {
		b.WriteString(" " + f.Stat() + " [excluded]\n")
	}
	return b.String()
}

func size(header string, bodies []string) int {
	n := len(header) + 1
	for _, b := range bodies {
		n += len(b)
	}
	return n
}

// Excluded reports whether p matches one of the patterns.
func Excluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(p, pattern) || strings.Contains(p, "/"+pattern) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(p)); ok {
			return true
		}
	}
	return false
}

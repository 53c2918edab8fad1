// Package install describes where a packaged gh-commit-ai puts its files and
// checks that an installation is complete.
package install

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind is a destination directory class.
type Kind string

const (
	Bin            Kind = "bin"
	Man1           Kind = "man1"
	BashCompletion Kind = "bash_completion"
	ZshCompletion  Kind = "zsh_completion"
	Share          Kind = "share"
)

// Mapping is one source file and where it lands.
type Mapping struct {
	Source string
	Kind   Kind
	// Name is the installed file name.
	Name string
}

// Layout is the fixed set of files a package installs.
var Layout = []Mapping{
	{Source: "gh-commit-ai", Kind: Bin, Name: "gh-commit-ai"},
	{Source: "man/gh-commit-ai.1", Kind: Man1, Name: "gh-commit-ai.1"},
	{Source: "completions/gh-commit-ai.bash", Kind: BashCompletion, Name: "gh-commit-ai"},
	{Source: "completions/_gh-commit-ai", Kind: ZshCompletion, Name: "_gh-commit-ai"},
	{Source: ".gh-commit-ai.example.yml", Kind: Share, Name: ".gh-commit-ai.example.yml"},
}

// Dir returns the directory of kind k under prefix.
func Dir(prefix string, k Kind) string {
	switch k {
	case Bin:
		return filepath.Join(prefix, "bin")
	case Man1:
		return filepath.Join(prefix, "share", "man", "man1")
	case BashCompletion:
		return filepath.Join(prefix, "etc", "bash_completion.d")
	case ZshCompletion:
		return filepath.Join(prefix, "share", "zsh", "site-functions")
	case Share:
		return filepath.Join(prefix, "share", "gh-commit-ai")
	}
	return prefix
}

// Destination is the installed path of m under prefix.
func (m Mapping) Destination(prefix string) string {
	return filepath.Join(Dir(prefix, m.Kind), m.Name)
}

// Check is the outcome of looking for one installed file.
type Check struct {
	Mapping
	Path    string
	Present bool
}

// Verify reports every mapping's destination under prefix and whether it exists.
func Verify(prefix string) []Check {
	out := make([]Check, 0, len(Layout))
	for _, m := range Layout {
		p := m.Destination(prefix)
		info, err := os.Stat(p)
		out = append(out, Check{Mapping: m, Path: p, Present: err == nil && !info.IsDir()})
	}
	return out
}

// Missing filters checks down to absent files.
func Missing(checks []Check) []Check {
	var out []Check
	for _, c := range checks {
		if !c.Present {
			out = append(out, c)
		}
	}
	return out
}

// DefaultPrefix derives the install prefix from the running executable,
// following symlinks so a linked bin/ resolves to its real keg.
func DefaultPrefix() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "locate executable")
	}
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		exe = real
	}
	return filepath.Dir(filepath.Dir(exe)), nil
}

// Caveats is the post-install note shown to users of a packaged build.
func Caveats(prefix string) string {
	example := Layout[4].Destination(prefix)
	var b strings.Builder
	b.WriteString("Use it as a gh extension:  gh extension install nathanaelphilip/gh-commit-ai  (then: gh commit-ai)\n")
	b.WriteString("Or directly from PATH:     gh-commit-ai\n")
	b.WriteString("Bash completion:           " + Layout[2].Destination(prefix) + "\n")
	b.WriteString("Zsh completion:            " + Layout[3].Destination(prefix) + "\n")
	b.WriteString("Or run:                    gh-commit-ai install-completion\n")
	b.WriteString("Man page:                  man gh-commit-ai\n\n")
	b.WriteString("Setup:\n")
	b.WriteString("  cp " + example + " ~/.gh-commit-ai.yml   (or: gh-commit-ai config init)\n")
	b.WriteString("  Ollama (free, local):  https://ollama.ai\n")
	b.WriteString("  Groq (fast, free tier): export GROQ_API_KEY=\"gsk-...\"\n")
	b.WriteString("  Anthropic:              export ANTHROPIC_API_KEY=\"sk-ant-...\"\n")
	b.WriteString("  OpenAI:                 export OPENAI_API_KEY=\"sk-proj-...\"\n")
	return b.String()
}

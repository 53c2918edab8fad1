// Package completion renders shell completion scripts from the cobra command
// tree and installs them into the user's completion directories.
package completion

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Shell is a supported completion target.
type Shell string

const (
	Bash Shell = "bash"
	Zsh  Shell = "zsh"
	Fish Shell = "fish"
)

// ErrUnsupportedShell is returned for shells without a generator.
var ErrUnsupportedShell = errors.New("unsupported shell")

// Shells lists the supported shells.
func Shells() []Shell {
	return []Shell{Bash, Zsh, Fish}
}

// Parse validates a shell name.
func Parse(name string) (Shell, error) {
	sh := Shell(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range Shells() {
		if s == sh {
			return sh, nil
		}
	}
	return "", errors.WithHint(errors.Wrapf(ErrUnsupportedShell, "%q", name), "supported shells: bash, zsh, fish")
}

// Detect picks the shell from a $SHELL style path such as /bin/zsh.
func Detect(shellEnv string) (Shell, error) {
	if strings.TrimSpace(shellEnv) == "" {
		return "", errors.WithHint(errors.New("cannot detect shell: $SHELL is empty"),
			"name it explicitly: gh-commit-ai install-completion zsh")
	}
	return Parse(filepath.Base(shellEnv))
}

// Generate writes the completion script for sh.
func Generate(root *cobra.Command, sh Shell, w io.Writer) error {
	var err error
	switch sh {
	case Bash:
		err = root.GenBashCompletionV2(w, true)
	case Zsh:
		err = root.GenZshCompletion(w)
	case Fish:
		err = root.GenFishCompletion(w, true)
	default:
		return errors.Wrapf(ErrUnsupportedShell, "%q", sh)
	}
	return errors.Wrapf(err, "generate %s completion", sh)
}

// Target returns where the script for sh is installed for a user with the
// given home and XDG data directory (empty means ~/.local/share).
func Target(sh Shell, name, home, xdgDataHome string) string {
	if xdgDataHome == "" {
		xdgDataHome = filepath.Join(home, ".local", "share")
	}
	switch sh {
	case Bash:
		return filepath.Join(xdgDataHome, "bash-completion", "completions", name)
	case Zsh:
		return filepath.Join(home, ".zsh", "completions", "_"+name)
	case Fish:
		return filepath.Join(home, ".config", "fish", "completions", name+".fish")
	}
	return ""
}

// RCHint is the line a user adds to their shell rc file so the installed
// script is picked up. Fish autoloads its directory and needs nothing.
func RCHint(sh Shell, path string) string {
	switch sh {
	case Bash:
		return "[ -f " + path + " ] && source " + path
	case Zsh:
		return "fpath=(" + filepath.Dir(path) + " $fpath); autoload -Uz compinit && compinit"
	}
	return ""
}

// Installer writes completion scripts for the current user.
type Installer struct {
	Root        *cobra.Command
	Home        string
	XDGDataHome string
	Log         *zap.Logger
}

// NewInstaller reads the user's directories from the environment.
func NewInstaller(root *cobra.Command, log *zap.Logger) (*Installer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Installer{Root: root, Home: home, XDGDataHome: os.Getenv("XDG_DATA_HOME"), Log: log}, nil
}

// Result describes a finished install.
type Result struct {
	Shell Shell
	Path  string
	Hint  string
}

// Install renders the script for sh and writes it to the user directory.
func (i *Installer) Install(sh Shell) (Result, error) {
	if i.Log == nil {
		i.Log = zap.NewNop()
	}
	var buf bytes.Buffer
	if err := Generate(i.Root, sh, &buf); err != nil {
		return Result{}, err
	}

	path := Target(sh, i.Root.Name(), i.Home, i.XDGDataHome)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Result{}, errors.Wrapf(err, "write %s", path)
	}
	i.Log.Debug("completion installed", zap.String("shell", string(sh)), zap.String("path", path))

	return Result{Shell: sh, Path: path, Hint: RCHint(sh, path)}, nil
}

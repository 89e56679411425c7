package terminal

import (
	"os"
	"os/exec"
	"path/filepath"
)

const preferredShell = "zsh"

// Shell describes the program started on the slave side.
type Shell struct {
	// Path is the resolved executable.
	Path string
	// Login starts the shell as a login shell: argv[0] is prefixed with
	// "-" and "-l" is passed.
	Login bool
	// Args are appended after the login flag.
	Args []string
}

// ResolveShell looks up name on PATH. An empty name falls back to zsh,
// then $SHELL, then /bin/sh.
func ResolveShell(name string, login bool, args ...string) (Shell, error) {
	if name == "" {
		name = defaultShell()
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return Shell{}, &ExecError{Shell: name, Err: err}
	}
	return Shell{Path: path, Login: login, Args: args}, nil
}

// defaultShell returns the shell to use when none is configured.
func defaultShell() string {
	if _, err := exec.LookPath(preferredShell); err == nil {
		return preferredShell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// Argv0 returns the name the shell sees as its own.
func (s Shell) Argv0() string {
	base := filepath.Base(s.Path)
	if s.Login {
		return "-" + base
	}
	return base
}

// Command builds an unstarted command for the shell.
func (s Shell) Command() *exec.Cmd {
	var args []string
	if s.Login {
		args = append(args, "-l")
	}
	args = append(args, s.Args...)

	cmd := exec.Command(s.Path, args...)
	cmd.Args[0] = s.Argv0()
	return cmd
}

package terminal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellCommand(t *testing.T) {
	tests := []struct {
		name     string
		shell    Shell
		wantArgs []string
	}{
		{"login zsh", Shell{Path: "/usr/bin/zsh", Login: true}, []string{"-zsh", "-l"}},
		{"plain sh", Shell{Path: "/bin/sh"}, []string{"sh"}},
		{"login with args", Shell{Path: "/bin/bash", Login: true, Args: []string{"--noprofile"}}, []string{"-bash", "-l", "--noprofile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.shell.Command()
			assert.Equal(t, tt.shell.Path, cmd.Path)
			assert.Equal(t, tt.wantArgs, cmd.Args)
		})
	}
}

func TestResolveShell(t *testing.T) {
	sh, err := ResolveShell("/bin/sh", true)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", sh.Path)
	assert.Equal(t, "-sh", sh.Argv0())

	_, err = ResolveShell("therminal-no-such-shell", false)
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "therminal-no-such-shell", execErr.Shell)
}

func TestResolveShellDefault(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")
	sh, err := ResolveShell("", false)
	require.NoError(t, err)
	assert.NotEmpty(t, sh.Path)
}

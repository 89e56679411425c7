package terminal

import (
	"fmt"

	"github.com/pkg/errors"
)

// AllocPhase names the step of master PTY allocation that failed.
type AllocPhase string

const (
	PhaseMasterOpen AllocPhase = "open master"
	PhaseGrant      AllocPhase = "grant slave"
	PhaseUnlock     AllocPhase = "unlock slave"
	PhaseName       AllocPhase = "resolve slave name"
)

// AllocationError reports a failure to allocate the PTY pair. The session
// cannot proceed.
type AllocationError struct {
	Phase AllocPhase
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("pty allocation failed (%s): %v", e.Phase, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// ForkError reports that the shell process could not be created.
type ForkError struct {
	Step string
	Err  error
}

func (e *ForkError) Error() string {
	return fmt.Sprintf("pty fork failed (%s): %v", e.Step, e.Err)
}

func (e *ForkError) Unwrap() error { return e.Err }

// ExecError reports that the child could not set up its terminal or
// replace its image with the shell.
type ExecError struct {
	Shell string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("cannot execute %s: %v", e.Shell, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// TerminalModeError reports a termios or window size operation that
// failed. These are never fatal to a session.
type TerminalModeError struct {
	Op  string
	Fd  int
	Err error
}

func (e *TerminalModeError) Error() string {
	return fmt.Sprintf("terminal %s on fd %d: %v", e.Op, e.Fd, e.Err)
}

func (e *TerminalModeError) Unwrap() error { return e.Err }

var (
	// ErrPartialMode means the tty accepted only part of the raw mode
	// settings; the previous attributes were put back.
	ErrPartialMode = errors.New("raw mode only partially applied")

	// ErrAlreadyRaw is returned by EnterRaw when a raw transition is
	// active and has not been reset.
	ErrAlreadyRaw = errors.New("terminal already in raw mode")
)

package terminal

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rafabd1/therminal/internal/logging"
)

// SessionOptions configures a PTY session.
type SessionOptions struct {
	Shell Shell
	// Env is the child environment. Nil inherits the parent's.
	Env []string
	// ControlFd is the controlling terminal whose state a fresh slave
	// inherits in interactive mode. Ignored when Fork is non-interactive.
	ControlFd int
}

// Session owns a master/slave PTY pair and the shell process attached to
// the slave side.
type Session struct {
	ID string

	opts  SessionOptions
	modes *ModeManager
	log   *zap.Logger

	mu          sync.Mutex
	master      *os.File
	slavePath   string
	cmd         *exec.Cmd
	interactive bool
	saved       Snapshot
	closed      bool
}

// NewSession returns an unopened session.
func NewSession(opts SessionOptions, modes *ModeManager, log *zap.Logger) *Session {
	if modes == nil {
		modes = NewModeManager(log)
	}
	id := uuid.NewString()
	return &Session{
		ID:    id,
		opts:  opts,
		modes: modes,
		log:   logging.OrNop(log).With(zap.String("session", id)),
	}
}

// Open allocates the PTY pair. The master is opened read/write without
// becoming the controlling terminal of this process; the slave is only
// named, and opened later by Fork.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.master != nil || s.closed {
		return errors.New("pty session already opened")
	}

	master, name, err := openMaster()
	if err != nil {
		return err
	}
	s.master = master
	s.slavePath = name
	s.log.Debug("pty allocated", zap.String("slave", name), zap.Uintptr("master_fd", master.Fd()))
	return nil
}

// Fork starts the shell on the slave side.
//
// The child gets a new session with the slave as controlling terminal and
// as stdin, stdout and stderr. In interactive mode the controlling
// terminal's attributes and window size are captured first and applied to
// the slave; otherwise the controlling terminal is not touched at all.
//
// On failure the master is closed.
func (s *Session) Fork(interactive bool) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.master == nil || s.closed {
		return errors.New("pty session is not open")
	}
	if s.cmd != nil {
		return errors.New("pty session already forked")
	}

	defer func() {
		if err != nil {
			_ = s.master.Close()
			s.closed = true
		}
	}()

	var snap Snapshot
	if interactive {
		snap = s.modes.Capture(s.opts.ControlFd)
	}

	slave, err := os.OpenFile(s.slavePath, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return &ForkError{Step: "open slave", Err: err}
	}
	defer slave.Close()

	if interactive && !snap.Empty() {
		if aerr := s.modes.Apply(int(slave.Fd()), snap); aerr != nil {
			s.log.Warn("could not copy terminal state to slave", zap.Error(aerr))
		}
	}

	cmd := s.opts.Shell.Command()
	cmd.Env = s.opts.Env
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		return classifyStartError(s.opts.Shell.Path, err)
	}

	s.cmd = cmd
	s.interactive = interactive
	s.saved = snap
	s.log.Info("shell started",
		zap.String("shell", s.opts.Shell.Path),
		zap.Int("pid", cmd.Process.Pid),
		zap.Bool("interactive", interactive))
	return nil
}

func classifyStartError(shell string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EAGAIN || errno == syscall.ENOMEM) {
		return &ForkError{Step: "start process", Err: err}
	}
	return &ExecError{Shell: shell, Err: err}
}

// Close closes the master. The child sees a hangup on its next terminal
// access. Close does not wait for the child.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.master == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	if err := s.master.Close(); err != nil {
		return errors.Wrap(err, "close pty master")
	}
	return nil
}

// Fd returns the master descriptor, or -1 before Open.
func (s *Session) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.master == nil {
		return -1
	}
	return int(s.master.Fd())
}

// SlavePath returns the slave device path.
func (s *Session) SlavePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slavePath
}

// Cmd returns the started shell command, or nil before Fork.
func (s *Session) Cmd() *exec.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd
}

// Pid returns the child pid, or 0 before Fork.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Interactive reports whether Fork copied the controlling terminal state.
func (s *Session) Interactive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactive
}

// Saved returns the snapshot captured by an interactive Fork.
func (s *Session) Saved() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Resize sets the window size seen by the child.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.master == nil || s.closed {
		return errors.New("pty session is not open")
	}
	if err := pty.Setsize(s.master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return &TerminalModeError{Op: "resize", Fd: int(s.master.Fd()), Err: err}
	}
	return nil
}

// Signal delivers sig to the shell. A child that already exited is not an
// error.
func (s *Session) Signal(sig os.Signal) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return errors.New("no shell process")
	}
	if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "signal %v to pid %d", sig, cmd.Process.Pid)
	}
	return nil
}

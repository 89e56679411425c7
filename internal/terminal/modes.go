package terminal

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rafabd1/therminal/internal/logging"
)

// Mode is the state of a terminal under ModeManager control.
type Mode int

const (
	ModeReset Mode = iota
	ModeRaw
)

func (m Mode) String() string {
	if m == ModeRaw {
		return "raw"
	}
	return "reset"
}

// Snapshot is a saved pair of terminal attributes and window size.
// Either half may be nil if it could not be read.
type Snapshot struct {
	Termios *unix.Termios
	Winsize *unix.Winsize
}

// Empty reports whether nothing was captured.
func (s Snapshot) Empty() bool { return s.Termios == nil && s.Winsize == nil }

type ttyOps struct {
	getAttr func(fd int) (*unix.Termios, error)
	setAttr func(fd int, flush bool, t *unix.Termios) error
	getSize func(fd int) (*unix.Winsize, error)
	setSize func(fd int, ws *unix.Winsize) error
}

var sysTTY = ttyOps{
	getAttr: func(fd int) (*unix.Termios, error) {
		return unix.IoctlGetTermios(fd, ioctlGetTermios)
	},
	setAttr: func(fd int, flush bool, t *unix.Termios) error {
		req := uint(ioctlSetTermios)
		if flush {
			req = ioctlSetTermiosFlush
		}
		return unix.IoctlSetTermios(fd, req, t)
	},
	getSize: func(fd int) (*unix.Winsize, error) {
		return unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	},
	setSize: func(fd int, ws *unix.Winsize) error {
		return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, ws)
	},
}

// ModeManager saves, changes and restores terminal attributes.
//
// At most one raw transition is active at a time; Reset undoes it and is
// safe to call from any state, which makes it suitable as an exit hook.
type ModeManager struct {
	ops ttyOps
	log *zap.Logger

	mu     sync.Mutex
	mode   Mode
	rawFd  int
	before *unix.Termios
}

// NewModeManager returns a manager operating on real terminals.
func NewModeManager(log *zap.Logger) *ModeManager {
	return newModeManager(sysTTY, log)
}

func newModeManager(ops ttyOps, log *zap.Logger) *ModeManager {
	return &ModeManager{ops: ops, log: logging.OrNop(log), rawFd: -1}
}

// Mode returns the current mode.
func (m *ModeManager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SaveAttributes reads the termios of fd.
func (m *ModeManager) SaveAttributes(fd int) (*unix.Termios, error) {
	t, err := m.ops.getAttr(fd)
	if err != nil {
		return nil, &TerminalModeError{Op: "get attributes", Fd: fd, Err: err}
	}
	return t, nil
}

// SaveWindowSize reads the window size of fd.
func (m *ModeManager) SaveWindowSize(fd int) (*unix.Winsize, error) {
	ws, err := m.ops.getSize(fd)
	if err != nil {
		return nil, &TerminalModeError{Op: "get window size", Fd: fd, Err: err}
	}
	return ws, nil
}

// Capture saves both the attributes and the window size of fd. Failures
// are logged and leave the corresponding half of the snapshot nil.
func (m *ModeManager) Capture(fd int) Snapshot {
	var s Snapshot
	var err error

	if s.Termios, err = m.SaveAttributes(fd); err != nil {
		m.log.Warn("could not save terminal attributes", zap.Int("fd", fd), zap.Error(err))
	}
	if s.Winsize, err = m.SaveWindowSize(fd); err != nil {
		m.log.Warn("could not save window size", zap.Int("fd", fd), zap.Error(err))
	}
	return s
}

// EnterRaw switches fd to raw mode: no echo, no canonical input, no
// extended processing or signal characters, no CR/NL mapping, parity
// check, 8th-bit stripping or flow control, 8-bit characters, no output
// post-processing, and reads of one byte with no timer.
//
// The attributes are read back after being applied. If any requested
// change did not take effect, the previous attributes are restored and
// the returned error wraps ErrPartialMode.
func (m *ModeManager) EnterRaw(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == ModeRaw {
		return &TerminalModeError{Op: "enter raw mode", Fd: fd, Err: ErrAlreadyRaw}
	}

	before, err := m.ops.getAttr(fd)
	if err != nil {
		return &TerminalModeError{Op: "enter raw mode", Fd: fd, Err: err}
	}

	raw := *before
	makeRaw(&raw)

	if err := m.ops.setAttr(fd, true, &raw); err != nil {
		return &TerminalModeError{Op: "enter raw mode", Fd: fd, Err: err}
	}

	got, err := m.ops.getAttr(fd)
	if err != nil {
		m.rollback(fd, before)
		return &TerminalModeError{Op: "verify raw mode", Fd: fd, Err: err}
	}
	if !isRaw(got) {
		m.rollback(fd, before)
		return &TerminalModeError{Op: "verify raw mode", Fd: fd, Err: ErrPartialMode}
	}

	m.mode = ModeRaw
	m.rawFd = fd
	m.before = before
	m.log.Debug("terminal entered raw mode", zap.Int("fd", fd))
	return nil
}

func (m *ModeManager) rollback(fd int, before *unix.Termios) {
	if err := m.ops.setAttr(fd, true, before); err != nil {
		m.log.Error("could not roll back terminal attributes", zap.Int("fd", fd), zap.Error(err))
	}
}

// Reset undoes an active raw transition. It is a no-op in ModeReset.
func (m *ModeManager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == ModeReset {
		return nil
	}
	if err := m.ops.setAttr(m.rawFd, true, m.before); err != nil {
		return &TerminalModeError{Op: "reset", Fd: m.rawFd, Err: err}
	}
	m.log.Debug("terminal reset", zap.Int("fd", m.rawFd))
	m.mode = ModeReset
	m.rawFd = -1
	m.before = nil
	return nil
}

// Restore reapplies a saved snapshot to fd, flushing pending input. It
// may be called whether or not fd is in raw mode; restoring the fd that
// EnterRaw changed also clears the raw state.
func (m *ModeManager) Restore(fd int, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.apply(fd, s, true); err != nil {
		return err
	}
	if m.mode == ModeRaw && fd == m.rawFd && s.Termios != nil {
		m.mode = ModeReset
		m.rawFd = -1
		m.before = nil
	}
	return nil
}

// Apply sets a snapshot on fd immediately, without flushing. It is used to
// copy the controlling terminal's state onto a fresh PTY slave.
func (m *ModeManager) Apply(fd int, s Snapshot) error {
	return m.apply(fd, s, false)
}

func (m *ModeManager) apply(fd int, s Snapshot, flush bool) error {
	if s.Termios != nil {
		if err := m.ops.setAttr(fd, flush, s.Termios); err != nil {
			return &TerminalModeError{Op: "set attributes", Fd: fd, Err: err}
		}
	}
	if s.Winsize != nil {
		if err := m.ops.setSize(fd, s.Winsize); err != nil {
			return &TerminalModeError{Op: "set window size", Fd: fd, Err: err}
		}
	}
	return nil
}

func makeRaw(t *unix.Termios) {
	t.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	t.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Oflag &^= unix.OPOST
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

// isRaw checks every setting makeRaw asks for. tcsetattr may succeed
// having applied only some of them.
func isRaw(t *unix.Termios) bool {
	return t.Lflag&(unix.ECHO|unix.ICANON|unix.IEXTEN|unix.ISIG) == 0 &&
		t.Iflag&(unix.BRKINT|unix.ICRNL|unix.INPCK|unix.ISTRIP|unix.IXON) == 0 &&
		t.Cflag&(unix.CSIZE|unix.PARENB|unix.CS8) == unix.CS8 &&
		t.Oflag&unix.OPOST == 0 &&
		t.Cc[unix.VMIN] == 1 &&
		t.Cc[unix.VTIME] == 0
}

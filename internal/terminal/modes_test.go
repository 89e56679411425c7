package terminal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

type fakeTTY struct {
	attr unix.Termios
	size unix.Winsize

	// mangle runs on every termios the fake accepts, to simulate a driver
	// that ignores some settings.
	mangle func(t *unix.Termios)

	getAttrErr error
	getSizeErr error
	setAttrErr error

	getAttrs, setAttrs, getSizes, setSizes int
	lastFlush                              bool
}

func newFakeTTY() *fakeTTY {
	f := &fakeTTY{size: unix.Winsize{Row: 24, Col: 80}}
	f.attr.Lflag = unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	f.attr.Iflag = unix.ICRNL | unix.IXON | unix.BRKINT
	f.attr.Cflag = unix.CS7 | unix.PARENB
	f.attr.Oflag = unix.OPOST
	f.attr.Cc[unix.VMIN] = 0
	f.attr.Cc[unix.VTIME] = 5
	return f
}

func (f *fakeTTY) ops() ttyOps {
	return ttyOps{
		getAttr: func(int) (*unix.Termios, error) {
			f.getAttrs++
			if f.getAttrErr != nil {
				return nil, f.getAttrErr
			}
			t := f.attr
			return &t, nil
		},
		setAttr: func(_ int, flush bool, t *unix.Termios) error {
			f.setAttrs++
			f.lastFlush = flush
			if f.setAttrErr != nil {
				return f.setAttrErr
			}
			f.attr = *t
			if f.mangle != nil {
				f.mangle(&f.attr)
			}
			return nil
		},
		getSize: func(int) (*unix.Winsize, error) {
			f.getSizes++
			if f.getSizeErr != nil {
				return nil, f.getSizeErr
			}
			ws := f.size
			return &ws, nil
		},
		setSize: func(_ int, ws *unix.Winsize) error {
			f.setSizes++
			f.size = *ws
			return nil
		},
	}
}

func (f *fakeTTY) calls() int { return f.getAttrs + f.setAttrs + f.getSizes + f.setSizes }

func TestEnterRawAndReset(t *testing.T) {
	tty := newFakeTTY()
	original := tty.attr
	m := newModeManager(tty.ops(), zaptest.NewLogger(t))

	require.NoError(t, m.EnterRaw(3))
	assert.Equal(t, ModeRaw, m.Mode())
	assert.True(t, isRaw(&tty.attr))
	assert.True(t, tty.lastFlush, "raw mode is applied after flushing pending input")

	require.NoError(t, m.Reset())
	assert.Equal(t, ModeReset, m.Mode())
	assert.Equal(t, original, tty.attr)

	sets := tty.setAttrs
	require.NoError(t, m.Reset(), "reset from ModeReset is a no-op")
	assert.Equal(t, sets, tty.setAttrs)
}

func TestEnterRawTwice(t *testing.T) {
	tty := newFakeTTY()
	m := newModeManager(tty.ops(), nil)

	require.NoError(t, m.EnterRaw(3))
	err := m.EnterRaw(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRaw))
}

func TestEnterRawPartialRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(t *unix.Termios)
	}{
		{"echo kept", func(t *unix.Termios) { t.Lflag |= unix.ECHO }},
		{"output processing kept", func(t *unix.Termios) { t.Oflag |= unix.OPOST }},
		{"character size ignored", func(t *unix.Termios) { t.Cflag = t.Cflag&^unix.CSIZE | unix.CS7 }},
		{"vmin ignored", func(t *unix.Termios) { t.Cc[unix.VMIN] = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tty := newFakeTTY()
			original := tty.attr
			tty.mangle = func(x *unix.Termios) {
				if x.Lflag&unix.ICANON == 0 {
					tt.mangle(x)
				}
			}
			m := newModeManager(tty.ops(), zaptest.NewLogger(t))

			err := m.EnterRaw(3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPartialMode))

			var modeErr *TerminalModeError
			require.True(t, errors.As(err, &modeErr))
			assert.Equal(t, 3, modeErr.Fd)

			assert.Equal(t, ModeReset, m.Mode())
			assert.Equal(t, original, tty.attr, "previous attributes are restored")
		})
	}
}

func TestEnterRawGetFailure(t *testing.T) {
	tty := newFakeTTY()
	tty.getAttrErr = unix.ENOTTY
	m := newModeManager(tty.ops(), nil)

	err := m.EnterRaw(7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unix.ENOTTY))
	assert.Equal(t, 0, tty.setAttrs)
	assert.Equal(t, ModeReset, m.Mode())
}

func TestCaptureIsNonFatal(t *testing.T) {
	tty := newFakeTTY()
	tty.getSizeErr = unix.ENOTTY
	m := newModeManager(tty.ops(), zaptest.NewLogger(t))

	snap := m.Capture(5)
	require.NotNil(t, snap.Termios)
	assert.Nil(t, snap.Winsize)
	assert.False(t, snap.Empty())

	tty.getAttrErr = unix.EBADF
	assert.True(t, m.Capture(5).Empty())
}

func TestRestoreAppliesSnapshot(t *testing.T) {
	tty := newFakeTTY()
	m := newModeManager(tty.ops(), nil)

	snap := m.Capture(3)
	require.NoError(t, m.EnterRaw(3))
	tty.size = unix.Winsize{Row: 1, Col: 1}

	require.NoError(t, m.Restore(3, snap))
	assert.Equal(t, *snap.Termios, tty.attr)
	assert.Equal(t, *snap.Winsize, tty.size)
	assert.Equal(t, ModeReset, m.Mode(), "restoring the raw fd clears raw mode")
}

func TestApplyDoesNotFlush(t *testing.T) {
	tty := newFakeTTY()
	m := newModeManager(tty.ops(), nil)

	ws := unix.Winsize{Row: 50, Col: 132}
	require.NoError(t, m.Apply(9, Snapshot{Termios: &unix.Termios{}, Winsize: &ws}))
	assert.False(t, tty.lastFlush)
	assert.Equal(t, ws, tty.size)

	tty.setAttrErr = unix.EIO
	err := m.Apply(9, Snapshot{Termios: &unix.Termios{}})
	var modeErr *TerminalModeError
	require.True(t, errors.As(err, &modeErr))
	assert.Equal(t, "set attributes", modeErr.Op)
}

func TestRawModeOnRealPty(t *testing.T) {
	s := newTestSession(t, Shell{}, nil)

	slave, err := unix.Open(s.SlavePath(), unix.O_RDWR|unix.O_NOCTTY, 0)
	require.NoError(t, err)
	defer unix.Close(slave)

	m := NewModeManager(zaptest.NewLogger(t))
	before, err := m.SaveAttributes(slave)
	require.NoError(t, err)

	require.NoError(t, m.EnterRaw(slave))
	during, err := m.SaveAttributes(slave)
	require.NoError(t, err)
	assert.True(t, isRaw(during))

	require.NoError(t, m.Reset())
	after, err := m.SaveAttributes(slave)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/rafabd1/therminal/internal/buffer"
)

// newTestSession opens a session or skips when the host cannot allocate
// pseudo-terminals.
func newTestSession(t *testing.T, shell Shell, modes *ModeManager) *Session {
	t.Helper()
	s := NewSession(SessionOptions{Shell: shell, ControlFd: -1}, modes, zaptest.NewLogger(t))
	if err := s.Open(); err != nil {
		t.Skipf("cannot allocate pty: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// readFdUntil reads fd until the accumulated text contains want, the fd
// hangs up, or the timeout passes.
func readFdUntil(t *testing.T, fd int, want string, timeout time.Duration) string {
	t.Helper()
	var got []byte
	buf := make([]byte, 1024)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 20)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		if n == 0 {
			continue
		}
		r, err := unix.Read(fd, buf)
		if r > 0 {
			got = append(got, buf[:r]...)
			if strings.Contains(string(got), want) {
				break
			}
			continue
		}
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		break
	}
	return string(got)
}

// drainUntil swaps and reads the output channel until the collected text
// contains want or the timeout passes.
func drainUntil(out *buffer.OutputChannel, want string, timeout time.Duration) string {
	var sb strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out.Swap()
		sb.Write(out.Read())
		if strings.Contains(sb.String(), want) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	return sb.String()
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

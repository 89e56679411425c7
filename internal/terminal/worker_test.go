package terminal

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/rafabd1/therminal/internal/buffer"
)

type countingObserver struct {
	read, written, evicted atomic.Int64
	writes                 atomic.Int64

	mu      sync.Mutex
	reasons []string
}

func (o *countingObserver) BytesRead(n int) { o.read.Add(int64(n)) }
func (o *countingObserver) BytesWritten(n int) {
	o.written.Add(int64(n))
	o.writes.Add(1)
}
func (o *countingObserver) InputEvicted(n int) { o.evicted.Add(int64(n)) }
func (o *countingObserver) WorkerExited(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, reason)
}

func (o *countingObserver) exits() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.reasons...)
}

type workerFixture struct {
	worker *Worker
	peer   int
	input  *buffer.InputRing
	output *buffer.OutputChannel
	obs    *countingObserver
}

func newWorkerFixture(t *testing.T, outCap int, opts WorkerOptions) *workerFixture {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	f := &workerFixture{
		peer:   fds[1],
		input:  buffer.NewInputRing(64),
		output: buffer.NewOutputChannel(outCap),
		obs:    &countingObserver{},
	}
	opts.Observer = f.obs
	opts.Logger = zaptest.NewLogger(t)
	f.worker = NewWorker(fds[0], f.input, f.output, opts)

	t.Cleanup(func() {
		f.worker.Stop()
		f.worker.Join()
		_ = unix.Close(fds[0])
		_ = unix.Close(f.peer)
	})
	return f
}

func writePeer(t *testing.T, fd int, s string) {
	t.Helper()
	require.NoError(t, writeFull(fd, []byte(s)))
}

func TestWorkerForwardsOutput(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{})
	f.worker.Spawn()

	writePeer(t, f.peer, "hello from the shell")
	got := drainUntil(f.output, "shell", 2*time.Second)
	assert.Equal(t, "hello from the shell", got)
	assert.Equal(t, int64(len(got)), f.obs.read.Load())
}

func TestWorkerDrainsInputOneByteAtATime(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{})
	n, evicted := f.input.Write([]byte("ls -la\r"))
	require.Equal(t, 7, n)
	require.Zero(t, evicted)

	f.worker.Spawn()
	got := readFdUntil(t, f.peer, "\r", 2*time.Second)
	assert.Equal(t, "ls -la\r", got)
	assert.Equal(t, int64(7), f.obs.written.Load())
	assert.Equal(t, int64(7), f.obs.writes.Load(), "one write per queued byte")
	assert.False(t, f.input.IsReady())
}

func TestWorkerStopJoin(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{PollTimeout: 5 * time.Millisecond})
	f.worker.Spawn()
	f.worker.Spawn()
	assert.True(t, f.worker.Running())

	start := time.Now()
	f.worker.Stop()
	f.worker.Join()
	assert.Less(t, time.Since(start), time.Second)

	assert.False(t, f.worker.Running())
	assert.Equal(t, ExitStopped, f.worker.Reason())
	assert.NoError(t, f.worker.Err())
	assert.Equal(t, []string{ExitStopped}, f.obs.exits())
}

func TestWorkerJoinWithoutSpawn(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{})
	f.worker.Join()
	assert.False(t, f.worker.Running())
	assert.Equal(t, "", f.worker.Reason())
}

func TestWorkerEndsOnHangup(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{})
	f.worker.Spawn()

	writePeer(t, f.peer, "bye")
	require.NoError(t, unix.Shutdown(f.peer, unix.SHUT_WR))

	waitClosed(t, f.worker.Done(), 2*time.Second, "worker exit")
	assert.Equal(t, ExitEOF, f.worker.Reason())
	assert.NoError(t, f.worker.Err())
	assert.Equal(t, "bye", drainUntil(f.output, "bye", time.Second))
}

func TestWorkerBackPressure(t *testing.T) {
	f := newWorkerFixture(t, 8, WorkerOptions{ReadSize: 5})
	f.worker.Spawn()

	payload := strings.Repeat("0123456789abcdef", 16) + "<end>"
	go func() { _ = writeFull(f.peer, []byte(payload)) }()

	got := drainUntil(f.output, "<end>", 5*time.Second)
	assert.Equal(t, payload, got)
	assert.True(t, f.worker.Running(), "a full output channel never ends the session")
}

func TestWorkerAppliesResize(t *testing.T) {
	sizes := make(chan [2]uint16, 4)
	f := newWorkerFixture(t, 64, WorkerOptions{
		Resize: func(cols, rows uint16) error {
			sizes <- [2]uint16{cols, rows}
			return nil
		},
	})
	f.worker.RequestResize(10, 10)
	f.worker.RequestResize(132, 43)
	f.worker.Spawn()

	select {
	case got := <-sizes:
		assert.Equal(t, [2]uint16{132, 43}, got, "only the latest request is applied")
	case <-time.After(2 * time.Second):
		t.Fatal("resize was not applied")
	}
}

func TestWriteFullRejectsClosedPeer(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	require.NoError(t, unix.Close(fds[1]))

	// Writing to a socket whose peer is gone fails with EPIPE; the Go
	// runtime ignores SIGPIPE on descriptors other than stdout and stderr.
	assert.Error(t, writeFull(fds[0], []byte("x")))
}

func TestWorkerStopBeforeSpawn(t *testing.T) {
	f := newWorkerFixture(t, 64, WorkerOptions{})
	f.input.Put('x')

	f.worker.Stop()
	f.worker.Spawn()

	select {
	case <-f.worker.Done():
	case <-time.After(time.Second):
		t.Fatal("worker ignored a stop issued before spawn")
	}
	assert.Equal(t, ExitStopped, f.worker.Reason())
	assert.Equal(t, []string{ExitStopped}, f.obs.exits())
	assert.True(t, f.input.IsReady(), "no iteration ran")
}

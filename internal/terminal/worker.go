package terminal

import (
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/logging"
)

// Worker exit reasons.
const (
	ExitStopped    = "stopped"
	ExitEOF        = "eof"
	ExitReadError  = "read_error"
	ExitWriteError = "write_error"
	ExitPollError  = "poll_error"
	ExitOverflow   = "overflow"
)

const (
	DefaultPollTimeout = 10 * time.Millisecond
	DefaultReadSize    = 4096
)

// Observer receives worker traffic counts. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	BytesRead(n int)
	BytesWritten(n int)
	InputEvicted(n int)
	WorkerExited(reason string)
}

type nopObserver struct{}

func (nopObserver) BytesRead(int)       {}
func (nopObserver) BytesWritten(int)    {}
func (nopObserver) InputEvicted(int)    {}
func (nopObserver) WorkerExited(string) {}

// WorkerOptions configures a Worker. Zero values select defaults.
type WorkerOptions struct {
	// PollTimeout bounds how long one poll waits when no input is queued.
	PollTimeout time.Duration
	// ReadSize is the largest single read from the master.
	ReadSize int
	// Resize applies a window size. It runs on the worker goroutine so the
	// master is only ever touched from one thread. Defaults to TIOCSWINSZ
	// on the descriptor.
	Resize   func(cols, rows uint16) error
	Observer Observer
	Logger   *zap.Logger
}

// Worker moves bytes between the PTY master and the session buffers.
//
// Each iteration polls the master, forwards whatever can be read into the
// output channel, then writes at most one queued input byte back. Reads
// are sized to the free space in the output channel, and the master is not
// polled for input at all while the channel is full, so a burst of child
// output waits in the kernel until the consumer swaps.
type Worker struct {
	fd     int
	input  *buffer.InputRing
	output *buffer.OutputChannel
	opts   WorkerOptions
	log    *zap.Logger

	running atomic.Bool
	spawned atomic.Bool
	resize  atomic.Pointer[unix.Winsize]
	done    chan struct{}

	reason string
	err    error
}

// NewWorker returns an unstarted worker bound to the master descriptor fd.
func NewWorker(fd int, input *buffer.InputRing, output *buffer.OutputChannel, opts WorkerOptions) *Worker {
	if opts.PollTimeout < time.Millisecond {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Resize == nil {
		opts.Resize = func(cols, rows uint16) error {
			return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, &unix.Winsize{Row: rows, Col: cols})
		}
	}
	w := &Worker{
		fd:     fd,
		input:  input,
		output: output,
		opts:   opts,
		log:    logging.OrNop(opts.Logger),
		done:   make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

// Spawn starts the loop on its own goroutine, locked to an OS thread.
// Subsequent calls do nothing.
func (w *Worker) Spawn() {
	if !w.spawned.CompareAndSwap(false, true) {
		return
	}
	go w.run()
}

// Stop asks the loop to exit. It returns immediately; the loop notices
// within one poll timeout. A worker stopped before Spawn exits at once.
func (w *Worker) Stop() { w.running.Store(false) }

// Join blocks until the loop has exited. It returns at once if the worker
// was never spawned.
func (w *Worker) Join() {
	if !w.spawned.Load() {
		return
	}
	<-w.done
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	if !w.spawned.Load() {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Done is closed when the loop exits.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err returns the error that ended the loop, nil for a clean exit or while
// it is still running.
func (w *Worker) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Reason returns why the loop exited, or "" while it is running.
func (w *Worker) Reason() string {
	select {
	case <-w.done:
		return w.reason
	default:
		return ""
	}
}

// RequestResize schedules a window size change for the next iteration.
// Only the latest request is kept.
func (w *Worker) RequestResize(cols, rows uint16) {
	w.resize.Store(&unix.Winsize{Col: cols, Row: rows})
}

func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.reason, w.err = w.loop()
	w.running.Store(false)
	w.opts.Observer.WorkerExited(w.reason)

	if w.err != nil {
		w.log.Error("io worker exited", zap.String("reason", w.reason), zap.Error(w.err))
	} else {
		w.log.Debug("io worker exited", zap.String("reason", w.reason))
	}
	close(w.done)
}

func (w *Worker) loop() (string, error) {
	buf := make([]byte, w.opts.ReadSize)
	var one [1]byte
	fds := []unix.PollFd{{Fd: int32(w.fd)}}
	timeout := int(w.opts.PollTimeout / time.Millisecond)

	for w.running.Load() {
		if ws := w.resize.Swap(nil); ws != nil {
			if err := w.opts.Resize(ws.Col, ws.Row); err != nil {
				w.log.Warn("resize failed", zap.Uint16("cols", ws.Col), zap.Uint16("rows", ws.Row), zap.Error(err))
			}
		}

		room := w.output.Available()
		fds[0].Events = 0
		if room > 0 {
			fds[0].Events = unix.POLLIN
		}
		fds[0].Revents = 0

		wait := timeout
		if w.input.IsReady() {
			wait = 0
		}

		if _, err := unix.Poll(fds, wait); err != nil {
			if err == unix.EINTR {
				continue
			}
			return ExitPollError, errors.Wrap(err, "poll pty master")
		}

		revents := fds[0].Revents
		if revents&unix.POLLNVAL != 0 {
			return ExitPollError, errors.New("pty master descriptor is not open")
		}

		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if room == 0 {
				// Hung up with nowhere to put pending output; let the
				// consumer swap before reading again.
				time.Sleep(w.opts.PollTimeout)
			} else {
				n, err := unix.Read(w.fd, buf[:min(room, len(buf))])
				if n <= 0 {
					switch {
					case err == unix.EINTR || err == unix.EAGAIN:
						continue
					case err == nil || err == unix.EIO:
						// EIO is how Linux reports a master whose slave
						// has been closed by every process.
						return ExitEOF, nil
					default:
						return ExitReadError, errors.Wrap(err, "read pty master")
					}
				}
				if _, err := w.output.Write(buf[:n]); err != nil {
					return ExitOverflow, err
				}
				w.opts.Observer.BytesRead(n)
			}
		}

		if w.input.IsReady() {
			b, err := w.input.Get()
			if err == nil {
				one[0] = b
				if err := writeFull(w.fd, one[:]); err != nil {
					return ExitWriteError, errors.Wrap(err, "write pty master")
				}
				w.opts.Observer.BytesWritten(1)
			}
		}
	}
	return ExitStopped, nil
}

// writeFull writes all of p, retrying interrupted and partial writes. A
// write that makes no progress reports io.ErrShortWrite.
func writeFull(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

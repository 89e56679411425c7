package terminal

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/keys"
	"github.com/rafabd1/therminal/internal/logging"
	"github.com/rafabd1/therminal/pkg/events"
)

const (
	DefaultInputCapacity  = 256
	DefaultOutputCapacity = 0x1000
)

// Controller defines the interface for managing and interacting with the
// pseudo-terminal session.
type Controller interface {
	// Start allocates the PTY, starts the shell and the I/O worker.
	Start(ctx context.Context) error
	// Close tears the session down. It is safe to call more than once.
	Close() error
	// Resize informs the shell about a new window size.
	Resize(cols, rows uint16) error
	// Write queues raw bytes for the shell's input.
	Write(p []byte) (int, error)
	// SendSignal sends an OS signal to the shell.
	SendSignal(sig os.Signal) error
	// Dispatch handles one UI event and reports whether it was consumed.
	Dispatch(ev events.Event) bool
	// Run dispatches events until the source ends or the session does.
	Run(ctx context.Context, evs <-chan events.Event) error
	// Output is the channel the render loop reads and swaps.
	Output() *buffer.OutputChannel
	// Done is closed when the I/O worker exits.
	Done() <-chan struct{}
}

// Options configures a PtyController. Zero values select defaults.
type Options struct {
	Shell Shell
	Env   []string

	// ControlTTY is the terminal the user is sitting at. When it is a
	// terminal the session runs in interactive mode; nil means never.
	ControlTTY *os.File
	// RawControl puts ControlTTY in raw mode for the session's lifetime.
	RawControl bool

	InputCapacity  int
	OutputCapacity int
	PollTimeout    time.Duration

	// ShutdownSignal is sent to the shell on Close. Nil sends nothing.
	ShutdownSignal os.Signal

	Observer Observer
	Logger   *zap.Logger
}

// DefaultOptions returns options for a login shell with SIGHUP on close.
func DefaultOptions() Options {
	return Options{
		RawControl:     true,
		InputCapacity:  DefaultInputCapacity,
		OutputCapacity: DefaultOutputCapacity,
		PollTimeout:    DefaultPollTimeout,
		ShutdownSignal: syscall.SIGHUP,
	}
}

// PtyController implements Controller over a Session, a Worker and a
// Supervisor. It is the single handle a host holds for a running session.
type PtyController struct {
	opts       Options
	log        *zap.Logger
	modes      *ModeManager
	translator *keys.Translator
	input      *buffer.InputRing
	output     *buffer.OutputChannel

	mu         sync.RWMutex
	session    *Session
	worker     *Worker
	supervisor *Supervisor
	stopped    bool
}

// NewPtyController creates a controller. Buffers are allocated here so a
// host can wire them into its render loop before Start.
func NewPtyController(opts Options) *PtyController {
	if opts.InputCapacity <= 0 {
		opts.InputCapacity = DefaultInputCapacity
	}
	if opts.OutputCapacity <= 0 {
		opts.OutputCapacity = DefaultOutputCapacity
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	log := logging.OrNop(opts.Logger)
	return &PtyController{
		opts:       opts,
		log:        log,
		modes:      NewModeManager(log),
		translator: keys.NewTranslator(),
		input:      buffer.NewInputRing(opts.InputCapacity),
		output:     buffer.NewOutputChannel(opts.OutputCapacity),
	}
}

// Modes returns the manager holding the host terminal state.
func (c *PtyController) Modes() *ModeManager { return c.modes }

// Input returns the queue feeding the shell.
func (c *PtyController) Input() *buffer.InputRing { return c.input }

// Output returns the channel carrying shell output.
func (c *PtyController) Output() *buffer.OutputChannel { return c.output }

// Start implements Controller.
func (c *PtyController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil || c.stopped {
		return errors.New("terminal controller already started")
	}

	controlFd := -1
	if c.opts.ControlTTY != nil && term.IsTerminal(int(c.opts.ControlTTY.Fd())) {
		controlFd = int(c.opts.ControlTTY.Fd())
	}
	interactive := controlFd >= 0

	sess := NewSession(SessionOptions{
		Shell:     c.opts.Shell,
		Env:       c.opts.Env,
		ControlFd: controlFd,
	}, c.modes, c.log)

	if err := sess.Open(); err != nil {
		return err
	}
	if err := sess.Fork(interactive); err != nil {
		return err
	}

	if interactive && c.opts.RawControl {
		if err := c.modes.EnterRaw(controlFd); err != nil {
			c.log.Warn("host terminal left in its previous mode", zap.Error(err))
		}
	}

	sup := NewSupervisor(sess.ID, sess.Cmd(), c.log)
	sup.Start()

	w := NewWorker(sess.Fd(), c.input, c.output, WorkerOptions{
		PollTimeout: c.opts.PollTimeout,
		Resize:      sess.Resize,
		Observer:    c.opts.Observer,
		Logger:      c.log.With(zap.String("session", sess.ID)),
	})
	w.Spawn()

	c.session = sess
	c.supervisor = sup
	c.worker = w

	go c.watch(ctx, sup)
	return nil
}

// watch logs process events until the shell is reaped or ctx ends.
func (c *PtyController) watch(ctx context.Context, sup *Supervisor) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sup.Events():
			c.log.Debug("process event",
				zap.String("session", ev.SessionID),
				zap.String("type", ev.EventType),
				zap.Int("pid", ev.Pid))
			if ev.EventType == "exited" {
				return
			}
		}
	}
}

// Close implements Controller. The worker is stopped and joined first so
// nothing touches the master while it is being closed; then the shell is
// signalled, the host terminal restored and the master closed.
func (c *PtyController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}
	c.stopped = true
	if c.session == nil {
		return nil
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.worker.Stop()
	c.worker.Join()

	if c.opts.ShutdownSignal != nil {
		if err := c.session.Signal(c.opts.ShutdownSignal); err != nil {
			c.log.Warn("could not signal shell", zap.Error(err))
			keep(err)
		}
	}
	if err := c.modes.Reset(); err != nil {
		c.log.Error("could not restore host terminal", zap.Error(err))
		keep(err)
	}
	keep(c.session.Close())

	c.log.Info("session closed", zap.String("session", c.session.ID))
	return firstErr
}

// Resize implements Controller. While the worker runs the change is handed
// to it; otherwise it is applied directly.
func (c *PtyController) Resize(cols, rows uint16) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil || c.stopped {
		return errors.New("terminal controller not running")
	}
	if c.worker.Running() {
		c.worker.RequestResize(cols, rows)
		return nil
	}
	return c.session.Resize(cols, rows)
}

// Write implements Controller. It never blocks; when the queue is full the
// oldest pending bytes are dropped.
func (c *PtyController) Write(p []byte) (int, error) {
	n, evicted := c.input.Write(p)
	if evicted > 0 {
		c.opts.Observer.InputEvicted(evicted)
	}
	return n, nil
}

// SendSignal implements Controller.
func (c *PtyController) SendSignal(sig os.Signal) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return errors.New("terminal controller not running")
	}
	return c.session.Signal(sig)
}

// Dispatch implements Controller.
func (c *PtyController) Dispatch(ev events.Event) bool {
	switch e := ev.(type) {
	case events.KeyPress:
		return c.sendKey(keys.Press, e.Key, e.Mods)
	case events.KeyRepeat:
		return c.sendKey(keys.Repeat, e.Key, e.Mods)
	case events.KeyRelease:
		return c.sendKey(keys.Release, e.Key, e.Mods)
	case events.KeyTyped:
		seq, _ := c.translator.TranslateRune(e.Rune)
		_, _ = c.Write(seq)
		return true
	case events.WindowResize:
		if e.Cols <= 0 || e.Rows <= 0 {
			return false
		}
		if err := c.Resize(uint16(e.Cols), uint16(e.Rows)); err != nil {
			c.log.Debug("resize ignored", zap.Error(err))
			return false
		}
		return true
	case events.Error:
		c.log.Error("event source error", zap.Error(e.Err))
		return true
	case events.WindowClose, events.WindowMove, events.WindowFocus,
		events.MousePress, events.MouseRelease, events.MouseMove, events.MouseScroll:
		return false
	default:
		return false
	}
}

func (c *PtyController) sendKey(action keys.Action, key keys.Key, mods keys.Mod) bool {
	seq, handled := c.translator.TranslateKey(action, key, mods)
	if len(seq) > 0 {
		_, _ = c.Write(seq)
	}
	return handled
}

// Run implements Controller. It returns nil when evs is closed or delivers
// WindowClose, ctx.Err() when ctx ends, and the worker's error when the
// session ends by itself.
func (c *PtyController) Run(ctx context.Context, evs <-chan events.Event) error {
	done := c.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return c.worker.Err()
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			if _, closing := ev.(events.WindowClose); closing {
				return nil
			}
			c.Dispatch(ev)
		}
	}
}

// Done implements Controller. Before Start it returns nil.
func (c *PtyController) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.worker == nil {
		return nil
	}
	return c.worker.Done()
}

// Exited is closed once the shell has been reaped. Before Start it
// returns nil.
func (c *PtyController) Exited() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.supervisor == nil {
		return nil
	}
	return c.supervisor.Exited()
}

// Session returns the underlying session, nil before Start.
func (c *PtyController) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// ProcessState returns what is known about the shell process.
func (c *PtyController) ProcessState() ProcessState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.supervisor == nil {
		return ProcessState{}
	}
	return c.supervisor.State()
}

var _ Controller = (*PtyController)(nil)

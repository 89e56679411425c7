// Package console hosts a session directly on the user's terminal: stdin
// bytes go to the shell and shell output goes to stdout untouched.
package console

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/logging"
	"github.com/rafabd1/therminal/pkg/events"
)

const defaultFrameInterval = 5 * time.Millisecond

// Session is the part of the terminal controller the console drives.
type Session interface {
	Dispatch(ev events.Event) bool
	Output() *buffer.OutputChannel
	Done() <-chan struct{}
}

// Options configures a Host.
type Options struct {
	In            io.Reader
	Out           io.Writer
	FrameInterval time.Duration
	Logger        *zap.Logger
}

// Host pumps a session between a reader and a writer.
type Host struct {
	session Session
	in      io.Reader
	out     io.Writer
	frame   time.Duration
	log     *zap.Logger
}

// New returns a host. In and Out default to os.Stdin and os.Stdout.
func New(session Session, opts Options) *Host {
	h := &Host{
		session: session,
		in:      opts.In,
		out:     opts.Out,
		frame:   opts.FrameInterval,
		log:     logging.OrNop(opts.Logger),
	}
	if h.in == nil {
		h.in = os.Stdin
	}
	if h.out == nil {
		h.out = os.Stdout
	}
	if h.frame <= 0 {
		h.frame = defaultFrameInterval
	}
	return h
}

// Run forwards input and output until the input ends, the session ends or
// ctx is cancelled. The input reader goroutine is left blocked in Read if
// the input never ends; callers exit the process afterwards.
func (h *Host) Run(ctx context.Context) error {
	evs := make(chan events.Event, 64)
	go h.readInput(evs)

	if f, ok := h.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		stop := h.watchResize(int(f.Fd()), evs)
		defer stop()
	}

	ticker := time.NewTicker(h.frame)
	defer ticker.Stop()

	done := h.session.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			// Both halves of the output channel may hold data.
			if err := h.flush(); err != nil {
				return err
			}
			return h.flush()
		case ev := <-evs:
			if _, closing := ev.(events.WindowClose); closing {
				return h.flush()
			}
			h.session.Dispatch(ev)
		case <-ticker.C:
			if err := h.flush(); err != nil {
				return err
			}
		}
	}
}

// flush writes what the last swap delivered, then swaps.
func (h *Host) flush() error {
	out := h.session.Output()
	if data := out.Read(); len(data) > 0 {
		if _, err := h.out.Write(data); err != nil {
			return errors.Wrap(err, "write console output")
		}
	}
	out.Swap()
	return nil
}

func (h *Host) readInput(evs chan<- events.Event) {
	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := h.in.Read(buf)
		if n > 0 {
			var runes []rune
			pending = append(pending, buf[:n]...)
			runes, pending = splitRunes(pending)
			for _, r := range runes {
				evs <- events.KeyTyped{Rune: r}
			}
		}
		if err != nil {
			if err != io.EOF {
				h.log.Warn("console input failed", zap.Error(err))
				evs <- events.Error{Err: err}
			}
			evs <- events.WindowClose{}
			return
		}
	}
}

// splitRunes decodes every complete UTF-8 sequence in buf and returns the
// incomplete tail. Invalid bytes decode as utf8.RuneError.
func splitRunes(buf []byte) ([]rune, []byte) {
	var runes []rune
	for len(buf) > 0 && utf8.FullRune(buf) {
		r, size := utf8.DecodeRune(buf)
		runes = append(runes, r)
		buf = buf[size:]
	}
	return runes, append([]byte(nil), buf...)
}

// watchResize reports the terminal size now and on every SIGWINCH.
func (h *Host) watchResize(fd int, evs chan<- events.Event) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)
	quit := make(chan struct{})

	send := func() {
		cols, rows, err := term.GetSize(fd)
		if err != nil {
			h.log.Debug("could not read terminal size", zap.Error(err))
			return
		}
		evs <- events.WindowResize{Cols: cols, Rows: rows}
	}

	go func() {
		send()
		for {
			select {
			case <-quit:
				return
			case <-sigs:
				send()
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(quit)
	}
}

package tui

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/logging"
	"github.com/rafabd1/therminal/pkg/events"
)

const (
	defaultFrameInterval = 16 * time.Millisecond
	defaultMaxLines      = 5000

	// maxPending bounds how much of an unterminated sequence is carried
	// into the next frame.
	maxPending = 4096
)

// Session is the part of the terminal controller the TUI drives.
type Session interface {
	Dispatch(ev events.Event) bool
	Output() *buffer.OutputChannel
	Done() <-chan struct{}
}

// Options configures the TUI.
type Options struct {
	Title         string
	FrameInterval time.Duration
	MaxLines      int
	Logger        *zap.Logger
}

// frameMsg drives the render loop.
type frameMsg time.Time

// SessionEndedMsg is sent when the session's I/O worker exits.
type SessionEndedMsg struct{}

// Model is the bubbletea model hosting one terminal session.
//
// Shell output is shown as plain text: escape sequences are stripped,
// carriage returns dropped and backspaces applied to the current line.
type Model struct {
	viewport viewport.Model
	session  Session
	opts     Options
	log      *zap.Logger

	lines   []string
	partial []rune
	pending []byte

	titleStyle  lipgloss.Style
	statusStyle lipgloss.Style
	endedStyle  lipgloss.Style

	ready  bool
	ended  bool
	cols   int
	rows   int
	frames uint64
}

// New initializes a TUI model for session.
func New(session Session, opts Options) *Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = defaultMaxLines
	}
	if opts.Title == "" {
		opts.Title = "therminal"
	}
	return &Model{
		session:     session,
		opts:        opts,
		log:         logging.OrNop(opts.Logger),
		titleStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		statusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		endedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Init starts the frame ticker and waits for the session to end.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), waitForEnd(m.session.Done()))
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.FrameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func waitForEnd(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return SessionEndedMsg{}
	}
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlCloseBracket {
			m.session.Dispatch(events.WindowClose{})
			return m, tea.Quit
		}
		if m.ended {
			return m, tea.Quit
		}
		for _, ev := range keyEvents(msg) {
			m.session.Dispatch(ev)
		}
		m.viewport.GotoBottom()
		return m, nil

	case tea.MouseMsg:
		for _, ev := range mouseEvents(msg) {
			m.session.Dispatch(ev)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case frameMsg:
		m.frame()
		return m, m.tick()

	case SessionEndedMsg:
		m.frame()
		m.frame()
		m.flushPending()
		m.ended = true
		m.log.Info("session ended")
		return m, nil
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	headerHeight := lipgloss.Height(m.headerView())
	footerHeight := lipgloss.Height(m.footerView())
	bodyHeight := max(height-headerHeight-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(width, bodyHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = bodyHeight
	}
	m.viewport.SetContent(m.content())
	m.viewport.GotoBottom()

	if width != m.cols || bodyHeight != m.rows {
		m.cols, m.rows = width, bodyHeight
		m.session.Dispatch(events.WindowResize{Cols: width, Rows: bodyHeight})
	}
}

// frame consumes what the last swap delivered, then swaps so the producer
// gets the drained buffer back.
func (m *Model) frame() {
	out := m.session.Output()
	if data := out.Read(); len(data) > 0 {
		m.appendOutput(data)
	}
	out.Swap()
	m.frames++
}

// appendOutput renders data, holding back a trailing escape sequence or
// rune that the next frame completes.
func (m *Model) appendOutput(data []byte) {
	data = append(m.pending, data...)
	cut := incompleteTail(data)
	if len(data)-cut > maxPending {
		cut = len(data)
	}
	m.pending = append([]byte(nil), data[cut:]...)
	m.render(data[:cut])
}

func (m *Model) flushPending() {
	if len(m.pending) == 0 {
		return
	}
	data := m.pending
	m.pending = nil
	m.render(data)
}

func (m *Model) render(data []byte) {
	if len(data) == 0 {
		return
	}
	atBottom := m.viewport.AtBottom()

	for _, r := range ansi.Strip(string(data)) {
		switch r {
		case '\n':
			m.lines = append(m.lines, string(m.partial))
			m.partial = m.partial[:0]
		case '\r', '\a':
		case '\b':
			if n := len(m.partial); n > 0 {
				m.partial = m.partial[:n-1]
			}
		default:
			m.partial = append(m.partial, r)
		}
	}
	if over := len(m.lines) - m.opts.MaxLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}

	if m.ready {
		m.viewport.SetContent(m.content())
		if atBottom {
			m.viewport.GotoBottom()
		}
	}
}

// incompleteTail returns the offset of an unfinished escape sequence or
// UTF-8 encoding at the end of b, or len(b) when b ends cleanly.
func incompleteTail(b []byte) int {
	if i := bytes.LastIndexByte(b, ansi.ESC); i >= 0 && !escapeComplete(b[i:]) {
		return i
	}
	for j := len(b) - 1; j >= 0 && j > len(b)-utf8.UTFMax; j-- {
		if utf8.RuneStart(b[j]) {
			if !utf8.FullRune(b[j:]) {
				return j
			}
			break
		}
	}
	return len(b)
}

// escapeComplete reports whether seq, which starts with ESC and holds no
// other ESC, is terminated.
func escapeComplete(seq []byte) bool {
	if len(seq) < 2 {
		return false
	}
	switch seq[1] {
	case '[':
		for _, c := range seq[2:] {
			if c >= 0x40 && c <= 0x7e {
				return true
			}
		}
		return false
	case ']', 'P', 'X', '^', '_':
		// ST would be another ESC, so only BEL can end it here.
		return bytes.IndexByte(seq[2:], ansi.BEL) >= 0
	default:
		for _, c := range seq[1:] {
			if c < 0x20 || c > 0x2f {
				return true
			}
		}
		return false
	}
}

func (m *Model) content() string {
	if len(m.lines) == 0 {
		return string(m.partial)
	}
	return strings.Join(m.lines, "\n") + "\n" + string(m.partial)
}

// View renders the UI.
func (m *Model) View() string {
	if !m.ready {
		return "\n  Starting shell..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m *Model) headerView() string {
	title := m.titleStyle.Render(m.opts.Title)
	line := strings.Repeat("─", max(m.viewport.Width, 1))
	return lipgloss.JoinVertical(lipgloss.Left, title, line)
}

func (m *Model) footerView() string {
	if m.ended {
		return m.endedStyle.Render("shell exited, press any key to quit")
	}
	return m.statusStyle.Render(fmt.Sprintf("%dx%d  ctrl+] quits", m.cols, m.rows))
}

// Text returns the accumulated plain-text output.
func (m *Model) Text() string { return m.content() }

// Run starts the bubbletea program for session and blocks until it exits.
func Run(session Session, opts Options) error {
	log := logging.OrNop(opts.Logger)
	p := tea.NewProgram(New(session, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())

	log.Debug("starting tui")
	if _, err := p.Run(); err != nil {
		log.Error("tui exited with error", zap.Error(err))
		return err
	}
	return nil
}

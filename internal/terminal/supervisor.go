package terminal

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rafabd1/therminal/internal/logging"
)

// ProcessStatus is the lifecycle state of the shell process.
type ProcessStatus string

const (
	StatusRunning  ProcessStatus = "running"
	StatusExited   ProcessStatus = "exited"
	StatusSignaled ProcessStatus = "signaled"
	StatusFailed   ProcessStatus = "failed"
)

// ProcessEvent is a notification about the shell process.
type ProcessEvent struct {
	SessionID string
	EventType string // "started" or "exited"
	Status    ProcessStatus
	Pid       int
	ExitCode  int
	Signal    syscall.Signal
	Error     error
}

// ProcessState is a point-in-time copy of what the supervisor knows.
type ProcessState struct {
	Status    ProcessStatus
	Pid       int
	ExitCode  int
	Signal    syscall.Signal
	StartTime time.Time
	EndTime   time.Time
	Error     error
}

// Supervisor waits for a started shell and records how it ended.
type Supervisor struct {
	sessionID string
	cmd       *exec.Cmd
	log       *zap.Logger

	events chan ProcessEvent
	done   chan struct{}
	once   sync.Once

	mu    sync.RWMutex
	state ProcessState
}

// NewSupervisor returns a supervisor for an already started command.
func NewSupervisor(sessionID string, cmd *exec.Cmd, log *zap.Logger) *Supervisor {
	return &Supervisor{
		sessionID: sessionID,
		cmd:       cmd,
		log:       logging.OrNop(log),
		events:    make(chan ProcessEvent, 4),
		done:      make(chan struct{}),
	}
}

// Start begins waiting in the background. Calling it more than once has
// no effect.
func (s *Supervisor) Start() {
	s.once.Do(func() {
		pid := s.cmd.Process.Pid
		s.mu.Lock()
		s.state = ProcessState{Status: StatusRunning, Pid: pid, StartTime: time.Now()}
		s.mu.Unlock()

		s.sendEvent(ProcessEvent{SessionID: s.sessionID, EventType: "started", Status: StatusRunning, Pid: pid})
		go s.wait()
	})
}

func (s *Supervisor) wait() {
	err := s.cmd.Wait()

	s.mu.Lock()
	st := &s.state
	st.EndTime = time.Now()
	st.Error = err
	st.Status, st.ExitCode, st.Signal = classifyExit(s.cmd, err)
	ev := ProcessEvent{
		SessionID: s.sessionID,
		EventType: "exited",
		Status:    st.Status,
		Pid:       st.Pid,
		ExitCode:  st.ExitCode,
		Signal:    st.Signal,
		Error:     err,
	}
	s.mu.Unlock()

	s.log.Info("shell exited",
		zap.Int("pid", ev.Pid),
		zap.String("status", string(ev.Status)),
		zap.Int("exit_code", ev.ExitCode))
	s.sendEvent(ev)
	close(s.done)
}

func classifyExit(cmd *exec.Cmd, err error) (ProcessStatus, int, syscall.Signal) {
	ps := cmd.ProcessState
	if ps == nil {
		return StatusFailed, -1, 0
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return StatusSignaled, -1, ws.Signal()
	}
	if err != nil && ps.ExitCode() == 0 {
		return StatusFailed, -1, 0
	}
	return StatusExited, ps.ExitCode(), 0
}

// sendEvent never blocks; an unread backlog drops the newest event.
func (s *Supervisor) sendEvent(ev ProcessEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug("process event dropped", zap.String("type", ev.EventType))
	}
}

// Events returns process notifications.
func (s *Supervisor) Events() <-chan ProcessEvent { return s.events }

// Exited is closed once the shell has been reaped.
func (s *Supervisor) Exited() <-chan struct{} { return s.done }

// State returns a copy of the current process state.
func (s *Supervisor) State() ProcessState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

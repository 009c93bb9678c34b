// Package job implements krusty's Job Manager (spec §4.E): tracking
// process groups, foreground/background transitions, and the signal
// model an interactive session relies on for Ctrl+C/Ctrl+Z handling.
//
// Grounded on the process-group isolation pattern from llmsh.go's
// Setpgid/Pdeathsig SysProcAttr (_examples other_examples /
// mako10k-llmcmd), generalized from a single forked subprocess to
// krusty's whole pipeline-as-one-process-group model, and on
// diillson-chatcli's main.go graceful-shutdown goroutine pattern
// (os/signal.Notify feeding a channel consumed by a dedicated
// goroutine) for how signals are received and dispatched.
package job

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Status is a Job's lifecycle state.
type Status int

const (
	StatusRunning Status = iota
	StatusStopped
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Signaler abstracts process-group signal delivery so tests can run
// against a fake without spawning real processes. *syscall.Syscall-based
// production signaling lives in Syser below.
type Signaler interface {
	// SignalGroup delivers sig to every process in the group led by pgid
	// (a real implementation does the kill(-pgid, sig) negation itself).
	SignalGroup(pgid int, sig syscall.Signal) error
}

// Syser is the production Signaler: negates pgid per POSIX kill(2)
// convention ("a negative pid targets the process group").
type Syser struct{}

func (Syser) SignalGroup(pgid int, sig syscall.Signal) error {
	return syscall.Kill(-pgid, sig)
}

// Job is one tracked pipeline: a process group plus the bookkeeping the
// shell's `jobs`/`fg`/`bg` builtins read.
type Job struct {
	ID          int
	CommandText string
	Pgid        int
	Proc        *os.Process
	Background  bool
	Status      Status
	ExitCode    int
	StartedAt   time.Time
	FinishedAt  time.Time

	done chan struct{}
}

// Manager tracks all jobs for one shell session. The foreground slot
// holds at most one job id at a time; a foreground job displaced by a
// newer one keeps background=false and status=running on a stack, and
// gets the slot back when the newer job is suspended or finishes.
type Manager struct {
	mu       sync.Mutex
	jobs     map[int]*Job
	order    []int // insertion order, for stable `jobs` listing
	nextID   int
	fg       int // id of the current foreground job, 0 if none
	fgStack  []int
	signaler Signaler
	log      *zap.Logger
}

// New builds a Manager. signaler may be nil to default to Syser{}
// (real kill(2) calls); logger may be nil to default to a no-op logger.
func New(signaler Signaler, logger *zap.Logger) *Manager {
	if signaler == nil {
		signaler = Syser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jobs:     make(map[int]*Job),
		signaler: signaler,
		log:      logger,
	}
}

// AddJob registers a new job and returns its assigned id. If background
// is false and another foreground job is currently running, that job is
// pushed onto the foreground stack and this job becomes the new
// foreground job (mirroring how a shell's current foreground slot
// changes when a new pipeline is launched from the prompt). proc may be
// nil (e.g. a pipeline whose final stage is a builtin); it is stored on
// the Job as given, and all signaling goes to the process group.
func (m *Manager) AddJob(commandText string, pgid int, proc *os.Process, background bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	j := &Job{
		ID:          id,
		CommandText: commandText,
		Pgid:        pgid,
		Proc:        proc,
		Background:  background,
		Status:      StatusRunning,
		StartedAt:   jobNow(),
		done:        make(chan struct{}),
	}
	m.jobs[id] = j
	m.order = append(m.order, id)

	if !background {
		if m.fg != 0 {
			m.fgStack = append(m.fgStack, m.fg)
		}
		m.fg = id
	}

	m.log.Debug("job added", zap.Int("id", id), zap.Int("pgid", pgid), zap.Bool("background", background))
	return id
}

// Get returns the job by id, or false if unknown.
func (m *Manager) Get(id int) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns all jobs in insertion order, for the `jobs` builtin.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		if j, ok := m.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out
}

// Foreground returns the id of the current foreground job, or 0.
func (m *Manager) Foreground() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fg
}

// Suspend transitions a running job to stopped (Ctrl+Z), making it a
// background job and clearing the foreground slot if it held it. Only
// running → stopped is permitted; any other state returns false.
func (m *Manager) Suspend(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusRunning {
		return false
	}
	if err := m.signaler.SignalGroup(j.Pgid, syscall.SIGTSTP); err != nil {
		m.log.Warn("suspend signal failed", zap.Int("id", id), zap.Error(err))
	}
	j.Status = StatusStopped
	j.Background = true
	if m.fg == id {
		m.fg = m.popForeground()
	}
	m.log.Info("job suspended", zap.Int("id", id))
	return true
}

// ResumeBg resumes a stopped job in the background (`bg`). Only
// stopped → running is permitted.
func (m *Manager) ResumeBg(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusStopped {
		return false
	}
	if err := m.signaler.SignalGroup(j.Pgid, syscall.SIGCONT); err != nil {
		m.log.Warn("resume signal failed", zap.Int("id", id), zap.Error(err))
	}
	j.Status = StatusRunning
	j.Background = true
	return true
}

// ResumeFg resumes a stopped job in the foreground (`fg`). Only
// stopped → running is permitted; the resumed job becomes the
// foreground job, displacing whatever held that slot.
func (m *Manager) ResumeFg(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusStopped {
		return false
	}
	if err := m.signaler.SignalGroup(j.Pgid, syscall.SIGCONT); err != nil {
		m.log.Warn("resume signal failed", zap.Int("id", id), zap.Error(err))
	}
	j.Status = StatusRunning
	j.Background = false
	if m.fg != 0 && m.fg != id {
		m.fgStack = append(m.fgStack, m.fg)
	}
	m.fg = id
	return true
}

// Terminate sends sig to the job's process group. The state transition
// to done happens when MarkDone is called by the caller observing the
// child's actual exit, not as a side effect of sending the signal.
func (m *Manager) Terminate(id int, sig syscall.Signal) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %d: no such job", id)
	}
	return m.signaler.SignalGroup(j.Pgid, sig)
}

// MarkDone records that a job's process group has exited, transitioning
// it to done and releasing its foreground slot and wait() waiters. Only
// the goroutine actually waiting on the OS process should call this.
func (m *Manager) MarkDone(id int, exitCode int) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.Status == StatusDone {
		m.mu.Unlock()
		return
	}
	j.Status = StatusDone
	j.ExitCode = exitCode
	j.FinishedAt = jobNow()
	if m.fg == id {
		m.fg = m.popForeground()
	}
	done := j.done
	m.mu.Unlock()
	close(done)
	m.log.Debug("job done", zap.Int("id", id), zap.Int("exitCode", exitCode))
}

// Wait blocks until the job reaches the done state and returns its exit
// code. Returns false if id is unknown.
func (m *Manager) Wait(id int) (int, bool) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	<-j.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].ExitCode, true
}

// popForeground returns the most recently displaced foreground job id
// (LIFO), removing it from the stack, or 0 if none remain. Caller must
// hold m.mu.
func (m *Manager) popForeground() int {
	for len(m.fgStack) > 0 {
		id := m.fgStack[len(m.fgStack)-1]
		m.fgStack = m.fgStack[:len(m.fgStack)-1]
		if j, ok := m.jobs[id]; ok && j.Status == StatusRunning {
			return id
		}
	}
	return 0
}

// jobNow is split out so tests can override wall-clock reads through a
// package-level var without reaching into Manager internals.
var jobNow = time.Now

// Package hook implements krusty's Hook Dispatcher (spec §4.F): event
// registration sorted by descending priority, condition evaluation,
// timeout racing, and the preventDefault/stopPropagation control flow a
// handler's result can request.
//
// Grounded on diillson-chatcli/cli/plugins/manager.go's priority-sorted,
// mutex-guarded registry shape (sort.Slice over a held lock, reload
// without restarting the process), generalized from plugin discovery to
// per-event handler dispatch; the reentrancy guard and timeout racing
// are grounded on the concurrency idioms the teacher already applies
// elsewhere in cli/ via goroutines selecting against a timer channel.
package hook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Context is the immutable payload passed to every handler for one
// dispatch.
type Context struct {
	Event     string
	Data      map[string]any
	Cwd       string
	Timestamp time.Time
	Env       map[string]string
}

// Result is what a single handler invocation produced.
type Result struct {
	HandlerName     string
	Success         bool
	Error           string
	PreventDefault  bool
	StopPropagation bool
}

// HandlerFunc is a programmatic (callback-registered) handler.
type HandlerFunc func(ctx context.Context, hc Context) Result

// ConditionKind tags one of spec §4.F's condition kinds.
type ConditionKind string

const (
	CondEnv       ConditionKind = "env"
	CondFile      ConditionKind = "file"
	CondDirectory ConditionKind = "directory"
	CondCommand   ConditionKind = "command"
	CondCustom    ConditionKind = "custom"
)

// Condition is one AND-ed precondition a registered hook must satisfy
// before it runs. Not inverts the evaluated result.
type Condition struct {
	Kind  ConditionKind
	Value string // variable name, path, command, or shell expression
	Not   bool
}

// CustomEvaluator evaluates a CondCustom expression against a dispatch's
// Context, returning the boolean result. Required only if any
// registered hook uses CondCustom.
type CustomEvaluator func(expr string, hc Context) (bool, error)

// Hook is one registered, declarative handler (as opposed to a
// programmatic HandlerFunc): a command or script template plus its
// conditions, priority, timeout, and sync/async mode.
type Hook struct {
	Name       string
	Event      string
	Command    string // template, expanded per spec §4.F before running
	Priority   int    // higher runs first; ties preserve insertion order
	Conditions []Condition
	TimeoutMS  int  // 0 uses DefaultTimeoutMS
	Async      bool // async hook failures never halt the loop

	insertionIndex int
}

// Runner executes a hook's expanded command template. Condition
// evaluation does not use it: a CondCommand condition only checks that
// the command resolves on PATH, and no condition kind runs a command
// and tests its exit status. *executor.Executor satisfies this
// structurally via a thin adapter the shell core
// supplies, keeping this package free of an internal/executor import.
type Runner interface {
	Run(ctx context.Context, command string) (exitCode int, stdout string, err error)
}

// DefaultTimeoutMS is used when a Hook's TimeoutMS is zero.
const DefaultTimeoutMS = 5000

// Dispatcher owns registered hooks and programmatic handlers for every
// event name, and performs dispatch.
type Dispatcher struct {
	mu       sync.Mutex
	hooks    map[string][]*Hook
	handlers map[string][]HandlerFunc
	running  map[string]bool // reentrancy key -> in progress
	nextIdx  int

	runner    Runner
	evaluator CustomEvaluator
	log       *zap.Logger
}

// New builds a Dispatcher. runner may be nil if no registered hook ever
// needs command execution (tests exercising only programmatic
// handlers); evaluator may be nil if no hook uses CondCustom.
func New(runner Runner, evaluator CustomEvaluator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		hooks:     make(map[string][]*Hook),
		handlers:  make(map[string][]HandlerFunc),
		running:   make(map[string]bool),
		runner:    runner,
		evaluator: evaluator,
		log:       logger,
	}
}

// RegisterHook adds a declarative hook for h.Event, re-sorting that
// event's hooks by descending priority (ties preserve insertion order).
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextIdx++
	h.insertionIndex = d.nextIdx
	hh := &h
	d.hooks[h.Event] = append(d.hooks[h.Event], hh)
	sort.SliceStable(d.hooks[h.Event], func(i, j int) bool {
		a, b := d.hooks[h.Event][i], d.hooks[h.Event][j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.insertionIndex < b.insertionIndex
	})
}

// RegisterHandler adds a programmatic handler for event, run before any
// declarative hooks, in FIFO registration order.
func (d *Dispatcher) RegisterHandler(event string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], fn)
}

// Dispatch runs every applicable handler/hook for event and returns
// their collected results in execution order. A reentrant dispatch for
// the same event+data (detected via a SHA-256 content key) returns an
// empty slice immediately rather than recursing.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, data map[string]any) []Result {
	hc := Context{
		Event:     event,
		Data:      data,
		Cwd:       cwdOrEmpty(),
		Timestamp: dispatchNow(),
		Env:       envMap(),
	}

	key := reentrancyKey(event, data)
	d.mu.Lock()
	if d.running[key] {
		d.mu.Unlock()
		return nil
	}
	d.running[key] = true
	handlers := append([]HandlerFunc(nil), d.handlers[event]...)
	hooks := append([]*Hook(nil), d.hooks[event]...)
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.running, key)
		d.mu.Unlock()
	}()

	var results []Result
	for _, fn := range handlers {
		res := d.runProgrammatic(ctx, fn, hc)
		results = append(results, res)
		if res.StopPropagation {
			return results
		}
	}

	for _, h := range hooks {
		ok, err := d.evaluateConditions(h.Conditions, hc)
		if err != nil {
			d.log.Warn("hook condition evaluation failed", zap.String("hook", h.Name), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		res := d.runHook(ctx, h, hc)
		results = append(results, res)

		if res.StopPropagation {
			break
		}
		if !res.Success && !h.Async {
			break
		}
	}

	return results
}

func (d *Dispatcher) runProgrammatic(ctx context.Context, fn HandlerFunc, hc Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Success: false, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return fn(ctx, hc)
}

func (d *Dispatcher) runHook(parent context.Context, h *Hook, hc Context) Result {
	timeoutMS := h.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}

	ctx, cancel := context.WithTimeout(parent, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	type outcome struct {
		exitCode int
		err      error
	}
	out := make(chan outcome, 1)

	var wg conc.WaitGroup
	wg.Go(func() {
		command := expandTemplate(h.Command, hc)
		if d.runner == nil {
			out <- outcome{exitCode: 1, err: fmt.Errorf("hook %s: no command runner configured", h.Name)}
			return
		}
		code, _, err := d.runner.Run(ctx, command)
		out <- outcome{exitCode: code, err: err}
	})

	select {
	case <-ctx.Done():
		return Result{HandlerName: h.Name, Success: false, Error: "timeout"}
	case o := <-out:
		if o.err != nil {
			return Result{HandlerName: h.Name, Success: false, Error: o.err.Error()}
		}
		return Result{HandlerName: h.Name, Success: o.exitCode == 0}
	}
}

func (d *Dispatcher) evaluateConditions(conds []Condition, hc Context) (bool, error) {
	for _, c := range conds {
		ok, err := d.evaluateCondition(c, hc)
		if err != nil {
			return false, err
		}
		if c.Not {
			ok = !ok
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (d *Dispatcher) evaluateCondition(c Condition, hc Context) (bool, error) {
	switch c.Kind {
	case CondEnv:
		v, ok := hc.Env[c.Value]
		return ok && v != "", nil
	case CondFile:
		info, err := os.Stat(c.Value)
		return err == nil && !info.IsDir(), nil
	case CondDirectory:
		info, err := os.Stat(c.Value)
		return err == nil && info.IsDir(), nil
	case CondCommand:
		_, err := exec.LookPath(c.Value)
		return err == nil, nil
	case CondCustom:
		if d.evaluator == nil {
			return false, fmt.Errorf("custom condition %q: no evaluator configured", c.Value)
		}
		return d.evaluator(c.Value, hc)
	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

var templateVarPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandTemplate substitutes {event}, {cwd}, {timestamp}, {data} (JSON),
// and {ENV_VAR} references in a command/script hook's template.
func expandTemplate(tmpl string, hc Context) string {
	dataJSON, _ := json.Marshal(hc.Data)
	return templateVarPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		switch name {
		case "event":
			return hc.Event
		case "cwd":
			return hc.Cwd
		case "timestamp":
			return hc.Timestamp.Format(time.RFC3339)
		case "data":
			return string(dataJSON)
		default:
			if v, ok := hc.Env[name]; ok {
				return v
			}
			return m
		}
	})
}

func reentrancyKey(event string, data map[string]any) string {
	b, _ := json.Marshal(data)
	sum := sha256.Sum256(append([]byte(event+"\x00"), b...))
	return event + ":" + hex.EncodeToString(sum[:8])
}

func cwdOrEmpty() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Clean(wd)
}

func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// NewDispatchID returns a correlation id for logging one dispatch
// across its handlers, grounded on the teacher's use of
// github.com/google/uuid for request correlation elsewhere in cli/.
func NewDispatchID() string {
	return uuid.NewString()
}

// dispatchNow is split out so tests can freeze time without reaching
// into Dispatcher internals.
var dispatchNow = time.Now

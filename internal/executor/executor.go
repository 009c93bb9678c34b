// Package executor implements krusty's Executor (spec §4.D): spawning
// pipeline stages, wiring their stdio, running builtins in-process,
// applying redirections, and evaluating chain (&&/||/;) short-circuit
// semantics.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/parser"
	"github.com/krustyshell/krusty/internal/redirect"
	"github.com/krustyshell/krusty/internal/shellerr"
	"github.com/sourcegraph/conc"
)

// parseForSubstitution re-parses a command substitution's inner text
// into a chain the executor can run recursively.
func parseForSubstitution(command string) (*ast.ChainedPipeline, error) {
	return parser.Parse(command)
}

// Expander expands a Command's raw Words into ExpandedArgs. Satisfied
// structurally by *expand.Engine without this package importing it.
type Expander interface {
	ExpandCommand(ctx context.Context, cmd *ast.Command) error
}

// JobRegistrar is the Job Manager's integration point for background
// pipelines (component E). Optional: a nil registrar means background
// pipelines are merely detached and not tracked.
type JobRegistrar interface {
	AddJob(commandText string, pgid int, proc *os.Process, background bool) int
}

// Executor runs ChainedPipelines against a fixed set of collaborators.
type Executor struct {
	Builtins BuiltinLookup
	Resolver PathResolver
	Expand   Expander
	Env      EnvironmentProvider
	Jobs     JobRegistrar
	Opts     Options

	fgMu  sync.Mutex
	fgPid []int // process groups of the foreground pipeline currently running
}

// New builds an Executor. Builtins, Resolver, and Expand must be
// non-nil for any real command to run; Env and Jobs may be nil.
func New(builtins BuiltinLookup, resolver PathResolver, expander Expander, opts Options) *Executor {
	if opts.KillSignal == 0 {
		opts.KillSignal = DefaultOptions.KillSignal
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultOptions.GracePeriod
	}
	return &Executor{Builtins: builtins, Resolver: resolver, Expand: expander, Opts: opts}
}

// RunCaptured runs command (re-parsed from scratch) and returns its
// combined stdout, satisfying expand.CommandRunner structurally for the
// expansion engine's command substitution phase.
func (e *Executor) RunCaptured(ctx context.Context, command string) (string, error) {
	chain, err := parseForSubstitution(command)
	if err != nil {
		return "", err
	}
	res, err := e.RunChain(ctx, chain, IO{Stdin: strings.NewReader(""), Stdout: io.Discard, Stderr: io.Discard}, true)
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

// RunChain evaluates a full &&/||/;-chained pipeline sequence with
// short-circuit semantics, returning the last executed segment's result.
func (e *Executor) RunChain(ctx context.Context, chain *ast.ChainedPipeline, ioStreams IO, capture bool) (*ast.CommandResult, error) {
	var result *ast.CommandResult
	lastExit := 0
	ran := false

	for _, seg := range chain.Segments {
		switch seg.Op {
		case ast.ChainAnd:
			if ran && lastExit != 0 {
				continue
			}
		case ast.ChainOr:
			if ran && lastExit == 0 {
				continue
			}
		}

		if e.Opts.XTrace {
			fmt.Fprintf(ioStreams.Stderr, "+ %s\n", seg.Pipeline.Raw)
		}

		res, err := e.RunPipeline(ctx, seg.Pipeline, ioStreams, capture)
		if err != nil {
			return result, err
		}
		result = res
		lastExit = res.ExitCode
		ran = true
	}

	if result == nil {
		result = &ast.CommandResult{}
	}
	return result, nil
}

// RunPipeline runs one |-chained pipeline, wiring each stage's stdout to
// the next stage's stdin via OS pipes. A background pipeline (trailing
// &) is launched without waiting and returns immediately with exit 0.
func (e *Executor) RunPipeline(ctx context.Context, pipeline *ast.Pipeline, ioStreams IO, capture bool) (*ast.CommandResult, error) {
	if pipeline.Background {
		return e.runBackground(pipeline, ioStreams)
	}

	start := time.Now()

	var capturedOut bytes.Buffer
	var finalStdout io.Writer = ioStreams.Stdout
	if capture {
		finalStdout = &capturedOut
	}

	n := len(pipeline.Stages)
	stdins := make([]io.Reader, n)
	stdouts := make([]io.Writer, n)
	stdins[0] = ioStreams.Stdin
	stdouts[n-1] = finalStdout

	var pipeFiles []*os.File
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, shellerr.Wrap(shellerr.Redirection("pipeline pipe"), err)
		}
		pipeFiles = append(pipeFiles, pr, pw)
		stdouts[i] = pw
		stdins[i+1] = pr
	}

	exitCodes := make([]int, n)
	exitFlags := make([]bool, n)
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Go(func() {
			code, isExit, _ := e.runStage(ctx, pipeline.Stages[i], stdins[i], stdouts[i], ioStreams.Stderr)
			exitCodes[i] = code
			exitFlags[i] = isExit
			if i < n-1 {
				if pw, ok := stdouts[i].(*os.File); ok {
					pw.Close()
				}
			}
		})
	}
	wg.Wait()
	for _, f := range pipeFiles {
		f.Close()
	}

	exitCode := exitCodes[n-1]
	if e.Opts.PipeFail {
		exitCode = 0
		for _, c := range exitCodes {
			if c != 0 {
				exitCode = c
			}
		}
	}

	var sessionExit bool
	for _, f := range exitFlags {
		if f {
			sessionExit = true
		}
	}

	result := &ast.CommandResult{
		ExitCode: exitCode,
		Duration: time.Since(start).Milliseconds(),
		Streamed: !capture,
		Metadata: ast.ControlMetadata{IsExit: sessionExit},
	}
	if capture {
		result.Stdout = capturedOut.Bytes()
	}
	return result, nil
}

// runBackground launches a pipeline without waiting for completion,
// registering it with the Job Manager when one is wired in. Single-stage
// pipelines (by far the common `cmd &` case) are started synchronously
// far enough to capture the spawned process and hand it to the Job
// Manager before returning; multi-stage background pipelines (`a | b &`)
// fall back to the prior fire-and-forget behavior, a known
// simplification noted in DESIGN.md, since coordinating one shared
// process group across concurrently-started stages needs more plumbing
// than a single external command does.
func (e *Executor) runBackground(pipeline *ast.Pipeline, ioStreams IO) (*ast.CommandResult, error) {
	fgPipeline := &ast.Pipeline{Stages: pipeline.Stages, Raw: pipeline.Raw}

	if e.Jobs != nil && len(pipeline.Stages) == 1 {
		if res, ok := e.runBackgroundSingle(pipeline.Stages[0], pipeline.Raw, ioStreams); ok {
			return res, nil
		}
	}

	go func() {
		_, _ = e.RunPipeline(context.Background(), fgPipeline, ioStreams, false)
	}()
	return &ast.CommandResult{ExitCode: 0, Streamed: true}, nil
}

// exitSignaler is satisfied by builtin.ExitError without this package
// importing internal/builtin: the `exit` builtin reports its exit code
// through a returned error (the Executor has no other per-call channel
// back to the Shell Core), and this lets runStage recognize that error
// shape structurally and avoid printing it like a real failure.
type exitSignaler interface {
	ExitSignal() int
}

// runStage expands, resolves redirections for, and executes a single
// pipeline stage (builtin or external). The returned bool reports
// whether the stage ran `exit`, for the caller to fold into the
// pipeline result's Metadata.IsExit.
func (e *Executor) runStage(ctx context.Context, cmd *ast.Command, stdin io.Reader, stdout, stderr io.Writer) (int, bool, error) {
	if e.Expand != nil {
		if err := e.Expand.ExpandCommand(ctx, cmd); err != nil {
			fmt.Fprintln(stderr, err)
			return exitCodeOf(err, 1), false, nil
		}
	}

	ops, err := redirect.Resolve(cmd)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeOf(err, 1), false, nil
	}

	stdio, err := resolveStdio(ops, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeOf(err, 1), false, nil
	}
	defer stdio.cleanup()

	if len(cmd.ExpandedArgs) == 0 {
		return 0, false, nil
	}
	name := cmd.ExpandedArgs[0]

	if e.Opts.XTrace {
		fmt.Fprintf(stdio.stderr, "+ %s\n", strings.Join(cmd.ExpandedArgs, " "))
	}

	if e.Builtins != nil {
		if fn, ok := e.Builtins.Lookup(name); ok {
			code, err := fn(ctx, cmd.ExpandedArgs, stdio.stdin, stdio.stdout, stdio.stderr)
			if err != nil {
				if es, ok := err.(exitSignaler); ok {
					return es.ExitSignal(), true, nil
				}
				fmt.Fprintln(stdio.stderr, err)
				if code == 0 {
					code = 1
				}
			}
			return code, false, nil
		}
	}

	code, err := e.runExternal(ctx, cmd.ExpandedArgs, stdio)
	return code, false, err
}

func (e *Executor) runExternal(ctx context.Context, args []string, stdio *resolvedStdio) (int, error) {
	var path string
	if e.Resolver != nil {
		resolved, ok := e.Resolver.ResolvePath(args[0])
		if !ok {
			fmt.Fprintf(stdio.stderr, "%s: command not found\n", args[0])
			return 127, shellerr.SpawnNotFound(args[0])
		}
		path = resolved
	} else {
		path = args[0]
	}

	cmd := exec.Command(path, args[1:]...)
	cmd.Stdin = stdio.stdin
	cmd.Stdout = stdio.stdout
	cmd.Stderr = stdio.stderr
	cmd.ExtraFiles = stdio.extraFiles
	// Each external command becomes its own process group leader, so a
	// signal the Job Manager sends to a background job's pgid lands on
	// the job's processes only, not on krusty itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if e.Env != nil {
		cmd.Env = e.Env.Environ()
	}

	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			fmt.Fprintf(stdio.stderr, "%s: permission denied\n", args[0])
			return 126, shellerr.SpawnPermissionDenied(args[0])
		}
		fmt.Fprintf(stdio.stderr, "%s: command not found\n", args[0])
		return 127, shellerr.SpawnNotFound(args[0])
	}

	pgid := cmd.Process.Pid
	e.addForegroundPGID(pgid)
	defer e.removeForegroundPGID(pgid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer *time.Timer
	if e.Opts.DefaultTimeout > 0 {
		timer = time.AfterFunc(e.Opts.DefaultTimeout, func() {
			if cmd.Process != nil {
				cmd.Process.Signal(e.Opts.KillSignal)
				time.AfterFunc(e.Opts.GracePeriod, func() {
					if cmd.Process != nil {
						cmd.Process.Kill()
					}
				})
			}
		})
	}

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
		return 128 + int(syscall.SIGKILL), ctx.Err()
	case werr := <-done:
		if timer != nil {
			timer.Stop()
		}
		if werr == nil {
			return 0, nil
		}
		if exitErr, ok := werr.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				if ws.Signaled() {
					return 128 + int(ws.Signal()), nil
				}
				return ws.ExitStatus(), nil
			}
			return exitErr.ExitCode(), nil
		}
		return 1, werr
	}
}

// ForegroundPGIDs returns the process group ids of every external
// command currently running as part of a non-background pipeline, for
// a REPL's Ctrl+Z handler to forward SIGTSTP to directly (context
// cancellation, used for Ctrl+C, has no "stop" equivalent).
func (e *Executor) ForegroundPGIDs() []int {
	e.fgMu.Lock()
	defer e.fgMu.Unlock()
	out := make([]int, len(e.fgPid))
	copy(out, e.fgPid)
	return out
}

func (e *Executor) addForegroundPGID(pgid int) {
	e.fgMu.Lock()
	defer e.fgMu.Unlock()
	e.fgPid = append(e.fgPid, pgid)
}

func (e *Executor) removeForegroundPGID(pgid int) {
	e.fgMu.Lock()
	defer e.fgMu.Unlock()
	for i, p := range e.fgPid {
		if p == pgid {
			e.fgPid = append(e.fgPid[:i], e.fgPid[i+1:]...)
			return
		}
	}
}

func exitCodeOf(err error, def int) int {
	if se, ok := err.(*shellerr.Error); ok && se.ExitCode != 0 {
		return se.ExitCode
	}
	return def
}

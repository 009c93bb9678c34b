package executor

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/redirect"
)

// runBackgroundSingle spawns a single-stage background pipeline's
// external command far enough to obtain its pgid, registers it with the
// Job Manager, and returns true once that registration has happened
// (false tells the caller to fall back to the generic fire-and-forget
// path, e.g. because the stage resolved to a builtin rather than an
// external process).
func (e *Executor) runBackgroundSingle(cmd *ast.Command, raw string, ioStreams IO) (*ast.CommandResult, bool) {
	ctx := context.Background()

	if e.Expand != nil {
		if err := e.Expand.ExpandCommand(ctx, cmd); err != nil {
			fmt.Fprintln(ioStreams.Stderr, err)
			return &ast.CommandResult{ExitCode: 1, Streamed: true}, true
		}
	}
	if len(cmd.ExpandedArgs) == 0 {
		return &ast.CommandResult{ExitCode: 0, Streamed: true}, true
	}
	name := cmd.ExpandedArgs[0]
	if e.Builtins != nil {
		if _, ok := e.Builtins.Lookup(name); ok {
			return nil, false
		}
	}

	ops, err := redirect.Resolve(cmd)
	if err != nil {
		fmt.Fprintln(ioStreams.Stderr, err)
		return &ast.CommandResult{ExitCode: 1, Streamed: true}, true
	}
	stdio, err := resolveStdio(ops, ioStreams.Stdin, ioStreams.Stdout, ioStreams.Stderr)
	if err != nil {
		fmt.Fprintln(ioStreams.Stderr, err)
		return &ast.CommandResult{ExitCode: 1, Streamed: true}, true
	}

	var path string
	if e.Resolver != nil {
		resolved, ok := e.Resolver.ResolvePath(name)
		if !ok {
			fmt.Fprintf(ioStreams.Stderr, "%s: command not found\n", name)
			stdio.cleanup()
			return &ast.CommandResult{ExitCode: 127, Streamed: true}, true
		}
		path = resolved
	} else {
		path = name
	}

	proc := exec.Command(path, cmd.ExpandedArgs[1:]...)
	proc.Stdin = stdio.stdin
	proc.Stdout = stdio.stdout
	proc.Stderr = stdio.stderr
	proc.ExtraFiles = stdio.extraFiles
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if e.Env != nil {
		proc.Env = e.Env.Environ()
	}

	if err := proc.Start(); err != nil {
		fmt.Fprintf(ioStreams.Stderr, "%s: %v\n", name, err)
		stdio.cleanup()
		return &ast.CommandResult{ExitCode: 127, Streamed: true}, true
	}

	pgid := proc.Process.Pid
	id := e.Jobs.AddJob(raw, pgid, proc.Process, true)

	go func() {
		defer stdio.cleanup()
		werr := proc.Wait()
		code := 0
		if werr != nil {
			if exitErr, ok := werr.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = 1
			}
		}
		if mgr, ok := e.Jobs.(interface{ MarkDone(int, int) }); ok {
			mgr.MarkDone(id, code)
		}
	}()

	return &ast.CommandResult{ExitCode: 0, Streamed: true}, true
}

package shell

import (
	"context"
	"io"
	"strings"

	"github.com/krustyshell/krusty/internal/config"
	"github.com/krustyshell/krusty/internal/executor"
	"github.com/krustyshell/krusty/internal/hook"
	"github.com/krustyshell/krusty/internal/parser"
)

// hookExecRunner adapts *executor.Executor to hook.Runner. It can't just
// forward to Executor.RunCaptured, which discards the exit code the
// hook dispatcher needs to decide success/failure — it re-parses and
// runs the chain itself so it can read both res.ExitCode and
// res.Stdout off the CommandResult.
type hookExecRunner struct {
	exec *executor.Executor
}

func (r *hookExecRunner) Run(ctx context.Context, command string) (int, string, error) {
	chain, err := parser.Parse(command)
	if err != nil {
		return 1, "", err
	}
	res, err := r.exec.RunChain(ctx, chain, executor.IO{
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: io.Discard,
	}, true)
	if err != nil {
		return 1, "", err
	}
	return res.ExitCode, string(res.Stdout), nil
}

// registerConfiguredHooks turns the config file's hooks map into
// declarative hook.Hook registrations. Plugin- or function-triggered
// hooks (Trigger != "command"/"script", or an empty Command) are
// skipped; plugin hook handlers are registered from the plugins' own
// HookProvider contributions, not from these config entries.
func registerConfiguredHooks(d *hook.Dispatcher, specs map[string]config.HookSpec) {
	for name, spec := range specs {
		if !spec.Enabled || spec.Command == "" {
			continue
		}
		if spec.Trigger != "" && spec.Trigger != "command" && spec.Trigger != "script" {
			continue
		}
		d.RegisterHook(hook.Hook{
			Name:      name,
			Event:     spec.Event,
			Command:   spec.Command,
			Priority:  spec.Priority,
			TimeoutMS: spec.TimeoutMs,
			Async:     spec.Async,
		})
	}
}

// Lifecycle event names the Shell Core dispatches, named so every call
// site shares one literal.
const (
	eventShellInit       = "shell:init"
	eventCommandBefore   = "command:before"
	eventCommandAfter    = "command:after"
	eventCommandError    = "command:error"
	eventDirectoryChange = "directory:change"
	eventPromptBefore    = "prompt:before"
	eventHistoryAdd      = "history:add"
)

func (s *Shell) dispatch(ctx context.Context, event string, data map[string]any) []hook.Result {
	return s.Hooks.Dispatch(ctx, event, data)
}

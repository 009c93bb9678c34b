package hook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	exitCode int
	delay    time.Duration
	lastCmd  string
}

func (s *stubRunner) Run(ctx context.Context, command string) (int, string, error) {
	s.lastCmd = command
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}
	return s.exitCode, "", nil
}

func TestDispatchRunsProgrammaticHandlersBeforeHooks(t *testing.T) {
	d := New(&stubRunner{exitCode: 0}, nil, nil)
	var order []string

	d.RegisterHandler("pre_command", func(ctx context.Context, hc Context) Result {
		order = append(order, "handler")
		return Result{Success: true}
	})
	d.RegisterHook(Hook{Name: "logger", Event: "pre_command", Command: "true"})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	assert.Equal(t, []string{"handler"}, order)
	require.Len(t, results, 2)
	assert.Equal(t, "logger", results[1].HandlerName)
}

func TestDispatchOrdersHooksByDescendingPriority(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	d := New(runner, nil, nil)

	var ran []string
	d.RegisterHandler("pre_command", func(ctx context.Context, hc Context) Result {
		return Result{Success: true}
	})
	d.RegisterHook(Hook{Name: "low", Event: "pre_command", Command: "echo low", Priority: 1})
	d.RegisterHook(Hook{Name: "high", Event: "pre_command", Command: "echo high", Priority: 10})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	for _, r := range results[1:] {
		ran = append(ran, r.HandlerName)
	}
	require.Equal(t, []string{"high", "low"}, ran)
}

func TestDispatchReentrancyGuardReturnsEmpty(t *testing.T) {
	d := New(&stubRunner{exitCode: 0}, nil, nil)

	var nested []Result
	d.RegisterHandler("pre_command", func(ctx context.Context, hc Context) Result {
		nested = d.Dispatch(ctx, "pre_command", hc.Data)
		return Result{Success: true}
	})

	d.Dispatch(context.Background(), "pre_command", map[string]any{"x": 1})
	assert.Empty(t, nested)
}

func TestDispatchConditionGatesHook(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	d := New(runner, nil, nil)
	d.RegisterHook(Hook{
		Name:       "needs-env",
		Event:      "pre_command",
		Command:    "echo hi",
		Conditions: []Condition{{Kind: CondEnv, Value: "KRUSTY_HOOK_TEST_UNSET_VAR"}},
	})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	assert.Empty(t, results)
}

func TestDispatchNotInvertsCondition(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	d := New(runner, nil, nil)
	d.RegisterHook(Hook{
		Name:       "runs-when-file-missing",
		Event:      "pre_command",
		Command:    "echo hi",
		Conditions: []Condition{{Kind: CondFile, Value: "/no/such/file/krusty-hook-test", Not: true}},
	})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestDispatchSyncFailureHaltsLoop(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	d := New(runner, nil, nil)
	// A failing synchronous hook halts the remaining hooks.
	d.RegisterHook(Hook{Name: "first", Event: "pre_command", Command: "false", Priority: 2})
	d.RegisterHook(Hook{Name: "second", Event: "pre_command", Command: "true", Priority: 1})

	runner.exitCode = 1
	results := d.Dispatch(context.Background(), "pre_command", nil)
	require.Len(t, results, 1, "a failing synchronous hook halts remaining dispatch")
	assert.False(t, results[0].Success)
}

func TestDispatchAsyncFailureDoesNotHaltLoop(t *testing.T) {
	calls := 0
	d := New(&stubRunner{exitCode: 1}, nil, nil)
	d.RegisterHook(Hook{Name: "first", Event: "pre_command", Command: "false", Priority: 2, Async: true})
	d.RegisterHook(Hook{Name: "second", Event: "pre_command", Command: "true", Priority: 1, Async: true})
	d.RegisterHandler("pre_command", func(ctx context.Context, hc Context) Result {
		calls++
		return Result{Success: true}
	})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	assert.Len(t, results, 3)
	assert.Equal(t, 1, calls)
}

func TestDispatchHookTimesOut(t *testing.T) {
	runner := &stubRunner{exitCode: 0, delay: 50 * time.Millisecond}
	d := New(runner, nil, nil)
	d.RegisterHook(Hook{Name: "slow", Event: "pre_command", Command: "sleep", TimeoutMS: 5})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "timeout", results[0].Error)
}

func TestExpandTemplateSubstitutesKnownVars(t *testing.T) {
	hc := Context{Event: "pre_command", Cwd: "/home/krusty", Timestamp: time.Unix(0, 0).UTC(), Env: map[string]string{"USER": "kay"}}
	out := expandTemplate("{event} in {cwd} as {USER}", hc)
	assert.Equal(t, "pre_command in /home/krusty as kay", out)
}

func TestCustomConditionUsesEvaluator(t *testing.T) {
	evaluator := func(expr string, hc Context) (bool, error) {
		return expr == "always-true", nil
	}
	d := New(&stubRunner{exitCode: 0}, evaluator, nil)
	d.RegisterHook(Hook{
		Name:       "custom",
		Event:      "pre_command",
		Command:    "echo hi",
		Conditions: []Condition{{Kind: CondCustom, Value: "always-true"}},
	})

	results := d.Dispatch(context.Background(), "pre_command", nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

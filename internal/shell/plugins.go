package shell

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/krustyshell/krusty/internal/completion"
	"github.com/krustyshell/krusty/internal/editor"
	"github.com/krustyshell/krusty/internal/hook"
	"github.com/krustyshell/krusty/internal/plugin"
)

// wirePlugins loads every plugin in the plugin directory, folds their
// contributed commands/aliases/hooks/completions into the matching
// collaborator, and starts the hot-reload watch. Three signature
// mismatches between the plugin contract and the internal collaborator
// interfaces each get a small adapter here rather than widening either
// package's contract to match the other.
func (s *Shell) wirePlugins(ctx context.Context) {
	s.Plugins.Reload(ctx)
	s.applyPluginContributions(ctx)

	if err := s.Plugins.Watch(ctx); err != nil {
		s.log.Warn("plugin directory watch failed", zap.Error(err))
	}
}

// applyPluginContributions re-reads the plugin manager's current
// aggregate state and re-applies it to the builtins table, alias store,
// hook dispatcher, and completion provider. Called once after the
// initial Reload and again by ReloadPlugins. A reload done by the
// manager's own fsnotify loop is not followed by a call here, since the
// manager exposes no reload event.
func (s *Shell) applyPluginContributions(ctx context.Context) {
	for qualified, cmd := range s.Plugins.Commands() {
		s.Builtins.Register(qualified, s.adaptPluginCommand(cmd))
	}

	for alias, expansion := range s.Plugins.Aliases() {
		s.Builtins.Aliases.Set(alias, expansion)
	}

	for event, handlers := range s.Plugins.Hooks() {
		for _, h := range handlers {
			s.Hooks.RegisterHandler(event, adaptPluginHook(h))
		}
	}

	var pluginCompleters []completion.PluginCompleter
	for _, entry := range s.Plugins.Completions() {
		pluginCompleters = append(pluginCompleters, adaptPluginCompletion(entry))
	}
	if len(pluginCompleters) > 0 {
		s.Complete.AddPluginCompleters(pluginCompleters)
	}
}

// adaptPluginCommand turns a plugin.Command (string, error) call into
// an executor.Builtin (int, error) call: success writes the returned
// string to stdout and exits 0; an error writes to stderr and exits 1.
func (s *Shell) adaptPluginCommand(cmd plugin.Command) func(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return func(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
		pctx := &plugin.Context{
			Host: plugin.Host{
				Getenv:        os.Getenv,
				WorkingDir:    workingDir,
				KrustyVersion: s.opts.Version,
			},
			Args: args,
		}
		out, err := cmd.Execute(ctx, args, pctx)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1, nil
		}
		if out != "" {
			fmt.Fprintln(stdout, out)
		}
		return 0, nil
	}
}

// adaptPluginHook turns a plugin.HookHandler (data-in, data-out map)
// into a hook.HandlerFunc (Context-in, Result-out): the returned map
// is discarded after logging would be the natural extension point, but
// spec.md's hook contract only defines success/failure plus the
// control-flow flags, so only a handler error maps to a failed Result.
func adaptPluginHook(h plugin.HookHandler) hook.HandlerFunc {
	return func(ctx context.Context, hc hook.Context) hook.Result {
		_, err := h(ctx, hc.Data)
		if err != nil {
			return hook.Result{Success: false, Error: err.Error()}
		}
		return hook.Result{Success: true}
	}
}

// adaptPluginCompletion turns a plugin.CompletionEntry's []string
// completions into editor.Suggestion values, using the raw text as
// both the insert text and the displayed label.
func adaptPluginCompletion(entry plugin.CompletionEntry) completion.PluginCompleter {
	return completion.PluginCompleter{
		Prefix: entry.Prefix,
		Complete: func(line string, cursor int) []editor.Suggestion {
			raw := entry.Complete(line, cursor)
			out := make([]editor.Suggestion, 0, len(raw))
			for _, r := range raw {
				out = append(out, editor.Suggestion{Label: r, Insert: r, Group: "plugin"})
			}
			return out
		},
	}
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

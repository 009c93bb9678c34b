// Package shell implements krusty's Shell Core (spec §2, component K):
// the orchestrator that owns config, environment, aliases, the builtins
// table, and every other component, and drives the REPL loop that reads
// a line via the Line Editor, parses it, expands it, runs it through
// the Executor, and records it in the History Store.
//
// Grounded on diillson-chatcli/cli/cli.go's ChatCLI: the same
// construct-collaborators-then-Start(ctx)-loop shape, generalized from
// LLM chat-turn handling to parse→expand→execute→record shell command
// processing, and main.go's handleGracefulShutdown for the signal-driven
// context cancellation pattern.
package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krustyshell/krusty/internal/builtin"
	"github.com/krustyshell/krusty/internal/completion"
	"github.com/krustyshell/krusty/internal/config"
	"github.com/krustyshell/krusty/internal/editor"
	"github.com/krustyshell/krusty/internal/executor"
	"github.com/krustyshell/krusty/internal/expand"
	"github.com/krustyshell/krusty/internal/history"
	"github.com/krustyshell/krusty/internal/hook"
	"github.com/krustyshell/krusty/internal/job"
	"github.com/krustyshell/krusty/internal/plugin"
	"github.com/krustyshell/krusty/internal/prompt"
)

// Options configures one Shell instance.
type Options struct {
	Version       string
	ConfigPath    string // overrides config.ConfigFilePath's default
	PluginDir     string // overrides "~/.krusty/plugins"
	HistoryPath   string // overrides cfg.History.File
	Stdin         *os.File
	Stdout        *os.File
	Stderr        *os.File
}

// Shell wires every component together and owns the REPL loop.
type Shell struct {
	opts   Options
	log    *zap.Logger
	cfgMgr *config.Manager

	Builtins *builtin.Registry
	Jobs     *job.Manager
	History  *history.Store
	Expand   *expand.Engine
	Exec     *executor.Executor
	Hooks    *hook.Dispatcher
	Plugins  *plugin.Manager
	Complete *completion.Completer
	Prompt   *prompt.Composer

	editorCfg editor.Config

	shellLevel int

	mu            sync.Mutex
	fgCancel      context.CancelFunc
	lastExit      int
	exitRequested bool
	lastCwd       string
}

// commandRunner adapts *executor.Executor to expand.CommandRunner,
// constructed empty and filled in once the Executor exists, breaking
// the Engine↔Executor construction cycle (the Engine needs a runner at
// New time; the Executor needs the Engine as its Expander at its own
// New time).
type commandRunner struct {
	exec *executor.Executor
}

func (r *commandRunner) RunCaptured(ctx context.Context, command string) (string, error) {
	if r.exec == nil {
		return "", fmt.Errorf("shell: command substitution before executor is wired")
	}
	return r.exec.RunCaptured(ctx, command)
}

// New constructs a fully wired Shell: config is loaded first (so every
// other component can read its own settings tier out of it), then
// builtins, history, the expansion engine, the job manager, the
// executor (tied to the engine via commandRunner), hook dispatcher,
// plugin manager, completion provider and prompt composer, in that
// dependency order.
func New(opts Options, logger *zap.Logger) (*Shell, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = config.ConfigFilePath()
	}
	cfgMgr := config.New(cfgPath, logger)
	if err := cfgMgr.Load(); err != nil {
		logger.Warn("config load failed, using defaults", zap.Error(err))
	}
	cfg := cfgMgr.Get()

	reg := builtin.New(opts.Version)
	for name, value := range cfg.Environment {
		reg.Env.Export(name, value, true)
	}
	for name, value := range cfg.Aliases {
		reg.Aliases.Set(name, value)
	}

	histPath := opts.HistoryPath
	if histPath == "" {
		histPath = cfg.History.File
	}
	histStore, err := history.Open(history.Options{
		Path:             expandHome(histPath),
		MaxEntries:       cfg.History.MaxEntries,
		IgnoreSpace:      cfg.History.IgnoreSpace,
		IgnoreDuplicates: cfg.History.IgnoreDuplicates,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("shell: opening history: %w", err)
	}
	reg.History = histStore

	runner := &commandRunner{}
	expandEngine, err := expand.New(reg.Env, histStore, runner, expand.Options{
		IFS: " \t\n",
	})
	if err != nil {
		return nil, fmt.Errorf("shell: building expansion engine: %w", err)
	}
	reg.Expand = expandEngine

	jobs := job.New(job.Syser{}, logger)
	reg.Jobs = jobs

	execOpts := executor.DefaultOptions
	if cfg.Execution.DefaultTimeoutMs > 0 {
		execOpts.DefaultTimeout = time.Duration(cfg.Execution.DefaultTimeoutMs) * time.Millisecond
	}
	execOpts.StreamOutput = cfg.StreamOutput
	exec := executor.New(reg, expandEngine, expandEngine, execOpts)
	exec.Jobs = jobs
	exec.Env = reg.Env
	runner.exec = exec
	reg.Exec = exec

	hookRunner := &hookExecRunner{exec: exec}
	dispatcher := hook.New(hookRunner, nil, logger)
	registerConfiguredHooks(dispatcher, cfg.Hooks)

	pluginDir := opts.PluginDir
	if pluginDir == "" {
		pluginDir = defaultPluginDir()
	}
	pluginMgr := plugin.NewManager(pluginDir, opts.Version, logger)

	comp := completion.New(completion.Config{
		Builtins: reg.Names,
		Aliases:  reg.AliasNames,
		EnvVars:  reg.EnvVarNames,
	})

	modules, order := prompt.Defaults()
	composer := prompt.New(prompt.Config{
		Modules:          modules,
		Format:           order,
		SimpleWhenNotTTY: cfg.Prompt.SimpleWhenNotTTY,
	})

	sh := &Shell{
		opts:     opts,
		log:      logger,
		cfgMgr:   cfgMgr,
		Builtins: reg,
		Jobs:     jobs,
		History:  histStore,
		Expand:   expandEngine,
		Exec:     exec,
		Hooks:    dispatcher,
		Plugins:  pluginMgr,
		Complete: comp,
		Prompt:   composer,
		shellLevel: currentShellLevel(),
	}

	sh.wirePlugins(context.Background())
	cfgMgr.OnChange(sh.onConfigChange)
	if err := cfgMgr.Watch(); err != nil {
		logger.Warn("config file watch failed", zap.Error(err))
	}

	sh.signalLoop()

	return sh, nil
}

// Close tears down collaborators that hold external resources (plugin
// shared objects, the config file watcher, the history file).
func (s *Shell) Close() {
	s.Plugins.Close(context.Background())
	s.cfgMgr.Close()
	if err := s.History.Save(); err != nil {
		s.log.Error("saving history on shutdown", zap.Error(err))
	}
}

// ExitCode reports the exit status of the last command run, for main's
// os.Exit propagation once Run/RunScript returns.
func (s *Shell) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExit
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func defaultPluginDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), ".krusty", "plugins")
	}
	return filepath.Join(home, ".krusty", "plugins")
}

func currentShellLevel() int {
	n, err := strconv.Atoi(os.Getenv("SHLVL"))
	if err != nil {
		return 1
	}
	return n + 1
}

package shell

import (
	"context"

	"github.com/krustyshell/krusty/internal/config"
)

// onConfigChange re-applies a reloaded config's hook declarations and
// environment/alias seeds. It does not touch history or prompt
// settings: the history store and prompt composer keep the values they
// were built with in New.
func (s *Shell) onConfigChange(cfg config.Config) {
	for name, value := range cfg.Environment {
		if _, exists := s.Builtins.Env.Get(name); !exists {
			s.Builtins.Env.Export(name, value, true)
		}
	}
	for name, value := range cfg.Aliases {
		s.Builtins.Aliases.Set(name, value)
	}
	registerConfiguredHooks(s.Hooks, cfg.Hooks)
}

// Config returns the shell's current effective configuration.
func (s *Shell) Config() config.Config { return s.cfgMgr.Get() }

// ReloadPlugins re-scans the plugin directory and re-applies any newly
// discovered contributions, for the `plugin reload` builtin.
func (s *Shell) ReloadPlugins(ctx context.Context) {
	s.Plugins.Reload(ctx)
	s.applyPluginContributions(ctx)
}

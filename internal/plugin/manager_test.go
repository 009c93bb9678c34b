package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakePlugin struct {
	meta        Metadata
	initialized bool
	activated   bool
	deactivated bool
	destroyed   bool
	initErr     error
	commands    map[string]Command
	aliases     map[string]string
	hooks       map[string]HookHandler
}

func (p *fakePlugin) Metadata() Metadata { return p.meta }

func (p *fakePlugin) Initialize(ctx context.Context, host Host) error {
	p.initialized = true
	return p.initErr
}

func (p *fakePlugin) Activate(ctx context.Context) error {
	p.activated = true
	return nil
}

func (p *fakePlugin) Deactivate(ctx context.Context) error {
	p.deactivated = true
	return nil
}

func (p *fakePlugin) Destroy(ctx context.Context) error {
	p.destroyed = true
	return nil
}

func (p *fakePlugin) Commands() map[string]Command { return p.commands }
func (p *fakePlugin) Aliases() map[string]string    { return p.aliases }
func (p *fakePlugin) Hooks() map[string]HookHandler { return p.hooks }

func writeFakeSO(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReloadLoadsAndInitializesPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "deploy.so")

	fp := &fakePlugin{meta: Metadata{Name: "deploy", Version: "1.0.0", KrustyVersion: ">=1.0.0"}}
	m := NewManager(dir, "1.2.0", nil)
	m.SetLoader(func(path string) (Plugin, error) { return fp, nil })

	m.Reload(context.Background())

	if !fp.initialized || !fp.activated {
		t.Fatalf("expected plugin initialized and activated, got init=%v activate=%v", fp.initialized, fp.activated)
	}
	plugins := m.Plugins()
	if _, ok := plugins["deploy"]; !ok {
		t.Fatalf("expected deploy plugin registered, got %v", plugins)
	}
}

func TestReloadSkipsPluginFailingVersionConstraint(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "old.so")

	fp := &fakePlugin{meta: Metadata{Name: "old", Version: "1.0.0", KrustyVersion: ">=2.0.0"}}
	m := NewManager(dir, "1.2.0", nil)
	m.SetLoader(func(path string) (Plugin, error) { return fp, nil })

	m.Reload(context.Background())

	if fp.initialized {
		t.Fatal("expected plugin failing version constraint to not be initialized")
	}
	if len(m.Plugins()) != 0 {
		t.Fatalf("expected no plugins registered, got %v", m.Plugins())
	}
}

func TestCommandsAreNamespacedByPluginName(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "deploy.so")

	fp := &fakePlugin{
		meta: Metadata{Name: "deploy", KrustyVersion: ">=1.0.0"},
		commands: map[string]Command{
			"staging": {Description: "deploy to staging"},
		},
	}
	m := NewManager(dir, "1.0.0", nil)
	m.SetLoader(func(path string) (Plugin, error) { return fp, nil })
	m.Reload(context.Background())

	cmds := m.Commands()
	if _, ok := cmds["deploy:staging"]; !ok {
		t.Fatalf("expected deploy:staging in %v", cmds)
	}
}

func TestAliasesLaterPluginWinsOnConflict(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "a_first.so")
	writeFakeSO(t, dir, "z_second.so")

	first := &fakePlugin{meta: Metadata{Name: "a_first"}, aliases: map[string]string{"ll": "ls -la"}}
	second := &fakePlugin{meta: Metadata{Name: "z_second"}, aliases: map[string]string{"ll": "ls -lah"}}

	m := NewManager(dir, "1.0.0", nil)
	m.SetLoader(func(path string) (Plugin, error) {
		if filepath.Base(path) == "a_first.so" {
			return first, nil
		}
		return second, nil
	})
	m.Reload(context.Background())

	aliases := m.Aliases()
	if aliases["ll"] != "ls -lah" {
		t.Fatalf("got ll=%q, want later plugin's value %q", aliases["ll"], "ls -lah")
	}
}

func TestReloadDeactivatesAndDestroysReplacedPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "deploy.so")

	v1 := &fakePlugin{meta: Metadata{Name: "deploy"}}
	m := NewManager(dir, "1.0.0", nil)
	m.SetLoader(func(path string) (Plugin, error) { return v1, nil })
	m.Reload(context.Background())

	v2 := &fakePlugin{meta: Metadata{Name: "deploy"}}
	m.SetLoader(func(path string) (Plugin, error) { return v2, nil })
	m.Reload(context.Background())

	if !v1.deactivated || !v1.destroyed {
		t.Fatalf("expected replaced plugin torn down, got deactivated=%v destroyed=%v", v1.deactivated, v1.destroyed)
	}
}

func TestCloseTearsDownAllPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "deploy.so")

	fp := &fakePlugin{meta: Metadata{Name: "deploy"}}
	m := NewManager(dir, "1.0.0", nil)
	m.SetLoader(func(path string) (Plugin, error) { return fp, nil })
	m.Reload(context.Background())

	m.Close(context.Background())

	if !fp.deactivated || !fp.destroyed {
		t.Fatal("expected Close to deactivate and destroy loaded plugins")
	}
	if len(m.Plugins()) != 0 {
		t.Fatal("expected Close to clear the plugin registry")
	}
}

func TestHooksGroupedByEventAcrossPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFakeSO(t, dir, "a.so")
	writeFakeSO(t, dir, "b.so")

	noop := func(ctx context.Context, data map[string]any) (map[string]any, error) { return nil, nil }
	a := &fakePlugin{meta: Metadata{Name: "a"}, hooks: map[string]HookHandler{"command:before": noop}}
	b := &fakePlugin{meta: Metadata{Name: "b"}, hooks: map[string]HookHandler{"command:before": noop}}

	m := NewManager(dir, "1.0.0", nil)
	m.SetLoader(func(path string) (Plugin, error) {
		if filepath.Base(path) == "a.so" {
			return a, nil
		}
		return b, nil
	})
	m.Reload(context.Background())

	hooks := m.Hooks()
	if len(hooks["command:before"]) != 2 {
		t.Fatalf("expected 2 handlers for command:before, got %d", len(hooks["command:before"]))
	}
}

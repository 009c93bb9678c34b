package executor

import (
	"context"
	"io"
	"syscall"
	"time"
)

// IO is the set of streams a pipeline or stage reads from and writes to
// before any per-command redirection is applied.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Builtin is an in-process command implementation (spec §4.D: "If a
// stage is a builtin, it executes in-process writing to a byte buffer
// ... or to the pipe write-end if one exists"). args[0] is the builtin's
// own name.
type Builtin func(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error)

// BuiltinLookup resolves a command name to its in-process implementation.
type BuiltinLookup interface {
	Lookup(name string) (Builtin, bool)
}

// PathResolver resolves an external command name against PATH. The
// expansion engine's ResolvePath satisfies this directly.
type PathResolver interface {
	ResolvePath(name string) (string, bool)
}

// EnvironmentProvider supplies the child process environment. When nil,
// the executor falls back to os.Environ().
type EnvironmentProvider interface {
	Environ() []string
}

// Options configures one Executor.
type Options struct {
	StreamOutput   bool
	PipeFail       bool
	XTrace         bool
	DefaultTimeout time.Duration
	KillSignal     syscall.Signal
	GracePeriod    time.Duration
}

// DefaultOptions matches spec §6's defaults: streaming on, pipefail and
// xtrace off, SIGTERM as the timeout kill signal.
var DefaultOptions = Options{
	StreamOutput: true,
	KillSignal:   syscall.SIGTERM,
	GracePeriod:  2 * time.Second,
}

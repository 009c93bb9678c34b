package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBuiltins implements BuiltinLookup over a plain map for tests.
type stubBuiltins map[string]Builtin

func (s stubBuiltins) Lookup(name string) (Builtin, bool) {
	b, ok := s[name]
	return b, ok
}

// passthroughExpander copies each Word's raw text straight into
// ExpandedArgs, skipping the real expansion engine for executor-focused
// tests.
type passthroughExpander struct{}

func (passthroughExpander) ExpandCommand(ctx context.Context, cmd *ast.Command) error {
	for _, w := range cmd.Words {
		cmd.ExpandedArgs = append(cmd.ExpandedArgs, w.Raw)
	}
	return nil
}

func echoBuiltin(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	for i, a := range args[1:] {
		if i > 0 {
			stdout.Write([]byte(" "))
		}
		stdout.Write([]byte(a))
	}
	stdout.Write([]byte("\n"))
	return 0, nil
}

func upperBuiltin(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	data, _ := io.ReadAll(stdin)
	stdout.Write(bytes.ToUpper(data))
	return 0, nil
}

func exitBuiltin(code int) Builtin {
	return func(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
		return code, nil
	}
}

func newTestExecutor(builtins stubBuiltins) *Executor {
	return New(builtins, nil, passthroughExpander{}, Options{StreamOutput: true})
}

func TestRunPipelineSingleBuiltin(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"echo": echoBuiltin})
	chain, err := parser.Parse("echo hi there")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi there\n", out.String())
}

func TestRunPipelineWiresStagesTogether(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"echo": echoBuiltin, "upper": upperBuiltin})
	chain, err := parser.Parse("echo hi | upper")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "HI\n", out.String())
}

func TestRunChainAndShortCircuitsOnFailure(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"false": exitBuiltin(1), "echo": echoBuiltin})
	chain, err := parser.Parse("false && echo should-not-run")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, out.String())
}

func TestRunChainOrRunsOnFailure(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"false": exitBuiltin(1), "echo": echoBuiltin})
	chain, err := parser.Parse("false || echo fallback")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "fallback\n", out.String())
}

func TestRunChainPipefailUsesRightmostNonzero(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"echo": echoBuiltin, "false": exitBuiltin(1)})
	e.Opts.PipeFail = true
	chain, err := parser.Parse("echo hi | false")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: &out, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunPipelineRedirectsOutputToFile(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"echo": echoBuiltin})
	dir := t.TempDir()
	chain, err := parser.Parse("echo hi > " + dir + "/out.txt")
	require.NoError(t, err)

	res, err := e.RunChain(context.Background(), chain, IO{Stdin: bytes.NewReader(nil), Stdout: io.Discard, Stderr: io.Discard}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	data, err := readFile(dir + "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestRunCapturedForCommandSubstitution(t *testing.T) {
	e := newTestExecutor(stubBuiltins{"echo": echoBuiltin})
	out, err := e.RunCaptured(context.Background(), "echo captured")
	require.NoError(t, err)
	assert.Equal(t, "captured\n", out)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

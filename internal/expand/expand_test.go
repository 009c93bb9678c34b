package expand

import (
	"context"
	"testing"

	"github.com/krustyshell/krusty/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	refs map[string]string
}

func (s stubHistory) ExpandRef(ref string) (string, bool) {
	v, ok := s.refs[ref]
	return v, ok
}

type stubRunner struct {
	out string
	err error
}

func (s stubRunner) RunCaptured(ctx context.Context, command string) (string, error) {
	return s.out, s.err
}

func TestExpandParameterWithDefault(t *testing.T) {
	env := MapEnvironment{}
	e, err := New(env, nil, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse(`echo ${NAME:-world}`)
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "world"}, cmd.ExpandedArgs)
}

func TestExpandParameterUnboundErrorsUnderNoUnset(t *testing.T) {
	env := MapEnvironment{}
	e, err := New(env, nil, nil, Options{NoUnset: true})
	require.NoError(t, err)

	chain, err := parser.Parse("echo $MISSING")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	err = e.ExpandCommand(context.Background(), cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound variable")
}

func TestExpandArithmetic(t *testing.T) {
	env := MapEnvironment{"X": "4"}
	e, err := New(env, nil, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse(`echo $((X * 2 + 1))`)
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "9"}, cmd.ExpandedArgs)
}

func TestExpandCommandSubstitution(t *testing.T) {
	env := MapEnvironment{}
	runner := stubRunner{out: "hello\n"}
	e, err := New(env, nil, runner, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse("echo $(greet)")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "hello"}, cmd.ExpandedArgs)
}

func TestExpandSandboxRejectsUnlistedCommand(t *testing.T) {
	env := MapEnvironment{}
	runner := stubRunner{out: "ignored"}
	e, err := New(env, nil, runner, Options{Sandbox: SandboxRestricted, Allowlist: []string{"date"}})
	require.NoError(t, err)

	chain, err := parser.Parse("echo $(rm -rf /)")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	err = e.ExpandCommand(context.Background(), cmd)
	require.Error(t, err)
}

func TestExpandWordSplittingAndQuotePreservation(t *testing.T) {
	env := MapEnvironment{"LIST": "a b c"}
	e, err := New(env, nil, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse(`echo $LIST "$LIST"`)
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "a", "b", "c", "a b c"}, cmd.ExpandedArgs)
}

func TestExpandSingleQuotedLiteralIsUntouched(t *testing.T) {
	env := MapEnvironment{"X": "should-not-appear"}
	e, err := New(env, nil, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse(`echo '$X !!'`)
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "$X !!"}, cmd.ExpandedArgs)
}

func TestExpandHistoryReference(t *testing.T) {
	env := MapEnvironment{}
	hist := stubHistory{refs: map[string]string{"!": "echo previous"}}
	e, err := New(env, hist, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse("!!")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"echo", "previous"}, cmd.ExpandedArgs)
}

func TestExpandTilde(t *testing.T) {
	env := MapEnvironment{"HOME": "/home/krusty"}
	e, err := New(env, nil, nil, Options{})
	require.NoError(t, err)

	chain, err := parser.Parse("cd ~/projects")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.NoError(t, e.ExpandCommand(context.Background(), cmd))
	assert.Equal(t, []string{"cd", "/home/krusty/projects"}, cmd.ExpandedArgs)
}

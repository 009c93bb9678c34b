package redirect

import (
	"os"
	"testing"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstCmd(t *testing.T, src string) *ast.Command {
	t.Helper()
	chain, err := parser.Parse(src)
	require.NoError(t, err)
	return chain.Segments[0].Pipeline.Stages[0]
}

func TestResolveAppendRedirection(t *testing.T) {
	cmd := firstCmd(t, "cmd >> out.log")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpOpenFile, ops[0].Kind)
	assert.Equal(t, 1, ops[0].Fd)
	assert.Equal(t, "out.log", ops[0].Path)
	assert.Equal(t, os.O_WRONLY|os.O_CREATE|os.O_APPEND, ops[0].Flags)
}

func TestResolveBothRedirectionDupsStderr(t *testing.T) {
	cmd := firstCmd(t, "cmd &> both.log")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpOpenFile, ops[0].Kind)
	assert.Equal(t, 1, ops[0].Fd)
	assert.Equal(t, OpDup, ops[1].Kind)
	assert.Equal(t, 2, ops[1].Fd)
	assert.Equal(t, 1, ops[1].DupFrom)
}

func TestResolveFdDup(t *testing.T) {
	cmd := firstCmd(t, "cmd 2>&1")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpDup, ops[0].Kind)
	assert.Equal(t, 2, ops[0].Fd)
	assert.Equal(t, 1, ops[0].DupFrom)
}

func TestResolveFdClose(t *testing.T) {
	cmd := firstCmd(t, "cmd 3>&-")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpClose, ops[0].Kind)
	assert.Equal(t, 3, ops[0].Fd)
}

func TestResolveHereString(t *testing.T) {
	cmd := firstCmd(t, "cat <<< hi")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpFeed, ops[0].Kind)
	assert.Equal(t, "hi\n", ops[0].Content)
}

func TestResolveLastRedirectionWinsPerFd(t *testing.T) {
	cmd := firstCmd(t, "cmd > first.log > second.log")
	ops, err := Resolve(cmd)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "first.log", ops[0].Path)
	assert.Equal(t, "second.log", ops[1].Path)
	// The executor applies ops in order, so the later op (second.log)
	// is what's actually open on fd 1 by the time exec runs.
}

func TestResolveMissingPathIsRedirectionError(t *testing.T) {
	cmd := &ast.Command{Redirs: []ast.Redirection{{Kind: ast.RedirFile, Direction: ast.RedirOutput, Fd: 1}}}
	_, err := Resolve(cmd)
	require.Error(t, err)
}

package parser

import (
	"testing"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordsOf(cmd *ast.Command) []string {
	out := make([]string, len(cmd.Words))
	for i, w := range cmd.Words {
		out[i] = w.Raw
	}
	return out
}

func TestParsePipeline(t *testing.T) {
	chain, err := Parse("echo hi | tr a-z A-Z")
	require.NoError(t, err)
	require.Len(t, chain.Segments, 1)
	pipeline := chain.Segments[0].Pipeline
	require.Len(t, pipeline.Stages, 2)
	assert.Equal(t, []string{"echo", "hi"}, wordsOf(pipeline.Stages[0]))
	assert.Equal(t, []string{"tr", "a-z", "A-Z"}, wordsOf(pipeline.Stages[1]))
}

func TestParseChainAndOr(t *testing.T) {
	chain, err := Parse("true && echo ok || echo fail")
	require.NoError(t, err)
	require.Len(t, chain.Segments, 3)
	assert.Equal(t, ast.ChainNone, chain.Segments[0].Op)
	assert.Equal(t, ast.ChainAnd, chain.Segments[1].Op)
	assert.Equal(t, ast.ChainOr, chain.Segments[2].Op)
}

func TestParseLeadingOperatorIsSyntaxError(t *testing.T) {
	_, err := Parse("&& echo ok")
	require.Error(t, err)
}

func TestParseTrailingAndOrIsSyntaxError(t *testing.T) {
	_, err := Parse("echo ok &&")
	require.Error(t, err)
}

func TestParseCollapsesConsecutiveSeparators(t *testing.T) {
	chain, err := Parse("echo a;;; echo b")
	require.NoError(t, err)
	require.Len(t, chain.Segments, 2)
}

func TestParseBackground(t *testing.T) {
	chain, err := Parse("sleep 100 &")
	require.NoError(t, err)
	pipeline := chain.Segments[0].Pipeline
	assert.True(t, pipeline.Background)
	assert.Len(t, pipeline.Stages, 1)
}

func TestParseRedirections(t *testing.T) {
	chain, err := Parse("sh -c 'echo out; echo err 1>&2' 2>&1 | wc -l")
	require.NoError(t, err)
	pipeline := chain.Segments[0].Pipeline
	require.Len(t, pipeline.Stages, 2)
	sh := pipeline.Stages[0]
	require.Len(t, sh.Redirs, 1)
	assert.Equal(t, ast.RedirFdDup, sh.Redirs[0].Kind)
	assert.Equal(t, 2, sh.Redirs[0].DupSrcFd)
	assert.Equal(t, 1, sh.Redirs[0].DupDstFd)
}

func TestParseAppendAndBothRedirections(t *testing.T) {
	chain, err := Parse("cmd >> out.log 2>> err.log")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.Len(t, cmd.Redirs, 2)
	assert.Equal(t, ast.RedirAppend, cmd.Redirs[0].Direction)
	assert.Equal(t, "out.log", cmd.Redirs[0].Path)
	assert.Equal(t, 2, cmd.Redirs[1].Fd)
	assert.Equal(t, "err.log", cmd.Redirs[1].Path)

	chain2, err := Parse("cmd &>> both.log")
	require.NoError(t, err)
	cmd2 := chain2.Segments[0].Pipeline.Stages[0]
	require.Len(t, cmd2.Redirs, 1)
	assert.Equal(t, ast.RedirBoth, cmd2.Redirs[0].Direction)
	assert.True(t, cmd2.Redirs[0].Append)
}

func TestParseHereDoc(t *testing.T) {
	chain, err := Parse("cat <<-EOF\n\thello\n\tworld\n\tEOF\n")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.Len(t, cmd.Redirs, 1)
	r := cmd.Redirs[0]
	assert.Equal(t, ast.RedirHereDoc, r.Kind)
	assert.Equal(t, "hello\nworld\n", r.Content)
}

func TestParseHereString(t *testing.T) {
	chain, err := Parse("cat <<< 'literal text'")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.Len(t, cmd.Redirs, 1)
	assert.Equal(t, ast.RedirHereString, cmd.Redirs[0].Kind)
	assert.Equal(t, "literal text", cmd.Redirs[0].Literal)
}

func TestParseLineContinuation(t *testing.T) {
	chain, err := Parse("echo \\\nhi")
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	assert.Equal(t, []string{"echo", "hi"}, wordsOf(cmd))
}

func TestParseSingleQuoteNoEscapes(t *testing.T) {
	chain, err := Parse(`echo 'a\nb'`)
	require.NoError(t, err)
	cmd := chain.Segments[0].Pipeline.Stages[0]
	require.Len(t, cmd.Words, 2)
	require.Len(t, cmd.Words[1].Segments, 1)
	assert.Equal(t, ast.SingleQuoted, cmd.Words[1].Segments[0].Quote)
	assert.Equal(t, `a\nb`, cmd.Words[1].Segments[0].Text)
}

func TestParseComment(t *testing.T) {
	chain, err := Parse("echo hi # this is ignored\necho bye")
	require.NoError(t, err)
	require.Len(t, chain.Segments, 2)
}

func TestParseNewlineSeparatedSequence(t *testing.T) {
	chain, err := Parse("echo first\necho second")
	require.NoError(t, err)
	require.Len(t, chain.Segments, 2)
	assert.Equal(t, ast.ChainSeq, chain.Segments[1].Op)
}

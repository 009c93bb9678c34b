// Package parser builds krusty's pipeline AST (spec §4.A) from the
// lexer's token stream: chains split on unquoted &&/||/;/newline,
// pipelines split on unquoted |, redirections attached per stage,
// trailing & marks backgrounding.
package parser

import (
	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/lexer"
	"github.com/krustyshell/krusty/internal/shellerr"
)

// Parse tokenizes and parses src into a ChainedPipeline.
func Parse(src string) (*ast.ChainedPipeline, error) {
	toks, err := lexer.New(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseChain()
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) peek() (lexer.Token, bool) {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.KindEOF}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) advance() (lexer.Token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) atEnd() bool {
	_, ok := p.peek()
	return !ok
}

// parseChain splits the token stream on unquoted &&, ||, ;, newline,
// collapsing consecutive separators and rejecting a leading operator
// with no left operand.
func (p *parser) parseChain() (*ast.ChainedPipeline, error) {
	chain := &ast.ChainedPipeline{}
	pendingOp := ast.ChainNone

	// Skip leading separators (blank lines).
	for p.skipIfSeparator() {
	}

	for !p.atEnd() {
		tok, _ := p.peek()
		if isChainOp(tok.Kind) {
			return nil, shellerr.Parse("syntax error near unexpected token %q", opText(tok.Kind))
		}

		pipeline, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}

		chain.Segments = append(chain.Segments, ast.ChainSegment{Op: pendingOp, Pipeline: pipeline})

		if p.atEnd() {
			break
		}
		next, _ := p.peek()
		if !isChainOp(next.Kind) {
			return nil, shellerr.Parse("syntax error: expected chain operator, found word")
		}
		p.advance()
		pendingOp = chainOpFor(next.Kind)

		// Collapse consecutive separators (e.g. ";;" or blank lines
		// between commands); a run of plain sequencers folds to one.
		for p.skipIfSeparator() {
		}
	}

	if (pendingOp == ast.ChainAnd || pendingOp == ast.ChainOr) && len(chain.Segments) > 0 {
		return nil, shellerr.Parse("syntax error: unexpected end of input after %q", chainOpText(pendingOp))
	}

	return chain, nil
}

// skipIfSeparator consumes a single redundant semicolon/newline run
// that isn't meaningful (i.e. one immediately following another
// separator, or leading). Returns whether it consumed anything.
func (p *parser) skipIfSeparator() bool {
	tok, ok := p.peek()
	if !ok {
		return false
	}
	if tok.Kind == lexer.KindSemi || tok.Kind == lexer.KindNewline {
		p.advance()
		return true
	}
	return false
}

func isChainOp(k lexer.Kind) bool {
	switch k {
	case lexer.KindAndAnd, lexer.KindOrOr, lexer.KindSemi, lexer.KindNewline:
		return true
	}
	return false
}

func chainOpFor(k lexer.Kind) ast.ChainOp {
	switch k {
	case lexer.KindAndAnd:
		return ast.ChainAnd
	case lexer.KindOrOr:
		return ast.ChainOr
	default:
		return ast.ChainSeq
	}
}

func chainOpText(op ast.ChainOp) string {
	switch op {
	case ast.ChainAnd:
		return "&&"
	case ast.ChainOr:
		return "||"
	default:
		return ";"
	}
}

func opText(k lexer.Kind) string {
	switch k {
	case lexer.KindAndAnd:
		return "&&"
	case lexer.KindOrOr:
		return "||"
	case lexer.KindSemi:
		return ";"
	case lexer.KindNewline:
		return "newline"
	case lexer.KindPipe:
		return "|"
	case lexer.KindAmp:
		return "&"
	default:
		return "?"
	}
}

// parsePipeline parses stages up to (but not including) the next chain
// operator or EOF.
func (p *parser) parsePipeline() (*ast.Pipeline, error) {
	pipeline := &ast.Pipeline{}

	for {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		pipeline.Stages = append(pipeline.Stages, stage)

		tok, ok := p.peek()
		if !ok || isChainOp(tok.Kind) {
			break
		}
		if tok.Kind == lexer.KindPipe {
			p.advance()
			if t2, ok := p.peek(); !ok || isChainOp(t2.Kind) {
				return nil, shellerr.Parse("syntax error near unexpected token %q", opText(tok.Kind))
			}
			continue
		}
		if tok.Kind == lexer.KindAmp {
			p.advance()
			pipeline.Background = true
			break
		}
		// Anything else at this point (e.g. a stray word) is a bug in
		// parseStage leaving tokens unconsumed.
		break
	}

	return pipeline, nil
}

// parseStage parses one pipeline stage: a command name, its arguments,
// and any interleaved redirections, stopping at |, &, or a chain
// operator.
func (p *parser) parseStage() (*ast.Command, error) {
	cmd := &ast.Command{}

	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		switch tok.Kind {
		case lexer.KindWord:
			p.advance()
			cmd.Words = append(cmd.Words, toASTWord(tok.Word))
		case lexer.KindRedirIn, lexer.KindRedirOut, lexer.KindRedirAppend,
			lexer.KindRedirBoth, lexer.KindRedirBothAppend, lexer.KindRedirDup,
			lexer.KindHereDoc, lexer.KindHereString:
			p.advance()
			redir, err := p.buildRedirection(tok)
			if err != nil {
				return nil, err
			}
			cmd.Redirs = append(cmd.Redirs, redir)
		default:
			goto done
		}
	}
done:
	if len(cmd.Words) == 0 && len(cmd.Redirs) == 0 {
		tok, _ := p.peek()
		return nil, shellerr.Parse("syntax error near unexpected token %q", opText(tok.Kind))
	}
	return cmd, nil
}

func (p *parser) buildRedirection(tok lexer.Token) (ast.Redirection, error) {
	switch tok.Kind {
	case lexer.KindRedirIn:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirFile, Direction: ast.RedirInput, Path: target, Fd: fdOr(tok.Fd, 0)}, nil
	case lexer.KindRedirOut:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirFile, Direction: ast.RedirOutput, Path: target, Fd: fdOr(tok.Fd, 1)}, nil
	case lexer.KindRedirAppend:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirFile, Direction: ast.RedirAppend, Path: target, Fd: fdOr(tok.Fd, 1)}, nil
	case lexer.KindRedirBoth:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirFile, Direction: ast.RedirBoth, Path: target, Append: false}, nil
	case lexer.KindRedirBothAppend:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirFile, Direction: ast.RedirBoth, Path: target, Append: true}, nil
	case lexer.KindRedirDup:
		srcFd := fdOr(tok.Fd, 1)
		if tok.DupClose {
			return ast.Redirection{Kind: ast.RedirFdDup, DupSrcFd: srcFd, Close: true}, nil
		}
		return ast.Redirection{Kind: ast.RedirFdDup, DupSrcFd: srcFd, DupDstFd: tok.DupTarget}, nil
	case lexer.KindHereDoc:
		return ast.Redirection{Kind: ast.RedirHereDoc, Delimiter: tok.HereDelim, StripTabs: tok.HereStrip, Content: tok.Word.Raw}, nil
	case lexer.KindHereString:
		target, err := p.requireWord()
		if err != nil {
			return ast.Redirection{}, err
		}
		return ast.Redirection{Kind: ast.RedirHereString, Literal: target}, nil
	}
	return ast.Redirection{}, shellerr.Parse("internal: unhandled redirection token")
}

func fdOr(fd, def int) int {
	if fd < 0 {
		return def
	}
	return fd
}

// requireWord consumes the next token as a plain path/target word,
// joining all of its segments into a literal string with quotes
// removed. Redirection targets are not passed through the expansion
// engine: the joined text is used as given.
func (p *parser) requireWord() (string, error) {
	tok, ok := p.peek()
	if !ok || tok.Kind != lexer.KindWord {
		return "", shellerr.Parse("syntax error: expected a filename after redirection operator")
	}
	p.advance()
	var out string
	for _, seg := range tok.Word.Segments {
		out += seg.Text
	}
	return out, nil
}

func toASTWord(w lexer.Word) ast.Word {
	out := ast.Word{Raw: w.Raw}
	for _, seg := range w.Segments {
		out.Segments = append(out.Segments, ast.WordSegment{Quote: ast.WordQuote(seg.Quote), Text: seg.Text})
	}
	return out
}

// Package redirect implements krusty's Redirection Resolver (spec
// §4.C): translating a Command's parsed ast.Redirection entries into an
// ordered list of FD operations the executor applies in the child
// before exec, or in-process around a builtin.
package redirect

import (
	"os"

	"github.com/krustyshell/krusty/internal/ast"
	"github.com/krustyshell/krusty/internal/shellerr"
)

// OpKind tags one resolved FD operation.
type OpKind int

const (
	OpOpenFile OpKind = iota // open Path with Flags, place result on Fd
	OpDup                    // duplicate DupFrom onto Fd
	OpClose                  // close Fd
	OpFeed                   // write Content to a pipe and place the read end on Fd (here-doc/here-string)
)

// Op is one resolved redirection step, applied in order.
type Op struct {
	Kind    OpKind
	Fd      int
	Path    string
	Flags   int // os.O_* flags, meaningful for OpOpenFile
	Perm    os.FileMode
	DupFrom int
	Content string
}

// Resolve walks cmd.Redirs left to right and produces the ordered Op
// list, applying last-redirection-wins-per-fd by simply emitting every
// op in order: a later op targeting the same fd naturally supersedes an
// earlier one when applied sequentially by the executor.
func Resolve(cmd *ast.Command) ([]Op, error) {
	var ops []Op
	for _, r := range cmd.Redirs {
		switch r.Kind {
		case ast.RedirFile:
			op, err := resolveFile(r)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op...)
		case ast.RedirFdDup:
			if r.Close {
				ops = append(ops, Op{Kind: OpClose, Fd: r.DupSrcFd})
				continue
			}
			ops = append(ops, Op{Kind: OpDup, Fd: r.DupSrcFd, DupFrom: r.DupDstFd})
		case ast.RedirHereDoc:
			ops = append(ops, Op{Kind: OpFeed, Fd: 0, Content: r.Content})
		case ast.RedirHereString:
			content := r.Literal
			if len(content) == 0 || content[len(content)-1] != '\n' {
				content += "\n"
			}
			ops = append(ops, Op{Kind: OpFeed, Fd: 0, Content: content})
		default:
			return nil, shellerr.Redirection("unknown redirection kind")
		}
	}
	return ops, nil
}

// resolveFile handles the File variant. r.Fd already carries the
// parser-resolved target fd (0/1 defaults applied there); this function
// only decides the open() flags and, for &>/&>>, the extra dup.
func resolveFile(r ast.Redirection) ([]Op, error) {
	if r.Path == "" {
		return nil, shellerr.Redirection("missing redirection target")
	}
	switch r.Direction {
	case ast.RedirInput:
		return []Op{{Kind: OpOpenFile, Fd: r.Fd, Path: r.Path, Flags: os.O_RDONLY}}, nil
	case ast.RedirOutput:
		return []Op{{Kind: OpOpenFile, Fd: r.Fd, Path: r.Path, Flags: os.O_WRONLY | os.O_CREATE | os.O_TRUNC, Perm: 0644}}, nil
	case ast.RedirAppend:
		return []Op{{Kind: OpOpenFile, Fd: r.Fd, Path: r.Path, Flags: os.O_WRONLY | os.O_CREATE | os.O_APPEND, Perm: 0644}}, nil
	case ast.RedirBoth:
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if r.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		// &> / &>> open the file once for fd 1, then dup fd 2 onto fd 1
		// so both streams land in the same file without racing two
		// independent opens against it.
		return []Op{
			{Kind: OpOpenFile, Fd: 1, Path: r.Path, Flags: flags, Perm: 0644},
			{Kind: OpDup, Fd: 2, DupFrom: 1},
		}, nil
	default:
		return nil, shellerr.Redirection("unsupported redirection direction")
	}
}

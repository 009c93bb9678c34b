package executor

import (
	"bytes"
	"io"
	"os"

	"github.com/krustyshell/krusty/internal/redirect"
	"github.com/krustyshell/krusty/internal/shellerr"
)

type fdSlot struct {
	file   *os.File
	reader io.Reader
	writer io.Writer
	closed bool
}

// resolvedStdio is the per-stage result of applying redirect.Ops over a
// stage's default streams.
type resolvedStdio struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	extraFiles []*os.File
	cleanup    func()
}

// resolveStdio applies ops (already in left-to-right, last-wins order)
// over the stage's default streams, producing the concrete stdio an
// external command or builtin should use. Redirections targeting fd 0-2
// replace the corresponding default directly; fd >= 3 is only supported
// when backed by an opened file (dup of a pipe onto a high fd is not,
// a known simplification noted in DESIGN.md).
func resolveStdio(ops []redirect.Op, defIn io.Reader, defOut, defErr io.Writer) (*resolvedStdio, error) {
	slots := map[int]*fdSlot{
		0: {reader: defIn},
		1: {writer: defOut},
		2: {writer: defErr},
	}
	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case redirect.OpOpenFile:
			perm := op.Perm
			if perm == 0 {
				perm = 0644
			}
			f, err := os.OpenFile(op.Path, op.Flags, perm)
			if err != nil {
				cleanup()
				return nil, shellerr.Wrap(shellerr.Redirection("cannot open %q", op.Path), err)
			}
			opened = append(opened, f)
			slots[op.Fd] = &fdSlot{file: f, reader: f, writer: f}
		case redirect.OpDup:
			src, ok := slots[op.DupFrom]
			if !ok {
				cleanup()
				return nil, shellerr.Redirection("bad file descriptor %d", op.DupFrom)
			}
			slots[op.Fd] = src
		case redirect.OpClose:
			slots[op.Fd] = &fdSlot{closed: true, reader: bytes.NewReader(nil), writer: io.Discard}
		case redirect.OpFeed:
			pr, pw, err := os.Pipe()
			if err != nil {
				cleanup()
				return nil, shellerr.Wrap(shellerr.Redirection("here-doc pipe"), err)
			}
			opened = append(opened, pr)
			content := op.Content
			go func() {
				defer pw.Close()
				io.Copy(pw, bytes.NewReader([]byte(content)))
			}()
			slots[0] = &fdSlot{file: pr, reader: pr}
		}
	}

	maxFd := 2
	for fd := range slots {
		if fd > maxFd {
			maxFd = fd
		}
	}
	var extra []*os.File
	if maxFd > 2 {
		extra = make([]*os.File, maxFd-2)
		for fd := 3; fd <= maxFd; fd++ {
			s := slots[fd]
			if s == nil || s.file == nil {
				devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
				if err != nil {
					cleanup()
					return nil, shellerr.Wrap(shellerr.Redirection("opening devnull filler"), err)
				}
				opened = append(opened, devnull)
				extra[fd-3] = devnull
				continue
			}
			extra[fd-3] = s.file
		}
	}

	return &resolvedStdio{
		stdin:      slots[0].reader,
		stdout:     slots[1].writer,
		stderr:     slots[2].writer,
		extraFiles: extra,
		cleanup:    cleanup,
	}, nil
}

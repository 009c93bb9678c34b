package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/krustyshell/krusty/internal/completion"
	"github.com/krustyshell/krusty/internal/editor"
	"github.com/krustyshell/krusty/internal/executor"
	"github.com/krustyshell/krusty/internal/parser"
	"github.com/krustyshell/krusty/internal/prompt"
)

// Run drives the interactive REPL: read a line via the Line Editor,
// expand and execute it, record it in history, and loop, matching
// cli.go's ChatCLI.Start(ctx) shape generalized from LLM chat turns to
// parse→expand→execute→record shell command processing. It returns
// when ctx is cancelled, the editor hits EOF (Ctrl+D on an empty
// buffer), or the `exit` builtin is invoked — never merely because a
// command failed (spec §7: "The REPL never exits due to a command
// error").
func (s *Shell) Run(ctx context.Context) error {
	s.dispatch(ctx, eventShellInit, map[string]any{"shellLevel": s.shellLevel})
	defer s.Close()

	ed := editor.New(editor.Config{
		Completer: completionAdapter{s.Complete},
		History:   s.History,
	}, s.log)

	session := editor.NewSession(ed, s.opts.Stdin, s.opts.Stdout, s.renderPrompt, s.renderContinuationPrompt, s.log)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := session.ReadLine()
		if err == io.EOF {
			if line == "" {
				return nil
			}
		} else if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		s.runLine(ctx, line)
		if s.exitRequested {
			return nil
		}
	}
}

// RunScript executes path's contents as a sequence of command lines,
// matching spec §6's "a path argument executes that file as a script"
// CLI surface, non-interactively and without the line editor.
func (s *Shell) RunScript(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("shell: opening script %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.runLine(ctx, line)
		if s.exitRequested {
			break
		}
		if s.Builtins.Opts.ErrExit && s.lastExit != 0 {
			break
		}
	}
	return scanner.Err()
}

// runLine parses, expands-as-part-of-execution, and runs one line,
// dispatching the command:before/command:after/command:error lifecycle
// hooks around it and recording the raw text in history.
func (s *Shell) runLine(ctx context.Context, line string) {
	s.History.Add(line)
	s.dispatch(ctx, eventHistoryAdd, map[string]any{"command": line})

	chain, err := parser.Parse(line)
	if err != nil {
		fmt.Fprintln(s.opts.Stderr, err)
		s.setExitCode(2)
		return
	}

	results := s.dispatch(ctx, eventCommandBefore, map[string]any{"command": line})
	for _, r := range results {
		if r.PreventDefault {
			return
		}
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.fgCancel = cancel
	s.mu.Unlock()

	res, err := s.Exec.RunChain(cmdCtx, chain, executor.IO{
		Stdin:  s.opts.Stdin,
		Stdout: s.opts.Stdout,
		Stderr: s.opts.Stderr,
	}, false)

	s.mu.Lock()
	s.fgCancel = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		fmt.Fprintln(s.opts.Stderr, err)
		s.dispatch(ctx, eventCommandError, map[string]any{"command": line, "error": err.Error()})
		s.setExitCode(1)
		return
	}

	s.setExitCode(res.ExitCode)
	if res.Metadata.IsExit {
		s.exitRequested = true
	}
	s.dispatch(ctx, eventCommandAfter, map[string]any{"command": line, "exitCode": res.ExitCode})
}

func (s *Shell) setExitCode(code int) {
	s.lastExit = code
	s.Builtins.Env.Set("?", strconv.Itoa(code))
}

func (s *Shell) renderPrompt() string {
	cwd, _ := os.Getwd()
	if cwd != s.lastCwd {
		if s.lastCwd != "" {
			s.dispatch(context.Background(), eventDirectoryChange, map[string]any{"from": s.lastCwd, "to": cwd})
		}
		s.lastCwd = cwd
	}
	s.dispatch(context.Background(), eventPromptBefore, map[string]any{"cwd": cwd})

	home, _ := os.UserHomeDir()
	ctx := prompt.Context{
		Cwd:        cwd,
		Home:       home,
		User:       os.Getenv("USER"),
		Host:       hostname(),
		ExitCode:   s.lastExit,
		JobCount:   len(s.Jobs.List()),
		ShellLevel: s.shellLevel,
	}
	return s.Prompt.Render(ctx)
}

func (s *Shell) renderContinuationPrompt() string {
	return "> "
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

// completionAdapter satisfies editor.Completer over
// *completion.Completer without the editor package importing
// completion (keeping editor dependency-free of the completion
// provider's own dependencies, like the fuzzy matcher).
type completionAdapter struct {
	c *completion.Completer
}

func (a completionAdapter) Complete(line string, cursor int) []editor.Suggestion {
	return a.c.Complete(line, cursor)
}

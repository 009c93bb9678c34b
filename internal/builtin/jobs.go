package builtin

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"
)

func (r *Registry) builtinJobs(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Jobs == nil {
		return 0, nil
	}
	for _, j := range r.Jobs.List() {
		marker := "-"
		if j.ID == r.Jobs.Foreground() {
			marker = "+"
		}
		fmt.Fprintf(stdout, "[%d]%s  %-8s %s\n", j.ID, marker, j.Status, j.CommandText)
	}
	return 0, nil
}

func (r *Registry) builtinFg(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Jobs == nil {
		fmt.Fprintln(stderr, "fg: no job control")
		return 1, nil
	}
	id, err := r.jobArgOrCurrent(args)
	if err != nil {
		fmt.Fprintf(stderr, "fg: %v\n", err)
		return 1, nil
	}
	j, ok := r.Jobs.Get(id)
	if !ok {
		fmt.Fprintf(stderr, "fg: %d: no such job\n", id)
		return 1, nil
	}
	fmt.Fprintln(stdout, j.CommandText)
	if !r.Jobs.ResumeFg(id) {
		fmt.Fprintf(stderr, "fg: job %d is not stopped\n", id)
		return 1, nil
	}
	code, _ := r.Jobs.Wait(id)
	return code, nil
}

func (r *Registry) builtinBg(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Jobs == nil {
		fmt.Fprintln(stderr, "bg: no job control")
		return 1, nil
	}
	id, err := r.jobArgOrCurrent(args)
	if err != nil {
		fmt.Fprintf(stderr, "bg: %v\n", err)
		return 1, nil
	}
	if !r.Jobs.ResumeBg(id) {
		fmt.Fprintf(stderr, "bg: job %d is not stopped\n", id)
		return 1, nil
	}
	if j, ok := r.Jobs.Get(id); ok {
		fmt.Fprintf(stdout, "[%d]+ %s &\n", id, j.CommandText)
	}
	return 0, nil
}

func (r *Registry) builtinWait(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Jobs == nil {
		return 0, nil
	}
	if len(args) < 2 {
		code := 0
		for _, j := range r.Jobs.List() {
			code, _ = r.Jobs.Wait(j.ID)
		}
		return code, nil
	}
	status := 0
	for _, a := range args[1:] {
		id, err := strconv.Atoi(strings.TrimPrefix(a, "%"))
		if err != nil {
			fmt.Fprintf(stderr, "wait: %s: invalid job id\n", a)
			status = 1
			continue
		}
		code, ok := r.Jobs.Wait(id)
		if !ok {
			fmt.Fprintf(stderr, "wait: %s: no such job\n", a)
			status = 1
			continue
		}
		status = code
	}
	return status, nil
}

func (r *Registry) builtinKill(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Jobs == nil {
		fmt.Fprintln(stderr, "kill: no job control")
		return 1, nil
	}
	rest := args[1:]
	sig := syscall.SIGTERM
	if len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
		name := strings.TrimPrefix(rest[0], "-")
		s, ok := signalByName(name)
		if !ok {
			fmt.Fprintf(stderr, "kill: %s: invalid signal specification\n", rest[0])
			return 1, nil
		}
		sig = s
		rest = rest[1:]
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "kill: usage: kill [-signal] pid|%job ...")
		return 2, nil
	}
	status := 0
	for _, target := range rest {
		if strings.HasPrefix(target, "%") {
			id, err := strconv.Atoi(target[1:])
			if err != nil {
				fmt.Fprintf(stderr, "kill: %s: invalid job id\n", target)
				status = 1
				continue
			}
			if err := r.Jobs.Terminate(id, sig); err != nil {
				fmt.Fprintf(stderr, "kill: %v\n", err)
				status = 1
			}
			continue
		}
		pid, err := strconv.Atoi(target)
		if err != nil {
			fmt.Fprintf(stderr, "kill: %s: arguments must be process or job IDs\n", target)
			status = 1
			continue
		}
		if err := syscall.Kill(pid, sig); err != nil {
			fmt.Fprintf(stderr, "kill: (%d): %v\n", pid, err)
			status = 1
		}
	}
	return status, nil
}

// builtinTrap records a signal handler's command text, keyed by
// canonical signal name (or "EXIT"), for the Shell Core's signal
// dispatch loop to consult and run when that signal arrives — trap
// registration is a core-contract concern, but *running* the trapped
// command text re-enters the Shell Core's command execution path, so
// Registry only stores the association here.
func (r *Registry) builtinTrap(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest := args[1:]
	if len(rest) == 0 {
		for name, cmd := range r.traps {
			fmt.Fprintf(stdout, "trap -- '%s' %s\n", cmd, name)
		}
		return 0, nil
	}
	if rest[0] == "-l" {
		for _, name := range signalNames() {
			fmt.Fprintln(stdout, name)
		}
		return 0, nil
	}
	if rest[0] == "-p" {
		for _, name := range rest[1:] {
			if cmd, ok := r.traps[canonicalSignalName(name)]; ok {
				fmt.Fprintf(stdout, "trap -- '%s' %s\n", cmd, name)
			}
		}
		return 0, nil
	}

	if len(rest) < 2 {
		fmt.Fprintln(stderr, "trap: usage: trap [action] signal ...")
		return 2, nil
	}
	action := rest[0]
	for _, name := range rest[1:] {
		canon := canonicalSignalName(name)
		if action == "-" {
			delete(r.traps, canon)
		} else {
			r.traps[canon] = action
		}
	}
	return 0, nil
}

// Traps returns a snapshot of every registered trap, for the Shell
// Core's signal dispatcher.
func (r *Registry) Traps() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.traps))
	for k, v := range r.traps {
		out[k] = v
	}
	return out
}

func (r *Registry) jobArgOrCurrent(args []string) (int, error) {
	if len(args) < 2 {
		if id := r.Jobs.Foreground(); id != 0 {
			return id, nil
		}
		for _, j := range r.Jobs.List() {
			return j.ID, nil
		}
		return 0, fmt.Errorf("no current job")
	}
	spec := strings.TrimPrefix(args[1], "%")
	id, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid job id", args[1])
	}
	return id, nil
}

package builtin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

func (r *Registry) builtinExport(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "-p" {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		for _, kv := range r.Env.Environ() {
			fmt.Fprintf(stdout, "export %s\n", kv)
		}
		return 0, nil
	}
	for _, arg := range rest {
		name, value, hasValue := strings.Cut(arg, "=")
		r.Env.Export(name, value, hasValue)
	}
	return 0, nil
}

func (r *Registry) builtinUnset(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	for _, name := range args[1:] {
		if name == "-v" || name == "-f" {
			continue
		}
		r.Env.Unset(name)
	}
	return 0, nil
}

func (r *Registry) builtinAlias(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) == 1 {
		for _, kv := range r.Aliases.All() {
			fmt.Fprintf(stdout, "alias %s\n", kv)
		}
		return 0, nil
	}
	status := 0
	for _, arg := range args[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			v, ok := r.Aliases.Get(name)
			if !ok {
				fmt.Fprintf(stderr, "alias: %s: not found\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(stdout, "alias %s=%s\n", name, v)
			continue
		}
		r.Aliases.Set(name, value)
	}
	return status, nil
}

func (r *Registry) builtinUnalias(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "-a" {
		for _, name := range r.Aliases.Names() {
			r.Aliases.Unset(name)
		}
		return 0, nil
	}
	status := 0
	for _, name := range rest {
		if !r.Aliases.Unset(name) {
			fmt.Fprintf(stderr, "unalias: %s: not found\n", name)
			status = 1
		}
	}
	return status, nil
}

// builtinSet implements the subset of `set` spec §6's recognized
// execution/expansion options name: -e/-u/-x/-v/-C/-f and the `-o`
// long forms (vi, emacs, noclobber, pipefail, noglob), plus bare
// `set -- args...` for positional parameters. `+` toggles an option
// off instead of on. With no arguments, lists every variable.
func (r *Registry) builtinSet(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rest := args[1:]
	if len(rest) == 0 {
		for _, kv := range r.Env.All() {
			fmt.Fprintln(stdout, kv)
		}
		return 0, nil
	}

	for len(rest) > 0 {
		arg := rest[0]
		if arg == "--" {
			r.Opts.Positional = append([]string(nil), rest[1:]...)
			return 0, nil
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			r.Opts.Positional = append([]string(nil), rest...)
			return 0, nil
		}
		on := arg[0] == '-'
		switch arg[1:] {
		case "e":
			r.Opts.ErrExit = on
		case "u":
			if r.Expand != nil {
				r.Expand.SetNoUnset(on)
			}
		case "x":
			if r.Exec != nil {
				r.Exec.Opts.XTrace = on
			}
		case "v":
			r.Opts.Verbose = on
		case "C":
			r.Opts.NoClobber = on
		case "f":
			r.Opts.NoGlob = on
		case "m":
			r.Opts.Monitor = on
		case "o":
			if len(rest) < 2 {
				fmt.Fprintln(stderr, "set: -o: option name required")
				return 2, nil
			}
			if err := r.setLongOption(rest[1], on); err != nil {
				fmt.Fprintf(stderr, "set: %v\n", err)
				return 1, nil
			}
			rest = rest[1:]
		default:
			fmt.Fprintf(stderr, "set: %s: invalid option\n", arg)
			return 2, nil
		}
		rest = rest[1:]
	}
	return 0, nil
}

func (r *Registry) setLongOption(name string, on bool) error {
	switch name {
	case "pipefail":
		if r.Exec != nil {
			r.Exec.Opts.PipeFail = on
		}
	case "noclobber":
		r.Opts.NoClobber = on
	case "noglob":
		r.Opts.NoGlob = on
	case "vi":
		r.Opts.SetVi(on)
	case "emacs":
		r.Opts.SetEmacs(on)
	case "errexit":
		r.Opts.ErrExit = on
	case "xtrace":
		if r.Exec != nil {
			r.Exec.Opts.XTrace = on
		}
	case "nounset":
		if r.Expand != nil {
			r.Expand.SetNoUnset(on)
		}
	default:
		return fmt.Errorf("%s: unknown option name", name)
	}
	return nil
}

// builtinRead reads one line from stdin and assigns whitespace-split
// fields to the named variables, the last variable absorbing any
// remainder (POSIX read semantics). `-r` disables backslash escape
// processing; `-p prompt` writes prompt to stdout before reading.
func (r *Registry) builtinRead(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	raw := false
	prompt := ""
	rest := args[1:]
flags:
	for len(rest) > 0 {
		switch {
		case rest[0] == "-r":
			raw = true
			rest = rest[1:]
		case rest[0] == "-p" && len(rest) > 1:
			prompt = rest[1]
			rest = rest[2:]
		default:
			break flags
		}
	}
	names := rest
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	if prompt != "" {
		fmt.Fprint(stdout, prompt)
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return 1, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !raw {
		line = strings.ReplaceAll(line, "\\", "")
	}

	fields := strings.Fields(line)
	for i, name := range names {
		switch {
		case i == len(names)-1 && i < len(fields):
			r.Env.Set(name, strings.Join(fields[i:], " "))
		case i < len(fields):
			r.Env.Set(name, fields[i])
		default:
			r.Env.Set(name, "")
		}
	}
	return 0, nil
}

// builtinGetopts implements a single step of POSIX getopts: optstring
// name [arg...], maintaining OPTIND/OPTARG in the environment across
// calls the way a script's loop (`while getopts ... ; do`) expects.
func (r *Registry) builtinGetopts(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) < 3 {
		fmt.Fprintln(stderr, "getopts: usage: getopts optstring name [arg ...]")
		return 2, nil
	}
	optstring := args[1]
	name := args[2]
	positional := args[3:]
	if len(positional) == 0 {
		positional = r.Opts.Positional
	}

	optind := 1
	if s, ok := r.Env.Get("OPTIND"); ok && s != "" {
		fmt.Sscanf(s, "%d", &optind)
	}

	silent := strings.HasPrefix(optstring, ":")

	if optind-1 >= len(positional) {
		r.Env.Set(name, "?")
		return 1, nil
	}
	arg := positional[optind-1]
	if arg == "--" {
		r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+1))
		r.Env.Set(name, "?")
		return 1, nil
	}
	if !strings.HasPrefix(arg, "-") || arg == "-" {
		r.Env.Set(name, "?")
		return 1, nil
	}

	opt := arg[1:2]
	idx := strings.Index(optstring, opt)
	if idx == -1 {
		r.Env.Set(name, "?")
		r.Env.Set("OPTARG", opt)
		r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+1))
		if !silent {
			fmt.Fprintf(stderr, "%s: illegal option -- %s\n", name, opt)
		}
		return 0, nil
	}

	needsArg := idx+1 < len(optstring) && optstring[idx+1] == ':'
	if !needsArg {
		r.Env.Set(name, opt)
		r.Env.Unset("OPTARG")
		r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+1))
		return 0, nil
	}

	if len(arg) > 2 {
		r.Env.Set("OPTARG", arg[2:])
		r.Env.Set(name, opt)
		r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+1))
		return 0, nil
	}
	if optind < len(positional) {
		r.Env.Set("OPTARG", positional[optind])
		r.Env.Set(name, opt)
		r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+2))
		return 0, nil
	}

	r.Env.Set("OPTARG", opt)
	r.Env.Set("OPTIND", fmt.Sprintf("%d", optind+1))
	if silent {
		r.Env.Set(name, ":")
	} else {
		r.Env.Set(name, "?")
		fmt.Fprintf(stderr, "%s: option requires an argument -- %s\n", name, opt)
	}
	return 0, nil
}

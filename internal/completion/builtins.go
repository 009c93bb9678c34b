package completion

import (
	"strconv"
	"strings"

	"github.com/krustyshell/krusty/internal/editor"
)

// builtinHandler computes a builtin's argument completions for the
// partial token prefix given fields, the fully typed tokens preceding
// it (fields[0] is the command name; len(fields) is the partial
// token's 0-based argument position, so len(fields)==1 means prefix is
// the first argument).
type builtinHandler func(c *Completer, prefix string, fields []string) []editor.Suggestion

var builtinHandlers map[string]builtinHandler

func init() {
	builtinHandlers = map[string]builtinHandler{
		"cd":      cdCompleter,
		"command": cmdNameCompleter, "exec": cmdNameCompleter, "type": cmdNameCompleter,
		"which": cmdNameCompleter, "hash": cmdNameCompleter,
		"help":    helpCompleter,
		"printf":  printfCompleter,
		"getopts": getoptsCompleter,
		"export":  exportCompleter,
		"unset":   envNameCompleter,
		"kill":    signalCompleter, "trap": signalCompleter,
		"set":     setCompleter,
		"read":    readCompleter,
		"unalias": unaliasCompleter,
		"jobs":    jobsCompleter,
		"alias":   aliasCompleter,
		"pushd":   stackIndexCompleter, "popd": stackIndexCompleter,
		"umask": umaskCompleter,
	}
}

func suggestAll(strs []string) []editor.Suggestion {
	out := make([]editor.Suggestion, len(strs))
	for i, s := range strs {
		out[i] = editor.Suggestion{Label: s, Insert: s}
	}
	return out
}

func filterPrefix(strs []string, prefix string) []string {
	var out []string
	for _, s := range strs {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func cdCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return c.completeDirectories(prefix)
}

func cmdNameCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return c.completeCommandNames(prefix)
}

// helpCompleter restricts command-name completion to builtins only.
func helpCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return suggestAll(fuzzyRank(prefix, c.cfg.Builtins()))
}

var commonPrintfFormats = []string{
	`%s\n`, `%d\n`, `%s %s\n`, `%-10s %5d\n`, `%.2f\n`, `%x\n`, `%q\n`,
}

func printfCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return suggestAll(fuzzyRank(strings.TrimPrefix(prefix, `"`), commonPrintfFormats))
}

var commonGetoptsSpecs = []string{"ab:c", "a:b:c:", "hvo:", "xy:z"}
var commonGetoptsVars = []string{"opt", "OPTARG", "flag"}

// getoptsCompleter: first arg ("getopts <prefix>") offers opt-spec
// strings; second arg ("getopts <spec> <prefix>") offers variable
// names.
func getoptsCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	switch len(fields) {
	case 1:
		return suggestAll(fuzzyRank(strings.Trim(prefix, `"`), commonGetoptsSpecs))
	case 2:
		return suggestAll(fuzzyRank(prefix, commonGetoptsVars))
	default:
		return nil
	}
}

func exportCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) < 1 {
		return nil
	}
	var out []editor.Suggestion
	for _, name := range fuzzyRank(prefix, c.cfg.EnvVars()) {
		out = append(out, editor.Suggestion{Label: name + "=", Insert: name + "="})
	}
	return out
}

func envNameCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) < 1 {
		return nil
	}
	return suggestAll(fuzzyRank(prefix, c.cfg.EnvVars()))
}

var commonSignals = []string{
	"SIGHUP", "SIGINT", "SIGQUIT", "SIGKILL", "SIGTERM", "SIGSTOP", "SIGTSTP",
	"SIGCONT", "SIGUSR1", "SIGUSR2", "SIGCHLD", "SIGPIPE", "SIGALRM",
}

func signalCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) < 1 {
		return nil
	}
	trimmed := strings.TrimPrefix(prefix, "-")
	return suggestAll(fuzzyRank(trimmed, commonSignals))
}

// setCompleter: "set -<prefix>" offers [-+][euxvo] flags; once "-o" is
// a completed preceding token ("set -o <prefix>"), offers the
// `set -o` option names instead.
func setCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) == 2 && fields[1] == "-o" {
		return suggestAll(filterPrefix(
			[]string{"vi", "emacs", "noclobber", "pipefail", "noglob"}, prefix))
	}
	if len(fields) != 1 {
		return nil
	}
	if strings.HasPrefix(prefix, "-") || strings.HasPrefix(prefix, "+") {
		flags := []string{"-e", "-u", "-x", "-v", "-o", "+e", "+u", "+x", "+v", "+o"}
		return suggestAll(filterPrefix(flags, prefix))
	}
	return nil
}

func readCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) < 1 {
		return nil
	}
	if strings.HasPrefix(prefix, "-") {
		return suggestAll(filterPrefix([]string{"-r", "-a", "-p", "-s", "-t", "-n", "-d"}, prefix))
	}
	return suggestAll(fuzzyRank(prefix, c.cfg.EnvVars()))
}

func unaliasCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	if prefix == "-" {
		return []editor.Suggestion{{Label: "-a", Insert: "-a"}}
	}
	return suggestAll(fuzzyRank(prefix, c.cfg.Aliases()))
}

func jobsCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 || !strings.HasPrefix(prefix, "-") {
		return nil
	}
	return suggestAll(filterPrefix([]string{"-l", "-p", "-r", "-s"}, prefix))
}

func aliasCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return suggestAll(fuzzyRank(prefix, c.cfg.Aliases()))
}

func stackIndexCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	var indices []string
	for i := 0; i <= 9; i++ {
		indices = append(indices, "+"+strconv.Itoa(i), "-"+strconv.Itoa(i))
	}
	return suggestAll(filterPrefix(indices, prefix))
}

func umaskCompleter(c *Completer, prefix string, fields []string) []editor.Suggestion {
	if len(fields) != 1 {
		return nil
	}
	return suggestAll(filterPrefix([]string{"-S", "022", "002", "077", "027"}, prefix))
}

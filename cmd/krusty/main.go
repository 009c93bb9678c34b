// Command krusty is the entrypoint binary: flag parsing, environment
// bootstrap and logger construction, grounded on
// diillson-chatcli/main.go's same sequence (parse flags, handle
// --version early, load .env, build logger, dispatch to the
// long-running loop). Signal handling is installed by shell.New, not
// here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/krustyshell/krusty/internal/shell"
	"github.com/krustyshell/krusty/internal/shlog"
	"github.com/krustyshell/krusty/version"
)

// options are the flags this binary accepts.
type options struct {
	version    bool
	help       bool
	configPath string
	pluginDir  string
	scriptPath string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("krusty", flag.ContinueOnError)
	opts := &options{}

	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.BoolVar(&opts.version, "v", false, "print version and exit (alias)")
	fs.BoolVar(&opts.help, "help", false, "print usage and exit")
	fs.BoolVar(&opts.help, "h", false, "print usage and exit (alias)")
	fs.StringVar(&opts.configPath, "config", "", "path to the config file (default ~/.krusty.yaml)")
	fs.StringVar(&opts.pluginDir, "plugin-dir", "", "directory to load plugins from (default ~/.krusty/plugins)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if rest := fs.Args(); len(rest) > 0 {
		opts.scriptPath = rest[0]
	}

	return opts, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: krusty [flags] [script]

With no script argument, krusty starts an interactive session. With a
script argument, it executes that file's commands non-interactively.

Flags:
  -config string     path to the config file (default ~/.krusty.yaml)
  -plugin-dir string  directory to load plugins from (default ~/.krusty/plugins)
  -version, -v        print version and exit
  -help, -h           print usage and exit`)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if opts.help {
		usage()
		return
	}

	if opts.version {
		info := version.GetCurrentVersion()
		fmt.Printf("krusty %s (commit %s, built %s)\n", info.Version, info.CommitHash, info.BuildDate)
		return
	}

	envFilePath := os.Getenv("KRUSTY_DOTENV")
	if envFilePath == "" {
		envFilePath = ".env"
	}
	if err := godotenv.Load(envFilePath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "krusty: could not load %s: %v\n", envFilePath, err)
	}

	logger, err := shlog.New(shlog.FromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "krusty: could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Shell.New installs its own signal handling (SIGINT cancels the
	// current foreground command, SIGTSTP suspends it, SIGTERM exits),
	// so main only needs a plain cancellable context for script mode.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buildVersion, _, _ := version.GetBuildInfo()
	sh, err := shell.New(shell.Options{
		Version:    buildVersion,
		ConfigPath: opts.configPath,
		PluginDir:  opts.pluginDir,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "krusty: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	if opts.scriptPath != "" {
		runErr = sh.RunScript(ctx, opts.scriptPath)
	} else {
		runErr = sh.Run(ctx)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "krusty: %v\n", runErr)
		os.Exit(1)
	}

	os.Exit(sh.ExitCode())
}

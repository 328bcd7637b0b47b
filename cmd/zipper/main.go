// Command zipper browses archives from the terminal: list directories inside
// an archive, open or extract single entries, and edit files in ZIP archives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/meigma/zipper"
	"github.com/meigma/zipper/host"
	"github.com/meigma/zipper/internal/config"
)

const usage = `usage: zipper [flags] <command> <archive> [args]

commands:
  ls <archive> [dir]        list one directory level
  tree <archive>            list every entry
  open <archive> <entry>    extract an entry and open it
  extract <archive> <entry> extract an entry and print its cached path
  edit <archive> <entry>    edit an entry; reads status|update|cancel|open from stdin

flags:
`

// maxPrompts bounds how often a wrong password is asked for again.
const maxPrompts = 3

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	cfg      config.Config
	password string
	sortBy   string
	desc     bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// newHost and prompt are replaced in tests.
	newHost func(cfg config.Config, logger *slog.Logger) host.Host
	prompt  func(archive string) (string, error)

	viewer *zipper.Viewer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		newHost: localHost,
	}
	a.prompt = a.terminalPrompt
	return a.main(ctx, args)
}

func (a *app) main(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("zipper", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprint(a.stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.StringVar(&a.password, "p", "", "archive password")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.StringVar(&a.sortBy, "sort", "name", "ls sort column: name, size, compressed or date")
	fs.BoolVar(&a.desc, "desc", false, "ls sorts in descending order")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(a.stderr, "zipper: config: %v\n", err)
			return 1
		}
	}
	a.cfg = cfg

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintf(a.stderr, "zipper: %v\n", err)
		return 1
	}
	if *verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	v, err := zipper.New(a.newHost(cfg, a.logger),
		zipper.WithNamespace(cfg.Namespace),
		zipper.WithTolerance(cfg.Tolerance),
		zipper.WithPollInterval(cfg.PollInterval),
		zipper.WithDebounce(cfg.Debounce),
		zipper.WithWorkers(cfg.Workers),
		zipper.WithOnChange(a.changed),
		zipper.WithLogger(a.logger),
	)
	if err != nil {
		fmt.Fprintf(a.stderr, "zipper: %v\n", err)
		return 1
	}
	a.viewer = v
	defer v.Close(context.WithoutCancel(ctx)) //nolint:errcheck // best-effort cleanup

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if err := a.dispatch(ctx, cmd, rest); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(a.stderr, "zipper: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch {
	case cmd == "ls" && len(args) == 1:
		return a.ls(ctx, args[0], "")
	case cmd == "ls" && len(args) == 2:
		return a.ls(ctx, args[0], args[1])
	case cmd == "tree" && len(args) == 1:
		return a.tree(ctx, args[0])
	case cmd == "open" && len(args) == 2:
		return a.open(ctx, args[0], args[1])
	case cmd == "extract" && len(args) == 2:
		return a.extract(ctx, args[0], args[1])
	case cmd == "edit" && len(args) == 2:
		return a.edit(ctx, args[0], args[1])
	case cmd == "ls" || cmd == "tree" || cmd == "open" || cmd == "extract" || cmd == "edit":
		return errUsage
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// load opens the archive, asking for a password while the archive rejects
// the current one.
func (a *app) load(ctx context.Context, path string) (*zipper.Archive, error) {
	for attempt := 0; ; attempt++ {
		archive, err := a.viewer.Load(ctx, path, a.password)
		if err == nil || !errors.Is(err, zipper.ErrPassword) || attempt == maxPrompts {
			return archive, err
		}
		pw, perr := a.prompt(path)
		if perr != nil {
			return nil, errors.Join(err, perr)
		}
		a.password = pw
	}
}

func (a *app) terminalPrompt(archive string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", errors.New("password required; pass it with -p")
	}
	fmt.Fprintf(a.stderr, "Password for %s: ", archive)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pw)), nil
}

func localHost(cfg config.Config, logger *slog.Logger) host.Host {
	opts := []host.LocalOption{host.WithLogger(logger)}
	if cfg.TempDir != "" {
		opts = append(opts, host.WithTempDir(cfg.TempDir))
	}
	return host.NewLocal(opts...)
}

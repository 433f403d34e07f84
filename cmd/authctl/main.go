// Command authctl runs the authentication operations against a configured
// database from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	auth "github.com/goliatone/go-token-auth"
	"github.com/goliatone/go-token-auth/activitymap"
	"github.com/goliatone/go-token-auth/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s (status %d)\n", err, auth.HTTPStatus(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	envFile := global.String("env", ".env", "dotenv file to load before reading the environment")
	verbose := global.Bool("v", false, "verbose logging")
	audit := global.Bool("audit", false, "write activity records to stderr as JSON lines")
	global.Usage = func() { usage(global.Output()) }

	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(global.Output())
		return errMissingCommand
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		usage(global.Output())
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}

	var sink auth.ActivitySink
	if *audit {
		sink = activitymap.NewWriterSink(os.Stderr, activitymap.WithDefaultChannel("authctl"))
	}

	a, err := newApp(ctx, cfg, stderrLogger{verbose: *verbose}, sink)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.name != "migrate" {
		if err := a.repo.Migrate(ctx); err != nil {
			return err
		}
	}

	return cmd.run(ctx, a, rest[1:], out)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: authctl [-env file] [-v] [-audit] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].help)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"polytask/internal/app"
	"polytask/internal/config"
	logx "polytask/pkg/logx"
)

const usage = `usage: polytask [-config FILE] <command> [args]

commands:
  run                       start the reminder daemon
  add -title T [flags]      add a task (-desc -group -priority -tags -due)
  done ID                   mark a task done
  delete ID                 delete a task
  list [-status S]          list tasks (pending, done, all)
  groups [add|delete NAME]  list or manage groups
  report [-send]            print the weekly digest, optionally send it
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("polytask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := fs.String("config", config.DefaultPath, "path to config yaml/json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "run" {
		if err := runDaemon(*cfgPath); err != nil {
			// The app logger is gone (or never existed) by now.
			logx.NewConsole("info").Error("daemon exited", logx.Err(err))
			return 1
		}
		return 0
	}

	h, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return 2
	}
	a, err := app.New(*cfgPath, app.Options{AllowMissingConfig: true})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := h(ctx, a, rest, stdout); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func runDaemon(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Options{AllowMissingConfig: true})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

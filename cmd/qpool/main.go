// Command qpool manages question pools in an event store.
//
//	qpool [global flags] <command> [flags] [args]
//
// Commands:
//
//	create    [-name n] [-description d] [-id uuid]
//	add       <pool> <question>
//	remove    <pool> <question>
//	set-data  [-name n] [-description d] <pool>
//	show      <pool>
//	list      [-name n] [-creator c]
//	delete    <pool>
//	events    <pool>
//
// The store is picked by the configuration (see internal/config). The memory
// backend forgets everything when the process exits.
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

	"github.com/prometheus/client_golang/prometheus"

	promadapter "github.com/codewandler/qpool-go/adapters/prometheus"
	"github.com/codewandler/qpool-go/core/cqrs"
	"github.com/codewandler/qpool-go/internal/config"
	"github.com/codewandler/qpool-go/questionpool/service"
)

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "qpool:", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	backend    string
	user       string
	snapshots  bool
	stats      bool
	json       bool
	verbose    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var g globalFlags
	fs := flag.NewFlagSet("qpool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "config file (default ./qpool.yaml if present)")
	fs.StringVar(&g.backend, "backend", "", "store backend: memory, sqlite, mysql, nats")
	fs.StringVar(&g.user, "user", "", "user recorded as creator or editor")
	fs.BoolVar(&g.snapshots, "snapshots", false, "read and write pool snapshots")
	fs.BoolVar(&g.stats, "stats", false, "print store and command metrics after the command")
	fs.BoolVar(&g.json, "json", false, "print results as JSON")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: qpool [flags] <create|add|remove|set-data|show|list|delete|events> [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, fs, g); err != nil {
		return err
	}

	level, _ := cfg.Log.SlogLevel()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmdName, cmdArgs := fs.Arg(0), fs.Args()[1:]
	command, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmdName)
	}

	if cfg.Store.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
	}

	b, err := openBackend(ctx, log, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("close store", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	m := promadapter.NewAllMetrics(reg)

	svc, err := service.New(service.Config{
		Log:         log,
		Store:       b.store,
		Snapshotter: b.snapshotter,
		Snapshots:   cfg.Snapshots.Enabled,
		ESMetrics:   m.ES,
		BusMetrics:  m.Bus,
	})
	if err != nil {
		return err
	}

	if cfg.User != "" {
		ctx = cqrs.WithCaller(ctx, cqrs.Caller{ID: cfg.User})
	}

	out := &printer{w: stdout, json: g.json}
	if err := command(ctx, svc, out, cmdArgs); err != nil {
		return fmt.Errorf("%s: %w", cmdName, err)
	}

	if g.stats {
		return printStats(stdout, reg)
	}
	return nil
}

// applyFlags lets explicitly set global flags win over the loaded config.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, g globalFlags) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Store.Backend = g.backend
		case "user":
			cfg.User = g.user
		case "snapshots":
			cfg.Snapshots.Enabled = g.snapshots
		case "v":
			if g.verbose {
				cfg.Log.Level = "debug"
			}
		}
	})
	return cfg.Validate()
}

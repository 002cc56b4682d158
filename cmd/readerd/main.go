// readerd is the vaultaire reader daemon: it serves point and contents
// queries from the vault over the broker's router sockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/anchor/vaultaire/internal/daemon"
	"github.com/anchor/vaultaire/internal/loader"
	"github.com/anchor/vaultaire/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags; -debug, -workers, -pool and -user have short aliases.
	cfgPath := flag.String("config", "", "config file path")
	debug := flag.Bool("debug", false, "mirror telemetry to stdout, verbose logging")
	flag.BoolVar(debug, "d", false, "shorthand for -debug")
	workers := flag.Int("workers", 0, "reader worker count (0 = logical CPUs)")
	flag.IntVar(workers, "w", 0, "shorthand for -workers")
	pool := flag.String("pool", "", "object store pool (overrides config)")
	flag.StringVar(pool, "p", "", "shorthand for -pool")
	user := flag.String("user", "", "object store user (overrides config)")
	flag.StringVar(user, "u", "", "shorthand for -user")
	demo := flag.Bool("demo", false, "enable the synthetic demo origin")
	flag.Usage = usage
	flag.Parse()

	// Load config
	cfg := loader.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := loader.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "readerd: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}

	// CLI overrides
	if *workers != 0 {
		cfg.Workers = *workers
	}
	if *pool != "" {
		cfg.Pool = *pool
	}
	if *user != "" {
		cfg.User = *user
	}
	if *debug {
		cfg.Debug = true
	}
	if *demo {
		cfg.Demo = true
	}
	if flag.NArg() > 0 {
		cfg.Broker = flag.Arg(0)
	}
	if cfg.Broker == "" {
		fmt.Fprintln(os.Stderr, "readerd: broker hostname required")
		usage()
		os.Exit(2)
	}

	// The worker default is resolved here, after parsing, never inside
	// a flag default expression.
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level, false)

	log := logging.Component("main")
	log.Info("readerd starting", "version", Version, "broker", cfg.Broker, "workers", cfg.Workers)

	// SIGINT/SIGTERM cancel the run context; every linked task winds
	// down through it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := daemon.Run(ctx, &daemon.Config{
		Broker:  cfg.Broker,
		Pool:    cfg.Pool,
		User:    cfg.User,
		Workers: cfg.Workers,
		Debug:   cfg.Debug,
		Demo:    cfg.Demo,
	})
	if err != nil {
		log.Error("readerd failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: readerd [flags] BROKER

Serve vault read queries from the object store to the broker at BROKER.

flags:
`)
	flag.PrintDefaults()
}

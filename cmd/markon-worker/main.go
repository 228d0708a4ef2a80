// Command markon-worker is the out-of-process persistence worker. It speaks
// the JSON-lines persistence protocol on stdin/stdout and writes to the
// configured store; the editor starts it through persist.ExecSpawner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanderheijden86/markon/pkg/config"
	"github.com/vanderheijden86/markon/pkg/persist"
	"github.com/vanderheijden86/markon/pkg/sched"
	"github.com/vanderheijden86/markon/pkg/store"
	"github.com/vanderheijden86/markon/pkg/version"
)

func main() {
	backend := flag.String("store-backend", "", "Store backend (sqlite, bolt, memory); overrides config")
	path := flag.String("store-path", "", "Store location; overrides config")
	logLevel := flag.String("log", "", "Event log level (none, error, warn, info, debug, trace)")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("markon-worker %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(2)
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *path != "" {
		cfg.Store.Path = *path
	}
	if *logLevel != "" {
		cfg.Persist.LogLevel = *logLevel
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	open, err := store.OpenerFor(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return err
	}
	st := store.New(open)
	defer st.Close()

	idler := sched.NewIdler(cfg.Persist.IdleQuiet, cfg.Persist.IdleTimeout)
	defer idler.Close()

	// The parent hangs up on stdin to stop us; signals only cut the wait short.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return persist.ServeWorker(ctx, persist.Stdio(), persist.SaverConfig{
		Store:    st,
		Key:      store.ContentKey,
		Debounce: cfg.Persist.Debounce,
		Idle:     idler,
		LogLevel: persist.ParseLogLevel(cfg.Persist.LogLevel),
	})
}

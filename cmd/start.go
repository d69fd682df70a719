package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/powerwatch/host/internal/config"
	"github.com/powerwatch/host/internal/coordinator"
	"github.com/powerwatch/host/internal/mdns"
	"github.com/powerwatch/host/internal/notify"
	"github.com/powerwatch/host/internal/server"
	"github.com/powerwatch/host/internal/storage"
	"github.com/powerwatch/host/internal/wakelock"
)

// runStart implements the "powerwatch start" command.
//
// Bring-up order: wake lock, power observer, visibility observer, then the
// three periodic activities, then the control server. Teardown runs in the
// exact reverse order; the coordinator owns the inner sequence and the CLI
// owns the server and journal around it.
func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath   = fs.String("config", "", "Path to config file (default: ~/.powerwatch/config.toml)")
		addr         = fs.String("addr", "", "Host:port for the control server (default: "+config.DefaultAddr+")")
		journalPath  = fs.String("journal", "", "Path to the event journal database (default: ~/.powerwatch/powerwatch.db)")
		wakeLockMode = fs.String("wake-lock-mode", "", "Wake lock backing: system or noop (default: system)")
		logFile      = fs.String("log-file", "", "Log file path (default: stderr)")
		mdnsFlag     = fs.Bool("mdns", false, "Enable mDNS/Bonjour advertisement of the control server")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: powerwatch start [options]\n\nStart the coordinator daemon.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Track which flags were explicitly set so boolean config values can
	// still be overridden with --flag=false.
	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	// Load config file and merge with CLI flags. Flags take precedence.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *journalPath != "" {
		cfg.Journal = *journalPath
	}
	if *wakeLockMode != "" {
		cfg.WakeLockMode = *wakeLockMode
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if explicitFlags["mdns"] {
		cfg.MdnsEnabled = *mdnsFlag
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		log.SetOutput(f)
	}

	var adapter wakelock.Adapter
	switch cfg.WakeLockMode {
	case config.WakeLockModeNoop:
		adapter = wakelock.NewNoopAdapter()
	case config.WakeLockModeSystem, "":
		adapter = wakelock.NewDefaultAdapter()
	default:
		fmt.Fprintf(stderr, "Error: unknown wake lock mode %q (want system or noop)\n", cfg.WakeLockMode)
		return 1
	}

	if cfg.Journal == "" {
		cfg.Journal, err = config.DefaultJournalPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if cfg.Journal != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal), 0o700); err != nil {
			fmt.Fprintf(stderr, "Error: failed to create journal directory: %v\n", err)
			return 1
		}
	}

	journal, err := storage.Open(cfg.Journal)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open journal: %v\n", err)
		return 1
	}
	defer journal.Close()

	power := notify.NewPowerChain()
	visibility := notify.NewVisibilityChain()

	// The server is constructed after the coordinator but the coordinator
	// broadcasts through it, so forward events via this indirection.
	var srv *server.Server

	coord := coordinator.New(coordinator.Config{
		Lock:        wakelock.NewLock(cfg.WakeLockName, adapter, wakelock.Options{}),
		Power:       power,
		Visibility:  visibility,
		TimerPeriod: cfg.TimerPeriod(),
		WorkPeriod:  cfg.WorkPeriod(),
		AlarmPeriod: cfg.AlarmPeriod(),
		StopTimeout: cfg.StopTimeout(),
		Journal:     journal,
		OnEvent: func(ev storage.Event) {
			if srv != nil {
				srv.Broadcast(ev)
			}
		},
	})

	srv = server.New(server.Config{
		Addr:          cfg.Addr,
		Coordinator:   coord,
		Power:         power,
		Visibility:    visibility,
		Journal:       journal,
		PowerProvider: wakelock.NewDefaultPowerProvider(),
		AuthTokenHash: cfg.AuthTokenHash,
	})

	ctx := context.Background()
	if err := coord.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: failed to start coordinator: %v\n", err)
		return 1
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(stderr, "Error: failed to start control server: %v\n", err)
		stopCtx, cancel := context.WithTimeout(ctx, cfg.StopTimeout())
		defer cancel()
		if stopErr := coord.Stop(stopCtx); stopErr != nil {
			fmt.Fprintf(stderr, "Error: teardown after failed start: %v\n", stopErr)
		}
		return 1
	}

	var advertiser *mdns.Advertiser
	if cfg.MdnsEnabled {
		advertiser = mdns.NewAdvertiser(mdns.Config{
			Port:         serverPort(srv.Addr(), cfg.Addr),
			WakeLockName: cfg.WakeLockName,
		})
		if err := advertiser.Start(); err != nil {
			// Advertisement is best-effort; the coordinator keeps running.
			fmt.Fprintf(stderr, "Warning: mDNS advertisement failed: %v\n", err)
			advertiser = nil
		}
	}

	fmt.Fprintf(stdout, "powerwatch %s listening on %s\n", Version, srv.Addr())
	fmt.Fprintf(stdout, "Wake lock: %s (%s)\n", cfg.WakeLockName, cfg.WakeLockMode)
	fmt.Fprintf(stdout, "Journal:   %s\n", cfg.Journal)

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	fmt.Fprintf(stdout, "\nReceived signal %v, stopping...\n", sig)

	// Teardown in reverse of bring-up.
	exit := 0
	if advertiser != nil {
		advertiser.Stop()
	}
	stopCtx, cancel := context.WithTimeout(ctx, cfg.StopTimeout())
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		fmt.Fprintf(stderr, "Error: stopping control server: %v\n", err)
		exit = 1
	}
	if err := coord.Stop(stopCtx); err != nil {
		fmt.Fprintf(stderr, "Error: stopping coordinator: %v\n", err)
		exit = 1
	}

	fmt.Fprintln(stdout, "Stopped.")
	return exit
}

// serverPort extracts the bound port, falling back to the configured
// address when the listener address is unavailable.
func serverPort(bound, configured string) int {
	for _, addr := range []string{bound, configured} {
		_, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			continue
		}
		if port, err := strconv.Atoi(portStr); err == nil {
			return port
		}
	}
	return 0
}

// Command brepview receives length-prefixed geometry payloads over TCP and
// shows the current client's frames in a terminal viewer.
//
// Usage:
//
//	./brepview [-config configs] [-host 127.0.0.1] [-port 12345] [-mode auto|manual] [-headless] [-debug]
//
// Without a terminal on stdin/stdout, or with -headless, every published frame
// is summarised on stdout and acknowledged immediately.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/stlalpha/brepview/internal/config"
	"github.com/stlalpha/brepview/internal/display"
	"github.com/stlalpha/brepview/internal/engine"
	"github.com/stlalpha/brepview/internal/logging"
	"github.com/stlalpha/brepview/internal/report"
	"github.com/stlalpha/brepview/internal/viewer"
)

// errViewerClosed ends the other goroutines when the user quits the viewer.
var errViewerClosed = errors.New("viewer closed")

func main() {
	configDir := flag.String("config", "configs", "Directory containing "+config.FileName)
	host := flag.String("host", "", "Listen address (overrides config)")
	port := flag.Int("port", -1, "Listen port (overrides config)")
	mode := flag.String("mode", "", "Draw mode: auto or manual (overrides config)")
	headless := flag.Bool("headless", false, "Summarise frames on stdout instead of running the viewer")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logging.DebugEnabled = *debug || os.Getenv("DEBUG") == "1"

	fileCfg, err := config.LoadServerConfig(*configDir)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	cfg := overrides{host: *host, port: *port, mode: *mode}.apply(fileCfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: invalid settings: %v", err)
	}

	useTUI := !*headless && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	logCloser, err := logging.Setup(cfg.LogFile, !useTUI)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer logCloser.Close()

	drawMode, err := display.ParseMode(cfg.DrawMode)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	policies, err := policiesFrom(cfg)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	state := display.NewState(drawMode)
	eng := engine.New(engine.Config{
		ChunkSize:     cfg.ReceiveChunkBytes,
		MaxFrameBytes: cfg.MaxFrameBytes,
		Policies:      policies,
	}, state)

	// Bind failures are fatal before anything starts.
	if err := eng.Listen(cfg.ListenHost, cfg.ListenPort); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reloads are compared against the file, not the flag overrides.
	watcher, err := NewConfigWatcher(*configDir, fileCfg, eng)
	if err != nil {
		log.Printf("WARN: Config hot-reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	reporter := report.New(cfg.StatsSchedule, cfg.StatsHistoryPath, cfg.StatsHistoryMax, eng.Stats)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return reporter.Start(gctx)
	})
	g.Go(func() error {
		consumer := state.Consumer()
		var err error
		if useTUI {
			err = viewer.Run(gctx, consumer)
		} else {
			log.Printf("INFO: Running headless, frame summaries go to stdout")
			err = viewer.RunHeadless(gctx, consumer, os.Stdout)
		}
		if err != nil {
			return err
		}
		return errViewerClosed
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errViewerClosed) {
		log.Printf("ERROR: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
	log.Printf("INFO: brepview stopped")
}

// overrides holds the command line settings that replace config values.
type overrides struct {
	host string
	port int // -1 = unset
	mode string
}

func (o overrides) apply(cfg config.ServerConfig) config.ServerConfig {
	if o.host != "" {
		cfg.ListenHost = o.host
	}
	if o.port >= 0 {
		cfg.ListenPort = o.port
	}
	if o.mode != "" {
		cfg.DrawMode = o.mode
	}
	return cfg
}

// policiesFrom converts the runtime policy fields of cfg.
func policiesFrom(cfg config.ServerConfig) (engine.Policies, error) {
	onErr, err := engine.ParseErrorPolicy(cfg.ConnectionErrorPolicy)
	if err != nil {
		return engine.Policies{}, err
	}
	return engine.Policies{
		RedrawOnNavigate: cfg.RedrawOnNavigate,
		OnConnError:      onErr,
		FallbackOnClose:  cfg.FallbackOnClose,
	}, nil
}

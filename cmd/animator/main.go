package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dewiweb/holophonix-animator-sub000/internal/config"
	"github.com/dewiweb/holophonix-animator-sub000/internal/logging"
	"github.com/dewiweb/holophonix-animator-sub000/internal/observability"
	"github.com/dewiweb/holophonix-animator-sub000/internal/scenario"
	"github.com/dewiweb/holophonix-animator-sub000/internal/sim"
	"github.com/dewiweb/holophonix-animator-sub000/model"
	"github.com/dewiweb/holophonix-animator-sub000/timectrl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "animator: %v\n", err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"scenario":     "scenario",
	"duration":     "duration",
	"tick":         "tick",
	"accelerated":  "accelerated",
	"export":       "export.format",
	"every":        "export.every",
	"parallelism":  "parallelism",
	"metrics":      "metrics.enabled",
	"metrics-addr": "metrics.addr",
	"log-level":    "logLevel",
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("animator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("scenario", "", "YAML scenario to load at startup")
	fs.Duration("duration", 0, "total run time (0 runs until interrupted)")
	fs.Duration("tick", 10*time.Millisecond, "tick interval")
	fs.Bool("accelerated", false, "advance as fast as possible instead of in real time")
	fs.String("export", config.FormatCartesian, "export format: cartesian or spherical")
	fs.Int("every", 1, "print one frame every N ticks")
	fs.Int("parallelism", 1, "concurrent motion evaluations per group")
	fs.Bool("metrics", false, "serve Prometheus metrics")
	fs.String("metrics-addr", ":9090", "metrics listen address")
	fs.String("log-level", "info", "debug, info, warn or error")
	restorePath := fs.String("restore", "", "restore a JSON snapshot instead of loading a scenario")
	snapshotPath := fs.String("snapshot-out", "", "write a JSON snapshot here on exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := config.New()
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.(flag.Getter).Get())
		}
	})
	cfg, err := config.Load(v, *configDir)
	if err != nil {
		return err
	}

	ctx, log := logging.WithRunLogger(ctx, logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stderr,
	}))

	tracing, err := observability.InitTracing(ctx, cfg.TracingConfig(logging.RunIDFromContext(ctx)), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background())

	var collector *observability.EngineCollector
	if cfg.Metrics.Enabled {
		collector, err = observability.NewEngineCollector(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		srv := serveMetrics(ctx, cfg.Metrics.Addr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn(ctx, "metrics server shutdown", logging.Err(err))
			}
		}()
	}

	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithTracer(tracing.Tracer()),
		sim.WithParallelism(cfg.Parallelism),
	}
	if collector != nil {
		opts = append(opts, sim.WithMetrics(collector))
	}
	engine := sim.NewEngine(opts...)

	resume, err := loadScene(engine, *restorePath, cfg.Scenario)
	if err != nil {
		return err
	}
	if resume > 0 {
		log.Info(ctx, "resuming from snapshot", logging.Duration("time", resume))
	}

	exp, err := newExporter(stdout, cfg.Export.Format)
	if err != nil {
		return err
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	// The controller starts at the resume point; engine time is measured
	// from epoch.
	epoch := time.Now().UTC()
	tc := timectrl.NewTimeController(epoch.Add(resume), cfg.Tick, mode)

	var (
		ticks    int
		frameErr error
	)
	tc.AddListener(func(simTime time.Time) {
		elapsed := simTime.Sub(epoch)
		if _, err := engine.Advance(ctx, elapsed); err != nil {
			return
		}
		ticks++
		if ticks%cfg.Export.Every != 0 || frameErr != nil {
			return
		}
		if err := exp.WriteFrame(elapsed, engine.Positions()); err != nil {
			frameErr = err
			log.Error(ctx, "export frame", logging.Err(err))
		}
	})

	log.Info(ctx, "animator starting",
		logging.Duration("duration", cfg.Duration),
		logging.Duration("tick", cfg.Tick),
		logging.Bool("accelerated", cfg.Accelerated),
		logging.Int("tracks", len(engine.Positions())),
		logging.Int("groups", len(engine.GroupIDs())),
	)

	runErr := tc.Run(ctx, cfg.Duration)
	if errors.Is(runErr, context.Canceled) {
		log.Info(ctx, "interrupted, shutting down", logging.Int("ticks", ticks))
		runErr = nil
	}

	if *snapshotPath != "" {
		if err := writeSnapshotFile(*snapshotPath, engine.Snapshot()); err != nil {
			return err
		}
	}
	log.Info(ctx, "animator stopped", logging.Int("ticks", ticks))
	return errors.Join(runErr, frameErr)
}

// loadScene fills the engine from a snapshot or a scenario and returns the
// engine time to resume from.
func loadScene(engine *sim.Engine, restorePath, scenarioPath string) (time.Duration, error) {
	if restorePath != "" {
		f, err := os.Open(restorePath)
		if err != nil {
			return 0, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		snap, err := sim.ReadSnapshot(f)
		if err != nil {
			return 0, err
		}
		if err := engine.Restore(snap); err != nil {
			return 0, err
		}
		return snap.Time, nil
	}
	if scenarioPath == "" {
		return 0, nil
	}
	script, err := scenario.Load(scenarioPath)
	if err != nil {
		return 0, fmt.Errorf("load scenario %q: %w", scenarioPath, err)
	}
	if err := script.Apply(engine); err != nil {
		return 0, fmt.Errorf("apply scenario %q: %w", scenarioPath, err)
	}
	return 0, nil
}

func writeSnapshotFile(path string, snap model.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := sim.WriteSnapshot(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serveMetrics(ctx context.Context, addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info(ctx, "serving metrics", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", logging.Err(err))
		}
	}()
	return srv
}

// Command visq runs producers and consumers against one in-process
// visibility queue and reports what happened.
//
// Usage:
//
//	visq [--config path/to/visq.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/snehjoshi/visq/internal/config"
	"github.com/snehjoshi/visq/internal/consumer"
	"github.com/snehjoshi/visq/internal/metrics"
	"github.com/snehjoshi/visq/internal/producer"
	"github.com/snehjoshi/visq/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "visq: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "visq.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// ── 3. Queue + metrics ───────────────────────────────────────────────────
	reg := &metrics.Registry{}
	q := queue.New(
		queue.WithName(cfg.Queue.Name),
		queue.WithSweepInterval(cfg.Queue.SweepEvery()),
		queue.WithMetrics(reg),
		queue.WithLogger(slog.Default()),
	)

	slog.Info("visq starting",
		"queue", q.Name(),
		"sweep_interval", cfg.Queue.SweepEvery(),
		"visibility_timeout", cfg.Queue.Timeout(),
		"producers", cfg.Producers.Count,
		"consumers", cfg.Consumers.Count,
	)

	// ── 4. Optional Prometheus metrics listener ──────────────────────────────
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics server error", "err", err)
			}
		}()
	}

	// ── 5. Run context: duration and SIGINT / SIGTERM ────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if d := cfg.Run.For(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	// ── 6. Consumers ─────────────────────────────────────────────────────────
	cm := consumer.NewManager(q,
		consumer.SimulatedHandler(cfg.Consumers.Work(), cfg.Consumers.FailureRate),
		consumer.Config{
			Workers:           cfg.Consumers.Count,
			VisibilityTimeout: cfg.Queue.Timeout(),
			PollInterval:      cfg.Consumers.Poll(),
		}, reg)
	if cfg.Consumers.Count > 0 {
		cm.Start(ctx)
	}

	// ── 7. Producers ─────────────────────────────────────────────────────────
	prodErr := make(chan error, cfg.Producers.Count)
	var pwg sync.WaitGroup
	for i := 1; i <= cfg.Producers.Count; i++ {
		p := producer.New(i, q, float64(cfg.Producers.MaxRate), cfg.Producers.Burst, nil)
		pwg.Add(1)
		go func() {
			defer pwg.Done()
			if err := p.Run(ctx); err != nil {
				prodErr <- err
			}
		}()
	}

	// ── 8. Periodic status until the run ends ────────────────────────────────
	go logStatus(ctx, q, cfg.Run.StatusEvery())

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down", "reason", context.Cause(ctx))
	case runErr = <-prodErr:
		slog.Error("producer failed", "err", runErr)
	}
	stop()

	pwg.Wait()
	cm.Close()
	if err := q.Close(); err != nil {
		slog.Warn("queue close error", "err", err)
	}
	if metricsSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}

	s := q.Stats()
	slog.Info("visq stopped", "remaining", s.Total, "visible", s.Visible, "invisible", s.Invisible)
	if _, err := reg.WriteTo(os.Stdout); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return runErr
}

// newLogger builds the process logger. cfg has already been validated.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	lvl, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func logStatus(ctx context.Context, q *queue.Queue, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := q.Stats()
			slog.Info("queue status",
				"total", s.Total,
				"visible", s.Visible,
				"invisible", s.Invisible,
				"sweep_armed", s.SweepArmed,
			)
		}
	}
}

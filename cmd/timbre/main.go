package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crimson-sun/timbre/internal/config"
	"github.com/crimson-sun/timbre/internal/engine"
	"github.com/crimson-sun/timbre/internal/engine/dedup"
	"github.com/crimson-sun/timbre/internal/engine/enroll"
	"github.com/crimson-sun/timbre/internal/engine/frontend"
	"github.com/crimson-sun/timbre/internal/engine/pool"
	"github.com/crimson-sun/timbre/internal/engine/scoring"
	"github.com/crimson-sun/timbre/internal/logging"
	"github.com/crimson-sun/timbre/internal/output"
	"github.com/crimson-sun/timbre/internal/output/async"
	outfile "github.com/crimson-sun/timbre/internal/output/file"
	"github.com/crimson-sun/timbre/internal/output/multi"
	"github.com/crimson-sun/timbre/internal/output/stdout"
	"github.com/crimson-sun/timbre/internal/output/webhook"
	"github.com/crimson-sun/timbre/internal/pipeline"
	"github.com/crimson-sun/timbre/internal/source"

	// Register source implementations.
	_ "github.com/crimson-sun/timbre/internal/source/file"
	_ "github.com/crimson-sun/timbre/internal/source/httpsrc"
	_ "github.com/crimson-sun/timbre/internal/source/stdin"
)

func main() {
	cfg := config.Load()

	showVersion := flag.Bool("version", false, "print version and exit")
	since := flag.Duration("since", 24*time.Hour, "fetch mode: how far back to fetch")
	limit := flag.Int("limit", 0, "fetch mode: maximum utterances to fetch (0 = no limit)")
	flag.Parse()
	cfg.ShowVersion = *showVersion

	if cfg.ShowVersion {
		fmt.Printf("timbre %s\n", config.Version)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "timbre: invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays clean for record output.
	outputIsStdout := strings.Contains(cfg.Output.Format, "stdout")
	logging.Init(outputIsStdout, logging.ParseLevel(os.Getenv("TIMBRE_LOG_LEVEL")))

	eng, cleanup, err := buildEngine(cfg.Engine)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	out, err := buildOutput(cfg.Output, cfg.Engine.Verbosity)
	if err != nil {
		slog.Error("failed to build output", "error", err)
		os.Exit(1)
	}

	ctor, err := source.Get(cfg.Source.Provider)
	if err != nil {
		slog.Error("failed to resolve source", "error", err)
		os.Exit(1)
	}
	src := ctor()

	var opts []pipeline.Option
	if cfg.Engine.DedupWindow > 0 {
		opts = append(opts, pipeline.WithDedup(dedup.New(dedup.Config{Window: cfg.Engine.DedupWindow})))
	}
	if cfg.Engine.FlushWindow > 0 {
		opts = append(opts, pipeline.WithBuffer(cfg.Engine.FlushWindow, cfg.Engine.MaxBufferSize))
	}
	p := pipeline.New(src, eng, out, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srcCfg := source.SourceConfig{
		Provider: cfg.Source.Provider,
		Token:    cfg.Source.Token,
		Endpoint: cfg.Source.Endpoint,
		Extra:    cfg.Source.Extra,
	}

	slog.Info("starting",
		"version", config.Version,
		"mode", cfg.Mode,
		"source", cfg.Source.Provider,
		"pooler", cfg.Engine.Pooler,
		"output", cfg.Output.Format)

	switch cfg.Mode {
	case "fetch":
		params := source.FetchParams{
			Start: time.Now().Add(-*since),
			End:   time.Now(),
			Limit: *limit,
		}
		err = p.Fetch(ctx, srcCfg, params)
	default:
		err = p.Stream(ctx, srcCfg)
	}
	if err != nil && err != context.Canceled {
		slog.Error("pipeline failed", "error", err)
		closeWithTimeout(p, cfg.ShutdownTimeout)
		os.Exit(1)
	}

	closeWithTimeout(p, cfg.ShutdownTimeout)
}

// buildEngine wires frontend, pooler, roster and scorer from config. The
// returned cleanup releases the frontend if engine construction fails later.
func buildEngine(ec config.EngineConfig) (*engine.Engine, func(), error) {
	var poolCfg pool.Config
	if ec.PoolerConfig != "" {
		if err := json.Unmarshal([]byte(ec.PoolerConfig), &poolCfg); err != nil {
			return nil, nil, fmt.Errorf("pooler config: %w", err)
		}
	}

	var fe frontend.Frontend
	if ec.ModelPath != "" {
		enc, err := frontend.NewEncoder(ec.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		poolCfg.InDim = enc.OutChannels()
		fe = enc
	} else {
		ident, err := frontend.NewIdentity(ec.FeatureDim)
		if err != nil {
			return nil, nil, err
		}
		poolCfg.InDim = ec.FeatureDim
		fe = ident
	}

	pooler, err := pool.New(ec.Pooler, poolCfg)
	if err != nil {
		fe.Close()
		return nil, nil, err
	}
	if ec.WeightsPath != "" {
		if err := pool.LoadParameters(ec.WeightsPath, pooler.Parameters()); err != nil {
			fe.Close()
			return nil, nil, err
		}
	}

	eng, err := engine.New(fe, pooler, ec.Pooler, enroll.New(pooler.OutDim()), scoring.New(ec.Threshold))
	if err != nil {
		fe.Close()
		return nil, nil, err
	}
	return eng, func() { eng.Close() }, nil
}

// buildOutput assembles the output chain. Format accepts a comma-separated
// list; more than one entry fans out through multi. Webhook delivery is
// wrapped in async so slow endpoints do not stall the pipeline.
func buildOutput(oc config.OutputConfig, verbosity string) (output.Output, error) {
	verb := output.ParseVerbosity(verbosity)

	var outs []output.Output
	for _, format := range strings.Split(oc.Format, ",") {
		switch strings.TrimSpace(format) {
		case "stdout":
			outs = append(outs, stdout.New(verb, oc.Pretty))
		case "file":
			f, err := outfile.New(oc.Path, verb)
			if err != nil {
				return nil, err
			}
			outs = append(outs, f)
		case "webhook":
			wh := webhook.New(oc.WebhookURL,
				webhook.WithToken(os.Getenv("TIMBRE_WEBHOOK_TOKEN")),
				webhook.WithVerbosity(verb),
				webhook.WithOnError(func(err error) {
					slog.Warn("webhook delivery failed", "error", err)
				}))
			outs = append(outs, async.New(wh, async.WithOnError(func(err error) {
				slog.Warn("async output failed", "error", err)
			})))
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}

// closeWithTimeout flushes and closes the pipeline, giving up after the
// configured shutdown timeout so a stuck output cannot hang exit.
func closeWithTimeout(p *pipeline.Pipeline, timeout time.Duration) {
	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		if err != nil {
			slog.Warn("close reported errors", "error", err)
		}
	case <-time.After(timeout):
		slog.Warn("shutdown timed out", "timeout", timeout)
	}
}

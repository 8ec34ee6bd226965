package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/ragsweep/internal/artifacts"
	"github.com/haasonsaas/ragsweep/internal/config"
	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/dataset"
	"github.com/haasonsaas/ragsweep/internal/rag/eval"
	"github.com/haasonsaas/ragsweep/internal/rag/kb"
	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
	"github.com/haasonsaas/ragsweep/internal/rag/pipeline"
	"github.com/haasonsaas/ragsweep/internal/report"
	"github.com/haasonsaas/ragsweep/internal/sweep"
)

const (
	chartBar     = "bar"
	chartLine    = "line"
	chartHeatmap = "heatmap"
	chartSummary = "summary"
)

type sweepOptions struct {
	configPath     string
	kValues        []int
	maxConcurrency int
	output         string
	formats        []string
}

type evalOptions struct {
	configPath string
	chunker    string
	embedder   string
	k          int
	reranker   string
	metrics    []string
	output     string
}

type compareOptions struct {
	results string
	chart   string
	x       string
	metrics []string
	best    string
}

// =============================================================================
// Sweep and eval
// =============================================================================

func runSweep(cmd *cobra.Command, opts sweepOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(opts.kValues) > 0 {
		cfg.Sweep.KValues = opts.kValues
	}
	if cmd.Flags().Changed("max-concurrency") {
		cfg.Sweep.MaxConcurrency = opts.maxConcurrency
	}
	if len(opts.formats) > 0 {
		cfg.Output.Formats = opts.formats
	}
	if opts.output != "" {
		cfg.Output.SaveResults = true
		cfg.Output.SaveResultsPath = opts.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return withSession(cmd, cfg, func(ctx context.Context, s *session) (sweep.SweepResult, error) {
		return s.engine.Run(ctx, cfg.Sweep)
	})
}

func runEval(cmd *cobra.Command, opts evalOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.output != "" {
		cfg.Output.SaveResults = true
		cfg.Output.SaveResultsPath = opts.output
	}

	defaults := cfg.Sweep.WithDefaults()
	chunker, embedder := defaults.Chunkers[0], defaults.Embedders[0]
	if opts.chunker != "" {
		if chunker, err = parseComponent(opts.chunker); err != nil {
			return fmt.Errorf("--chunker: %w", err)
		}
	}
	if opts.embedder != "" {
		if embedder, err = parseComponent(opts.embedder); err != nil {
			return fmt.Errorf("--embedder: %w", err)
		}
	}
	var reranker *sweep.Component
	if opts.reranker != "" && !strings.EqualFold(opts.reranker, "none") {
		c, err := parseComponent(opts.reranker)
		if err != nil {
			return fmt.Errorf("--reranker: %w", err)
		}
		reranker = &c
	}
	k := defaults.KValues[0]
	if opts.k != 0 {
		k = opts.k
	}
	metricNames := defaults.Metrics
	if len(opts.metrics) > 0 {
		metricNames = opts.metrics
	}

	return withSession(cmd, cfg, func(ctx context.Context, s *session) (sweep.SweepResult, error) {
		return s.engine.Evaluate(ctx, chunker, embedder, k, reranker, metricNames)
	})
}

// session holds the collaborators of one run.
type session struct {
	cfg    *config.Config
	engine *sweep.Engine
}

func withSession(cmd *cobra.Command, cfg *config.Config, run func(context.Context, *session) (sweep.SweepResult, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	logCfg := cfg.Logging
	logCfg.Output = cmd.ErrOrStderr()
	logger := observability.NewLogger(logCfg)

	tracer, shutdown := observability.NewTracer(cfg.Tracing)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "tracer shutdown failed", "error", err)
		}
	}()

	sweepMetrics := observability.NewMetrics(prometheus.NewRegistry())
	if cfg.Metrics.Listen != "" {
		addr, errCh, err := sweepMetrics.Serve(ctx, cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		logger.Info(ctx, "serving metrics", "addr", addr.String())
		go func() {
			for err := range errCh {
				logger.Error(ctx, "metrics server failed", "error", err)
			}
		}()
	}

	docs, err := kb.Load(cfg.KnowledgeBase.Path, kb.Options{Extensions: cfg.KnowledgeBase.Extensions})
	if err != nil {
		return err
	}
	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	logger.Info(ctx, "inputs loaded", "documents", len(docs), "examples", len(ds.Examples), "dataset", ds.Name)

	builder, err := pipeline.NewBuilder(docs, pipeline.BuilderOptions{
		Store:              cfg.Store,
		EmbeddingBatchSize: cfg.Evaluation.EmbedBatchSize,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	single, err := eval.NewEvaluator(ds, tracer, logger, eval.Options{
		CaseSensitive:    cfg.Evaluation.CaseSensitive,
		Timeout:          cfg.Evaluation.Timeout,
		TraceURLTemplate: cfg.Evaluation.TraceURLTemplate,
	})
	if err != nil {
		return err
	}
	evaluator := pipeline.NewEvaluator(single)
	evaluator.OnReport = func(c sweep.Config, r *eval.Report) {
		logger.Debug(ctx, "config evaluated", "config", c.String(), "metrics", r.Metrics)
	}

	engine := sweep.NewEngine(builder, evaluator,
		sweep.WithLogger(logger),
		sweep.WithMetrics(sweepMetrics),
		sweep.WithTracer(tracer),
		sweep.WithRetry(cfg.Evaluation.Retry),
		sweep.WithMetricRegistry(metrics.Known),
	)
	s := &session{cfg: cfg, engine: engine}

	started := time.Now().UTC()
	results, err := run(ctx, s)
	if err != nil {
		return err
	}
	rep := &report.Report{
		RunID:       runID,
		Experiment:  cfg.Experiment.Name,
		Description: cfg.Experiment.Description,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Results:     results,
	}
	return s.finish(ctx, cmd.OutOrStdout(), rep)
}

// finish prints the summary, saves the report when configured and turns a
// fully failed or interrupted run into an error.
func (s *session) finish(ctx context.Context, out io.Writer, rep *report.Report) error {
	if err := report.NewRenderer(out).Summary(rep); err != nil {
		return err
	}

	if s.cfg.Output.SaveResults {
		// Save even when interrupted so partial results are kept.
		saveCtx := context.WithoutCancel(ctx)
		refs, err := saveReport(saveCtx, s.cfg, rep)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			fmt.Fprintf(out, "saved %s\n", ref)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	summary := rep.Summary()
	if summary.Configs > 0 && summary.Failed == summary.Configs {
		return fmt.Errorf("all %d configs failed", summary.Configs)
	}
	return nil
}

func saveReport(ctx context.Context, cfg *config.Config, rep *report.Report) ([]string, error) {
	store, err := artifacts.Open(ctx, cfg.Output.SaveResultsPath, artifacts.Options{
		S3: artifacts.S3StoreConfig{
			Region:          cfg.Output.S3.Region,
			Endpoint:        cfg.Output.S3.Endpoint,
			UsePathStyle:    cfg.Output.S3.UsePathStyle,
			AccessKeyID:     cfg.Output.S3.AccessKeyID,
			SecretAccessKey: cfg.Output.S3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open results store: %w", err)
	}
	defer store.Close()
	return artifacts.SaveReport(ctx, store, rep, cfg.Output.Formats)
}

// parseComponent reads "type" or "type:key=value,key=value". Values are
// decoded as YAML scalars, so numbers and booleans keep their types.
func parseComponent(s string) (sweep.Component, error) {
	typ, rest, _ := strings.Cut(strings.TrimSpace(s), ":")
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return sweep.Component{}, errors.New("component type is required")
	}
	c := sweep.Component{Type: typ}
	if strings.TrimSpace(rest) == "" {
		return c, nil
	}
	c.Params = make(map[string]any)
	for _, pair := range strings.Split(rest, ",") {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return sweep.Component{}, fmt.Errorf("parameter %q is not key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(strings.TrimSpace(raw)), &value); err != nil {
			return sweep.Component{}, fmt.Errorf("parameter %s: %w", key, err)
		}
		c.Params[key] = value
	}
	return c, nil
}

// =============================================================================
// Compare, validate and schema
// =============================================================================

func runCompare(cmd *cobra.Command, opts compareOptions) error {
	rep, err := report.Load(opts.results)
	if err != nil {
		return err
	}
	r := report.NewRenderer(cmd.OutOrStdout())

	switch opts.chart {
	case chartSummary:
		if err := r.Summary(rep); err != nil {
			return err
		}
	case chartBar, chartHeatmap, chartLine:
		c, err := report.NewComparison(rep.Results)
		if err != nil {
			return err
		}
		switch opts.chart {
		case chartBar:
			g, err := c.Bar(opts.metrics)
			if err != nil {
				return err
			}
			if err := r.Bar(g); err != nil {
				return err
			}
		case chartHeatmap:
			g, err := c.Heatmap(opts.metrics)
			if err != nil {
				return err
			}
			if err := r.Heatmap(g); err != nil {
				return err
			}
		default:
			charts, err := c.Line(opts.x, opts.metrics)
			if err != nil {
				return err
			}
			if err := r.Line(charts); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown chart %q (want bar, line, heatmap or summary)", opts.chart)
	}

	if opts.best != "" {
		best, ok := rep.Best(opts.best)
		if !ok {
			return fmt.Errorf("no successful config reports %q", opts.best)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "best %s: %s (%.4f)\n", opts.best, best.Config, best.Metrics[opts.best])
	}
	return nil
}

func runValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	plan, err := sweep.Expand(cfg.Sweep, metrics.Known)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d configs in %d preprocessing groups (max concurrency %d)\n",
		configPath, len(plan.Configs), len(plan.Groups), plan.Spec.MaxConcurrency)
	for _, g := range plan.Groups {
		fmt.Fprintf(out, "  %s: %d configs\n", g.Label(), len(g.Configs))
	}
	fmt.Fprintf(out, "metrics: %s\n", strings.Join(plan.Spec.Metrics, ", "))
	return nil
}

func runSchema(cmd *cobra.Command) error {
	data, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigPath honors RAGSWEEP_CONFIG.
func defaultConfigPath() string {
	if p := os.Getenv("RAGSWEEP_CONFIG"); p != "" {
		return p
	}
	return "sweep.yaml"
}

func buildSweepCmd() *cobra.Command {
	var opts sweepOptions
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every configuration of the sweep grid",
		Long: `Expand the sweep grid from the config file, build one index per
chunker and embedder pair, and evaluate every configuration.

Results are printed as a table and, when output.save_results is set or
--output is given, written as json, jsonl or csv.`,
		Example: `  ragsweep sweep --config sweep.yaml
  ragsweep sweep --config sweep.yaml --k 3,5,10 --max-concurrency 8 --output results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().IntSliceVar(&opts.kValues, "k", nil, "Override sweep.k_values (comma separated)")
	cmd.Flags().IntVar(&opts.maxConcurrency, "max-concurrency", 0, "Override sweep.max_concurrency")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save results to this directory or s3:// location")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Override output.formats (json, jsonl, csv)")
	return cmd
}

func buildEvalCmd() *cobra.Command {
	var opts evalOptions
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a single configuration",
		Long: `Evaluate one chunker, embedder, k and reranker. Components are given
as a type with optional parameters: "recursive:chunk_size=500,chunk_overlap=50".

The result has the same shape as a one-configuration sweep.`,
		Example: `  ragsweep eval --chunker recursive --embedder hashing --k 5
  ragsweep eval --chunker sentence:sentences_per_chunk=3 --embedder tfidf --k 10 --reranker lexical`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&opts.chunker, "chunker", "", "Chunker type[:key=value,...] (default: first sweep chunker)")
	cmd.Flags().StringVar(&opts.embedder, "embedder", "", "Embedder type[:key=value,...] (default: first sweep embedder)")
	cmd.Flags().IntVar(&opts.k, "k", 0, "Number of retrieved chunks (default: first sweep k)")
	cmd.Flags().StringVar(&opts.reranker, "reranker", "", "Reranker type[:key=value,...] (default: none)")
	cmd.Flags().StringSliceVar(&opts.metrics, "metric", nil, "Metrics to compute (default: sweep.metrics)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save results to this directory or s3:// location")
	return cmd
}

func buildCompareCmd() *cobra.Command {
	var opts compareOptions
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Chart saved sweep results",
		Example: `  ragsweep compare --results results/<run id>/results.json
  ragsweep compare --results results.jsonl --chart line --x k --metric token_level_recall`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.results, "results", "r", "", "Path to results.json or results.jsonl")
	cmd.Flags().StringVar(&opts.chart, "chart", chartHeatmap, "Chart type: bar, line, heatmap or summary")
	cmd.Flags().StringVar(&opts.x, "x", "k", "Line chart x axis: k, chunker, embedder or reranker")
	cmd.Flags().StringSliceVar(&opts.metrics, "metric", nil, "Metrics to include (default: all)")
	cmd.Flags().StringVar(&opts.best, "best", "", "Also print the best configuration for this metric")
	cobra.CheckErr(cmd.MarkFlagRequired("results"))
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and print the sweep plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func buildSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd)
		},
	}
}

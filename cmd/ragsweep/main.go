// Package main provides the ragsweep CLI, which evaluates a RAG pipeline
// across a grid of chunkers, embedders, retrieval depths and rerankers.
//
// # Basic Usage
//
// Run a sweep:
//
//	ragsweep sweep --config sweep.yaml
//
// Evaluate one configuration:
//
//	ragsweep eval --config sweep.yaml --chunker recursive --embedder hashing --k 5
//
// Compare saved results:
//
//	ragsweep compare --results results/<run id>/results.json --chart heatmap
//
// # Environment Variables
//
// A .env file in the working directory is loaded before any command runs.
//
//   - RAGSWEEP_CONFIG: Path to configuration file (default: sweep.yaml)
//   - OPENAI_API_KEY: OpenAI API key for openai embedders
//   - GEMINI_API_KEY: Google API key for gemini embedders
//   - AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY: Bedrock embedders and s3:// results
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/ragsweep/internal/config"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("loading .env failed", "error", err)
	}

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragsweep",
		Short: "Sweep RAG retrieval configurations and compare the results",
		Long: `ragsweep evaluates every combination of chunker, embedder, k and
reranker against a labelled dataset. Each chunker and embedder pair is
indexed once and shared by all of its configurations.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildSweepCmd(),
		buildEvalCmd(),
		buildCompareCmd(),
		buildValidateCmd(),
		buildSchemaCmd(),
	)
	return rootCmd
}

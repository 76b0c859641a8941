package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/runner"
)

var (
	analyzeIndexPath  string
	analyzeConfigPath string
	analyzeChunks     bool
	analyzeVerbose    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run relationship inference over an extracted element index",
	Long: `Analyze loads an element index produced by an upstream extractor,
infers scored relationships, and prints the run summary. With --chunks the
finished map is also partitioned and the chunk sequence printed.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeIndexPath, "index", "", "path to the element index JSON (required)")
	analyzeCmd.Flags().StringVar(&analyzeConfigPath, "config", "", "path to a YAML configuration file")
	analyzeCmd.Flags().BoolVar(&analyzeChunks, "chunks", false, "also emit the chunk sequence")
	analyzeCmd.Flags().BoolVar(&analyzeVerbose, "verbose", false, "enable debug logging")
	_ = analyzeCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if analyzeVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.DefaultConfig()
	if analyzeConfigPath != "" {
		loaded, err := config.Load(analyzeConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	index, err := loadIndex(analyzeIndexPath)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, logger)
	if err != nil {
		return err
	}
	result, err := r.Run(context.Background(), index, nil)
	if err != nil {
		return err
	}

	out := struct {
		Summary any `json:"summary"`
		Stats   any `json:"stats"`
		Chunks  any `json:"chunks,omitempty"`
	}{
		Summary: result.Summary,
		Stats:   result.Graph.Stats(),
	}
	if analyzeChunks {
		chunks, err := r.Chunks(result.Graph)
		if err != nil {
			return err
		}
		out.Chunks = chunks
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadIndex(path string) (*element.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read element index %s: %w", path, err)
	}
	var elements []element.Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("parse element index %s: %w", path, err)
	}
	return element.NewIndex(elements)
}

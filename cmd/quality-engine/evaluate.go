// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/modality"
	"github.com/pdiddy/quality-engine/internal/pipeline"
	"github.com/pdiddy/quality-engine/internal/report"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate-modality",
	Short: "Compare image embeddings against text+price on the weak labels",
	Long: `Evaluate-modality labels the corpus, then trains the same classifier on
text+price features and on precomputed image embeddings at each configured
sample size, with the same subsample and split for both. The image modality
is rejected when its macro-F1 at the largest size falls more than the margin
below text+price. The decision is written as YAML.`,
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("embeddings"); path != "" {
		cfg.Modality.EmbeddingsPath = path
	}
	if sizes, _ := cmd.Flags().GetString("sizes"); sizes != "" {
		parsed, err := parseSizes(sizes)
		if err != nil {
			return err
		}
		cfg.Modality.SampleSizes = parsed
	}
	if cfg.Modality.EmbeddingsPath == "" {
		return fmt.Errorf("no embeddings: set --embeddings or modality.embeddings_path")
	}

	ctx := cmd.Context()
	items, err := loadCorpus(ctx)
	if err != nil {
		return err
	}
	emb, err := modality.LoadEmbeddings(cfg.Modality.EmbeddingsPath)
	if err != nil {
		return err
	}
	logger.Info("loaded embeddings", "items", len(emb.Vectors), "dim", emb.Dim)

	lab, err := pipeline.Label(ctx, items, cfg, os.Stdout)
	if err != nil {
		return err
	}

	d, err := modality.Compare(ctx, lab.Rows, cfg,
		modality.TextPrice{Config: cfg.Features},
		modality.ImageEmbedding{Embeddings: emb},
		os.Stdout)
	if err != nil {
		return err
	}
	if err := printTables(cmd, func(m report.Mode) error { return report.Decision(os.Stdout, d, m) }); err != nil {
		return err
	}

	if err := modality.WriteDecision(cfg.Modality.DecisionPath, d); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", cfg.Modality.DecisionPath)
	return nil
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid sample size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func init() {
	evaluateCmd.Flags().String("embeddings", "", "image embeddings file, NDJSON or CSV (overrides modality.embeddings_path)")
	evaluateCmd.Flags().String("sizes", "", "comma-separated sample sizes (overrides modality.sample_sizes)")
	evaluateCmd.Flags().String("format", "table", "table output format: table or markdown")

	rootCmd.AddCommand(evaluateCmd)
}

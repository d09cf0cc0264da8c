// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/catalog"
	"github.com/pdiddy/quality-engine/internal/pipeline"
	"github.com/pdiddy/quality-engine/internal/report"
	"github.com/pdiddy/quality-engine/internal/store"
	"github.com/pdiddy/quality-engine/pkg/types"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Score the corpus and synthesize weak quality labels",
	Long: `Label loads the corpus, freezes its text and price statistics, scores
every item and assigns a Low/Medium/High weak label. The labeled dataset is
written to artifacts/train_with_quality_label.csv and stored as a snapshot in
the SQLite store.`,
	RunE: runLabel,
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	items, err := loadCorpus(ctx)
	if err != nil {
		return err
	}

	lab, err := pipeline.Label(ctx, items, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if err := printTables(cmd, func(m report.Mode) error {
		return report.Distribution(os.Stdout, lab.Distribution, m)
	}); err != nil {
		return err
	}

	return persist(cmd, &pipeline.Result{Labeled: lab})
}

// loadCorpus reads cfg.Input.
func loadCorpus(ctx context.Context) ([]types.CatalogItem, error) {
	if cfg.Input == "" {
		return nil, fmt.Errorf("no input corpus: set --input or input in the config file")
	}
	logger.Info("loading corpus", "input", cfg.Input)
	items, err := catalog.Load(ctx, cfg.Input, fetchOptions())
	if err != nil {
		return nil, err
	}
	logger.Info("loaded corpus", "items", len(items))
	return items, nil
}

// persist stores the snapshot unless --no-store is set and writes artifacts.
func persist(cmd *cobra.Command, res *pipeline.Result) error {
	noStore, _ := cmd.Flags().GetBool("no-store")

	var st *store.Store
	if !noStore {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		st = s
	}
	_, err := pipeline.Persist(cmd.Context(), res, st, cfg.ArtifactsDir, os.Stdout)
	return err
}

func printTables(cmd *cobra.Command, fns ...func(report.Mode) error) error {
	format, _ := cmd.Flags().GetString("format")
	m, err := report.ParseMode(format)
	if err != nil {
		return err
	}
	for _, fn := range fns {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	labelCmd.Flags().Bool("no-store", false, "skip writing the snapshot to the SQLite store")
	labelCmd.Flags().String("format", "table", "table output format: table or markdown")

	rootCmd.AddCommand(labelCmd)
}

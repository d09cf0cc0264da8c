// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/pipeline"
	"github.com/pdiddy/quality-engine/internal/report"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Label the corpus and train the text+price classifier",
	Long: `Train runs the full batch pipeline: weak labels, a stratified
train/validation split, TF-IDF and price features fit on the training
partition, and a class-balanced logistic regression. The validation report
is printed and the model bundle is written to artifacts/model.json.`,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	items, err := loadCorpus(ctx)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, items, cfg, os.Stdout)
	if err != nil {
		return err
	}
	err = printTables(cmd,
		func(m report.Mode) error { return report.Distribution(os.Stdout, res.Distribution, m) },
		func(m report.Mode) error { return report.Classification(os.Stdout, res.Bundle.Report, m) },
		func(m report.Mode) error { return report.Confusion(os.Stdout, res.Bundle.Report, m) },
	)
	if err != nil {
		return err
	}

	return persist(cmd, res)
}

func init() {
	trainCmd.Flags().Bool("no-store", false, "skip writing the snapshot to the SQLite store")
	trainCmd.Flags().String("format", "table", "table output format: table or markdown")

	rootCmd.AddCommand(trainCmd)
}

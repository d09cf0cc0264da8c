// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/catalog"
	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/report"
)

var predictCmd = &cobra.Command{
	Use:   "predict [description]",
	Short: "Predict the quality label of one item with the trained model",
	Long: `Predict loads the model bundle and scores a single description and
optional price. Besides the model's label and class probabilities it reports
the item's signals and the weak label they produce. A missing or unparseable
price is treated as a missing price signal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	desc, _ := cmd.Flags().GetString("description")
	if desc == "" && len(args) > 0 {
		desc = args[0]
	}
	priceStr, _ := cmd.Flags().GetString("price")
	modelPath, _ := cmd.Flags().GetString("model")
	if modelPath == "" {
		modelPath = filepath.Join(cfg.ArtifactsDir, model.FileName)
	}

	b, err := model.Load(modelPath)
	if err != nil {
		return err
	}
	price := catalog.ParsePrice(priceStr)
	if priceStr != "" && price == nil {
		fmt.Fprintf(os.Stderr, "price %q is not a valid price; scoring as missing\n", priceStr)
	}
	p, err := model.NewPredictor(model.NewHolder(b)).Predict(desc, price)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	return printTables(cmd, func(m report.Mode) error { return report.Prediction(os.Stdout, p, m) })
}

func init() {
	predictCmd.Flags().String("description", "", "catalog description (or pass it as the argument)")
	predictCmd.Flags().String("price", "", "item price, e.g. 12.99 or $1,299.00")
	predictCmd.Flags().String("model", "", "model bundle path (default: <artifacts_dir>/model.json)")
	predictCmd.Flags().Bool("json", false, "output the prediction as JSON")
	predictCmd.Flags().String("format", "table", "table output format: table or markdown")

	rootCmd.AddCommand(predictCmd)
}

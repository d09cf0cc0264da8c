// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/report"
	"github.com/pdiddy/quality-engine/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-label counts and average prices of the latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		info, err := st.LatestSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		labels, err := st.Stats(cmd.Context(), info.ID)
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s (%d items, labeled %s)\n", info.ID, info.Size, info.CreatedAt.Format("2006-01-02 15:04"))
		return printTables(cmd, func(m report.Mode) error { return report.Stats(os.Stdout, labels, m) })
	},
}

func init() {
	statsCmd.Flags().String("format", "table", "table output format: table or markdown")

	rootCmd.AddCommand(statsCmd)
}

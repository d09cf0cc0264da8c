// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/pipeline"
	"github.com/pdiddy/quality-engine/internal/server"
	"github.com/pdiddy/quality-engine/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the labeled catalog and the trained model over HTTP",
	Long: `Serve exposes the latest labeled snapshot and the current model bundle
as a JSON API: product listing and detail, per-label statistics, single-item
prediction, and POST /api/run to retrain from the configured input. A
retrain installs its new model atomically; requests in flight keep the
model they started with.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	modelPath := filepath.Join(cfg.ArtifactsDir, model.FileName)
	b, err := model.Load(modelPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("no model bundle; predictions unavailable until a run completes", "path", modelPath)
	case err != nil:
		return err
	default:
		logger.Info("loaded model", "version", b.Version, "path", modelPath)
	}

	retrain := func(ctx context.Context) (*model.Bundle, error) {
		items, err := loadCorpus(ctx)
		if err != nil {
			return nil, err
		}
		res, err := pipeline.Run(ctx, items, cfg, os.Stderr)
		if err != nil {
			return nil, err
		}
		if _, err := pipeline.Persist(ctx, res, st, cfg.ArtifactsDir, os.Stderr); err != nil {
			return nil, err
		}
		return res.Bundle, nil
	}

	srv := server.New(cfg.Server, st, model.NewHolder(b), retrain, logger)
	return srv.ListenAndServe(cmd.Context())
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

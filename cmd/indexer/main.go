package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/liao/plantcare/internal/app"
	"github.com/liao/plantcare/internal/config"
	"github.com/liao/plantcare/internal/corpus"
	"github.com/liao/plantcare/internal/index"
	"github.com/liao/plantcare/internal/logging"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, dir string
	cmd := &cobra.Command{
		Use:          "indexer",
		Short:        "Rebuild the plant-care vector index from the corpus directory",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if dir != "" {
				cfg.Corpus.Dir = dir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return reindex(ctx, cfg, cmd)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file path (default ./config.yaml if present)")
	cmd.Flags().StringVar(&dir, "dir", "", "corpus directory (overrides corpus.dir)")
	return cmd
}

func reindex(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	client, err := app.NewGenAIClient(ctx, cfg)
	if err != nil {
		return err
	}
	emb, err := app.NewEmbedder(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	idx, backend, err := app.OpenIndex(ctx, cfg, emb.Dimensions())
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer idx.Close()

	if backend == index.ProviderMemory || backend == index.BackendMemoryFallback {
		slog.Warn("reindexing an in-memory index, nothing will be persisted", "backend", backend)
	}

	docs, err := corpus.LoadDir(ctx, cfg.Corpus.Dir)
	if err != nil {
		return err
	}
	stats, err := app.NewIndexer(cfg, emb, idx).Reindex(ctx, docs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Reindex complete ===\n")
	fmt.Fprintf(out, "Backend:    %s\n", backend)
	fmt.Fprintf(out, "Embedder:   %s (%d dims)\n", emb.Name(), emb.Dimensions())
	fmt.Fprintf(out, "Documents:  %d (%d skipped)\n", stats.Documents, stats.Skipped)
	fmt.Fprintf(out, "Chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(out, "Duration:   %s\n", stats.Duration)
	return nil
}

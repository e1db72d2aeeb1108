package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/liao/plantcare/internal/answer"
	"github.com/liao/plantcare/internal/app"
	"github.com/liao/plantcare/internal/bot"
	"github.com/liao/plantcare/internal/chat"
	"github.com/liao/plantcare/internal/config"
	"github.com/liao/plantcare/internal/logging"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig 先读 .env 再读配置文件，并初始化日志
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "plantcare",
		Short:        "Asistente de cuidado de plantas",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ./config.yaml if present)")

	root.AddCommand(
		chatCmd(&configPath),
		askCmd(&configPath),
	)
	return root
}

func chatCmd(configPath *string) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Conversación interactiva en la consola",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			a, err := app.Build(ctx, cfg, reg)
			if err != nil {
				return err
			}
			defer a.Close()

			if metricsAddr != "" {
				go func() {
					if err := app.ServeMetrics(ctx, metricsAddr, reg, nil); err != nil {
						slog.Error("metrics server stopped", "error", err)
					}
				}()
			}

			chatMgr, err := chat.NewManager(cfg.Chat.MaxTurns, cfg.Chat.SessionsDir)
			if err != nil {
				return err
			}

			slog.Info("console chat starting", "backend", a.Backend)
			return bot.New(a.Pipeline, chatMgr, cfg.Chat.HistoryWindow, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "exponer métricas Prometheus en esta dirección, p. ej. :9090")
	return cmd
}

func askCmd(configPath *string) *cobra.Command {
	var (
		species  string
		problems []string
	)
	cmd := &cobra.Command{
		Use:   "ask <pregunta>",
		Short: "Responde una pregunta y escribe el resultado en JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Pipeline.Answer(ctx, answer.Request{
				Message:  args[0],
				Species:  species,
				Problems: problems,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&species, "species", "", "especie identificada de la planta")
	cmd.Flags().StringSliceVar(&problems, "problem", nil, "problema detectado (se puede repetir)")
	return cmd
}

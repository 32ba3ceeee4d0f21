package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/shotsearch/internal/config"
)

var (
	sourceFlag   string
	logLevelFlag string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shotsearch",
	Short: "Semantic search over video shots",
	Long: `Search a catalog of videos and shots by text similarity against keyframe
embeddings, filtered by detected objects, dominant color and brightness.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(map[string]string{
			"SHOTSEARCH_SOURCE": sourceFlag,
			"LOG_LEVEL":         logLevelFlag,
		})
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger = slog.New(
			tint.NewHandler(os.Stderr, &tint.Options{
				Level:      cfg.LogLevel,
				TimeFormat: "15:04:05",
			}),
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "storage backend: postgres, sqlite or json (overrides SHOTSEARCH_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, searchCmd, filtersCmd, importCmd, schemaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

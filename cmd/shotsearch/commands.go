package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdougie/shotsearch/internal/embeddings"
	"github.com/bdougie/shotsearch/internal/ingest"
	"github.com/bdougie/shotsearch/internal/search"
	"github.com/bdougie/shotsearch/internal/server"
	"github.com/bdougie/shotsearch/internal/storage"
	"github.com/bdougie/shotsearch/internal/vectorindex"
)

// loadSnapshot reads the configured backend and builds a snapshot from it.
func loadSnapshot(ctx context.Context) (*search.Snapshot, error) {
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ds, err := storage.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	return search.NewSnapshot(ds.Videos, ds.Shots, ds.Embeddings, logger)
}

// newEncoder builds the configured query encoder. It returns nil when
// encoding is disabled, which leaves every query unranked.
func newEncoder() (*embeddings.Service, server.HealthChecker) {
	switch cfg.EmbedProvider {
	case "ollama":
		client := embeddings.NewOllamaClient(cfg.EmbedHost, cfg.EmbedModel)
		return embeddings.NewService(client, cfg.EmbedWorkers, logger), client
	case "openai":
		client := embeddings.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, vectorindex.Dimension)
		return embeddings.NewService(client, cfg.EmbedWorkers, logger), nil
	default:
		return nil, nil
	}
}

func newEngine(snap *search.Snapshot) (*search.Engine, server.HealthChecker, func()) {
	opts := []search.Option{search.WithTopK(cfg.TopK)}
	svc, health := newEncoder()
	closeFn := func() {}
	if svc != nil {
		opts = append(opts, search.WithEncoder(svc))
		closeFn = svc.Close
	}
	return search.NewEngine(snap, logger, opts...), health, closeFn
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snap, err := loadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		engine, health, closeEncoder := newEngine(snap)
		defer closeEncoder()

		srv := server.New(cfg.Port, engine, loadSnapshot, health, logger)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [text...]",
	Short: "Run a single query and print the result",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		objects, _ := cmd.Flags().GetStringSlice("object")
		colors, _ := cmd.Flags().GetStringSlice("color")
		brightness, _ := cmd.Flags().GetStringSlice("brightness")
		asJSON, _ := cmd.Flags().GetBool("json")

		snap, err := loadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		engine, _, closeEncoder := newEngine(snap)
		defer closeEncoder()

		q := search.Query{
			Text:       queryText(args),
			Objects:    objects,
			Colors:     colors,
			Brightness: brightness,
		}
		res := engine.Search(ctx, q)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(res)
		return nil
	},
}

// queryText joins the positional words, so quoting the query is optional.
func queryText(args []string) string {
	return strings.Join(args, " ")
}

func printResult(res *search.Result) {
	if res.Empty() {
		fmt.Println("No results found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tVIDEO\tKEYFRAME\tSHOTS\tMATCHING\n")
	for i, v := range res.Videos {
		rank := "-"
		if v.Rank > 0 {
			rank = fmt.Sprint(v.Rank)
		}
		keyframe := ""
		if v.Keyframe != nil {
			keyframe = fmt.Sprintf("%s @ %.1fs", v.Keyframe.Name, v.Keyframe.KeyframeTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", rank, v.Video.ID, keyframe, len(v.Shots), len(v.Filtered))
		if i >= 49 {
			fmt.Fprintf(w, "...\t%d more\t\t\t\n", len(res.Videos)-i-1)
			break
		}
	}
	w.Flush()
	fmt.Printf("\n%s mode, %d videos, %d matches\n", res.Mode, len(res.Videos), res.Diagnostics.Matches)
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the filter values present in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		opts := snap.Catalog.Options()

		colors := make([]string, len(opts.Colors))
		for i, c := range opts.Colors {
			colors[i] = string(c)
		}
		levels := make([]string, len(opts.Brightness))
		for i, b := range opts.Brightness {
			levels[i] = string(b)
		}
		fmt.Printf("objects:    %s\n", strings.Join(opts.Objects, ", "))
		fmt.Printf("colors:     %s\n", strings.Join(colors, ", "))
		fmt.Printf("brightness: %s\n", strings.Join(levels, ", "))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the catalog and embeddings from one backend into another",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		to, _ := cmd.Flags().GetString("to")
		workers, _ := cmd.Flags().GetInt("workers")

		if to == cfg.Source {
			return fmt.Errorf("source and destination are both %s", to)
		}

		src, err := storage.Open(ctx, cfg.StorageOptions())
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer src.Close()

		sinkOpts := cfg.StorageOptions()
		sinkOpts.Backend = to
		sink, err := storage.Open(ctx, sinkOpts)
		if err != nil {
			return fmt.Errorf("failed to open destination: %w", err)
		}
		defer sink.Close()

		ds, err := storage.Load(ctx, src)
		if err != nil {
			return err
		}

		stats, err := ingest.NewImporter(sink, workers, logger).Import(ctx, ds)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d videos, %d shots, %d embeddings (%d skipped, %d unmatched)\n",
			stats.Videos, stats.Shots, stats.Embeddings, stats.Violations, stats.Dropped)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the tables of the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.Open(ctx, cfg.StorageOptions())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.InitSchema(ctx); err != nil {
			return err
		}
		fmt.Printf("Schema ready on %s\n", cfg.Source)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringSlice("object", nil, "required detected object (repeatable)")
	searchCmd.Flags().StringSlice("color", nil, "required dominant color (repeatable)")
	searchCmd.Flags().StringSlice("brightness", nil, "required brightness level (repeatable)")
	searchCmd.Flags().Bool("json", false, "print the result as JSON")

	importCmd.Flags().String("to", "postgres", "destination backend: postgres, sqlite or json")
	importCmd.Flags().Int("workers", 4, "concurrent writers")
}

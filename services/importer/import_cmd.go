package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/pipeline"
	"github.com/JamesSample/icpw2/internal/source"
	"github.com/JamesSample/icpw2/internal/transform"
)

type importOptions struct {
	source      string
	apply       bool
	duplicates  string
	databaseURL string
	schema      string
	asJSON      bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <template.xlsx | http(s)://... | s3://bucket/key>",
		Short: "Import one ICPW template",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.source = args[0]
			if cmd.Flags().Changed("duplicates") {
				p, err := transform.ParsePolicy(opts.duplicates)
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("invalid --duplicates: %w", err))
				}
				cfg.Duplicates = p
			}
			if opts.databaseURL != "" {
				cfg.DatabaseURL = opts.databaseURL
			}
			if opts.schema != "" {
				cfg.Schema = opts.schema
			}
			if cmd.Flags().Changed("apply") {
				cfg.DryRun = !opts.apply
			}
			if err := cfg.Validate(); err != nil {
				return withCode(exitUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Commit the import (default is dry-run)")
	cmd.Flags().StringVar(&opts.duplicates, "duplicates", string(transform.PolicyMean), "Duplicate handling: mean or drop")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "Database URL (overrides DATABASE_URL)")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "Database schema (overrides DB_SCHEMA)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the import result as JSON")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts importOptions) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	fetcher := source.Fetcher{HTTP: &http.Client{Timeout: cfg.HTTPTimeout}}
	if strings.HasPrefix(strings.ToLower(opts.source), "s3://") {
		client, err := source.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return err
		}
		fetcher.S3 = client
	}

	rc, name, err := fetcher.Open(ctx, opts.source)
	if err != nil {
		return err
	}
	defer rc.Close()

	store, err := db.Open(ctx, cfg.DatabaseURL, cfg.Schema)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("starting import",
		zap.String("template", name),
		zap.String("duplicates", string(cfg.Duplicates)),
		zap.Bool("dry_run", cfg.DryRun))

	res, err := pipeline.RunReader(ctx, store, rc, pipeline.Options{
		Policy: cfg.Duplicates,
		DryRun: cfg.DryRun,
		Logger: logger.With(zap.String("template", name)),
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(out, name, res)
	return nil
}

func printSummary(out io.Writer, name string, res pipeline.Result) {
	mode := "committed"
	if res.DryRun {
		mode = "dry-run (rolled back, use --apply to commit)"
	}
	fmt.Fprintf(out, "%s: %s\n", name, mode)
	fmt.Fprintf(out, "  run id:               %s\n", res.RunID)
	fmt.Fprintf(out, "  template rows:        %d\n", res.TemplateRows)
	fmt.Fprintf(out, "  observations:         %d\n", res.Observations)
	fmt.Fprintf(out, "  duplicates collapsed: %d (%s)\n", res.DuplicatesCollapsed, res.Policy)
	if res.MalformedValues > 0 {
		fmt.Fprintf(out, "  malformed values:     %d\n", res.MalformedValues)
	}
	fmt.Fprintf(out, "  water samples:        %d (%d new)\n", len(res.WaterSamples), res.SamplesInserted)
	fmt.Fprintf(out, "  chemistry values:     %d (%d written)\n", len(res.Values), res.ValuesInserted)
}

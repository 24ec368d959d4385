package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/config"
	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/engine"
	errwrap "github.com/routelens/routelens/internal/errors"
	"github.com/routelens/routelens/internal/metrics"
	"github.com/routelens/routelens/internal/observability"
	"github.com/routelens/routelens/internal/output"
)

// cliCallerKey is the rate limit key for local invocations.
const cliCallerKey = "cli:local"

var (
	lookupOutput string
	lookupRDAP   bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>...",
	Short: "Look up an IP, prefix, ASN or holder name",
	Long: `Resolve one or more queries against the routing data providers and print
the result with its source evidence.

Examples:
  routelens lookup 8.8.8.8
  routelens lookup 8.8.8.0/24 AS15169 --output json
  routelens lookup google --output markdown`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(lookupOutput)
		if err != nil {
			return err
		}

		cfg := GetConfig().Lookup
		if cmd.Flags().Changed("rdap") {
			cfg.RDAP.Enabled = lookupRDAP
		}

		results, err := runLookups(cmd.Context(), cfg, args)
		if err != nil {
			return err
		}

		rendered, err := output.FormatLookupList(format, results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)

		// The first failure decides the exit error; all results are already printed.
		for _, result := range results {
			if env := errwrap.FromLookup(cmd.Context(), result); env != nil {
				return env
			}
		}
		return nil
	},
}

// runLookups resolves each query in order through one engine.
func runLookups(ctx context.Context, cfg config.LookupConfig, queries []string) ([]*core.LookupResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.Logger()

	lookups, err := newLookupEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lookups.Close() }()

	results := make([]*core.LookupResult, 0, len(queries))
	for i, raw := range queries {
		reqCtx := engine.WithRequestID(ctx, fmt.Sprintf("cli-%d", i+1))
		result := lookups.Orchestrator.Lookup(reqCtx, raw, cliCallerKey)
		if logger != nil {
			logger.Debug("Lookup complete",
				zap.String("query", strings.TrimSpace(raw)),
				zap.String("kind", string(result.Kind)),
				zap.Bool("partial", result.Partial),
				zap.Int("upstream_errors", result.Meta.UpstreamErrors))
		}
		metrics.RecordOperation("lookup", !result.Failed())
		if result.Failed() {
			metrics.RecordOperationError("lookup", string(result.ErrorKind))
		}
		results = append(results, result)
	}
	return results, nil
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVarP(&lookupOutput, "output", "o", "table", "output format: table, json, markdown, yaml")
	lookupCmd.Flags().BoolVar(&lookupRDAP, "rdap", false, "include RDAP registration data (overrides lookup.rdap.enabled)")
}

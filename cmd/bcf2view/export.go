package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
	"github.com/broadinstitute/picard-sub013/internal/duckdb"
)

// exportBatchSize is the number of records appended per DuckDB batch.
const exportBatchSize = 10000

func newExportCmd() *cobra.Command {
	var (
		sitesOnly bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "export [flags] <file.bcf>",
		Short: "Load records and genotypes into DuckDB",
		Long: `Export decoded records into the records and genotypes tables of a DuckDB
database. A file that was already exported unchanged (same path, size and
modification time) is skipped unless --force is given.`,
		Example: `  bcf2view export --db calls.duckdb calls.bcf
  bcf2view export --db calls.duckdb --sites-only calls.bcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			dbPath := cfg.Export.DB
			if dbPath == "" {
				return usageError{fmt.Errorf("--db is required")}
			}
			store, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return runExport(cmd.OutOrStdout(), cfg, logger, store, args[0], sitesOnly, force)
		},
	}

	cmd.Flags().String("db", "", "DuckDB database path")
	cmd.Flags().BoolVar(&sitesOnly, "sites-only", false, "Export records without genotypes")
	cmd.Flags().BoolVar(&force, "force", false, "Export even if this file was already loaded")
	bindFlag("export.db", cmd.Flags().Lookup("db"))

	return cmd
}

func runExport(stdout io.Writer, cfg *Config, logger *zap.Logger, store *duckdb.Store, path string, sitesOnly, force bool) error {
	fp, err := duckdb.StatFile(path)
	if err != nil {
		return err
	}
	if !force {
		prev, ok, err := store.FindLoad(fp)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(stdout, "%s already exported as load %s (%d records)\n", path, prev.ID, prev.Records)
			return nil
		}
	}

	var extra []bcf2.Option
	if sitesOnly {
		extra = append(extra, bcf2.WithSitesOnly())
	}
	rd, err := bcf2.Open(path, readerOptions(cfg, logger, extra...)...)
	if err != nil {
		return err
	}
	defer rd.Close()

	loadID, err := store.BeginLoad(fp)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("load_id", loadID))

	var n int64
	batch := make([]*duckdb.RecordRow, 0, exportBatchSize)
	flush := func() error {
		if err := store.WriteRecords(loadID, batch); err != nil {
			return err
		}
		logger.Debug("wrote batch", zap.Int("records", len(batch)), zap.Int64("total", n))
		batch = batch[:0]
		return nil
	}

	for {
		vc, err := rd.Next()
		if err != nil {
			return abortLoad(store, loadID, err)
		}
		if vc == nil {
			break
		}
		n++
		row, err := duckdb.RecordRowFrom(n, vc, sitesOnly)
		if err != nil {
			return abortLoad(store, loadID, err)
		}
		batch = append(batch, row)
		if len(batch) == exportBatchSize {
			if err := flush(); err != nil {
				return abortLoad(store, loadID, err)
			}
		}
	}
	if err := flush(); err != nil {
		return abortLoad(store, loadID, err)
	}
	if err := store.FinishLoad(loadID, n); err != nil {
		return err
	}

	logger.Info("export complete", zap.Int64("records", n))
	fmt.Fprintf(stdout, "%s exported as load %s (%d records)\n", path, loadID, n)
	return nil
}

// abortLoad removes a partially written load and returns the original error.
func abortLoad(store *duckdb.Store, loadID string, err error) error {
	if derr := store.DeleteLoad(loadID); derr != nil {
		return fmt.Errorf("%w (cleanup of load %s failed: %v)", err, loadID, derr)
	}
	return err
}

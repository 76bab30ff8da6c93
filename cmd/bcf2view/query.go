package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/broadinstitute/picard-sub013/internal/duckdb"
	"github.com/broadinstitute/picard-sub013/internal/output"
)

func newQueryCmd() *cobra.Command {
	var genotypes bool

	cmd := &cobra.Command{
		Use:   "query [flags] <chrom:start-end>",
		Short: "Look up exported records overlapping a region",
		Example: `  bcf2view query --db calls.duckdb chr1:10000-20000
  bcf2view query --db calls.duckdb --genotypes chr2:5000-5000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chrom, start, end, err := parseRegion(args[0])
			if err != nil {
				return usageError{err}
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := cfg.Export.DB
			if dbPath == "" {
				return usageError{fmt.Errorf("--db is required")}
			}
			store, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.LookupRegion(chrom, start, end)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range rows {
				qual := "."
				if r.Qual.Valid {
					qual = strconv.FormatFloat(r.Qual.Float64, 'f', -1, 32)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Label(), r.End, r.ID, qual, r.Filter, r.Info, r.LoadID, strconv.FormatInt(r.RecNo, 10),
					strconv.FormatInt(r.NSamples, 10))
				if !genotypes {
					continue
				}
				gs, err := store.GenotypesForRecord(r.LoadID, r.RecNo)
				if err != nil {
					return err
				}
				for _, g := range gs {
					fmt.Fprintf(w, "\t%s\t%s\tGQ=%s\tDP=%s\n", g.Sample, g.GT,
						output.FormatValue(missingAsNil(g.GQ)), output.FormatValue(missingAsNil(g.DP)))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "DuckDB database path")
	cmd.Flags().BoolVar(&genotypes, "genotypes", false, "Also print per-sample calls")
	// shares export.db with the export command
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flags().Lookup("db"); f.Changed {
			viper.Set("export.db", f.Value.String())
		}
		return nil
	}

	return cmd
}

// parseRegion parses chrom:start-end (1-based, inclusive) or chrom:pos.
func parseRegion(s string) (string, int64, int64, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", 0, 0, fmt.Errorf("invalid region %q: expected chrom:start-end", s)
	}
	chrom, span := s[:i], s[i+1:]
	startStr, endStr, found := strings.Cut(span, "-")
	if !found {
		endStr = startStr
	}
	start, err := strconv.ParseInt(strings.ReplaceAll(startStr, ",", ""), 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid region start %q: %w", startStr, err)
	}
	end, err := strconv.ParseInt(strings.ReplaceAll(endStr, ",", ""), 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid region end %q: %w", endStr, err)
	}
	if end < start {
		return "", 0, 0, fmt.Errorf("invalid region %q: end before start", s)
	}
	return chrom, start, end, nil
}

func missingAsNil(v int) any {
	if v < 0 {
		return nil
	}
	return v
}

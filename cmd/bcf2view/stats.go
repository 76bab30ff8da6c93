package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
	"github.com/broadinstitute/picard-sub013/internal/output"
	"github.com/broadinstitute/picard-sub013/internal/stats"
)

func newStatsCmd() *cobra.Command {
	var (
		jobs       int
		totalsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "stats [flags] <file.bcf>...",
		Short: "Summarize genotypes per record",
		Long: `Count zygosity classes, allele counts and mean depth for every record.
Files are processed concurrently; within a file, records are summarized by a
pool of workers and printed in file order.`,
		Example: `  bcf2view stats calls.bcf
  bcf2view stats -j 4 --workers 8 a.bcf b.bcf c.bcf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return runStats(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args, jobs, totalsOnly)
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 2, "Files decoded concurrently")
	cmd.Flags().Int("workers", 0, "Summary workers per file (0: number of CPUs)")
	cmd.Flags().BoolVar(&totalsOnly, "totals-only", false, "Print only the per-file totals")
	bindFlag("decode.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runStats(ctx context.Context, stdout io.Writer, cfg *Config, logger *zap.Logger, paths []string, jobs int, totalsOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	bufs := make([]bytes.Buffer, len(paths))

	// a failing file does not cancel the others; every readable file is reported
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			return summarizeFile(ctx, &bufs[i], cfg, logger.With(zap.String("file", path)), path, totalsOnly)
		})
	}
	err := g.Wait()

	for i := range bufs {
		if _, werr := bufs[i].WriteTo(stdout); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// summarizeFile decodes one file, fanning records out to summary workers.
// Records are read with a per-record genotype arena since workers decode
// them concurrently.
func summarizeFile(ctx context.Context, w io.Writer, cfg *Config, logger *zap.Logger, path string, totalsOnly bool) error {
	rd, err := bcf2.Open(path, readerOptions(cfg, logger, bcf2.WithArenaPerRecord())...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer rd.Close()

	summarizer := stats.NewSummarizer()
	summarizer.SetLogger(logger)

	// header goes out before any worker starts
	sw := output.NewStatsWriter(w)
	if !totalsOnly {
		if err := sw.WriteHeader(); err != nil {
			return err
		}
	}

	items := make(chan stats.WorkItem, 64)
	results := summarizer.ParallelSummarize(items, cfg.Decode.Workers)

	var readErr error
	go func() {
		defer close(items)
		for seq := 0; ; seq++ {
			vc, err := rd.Next()
			if err != nil {
				readErr = err
				return
			}
			if vc == nil {
				return
			}
			select {
			case items <- stats.WorkItem{Seq: seq, Record: vc}:
			case <-ctx.Done():
				readErr = ctx.Err()
				return
			}
		}
	}()

	var totals stats.Totals
	collectErr := stats.OrderedCollect(results, func(r stats.WorkResult) error {
		if r.Err != nil {
			return r.Err
		}
		totals.Add(r.Summary)
		if totalsOnly {
			return nil
		}
		return sw.Write(r.Summary)
	})
	// results is closed only after the producer closed items, so readErr is
	// safe to read here.
	if collectErr == nil {
		collectErr = readErr
	}
	if collectErr != nil {
		sw.Flush() //nolint:errcheck
		return fmt.Errorf("%s: %w", path, collectErr)
	}

	if err := sw.WriteTotals(path, &totals); err != nil {
		return err
	}
	logger.Info("stats complete", zap.Int("records", totals.Records))
	return sw.Flush()
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
	"github.com/broadinstitute/picard-sub013/internal/output"
	"github.com/broadinstitute/picard-sub013/internal/variant"
	"github.com/broadinstitute/picard-sub013/internal/vcf"
)

// recordWriter is satisfied by the tab and VCF writers.
type recordWriter interface {
	WriteHeader() error
	Write(vc *variant.Context) error
	Flush() error
}

func newViewCmd() *cobra.Command {
	var (
		outputFile string
		sitesOnly  bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "view [flags] <file.bcf>",
		Short: "Decode and print records",
		Long: `Decode records of a BCF2 file and print them as tab-delimited rows or VCF text.
Sample columns are only decoded when requested with --genotypes (tab) or when
writing VCF without --sites-only.`,
		Example: `  bcf2view view calls.bcf
  bcf2view view -f vcf -o calls.vcf calls.bcf.gz
  bcf2view view --sites-only -f vcf calls.bcf`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError{fmt.Errorf("input file argument required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return runView(cmd, cfg, logger, args[0], outputFile, sitesOnly, limit)
		},
	}

	cmd.Flags().StringP("format", "f", "tab", "Output format: tab, vcf")
	cmd.Flags().Bool("genotypes", false, "Add a GT column per sample (tab format)")
	cmd.Flags().Bool("eager", false, "Decode genotypes while reading instead of on first access")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&sitesOnly, "sites-only", false, "Skip the genotype block entirely")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many records (0: all)")
	bindFlag("view.format", cmd.Flags().Lookup("format"))
	bindFlag("view.genotypes", cmd.Flags().Lookup("genotypes"))
	bindFlag("decode.eager", cmd.Flags().Lookup("eager"))

	return cmd
}

func runView(cmd *cobra.Command, cfg *Config, logger *zap.Logger, inputPath, outputFile string, sitesOnly bool, limit int) error {
	var extra []bcf2.Option
	if sitesOnly {
		extra = append(extra, bcf2.WithSitesOnly())
	}
	rd, err := bcf2.Open(inputPath, readerOptions(cfg, logger, extra...)...)
	if err != nil {
		return err
	}
	defer rd.Close()

	out, closeOut, err := createOutput(outputFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck

	var writer recordWriter
	switch format := cfg.View.Format; format {
	case "tab":
		var samples []string
		if cfg.View.Genotypes && !sitesOnly {
			samples = rd.Header().Samples()
		}
		writer = output.NewTabWriter(out, samples)
	case "vcf":
		writer = output.NewVCFWriter(out, rd.Header(), sitesOnly)
	default:
		return usageError{fmt.Errorf("unknown output format %q", format)}
	}

	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	n, err := copyRecords(writer, rd, limit)
	if err != nil {
		writer.Flush() //nolint:errcheck
		return err
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	logger.Info("view complete", zap.String("file", inputPath), zap.Int("records", n))
	return closeOut()
}

// copyRecords writes up to limit records (all if limit <= 0) from src.
func copyRecords(w recordWriter, src vcf.Source, limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		vc, err := src.Next()
		if err != nil {
			return n, err
		}
		if vc == nil {
			break
		}
		if err := w.Write(vc); err != nil {
			return n, fmt.Errorf("writing record %d: %w", src.RecordNumber(), err)
		}
		n++
	}
	return n, nil
}

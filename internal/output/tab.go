// Package output provides record and summary output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// TabWriter writes one tab-delimited row per record.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
	samples []string
}

// NewTabWriter creates a new tab-delimited writer. When samples is non-empty
// a GT column is added per sample, which forces genotype decoding.
func NewTabWriter(w io.Writer, samples []string) *TabWriter {
	columns := []string{
		"#CHROM",
		"POS",
		"END",
		"ID",
		"REF",
		"ALT",
		"QUAL",
		"FILTER",
		"INFO",
		"N_SAMPLES",
	}
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: append(columns, samples...),
		samples: samples,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single record.
func (tw *TabWriter) Write(vc *variant.Context) error {
	values := []string{
		vc.Chrom(),
		strconv.FormatInt(vc.Start(), 10),
		strconv.FormatInt(vc.End(), 10),
		vc.ID(),
		vc.Reference().Bases(),
		formatAlt(vc),
		formatQual(vc),
		vc.FilterString(),
		FormatInfo(vc),
		strconv.Itoa(vc.NSamples()),
	}

	if len(tw.samples) > 0 {
		genotypes, err := vc.Genotypes().All()
		if err != nil {
			return err
		}
		for i := range tw.samples {
			gt := "-"
			if i < len(genotypes) {
				gt = genotypes[i].GenotypeString(vc.Alleles())
			}
			values = append(values, gt)
		}
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/broadinstitute/picard-sub013/internal/stats"
)

// StatsWriter writes per-record genotype summaries in tab-delimited format.
type StatsWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewStatsWriter creates a new summary writer.
func NewStatsWriter(w io.Writer) *StatsWriter {
	return &StatsWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#CHROM",
			"POS",
			"ID",
			"REF",
			"ALT",
			"FILTER",
			"N_SAMPLES",
			"HOM_REF",
			"HET",
			"HOM_VAR",
			"NO_CALL",
			"MIXED",
			"AN",
			"AC",
			"AF",
			"CALL_RATE",
			"MEAN_DP",
		},
	}
}

// WriteHeader writes the header line.
func (sw *StatsWriter) WriteHeader() error {
	_, err := sw.w.WriteString(strings.Join(sw.columns, "\t") + "\n")
	return err
}

// Write writes a single record summary.
func (sw *StatsWriter) Write(s *stats.Summary) error {
	alt := "."
	if len(s.Alt) > 0 {
		alt = strings.Join(s.Alt, ",")
	}
	meanDP := "-"
	if dp, ok := s.MeanDP(); ok {
		meanDP = strconv.FormatFloat(dp, 'f', 2, 64)
	}
	af := make([]string, len(s.AC))
	for i, f := range s.AF() {
		af[i] = strconv.FormatFloat(f, 'f', 4, 64)
	}
	ac := FormatValue(s.AC)
	if len(s.AC) == 0 {
		ac = "."
	}
	afs := strings.Join(af, ",")
	if afs == "" {
		afs = "."
	}

	values := []string{
		s.Chrom,
		strconv.FormatInt(s.Pos, 10),
		s.ID,
		s.Ref,
		alt,
		s.Filter,
		strconv.Itoa(s.NSamples),
		strconv.Itoa(s.HomRef),
		strconv.Itoa(s.Het),
		strconv.Itoa(s.HomVar),
		strconv.Itoa(s.NoCall),
		strconv.Itoa(s.Mixed),
		strconv.Itoa(s.AN),
		ac,
		afs,
		strconv.FormatFloat(s.CallRate(), 'f', 4, 64),
		meanDP,
	}
	_, err := sw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteTotals writes a file-level totals line as a trailing comment.
func (sw *StatsWriter) WriteTotals(name string, t *stats.Totals) error {
	values := []string{
		"##TOTAL",
		name,
		"records=" + strconv.Itoa(t.Records),
		"snvs=" + strconv.Itoa(t.SNVs),
		"indels=" + strconv.Itoa(t.Indels),
		"filtered=" + strconv.Itoa(t.Filtered),
		"hom_ref=" + strconv.Itoa(t.HomRef),
		"het=" + strconv.Itoa(t.Het),
		"hom_var=" + strconv.Itoa(t.HomVar),
		"no_call=" + strconv.Itoa(t.NoCall),
		"mixed=" + strconv.Itoa(t.Mixed),
	}
	_, err := sw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (sw *StatsWriter) Flush() error {
	return sw.w.Flush()
}

package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/broadinstitute/picard-sub013/internal/output"
	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// RecordRow is a flattened record ready to be written to DuckDB.
type RecordRow struct {
	LoadID   string
	RecNo    int64
	Chrom    string
	Pos      int64
	End      int64
	ID       string
	Ref      string
	Alt      string
	Qual     sql.NullFloat64
	Filter   string
	Info     string
	NSamples int64

	Genotypes []GenotypeRow
}

// GenotypeRow is one sample's call. GQ and DP hold variant.Missing when absent.
type GenotypeRow struct {
	SampleIdx int64
	Sample    string
	GT        string
	GQ        int
	DP        int
	AD        string
	PL        string
	FT        string
}

// RecordRowFrom flattens a record. Unless sitesOnly is set the record's
// genotypes are materialized and flattened too.
func RecordRowFrom(recNo int64, vc *variant.Context, sitesOnly bool) (*RecordRow, error) {
	alt := "."
	if alts := vc.AlternateAlleles(); len(alts) > 0 {
		alt = alts[0].Bases()
		for _, a := range alts[1:] {
			alt += "," + a.Bases()
		}
	}
	r := &RecordRow{
		RecNo:    recNo,
		Chrom:    vc.Chrom(),
		Pos:      vc.Start(),
		End:      vc.End(),
		ID:       vc.ID(),
		Ref:      vc.Reference().Bases(),
		Alt:      alt,
		Filter:   vc.FilterString(),
		Info:     output.FormatInfo(vc),
		NSamples: int64(vc.NSamples()),
	}
	if vc.HasLog10PError() {
		r.Qual = sql.NullFloat64{Float64: vc.PhredQual(), Valid: true}
	}
	if sitesOnly || vc.NSamples() == 0 {
		return r, nil
	}

	genotypes, err := vc.Genotypes().All()
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", recNo, err)
	}
	r.Genotypes = make([]GenotypeRow, len(genotypes))
	for i, g := range genotypes {
		r.Genotypes[i] = GenotypeRow{
			SampleIdx: int64(i),
			Sample:    g.SampleName(),
			GT:        g.GenotypeString(vc.Alleles()),
			GQ:        g.GQ(),
			DP:        g.DP(),
			AD:        joinInts(g.AD()),
			PL:        joinInts(g.PL()),
			FT:        g.Filters(),
		}
	}
	return r, nil
}

func joinInts(values []int) string {
	if values == nil {
		return ""
	}
	return output.FormatValue(values)
}

// WriteRecords batch-inserts records and their genotypes under loadID using
// the Appender API.
func (s *Store) WriteRecords(loadID string, rows []*RecordRow) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var records, genotypes *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		records, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "records")
		if err != nil {
			return err
		}
		genotypes, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "genotypes")
		return err
	}); err != nil {
		if records != nil {
			records.Close()
		}
		return fmt.Errorf("create appender: %w", err)
	}
	defer records.Close()
	defer genotypes.Close()

	for _, r := range rows {
		var qual any
		if r.Qual.Valid {
			qual = r.Qual.Float64
		}
		if err := records.AppendRow(
			loadID, r.RecNo, r.Chrom, r.Pos, r.End, r.ID, r.Ref, r.Alt,
			qual, r.Filter, r.Info, r.NSamples,
		); err != nil {
			return fmt.Errorf("append record %d: %w", r.RecNo, err)
		}
		for _, g := range r.Genotypes {
			if err := genotypes.AppendRow(
				loadID, r.RecNo, g.SampleIdx, g.Sample, g.GT,
				nullableInt(g.GQ), nullableInt(g.DP),
				nullableString(g.AD), nullableString(g.PL), nullableString(g.FT),
			); err != nil {
				return fmt.Errorf("append genotype %s of record %d: %w", g.Sample, r.RecNo, err)
			}
		}
	}

	if err := records.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	if err := genotypes.Flush(); err != nil {
		return fmt.Errorf("flush genotypes: %w", err)
	}
	return nil
}

func nullableInt(v int) any {
	if v == variant.Missing {
		return nil
	}
	return int64(v)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// CountRecords returns the number of records exported under loadID.
func (s *Store) CountRecords(loadID string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT count(*) FROM records WHERE load_id = ?`, loadID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// LookupRegion returns records on chrom overlapping the 1-based closed
// interval [start, end], across all loads.
func (s *Store) LookupRegion(chrom string, start, end int64) ([]*RecordRow, error) {
	rows, err := s.db.Query(`SELECT
		load_id, rec_no, chrom, pos, end_pos, id, ref, alt, qual, filter, info, n_samples
		FROM records
		WHERE chrom = ? AND pos <= ? AND end_pos >= ?
		ORDER BY pos, load_id, rec_no`, chrom, end, start)
	if err != nil {
		return nil, fmt.Errorf("query region: %w", err)
	}
	defer rows.Close()

	var out []*RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(
			&r.LoadID, &r.RecNo, &r.Chrom, &r.Pos, &r.End, &r.ID, &r.Ref, &r.Alt,
			&r.Qual, &r.Filter, &r.Info, &r.NSamples,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// GenotypesForRecord returns the genotypes of one exported record in sample order.
func (s *Store) GenotypesForRecord(loadID string, recNo int64) ([]GenotypeRow, error) {
	rows, err := s.db.Query(`SELECT sample_idx, sample, gt, gq, dp, ad, pl, ft
		FROM genotypes
		WHERE load_id = ? AND rec_no = ?
		ORDER BY sample_idx`, loadID, recNo)
	if err != nil {
		return nil, fmt.Errorf("query genotypes: %w", err)
	}
	defer rows.Close()

	var out []GenotypeRow
	for rows.Next() {
		var g GenotypeRow
		var gq, dp sql.NullInt64
		var ad, pl, ft sql.NullString
		if err := rows.Scan(&g.SampleIdx, &g.Sample, &g.GT, &gq, &dp, &ad, &pl, &ft); err != nil {
			return nil, fmt.Errorf("scan genotype: %w", err)
		}
		g.GQ = intOrMissing(gq)
		g.DP = intOrMissing(dp)
		g.AD, g.PL, g.FT = ad.String, pl.String, ft.String
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genotypes: %w", err)
	}
	return out, nil
}

func intOrMissing(v sql.NullInt64) int {
	if !v.Valid {
		return variant.Missing
	}
	return int(v.Int64)
}

// Label renders a record row as chrom:pos:ref>alt.
func (r *RecordRow) Label() string {
	return r.Chrom + ":" + strconv.FormatInt(r.Pos, 10) + ":" + r.Ref + ">" + r.Alt
}

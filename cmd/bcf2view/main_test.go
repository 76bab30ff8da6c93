package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// keep a developer's ~/.bcf2view.yaml out of the tests
	home, err := os.MkdirTemp("", "bcf2view-home")
	if err != nil {
		panic(err)
	}
	os.Setenv("HOME", home)
	code := m.Run()
	os.RemoveAll(home)
	os.Exit(code)
}

// runCLI runs the tool with a fresh config.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	viper.Reset()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "dev (none) built unknown")
}

func TestRun_UsageErrors(t *testing.T) {
	code, _, stderr := runCLI(t, "view", "--no-such-flag", "testdata/calls.bcf")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "Error:")

	code, _, _ = runCLI(t, "view")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = runCLI(t, "view", "-f", "json", "testdata/calls.bcf")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = runCLI(t, "--log-level", "loud", "view", "testdata/calls.bcf")
	assert.Equal(t, ExitUsage, code)
}

func TestView_Tab(t *testing.T) {
	code, out, _ := runCLI(t, "view", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)

	got := lines(out)
	require.Len(t, got, 4)
	assert.True(t, strings.HasPrefix(got[0], "#CHROM\tPOS\tEND"))
	assert.Equal(t, "chr1\t100\t100\trs1\tA\tT\t50\tPASS\tDP=20\t2", got[1])
	assert.Equal(t, "chr1\t200\t200\t.\tC\tG,CA\t.\tLowQual\tDP=5\t2", got[2])
	assert.Equal(t, "chr2\t50\t50\t.\tG\tA\t30\tPASS\tDP=20\t2", got[3])
}

func TestView_TabGenotypes(t *testing.T) {
	code, out, _ := runCLI(t, "view", "--genotypes", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)

	got := lines(out)
	require.Len(t, got, 4)
	assert.True(t, strings.HasSuffix(got[0], "\tN_SAMPLES\tS1\tS2"))
	assert.True(t, strings.HasSuffix(got[1], "\t0/0\t0/1"))
	assert.True(t, strings.HasSuffix(got[2], "\t1/2\t."))
	assert.True(t, strings.HasSuffix(got[3], "\t1/1\t0/0"))
}

func TestView_VCF(t *testing.T) {
	for _, input := range []string{"testdata/calls.bcf", "testdata/calls.bcf.gz"} {
		t.Run(filepath.Base(input), func(t *testing.T) {
			code, out, _ := runCLI(t, "view", "-f", "vcf", input)
			require.Equal(t, ExitSuccess, code)

			got := lines(out)
			require.Len(t, got, 13)
			assert.Equal(t, "##fileformat=VCFv4.2", got[0])
			assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2", got[9])
			assert.Equal(t, "chr1\t100\trs1\tA\tT\t50\tPASS\tDP=20\tGT:GQ:DP\t0/0:99:10\t0/1:40:10", got[10])
			assert.Equal(t, "chr1\t200\t.\tC\tG,CA\t.\tLowQual\tDP=5\tGT:GQ:DP\t1/2:20:5\t.:.:.", got[11])
		})
	}
}

func TestView_SitesOnly(t *testing.T) {
	code, out, _ := runCLI(t, "view", "-f", "vcf", "--sites-only", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)

	got := lines(out)
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO", got[9])
	assert.Equal(t, "chr2\t50\t.\tG\tA\t30\tPASS\tDP=20", got[12])
}

func TestView_LimitAndOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "calls.tsv")
	code, out, _ := runCLI(t, "view", "-n", "1", "--eager", "-o", path, "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, lines(string(data)), 2)
}

func TestView_NotBCF(t *testing.T) {
	code, _, stderr := runCLI(t, "view", "testdata/not-bcf.txt")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "Error:")

	code, _, _ = runCLI(t, "view", "testdata/missing.bcf")
	assert.Equal(t, ExitError, code)
}

func TestHeader(t *testing.T) {
	code, out, _ := runCLI(t, "header", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "##contig=<ID=chr2,length=1000000>\n")
	assert.True(t, strings.HasSuffix(out, "FORMAT\tS1\tS2\n"))
}

func TestHeader_Dictionary(t *testing.T) {
	code, out, _ := runCLI(t, "header", "--dictionary", "testdata/calls.bcf.gz")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{
		"# BCF2.2, 2 samples",
		"#DICTIONARY",
		"0\tPASS",
		"1\tLowQual",
		"2\tDP",
		"3\tGT",
		"4\tGQ",
		"#CONTIGS",
		"0\tchr1",
		"1\tchr2",
	}, lines(out))
}

func TestProbe(t *testing.T) {
	code, out, _ := runCLI(t, "probe", "testdata/calls.bcf", "testdata/calls.bcf.gz")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{
		"testdata/calls.bcf\tBCF2.2",
		"testdata/calls.bcf.gz\tBCF2.2",
	}, lines(out))

	code, out, _ = runCLI(t, "probe", "testdata/calls.bcf", "testdata/not-bcf.txt")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "testdata/not-bcf.txt\tnot BCF2")
}

func TestStats(t *testing.T) {
	code, out, _ := runCLI(t, "stats", "--workers", "2", "testdata/calls.bcf", "testdata/calls.bcf.gz")
	require.Equal(t, ExitSuccess, code)

	got := lines(out)
	// header, three records and totals per file, in argument order
	require.Len(t, got, 10)
	assert.True(t, strings.HasPrefix(got[0], "#CHROM\tPOS\tID"))
	assert.Equal(t, "chr1\t100\trs1\tA\tT\tPASS\t2\t1\t1\t0\t0\t0\t4\t1\t0.2500\t1.0000\t10.00", got[1])
	assert.True(t, strings.HasPrefix(got[3], "chr2\t50\t.\tG\tA\tPASS\t2\t1\t0\t1\t0\t0\t4\t2\t0.5000"))
	assert.True(t, strings.HasPrefix(got[4], "##TOTAL\ttestdata/calls.bcf\trecords=3"))
	assert.True(t, strings.HasPrefix(got[9], "##TOTAL\ttestdata/calls.bcf.gz\trecords=3"))
}

func TestStats_TotalsOnly(t *testing.T) {
	code, out, _ := runCLI(t, "stats", "--totals-only", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	got := lines(out)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "hom_ref=2\thet=2\thom_var=1")
}

func TestStats_Error(t *testing.T) {
	code, out, stderr := runCLI(t, "stats", "testdata/calls.bcf", "testdata/not-bcf.txt")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "testdata/not-bcf.txt")
	// the readable file is still reported
	assert.Contains(t, out, "##TOTAL\ttestdata/calls.bcf\t")
}

func TestExportAndQuery(t *testing.T) {
	db := filepath.Join(t.TempDir(), "calls.duckdb")

	code, out, _ := runCLI(t, "export", "--db", db, "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "exported as load")
	assert.Contains(t, out, "(3 records)")

	code, out, _ = runCLI(t, "export", "--db", db, "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "already exported")

	code, out, _ = runCLI(t, "query", "--db", db, "chr1:1-150")
	require.Equal(t, ExitSuccess, code)
	got := lines(out)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "chr1:100:A>T\t100\trs1\t50\tPASS\tDP=20\t"))

	code, out, _ = runCLI(t, "query", "--db", db, "--genotypes", "chr1:200")
	require.Equal(t, ExitSuccess, code)
	got = lines(out)
	require.Len(t, got, 3)
	assert.True(t, strings.HasPrefix(got[0], "chr1:200:C>G,CA\t200\t.\t.\tLowQual"))
	assert.Equal(t, "\tS1\t1/2\tGQ=20\tDP=5", got[1])
	assert.Equal(t, "\tS2\t.\tGQ=.\tDP=.", got[2])
}

func TestExport_RequiresDB(t *testing.T) {
	code, _, _ := runCLI(t, "export", "testdata/calls.bcf")
	assert.Equal(t, ExitUsage, code)
}

func TestConfig_SetGetAndUse(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	code, out, _ := runCLI(t, "config", "set", "view.format", "vcf")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, filepath.Join(home, ".bcf2view.yaml"))

	code, out, _ = runCLI(t, "config", "get", "view.format")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "vcf\n", out)

	code, out, _ = runCLI(t, "view", "--sites-only", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasPrefix(out, "##fileformat=VCFv4.2\n"))

	code, _, _ = runCLI(t, "config", "get", "no.such.key")
	assert.Equal(t, ExitError, code)
}

func TestConfig_Env(t *testing.T) {
	t.Setenv("BCF2VIEW_VIEW_FORMAT", "vcf")
	code, out, _ := runCLI(t, "view", "--sites-only", "testdata/calls.bcf")
	require.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasPrefix(out, "##fileformat"))
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in         string
		chrom      string
		start, end int64
		wantErr    bool
	}{
		{in: "chr1:100-200", chrom: "chr1", start: 100, end: 200},
		{in: "chr1:1,000-2,000", chrom: "chr1", start: 1000, end: 2000},
		{in: "HLA-A*01:01:5", chrom: "HLA-A*01:01", start: 5, end: 5},
		{in: "chr1", wantErr: true},
		{in: "chr1:x-5", wantErr: true},
		{in: "chr1:10-5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			chrom, start, end, err := parseRegion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chrom, chrom)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSummarizeFile_OutputFailure(t *testing.T) {
	cfg := &Config{}
	cfg.Decode.Workers = 4
	cfg.Decode.Parallelism = 1
	before := runtime.NumGoroutine()

	for _, totalsOnly := range []bool{false, true} {
		err := summarizeFile(context.Background(), failingWriter{}, cfg, zap.NewNop(), "testdata/calls.bcf", totalsOnly)
		assert.ErrorContains(t, err, "disk full")
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}

package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadinstitute/picard-sub013/internal/stats"
)

func TestStatsWriter(t *testing.T) {
	vc := testRecord(t, testGenotypes()...)
	sum, err := stats.NewSummarizer().Summarize(vc)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewStatsWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(sum))

	var totals stats.Totals
	totals.Add(sum)
	require.NoError(t, w.WriteTotals("test.bcf", &totals))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#CHROM\tPOS\tID"))

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 17)
	assert.Equal(t, []string{"chr1", "100", "rs1", "A", "T,C", "PASS", "2"}, fields[:7])
	assert.Equal(t, "0", fields[7])  // HOM_REF
	assert.Equal(t, "1", fields[8])  // HET
	assert.Equal(t, "1", fields[9])  // HOM_VAR
	assert.Equal(t, "4", fields[12]) // AN
	assert.Equal(t, "1,2", fields[13])
	assert.Equal(t, "0.2500,0.5000", fields[14])
	assert.Equal(t, "1.0000", fields[15])
	assert.Equal(t, "30.00", fields[16])

	assert.True(t, strings.HasPrefix(lines[2], "##TOTAL\ttest.bcf\trecords=1"))
}

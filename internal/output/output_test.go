package output

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

var (
	refA = variant.MustAllele("A", true)
	altT = variant.MustAllele("T", false)
	altC = variant.MustAllele("C", false)
)

func testRecord(t *testing.T, genotypes ...*variant.Genotype) *variant.Context {
	t.Helper()
	b := variant.NewBuilder().
		Chr("chr1").
		Start(100).
		Stop(100).
		ID("rs1").
		Alleles([]variant.Allele{refA, altT, altC}).
		Log10PError(-3).
		PassFilters().
		Attribute("DP", 42).
		Attribute("DB", true).
		Attribute("AF", []float64{0.5, 0.25})
	if genotypes != nil {
		b.Genotypes(variant.NewGenotypes(genotypes))
	}
	vc, err := b.Make()
	require.NoError(t, err)
	return vc
}

func testGenotypes() []*variant.Genotype {
	return []*variant.Genotype{
		variant.NewGenotypeBuilder("S1").
			Alleles([]variant.Allele{refA, altT}).
			GQ(99).DP(30).AD([]int{15, 15}).PL([]int{500, 0, 700}).
			Make(),
		variant.NewGenotypeBuilder("S2").
			Alleles([]variant.Allele{altC, altC}).Phased(true).
			Filter("q10").
			Attribute("HQ", []float64{10.5, 3}).
			Make(),
	}
}

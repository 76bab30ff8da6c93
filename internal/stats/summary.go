// Package stats computes per-record genotype summaries.
package stats

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// Summary holds genotype counts for one record.
type Summary struct {
	Chrom    string
	Pos      int64
	ID       string
	Ref      string
	Alt      []string
	Filter   string
	SNV      bool
	Indel    bool
	Filtered bool

	NSamples int
	HomRef   int
	Het      int
	HomVar   int
	NoCall   int // no-call and unavailable genotypes
	Mixed    int

	AN int   // called alleles
	AC []int // per alternate allele

	dpSum   int
	dpCount int
}

// Called is the number of samples with at least one called allele.
func (s *Summary) Called() int {
	return s.HomRef + s.Het + s.HomVar + s.Mixed
}

// CallRate is the fraction of samples with a call, 0 without samples.
func (s *Summary) CallRate() float64 {
	if s.NSamples == 0 {
		return 0
	}
	return float64(s.Called()) / float64(s.NSamples)
}

// AF returns the allele frequency of each alternate allele.
func (s *Summary) AF() []float64 {
	af := make([]float64, len(s.AC))
	if s.AN == 0 {
		return af
	}
	for i, ac := range s.AC {
		af[i] = float64(ac) / float64(s.AN)
	}
	return af
}

// MeanDP averages per-sample DP over samples that report it.
func (s *Summary) MeanDP() (float64, bool) {
	if s.dpCount == 0 {
		return 0, false
	}
	return float64(s.dpSum) / float64(s.dpCount), true
}

// Summarizer computes summaries, materializing lazy genotypes as needed.
type Summarizer struct {
	logger *zap.Logger
}

// NewSummarizer creates a summarizer with a no-op logger.
func NewSummarizer() *Summarizer {
	return &Summarizer{logger: zap.NewNop()}
}

// SetLogger sets the logger for warning messages.
func (s *Summarizer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Summarize counts zygosity classes and allele counts of one record.
func (s *Summarizer) Summarize(vc *variant.Context) (*Summary, error) {
	alts := vc.AlternateAlleles()
	sum := &Summary{
		Chrom:    vc.Chrom(),
		Pos:      vc.Start(),
		ID:       vc.ID(),
		Ref:      vc.Reference().Bases(),
		Alt:      make([]string, len(alts)),
		Filter:   vc.FilterString(),
		SNV:      vc.IsSNV(),
		Indel:    vc.IsIndel(),
		Filtered: vc.IsFiltered(),
		NSamples: vc.NSamples(),
		AC:       make([]int, len(alts)),
	}
	for i, a := range alts {
		sum.Alt[i] = a.Bases()
	}

	genotypes, err := vc.Genotypes().All()
	if err != nil {
		return nil, fmt.Errorf("summarize %s:%d: %w", vc.Chrom(), vc.Start(), err)
	}
	for _, g := range genotypes {
		switch g.Type() {
		case variant.HomRef:
			sum.HomRef++
		case variant.Het:
			sum.Het++
		case variant.HomVar:
			sum.HomVar++
		case variant.Mixed:
			sum.Mixed++
		default:
			sum.NoCall++
		}
		for _, a := range g.Alleles() {
			if a.IsNoCall() {
				continue
			}
			sum.AN++
			for i, alt := range alts {
				if a.Equal(alt) {
					sum.AC[i]++
					break
				}
			}
		}
		if g.HasDP() {
			sum.dpSum += g.DP()
			sum.dpCount++
		}
	}
	return sum, nil
}

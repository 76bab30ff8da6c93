package variant

// GenotypeBuilder accumulates the fields of one sample's genotype. A builder is
// reusable: Reset clears it and Make copies every slice it hands out.
type GenotypeBuilder struct {
	sampleName string
	alleles    []Allele
	phased     bool
	gq         int
	dp         int
	ad         []int
	pl         []int
	filters    string
	extended   map[string]any
}

// NewGenotypeBuilder returns an empty builder for the named sample.
func NewGenotypeBuilder(sampleName string) *GenotypeBuilder {
	gb := &GenotypeBuilder{}
	gb.Reset(false)
	gb.sampleName = sampleName
	return gb
}

// Reset restores the builder to its empty state.
func (gb *GenotypeBuilder) Reset(keepSampleName bool) {
	if !keepSampleName {
		gb.sampleName = ""
	}
	gb.alleles = nil
	gb.phased = false
	gb.gq = Missing
	gb.dp = Missing
	gb.ad = nil
	gb.pl = nil
	gb.filters = ""
	gb.extended = nil
}

// Name sets the sample name.
func (gb *GenotypeBuilder) Name(name string) *GenotypeBuilder {
	gb.sampleName = name
	return gb
}

// SampleName returns the sample name currently set.
func (gb *GenotypeBuilder) SampleName() string { return gb.sampleName }

// Alleles sets the called alleles; nil means no call.
func (gb *GenotypeBuilder) Alleles(alleles []Allele) *GenotypeBuilder {
	gb.alleles = alleles
	return gb
}

// Phased sets the phasing flag.
func (gb *GenotypeBuilder) Phased(phased bool) *GenotypeBuilder {
	gb.phased = phased
	return gb
}

// GQ sets the genotype quality, Missing clears it.
func (gb *GenotypeBuilder) GQ(gq int) *GenotypeBuilder {
	gb.gq = gq
	return gb
}

// DP sets the depth, Missing clears it.
func (gb *GenotypeBuilder) DP(dp int) *GenotypeBuilder {
	gb.dp = dp
	return gb
}

// AD sets the allelic depths.
func (gb *GenotypeBuilder) AD(ad []int) *GenotypeBuilder {
	gb.ad = ad
	return gb
}

// PL sets the phred-scaled likelihoods.
func (gb *GenotypeBuilder) PL(pl []int) *GenotypeBuilder {
	gb.pl = pl
	return gb
}

// Filter sets the per-sample filter string.
func (gb *GenotypeBuilder) Filter(filter string) *GenotypeBuilder {
	gb.filters = filter
	return gb
}

// Attribute sets an extended FORMAT attribute.
func (gb *GenotypeBuilder) Attribute(key string, value any) *GenotypeBuilder {
	if gb.extended == nil {
		gb.extended = make(map[string]any, 4)
	}
	gb.extended[key] = value
	return gb
}

// Make produces an immutable genotype from the current builder state.
func (gb *GenotypeBuilder) Make() *Genotype {
	g := &Genotype{
		sampleName: gb.sampleName,
		phased:     gb.phased,
		gq:         gb.gq,
		dp:         gb.dp,
		filters:    gb.filters,
	}
	if len(gb.alleles) > 0 {
		g.alleles = append([]Allele(nil), gb.alleles...)
	}
	if gb.ad != nil {
		g.ad = append([]int(nil), gb.ad...)
	}
	if gb.pl != nil {
		g.pl = append([]int(nil), gb.pl...)
	}
	if len(gb.extended) > 0 {
		g.extended = make(map[string]any, len(gb.extended))
		for k, v := range gb.extended {
			g.extended[k] = v
		}
	}
	return g
}

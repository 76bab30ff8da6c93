package variant

import (
	"sort"
	"strconv"
	"strings"
)

// GenotypeType classifies a genotype call.
type GenotypeType int

const (
	NoCallType GenotypeType = iota
	HomRef
	Het
	HomVar
	Unavailable
	Mixed
)

func (t GenotypeType) String() string {
	switch t {
	case NoCallType:
		return "NO_CALL"
	case HomRef:
		return "HOM_REF"
	case Het:
		return "HET"
	case HomVar:
		return "HOM_VAR"
	case Mixed:
		return "MIXED"
	default:
		return "UNAVAILABLE"
	}
}

// Missing is the value of GQ and DP when absent.
const Missing = -1

// Genotype is the immutable per-sample genotype of a record.
type Genotype struct {
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

// SampleName returns the sample this genotype belongs to.
func (g *Genotype) SampleName() string { return g.sampleName }

// Alleles returns the called alleles, possibly empty.
func (g *Genotype) Alleles() []Allele { return g.alleles }

// Ploidy is the number of alleles in the call.
func (g *Genotype) Ploidy() int { return len(g.alleles) }

// IsPhased reports whether the call is phased.
func (g *Genotype) IsPhased() bool { return g.phased }

// GQ returns the genotype quality or Missing.
func (g *Genotype) GQ() int { return g.gq }

// HasGQ reports whether GQ is present.
func (g *Genotype) HasGQ() bool { return g.gq != Missing }

// DP returns the read depth or Missing.
func (g *Genotype) DP() int { return g.dp }

// HasDP reports whether DP is present.
func (g *Genotype) HasDP() bool { return g.dp != Missing }

// AD returns the per-allele depths, nil when absent.
func (g *Genotype) AD() []int { return g.ad }

// PL returns the phred-scaled likelihoods, nil when absent.
func (g *Genotype) PL() []int { return g.pl }

// Filters returns the per-sample filter string, empty when unfiltered.
func (g *Genotype) Filters() string { return g.filters }

// IsFiltered reports whether a non-PASS filter was applied to the sample.
func (g *Genotype) IsFiltered() bool { return g.filters != "" && g.filters != PassFilter }

// Attribute returns an extended FORMAT attribute.
func (g *Genotype) Attribute(key string) (any, bool) {
	v, ok := g.extended[key]
	return v, ok
}

// ExtendedKeys returns the extended attribute keys in sorted order.
func (g *Genotype) ExtendedKeys() []string {
	keys := make([]string, 0, len(g.extended))
	for k := range g.extended {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Type classifies the call from its alleles.
func (g *Genotype) Type() GenotypeType {
	if len(g.alleles) == 0 {
		return Unavailable
	}
	var sawNoCall, sawMultipleAlleles bool
	var observed Allele
	hasObserved := false
	for _, a := range g.alleles {
		if a.IsNoCall() {
			sawNoCall = true
			continue
		}
		if !hasObserved {
			observed = a
			hasObserved = true
		} else if !a.Equal(observed) {
			sawMultipleAlleles = true
		}
	}
	switch {
	case sawNoCall && !hasObserved:
		return NoCallType
	case sawNoCall:
		return Mixed
	case sawMultipleAlleles:
		return Het
	case observed.IsReference():
		return HomRef
	default:
		return HomVar
	}
}

// IsCalled reports whether the genotype has any called allele.
func (g *Genotype) IsCalled() bool {
	t := g.Type()
	return t != NoCallType && t != Unavailable
}

// GenotypeString renders the call against the site alleles, e.g. "0/1" or "1|1".
func (g *Genotype) GenotypeString(siteAlleles []Allele) string {
	if len(g.alleles) == 0 {
		return "."
	}
	sep := "/"
	if g.phased {
		sep = "|"
	}
	parts := make([]string, len(g.alleles))
	for i, a := range g.alleles {
		parts[i] = "."
		if a.IsNoCall() {
			continue
		}
		for j, s := range siteAlleles {
			if s.Equal(a) {
				parts[i] = strconv.Itoa(j)
				break
			}
		}
	}
	return strings.Join(parts, sep)
}

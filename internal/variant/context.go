package variant

import (
	"sort"
	"strings"
)

const (
	// PassFilter is the FILTER keyword for records passing all filters.
	PassFilter = "PASS"
	// NoID is the ID value of records without an identifier.
	NoID = "."
	// NoLog10PError marks a record without a quality score.
	NoLog10PError = 1.0
)

// Context represents a single decoded variant record.
type Context struct {
	chrom        string
	start        int64 // 1-based
	end          int64 // 1-based, inclusive
	id           string
	alleles      []Allele
	log10PError  float64
	filters      []string // nil = unfiltered, empty = passes
	attributes   map[string]any
	genotypes    *Genotypes
	fullyDecoded bool
}

// Chrom returns the contig name (e.g., "12", "chr12").
func (c *Context) Chrom() string { return c.chrom }

// Start returns the 1-based start position.
func (c *Context) Start() int64 { return c.start }

// End returns the 1-based inclusive end position.
func (c *Context) End() int64 { return c.end }

// ID returns the variant identifier, "." when absent.
func (c *Context) ID() string { return c.id }

// HasID reports whether the record has an identifier.
func (c *Context) HasID() bool { return c.id != NoID }

// Alleles returns all alleles, reference first.
func (c *Context) Alleles() []Allele { return c.alleles }

// Reference returns the reference allele.
func (c *Context) Reference() Allele { return c.alleles[0] }

// AlternateAlleles returns the alleles after the reference.
func (c *Context) AlternateAlleles() []Allele { return c.alleles[1:] }

// Log10PError returns the log10 error probability, NoLog10PError when absent.
func (c *Context) Log10PError() float64 { return c.log10PError }

// HasLog10PError reports whether a quality was recorded.
func (c *Context) HasLog10PError() bool { return c.log10PError != NoLog10PError }

// PhredQual converts the error probability back to a phred-scaled quality.
func (c *Context) PhredQual() float64 { return c.log10PError * -10.0 }

// FiltersWereApplied is false for unfiltered records.
func (c *Context) FiltersWereApplied() bool { return c.filters != nil }

// IsFiltered reports whether any named filter failed.
func (c *Context) IsFiltered() bool { return len(c.filters) > 0 }

// PassesFilters reports whether filters were applied and none failed.
func (c *Context) PassesFilters() bool { return c.filters != nil && len(c.filters) == 0 }

// Filters returns the failed filter names in sorted order.
func (c *Context) Filters() []string { return c.filters }

// FilterString renders the FILTER column.
func (c *Context) FilterString() string {
	switch {
	case c.filters == nil:
		return "."
	case len(c.filters) == 0:
		return PassFilter
	default:
		return strings.Join(c.filters, ";")
	}
}

// Attribute returns an INFO attribute.
func (c *Context) Attribute(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Attributes returns the INFO attribute map.
func (c *Context) Attributes() map[string]any { return c.attributes }

// AttributeKeys returns the INFO keys in sorted order.
func (c *Context) AttributeKeys() []string {
	keys := make([]string, 0, len(c.attributes))
	for k := range c.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Genotypes returns the genotype collection, nil for sites-only records.
func (c *Context) Genotypes() *Genotypes { return c.genotypes }

// NSamples is the number of samples with genotypes.
func (c *Context) NSamples() int { return c.genotypes.Len() }

// FullyDecoded reports whether all site-level fields are already typed.
func (c *Context) FullyDecoded() bool { return c.fullyDecoded }

// IsBiallelic reports whether there is exactly one alternate allele.
func (c *Context) IsBiallelic() bool { return len(c.alleles) == 2 }

// IsSNV returns true if every allele is a single base.
func (c *Context) IsSNV() bool {
	if len(c.alleles) < 2 {
		return false
	}
	for _, a := range c.alleles {
		if a.IsSymbolic() || a.Length() != 1 {
			return false
		}
	}
	return true
}

// IsIndel returns true if any alternate differs in length from the reference.
func (c *Context) IsIndel() bool {
	ref := c.Reference().Length()
	for _, a := range c.AlternateAlleles() {
		if !a.IsSymbolic() && a.Length() != ref {
			return true
		}
	}
	return false
}

// IsInsertion returns true if an alternate is longer than the reference.
func (c *Context) IsInsertion() bool {
	ref := c.Reference().Length()
	for _, a := range c.AlternateAlleles() {
		if !a.IsSymbolic() && a.Length() > ref {
			return true
		}
	}
	return false
}

// IsDeletion returns true if an alternate is shorter than the reference.
func (c *Context) IsDeletion() bool {
	ref := c.Reference().Length()
	for _, a := range c.AlternateAlleles() {
		if !a.IsSymbolic() && a.Length() < ref {
			return true
		}
	}
	return false
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (c *Context) NormalizeChrom() string {
	if len(c.chrom) > 3 && c.chrom[:3] == "chr" {
		return c.chrom[3:]
	}
	return c.chrom
}

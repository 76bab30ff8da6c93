package variant

import (
	"errors"
	"fmt"
	"sort"
)

// Builder assembles a Context. Setters may be called in any order; Make
// validates the combination.
type Builder struct {
	chrom        string
	start        int64
	stop         int64
	id           string
	alleles      []Allele
	log10PError  float64
	filters      []string
	attributes   map[string]any
	genotypes    *Genotypes
	fullyDecoded bool
}

// NewBuilder returns an empty builder: no ID, no quality, unfiltered.
func NewBuilder() *Builder {
	return &Builder{id: NoID, log10PError: NoLog10PError}
}

// Chr sets the contig name.
func (b *Builder) Chr(chrom string) *Builder {
	b.chrom = chrom
	return b
}

// Start sets the 1-based start.
func (b *Builder) Start(start int64) *Builder {
	b.start = start
	return b
}

// Stop sets the 1-based inclusive end.
func (b *Builder) Stop(stop int64) *Builder {
	b.stop = stop
	return b
}

// ID sets the identifier.
func (b *Builder) ID(id string) *Builder {
	if id == "" {
		id = NoID
	}
	b.id = id
	return b
}

// NoID clears the identifier.
func (b *Builder) NoID() *Builder {
	b.id = NoID
	return b
}

// Alleles sets the allele list, reference first.
func (b *Builder) Alleles(alleles []Allele) *Builder {
	b.alleles = alleles
	return b
}

// Log10PError sets the error probability.
func (b *Builder) Log10PError(v float64) *Builder {
	b.log10PError = v
	return b
}

// Unfiltered marks that no filters were applied.
func (b *Builder) Unfiltered() *Builder {
	b.filters = nil
	return b
}

// PassFilters marks that filters were applied and all passed.
func (b *Builder) PassFilters() *Builder {
	b.filters = []string{}
	return b
}

// Filter adds a failed filter name.
func (b *Builder) Filter(name string) *Builder {
	if b.filters == nil {
		b.filters = make([]string, 0, 1)
	}
	b.filters = append(b.filters, name)
	return b
}

// Attributes replaces the INFO attribute map.
func (b *Builder) Attributes(attrs map[string]any) *Builder {
	b.attributes = attrs
	return b
}

// Attribute sets a single INFO attribute.
func (b *Builder) Attribute(key string, value any) *Builder {
	if b.attributes == nil {
		b.attributes = make(map[string]any)
	}
	b.attributes[key] = value
	return b
}

// Genotypes attaches a genotype collection, lazy or materialized.
func (b *Builder) Genotypes(gs *Genotypes) *Builder {
	b.genotypes = gs
	return b
}

// FullyDecoded marks the record as having no pending text-to-typed conversions.
func (b *Builder) FullyDecoded(v bool) *Builder {
	b.fullyDecoded = v
	return b
}

// Make validates the accumulated fields and returns the record.
func (b *Builder) Make() (*Context, error) {
	if b.chrom == "" {
		return nil, errors.New("variant has no contig")
	}
	if len(b.alleles) == 0 {
		return nil, errors.New("variant has no alleles")
	}
	if !b.alleles[0].IsReference() {
		return nil, fmt.Errorf("first allele %s is not the reference", b.alleles[0])
	}
	for i, a := range b.alleles[1:] {
		if a.IsReference() {
			return nil, fmt.Errorf("alternate allele %d is marked as reference", i+1)
		}
	}
	if b.stop < b.start-1 {
		return nil, fmt.Errorf("stop %d is before start %d", b.stop, b.start)
	}

	c := &Context{
		chrom:        b.chrom,
		start:        b.start,
		end:          b.stop,
		id:           b.id,
		alleles:      b.alleles,
		log10PError:  b.log10PError,
		attributes:   b.attributes,
		genotypes:    b.genotypes,
		fullyDecoded: b.fullyDecoded,
	}
	if b.filters != nil {
		c.filters = dedupSorted(b.filters)
	}
	if c.attributes == nil {
		c.attributes = map[string]any{}
	}
	return c, nil
}

func dedupSorted(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

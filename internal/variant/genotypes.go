package variant

import "fmt"

// LazyDecoder materializes genotypes on demand. Implementations must be
// idempotent: every call after the first returns the same result.
type LazyDecoder interface {
	Materialize() ([]*Genotype, error)
}

// Genotypes is the ordered per-sample genotype collection of a record. It is
// either materialized up front or backed by a LazyDecoder that runs on first
// access. Len never forces decoding.
type Genotypes struct {
	lazy      LazyDecoder
	size      int
	genotypes []*Genotype
	bySample  map[string]int
	err       error
	decoded   bool
}

// NewGenotypes wraps already decoded genotypes.
func NewGenotypes(genotypes []*Genotype) *Genotypes {
	gs := &Genotypes{size: len(genotypes)}
	gs.setGenotypes(genotypes)
	return gs
}

// NewLazyGenotypes wraps a decoder that will produce size genotypes.
func NewLazyGenotypes(lazy LazyDecoder, size int) *Genotypes {
	return &Genotypes{lazy: lazy, size: size}
}

func (gs *Genotypes) setGenotypes(genotypes []*Genotype) {
	gs.genotypes = genotypes
	gs.bySample = make(map[string]int, len(genotypes))
	for i, g := range genotypes {
		gs.bySample[g.SampleName()] = i
	}
	gs.decoded = true
	gs.lazy = nil
}

// Len is the number of samples.
func (gs *Genotypes) Len() int {
	if gs == nil {
		return 0
	}
	return gs.size
}

// Lazy returns the backing decoder, nil once the genotypes are decoded.
func (gs *Genotypes) Lazy() LazyDecoder {
	if gs == nil {
		return nil
	}
	return gs.lazy
}

// IsLazy reports whether the genotypes are still undecoded.
func (gs *Genotypes) IsLazy() bool {
	return gs != nil && !gs.decoded && gs.err == nil
}

// Decode forces materialization. It is a no-op once decoding has happened.
func (gs *Genotypes) Decode() error {
	if gs == nil || gs.decoded {
		return nil
	}
	if gs.err != nil {
		return gs.err
	}
	genotypes, err := gs.lazy.Materialize()
	if err != nil {
		gs.err = err
		return err
	}
	if len(genotypes) != gs.size {
		gs.err = fmt.Errorf("lazy genotypes decoded %d samples, expected %d", len(genotypes), gs.size)
		return gs.err
	}
	gs.setGenotypes(genotypes)
	return nil
}

// All returns every genotype in sample order, decoding if needed.
func (gs *Genotypes) All() ([]*Genotype, error) {
	if err := gs.Decode(); err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, nil
	}
	return gs.genotypes, nil
}

// Get returns the i-th genotype, decoding if needed.
func (gs *Genotypes) Get(i int) (*Genotype, error) {
	if err := gs.Decode(); err != nil {
		return nil, err
	}
	if i < 0 || i >= gs.Len() {
		return nil, fmt.Errorf("genotype index %d out of range [0,%d)", i, gs.Len())
	}
	return gs.genotypes[i], nil
}

// BySample returns the genotype of the named sample, decoding if needed.
func (gs *Genotypes) BySample(name string) (*Genotype, bool, error) {
	if err := gs.Decode(); err != nil {
		return nil, false, err
	}
	if gs == nil {
		return nil, false, nil
	}
	i, ok := gs.bySample[name]
	if !ok {
		return nil, false, nil
	}
	return gs.genotypes[i], true, nil
}

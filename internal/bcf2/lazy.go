package bcf2

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// GenotypeArena is the per-sample builder array reused by genotype
// decoding. Every materialization resets it, so one arena must not back two
// records that are materialized concurrently or interleaved with later
// records; give such records their own arena.
type GenotypeArena struct {
	samples  []string
	builders []*variant.GenotypeBuilder
}

// NewGenotypeArena allocates one builder per sample, in sample order.
func NewGenotypeArena(samples []string) *GenotypeArena {
	a := &GenotypeArena{
		samples:  samples,
		builders: make([]*variant.GenotypeBuilder, len(samples)),
	}
	for i, s := range samples {
		a.builders[i] = variant.NewGenotypeBuilder(s)
	}
	return a
}

// Len is the number of builders.
func (a *GenotypeArena) Len() int { return len(a.builders) }

func (a *GenotypeArena) reset() {
	for i, gb := range a.builders {
		gb.Reset(false)
		gb.Name(a.samples[i])
	}
}

// LazyGenotypesDecoder holds the raw genotypes block of one record and
// decodes it into genotypes on the first Materialize call. It is not safe
// for concurrent use.
type LazyGenotypesDecoder struct {
	raw         []byte
	nFields     int
	nSamples    int
	siteAlleles []variant.Allele
	dict        Dictionary
	fields      *FieldDecoders
	arena       *GenotypeArena
	logger      *zap.Logger

	// context for error messages
	recordNo int
	pos      int

	materialized bool
	decodes      int
	genotypes    []*variant.Genotype
	err          error
}

// Materialize decodes the genotypes block once. Later calls return the
// first result, including a failure.
func (l *LazyGenotypesDecoder) Materialize() ([]*variant.Genotype, error) {
	if l.materialized {
		return l.genotypes, l.err
	}
	l.decodes++
	l.genotypes, l.err = l.decode()
	l.materialized = true
	l.raw = nil
	return l.genotypes, l.err
}

// IsMaterialized reports whether Materialize has run.
func (l *LazyGenotypesDecoder) IsMaterialized() bool { return l.materialized }

func (l *LazyGenotypesDecoder) decode() ([]*variant.Genotype, error) {
	if l.arena.Len() != l.nSamples {
		return nil, l.fail(fmt.Sprintf("genotype arena holds %d samples, record has %d", l.arena.Len(), l.nSamples), nil)
	}
	d := newDecoderFromBytes(l.raw)
	l.arena.reset()
	gbs := l.arena.builders

	for i := 0; i < l.nFields; i++ {
		field, err := decodeDictionaryString(d, l.dict)
		if err != nil {
			return nil, l.fail("decoding FORMAT key", err)
		}
		typeDescriptor, err := d.ReadTypeDescriptor()
		if err != nil {
			return nil, l.fail("decoding FORMAT "+field, err)
		}
		numElements, err := d.DecodeNumberOfElements(typeDescriptor)
		if err != nil {
			return nil, l.fail("decoding FORMAT "+field, err)
		}
		if err := l.fields.Get(field).Decode(l.siteAlleles, field, d, typeDescriptor, numElements, gbs); err != nil {
			return nil, l.fail("decoding FORMAT "+field, err)
		}
	}
	if !d.BlockIsFullyDecoded() {
		l.logger.Debug("genotypes block not fully consumed",
			zap.Int("record", l.recordNo),
			zap.Int("position", l.pos),
			zap.Int("block_size", d.BlockSize()))
	}

	genotypes := make([]*variant.Genotype, len(gbs))
	for i, gb := range gbs {
		genotypes[i] = gb.Make()
	}
	return genotypes, nil
}

func (l *LazyGenotypesDecoder) fail(msg string, err error) error {
	return &FormatError{Record: l.recordNo, Position: l.pos, Msg: msg, Err: err}
}

// decodeDictionaryString reads a typed offset and resolves it.
func decodeDictionaryString(d *Decoder, dict Dictionary) (string, error) {
	v, err := d.DecodeTypedValue()
	if err != nil {
		return "", err
	}
	offset, ok := v.(int)
	if !ok {
		return "", fmt.Errorf("expected a dictionary offset, found %v", v)
	}
	return dict.Lookup(offset)
}

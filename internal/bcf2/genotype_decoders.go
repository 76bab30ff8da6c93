package bcf2

import (
	"fmt"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// Well-known FORMAT keys with dedicated decoders.
const (
	GenotypeKey       = "GT"
	GenotypeFilterKey = "FT"
	DepthKey          = "DP"
	AlleleDepthsKey   = "AD"
	PLKey             = "PL"
	GenotypeQualKey   = "GQ"
)

// FieldDecoder decodes one FORMAT field for every sample. It reads exactly
// len(gbs) groups of numElements values of the descriptor's type and stores
// the results in the matching builder.
type FieldDecoder interface {
	Decode(siteAlleles []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error
}

// FieldDecoders dispatches FORMAT fields to their decoders. It holds no
// per-record state and can be shared.
type FieldDecoders struct {
	decoders map[string]FieldDecoder
	generic  FieldDecoder
}

// NewFieldDecoders returns the table of standard field decoders.
func NewFieldDecoders() *FieldDecoders {
	return &FieldDecoders{
		decoders: map[string]FieldDecoder{
			GenotypeKey:       gtDecoder{},
			GenotypeFilterKey: ftDecoder{},
			DepthKey:          intDecoder{set: (*variant.GenotypeBuilder).DP},
			GenotypeQualKey:   intDecoder{set: (*variant.GenotypeBuilder).GQ},
			AlleleDepthsKey:   intArrayDecoder{set: (*variant.GenotypeBuilder).AD},
			PLKey:             intArrayDecoder{set: (*variant.GenotypeBuilder).PL},
		},
		generic: genericDecoder{},
	}
}

// Get returns the decoder for field, falling back to the generic decoder.
func (f *FieldDecoders) Get(field string) FieldDecoder {
	if d, ok := f.decoders[field]; ok {
		return d
	}
	return f.generic
}

func requireInteger(field string, typeDescriptor byte, expected string) (Type, error) {
	t, err := DecodeType(typeDescriptor)
	if err != nil {
		return 0, err
	}
	if !t.IsIntegerType() {
		return 0, &TypeMismatchError{Field: field, Type: t, Expected: expected}
	}
	return t, nil
}

type gtDecoder struct{}

func (gtDecoder) Decode(siteAlleles []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error {
	t, err := requireInteger(field, typeDescriptor, "integer allele indices")
	if err != nil {
		return err
	}
	if len(siteAlleles) == 2 && numElements == 2 {
		return fastBiallelicDiploidDecode(siteAlleles, d, t, gbs)
	}
	return generalGenotypeDecode(siteAlleles, numElements, d, t, gbs)
}

// fastBiallelicDiploidDecode shares one allele slice per distinct call
// among all samples of the site. Builders copy on Make.
func fastBiallelicDiploidDecode(siteAlleles []variant.Allele, d *Decoder, t Type, gbs []*variant.GenotypeBuilder) error {
	const nPossibleGenotypes = 3 * 3
	var cache [nPossibleGenotypes][]variant.Allele
	missing := t.MissingBytes()

	for _, gb := range gbs {
		a1, err := d.DecodeInt(t)
		if err != nil {
			return err
		}
		a2, err := d.DecodeInt(t)
		if err != nil {
			return err
		}
		switch {
		case a1 == missing:
			gb.Alleles(nil)
		case a2 == missing:
			a, err := alleleFromEncoded(siteAlleles, int(a1))
			if err != nil {
				return err
			}
			gb.Alleles([]variant.Allele{a})
		default:
			i1, i2 := int(a1>>1), int(a2>>1)
			if i1 < 0 || i1 > 2 || i2 < 0 || i2 > 2 {
				return fmt.Errorf("genotype allele index out of range for biallelic site: %d/%d", i1, i2)
			}
			offset := i1*3 + i2
			gt := cache[offset]
			if gt == nil {
				allele1, err := alleleFromEncoded(siteAlleles, int(a1))
				if err != nil {
					return err
				}
				allele2, err := alleleFromEncoded(siteAlleles, int(a2))
				if err != nil {
					return err
				}
				gt = []variant.Allele{allele1, allele2}
				cache[offset] = gt
			}
			gb.Alleles(gt)
		}
		gb.Phased(a1&0x01 == 1)
	}
	return nil
}

func generalGenotypeDecode(siteAlleles []variant.Allele, ploidy int, d *Decoder, t Type, gbs []*variant.GenotypeBuilder) error {
	// scratch for the encoded values; only the decoded alleles are kept
	tmp := make([]int, ploidy)
	for _, gb := range gbs {
		encoded, err := d.DecodeIntArray(ploidy, t, tmp)
		if err != nil {
			return err
		}
		if encoded == nil {
			gb.Alleles(nil)
			continue
		}
		// truncation at the first missing value gives mixed ploidy per sample
		gt := make([]variant.Allele, 0, len(encoded))
		for _, encode := range encoded {
			a, err := alleleFromEncoded(siteAlleles, encode)
			if err != nil {
				return err
			}
			gt = append(gt, a)
		}
		gb.Alleles(gt)
		gb.Phased(encoded[0]&0x01 == 1)
	}
	return nil
}

// alleleFromEncoded maps (index+1)<<1|phased back to a site allele; index
// zero is a no-call.
func alleleFromEncoded(siteAlleles []variant.Allele, encode int) (variant.Allele, error) {
	offset := encode >> 1
	if offset == 0 {
		return variant.NoCall, nil
	}
	if offset < 0 || offset > len(siteAlleles) {
		return variant.Allele{}, fmt.Errorf("genotype allele index %d out of range for %d site alleles", offset-1, len(siteAlleles))
	}
	return siteAlleles[offset-1], nil
}

// intDecoder handles single integer fields, missing becomes variant.Missing.
type intDecoder struct {
	set func(*variant.GenotypeBuilder, int) *variant.GenotypeBuilder
}

func (dec intDecoder) Decode(_ []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error {
	t, err := requireInteger(field, typeDescriptor, "a single integer")
	if err != nil {
		return err
	}
	if numElements != 1 {
		return &TypeMismatchError{Field: field, Type: t, Expected: "a single integer"}
	}
	for _, gb := range gbs {
		v, err := d.DecodeIntOrMissing(typeDescriptor, variant.Missing)
		if err != nil {
			return err
		}
		dec.set(gb, v)
	}
	return nil
}

// intArrayDecoder handles AD and PL.
type intArrayDecoder struct {
	set func(*variant.GenotypeBuilder, []int) *variant.GenotypeBuilder
}

func (dec intArrayDecoder) Decode(_ []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error {
	t, err := requireInteger(field, typeDescriptor, "an integer vector")
	if err != nil {
		return err
	}
	for _, gb := range gbs {
		values, err := d.DecodeIntArray(numElements, t, nil)
		if err != nil {
			return err
		}
		dec.set(gb, values)
	}
	return nil
}

type ftDecoder struct{}

func (ftDecoder) Decode(_ []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error {
	for _, gb := range gbs {
		v, err := d.DecodeTypedValueOfSize(typeDescriptor, numElements)
		if err != nil {
			return err
		}
		switch s := v.(type) {
		case nil:
			gb.Filter("")
		case string:
			gb.Filter(s)
		default:
			t, _ := DecodeType(typeDescriptor)
			return &TypeMismatchError{Field: field, Type: t, Expected: "a filter string"}
		}
	}
	return nil
}

// genericDecoder stores any other field as an extended attribute. Missing
// values are not stored, and a vector pruned down to one element is stored
// as a scalar.
type genericDecoder struct{}

func (genericDecoder) Decode(_ []variant.Allele, field string, d *Decoder, typeDescriptor byte, numElements int, gbs []*variant.GenotypeBuilder) error {
	for _, gb := range gbs {
		v, err := d.DecodeTypedValueOfSize(typeDescriptor, numElements)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		gb.Attribute(field, unwrapSingleton(v))
	}
	return nil
}

func unwrapSingleton(v any) any {
	switch vs := v.(type) {
	case []int:
		if len(vs) == 1 {
			return vs[0]
		}
	case []float64:
		if len(vs) == 1 {
			return vs[0]
		}
	case []string:
		if len(vs) == 1 {
			return vs[0]
		}
	}
	return v
}

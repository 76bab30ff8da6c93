package bcf2

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// blockWriter builds BCF2 blocks for tests.
type blockWriter struct {
	buf bytes.Buffer
}

func (w *blockWriter) bytes() []byte { return w.buf.Bytes() }

func (w *blockWriter) descriptor(n int, t Type) {
	w.buf.WriteByte(EncodeTypeDescriptor(n, t))
}

func (w *blockWriter) raw(t Type, v int32) {
	switch t {
	case Int8, Char:
		w.buf.WriteByte(byte(v))
	case Int16:
		binary.Write(&w.buf, binary.LittleEndian, int16(v))
	case Int32, Float:
		binary.Write(&w.buf, binary.LittleEndian, v)
	}
}

func (w *blockWriter) missing() { w.descriptor(0, Missing) }

func (w *blockWriter) typedInt(v int) {
	t, err := DetermineIntegerType(int64(v))
	if err != nil {
		panic(err)
	}
	w.descriptor(1, t)
	w.raw(t, int32(v))
}

// typedInts writes a vector, using an overflow count past 14 elements.
func (w *blockWriter) typedInts(t Type, values ...int32) {
	if len(values) > MaxInlineElements {
		w.descriptor(OverflowElementMarker, t)
		w.typedInt(len(values))
	} else {
		w.descriptor(len(values), t)
	}
	for _, v := range values {
		w.raw(t, v)
	}
}

func (w *blockWriter) typedString(s string) {
	if s == "" {
		w.missing()
		return
	}
	if len(s) > MaxInlineElements {
		w.descriptor(OverflowElementMarker, Char)
		w.typedInt(len(s))
	} else {
		w.descriptor(len(s), Char)
	}
	w.buf.WriteString(s)
}

func floatBits(f float32) int32 { return int32(math.Float32bits(f)) }

type infoKV struct {
	key   int
	write func(w *blockWriter)
}

// testSite describes a sites block. A nil filter is encoded as missing.
type testSite struct {
	contig   int
	start0   int
	qual     *float32
	id       string
	alleles  []string
	filter   []int
	info     []infoKV
	nFormat  int
	nSamples int
}

func (s testSite) encode() []byte {
	w := &blockWriter{}
	w.raw(Int32, int32(s.contig))
	w.raw(Int32, int32(s.start0))
	w.raw(Int32, int32(len(s.alleles[0])))
	if s.qual == nil {
		w.raw(Float, floatMissingBits)
	} else {
		w.raw(Float, floatBits(*s.qual))
	}
	w.raw(Int32, int32(len(s.alleles)<<16|len(s.info)))
	w.raw(Int32, int32(s.nFormat<<24|s.nSamples))
	w.typedString(s.id)
	for _, a := range s.alleles {
		w.typedString(a)
	}
	switch len(s.filter) {
	case 0:
		if s.filter == nil {
			w.missing()
		} else {
			w.typedInts(Int8)
		}
	case 1:
		w.typedInt(s.filter[0])
	default:
		values := make([]int32, len(s.filter))
		for i, f := range s.filter {
			values[i] = int32(f)
		}
		w.typedInts(Int8, values...)
	}
	for _, kv := range s.info {
		w.typedInt(kv.key)
		kv.write(w)
	}
	return w.bytes()
}

// testField is one FORMAT field: n values of type t per sample, all samples
// concatenated in values.
type testField struct {
	key    int
	n      int
	t      Type
	values []int32
}

func genotypesBlock(fields ...testField) []byte {
	w := &blockWriter{}
	for _, f := range fields {
		w.typedInt(f.key)
		w.descriptor(f.n, f.t)
		for _, v := range f.values {
			w.raw(f.t, v)
		}
	}
	return w.bytes()
}

type testRecord struct {
	sites     []byte
	genotypes []byte
}

// bcfStream assembles a complete uncompressed BCF2.2 stream.
func bcfStream(headerText string, records ...testRecord) []byte {
	var buf bytes.Buffer
	buf.Write(Magic)
	buf.WriteByte(2)
	buf.WriteByte(2)
	header := append([]byte(headerText), 0)
	binary.Write(&buf, binary.LittleEndian, int32(len(header)))
	buf.Write(header)
	for _, r := range records {
		binary.Write(&buf, binary.LittleEndian, int32(len(r.sites)))
		binary.Write(&buf, binary.LittleEndian, int32(len(r.genotypes)))
		buf.Write(r.sites)
		buf.Write(r.genotypes)
	}
	return buf.Bytes()
}

// Dictionary offsets of testHeader:
// PASS=0 LowQual=1 DP=2 DB=3 AF=4 GT=5 GQ=6 AD=7 PL=8 FT=9 HQ=10.
const (
	offPASS = iota
	offLowQual
	offDP
	offDB
	offAF
	offGT
	offGQ
	offAD
	offPL
	offFT
	offHQ
)

const testHeader = `##fileformat=VCFv4.1
##FILTER=<ID=PASS,Description="All filters passed">
##FILTER=<ID=LowQual,Description="Low quality">
##INFO=<ID=DP,Number=1,Type=Integer,Description="Total depth">
##INFO=<ID=DB,Number=0,Type=Flag,Description="dbSNP membership">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Phred-scaled likelihoods">
##FORMAT=<ID=FT,Number=1,Type=String,Description="Sample filter">
##FORMAT=<ID=HQ,Number=2,Type=Float,Description="Haplotype quality">
##contig=<ID=chr1,length=248956422>
##contig=<ID=chr2,length=242193529>
##contig=<ID=chrX,length=156040895>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
`

const sitesOnlyHeader = `##fileformat=VCFv4.1
##INFO=<ID=DP,Number=1,Type=Integer,Description="Total depth">
##contig=<ID=chr1,length=248956422>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
`

// gt encodes a call on allele index i.
func gt(i int, phased bool) int32 {
	v := int32((i + 1) << 1)
	if phased {
		v |= 1
	}
	return v
}

// snvRecord is chr1:100 A>T with the given FORMAT fields for two samples.
func snvRecord(fields ...testField) testRecord {
	site := testSite{
		contig:   0,
		start0:   99,
		alleles:  []string{"A", "T"},
		nFormat:  len(fields),
		nSamples: 2,
	}
	return testRecord{sites: site.encode(), genotypes: genotypesBlock(fields...)}
}

func newTestCodec(t *testing.T, headerText string) *Codec {
	t.Helper()
	c := NewCodec()
	_, err := c.ReadHeader(bytes.NewReader(bcfStream(headerText)))
	require.NoError(t, err)
	return c
}

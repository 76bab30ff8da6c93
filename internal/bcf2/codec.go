// Package bcf2 decodes BCF2 binary variant files into variant records.
package bcf2

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/variant"
	"github.com/broadinstitute/picard-sub013/internal/vcf"
)

// Codec decodes a BCF2 stream: ReadHeader once, then Decode per record.
// Records must be decoded in stream order by a single goroutine.
type Codec struct {
	logger *zap.Logger

	version Version
	header  *vcf.Header
	contigs ContigTable
	dict    Dictionary
	fields  *FieldDecoders
	arena   *GenotypeArena
	decoder *Decoder

	arenaPerRecord bool
	eager          bool
	sitesOnly      bool

	warnedKeys map[string]bool

	// for error messages
	recordNo int
	pos      int
}

// NewCodec creates a codec with a no-op logger.
func NewCodec() *Codec {
	return &Codec{
		logger:     zap.NewNop(),
		decoder:    NewDecoder(),
		fields:     NewFieldDecoders(),
		warnedKeys: make(map[string]bool),
	}
}

// SetLogger sets the logger for warnings and debug diagnostics.
func (c *Codec) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetArenaPerRecord gives every record its own genotype arena so lazy
// genotypes of different records can be materialized in any order or in
// parallel.
func (c *Codec) SetArenaPerRecord(v bool) {
	c.arenaPerRecord = v
}

// SetEagerGenotypes materializes genotypes while decoding each record.
func (c *Codec) SetEagerGenotypes(v bool) {
	c.eager = v
}

// SetSitesOnly skips genotype blocks; records carry no genotypes.
func (c *Codec) SetSitesOnly(v bool) {
	c.sitesOnly = v
}

// Header returns the parsed header, nil before ReadHeader.
func (c *Codec) Header() *vcf.Header { return c.header }

// Version returns the file version read by ReadHeader.
func (c *Codec) Version() Version { return c.version }

// Dictionary returns the string dictionary.
func (c *Codec) Dictionary() Dictionary { return c.dict }

// Contigs returns the contig table.
func (c *Codec) Contigs() ContigTable { return c.contigs }

// RecordNumber is the 1-based number of the last record started.
func (c *Codec) RecordNumber() int { return c.recordNo }

// ReadHeader consumes the magic, version and text header and prepares the
// dictionary, contig table and genotype arena.
func (c *Codec) ReadHeader(r io.Reader) (*vcf.Header, error) {
	v, err := ReadVersion(r)
	if err != nil {
		return nil, c.fail("", err)
	}
	if err := checkVersion(v); err != nil {
		return nil, c.fail("", err)
	}
	c.version = v
	c.logger.Debug("parsing BCF stream", zap.String("version", v.String()))

	headerSize, err := ReadBlockSize(r)
	if err != nil {
		return nil, c.fail("reading header length", err)
	}
	if headerSize <= 0 || headerSize > MaxHeaderSize {
		return nil, c.fail(fmt.Sprintf("BCF2 header has invalid length: %d must be > 0 and <= %d", headerSize, MaxHeaderSize), nil)
	}
	headerBytes, err := readRecordBytes(int(headerSize), r)
	if err != nil {
		return nil, c.fail(fmt.Sprintf("couldn't read all of the bytes specified in the header length = %d", headerSize), err)
	}
	header, err := vcf.ParseHeader(bytes.NewReader(headerBytes))
	if err != nil {
		return nil, c.fail("parsing BCF2 header", err)
	}

	contigs, err := MakeContigTable(header)
	if err != nil {
		return nil, c.fail("", err)
	}
	dict, err := MakeDictionary(header)
	if err != nil {
		return nil, c.fail("", err)
	}

	c.header = header
	c.contigs = contigs
	c.dict = dict
	c.arena = NewGenotypeArena(header.Samples())
	return header, nil
}

// Decode reads one record. It returns io.EOF when the stream ends cleanly
// before a record; any other error is fatal for the stream.
func (c *Codec) Decode(r io.Reader) (*variant.Context, error) {
	if c.header == nil {
		return nil, errors.New("bcf2: Decode called before ReadHeader")
	}
	sitesBlockSize, err := ReadBlockSize(r)
	if err == io.EOF {
		return nil, io.EOF
	}
	c.recordNo++
	c.pos = 0
	if err != nil {
		return nil, c.fail("reading sites block size", err)
	}
	genotypesBlockSize, err := ReadBlockSize(r)
	if err != nil {
		return nil, c.fail("reading genotypes block size", err)
	}

	if err := c.decoder.ReadNextBlock(int(sitesBlockSize), r); err != nil {
		return nil, c.fail("reading sites block", err)
	}
	builder := variant.NewBuilder()
	if err := c.decodeSiteLoc(builder); err != nil {
		return nil, err
	}
	info, err := c.decodeSitesExtendedInfo(builder)
	if err != nil {
		return nil, err
	}
	if !c.decoder.BlockIsFullyDecoded() {
		c.logger.Debug("sites block not fully consumed",
			zap.Int("record", c.recordNo),
			zap.Int("position", c.pos),
			zap.Int("block_size", c.decoder.BlockSize()))
	}

	if c.sitesOnly {
		if err := c.decoder.SkipNextBlock(int(genotypesBlockSize), r); err != nil {
			return nil, c.fail("skipping genotypes block", err)
		}
	} else {
		if err := c.decoder.ReadNextBlock(int(genotypesBlockSize), r); err != nil {
			return nil, c.fail("reading genotypes block", err)
		}
		if err := c.createLazyGenotypesDecoder(info, builder); err != nil {
			return nil, err
		}
	}

	vc, err := builder.FullyDecoded(true).Make()
	if err != nil {
		return nil, c.fail("invalid record", err)
	}
	return vc, nil
}

// decodeSiteLoc reads the untyped contig, start and reference length.
func (c *Codec) decodeSiteLoc(builder *variant.Builder) error {
	contigOffset, err := c.decoder.DecodeInt(Int32)
	if err != nil {
		return c.fail("decoding contig", err)
	}
	contig, err := c.contigs.Lookup(int(contigOffset))
	if err != nil {
		return c.fail("decoding contig", err)
	}
	builder.Chr(contig)

	start, err := c.decoder.DecodeInt(Int32)
	if err != nil {
		return c.fail("decoding start", err)
	}
	// BCF2 is 0-based, records are 1-based
	c.pos = int(start) + 1

	refLength, err := c.decoder.DecodeInt(Int32)
	if err != nil {
		return c.fail("decoding reference length", err)
	}
	builder.Start(int64(c.pos))
	builder.Stop(int64(c.pos) + int64(refLength) - 1)
	return nil
}

type sitesInfo struct {
	nFormatFields int
	nSamples      int
	alleles       []variant.Allele
}

func (s sitesInfo) isValid() bool {
	return s.nFormatFields >= 0 &&
		s.nSamples >= 0 &&
		len(s.alleles) > 0 && s.alleles[0].IsReference()
}

func (s sitesInfo) String() string {
	return fmt.Sprintf("nFormatFields = %d, nSamples = %d, alleles = %v", s.nFormatFields, s.nSamples, s.alleles)
}

func (c *Codec) decodeSitesExtendedInfo(builder *variant.Builder) (sitesInfo, error) {
	qual, err := c.decoder.DecodeSingleValue(Float)
	if err != nil {
		return sitesInfo{}, c.fail("decoding QUAL", err)
	}
	if q, ok := qual.(float64); ok {
		builder.Log10PError(q / -10.0)
	}

	nAlleleInfo, err := c.decoder.DecodeInt(Int32)
	if err != nil {
		return sitesInfo{}, c.fail("decoding allele/info counts", err)
	}
	nFormatSamples, err := c.decoder.DecodeInt(Int32)
	if err != nil {
		return sitesInfo{}, c.fail("decoding format/sample counts", err)
	}
	nAlleles := int(nAlleleInfo >> 16)
	nInfo := int(nAlleleInfo & 0x0000FFFF)
	nFormatFields := int(nFormatSamples >> 24)
	nSamples := int(nFormatSamples & 0x00FFFFFF)

	if c.header.NumSamples() != nSamples {
		return sitesInfo{}, c.fail(fmt.Sprintf("reading BCF2 files with different numbers of samples per record is not currently supported; saw %d samples in header but have a record with %d samples",
			c.header.NumSamples(), nSamples), nil)
	}

	if err := c.decodeID(builder); err != nil {
		return sitesInfo{}, err
	}
	alleles, err := c.decodeAlleles(builder, nAlleles)
	if err != nil {
		return sitesInfo{}, err
	}
	if err := c.decodeFilter(builder); err != nil {
		return sitesInfo{}, err
	}
	if err := c.decodeInfo(builder, nInfo); err != nil {
		return sitesInfo{}, err
	}

	info := sitesInfo{nFormatFields: nFormatFields, nSamples: nSamples, alleles: alleles}
	if !info.isValid() {
		return sitesInfo{}, c.fail("sites info is malformed: "+info.String(), nil)
	}
	return info, nil
}

func (c *Codec) decodeID(builder *variant.Builder) error {
	v, err := c.decoder.DecodeTypedValue()
	if err != nil {
		return c.fail("decoding ID", err)
	}
	switch id := v.(type) {
	case nil:
		builder.NoID()
	case string:
		builder.ID(id)
	default:
		return c.fail(fmt.Sprintf("ID field is not a string: %v", v), nil)
	}
	return nil
}

func (c *Codec) decodeAlleles(builder *variant.Builder, nAlleles int) ([]variant.Allele, error) {
	if nAlleles <= 0 {
		return nil, c.fail(fmt.Sprintf("record has %d alleles, need at least the reference", nAlleles), nil)
	}
	alleles := make([]variant.Allele, 0, nAlleles)
	for i := 0; i < nAlleles; i++ {
		v, err := c.decoder.DecodeTypedValue()
		if err != nil {
			return nil, c.fail(fmt.Sprintf("decoding allele %d", i), err)
		}
		bases, ok := v.(string)
		if !ok {
			return nil, c.fail(fmt.Sprintf("allele %d is not a string: %v", i, v), nil)
		}
		a, err := variant.NewAllele(bases, i == 0)
		if err != nil {
			return nil, c.fail(fmt.Sprintf("decoding allele %d", i), err)
		}
		alleles = append(alleles, a)
	}
	builder.Alleles(alleles)
	return alleles, nil
}

// decodeFilter distinguishes unfiltered (missing), PASS and named filters.
func (c *Codec) decodeFilter(builder *variant.Builder) error {
	v, err := c.decoder.DecodeTypedValue()
	if err != nil {
		return c.fail("decoding FILTER", err)
	}
	switch offsets := v.(type) {
	case nil:
		builder.Unfiltered()
	case int:
		name, err := c.dict.Lookup(offsets)
		if err != nil {
			return c.fail("decoding FILTER", err)
		}
		if name == PassFilter {
			builder.PassFilters()
		} else {
			builder.Filter(name)
		}
	case []int:
		for _, offset := range offsets {
			name, err := c.dict.Lookup(offset)
			if err != nil {
				return c.fail("decoding FILTER", err)
			}
			builder.Filter(name)
		}
	default:
		return c.fail(fmt.Sprintf("FILTER field is not a dictionary offset: %v", v), nil)
	}
	return nil
}

func (c *Codec) decodeInfo(builder *variant.Builder, nInfo int) error {
	if nInfo == 0 {
		return nil
	}
	attrs := make(map[string]any, nInfo)
	for i := 0; i < nInfo; i++ {
		key, err := decodeDictionaryString(c.decoder, c.dict)
		if err != nil {
			return c.fail("decoding INFO key", err)
		}
		value, err := c.decoder.DecodeTypedValue()
		if err != nil {
			return c.fail("decoding INFO "+key, err)
		}
		meta, ok := c.header.MetaDataForField(key)
		if !ok && !c.warnedKeys[key] {
			c.warnedKeys[key] = true
			c.logger.Warn("INFO field missing from header, treating as unbounded String",
				zap.String("key", key),
				zap.Int("record", c.recordNo))
		}
		if ok && meta.Type == vcf.Flag {
			value = true
		}
		attrs[key] = value
	}
	builder.Attributes(attrs)
	return nil
}

// createLazyGenotypesDecoder attaches the raw genotypes block as a lazy
// collection, forcing it when the header reordered samples or eager decoding
// is on.
func (c *Codec) createLazyGenotypesDecoder(info sitesInfo, builder *variant.Builder) error {
	if info.nSamples == 0 {
		return nil
	}
	arena := c.arena
	if c.arenaPerRecord {
		arena = NewGenotypeArena(c.header.Samples())
	}
	lazy := &LazyGenotypesDecoder{
		raw:         c.decoder.RecordBytes(),
		nFields:     info.nFormatFields,
		nSamples:    info.nSamples,
		siteAlleles: info.alleles,
		dict:        c.dict,
		fields:      c.fields,
		arena:       arena,
		logger:      c.logger,
		recordNo:    c.recordNo,
		pos:         c.pos,
	}
	gs := variant.NewLazyGenotypes(lazy, c.header.NumSamples())
	if !c.header.SamplesWereAlreadySorted() || c.eager {
		if err := gs.Decode(); err != nil {
			return err
		}
	}
	builder.Genotypes(gs)
	return nil
}

func (c *Codec) fail(msg string, err error) error {
	return &FormatError{Record: c.recordNo, Position: c.pos, Msg: msg, Err: err}
}

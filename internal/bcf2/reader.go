package bcf2

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/variant"
	"github.com/broadinstitute/picard-sub013/internal/vcf"
)

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used by the reader and its codec.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// WithArenaPerRecord allocates a genotype arena per record. Required when
// records are materialized out of order or from several goroutines.
func WithArenaPerRecord() Option {
	return func(r *Reader) { r.arenaPerRecord = true }
}

// WithEagerGenotypes decodes genotypes as each record is read.
func WithEagerGenotypes() Option {
	return func(r *Reader) { r.eager = true }
}

// WithSitesOnly skips genotype blocks entirely.
func WithSitesOnly() Option {
	return func(r *Reader) { r.sitesOnly = true }
}

// WithParallelism sets the BGZF decompression parallelism for Open.
func WithParallelism(n int) Option {
	return func(r *Reader) { r.parallelism = n }
}

// Reader is one open BCF2 file session. It owns its dictionary, contig
// table and genotype arena.
type Reader struct {
	logger         *zap.Logger
	arenaPerRecord bool
	eager          bool
	sitesOnly      bool
	parallelism    int

	codec   *Codec
	in      *countingReader
	header  *vcf.Header
	closers []io.Closer
	done    bool
}

var _ vcf.Source = (*Reader)(nil)

// Open opens a BCF2 file, uncompressed or BGZF/gzip compressed.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open BCF file: %w", err)
	}
	r := newReader(opts)
	in, closer, err := decompress(f, r.parallelism)
	if err != nil {
		f.Close()
		return nil, err
	}
	if closer != nil {
		r.closers = append(r.closers, closer)
	}
	r.closers = append(r.closers, f)
	if err := r.init(in); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads an uncompressed BCF2 stream from in and consumes its header.
func NewReader(in io.Reader, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	if err := r.init(in); err != nil {
		return nil, err
	}
	return r, nil
}

func newReader(opts []Option) *Reader {
	r := &Reader{logger: zap.NewNop(), parallelism: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) init(in io.Reader) error {
	r.in = &countingReader{r: bufio.NewReaderSize(in, 1<<16)}
	r.codec = NewCodec()
	r.codec.SetLogger(r.logger)
	r.codec.SetArenaPerRecord(r.arenaPerRecord)
	r.codec.SetEagerGenotypes(r.eager)
	r.codec.SetSitesOnly(r.sitesOnly)

	header, err := r.codec.ReadHeader(r.in)
	if err != nil {
		return err
	}
	r.header = header
	r.logger.Debug("read BCF2 header",
		zap.String("version", r.codec.Version().String()),
		zap.Int("samples", header.NumSamples()),
		zap.Int("contigs", r.codec.Contigs().Len()),
		zap.Int("dictionary", r.codec.Dictionary().Len()),
		zap.Int64("first_record_offset", r.in.n))
	return nil
}

// Next returns the next record, or nil, nil at the end of the stream.
func (r *Reader) Next() (*variant.Context, error) {
	if r.done {
		return nil, nil
	}
	vc, err := r.codec.Decode(r.in)
	if err == io.EOF {
		r.done = true
		return nil, nil
	}
	if err != nil {
		r.done = true
		return nil, err
	}
	return vc, nil
}

// Header returns the parsed text header.
func (r *Reader) Header() *vcf.Header { return r.header }

// Dictionary returns the file's string dictionary.
func (r *Reader) Dictionary() Dictionary { return r.codec.Dictionary() }

// Contigs returns the file's contig table.
func (r *Reader) Contigs() ContigTable { return r.codec.Contigs() }

// Version returns the file version.
func (r *Reader) Version() Version { return r.codec.Version() }

// RecordNumber is the 1-based number of the last record started.
func (r *Reader) RecordNumber() int { return r.codec.RecordNumber() }

// Position is the offset of the next unread byte in the decompressed stream.
func (r *Reader) Position() int64 { return r.in.n }

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	bgzfExtra = []byte{'B', 'C'}
)

// decompress sniffs the stream and unwraps BGZF or gzip compression. The
// returned closer is nil for uncompressed input.
func decompress(in io.Reader, parallelism int) (io.Reader, io.Closer, error) {
	br := bufio.NewReaderSize(in, 1<<16)
	head, err := br.Peek(18)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, fmt.Errorf("cannot inspect input: %w", err)
	}
	if !bytes.HasPrefix(head, gzipMagic) {
		return br, nil, nil
	}
	if isBGZF(head) {
		bz, err := bgzf.NewReader(br, parallelism)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open BGZF input: %w", err)
		}
		return bz, bz, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open gzip input: %w", err)
	}
	return gz, gz, nil
}

// isBGZF checks for the FEXTRA flag and the BC subfield of a BGZF block header.
func isBGZF(head []byte) bool {
	return len(head) >= 14 && head[3]&0x04 != 0 && bytes.Equal(head[12:14], bgzfExtra)
}

package bcf2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Decoder reads typed values from one in-memory block with a forward-only
// cursor. It is reused across records; each ReadNextBlock replaces the block.
type Decoder struct {
	recordBytes []byte
	off         int
}

// NewDecoder returns a decoder with no block loaded.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// newDecoderFromBytes opens a decoder over an existing block.
func newDecoderFromBytes(b []byte) *Decoder {
	d := &Decoder{}
	d.SetRecordBytes(b)
	return d
}

// ReadBlockSize reads one little-endian int32 block length from r. It returns
// io.EOF only if r was exhausted before the first byte.
func ReadBlockSize(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return Int32.ReadRaw(buf[:]), nil
}

// ReadNextBlock loads exactly size bytes from r as the current block.
func (d *Decoder) ReadNextBlock(size int, r io.Reader) error {
	if size < 0 {
		return fmt.Errorf("invalid block size %d", size)
	}
	b, err := readRecordBytes(size, r)
	if err != nil {
		return err
	}
	d.SetRecordBytes(b)
	return nil
}

// SkipNextBlock discards size bytes from r and invalidates the current block.
func (d *Decoder) SkipNextBlock(size int, r io.Reader) error {
	if size < 0 {
		return fmt.Errorf("invalid block size %d", size)
	}
	n, err := io.CopyN(io.Discard, r, int64(size))
	if err != nil {
		return fmt.Errorf("failed to skip next complete record: expected %d bytes but skipped only %d: %w", size, n, err)
	}
	d.recordBytes = nil
	d.off = 0
	return nil
}

// initialBlockCap bounds the up-front allocation for one block.
const initialBlockCap = 1 << 20

// readRecordBytes fills a fresh buffer, accumulating across short reads.
func readRecordBytes(size int, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(min(size, initialBlockCap))
	n, err := io.CopyN(&buf, r, int64(size))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("failed to read next complete record: expected %d bytes but read only %d: %w", size, n, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("I/O error while reading BCF2 file: %w", err)
	}
	return buf.Bytes(), nil
}

// SetRecordBytes makes b the current block.
func (d *Decoder) SetRecordBytes(b []byte) {
	d.recordBytes = b
	d.off = 0
}

// RecordBytes returns the current block.
func (d *Decoder) RecordBytes() []byte { return d.recordBytes }

// BlockSize is the size of the current block in bytes.
func (d *Decoder) BlockSize() int { return len(d.recordBytes) }

// BlockIsFullyDecoded reports whether every byte of the block was consumed.
func (d *Decoder) BlockIsFullyDecoded() bool { return d.off >= len(d.recordBytes) }

func (d *Decoder) next(n int) ([]byte, error) {
	if d.off+n > len(d.recordBytes) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncatedBlock, n, d.off, len(d.recordBytes))
	}
	b := d.recordBytes[d.off : d.off+n]
	d.off += n
	return b, nil
}

// ReadTypeDescriptor reads one descriptor byte.
func (d *Decoder) ReadTypeDescriptor() (byte, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// DecodeInt reads one raw value of type t. Missing values come back as
// t.MissingBytes().
func (d *Decoder) DecodeInt(t Type) (int32, error) {
	size := t.Size()
	if size == 0 {
		return 0, fmt.Errorf("cannot read a value of type %s", t)
	}
	b, err := d.next(size)
	if err != nil {
		return 0, err
	}
	return t.ReadRaw(b), nil
}

// DecodeIntOrMissing reads a single integer described by typeDescriptor,
// returning missingValue if the stream holds the missing sentinel.
func (d *Decoder) DecodeIntOrMissing(typeDescriptor byte, missingValue int) (int, error) {
	t, err := DecodeType(typeDescriptor)
	if err != nil {
		return 0, err
	}
	v, err := d.DecodeInt(t)
	if err != nil {
		return 0, err
	}
	if v == t.MissingBytes() {
		return missingValue, nil
	}
	return int(v), nil
}

// DecodeNumberOfElements returns the element count of a descriptor, reading
// the overflow count from the stream when the count nibble is 15.
func (d *Decoder) DecodeNumberOfElements(typeDescriptor byte) (int, error) {
	if !SizeIsOverflow(typeDescriptor) {
		return DecodeSize(typeDescriptor), nil
	}
	countDescriptor, err := d.ReadTypeDescriptor()
	if err != nil {
		return 0, err
	}
	n, err := d.DecodeIntOrMissing(countDescriptor, -1)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid overflow element count %d", n)
	}
	return n, nil
}

// DecodeTypedValue reads a descriptor and the value it describes.
//
// The result is nil, int, float64, string, []int, []float64 or []string.
func (d *Decoder) DecodeTypedValue() (any, error) {
	typeDescriptor, err := d.ReadTypeDescriptor()
	if err != nil {
		return nil, err
	}
	return d.DecodeTypedValueWithDescriptor(typeDescriptor)
}

// DecodeTypedValueWithDescriptor decodes the value of an already read descriptor.
func (d *Decoder) DecodeTypedValueWithDescriptor(typeDescriptor byte) (any, error) {
	size, err := d.DecodeNumberOfElements(typeDescriptor)
	if err != nil {
		return nil, err
	}
	return d.DecodeTypedValueOfSize(typeDescriptor, size)
}

// DecodeTypedValueOfSize decodes size elements of the descriptor's type.
// Missing elements of a vector are dropped; a vector with no present
// elements decodes to nil.
func (d *Decoder) DecodeTypedValueOfSize(typeDescriptor byte, size int) (any, error) {
	t, err := DecodeType(typeDescriptor)
	if err != nil {
		return nil, err
	}
	switch {
	case size == 0:
		return nil, nil
	case t == Char:
		return d.decodeLiteralString(size)
	case size == 1:
		return d.DecodeSingleValue(t)
	case t == Float:
		var floats []float64
		for i := 0; i < size; i++ {
			raw, err := d.DecodeInt(t)
			if err != nil {
				return nil, err
			}
			if raw == t.MissingBytes() {
				continue
			}
			floats = append(floats, rawFloatToFloat(raw))
		}
		if len(floats) == 0 {
			return nil, nil
		}
		return floats, nil
	case t.IsIntegerType():
		var ints []int
		for i := 0; i < size; i++ {
			raw, err := d.DecodeInt(t)
			if err != nil {
				return nil, err
			}
			if raw == t.MissingBytes() {
				continue
			}
			ints = append(ints, int(raw))
		}
		if len(ints) == 0 {
			return nil, nil
		}
		return ints, nil
	}
	return nil, fmt.Errorf("BCF2 codec doesn't know how to decode %d elements of type %s", size, t)
}

// DecodeSingleValue reads one scalar of type t, nil if it is missing.
func (d *Decoder) DecodeSingleValue(t Type) (any, error) {
	raw, err := d.DecodeInt(t)
	if err != nil {
		return nil, err
	}
	if raw == t.MissingBytes() {
		return nil, nil
	}
	switch t {
	case Int8, Int16, Int32:
		return int(raw), nil
	case Float:
		return rawFloatToFloat(raw), nil
	case Char:
		return int(raw & 0xFF), nil
	}
	return nil, fmt.Errorf("BCF2 codec doesn't know how to decode type %s", t)
}

// decodeLiteralString reads size bytes as a NUL-terminated string. Strings
// starting with a comma are exploded into a []string.
func (d *Decoder) decodeLiteralString(size int) (any, error) {
	b, err := d.next(size)
	if err != nil {
		return nil, err
	}
	goodLength := 0
	for ; goodLength < len(b); goodLength++ {
		if b[goodLength] == 0 {
			break
		}
	}
	if goodLength == 0 {
		return nil, nil
	}
	s := string(b[:goodLength])
	if IsCollapsedString(s) {
		return ExplodeStringList(s), nil
	}
	return s, nil
}

// DecodeIntArray reads size integers of type t.
//
// If the first element is missing the whole vector is missing and nil is
// returned. Otherwise the result holds the elements before the first missing
// one. The remaining elements are always consumed. dest is reused when it
// can hold size elements.
func (d *Decoder) DecodeIntArray(size int, t Type, dest []int) ([]int, error) {
	if size == 0 {
		return nil, nil
	}
	missing := t.MissingBytes()
	first, err := d.DecodeInt(t)
	if err != nil {
		return nil, err
	}
	if first == missing {
		for i := 1; i < size; i++ {
			if _, err := d.DecodeInt(t); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	ints := dest
	if cap(ints) < size {
		ints = make([]int, size)
	}
	ints = ints[:size]
	ints[0] = int(first)
	for i := 1; i < size; i++ {
		v, err := d.DecodeInt(t)
		if err != nil {
			return nil, err
		}
		if v == missing {
			for j := i + 1; j < size; j++ {
				if _, err := d.DecodeInt(t); err != nil {
					return nil, err
				}
			}
			return ints[:i], nil
		}
		ints[i] = int(v)
	}
	return ints, nil
}

// DecodeIntArrayWithDescriptor is DecodeIntArray with a fresh result slice.
func (d *Decoder) DecodeIntArrayWithDescriptor(typeDescriptor byte, size int) ([]int, error) {
	t, err := DecodeType(typeDescriptor)
	if err != nil {
		return nil, err
	}
	return d.DecodeIntArray(size, t, nil)
}

// rawFloatToFloat reinterprets the bits as float32 and widens once.
func rawFloatToFloat(raw int32) float64 {
	return float64(math.Float32frombits(uint32(raw)))
}

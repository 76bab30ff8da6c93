package bcf2

import (
	"bytes"
	"io"
	"math"
	"runtime"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTypes = []Type{Missing, Int8, Int16, Int32, Float, Char}

func TestTypeDescriptor_RoundTrip(t *testing.T) {
	for _, typ := range allTypes {
		for n := 0; n <= MaxInlineElements; n++ {
			td := EncodeTypeDescriptor(n, typ)
			assert.Equal(t, n, DecodeSize(td))
			decoded, err := DecodeType(td)
			require.NoError(t, err)
			assert.Equal(t, typ, decoded)
			assert.False(t, SizeIsOverflow(td))
		}
	}
	assert.True(t, SizeIsOverflow(EncodeTypeDescriptor(OverflowElementMarker, Int8)))
}

func TestDecodeType_Unrecognized(t *testing.T) {
	for _, id := range []byte{4, 6, 8, 15} {
		_, err := DecodeType(0x10 | id)
		assert.ErrorIs(t, err, ErrUnrecognizedType, "type id %d", id)
	}
}

func TestType_WithinRange(t *testing.T) {
	tests := []struct {
		typ  Type
		v    int64
		want bool
	}{
		{Int8, 127, true},
		{Int8, -127, true},
		{Int8, -128, false},
		{Int8, 128, false},
		{Int16, -32767, true},
		{Int16, -32768, false},
		{Int32, math.MaxInt32, true},
		{Int32, math.MinInt32, false},
		{Float, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.WithinRange(tt.v), "%s %d", tt.typ, tt.v)
	}
}

func TestDetermineIntegerType(t *testing.T) {
	tests := []struct {
		v    int64
		want Type
	}{
		{0, Int8},
		{-127, Int8},
		{-128, Int16},
		{300, Int16},
		{40000, Int32},
		{-2147483647, Int32},
	}
	for _, tt := range tests {
		got, err := DetermineIntegerType(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %d", tt.v)
	}
	_, err := DetermineIntegerType(math.MinInt32)
	assert.Error(t, err)

	got, err := DetermineIntegerTypeOf([]int{1, -5, 200})
	require.NoError(t, err)
	assert.Equal(t, Int16, got)
	assert.Equal(t, Int32, MaxIntegerType(Int8, Int32))
}

func TestDecodeSingleValue_MissingSentinels(t *testing.T) {
	for _, typ := range []Type{Int8, Int16, Int32, Float} {
		w := &blockWriter{}
		w.raw(typ, typ.MissingBytes())
		d := newDecoderFromBytes(w.bytes())
		v, err := d.DecodeSingleValue(typ)
		require.NoError(t, err)
		assert.Nil(t, v, "type %s", typ)
		assert.True(t, d.BlockIsFullyDecoded())
	}
}

func TestDecodeTypedValue_Scalars(t *testing.T) {
	w := &blockWriter{}
	w.typedInt(-5)
	w.typedInt(1000)
	w.descriptor(1, Float)
	w.raw(Float, floatBits(0.1))
	w.missing()
	d := newDecoderFromBytes(w.bytes())

	v, err := d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, -5, v)

	v, err = d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, 1000, v)

	// widened from float32 once, not reparsed as a decimal
	v, err = d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, float64(float32(0.1)), v)

	v, err = d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, d.BlockIsFullyDecoded())
}

func TestDecodeTypedValue_VectorPruning(t *testing.T) {
	m := Int8.MissingBytes()
	w := &blockWriter{}
	w.typedInts(Int8, 3, m, 7, m, m)
	w.typedInt(42)
	d := newDecoderFromBytes(w.bytes())

	v, err := d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, v)
	// one descriptor byte plus five INT8 elements
	assert.Equal(t, 6, d.off)

	v, err = d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDecodeTypedValue_AllMissingVectorIsNil(t *testing.T) {
	for _, typ := range []Type{Int8, Int16, Int32, Float} {
		m := typ.MissingBytes()
		w := &blockWriter{}
		w.typedInts(typ, m, m, m)
		d := newDecoderFromBytes(w.bytes())
		v, err := d.DecodeTypedValue()
		require.NoError(t, err)
		assert.Nil(t, v, "type %s", typ)
		assert.True(t, d.BlockIsFullyDecoded())
	}
}

func TestDecodeTypedValue_FloatVector(t *testing.T) {
	w := &blockWriter{}
	w.descriptor(3, Float)
	w.raw(Float, floatBits(1.5))
	w.raw(Float, floatMissingBits)
	w.raw(Float, floatBits(-2.25))
	d := newDecoderFromBytes(w.bytes())
	v, err := d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.25}, v)
}

func TestDecodeLiteralString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"plain", "alpha", "alpha"},
		{"collapsed list", CollapseStringList([]string{"alpha", "beta", "gamma"}), []string{"alpha", "beta", "gamma"}},
		{"nul padded", "ab\x00\x00\x00", "ab"},
		{"all nul", "\x00\x00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &blockWriter{}
			w.descriptor(len(tt.raw), Char)
			w.buf.WriteString(tt.raw)
			d := newDecoderFromBytes(w.bytes())
			v, err := d.DecodeTypedValue()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.True(t, d.BlockIsFullyDecoded())
		})
	}
}

func TestDecodeTypedValue_LongString(t *testing.T) {
	s := "ACGTACGTACGTACGTACGT"
	w := &blockWriter{}
	w.typedString(s)
	d := newDecoderFromBytes(w.bytes())
	v, err := d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, s, v)
}

func TestDecodeNumberOfElements_Overflow(t *testing.T) {
	w := &blockWriter{}
	w.descriptor(1, Int16)
	w.raw(Int16, 300)
	d := newDecoderFromBytes(w.bytes())

	n, err := d.DecodeNumberOfElements(EncodeTypeDescriptor(OverflowElementMarker, Int8))
	require.NoError(t, err)
	assert.Equal(t, 300, n)
	assert.True(t, d.BlockIsFullyDecoded())
}

func TestDecodeNumberOfElements_Inline(t *testing.T) {
	d := newDecoderFromBytes(nil)
	n, err := d.DecodeNumberOfElements(EncodeTypeDescriptor(9, Int32))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestDecodeNumberOfElements_MissingOverflowCount(t *testing.T) {
	w := &blockWriter{}
	w.descriptor(1, Int8)
	w.raw(Int8, Int8.MissingBytes())
	d := newDecoderFromBytes(w.bytes())
	_, err := d.DecodeNumberOfElements(EncodeTypeDescriptor(OverflowElementMarker, Int8))
	assert.Error(t, err)
}

func TestDecodeTypedValue_OverflowVector(t *testing.T) {
	values := make([]int32, 20)
	want := make([]int, 20)
	for i := range values {
		values[i] = int32(i * 100)
		want[i] = i * 100
	}
	w := &blockWriter{}
	w.typedInts(Int16, values...)
	d := newDecoderFromBytes(w.bytes())
	v, err := d.DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, want, v)
}

func TestDecodeIntArray(t *testing.T) {
	m := Int16.MissingBytes()
	tests := []struct {
		name   string
		values []int32
		want   []int
	}{
		{"all present", []int32{1, 2, 3, 4}, []int{1, 2, 3, 4}},
		{"first missing", []int32{m, 2, 3, 4}, nil},
		{"truncated at first missing", []int32{1, 2, m, 4}, []int{1, 2}},
		{"trailing missing", []int32{1, m, m, m}, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &blockWriter{}
			for _, v := range tt.values {
				w.raw(Int16, v)
			}
			w.raw(Int8, 99)
			d := newDecoderFromBytes(w.bytes())

			got, err := d.DecodeIntArray(len(tt.values), Int16, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// every element is consumed regardless of where decoding stopped
			next, err := d.DecodeInt(Int8)
			require.NoError(t, err)
			assert.Equal(t, int32(99), next)
		})
	}
}

func TestDecodeIntArray_ReusesDest(t *testing.T) {
	w := &blockWriter{}
	w.raw(Int8, 5)
	w.raw(Int8, 6)
	d := newDecoderFromBytes(w.bytes())

	dest := make([]int, 2)
	got, err := d.DecodeIntArray(2, Int8, dest)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6}, got)
	assert.Same(t, &dest[0], &got[0])
}

func TestDecodeTypedValue_AsymmetricPruning(t *testing.T) {
	m := Int8.MissingBytes()
	values := []int32{1, m, 3}

	w := &blockWriter{}
	w.typedInts(Int8, values...)
	general, err := newDecoderFromBytes(w.bytes()).DecodeTypedValue()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, general)

	d := newDecoderFromBytes(w.bytes())
	td, err := d.ReadTypeDescriptor()
	require.NoError(t, err)
	fast, err := d.DecodeIntArrayWithDescriptor(td, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, fast)
}

func TestDecoder_TruncatedBlock(t *testing.T) {
	w := &blockWriter{}
	w.descriptor(4, Int32)
	w.raw(Int32, 1)
	d := newDecoderFromBytes(w.bytes())
	_, err := d.DecodeTypedValue()
	assert.ErrorIs(t, err, ErrTruncatedBlock)
}

func TestDecoder_UnrecognizedTypeInStream(t *testing.T) {
	d := newDecoderFromBytes([]byte{0x14, 0x00})
	_, err := d.DecodeTypedValue()
	assert.ErrorIs(t, err, ErrUnrecognizedType)
}

func TestDecoder_ReadNextBlock(t *testing.T) {
	payload := []byte("0123456789abcdef")

	t.Run("short reads accumulate", func(t *testing.T) {
		d := NewDecoder()
		r := iotest.OneByteReader(bytes.NewReader(payload))
		require.NoError(t, d.ReadNextBlock(len(payload), r))
		assert.Equal(t, payload, d.RecordBytes())
		assert.Equal(t, len(payload), d.BlockSize())
		assert.False(t, d.BlockIsFullyDecoded())
	})

	t.Run("stream ends early", func(t *testing.T) {
		d := NewDecoder()
		err := d.ReadNextBlock(32, bytes.NewReader(payload))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("huge size on a short stream", func(t *testing.T) {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		err := NewDecoder().ReadNextBlock(math.MaxInt32, bytes.NewReader(payload))
		runtime.ReadMemStats(&after)

		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
	})

	t.Run("negative size", func(t *testing.T) {
		assert.Error(t, NewDecoder().ReadNextBlock(-1, bytes.NewReader(payload)))
	})

	t.Run("empty block", func(t *testing.T) {
		d := NewDecoder()
		require.NoError(t, d.ReadNextBlock(0, bytes.NewReader(nil)))
		assert.True(t, d.BlockIsFullyDecoded())
	})
}

func TestDecoder_SkipNextBlock(t *testing.T) {
	r := bytes.NewReader([]byte("skipkeep"))
	d := NewDecoder()
	require.NoError(t, d.SkipNextBlock(4, r))
	assert.Nil(t, d.RecordBytes())
	require.NoError(t, d.ReadNextBlock(4, r))
	assert.Equal(t, []byte("keep"), d.RecordBytes())

	assert.Error(t, d.SkipNextBlock(10, r))
}

func TestReadBlockSize(t *testing.T) {
	w := &blockWriter{}
	w.raw(Int32, 1234)
	n, err := ReadBlockSize(bytes.NewReader(w.bytes()))
	require.NoError(t, err)
	assert.Equal(t, int32(1234), n)

	_, err = ReadBlockSize(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	_, err = ReadBlockSize(bytes.NewReader([]byte{1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

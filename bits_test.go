package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitsArithmeticWidening(t *testing.T) {
	a := NewBits(4, 5)
	b := NewBits(8, 3)
	sum := a.Add(b)
	require.Equal(t, 8, sum.Width())
	require.Equal(t, uint64(8), sum.ToUint64())
}

func TestBitsSignedOverflowWraps(t *testing.T) {
	a := NewSignedBits(4, 7)
	b := NewSignedBits(4, 1)
	sum := a.Add(b)
	require.Equal(t, int64(-8), sum.ToInt64())
}

func TestBitsSlice(t *testing.T) {
	v := NewBits(8, 0xA5)
	require.Equal(t, uint64(0xA), v.Slice(7, 4).ToUint64())
	require.Equal(t, uint64(0x5), v.Slice(3, 0).ToUint64())
}

func TestBitsSetSliceDropsOutOfRange(t *testing.T) {
	v := NewBits(4, 0)
	out := v.SetSlice(7, 2, NewBits(6, 0x3F))
	// only bits [3:2] are in range for a width-4 target
	require.Equal(t, uint64(0xC), out.ToUint64())
}

func TestBitsConcatAndRepeat(t *testing.T) {
	a := NewBits(4, 0xA)
	b := NewBits(4, 0xB)
	c := Concat(a, b)
	require.Equal(t, 8, c.Width())
	require.Equal(t, uint64(0xAB), c.ToUint64())

	r := Repeat(3, NewBits(2, 0b10))
	require.Equal(t, 6, r.Width())
	require.Equal(t, uint64(0b101010), r.ToUint64())
}

func TestBitsReductions(t *testing.T) {
	require.True(t, NewBits(4, 0xF).ReduceAnd().ToUint64() == 1)
	require.False(t, NewBits(4, 0xE).ReduceAnd().ToUint64() == 1)
	require.True(t, NewBits(4, 0x1).ReduceOr().ToUint64() == 1)
	require.False(t, NewBits(4, 0x0).ReduceOr().ToUint64() == 1)
	require.True(t, NewBits(4, 0b0011).ReduceXor().ToUint64() == 0)
	require.True(t, NewBits(4, 0b0111).ReduceXor().ToUint64() == 1)
}

func TestBitsShifts(t *testing.T) {
	v := NewBits(8, 0x81)
	require.Equal(t, uint64(0x40), v.Shr(1).ToUint64())
	s := NewSignedBits(8, -2)
	require.Equal(t, int64(-1), s.Ashr(1).ToInt64())
}

func TestBitsEqualityComparesOnlyWidth(t *testing.T) {
	a := NewBits(4, 0x5)
	b := NewBits(8, 0x5)
	require.True(t, a.Equal(b))
}

func TestBitsFormat(t *testing.T) {
	v := NewBits(8, 65)
	require.Equal(t, "A", v.Format('s'))
	require.Equal(t, "41", v.Format('h'))
	require.Equal(t, "01000001", v.Format('b'))
	require.Equal(t, "65", v.Format('d'))
}

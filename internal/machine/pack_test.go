package machine

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		value  uint64
		size   int
		endian Endianness
	}{
		{0x12, 1, LittleEndian},
		{0x1234, 2, LittleEndian},
		{0x1234, 2, BigEndian},
		{0x12345678, 4, LittleEndian},
		{0x12345678, 4, BigEndian},
		{0x1122334455667788, 8, LittleEndian},
	}

	for _, c := range cases {
		packed := packBytes(c.value, c.size, c.endian)
		got := unpackBytes(packed, c.endian, false)

		if got != c.value {
			t.Errorf("size=%d endian=%v: got %#x, want %#x", c.size, c.endian, got, c.value)
		}
	}
}

func TestUnpackBytesSignExtends(t *testing.T) {
	// 0xFF as a signed byte is -1, which sign-extends to all-ones.
	got := unpackBytes([]byte{0xFF}, LittleEndian, true)

	if got != ^uint64(0) {
		t.Errorf("got %#x, want all-ones", got)
	}
}

func TestTruncateInversePropertyHoldsAcrossWidths(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		value := uint64(0xDEADBEEFCAFEBABE)

		got := truncate(value, size, false)
		want := packBytesThenUnpack(value, size)

		if got != want {
			t.Errorf("size=%d: got %#x, want %#x", size, got, want)
		}
	}
}

func packBytesThenUnpack(value uint64, size int) uint64 {
	return unpackBytes(packBytes(value, size, LittleEndian), LittleEndian, false)
}

func TestValidWidthRejectsUnsupportedSizes(t *testing.T) {
	for _, size := range []int{0, 3, 5, 16} {
		if err := validWidth(size); err == nil {
			t.Errorf("size=%d: expected error", size)
		}
	}

	for _, size := range []int{1, 2, 4, 8} {
		if err := validWidth(size); err != nil {
			t.Errorf("size=%d: unexpected error: %v", size, err)
		}
	}
}

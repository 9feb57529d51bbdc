package rtcm

// Bit field accessors over an MSB-first byte stream, as used by the RTCM3
// payload encodings.

func getBitU(buf []byte, pos, n int) uint32 {
	var v uint32
	for i := pos; i < pos+n; i++ {
		v = v<<1 | uint32(buf[i/8]>>(7-i%8))&1
	}
	return v
}

func getBits(buf []byte, pos, n int) int32 {
	v := getBitU(buf, pos, n)
	if n <= 0 || n >= 32 || v&(1<<(n-1)) == 0 {
		return int32(v)
	}
	return int32(v | (^uint32(0) << n))
}

// getBits38 reads a signed 38-bit field split as a signed 32-bit high part
// and an unsigned 6-bit low part.
func getBits38(buf []byte, pos int) int64 {
	return int64(getBits(buf, pos, 32))*64 + int64(getBitU(buf, pos+32, 6))
}

func setBitU(buf []byte, pos, n int, v uint32) {
	mask := uint32(1) << (n - 1)
	for i := pos; i < pos+n; i++ {
		if v&mask != 0 {
			buf[i/8] |= 1 << (7 - i%8)
		} else {
			buf[i/8] &^= 1 << (7 - i%8)
		}
		mask >>= 1
	}
}

func setBits38(buf []byte, pos int, v int64) {
	setBitU(buf, pos, 32, uint32(v>>6))
	setBitU(buf, pos+32, 6, uint32(v&0x3F))
}

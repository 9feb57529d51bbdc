package basestation

// arena is the accumulation buffer between the source and the frame
// extractor. Reads append to the tail; the drain loop advances a cursor
// over the front instead of reslicing per byte, and the consumed prefix is
// compacted out once per drain pass.
type arena struct {
	buf []byte
	off int
}

func (a *arena) append(p []byte) {
	a.buf = append(a.buf, p...)
}

// pending returns the unconsumed bytes. The slice aliases the arena and is
// invalidated by append, advance and compact.
func (a *arena) pending() []byte {
	return a.buf[a.off:]
}

func (a *arena) advance(n int) {
	a.off += n
	if a.off > len(a.buf) {
		a.off = len(a.buf)
	}
}

func (a *arena) len() int {
	return len(a.buf) - a.off
}

// compact drops the consumed prefix in a single copy.
func (a *arena) compact() {
	if a.off == 0 {
		return
	}
	n := copy(a.buf, a.buf[a.off:])
	a.buf = a.buf[:n]
	a.off = 0
}

// cap discards the oldest pending bytes until at most max remain, returning
// how many were dropped.
func (a *arena) cap(max int) int {
	if max <= 0 || a.len() <= max {
		return 0
	}
	drop := a.len() - max
	a.advance(drop)
	return drop
}

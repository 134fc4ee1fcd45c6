package rpu

import (
	"bytes"
	mathbits "math/bits"

	"github.com/Eyevinn/mp4ff/bits"
)

// rbspWriter writes RPU syntax elements MSB-first and tracks the bit
// position for alignment.
type rbspWriter struct {
	buf bytes.Buffer
	w   *bits.Writer
	pos int
}

func newRBSPWriter() *rbspWriter {
	rw := &rbspWriter{}
	rw.w = bits.NewWriter(&rw.buf)
	return rw
}

// putUint writes the n low bits of v. Fields wider than 16 bits are split.
func (rw *rbspWriter) putUint(n int, v uint64) {
	for n > 16 {
		n -= 16
		rw.w.Write(uint(v>>uint(n))&0xFFFF, 16)
		rw.pos += 16
	}
	if n > 0 {
		rw.w.Write(uint(v)&(1<<uint(n)-1), n)
		rw.pos += n
	}
}

// putInt writes v as an n-bit two's complement value.
func (rw *rbspWriter) putInt(n int, v int64) {
	rw.putUint(n, uint64(v)&(1<<uint(n)-1))
}

func (rw *rbspWriter) putFlag(v bool) {
	if v {
		rw.putUint(1, 1)
	} else {
		rw.putUint(1, 0)
	}
}

// putUE writes an unsigned Exp-Golomb code.
func (rw *rbspWriter) putUE(v uint64) {
	x := v + 1
	n := mathbits.Len64(x)
	rw.putUint(n-1, 0)
	rw.putUint(n, x)
}

// putSE writes a signed Exp-Golomb code.
func (rw *rbspWriter) putSE(v int64) {
	if v > 0 {
		rw.putUE(uint64(2*v - 1))
	} else {
		rw.putUE(uint64(-2 * v))
	}
}

// align writes zero bits up to the next byte boundary.
func (rw *rbspWriter) align() {
	if r := rw.pos % 8; r != 0 {
		rw.putUint(8-r, 0)
	}
}

func (rw *rbspWriter) bytes() ([]byte, error) {
	rw.align()
	rw.w.Flush()
	if err := rw.w.AccError(); err != nil {
		return nil, err
	}
	return rw.buf.Bytes(), nil
}

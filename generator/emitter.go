package generator

import (
	"bufio"
	"fmt"
	"io"

	"github.com/zsiec/dovigen/rpu"
)

// emitBufferSize is the output buffer of a run.
const emitBufferSize = 100_000

// Emitter writes encoded records as Annex-B NAL units, back to back.
type Emitter struct {
	w      *bufio.Writer
	frames int
}

// NewEmitter returns an Emitter buffering writes to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: bufio.NewWriterSize(w, emitBufferSize)}
}

// Emit encodes rec and writes rpu.NALHeader followed by the encoded record
// without its two-byte NAL header.
func (e *Emitter) Emit(rec *rpu.Record) error {
	encoded, err := rec.Encode()
	if err != nil {
		return encodingError(e.frames, err)
	}
	if len(encoded) < 2 {
		return encodingError(e.frames, fmt.Errorf("encoded record is %d bytes", len(encoded)))
	}
	if _, err := e.w.Write(rpu.NALHeader); err != nil {
		return outputError(e.frames, err)
	}
	if _, err := e.w.Write(encoded[2:]); err != nil {
		return outputError(e.frames, err)
	}
	e.frames++
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (e *Emitter) Flush() error {
	if err := e.w.Flush(); err != nil {
		return outputError(-1, err)
	}
	return nil
}

// Frames returns the number of records emitted so far.
func (e *Emitter) Frames() int { return e.frames }

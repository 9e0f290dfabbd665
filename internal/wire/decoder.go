package wire

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decoder turns a byte stream, fed in arbitrary chunks, back into frames.
// It never blocks: Next reports whether a complete frame is buffered.
type Decoder[R any] struct {
	codec    RecordCodec[R]
	maxFrame int

	buf    []byte
	start  int   // first unconsumed byte in buf
	offset int64 // stream offset of buf[start]
	header bool
	err    error
}

// NewDecoder creates a decoder that rejects frames longer than maxFrameSize.
func NewDecoder[R any](codec RecordCodec[R], maxFrameSize int) *Decoder[R] {
	return &Decoder[R]{codec: codec, maxFrame: maxFrameSize}
}

// Feed appends freshly read bytes. p is copied.
func (d *Decoder[R]) Feed(p []byte) {
	if d.start > 0 && d.start >= len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.start:])
		d.buf = d.buf[:n]
		d.start = 0
	}
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes received but not yet decoded.
func (d *Decoder[R]) Buffered() int {
	return len(d.buf) - d.start
}

// Next decodes the next frame. ok is false when the buffer does not yet hold
// a complete frame. Once Next has returned an error it keeps returning it.
func (d *Decoder[R]) Next() (frame Frame[R], ok bool, err error) {
	if d.err != nil {
		return frame, false, d.err
	}

	if !d.header {
		if d.Buffered() < HeaderLen {
			return frame, false, nil
		}
		if err := checkHeader(d.buf[d.start:d.start+HeaderLen], d.codec.Stream()); err != nil {
			return frame, false, d.fail(err)
		}
		d.advance(HeaderLen)
		d.header = true
	}

	pending := d.buf[d.start:]
	size, n := protowire.ConsumeVarint(pending)
	if n < 0 {
		if len(pending) < binary.MaxVarintLen64 {
			return frame, false, nil
		}
		return frame, false, d.fail(fmt.Errorf("malformed frame length: %w", protowire.ParseError(n)))
	}
	if size > uint64(d.maxFrame) {
		return frame, false, d.fail(fmt.Errorf("frame of %d bytes exceeds limit of %d", size, d.maxFrame))
	}
	if uint64(len(pending)-n) < size {
		return frame, false, nil
	}

	frame, err = parseFrame(d.codec, pending[n:n+int(size)])
	if err != nil {
		return frame, false, d.fail(err)
	}
	d.advance(n + int(size))
	return frame, true, nil
}

// Finish is called once the stream has ended. Leftover bytes mean the
// stream was cut inside a frame (or inside the header).
func (d *Decoder[R]) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.Buffered() > 0 {
		return d.fail(ErrTruncated)
	}
	return nil
}

func (d *Decoder[R]) advance(n int) {
	d.start += n
	d.offset += int64(n)
}

func (d *Decoder[R]) fail(err error) error {
	d.err = &DecodeError{Stream: d.codec.Stream(), Offset: d.offset, Err: err}
	return d.err
}

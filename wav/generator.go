package wav

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"syscall"
	"unicode"
)

const (
	headerSize   = 44 // RIFF chunk (12) + fmt chunk (24) + data chunk header (8).
	fmtChunkSize = 16
	formatPCM    = 1
	numChannels  = 1
)

const (
	riffChunkToken = "RIFF"
	waveFormatType = "WAVE"
	fmtChunkToken  = "fmt "
	dataChunkToken = "data"
)

// CalculateSize returns the total size in bytes of the finalized file,
// including the header and the padding byte.
func (s *Stream) CalculateSize() uint64 {
	return headerSize + s.dataSize + s.dataSize%2
}

// sink writes to the output of Finalize. Once the output reports a broken pipe
// every further write is dropped. Any other error is kept and stops writing.
type sink struct {
	w      *bufio.Writer
	broken bool
	err    error
}

func newSink(w io.Writer) *sink {
	return &sink{w: bufio.NewWriter(w)}
}

func (s *sink) done() bool {
	return s.broken || s.err != nil
}

func (s *sink) fail(err error) {
	if errors.Is(err, syscall.EPIPE) {
		// The reader went away early, e.g. `aplay` was stopped.
		s.broken = true
		return
	}
	s.err = fmt.Errorf("%w: %w", ErrWrite, err)
}

// write writes b to the output.
func (s *sink) write(b []byte) {
	if s.done() {
		return
	}
	if _, err := s.w.Write(b); err != nil {
		s.fail(err)
	}
}

// writeTag writes tag as ASCII.
func (s *sink) writeTag(tag string) error {
	for _, r := range tag {
		if r > unicode.MaxASCII {
			return fmt.Errorf("%w: %q", ErrNonASCIITag, tag)
		}
	}
	s.write([]byte(tag))
	return nil
}

// writeU32 writes n as a 32-bit unsigned integer.
func (s *sink) writeU32(n uint32) {
	s.write(binary.LittleEndian.AppendUint32(nil, n))
}

// writeU16 writes n as a 16-bit unsigned integer.
func (s *sink) writeU16(n uint16) {
	s.write(binary.LittleEndian.AppendUint16(nil, n))
}

func (s *sink) flush() error {
	if !s.done() {
		if err := s.w.Flush(); err != nil {
			s.fail(err)
		}
	}
	return s.err
}

// writeHeader writes the RIFF, fmt and data chunk headers.
func (s *Stream) writeHeader(out *sink) error {
	f := s.format

	if err := out.writeTag(riffChunkToken); err != nil {
		return err
	}
	out.writeU32(uint32(s.dataSize + headerSize - 8))
	if err := out.writeTag(waveFormatType); err != nil {
		return err
	}

	if err := out.writeTag(fmtChunkToken); err != nil {
		return err
	}
	out.writeU32(fmtChunkSize)
	out.writeU16(formatPCM)
	out.writeU16(numChannels)
	out.writeU32(f.SampleRate)
	out.writeU32(f.ByteRate())
	out.writeU16(f.BlockAlign())
	out.writeU16(f.BitDepth)

	if err := out.writeTag(dataChunkToken); err != nil {
		return err
	}
	out.writeU32(uint32(s.dataSize))
	return nil
}

// writeSamples writes the samples of every segment in append order.
func (s *Stream) writeSamples(out *sink) {
	bitDepth := s.format.BitDepth
	buf := make([]byte, s.format.BytesPerSample())

	for _, seg := range s.segments {
		// Empty segments are skipped, SampleAt is undefined for them.
		for i := uint32(0); i < seg.Samples; i++ {
			if out.done() {
				return
			}
			putSample(buf, seg.Sample(i, bitDepth), bitDepth)
			out.write(buf)
		}
	}
}

// Finalize writes the stream as a WAV file to w.
//
// The stream is consumed: any later Append or Finalize returns ErrStreamClosed.
// If w reports a broken pipe, the rest of the output is dropped and Finalize
// still returns nil. Other write errors are returned wrapped in ErrWrite.
func (s *Stream) Finalize(w io.Writer) error {
	if s.closed {
		return ErrStreamClosed
	}
	s.closed = true

	if s.dataSize+headerSize-8 > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes of samples", ErrStreamTooLarge, s.dataSize)
	}

	out := newSink(w)

	if err := s.writeHeader(out); err != nil {
		return err
	}

	s.writeSamples(out)

	// Padding.
	if s.dataSize%2 == 1 {
		out.write([]byte{0})
	}

	return out.flush()
}

// Encode finalizes the stream into a byte slice.
func (s *Stream) Encode() ([]byte, error) {
	totalSize := s.CalculateSize()

	var buffer bytes.Buffer
	if totalSize <= math.MaxUint32 {
		buffer.Grow(int(totalSize))
	}

	if err := s.Finalize(&buffer); err != nil {
		return nil, err
	}

	// Sanity check to make sure the output is the expected size.
	if uint64(buffer.Len()) != totalSize {
		return nil, fmt.Errorf("WAV size mismatch: got %d bytes, expected %d", buffer.Len(), totalSize)
	}
	return buffer.Bytes(), nil
}

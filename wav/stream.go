package wav

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrStreamClosed      = errors.New("stream already finalized")
	ErrStreamTooLarge    = errors.New("stream too large for a RIFF container")
	ErrNonASCIITag       = errors.New("tag is not ASCII")
	ErrWrite             = errors.New("write error")
)

// Format describes the PCM encoding of a stream. Streams are always mono.
type Format struct {
	SampleRate uint32 // Samples per second.
	BitDepth   uint16 // Bits per sample (8, 16, 24 or 32).
}

// DefaultFormat is 16-bit mono PCM at 44100 Hz.
var DefaultFormat = Format{
	SampleRate: 44100,
	BitDepth:   16,
}

func (f Format) validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrUnsupportedFormat)
	}
	switch f.BitDepth {
	case 8, 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: bit depth must be 8, 16, 24 or 32, got %d", ErrUnsupportedFormat, f.BitDepth)
	}
}

// BytesPerSample returns the size of a single sample in bytes.
func (f Format) BytesPerSample() uint32 {
	return uint32(f.BitDepth) / 8
}

// ByteRate returns the number of payload bytes per second of audio.
func (f Format) ByteRate() uint32 {
	return f.SampleRate * f.BytesPerSample()
}

// BlockAlign returns the size of one sample frame. With a single channel this is
// the same as BytesPerSample.
func (f Format) BlockAlign() uint16 {
	return uint16(f.BytesPerSample())
}

// MaxAmplitude returns 2^(BitDepth-1), the amplitude that a fraction of 1.0 maps to.
func (f Format) MaxAmplitude() float64 {
	return math.Ldexp(1, int(f.BitDepth)-1)
}

// A single sine wave held for a fixed number of samples.
type Segment struct {
	Amplitude float64 // Peak amplitude in output sample units (can be negative).
	Frequency float64 // Frequency in Hz. Zero is silence.
	Samples   uint32  // Number of samples the wave lasts for.
}

// Sample returns the value of the i-th sample of the segment.
// It must not be called on a segment with zero samples.
func (s Segment) Sample(i uint32, bitDepth uint16) int32 {
	return SampleAt(s.Amplitude, s.Frequency, i, s.Samples, bitDepth)
}

// A Stream accumulates segments and serializes them as a WAV file with Finalize.
// A Stream is not safe for concurrent use.
type Stream struct {
	format   Format
	dataSize uint64 // Total payload size in bytes, excluding the padding byte.
	segments []Segment

	// Whether or not the stream has been finalized.
	// Finalizing can only be done once per Stream.
	closed bool
}

// NewStream creates an empty stream with the given format.
func NewStream(format Format) (*Stream, error) {
	if err := format.validate(); err != nil {
		return nil, err
	}
	return &Stream{format: format}, nil
}

// AppendAbsolute adds a wave with the specified amplitude and amount of samples.
// A segment with zero samples is recorded but contributes nothing to the payload.
func (s *Stream) AppendAbsolute(amplitude, frequency float64, samples uint32) error {
	if s.closed {
		return ErrStreamClosed
	}

	s.segments = append(s.segments, Segment{
		Amplitude: amplitude,
		Frequency: frequency,
		Samples:   samples,
	})
	s.dataSize += uint64(s.format.BytesPerSample()) * uint64(samples)
	return nil
}

// AppendRelative adds a wave with "relative" values.
// fraction is a fraction of the maximum amplitude, and the amount of samples is
// calculated from seconds, rounded to the nearest sample.
func (s *Stream) AppendRelative(fraction, frequency, seconds float64) error {
	return s.AppendAbsolute(fraction*s.format.MaxAmplitude(), frequency, s.samplesFor(seconds))
}

// samplesFor converts a duration in seconds into a sample count.
func (s *Stream) samplesFor(seconds float64) uint32 {
	samples := math.Round(seconds * float64(s.format.SampleRate))
	if !(samples > 0) { // Also catches NaN.
		return 0
	}
	if samples > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(samples)
}

// Format returns the format of the stream.
func (s *Stream) Format() Format {
	return s.format
}

// DataSize returns the size of the sample payload in bytes.
func (s *Stream) DataSize() uint64 {
	return s.dataSize
}

// Len returns the number of segments in the stream.
func (s *Stream) Len() int {
	return len(s.segments)
}

// Segments returns a copy of the segments in append order.
func (s *Stream) Segments() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Closed reports whether the stream has been finalized.
func (s *Stream) Closed() bool {
	return s.closed
}

// Duration returns the playing time of the stream.
func (s *Stream) Duration() time.Duration {
	samples := s.dataSize / uint64(s.format.BytesPerSample())
	return time.Duration(float64(samples) / float64(s.format.SampleRate) * float64(time.Second))
}

// formatSegments formats segments into a table.
// indent: number of spaces to indent the table
func formatSegments(segments []Segment, sampleRate uint32, indent int) string {
	headers := []string{"#", "Frequency", "Amplitude", "Samples", "Seconds"}

	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		frequency := fmt.Sprintf("%.2f Hz", seg.Frequency)
		if seg.Frequency == 0 {
			frequency = "silence"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i),
			frequency,
			fmt.Sprintf("%.0f", seg.Amplitude),
			fmt.Sprintf("%d", seg.Samples),
			fmt.Sprintf("%.3f", float64(seg.Samples)/float64(sampleRate)),
		})
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
		for _, row := range rows {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	padRight := func(s string, w int) string {
		if len(s) >= w {
			return s
		}
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder

	separator := func() {
		b.WriteString(strings.Repeat(" ", indent))
		for _, w := range widths {
			b.WriteString("+")
			b.WriteString(strings.Repeat("-", w+2)) // +2 for the space padding either side
		}
		b.WriteString("+\n")
	}
	line := func(cells []string) {
		b.WriteString(strings.Repeat(" ", indent))
		for i, cell := range cells {
			b.WriteString("| ")
			b.WriteString(padRight(cell, widths[i]))
			b.WriteString(" ")
		}
		b.WriteString("|\n")
	}

	separator()
	line(headers)
	separator()
	for _, row := range rows {
		line(row)
	}
	separator()

	return b.String()
}

// Pretty-print
func (s *Stream) String() string {
	var b strings.Builder
	b.WriteString("WAV stream:\n")
	fmt.Fprintf(&b, "- Sample rate: %d Hz\n", s.format.SampleRate)
	fmt.Fprintf(&b, "- Bit depth: %d\n", s.format.BitDepth)
	fmt.Fprintf(&b, "- Duration: %s\n", s.Duration())

	if len(s.segments) > 0 {
		b.WriteString("- Segments:\n")
		b.WriteString(formatSegments(s.segments, s.format.SampleRate, 2))
	}

	fmt.Fprintf(&b, "[Total file size: %d bytes]\n", s.CalculateSize())

	return b.String()
}

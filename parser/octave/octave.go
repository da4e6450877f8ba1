package octave

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/QEStudios/OctaveWav/wav"
	"github.com/davecgh/go-spew/spew"
)

var (
	ErrInvalidLength = errors.New("invalid length")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrUnexpectedEnd = errors.New("unexpected end of input")
	ErrInvalidTempo  = errors.New("invalid tempo")
	ErrInvalidTuning = errors.New("invalid tuning")

	ErrInvalidAmplitude = errors.New("invalid amplitude")
)

const (
	signMarker    = '-'
	silenceMarker = '_'
)

// SyntaxError reports a malformed note string and the byte position of the offending character.
type SyntaxError struct {
	Pos int
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("position %d: %v", e.Pos, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// A single note decoded from an LN cluster.
type Note struct {
	Length  uint8 // Hex digit L. The note lasts 2^(1-L) measures.
	Offset  int   // Semitones away from the starting note (-15..15).
	Silence bool  // If true, Offset is ignored and the note is a rest.
	Pos     int   // Byte position of the cluster in the note string.
}

// Measures returns the length of the note as a fraction of one 4/4 measure.
func (n Note) Measures() float64 {
	return math.Ldexp(1, 1-int(n.Length))
}

// hexValue returns the value of a hexadecimal digit.
func hexValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	default:
		return 0, false
	}
}

/*
ParseNote decodes the cluster starting at pos and returns the note and the
number of bytes it occupies.

A cluster is either <L><N> or <L>-<N>:

- L is a hexadecimal digit giving the length of the note.

- '-' makes the offset negative.

- N is a hexadecimal digit giving the offset in semitones, or '_' for silence.

Every character is checked against the end of s before it is read, so a
cluster cut short by the end of the string is reported as ErrUnexpectedEnd.
*/
func ParseNote(s string, pos int) (Note, int, error) {
	at := func(i int) (byte, error) {
		if i >= len(s) {
			return 0, &SyntaxError{Pos: i, Err: ErrUnexpectedEnd}
		}
		return s[i], nil
	}

	c, err := at(pos)
	if err != nil {
		return Note{}, 0, err
	}
	length, ok := hexValue(c)
	if !ok {
		return Note{}, 0, &SyntaxError{Pos: pos, Err: fmt.Errorf("%w: %q is not a hexadecimal digit", ErrInvalidLength, c)}
	}

	width := 2
	sign := 1

	c, err = at(pos + 1)
	if err != nil {
		return Note{}, 0, err
	}
	if c == signMarker {
		sign = -1
		width = 3
		c, err = at(pos + 2)
		if err != nil {
			return Note{}, 0, err
		}
	}

	note := Note{Length: uint8(length), Pos: pos}

	if c == silenceMarker {
		note.Silence = true
		return note, width, nil
	}

	offset, ok := hexValue(c)
	if !ok {
		return Note{}, 0, &SyntaxError{Pos: pos + width - 1, Err: fmt.Errorf("%w: %q is not a hexadecimal digit nor '_'", ErrInvalidOffset, c)}
	}
	note.Offset = offset * sign

	return note, width, nil
}

// Config holds the construction-time settings of a Decoder.
type Config struct {
	Tempo     int     // Beats per minute, 4/4 time signature.
	Tuning    float64 // Frequency of the starting note (offset 0) in Hz.
	Amplitude float64 // Fraction of the maximum amplitude used for every note.
	Debug     bool    // Dump every decoded note to the logger.
}

// DefaultConfig returns a Config at 120 BPM with A4 = 440 Hz as the starting note.
func DefaultConfig() Config {
	return Config{
		Tempo:     120,
		Tuning:    440,
		Amplitude: 0.5,
	}
}

func (c Config) validate() error {
	if c.Tempo <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidTempo, c.Tempo)
	}
	if !(c.Tuning > 0) || math.IsInf(c.Tuning, 1) {
		return fmt.Errorf("%w: must be a positive frequency, got %v", ErrInvalidTuning, c.Tuning)
	}
	// A zero Amplitude usually means an unset field and would only ever produce silence.
	if c.Amplitude == 0 || math.IsNaN(c.Amplitude) || math.IsInf(c.Amplitude, 0) {
		return fmt.Errorf("%w: must be a finite non-zero fraction, got %v", ErrInvalidAmplitude, c.Amplitude)
	}
	return nil
}

// MeasureSeconds returns the length of one 4/4 measure in seconds.
func (c Config) MeasureSeconds() float64 {
	return 60.0 * 4.0 / float64(c.Tempo)
}

// Decoder reads note strings into a wav.Stream.
// It allows using semitone offsets from a starting note instead of frequencies.
type Decoder struct {
	stream *wav.Stream
	cfg    Config
	logger *log.Logger

	count int // Number of notes emitted so far.
}

// NewDecoder creates a decoder which appends to stream.
// If stream is nil a new stream in wav.DefaultFormat is used.
func NewDecoder(stream *wav.Stream, cfg Config, logger *log.Logger) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	if stream == nil {
		var err error
		stream, err = wav.NewStream(wav.DefaultFormat)
		if err != nil {
			return nil, err
		}
	}
	return &Decoder{
		stream: stream,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Stream returns the stream the decoder appends to.
func (d *Decoder) Stream() *wav.Stream {
	return d.stream
}

// Count returns the number of notes and rests emitted.
func (d *Decoder) Count() int {
	return d.count
}

func (d *Decoder) wave(frequency, length float64) error {
	if err := d.stream.AppendRelative(d.cfg.Amplitude, frequency, length*d.cfg.MeasureSeconds()); err != nil {
		return err
	}
	d.count++
	return nil
}

// Frequency returns the frequency of the note n semitones away from the starting note.
func (d *Decoder) Frequency(n int) float64 {
	return d.cfg.Tuning * math.Pow(2, float64(n)/12)
}

// Note adds the n-th note away from the starting note.
// length is a fraction of one measure in 4/4 time signature.
func (d *Decoder) Note(n int, length float64) error {
	return d.wave(d.Frequency(n), length)
}

// Rest adds silence lasting length measures.
func (d *Decoder) Rest(length float64) error {
	return d.wave(0, length)
}

// Read decodes a string of notes encoded like <L1><N1><L2><N2>... and appends
// each one to the stream.
//
// Each LN cluster produces a note N semitones away from the starting note (N can
// be negative, or '_' for silence) of length 2^(1-L) measures. Decoding stops at
// the first malformed cluster; notes before it stay in the stream.
func (d *Decoder) Read(notes string) error {
	for pos := 0; pos < len(notes); {
		note, width, err := ParseNote(notes, pos)
		if err != nil {
			return err
		}

		if d.cfg.Debug {
			d.logger.Printf("decoded %q:\n%s", notes[pos:pos+width], spew.Sdump(note))
		}

		if note.Silence {
			err = d.Rest(note.Measures())
		} else {
			err = d.Note(note.Offset, note.Measures())
		}
		if err != nil {
			return fmt.Errorf("position %d: %w", pos, err)
		}

		pos += width
	}
	return nil
}

// Finish writes the decoded notes to w as a WAV file. The decoder can't be used afterwards.
func (d *Decoder) Finish(w io.Writer) error {
	if d.cfg.Debug {
		d.logger.Printf("Writing %d notes, %s of audio", d.count, d.stream.Duration())
	}
	return d.stream.Finalize(w)
}

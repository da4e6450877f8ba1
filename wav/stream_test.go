package wav

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStream(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"default format", DefaultFormat, false},
		{"8-bit", Format{SampleRate: 8000, BitDepth: 8}, false},
		{"24-bit", Format{SampleRate: 48000, BitDepth: 24}, false},
		{"32-bit", Format{SampleRate: 96000, BitDepth: 32}, false},
		{"zero sample rate", Format{SampleRate: 0, BitDepth: 16}, true},
		{"odd bit depth", Format{SampleRate: 44100, BitDepth: 12}, true},
		{"zero bit depth", Format{SampleRate: 44100, BitDepth: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStream(tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, s.Format())
			assert.Zero(t, s.DataSize())
			assert.Zero(t, s.Len())
		})
	}
}

func TestFormatDerivedValues(t *testing.T) {
	f := DefaultFormat
	assert.Equal(t, uint32(2), f.BytesPerSample())
	assert.Equal(t, uint32(88200), f.ByteRate())
	assert.Equal(t, uint16(2), f.BlockAlign())
	assert.Equal(t, 32768.0, f.MaxAmplitude())

	f = Format{SampleRate: 22050, BitDepth: 24}
	assert.Equal(t, uint32(3), f.BytesPerSample())
	assert.Equal(t, uint32(66150), f.ByteRate())
	assert.Equal(t, 8388608.0, f.MaxAmplitude())
}

func TestAppendAbsoluteTracksDataSize(t *testing.T) {
	s, err := NewStream(DefaultFormat)
	require.NoError(t, err)

	require.NoError(t, s.AppendAbsolute(1000, 440, 10))
	require.NoError(t, s.AppendAbsolute(1000, 220, 0))
	require.NoError(t, s.AppendAbsolute(-500, 0, 5))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(2*(10+0+5)), s.DataSize())

	segments := s.Segments()
	require.Len(t, segments, 3)
	assert.Equal(t, Segment{Amplitude: 1000, Frequency: 440, Samples: 10}, segments[0])
	assert.Equal(t, Segment{Amplitude: 1000, Frequency: 220, Samples: 0}, segments[1])
	assert.Equal(t, Segment{Amplitude: -500, Frequency: 0, Samples: 5}, segments[2])

	// The returned slice is a copy.
	segments[0].Frequency = 1
	assert.Equal(t, 440.0, s.Segments()[0].Frequency)
}

func TestAppendRelative(t *testing.T) {
	tests := []struct {
		name        string
		fraction    float64
		seconds     float64
		wantAmp     float64
		wantSamples uint32
	}{
		{"one second at half amplitude", 0.5, 1.0, 16384, 44100},
		{"two seconds at full amplitude", 1.0, 2.0, 32768, 88200},
		{"negative fraction", -0.25, 0.5, -8192, 22050},
		{"rounds to nearest sample", 0.5, 10.6 / 44100, 16384, 11},
		{"rounds down below half", 0.5, 10.4 / 44100, 16384, 10},
		{"zero seconds", 0.5, 0, 16384, 0},
		{"negative seconds", 0.5, -1, 16384, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStream(DefaultFormat)
			require.NoError(t, err)

			require.NoError(t, s.AppendRelative(tt.fraction, 440, tt.seconds))

			seg := s.Segments()[0]
			assert.Equal(t, tt.wantAmp, seg.Amplitude)
			assert.Equal(t, 440.0, seg.Frequency)
			assert.Equal(t, tt.wantSamples, seg.Samples)
			assert.Equal(t, 2*uint64(tt.wantSamples), s.DataSize())
		})
	}
}

func TestAppendRelativeUsesFormat(t *testing.T) {
	s, err := NewStream(Format{SampleRate: 8000, BitDepth: 8})
	require.NoError(t, err)

	require.NoError(t, s.AppendRelative(0.5, 440, 0.25))

	seg := s.Segments()[0]
	assert.Equal(t, 64.0, seg.Amplitude)
	assert.Equal(t, uint32(2000), seg.Samples)
	assert.Equal(t, uint64(2000), s.DataSize())
}

func TestStreamClosedAfterFinalize(t *testing.T) {
	s, err := NewStream(DefaultFormat)
	require.NoError(t, err)
	require.NoError(t, s.AppendAbsolute(100, 440, 4))

	require.NoError(t, s.Finalize(io.Discard))
	assert.True(t, s.Closed())

	assert.ErrorIs(t, s.AppendAbsolute(100, 440, 4), ErrStreamClosed)
	assert.ErrorIs(t, s.AppendRelative(0.5, 440, 1), ErrStreamClosed)
	assert.ErrorIs(t, s.Finalize(io.Discard), ErrStreamClosed)
	assert.Equal(t, 1, s.Len())
}

func TestDuration(t *testing.T) {
	s, err := NewStream(DefaultFormat)
	require.NoError(t, err)

	require.NoError(t, s.AppendRelative(0.5, 440, 1.5))
	require.NoError(t, s.AppendRelative(0.5, 0, 0.5))

	assert.Equal(t, 2*time.Second, s.Duration())
}

func TestStreamString(t *testing.T) {
	s, err := NewStream(DefaultFormat)
	require.NoError(t, err)

	require.NoError(t, s.AppendRelative(0.5, 440, 1))
	require.NoError(t, s.AppendRelative(0.5, 0, 0.5))

	out := s.String()
	assert.Contains(t, out, "Sample rate: 44100 Hz")
	assert.Contains(t, out, "440.00 Hz")
	assert.Contains(t, out, "silence")
	assert.Contains(t, out, "44100")
	assert.Contains(t, out, "22050")
	assert.Contains(t, out, "[Total file size: 132344 bytes]")
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/QEStudios/OctaveWav/parser/octave"
	"github.com/QEStudios/OctaveWav/wav"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/sqweek/dialog"
)

var logger *log.Logger

// options holds the parsed command-line flags.
type options struct {
	tempo      int
	tuning     float64
	amplitude  float64
	sampleRate uint32
	bitDepth   uint16
	song       string
	output     string
	list       bool
	verbose    bool
}

func main() {
	// Stdout may be the WAV output, so logs go to stderr.
	logger = log.New(os.Stderr, "", log.Ldate|log.Ltime)

	var opts options
	pflag.IntVarP(&opts.tempo, "tempo", "t", 90, "tempo in beats per minute (4/4 time)")
	pflag.Float64VarP(&opts.tuning, "tuning", "f", 440, "frequency of the starting note in Hz")
	pflag.Float64VarP(&opts.amplitude, "amplitude", "a", 0.5, "note amplitude as a fraction of full scale")
	pflag.Uint32VarP(&opts.sampleRate, "sample-rate", "r", wav.DefaultFormat.SampleRate, "output sample rate in Hz")
	pflag.Uint16VarP(&opts.bitDepth, "bit-depth", "b", wav.DefaultFormat.BitDepth, "output bit depth (8, 16, 24 or 32)")
	pflag.StringVarP(&opts.song, "song", "s", "", "play a built-in song (see --list)")
	pflag.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	pflag.BoolVarP(&opts.list, "list", "l", false, "list built-in songs and exit")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "log every decoded note and the resulting stream")
	pflag.Parse()

	if opts.list {
		listSongs(os.Stdout)
		return
	}

	// A program reading stdout (e.g. aplay) may exit early. Ignoring SIGPIPE turns
	// that into an EPIPE write error, which the encoder treats as the end of output.
	signal.Ignore(syscall.SIGPIPE)

	notes, err := loadNotes(&opts, pflag.Args())
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			logger.Printf("User cancelled the file dialog")
			os.Exit(1)
		}
		logger.Fatalf("failed to load notes: %v", err)
	}

	stream, err := wav.NewStream(wav.Format{SampleRate: opts.sampleRate, BitDepth: opts.bitDepth})
	if err != nil {
		logger.Fatalf("invalid output format: %v", err)
	}

	cfg := octave.Config{
		Tempo:     opts.tempo,
		Tuning:    opts.tuning,
		Amplitude: opts.amplitude,
		Debug:     opts.verbose,
	}
	decoder, err := octave.NewDecoder(stream, cfg, logger)
	if err != nil {
		logger.Fatalf("invalid decoder settings: %v", err)
	}

	if err := decoder.Read(notes); err != nil {
		logger.Fatalf("decode error: %v", err)
	}

	if opts.verbose {
		logger.Printf("Decoded %d notes\n%s", decoder.Count(), stream)
	}

	out, closeOut, err := openOutput(opts.output, stream.CalculateSize())
	if err != nil {
		logger.Fatalf("error opening output: %v", err)
	}

	if err := decoder.Finish(out); err != nil {
		logger.Fatalf("error writing WAV: %v", err)
	}
	if err := closeOut(); err != nil {
		logger.Fatalf("error closing output: %v", err)
	}
}

// loadNotes returns the note string to decode. Sources in order of priority:
// a built-in song, a positional argument (a .txt file or a literal note string),
// or a file picked in a dialog.
func loadNotes(opts *options, args []string) (string, error) {
	if opts.song != "" {
		s, ok := songByName(opts.song)
		if !ok {
			return "", fmt.Errorf("unknown song %q (use --list to see available songs)", opts.song)
		}
		// Songs carry their own tempo unless one was given explicitly.
		if !pflag.CommandLine.Changed("tempo") {
			opts.tempo = s.tempo
		}
		return s.notes, nil
	}

	if len(args) > 0 {
		arg := args[0]
		if strings.EqualFold(filepath.Ext(arg), ".txt") {
			return readNotesFile(arg)
		}
		return arg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	path, err := choosePath(cwd)
	if err != nil {
		return "", err
	}
	return readNotesFile(path)
}

// readNotesFile reads a whole notes file. Surrounding whitespace is ignored.
func readNotesFile(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot get absolute path: %w", err)
	}
	if err := validatePath(absPath); err != nil {
		return "", fmt.Errorf("passed argument is not a valid path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("error reading notes file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// choosePath returns the path of a notes file picked in an interactive file dialog.
func choosePath(cwd string) (string, error) {
	path, err := dialog.
		File().
		Title("Open notes file").
		Filter("Note strings (*.txt)", "txt").
		SetStartDir(cwd).
		Load()
	if err != nil {
		// Propagate the error. Caller will check for dialog.ErrCancelled.
		return "", err
	}

	// Check for empty path just in case.
	if path == "" {
		return "", dialog.ErrCancelled
	}
	return path, nil
}

// validatePath checks that p has a .txt extension and names an existing file.
func validatePath(p string) error {
	if strings.ToLower(filepath.Ext(p)) != ".txt" {
		return fmt.Errorf("file must have .txt extension")
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}
	return nil
}

// openOutput returns the writer for the WAV file and a function closing it.
// Output to a file shows a progress bar of size bytes on stderr.
func openOutput(path string, size uint64) (io.Writer, func() error, error) {
	if path == "-" || path == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}

	bar := progressbar.NewOptions64(int64(size),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(filepath.Base(path)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	closeOut := func() error {
		if err := bar.Finish(); err != nil {
			logger.Printf("progress bar: %v", err)
		}
		return file.Close()
	}
	return io.MultiWriter(file, bar), closeOut, nil
}

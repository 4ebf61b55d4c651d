// Package telemetry constructs the single zerolog.Logger traceboard passes
// explicitly through its call graph. There is no package-level logger here:
// every component that needs one takes a zerolog.Logger as a constructor
// argument, the way the teacher threads its own options structs rather than
// reaching for ambient globals.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options configures the logger New builds.
type Options struct {
	// Debug lowers the minimum level to debug; otherwise info.
	Debug bool
	// Pretty writes a human-readable console format instead of JSON lines.
	// `traceboard scan` turns it on; `traceboard watch` leaves it off.
	Pretty bool
	// Output is where log lines go. Defaults to os.Stderr when nil, so
	// stdout stays free for the TUI and any piped output.
	Output io.Writer
}

// New builds a zerolog.Logger per opts.
func New(opts Options) zerolog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	if opts.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

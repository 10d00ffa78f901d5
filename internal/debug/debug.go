package debug

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (run start/stop, map summary, hazards)
	LevelLive    = 2 // Live info (decisions, turns, records appended)
	LevelVerbose = 3 // Verbose (sensor readings, PID terms, config)
	LevelTrace   = 4 // Trace (GPIO, serial, very low level)
)

var (
	level  int
	out    io.Writer = os.Stdout
	logger           = zerolog.Nop()
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (run lifecycle, map summary, hazards)
// 2 = live info (decisions, turns, move records)
// 3 = verbose (sensor snapshots, PID terms, configuration)
// 4 = trace (GPIO, serial, very low level)
func Init(debugLevel int) {
	level = debugLevel
	rebuild()
}

// SetOutput redirects debug output (e.g. to the web status stream as well as stdout).
func SetOutput(w io.Writer) {
	out = w
	rebuild()
}

func rebuild() {
	if level <= LevelOff {
		logger = zerolog.Nop()
		return
	}
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: out != os.Stdout}
	logger = zerolog.New(cw).Level(zerolog.TraceLevel).With().
		Timestamp().
		Str("app", "MazeGo").
		Logger()
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// Logger returns the underlying structured logger for packages that log
// with fields (e.g. the run archive). It is a no-op logger when debug is off.
func Logger() zerolog.Logger {
	return logger
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Info().Msgf(format, args...)
	}
}

// Summary prints an important summary banner.
func Summary(title string) {
	if level >= LevelInfo {
		logger.Info().Msg("═══════════════════════════════════════")
		logger.Info().Msgf("  %s", title)
		logger.Info().Msg("═══════════════════════════════════════")
	}
}

// MapSummary prints the size of a reconstructed map (level 1).
func MapSummary(width, height, hazards int) {
	if level >= LevelInfo {
		logger.Info().
			Int("width", width).
			Int("height", height).
			Int("hazards", hazards).
			Msg("Map built")
	}
}

// Hazard prints a detected hazard (level 1).
func Hazard(kind string, value float64) {
	if level >= LevelInfo {
		logger.Warn().Str("kind", kind).Float64("value", value).Msg("Hazard detected")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive {
		logger.Debug().Msgf(format, args...)
	}
}

// Decision prints the action chosen on a control tick (level 2).
func Decision(tick int, action string, front, right float64) {
	if level >= LevelLive {
		logger.Debug().
			Int("tick", tick).
			Float64("front", front).
			Float64("right", right).
			Msgf("Decision: %s", action)
	}
}

// Turn prints an open-loop turn (level 2).
func Turn(direction string, d time.Duration) {
	if level >= LevelLive {
		logger.Debug().Dur("duration", d).Msgf("Turning %s", direction)
	}
}

// Record prints a move record appended to the log (level 2).
func Record(index int, code string, value float64) {
	if level >= LevelLive {
		logger.Debug().Int("index", index).Float64("value", value).Msgf("Move record %s", code)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf(format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose {
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debug().Msgf("  %s", name)
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose {
		logger.Debug().Msgf("Step %d: %s", num, description)
	}
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo {
		logger.Info().Msgf("  %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO, serial).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace {
		logger.Trace().Msgf(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace {
		logger.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("GPIO")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo {
		logger.Error().Err(err).Send()
	}
}

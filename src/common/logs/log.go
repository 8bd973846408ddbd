// Package logs provides the shared logging facility for the y12 binaries.
// Output goes to stdout, or to systemd journald when it is available and requested.
package logs

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// LogOutput names a log destination
type LogOutput string

const (
	OutputStdout   LogOutput = "stdout"
	OutputStderr   LogOutput = "stderr"
	OutputJournald LogOutput = "journald"
	// OutputAuto picks journald when the socket exists, stdout otherwise
	OutputAuto LogOutput = "auto"
)

// Logger wraps the charm logger and remembers where it writes
type Logger struct {
	*log.Logger
	output LogOutput
}

// Config holds the logger configuration
type Config struct {
	Output LogOutput
	Level  string
	Prefix string
	// Writer overrides Output when set
	Writer io.Writer
}

// DefaultConfig returns the configuration used by package level loggers
func DefaultConfig() Config {
	return Config{
		Output: OutputAuto,
		Level:  "info",
	}
}

func journaldAvailable() bool {
	if _, err := exec.LookPath("systemd-cat"); err != nil {
		return false
	}
	_, err := os.Stat("/run/systemd/journal/socket")
	return err == nil
}

// ParseLevel converts a level name to a charm log level, defaulting to info
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func resolveWriter(cfg Config) (io.Writer, LogOutput) {
	if cfg.Writer != nil {
		return cfg.Writer, cfg.Output
	}
	switch cfg.Output {
	case OutputStderr:
		return os.Stderr, OutputStderr
	case OutputJournald, OutputAuto:
		if journaldAvailable() {
			return &journaldWriter{identifier: "y12"}, OutputJournald
		}
	}
	return os.Stdout, OutputStdout
}

// New creates a Logger from cfg
func New(cfg Config) *Logger {
	w, out := resolveWriter(cfg)
	return &Logger{
		Logger: log.NewWithOptions(w, log.Options{
			Level:           ParseLevel(cfg.Level),
			Prefix:          cfg.Prefix,
			ReportTimestamp: true,
		}),
		output: out,
	}
}

// NewDefault creates a Logger with DefaultConfig
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDiscard returns a logger that drops everything, for tests
func NewDiscard() *Logger {
	return New(Config{Writer: io.Discard, Level: "error"})
}

// Output returns the destination actually selected
func (l *Logger) Output() LogOutput {
	return l.output
}

// journaldWriter pipes each record through systemd-cat
type journaldWriter struct {
	identifier string
}

func (w *journaldWriter) Write(p []byte) (int, error) {
	cmd := exec.Command("systemd-cat", "-t", w.identifier)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return os.Stdout.Write(p)
	}
	if err := cmd.Start(); err != nil {
		return os.Stdout.Write(p)
	}
	n, _ := stdin.Write(p)
	stdin.Close()
	// the record was handed over even if systemd-cat exits non-zero
	_ = cmd.Wait()
	return n, nil
}

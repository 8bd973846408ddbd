// Package output renders y12ctl results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Formats understood by PrintFormatted
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Stdout and Stderr are the destinations of every printer
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// DefaultFormat picks table output for terminals and JSON for pipes
func DefaultFormat() string {
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}

// ValidFormat reports whether f names a known format
func ValidFormat(f string) bool {
	switch f {
	case FormatTable, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// PrintJSON writes data as indented JSON
func PrintJSON(data any) error {
	enc := json.NewEncoder(Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes data as YAML. Values go through JSON first so the
// field names match the API.
func PrintYAML(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to convert: %w", err)
	}

	enc := yaml.NewEncoder(Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// PrintTable writes tabular data
func PrintTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)

	writeRow(w, headers)
	for _, row := range rows {
		writeRow(w, row)
	}

	w.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
}

// PrintFormatted writes data as JSON or YAML, or calls table for the
// human readable form
func PrintFormatted(format string, data any, table func() error) error {
	switch format {
	case FormatJSON:
		return PrintJSON(data)
	case FormatYAML:
		return PrintYAML(data)
	default:
		return table()
	}
}

// PrintMessage writes a plain message
func PrintMessage(msg string) {
	fmt.Fprintln(Stdout, msg)
}

// PrintError writes an error message to Stderr
func PrintError(err error) {
	fmt.Fprintf(Stderr, "Error: %v\n", err)
}

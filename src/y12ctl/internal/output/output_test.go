package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := Stdout
	Stdout = &buf
	t.Cleanup(func() { Stdout = old })
	return &buf
}

func TestPrintJSON_Indented(t *testing.T) {
	buf := capture(t)
	if err := PrintJSON(map[string]string{"key": "value"}); err != nil {
		t.Fatalf("PrintJSON error: %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key=value, got %v", result)
	}
	if !strings.Contains(buf.String(), "  \"key\"") {
		t.Errorf("expected indented JSON, got %s", buf.String())
	}
}

func TestPrintYAML_UsesJSONFieldNames(t *testing.T) {
	type job struct {
		ID          string `json:"id"`
		ISOUploaded bool   `json:"iso_uploaded"`
	}
	buf := capture(t)
	if err := PrintYAML(job{ID: "abc", ISOUploaded: true}); err != nil {
		t.Fatalf("PrintYAML error: %v", err)
	}

	var result map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid YAML output: %v", err)
	}
	if result["id"] != "abc" {
		t.Errorf("expected id=abc, got %v", result)
	}
	if result["iso_uploaded"] != true {
		t.Errorf("expected iso_uploaded=true, got %v", result)
	}
}

func TestPrintTable_AlignsColumns(t *testing.T) {
	buf := capture(t)
	PrintTable([]string{"ID", "STATUS"}, [][]string{
		{"a", "building"},
		{"long-id", "complete"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	col := strings.Index(lines[0], "STATUS")
	for _, l := range lines[1:] {
		if idx := strings.IndexAny(l[col:], "bc"); idx != 0 {
			t.Errorf("column not aligned in %q", l)
		}
	}
}

func TestPrintFormatted(t *testing.T) {
	tests := []struct {
		format    string
		wantTable bool
		contains  string
	}{
		{format: FormatJSON, contains: `"count": 1`},
		{format: FormatYAML, contains: "count: 1"},
		{format: FormatTable, wantTable: true},
		{format: "", wantTable: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := capture(t)
			called := false
			err := PrintFormatted(tt.format, map[string]int{"count": 1}, func() error {
				called = true
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if called != tt.wantTable {
				t.Errorf("table called = %v, want %v", called, tt.wantTable)
			}
			if tt.contains != "" && !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected %q in %q", tt.contains, buf.String())
			}
		})
	}
}

func TestPrintFormatted_TableError(t *testing.T) {
	capture(t)
	want := errors.New("boom")
	if err := PrintFormatted(FormatTable, nil, func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected table error, got %v", err)
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		if !ValidFormat(f) {
			t.Errorf("expected %q to be valid", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("expected xml to be invalid")
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	old := Stderr
	Stderr = &buf
	defer func() { Stderr = old }()

	PrintError(errors.New("nope"))
	if buf.String() != "Error: nope\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

package kconfig

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	setRegex   = regexp.MustCompile(`^(CONFIG_[A-Za-z0-9_]+)=(.*)$`)
	unsetRegex = regexp.MustCompile(`^# (CONFIG_[A-Za-z0-9_]+) is not set$`)
)

// Option is one kernel config assignment. Value is "y", "m", "n" for a
// "# ... is not set" line, or the raw right hand side otherwise.
type Option struct {
	Key   string
	Value string
}

func (o Option) String() string {
	switch o.Value {
	case "n":
		return fmt.Sprintf("# %s is not set", o.Key)
	default:
		return fmt.Sprintf("%s=%s", o.Key, o.Value)
	}
}

// Fragment is an ordered list of options meant to be merged on top of an
// architecture defconfig with merge_config.sh
type Fragment []Option

// Stats summarizes a fragment the way build logs report it
type Stats struct {
	Enabled  int
	Disabled int
	Total    int
}

// ParseFragment extracts options from text, keeping their order. Lines that
// are not assignments or "is not set" markers are skipped.
func ParseFragment(text string) Fragment {
	var f Fragment
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if m := setRegex.FindStringSubmatch(line); m != nil {
			f = append(f, Option{Key: m[1], Value: m[2]})
		} else if m := unsetRegex.FindStringSubmatch(line); m != nil {
			f = append(f, Option{Key: m[1], Value: "n"})
		}
	}
	return f
}

// Has reports whether any line sets key to value
func (f Fragment) Has(key, value string) bool {
	for _, o := range f {
		if o.Key == key && o.Value == value {
			return true
		}
	}
	return false
}

// Mentions reports whether key appears at all
func (f Fragment) Mentions(key string) bool {
	for _, o := range f {
		if o.Key == key {
			return true
		}
	}
	return false
}

// Enabled reports whether key is built in or built as a module
func (f Fragment) Enabled(key string) bool {
	return f.Has(key, "y") || f.Has(key, "m")
}

// Disabled reports whether key is switched off
func (f Fragment) Disabled(key string) bool {
	return f.Has(key, "n")
}

// String renders one option per line
func (f Fragment) String() string {
	lines := make([]string, len(f))
	for i, o := range f {
		lines[i] = o.String()
	}
	return strings.Join(lines, "\n")
}

// Analyze counts the config lines of text and how many enable or disable
func Analyze(text string) Stats {
	var s Stats
	s.Total = ConfigLines(text)
	for _, o := range ParseFragment(text) {
		switch o.Value {
		case "y", "m":
			s.Enabled++
		case "n":
			s.Disabled++
		}
	}
	return s
}

// ConfigLines counts lines starting with CONFIG_ or "# CONFIG_"
func ConfigLines(text string) int {
	n := 0
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "CONFIG_") || strings.HasPrefix(line, "# CONFIG_") {
			n++
		}
	}
	return n
}

// LineCount is the raw number of lines, as recorded in manifests
func LineCount(text string) int {
	return len(splitLines(text))
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

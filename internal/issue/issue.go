// Package issue implements the first layer of the three-layer error model:
// parse issues collected while reading source or textual IR, reported with
// Rust-style caret diagnostics rather than aborting on the first problem.
// Invariant violations and unsupported-construction panics (layers two and
// three) go through this package's Invariant and Unsupported helpers
// (invariant.go), which panic instead of accumulating; List accumulates
// and renders only the recoverable issues.
package issue

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// LoadSource reads the file at path, wrapping a read failure with
// pkg/errors stack context. This is a bare I/O error, distinct from the
// user-facing Issue diagnostics a malformed-but-readable file produces.
func LoadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return string(data), nil
}

// Level is the severity of an Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
	LevelHelp    Level = "help"
)

// Position locates an Issue in a source file or textual IR listing.
type Position struct {
	Line   int
	Column int
}

// Suggestion is an optional proposed fix attached to an Issue.
type Suggestion struct {
	Message     string
	Replacement string
}

// Issue is one lexical, syntactic, or semantic problem found while
// parsing. Issues are collected into a List rather than returned as the
// first error encountered, so a caller sees every problem in one pass.
type Issue struct {
	Level       Level
	Code        string
	Message     string
	Position    Position
	Length      int
	Suggestions []Suggestion
	Notes       []string
	HelpText    string
}

// List accumulates Issues for one parse or build and reports whether any
// are fatal.
type List struct {
	items []Issue
}

func (l *List) Add(i Issue) { l.items = append(l.items, i) }

func (l *List) Errorf(pos Position, code, format string, args ...any) {
	l.Add(Issue{Level: LevelError, Code: code, Message: fmt.Sprintf(format, args...), Position: pos, Length: 1})
}

func (l *List) Warnf(pos Position, code, format string, args ...any) {
	l.Add(Issue{Level: LevelWarning, Code: code, Message: fmt.Sprintf(format, args...), Position: pos, Length: 1})
}

// Items returns every collected Issue.
func (l *List) Items() []Issue { return l.items }

// HasErrors reports whether any collected Issue is at LevelError.
func (l *List) HasErrors() bool {
	for _, i := range l.items {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

func (l *List) Len() int { return len(l.items) }

// Reporter renders Issues against the source text they were found in,
// using the same caret/gutter layout regardless of whether the source is
// a surface-language file or a textual IR listing.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders every issue in l, in order.
func (r *Reporter) Format(l *List) string {
	var sb strings.Builder
	for _, i := range l.Items() {
		sb.WriteString(r.FormatOne(i))
	}
	return sb.String()
}

// FormatOne renders a single Issue with a Rust-style gutter, source
// context line, and caret marker.
func (r *Reporter) FormatOne(iss Issue) string {
	var result strings.Builder

	levelColor := r.levelColor(iss.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if iss.Code != "" {
		result.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(iss.Level)), iss.Code, iss.Message))
	} else {
		result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(iss.Level)), iss.Message))
	}

	width := r.lineNumberWidth(iss.Position.Line)
	indent := strings.Repeat(" ", width)

	result.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, iss.Position.Line, iss.Position.Column))
	result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if iss.Position.Line > 1 && iss.Position.Line-1 <= len(r.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, iss.Position.Line-1)), dim("│"), r.lines[iss.Position.Line-2]))
	}

	if iss.Position.Line > 0 && iss.Position.Line <= len(r.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, iss.Position.Line)), dim("│"), r.lines[iss.Position.Line-1]))
		result.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), r.marker(iss.Position.Column, iss.Length, iss.Level)))
	}

	if iss.Position.Line > 0 && iss.Position.Line < len(r.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, iss.Position.Line+1)), dim("│"), r.lines[iss.Position.Line]))
	}

	if len(iss.Suggestions) > 0 {
		cyan := color.New(color.FgCyan).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))
		for i, s := range iss.Suggestions {
			if i == 0 {
				result.WriteString(fmt.Sprintf("%s %s %s: %s\n", indent, cyan("help"), cyan("try"), s.Message))
			} else {
				result.WriteString(fmt.Sprintf("%s %s %s\n", indent, cyan("    "), s.Message))
			}
			if s.Replacement != "" {
				result.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), cyan(s.Replacement)))
			}
		}
	}

	for _, note := range iss.Notes {
		blue := color.New(color.FgBlue).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), blue("note:"), note))
	}
	if iss.HelpText != "" {
		green := color.New(color.FgGreen).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), green("help:"), iss.HelpText))
	}

	result.WriteString("\n")
	return result.String()
}

func (r *Reporter) levelColor(level Level) func(...any) string {
	switch level {
	case LevelError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case LevelNote:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case LevelHelp:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func (r *Reporter) marker(column, length int, level Level) string {
	if length <= 0 {
		length = 1
	}
	lead := column - 1
	if lead < 0 {
		lead = 0
	}
	spaces := strings.Repeat(" ", lead)

	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == LevelWarning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return spaces + markerColor(strings.Repeat("^", length))
}

func (r *Reporter) lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3
	}
	return width
}

// Package diagnostics renders compiler errors with a source caret, the
// way every later stage of the pipeline reports lexical, semantic, and
// I/O failures back to the CLI driver.
package diagnostics

import (
	"fmt"
	"strings"
)

// Pos is a source position sufficient to re-open the source file and
// render a caret-highlighted snippet: the file symbol, 1-based line and
// column, byte offset, and the length of the offending span.
type Pos struct {
	File   string
	Line   int
	Column int
	Offset int
	Length int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Phase names the pipeline stage that raised a Diagnostic.
type Phase uint8

const (
	PhaseLexer Phase = iota
	PhaseParser
	PhaseSemant
	PhaseCanon
	PhaseSelect
	PhaseAlloc
	PhaseIO
	PhaseInternal
)

func (p Phase) String() string {
	switch p {
	case PhaseLexer:
		return "lexer"
	case PhaseParser:
		return "parser"
	case PhaseSemant:
		return "semant"
	case PhaseCanon:
		return "canon"
	case PhaseSelect:
		return "select"
	case PhaseAlloc:
		return "alloc"
	case PhaseIO:
		return "io"
	default:
		return "internal"
	}
}

// Severity classifies how a Diagnostic should affect the compile's
// outcome: Error short-circuits the pipeline, Warning does not.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one lexical, semantic, or I/O failure, carrying enough
// position information to render a caret snippet against the original
// source text.
type Diagnostic struct {
	Pos      Pos
	Phase    Phase
	Severity Severity
	Message  string
}

func New(phase Phase, pos Pos, format string, args ...any) *Diagnostic {
	return &Diagnostic{Pos: pos, Phase: phase, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

func Warn(phase Phase, pos Pos, format string, args ...any) *Diagnostic {
	return &Diagnostic{Pos: pos, Phase: phase, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Phase, d.Message)
}

// Render renders d against source (the full text of the file named in
// d.Pos), producing the classic compiler two-line snippet: the offending
// source line, followed by a caret line pointing at the column.
func Render(d *Diagnostic, source string) string {
	lines := strings.Split(source, "\n")
	if d.Pos.Line < 1 || d.Pos.Line > len(lines) {
		return d.Error()
	}
	line := lines[d.Pos.Line-1]
	col := d.Pos.Column
	if col < 1 {
		col = 1
	}
	caretPad := strings.Repeat(" ", col-1)
	caretLen := d.Pos.Length
	if caretLen < 1 {
		caretLen = 1
	}
	caret := strings.Repeat("^", caretLen)
	return fmt.Sprintf("%s\n%s\n%s%s", d.Error(), line, caretPad, caret)
}

// HasErrors reports whether any Diagnostic in ds carries SeverityError.
func HasErrors(ds []*Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

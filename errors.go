// errors.go — the closed diagnostic taxonomy (spec.md §4.6, §7) and a
// caret-snippet renderer for surfacing them to a human.
//
// Diagnostics are data, not control flow (spec.md §9): Parse and Compile
// never panic on malformed input, they return a Diagnostic with a Kind,
// message and Span. WrapErrorWithSource is a convenience the core itself
// never calls — per spec.md §7 the core never writes to stderr — it exists
// for callers (CLI, bot, editor) that want a Python-style caret snippet,
// the same idea as the teacher's errors.go but keyed off Diagnostic instead
// of *LexError/*ParseError.
package momoscript

import (
	"fmt"
	"strings"
)

// DiagnosticKind is one member of the closed taxonomy in spec.md §4.6.
type DiagnosticKind string

const (
	// SyntaxError family
	ErrContinuationBeforeStatement DiagnosticKind = "ContinuationBeforeStatement"
	ErrUnclosedBlock               DiagnosticKind = "UnclosedBlock"
	ErrMalformedDirective          DiagnosticKind = "MalformedDirective"
	ErrEmptyReplyBlock             DiagnosticKind = "EmptyReplyBlock"
	ErrNestedDirective             DiagnosticKind = "NestedDirective"
	ErrBadMarkerOnPagebreak        DiagnosticKind = "BadMarkerOnPagebreak"
	ErrHeaderKeyAfterBody          DiagnosticKind = "HeaderKeyAfterBody"
	ErrUnknownDirective            DiagnosticKind = "UnknownDirective"

	// NameError family
	ErrUnknownPack        DiagnosticKind = "UnknownPack"
	ErrDuplicateAlias     DiagnosticKind = "DuplicateAlias"
	ErrUnknownCharacter   DiagnosticKind = "UnknownCharacter"
	ErrUnknownShortId     DiagnosticKind = "UnknownShortId"
	ErrBackrefOutOfRange  DiagnosticKind = "BackrefOutOfRange"
	ErrIndexOutOfRange    DiagnosticKind = "IndexOutOfRange"
	ErrNoCurrentSpeaker   DiagnosticKind = "NoCurrentSpeaker"

	// AssetError family
	ErrUnknownAsset     DiagnosticKind = "UnknownAsset"
	ErrInvalidAssetPath DiagnosticKind = "InvalidAssetPath"

	// InvariantError: must never fire on valid input.
	ErrInvariant DiagnosticKind = "InvariantError"

	// Warnings have no Kind of their own: they carry one of the Kind values
	// above and are marked by Diagnostic.Warning.
)

// DiagnosticNote is a secondary span attached to a Diagnostic, e.g. the
// opener of an unclosed block.
type DiagnosticNote struct {
	Message string
	Span    Span
}

// Diagnostic is the uniform shape of every parse/compile error and warning
// (spec.md §6.4).
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
	Span    Span
	Notes   []DiagnosticNote
	Warning bool // true for non-fatal warnings (dropped alias directives, etc.)
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s at %s: %s", d.Kind, d.Span, d.Message)
}

func newDiag(kind DiagnosticKind, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

func newWarning(kind DiagnosticKind, span Span, format string, args ...any) Diagnostic {
	d := newDiag(kind, span, format, args...)
	d.Warning = true
	return d
}

// WrapErrorWithSource renders a Diagnostic as a multi-line, Python-style
// caret snippet against the given source. Non-Diagnostic errors pass
// through unchanged. This is purely a rendering convenience for callers —
// the core never calls it itself.
func WrapErrorWithSource(err error, src string) error {
	d, ok := err.(Diagnostic)
	if !ok {
		return err
	}
	header := "PARSE ERROR"
	if isNameOrAssetKind(d.Kind) {
		header = "COMPILE ERROR"
	}
	return fmt.Errorf("%s", prettyDiagnostic(src, header, d))
}

func isNameOrAssetKind(k DiagnosticKind) bool {
	switch k {
	case ErrUnknownPack, ErrDuplicateAlias, ErrUnknownCharacter, ErrUnknownShortId,
		ErrBackrefOutOfRange, ErrIndexOutOfRange, ErrNoCurrentSpeaker,
		ErrUnknownAsset, ErrInvalidAssetPath:
		return true
	default:
		return false
	}
}

func prettyDiagnostic(src, header string, d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] at %d:%d: %s\n\n", header, d.Kind, d.Span.StartLine, d.Span.StartCol, d.Message)
	b.WriteString(caretSnippet(src, d.Span.StartLine, d.Span.StartCol))
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "\nnote: %s (%d:%d)\n", n.Message, n.Span.StartLine, n.Span.StartCol)
	}
	return b.String()
}

// caretSnippet builds a single caret-annotated source line with one line of
// context on either side, the same shape as the teacher's errors.go.
func caretSnippet(src string, line, col int) string {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var b strings.Builder
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}

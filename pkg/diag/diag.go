// Package diag renders source-span diagnostics for the VM parser: a primary
// red label at the offending span plus yellow secondary labels for the
// grammar context it is nested in (e.g. the enclosing function declaration).
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"go.hmny.dev/hacktranslator/pkg/utils"
)

// Span identifies a range of text within a single source line. Line and
// Column are both 1-based, matching how editors and compilers usually report
// positions to humans.
type Span struct {
	File   string
	Line   int
	Column int
	Length int
	Text   string // the full source line Span was taken from, for rendering
}

// Label pairs a Span with the message to print alongside it.
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is one reported problem: a required primary label plus zero or
// more secondary labels giving enclosing context (the function a bad segment
// reference was found inside of, for instance).
type Diagnostic struct {
	Message   string
	Primary   Label
	Secondary []Label
}

// ContextStack tracks the chain of enclosing grammar constructs (currently:
// function declarations) a parser is nested inside of while walking a
// compilation unit. Diagnostics raised mid-walk attach the current stack as
// secondary labels.
type ContextStack struct{ stack utils.Stack[Label] }

// Push enters a new enclosing context.
func (c *ContextStack) Push(l Label) { c.stack.Push(l) }

// Pop leaves the innermost enclosing context.
func (c *ContextStack) Pop() { c.stack.Pop() }

// Snapshot returns the current context chain, outermost first, suitable for
// attaching to a Diagnostic as Secondary labels.
func (c *ContextStack) Snapshot() []Label {
	var labels []Label
	for l := range c.stack.Iterator() {
		labels = append(labels, l)
	}
	// Iterator yields innermost-first; reverse so callers see outermost-first.
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}

var (
	primaryColor   = color.New(color.FgRed, color.Bold)
	secondaryColor = color.New(color.FgYellow)
	locationColor  = color.New(color.FgCyan)
)

// Render formats d as a multi-line, colorized report: the message, the
// primary span with a red caret underline, then each secondary span with a
// yellow caret underline, outermost-first.
func (d Diagnostic) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", primaryColor.Sprint("error"), d.Message)
	renderLabel(&b, d.Primary, primaryColor)
	for _, label := range d.Secondary {
		renderLabel(&b, label, secondaryColor)
	}

	return b.String()
}

func renderLabel(b *strings.Builder, l Label, c *color.Color) {
	loc := fmt.Sprintf("%s:%d:%d", l.Span.File, l.Span.Line, l.Span.Column)
	fmt.Fprintf(b, "  %s %s\n", locationColor.Sprint(loc), l.Message)
	fmt.Fprintf(b, "    %s\n", l.Span.Text)

	length := l.Span.Length
	if length < 1 {
		length = 1
	}
	underline := strings.Repeat(" ", max(l.Span.Column-1, 0)) + strings.Repeat("^", length)
	fmt.Fprintf(b, "    %s\n", c.Sprint(underline))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	pc "github.com/prataprc/goparsec"

	"go.hmny.dev/hacktranslator/pkg/diag"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for every token & statement of the Vm language.
//
// Unlike the Assembler parser, which hands the whole source to a single ManyUntil
// combinator, the Vm grammar is driven one line at a time (see Parser.Parse below):
// the dialect is strictly line-oriented, and parsing a line in isolation is what
// lets every diagnostic carry the span of the offending line without needing to
// lean on goparsec internals beyond the Scanner cursor already used by the
// Assembler. The span covers the whole statement line, starting at column 1.

var ast = pc.NewAST("virtual_machine", 0)

var (
	// Parser combinator for a single Vm statement (exactly one per source line,
	// once comments are stripped). Call is deliberately absent.
	pStatement = ast.OrdChoice("statement", nil,
		pMemoryOp, pArithmeticOp, pLabelDecl, pGotoOp, pFuncDecl, pReturnOp,
	)

	// Memory operation, compliant with the following syntax: "{push|pop} {segment} {index}"
	pMemoryOp = ast.And("memory_op", nil, pMemOpType, pSegment, pc.Int())
	// Arithmetic/logical operation, nullary, acts on the stack implicitly.
	pArithmeticOp = ast.And("arithmetic_op", nil, pArithOpType)

	// Label declaration, compliant with the following syntax: "label {symbol}"
	pLabelDecl = ast.And("label_decl", nil, pc.Token(`label\b`, "LABEL"), pIdent)
	// Jump operation, compliant with the following syntax: "{if-goto|goto} {symbol}"
	pGotoOp = ast.And("goto_op", nil, pJumpType, pIdent)

	// Function declaration, compliant with the following syntax: "function {name} {n_locals}"
	pFuncDecl = ast.And("func_decl", nil, pc.Token(`function\b`, "FUNC"), pIdent, pc.Int())
	// Return statement, compliant with the following syntax: "return"
	pReturnOp = ast.And("return_op", nil, pc.Token(`return\b`, "RETURN"))
)

var (
	// Generic identifier parser (for label and function declarations).
	// NOTE: an ident can be any sequence of letters, digits, and symbols (_, ., $, :).
	// NOTE: an ident cannot begin with a leading digit.
	pIdent = pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "IDENT")

	// Available memory operation types (only push and pop, since it's stack based).
	// Every keyword below is matched whole-word (\b) so e.g. "pushed" never
	// matches the "push" keyword.
	pMemOpType = ast.OrdChoice("mem_op_type", nil, pc.Token(`push\b`, "PUSH"), pc.Token(`pop\b`, "POP"))

	// Available memory segments.
	pSegment = ast.OrdChoice("mem_segment", nil,
		pc.Token(`argument\b`, "ARGUMENT"), pc.Token(`local\b`, "LOCAL"),
		pc.Token(`static\b`, "STATIC"), pc.Token(`constant\b`, "CONSTANT"),
		pc.Token(`this\b`, "THIS"), pc.Token(`that\b`, "THAT"),
		pc.Token(`temp\b`, "TEMP"), pc.Token(`pointer\b`, "POINTER"),
	)

	// Available nullary arithmetic/logical operations.
	pArithOpType = ast.OrdChoice("op_type", nil,
		pc.Token(`eq\b`, "EQ"), pc.Token(`gt\b`, "GT"), pc.Token(`lt\b`, "LT"),
		pc.Token(`add\b`, "ADD"), pc.Token(`sub\b`, "SUB"), pc.Token(`neg\b`, "NEG"),
		pc.Token(`not\b`, "NOT"), pc.Token(`and\b`, "AND"), pc.Token(`or\b`, "OR"),
	)

	// Jump keywords: conditional (if-goto) or unconditional (goto).
	pJumpType = ast.OrdChoice("jump_type", nil, pc.Token(`if-goto\b`, "IF-GOTO"), pc.Token(`goto\b`, "GOTO"))
)

// ----------------------------------------------------------------------------
// Vm Parser

// Parser turns Vm source text into a CompilationUnit plus any diagnostics
// collected while doing so. It honors the same PARSEC_DEBUG feature flag as
// the Assembler parser.
type Parser struct{ filename string }

// NewParser returns a Parser for a compilation unit named filename (its base
// name, extension included, e.g. "Foo.vm"). filename namespaces Static segment symbols and is
// validated against every "function File.name" declaration.
func NewParser(filename string) Parser {
	return Parser{filename: filename}
}

type sourceLine struct {
	number  int    // 1-based line number, for diagnostics
	raw     string // the full original line, comment included
	content string // trimmed, comment-stripped code; empty for blank/comment-only lines
}

// Parse splits source into statement-carrying lines, parses each
// independently, and assembles the resulting CompilationUnit. All lexical and
// semantic errors are collected rather than stopping at the first one; the
// caller must refuse compilation if the returned diagnostic slice is
// non-empty, even though parsing itself always runs to completion.
func (p *Parser) Parse(source []byte) (*CompilationUnit, []diag.Diagnostic) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	lines := splitLines(source)
	functionStructured := containsFunctionDecl(lines)

	var (
		diagnostics []diag.Diagnostic
		statements  []Statement
		functions   []Function
		current     *Function
		ctx         diag.ContextStack
	)

	for _, line := range lines {
		stmt, err := p.parseLine(line)
		if err != nil {
			diagnostics = append(diagnostics, p.diagnostic(line, err.Error(), ctx.Snapshot()))
			continue
		}

		if fn, ok := stmt.(Function); ok {
			component := fn.Name
			if idx := strings.IndexByte(fn.Name, '.'); idx >= 0 {
				component = fn.Name[:idx]
			}
			if !strings.HasPrefix(p.filename, component) {
				diagnostics = append(diagnostics, p.diagnostic(line, fmt.Sprintf(
					"function %q's leading component %q is not a prefix of file name %q", fn.Name, component, p.filename,
				), ctx.Snapshot()))
			}

			if current != nil {
				functions = append(functions, *current)
			}
			current = &Function{Name: fn.Name, NumLocals: fn.NumLocals}
			ctx = diag.ContextStack{}
			ctx.Push(diag.Label{
				Span:    lineSpan(p.filename, line),
				Message: fmt.Sprintf("in function %q", fn.Name),
			})
			continue
		}

		switch {
		case functionStructured && current != nil:
			current.Statements = append(current.Statements, stmt)
		default:
			statements = append(statements, stmt)
		}
	}
	if current != nil {
		functions = append(functions, *current)
	}

	unit := &CompilationUnit{Filename: p.filename}
	if functionStructured {
		unit.Functions = functions
	} else {
		unit.Statements = statements
	}
	return unit, diagnostics
}

// parseLine parses the single statement expected to occupy line.content.
func (p *Parser) parseLine(line sourceLine) (Statement, error) {
	root, scanner := ast.Parsewith(pStatement, pc.NewScanner([]byte(line.content)))
	if root == nil {
		return nil, fmt.Errorf("unrecognized statement %q", line.content)
	}
	if remaining := strings.TrimSpace(string(scanner.Bytes()[scanner.GetCursor():])); remaining != "" {
		return nil, fmt.Errorf("unexpected trailing input %q", remaining)
	}
	return p.fromNode(root)
}

func (p *Parser) fromNode(node pc.Queryable) (Statement, error) {
	switch node.GetName() {
	case "memory_op":
		return p.handleMemoryOp(node)
	case "arithmetic_op":
		return p.handleArithmeticOp(node)
	case "label_decl":
		return p.handleLabelDecl(node)
	case "goto_op":
		return p.handleGotoOp(node)
	case "func_decl":
		return p.handleFuncDecl(node)
	case "return_op":
		return Return{}, nil
	default:
		return nil, fmt.Errorf("unrecognized node %q", node.GetName())
	}
}

func (p *Parser) handleMemoryOp(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 3 {
		return nil, fmt.Errorf("malformed memory operation")
	}

	segName, err := parseSegmentName(children[1].GetValue())
	if err != nil {
		return nil, err
	}
	index, err := strconv.ParseUint(children[2].GetValue(), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("segment index %q exceeds 16 bits", children[2].GetValue())
	}

	segment := Segment{Name: segName}
	if segName == Static {
		segment.File = p.filename
	}

	switch op := children[0].GetValue(); op {
	case "push":
		return Push{Source: segment, Index: uint16(index)}, nil
	case "pop":
		if segName == Constant {
			return nil, fmt.Errorf("cannot pop into the constant segment")
		}
		return Pop{Dest: segment, Index: uint16(index)}, nil
	default:
		return nil, fmt.Errorf("unknown memory operation %q", op)
	}
}

func (Parser) handleArithmeticOp(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 1 {
		return nil, fmt.Errorf("malformed arithmetic operation")
	}
	op, err := parseArithOpType(children[0].GetValue())
	if err != nil {
		return nil, err
	}
	return ArithmeticOp{Operation: op}, nil
}

func (Parser) handleLabelDecl(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 2 {
		return nil, fmt.Errorf("malformed label declaration")
	}
	return Label{Name: children[1].GetValue()}, nil
}

func (Parser) handleGotoOp(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 2 {
		return nil, fmt.Errorf("malformed goto operation")
	}
	name := children[1].GetValue()
	switch jump := children[0].GetValue(); jump {
	case "goto":
		return Goto{Name: name}, nil
	case "if-goto":
		return IfGoto{Name: name}, nil
	default:
		return nil, fmt.Errorf("unknown jump type %q", jump)
	}
}

func (Parser) handleFuncDecl(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 3 {
		return nil, fmt.Errorf("malformed function declaration")
	}
	locals, err := strconv.ParseUint(children[2].GetValue(), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("locals count %q exceeds 16 bits", children[2].GetValue())
	}
	return Function{Name: children[1].GetValue(), NumLocals: uint16(locals)}, nil
}

func parseSegmentName(mnemonic string) (SegmentName, error) {
	switch mnemonic {
	case "constant":
		return Constant, nil
	case "local":
		return Local, nil
	case "argument":
		return Argument, nil
	case "static":
		return Static, nil
	case "this":
		return This, nil
	case "that":
		return That, nil
	case "temp":
		return Temp, nil
	case "pointer":
		return Pointer, nil
	default:
		return 0, fmt.Errorf("unknown segment %q", mnemonic)
	}
}

func parseArithOpType(mnemonic string) (ArithOpType, error) {
	switch mnemonic {
	case "add":
		return Add, nil
	case "sub":
		return Sub, nil
	case "neg":
		return Neg, nil
	case "eq":
		return Eq, nil
	case "gt":
		return Gt, nil
	case "lt":
		return Lt, nil
	case "and":
		return And, nil
	case "or":
		return Or, nil
	case "not":
		return Not, nil
	default:
		return 0, fmt.Errorf("unknown arithmetic operation %q", mnemonic)
	}
}

// ----------------------------------------------------------------------------
// Line splitting & diagnostics

func splitLines(source []byte) []sourceLine {
	var lines []sourceLine

	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for number := 1; scanner.Scan(); number++ {
		raw := scanner.Text()
		content := strings.TrimSpace(stripComment(raw))
		if content == "" {
			continue
		}
		lines = append(lines, sourceLine{number: number, raw: raw, content: content})
	}
	return lines
}

func stripComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func containsFunctionDecl(lines []sourceLine) bool {
	for _, line := range lines {
		if fields := strings.Fields(line.content); len(fields) > 0 && fields[0] == "function" {
			return true
		}
	}
	return false
}

func lineSpan(filename string, line sourceLine) diag.Span {
	return diag.Span{File: filename, Line: line.number, Column: 1, Length: len(line.content), Text: line.raw}
}

func (p *Parser) diagnostic(line sourceLine, message string, secondary []diag.Label) diag.Diagnostic {
	return diag.Diagnostic{
		Message:   message,
		Primary:   diag.Label{Span: lineSpan(p.filename, line), Message: message},
		Secondary: secondary,
	}
}

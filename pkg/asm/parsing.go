package asm

import (
	"fmt"
	"io"
	"os"
	"strings"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for every token & statement of the Asm language.
//
// Each parser combinator either manages a statement (A Inst, C Inst, Label Decl) or some pieces
// of it: namely tokens and identifiers. Comments (both full-line and trailing) are skipped.

// Top level object, will generate the traversable AST based on the input plus the PCs below.
var ast = pc.NewAST("assembler", 100)

var (
	// Parser combinator for an entire Assembler program (a sequence of comments and statements)
	pProgram = ast.ManyUntil("program", nil, ast.OrdChoice("item", nil, pComment, pStatement), pc.End())

	// Parser combinator for a generic Assembler statement (either C, A or Label declaration)
	pStatement = ast.OrdChoice("statement", nil, pAInst, pCInst, pLabelDecl)
	// Parser combinator for line comments in an Assembler program
	pComment = ast.And("comment", nil, pc.Atom("//", "//"), pc.Token(`(?m)[^\n]*`, "COMMENT"))

	// Parser combinator for A Instructions
	pAInst = ast.And("a-inst", nil, pc.Atom("@", "@"), pLabel)
	// Parser combinator for a new label declaration: "(" SYMBOL ")"
	pLabelDecl = ast.And("label-decl", nil, pc.Atom("(", "("), pSymbol, pc.Atom(")", ")"))
	// Parser combinator for C Instructions: [dest=]comp[;jump]
	pCInst = ast.And("c-inst", nil,
		ast.Maybe("maybe-assign", nil, ast.And("assign", nil, pDest, pc.Atom("=", "="))),
		pComp, // 'comp' should always be provided
		ast.Maybe("maybe-goto", nil, ast.And("goto", nil, pc.Atom(";", ";"), pJump)),
	)
)

var (
	// A label reference used by an A Instruction: either a decimal literal or a symbol.
	// NOTE: A symbol can be any sequence of letters, digits, and symbols (_, ., $, :).
	// NOTE: A symbol cannot begin with a leading digit (a symbol is indeed allowed to start
	// with one of the special characters).
	pLabel = ast.OrdChoice("label", nil, pc.Int(), pSymbol)

	// A bare symbol (used standalone by label declarations, where a numeric literal is illegal).
	pSymbol = pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "SYMBOL")

	// Generic destination parser (C Instruction subsection).
	// NOTE: multi-letter alternatives are listed first so the BFS-style OrdChoice doesn't
	// commit to a single-letter prefix match before trying the longer ones.
	pDest = ast.OrdChoice("dest", nil,
		pc.Atom("AMD", "AMD"), pc.Atom("AM", "AM"), pc.Atom("AD", "AD"), pc.Atom("MD", "MD"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Generic computation parser (C Instruction subsection).
	// NOTE: longer operand sequences are listed before their prefixes for the same reason.
	pComp = ast.OrdChoice("comp", nil,
		// - Bitwise register with register operations
		pc.Atom("D&A", "D&A"), pc.Atom("D&M", "D&M"),
		pc.Atom("D|A", "D|A"), pc.Atom("D|M", "D|M"),
		// - Register with register operations
		pc.Atom("D+A", "D+A"), pc.Atom("D+M", "D+M"),
		pc.Atom("D-A", "D-A"), pc.Atom("D-M", "D-M"),
		pc.Atom("A-D", "A-D"), pc.Atom("M-D", "M-D"),
		// - Increment and decrement operations
		pc.Atom("D+1", "D+1"), pc.Atom("A+1", "A+1"), pc.Atom("M+1", "M+1"),
		pc.Atom("D-1", "D-1"), pc.Atom("A-1", "A-1"), pc.Atom("M-1", "M-1"),
		// - Binary and numerical negations
		pc.Atom("!D", "!D"), pc.Atom("!A", "!A"), pc.Atom("!M", "!M"),
		pc.Atom("-D", "-D"), pc.Atom("-A", "-A"), pc.Atom("-M", "-M"),
		// - Constants and identities
		pc.Atom("0", "0"), pc.Atom("1", "1"), pc.Atom("-1", "-1"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Generic jump parser (C Instruction subsection)
	pJump = ast.OrdChoice("jump", nil,
		pc.Atom("JGT", "JGT"), pc.Atom("JEQ", "JEQ"), pc.Atom("JGE", "JGE"),
		pc.Atom("JLT", "JLT"), pc.Atom("JNE", "JNE"), pc.Atom("JLE", "JLE"),
		pc.Atom("JMP", "JMP"),
	)
)

// ----------------------------------------------------------------------------
// Asm Parser

// Parser turns Hack assembly source text into a Program. It uses parser
// combinators to obtain an AST from the source (readable via any io.Reader),
// and a second DFS pass (FromAST) converts that AST into the type-safe
// Program/Statement values the rest of the pipeline consumes.
//
// It honors two debug feature flags (the Vm parser honors only PARSEC_DEBUG):
//   - PARSEC_DEBUG: verbose logging of which parser combinators match
//   - PRINT_AST:    pretty-prints the raw AST to stdout
type Parser struct{ reader io.Reader }

// NewParser returns a Parser reading assembly source from r.
func NewParser(r io.Reader) Parser { return Parser{reader: r} }

// Parse reads the full input, builds the AST and lowers it to a Program.
func (p *Parser) Parse() (Program, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read from source: %w", err)
	}

	root, err := p.FromSource(content)
	if err != nil {
		return nil, err
	}

	return p.FromAST(root)
}

// FromSource scans source and returns the traversable AST root.
func (p *Parser) FromSource(source []byte) (pc.Queryable, error) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, remaining := ast.Parsewith(pProgram, pc.NewScanner(source))
	if root == nil {
		return nil, fmt.Errorf("unable to parse assembly source")
	}
	// A well-formed program consumes the entire scanner, modulo trailing
	// whitespace; anything else left over is a syntax error near that point.
	if s := strings.TrimSpace(string(remaining.Bytes()[remaining.GetCursor():])); s != "" {
		return nil, fmt.Errorf("unexpected trailing input near %q", firstLine(s))
	}

	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}
	return root, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// FromAST walks the root "program" node in DFS/source order and produces the
// Program it represents.
func (p *Parser) FromAST(root pc.Queryable) (Program, error) {
	if root.GetName() != "program" {
		return nil, fmt.Errorf("expected node 'program', found %s", root.GetName())
	}

	program := Program{}
	for _, child := range root.GetChildren() {
		switch child.GetName() {
		case "a-inst":
			inst, err := p.HandleAInst(child)
			if err != nil {
				return nil, err
			}
			program = append(program, inst)

		case "c-inst":
			inst, err := p.HandleCInst(child)
			if err != nil {
				return nil, err
			}
			program = append(program, inst)

		case "label-decl":
			inst, err := p.HandleLabelDecl(child)
			if err != nil {
				return nil, err
			}
			program = append(program, inst)

		case "comment":
			continue

		default:
			return nil, fmt.Errorf("unrecognized node %q", child.GetName())
		}
	}

	return program, nil
}

// HandleAInst converts an "a-inst" node to an AInstruction.
func (Parser) HandleAInst(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 2 {
		return nil, fmt.Errorf("malformed a-inst node with %d children", len(children))
	}
	symbol := children[1]
	if symbol.GetName() != "INT" && symbol.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("expected token 'SYMBOL' or 'INT', got %s", symbol.GetName())
	}
	return AInstruction{Location: symbol.GetValue()}, nil
}

// HandleCInst converts a "c-inst" node to a CInstruction.
func (Parser) HandleCInst(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 3 {
		return nil, fmt.Errorf("malformed c-inst node with %d children", len(children))
	}
	maybeDest, comp, maybeJump := children[0], children[1], children[2]

	inst := CInstruction{Comp: comp.GetValue()}

	if maybeDest.GetName() == "assign" && len(maybeDest.GetChildren()) == 2 {
		inst.Dest = maybeDest.GetChildren()[0].GetValue()
	}
	if maybeJump.GetName() == "goto" && len(maybeJump.GetChildren()) == 2 {
		inst.Jump = maybeJump.GetChildren()[1].GetValue()
	}

	return inst, nil
}

// HandleLabelDecl converts a "label-decl" node to a LabelDecl.
func (Parser) HandleLabelDecl(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	if len(children) != 3 {
		return nil, fmt.Errorf("malformed label-decl node with %d children", len(children))
	}
	symbol := children[1]
	if symbol.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("expected token 'SYMBOL', got %s", symbol.GetName())
	}
	return LabelDecl{Name: symbol.GetValue()}, nil
}

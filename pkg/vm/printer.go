package vm

import "fmt"

// ----------------------------------------------------------------------------
// Printer

// Printer renders a CompilationUnit back to canonical Vm source text, one
// statement per line. It exists so the round-trip property (parse, print,
// re-parse yields an equal CompilationUnit) is directly testable without
// comparing against the original, whitespace- and comment-sensitive source.
//
// Unlike the Assembler, this intermediate text is never the translator's
// emitted artifact: only the Hex output of the lowering stage is persisted.
type Printer struct{ unit *CompilationUnit }

// NewPrinter returns a Printer for unit.
func NewPrinter(unit *CompilationUnit) Printer {
	return Printer{unit: unit}
}

// Print renders every statement in unit, in source order, one line per
// statement. Function-structured units render their func_decl lines too.
func (p Printer) Print() ([]string, error) {
	if p.unit.Functions != nil {
		var lines []string
		for _, fn := range p.unit.Functions {
			line, err := p.printFunctionDecl(fn)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)

			body, err := p.printStatements(fn.Statements)
			if err != nil {
				return nil, err
			}
			lines = append(lines, body...)
		}
		return lines, nil
	}

	return p.printStatements(p.unit.Statements)
}

func (p Printer) printStatements(statements []Statement) ([]string, error) {
	lines := make([]string, 0, len(statements))
	for _, stmt := range statements {
		line, err := p.printStatement(stmt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (p Printer) printStatement(stmt Statement) (string, error) {
	switch s := stmt.(type) {
	case Push:
		return fmt.Sprintf("push %s %d", s.Source.Name, s.Index), nil
	case Pop:
		return fmt.Sprintf("pop %s %d", s.Dest.Name, s.Index), nil
	case ArithmeticOp:
		return s.Operation.String(), nil
	case Label:
		if s.Name == "" {
			return "", fmt.Errorf("unable to print empty label declaration")
		}
		return fmt.Sprintf("label %s", s.Name), nil
	case Goto:
		if s.Name == "" {
			return "", fmt.Errorf("unable to print empty goto target")
		}
		return fmt.Sprintf("goto %s", s.Name), nil
	case IfGoto:
		if s.Name == "" {
			return "", fmt.Errorf("unable to print empty if-goto target")
		}
		return fmt.Sprintf("if-goto %s", s.Name), nil
	case Return:
		return "return", nil
	case Function:
		return p.printFunctionDecl(s)
	default:
		return "", fmt.Errorf("unrecognized statement %T", stmt)
	}
}

func (Printer) printFunctionDecl(fn Function) (string, error) {
	if fn.Name == "" {
		return "", fmt.Errorf("unable to print empty function declaration")
	}
	return fmt.Sprintf("function %s %d", fn.Name, fn.NumLocals), nil
}

package vm

import (
	"fmt"

	"go.hmny.dev/hacktranslator/pkg/asm"
)

// ----------------------------------------------------------------------------
// Label generator

// LabelGenerator produces fresh, file-scoped synthetic labels for comparison
// lowering. Output is a deterministic function of (file name, number of
// prior comparison lowerings): two runs on the same input yield byte-identical
// assembly.
type LabelGenerator struct {
	filename      string
	lastStatement uint16
}

// NewLabelGenerator returns a generator scoped to filename.
func NewLabelGenerator(filename string) *LabelGenerator {
	return &LabelGenerator{filename: filename}
}

// Next returns the next "{file}-stmt-{n}" label, starting at n=0.
func (g *LabelGenerator) Next() string {
	label := fmt.Sprintf("%s-stmt-%d", g.filename, g.lastStatement)
	g.lastStatement++
	return label
}

// ----------------------------------------------------------------------------
// Vm Lowerer

// Lowerer lowers a CompilationUnit to its asm.Program counterpart, following
// the fixed instruction templates for each VM statement kind: SET_D, PUSH_D,
// POP, COMPUTE1, COMPUTE2, CMP, PUSH_COMMON/POP_COMMON for the indexed
// segments, and PUSH_FIXED/POP_FIXED for the fixed-symbol ones.
type Lowerer struct {
	unit    *CompilationUnit
	labels  *LabelGenerator
	program asm.Program
}

// NewLowerer returns a Lowerer for unit.
func NewLowerer(unit *CompilationUnit) *Lowerer {
	return &Lowerer{unit: unit, labels: NewLabelGenerator(unit.Filename)}
}

// Lower runs the full compilation unit through the templates below, emitting
// one asm.Program in source order.
func (l *Lowerer) Lower() (asm.Program, error) {
	if l.unit.Functions != nil {
		for _, fn := range l.unit.Functions {
			if err := l.lowerFunction(fn); err != nil {
				return nil, err
			}
		}
		return l.program, nil
	}

	for _, stmt := range l.unit.Statements {
		if err := l.lowerStatement(stmt); err != nil {
			return nil, err
		}
	}
	return l.program, nil
}

func (l *Lowerer) emit(stmts ...asm.Statement) { l.program = append(l.program, stmts...) }

func (l *Lowerer) lowerStatement(stmt Statement) error {
	switch s := stmt.(type) {
	case Push:
		return l.lowerPush(s)
	case Pop:
		return l.lowerPop(s)
	case ArithmeticOp:
		return l.lowerArithmeticOp(s)
	case Label:
		l.emit(asm.LabelDecl{Name: s.Name})
		return nil
	case Goto:
		l.emit(aInst(s.Name), cInst("", "0", "JMP"))
		return nil
	case IfGoto:
		l.emit(l.pop("D")...)
		l.emit(aInst(s.Name), cInst("", "D", "JNE"))
		return nil
	case Return:
		l.lowerReturn()
		return nil
	case Function:
		return l.lowerFunction(s)
	default:
		return fmt.Errorf("unrecognized vm statement %T", stmt)
	}
}

// ----------------------------------------------------------------------------
// Templates

// setD implements SET_D(n): load constant n into D.
func setD(n uint16) []asm.Statement {
	return []asm.Statement{aInst(fmt.Sprint(n)), cInst("D", "A", "")}
}

// pushD implements PUSH_D: write D to *SP, then increment SP.
func pushD() []asm.Statement {
	return []asm.Statement{
		aInst("SP"), cInst("A", "M", ""),
		cInst("M", "D", ""),
		aInst("SP"), cInst("M", "M+1", ""),
	}
}

// pop implements POP(t): decrement SP then read top-of-stack into register
// set t (e.g. "D" or "AD").
func (l *Lowerer) pop(target string) []asm.Statement {
	return []asm.Statement{aInst("SP"), cInst("AM", "M-1", ""), cInst(target, "M", "")}
}

// computeUnary implements COMPUTE1(op): in-place unary on top-of-stack.
func computeUnary(op string) []asm.Statement {
	return []asm.Statement{aInst("SP"), cInst("A", "M-1", ""), cInst("M", op, "")}
}

// computeBinary implements COMPUTE2(op): right operand popped into D, left
// operand read under A=SP-1.
func (l *Lowerer) computeBinary(op string) []asm.Statement {
	stmts := l.pop("D")
	stmts = append(stmts, aInst("SP"), cInst("A", "M-1", ""), cInst("M", op, ""))
	return stmts
}

// cmp implements CMP(j): compare-and-push using two fresh labels drawn from
// the lowerer's label generator.
func (l *Lowerer) cmp(jump string) []asm.Statement {
	trueLabel, endLabel := l.labels.Next(), l.labels.Next()

	stmts := l.pop("D")
	stmts = append(stmts, l.pop("A")...)
	stmts = append(stmts,
		cInst("D", "A-D", ""),
		aInst(trueLabel), cInst("", "D", jump),
	)
	stmts = append(stmts, pushBooleanD("0")...)
	stmts = append(stmts,
		aInst(endLabel), cInst("", "0", "JMP"),
		asm.LabelDecl{Name: trueLabel},
	)
	stmts = append(stmts, pushBooleanD("-1")...)
	stmts = append(stmts, asm.LabelDecl{Name: endLabel})
	return stmts
}

func pushConstant(n uint16) []asm.Statement {
	stmts := setD(n)
	return append(stmts, pushD()...)
}

// pushBooleanD pushes the CMP truth convention value (0 or -1) onto the
// stack, loading it directly via the compute constant rather than an
// A-instruction address literal (-1 is not a representable 15-bit address).
func pushBooleanD(compConstant string) []asm.Statement {
	stmts := []asm.Statement{cInst("D", compConstant, "")}
	return append(stmts, pushD()...)
}

// pushCommon implements PUSH_COMMON(base, i).
func pushCommon(base string, i uint16) []asm.Statement {
	stmts := []asm.Statement{
		aInst(base), cInst("D", "M", ""),
		aInst(fmt.Sprint(i)), cInst("A", "D+A", ""),
		cInst("D", "M", ""),
	}
	return append(stmts, pushD()...)
}

// popCommon implements POP_COMMON(base, i).
func (l *Lowerer) popCommon(base string, i uint16) []asm.Statement {
	stmts := []asm.Statement{
		aInst(base), cInst("D", "M", ""),
		aInst(fmt.Sprint(i)), cInst("D", "D+A", ""),
		aInst("R13"), cInst("M", "D", ""),
	}
	stmts = append(stmts, l.pop("D")...)
	stmts = append(stmts, aInst("R13"), cInst("A", "M", ""), cInst("M", "D", ""))
	return stmts
}

// pushFixed implements PUSH_FIXED(sym).
func pushFixed(sym string) []asm.Statement {
	stmts := []asm.Statement{aInst(sym), cInst("D", "M", "")}
	return append(stmts, pushD()...)
}

// popFixed implements POP_FIXED(sym).
func (l *Lowerer) popFixed(sym string) []asm.Statement {
	stmts := l.pop("D")
	return append(stmts, aInst(sym), cInst("M", "D", ""))
}

func aInst(location string) asm.AInstruction { return asm.AInstruction{Location: location} }
func cInst(dest, comp, jump string) asm.CInstruction {
	return asm.CInstruction{Dest: dest, Comp: comp, Jump: jump}
}

// ----------------------------------------------------------------------------
// Segment symbol mapping

func commonBase(name SegmentName) (string, bool) {
	switch name {
	case Local:
		return "LCL", true
	case Argument:
		return "ARG", true
	case This:
		return "THIS", true
	case That:
		return "THAT", true
	default:
		return "", false
	}
}

func fixedSymbol(seg Segment, index uint16) (string, error) {
	switch seg.Name {
	case Temp:
		if index > 7 {
			return "", fmt.Errorf("temp segment index %d out of range [0,7]", index)
		}
		return fmt.Sprintf("R%d", index+5), nil
	case Pointer:
		if index > 1 {
			return "", fmt.Errorf("pointer segment index %d out of range [0,1]", index)
		}
		return fmt.Sprintf("R%d", index+3), nil
	case Static:
		return fmt.Sprintf("staticvar.%s.%d", seg.File, index), nil
	default:
		return "", fmt.Errorf("segment %s has no fixed symbol", seg.Name)
	}
}

// ----------------------------------------------------------------------------
// Memory operations

func (l *Lowerer) lowerPush(op Push) error {
	if op.Source.Name == Constant {
		l.emit(pushConstant(op.Index)...)
		return nil
	}

	if base, ok := commonBase(op.Source.Name); ok {
		l.emit(pushCommon(base, op.Index)...)
		return nil
	}

	sym, err := fixedSymbol(op.Source, op.Index)
	if err != nil {
		return err
	}
	l.emit(pushFixed(sym)...)
	return nil
}

func (l *Lowerer) lowerPop(op Pop) error {
	if op.Dest.Name == Constant {
		return fmt.Errorf("cannot pop into the constant segment")
	}
	if base, ok := commonBase(op.Dest.Name); ok {
		l.emit(l.popCommon(base, op.Index)...)
		return nil
	}
	sym, err := fixedSymbol(op.Dest, op.Index)
	if err != nil {
		return err
	}
	l.emit(l.popFixed(sym)...)
	return nil
}

// ----------------------------------------------------------------------------
// Arithmetic / logic dispatch

func (l *Lowerer) lowerArithmeticOp(op ArithmeticOp) error {
	switch op.Operation {
	case Add:
		l.emit(l.computeBinary("D+M")...)
	case Sub:
		l.emit(l.computeBinary("M-D")...)
	case And:
		l.emit(l.computeBinary("D&M")...)
	case Or:
		l.emit(l.computeBinary("D|M")...)
	case Neg:
		l.emit(computeUnary("-M")...)
	case Not:
		l.emit(computeUnary("!M")...)
	case Eq:
		l.emit(l.cmp("JEQ")...)
	case Lt:
		l.emit(l.cmp("JLT")...)
	case Gt:
		l.emit(l.cmp("JGT")...)
	default:
		return fmt.Errorf("unrecognized arithmetic operation %v", op.Operation)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Functions and Return

func (l *Lowerer) lowerFunction(fn Function) error {
	l.emit(asm.LabelDecl{Name: fmt.Sprintf("function:%s", fn.Name)})

	// Local-allocation prelude: treats LCL as a base, writes NumLocals zeros
	// starting at M[LCL], incrementing A between consecutive stores.
	if fn.NumLocals > 0 {
		l.emit(aInst("LCL"), cInst("A", "M", ""))
		for i := uint16(0); i < fn.NumLocals; i++ {
			l.emit(cInst("M", "0", ""))
			if i < fn.NumLocals-1 {
				l.emit(cInst("A", "A+1", ""))
			}
		}
	}

	for _, stmt := range fn.Statements {
		if err := l.lowerStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

// lowerReturn emits the standard Hack calling-convention epilogue, walking
// the saved frame via R14 from LCL-1 down, restoring THAT, THIS, ARG, LCL in
// that exact order before jumping to the return address.
func (l *Lowerer) lowerReturn() {
	// 1. Write the stack top (return value) to ARG[0].
	l.emit(l.popCommon("ARG", 0)...)
	// 2. SP = ARG + 1.
	l.emit(aInst("ARG"), cInst("D", "M+1", ""), aInst("SP"), cInst("M", "D", ""))
	// 3. R14 = LCL - 1, pointing directly at the saved THAT slot.
	l.emit(aInst("LCL"), cInst("D", "M-1", ""), aInst("R14"), cInst("M", "D", ""))

	// 4. Restore THAT, THIS, ARG, LCL in that order. The first slot is read
	// off the initial cursor value directly; every later slot folds the
	// cursor decrement into the dereference via "@R14; AM=M-1".
	for i, dest := range []string{"THAT", "THIS", "ARG", "LCL"} {
		l.emit(aInst("R14"))
		if i == 0 {
			l.emit(cInst("A", "M", ""))
		} else {
			l.emit(cInst("AM", "M-1", ""))
		}
		l.emit(cInst("D", "M", ""))
		l.emit(aInst(dest), cInst("M", "D", ""))
	}

	// 5. One more cursor decrement reaches the return address slot; load it
	// into A and jump.
	l.emit(aInst("R14"), cInst("AM", "M-1", ""), cInst("A", "M", ""), cInst("", "A", "JMP"))
}

package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.hmny.dev/hacktranslator/pkg/asm"
)

func TestLabelGeneratorSequence(t *testing.T) {
	gen := NewLabelGenerator("Main")
	if got, want := gen.Next(), "Main-stmt-0"; got != want {
		t.Errorf("Next() = %q, want %q", got, want)
	}
	if got, want := gen.Next(), "Main-stmt-1"; got != want {
		t.Errorf("Next() = %q, want %q", got, want)
	}
}

func TestLowerPushConstant(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		Push{Source: Segment{Name: Constant}, Index: 7},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	want := asm.Program{
		aInst("7"), cInst("D", "A", ""),
		aInst("SP"), cInst("A", "M", ""),
		cInst("M", "D", ""),
		aInst("SP"), cInst("M", "M+1", ""),
	}
	if diff := cmp.Diff(want, program); diff != "" {
		t.Errorf("Lower() mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerPushLocalUsesCommonTemplate(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		Push{Source: Segment{Name: Local}, Index: 2},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	want := asm.Program{
		aInst("LCL"), cInst("D", "M", ""),
		aInst("2"), cInst("A", "D+A", ""),
		cInst("D", "M", ""),
		aInst("SP"), cInst("A", "M", ""),
		cInst("M", "D", ""),
		aInst("SP"), cInst("M", "M+1", ""),
	}
	if diff := cmp.Diff(want, program); diff != "" {
		t.Errorf("Lower() mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerPopTempUsesFixedSymbol(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		Pop{Dest: Segment{Name: Temp}, Index: 2},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	want := asm.Program{
		aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
		aInst("R7"), cInst("M", "D", ""),
	}
	if diff := cmp.Diff(want, program); diff != "" {
		t.Errorf("Lower() mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerPopConstantRejected(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		Pop{Dest: Segment{Name: Constant}, Index: 0},
	}}
	if _, err := NewLowerer(unit).Lower(); err == nil {
		t.Fatal("expected an error popping into the constant segment")
	}
}

// TestLowerStaticSegmentNamespacesByFile pins the exact symbol spelled out by
// the static-namespacing scenario: the file component keeps its extension.
func TestLowerStaticSegmentNamespacesByFile(t *testing.T) {
	unit := &CompilationUnit{Filename: "Foo.vm", Statements: []Statement{
		Push{Source: Segment{Name: Static, File: "Foo.vm"}, Index: 3},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	first, ok := program[0].(asm.AInstruction)
	if !ok || first.Location != "staticvar.Foo.vm.3" {
		t.Errorf("first instruction = %+v, want @staticvar.Foo.vm.3", program[0])
	}
}

func TestLowerEqEmitsFreshLabelsAndBooleanConstants(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		ArithmeticOp{Operation: Eq},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}

	var labels []string
	var sawNegativeOne, sawZero bool
	for _, stmt := range program {
		switch s := stmt.(type) {
		case asm.LabelDecl:
			labels = append(labels, s.Name)
		case asm.CInstruction:
			if s.Comp == "-1" {
				sawNegativeOne = true
			}
			if s.Comp == "0" && s.Dest == "D" {
				sawZero = true
			}
		}
	}

	if len(labels) != 2 || labels[0] != "Main-stmt-0" || labels[1] != "Main-stmt-1" {
		t.Errorf("labels = %v, want [Main-stmt-0 Main-stmt-1]", labels)
	}
	if !sawNegativeOne {
		t.Error("expected the truth branch to load D=-1 directly")
	}
	if !sawZero {
		t.Error("expected the falsehood branch to load D=0 directly")
	}
}

func TestLowerArithmeticUnknownOperation(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		ArithmeticOp{Operation: ArithOpType(255)},
	}}
	if _, err := NewLowerer(unit).Lower(); err == nil {
		t.Fatal("expected an error for an unrecognized arithmetic operation")
	}
}

func TestLowerFunctionPrelude(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Functions: []Function{
		{Name: "Main.fn", NumLocals: 2, Statements: []Statement{Return{}}},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}

	decl, ok := program[0].(asm.LabelDecl)
	if !ok || decl.Name != "function:Main.fn" {
		t.Fatalf("program[0] = %+v, want LabelDecl{function:Main.fn}", program[0])
	}

	want := asm.Program{
		asm.LabelDecl{Name: "function:Main.fn"},
		aInst("LCL"), cInst("A", "M", ""),
		cInst("M", "0", ""),
		cInst("A", "A+1", ""),
		cInst("M", "0", ""),
	}
	if diff := cmp.Diff(want, program[:len(want)]); diff != "" {
		t.Errorf("prelude mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerFunctionNoLocalsSkipsPrelude(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Functions: []Function{
		{Name: "Main.fn", NumLocals: 0, Statements: []Statement{Return{}}},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	if got, ok := program[1].(asm.AInstruction); !ok || got.Location != "ARG" {
		t.Fatalf("expected return epilogue (@ARG) to start immediately after the label, got %+v", program[1])
	}
}

// TestLowerReturnFrameWalk exercises the full epilogue emitted for a Return
// statement: write the return value, restore SP, then walk the saved frame
// from LCL-1 downward restoring THAT, THIS, ARG, LCL before jumping back.
func TestLowerReturnFrameWalk(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{Return{}}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}

	want := asm.Program{}
	want = append(want, NewLowerer(unit).popCommon("ARG", 0)...)
	want = append(want,
		aInst("ARG"), cInst("D", "M+1", ""), aInst("SP"), cInst("M", "D", ""),
		aInst("LCL"), cInst("D", "M-1", ""), aInst("R14"), cInst("M", "D", ""),
	)
	for i, dest := range []string{"THAT", "THIS", "ARG", "LCL"} {
		want = append(want, aInst("R14"))
		if i == 0 {
			want = append(want, cInst("A", "M", ""))
		} else {
			want = append(want, cInst("AM", "M-1", ""))
		}
		want = append(want, cInst("D", "M", ""), aInst(dest), cInst("M", "D", ""))
	}
	want = append(want, aInst("R14"), cInst("AM", "M-1", ""), cInst("A", "M", ""), cInst("", "A", "JMP"))

	if diff := cmp.Diff(want, program); diff != "" {
		t.Errorf("Lower() Return mismatch (-want +got):\n%s", diff)
	}

	// The defining invariant: the last instruction jumps on the dereferenced
	// value at the frame slot, not the slot's address.
	last := program[len(program)-1].(asm.CInstruction)
	if last.Comp != "A" || last.Jump != "JMP" {
		t.Errorf("last instruction = %+v, want a bare unconditional jump off A", last)
	}
}

func TestLowerGotoAndIfGoto(t *testing.T) {
	unit := &CompilationUnit{Filename: "Main", Statements: []Statement{
		Label{Name: "LOOP"},
		Goto{Name: "LOOP"},
		IfGoto{Name: "LOOP"},
	}}
	program, err := NewLowerer(unit).Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}
	want := asm.Program{
		asm.LabelDecl{Name: "LOOP"},
		aInst("LOOP"), cInst("", "0", "JMP"),
		aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
		aInst("LOOP"), cInst("", "D", "JNE"),
	}
	if diff := cmp.Diff(want, program); diff != "" {
		t.Errorf("Lower() mismatch (-want +got):\n%s", diff)
	}
}

func TestFixedSymbolBoundsChecking(t *testing.T) {
	if _, err := fixedSymbol(Segment{Name: Temp}, 8); err == nil {
		t.Error("expected an error for temp index 8")
	}
	if _, err := fixedSymbol(Segment{Name: Pointer}, 2); err == nil {
		t.Error("expected an error for pointer index 2")
	}
	if sym, err := fixedSymbol(Segment{Name: Temp}, 7); err != nil || sym != "R12" {
		t.Errorf("fixedSymbol(Temp,7) = (%q, %v), want (R12, nil)", sym, err)
	}
}

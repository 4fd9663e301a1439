package asm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.hmny.dev/hacktranslator/pkg/hack"
)

func parseProgram(t *testing.T, source string) Program {
	t.Helper()
	parser := NewParser(strings.NewReader(source))
	program, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	return program
}

func TestParseAInstructionSymbol(t *testing.T) {
	program := parseProgram(t, "@SCREEN\n")
	if len(program) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program))
	}
	if got, want := program[0], (AInstruction{Location: "SCREEN"}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseCInstructionFull(t *testing.T) {
	program := parseProgram(t, "AMD=D+1;JGT\n")
	if len(program) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program))
	}
	want := CInstruction{Dest: "AMD", Comp: "D+1", Jump: "JGT"}
	if got := program[0]; got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseCInstructionCompOnly(t *testing.T) {
	program := parseProgram(t, "0;JMP\n")
	want := CInstruction{Comp: "0", Jump: "JMP"}
	if got := program[0]; got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseLabelDeclaration(t *testing.T) {
	program := parseProgram(t, "(LOOP)\n")
	want := LabelDecl{Name: "LOOP"}
	if got := program[0]; got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseSkipsComments(t *testing.T) {
	program := parseProgram(t, "// a full line comment\n@1\n")
	if len(program) != 1 {
		t.Fatalf("expected comments to be skipped, got %d statements", len(program))
	}
}

// TestLowerForwardReference mirrors the classic forward-reference scenario:
// a label used by an A-instruction before its own declaration must resolve
// to the ROM address of the instruction immediately following the label.
func TestLowerForwardReference(t *testing.T) {
	program := parseProgram(t, strings.Join([]string{
		"@LOOP",
		"0;JMP",
		"(LOOP)",
		"@1",
		"D=A",
	}, "\n"))

	lowerer := NewLowerer(program)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("Lower() returned error: %v", err)
	}

	addr, found := table.Resolve("LOOP")
	if !found || addr != 2 {
		t.Fatalf("LOOP resolved to (%d, %v), want (2, true)", addr, found)
	}

	want := hack.Program{
		hack.AInstruction{LocType: hack.Label, LocName: "LOOP"},
		hack.CInstruction{Comp: hack.Zero, Jump: hack.JMP},
		hack.AInstruction{LocType: hack.Raw, LocName: "1"},
		hack.CInstruction{Comp: hack.ACompute, Target: hack.TargetD},
	}
	if diff := cmp.Diff(want, hackProgram); diff != "" {
		t.Errorf("Lower() mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerRejectsUnknownCompute(t *testing.T) {
	program := Program{CInstruction{Dest: "D", Comp: "D%A"}}
	lowerer := NewLowerer(program)
	if _, _, err := lowerer.Lower(); err == nil {
		t.Fatal("expected an error for an unknown compute expression")
	}
}

func TestLowerRejectsDuplicateLabel(t *testing.T) {
	program := Program{
		LabelDecl{Name: "LOOP"},
		AInstruction{Location: "0"},
		LabelDecl{Name: "LOOP"},
	}
	lowerer := NewLowerer(program)
	if _, _, err := lowerer.Lower(); err == nil {
		t.Fatal("expected an error for a duplicate label declaration")
	}
}

// TestLowerEmptyProgram covers the boundary case of a source file containing
// only comments and blank lines: it must lower to an empty Program rather
// than error, so the driver still emits a zero-line .hack file.
func TestLowerEmptyProgram(t *testing.T) {
	lowerer := NewLowerer(nil)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("Lower() on an empty program returned error: %v", err)
	}
	if len(hackProgram) != 0 {
		t.Errorf("expected an empty hack.Program, got %d instructions", len(hackProgram))
	}
	if table == nil {
		t.Fatal("expected a seeded, non-nil SymbolTable")
	}
	if addr, found := table.Resolve("SCREEN"); !found || addr != 16384 {
		t.Errorf("SCREEN resolved to (%d, %v), want (16384, true)", addr, found)
	}
}

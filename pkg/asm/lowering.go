package asm

import (
	"fmt"
	"strconv"

	"go.hmny.dev/hacktranslator/pkg/hack"
)

// ----------------------------------------------------------------------------
// Asm Lowerer

// Lowerer takes an asm.Program and produces its hack.Program counterpart plus
// the SymbolTable carrying every code label resolved by this pass.
//
// This is pass 1 of the assembler: it walks the AST once in program order,
// converting each instruction and declaring every label at the ROM address of
// the next instruction (labels are zero-width, so the address is simply the
// count of instructions converted so far). Pass 2 (operand/variable
// resolution and C-instruction encoding) is owned by hack.CodeGenerator, not
// here.
type Lowerer struct{ program Program }

// NewLowerer returns a Lowerer for p. p may be empty: a source file of only
// comments and blank lines lowers to an empty Program.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Lower walks the program in DFS/source order, converting instructions and
// declaring labels as it goes.
func (l *Lowerer) Lower() (hack.Program, *hack.SymbolTable, error) {
	converted := make(hack.Program, 0, len(l.program))
	table := hack.NewSymbolTable()

	for _, asmInst := range l.program {
		switch tAsmInst := asmInst.(type) {
		case AInstruction:
			hackInst, err := l.HandleAInst(tAsmInst)
			if err != nil {
				return nil, nil, err
			}
			converted = append(converted, hackInst)

		case CInstruction:
			hackInst, err := l.HandleCInst(tAsmInst)
			if err != nil {
				return nil, nil, err
			}
			converted = append(converted, hackInst)

		case LabelDecl:
			label, err := l.HandleLabelDecl(tAsmInst)
			if err != nil {
				return nil, nil, err
			}
			// A label resolves to the ROM address of the next non-label
			// instruction, i.e. the number already converted.
			if err := table.DeclareLabel(label, uint16(len(converted))); err != nil {
				return nil, nil, err
			}

		default:
			return nil, nil, fmt.Errorf("unrecognized instruction %T", asmInst)
		}
	}

	return converted, table, nil
}

// HandleAInst classifies inst's operand and converts it to a hack.AInstruction.
func (Lowerer) HandleAInst(inst AInstruction) (hack.Instruction, error) {
	if _, found := hack.BuiltInTable[inst.Location]; found {
		return hack.AInstruction{LocType: hack.BuiltIn, LocName: inst.Location}, nil
	}
	if _, err := strconv.ParseUint(inst.Location, 10, 16); err == nil {
		return hack.AInstruction{LocType: hack.Raw, LocName: inst.Location}, nil
	}
	if len(inst.Location) > 0 && inst.Location[0] >= '0' && inst.Location[0] <= '9' {
		return nil, fmt.Errorf("malformed numeric address %q", inst.Location)
	}
	return hack.AInstruction{LocType: hack.Label, LocName: inst.Location}, nil
}

// HandleCInst converts inst's raw dest/comp/jump mnemonics to a
// hack.CInstruction, rejecting unknown destination letters, jump codes or
// compute expressions.
func (Lowerer) HandleCInst(inst CInstruction) (hack.Instruction, error) {
	target, err := hack.ParseTarget(inst.Dest)
	if err != nil {
		return nil, err
	}
	comp, err := hack.ParseCompute(inst.Comp)
	if err != nil {
		return nil, err
	}
	jump, err := hack.ParseJump(inst.Jump)
	if err != nil {
		return nil, err
	}
	return hack.CInstruction{Comp: comp, Target: target, Jump: jump}, nil
}

// HandleLabelDecl extracts the label name from inst.
func (Lowerer) HandleLabelDecl(inst LabelDecl) (string, error) {
	return inst.Name, nil
}

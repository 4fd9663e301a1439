// Package asm implements the Hack assembly dialect: its AST, a goparsec-based
// parser, and the lowering pass that turns the AST into a hack.Program plus
// the label half of the Hack SymbolTable.
package asm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Asm language.
//
// We declare a shared 'Statement' interface for the three things an assembly
// program is made of: label declarations, A instructions and C instructions.
// Statements preserve program order; a Lowerer later turns them into the
// hack package's instruction-set counterpart.

// Statement groups label declarations, A instructions and C instructions; use
// a type switch to disambiguate.
type Statement interface{}

// Program is the ordered list of parsed Asm statements for one source file.
type Program []Statement

// ----------------------------------------------------------------------------
// Label Declarations

// LabelDecl is a named position in the instruction stream. It consumes no ROM
// address: the label resolves to the ROM address of the next non-label
// statement.
type LabelDecl struct {
	Name string
}

// ----------------------------------------------------------------------------
// A Instructions

// AInstruction loads a location into the A register. Location is the raw
// source text (a decimal literal or a symbol name) — the Lowerer classifies
// it into hack.Raw / hack.BuiltIn / hack.Label.
type AInstruction struct {
	Location string
}

// ----------------------------------------------------------------------------
// C Instructions

// CInstruction is `[dest=]comp[;jmp]`. Dest is the empty string when no
// destination is assigned; Jump is the empty string when unconditional
// fall-through is intended.
type CInstruction struct {
	Dest string
	Comp string
	Jump string
}

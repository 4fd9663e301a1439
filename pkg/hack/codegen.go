package hack

import "fmt"

// ----------------------------------------------------------------------------
// Code Generator

// CodeGenerator takes a label-free Program plus the SymbolTable produced by
// pass 1 (label resolution, owned by the Assembler frontend) and performs
// pass 2: it walks every instruction once, resolving/allocating A-instruction
// operands and packing C-instructions into their 16-bit encoding.
type CodeGenerator struct {
	program Program      // The instructions to encode
	table   *SymbolTable // Resolves labels and allocates variables on first use
}

// NewCodeGenerator returns a CodeGenerator for program, resolving symbols
// against table. table must already contain every code label from pass 1.
func NewCodeGenerator(program Program, table *SymbolTable) *CodeGenerator {
	return &CodeGenerator{program: program, table: table}
}

// Generate encodes every instruction in program to its 16-character
// zero-padded binary word, in program order. The number of words returned
// always equals len(program), since Program is already label-free.
func (cg *CodeGenerator) Generate() ([]string, error) {
	words := make([]string, 0, len(cg.program))

	for _, instruction := range cg.program {
		var word string
		var err error

		switch inst := instruction.(type) {
		case AInstruction:
			word, err = cg.GenerateAInst(inst)
		case CInstruction:
			word, err = cg.GenerateCInst(inst)
		default:
			err = fmt.Errorf("unrecognized instruction type %T", instruction)
		}

		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}

	return words, nil
}

// GenerateAInst resolves inst's operand to a 15-bit address and returns its
// 16-bit binary encoding (top bit always zero).
func (cg *CodeGenerator) GenerateAInst(inst AInstruction) (string, error) {
	var address uint16

	switch inst.LocType {
	case Raw:
		n, err := parseAddress(inst.LocName)
		if err != nil {
			return "", err
		}
		address = n
	case BuiltIn:
		found := false
		if address, found = BuiltInTable[inst.LocName]; !found {
			return "", fmt.Errorf("unresolved built-in symbol %q", inst.LocName)
		}
	case Label:
		// A label reference is resolved against the shared table; if it was
		// never declared by pass 1 it is a variable, allocated on first use
		// here (in program order of first *unresolved* reference).
		address = cg.table.ResolveOrAllocate(inst.LocName)
	default:
		return "", fmt.Errorf("unrecognized location type %v for %q", inst.LocType, inst.LocName)
	}

	if address >= MaxAddressableMemory {
		return "", fmt.Errorf("location %q resolved to out-of-bound address %d", inst.LocName, address)
	}
	return fmt.Sprintf("%016b", address), nil
}

// GenerateCInst packs a CInstruction into its 16-bit Hack encoding:
// 111 a cccccc ddd jjj.
func (cg *CodeGenerator) GenerateCInst(inst CInstruction) (string, error) {
	encoding, found := computeEncodings[inst.Comp]
	if !found {
		return "", fmt.Errorf("unknown compute expression %v", inst.Comp)
	}

	word := uint16(0b111) << 13
	word |= uint16(encoding.A) << 12
	word |= uint16(encoding.CCCCCC) << 6
	word |= uint16(inst.Target&(TargetA|TargetM|TargetD)) << 3
	word |= uint16(inst.Jump) & 0b111

	return fmt.Sprintf("%016b", word), nil
}

func parseAddress(literal string) (uint16, error) {
	var n uint32
	for _, r := range literal {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("malformed numeric address %q", literal)
		}
		n = n*10 + uint32(r-'0')
		if n >= uint32(MaxAddressableMemory) {
			return 0, fmt.Errorf("address %q exceeds 0x7FFF", literal)
		}
	}
	return uint16(n), nil
}

package hack

import (
	"fmt"
	"strconv"
)

// ----------------------------------------------------------------------------
// Translation tables

// This section contains the translation tables that drive the codegen phase.
//
// Each table maps one family of assembly mnemonics to the bit-codes defined by the
// Hack architecture specification:
//   - 'BuiltInTable': the addresses behind the predefined symbols of A instructions
//   - 'CompTable': the 7 'comp' bits of a C instruction (a-bit included)
//   - 'DestTable': the 3 'dest' bits of a C instruction
//   - 'JumpTable': the 3 'jump' bits of a C instruction

var (
	BuiltInTable = map[string]uint16{
		// Virtual Machine pointer aliases (see the VM calling convention)
		"SP": 0, "LCL": 1, "ARG": 2, "THIS": 3, "THAT": 4,
		// Named general purpose registers
		"R0": 0, "R1": 1, "R2": 2, "R3": 3, "R4": 4, "R5": 5,
		"R6": 6, "R7": 7, "R8": 8, "R9": 9, "R10": 10, "R11": 11,
		"R12": 12, "R13": 13, "R14": 14, "R15": 15,
		// Memory mapped I/O locations
		"SCREEN": 16384, "KBD": 24576,
	}

	CompTable = map[string]uint16{
		// - Constants and identities
		"0": 0b0101010, "1": 0b0111111, "-1": 0b0111010,
		"D": 0b0001100, "A": 0b0110000, "M": 0b1110000,
		// - Binary and numerical negations
		"!D": 0b0001101, "!A": 0b0110001, "!M": 0b1110001,
		"-D": 0b0001111, "-A": 0b0110011, "-M": 0b1110011,
		// - Increment and decrement operations
		"D+1": 0b0011111, "A+1": 0b0110111, "M+1": 0b1110111,
		"D-1": 0b0001110, "A-1": 0b0110010, "M-1": 0b1110010,
		// - Register with register operations
		"D+A": 0b0000010, "D+M": 0b1000010,
		"D-A": 0b0010011, "D-M": 0b1010011,
		"A-D": 0b0000111, "M-D": 0b1000111,
		// - Bitwise register with register operations
		"D&A": 0b0000000, "D&M": 0b1000000,
		"D|A": 0b0010101, "D|M": 0b1010101,
	}

	DestTable = map[string]uint16{
		"": 0b000, "M": 0b001, "D": 0b010, "A": 0b100,
		"MD": 0b011, "AM": 0b101, "AD": 0b110, "AMD": 0b111,
	}

	JumpTable = map[string]uint16{
		"": 0b000, "JGT": 0b001, "JEQ": 0b010, "JGE": 0b011,
		"JLT": 0b100, "JNE": 0b101, "JLE": 0b110, "JMP": 0b111,
	}
)

// ----------------------------------------------------------------------------
// Code Generator

// CodeGenerator encodes a 'hack.Program' into its binary form, one 16-bit word
// per instruction, rendered as a 16-character '0'/'1' string per output line.
//
// The SymbolTable supplied at construction resolves user-defined labels to
// their ROM addresses. Labels referenced but never declared are treated as
// variables: the first reference allocates the next free RAM slot (from 16
// onwards) and records it in the table so later references agree.
type CodeGenerator struct {
	program  Program
	table    SymbolTable
	nextSlot uint16 // offset of the next variable allocation above RAM 16
}

// NewCodeGenerator wraps Program 'p' with the SymbolTable 'st' produced by the
// lowering phase. A nil table is accepted (for label-free programs) and
// replaced with an empty one so variable allocation always has a place to go.
func NewCodeGenerator(p Program, st SymbolTable) CodeGenerator {
	if st == nil {
		st = SymbolTable{}
	}
	return CodeGenerator{program: p, table: st}
}

// Generate encodes every instruction in order, failing on the first invalid one.
func (cg *CodeGenerator) Generate() ([]string, error) {
	words := make([]string, 0, len(cg.program))

	for _, instruction := range cg.program {
		var word string
		var err error

		switch tInstruction := instruction.(type) {
		case AInstruction:
			word, err = cg.TranslateAInst(tInstruction)
		case CInstruction:
			word, err = cg.TranslateCInst(tInstruction)
		default:
			err = fmt.Errorf("unrecognized instruction '%T'", instruction)
		}

		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}

	return words, nil
}

// TranslateAInst resolves the instruction's location to an address and encodes
// it. The leading bit of the word is the A-opcode (0), so any address at or
// above 2^15 is out of bounds regardless of how it was spelled in the source.
func (cg *CodeGenerator) TranslateAInst(inst AInstruction) (string, error) {
	address, found := uint16(0), false

	switch inst.LocType {
	case Raw:
		num, err := strconv.ParseUint(inst.LocName, 10, 16)
		address, found = uint16(num), err == nil
	case BuiltIn:
		address, found = BuiltInTable[inst.LocName]
	case Label:
		address, found = cg.table[inst.LocName]
		if !found {
			// First reference to an undeclared symbol: it's a variable, allocate
			// its RAM slot and remember it for every later reference.
			address, found = 16+cg.nextSlot, true
			cg.table[inst.LocName] = address
			cg.nextSlot++
		}
	}

	if !found {
		return "", fmt.Errorf("unable to resolve address for location '%s'", inst.LocName)
	}
	if address >= MaxAddressableMemory {
		return "", fmt.Errorf("location '%s' resolved to address %d, out of bounds", inst.LocName, address)
	}

	return fmt.Sprintf("%016b", address), nil
}

// TranslateCInst assembles the '111' opcode prefix and the comp/dest/jump
// bit-codes into a single word. The comp part is mandatory; dest and jump fall
// back to their all-zeros encodings when absent.
func (cg *CodeGenerator) TranslateCInst(inst CInstruction) (string, error) {
	comp, found := CompTable[inst.Comp]
	if inst.Comp == "" || !found {
		return "", fmt.Errorf("missing or unknown 'comp' mnemonic %q", inst.Comp)
	}
	dest, found := DestTable[inst.Dest]
	if !found {
		return "", fmt.Errorf("unknown 'dest' mnemonic %q", inst.Dest)
	}
	jump, found := JumpTable[inst.Jump]
	if !found {
		return "", fmt.Errorf("unknown 'jump' mnemonic %q", inst.Jump)
	}

	word := uint16(0b111<<13) | comp<<6 | dest<<3 | jump
	return fmt.Sprintf("%016b", word), nil
}

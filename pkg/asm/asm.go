package asm

// ----------------------------------------------------------------------------
// General information

// This section contains the in-memory representation of the Hack assembly language.
//
// A 'Statement' is anything that can appear on its own line of an .asm file: an A
// instruction, a C instruction or a label declaration. The shared interface lets a
// Program hold them in source order; consumers disambiguate with a type switch.

// Statement is the common type for label declarations, A instructions and C instructions.
type Statement interface{}

// A Program is the ordered list of Statements produced either by lowering a
// VM program (the common path) or by parsing hand-written assembly text
// (the bundled assembler's entry point).
type Program []Statement

// ----------------------------------------------------------------------------
// Label Declarations

// LabelDecl introduces a jump target at the position it occupies in the Program.
//
// The declaration itself produces no instruction: during the lowering to binary it
// is folded into the symbol table (name -> ROM address of the next instruction) so
// that A instructions referencing the label can resolve it.
type LabelDecl struct {
	Name string // The symbol/ident chosen by the user for the label
}

// ----------------------------------------------------------------------------
// A Instructions

// AInstruction loads an address into the CPU's A register.
//
// The '@xxx' form is the only way the Hack CPU can name a memory location, so every
// memory access and every jump is preceded by one of these. The Location payload is
// kept as raw text at this level: it may be a decimal address, one of the predefined
// symbols (SP, LCL, R0..R15, ...) or a user-defined label/variable. Classification
// happens during the lowering phase, where each Location is assigned its type
// (Raw | BuiltIn | Label) and, eventually, its final address.
type AInstruction struct {
	Location string // A generic "payload" (the label/builtin/raw symbol)
}

// ----------------------------------------------------------------------------
// C Instructions

// CInstruction is the compute side of the Hack instruction set: 'dest=comp;jump'
// with either the assignment or the jump part optional (but not both absent).
//
// Comp names the ALU operation, Dest the subset of registers the result is stored
// into, and Jump the condition under which control transfers to the address held
// in A. The fields hold the mnemonic text; the binary bit-codes live in pkg/hack.
type CInstruction struct {
	Comp string // The 'computation' mnemonic, the calculation the ALU performs
	Dest string // The 'destination' mnemonic, where the result is stored ("" for none)
	Jump string // The 'jump' mnemonic, the condition for a control transfer ("" for none)
}

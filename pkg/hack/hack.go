package hack

// ----------------------------------------------------------------------------
// General information

// This section contains the in-memory representation of the Hack instruction set.
//
// At this level of the pipeline every symbolic information has either been resolved
// or classified: what remains is the two instruction kinds the CPU actually knows
// about, ready to be encoded into 16-bit words by the code generator.

// Instruction groups the A and C instruction structs; disambiguate with a type switch.
type Instruction interface{}

// A Program is the ordered list of Instructions the code generator walks to
// produce the final binary, one 16-bit word of output per entry.
type Program []Instruction

// SymbolTable maps every user-defined label to the ROM address it was resolved
// to during the lowering phase. The code generator extends it on the fly with
// RAM addresses for variables (labels referenced but never declared).
type SymbolTable map[string]uint16

// MaxAddressableMemory is the first address an A instruction cannot express:
// the leading opcode bit leaves only 15 bits for the address payload.
const MaxAddressableMemory uint16 = 1 << 15

// ----------------------------------------------------------------------------
// A Instructions

// AInstruction loads a location into the CPU's A register, which doubles as the
// operand for memory access (M = RAM[A]) and as the target of every jump.
//
// The location arrives here already classified by the lowering phase:
//   - Raw: a decimal address literal (e.g. @2345)
//   - Label: a user-defined symbol, resolved through the SymbolTable or
//     allocated as a fresh variable slot from RAM 16 onwards
//   - BuiltIn: one of the predefined Hack symbols (@SP, @R1, @SCREEN, ...)
type AInstruction struct {
	LocType LocationType // How to resolve the 'LocName' field to an address
	LocName string       // A generic "payload" (the label/builtin/raw symbol)
}

type LocationType uint8 // Discriminates the three resolution strategies above

const (
	Raw     LocationType = 0 // Raw address literal (e.g. @2345, @8989)
	Label   LocationType = 1 // User-defined location w/ a user given name (e.g. @MAIN, @LOOP)
	BuiltIn LocationType = 2 // Predefined associations by the Hack specs (@SCREEN, @KBD, @R1)
)

// ----------------------------------------------------------------------------
// C Instructions

// CInstruction is the compute side of the instruction set: it names the ALU
// operation to perform, where to store the result and on which condition to
// transfer control to the address currently held in A.
//
// The fields still hold the assembly mnemonics ("D+1", "AM", "JNE"); the
// translation tables in codegen.go map each mnemonic to its bit-codes.
type CInstruction struct {
	Comp string // The 'computation' mnemonic, the calculation the ALU performs
	Dest string // The 'destination' mnemonic, where the result is stored ("" for none)
	Jump string // The 'jump' mnemonic, the condition for a control transfer ("" for none)
}

package vm

// ----------------------------------------------------------------------------
// General information

// This section contains the in-memory representation of the VM intermediate language.
//
// A VM program follows the Java model: each Jack class compiles to its own .vm file
// (its own translation unit), and the full program is the set of those units. The
// shared 'Operation' interface groups the handful of instruction kinds the language
// defines; a Module is simply their source-ordered list.

// Program maps each translation unit to its Module. The key is the module/class
// name, which also prefixes the unit's static variables ('<Module>.<index>') once
// lowered to assembly.
type Program map[string]Module

// Module is the source-ordered list of operations of one translation unit.
type Module []Operation

// Operation groups every VM instruction kind; disambiguate with a type switch.
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// MemoryOp moves one word between the stack and a memory segment: 'push' copies
// segment[offset] onto the stack's top, 'pop' moves the stack's top into
// segment[offset]. These two are the only way data enters or leaves the stack.
type MemoryOp struct {
	Operation OperationType // Either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment addressed (this, that, temp, ...)
	Offset    uint16        // The location inside the segment
}

type OperationType string // Enum for the two memory operation directions

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

// SegmentType names one of the eight VM memory segments. 'constant' is purely
// virtual (push-only), 'pointer' aliases the THIS/THAT registers at offsets
// 0/1, 'temp' maps to the fixed RAM range 5-12, 'static' compiles to
// per-module assembler symbols, and the rest are base-pointer relative.
type SegmentType string

const (
	Temp     SegmentType = "temp"
	Constant SegmentType = "constant"

	Local    SegmentType = "local"
	Static   SegmentType = "static"
	Argument SegmentType = "argument"

	This    SegmentType = "this"
	That    SegmentType = "that"
	Pointer SegmentType = "pointer"
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// ArithmeticOp applies one of the nine stack operators in place: binary ops
// consume the two topmost cells and push one result, unary ops transform the
// top cell, and comparisons push -1 (true) or 0 (false).
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum for the operator applied by an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Label, Goto, Function and Return Ops

// LabelDecl marks a location in the current function that a GotoOp can target.
// Its scope is the enclosing function: the codegen phase qualifies it as
// '<Function>$<Name>' so the same label text used in two functions never collides.
type LabelDecl struct{ Name string }

// GotoOp transfers control to a LabelDecl, either unconditionally or by
// popping and testing the stack's top value.
type GotoOp struct {
	Label string
	Jump  JumpType
}

type JumpType string // Enum for the two jump flavours available to a GotoOp

const (
	Unconditional JumpType = "goto"
	Conditional   JumpType = "if-goto"
)

// FuncDecl marks the start of a function/method/constructor body. NLocal is
// the number of local variables the callee needs zero-initialized on entry.
type FuncDecl struct {
	Name   string
	NLocal uint8
}

// FuncCallOp invokes another function, passing the NArgs values currently on
// top of the stack as its arguments.
type FuncCallOp struct {
	Name  string
	NArgs uint8
}

// ReturnOp pops the caller's saved frame back into place and transfers
// control back to it, leaving the callee's single return value on the stack.
type ReturnOp struct{}

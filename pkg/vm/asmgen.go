package vm

import (
	"fmt"
	"sort"

	"nand2tetris.dev/jackvm/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm to Asm lowering

// AsmEmitter takes a 'vm.Program' (one or more modules/translation units) and produces
// the 'asm.Program' that implements it, following the standard nand2tetris calling
// convention: SP/LCL/ARG/THIS/THAT live in RAM[0..4], 'temp' is RAM[5..12], 'static' is
// compiled to a per-module '<Module>.<index>' symbol and left for the assembler to
// assign an actual address, and 'pointer 0/1' addresses THIS/THAT directly.
//
// Every VM-level label is qualified as '<Function>$<Label>' before being emitted, so two
// functions are free to reuse a label name (hand-written .vm files do this routinely,
// even though the Jack compiler's own lowering pass never produces a collision). Every
// eq/gt/lt comparison gets its own numbered pair of labels and every function call its
// own numbered return-address label, so repeated occurrences never collide either.
type AsmEmitter struct {
	program Program

	currentFunction string // qualifies bare VM-level labels, defaults to the module name
	nComparison     uint   // counter for unique eq/gt/lt labels
	nCall           uint   // counter for unique call return-address labels
}

func NewAsmEmitter(p Program) *AsmEmitter {
	return &AsmEmitter{program: p}
}

// Emit lowers every module in name order (sorted, for reproducible output) into a
// single 'asm.Program'. When 'bootstrap' is set, a prelude that sets SP to 256 and
// calls 'Sys.init' is emitted first; the driver sets it for directory mode and, for
// a single file, only when requested explicitly.
func (e *AsmEmitter) Emit(bootstrap bool) (asm.Program, error) {
	if len(e.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty or nil")
	}

	program := asm.Program{}
	if bootstrap {
		program = append(program, e.emitBootstrap()...)
	}

	names := make([]string, 0, len(e.program))
	for name := range e.program {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e.currentFunction = name
		for _, operation := range e.program[name] {
			stmts, err := e.HandleOperation(name, operation)
			if err != nil {
				return nil, fmt.Errorf("error lowering module '%s': %w", name, err)
			}
			program = append(program, stmts...)
		}
	}

	return program, nil
}

func (e *AsmEmitter) emitBootstrap() asm.Program {
	// The prelude runs outside any VM function, so the call's return label is
	// scoped to a synthetic "Bootstrap" frame (Sys.init never returns anyway).
	e.currentFunction = "Bootstrap"

	program := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	return append(program, e.emitCall("Sys.init", 0)...)
}

// HandleOperation dispatches a single 'vm.Operation' to its specialized handler.
// 'module' names the static-variable prefix for the enclosing translation unit.
func (e *AsmEmitter) HandleOperation(module string, op Operation) (asm.Program, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return e.HandleMemoryOp(module, tOp)
	case ArithmeticOp:
		return e.HandleArithmeticOp(tOp)
	case LabelDecl:
		return asm.Program{asm.LabelDecl{Name: e.qualify(tOp.Name)}}, nil
	case GotoOp:
		return e.HandleGotoOp(tOp)
	case FuncDecl:
		return e.HandleFuncDecl(tOp)
	case FuncCallOp:
		return e.emitCall(tOp.Name, tOp.NArgs), nil
	case ReturnOp:
		return e.emitReturn(), nil
	default:
		return nil, fmt.Errorf("unrecognized operation: %T", op)
	}
}

// qualify scopes a bare VM-level label to the function currently being emitted so
// that two functions using the same label name (e.g. both calling it "LOOP") never
// collide once flattened into a single assembly program.
func (e *AsmEmitter) qualify(label string) string {
	return fmt.Sprintf("%s$%s", e.currentFunction, label)
}

// ----------------------------------------------------------------------------
// Memory operations

func (e *AsmEmitter) HandleMemoryOp(module string, op MemoryOp) (asm.Program, error) {
	switch op.Operation {
	case Push:
		return e.emitPush(module, op.Segment, op.Offset)
	case Pop:
		return e.emitPop(module, op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized memory operation type: %s", op.Operation)
	}
}

// segmentBase returns the assembly symbol backing a non-virtual, non-fixed segment.
func segmentBase(segment SegmentType) (string, bool) {
	switch segment {
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

func (e *AsmEmitter) emitPush(module string, segment SegmentType, offset uint16) (asm.Program, error) {
	loadValue, err := e.loadSegmentValueIntoD(module, segment, offset)
	if err != nil {
		return nil, err
	}

	return append(loadValue, pushDFromStack()...), nil
}

// loadSegmentValueIntoD computes, for every supported segment/offset pair, the
// instructions that leave the value to push in the D register.
func (e *AsmEmitter) loadSegmentValueIntoD(module string, segment SegmentType, offset uint16) (asm.Program, error) {
	switch segment {
	case Constant:
		return asm.Program{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, nil

	case Temp:
		if offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", offset)
		}
		return asm.Program{
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, nil

	case Pointer:
		target, err := pointerTarget(offset)
		if err != nil {
			return nil, err
		}
		return asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, nil

	case Static:
		return asm.Program{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", module, offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, nil

	default:
		base, ok := segmentBase(segment)
		if !ok {
			return nil, fmt.Errorf("unrecognized memory segment: %s", segment)
		}
		return asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, nil
	}
}

func pointerTarget(offset uint16) (string, error) {
	switch offset {
	case 0:
		return "THIS", nil
	case 1:
		return "THAT", nil
	default:
		return "", fmt.Errorf("invalid 'pointer' offset, got %d", offset)
	}
}

// pushDFromStack appends the D register's value to the top of the stack and
// advances SP. Shared by every push path once the value to push is in D.
func pushDFromStack() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

func (e *AsmEmitter) emitPop(module string, segment SegmentType, offset uint16) (asm.Program, error) {
	switch segment {
	case Temp:
		if offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", offset)
		}
		return append(popStackIntoD(), asm.Program{
			asm.AInstruction{Location: fmt.Sprint(5 + offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	case Pointer:
		target, err := pointerTarget(offset)
		if err != nil {
			return nil, err
		}
		return append(popStackIntoD(), asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	case Static:
		return append(popStackIntoD(), asm.Program{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", module, offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...), nil

	case Constant:
		return nil, fmt.Errorf("cannot pop into the virtual 'constant' segment")

	default:
		base, ok := segmentBase(segment)
		if !ok {
			return nil, fmt.Errorf("unrecognized memory segment: %s", segment)
		}
		// Stashes the target address in R13 (general purpose scratch) before
		// popping, since popping overwrites D with the value being moved.
		return asm.Program{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	}
}

func popStackIntoD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Arithmetic & logic operations

func (e *AsmEmitter) HandleArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Neg:
		return e.emitUnary("-M"), nil
	case Not:
		return e.emitUnary("!M"), nil
	case Add:
		return e.emitBinary("D+M"), nil
	case Sub:
		return e.emitBinary("M-D"), nil
	case And:
		return e.emitBinary("D&M"), nil
	case Or:
		return e.emitBinary("D|M"), nil
	case Eq:
		return e.emitComparison("JEQ"), nil
	case Gt:
		return e.emitComparison("JGT"), nil
	case Lt:
		return e.emitComparison("JLT"), nil
	default:
		return nil, fmt.Errorf("unrecognized arithmetic operation: %s", op.Operation)
	}
}

// emitUnary replaces the value on top of the stack in place, no pop/push needed.
func (e *AsmEmitter) emitUnary(comp string) asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// emitBinary pops the top two values, combines them and pushes the single result
// back in the same slot, so SP only needs decrementing once.
func (e *AsmEmitter) emitBinary(comp string) asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// emitComparison implements eq/gt/lt: the two top values are subtracted (x-y) and
// the sign of the result decides whether -1 (true) or 0 (false) is pushed back.
// Each call site gets its own pair of labels via 'nComparison' so repeated uses
// of the same op in one function never share a jump target.
func (e *AsmEmitter) emitComparison(jump string) asm.Program {
	id := e.nComparison
	e.nComparison++

	trueLabel := fmt.Sprintf("COMPARISON_TRUE_%d", id)
	endLabel := fmt.Sprintf("COMPARISON_END_%d", id)

	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: trueLabel},
		asm.CInstruction{Comp: "D", Jump: jump},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: endLabel},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: trueLabel},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},
		asm.LabelDecl{Name: endLabel},
	}
}

// ----------------------------------------------------------------------------
// Control flow, function declaration, call and return

func (e *AsmEmitter) HandleGotoOp(op GotoOp) (asm.Program, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce jump with empty label")
	}

	target := asm.AInstruction{Location: e.qualify(op.Label)}

	switch op.Jump {
	case Unconditional:
		return asm.Program{target, asm.CInstruction{Comp: "0", Jump: "JMP"}}, nil
	case Conditional:
		return append(popStackIntoD(), target, asm.CInstruction{Comp: "D", Jump: "JNE"}), nil
	default:
		return nil, fmt.Errorf("unrecognized jump type: %s", op.Jump)
	}
}

// HandleFuncDecl marks the function's entry point and zero-initializes its
// locals, setting the scope used to qualify any label declared inside it.
func (e *AsmEmitter) HandleFuncDecl(op FuncDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce function declaration with empty name")
	}
	e.currentFunction = op.Name

	program := asm.Program{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		program = append(program,
			asm.AInstruction{Location: "0"},
			asm.CInstruction{Dest: "D", Comp: "A"},
		)
		program = append(program, pushDFromStack()...)
	}
	return program, nil
}

// emitCall implements the full call protocol: push a return address and the 4
// caller-saved pointers, reposition ARG/LCL for the callee, then jump. Each call
// site gets a unique return-address label via 'nCall'.
func (e *AsmEmitter) emitCall(name string, nArgs uint8) asm.Program {
	id := e.nCall
	e.nCall++
	returnLabel := fmt.Sprintf("%s$ret.%d", e.currentFunction, id)

	program := asm.Program{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	program = append(program, pushDFromStack()...)

	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program,
			asm.AInstruction{Location: saved},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		program = append(program, pushDFromStack()...)
	}

	program = append(program,
		// ARG = SP - 5 - nArgs
		asm.AInstruction{Location: fmt.Sprint(5 + int(nArgs))},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto <function>
		asm.AInstruction{Location: name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// (return address)
		asm.LabelDecl{Name: returnLabel},
	)

	return program
}

// emitReturn restores the caller's frame (saved in R13/R14 as scratch) and
// transfers control back to it, leaving the callee's single return value where
// the first argument used to be, then resetting SP right above it.
func (e *AsmEmitter) emitReturn() asm.Program {
	return asm.Program{
		// R13 = FRAME = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 = RET = *(FRAME-5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG+1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THAT = *(FRAME-1)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// THIS = *(FRAME-2)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// ARG = *(FRAME-3)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = *(FRAME-4)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto RET
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}
}

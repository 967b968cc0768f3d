package vm

import (
	"fmt"
)

// ----------------------------------------------------------------------------
// Code Generator

// CodeGenerator renders a 'vm.Program' back into its textual form: one command
// per line, fields space-separated. The Jack compiler is the main consumer, it
// builds a Program in memory and uses this to produce one .vm file per module.
//
// Rendering is stateless beyond the wrapped program; validation is limited to
// what the types can't already rule out (segment offset bounds, empty names).
type CodeGenerator struct {
	program Program
}

// NewCodeGenerator wraps the Program 'p' to be rendered; 'p' may be empty.
func NewCodeGenerator(p Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// Generate renders every module, keyed by module name, each as its ordered
// list of command lines. It fails on the first operation that can't be
// rendered, naming no partial results.
func (cg *CodeGenerator) Generate() (map[string][]string, error) {
	rendered := map[string][]string{}

	for name, module := range cg.program {
		lines := make([]string, 0, len(module))

		for _, operation := range module {
			line, err := cg.generateOperation(operation)
			if err != nil {
				return nil, fmt.Errorf("error rendering module '%s': %w", name, err)
			}
			lines = append(lines, line)
		}

		rendered[name] = lines
	}

	return rendered, nil
}

func (cg *CodeGenerator) generateOperation(operation Operation) (string, error) {
	switch tOperation := operation.(type) {
	case MemoryOp:
		return cg.GenerateMemoryOp(tOperation)
	case ArithmeticOp:
		return cg.GenerateArithmeticOp(tOperation)
	case LabelDecl:
		return cg.GenerateLabelDecl(tOperation)
	case GotoOp:
		return cg.GenerateGotoOp(tOperation)
	case FuncDecl:
		return cg.GenerateFuncDecl(tOperation)
	case FuncCallOp:
		return cg.GenerateFuncCallOp(tOperation)
	case ReturnOp:
		return cg.GenerateReturnOp(tOperation)
	default:
		return "", fmt.Errorf("unrecognized operation '%T'", operation)
	}
}

// GenerateMemoryOp renders '{push|pop} {segment} {offset}', bounds-checking
// the two segments that have a fixed size.
func (cg *CodeGenerator) GenerateMemoryOp(op MemoryOp) (string, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return "", fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return "", fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	return fmt.Sprintf("%s %s %d", op.Operation, op.Segment, op.Offset), nil
}

// GenerateArithmeticOp renders the bare operator name.
func (cg *CodeGenerator) GenerateArithmeticOp(op ArithmeticOp) (string, error) {
	return string(op.Operation), nil
}

// GenerateLabelDecl renders 'label {name}'.
func (cg *CodeGenerator) GenerateLabelDecl(op LabelDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}

	return fmt.Sprintf("label %s", op.Name), nil
}

// GenerateGotoOp renders '{goto|if-goto} {label}'.
func (cg *CodeGenerator) GenerateGotoOp(op GotoOp) (string, error) {
	if op.Label == "" {
		return "", fmt.Errorf("unable to produce empty jump label")
	}

	return fmt.Sprintf("%s %s", op.Jump, op.Label), nil
}

// GenerateFuncDecl renders 'function {name} {n_locals}'.
func (cg *CodeGenerator) GenerateFuncDecl(op FuncDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function declaration")
	}

	return fmt.Sprintf("function %s %d", op.Name, op.NLocal), nil
}

// GenerateReturnOp renders the fixed 'return' command.
func (cg *CodeGenerator) GenerateReturnOp(op ReturnOp) (string, error) {
	return "return", nil
}

// GenerateFuncCallOp renders 'call {name} {n_args}'.
func (cg *CodeGenerator) GenerateFuncCallOp(op FuncCallOp) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function call")
	}

	return fmt.Sprintf("call %s %d", op.Name, op.NArgs), nil
}

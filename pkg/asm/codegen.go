package asm

import (
	"fmt"
	"regexp"

	"nand2tetris.dev/jackvm/pkg/hack"
)

// ----------------------------------------------------------------------------
// Code Generator

// CodeGenerator renders an 'asm.Program' back into its textual form, one line
// per statement. The VM translator is the main consumer: it builds a Program
// in memory and uses this to produce the final .asm file. Each statement is
// validated against the Hack mnemonic tables before being formatted, so a
// malformed instruction is caught here instead of surfacing later as an
// unassemblable output file.
type CodeGenerator struct {
	program Program
}

// NewCodeGenerator wraps the Program 'p' to be rendered; 'p' may be empty.
func NewCodeGenerator(p Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// labelPattern mirrors the grammar's symbol rule: no leading digit, then any
// mix of letters, digits and the '_', '.', '$', ':' symbol characters.
var labelPattern = regexp.MustCompile(`^[A-Za-z_.$:][0-9a-zA-Z_.$:]*$`)

// Generate renders every statement in order, failing on the first invalid one.
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := make([]string, 0, len(cg.program))

	for _, statement := range cg.program {
		var line string
		var err error

		switch tStatement := statement.(type) {
		case AInstruction:
			line, err = cg.GenerateAInst(tStatement)
		case CInstruction:
			line, err = cg.GenerateCInst(tStatement)
		case LabelDecl:
			line, err = cg.GenerateLabelDecl(tStatement)
		default:
			err = fmt.Errorf("unrecognized statement '%T'", statement)
		}

		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, nil
}

// GenerateAInst renders an A instruction as '@<location>'.
func (CodeGenerator) GenerateAInst(stmt AInstruction) (string, error) {
	if stmt.Location == "" {
		return "", fmt.Errorf("unable to produce an A instruction with an empty location")
	}

	return fmt.Sprintf("@%s", stmt.Location), nil
}

// GenerateCInst renders a C instruction as 'dest=comp;jump', omitting whichever
// of the optional parts is absent. Every mnemonic is checked against the Hack
// translation tables; a comp with neither a dest nor a jump is rejected since
// it would compute a value and immediately discard it.
func (cg *CodeGenerator) GenerateCInst(stmt CInstruction) (string, error) {
	if _, known := hack.CompTable[stmt.Comp]; stmt.Comp == "" || !known {
		return "", fmt.Errorf("missing or unknown 'comp' mnemonic %q in C instruction", stmt.Comp)
	}
	if _, known := hack.DestTable[stmt.Dest]; !known {
		return "", fmt.Errorf("unknown 'dest' mnemonic %q in C instruction", stmt.Dest)
	}
	if _, known := hack.JumpTable[stmt.Jump]; !known {
		return "", fmt.Errorf("unknown 'jump' mnemonic %q in C instruction", stmt.Jump)
	}

	switch {
	case stmt.Dest != "" && stmt.Jump != "":
		return fmt.Sprintf("%s=%s;%s", stmt.Dest, stmt.Comp, stmt.Jump), nil
	case stmt.Dest != "":
		return fmt.Sprintf("%s=%s", stmt.Dest, stmt.Comp), nil
	case stmt.Jump != "":
		return fmt.Sprintf("%s;%s", stmt.Comp, stmt.Jump), nil
	default:
		return "", fmt.Errorf("C instruction '%s' has neither a destination nor a jump", stmt.Comp)
	}
}

// GenerateLabelDecl renders a label declaration as '(<name>)'. Redefining one
// of the predefined Hack symbols would silently shadow it for the whole
// program, so that is rejected here.
func (cg *CodeGenerator) GenerateLabelDecl(stmt LabelDecl) (string, error) {
	if !labelPattern.MatchString(stmt.Name) {
		return "", fmt.Errorf("invalid label name %q", stmt.Name)
	}
	if _, predefined := hack.BuiltInTable[stmt.Name]; predefined {
		return "", fmt.Errorf("unable to override built-in symbol '%s'", stmt.Name)
	}

	return fmt.Sprintf("(%s)", stmt.Name), nil
}

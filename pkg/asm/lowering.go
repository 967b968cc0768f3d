package asm

import (
	"fmt"
	"strconv"

	"nand2tetris.dev/jackvm/pkg/hack"
)

// ----------------------------------------------------------------------------
// Asm Lowerer

// The Lowerer turns an 'asm.Program' into its 'hack.Program' counterpart plus
// the symbol table that maps every user-defined label to its ROM address.
//
// Label declarations take no room in the final binary, so the address assigned
// to a label is simply the number of real instructions lowered before it was
// encountered. A instructions are classified here (raw address, predefined
// symbol, or user label) and resolved to their final address by pkg/hack.
type Lowerer struct{ program Program }

// NewLowerer wraps the Program 'p' to be lowered; Lower rejects an empty one.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Lower walks the program in order, classifying instructions and collecting
// label addresses as it goes.
func (l *Lowerer) Lower() (hack.Program, hack.SymbolTable, error) {
	if len(l.program) == 0 {
		return nil, nil, fmt.Errorf("the given 'program' is empty")
	}

	lowered, table := hack.Program{}, hack.SymbolTable{}

	for _, statement := range l.program {
		switch tStatement := statement.(type) {
		case AInstruction:
			inst, err := l.lowerAInst(tStatement)
			if err != nil {
				return nil, nil, err
			}
			lowered = append(lowered, inst)

		case CInstruction:
			inst, err := l.lowerCInst(tStatement)
			if err != nil {
				return nil, nil, err
			}
			lowered = append(lowered, inst)

		case LabelDecl:
			if _, predefined := hack.BuiltInTable[tStatement.Name]; predefined {
				return nil, nil, fmt.Errorf("unable to override built-in symbol '%s'", tStatement.Name)
			}
			if _, declared := table[tStatement.Name]; declared {
				return nil, nil, fmt.Errorf("label '%s' is declared more than once", tStatement.Name)
			}
			// The label resolves to the address of the instruction that follows it.
			table[tStatement.Name] = uint16(len(lowered))

		default:
			return nil, nil, fmt.Errorf("unrecognized statement '%T'", statement)
		}
	}

	return lowered, table, nil
}

// lowerAInst classifies the location payload of an A instruction. Anything
// that parses as a decimal is a raw address, anything in the predefined table
// is a built-in symbol, and everything else is left as a user label for the
// binary code generator to resolve (or allocate, for variables).
func (Lowerer) lowerAInst(inst AInstruction) (hack.Instruction, error) {
	if _, predefined := hack.BuiltInTable[inst.Location]; predefined {
		return hack.AInstruction{LocType: hack.BuiltIn, LocName: inst.Location}, nil
	}
	if _, err := strconv.ParseUint(inst.Location, 10, 64); err == nil {
		return hack.AInstruction{LocType: hack.Raw, LocName: inst.Location}, nil
	}
	return hack.AInstruction{LocType: hack.Label, LocName: inst.Location}, nil
}

// lowerCInst carries the three mnemonics over after checking the mandatory
// 'comp' part and that the instruction has an effect (a dest, a jump or both).
func (Lowerer) lowerCInst(inst CInstruction) (hack.Instruction, error) {
	if inst.Comp == "" {
		return nil, fmt.Errorf("'comp' must always be provided in a C instruction")
	}
	if inst.Dest == "" && inst.Jump == "" {
		return nil, fmt.Errorf("C instruction '%s' has neither a destination nor a jump", inst.Comp)
	}

	return hack.CInstruction{Dest: inst.Dest, Comp: inst.Comp, Jump: inst.Jump}, nil
}

package vm_test

import (
	"testing"

	"nand2tetris.dev/jackvm/pkg/asm"
	"nand2tetris.dev/jackvm/pkg/vm"
)

func TestAsmEmitter_MemoryOp(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	test := func(op vm.MemoryOp, wantLen int, fail bool) {
		got, err := emitter.HandleMemoryOp("Main", op)
		if err != nil && !fail {
			t.Fatalf("unexpected error for %+v: %s", op, err)
		}
		if err == nil && fail {
			t.Fatalf("expected an error for %+v, got none", op)
		}
		if !fail && len(got) != wantLen {
			t.Fatalf("expected %d instructions for %+v, got %d", wantLen, op, len(got))
		}
	}

	t.Run("push", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 5}, 2+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 1}, 5+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0}, 5+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 2}, 5+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 2}, 5+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 7}, 2+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}, 2+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 1}, 2+5, false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 3}, 2+5, false)
	})

	t.Run("pop", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 1}, 6+6, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Argument, Offset: 0}, 6+6, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 7}, 3+2, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0}, 3+2, false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 3}, 3+2, false)
	})

	t.Run("invalid data", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}, 0, true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 8}, 0, true)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 2}, 0, true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 2}, 0, true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0}, 0, true)
		test(vm.MemoryOp{Operation: vm.OperationType("weird"), Segment: vm.Constant, Offset: 0}, 0, true)
	})
}

func TestAsmEmitter_ArithmeticOp(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	test := func(op vm.ArithmeticOp, wantLen int, fail bool) {
		got, err := emitter.HandleArithmeticOp(op)
		if err != nil && !fail {
			t.Fatalf("unexpected error for %+v: %s", op, err)
		}
		if !fail && len(got) != wantLen {
			t.Fatalf("expected %d instructions for %+v, got %d", wantLen, op, len(got))
		}
	}

	t.Run("unary ops leave SP untouched", func(t *testing.T) {
		test(vm.ArithmeticOp{Operation: vm.Neg}, 3, false)
		test(vm.ArithmeticOp{Operation: vm.Not}, 3, false)
	})

	t.Run("binary ops pop one value", func(t *testing.T) {
		test(vm.ArithmeticOp{Operation: vm.Add}, 5, false)
		test(vm.ArithmeticOp{Operation: vm.Sub}, 5, false)
		test(vm.ArithmeticOp{Operation: vm.And}, 5, false)
		test(vm.ArithmeticOp{Operation: vm.Or}, 5, false)
	})

	t.Run("comparisons expand to a branch", func(t *testing.T) {
		test(vm.ArithmeticOp{Operation: vm.Eq}, 17, false)
		test(vm.ArithmeticOp{Operation: vm.Gt}, 17, false)
		test(vm.ArithmeticOp{Operation: vm.Lt}, 17, false)
	})

	t.Run("invalid op", func(t *testing.T) {
		test(vm.ArithmeticOp{Operation: vm.ArithOpType("xor")}, 0, true)
	})
}

func TestAsmEmitter_ComparisonLabelsAreUnique(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	first, err := emitter.HandleArithmeticOp(vm.ArithmeticOp{Operation: vm.Eq})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	second, err := emitter.HandleArithmeticOp(vm.ArithmeticOp{Operation: vm.Eq})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	labelOf := func(prog asm.Program) string {
		for _, stmt := range prog {
			if l, ok := stmt.(asm.LabelDecl); ok {
				return l.Name
			}
		}
		return ""
	}

	if labelOf(first) == labelOf(second) {
		t.Fatalf("expected distinct labels across repeated 'eq' occurrences, both got %q", labelOf(first))
	}
}

func TestAsmEmitter_GotoOp(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	test := func(op vm.GotoOp, wantLen int, fail bool) {
		got, err := emitter.HandleGotoOp(op)
		if err != nil && !fail {
			t.Fatalf("unexpected error for %+v: %s", op, err)
		}
		if err == nil && fail {
			t.Fatalf("expected an error for %+v, got none", op)
		}
		if !fail && len(got) != wantLen {
			t.Fatalf("expected %d instructions for %+v, got %d", wantLen, op, len(got))
		}
	}

	t.Run("valid data", func(t *testing.T) {
		test(vm.GotoOp{Jump: vm.Unconditional, Label: "END"}, 2, false)
		test(vm.GotoOp{Jump: vm.Conditional, Label: "CHECK"}, 5, false)
	})

	t.Run("invalid data", func(t *testing.T) {
		test(vm.GotoOp{Jump: vm.Unconditional, Label: ""}, 0, true)
		test(vm.GotoOp{Jump: vm.JumpType("gibberish"), Label: "END"}, 0, true)
	})
}

func TestAsmEmitter_FuncDecl(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	test := func(op vm.FuncDecl, wantLen int, fail bool) {
		got, err := emitter.HandleFuncDecl(op)
		if err != nil && !fail {
			t.Fatalf("unexpected error for %+v: %s", op, err)
		}
		if err == nil && fail {
			t.Fatalf("expected an error for %+v, got none", op)
		}
		if !fail && len(got) != wantLen {
			t.Fatalf("expected %d instructions for %+v, got %d", wantLen, op, len(got))
		}
	}

	t.Run("valid data", func(t *testing.T) {
		test(vm.FuncDecl{Name: "Main.main", NLocal: 0}, 1, false)
		test(vm.FuncDecl{Name: "Main.sum", NLocal: 3}, 1+3*7, false)
	})

	t.Run("invalid data", func(t *testing.T) {
		test(vm.FuncDecl{Name: "", NLocal: 1}, 0, true)
	})
}

func TestAsmEmitter_ReturnOp(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	got, err := emitter.HandleOperation("Main", vm.ReturnOp{})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected a non-empty return sequence")
	}

	last, ok := got[len(got)-1].(asm.CInstruction)
	if !ok || last.Jump != "JMP" {
		t.Fatalf("expected a trailing unconditional jump back to the caller, got %+v", got[len(got)-1])
	}
}

func TestAsmEmitter_FuncCallOp(t *testing.T) {
	emitter := vm.NewAsmEmitter(vm.Program{})

	got, err := emitter.HandleOperation("Main", vm.FuncCallOp{Name: "Main.sum", NArgs: 2})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected a non-empty call sequence")
	}

	if _, ok := got[len(got)-1].(asm.LabelDecl); !ok {
		t.Fatalf("expected the call sequence to end on the return-address label, got %+v", got[len(got)-1])
	}
}

func TestAsmEmitter_Emit(t *testing.T) {
	t.Run("empty program fails", func(t *testing.T) {
		emitter := vm.NewAsmEmitter(vm.Program{})
		if _, err := emitter.Emit(false); err == nil {
			t.Fatalf("expected an error on an empty program")
		}
	})

	t.Run("bootstrap prepends SP=256 and calls Sys.init", func(t *testing.T) {
		program := vm.Program{
			"Sys": vm.Module{vm.FuncDecl{Name: "Sys.init", NLocal: 0}, vm.ReturnOp{}},
		}
		emitter := vm.NewAsmEmitter(program)

		got, err := emitter.Emit(true)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		first, ok := got[0].(asm.AInstruction)
		if !ok || first.Location != "256" {
			t.Fatalf("expected the first instruction to load 256, got %+v", got[0])
		}

		var callsInit bool
		for _, stmt := range got {
			if a, ok := stmt.(asm.AInstruction); ok && a.Location == "Sys.init" {
				callsInit = true
			}
		}
		if !callsInit {
			t.Fatalf("expected the bootstrap sequence to call Sys.init")
		}
	})

	t.Run("without bootstrap, only the module's own code is emitted", func(t *testing.T) {
		program := vm.Program{
			"Main": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7}},
		}
		emitter := vm.NewAsmEmitter(program)

		got, err := emitter.Emit(false)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if len(got) != 7 {
			t.Fatalf("expected 7 instructions (push constant), got %d", len(got))
		}
	})
}

func TestAsmEmitter_LabelQualification(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.FuncDecl{Name: "Main.loop", NLocal: 0},
			vm.LabelDecl{Name: "LOOP"},
			vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"},
		},
	}
	emitter := vm.NewAsmEmitter(program)

	got, err := emitter.Emit(false)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var sawQualifiedDecl, sawQualifiedRef bool
	for _, stmt := range got {
		switch s := stmt.(type) {
		case asm.LabelDecl:
			if s.Name == "Main.loop$LOOP" {
				sawQualifiedDecl = true
			}
		case asm.AInstruction:
			if s.Location == "Main.loop$LOOP" {
				sawQualifiedRef = true
			}
		}
	}

	if !sawQualifiedDecl || !sawQualifiedRef {
		t.Fatalf("expected the label to be qualified with its enclosing function name")
	}
}

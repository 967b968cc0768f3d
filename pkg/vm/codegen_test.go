package vm_test

import (
	"testing"

	"nand2tetris.dev/jackvm/pkg/vm"
)

func TestGenerateMemoryOp(t *testing.T) {
	codegen := vm.NewCodeGenerator(vm.Program{})

	test := func(op vm.MemoryOp, expected string, fail bool) {
		t.Helper()
		res, err := codegen.GenerateMemoryOp(op)
		if err != nil && !fail {
			t.Errorf("unexpected error for %+v: %s", op, err)
		}
		if err == nil && fail {
			t.Errorf("expected an error for %+v, got %q", op, res)
		}
		if !fail && res != expected {
			t.Errorf("got %q, want %q", res, expected)
		}
	}

	t.Run("every segment renders with its offset", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 5}, "push constant 5", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 3}, "pop local 3", false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 2}, "push argument 2", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 1}, "pop static 1", false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: 0}, "push this 0", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 4}, "pop that 4", false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 7}, "push temp 7", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1}, "pop pointer 1", false)
	})

	t.Run("fixed-size segments are bounds checked", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}, "", true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 2}, "", true)
	})
}

func TestGenerateArithmeticOp(t *testing.T) {
	codegen := vm.NewCodeGenerator(vm.Program{})

	operators := []vm.ArithOpType{vm.Add, vm.Sub, vm.Neg, vm.Eq, vm.Gt, vm.Lt, vm.And, vm.Or, vm.Not}
	for _, op := range operators {
		res, err := codegen.GenerateArithmeticOp(vm.ArithmeticOp{Operation: op})
		if err != nil {
			t.Errorf("unexpected error for %q: %s", op, err)
		}
		if res != string(op) {
			t.Errorf("got %q, want %q", res, op)
		}
	}
}

func TestGenerateBranchingOps(t *testing.T) {
	codegen := vm.NewCodeGenerator(vm.Program{})

	t.Run("labels and jumps", func(t *testing.T) {
		if res, _ := codegen.GenerateLabelDecl(vm.LabelDecl{Name: "WHILE_START_0"}); res != "label WHILE_START_0" {
			t.Errorf("got %q", res)
		}
		if res, _ := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Unconditional, Label: "WHILE_START_0"}); res != "goto WHILE_START_0" {
			t.Errorf("got %q", res)
		}
		if res, _ := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Conditional, Label: "IF_END_1"}); res != "if-goto IF_END_1" {
			t.Errorf("got %q", res)
		}
	})

	t.Run("empty names are rejected", func(t *testing.T) {
		if _, err := codegen.GenerateLabelDecl(vm.LabelDecl{}); err == nil {
			t.Error("expected an error for an empty label declaration")
		}
		if _, err := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Conditional}); err == nil {
			t.Error("expected an error for an empty jump target")
		}
	})
}

func TestGenerateFunctionOps(t *testing.T) {
	codegen := vm.NewCodeGenerator(vm.Program{})

	t.Run("declaration, call and return", func(t *testing.T) {
		if res, _ := codegen.GenerateFuncDecl(vm.FuncDecl{Name: "Main.main", NLocal: 2}); res != "function Main.main 2" {
			t.Errorf("got %q", res)
		}
		if res, _ := codegen.GenerateFuncCallOp(vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}); res != "call Math.multiply 2" {
			t.Errorf("got %q", res)
		}
		if res, _ := codegen.GenerateReturnOp(vm.ReturnOp{}); res != "return" {
			t.Errorf("got %q", res)
		}
	})

	t.Run("empty names are rejected", func(t *testing.T) {
		if _, err := codegen.GenerateFuncDecl(vm.FuncDecl{NLocal: 2}); err == nil {
			t.Error("expected an error for an empty function declaration")
		}
		if _, err := codegen.GenerateFuncCallOp(vm.FuncCallOp{NArgs: 1}); err == nil {
			t.Error("expected an error for an empty function call")
		}
	})
}

func TestGenerateModule(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.FuncDecl{Name: "Main.main", NLocal: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 3},
			vm.ArithmeticOp{Operation: vm.Add},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		},
	}

	codegen := vm.NewCodeGenerator(program)
	rendered, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := []string{
		"function Main.main 0",
		"push constant 2",
		"push constant 3",
		"add",
		"pop temp 0",
		"push constant 0",
		"return",
	}

	got, ok := rendered["Main"]
	if !ok {
		t.Fatal("expected the 'Main' module in the rendered output")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

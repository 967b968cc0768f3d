package jack_test

import (
	"testing"

	"nand2tetris.dev/jackvm/pkg/jack"
)

func mustRegister(t *testing.T, st *jack.ScopeTable, v jack.Variable) {
	t.Helper()
	if err := st.RegisterVariable(v); err != nil {
		t.Fatalf("unexpected error registering %+v: %v", v, err)
	}
}

func TestClassScope(t *testing.T) {
	test := func(t *testing.T, st *jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		t.Helper()
		offset, variable, err := st.ResolveVariable(lookup)
		if fail {
			if err == nil {
				t.Fatalf("expected '%s' to be undeclared, resolved to %+v", lookup, variable)
			}
			return
		}
		if err != nil {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable %+v, got %+v", expectedVar, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected to find offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("fields and statics resolve by declaration order", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		mustRegister(t, st, jack.Variable{Name: "test_field", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}})
		mustRegister(t, st, jack.Variable{Name: "test_static", VarType: jack.Static, DataType: jack.DataType{Main: jack.String}})
		mustRegister(t, st, jack.Variable{Name: "test_field_2", VarType: jack.Field, DataType: jack.DataType{Main: jack.Char}})
		mustRegister(t, st, jack.Variable{Name: "test_static_2", VarType: jack.Static, DataType: jack.DataType{Main: jack.Bool}})

		test(t, st, "test_field", jack.Variable{Name: "test_field", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}}, 0, false)
		test(t, st, "test_static", jack.Variable{Name: "test_static", VarType: jack.Static, DataType: jack.DataType{Main: jack.String}}, 0, false)
		test(t, st, "test_field_2", jack.Variable{Name: "test_field_2", VarType: jack.Field, DataType: jack.DataType{Main: jack.Char}}, 1, false)
		test(t, st, "test_static_2", jack.Variable{Name: "test_static_2", VarType: jack.Static, DataType: jack.DataType{Main: jack.Bool}}, 1, false)

		test(t, st, "nonexistent", jack.Variable{}, 0, true)
	})

	t.Run("duplicate declaration in the same scope is a name error", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		mustRegister(t, st, jack.Variable{Name: "dup", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}})
		if err := st.RegisterVariable(jack.Variable{Name: "dup", VarType: jack.Field, DataType: jack.DataType{Main: jack.Char}}); err == nil {
			t.Fatal("expected a name error re-declaring 'dup' as a field")
		}
	})

	t.Run("subroutine scope shadows a class field of the same name", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		mustRegister(t, st, jack.Variable{Name: "shared", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}})

		st.PushSubRoutineScope("TestMethod")
		mustRegister(t, st, jack.Variable{Name: "shared", VarType: jack.Local, DataType: jack.DataType{Main: jack.Bool}})

		test(t, st, "shared", jack.Variable{Name: "shared", VarType: jack.Local, DataType: jack.DataType{Main: jack.Bool}}, 0, false)

		st.PopSubroutineScope()
		test(t, st, "shared", jack.Variable{Name: "shared", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}}, 0, false)
	})

	t.Run("popping the class scope drops its fields", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		mustRegister(t, st, jack.Variable{Name: "test_field", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}})
		test(t, st, "test_field", jack.Variable{Name: "test_field", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}}, 0, false)

		st.PopClassScope()
		test(t, st, "test_field", jack.Variable{}, 0, true)
	})
}

func TestSubroutineScope(t *testing.T) {
	test := func(t *testing.T, st *jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		t.Helper()
		offset, variable, err := st.ResolveVariable(lookup)
		if fail {
			if err == nil {
				t.Fatalf("expected '%s' to be undeclared, resolved to %+v", lookup, variable)
			}
			return
		}
		if err != nil {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable %+v, got %+v", expectedVar, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected to find offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("locals and parameters resolve by declaration order", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("TestSubroutine")

		mustRegister(t, st, jack.Variable{Name: "test_local", VarType: jack.Local, DataType: jack.DataType{Main: jack.Int}})
		mustRegister(t, st, jack.Variable{Name: "test_parameter", VarType: jack.Parameter, DataType: jack.DataType{Main: jack.String}})
		mustRegister(t, st, jack.Variable{Name: "test_local_2", VarType: jack.Local, DataType: jack.DataType{Main: jack.Char}})
		mustRegister(t, st, jack.Variable{Name: "test_parameter_2", VarType: jack.Parameter, DataType: jack.DataType{Main: jack.Bool}})

		test(t, st, "test_local", jack.Variable{Name: "test_local", VarType: jack.Local, DataType: jack.DataType{Main: jack.Int}}, 0, false)
		test(t, st, "test_parameter", jack.Variable{Name: "test_parameter", VarType: jack.Parameter, DataType: jack.DataType{Main: jack.String}}, 0, false)
		test(t, st, "test_local_2", jack.Variable{Name: "test_local_2", VarType: jack.Local, DataType: jack.DataType{Main: jack.Char}}, 1, false)
		test(t, st, "test_parameter_2", jack.Variable{Name: "test_parameter_2", VarType: jack.Parameter, DataType: jack.DataType{Main: jack.Bool}}, 1, false)

		test(t, st, "nonexistent", jack.Variable{}, 0, true)
	})

	t.Run("popping the subroutine scope drops locals and parameters", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("TestSubroutine")

		mustRegister(t, st, jack.Variable{Name: "test_local", VarType: jack.Local, DataType: jack.DataType{Main: jack.Int}})
		mustRegister(t, st, jack.Variable{Name: "test_parameter", VarType: jack.Parameter, DataType: jack.DataType{Main: jack.String}})

		st.PopSubroutineScope()

		test(t, st, "test_local", jack.Variable{}, 0, true)
		test(t, st, "test_parameter", jack.Variable{}, 0, true)
	})
}

func TestScopeTracking(t *testing.T) {
	st := jack.NewScopeTable()

	st.PushClassScope("TestClass")
	if got := st.GetScope(); got != "TestClass.Global" {
		t.Errorf("expected scope 'TestClass.Global', got %q", got)
	}

	st.PushSubRoutineScope("TestSubroutine")
	if got := st.GetScope(); got != "TestClass.TestSubroutine" {
		t.Errorf("expected scope 'TestClass.TestSubroutine', got %q", got)
	}

	st.PopSubroutineScope()
	if got := st.GetScope(); got != "TestClass.Global" {
		t.Errorf("expected scope 'TestClass.Global', got %q", got)
	}

	st.PopClassScope()
	if got := st.GetScope(); got != "Global" {
		t.Errorf("expected scope 'Global', got %q", got)
	}
}

package hack_test

import (
	"fmt"
	"testing"

	"nand2tetris.dev/jackvm/pkg/hack"
)

func TestTranslateAInst(t *testing.T) {
	table := hack.SymbolTable{"LOOP": 4, "END": 67, "Main.main": 9393, "OUTPUT_D": 754}
	codegen := hack.NewCodeGenerator(hack.Program{}, table)

	test := func(inst hack.AInstruction, address uint16, fail bool) {
		t.Helper()
		res, err := codegen.TranslateAInst(inst)
		if err != nil && !fail {
			t.Errorf("unexpected error for %+v: %s", inst, err)
		}
		if err == nil && fail {
			t.Errorf("expected an error for %+v, got %q", inst, res)
		}
		if !fail && res != fmt.Sprintf("%016b", address) {
			t.Errorf("got %q, want address %d", res, address)
		}
	}

	t.Run("raw addresses", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.Raw, LocName: "0"}, 0, false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "42"}, 42, false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "256"}, 256, false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "32767"}, 32767, false)
		// Only 15 bits are available to address the Hack memory.
		test(hack.AInstruction{LocType: hack.Raw, LocName: "32768"}, 0, true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "70000"}, 0, true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "nonsense"}, 0, true)
	})

	t.Run("built-in symbols", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SP"}, 0, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "LCL"}, 1, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "ARG"}, 2, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THIS"}, 3, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THAT"}, 4, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R0"}, 0, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R13"}, 13, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R15"}, 15, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SCREEN"}, 16384, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "KBD"}, 24576, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "NOPE"}, 0, true)
	})

	t.Run("labels resolve through the symbol table", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.Label, LocName: "LOOP"}, 4, false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "END"}, 67, false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "Main.main"}, 9393, false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "OUTPUT_D"}, 754, false)
	})

	t.Run("undeclared labels allocate variable slots from RAM 16", func(t *testing.T) {
		fresh := hack.NewCodeGenerator(hack.Program{}, hack.SymbolTable{})
		first, err := fresh.TranslateAInst(hack.AInstruction{LocType: hack.Label, LocName: "i"})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if first != fmt.Sprintf("%016b", 16) {
			t.Errorf("first variable should land at 16, got %q", first)
		}

		second, _ := fresh.TranslateAInst(hack.AInstruction{LocType: hack.Label, LocName: "sum"})
		if second != fmt.Sprintf("%016b", 17) {
			t.Errorf("second variable should land at 17, got %q", second)
		}

		again, _ := fresh.TranslateAInst(hack.AInstruction{LocType: hack.Label, LocName: "i"})
		if again != first {
			t.Errorf("re-referencing 'i' should reuse its slot, got %q and %q", first, again)
		}
	})
}

func TestTranslateCInst(t *testing.T) {
	codegen := hack.NewCodeGenerator(hack.Program{}, nil)

	test := func(inst hack.CInstruction, expected string, fail bool) {
		t.Helper()
		res, err := codegen.TranslateCInst(inst)
		if err != nil && !fail {
			t.Errorf("unexpected error for %+v: %s", inst, err)
		}
		if err == nil && fail {
			t.Errorf("expected an error for %+v, got %q", inst, res)
		}
		if !fail && res != expected {
			t.Errorf("%+v: got %q, want %q", inst, res, expected)
		}
	}

	t.Run("comp with jump", func(t *testing.T) {
		test(hack.CInstruction{Comp: "0", Jump: "JGT"}, "1110101010000001", false)
		test(hack.CInstruction{Comp: "1", Jump: "JEQ"}, "1110111111000010", false)
		test(hack.CInstruction{Comp: "-1", Jump: "JEQ"}, "1110111010000010", false)
		test(hack.CInstruction{Comp: "D", Jump: "JGE"}, "1110001100000011", false)
		test(hack.CInstruction{Comp: "!A", Jump: "JLT"}, "1110110001000100", false)
		test(hack.CInstruction{Comp: "!M", Jump: "JNE"}, "1111110001000101", false)
		test(hack.CInstruction{Comp: "-D", Jump: "JNE"}, "1110001111000101", false)
		test(hack.CInstruction{Comp: "-M", Jump: "JLE"}, "1111110011000110", false)
		test(hack.CInstruction{Comp: "D+1", Jump: "JMP"}, "1110011111000111", false)
		test(hack.CInstruction{Comp: "A+1", Jump: "JMP"}, "1110110111000111", false)
	})

	t.Run("comp with dest", func(t *testing.T) {
		test(hack.CInstruction{Comp: "M", Dest: "D"}, "1111110000010000", false)
		test(hack.CInstruction{Comp: "D-A", Dest: "M"}, "1110010011001000", false)
		test(hack.CInstruction{Comp: "D-M", Dest: "M"}, "1111010011001000", false)
		test(hack.CInstruction{Comp: "A-D", Dest: "D"}, "1110000111010000", false)
		test(hack.CInstruction{Comp: "M-D", Dest: "D"}, "1111000111010000", false)
		test(hack.CInstruction{Comp: "D&A", Dest: "A"}, "1110000000100000", false)
		test(hack.CInstruction{Comp: "D&M", Dest: "A"}, "1111000000100000", false)
		test(hack.CInstruction{Comp: "D|A", Dest: "MD"}, "1110010101011000", false)
		test(hack.CInstruction{Comp: "D|M", Dest: "MD"}, "1111010101011000", false)
		test(hack.CInstruction{Comp: "M", Dest: "AM"}, "1111110000101000", false)
		test(hack.CInstruction{Comp: "0", Dest: "AD"}, "1110101010110000", false)
		test(hack.CInstruction{Comp: "-1", Dest: "AMD"}, "1110111010111000", false)
		test(hack.CInstruction{Comp: "M+1", Dest: "M"}, "1111110111001000", false)
		test(hack.CInstruction{Comp: "M-1", Dest: "AM"}, "1111110010101000", false)
	})

	t.Run("malformed mnemonics", func(t *testing.T) {
		test(hack.CInstruction{Dest: "D"}, "", true)
		test(hack.CInstruction{Comp: "D*A", Dest: "D"}, "", true)
		test(hack.CInstruction{Comp: "D", Dest: "X"}, "", true)
		test(hack.CInstruction{Comp: "D", Jump: "JJJ"}, "", true)
	})
}

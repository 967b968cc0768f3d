package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"nand2tetris.dev/jackvm/pkg/asm"
	"nand2tetris.dev/jackvm/pkg/hack"
	"nand2tetris.dev/jackvm/pkg/utils"
)

var Description = strings.ReplaceAll(`
The Hack Assembler takes assembly language code written in the Hack assembly language
and translates it into machine code that can be executed by the Hack computer. The process
involves parsing the assembly code, resolving symbols, and generating machine code.
`, "\n", " ")

var HackAssembler = cli.New(Description).
	WithArg(cli.NewArg("input", "The assembly (.asm) file to be assembled").
		AsOptional().WithType(cli.TypeString)).
	WithArg(cli.NewArg("output", "The binary output (.hack), derived from the input when omitted").
		AsOptional().WithType(cli.TypeString)).
	WithAction(Handler)

// Handler assembles the given file and returns the process exit code: 0 on
// success, 1 on an assembly or I/O failure, 2 on a wrong argument count.
func Handler(args []string, options map[string]string) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(os.Stderr, "ERROR: expected an input path and an optional output path, use --help\n")
		return 2
	}

	input := args[0]
	output := strings.TrimSuffix(input, filepath.Ext(input)) + ".hack"
	if len(args) == 2 {
		output = args[1]
	}

	content, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
		return 1
	}

	parser := asm.NewParser(bytes.NewReader(content))
	asmProgram, err := parser.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", input, err)
		return 1
	}

	// First pass: classify instructions and collect label addresses.
	lowerer := asm.NewLowerer(asmProgram)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", input, err)
		return 1
	}

	// Second pass: resolve symbols and encode each instruction to 16 bits.
	codegen := hack.NewCodeGenerator(hackProgram, table)
	words, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", input, err)
		return 1
	}

	binary := strings.Join(words, "\n") + "\n"
	if err := utils.WriteFileAtomic(output, []byte(binary)); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

func main() { os.Exit(HackAssembler.Run(os.Args, os.Stdout)) }

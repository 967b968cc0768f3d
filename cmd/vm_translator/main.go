package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"

	"nand2tetris.dev/jackvm/pkg/asm"
	"nand2tetris.dev/jackvm/pkg/utils"
	"nand2tetris.dev/jackvm/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("path", "A .vm file, or a directory whose .vm files translate to one program").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "Overrides the derived output (.asm) path").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Forces the SP=256 + Sys.init prelude even for a single file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// Handler translates the given path and returns the process exit code: 0 on
// success, 1 on a translation or I/O failure, 2 on a wrong argument count.
//
// A directory translates as one program: every .vm file inside becomes a
// module of a single '<dir>/<dir>.asm' output, prefixed with the bootstrap
// prelude. A single file translates alone to a sibling .asm, without
// bootstrap unless explicitly requested.
func Handler(args []string, options map[string]string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "ERROR: expected exactly one path argument, use --help\n")
		return 2
	}

	inputs, output, bootstrap, err := resolveInvocation(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	if override := options["output"]; override != "" {
		output = override
	}
	if _, forced := options["bootstrap"]; forced {
		bootstrap = true
	}

	// Each file parses to its own module; the module name (the bare filename)
	// is what qualifies its static variables once lowered.
	program := vm.Program{}
	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
			return 1
		}

		parser := vm.NewParser(bytes.NewReader(content))
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		if program[name], err = parser.Parse(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", input, err)
			return 1
		}
	}

	emitter := vm.NewAsmEmitter(program)
	asmProgram, err := emitter.Emit(bootstrap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	codegen := asm.NewCodeGenerator(asmProgram)
	lines, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := utils.WriteFileAtomic(output, []byte(content)); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

// resolveInvocation maps the user-provided path to the input list, the derived
// output path and whether the bootstrap prelude applies by default.
func resolveInvocation(path string) (inputs []string, output string, bootstrap bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", false, fmt.Errorf("unable to access '%s': %s", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".vm" {
			return nil, "", false, fmt.Errorf("'%s' is not a .vm file", path)
		}
		return []string{path}, strings.TrimSuffix(path, ".vm") + ".asm", false, nil
	}

	inputs, err = filepath.Glob(filepath.Join(path, "*.vm"))
	if err != nil {
		return nil, "", false, err
	}
	if len(inputs) == 0 {
		return nil, "", false, fmt.Errorf("no .vm files found in '%s'", path)
	}
	sort.Strings(inputs)

	// Directory mode multiplexes every module into '<dir>/<dir>.asm', and a
	// multi-module program needs the runtime entered through Sys.init.
	name := filepath.Base(filepath.Clean(path))
	return inputs, filepath.Join(path, name+".asm"), true, nil
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }

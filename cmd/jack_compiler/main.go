package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"

	"nand2tetris.dev/jackvm/pkg/jack"
	"nand2tetris.dev/jackvm/pkg/token"
	"nand2tetris.dev/jackvm/pkg/utils"
	"nand2tetris.dev/jackvm/pkg/vm"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	WithArg(cli.NewArg("path", "A .jack source file, or a directory containing them").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("stdlib", "Resolves calls into the OS classes through the built-in ABI").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("typecheck", "Resolves every identifier before emitting any output").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("xml", "Additionally dumps each file's token stream to a sibling .xml file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// Handler compiles the given path and returns the process exit code: 0 on
// success, 1 on a compilation or I/O failure, 2 on a wrong argument count.
// In directory mode a broken file is reported and the remaining ones are
// still attempted.
func Handler(args []string, options map[string]string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "ERROR: expected exactly one path argument, use --help\n")
		return 2
	}

	inputs, err := discoverInputs(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	_, dumpTokens := options["xml"]
	failed := false

	// Every file parses to its own class; the classes are collected into one
	// Program so that cross-class calls resolve during the lowering phase.
	program, classOf := jack.Program{}, map[string]string{}
	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to open input file: %s\n", err)
			failed = true
			continue
		}

		if dumpTokens {
			if err := dumpTokenStream(input, string(content)); err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
				failed = true
			}
		}

		parser := jack.NewParser(input, bytes.NewReader(content))
		class, err := parser.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			failed = true
			continue
		}

		program[class.Name] = class
		classOf[input] = class.Name
	}

	// The stdlib ABI joins the program as a set of body-less classes: calls
	// into the OS resolve against them, but having no statements they never
	// reach the codegen phase (only parsed files get an output below).
	if _, enabled := options["stdlib"]; enabled {
		for name, abi := range jack.StandardLibraryABI {
			def := jack.Class{Name: name}
			for fName, subroutine := range abi {
				def.Subroutines.Set(fName, jack.Subroutine{Name: fName, Type: subroutine.Type})
			}
			program[name] = def
		}
	}

	if _, enabled := options["typecheck"]; enabled {
		checker := jack.NewTypeChecker(program)
		if err := checker.Check(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return 1
		}
	}

	lowerer := jack.NewLowerer(program)
	for _, input := range inputs {
		name, parsed := classOf[input]
		if !parsed {
			continue // already reported above
		}

		module, err := lowerer.LowerClass(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			failed = true
			continue
		}

		codegen := vm.NewCodeGenerator(vm.Program{name: module})
		rendered, err := codegen.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			failed = true
			continue
		}

		output := strings.TrimSuffix(input, filepath.Ext(input)) + ".vm"
		content := strings.Join(rendered[name], "\n") + "\n"
		if err := utils.WriteFileAtomic(output, []byte(content)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: unable to write output file: %s\n", err)
			failed = true
		}
	}

	if failed {
		return 1
	}
	return 0
}

// discoverInputs resolves the user-provided path to the list of .jack files to
// compile: the file itself, or every .jack directly inside the directory.
func discoverInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to access '%s': %s", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".jack" {
			return nil, fmt.Errorf("'%s' is not a .jack source file", path)
		}
		return []string{path}, nil
	}

	inputs, err := filepath.Glob(filepath.Join(path, "*.jack"))
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no .jack source files found in '%s'", path)
	}

	sort.Strings(inputs)
	return inputs, nil
}

// dumpTokenStream writes the file's raw token stream to a sibling .xml file,
// one tagged line per token, matching the syntax analyzer's diagnostic format.
func dumpTokenStream(input, source string) error {
	lexer := token.NewLexer(input, source)

	var dump strings.Builder
	dump.WriteString("<tokens>\n")
	for !lexer.AtEOF() {
		tok, err := lexer.Next()
		if err != nil {
			return err
		}
		tag := tok.Category.XMLTag()
		fmt.Fprintf(&dump, "<%s> %s </%s>\n", tag, token.EscapeXML(tok.Lexeme), tag)
	}
	dump.WriteString("</tokens>\n")

	output := strings.TrimSuffix(input, filepath.Ext(input)) + ".xml"
	return utils.WriteFileAtomic(output, []byte(dump.String()))
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }

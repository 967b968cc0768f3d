package vm

import (
	"fmt"
	"io"
	"strconv"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Grammar

// This section declares the parser combinators for the VM intermediate language.
//
// The format is one command per line with space-separated fields, so each
// combinator matches one command shape ('push local 3', 'if-goto LOOP', ...).
// "//" comments may sit on their own line or trail a command.

// Root object shared by every combinator below; it also owns the generated AST.
var ast = pc.NewAST("virtual_machine", 0)

var (
	// A whole translation unit: any mix of comments and operations, until EOF.
	pModule = ast.ManyUntil("module", nil, ast.OrdChoice("item", nil, pComment, pOperation), pc.End())

	// A line comment, consumed up to the end of the line it starts on.
	pComment = ast.And("comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT"))
	// Any of the seven command shapes the language defines.
	pOperation = ast.OrdChoice("operation", nil,
		pMemoryOp, pArithmeticOp, pLabelDecl, pGotoOp,
		pFuncDecl, pFuncCallOp, pReturnOp,
	)

	// '{push|pop} {segment} {offset}'
	pMemoryOp = ast.And("memory_op", nil, pMemOpType, pSegment, pc.Int())
	// A bare operator name ('add', 'lt', 'not', ...)
	pArithmeticOp = ast.And("arithmetic_op", nil, pArithOpType)

	// 'label {symbol}'
	pLabelDecl = ast.And("label_decl", nil, pc.Atom("label", "LABEL"), pIdent)
	// '{goto|if-goto} {symbol}'
	pGotoOp = ast.And("goto_op", nil, pJumpType, pIdent)

	// 'function {name} {n_locals}'
	pFuncDecl = ast.And("func_decl", nil, pc.Atom("function", "FUNC"), pIdent, pc.Int())
	// 'call {name} {n_args}'
	pFuncCallOp = ast.And("func_call", nil, pc.Atom("call", "CALL"), pIdent, pc.Int())
	// 'return'
	pReturnOp = ast.And("return_op", nil, pc.Atom("return", "RETURN"))
)

var (
	// Function and label identifiers may mix letters, digits and the '_', '.',
	// '$', ':' symbol characters, but may not start with a digit.
	pIdent = pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "IDENT")

	// The two memory operation directions.
	pMemOpType = ast.OrdChoice("mem_op_type", nil, pc.Atom("push", "PUSH"), pc.Atom("pop", "POP"))
	// The eight named memory segments.
	pSegment = ast.OrdChoice("mem_segment", nil,
		pc.Atom("argument", "ARGUMENT"), pc.Atom("local", "LOCAL"),
		pc.Atom("static", "STATIC"), pc.Atom("constant", "CONSTANT"),
		pc.Atom("this", "THIS"), pc.Atom("that", "THAT"),
		pc.Atom("temp", "TEMP"), pc.Atom("pointer", "POINTER"),
	)

	// The nine stack operators.
	pArithOpType = ast.OrdChoice("operations", nil,
		pc.Atom("eq", "EQ"), pc.Atom("gt", "GT"), pc.Atom("lt", "LT"),
		pc.Atom("add", "ADD"), pc.Atom("sub", "SUB"), pc.Atom("neg", "NEG"),
		pc.Atom("not", "NOT"), pc.Atom("and", "AND"), pc.Atom("or", "OR"),
	)

	// 'if-goto' is listed first; 'goto' is not a prefix of it, so the order of
	// the two atoms does not change what OrdChoice matches.
	pJumpType = ast.OrdChoice("jump_type", nil, pc.Atom("if-goto", "IF-GOTO"), pc.Atom("goto", "GOTO"))
)

// ----------------------------------------------------------------------------
// Vm Parser

// Parser reads the text of one .vm translation unit and produces the typed
// 'vm.Module' the rest of the pipeline works on. Parsing happens in two steps:
// the combinators above turn the raw text into a generic traversable tree,
// then FromAST walks that tree and extracts one Operation per command node,
// dropping comments.
type Parser struct{ reader io.Reader }

// NewParser wraps the given reader; nothing is consumed until Parse is called.
func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parse drives both steps (text -> parse tree -> vm.Module) to completion.
func (p *Parser) Parse() (Module, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read from 'io.Reader': %w", err)
	}

	root, err := p.FromSource(content)
	if err != nil {
		return nil, err
	}

	return p.FromAST(root)
}

// FromSource scans the raw text into a traversable parse tree. The source is
// only accepted when the combinators consume it whole: a command the grammar
// cannot make sense of leaves the scanner short of EOF, which is an error here
// rather than a silently truncated module.
func (p *Parser) FromSource(source []byte) (pc.Queryable, error) {
	root, scanner := ast.Parsewith(pModule, pc.NewScanner(source))
	if root == nil {
		return nil, fmt.Errorf("malformed VM source, no command could be parsed")
	}

	if _, remaining := scanner.SkipWS(); !remaining.Endof() {
		cursor := remaining.GetCursor()
		return nil, fmt.Errorf("malformed VM command at offset %d", cursor)
	}

	return root, nil
}

// FromAST converts the generic parse tree into the typed Module, visiting the
// command nodes in source order.
func (p *Parser) FromAST(root pc.Queryable) (Module, error) {
	if root.GetName() != "module" {
		return nil, fmt.Errorf("expected node 'module', found '%s'", root.GetName())
	}

	module := Module{}
	for _, child := range root.GetChildren() {
		if child.GetName() == "comment" {
			continue
		}

		op, err := p.operationFromNode(child)
		if err != nil {
			return nil, err
		}
		module = append(module, op)
	}

	return module, nil
}

func (p *Parser) operationFromNode(node pc.Queryable) (Operation, error) {
	switch node.GetName() {
	case "memory_op":
		return p.memoryOpFromNode(node)
	case "arithmetic_op":
		return p.arithmeticOpFromNode(node)
	case "label_decl":
		return p.labelDeclFromNode(node)
	case "goto_op":
		return p.gotoOpFromNode(node)
	case "func_decl":
		return p.funcDeclFromNode(node)
	case "func_call":
		return p.funcCallFromNode(node)
	case "return_op":
		return ReturnOp{}, nil
	default:
		return nil, fmt.Errorf("unrecognized node '%s'", node.GetName())
	}
}

// leaves asserts the child count of a command node; the grammar guarantees the
// shapes, so a mismatch means the combinators and this walker disagree.
func leaves(node pc.Queryable, n int) ([]pc.Queryable, error) {
	kids := node.GetChildren()
	if len(kids) != n {
		return nil, fmt.Errorf("expected node '%s' with %d leaves, got %d", node.GetName(), n, len(kids))
	}
	return kids, nil
}

func (Parser) memoryOpFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 3)
	if err != nil {
		return nil, err
	}

	offset, err := strconv.ParseUint(kids[2].GetValue(), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("memory operation offset %q is not a valid 16-bit value", kids[2].GetValue())
	}

	return MemoryOp{
		Operation: OperationType(kids[0].GetValue()),
		Segment:   SegmentType(kids[1].GetValue()),
		Offset:    uint16(offset),
	}, nil
}

func (Parser) arithmeticOpFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 1)
	if err != nil {
		return nil, err
	}

	return ArithmeticOp{Operation: ArithOpType(kids[0].GetValue())}, nil
}

func (Parser) labelDeclFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 2)
	if err != nil {
		return nil, err
	}

	return LabelDecl{Name: kids[1].GetValue()}, nil
}

func (Parser) gotoOpFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 2)
	if err != nil {
		return nil, err
	}

	return GotoOp{Jump: JumpType(kids[0].GetValue()), Label: kids[1].GetValue()}, nil
}

func (Parser) funcDeclFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 3)
	if err != nil {
		return nil, err
	}

	nLocal, err := strconv.ParseUint(kids[2].GetValue(), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("local count %q in function declaration is not a valid value", kids[2].GetValue())
	}

	return FuncDecl{Name: kids[1].GetValue(), NLocal: uint8(nLocal)}, nil
}

func (Parser) funcCallFromNode(node pc.Queryable) (Operation, error) {
	kids, err := leaves(node, 3)
	if err != nil {
		return nil, err
	}

	nArgs, err := strconv.ParseUint(kids[2].GetValue(), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("argument count %q in function call is not a valid value", kids[2].GetValue())
	}

	return FuncCallOp{Name: kids[1].GetValue(), NArgs: uint8(nArgs)}, nil
}

package asm

import (
	"fmt"
	"io"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Grammar

// This section declares the parser combinators for the Hack assembly language.
//
// The grammar is line-oriented in spirit but whitespace-insensitive in practice:
// each combinator matches one statement kind (A instruction, C instruction, label
// declaration) or a piece of one, and "//" comments may appear on their own line
// or trail an instruction.

// Root object shared by every combinator below; it also owns the generated AST.
var ast = pc.NewAST("assembly", 0)

var (
	// An assembly source file: any mix of comments and statements, until EOF.
	pProgram = ast.ManyUntil("program", nil, ast.OrdChoice("item", nil, pComment, pStatement), pc.End())

	// A single statement: the A instruction form is tried first since its leading
	// '@' makes it unambiguous, then the C instruction, then a label declaration.
	pStatement = ast.OrdChoice("statement", nil, pAInst, pCInst, pLabelDecl)
	// A line comment, consumed up to the end of the line it starts on.
	pComment = ast.And("comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT"))

	// '@<symbol>' or '@<address>'.
	pAInst = ast.And("a_inst", nil, pc.Atom("@", "@"), pLocation)
	// '(<symbol>)', declaring a jump target.
	pLabelDecl = ast.And("label_decl", nil, pc.Atom("(", "("), pLocation, pc.Atom(")", ")"))
	// '[dest=]comp[;jump]' where at least one of the optional parts is present.
	pCInst = ast.And("c_inst", nil,
		ast.Maybe("maybe_assign", nil, ast.And("assign", nil, pDest, pc.Atom("=", "="))),
		pComp,
		ast.Maybe("maybe_branch", nil, ast.And("branch", nil, pc.Atom(";", ";"), pJump)),
	)
)

var (
	// A location is either a bare address or a symbol. Symbols may mix letters,
	// digits and '_', '.', '$', ':' but may not start with a digit.
	pLocation = ast.OrdChoice("location", nil, pc.Int(), pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "SYMBOL"))

	// Destination mnemonics. Multi-register forms are listed first: OrdChoice takes
	// the first match, and "AM" must not be split into "A" followed by a stray "M".
	pDest = ast.OrdChoice("dest", nil,
		pc.Atom("AMD", "AMD"), pc.Atom("AM", "AM"), pc.Atom("AD", "AD"), pc.Atom("MD", "MD"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Computation mnemonics, longest-prefix first for the same OrdChoice reason:
	// were "D" listed before "D+A", the latter could never match.
	pComp = ast.OrdChoice("comp", nil,
		pc.Atom("D&A", "D&A"), pc.Atom("D&M", "D&M"),
		pc.Atom("D|A", "D|A"), pc.Atom("D|M", "D|M"),
		pc.Atom("D+A", "D+A"), pc.Atom("D+M", "D+M"),
		pc.Atom("D-A", "D-A"), pc.Atom("D-M", "D-M"),
		pc.Atom("A-D", "A-D"), pc.Atom("M-D", "M-D"),
		pc.Atom("D+1", "D+1"), pc.Atom("A+1", "A+1"), pc.Atom("M+1", "M+1"),
		pc.Atom("D-1", "D-1"), pc.Atom("A-1", "A-1"), pc.Atom("M-1", "M-1"),
		pc.Atom("!D", "!D"), pc.Atom("!A", "!A"), pc.Atom("!M", "!M"),
		pc.Atom("-D", "-D"), pc.Atom("-A", "-A"), pc.Atom("-M", "-M"),
		pc.Atom("0", "0"), pc.Atom("1", "1"), pc.Atom("-1", "-1"),
		pc.Atom("D", "D"), pc.Atom("A", "A"), pc.Atom("M", "M"),
	)

	// Jump mnemonics. All are three characters, so ordering doesn't matter here.
	pJump = ast.OrdChoice("jump", nil,
		pc.Atom("JNE", "JNE"), pc.Atom("JEQ", "JEQ"),
		pc.Atom("JGT", "JGT"), pc.Atom("JGE", "JGE"),
		pc.Atom("JLT", "JLT"), pc.Atom("JLE", "JLE"),
		pc.Atom("JMP", "JMP"),
	)
)

// ----------------------------------------------------------------------------
// Parser

// Parser reads Hack assembly text and produces the typed 'asm.Program' the rest
// of the pipeline works on. Parsing happens in two steps: the combinators above
// turn the raw text into a generic traversable tree, then FromAST walks that
// tree and extracts one Statement per instruction node, dropping comments.
type Parser struct{ reader io.Reader }

// NewParser wraps the given reader; nothing is consumed until Parse is called.
func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parse drives both steps (text -> parse tree -> asm.Program) to completion.
func (p *Parser) Parse() (Program, error) {
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
// only accepted when the combinators consume it whole: anything the grammar
// cannot make sense of leaves the scanner short of EOF, which is an error here
// rather than a silently truncated program.
func (p *Parser) FromSource(source []byte) (pc.Queryable, error) {
	root, scanner := ast.Parsewith(pProgram, pc.NewScanner(source))
	if root == nil {
		return nil, fmt.Errorf("malformed assembly source, no statement could be parsed")
	}

	if _, remaining := scanner.SkipWS(); !remaining.Endof() {
		cursor := remaining.GetCursor()
		return nil, fmt.Errorf("malformed assembly statement at offset %d", cursor)
	}

	return root, nil
}

// FromAST converts the generic parse tree into the typed Program, visiting the
// statement nodes in source order.
func (p *Parser) FromAST(root pc.Queryable) (Program, error) {
	if root.GetName() != "program" {
		return nil, fmt.Errorf("expected node 'program', found '%s'", root.GetName())
	}

	program := Program{}
	for _, child := range root.GetChildren() {
		if child.GetName() == "comment" {
			continue
		}

		stmt, err := p.statementFromNode(child)
		if err != nil {
			return nil, err
		}
		program = append(program, stmt)
	}

	return program, nil
}

func (p *Parser) statementFromNode(node pc.Queryable) (Statement, error) {
	switch node.GetName() {
	case "a_inst":
		return p.aInstFromNode(node)
	case "c_inst":
		return p.cInstFromNode(node)
	case "label_decl":
		return p.labelDeclFromNode(node)
	default:
		return nil, fmt.Errorf("unrecognized node '%s'", node.GetName())
	}
}

// aInstFromNode extracts the location payload out of an 'a_inst' subtree.
func (Parser) aInstFromNode(node pc.Queryable) (Statement, error) {
	kids := node.GetChildren()
	if len(kids) != 2 {
		return nil, fmt.Errorf("expected node 'a_inst' with 2 leaves, got %d", len(kids))
	}

	location := kids[1]
	if location.GetName() != "INT" && location.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("expected token 'SYMBOL' or 'INT', got '%s'", location.GetName())
	}

	return AInstruction{Location: location.GetValue()}, nil
}

// cInstFromNode extracts dest/comp/jump out of a 'c_inst' subtree. The two
// Maybe wrappers surface as 'missing' nodes when absent, so the presence of the
// inner 'assign'/'branch' node is what decides whether each part was written.
func (Parser) cInstFromNode(node pc.Queryable) (Statement, error) {
	kids := node.GetChildren()
	if len(kids) != 3 {
		return nil, fmt.Errorf("expected node 'c_inst' with 3 leaves, got %d", len(kids))
	}

	inst := CInstruction{Comp: kids[1].GetValue()}
	if assign := kids[0]; assign.GetName() == "assign" && len(assign.GetChildren()) == 2 {
		inst.Dest = assign.GetChildren()[0].GetValue()
	}
	if branch := kids[2]; branch.GetName() == "branch" && len(branch.GetChildren()) == 2 {
		inst.Jump = branch.GetChildren()[1].GetValue()
	}

	if inst.Dest == "" && inst.Jump == "" {
		return nil, fmt.Errorf("C instruction '%s' has neither a destination nor a jump", inst.Comp)
	}
	return inst, nil
}

// labelDeclFromNode extracts the symbol out of a 'label_decl' subtree.
func (Parser) labelDeclFromNode(node pc.Queryable) (Statement, error) {
	kids := node.GetChildren()
	if len(kids) != 3 {
		return nil, fmt.Errorf("expected node 'label_decl' with 3 leaves, got %d", len(kids))
	}

	symbol := kids[1]
	if symbol.GetName() != "SYMBOL" {
		return nil, fmt.Errorf("label name must be a symbol, got token '%s'", symbol.GetName())
	}

	return LabelDecl{Name: symbol.GetValue()}, nil
}

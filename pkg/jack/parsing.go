package jack

import (
	"fmt"
	"io"

	"nand2tetris.dev/jackvm/pkg/token"
	"nand2tetris.dev/jackvm/pkg/utils"
)

// ----------------------------------------------------------------------------
// Jack Parser

// Parser turns a single class' Jack source into its Class AST. It's a
// straightforward recursive-descent parser driven one token at a time off a
// token.Lexer: each grammar production gets its own method, and each method
// leaves the cursor sitting on the first token it didn't consume, the same
// shape as the classic nand2tetris syntax analyzer ("compileXxx" is both the
// method name and what it does).
//
// Expressions deserve a note: Jack has no operator precedence, so parseExpression
// folds every binary operator strictly left to right as it's encountered,
// the same as the language's own grammar prescribes.
type Parser struct {
	file   string
	reader io.Reader

	lex  *token.Lexer
	cur  token.Token
	eof  bool
	line int // line of the last token consumed, used for EOF diagnostics
}

// NewParser builds a Parser for the named source file, read from r. The name
// is only used to qualify diagnostics ("file:line: ..."), it does not need to
// be a real path.
func NewParser(file string, r io.Reader) Parser {
	return Parser{file: file, reader: r}
}

// Parse reads the whole class out of the underlying reader and returns its AST.
func (p *Parser) Parse() (Class, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return Class{}, utils.NewIOError(p.file, "cannot read input: %s", err)
	}

	p.lex = token.NewLexer(p.file, string(content))
	if err := p.advance(); err != nil {
		return Class{}, err
	}

	class, err := p.parseClass()
	if err != nil {
		return Class{}, err
	}

	if !p.eof {
		return Class{}, p.syntaxErrorf("unexpected trailing input after class body, found %s", p.describe())
	}

	return class, nil
}

// ----------------------------------------------------------------------------
// Cursor helpers

// advance consumes the current lookahead and scans the next one, tracking
// whether we've run out of tokens so callers don't have to special-case the
// lexer's EOF error on every single call site.
func (p *Parser) advance() error {
	if p.lex.AtEOF() {
		p.eof = true
		return nil
	}

	tok, err := p.lex.Next()
	if err != nil {
		if token.IsEOF(err) {
			p.eof = true
			return nil
		}
		return err
	}

	p.cur = tok
	p.line = tok.Line
	return nil
}

func (p *Parser) describe() string {
	if p.eof {
		return "end of input"
	}
	return fmt.Sprintf("%q", p.cur.Lexeme)
}

func (p *Parser) errorLine() int {
	if p.eof {
		return p.line
	}
	return p.cur.Line
}

func (p *Parser) syntaxErrorf(format string, args ...any) error {
	return utils.NewSyntaxError(p.file, p.errorLine(), format, args...)
}

func (p *Parser) nameErrorf(format string, args ...any) error {
	return utils.NewNameError(p.file, p.errorLine(), format, args...)
}

func (p *Parser) atKeyword(word string) bool {
	return !p.eof && p.cur.Category == token.Keyword && p.cur.Lexeme == word
}

func (p *Parser) atSymbol(sym string) bool {
	return !p.eof && p.cur.Category == token.Symbol && p.cur.Lexeme == sym
}

func (p *Parser) atIdentifier() bool { return !p.eof && p.cur.Category == token.Identifier }

// expectKeyword consumes the current token if it's the given keyword, else
// reports a syntax error without moving the cursor.
func (p *Parser) expectKeyword(word string) error {
	if !p.atKeyword(word) {
		return p.syntaxErrorf("expected keyword %q, found %s", word, p.describe())
	}
	return p.advance()
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.atSymbol(sym) {
		return p.syntaxErrorf("expected %q, found %s", sym, p.describe())
	}
	return p.advance()
}

func (p *Parser) expectIdentifier() (string, error) {
	if !p.atIdentifier() {
		return "", p.syntaxErrorf("expected an identifier, found %s", p.describe())
	}
	name := p.cur.Lexeme
	return name, p.advance()
}

// ----------------------------------------------------------------------------
// Class level

func (p *Parser) parseClass() (Class, error) {
	if err := p.expectKeyword("class"); err != nil {
		return Class{}, err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return Class{}, err
	}

	class := Class{Name: name}
	if err := p.expectSymbol("{"); err != nil {
		return Class{}, err
	}

	for p.atKeyword("static") || p.atKeyword("field") {
		if err := p.parseClassVarDec(&class); err != nil {
			return Class{}, err
		}
	}

	for p.atKeyword("constructor") || p.atKeyword("function") || p.atKeyword("method") {
		if err := p.parseSubroutineDec(&class); err != nil {
			return Class{}, err
		}
	}

	if err := p.expectSymbol("}"); err != nil {
		return Class{}, err
	}

	return class, nil
}

func (p *Parser) parseClassVarDec(class *Class) error {
	varType := Field
	if p.atKeyword("static") {
		varType = Static
	}
	if err := p.advance(); err != nil { // consumes 'static' or 'field'
		return err
	}

	dataType, err := p.parseType()
	if err != nil {
		return err
	}

	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return err
		}

		if _, exists := class.Fields.Get(name); exists {
			return p.nameErrorf("field %q is already declared in class %q", name, class.Name)
		}
		class.Fields.Set(name, Variable{Name: name, VarType: varType, DataType: dataType})

		if !p.atSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}

	return p.expectSymbol(";")
}

var primitiveTypes = map[string]PrimitiveType{
	"int": Int, "char": Char, "boolean": Bool,
}

// parseType parses a variable/parameter/field type: a primitive keyword or a
// class name used as an object type.
func (p *Parser) parseType() (DataType, error) {
	if p.eof {
		return DataType{}, p.syntaxErrorf("expected a type, found end of input")
	}

	if p.cur.Category == token.Keyword {
		prim, ok := primitiveTypes[p.cur.Lexeme]
		if !ok {
			return DataType{}, p.syntaxErrorf("expected a type, found keyword %q", p.cur.Lexeme)
		}
		if err := p.advance(); err != nil {
			return DataType{}, err
		}
		return DataType{Main: prim}, nil
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return DataType{}, err
	}
	return DataType{Main: Object, Subtype: name}, nil
}

// parseReturnType additionally allows the 'void' keyword, which parseType
// rejects since 'void' is never a valid variable/field/parameter type.
func (p *Parser) parseReturnType() (DataType, error) {
	if p.atKeyword("void") {
		if err := p.advance(); err != nil {
			return DataType{}, err
		}
		return DataType{Main: Void}, nil
	}
	return p.parseType()
}

// ----------------------------------------------------------------------------
// Subroutine level

func (p *Parser) parseSubroutineDec(class *Class) error {
	var kind SubroutineType
	switch {
	case p.atKeyword("constructor"):
		kind = Constructor
	case p.atKeyword("function"):
		kind = Function
	case p.atKeyword("method"):
		kind = Method
	}
	if err := p.advance(); err != nil {
		return err
	}

	returnType, err := p.parseReturnType()
	if err != nil {
		return err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return err
	}
	if _, exists := class.Subroutines.Get(name); exists {
		return p.nameErrorf("subroutine %q is already declared in class %q", name, class.Name)
	}

	if err := p.expectSymbol("("); err != nil {
		return err
	}

	declared := map[string]bool{}
	args, err := p.parseParameterList(declared)
	if err != nil {
		return err
	}

	if err := p.expectSymbol(")"); err != nil {
		return err
	}
	if err := p.expectSymbol("{"); err != nil {
		return err
	}

	var locals []Statement
	for p.atKeyword("var") {
		stmt, err := p.parseVarDec(declared)
		if err != nil {
			return err
		}
		locals = append(locals, stmt)
	}

	body, err := p.parseStatements()
	if err != nil {
		return err
	}

	if err := p.expectSymbol("}"); err != nil {
		return err
	}

	class.Subroutines.Set(name, Subroutine{
		Name:       name,
		Type:       kind,
		Return:     returnType,
		Arguments:  args,
		Statements: append(locals, body...),
	})
	return nil
}

func (p *Parser) parseParameterList(declared map[string]bool) ([]Variable, error) {
	var args []Variable
	if p.atSymbol(")") {
		return args, nil
	}

	for {
		dataType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if declared[name] {
			return nil, p.nameErrorf("parameter %q is already declared in this subroutine", name)
		}
		declared[name] = true

		args = append(args, Variable{Name: name, VarType: Parameter, DataType: dataType})

		if !p.atSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	return args, nil
}

func (p *Parser) parseVarDec(declared map[string]bool) (Statement, error) {
	if err := p.expectKeyword("var"); err != nil {
		return nil, err
	}

	dataType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if declared[name] {
			return nil, p.nameErrorf("local variable %q is already declared in this subroutine", name)
		}
		declared[name] = true

		vars = append(vars, Variable{Name: name, VarType: Local, DataType: dataType})

		if !p.atSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	return VarStmt{Vars: vars}, nil
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseStatements() ([]Statement, error) {
	var stmts []Statement
	for p.atKeyword("let") || p.atKeyword("if") || p.atKeyword("while") ||
		p.atKeyword("do") || p.atKeyword("return") {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.atKeyword("let"):
		return p.parseLetStatement()
	case p.atKeyword("if"):
		return p.parseIfStatement()
	case p.atKeyword("while"):
		return p.parseWhileStatement()
	case p.atKeyword("do"):
		return p.parseDoStatement()
	case p.atKeyword("return"):
		return p.parseReturnStatement()
	default:
		return nil, p.syntaxErrorf("expected a statement, found %s", p.describe())
	}
}

func (p *Parser) parseLetStatement() (Statement, error) {
	if err := p.expectKeyword("let"); err != nil {
		return nil, err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	var lhs Expression = VarExpr{Var: name}
	if p.atSymbol("[") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		lhs = ArrayExpr{Var: name, Index: index}
	}

	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}

	rhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return LetStmt{Lhs: lhs, Rhs: rhs}, nil
}

func (p *Parser) parseIfStatement() (Statement, error) {
	if err := p.expectKeyword("if"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	var elseBlock []Statement
	if p.atKeyword("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectSymbol("{"); err != nil {
			return nil, err
		}
		elseBlock, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("}"); err != nil {
			return nil, err
		}
	}

	return IfStmt{Condition: cond, ThenBlock: thenBlock, ElseBlock: elseBlock}, nil
}

func (p *Parser) parseWhileStatement() (Statement, error) {
	if err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	block, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

func (p *Parser) parseDoStatement() (Statement, error) {
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}

	call, err := p.parseSubroutineCall()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return DoStmt{FuncCall: call}, nil
}

func (p *Parser) parseReturnStatement() (Statement, error) {
	if err := p.expectKeyword("return"); err != nil {
		return nil, err
	}

	if p.atSymbol(";") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ReturnStmt{Expr: nil}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return ReturnStmt{Expr: expr}, nil
}

// parseSubroutineCall parses both call forms: a bare 'name(args)' (resolved
// against the enclosing class at lowering time) and a qualified
// 'target.name(args)' (target is either a variable or another class' name).
func (p *Parser) parseSubroutineCall() (FuncCallExpr, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return FuncCallExpr{}, err
	}
	return p.parseSubroutineCallTail(name)
}

func (p *Parser) parseSubroutineCallTail(name string) (FuncCallExpr, error) {
	if p.atSymbol(".") {
		if err := p.advance(); err != nil {
			return FuncCallExpr{}, err
		}
		method, err := p.expectIdentifier()
		if err != nil {
			return FuncCallExpr{}, err
		}

		args, err := p.parseArguments()
		if err != nil {
			return FuncCallExpr{}, err
		}
		return FuncCallExpr{IsExtCall: true, Var: name, FuncName: method, Arguments: args}, nil
	}

	args, err := p.parseArguments()
	if err != nil {
		return FuncCallExpr{}, err
	}
	return FuncCallExpr{IsExtCall: false, FuncName: name, Arguments: args}, nil
}

func (p *Parser) parseArguments() ([]Expression, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	var args []Expression
	if !p.atSymbol(")") {
		var err error
		args, err = p.parseExpressionList()
		if err != nil {
			return nil, err
		}
	}

	return args, p.expectSymbol(")")
}

func (p *Parser) parseExpressionList() ([]Expression, error) {
	var exprs []Expression
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)

		if !p.atSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return exprs, nil
}

// ----------------------------------------------------------------------------
// Expressions

// binaryOps maps every infix symbol Jack allows to its ExprType. Jack has no
// operator precedence, so parseExpression folds left to right regardless of
// which operators show up.
var binaryOps = map[string]ExprType{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

func (p *Parser) parseExpression() (Expression, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for !p.eof && p.cur.Category == token.Symbol {
		op, ok := binaryOps[p.cur.Lexeme]
		if !ok {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}

		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		lhs = BinaryExpr{Type: op, Lhs: lhs, Rhs: rhs}
	}

	return lhs, nil
}

func (p *Parser) parseTerm() (Expression, error) {
	if p.eof {
		return nil, p.syntaxErrorf("expected an expression, found end of input")
	}

	switch {
	case p.cur.Category == token.IntegerLiteral:
		value := p.cur.Lexeme
		return LiteralExpr{Type: DataType{Main: Int}, Value: value}, p.advance()

	case p.cur.Category == token.StringLiteral:
		value := p.cur.Lexeme
		return LiteralExpr{Type: DataType{Main: String}, Value: value}, p.advance()

	case p.atKeyword("true"):
		return LiteralExpr{Type: DataType{Main: Bool}, Value: "true"}, p.advance()
	case p.atKeyword("false"):
		return LiteralExpr{Type: DataType{Main: Bool}, Value: "false"}, p.advance()
	case p.atKeyword("null"):
		return LiteralExpr{Type: DataType{Main: Null}, Value: "null"}, p.advance()
	case p.atKeyword("this"):
		return VarExpr{Var: "this"}, p.advance()

	case p.atSymbol("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return expr, p.expectSymbol(")")

	case p.atSymbol("-"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Type: Negation, Rhs: rhs}, nil

	case p.atSymbol("~"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Type: BoolNot, Rhs: rhs}, nil

	case p.cur.Category == token.Identifier:
		name := p.cur.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}

		switch {
		case p.atSymbol("["):
			if err := p.advance(); err != nil {
				return nil, err
			}
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return ArrayExpr{Var: name, Index: index}, p.expectSymbol("]")

		case p.atSymbol("(") || p.atSymbol("."):
			return p.parseSubroutineCallTail(name)

		default:
			return VarExpr{Var: name}, nil
		}

	default:
		return nil, p.syntaxErrorf("expected an expression, found %s", p.describe())
	}
}

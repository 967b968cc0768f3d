package jack

import (
	"sort"

	"nand2tetris.dev/jackvm/pkg/utils"
)

// ----------------------------------------------------------------------------
// General information

// This section contains the in-memory representation (AST) of the Jack language.
//
// The class is Jack's only top-level construct, and the AST mirrors the grammar's
// four layers below it: variables hold values, subroutines hold statements,
// statements produce effects, and expressions produce values. The parser builds
// this tree and the lowering pass walks it; nothing here depends on either.

// Program is the set of classes being compiled together, keyed by class name.
// Each class becomes its own .vm translation unit (one output file per class,
// the same way Java maps classes to .class files), but they compile as one
// program so cross-class calls can be resolved.
type Program map[string]Class

// orderClasses converts the unordered name->Class map into an OrderedMap keyed
// by class name. Go maps don't guarantee iteration order, so without this the
// same input Program could produce its modules in a different order on every
// run. Sorting by name once, here, gives every consumer of a Program the same
// deterministic walk order.
func orderClasses(p Program) utils.OrderedMap[string, Class] {
	classes := []utils.MapEntry[string, Class]{}
	for _, class := range p {
		classes = append(classes, utils.MapEntry[string, Class]{Key: class.Name, Value: class})
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Key < classes[j].Key })
	return utils.NewOrderedMapFromList(classes)
}

// ----------------------------------------------------------------------------
// Classes

// A Class couples state (its field/static variables) with the subroutines that
// operate on that state. The class name doubles as the type name of its
// instances. Fields and Subroutines preserve declaration order: field order
// determines memory offsets, subroutine order determines output order.
type Class struct {
	Name        string                               // Also the object type instances of this class have
	Fields      utils.OrderedMap[string, Variable]   // Field and static declarations, in source order
	Subroutines utils.OrderedMap[string, Subroutine] // Subroutine declarations, in source order
}

// ----------------------------------------------------------------------------
// Subroutines

// A Subroutine is one callable unit of a class. Its kind decides the calling
// convention: a method receives the object instance as an implicit extra
// argument, a constructor allocates the instance itself, and a function is
// static and touches no instance at all.
type Subroutine struct {
	Name string         // Qualified as '<Class>.<Name>' in the compiled output
	Type SubroutineType // Method, Function or Constructor; drives the codegen prelude

	Return    DataType   // Declared return type ('void' for no meaningful value)
	Arguments []Variable // Declared parameters, in declaration order

	Statements []Statement // The body, in source order
}

type SubroutineType string // Enum for the three subroutine kinds

const (
	Method      SubroutineType = "method"
	Function    SubroutineType = "function"
	Constructor SubroutineType = "constructor"
)

// ----------------------------------------------------------------------------
// Statements

// A Statement changes program state or control flow without producing a value.
// The interface groups the six statement kinds the grammar allows; disambiguate
// with a type switch.
type Statement interface{}

type DoStmt struct { // Calls a subroutine and discards its return value
	FuncCall FuncCallExpr
}

type VarStmt struct { // Declares local variables, claiming their slots without initializing them
	Vars []Variable
}

type LetStmt struct { // Assigns the RHS value to a variable or an array cell
	Lhs Expression // The target, restricted to VarExpr or ArrayExpr
	Rhs Expression // The value, any expression
}

type ReturnStmt struct { // Transfers control back to the caller with an optional value
	Expr Expression // nil for a bare 'return;'
}

type IfStmt struct { // Forks the control flow on a condition
	Condition Expression  // Evaluated once, treated as a boolean
	ThenBlock []Statement // Runs when the condition holds
	ElseBlock []Statement // Runs otherwise; empty when no 'else' was written
}

type WhileStmt struct { // Repeats a block while a condition holds
	Condition Expression  // Re-evaluated before every iteration
	Block     []Statement // The loop body
}

// ----------------------------------------------------------------------------
// Expressions

// An Expression produces a value from literals, variables and the values of
// nested sub-expressions. The interface groups the six expression kinds the
// grammar allows; disambiguate with a type switch.
//
// Jack famously has no operator precedence: every BinaryExpr is evaluated
// strictly left-to-right in the order the parser builds it, the same as a
// hand-written calculator with no knowledge of '*' binding tighter than '+'.
type Expression interface{}

type VarExpr struct { // Reads the value of a variable
	Var string
}

type LiteralExpr struct { // Produces a constant value
	Type  DataType // The literal's type (int, boolean, string, ...)
	Value string   // The raw literal text (digits, 'true', the string content, ...)
}

type ArrayExpr struct { // Reads one cell of an array
	Var   string     // The array variable
	Index Expression // The cell offset, any int-valued expression
}

type UnaryExpr struct { // Applies '-' or '~' to a single operand
	Type ExprType   // Only Negation and BoolNot are valid here
	Rhs  Expression // Unary operators bind to the term on their right
}

type BinaryExpr struct { // Combines two operand values with an infix operator
	Type ExprType   // Any operator except Negation (which is unary-only)
	Lhs  Expression // Evaluated first
	Rhs  Expression // Evaluated second
}

type FuncCallExpr struct { // Calls a subroutine and produces its return value
	IsExtCall bool   // True for the qualified 'target.f(args)' form
	Var       string // The qualifier (a variable or class name); "" for a bare call
	FuncName  string // The subroutine name

	Arguments []Expression // Argument expressions, evaluated left to right
}

type ExprType string // Enum for the unary and binary operators

const (
	Plus     ExprType = "plus"
	Minus    ExprType = "minus" // Binary subtraction only, see 'Negation' for unary arithmetic negation
	Negation ExprType = "negation"
	Divide   ExprType = "divide"
	Multiply ExprType = "multiply"

	BoolOr  ExprType = "bool_or"
	BoolAnd ExprType = "bool_and"
	BoolNot ExprType = "bool_neg"

	Equal     ExprType = "equal"
	LessThan  ExprType = "less_than"
	GreatThan ExprType = "greater_than"
)

// ----------------------------------------------------------------------------
// Variables

// Variable is one named slot of storage: a class field, a static, a parameter
// or a local. The VarType is what the code generator maps to a VM memory
// segment; the DataType is what identifier resolution checks against.
//
// Variable is a comparable value (no slices or maps), so resolved variables
// can be compared with '=='; a failed lookup returns its zero value alongside
// the error.
type Variable struct {
	Name     string   // The identifier within its declaring scope
	VarType  VarType  // Storage kind, decides the backing VM memory segment
	DataType DataType // Declared type, used by identifier resolution
}

type VarType string // Enum for the four storage kinds

const (
	Local     VarType = "local"
	Field     VarType = "field"
	Static    VarType = "static"
	Parameter VarType = "parameter"
)

// DataType describes the static type of a variable, literal or return value.
// 'Subtype' only carries meaning when 'Main' is Object, naming the class of
// the instance (e.g. Main: Object, Subtype: "Rectangle").
type DataType struct {
	Main    PrimitiveType
	Subtype string
}

type PrimitiveType string // Enum of the primitive kinds a DataType.Main can take

const (
	Int    PrimitiveType = "int"
	Bool   PrimitiveType = "boolean"
	Char   PrimitiveType = "char"
	Null   PrimitiveType = "null"
	String PrimitiveType = "string"
	Void   PrimitiveType = "void"
	Object PrimitiveType = "object"
)

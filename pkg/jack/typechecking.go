package jack

import (
	"fmt"

	"nand2tetris.dev/jackvm/pkg/utils"
)

// ----------------------------------------------------------------------------
// Type checker

// TypeChecker performs the identifier-resolution pass the driver runs between
// parsing and lowering: every variable reference and array base must resolve
// to something declared, and the receiver of a qualified call must be an
// Object-typed variable, a class of the program or an OS class. Bare calls
// and subroutine names are not checked here, and neither are return paths: a
// non-void subroutine that ends without a 'return' passes. Full type inference
// is out of scope.
type TypeChecker struct {
	program utils.OrderedMap[string, Class]
	scopes  ScopeTable
}

func NewTypeChecker(p Program) TypeChecker {
	return TypeChecker{program: orderClasses(p), scopes: *NewScopeTable()}
}

func (tc *TypeChecker) Check() error {
	if tc.program.Size() == 0 {
		return fmt.Errorf("the given 'program' is empty or nil")
	}

	for _, class := range tc.program.Entries() {
		if err := tc.HandleClass(class); err != nil {
			return fmt.Errorf("error type checking class '%s': %w", class.Name, err)
		}
	}

	return nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) error {
	tc.scopes.PushClassScope(class.Name)
	defer tc.scopes.PopClassScope()

	for _, field := range class.Fields.Entries() {
		if err := tc.scopes.RegisterVariable(field); err != nil {
			return fmt.Errorf("error registering field '%s': %w", field.Name, err)
		}
	}

	for _, subroutine := range class.Subroutines.Entries() {
		if err := tc.HandleSubroutine(subroutine); err != nil {
			return fmt.Errorf("error handling subroutine '%s': %w", subroutine.Name, err)
		}
	}

	return nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) error {
	tc.scopes.PushSubRoutineScope(subroutine.Name)
	defer tc.scopes.PopSubroutineScope()

	if subroutine.Type == Method {
		if err := tc.scopes.RegisterVariable(Variable{Name: "this", VarType: Parameter, DataType: DataType{Main: Object}}); err != nil {
			return err
		}
	}

	for _, arg := range subroutine.Arguments {
		if err := tc.scopes.RegisterVariable(arg); err != nil {
			return fmt.Errorf("error registering argument '%s': %w", arg.Name, err)
		}
	}

	for _, stmt := range subroutine.Statements {
		if err := tc.HandleStatement(stmt); err != nil {
			return fmt.Errorf("error handling statement %T: %w", stmt, err)
		}
	}

	return nil
}

// Generalized function to type-check multiple statement kinds, recursing into
// nested blocks and resolving every identifier referenced along the way.
func (tc *TypeChecker) HandleStatement(stmt Statement) error {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return tc.HandleExpression(tStmt.FuncCall)
	case VarStmt:
		for _, v := range tStmt.Vars {
			if err := tc.scopes.RegisterVariable(v); err != nil {
				return fmt.Errorf("error registering variable '%s': %w", v.Name, err)
			}
		}
		return nil
	case LetStmt:
		if err := tc.HandleExpression(tStmt.Lhs); err != nil {
			return err
		}
		return tc.HandleExpression(tStmt.Rhs)
	case IfStmt:
		if err := tc.HandleExpression(tStmt.Condition); err != nil {
			return err
		}
		for _, s := range tStmt.ThenBlock {
			if err := tc.HandleStatement(s); err != nil {
				return err
			}
		}
		for _, s := range tStmt.ElseBlock {
			if err := tc.HandleStatement(s); err != nil {
				return err
			}
		}
		return nil
	case WhileStmt:
		if err := tc.HandleExpression(tStmt.Condition); err != nil {
			return err
		}
		for _, s := range tStmt.Block {
			if err := tc.HandleStatement(s); err != nil {
				return err
			}
		}
		return nil
	case ReturnStmt:
		if tStmt.Expr == nil {
			return nil
		}
		return tc.HandleExpression(tStmt.Expr)
	default:
		return fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Generalized function to resolve every identifier nested inside an expression.
func (tc *TypeChecker) HandleExpression(expr Expression) error {
	switch tExpr := expr.(type) {
	case VarExpr:
		if tExpr.Var == "this" {
			return nil
		}
		_, _, err := tc.scopes.ResolveVariable(tExpr.Var)
		return err
	case LiteralExpr:
		return nil
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			return err
		}
		return tc.HandleExpression(tExpr.Index)
	case UnaryExpr:
		return tc.HandleExpression(tExpr.Rhs)
	case BinaryExpr:
		if err := tc.HandleExpression(tExpr.Lhs); err != nil {
			return err
		}
		return tc.HandleExpression(tExpr.Rhs)
	case FuncCallExpr:
		return tc.HandleFuncCallExpr(tExpr)
	default:
		return fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// HandleFuncCallExpr checks the call's arguments and, for an external call,
// its receiver: it must either be a known variable of Object type or the name
// of a known class. A local (bare) call only has its arguments checked; the
// existence of the called subroutine is not verified.
func (tc *TypeChecker) HandleFuncCallExpr(expr FuncCallExpr) error {
	for _, arg := range expr.Arguments {
		if err := tc.HandleExpression(arg); err != nil {
			return err
		}
	}

	if !expr.IsExtCall {
		return nil
	}

	if _, variable, err := tc.scopes.ResolveVariable(expr.Var); err == nil {
		if variable.DataType.Main != Object {
			return fmt.Errorf("variable '%s' is not an object, cannot call '%s' on it", expr.Var, expr.FuncName)
		}
		return nil
	}

	if _, exists := tc.program.Get(expr.Var); exists {
		return nil
	}
	if _, exists := StandardLibraryABI[expr.Var]; exists {
		return nil
	}

	return fmt.Errorf("'%s' is neither a declared variable nor a known class", expr.Var)
}

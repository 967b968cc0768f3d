package jack

import (
	"fmt"
	"strconv"

	"nand2tetris.dev/jackvm/pkg/utils"
	"nand2tetris.dev/jackvm/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Lowerer

// The Lowerer takes a 'jack.Program' and produces its 'vm.Program' counterpart.
//
// The AST is visited in DFS order, much like a recursive descent parser but for
// lowering: each statement/expression node has a specialized handler returning
// the list of 'vm.Operation' that implements it. The ScopeTable tracks every
// declared variable along the way so identifier references resolve to the
// right memory segment and offset.
type Lowerer struct {
	program utils.OrderedMap[string, Class] // Classes to lower, in deterministic name order
	scopes  ScopeTable                      // Tracks declared variables per scope level

	currentClass string // Qualifies subroutine names and resolves bare calls
	nBranch      uint   // Branch label counter, reset at every subroutine entry
}

// NewLowerer wraps the Program 'p' to be lowered; Lower rejects an empty one.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: orderClasses(p)}
}

// Lower converts every class into its VM module. Classes are processed in name
// order so the same input always produces the same output.
func (l *Lowerer) Lower() (vm.Program, error) {
	if l.program.Size() == 0 {
		return nil, fmt.Errorf("the given 'program' is empty or nil")
	}

	program := vm.Program{}
	for _, class := range l.program.Entries() {
		module, err := l.LowerClass(class.Name)
		if err != nil {
			return nil, err
		}
		program[class.Name] = module
	}

	return program, nil
}

// LowerClass converts a single class into its VM module. The driver uses this
// entry point directly when compiling a directory, so one broken class doesn't
// stop the remaining files from being attempted.
func (l *Lowerer) LowerClass(name string) (vm.Module, error) {
	class, exists := l.program.Get(name)
	if !exists {
		return nil, fmt.Errorf("class '%s' not found in the program", name)
	}

	operations, err := l.handleClass(class)
	if err != nil {
		return nil, fmt.Errorf("error lowering class '%s': %w", name, err)
	}
	return vm.Module(operations), nil
}

func (l *Lowerer) handleClass(class Class) ([]vm.Operation, error) {
	l.scopes.PushClassScope(class.Name)
	defer l.scopes.PopClassScope()
	l.currentClass = class.Name

	// Field/static declarations emit nothing by themselves, they only populate
	// the class scope so that field references inside subroutines resolve.
	for _, field := range class.Fields.Entries() {
		if err := l.scopes.RegisterVariable(field); err != nil {
			return nil, err
		}
	}

	operations := []vm.Operation{}
	for _, subroutine := range class.Subroutines.Entries() {
		ops, err := l.handleSubroutine(subroutine)
		if err != nil {
			return nil, fmt.Errorf("error lowering subroutine '%s': %w", subroutine.Name, err)
		}
		operations = append(operations, ops...)
	}

	return operations, nil
}

// handleSubroutine lowers one subroutine body plus the prelude its kind
// requires. The subroutine scope and the branch label counter are both reset
// on entry: argument offsets must restart from zero and labels only need to be
// unique within the function (the assembly backend further qualifies them with
// the function name).
func (l *Lowerer) handleSubroutine(subroutine Subroutine) ([]vm.Operation, error) {
	l.scopes.PushSubRoutineScope(subroutine.Name)
	defer l.scopes.PopSubroutineScope()
	l.nBranch = 0

	// A method receives its object instance as an implicit extra argument ahead
	// of the declared ones, so the receiver claims argument offset 0 and the
	// declared parameters number from 1. Registering it before the loop below
	// is what the calling convention depends on.
	if subroutine.Type == Method {
		receiver := Variable{Name: "this", VarType: Parameter, DataType: DataType{Main: Object, Subtype: l.currentClass}}
		if err := l.scopes.RegisterVariable(receiver); err != nil {
			return nil, fmt.Errorf("error registering implicit receiver: %w", err)
		}
	}

	for _, arg := range subroutine.Arguments {
		if err := l.scopes.RegisterVariable(arg); err != nil {
			return nil, fmt.Errorf("error registering argument '%s': %w", arg.Name, err)
		}
	}

	body := []vm.Operation{}
	for _, stmt := range subroutine.Statements {
		ops, err := l.handleStatement(stmt)
		if err != nil {
			return nil, err
		}
		body = append(body, ops...)
	}

	// Local declarations are only known after the body has been walked, which
	// is why the function header is built last and prepended.
	decl := vm.FuncDecl{
		Name:   fmt.Sprintf("%s.%s", l.currentClass, subroutine.Name),
		NLocal: uint8(l.scopes.VarCount(Local)),
	}

	prelude, err := l.subroutinePrelude(subroutine.Type)
	if err != nil {
		return nil, err
	}

	return append(append([]vm.Operation{decl}, prelude...), body...), nil
}

// subroutinePrelude produces the 'this' setup each subroutine kind needs
// before its own statements run.
func (l *Lowerer) subroutinePrelude(kind SubroutineType) ([]vm.Operation, error) {
	switch kind {
	case Constructor:
		// A constructor allocates its own instance: one word per field, with the
		// base address of the allocation becoming 'this'.
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(l.scopes.VarCount(Field))},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}, nil
	case Method:
		// A method receives 'this' as argument 0 and anchors the pointer to it.
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}, nil
	case Function:
		// A static function has no instance, nothing to set up.
		return nil, nil
	default:
		return nil, fmt.Errorf("unrecognized subroutine kind '%s'", kind)
	}
}

// segmentOf maps a variable's storage kind to the VM segment backing it.
func segmentOf(kind VarType) (vm.SegmentType, error) {
	switch kind {
	case Local:
		return vm.Local, nil
	case Parameter:
		return vm.Argument, nil
	case Field:
		return vm.This, nil
	case Static:
		return vm.Static, nil
	default:
		return "", fmt.Errorf("unrecognized variable kind '%s'", kind)
	}
}

// ----------------------------------------------------------------------------
// Statements

func (l *Lowerer) handleStatement(stmt Statement) ([]vm.Operation, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return l.handleDoStmt(tStmt)
	case VarStmt:
		return l.handleVarStmt(tStmt)
	case LetStmt:
		return l.handleLetStmt(tStmt)
	case IfStmt:
		return l.handleIfStmt(tStmt)
	case WhileStmt:
		return l.handleWhileStmt(tStmt)
	case ReturnStmt:
		return l.handleReturnStmt(tStmt)
	default:
		return nil, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

func (l *Lowerer) handleDoStmt(statement DoStmt) ([]vm.Operation, error) {
	ops, err := l.handleFuncCallExpr(statement.FuncCall)
	if err != nil {
		return nil, err
	}

	// The callee always leaves a return value on the stack; a do statement
	// ignores it, so it is dropped into temp 0.
	return append(ops, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

func (l *Lowerer) handleVarStmt(statement VarStmt) ([]vm.Operation, error) {
	// Declarations produce no code, they only claim local slots in the scope.
	for _, variable := range statement.Vars {
		if err := l.scopes.RegisterVariable(variable); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (l *Lowerer) handleLetStmt(statement LetStmt) ([]vm.Operation, error) {
	rhsOps, err := l.handleExpression(statement.Rhs)
	if err != nil {
		return nil, err
	}

	switch target := statement.Lhs.(type) {
	case VarExpr:
		offset, variable, err := l.scopes.ResolveVariable(target.Var)
		if err != nil {
			return nil, err
		}
		segment, err := segmentOf(variable.VarType)
		if err != nil {
			return nil, err
		}
		return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: segment, Offset: offset}), nil

	case ArrayExpr:
		// The cell's address (base + index) is computed before the value: the
		// value then detours through temp 0 so that 'pointer 1' can be aimed at
		// the cell, since evaluating the RHS may itself have clobbered 'that'
		// with an array read of its own.
		addrOps, err := l.arrayAddress(target)
		if err != nil {
			return nil, err
		}

		return append(append(addrOps, rhsOps...),
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
		), nil

	default:
		return nil, fmt.Errorf("assignment target must be a variable or an array cell, got %T", statement.Lhs)
	}
}

// handleWhileStmt lowers the loop as: test the condition at the top, bail out
// past the body when it no longer holds, jump back after the body.
func (l *Lowerer) handleWhileStmt(statement WhileStmt) ([]vm.Operation, error) {
	// The label id is claimed before the body is lowered, so an outer loop
	// always numbers below any construct nested inside it.
	id := l.nBranch
	l.nBranch++
	start := vm.LabelDecl{Name: fmt.Sprintf("WHILE_START_%d", id)}
	end := vm.LabelDecl{Name: fmt.Sprintf("WHILE_END_%d", id)}

	condOps, err := l.handleExpression(statement.Condition)
	if err != nil {
		return nil, err
	}

	blockOps := []vm.Operation{}
	for _, stmt := range statement.Block {
		ops, err := l.handleStatement(stmt)
		if err != nil {
			return nil, err
		}
		blockOps = append(blockOps, ops...)
	}

	operations := append([]vm.Operation{start}, condOps...)
	operations = append(operations,
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Label: end.Name, Jump: vm.Conditional},
	)
	operations = append(operations, blockOps...)
	return append(operations,
		vm.GotoOp{Label: start.Name, Jump: vm.Unconditional},
		end,
	), nil
}

// handleIfStmt lowers both forks with a single negated test: when the
// condition fails control skips to the else block (or straight past the
// statement when there is none).
func (l *Lowerer) handleIfStmt(statement IfStmt) ([]vm.Operation, error) {
	id := l.nBranch
	l.nBranch++
	elseLabel := vm.LabelDecl{Name: fmt.Sprintf("IF_ELSE_%d", id)}
	endLabel := vm.LabelDecl{Name: fmt.Sprintf("IF_END_%d", id)}

	condOps, err := l.handleExpression(statement.Condition)
	if err != nil {
		return nil, err
	}

	thenOps := []vm.Operation{}
	for _, stmt := range statement.ThenBlock {
		ops, err := l.handleStatement(stmt)
		if err != nil {
			return nil, err
		}
		thenOps = append(thenOps, ops...)
	}

	elseOps := []vm.Operation{}
	for _, stmt := range statement.ElseBlock {
		ops, err := l.handleStatement(stmt)
		if err != nil {
			return nil, err
		}
		elseOps = append(elseOps, ops...)
	}

	operations := append(condOps, vm.ArithmeticOp{Operation: vm.Not})

	if len(elseOps) == 0 {
		operations = append(operations, vm.GotoOp{Label: endLabel.Name, Jump: vm.Conditional})
		operations = append(operations, thenOps...)
		return append(operations, endLabel), nil
	}

	operations = append(operations, vm.GotoOp{Label: elseLabel.Name, Jump: vm.Conditional})
	operations = append(operations, thenOps...)
	operations = append(operations,
		vm.GotoOp{Label: endLabel.Name, Jump: vm.Unconditional},
		elseLabel,
	)
	operations = append(operations, elseOps...)
	return append(operations, endLabel), nil
}

func (l *Lowerer) handleReturnStmt(statement ReturnStmt) ([]vm.Operation, error) {
	// The calling convention requires every subroutine to leave exactly one
	// value on the stack, so a bare 'return;' pushes a placeholder zero.
	if statement.Expr == nil {
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	ops, err := l.handleExpression(statement.Expr)
	if err != nil {
		return nil, err
	}

	return append(ops, vm.ReturnOp{}), nil
}

// ----------------------------------------------------------------------------
// Expressions

func (l *Lowerer) handleExpression(expr Expression) ([]vm.Operation, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return l.handleVarExpr(tExpr)
	case LiteralExpr:
		return l.handleLiteralExpr(tExpr)
	case ArrayExpr:
		return l.handleArrayExpr(tExpr)
	case UnaryExpr:
		return l.handleUnaryExpr(tExpr)
	case BinaryExpr:
		return l.handleBinaryExpr(tExpr)
	case FuncCallExpr:
		return l.handleFuncCallExpr(tExpr)
	default:
		return nil, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

func (l *Lowerer) handleVarExpr(expression VarExpr) ([]vm.Operation, error) {
	// 'this' always reads through the pointer segment, never through the
	// argument slot it originally arrived in.
	if expression.Var == "this" {
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	}

	offset, variable, err := l.scopes.ResolveVariable(expression.Var)
	if err != nil {
		return nil, err
	}
	segment, err := segmentOf(variable.VarType)
	if err != nil {
		return nil, err
	}

	return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset}}, nil
}

func (l *Lowerer) handleLiteralExpr(expression LiteralExpr) ([]vm.Operation, error) {
	pushConstant := func(value uint16) vm.Operation {
		return vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: value}
	}

	switch expression.Type.Main {
	case Int:
		value, err := strconv.ParseUint(expression.Value, 10, 16)
		if err != nil || value > 32767 {
			return nil, fmt.Errorf("integer literal '%s' out of range 0-32767", expression.Value)
		}
		return []vm.Operation{pushConstant(uint16(value))}, nil

	case Bool:
		// True is all ones (the bitwise complement of zero), so every bit
		// survives an 'and' against another boolean. False is plain zero.
		if expression.Value == "true" {
			return []vm.Operation{pushConstant(0), vm.ArithmeticOp{Operation: vm.Not}}, nil
		}
		return []vm.Operation{pushConstant(0)}, nil

	case Null:
		return []vm.Operation{pushConstant(0)}, nil

	case Char:
		if len(expression.Value) != 1 {
			return nil, fmt.Errorf("invalid char literal '%s'", expression.Value)
		}
		return []vm.Operation{pushConstant(uint16(expression.Value[0]))}, nil

	case String:
		// A string literal becomes a String instance built character by
		// character; appendChar returns the instance so the chain leaves it on
		// the stack for whoever consumes the literal.
		ops := []vm.Operation{
			pushConstant(uint16(len(expression.Value))),
			vm.FuncCallOp{Name: "String.new", NArgs: 1},
		}
		for _, char := range expression.Value {
			ops = append(ops, pushConstant(uint16(char)), vm.FuncCallOp{Name: "String.appendChar", NArgs: 2})
		}
		return ops, nil

	default:
		return nil, fmt.Errorf("unrecognized literal type '%s'", expression.Type.Main)
	}
}

// arrayAddress computes the address of an array cell and leaves it on the
// stack: base pointer first, then the index, then a single add.
func (l *Lowerer) arrayAddress(expression ArrayExpr) ([]vm.Operation, error) {
	baseOps, err := l.handleVarExpr(VarExpr{Var: expression.Var})
	if err != nil {
		return nil, err
	}

	indexOps, err := l.handleExpression(expression.Index)
	if err != nil {
		return nil, err
	}

	return append(append(baseOps, indexOps...), vm.ArithmeticOp{Operation: vm.Add}), nil
}

func (l *Lowerer) handleArrayExpr(expression ArrayExpr) ([]vm.Operation, error) {
	addrOps, err := l.arrayAddress(expression)
	if err != nil {
		return nil, err
	}

	// Aim 'that' at the cell and read through it.
	return append(addrOps,
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	), nil
}

func (l *Lowerer) handleUnaryExpr(expression UnaryExpr) ([]vm.Operation, error) {
	ops, err := l.handleExpression(expression.Rhs)
	if err != nil {
		return nil, err
	}

	switch expression.Type {
	case Negation:
		return append(ops, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case BoolNot:
		return append(ops, vm.ArithmeticOp{Operation: vm.Not}), nil
	default:
		return nil, fmt.Errorf("unrecognized unary operator '%s'", expression.Type)
	}
}

func (l *Lowerer) handleBinaryExpr(expression BinaryExpr) ([]vm.Operation, error) {
	lhsOps, err := l.handleExpression(expression.Lhs)
	if err != nil {
		return nil, err
	}
	rhsOps, err := l.handleExpression(expression.Rhs)
	if err != nil {
		return nil, err
	}

	operands := append(lhsOps, rhsOps...)

	// Multiplication and division are not VM operators: they are implemented
	// by the OS and reached through an ordinary function call.
	switch expression.Type {
	case Multiply:
		return append(operands, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case Divide:
		return append(operands, vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	}

	operators := map[ExprType]vm.ArithOpType{
		Plus: vm.Add, Minus: vm.Sub,
		BoolAnd: vm.And, BoolOr: vm.Or,
		Equal: vm.Eq, LessThan: vm.Lt, GreatThan: vm.Gt,
	}
	operator, known := operators[expression.Type]
	if !known {
		return nil, fmt.Errorf("unrecognized binary operator '%s'", expression.Type)
	}

	return append(operands, vm.ArithmeticOp{Operation: operator}), nil
}

// handleFuncCallExpr resolves the three call shapes the language allows:
//   - 'f(args)': a call on the current object, the receiver is the active 'this'
//   - 'x.f(args)' with 'x' a declared variable: a method call on that object
//   - 'X.f(args)' with 'X' a class name: a plain function/constructor call
func (l *Lowerer) handleFuncCallExpr(expression FuncCallExpr) ([]vm.Operation, error) {
	argOps := []vm.Operation{}
	for _, arg := range expression.Arguments {
		ops, err := l.handleExpression(arg)
		if err != nil {
			return nil, err
		}
		argOps = append(argOps, ops...)
	}
	nArgs := uint8(len(expression.Arguments))

	if !expression.IsExtCall {
		return l.lowerLocalCall(expression, argOps, nArgs)
	}

	// A declared variable takes priority over a class of the same name, so the
	// receiver lookup runs first.
	if _, variable, err := l.scopes.ResolveVariable(expression.Var); err == nil {
		if variable.DataType.Main != Object {
			return nil, fmt.Errorf("'%s' has no methods, it is of type '%s'", expression.Var, variable.DataType.Main)
		}

		receiverOps, err := l.handleVarExpr(VarExpr{Var: expression.Var})
		if err != nil {
			return nil, err
		}

		callee := fmt.Sprintf("%s.%s", variable.DataType.Subtype, expression.FuncName)
		return append(append(receiverOps, argOps...), vm.FuncCallOp{Name: callee, NArgs: nArgs + 1}), nil
	}

	callee := fmt.Sprintf("%s.%s", expression.Var, expression.FuncName)

	if class, isClass := l.program.Get(expression.Var); isClass {
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, class.Name)
		}
		if routine.Type == Method {
			return nil, fmt.Errorf("'%s' is a method, it must be called on an object instance", callee)
		}
		return append(argOps, vm.FuncCallOp{Name: callee, NArgs: nArgs}), nil
	}

	// Last resort: the target is neither a variable nor a class in this
	// program, so it must be one of the OS classes linked in at the VM level.
	if sig, exists := LookupStdlib(expression.Var, expression.FuncName); exists {
		if sig.Type == Method {
			return nil, fmt.Errorf("'%s' is a method, it must be called on an object instance", callee)
		}
		return append(argOps, vm.FuncCallOp{Name: callee, NArgs: nArgs}), nil
	}

	return nil, fmt.Errorf("unable to resolve call target '%s'", callee)
}

// lowerLocalCall handles the bare 'f(args)' shape: the callee must live in the
// current class, and when it is a method the active 'this' is forwarded as the
// implicit first argument.
func (l *Lowerer) lowerLocalCall(expression FuncCallExpr, argOps []vm.Operation, nArgs uint8) ([]vm.Operation, error) {
	class, exists := l.program.Get(l.currentClass)
	if !exists {
		return nil, fmt.Errorf("class '%s' not found in the program", l.currentClass)
	}
	routine, exists := class.Subroutines.Get(expression.FuncName)
	if !exists {
		return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, l.currentClass)
	}

	callee := fmt.Sprintf("%s.%s", l.currentClass, expression.FuncName)

	if routine.Type == Method {
		receiver := vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}
		call := vm.FuncCallOp{Name: callee, NArgs: nArgs + 1}
		return append(append([]vm.Operation{receiver}, argOps...), call), nil
	}

	return append(argOps, vm.FuncCallOp{Name: callee, NArgs: nArgs}), nil
}

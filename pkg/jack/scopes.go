package jack

import (
	"fmt"
	"strings"

	"nand2tetris.dev/jackvm/pkg/utils"
)

// ----------------------------------------------------------------------------
// Symbol table

// A Scope is a named bucket of Variable declarations belonging to one of the
// four VarType kinds. Its 'entries' stack doubles as the index assignment:
// the Nth variable pushed into a scope is assigned memory offset N, matching
// the segment offset convention used throughout the codegen phase.
type Scope struct {
	name    string
	entries utils.Stack[Variable]
}

// ScopeTable is a two-level symbol table: one class-wide scope (Field/Static)
// and one subroutine-wide scope (Local/Parameter) that is discarded and
// rebuilt for every subroutine. A lookup checks the subroutine scope first,
// so a local or parameter with the same name as a field shadows the field,
// matching ordinary Jack scoping rules.
type ScopeTable struct {
	static utils.Stack[Variable] // Static fields live for the whole class, not reset per subroutine

	local     Scope
	field     Scope
	parameter Scope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{
		static:    utils.Stack[Variable]{},
		local:     Scope{},
		field:     Scope{},
		parameter: Scope{},
	}
}

func (st *ScopeTable) PushClassScope(class string) {
	newScope := fmt.Sprintf("%s.Global", class)
	st.field = Scope{name: newScope, entries: utils.Stack[Variable]{}}
	st.static = utils.Stack[Variable]{}
}

func (st *ScopeTable) PopClassScope() { st.field, st.static = Scope{}, utils.Stack[Variable]{} }

func (st *ScopeTable) PushSubRoutineScope(method string) {
	newScope := strings.ReplaceAll(st.GetScope(), "Global", method)
	st.local = Scope{name: newScope, entries: utils.Stack[Variable]{}}
	st.parameter = Scope{name: newScope, entries: utils.Stack[Variable]{}}
}

func (st *ScopeTable) PopSubroutineScope() { st.local, st.parameter = Scope{}, Scope{} }

func (st *ScopeTable) GetScope() string {
	if st.local.name != "" && st.parameter.name != "" {
		return st.local.name
	}

	if st.field.name != "" {
		return st.field.name
	}

	return "Global"
}

// RegisterVariable adds 'new' to the bucket matching its VarType. No two
// variables may share a name within the same scope level regardless of kind:
// a static may not collide with a field (both live at class level), nor a
// local with a parameter (both live at subroutine level). A collision is a
// fatal name error, never a silent redefinition. Note that each kind still
// numbers its own entries independently, so the memory offset of a variable
// is its position among the same-kind siblings only.
func (st *ScopeTable) RegisterVariable(new Variable) error {
	var target, sibling *utils.Stack[Variable]
	switch new.VarType {
	case Local:
		target, sibling = &st.local.entries, &st.parameter.entries
	case Parameter:
		target, sibling = &st.parameter.entries, &st.local.entries
	case Field:
		target, sibling = &st.field.entries, &st.static
	case Static:
		target, sibling = &st.static, &st.field.entries
	default:
		return fmt.Errorf("variable '%s' has unrecognized VarType '%s'", new.Name, new.VarType)
	}

	for _, bucket := range []*utils.Stack[Variable]{target, sibling} {
		for _, entry := range bucket.Iterator() {
			if entry.Name == new.Name {
				return fmt.Errorf("'%s' is already declared as a %s in this scope", new.Name, entry.VarType)
			}
		}
	}

	target.Push(new)
	return nil
}

// VarCount reports how many variables of the given kind the relevant scope
// currently holds (the subroutine scope for Local/Parameter, the class scope
// for Field/Static).
func (st *ScopeTable) VarCount(kind VarType) int {
	switch kind {
	case Local:
		return st.local.entries.Count()
	case Parameter:
		return st.parameter.entries.Count()
	case Field:
		return st.field.entries.Count()
	case Static:
		return st.static.Count()
	default:
		return 0
	}
}

// ResolveVariable looks up 'name', checking the subroutine scope (parameter
// then local) before the class scope (field then static), so a parameter or
// local shadows a field of the same name.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	scopes := []utils.Stack[Variable]{st.parameter.entries, st.local.entries, st.field.entries, st.static}

	for _, scope := range scopes {
		for idx, entry := range scope.Iterator() {
			if entry.Name == name {
				return uint16(idx), entry, nil
			}
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}

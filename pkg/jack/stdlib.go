package jack

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed stdlib.json
var stdlibContent string

// StdlibSubroutine is the thin ABI description the lowering pass needs for a
// call into the OS classes: just enough to tell a Function/Constructor call
// (no implicit receiver) apart from a Method call, which must always arrive
// through a resolved variable instead.
type StdlibSubroutine struct {
	Type SubroutineType `json:"type"`
}

// StandardLibraryABI describes the 8 Jack OS classes (Math, String, Array,
// Output, Screen, Keyboard, Memory, Sys) well enough for the lowering pass to
// emit a correct vm.FuncCallOp for a call like 'do Output.printString(s)'
// without having parsed their implementation — the OS classes are compiled
// separately and linked at the VM/assembly level, never as Jack source here.
var StandardLibraryABI map[string]map[string]StdlibSubroutine

func init() {
	if err := json.Unmarshal([]byte(stdlibContent), &StandardLibraryABI); err != nil {
		panic(fmt.Sprintf("jack: malformed embedded stdlib.json: %s", err))
	}
}

// LookupStdlib reports the ABI entry for 'class.subroutine' if the standard
// library defines it.
func LookupStdlib(class, subroutine string) (StdlibSubroutine, bool) {
	routines, ok := StandardLibraryABI[class]
	if !ok {
		return StdlibSubroutine{}, false
	}
	sig, ok := routines[subroutine]
	return sig, ok
}

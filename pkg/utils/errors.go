package utils

import "fmt"

// CompileError is the envelope the Jack front end (lexer and parser) uses for
// its failures, tagged with one of the Kind values below so the driver can
// surface "file:line: message" consistently: the first ill-formed construct
// is fatal and there is no recovery. The later stages (type checking,
// lowering) and the VM translator report plain wrapped errors instead, which
// carry no line number; a malformed .vm command is located by byte offset.
type CompileError struct {
	Kind Kind
	File string
	Line int
	Msg  string
}

type Kind string

const (
	Lexical Kind = "lexical error"
	Syntax  Kind = "syntax error"
	Name    Kind = "name error"
	IO      Kind = "I/O error"
)

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Kind, e.Msg)
}

func NewLexicalError(file string, line int, format string, args ...any) error {
	return &CompileError{Kind: Lexical, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func NewSyntaxError(file string, line int, format string, args ...any) error {
	return &CompileError{Kind: Syntax, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func NewNameError(file string, line int, format string, args ...any) error {
	return &CompileError{Kind: Name, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func NewIOError(file string, format string, args ...any) error {
	return &CompileError{Kind: IO, File: file, Msg: fmt.Sprintf(format, args...)}
}

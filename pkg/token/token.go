package token

import "strings"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about Jack tokens.
//
// A token is the smallest unit of meaning the lexer produces: a single keyword,
// symbol, identifier or literal. Tokens are immutable once produced and carry
// enough positional information (the source line) to build precise diagnostics.

// Category classifies a lexeme into one of the five lexical kinds defined by
// the Jack language. It intentionally mirrors the nand2tetris XML tag names
// so a Classifier can be reused for both error reporting and the optional
// token-stream dump.
type Category string

const (
	Keyword        Category = "keyword"
	Symbol         Category = "symbol"
	Identifier     Category = "identifier"
	IntegerLiteral Category = "integerConstant"
	StringLiteral  Category = "stringConstant"
)

// Token is an immutable (category, lexeme) pair plus the 1-based source line
// it was scanned from. String literals carry their content without the
// surrounding quotes, as required by the language's lexical rules.
type Token struct {
	Category Category
	Lexeme   string
	Line     int
}

var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

// Symbols is the closed set of single-character symbols the Jack grammar allows.
const Symbols = "{}()[].,;+-*/&|<>=~"

// Classify is a pure function from a raw lexeme to its lexical Category. The
// lexer already knows, from the character class it matched on, whether a
// lexeme is a symbol, a literal or a word — Classify exists as its own
// component (per the component design) so callers that only have a bare
// lexeme (diagnostics, tests) can still recover its kind. A string literal is
// recognised by its surrounding double quotes, as it appears in the source.
func Classify(lexeme string) Category {
	switch {
	case len(lexeme) == 1 && strings.ContainsRune(Symbols, rune(lexeme[0])):
		return Symbol
	case len(lexeme) >= 2 && lexeme[0] == '"' && lexeme[len(lexeme)-1] == '"':
		return StringLiteral
	case keywords[lexeme]:
		return Keyword
	case lexeme == "":
		return Identifier
	case lexeme[0] >= '0' && lexeme[0] <= '9':
		return IntegerLiteral
	default:
		return Identifier
	}
}

// IsKeyword reports whether 'word' is one of the reserved Jack keywords.
func IsKeyword(word string) bool { return keywords[word] }

// XMLTag returns the nand2tetris-compatible tag name used by the optional
// diagnostic token-stream dump for this Category.
func (c Category) XMLTag() string { return string(c) }

// EscapeXML escapes the four symbols that are not legal verbatim inside XML
// text nodes, matching the nand2tetris syntax analyzer's diagnostic output.
func EscapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}

package irtext

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes the textual IR notation printer.go emits: register
// names (%foo), global/function references (@foo), integer and type
// keywords, and the usual punctuation an assembly-like grammar needs.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Float", `[0-9]+\.[0-9]+`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Register", `%[a-zA-Z_][a-zA-Z0-9_.]*`, nil},
		{"Global", `@[a-zA-Z_][a-zA-Z0-9_.]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punct", `[{}()\[\],:*=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package token defines the lexical tokens of the Kuroko language.
package token

import "strconv"

// Type is the set of lexical token types.
type Type int

// The list of tokens. Ordering of the assignment operators is significant:
// the compiler matches the whole [Equal, ModuloEqual] range when looking for
// an assignment after a potential target.
const (
	LeftParen Type = iota
	RightParen
	LeftBrace
	RightBrace
	LeftSquare
	RightSquare
	Colon
	Comma
	Dot
	Semicolon
	At
	Tilde

	Bang
	BangEqual
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual
	LeftShift
	RightShift
	Minus
	Plus
	Caret
	Pipe
	Ampersand
	Solidus
	Asterisk
	Pow
	Modulo

	// Assignment operators; keep Equal first and ModuloEqual last.
	Equal
	LShiftEqual
	RShiftEqual
	MinusEqual
	PlusEqual
	CaretEqual
	PipeEqual
	AmpEqual
	SolidusEqual
	AsteriskEqual
	PowEqual
	MinusMinus
	PlusPlus
	ModuloEqual

	String
	BigString
	PrefixB
	PrefixF
	Number
	Identifier

	And
	As
	Assert
	Break
	Class
	Continue
	Def
	Del
	Elif
	Else
	Except
	False
	For
	From
	If
	Import
	In
	Is
	Lambda
	Let
	None
	Not
	Or
	Pass
	Raise
	Return
	Self
	Super
	True
	Try
	While
	With
	Yield

	Indentation
	EOL
	EOF
	Error
	Retry
)

var names = [...]string{
	LeftParen:     "(",
	RightParen:    ")",
	LeftBrace:     "{",
	RightBrace:    "}",
	LeftSquare:    "[",
	RightSquare:   "]",
	Colon:         ":",
	Comma:         ",",
	Dot:           ".",
	Semicolon:     ";",
	At:            "@",
	Tilde:         "~",
	Bang:          "!",
	BangEqual:     "!=",
	EqualEqual:    "==",
	Greater:       ">",
	GreaterEqual:  ">=",
	Less:          "<",
	LessEqual:     "<=",
	LeftShift:     "<<",
	RightShift:    ">>",
	Minus:         "-",
	Plus:          "+",
	Caret:         "^",
	Pipe:          "|",
	Ampersand:     "&",
	Solidus:       "/",
	Asterisk:      "*",
	Pow:           "**",
	Modulo:        "%",
	Equal:         "=",
	LShiftEqual:   "<<=",
	RShiftEqual:   ">>=",
	MinusEqual:    "-=",
	PlusEqual:     "+=",
	CaretEqual:    "^=",
	PipeEqual:     "|=",
	AmpEqual:      "&=",
	SolidusEqual:  "/=",
	AsteriskEqual: "*=",
	PowEqual:      "**=",
	MinusMinus:    "--",
	PlusPlus:      "++",
	ModuloEqual:   "%=",
	String:        "string",
	BigString:     "string",
	PrefixB:       "b",
	PrefixF:       "f",
	Number:        "number",
	Identifier:    "identifier",
	And:           "and",
	As:            "as",
	Assert:        "assert",
	Break:         "break",
	Class:         "class",
	Continue:      "continue",
	Def:           "def",
	Del:           "del",
	Elif:          "elif",
	Else:          "else",
	Except:        "except",
	False:         "False",
	For:           "for",
	From:          "from",
	If:            "if",
	Import:        "import",
	In:            "in",
	Is:            "is",
	Lambda:        "lambda",
	Let:           "let",
	None:          "None",
	Not:           "not",
	Or:            "or",
	Pass:          "pass",
	Raise:         "raise",
	Return:        "return",
	Self:          "self",
	Super:         "super",
	True:          "True",
	Try:           "try",
	While:         "while",
	With:          "with",
	Yield:         "yield",
	Indentation:   "indentation",
	EOL:           "end of line",
	EOF:           "end of file",
	Error:         "error",
	Retry:         "retry",
}

// String returns the textual representation of the token type, which for
// operators and keywords is the token itself.
func (t Type) String() string {
	if t >= 0 && int(t) < len(names) {
		return names[t]
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

// IsAssignment reports whether t is an assignment operator, including the
// compound forms and ++/--.
func (t Type) IsAssignment() bool {
	return t >= Equal && t <= ModuloEqual
}

// IsKeyword reports whether t is a reserved word.
func (t Type) IsKeyword() bool {
	return t >= And && t <= Yield
}

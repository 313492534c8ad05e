// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuroko-lang/kuroko/token"
)

func scanAll(src string) []Token {
	s := NewScanner(src)
	var out []Token
	for {
		tok := s.Scan()
		if tok.Type == token.Retry {
			continue
		}
		out = append(out, tok)
		if tok.Type == token.EOF || tok.Type == token.Error {
			return out
		}
	}
}

func scanTypes(src string) []token.Type {
	var types []token.Type
	for _, tok := range scanAll(src) {
		types = append(types, tok.Type)
	}
	return types
}

func TestScanPunctuation(t *testing.T) {
	require.Equal(t,
		[]token.Type{
			token.LeftParen, token.RightParen, token.LeftSquare, token.RightSquare,
			token.LeftBrace, token.RightBrace, token.Colon, token.Comma,
			token.Dot, token.Semicolon, token.At, token.Tilde, token.EOF,
		},
		scanTypes("()[]{}:,.;@~"))
}

func TestScanOperators(t *testing.T) {
	require.Equal(t,
		[]token.Type{
			token.Plus, token.PlusEqual, token.PlusPlus,
			token.Minus, token.MinusEqual, token.MinusMinus,
			token.Pow, token.PowEqual, token.Asterisk, token.AsteriskEqual,
			token.LeftShift, token.LShiftEqual, token.RightShift, token.RShiftEqual,
			token.LessEqual, token.GreaterEqual, token.EqualEqual, token.BangEqual,
			token.EOF,
		},
		scanTypes("+ += ++ - -= -- ** **= * *= << <<= >> >>= <= >= == !="))
}

func TestScanKeywords(t *testing.T) {
	require.Equal(t,
		[]token.Type{
			token.Def, token.Return, token.Class, token.If, token.Elif,
			token.Else, token.While, token.For, token.In, token.Is,
			token.Try, token.Except, token.Raise, token.With, token.As,
			token.Let, token.Lambda, token.Yield, token.Pass, token.Del,
			token.True, token.False, token.None, token.Self, token.Super,
			token.EOF,
		},
		scanTypes("def return class if elif else while for in is try except raise with as let lambda yield pass del True False None self super"))
}

func TestScanIdentifierPrefixes(t *testing.T) {
	// b and f followed by quotes are literal prefixes, otherwise plain
	// identifiers.
	types := scanTypes(`b"x" f"y" banana fig`)
	require.Equal(t,
		[]token.Type{
			token.PrefixB, token.String, token.PrefixF, token.String,
			token.Identifier, token.Identifier, token.EOF,
		}, types)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll("123 0x1F 0b101 0o777 3.25")
	s := NewScanner("123 0x1F 0b101 0o777 3.25")
	texts := []string{}
	for _, tok := range toks[:5] {
		require.Equal(t, token.Number, tok.Type)
		texts = append(texts, s.Text(tok))
	}
	require.Equal(t, []string{"123", "0x1F", "0b101", "0o777", "3.25"}, texts)
}

func TestScanIndentation(t *testing.T) {
	toks := scanAll("if x:\n    y\n        z\n")
	var indents []int
	for _, tok := range toks {
		if tok.Type == token.Indentation {
			indents = append(indents, tok.Length)
		}
	}
	require.Equal(t, []int{4, 8}, indents)
}

func TestScanTabsCountEight(t *testing.T) {
	toks := scanAll("if x:\n\ty\n")
	for _, tok := range toks {
		if tok.Type == token.Indentation {
			require.Equal(t, 8, tok.Length)
			return
		}
	}
	t.Fatal("no indentation token")
}

func TestScanMixedIndentationError(t *testing.T) {
	toks := scanAll("if x:\n \ty\n")
	last := toks[len(toks)-1]
	require.Equal(t, token.Error, last.Type)
	require.Equal(t, "Invalid mix of indentation.", last.Err)
}

func TestScanBlankLinesIgnored(t *testing.T) {
	require.Equal(t,
		[]token.Type{token.Identifier, token.EOL, token.Identifier, token.EOF},
		scanTypes("a\n\n\nb"))
}

func TestScanComments(t *testing.T) {
	require.Equal(t,
		[]token.Type{token.Identifier, token.EOL, token.Identifier, token.EOF},
		scanTypes("a # comment here\nb"))
}

func TestScanLineContinuation(t *testing.T) {
	require.Equal(t,
		[]token.Type{token.Identifier, token.Plus, token.Identifier, token.EOF},
		scanTypes("a \\\n+ b"))
}

func TestScanStrings(t *testing.T) {
	toks := scanAll(`'single' "double" '''big
string'''`)
	require.Equal(t, token.String, toks[0].Type)
	require.Equal(t, token.String, toks[1].Type)
	require.Equal(t, token.BigString, toks[2].Type)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(`"oops`)
	last := toks[len(toks)-1]
	require.Equal(t, token.Error, last.Type)
}

func TestScanLineAndColumn(t *testing.T) {
	toks := scanAll("a\nbb ccc\n")
	// a(1:1) EOL bb(2:1) ccc(2:4) EOL EOF
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 1, toks[0].Col)
	require.Equal(t, 2, toks[2].Line)
	require.Equal(t, 1, toks[2].Col)
	require.Equal(t, 2, toks[3].Line)
	require.Equal(t, 4, toks[3].Col)
}

func TestScannerUnget(t *testing.T) {
	s := NewScanner("a b c")
	first := s.Scan()
	second := s.Scan()
	s.Unget(second)
	again := s.Scan()
	require.Equal(t, second, again)
	require.Equal(t, "a", s.Text(first))
	require.Equal(t, "c", s.Text(s.Scan()))
}

func TestScannerTellRewind(t *testing.T) {
	s := NewScanner("a b c")
	s.Scan()
	mark := s.Tell()
	b1 := s.Scan()
	c1 := s.Scan()
	s.Rewind(mark)
	b2 := s.Scan()
	c2 := s.Scan()
	require.Equal(t, b1, b2)
	require.Equal(t, c1, c2)
	require.Equal(t, token.EOF, s.Scan().Type)
}

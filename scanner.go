// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"github.com/kuroko-lang/kuroko/token"
)

// Token is a single lexical token. Start and Length index into the source
// buffer; LineStart points at the beginning of the token's line so error
// reporting can reproduce the offending source line.
type Token struct {
	Type         token.Type
	Start        int
	Length       int
	Line         int
	Col          int
	LiteralWidth int
	LineStart    int
	Err          string
	// Synthetic carries the text of tokens fabricated by the compiler
	// (e.g. "__iter__") that have no backing source range.
	Synthetic string
}

// Scanner turns source text into a token stream. It tracks indentation at
// the start of each line, supports exactly one token of pushback for the
// compiler's else/except lookahead, and can be copied and restored wholesale
// for the comprehension and ternary rewind.
type Scanner struct {
	src         string
	start       int
	cur         int
	line        int
	linePtr     int
	startOfLine bool
	hasUnget    bool
	unget       Token
}

// NewScanner returns a scanner over src.
func NewScanner(src string) Scanner {
	return Scanner{src: src, line: 1, startOfLine: true}
}

// Text returns the source text of a token.
func (s *Scanner) Text(t Token) string {
	if t.Synthetic != "" {
		return t.Synthetic
	}
	if t.Type == token.Error {
		return t.Err
	}
	return s.src[t.Start : t.Start+t.Length]
}

// LineText returns the full source line a token sits on, for diagnostics.
func (s *Scanner) LineText(t Token) string {
	end := t.LineStart
	for end < len(s.src) && s.src[end] != '\n' {
		end++
	}
	return s.src[t.LineStart:end]
}

// Unget pushes a single token back; the next Scan returns it. Only one token
// of pushback is supported.
func (s *Scanner) Unget(t Token) {
	if s.hasUnget {
		panic("scanner: multiple unget")
	}
	s.hasUnget = true
	s.unget = t
}

// Tell snapshots the scanner state for later Rewind.
func (s *Scanner) Tell() Scanner { return *s }

// Rewind restores a snapshot taken with Tell.
func (s *Scanner) Rewind(to Scanner) { *s = to }

func (s *Scanner) isAtEnd() bool { return s.cur >= len(s.src) }

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.src[s.cur]
}

func (s *Scanner) peekNext(n int) byte {
	if s.cur+n >= len(s.src) {
		return 0
	}
	return s.src[s.cur+n]
}

func (s *Scanner) advance() byte {
	if s.isAtEnd() {
		return 0
	}
	c := s.src[s.cur]
	s.cur++
	return c
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.src[s.cur] != expected {
		return false
	}
	s.cur++
	return true
}

func (s *Scanner) nextLine() {
	s.line++
	s.linePtr = s.cur
}

func (s *Scanner) makeToken(t token.Type) Token {
	length := s.cur - s.start
	if t == token.EOL {
		length = 0
	}
	return Token{
		Type:         t,
		Start:        s.start,
		Length:       length,
		Line:         s.line,
		Col:          s.start - s.linePtr + 1,
		LiteralWidth: length,
		LineStart:    s.linePtr,
	}
}

func (s *Scanner) errorToken(msg string) Token {
	col := 0
	if s.linePtr < s.start {
		col = s.start - s.linePtr
	}
	width := 0
	if s.start < s.cur {
		width = s.cur - s.start
	}
	return Token{
		Type:         token.Error,
		Start:        s.start,
		Length:       width,
		Line:         s.line,
		Col:          col + 1,
		LiteralWidth: width,
		LineStart:    s.linePtr,
		Err:          msg,
	}
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\t':
			s.advance()
		default:
			return
		}
	}
}

// makeIndentation consumes the leading whitespace of a line and emits a
// single INDENTATION token whose length is the space count; tabs count as
// eight. Mixing tabs and spaces in one run is an error.
func (s *Scanner) makeIndentation() Token {
	reject := byte('\t')
	if s.peek() == '\t' {
		reject = ' '
	}
	for !s.isAtEnd() && (s.peek() == ' ' || s.peek() == '\t') {
		s.advance()
	}
	if s.isAtEnd() {
		return s.makeToken(token.EOF)
	}
	if s.peek() == '\n' {
		// Whitespace-only line; skip it like a completely blank one.
		s.advance()
		s.startOfLine = true
		out := s.makeToken(token.Retry)
		s.nextLine()
		return out
	}
	for i := s.start; i < s.cur; i++ {
		if s.src[i] == reject {
			return s.errorToken("Invalid mix of indentation.")
		}
	}
	out := s.makeToken(token.Indentation)
	if reject == ' ' {
		out.Length *= 8
	}
	if s.peek() == '#' {
		// Skip the comment but not the line feed.
		for !s.isAtEnd() && s.peek() != '\n' {
			s.advance()
		}
	}
	return out
}

func (s *Scanner) string(quote byte) Token {
	if s.peek() == quote && s.peekNext(1) == quote {
		s.advance()
		s.advance()
		for !s.isAtEnd() {
			if s.peek() == quote && s.peekNext(1) == quote && s.peekNext(2) == quote {
				s.advance()
				s.advance()
				s.advance()
				return s.makeToken(token.BigString)
			}
			if s.peek() == '\\' {
				s.advance()
			}
			if s.peek() == '\n' {
				s.advance()
				s.nextLine()
			} else {
				s.advance()
			}
		}
		return s.errorToken("Unterminated string.")
	}
	for s.peek() != quote && !s.isAtEnd() {
		if s.peek() == '\n' {
			return s.errorToken("Unterminated string.")
		}
		if s.peek() == '\\' {
			s.advance()
		}
		if s.peek() == '\n' {
			s.advance()
			s.nextLine()
		} else {
			s.advance()
		}
	}
	if s.isAtEnd() {
		return s.errorToken("Unterminated string.")
	}
	s.advance()
	return s.makeToken(token.String)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (s *Scanner) number(c byte) Token {
	if c == '0' {
		switch s.peek() {
		case 'x', 'X':
			s.advance()
			for isHexDigit(s.peek()) {
				s.advance()
			}
			return s.makeToken(token.Number)
		case 'b', 'B':
			s.advance()
			for s.peek() == '0' || s.peek() == '1' {
				s.advance()
			}
			return s.makeToken(token.Number)
		case 'o', 'O':
			// Octal is 0o only, no bare leading zero form.
			s.advance()
			for s.peek() >= '0' && s.peek() <= '7' {
				s.advance()
			}
			return s.makeToken(token.Number)
		}
	}
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext(1)) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.makeToken(token.Number)
}

var keywords = map[string]token.Type{
	"and":      token.And,
	"as":       token.As,
	"assert":   token.Assert,
	"break":    token.Break,
	"class":    token.Class,
	"continue": token.Continue,
	"def":      token.Def,
	"del":      token.Del,
	"elif":     token.Elif,
	"else":     token.Else,
	"except":   token.Except,
	"False":    token.False,
	"for":      token.For,
	"from":     token.From,
	"if":       token.If,
	"import":   token.Import,
	"in":       token.In,
	"is":       token.Is,
	"lambda":   token.Lambda,
	"let":      token.Let,
	"None":     token.None,
	"not":      token.Not,
	"or":       token.Or,
	"pass":     token.Pass,
	"raise":    token.Raise,
	"return":   token.Return,
	"self":     token.Self,
	"super":    token.Super,
	"True":     token.True,
	"try":      token.Try,
	"while":    token.While,
	"with":     token.With,
	"yield":    token.Yield,
}

func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) || s.peek() > 0x7F {
		s.advance()
	}
	text := s.src[s.start:s.cur]
	if t, ok := keywords[text]; ok {
		return s.makeToken(t)
	}
	return s.makeToken(token.Identifier)
}

// Scan returns the next token.
func (s *Scanner) Scan() Token {
	if s.hasUnget {
		s.hasUnget = false
		return s.unget
	}

	if s.startOfLine && (s.peek() == ' ' || s.peek() == '\t') {
		s.start = s.cur
		s.startOfLine = false
		return s.makeIndentation()
	}

	s.skipWhitespace()
	if s.peek() == '#' {
		for s.peek() != '\n' && !s.isAtEnd() {
			s.advance()
		}
	}

	s.start = s.cur
	if s.isAtEnd() {
		return s.makeToken(token.EOF)
	}

	c := s.advance()

	if c == '\n' {
		var out Token
		if s.startOfLine {
			// Completely blank line; ignore it.
			out = s.makeToken(token.Retry)
		} else {
			s.startOfLine = true
			out = s.makeToken(token.EOL)
		}
		s.nextLine()
		return out
	}

	if c == '\\' && s.peek() == '\n' {
		s.advance()
		s.nextLine()
		return s.makeToken(token.Retry)
	}

	s.startOfLine = false

	// b"..." and f"..." prefixes.
	if (c == 'b' || c == 'f') && (s.peek() == '"' || s.peek() == '\'') {
		if c == 'b' {
			return s.makeToken(token.PrefixB)
		}
		return s.makeToken(token.PrefixF)
	}

	if isAlpha(c) || c > 0x7F {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number(c)
	}

	switch c {
	case '(':
		return s.makeToken(token.LeftParen)
	case ')':
		return s.makeToken(token.RightParen)
	case '{':
		return s.makeToken(token.LeftBrace)
	case '}':
		return s.makeToken(token.RightBrace)
	case '[':
		return s.makeToken(token.LeftSquare)
	case ']':
		return s.makeToken(token.RightSquare)
	case ':':
		return s.makeToken(token.Colon)
	case ',':
		return s.makeToken(token.Comma)
	case '.':
		return s.makeToken(token.Dot)
	case ';':
		return s.makeToken(token.Semicolon)
	case '@':
		return s.makeToken(token.At)
	case '~':
		return s.makeToken(token.Tilde)
	case '!':
		if s.match('=') {
			return s.makeToken(token.BangEqual)
		}
		return s.makeToken(token.Bang)
	case '=':
		if s.match('=') {
			return s.makeToken(token.EqualEqual)
		}
		return s.makeToken(token.Equal)
	case '<':
		if s.match('=') {
			return s.makeToken(token.LessEqual)
		}
		if s.match('<') {
			if s.match('=') {
				return s.makeToken(token.LShiftEqual)
			}
			return s.makeToken(token.LeftShift)
		}
		return s.makeToken(token.Less)
	case '>':
		if s.match('=') {
			return s.makeToken(token.GreaterEqual)
		}
		if s.match('>') {
			if s.match('=') {
				return s.makeToken(token.RShiftEqual)
			}
			return s.makeToken(token.RightShift)
		}
		return s.makeToken(token.Greater)
	case '-':
		if s.match('=') {
			return s.makeToken(token.MinusEqual)
		}
		if s.match('-') {
			return s.makeToken(token.MinusMinus)
		}
		return s.makeToken(token.Minus)
	case '+':
		if s.match('=') {
			return s.makeToken(token.PlusEqual)
		}
		if s.match('+') {
			return s.makeToken(token.PlusPlus)
		}
		return s.makeToken(token.Plus)
	case '^':
		if s.match('=') {
			return s.makeToken(token.CaretEqual)
		}
		return s.makeToken(token.Caret)
	case '|':
		if s.match('=') {
			return s.makeToken(token.PipeEqual)
		}
		return s.makeToken(token.Pipe)
	case '&':
		if s.match('=') {
			return s.makeToken(token.AmpEqual)
		}
		return s.makeToken(token.Ampersand)
	case '/':
		if s.match('=') {
			return s.makeToken(token.SolidusEqual)
		}
		return s.makeToken(token.Solidus)
	case '*':
		if s.match('=') {
			return s.makeToken(token.AsteriskEqual)
		}
		if s.match('*') {
			if s.match('=') {
				return s.makeToken(token.PowEqual)
			}
			return s.makeToken(token.Pow)
		}
		return s.makeToken(token.Asterisk)
	case '%':
		if s.match('=') {
			return s.makeToken(token.ModuloEqual)
		}
		return s.makeToken(token.Modulo)
	case '"':
		return s.string('"')
	case '\'':
		return s.string('\'')
	}

	return s.errorToken("Unexpected character.")
}

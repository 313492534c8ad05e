// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kuroko-lang/kuroko/token"
)

// The compiler is a single-pass Pratt parser that emits bytecode directly
// into the chunk of the function being compiled. Blocks are delimited by
// indentation rather than braces. Comprehensions and ternaries require the
// parser to roll back: the head expression is parsed speculatively, and if a
// `for` (or trailing condition) follows, the emitted bytecode is discarded
// and the scanner rewound so the head can be re-parsed with the loop
// variables in scope. if/else and try/except similarly need a single token
// of pushback, since the statement after a dedent may or may not belong to
// them.

// precedence levels, lowest to highest.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precTernary
	precOr
	precAnd
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precTerm
	precFactor
	precUnary
	precExponent
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

type funcType int

const (
	typeFunction funcType = iota
	typeModule
	typeMethod
	typeInit
	typeLambda
	typeStatic
	typeProperty
)

func isMethodType(t funcType) bool {
	return t == typeMethod || t == typeInit || t == typeProperty
}

type local struct {
	name       Token
	text       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   int
	isLocal bool
}

// funcCompiler holds the per-function compilation state; nested function
// definitions stack these through the enclosing pointer.
type funcCompiler struct {
	enclosing      *funcCompiler
	function       *Function
	typ            funcType
	locals         []local
	scopeDepth     int
	upvalues       []upvalueRef
	loopLocalCount int
	breaks         []int
	continues      []int
}

// classCompiler tracks the enclosing class body for self/super checks.
type classCompiler struct {
	enclosing *classCompiler
	name      Token
}

// parserState is the copyable part of the parser, saved and restored
// together with the scanner during rewinds.
type parserState struct {
	current          Token
	previous         Token
	hadError         bool
	panicMode        bool
	eatingWhitespace int
}

// Compiler compiles one source buffer into a module code object.
type Compiler struct {
	vm           *VM
	thread       *Thread
	scanner      Scanner
	parser       parserState
	current      *funcCompiler
	currentClass *classCompiler
	inDel        int
	filename     *String

	// enclosingCompiler chains in-progress compilations for GC root scans.
	enclosingCompiler *Compiler
}

var parseRules map[token.Type]parseRule

func init() {
	parseRules = map[token.Type]parseRule{
		token.LeftParen:   {(*Compiler).grouping, (*Compiler).callExpr, precCall},
		token.LeftBrace:   {(*Compiler).dict, nil, precNone},
		token.LeftSquare:  {(*Compiler).list, (*Compiler).subscript, precCall},
		token.Dot:         {nil, (*Compiler).dot, precCall},
		token.Minus:       {(*Compiler).unary, (*Compiler).binary, precTerm},
		token.Plus:        {nil, (*Compiler).binary, precTerm},
		token.Solidus:     {nil, (*Compiler).binary, precFactor},
		token.Asterisk:    {nil, (*Compiler).binary, precFactor},
		token.Pow:         {nil, (*Compiler).binary, precExponent},
		token.Modulo:      {nil, (*Compiler).binary, precFactor},
		token.Bang:        {(*Compiler).unary, nil, precNone},
		token.BangEqual:   {nil, (*Compiler).binary, precComparison},
		token.EqualEqual:  {nil, (*Compiler).binary, precComparison},
		token.Greater:     {nil, (*Compiler).binary, precComparison},
		token.GreaterEqual: {nil, (*Compiler).binary, precComparison},
		token.Less:        {nil, (*Compiler).binary, precComparison},
		token.LessEqual:   {nil, (*Compiler).binary, precComparison},
		token.Identifier:  {(*Compiler).variable, nil, precNone},
		token.String:      {(*Compiler).stringExpr, nil, precNone},
		token.BigString:   {(*Compiler).stringExpr, nil, precNone},
		token.PrefixB:     {(*Compiler).stringExpr, nil, precNone},
		token.PrefixF:     {(*Compiler).stringExpr, nil, precNone},
		token.Number:      {(*Compiler).number, nil, precNone},
		token.And:         {nil, (*Compiler).and_, precAnd},
		token.False:       {(*Compiler).literal, nil, precNone},
		token.If:          {nil, (*Compiler).ternary, precTernary},
		token.In:          {nil, (*Compiler).in_, precComparison},
		token.None:        {(*Compiler).literal, nil, precNone},
		token.Not:         {(*Compiler).unary, (*Compiler).notIn, precComparison},
		token.Is:          {nil, (*Compiler).is_, precComparison},
		token.Or:          {nil, (*Compiler).or_, precOr},
		token.Self:        {(*Compiler).self, nil, precNone},
		token.Super:       {(*Compiler).super_, nil, precNone},
		token.True:        {(*Compiler).literal, nil, precNone},
		token.Tilde:       {(*Compiler).unary, nil, precNone},
		token.Pipe:        {nil, (*Compiler).binary, precBitOr},
		token.Caret:       {nil, (*Compiler).binary, precBitXor},
		token.Ampersand:   {nil, (*Compiler).binary, precBitAnd},
		token.LeftShift:   {nil, (*Compiler).binary, precShift},
		token.RightShift:  {nil, (*Compiler).binary, precShift},
		token.Lambda:      {(*Compiler).lambda, nil, precNone},
		token.Yield:       {(*Compiler).yield, nil, precNone},
	}
}

func getRule(t token.Type) parseRule { return parseRules[t] }

// newCompiler sets up a compilation of src in the context of the thread's
// current module.
func newCompiler(t *Thread, src, filename string) *Compiler {
	c := &Compiler{
		vm:      t.vm,
		thread:  t,
		scanner: NewScanner(src),
	}
	c.filename = t.vm.CopyString(filename)
	return c
}

func (c *Compiler) text(t Token) string { return c.scanner.Text(t) }

func syntheticToken(text string) Token {
	return Token{Type: token.Identifier, Synthetic: text, Length: len(text), LiteralWidth: len(text)}
}

func (c *Compiler) identifiersEqual(a, b Token) bool {
	return c.text(a) == c.text(b)
}

func (c *Compiler) currentChunk() *Chunk { return &c.current.function.Chunk }

// errorAt reports a compile error at the given token by raising a
// SyntaxError on the thread with position fields attached; further errors
// are suppressed until synchronize.
func (c *Compiler) errorAt(t Token, format string, args ...interface{}) {
	if c.parser.panicMode {
		return
	}
	c.thread.RuntimeError(c.vm.exc.SyntaxError, format, args...)
	exc, ok := c.thread.currentException.Obj.(*Instance)
	if ok {
		vm := c.vm
		exc.Fields.Set(ObjectVal(vm.CopyString("line")), ObjectVal(vm.CopyString(c.scanner.LineText(t))))
		exc.Fields.Set(ObjectVal(vm.CopyString("file")), ObjectVal(c.filename))
		exc.Fields.Set(ObjectVal(vm.CopyString("lineno")), IntegerVal(int64(t.Line)))
		exc.Fields.Set(ObjectVal(vm.CopyString("colno")), IntegerVal(int64(t.Col)))
		exc.Fields.Set(ObjectVal(vm.CopyString("width")), IntegerVal(int64(t.LiteralWidth)))
		if c.current != nil && c.current.function.Name != nil {
			exc.Fields.Set(ObjectVal(vm.CopyString("func")), ObjectVal(c.current.function.Name))
		} else {
			exc.Fields.Set(ObjectVal(vm.CopyString("func")), NoneVal())
		}
	}
	c.parser.panicMode = true
	c.parser.hadError = true
}

func (c *Compiler) error(format string, args ...interface{}) {
	c.errorAt(c.parser.previous, format, args...)
}

func (c *Compiler) errorAtCurrent(format string, args ...interface{}) {
	c.errorAt(c.parser.current, format, args...)
}

func (c *Compiler) advance() {
	c.parser.previous = c.parser.current
	for {
		c.parser.current = c.scanner.Scan()
		if c.parser.eatingWhitespace > 0 &&
			(c.parser.current.Type == token.Indentation || c.parser.current.Type == token.EOL) {
			continue
		}
		if c.parser.current.Type == token.Retry {
			continue
		}
		if c.parser.current.Type != token.Error {
			break
		}
		c.errorAtCurrent("%s", c.parser.current.Err)
		break
	}
}

func (c *Compiler) startEatingWhitespace() {
	c.parser.eatingWhitespace++
	if c.parser.current.Type == token.Indentation || c.parser.current.Type == token.EOL {
		c.advance()
	}
}

func (c *Compiler) stopEatingWhitespace() {
	if c.parser.eatingWhitespace == 0 {
		c.error("Invalid nesting of whitespace-eating regions.")
		return
	}
	c.parser.eatingWhitespace--
}

func (c *Compiler) check(t token.Type) bool { return c.parser.current.Type == t }

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, message string) {
	if c.parser.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent("%s", message)
}

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.parser.previous.Line)
}

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

// emitConstantOp writes the short form of a paired opcode when the operand
// fits in one byte, otherwise the long form with a big-endian three-byte
// operand.
func (c *Compiler) emitConstantOp(op Opcode, arg int) {
	if arg < 256 {
		c.emitBytes(op, byte(arg))
	} else {
		c.emitByte(op + 128)
		c.emitByte(byte(arg >> 16))
		c.emitByte(byte(arg >> 8))
		c.emitByte(byte(arg))
	}
}

func (c *Compiler) emitReturn() {
	switch c.current.typ {
	case typeInit, typeModule:
		c.emitBytes(OpGetLocal, 0)
	case typeLambda:
		// Lambda bodies leave their value on the stack.
	default:
		c.emitByte(OpNone)
	}
	c.emitByte(OpReturn)
}

func (c *Compiler) emitConstant(v Value) int {
	ind := c.currentChunk().AddConstant(v)
	c.emitConstantOp(OpConstant, ind)
	return ind
}

func (c *Compiler) initFuncCompiler(typ funcType) *funcCompiler {
	fc := &funcCompiler{
		enclosing: c.current,
		typ:       typ,
		function:  c.vm.NewFunction(),
	}
	fc.function.GlobalsContext = c.thread.module
	fc.function.Chunk.Filename = c.filename
	c.current = fc
	if typ != typeModule {
		fc.function.Name = c.vm.CopyString(c.text(c.parser.previous))
	}
	if isMethodType(typ) {
		fc.locals = append(fc.locals, local{name: syntheticToken("self"), text: "self", depth: 0})
	}
	return fc
}

func (c *Compiler) endCompiler() *Function {
	fn := c.current.function
	for i := range fn.LocalNames {
		if fn.LocalNames[i].Deathday == 0 {
			fn.LocalNames[i].Deathday = len(c.currentChunk().Code)
		}
	}
	c.emitReturn()

	// Attach argument name constants.
	for i := 0; i < fn.RequiredArgs; i++ {
		fn.RequiredArgNames = append(fn.RequiredArgNames,
			ObjectVal(c.vm.CopyString(c.current.locals[i].text)))
	}
	for i := 0; i < fn.KeywordArgs; i++ {
		fn.KeywordArgNames = append(fn.KeywordArgNames,
			ObjectVal(c.vm.CopyString(c.current.locals[i+fn.RequiredArgs].text)))
	}
	args := fn.RequiredArgs + fn.KeywordArgs
	if fn.CollectsArguments {
		fn.KeywordArgNames = append(fn.KeywordArgNames,
			ObjectVal(c.vm.CopyString(c.current.locals[args].text)))
		args++
	}
	if fn.CollectsKeywords {
		fn.KeywordArgNames = append(fn.KeywordArgNames,
			ObjectVal(c.vm.CopyString(c.current.locals[args].text)))
	}

	c.current = c.current.enclosing
	return fn
}

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope() {
	cur := c.current
	cur.scopeDepth--
	for len(cur.locals) > 0 && cur.locals[len(cur.locals)-1].depth > cur.scopeDepth {
		last := len(cur.locals) - 1
		for i := range cur.function.LocalNames {
			if cur.function.LocalNames[i].ID == last && cur.function.LocalNames[i].Deathday == 0 {
				cur.function.LocalNames[i].Deathday = len(c.currentChunk().Code)
			}
		}
		if cur.locals[last].isCaptured {
			c.emitByte(OpCloseUpvalue)
		} else {
			c.emitByte(OpPop)
		}
		cur.locals = cur.locals[:last]
	}
}

func (c *Compiler) emitJump(op Opcode) int {
	c.emitByte(op)
	c.emitBytes(0xFF, 0xFF)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("Unsupported far jump.")
	}
	c.currentChunk().Code[offset] = byte(jump >> 8)
	c.currentChunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	cur := c.current
	for len(cur.continues) > 0 && cur.continues[len(cur.continues)-1] > loopStart {
		c.patchJump(cur.continues[len(cur.continues)-1])
		cur.continues = cur.continues[:len(cur.continues)-1]
	}
	c.emitByte(OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitBytes(byte(offset>>8), byte(offset))
}

func (c *Compiler) patchBreaks(loopStart int) {
	cur := c.current
	for len(cur.breaks) > 0 && cur.breaks[len(cur.breaks)-1] > loopStart {
		c.patchJump(cur.breaks[len(cur.breaks)-1])
		cur.breaks = cur.breaks[:len(cur.breaks)-1]
	}
}

// rollbackChunk discards bytecode emitted past count, used when the parser
// backtracks for comprehensions and ternaries.
func (c *Compiler) rollbackChunk(count int) {
	chunk := c.currentChunk()
	chunk.Code = chunk.Code[:count]
	for len(chunk.Lines) > 0 && chunk.Lines[len(chunk.Lines)-1].StartOffset >= count {
		chunk.Lines = chunk.Lines[:len(chunk.Lines)-1]
	}
}

func (c *Compiler) identifierConstant(t Token) int {
	return c.currentChunk().AddConstant(ObjectVal(c.vm.CopyString(c.text(t))))
}

func (c *Compiler) resolveLocal(fc *funcCompiler, name Token) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if c.identifiersEqual(name, fc.locals[i].name) {
			if fc.locals[i].depth == -1 {
				c.error("Can not initialize value recursively (are you shadowing something?)")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addLocalTo(fc *funcCompiler, name Token) {
	fc.locals = append(fc.locals, local{name: name, text: c.text(name), depth: -1})
	fc.function.LocalNames = append(fc.function.LocalNames, LocalEntry{
		ID:       len(fc.locals) - 1,
		Birthday: len(fc.function.Chunk.Code),
		Name:     c.vm.CopyString(c.text(name)),
	})
}

func (c *Compiler) addLocal(name Token) { c.addLocalTo(c.current, name) }

func (c *Compiler) declareVariable() {
	if c.current.scopeDepth == 0 {
		return
	}
	name := c.parser.previous
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		l := &c.current.locals[i]
		if l.depth != -1 && l.depth < c.current.scopeDepth {
			break
		}
		if c.identifiersEqual(name, l.name) {
			c.error("Duplicate definition for local '%s' in this scope.", c.text(name))
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

func (c *Compiler) parseVariable(message string) int {
	c.consume(token.Identifier, message)
	c.declareVariable()
	if c.current.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.parser.previous)
}

func (c *Compiler) defineVariable(global int) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitConstantOp(OpDefineGlobal, global)
}

func (c *Compiler) addUpvalue(fc *funcCompiler, index int, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fc *funcCompiler, name Token) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fc.enclosing, name); local != -1 {
		fc.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fc, local, true)
	}
	if upvalue := c.resolveUpvalue(fc.enclosing, name); upvalue != -1 {
		return c.addUpvalue(fc, upvalue, false)
	}
	return -1
}

// doUpvalues writes the upvalue descriptors that follow a CLOSURE opcode.
func (c *Compiler) doUpvalues(fc *funcCompiler, fn *Function) {
	for i := 0; i < fn.UpvalueCount; i++ {
		if fc.upvalues[i].isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		index := fc.upvalues[i].index
		if i > 255 {
			c.emitByte(byte(index >> 16))
			c.emitByte(byte(index >> 8))
		}
		c.emitByte(byte(index))
	}
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) matchAssignment() bool {
	if c.parser.current.Type.IsAssignment() && c.parser.current.Type != token.Equal {
		c.advance()
		return true
	}
	return false
}

func (c *Compiler) matchEndOfDel() bool {
	return c.check(token.Comma) || c.check(token.EOL) || c.check(token.EOF) || c.check(token.Semicolon)
}

// assignmentValue compiles the right-hand side of a compound assignment and
// the operator that combines it with the already-loaded target value.
func (c *Compiler) assignmentValue() {
	typ := c.parser.previous.Type
	if typ == token.PlusPlus || typ == token.MinusMinus {
		c.emitConstant(IntegerVal(1))
	} else {
		c.expression()
	}
	switch typ {
	case token.PipeEqual:
		c.emitByte(OpBitOr)
	case token.CaretEqual:
		c.emitByte(OpBitXor)
	case token.AmpEqual:
		c.emitByte(OpBitAnd)
	case token.LShiftEqual:
		c.emitByte(OpShiftLeft)
	case token.RShiftEqual:
		c.emitByte(OpShiftRight)
	case token.PlusEqual, token.PlusPlus:
		c.emitByte(OpAdd)
	case token.MinusEqual, token.MinusMinus:
		c.emitByte(OpSubtract)
	case token.AsteriskEqual:
		c.emitByte(OpMultiply)
	case token.PowEqual:
		c.emitByte(OpPow)
	case token.SolidusEqual:
		c.emitByte(OpDivide)
	case token.ModuloEqual:
		c.emitByte(OpModulo)
	default:
		c.error("Unexpected operand in assignment")
	}
}

func (c *Compiler) parsePrecedence(prec precedence) {
	count := len(c.currentChunk().Code)
	oldScanner := c.scanner.Tell()
	oldParser := c.parser

	c.advance()
	rule := getRule(c.parser.previous.Type)
	if rule.prefix == nil {
		c.error("Unexpected token.")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)
	for prec <= getRule(c.parser.current.Type).prec {
		c.advance()
		infix := getRule(c.parser.previous.Type).infix
		if c.parser.previous.Type == token.If {
			c.actualTernary(count, oldScanner, oldParser)
		} else if infix != nil {
			infix(c, canAssign)
		}
	}
	if canAssign && c.matchAssignment() {
		c.error("Invalid assignment target")
	}
	if c.inDel == 1 && c.matchEndOfDel() {
		c.error("Invalid del target")
	}
}

func (c *Compiler) number(canAssign bool) {
	text := c.text(c.parser.previous)
	base := 10
	digits := text
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base, digits = 16, text[2:]
	} else if strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B") {
		base, digits = 2, text[2:]
	} else if strings.HasPrefix(text, "0o") || strings.HasPrefix(text, "0O") {
		base, digits = 8, text[2:]
	}
	if base == 10 && strings.Contains(text, ".") {
		value, _ := strconv.ParseFloat(text, 64)
		c.emitConstant(FloatingVal(value))
		return
	}
	value, _ := strconv.ParseInt(digits, base, 64)
	c.emitConstant(IntegerVal(value))
}

func (c *Compiler) binary(canAssign bool) {
	operatorType := c.parser.previous.Type
	rule := getRule(operatorType)
	if operatorType == token.Pow {
		// Exponentiation is right-associative.
		c.parsePrecedence(rule.prec)
	} else {
		c.parsePrecedence(rule.prec + 1)
	}

	switch operatorType {
	case token.BangEqual:
		c.emitBytes(OpEqual, OpNot)
	case token.EqualEqual:
		c.emitByte(OpEqual)
	case token.Greater:
		c.emitByte(OpGreater)
	case token.GreaterEqual:
		c.emitBytes(OpLess, OpNot)
	case token.Less:
		c.emitByte(OpLess)
	case token.LessEqual:
		c.emitBytes(OpGreater, OpNot)
	case token.Pipe:
		c.emitByte(OpBitOr)
	case token.Caret:
		c.emitByte(OpBitXor)
	case token.Ampersand:
		c.emitByte(OpBitAnd)
	case token.LeftShift:
		c.emitByte(OpShiftLeft)
	case token.RightShift:
		c.emitByte(OpShiftRight)
	case token.Plus:
		c.emitByte(OpAdd)
	case token.Minus:
		c.emitByte(OpSubtract)
	case token.Asterisk:
		c.emitByte(OpMultiply)
	case token.Pow:
		c.emitByte(OpPow)
	case token.Solidus:
		c.emitByte(OpDivide)
	case token.Modulo:
		c.emitByte(OpModulo)
	}
}

func (c *Compiler) unary(canAssign bool) {
	operatorType := c.parser.previous.Type
	c.parsePrecedence(precUnary)
	switch operatorType {
	case token.Minus:
		c.emitByte(OpNegate)
	case token.Tilde:
		c.emitByte(OpBitNegate)
	case token.Bang, token.Not:
		c.emitByte(OpNot)
	}
}

func (c *Compiler) literal(canAssign bool) {
	switch c.parser.previous.Type {
	case token.False:
		c.emitByte(OpFalse)
	case token.None:
		c.emitByte(OpNone)
	case token.True:
		c.emitByte(OpTrue)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	endJump := c.emitJump(OpJumpIfTrue)
	c.emitByte(OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

// ternary is a placeholder: parsePrecedence intercepts `if` infixes and
// dispatches to actualTernary, which rewinds to put the condition first.
func (c *Compiler) ternary(canAssign bool) {
	c.error("This function should not run.")
}

// actualTernary compiles `x if C else y`. The value expression x was
// already emitted; discard it, compile C, then re-parse x for the true
// branch, then skip back over the already-parsed region for y.
func (c *Compiler) actualTernary(count int, oldScanner Scanner, oldParser parserState) {
	c.rollbackChunk(count)

	c.parsePrecedence(precOr)
	thenJump := c.emitJump(OpJumpIfTrue)
	c.emitByte(OpPop)
	c.consume(token.Else, "Expected 'else' after ternary condition")
	c.parsePrecedence(precOr)

	outScanner := c.scanner.Tell()
	outParser := c.parser

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitByte(OpPop)

	c.scanner.Rewind(oldScanner)
	c.parser = oldParser
	c.parsePrecedence(precOr)
	c.patchJump(elseJump)

	c.scanner.Rewind(outScanner)
	c.parser = outParser
}

func (c *Compiler) in_(canAssign bool) {
	c.parsePrecedence(precComparison)
	c.emitByte(OpInvokeContains)
}

func (c *Compiler) notIn(canAssign bool) {
	c.consume(token.In, "infix not must be followed by in")
	c.in_(canAssign)
	c.emitByte(OpNot)
}

func (c *Compiler) is_(canAssign bool) {
	invert := c.match(token.Not)
	c.parsePrecedence(precComparison)
	c.emitByte(OpIs)
	if invert {
		c.emitByte(OpNot)
	}
}

// variable handling; opdel of 0 means deletion is invalid for this kind.
func (c *Compiler) namedVariable(name Token, canAssign bool) {
	var opget, opset, opdel Opcode
	var arg int
	if arg = c.resolveLocal(c.current, name); arg != -1 {
		opget, opset, opdel = OpGetLocal, OpSetLocal, 0
	} else if arg = c.resolveUpvalue(c.current, name); arg != -1 {
		opget, opset, opdel = OpGetUpvalue, OpSetUpvalue, 0
	} else {
		arg = c.identifierConstant(name)
		opget, opset, opdel = OpGetGlobal, OpSetGlobal, OpDelGlobal
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitConstantOp(opset, arg)
	} else if canAssign && c.matchAssignment() {
		c.emitConstantOp(opget, arg)
		c.assignmentValue()
		c.emitConstantOp(opset, arg)
	} else if c.inDel == 1 && c.matchEndOfDel() {
		if opdel == 0 || !canAssign {
			c.error("Invalid del target")
		} else {
			c.emitConstantOp(opdel, arg)
			c.inDel = 2
		}
	} else {
		c.emitConstantOp(opget, arg)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous, canAssign)
}

func (c *Compiler) self(canAssign bool) {
	if c.currentClass == nil {
		c.error("Invalid reference to `self` outside of a class method.")
		return
	}
	c.namedVariable(c.parser.previous, false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.currentClass == nil {
		c.error("Invalid reference to `super` outside of a class.")
	}
	c.consume(token.LeftParen, "Expected `super` to be called.")
	c.consume(token.RightParen, "`super` can not take arguments.")
	c.consume(token.Dot, "Expected a field of `super()` to be referenced.")
	c.consume(token.Identifier, "Expected a field name.")
	ind := c.identifierConstant(c.parser.previous)
	c.namedVariable(syntheticToken("self"), false)
	c.namedVariable(syntheticToken("super"), false)
	c.emitConstantOp(OpGetSuper, ind)
}

// dot handles attribute access, attribute packs `a.(x, y)`, assignment and
// deletion of attributes.
func (c *Compiler) dot(canAssign bool) {
	if c.match(token.LeftParen) {
		c.startEatingWhitespace()
		var args []int
		for {
			c.consume(token.Identifier, "Expected attribute name")
			args = append(args, c.identifierConstant(c.parser.previous))
			if !c.match(token.Comma) {
				break
			}
		}
		c.stopEatingWhitespace()
		c.consume(token.RightParen, "Expected ) after attribute list")

		if canAssign && c.match(token.Equal) {
			expressionCount := 0
			for {
				expressionCount++
				c.expression()
				if !c.match(token.Comma) {
					break
				}
			}
			if expressionCount == 1 && len(args) > 1 {
				c.emitConstantOp(OpUnpack, len(args))
			} else if expressionCount > 1 && len(args) == 1 {
				c.emitConstantOp(OpTuple, expressionCount)
			} else if expressionCount != len(args) {
				c.error("Invalid assignment to attribute pack")
				return
			}
			for i := len(args); i > 0; i-- {
				if i != 1 {
					c.emitConstantOp(OpDup, i)
					c.emitByte(OpSwap)
				}
				c.emitConstantOp(OpSetProperty, args[i-1])
				if i != 1 {
					c.emitByte(OpPop)
				}
			}
		} else {
			for i := 0; i < len(args); i++ {
				c.emitConstantOp(OpDup, 0)
				c.emitConstantOp(OpGetProperty, args[i])
				c.emitByte(OpSwap)
			}
			c.emitByte(OpPop)
			c.emitConstantOp(OpTuple, len(args))
		}
		return
	}
	c.consume(token.Identifier, "Expected property name")
	ind := c.identifierConstant(c.parser.previous)
	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitConstantOp(OpSetProperty, ind)
	} else if canAssign && c.matchAssignment() {
		c.emitConstantOp(OpDup, 0)
		c.emitConstantOp(OpGetProperty, ind)
		c.assignmentValue()
		c.emitConstantOp(OpSetProperty, ind)
	} else if c.inDel == 1 && c.matchEndOfDel() {
		if !canAssign {
			c.error("Invalid del target")
		} else {
			c.emitConstantOp(OpDelProperty, ind)
			c.inDel = 2
		}
	} else {
		c.emitConstantOp(OpGetProperty, ind)
	}
}

// subscript handles `a[i]`, slices `a[s:e]`, and their assignment and
// deletion forms.
func (c *Compiler) subscript(canAssign bool) {
	isSlice := false
	if c.match(token.Colon) {
		c.emitByte(OpNone)
		isSlice = true
	} else {
		c.expression()
	}
	if isSlice || c.match(token.Colon) {
		if isSlice && c.match(token.Colon) {
			c.error("Step value not supported in slice.")
			return
		}
		if c.match(token.RightSquare) {
			c.emitByte(OpNone)
		} else {
			c.expression()
			c.consume(token.RightSquare, "Expected ending square bracket after slice.")
		}
		if canAssign && c.match(token.Equal) {
			c.expression()
			c.emitByte(OpInvokeSetSlice)
		} else if canAssign && c.matchAssignment() {
			c.emitConstantOp(OpDup, 2)
			c.emitConstantOp(OpDup, 2)
			c.emitConstantOp(OpDup, 2)
			c.emitByte(OpInvokeGetSlice)
			c.assignmentValue()
			c.emitByte(OpInvokeSetSlice)
		} else if c.inDel == 1 && c.matchEndOfDel() {
			c.emitByte(OpInvokeDelSlice)
			c.inDel = 2
		} else {
			c.emitByte(OpInvokeGetSlice)
		}
		return
	}
	c.consume(token.RightSquare, "Expected ending square bracket after index.")
	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitByte(OpInvokeSetter)
	} else if canAssign && c.matchAssignment() {
		c.emitConstantOp(OpDup, 1)
		c.emitConstantOp(OpDup, 1)
		c.emitByte(OpInvokeGetter)
		c.assignmentValue()
		c.emitByte(OpInvokeSetter)
	} else if c.inDel == 1 && c.matchEndOfDel() {
		if !canAssign {
			c.error("Invalid del target")
		} else {
			c.emitByte(OpInvokeDelete)
			c.inDel = 2
		}
	} else {
		c.emitByte(OpInvokeGetter)
	}
}

// callExpr compiles an argument list. Keyword arguments and splats push
// (name, value) pairs topped by a KWARGS count marker for the call
// assembler.
func (c *Compiler) callExpr(canAssign bool) {
	c.startEatingWhitespace()
	argCount, specialArgs, keywordArgs := 0, 0, 0
	seenKeywordUnpacking := false
	if !c.check(token.RightParen) {
		for {
			if c.match(token.Asterisk) || c.check(token.Pow) {
				specialArgs++
				if c.match(token.Pow) {
					seenKeywordUnpacking = true
					c.emitBytes(OpExpandArgs, 2)
					c.expression()
				} else {
					if seenKeywordUnpacking {
						c.error("Iterable expansion follows keyword argument unpacking.")
						return
					}
					c.emitBytes(OpExpandArgs, 1)
					c.expression()
				}
				if !c.match(token.Comma) {
					break
				}
				continue
			}
			if c.match(token.Identifier) {
				argName := c.parser.previous
				if c.check(token.Equal) {
					c.advance()
					ind := c.identifierConstant(argName)
					c.emitConstantOp(OpConstant, ind)
					c.expression()
					keywordArgs++
					specialArgs++
					if !c.match(token.Comma) {
						break
					}
					continue
				}
				// A plain argument that began with an identifier; push the
				// tokens back and parse it as an expression.
				c.scanner.Unget(c.parser.current)
				c.parser.current = argName
			} else if seenKeywordUnpacking {
				c.error("Positional argument follows keyword argument unpacking")
				return
			} else if keywordArgs > 0 {
				c.error("Positional argument follows keyword argument")
				return
			}
			if specialArgs > 0 {
				c.emitBytes(OpExpandArgs, 0)
				c.expression()
				specialArgs++
				if !c.match(token.Comma) {
					break
				}
				continue
			}
			c.expression()
			argCount++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.stopEatingWhitespace()
	c.consume(token.RightParen, "Expected ')' after arguments.")
	if specialArgs > 0 {
		c.emitConstantOp(OpKwargs, specialArgs)
		argCount += 1 + 2*specialArgs
	}
	c.emitConstantOp(OpCall, argCount)
}

// grouping compiles parenthesized expressions, the empty tuple, tuple
// literals, and generator comprehensions.
func (c *Compiler) grouping(canAssign bool) {
	c.startEatingWhitespace()
	if c.check(token.RightParen) {
		c.emitBytes(OpTuple, 0)
	} else {
		chunkBefore := len(c.currentChunk().Code)
		scannerBefore := c.scanner.Tell()
		parserBefore := c.parser
		c.expression()
		if c.match(token.For) {
			c.rollbackChunk(chunkBefore)
			c.comprehension(scannerBefore, parserBefore, "tupleOf", (*Compiler).singleInner)
		} else if c.match(token.Comma) {
			argCount := 1
			if !c.check(token.RightParen) {
				for {
					c.expression()
					argCount++
					if !c.match(token.Comma) || c.check(token.RightParen) {
						break
					}
				}
			}
			c.emitConstantOp(OpTuple, argCount)
		}
	}
	c.stopEatingWhitespace()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

// list compiles list literals and list comprehensions. Both forms build the
// collection by calling listOf with the elements on the stack.
func (c *Compiler) list(canAssign bool) {
	chunkBefore := len(c.currentChunk().Code)
	c.startEatingWhitespace()

	listOf := syntheticToken("listOf")
	ind := c.identifierConstant(listOf)
	c.emitConstantOp(OpGetGlobal, ind)

	if !c.check(token.RightSquare) {
		scannerBefore := c.scanner.Tell()
		parserBefore := c.parser
		c.expression()

		// If a `for` follows the head expression this is a comprehension:
		// the head references loop variables that are not defined yet, so
		// discard what was emitted, compile the loop, and re-parse the head
		// inside it.
		if c.match(token.For) {
			c.rollbackChunk(chunkBefore)
			c.comprehension(scannerBefore, parserBefore, "listOf", (*Compiler).singleInner)
		} else {
			argCount := 1
			for c.match(token.Comma) && !c.check(token.RightSquare) {
				c.expression()
				argCount++
			}
			c.emitConstantOp(OpCall, argCount)
		}
	} else {
		c.emitBytes(OpCall, 0)
	}
	c.stopEatingWhitespace()
	c.consume(token.RightSquare, "Expected ] at end of list expression.")
}

// dict compiles dict and set literals and their comprehensions, deciding
// which one it is looking at after the first expression.
func (c *Compiler) dict(canAssign bool) {
	chunkBefore := len(c.currentChunk().Code)
	c.startEatingWhitespace()

	dictOf := syntheticToken("dictOf")
	ind := c.identifierConstant(dictOf)
	c.emitConstantOp(OpGetGlobal, ind)

	if !c.check(token.RightBrace) {
		scannerBefore := c.scanner.Tell()
		parserBefore := c.parser

		c.expression()
		if c.check(token.Comma) || c.check(token.RightBrace) {
			// A set literal; start over with setOf.
			c.scanner.Rewind(scannerBefore)
			c.parser = parserBefore
			c.rollbackChunk(chunkBefore)
			setOf := syntheticToken("setOf")
			ind := c.identifierConstant(setOf)
			c.emitConstantOp(OpGetGlobal, ind)
			argCount := 0
			for {
				c.expression()
				argCount++
				if !c.match(token.Comma) {
					break
				}
			}
			c.emitConstantOp(OpCall, argCount)
		} else if c.match(token.For) {
			c.rollbackChunk(chunkBefore)
			c.comprehension(scannerBefore, parserBefore, "setOf", (*Compiler).singleInner)
		} else {
			c.consume(token.Colon, "Expect colon after dict key.")
			c.expression()
			if c.match(token.For) {
				c.rollbackChunk(chunkBefore)
				c.comprehension(scannerBefore, parserBefore, "dictOf", (*Compiler).dictInner)
			} else {
				argCount := 2
				for c.match(token.Comma) && !c.check(token.RightBrace) {
					c.expression()
					c.consume(token.Colon, "Expect colon after dict key.")
					c.expression()
					argCount += 2
				}
				c.emitConstantOp(OpCall, argCount)
			}
		}
	} else {
		c.emitBytes(OpCall, 0)
	}
	c.stopEatingWhitespace()
	c.consume(token.RightBrace, "Expected } at end of dict expression.")
}

func (c *Compiler) singleInner(indLoopCounter int) {
	c.expression()
}

func (c *Compiler) dictInner(indLoopCounter int) {
	c.expression()
	c.consume(token.Colon, "Expect colon after dict key.")
	c.expression()
	c.emitConstantOp(OpInc, indLoopCounter)
}

// comprehension compiles a list/set/dict/tuple comprehension as a synthetic
// function that drives the iterator protocol, counts produced elements, and
// finishes by calling the named collection builder on them via CALL_STACK.
// The head expression is re-parsed from the saved scanner state once the
// loop variables exist.
func (c *Compiler) comprehension(scannerBefore Scanner, parserBefore parserState, buildFunc string, inner func(*Compiler, int)) {
	fc := c.initFuncCompiler(typeFunction)
	fc.function.Chunk.Filename = c.filename
	c.beginScope()

	// Element counter.
	c.emitConstant(IntegerVal(0))
	indLoopCounter := len(c.current.locals)
	c.addLocal(syntheticToken(""))
	c.defineVariable(indLoopCounter)

	// Loop variables.
	loopInd := len(c.current.locals)
	varCount := 0
	for {
		c.defineVariable(c.parseVariable("Expected name for iteration variable."))
		c.emitByte(OpNone)
		c.defineVariable(loopInd)
		varCount++
		if !c.match(token.Comma) {
			break
		}
	}

	c.consume(token.In, "Only iterator loops (for ... in ...) are allowed in comprehensions.")

	c.beginScope()
	c.parsePrecedence(precOr)
	c.endScope()

	indLoopIter := len(c.current.locals)
	c.addLocal(syntheticToken(""))
	c.defineVariable(indLoopIter)

	c.emitByte(OpInvokeIter)
	c.emitConstantOp(OpSetLocal, indLoopIter)

	loopStart := len(c.currentChunk().Code)

	c.emitConstantOp(OpGetLocal, indLoopIter)
	c.emitBytes(OpCall, 0)
	c.emitConstantOp(OpSetLocal, loopInd)
	c.emitConstantOp(OpGetLocal, indLoopIter)
	c.emitByte(OpIs)
	exitJump := c.emitJump(OpJumpIfTrue)
	c.emitByte(OpPop)

	if varCount > 1 {
		c.emitConstantOp(OpGetLocal, loopInd)
		c.emitConstantOp(OpUnpack, varCount)
		for i := loopInd + varCount - 1; i >= loopInd; i-- {
			c.emitConstantOp(OpSetLocal, i)
			c.emitByte(OpPop)
		}
	}

	if c.match(token.If) {
		c.parsePrecedence(precOr)
		acceptJump := c.emitJump(OpJumpIfTrue)
		c.emitByte(OpPop)
		c.emitLoop(loopStart)
		c.patchJump(acceptJump)
		c.emitByte(OpPop)
	}

	// Rewind so the head expression parses with the loop variables bound.
	scannerAfter := c.scanner.Tell()
	parserAfter := c.parser
	c.scanner.Rewind(scannerBefore)
	c.parser = parserBefore

	c.beginScope()
	inner(c, indLoopCounter)
	c.endScope()

	c.scanner.Rewind(scannerAfter)
	c.parser = parserAfter

	c.emitConstantOp(OpInc, indLoopCounter)
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitByte(OpPop)

	builder := syntheticToken(buildFunc)
	indList := c.identifierConstant(builder)
	c.emitConstantOp(OpGetGlobal, indList)
	c.emitConstantOp(OpSetLocal, indLoopIter)
	c.emitByte(OpPop)
	c.emitConstantOp(OpGetLocal, indLoopCounter)
	c.emitByte(OpCallStack)
	c.emitByte(OpReturn)

	fn := c.endCompiler()
	indFunc := c.currentChunk().AddConstant(ObjectVal(fn))
	c.emitConstantOp(OpClosure, indFunc)
	c.doUpvalues(fc, fn)
	c.emitBytes(OpCall, 0)
}

// stringExpr compiles string, bytes, and f-string literals, decoding escape
// sequences and concatenating adjacent literals. F-string interpolations
// re-enter the expression parser on the substring inside each brace pair.
func (c *Compiler) stringExpr(canAssign bool) {
	var sb []byte
	isBytes := c.parser.previous.Type == token.PrefixB
	isFormat := c.parser.previous.Type == token.PrefixF
	atLeastOne := false

	lineBefore := c.scanner.linePtr
	lineNo := c.scanner.line

	if (isBytes || isFormat) && !(c.match(token.String) || c.match(token.BigString)) {
		c.error("Expected string after prefix.")
		return
	}

	pushCodepoint := func(value rune) {
		if isBytes {
			sb = append(sb, byte(value))
			return
		}
		var buf [4]byte
		n := encodeRune(buf[:], value)
		sb = append(sb, buf[:n]...)
	}

	for {
		quoteWidth := 1
		if c.parser.previous.Type == token.BigString {
			quoteWidth = 3
		}
		start := c.parser.previous.Start + quoteWidth
		end := c.parser.previous.Start + c.parser.previous.Length - quoteWidth
		src := c.scanner.src
		i := start
		for i < end {
			ch := src[i]
			if ch == '\\' && i+1 < end {
				switch src[i+1] {
				case '\\':
					sb = append(sb, '\\')
				case '\'':
					sb = append(sb, '\'')
				case '"':
					sb = append(sb, '"')
				case 'a':
					sb = append(sb, '\a')
				case 'b':
					sb = append(sb, '\b')
				case 'f':
					sb = append(sb, '\f')
				case 'n':
					sb = append(sb, '\n')
				case 'r':
					sb = append(sb, '\r')
				case 't':
					sb = append(sb, '\t')
				case 'v':
					sb = append(sb, '\v')
				case '[':
					sb = append(sb, '\033')
				case 'x':
					value, ok := c.hexEscape(src, i+2, end, 2, 'x')
					if !ok {
						return
					}
					pushCodepoint(value)
					i += 2
				case 'u':
					if isBytes {
						sb = append(sb, src[i], src[i+1])
					} else {
						value, ok := c.hexEscape(src, i+2, end, 4, 'u')
						if !ok {
							return
						}
						pushCodepoint(value)
						i += 4
					}
				case 'U':
					if isBytes {
						sb = append(sb, src[i], src[i+1])
					} else {
						value, ok := c.hexEscape(src, i+2, end, 8, 'U')
						if !ok {
							return
						}
						pushCodepoint(value)
						i += 8
					}
				case '\n':
					// Escaped newline contributes nothing.
				default:
					sb = append(sb, src[i])
					i++
					continue
				}
				i += 2
			} else if isFormat && ch == '{' {
				if !atLeastOne || len(sb) > 0 {
					c.emitConstant(ObjectVal(c.vm.CopyString(string(sb))))
					if atLeastOne {
						c.emitByte(OpAdd)
					}
					atLeastOne = true
				}
				sb = sb[:0]
				beforeExpression := c.scanner.Tell()
				parserBefore := c.parser
				inner := Scanner{src: src, start: i + 1, cur: i + 1, linePtr: lineBefore, line: lineNo}
				c.scanner.Rewind(inner)
				c.advance()
				c.expression()
				if c.parser.hadError {
					return
				}
				innerState := c.scanner.Tell()
				c.scanner.Rewind(beforeExpression)
				c.parser = parserBefore
				i = innerState.start
				which := syntheticToken("str")
				if i < end && src[i] == '!' {
					i++
					switch src[i] {
					case 'r':
						which = syntheticToken("repr")
					case 's':
						which = syntheticToken("str")
					default:
						c.error("Unsupported conversion flag for f-string expression")
						return
					}
					i++
				}
				ind := c.identifierConstant(which)
				c.emitConstantOp(OpGetGlobal, ind)
				c.emitByte(OpSwap)
				c.emitBytes(OpCall, 1)
				if i < end && src[i] == ':' {
					c.error("Format spec not supported in f-string")
					return
				}
				if i >= end || src[i] != '}' {
					c.error("Expected closing } after expression in f-string")
					return
				}
				if atLeastOne {
					c.emitByte(OpAdd)
				}
				atLeastOne = true
				i++
			} else {
				if ch > 127 && isBytes {
					c.error("bytes literal can only contain ASCII characters")
					return
				}
				sb = append(sb, ch)
				i++
			}
		}
		if !(c.match(token.String) || c.match(token.BigString)) {
			break
		}
	}

	if isBytes {
		c.emitConstant(ObjectVal(c.vm.NewBytes(append([]byte(nil), sb...))))
		return
	}
	if !isFormat || len(sb) > 0 || !atLeastOne {
		c.emitConstant(ObjectVal(c.vm.CopyString(string(sb))))
		if atLeastOne {
			c.emitByte(OpAdd)
		}
	}
}

func (c *Compiler) hexEscape(src string, start, end, n int, kind byte) (rune, bool) {
	var value rune
	for i := 0; i < n; i++ {
		if start+i >= end || !isHexDigit(src[start+i]) {
			c.error("truncated \\%c escape", kind)
			return 0, false
		}
		d := src[start+i]
		switch {
		case d >= '0' && d <= '9':
			value = value*16 + rune(d-'0')
		case d >= 'a' && d <= 'f':
			value = value*16 + rune(d-'a'+10)
		default:
			value = value*16 + rune(d-'A'+10)
		}
	}
	if value >= 0x110000 {
		c.error("invalid codepoint in \\%c escape", kind)
		return 0, false
	}
	return value, true
}

func (c *Compiler) lambda(canAssign bool) {
	c.parser.previous = syntheticToken("<lambda>")
	fc := c.initFuncCompiler(typeLambda)
	c.beginScope()

	if !c.check(token.Colon) {
		for {
			c.defineVariable(c.parseVariable("Expect parameter name."))
			c.current.function.RequiredArgs++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.Colon, "expected : after lambda arguments")
	c.expression()

	fn := c.endCompiler()
	ind := c.currentChunk().AddConstant(ObjectVal(fn))
	c.emitConstantOp(OpClosure, ind)
	c.doUpvalues(fc, fn)
}

func (c *Compiler) yield(canAssign bool) {
	if c.current.typ == typeModule {
		c.error("'yield' outside function")
		return
	}
	c.current.function.IsGenerator = true
	if c.check(token.EOL) || c.check(token.EOF) || c.check(token.Semicolon) ||
		c.check(token.RightParen) || c.check(token.RightSquare) {
		c.emitByte(OpNone)
	} else {
		c.parsePrecedence(precOr)
	}
	c.emitByte(OpYield)
}

// block compiles an indented block (or an inline statement after the colon).
// For function bodies a leading string literal becomes the docstring.
func (c *Compiler) block(indentation int, blockName string) {
	if c.match(token.EOL) {
		if c.check(token.Indentation) {
			currentIndentation := c.parser.current.Length
			if currentIndentation <= indentation {
				return
			}
			c.advance()
			if blockName == "def" && (c.match(token.String) || c.match(token.BigString)) {
				before := len(c.currentChunk().Code)
				c.stringExpr(false)
				c.rollbackChunk(before)
				constants := c.currentChunk().Constants
				if len(constants) > 0 {
					if s, ok := constants[len(constants)-1].Obj.(*String); ok {
						c.current.function.Docstring = s
					}
				}
				c.consume(token.EOL, "Garbage after docstring definition")
				if !c.check(token.Indentation) || c.parser.current.Length != currentIndentation {
					c.error("Expected at least one statement in function with docstring.")
				}
				c.advance()
			}
			c.declaration()
			for c.check(token.Indentation) {
				if c.parser.current.Length < currentIndentation {
					break
				}
				c.advance()
				c.declaration()
				if c.check(token.EOL) {
					c.advance()
				}
			}
		}
	} else {
		c.statement()
	}
}

// function compiles a parameter list and body into a new code object and
// emits the closure for it. Keyword argument defaults compile inline as
// `if param is SENTINEL: param = DEFAULT` so the VM only fills slots.
func (c *Compiler) function(typ funcType, blockWidth int) {
	fc := c.initFuncCompiler(typ)
	c.beginScope()

	if isMethodType(typ) {
		c.current.function.RequiredArgs = 1
	}

	hasCollectors := 0

	c.consume(token.LeftParen, "Expected start of parameter list after function name.")
	c.startEatingWhitespace()
	if !c.check(token.RightParen) {
		for {
			if c.match(token.Self) {
				if !isMethodType(typ) {
					c.error("Invalid use of `self` as a function parameter.")
				}
				if !c.match(token.Comma) {
					break
				}
				continue
			}
			if c.match(token.Asterisk) || c.check(token.Pow) {
				if c.match(token.Pow) {
					if hasCollectors == 2 {
						c.error("Duplicate ** in parameter list.")
						return
					}
					hasCollectors = 2
					c.current.function.CollectsKeywords = true
				} else {
					if hasCollectors != 0 {
						c.error("Syntax error.")
						return
					}
					hasCollectors = 1
					c.current.function.CollectsArguments = true
				}
				c.defineVariable(c.parseVariable("Expect parameter name."))
				myLocal := len(c.current.locals) - 1
				c.emitConstantOp(OpGetLocal, myLocal)
				c.emitConstant(KwargsVal(0))
				c.emitByte(OpIs)
				jumpIndex := c.emitJump(OpJumpIfFalse)
				c.beginScope()
				builder := "listOf"
				if hasCollectors == 2 {
					builder = "dictOf"
				}
				c.namedVariable(syntheticToken(builder), false)
				c.emitBytes(OpCall, 0)
				c.emitConstantOp(OpSetLocal, myLocal)
				c.emitByte(OpPop)
				c.endScope()
				c.patchJump(jumpIndex)
				c.emitByte(OpPop)
				if !c.match(token.Comma) {
					break
				}
				continue
			}
			c.defineVariable(c.parseVariable("Expect parameter name."))
			if c.match(token.Equal) {
				// Defaults run at call time: unsupplied keyword slots hold
				// the kwargs sentinel and this prologue replaces them.
				myLocal := len(c.current.locals) - 1
				c.emitConstantOp(OpGetLocal, myLocal)
				c.emitConstant(KwargsVal(0))
				c.emitByte(OpEqual)
				jumpIndex := c.emitJump(OpJumpIfFalse)
				c.beginScope()
				c.expression()
				c.emitConstantOp(OpSetLocal, myLocal)
				c.emitByte(OpPop)
				c.endScope()
				c.patchJump(jumpIndex)
				c.emitByte(OpPop)
				c.current.function.KeywordArgs++
			} else {
				c.current.function.RequiredArgs++
			}
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.stopEatingWhitespace()
	c.consume(token.RightParen, "Expected end of parameter list.")
	c.consume(token.Colon, "Expected colon after function signature.")
	c.block(blockWidth, "def")

	fn := c.endCompiler()
	ind := c.currentChunk().AddConstant(ObjectVal(fn))
	c.emitConstantOp(OpClosure, ind)
	c.doUpvalues(fc, fn)
}

// method compiles one entry of a class body: a method definition, a class
// field, a decorated method, or pass.
func (c *Compiler) method(blockWidth int) {
	if c.match(token.EOL) {
		return
	}
	if c.check(token.At) {
		c.decorator(0, typeMethod)
	} else if c.match(token.Identifier) {
		c.emitConstantOp(OpDup, 0)
		ind := c.identifierConstant(c.parser.previous)
		c.consume(token.Equal, "Class field must have value.")
		c.expression()
		c.emitConstantOp(OpSetProperty, ind)
		c.emitByte(OpPop)
		if !c.match(token.EOL) && !c.match(token.EOF) {
			c.errorAtCurrent("Expected end of line after class attribute declaration")
		}
	} else if c.match(token.Pass) {
		c.consume(token.EOL, "Expected linefeed after 'pass' in class body.")
	} else {
		c.consume(token.Def, "expected a definition, got nothing")
		c.consume(token.Identifier, "expected method name")
		ind := c.identifierConstant(c.parser.previous)
		typ := typeMethod
		if c.text(c.parser.previous) == "__init__" {
			typ = typeInit
		}
		c.function(typ, blockWidth)
		c.emitConstantOp(OpMethod, ind)
	}
}

// classDeclaration compiles `class Name(Base):` into a synthetic function
// that builds the class, binds super, attaches methods, finalizes, and
// returns it; the enclosing code calls that closure immediately.
func (c *Compiler) classDeclaration() Token {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // class

	c.consume(token.Identifier, "Expected class name.")
	fc := c.initFuncCompiler(typeLambda)
	c.beginScope()

	className := c.parser.previous
	constInd := c.identifierConstant(c.parser.previous)
	c.declareVariable()

	c.emitConstantOp(OpClass, constInd)
	c.defineVariable(constInd)

	cc := &classCompiler{name: c.parser.previous, enclosing: c.currentClass}
	c.currentClass = cc
	hasSuperclass := false

	if c.match(token.LeftParen) {
		c.startEatingWhitespace()
		if !c.check(token.RightParen) {
			c.expression()
			hasSuperclass = true
		}
		c.stopEatingWhitespace()
		c.consume(token.RightParen, "Expected ) after superclass.")
	}

	if !hasSuperclass {
		objectToken := syntheticToken("object")
		ind := c.identifierConstant(objectToken)
		c.emitConstantOp(OpGetGlobal, ind)
	}

	c.beginScope()
	c.addLocal(syntheticToken("super"))
	c.defineVariable(0)

	if hasSuperclass {
		c.namedVariable(className, false)
		c.emitByte(OpInherit)
	}

	c.namedVariable(className, false)

	c.consume(token.Colon, "Expected colon after class")
	if c.match(token.EOL) {
		if c.check(token.Indentation) {
			currentIndentation := c.parser.current.Length
			if currentIndentation <= blockWidth {
				c.errorAtCurrent("Unexpected indentation level for class")
			}
			c.advance()
			if c.match(token.String) || c.match(token.BigString) {
				c.stringExpr(false)
				c.emitByte(OpDocstring)
				c.consume(token.EOL, "Garbage after docstring definition")
				if !c.check(token.Indentation) || c.parser.current.Length != currentIndentation {
					goto popClass
				}
				c.advance()
			}
			c.method(currentIndentation)
			for c.check(token.Indentation) {
				if c.parser.current.Length < currentIndentation {
					break
				}
				c.advance()
				c.method(currentIndentation)
			}
		}
	}
popClass:
	c.emitByte(OpFinalize)
	c.currentClass = c.currentClass.enclosing
	makeclass := c.endCompiler()
	indFunc := c.currentChunk().AddConstant(ObjectVal(makeclass))
	c.emitConstantOp(OpClosure, indFunc)
	c.doUpvalues(fc, makeclass)
	c.emitBytes(OpCall, 0)

	return className
}

// decorator handles @name chains as well as the special @staticmethod and
// @property forms inside class bodies.
func (c *Compiler) decorator(level int, typ funcType) Token {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // @

	var funcName Token
	haveCallable := false

	atStatic := syntheticToken("staticmethod")
	atProperty := syntheticToken("property")
	if c.identifiersEqual(atStatic, c.parser.current) {
		if level != 0 || typ != typeMethod {
			c.error("Invalid use of @staticmethod, which must be the top decorator of a class method.")
			return funcName
		}
		c.advance()
		typ = typeStatic
		c.emitConstantOp(OpDup, 0)
	} else if c.identifiersEqual(atProperty, c.parser.current) {
		if level != 0 || typ != typeMethod {
			c.error("Invalid use of @property, which must be the top decorator of a class method.")
			return funcName
		}
		c.advance()
		typ = typeProperty
		c.emitConstantOp(OpDup, 0)
	} else {
		c.expression()
		haveCallable = true
	}

	c.consume(token.EOL, "Expected line feed after decorator.")
	if blockWidth > 0 {
		c.consume(token.Indentation, "Expected next line after decorator to have same indentation.")
		if c.parser.previous.Length != blockWidth {
			c.error("Expected next line after decorator to have same indentation.")
		}
	}

	if c.check(token.Def) {
		c.advance()
		c.consume(token.Identifier, "Expected function name.")
		funcName = c.parser.previous
		if typ == typeMethod && c.text(funcName) == "__init__" {
			typ = typeInit
		}
		c.function(typ, blockWidth)
	} else if c.check(token.At) {
		funcName = c.decorator(level+1, typ)
	} else if c.check(token.Class) {
		if typ != typeFunction {
			c.error("Invalid decorator applied to class")
			return funcName
		}
		funcName = c.classDeclaration()
	} else {
		c.error("Expected a function declaration or another decorator.")
		return funcName
	}

	if haveCallable {
		c.emitBytes(OpCall, 1)
	}

	if level == 0 {
		switch typ {
		case typeFunction:
			c.parser.previous = funcName
			c.declareVariable()
			ind := 0
			if c.current.scopeDepth == 0 {
				ind = c.identifierConstant(funcName)
			}
			c.defineVariable(ind)
		case typeStatic:
			ind := c.identifierConstant(funcName)
			c.emitConstantOp(OpSetProperty, ind)
			c.emitByte(OpPop)
		case typeProperty:
			c.emitByte(OpCreateProperty)
			ind := c.identifierConstant(funcName)
			c.emitConstantOp(OpSetProperty, ind)
			c.emitByte(OpPop)
		default:
			ind := c.identifierConstant(funcName)
			c.emitConstantOp(OpMethod, ind)
		}
	}

	return funcName
}

func (c *Compiler) defDeclaration() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // def

	global := c.parseVariable("Expected function name.")
	c.markInitialized()
	c.function(typeFunction, blockWidth)
	c.defineVariable(global)
}

// letDeclaration introduces locals (or module globals at depth zero),
// supporting multiple targets with tuple packing and unpacking.
func (c *Compiler) letDeclaration() {
	var args []int
	for {
		ind := c.parseVariable("Expected variable name.")
		if c.current.scopeDepth > 0 {
			args = append(args, len(c.current.locals)-1)
		} else {
			args = append(args, ind)
		}
		if !c.match(token.Comma) {
			break
		}
	}

	if c.match(token.Equal) {
		expressionCount := 0
		for {
			expressionCount++
			c.expression()
			if !c.match(token.Comma) {
				break
			}
		}
		if expressionCount == 1 && len(args) > 1 {
			c.emitConstantOp(OpUnpack, len(args))
		} else if expressionCount == len(args) {
			// Nothing to reshape.
		} else if expressionCount > 1 && len(args) == 1 {
			c.emitConstantOp(OpTuple, expressionCount)
		} else {
			c.error("Invalid sequence unpack in 'let' statement")
		}
	} else {
		for range args {
			c.emitByte(OpNone)
		}
	}

	if c.current.scopeDepth == 0 {
		for i := len(args); i > 0; i-- {
			c.defineVariable(args[i-1])
		}
	} else {
		for i := 0; i < len(args); i++ {
			c.current.locals[len(c.current.locals)-1-i].depth = c.current.scopeDepth
		}
	}

	if !c.match(token.EOL) && !c.match(token.EOF) {
		c.error("Expected end of line after 'let' statement.")
	}
}

func (c *Compiler) synchronize() {
	for c.parser.current.Type != token.EOF {
		if c.parser.previous.Type == token.EOL {
			c.parser.panicMode = false
			return
		}
		switch c.parser.current.Type {
		case token.Class, token.Def, token.Let, token.For,
			token.If, token.While, token.Return:
			c.parser.panicMode = false
			return
		}
		c.advance()
	}
	c.parser.panicMode = false
}

func (c *Compiler) declaration() {
	if c.check(token.Def) {
		c.defDeclaration()
	} else if c.match(token.Let) {
		c.letDeclaration()
	} else if c.check(token.Class) {
		className := c.classDeclaration()
		classConst := c.identifierConstant(className)
		c.parser.previous = className
		c.declareVariable()
		c.defineVariable(classConst)
	} else if c.check(token.At) {
		c.decorator(0, typeFunction)
	} else if c.match(token.EOL) || c.match(token.EOF) {
		return
	} else if c.check(token.Indentation) {
		return
	} else {
		c.statement()
	}

	if c.parser.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emitByte(OpPop)
}

func (c *Compiler) ifStatement() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	myPrevious := c.parser.previous
	c.advance() // if

	c.expression()
	c.consume(token.Colon, "Expect ':' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(OpPop)

	c.beginScope()
	c.block(blockWidth, "if")
	c.endScope()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitByte(OpPop)

	// Check the next line for a matching elif/else; if the statement there
	// is unrelated, push its token back.
	if blockWidth == 0 || (c.check(token.Indentation) && c.parser.current.Length == blockWidth) {
		var previous Token
		if blockWidth > 0 {
			previous = c.parser.previous
			c.advance()
		}
		if c.match(token.Else) || c.check(token.Elif) {
			if c.parser.current.Type == token.Elif || c.check(token.If) {
				c.parser.previous = myPrevious
				c.ifStatement()
			} else {
				c.consume(token.Colon, "Expect ':' after else.")
				c.beginScope()
				c.block(blockWidth, "else")
				c.endScope()
			}
		} else if !c.check(token.EOF) && !c.check(token.EOL) {
			c.scanner.Unget(c.parser.current)
			c.parser.current = c.parser.previous
			if blockWidth > 0 {
				c.parser.previous = previous
			}
		} else {
			c.advance()
		}
	}

	c.patchJump(elseJump)
}

func (c *Compiler) breakStatement() {
	for i := c.current.loopLocalCount; i < len(c.current.locals); i++ {
		c.emitByte(OpPop)
	}
	c.current.breaks = append(c.current.breaks, c.emitJump(OpJump))
}

func (c *Compiler) continueStatement() {
	for i := c.current.loopLocalCount; i < len(c.current.locals); i++ {
		c.emitByte(OpPop)
	}
	c.current.continues = append(c.current.continues, c.emitJump(OpJump))
}

func (c *Compiler) whileStatement() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // while

	loopStart := len(c.currentChunk().Code)

	c.expression()
	c.consume(token.Colon, "Expect ':' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(OpPop)

	oldLocalCount := c.current.loopLocalCount
	c.current.loopLocalCount = len(c.current.locals)
	c.beginScope()
	c.block(blockWidth, "while")
	c.endScope()

	c.current.loopLocalCount = oldLocalCount
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitByte(OpPop)
	c.patchBreaks(loopStart)
}

// forStatement compiles both iterator loops (for x in y:) and the C-style
// init; cond; step form. Iterator loops drive the callable returned by
// __iter__ until it returns itself.
func (c *Compiler) forStatement() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // for

	c.beginScope()

	loopInd := len(c.current.locals)
	varCount := 0
	matchedEquals := false
	for {
		ind := c.parseVariable("Expected name for loop iterator.")
		if c.match(token.Equal) {
			matchedEquals = true
			c.expression()
		} else {
			c.emitByte(OpNone)
		}
		c.defineVariable(ind)
		varCount++
		if !c.match(token.Comma) {
			break
		}
	}

	var loopStart, exitJump int

	if !matchedEquals && c.match(token.In) {
		c.beginScope()
		c.expression()
		c.endScope()

		indLoopIter := len(c.current.locals)
		c.addLocal(syntheticToken(""))
		c.defineVariable(indLoopIter)

		c.emitByte(OpInvokeIter)
		c.emitConstantOp(OpSetLocal, indLoopIter)

		loopStart = len(c.currentChunk().Code)

		c.emitConstantOp(OpGetLocal, indLoopIter)
		c.emitBytes(OpCall, 0)
		c.emitConstantOp(OpSetLocal, loopInd)
		c.emitConstantOp(OpGetLocal, indLoopIter)
		c.emitByte(OpIs)
		exitJump = c.emitJump(OpJumpIfTrue)
		c.emitByte(OpPop)

		if varCount > 1 {
			c.emitConstantOp(OpGetLocal, loopInd)
			c.emitConstantOp(OpUnpack, varCount)
			for i := loopInd + varCount - 1; i >= loopInd; i-- {
				c.emitConstantOp(OpSetLocal, i)
				c.emitByte(OpPop)
			}
		}
	} else {
		c.consume(token.Semicolon, "expect ; after var declaration in for loop")
		loopStart = len(c.currentChunk().Code)

		c.beginScope()
		for {
			c.expression()
			if !c.match(token.Comma) {
				break
			}
		}
		c.endScope()
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitByte(OpPop)

		if c.check(token.Semicolon) {
			c.advance()
			bodyJump := c.emitJump(OpJump)
			incrementStart := len(c.currentChunk().Code)
			c.beginScope()
			for {
				c.expression()
				if !c.match(token.Comma) {
					break
				}
			}
			c.endScope()
			c.emitByte(OpPop)

			c.emitLoop(loopStart)
			loopStart = incrementStart
			c.patchJump(bodyJump)
		}
	}

	c.consume(token.Colon, "expect :")

	oldLocalCount := c.current.loopLocalCount
	c.current.loopLocalCount = len(c.current.locals)
	c.beginScope()
	c.block(blockWidth, "for")
	c.endScope()

	c.current.loopLocalCount = oldLocalCount
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitByte(OpPop)
	c.patchBreaks(loopStart)

	c.endScope()
}

// withStatement installs a with handler around the block. The exception
// slot and handler slot are declared as unnamed locals so scope exit keeps
// the stack balanced on every path. Additional comma-separated context
// managers nest.
func (c *Compiler) withStatement() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // with
	c.withInner(blockWidth)
}

func (c *Compiler) withInner(blockWidth int) {
	c.beginScope()
	c.expression()

	if c.match(token.As) {
		c.consume(token.Identifier, "Expected variable name after 'as'")
		c.declareVariable()
		c.markInitialized()
	} else {
		c.addLocal(syntheticToken(""))
		c.markInitialized()
	}

	// Slots for the exception and the handler, pushed by PUSH_WITH.
	c.addLocal(syntheticToken(""))
	c.markInitialized()
	c.addLocal(syntheticToken(""))
	withJump := c.emitJump(OpPushWith)
	c.markInitialized()

	if c.match(token.Comma) {
		c.withInner(blockWidth)
	} else {
		c.consume(token.Colon, "Expected ':' after with statement")
		c.beginScope()
		c.block(blockWidth, "with")
		c.endScope()
	}

	c.patchJump(withJump)
	c.emitByte(OpCleanupWith)

	// Scope exit pops the handler, the exception slot, and the manager.
	c.endScope()
}

// tryStatement installs a try handler; the except block, if any, may filter
// by exception class and bind the exception to a name.
func (c *Compiler) tryStatement() {
	blockWidth := 0
	if c.parser.previous.Type == token.Indentation {
		blockWidth = c.parser.previous.Length
	}
	c.advance() // try
	c.consume(token.Colon, "Expect ':' after try.")

	c.beginScope()
	// Slots for the exception and the handler, pushed by PUSH_TRY.
	exceptionSlot := len(c.current.locals)
	c.addLocal(syntheticToken("exception"))
	c.markInitialized()
	c.addLocal(syntheticToken(""))
	tryJump := c.emitJump(OpPushTry)
	c.markInitialized()

	c.beginScope()
	c.block(blockWidth, "try")
	c.endScope()

	successJump := c.emitJump(OpJump)
	c.patchJump(tryJump)

	if blockWidth == 0 || (c.check(token.Indentation) && c.parser.current.Length == blockWidth) {
		var previous Token
		if blockWidth > 0 {
			previous = c.parser.previous
			c.advance()
		}
		if c.match(token.Except) {
			c.beginScope()
			if !c.check(token.Colon) && !c.check(token.As) {
				// except SomeError [as name]: filter by isinstance and
				// re-raise on mismatch.
				c.expression()
				c.emitByte(OpFilterExcept)
				matchJump := c.emitJump(OpJumpIfTrue)
				c.emitByte(OpPop)
				c.emitConstantOp(OpGetLocal, exceptionSlot)
				c.emitByte(OpRaise)
				c.patchJump(matchJump)
				c.emitByte(OpPop)
			}
			if c.match(token.As) {
				c.consume(token.Identifier, "Expected name after 'as'")
				c.emitConstantOp(OpGetLocal, exceptionSlot)
				c.declareVariable()
				c.markInitialized()
			}
			c.consume(token.Colon, "Expect ':' after except.")
			c.beginScope()
			c.block(blockWidth, "except")
			c.endScope()
			c.endScope()
		} else if !c.check(token.EOL) && !c.check(token.EOF) {
			c.scanner.Unget(c.parser.current)
			c.parser.current = c.parser.previous
			if blockWidth > 0 {
				c.parser.previous = previous
			}
		} else {
			c.advance()
		}
	}

	c.patchJump(successJump)
	c.endScope()
}

func (c *Compiler) raiseStatement() {
	c.expression()
	c.emitByte(OpRaise)
}

func (c *Compiler) returnStatement() {
	if c.check(token.EOL) || c.check(token.EOF) {
		c.emitReturn()
	} else {
		if c.current.typ == typeInit {
			c.error("Can not return values from __init__")
		}
		c.expression()
		c.emitByte(OpReturn)
	}
}

// importModule collects a dotted module path and emits IMPORT for it.
func (c *Compiler) importModule() (Token, int) {
	c.consume(token.Identifier, "Expected module name")
	name := c.parser.previous
	text := c.text(name)
	for c.match(token.Dot) {
		c.consume(token.Identifier, "Expected module path element after '.'")
		text = text + "." + c.text(c.parser.previous)
	}
	full := syntheticToken(text)
	ind := c.currentChunk().AddConstant(ObjectVal(c.vm.CopyString(text)))
	c.emitConstantOp(OpImport, ind)
	return full, ind
}

func (c *Compiler) importStatement() {
	for {
		firstName := c.parser.current
		startOfName, ind := c.importModule()
		if c.match(token.As) {
			c.consume(token.Identifier, "Expected identifier after `as`")
			ind = c.identifierConstant(c.parser.previous)
		} else if c.text(startOfName) != c.text(firstName) {
			// Imported a.b.c; bind the root module a instead.
			c.emitByte(OpPop)
			c.parser.previous = firstName
			ind = c.identifierConstant(firstName)
			c.emitConstantOp(OpImport, ind)
		}
		c.declareVariable()
		c.defineVariable(ind)
		if !c.match(token.Comma) {
			break
		}
	}
}

func (c *Compiler) fromImportStatement() {
	c.importModule()
	c.consume(token.Import, "Expected 'import' after module name")
	for {
		c.consume(token.Identifier, "Expected member name")
		member := c.identifierConstant(c.parser.previous)
		c.emitConstantOp(OpDup, 0)
		c.emitConstantOp(OpImportFrom, member)
		if c.match(token.As) {
			c.consume(token.Identifier, "Expected identifier after `as`")
			member = c.identifierConstant(c.parser.previous)
		}
		if c.current.scopeDepth > 0 {
			c.emitByte(OpSwap)
		}
		c.declareVariable()
		c.defineVariable(member)
		if !c.match(token.Comma) {
			break
		}
	}
	c.emitByte(OpPop)
}

func (c *Compiler) delStatement() {
	for {
		c.inDel = 1
		c.expression()
		if !c.match(token.Comma) {
			break
		}
	}
	c.inDel = 0
}

func (c *Compiler) statement() {
	if c.match(token.EOL) || c.match(token.EOF) {
		return
	}

	switch {
	case c.check(token.If):
		c.ifStatement()
	case c.check(token.While):
		c.whileStatement()
	case c.check(token.For):
		c.forStatement()
	case c.check(token.Try):
		c.tryStatement()
	case c.check(token.With):
		c.withStatement()
	default:
		for {
			if c.match(token.Raise) {
				c.raiseStatement()
			} else if c.match(token.Return) {
				c.returnStatement()
			} else if c.match(token.Import) {
				c.importStatement()
			} else if c.match(token.From) {
				c.fromImportStatement()
			} else if c.match(token.Break) {
				c.breakStatement()
			} else if c.match(token.Continue) {
				c.continueStatement()
			} else if c.match(token.Del) {
				c.delStatement()
			} else if c.match(token.Pass) {
				// Nothing.
			} else {
				c.expressionStatement()
			}
			if c.match(token.Semicolon) {
				continue
			}
			if !c.match(token.EOL) && !c.match(token.EOF) {
				c.errorAtCurrent("Unexpected token after statement.")
			}
			break
		}
	}
}

// compile runs the compiler over the whole source buffer and returns the
// module code object, or nil if errors were raised.
func (c *Compiler) compile() *Function {
	c.vm.compileMu.Lock()
	defer c.vm.compileMu.Unlock()

	c.enclosingCompiler = c.vm.compilers
	c.vm.compilers = c
	defer func() { c.vm.compilers = c.enclosingCompiler }()

	c.initFuncCompiler(typeModule)

	c.advance()

	// A leading string literal becomes the module docstring.
	if c.thread.module != nil {
		docKey := ObjectVal(c.vm.CopyString("__doc__"))
		if _, ok := c.thread.module.Fields.Get(docKey); !ok {
			if c.match(token.String) || c.match(token.BigString) {
				c.stringExpr(false)
				constants := c.currentChunk().Constants
				if len(constants) > 0 {
					if s, ok := constants[len(constants)-1].Obj.(*String); ok {
						c.thread.module.Fields.Set(docKey, ObjectVal(s))
					}
				}
				c.emitByte(OpPop)
				c.consume(token.EOL, "Garbage after docstring")
			} else {
				c.thread.module.Fields.Set(docKey, NoneVal())
			}
		}
	}

	for !c.match(token.EOF) {
		c.declaration()
		if c.check(token.EOL) || c.check(token.Indentation) || c.check(token.EOF) {
			c.advance()
		}
	}

	fn := c.endCompiler()
	if c.parser.hadError {
		return nil
	}
	return fn
}

// CompileError is the Go-level error returned when compilation fails; it
// carries the position information attached to the syntax error.
type CompileError struct {
	Message string
	File    string
	Line    int
	Column  int
	Width   int
	Source  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("Compile Error: %s\n\tat %s:%d:%d", e.Message, e.File, e.Line, e.Column)
}

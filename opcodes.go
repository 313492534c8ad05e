// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

// Opcode represents a single byte operation code.
//
// The opcode table is divided in four parts by the top two bits of the
// opcode byte, which encode the number of operand bytes that follow: 0, 1,
// 2, or 3. One- and three-byte opcodes are paired as short and long forms
// sharing the low six bits; the compiler emits the short form whenever the
// operand fits in one byte. Multi-byte operands are big-endian. This
// numbering is exposed to tooling and must stay stable.
type Opcode = byte

// Zero-operand opcodes.
const (
	OpAdd Opcode = iota + 1
	OpBitAnd
	OpBitNegate
	OpBitOr
	OpBitXor
	OpCleanupWith
	OpCloseUpvalue
	OpDivide
	OpDocstring
	OpEqual
	OpFalse
	OpFinalize
	OpGreater
	OpInherit
	OpInvokeDelete
	OpInvokeDelSlice
	OpInvokeGetSlice
	OpInvokeGetter
	OpInvokeSetSlice
	OpInvokeSetter
	OpIs
	OpLess
	OpModulo
	OpMultiply
	OpNegate
	OpNone
	OpNot
	OpPop
	OpPow
	OpRaise
	OpReturn
	OpShiftLeft
	OpShiftRight
	OpSubtract
	OpSwap
	OpTrue
	OpFilterExcept
	OpInvokeIter
	OpInvokeContains
	OpYield
	OpCallStack
	OpCreateProperty
)

// One-byte-operand opcodes; each has a three-byte long form at +128.
const (
	OpCall Opcode = iota + 64
	OpClass
	OpClosure
	OpConstant
	OpDefineGlobal
	OpDelGlobal
	OpDelProperty
	OpDup
	OpExpandArgs
	OpGetGlobal
	OpGetLocal
	OpGetProperty
	OpGetSuper
	OpGetUpvalue
	OpImport
	OpImportFrom
	OpInc
	OpKwargs
	OpMethod
	OpSetGlobal
	OpSetLocal
	OpSetProperty
	OpSetUpvalue
	OpTuple
	OpUnpack
)

// Two-byte-operand opcodes: jumps and handler installs.
const (
	OpJumpIfFalse Opcode = iota + 128
	OpJumpIfTrue
	OpJump
	OpLoop
	OpPushTry
	OpPushWith
)

// Long forms of the one-byte-operand opcodes, carrying three-byte operands.
const (
	OpCallLong Opcode = iota + 192
	OpClassLong
	OpClosureLong
	OpConstantLong
	OpDefineGlobalLong
	OpDelGlobalLong
	OpDelPropertyLong
	OpDupLong
	OpExpandArgsLong
	OpGetGlobalLong
	OpGetLocalLong
	OpGetPropertyLong
	OpGetSuperLong
	OpGetUpvalueLong
	OpImportLong
	OpImportFromLong
	OpIncLong
	OpKwargsLong
	OpMethodLong
	OpSetGlobalLong
	OpSetLocalLong
	OpSetPropertyLong
	OpSetUpvalueLong
	OpTupleLong
	OpUnpackLong
)

// operandBytes returns the number of operand bytes following op, derived
// from the top two bits of the opcode.
func operandBytes(op Opcode) int {
	switch op >> 6 {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	}
	return 0
}

// OpcodeNames maps opcodes to display names for the disassembler and trace
// consumers.
var OpcodeNames = map[Opcode]string{
	OpAdd:            "ADD",
	OpBitAnd:         "BITAND",
	OpBitNegate:      "BITNEGATE",
	OpBitOr:          "BITOR",
	OpBitXor:         "BITXOR",
	OpCleanupWith:    "CLEANUP_WITH",
	OpCloseUpvalue:   "CLOSE_UPVALUE",
	OpDivide:         "DIVIDE",
	OpDocstring:      "DOCSTRING",
	OpEqual:          "EQUAL",
	OpFalse:          "FALSE",
	OpFinalize:       "FINALIZE",
	OpGreater:        "GREATER",
	OpInherit:        "INHERIT",
	OpInvokeDelete:   "INVOKE_DELETE",
	OpInvokeDelSlice: "INVOKE_DELSLICE",
	OpInvokeGetSlice: "INVOKE_GETSLICE",
	OpInvokeGetter:   "INVOKE_GETTER",
	OpInvokeSetSlice: "INVOKE_SETSLICE",
	OpInvokeSetter:   "INVOKE_SETTER",
	OpIs:             "IS",
	OpLess:           "LESS",
	OpModulo:         "MODULO",
	OpMultiply:       "MULTIPLY",
	OpNegate:         "NEGATE",
	OpNone:           "NONE",
	OpNot:            "NOT",
	OpPop:            "POP",
	OpPow:            "POW",
	OpRaise:          "RAISE",
	OpReturn:         "RETURN",
	OpShiftLeft:      "SHIFTLEFT",
	OpShiftRight:     "SHIFTRIGHT",
	OpSubtract:       "SUBTRACT",
	OpSwap:           "SWAP",
	OpTrue:           "TRUE",
	OpFilterExcept:   "FILTER_EXCEPT",
	OpInvokeIter:     "INVOKE_ITER",
	OpInvokeContains: "INVOKE_CONTAINS",
	OpYield:          "YIELD",
	OpCallStack:      "CALL_STACK",
	OpCreateProperty: "CREATE_PROPERTY",

	OpCall:           "CALL",
	OpClass:          "CLASS",
	OpClosure:        "CLOSURE",
	OpConstant:       "CONSTANT",
	OpDefineGlobal:   "DEFINE_GLOBAL",
	OpDelGlobal:      "DEL_GLOBAL",
	OpDelProperty:    "DEL_PROPERTY",
	OpDup:            "DUP",
	OpExpandArgs:     "EXPAND_ARGS",
	OpGetGlobal:      "GET_GLOBAL",
	OpGetLocal:       "GET_LOCAL",
	OpGetProperty:    "GET_PROPERTY",
	OpGetSuper:       "GET_SUPER",
	OpGetUpvalue:     "GET_UPVALUE",
	OpImport:         "IMPORT",
	OpImportFrom:     "IMPORT_FROM",
	OpInc:            "INC",
	OpKwargs:         "KWARGS",
	OpMethod:         "METHOD",
	OpSetGlobal:      "SET_GLOBAL",
	OpSetLocal:       "SET_LOCAL",
	OpSetProperty:    "SET_PROPERTY",
	OpSetUpvalue:     "SET_UPVALUE",
	OpTuple:          "TUPLE",
	OpUnpack:         "UNPACK",

	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpJumpIfTrue:  "JUMP_IF_TRUE",
	OpJump:        "JUMP",
	OpLoop:        "LOOP",
	OpPushTry:     "PUSH_TRY",
	OpPushWith:    "PUSH_WITH",

	OpCallLong:           "CALL_LONG",
	OpClassLong:          "CLASS_LONG",
	OpClosureLong:        "CLOSURE_LONG",
	OpConstantLong:       "CONSTANT_LONG",
	OpDefineGlobalLong:   "DEFINE_GLOBAL_LONG",
	OpDelGlobalLong:      "DEL_GLOBAL_LONG",
	OpDelPropertyLong:    "DEL_PROPERTY_LONG",
	OpDupLong:            "DUP_LONG",
	OpExpandArgsLong:     "EXPAND_ARGS_LONG",
	OpGetGlobalLong:      "GET_GLOBAL_LONG",
	OpGetLocalLong:       "GET_LOCAL_LONG",
	OpGetPropertyLong:    "GET_PROPERTY_LONG",
	OpGetSuperLong:       "GET_SUPER_LONG",
	OpGetUpvalueLong:     "GET_UPVALUE_LONG",
	OpImportLong:         "IMPORT_LONG",
	OpImportFromLong:     "IMPORT_FROM_LONG",
	OpIncLong:            "INC_LONG",
	OpKwargsLong:         "KWARGS_LONG",
	OpMethodLong:         "METHOD_LONG",
	OpSetGlobalLong:      "SET_GLOBAL_LONG",
	OpSetLocalLong:       "SET_LOCAL_LONG",
	OpSetPropertyLong:    "SET_PROPERTY_LONG",
	OpSetUpvalueLong:     "SET_UPVALUE_LONG",
	OpTupleLong:  "TUPLE_LONG",
	OpUnpackLong: "UNPACK_LONG",
}

// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"io"
)

// DisassembleChunk writes a human readable listing of a code object to w.
func DisassembleChunk(w io.Writer, fn *Function, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	offset := 0
	for offset < len(fn.Chunk.Code) {
		offset = DisassembleInstruction(w, fn, offset)
	}
}

// DisassembleInstruction writes one instruction and returns the offset of
// the next one.
func DisassembleInstruction(w io.Writer, fn *Function, offset int) int {
	chunk := &fn.Chunk
	fmt.Fprintf(w, "%04d ", offset)
	line := chunk.LineNumber(offset)
	if offset > 0 && line == chunk.LineNumber(offset-1) {
		fmt.Fprintf(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := chunk.Code[offset]
	name, ok := OpcodeNames[op]
	if !ok {
		fmt.Fprintf(w, "Unknown opcode %d\n", op)
		return offset + 1
	}

	width := operandBytes(op)
	switch width {
	case 0:
		fmt.Fprintf(w, "%-16s\n", name)
		return offset + 1
	case 2:
		operand := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		target := offset + 3 + operand
		if op == OpLoop {
			target = offset + 3 - operand
		}
		fmt.Fprintf(w, "%-16s %4d -> %d\n", name, operand, target)
		return offset + 3
	default:
		operand := readBytesAt(chunk.Code, offset+1, width)
		next := offset + 1 + width
		switch op {
		case OpConstant, OpConstantLong, OpClass, OpClassLong,
			OpGetGlobal, OpGetGlobalLong, OpSetGlobal, OpSetGlobalLong,
			OpDefineGlobal, OpDefineGlobalLong, OpDelGlobal, OpDelGlobalLong,
			OpGetProperty, OpGetPropertyLong, OpSetProperty, OpSetPropertyLong,
			OpDelProperty, OpDelPropertyLong, OpMethod, OpMethodLong,
			OpImport, OpImportLong, OpImportFrom, OpImportFromLong,
			OpGetSuper, OpGetSuperLong:
			fmt.Fprintf(w, "%-16s %4d '%s'\n", name, operand, chunk.Constants[operand].String())
		case OpClosure, OpClosureLong:
			fmt.Fprintf(w, "%-16s %4d %s\n", name, operand, chunk.Constants[operand].String())
			if inner, ok := chunk.Constants[operand].Obj.(*Function); ok {
				for i := 0; i < inner.UpvalueCount; i++ {
					isLocal := chunk.Code[next]
					next++
					uvWidth := 1
					if i > 255 {
						uvWidth = 3
					}
					index := readBytesAt(chunk.Code, next, uvWidth)
					next += uvWidth
					kind := "upvalue"
					if isLocal != 0 {
						kind = "local"
					}
					fmt.Fprintf(w, "%04d      |                     %s %d\n", next-uvWidth-1, kind, index)
				}
			}
		default:
			fmt.Fprintf(w, "%-16s %4d\n", name, operand)
		}
		return next
	}
}

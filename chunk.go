// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import "sort"

// LineMapEntry maps a chunk offset to the source line that begins there.
// Since a line typically maps to many opcodes, the map stores only the
// starting offsets of lines.
type LineMapEntry struct {
	StartOffset int
	Line        int
}

// Chunk is a contiguous emission of bytecode plus its constant pool and
// line map. Chunks are owned by code objects.
type Chunk struct {
	Code      []byte
	Lines     []LineMapEntry
	Constants []Value
	Filename  *String
}

func (c *Chunk) init() {
	c.Code = make([]byte, 0, 64)
}

// Write appends a byte to the chunk, coalescing repeated lines in the map.
func (c *Chunk) Write(b byte, line int) {
	if len(c.Lines) == 0 || c.Lines[len(c.Lines)-1].Line != line {
		c.Lines = append(c.Lines, LineMapEntry{StartOffset: len(c.Code), Line: line})
	}
	c.Code = append(c.Code, b)
}

// AddConstant appends a value to the constant pool and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LineNumber returns the 1-indexed source line of the instruction at the
// given byte offset by binary-searching the line map for the largest start
// offset not past it.
func (c *Chunk) LineNumber(offset int) int {
	if len(c.Lines) == 0 {
		return 0
	}
	i := sort.Search(len(c.Lines), func(i int) bool {
		return c.Lines[i].StartOffset > offset
	})
	if i == 0 {
		return c.Lines[0].Line
	}
	return c.Lines[i-1].Line
}

// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

import (
	"fmt"
	"strings"
)

// reprValue produces the language repr of a value, dispatching to the
// class's __repr__ slot. The object header's inRepr bit guards against
// self-referential structures: an object already on the repr path renders
// as an ellipsis.
func (t *Thread) reprValue(v Value) Value {
	switch v.Type {
	case ValObject:
		h := v.Obj.Header()
		if h.inRepr {
			return ObjectVal(t.vm.CopyString("..."))
		}
		if s, ok := v.Obj.(*String); ok {
			return ObjectVal(t.vm.CopyString(quoteString(s.Value)))
		}
		cls := t.vm.getType(v)
		if reprer := cls.proto(protoRepr); reprer != nil {
			h.inRepr = true
			t.push(v)
			out := t.callSimple(ObjectVal(reprer), 1)
			h.inRepr = false
			if t.hasException {
				return ObjectVal(t.vm.CopyString(""))
			}
			if out.IsString() {
				return out
			}
			return ObjectVal(t.vm.CopyString("<invalid __repr__>"))
		}
		return ObjectVal(t.vm.CopyString(t.defaultRepr(v)))
	default:
		return ObjectVal(t.vm.CopyString(v.String()))
	}
}

// strValue produces the language str of a value, preferring __str__ and
// falling back to repr.
func (t *Thread) strValue(v Value) Value {
	if v.IsString() {
		return v
	}
	if v.Type == ValObject {
		cls := t.vm.getType(v)
		if tostr := cls.proto(protoStr); tostr != nil {
			t.push(v)
			out := t.callSimple(ObjectVal(tostr), 1)
			if t.hasException {
				return ObjectVal(t.vm.CopyString(""))
			}
			if out.IsString() {
				return out
			}
		}
	}
	return t.reprValue(v)
}

// reprString and strString are convenience forms returning Go strings.
func (t *Thread) reprString(v Value) string { return t.reprValue(v).String() }
func (t *Thread) strString(v Value) string  { return t.strValue(v).String() }

func (t *Thread) defaultRepr(v Value) string {
	switch o := v.Obj.(type) {
	case *Function:
		name := "<unnamed>"
		if o.Name != nil {
			name = o.Name.Value
		}
		return "<function " + name + ">"
	case *Closure:
		name := "<unnamed>"
		if o.Function.Name != nil {
			name = o.Function.Name.Value
		}
		return "<function " + name + ">"
	case *Native:
		return "<built-in function " + o.Name + ">"
	case *BoundMethod:
		return "<bound method>"
	case *Class:
		return "<class '" + o.Name.Value + "'>"
	case *Property:
		return "<property>"
	}
	return fmt.Sprintf("<instance of %s>", t.vm.typeName(v))
}

// quoteString renders a string literal the way the language writes it,
// choosing single quotes unless the contents contain one.
func quoteString(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case quote:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\v':
			sb.WriteString(`\v`)
		case '\033':
			sb.WriteString(`\[`)
		default:
			if c < 0x20 || c == 0x7F {
				sb.WriteString(fmt.Sprintf(`\x%02x`, c))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// encodeRune writes the UTF-8 encoding of r into buf, returning the byte
// count; used by the string escape decoder.
func encodeRune(buf []byte, r rune) int {
	switch {
	case r < 0x80:
		buf[0] = byte(r)
		return 1
	case r < 0x800:
		buf[0] = 0xC0 | byte(r>>6)
		buf[1] = 0x80 | byte(r)&0x3F
		return 2
	case r < 0x10000:
		buf[0] = 0xE0 | byte(r>>12)
		buf[1] = 0x80 | byte(r>>6)&0x3F
		buf[2] = 0x80 | byte(r)&0x3F
		return 3
	default:
		buf[0] = 0xF0 | byte(r>>18)
		buf[1] = 0x80 | byte(r>>12)&0x3F
		buf[2] = 0x80 | byte(r>>6)&0x3F
		buf[3] = 0x80 | byte(r)&0x3F
		return 4
	}
}

// Package value defines the tagged-union Value type shared by the frame
// stack, heap, and interpreter: the operand-stack/field-element domain of
// §3's data model.
package value

import (
	"fmt"

	"github.com/classvm/classvm/internal/descriptor"
)

// Kind discriminates a Value's active field.
type Kind int

const (
	KindInteger Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// HeapRef is a byte offset into the heap slab. Zero denotes null in
// persisted field storage.
type HeapRef uint64

// Value is the tagged union carried on the operand stack, in local
// variables, and in field/array storage.
type Value struct {
	Kind Kind
	I    int32
	L    int64
	F    float32
	D    float64
	Ref  HeapRef
}

func Integer(v int32) Value { return Value{Kind: KindInteger, I: v} }
func Long(v int64) Value    { return Value{Kind: KindLong, L: v} }
func Float(v float32) Value { return Value{Kind: KindFloat, F: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, D: v} }
func Ref(r HeapRef) Value   { return Value{Kind: KindRef, Ref: r} }
func Null() Value           { return Value{Kind: KindNull} }

// IsWide reports whether this value occupies two local-variable slots
// (Long, Double), matching the JVM's categorical width rule.
func (v Value) IsWide() bool { return v.Kind == KindLong || v.Kind == KindDouble }

// IsNullRef reports whether v is a Null value or a zero HeapRef, either of
// which the interpreter treats as a null reference for NPE checks.
func (v Value) IsNullRef() bool {
	return v.Kind == KindNull || (v.Kind == KindRef && v.Ref == 0)
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("int(%d)", v.I)
	case KindLong:
		return fmt.Sprintf("long(%d)", v.L)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.F)
	case KindDouble:
		return fmt.Sprintf("double(%g)", v.D)
	case KindRef:
		return fmt.Sprintf("ref(0x%x)", uint64(v.Ref))
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// DefaultFor returns the JVM default value for a field/array-element kind:
// Integer(0), Long(0), Float(0.0), Double(0.0), or Null.
func DefaultFor(kind descriptor.AllocationType) Value {
	switch kind {
	case descriptor.Boolean, descriptor.Byte, descriptor.Short, descriptor.Char, descriptor.Int:
		return Integer(0)
	case descriptor.Long:
		return Long(0)
	case descriptor.Float:
		return Float(0)
	case descriptor.Double:
		return Double(0)
	case descriptor.Reference:
		return Null()
	default:
		panic(fmt.Sprintf("unknown allocation type %d", kind))
	}
}

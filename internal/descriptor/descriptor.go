// Package descriptor parses JVM field and method descriptor strings into
// interned, dense ids (TypeId / MethodDescId) the method area and
// interpreter can compare cheaply instead of re-parsing strings on the hot
// path.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/classvm/classvm/internal/sym"
)

// AllocationType is the kind of value a descriptor resolves to, mirroring
// the JVM's primitive/reference distinction.
type AllocationType int

const (
	Boolean AllocationType = iota
	Byte
	Short
	Char
	Int
	Long
	Float
	Double
	Reference
)

// ByteSize is the natural storage width of one value of this kind. This is
// the width the heap allocates for fields and array elements; reads widen
// integers to int32 as the JVM requires.
func (a AllocationType) ByteSize() int {
	switch a {
	case Boolean, Byte:
		return 1
	case Short, Char:
		return 2
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	case Reference:
		return 8 // pointer-width HeapRef
	default:
		panic(fmt.Sprintf("unknown allocation type %d", a))
	}
}

// IsWide reports whether a value of this kind occupies two local-variable
// slots / two operand-stack words (Long, Double).
func (a AllocationType) IsWide() bool {
	return a == Long || a == Double
}

func (a AllocationType) String() string {
	switch a {
	case Boolean:
		return "boolean"
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Char:
		return "char"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Reference:
		return "reference"
	default:
		return "invalid"
	}
}

// TypeId is a dense, stable, non-zero index into the Table's type array.
type TypeId uint32

// MethodDescId is a dense, stable, non-zero index into the Table's method
// descriptor array.
type MethodDescId uint32

// Type is one entry of the type table: a resolved field-type descriptor.
type Type struct {
	Kind        AllocationType
	ElementType TypeId  // valid iff Kind == Reference and the descriptor denotes an array
	ClassSym    sym.Sym // valid iff Kind == Reference; zero for arrays
	Descriptor  string
}

// IsArray reports whether this type denotes an array class (descriptor
// begins with '[').
func (t Type) IsArray() bool { return t.ElementType != 0 }

// MethodDescriptor is one entry of the method descriptor table.
type MethodDescriptor struct {
	Params     []TypeId
	Ret        TypeId
	Descriptor string
}

// Table owns the two interning tables described by the spec: descriptor
// string -> TypeId, and method-descriptor string -> MethodDescId. Lookups
// are idempotent: repeated calls with the same string return the same id.
type Table struct {
	interner *sym.Interner

	types      []Type // index 0 unused, dense ids start at 1
	typeByDesc map[string]TypeId

	methods      []MethodDescriptor
	methodByDesc map[string]MethodDescId
}

// NewTable creates an empty descriptor table backed by the given symbol
// interner (class names embedded in reference-type descriptors are interned
// through it).
func NewTable(interner *sym.Interner) *Table {
	return &Table{
		interner:     interner,
		types:        make([]Type, 1), // reserve index 0
		typeByDesc:   make(map[string]TypeId),
		methods:      make([]MethodDescriptor, 1),
		methodByDesc: make(map[string]MethodDescId),
	}
}

// InternType parses (or returns the cached id for) a single field-type
// descriptor: a primitive letter, an array ("[" + component), or a class
// reference ("L" + binary name + ";").
func (t *Table) InternType(descriptor string) (TypeId, error) {
	if id, ok := t.typeByDesc[descriptor]; ok {
		return id, nil
	}
	typ, rest, err := t.parseType(descriptor)
	if err != nil {
		return 0, err
	}
	if rest != "" {
		return 0, fmt.Errorf("descriptor %q has trailing data %q", descriptor, rest)
	}
	typ.Descriptor = descriptor
	t.types = append(t.types, typ)
	id := TypeId(len(t.types) - 1)
	t.typeByDesc[descriptor] = id
	return id, nil
}

// InternMethodDescriptor parses (or returns the cached id for) a method
// descriptor of the form "(params)ret".
func (t *Table) InternMethodDescriptor(descriptor string) (MethodDescId, error) {
	if id, ok := t.methodByDesc[descriptor]; ok {
		return id, nil
	}
	if !strings.HasPrefix(descriptor, "(") {
		return 0, fmt.Errorf("method descriptor %q missing '('", descriptor)
	}
	closeIdx := strings.IndexByte(descriptor, ')')
	if closeIdx < 0 {
		return 0, fmt.Errorf("method descriptor %q missing ')'", descriptor)
	}
	paramStr := descriptor[1:closeIdx]
	retStr := descriptor[closeIdx+1:]

	var params []TypeId
	for paramStr != "" {
		typ, rest, err := t.parseType(paramStr)
		if err != nil {
			return 0, fmt.Errorf("parsing method descriptor %q: %w", descriptor, err)
		}
		typ.Descriptor = paramStr[:len(paramStr)-len(rest)]
		id := t.internParsedType(typ)
		params = append(params, id)
		paramStr = rest
	}

	var retID TypeId
	if retStr == "V" {
		retID = VoidReturn
	} else {
		retType, rest, err := t.parseType(retStr)
		if err != nil {
			return 0, fmt.Errorf("parsing method descriptor %q return type: %w", descriptor, err)
		}
		if rest != "" {
			return 0, fmt.Errorf("method descriptor %q has trailing data after return type", descriptor)
		}
		retType.Descriptor = retStr
		retID = t.internParsedType(retType)
	}

	t.methods = append(t.methods, MethodDescriptor{Params: params, Ret: retID, Descriptor: descriptor})
	id := MethodDescId(len(t.methods) - 1)
	t.methodByDesc[descriptor] = id
	return id, nil
}

func (t *Table) internParsedType(typ Type) TypeId {
	if id, ok := t.typeByDesc[typ.Descriptor]; ok {
		return id
	}
	t.types = append(t.types, typ)
	id := TypeId(len(t.types) - 1)
	t.typeByDesc[typ.Descriptor] = id
	return id
}

// VoidReturn is the reserved TypeId for a "V" (void) method return type. It
// is never stored as a Value kind; callers must special-case it when
// interpreting Ret.
const VoidReturn TypeId = 0

// parseType consumes one field-type descriptor (or "V") from the front of s
// and returns the parsed Type plus whatever remains unconsumed.
func (t *Table) parseType(s string) (Type, string, error) {
	if s == "" {
		return Type{}, "", fmt.Errorf("empty descriptor")
	}
	switch s[0] {
	case 'Z':
		return Type{Kind: Boolean}, s[1:], nil
	case 'B':
		return Type{Kind: Byte}, s[1:], nil
	case 'S':
		return Type{Kind: Short}, s[1:], nil
	case 'C':
		return Type{Kind: Char}, s[1:], nil
	case 'I':
		return Type{Kind: Int}, s[1:], nil
	case 'J':
		return Type{Kind: Long}, s[1:], nil
	case 'F':
		return Type{Kind: Float}, s[1:], nil
	case 'D':
		return Type{Kind: Double}, s[1:], nil
	case 'V':
		return Type{Kind: Reference}, s[1:], nil // caller treats VoidReturn specially
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return Type{}, "", fmt.Errorf("descriptor %q missing ';' after 'L'", s)
		}
		className := s[1:end]
		return Type{Kind: Reference, ClassSym: t.interner.Intern(className)}, s[end+1:], nil
	case '[':
		elem, rest, err := t.parseType(s[1:])
		if err != nil {
			return Type{}, "", fmt.Errorf("descriptor %q: %w", s, err)
		}
		elemDesc := s[1 : len(s)-len(rest)]
		elemID := t.internParsedType(Type{Kind: elem.Kind, ClassSym: elem.ClassSym, ElementType: elem.ElementType, Descriptor: elemDesc})
		return Type{Kind: Reference, ElementType: elemID}, rest, nil
	default:
		return Type{}, "", fmt.Errorf("descriptor %q: unknown type tag %q", s, s[0])
	}
}

// Type returns the type table entry for id.
func (t *Table) Type(id TypeId) Type {
	return t.types[id]
}

// MethodDescriptor returns the method descriptor table entry for id.
func (t *Table) MethodDescriptor(id MethodDescId) MethodDescriptor {
	return t.methods[id]
}

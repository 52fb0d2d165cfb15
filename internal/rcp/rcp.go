// Package rcp implements the runtime constant pool: a per-class view over
// the raw classfile.ConstantPoolEntry slice that resolves symbolic
// references into interned Syms and caches the result. This is the
// boundary C4 (method area) and C7 (interpreter) use to turn a 16-bit
// bytecode operand into something comparable without re-parsing the class
// file's raw indices on every access.
package rcp

import (
	"fmt"
	"sync"

	"github.com/classvm/classvm/internal/classfile"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

// WrongIndex reports an out-of-range or reserved (index 0) constant pool
// reference.
type WrongIndex struct{ Index uint16 }

func (e *WrongIndex) Error() string { return fmt.Sprintf("wrong constant pool index %d", e.Index) }

// TypeMismatch reports a constant pool entry of the wrong tag for the
// accessor that was called.
type TypeMismatch struct {
	Index    uint16
	Expected string
	Actual   string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("constant pool index %d: expected %s, got %s", e.Index, e.Expected, e.Actual)
}

// MethodView is the resolved view of a CONSTANT_Methodref (or
// InterfaceMethodref): the class it targets plus the member's name/desc
// symbols.
type MethodView struct {
	ClassSym sym.Sym
	NameSym  sym.Sym
	DescSym  sym.Sym
}

// FieldView is the resolved view of a CONSTANT_Fieldref.
type FieldView struct {
	ClassSym sym.Sym
	NameSym  sym.Sym
	DescSym  sym.Sym
}

// InvokeDynamicView is the resolved view of a CONSTANT_InvokeDynamic entry.
type InvokeDynamicView struct {
	BootstrapMethodIndex uint16
	NameSym              sym.Sym
	DescSym              sym.Sym
}

// entryCache holds the lazily-computed, idempotent resolution for one
// constant-pool slot. Only one of the fields is populated, matching
// whichever accessor first resolved this index.
type entryCache struct {
	once sync.Once
	err  error

	sym         sym.Sym
	methodView  *MethodView
	fieldView   *FieldView
	dynamicView *InvokeDynamicView
	constant    *value.Value
}

// Pool is one class's runtime constant pool: the raw parsed entries plus a
// parallel slice of lazily-resolved caches.
type Pool struct {
	interner *sym.Interner
	raw      []classfile.ConstantPoolEntry
	cache    []entryCache
}

// New builds a runtime constant pool over a class file's raw constant pool.
// No resolution happens until an accessor is called.
func New(interner *sym.Interner, raw []classfile.ConstantPoolEntry) *Pool {
	return &Pool{
		interner: interner,
		raw:      raw,
		cache:    make([]entryCache, len(raw)),
	}
}

func (p *Pool) entry(idx uint16) (classfile.ConstantPoolEntry, error) {
	if idx == 0 || int(idx) >= len(p.raw) || p.raw[idx] == nil {
		return nil, &WrongIndex{Index: idx}
	}
	return p.raw[idx], nil
}

// Tag returns the raw constant-pool tag at idx without resolving or
// caching anything, so callers (ldc's dispatch) can pick the right typed
// accessor up front instead of risking a wrong accessor poisoning the
// shared per-index resolution cache with a TypeMismatch.
func (p *Pool) Tag(idx uint16) (uint8, error) {
	e, err := p.entry(idx)
	if err != nil {
		return 0, err
	}
	return e.Tag(), nil
}

// GetUtf8Sym interns (on first call) and returns the Sym for a CONSTANT_Utf8
// entry.
func (p *Pool) GetUtf8Sym(idx uint16) (sym.Sym, error) {
	e, err := p.entry(idx)
	if err != nil {
		return 0, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		utf8, ok := e.(*classfile.ConstantUtf8)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "Utf8", Actual: tagName(e.Tag())}
			return
		}
		c.sym = p.interner.Intern(utf8.Value)
	})
	return c.sym, c.err
}

// GetClassSym resolves a CONSTANT_Class entry's name and interns it.
func (p *Pool) GetClassSym(idx uint16) (sym.Sym, error) {
	e, err := p.entry(idx)
	if err != nil {
		return 0, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		cls, ok := e.(*classfile.ConstantClass)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "Class", Actual: tagName(e.Tag())}
			return
		}
		c.sym, c.err = p.GetUtf8Sym(cls.NameIndex)
	})
	return c.sym, c.err
}

// GetMethodView resolves a CONSTANT_Methodref entry transitively into its
// class/name/descriptor symbols.
func (p *Pool) GetMethodView(idx uint16) (MethodView, error) {
	e, err := p.entry(idx)
	if err != nil {
		return MethodView{}, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		mr, ok := e.(*classfile.ConstantMethodref)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "Methodref", Actual: tagName(e.Tag())}
			return
		}
		c.methodView, c.err = p.resolveMethodView(mr.ClassIndex, mr.NameAndTypeIndex)
	})
	if c.err != nil {
		return MethodView{}, c.err
	}
	return *c.methodView, nil
}

// GetInterfaceMethodView resolves a CONSTANT_InterfaceMethodref entry.
func (p *Pool) GetInterfaceMethodView(idx uint16) (MethodView, error) {
	e, err := p.entry(idx)
	if err != nil {
		return MethodView{}, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		mr, ok := e.(*classfile.ConstantInterfaceMethodref)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "InterfaceMethodref", Actual: tagName(e.Tag())}
			return
		}
		c.methodView, c.err = p.resolveMethodView(mr.ClassIndex, mr.NameAndTypeIndex)
	})
	if c.err != nil {
		return MethodView{}, c.err
	}
	return *c.methodView, nil
}

// GetFieldView resolves a CONSTANT_Fieldref entry.
func (p *Pool) GetFieldView(idx uint16) (FieldView, error) {
	e, err := p.entry(idx)
	if err != nil {
		return FieldView{}, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		fr, ok := e.(*classfile.ConstantFieldref)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "Fieldref", Actual: tagName(e.Tag())}
			return
		}
		classSym, err := p.GetClassSym(fr.ClassIndex)
		if err != nil {
			c.err = err
			return
		}
		nameSym, descSym, err := p.nameAndType(fr.NameAndTypeIndex)
		if err != nil {
			c.err = err
			return
		}
		c.fieldView = &FieldView{ClassSym: classSym, NameSym: nameSym, DescSym: descSym}
	})
	if c.err != nil {
		return FieldView{}, c.err
	}
	return *c.fieldView, nil
}

// GetInvokeDynamicView resolves a CONSTANT_InvokeDynamic entry.
func (p *Pool) GetInvokeDynamicView(idx uint16) (InvokeDynamicView, error) {
	e, err := p.entry(idx)
	if err != nil {
		return InvokeDynamicView{}, err
	}
	c := &p.cache[idx]
	c.once.Do(func() {
		id, ok := e.(*classfile.ConstantInvokeDynamic)
		if !ok {
			c.err = &TypeMismatch{Index: idx, Expected: "InvokeDynamic", Actual: tagName(e.Tag())}
			return
		}
		nameSym, descSym, err := p.nameAndType(id.NameAndTypeIndex)
		if err != nil {
			c.err = err
			return
		}
		c.dynamicView = &InvokeDynamicView{BootstrapMethodIndex: id.BootstrapMethodAttrIndex, NameSym: nameSym, DescSym: descSym}
	})
	if c.err != nil {
		return InvokeDynamicView{}, c.err
	}
	return *c.dynamicView, nil
}

// GetConstant resolves an Integer, Float, Long or Double constant-pool
// entry into a runtime Value, for ldc/ldc_w/ldc2_w. Any other tag,
// including String, Class, MethodHandle, MethodType and Dynamic, yields a
// TypeMismatch; String and Class values are synthesized by the caller (C7)
// from GetStringValue and GetClassSym after consulting the heap.
func (p *Pool) GetConstant(idx uint16) (value.Value, error) {
	e, err := p.entry(idx)
	if err != nil {
		return value.Value{}, err
	}
	switch c := e.(type) {
	case *classfile.ConstantInteger:
		return value.Integer(c.Value), nil
	case *classfile.ConstantFloat:
		return value.Float(c.Value), nil
	case *classfile.ConstantLong:
		return value.Long(c.Value), nil
	case *classfile.ConstantDouble:
		return value.Double(c.Value), nil
	default:
		return value.Value{}, &TypeMismatch{Index: idx, Expected: "loadable constant", Actual: tagName(e.Tag())}
	}
}

// GetStringValue resolves a CONSTANT_String entry's referenced Utf8 text.
// Producing the interned String object itself is the heap's job; this
// returns the raw Go string the heap then allocates.
func (p *Pool) GetStringValue(idx uint16) (string, error) {
	e, err := p.entry(idx)
	if err != nil {
		return "", err
	}
	str, ok := e.(*classfile.ConstantString)
	if !ok {
		return "", &TypeMismatch{Index: idx, Expected: "String", Actual: tagName(e.Tag())}
	}
	return classfile.GetUtf8(p.raw, str.StringIndex)
}

// GetUtf8 returns the raw Go string of a CONSTANT_Utf8 entry without
// interning it (used for descriptor strings, which the descriptor table
// interns into TypeId/MethodDescId instead of Sym).
func (p *Pool) GetUtf8(idx uint16) (string, error) {
	if _, err := p.entry(idx); err != nil {
		return "", err
	}
	return classfile.GetUtf8(p.raw, idx)
}

func (p *Pool) resolveMethodView(classIdx, natIdx uint16) (*MethodView, error) {
	classSym, err := p.GetClassSym(classIdx)
	if err != nil {
		return nil, err
	}
	nameSym, descSym, err := p.nameAndType(natIdx)
	if err != nil {
		return nil, err
	}
	return &MethodView{ClassSym: classSym, NameSym: nameSym, DescSym: descSym}, nil
}

func (p *Pool) nameAndType(idx uint16) (nameSym, descSym sym.Sym, err error) {
	name, descriptor, err := classfile.NameAndType(p.raw, idx)
	if err != nil {
		return 0, 0, err
	}
	return p.interner.Intern(name), p.interner.Intern(descriptor), nil
}

func tagName(tag uint8) string {
	switch tag {
	case classfile.TagUtf8:
		return "Utf8"
	case classfile.TagInteger:
		return "Integer"
	case classfile.TagFloat:
		return "Float"
	case classfile.TagLong:
		return "Long"
	case classfile.TagDouble:
		return "Double"
	case classfile.TagClass:
		return "Class"
	case classfile.TagString:
		return "String"
	case classfile.TagFieldref:
		return "Fieldref"
	case classfile.TagMethodref:
		return "Methodref"
	case classfile.TagInterfaceMethodref:
		return "InterfaceMethodref"
	case classfile.TagNameAndType:
		return "NameAndType"
	case classfile.TagMethodHandle:
		return "MethodHandle"
	case classfile.TagMethodType:
		return "MethodType"
	case classfile.TagDynamic:
		return "Dynamic"
	case classfile.TagInvokeDynamic:
		return "InvokeDynamic"
	default:
		return fmt.Sprintf("tag(%d)", tag)
	}
}

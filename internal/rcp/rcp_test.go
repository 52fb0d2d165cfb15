package rcp

import (
	"testing"

	"github.com/classvm/classvm/internal/classfile"
	"github.com/classvm/classvm/internal/sym"
)

func buildPool() []classfile.ConstantPoolEntry {
	// 1: Utf8 "Hello"
	// 2: Class -> 1
	// 3: Utf8 "java/lang/Object"
	// 4: Class -> 3
	// 5: Utf8 "main"
	// 6: Utf8 "()V"
	// 7: NameAndType -> 5, 6
	// 8: Methodref -> 4, 7
	// 9: Integer 42
	// 10: Utf8 "greeting"
	// 11: String -> 10
	return []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "Hello"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
		&classfile.ConstantUtf8{Value: "main"},
		&classfile.ConstantUtf8{Value: "()V"},
		&classfile.ConstantNameAndType{NameIndex: 5, DescriptorIndex: 6},
		&classfile.ConstantMethodref{ClassIndex: 4, NameAndTypeIndex: 7},
		&classfile.ConstantInteger{Value: 42},
		&classfile.ConstantUtf8{Value: "greeting"},
		&classfile.ConstantString{StringIndex: 10},
	}
}

func TestGetUtf8SymIdempotent(t *testing.T) {
	interner := sym.New()
	p := New(interner, buildPool())

	s1, err := p.GetUtf8Sym(1)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := p.GetUtf8Sym(1)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Errorf("GetUtf8Sym not idempotent: %d != %d", s1, s2)
	}
	if interner.Resolve(s1) != "Hello" {
		t.Errorf("resolved: got %q, want %q", interner.Resolve(s1), "Hello")
	}
}

func TestGetClassSym(t *testing.T) {
	interner := sym.New()
	p := New(interner, buildPool())

	s, err := p.GetClassSym(2)
	if err != nil {
		t.Fatal(err)
	}
	if interner.Resolve(s) != "Hello" {
		t.Errorf("got %q, want %q", interner.Resolve(s), "Hello")
	}
}

func TestGetMethodView(t *testing.T) {
	interner := sym.New()
	p := New(interner, buildPool())

	mv, err := p.GetMethodView(8)
	if err != nil {
		t.Fatal(err)
	}
	if interner.Resolve(mv.ClassSym) != "java/lang/Object" {
		t.Errorf("ClassSym: got %q", interner.Resolve(mv.ClassSym))
	}
	if interner.Resolve(mv.NameSym) != "main" {
		t.Errorf("NameSym: got %q", interner.Resolve(mv.NameSym))
	}
	if interner.Resolve(mv.DescSym) != "()V" {
		t.Errorf("DescSym: got %q", interner.Resolve(mv.DescSym))
	}
}

func TestGetConstantInteger(t *testing.T) {
	p := New(sym.New(), buildPool())
	v, err := p.GetConstant(9)
	if err != nil {
		t.Fatal(err)
	}
	if v.I != 42 {
		t.Errorf("got %d, want 42", v.I)
	}
}

func TestGetStringValue(t *testing.T) {
	p := New(sym.New(), buildPool())
	s, err := p.GetStringValue(11)
	if err != nil {
		t.Fatal(err)
	}
	if s != "greeting" {
		t.Errorf("got %q, want %q", s, "greeting")
	}
}

func TestWrongIndex(t *testing.T) {
	p := New(sym.New(), buildPool())
	if _, err := p.GetUtf8Sym(0); err == nil {
		t.Error("index 0: want error, got nil")
	}
	if _, err := p.GetUtf8Sym(999); err == nil {
		t.Error("out of range index: want error, got nil")
	}
	var wrongIdx *WrongIndex
	_, err := p.GetUtf8Sym(0)
	if !isWrongIndex(err, &wrongIdx) {
		t.Errorf("expected *WrongIndex, got %T", err)
	}
}

func isWrongIndex(err error, target **WrongIndex) bool {
	if wi, ok := err.(*WrongIndex); ok {
		*target = wi
		return true
	}
	return false
}

func TestTypeMismatch(t *testing.T) {
	p := New(sym.New(), buildPool())
	// index 1 is Utf8, not Class
	if _, err := p.GetClassSym(1); err == nil {
		t.Error("GetClassSym on Utf8 entry: want error, got nil")
	}
}

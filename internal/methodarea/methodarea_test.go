package methodarea

import (
	"testing"

	"github.com/classvm/classvm/internal/classfile"
	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

// fakeLoader never actually produces bytes in these tests; every class is
// injected directly via ma.link, so LoadBytes should never be called for
// the classes under test. The array-class test links "java/lang/Object",
// Cloneable and Serializable directly as well, so no stub bytes are needed.
type fakeLoader struct {
	classes map[string][]byte
}

func (l *fakeLoader) LoadBytes(name string) ([]byte, error) {
	if b, ok := l.classes[name]; ok {
		return b, nil
	}
	return nil, &ClassNotFound{Name: name}
}

func objectClassFile(interner *sym.Interner) *classfile.ClassFile {
	cp := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 1},
	}
	return &classfile.ClassFile{
		ConstantPool: cp,
		ThisClass:    2,
		SuperClass:   0,
	}
}

func newTestArea(t *testing.T) (*MethodArea, *sym.Interner) {
	t.Helper()
	interner := sym.New()
	types := descriptor.NewTable(interner)
	loader := &fakeLoader{classes: map[string][]byte{}}
	ma := New(interner, types, loader)

	objSym := interner.Intern("java/lang/Object")
	if _, err := ma.link(objSym, objectClassFile(interner)); err != nil {
		t.Fatalf("linking java/lang/Object: %v", err)
	}
	return ma, interner
}

func TestLinkBaseAndSubclassFieldLayout(t *testing.T) {
	ma, interner := newTestArea(t)

	// Base class "A" with one int field "x".
	aCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	aCF := &classfile.ClassFile{
		ConstantPool: aCP,
		ThisClass:    2,
		SuperClass:   4,
		Fields: []classfile.FieldInfo{
			{Name: "x", Descriptor: "I"},
		},
	}
	aSym := interner.Intern("A")
	aID, err := ma.link(aSym, aCF)
	if err != nil {
		t.Fatalf("linking A: %v", err)
	}
	aClass := ma.Class(aID)
	if aClass.InstanceSize != 8 { // 4 bytes for x, aligned up to 8
		t.Errorf("A.InstanceSize: got %d, want 8", aClass.InstanceSize)
	}

	// Subclass "B extends A" with one long field "y".
	bCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "B"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	bCF := &classfile.ClassFile{
		ConstantPool: bCP,
		ThisClass:    2,
		SuperClass:   4,
		Fields: []classfile.FieldInfo{
			{Name: "y", Descriptor: "J"},
		},
	}
	bSym := interner.Intern("B")
	bID, err := ma.link(bSym, bCF)
	if err != nil {
		t.Fatalf("linking B: %v", err)
	}
	bClass := ma.Class(bID)

	ySym := interner.Intern("y")
	jSym := interner.Intern("J")
	layout, ok := bClass.InstanceFieldLayout[FieldKey{NameSym: ySym, DescSym: jSym}]
	if !ok {
		t.Fatal("B.y not found in field layout")
	}
	if layout.Offset != 8 {
		t.Errorf("B.y offset: got %d, want 8 (after inherited A.x)", layout.Offset)
	}
	if bClass.InstanceSize != 16 {
		t.Errorf("B.InstanceSize: got %d, want 16", bClass.InstanceSize)
	}
}

func TestInstanceOf(t *testing.T) {
	ma, interner := newTestArea(t)

	aCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	aCF := &classfile.ClassFile{ConstantPool: aCP, ThisClass: 2, SuperClass: 4}
	aSym := interner.Intern("A")
	aID, err := ma.link(aSym, aCF)
	if err != nil {
		t.Fatal(err)
	}

	objSym := interner.Intern("java/lang/Object")
	if !ma.InstanceOf(aID, objSym) {
		t.Error("A must be instance_of java/lang/Object")
	}
	if !ma.InstanceOf(aID, aSym) {
		t.Error("A must be instance_of itself")
	}
	if ma.InstanceOf(aID, interner.Intern("java/lang/String")) {
		t.Error("A must not be instance_of unrelated class")
	}
}

func TestStaticFieldResolutionFollowsDeclaringAncestor(t *testing.T) {
	ma, interner := newTestArea(t)

	aCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	aCF := &classfile.ClassFile{
		ConstantPool: aCP,
		ThisClass:    2,
		SuperClass:   4,
		Fields: []classfile.FieldInfo{
			{Name: "counter", Descriptor: "I", AccessFlags: classfile.AccStatic},
		},
	}
	aSym := interner.Intern("A")
	if _, err := ma.link(aSym, aCF); err != nil {
		t.Fatal(err)
	}

	bCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "B"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	bCF := &classfile.ClassFile{ConstantPool: bCP, ThisClass: 2, SuperClass: 4}
	bSym := interner.Intern("B")
	bID, err := ma.link(bSym, bCF)
	if err != nil {
		t.Fatal(err)
	}

	key := FieldKey{NameSym: interner.Intern("counter"), DescSym: interner.Intern("I")}
	owner, cell, err := ma.ResolveStaticField(bID, key)
	if err != nil {
		t.Fatalf("ResolveStaticField: %v", err)
	}
	if owner.NameSym != aSym {
		t.Errorf("owner: got %q, want A", interner.Resolve(owner.NameSym))
	}
	if cell.I != 0 {
		t.Errorf("default static value: got %d, want 0", cell.I)
	}
}

func TestVTableOverride(t *testing.T) {
	ma, interner := newTestArea(t)

	aCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	aCF := &classfile.ClassFile{
		ConstantPool: aCP,
		ThisClass:    2,
		SuperClass:   4,
		Methods: []classfile.MethodInfo{
			{Name: "greet", Descriptor: "()V", Code: &classfile.CodeAttribute{Code: []byte{0xB1}}},
		},
	}
	aSym := interner.Intern("A")
	aID, err := ma.link(aSym, aCF)
	if err != nil {
		t.Fatal(err)
	}

	bCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "B"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	bCF := &classfile.ClassFile{
		ConstantPool: bCP,
		ThisClass:    2,
		SuperClass:   4,
		Methods: []classfile.MethodInfo{
			{Name: "greet", Descriptor: "()V", Code: &classfile.CodeAttribute{Code: []byte{0xB1, 0xB1}}},
		},
	}
	bSym := interner.Intern("B")
	bID, err := ma.link(bSym, bCF)
	if err != nil {
		t.Fatal(err)
	}

	key := MethodKey{NameSym: interner.Intern("greet"), DescSym: interner.Intern("()V")}
	aMethodID := ma.Class(aID).VTable[key]
	bMethodID := ma.Class(bID).VTable[key]
	if aMethodID == bMethodID {
		t.Error("B.greet must override A.greet in B's vtable, not share A's MethodId")
	}
	if len(ma.Method(bMethodID).Code.Code) != 2 {
		t.Error("B's vtable entry must resolve to B's own method body")
	}
}

func TestFabricateArrayClass(t *testing.T) {
	interner := sym.New()
	types := descriptor.NewTable(interner)
	loader := &fakeLoader{classes: map[string][]byte{}}
	ma := New(interner, types, loader)

	objSym := interner.Intern("java/lang/Object")
	if _, err := ma.link(objSym, objectClassFile(interner)); err != nil {
		t.Fatal(err)
	}
	cloneableCF := &classfile.ClassFile{
		ConstantPool: []classfile.ConstantPoolEntry{
			nil,
			&classfile.ConstantUtf8{Value: "java/lang/Cloneable"},
			&classfile.ConstantClass{NameIndex: 1},
		},
		ThisClass:   2,
		AccessFlags: classfile.AccInterface,
	}
	if _, err := ma.link(interner.Intern("java/lang/Cloneable"), cloneableCF); err != nil {
		t.Fatal(err)
	}
	serializableCF := &classfile.ClassFile{
		ConstantPool: []classfile.ConstantPoolEntry{
			nil,
			&classfile.ConstantUtf8{Value: "java/io/Serializable"},
			&classfile.ConstantClass{NameIndex: 1},
		},
		ThisClass:   2,
		AccessFlags: classfile.AccInterface,
	}
	if _, err := ma.link(interner.Intern("java/io/Serializable"), serializableCF); err != nil {
		t.Fatal(err)
	}

	arrSym := interner.Intern("[I")
	arrID, err := ma.GetClassIdOrLoad(arrSym)
	if err != nil {
		t.Fatalf("GetClassIdOrLoad([I): %v", err)
	}
	arrClass := ma.Class(arrID)
	if !arrClass.IsArrayClass {
		t.Error("[I must be marked IsArrayClass")
	}
	if ma.Types.Type(arrClass.ElementType).Kind != descriptor.Int {
		t.Errorf("[I element type: got %v, want Int", ma.Types.Type(arrClass.ElementType).Kind)
	}
	if arrClass.SuperID != ma.classBySym[objSym] {
		t.Error("[I's superclass must be java/lang/Object")
	}
}

func TestEnsureInitializedRunsClinitOnce(t *testing.T) {
	ma, interner := newTestArea(t)

	aCP := []classfile.ConstantPoolEntry{
		nil,
		&classfile.ConstantUtf8{Value: "A"},
		&classfile.ConstantClass{NameIndex: 1},
		&classfile.ConstantUtf8{Value: "java/lang/Object"},
		&classfile.ConstantClass{NameIndex: 3},
	}
	aCF := &classfile.ClassFile{
		ConstantPool: aCP,
		ThisClass:    2,
		SuperClass:   4,
		Methods: []classfile.MethodInfo{
			{Name: "<clinit>", Descriptor: "()V", Code: &classfile.CodeAttribute{Code: []byte{0xB1}}},
		},
	}
	aSym := interner.Intern("A")
	aID, err := ma.link(aSym, aCF)
	if err != nil {
		t.Fatal(err)
	}

	runs := 0
	ma.Clinit = clinitRunnerFunc(func(classID ClassId, methodID MethodId) error {
		runs++
		return nil
	})

	if err := ma.EnsureInitialized(aID); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if err := ma.EnsureInitialized(aID); err != nil {
		t.Fatalf("EnsureInitialized (second call): %v", err)
	}
	if runs != 1 {
		t.Errorf("RunClinit called %d times, want 1", runs)
	}
	if ma.Class(aID).InitState != Initialized {
		t.Errorf("InitState: got %v, want Initialized", ma.Class(aID).InitState)
	}
}

type clinitRunnerFunc func(classID ClassId, methodID MethodId) error

func (f clinitRunnerFunc) RunClinit(classID ClassId, methodID MethodId) error { return f(classID, methodID) }

func TestDefaultValueFor(t *testing.T) {
	if defaultValueFor(descriptor.Long).Kind != value.KindLong {
		t.Error("default long must be KindLong")
	}
	if defaultValueFor(descriptor.Reference).Kind != value.KindNull {
		t.Error("default reference must be KindNull")
	}
	if defaultValueFor(descriptor.Int).Kind != value.KindInteger {
		t.Error("default int must be KindInteger")
	}
}

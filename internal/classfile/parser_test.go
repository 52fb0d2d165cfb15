package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles a minimal, spec-legal class file byte stream for
// parser tests. There are no .class fixtures in this pack (binary files are
// filtered out of the retrieval set), so tests build their input directly.
type classBuilder struct {
	buf bytes.Buffer
	cp  [][]byte
}

func newClassBuilder() *classBuilder { return &classBuilder{} }

func (b *classBuilder) addUtf8(s string) uint16 {
	var e bytes.Buffer
	e.WriteByte(TagUtf8)
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.cp = append(b.cp, e.Bytes())
	return uint16(len(b.cp))
}

func (b *classBuilder) addClass(nameIdx uint16) uint16 {
	var e bytes.Buffer
	e.WriteByte(TagClass)
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.cp = append(b.cp, e.Bytes())
	return uint16(len(b.cp))
}

func (b *classBuilder) build(thisClass, superClass uint16, methodName, methodDesc uint16, code []byte, maxStack, maxLocals uint16) []byte {
	// The Code attribute's name has to be in b.cp before the pool is
	// written out below, or the method's attribute would name a missing entry.
	codeAttrName := b.addUtf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(65)) // major: Java 21

	binary.Write(&out, binary.BigEndian, uint16(len(b.cp)+1))
	for _, e := range b.cp {
		out.Write(e)
	}

	binary.Write(&out, binary.BigEndian, uint16(AccPublic|AccSuper)) // access_flags
	binary.Write(&out, binary.BigEndian, thisClass)
	binary.Write(&out, binary.BigEndian, superClass)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&out, binary.BigEndian, uint16(0)) // fields_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&out, binary.BigEndian, uint16(AccPublic|AccStatic))
	binary.Write(&out, binary.BigEndian, methodName)
	binary.Write(&out, binary.BigEndian, methodDesc)
	binary.Write(&out, binary.BigEndian, uint16(1)) // attributes_count (Code)

	var codeBody bytes.Buffer
	binary.Write(&codeBody, binary.BigEndian, maxStack)
	binary.Write(&codeBody, binary.BigEndian, maxLocals)
	binary.Write(&codeBody, binary.BigEndian, uint32(len(code)))
	codeBody.Write(code)
	binary.Write(&codeBody, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(&codeBody, binary.BigEndian, uint16(0)) // attributes_count

	binary.Write(&out, binary.BigEndian, codeAttrName)
	binary.Write(&out, binary.BigEndian, uint32(codeBody.Len()))
	out.Write(codeBody.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count

	return out.Bytes()
}

func TestParseMinimalClass(t *testing.T) {
	b := newClassBuilder()
	thisName := b.addUtf8("Hello")
	thisClass := b.addClass(thisName)
	superName := b.addUtf8("java/lang/Object")
	superClass := b.addClass(superName)
	methodName := b.addUtf8("main")
	methodDesc := b.addUtf8("([Ljava/lang/String;)V")

	// Code: return (0xB1)
	data := b.build(thisClass, superClass, methodName, methodDesc, []byte{0xB1}, 1, 1)

	cf, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cf.MajorVersion != 65 {
		t.Errorf("MajorVersion: got %d, want 65", cf.MajorVersion)
	}

	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if name != "Hello" {
		t.Errorf("ClassName: got %q, want %q", name, "Hello")
	}

	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("SuperClassName: got %q, want %q", got, "java/lang/Object")
	}

	m := cf.FindMethod("main", "([Ljava/lang/String;)V")
	if m == nil {
		t.Fatal("main method not found")
	}
	if m.Code == nil {
		t.Fatal("main method has no Code attribute")
	}
	if len(m.Code.Code) != 1 || m.Code.Code[0] != 0xB1 {
		t.Errorf("Code: got %v, want [0xB1]", m.Code.Code)
	}
	if m.Code.MaxStack != 1 || m.Code.MaxLocals != 1 {
		t.Errorf("MaxStack/MaxLocals: got %d/%d, want 1/1", m.Code.MaxStack, m.Code.MaxLocals)
	}
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Error("Parse(bad magic): want error, got nil")
	}
}

func TestGetClassNameInvalidIndex(t *testing.T) {
	pool := []ConstantPoolEntry{nil}
	if _, err := GetClassName(pool, 5); err == nil {
		t.Error("GetClassName(out of range): want error, got nil")
	}
}

package heap

import (
	"testing"

	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestAllocInstanceAndFields(t *testing.T) {
	h := newTestHeap(t)

	ref, err := h.AllocInstance(16, 7)
	if err != nil {
		t.Fatalf("AllocInstance: %v", err)
	}
	if h.ClassID(ref) != 7 {
		t.Errorf("ClassID: got %d, want 7", h.ClassID(ref))
	}
	if h.IsArray(ref) {
		t.Error("plain instance must not report IsArray")
	}

	if err := h.WriteField(ref, 0, descriptor.Int, value.Integer(42)); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	got := h.ReadField(ref, 0, descriptor.Int)
	if got.I != 42 {
		t.Errorf("ReadField: got %d, want 42", got.I)
	}

	if err := h.WriteField(ref, 8, descriptor.Long, value.Long(123456789012)); err != nil {
		t.Fatalf("WriteField long: %v", err)
	}
	got = h.ReadField(ref, 8, descriptor.Long)
	if got.L != 123456789012 {
		t.Errorf("ReadField long: got %d, want 123456789012", got.L)
	}
}

func TestWriteFieldTypeMismatch(t *testing.T) {
	h := newTestHeap(t)
	ref, _ := h.AllocInstance(8, 1)
	if err := h.WriteField(ref, 0, descriptor.Int, value.Long(5)); err == nil {
		t.Error("WriteField with wrong kind: want error, got nil")
	}
}

func TestAllocPrimitiveArrayAndElements(t *testing.T) {
	h := newTestHeap(t)

	ref, err := h.AllocPrimitiveArray(0, descriptor.Int, 4)
	if err != nil {
		t.Fatalf("AllocPrimitiveArray: %v", err)
	}
	if !h.IsArray(ref) {
		t.Error("array must report IsArray")
	}
	if h.ArrayLength(ref) != 4 {
		t.Errorf("ArrayLength: got %d, want 4", h.ArrayLength(ref))
	}

	for i := int32(0); i < 4; i++ {
		if err := h.WriteArrayElement(ref, i, value.Integer(i*10)); err != nil {
			t.Fatalf("WriteArrayElement(%d): %v", i, err)
		}
	}
	for i := int32(0); i < 4; i++ {
		v, err := h.ReadArrayElement(ref, i)
		if err != nil {
			t.Fatalf("ReadArrayElement(%d): %v", i, err)
		}
		if v.I != i*10 {
			t.Errorf("element %d: got %d, want %d", i, v.I, i*10)
		}
	}
}

func TestArrayIndexOutOfBounds(t *testing.T) {
	h := newTestHeap(t)
	ref, _ := h.AllocPrimitiveArray(0, descriptor.Int, 2)

	if _, err := h.ReadArrayElement(ref, -1); err == nil {
		t.Error("ReadArrayElement(-1): want error, got nil")
	}
	if _, err := h.ReadArrayElement(ref, 2); err == nil {
		t.Error("ReadArrayElement(2) on length-2 array: want error, got nil")
	}
}

func TestNegativeArraySize(t *testing.T) {
	h := newTestHeap(t)
	if _, err := h.AllocPrimitiveArray(0, descriptor.Int, -1); err == nil {
		t.Error("AllocPrimitiveArray(-1): want error, got nil")
	}
}

func TestCopyPrimitiveSlice(t *testing.T) {
	h := newTestHeap(t)
	src, _ := h.AllocPrimitiveArray(0, descriptor.Byte, 4)
	dst, _ := h.AllocPrimitiveArray(0, descriptor.Byte, 4)

	for i := int32(0); i < 4; i++ {
		h.WriteArrayElement(src, i, value.Integer(i+1))
	}
	if err := h.CopyPrimitiveSlice(src, 1, dst, 0, 2); err != nil {
		t.Fatalf("CopyPrimitiveSlice: %v", err)
	}
	v0, _ := h.ReadArrayElement(dst, 0)
	v1, _ := h.ReadArrayElement(dst, 1)
	if v0.I != 2 || v1.I != 3 {
		t.Errorf("copied elements: got [%d %d], want [2 3]", v0.I, v1.I)
	}
}

func TestCloneObject(t *testing.T) {
	h := newTestHeap(t)
	ref, _ := h.AllocInstance(8, 3)
	h.WriteField(ref, 0, descriptor.Int, value.Integer(99))

	clone, err := h.CloneObject(ref)
	if err != nil {
		t.Fatalf("CloneObject: %v", err)
	}
	if clone == ref {
		t.Error("clone must be a distinct HeapRef")
	}
	if h.ClassID(clone) != 3 {
		t.Errorf("clone ClassID: got %d, want 3", h.ClassID(clone))
	}
	got := h.ReadField(clone, 0, descriptor.Int)
	if got.I != 99 {
		t.Errorf("clone field: got %d, want 99", got.I)
	}
}

func TestOutOfMemory(t *testing.T) {
	h, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if _, err := h.AllocInstance(1<<20, 1); err == nil {
		t.Error("AllocInstance beyond capacity: want error, got nil")
	}
}

func TestAllocStringLatin1AndUTF16(t *testing.T) {
	h := newTestHeap(t)
	layout := StringLayout{ClassID: 10, CoderOffset: 0, ValueOffset: 8, ByteArrayCls: 11}

	asciiRef, err := h.AllocString("hi", layout)
	if err != nil {
		t.Fatalf("AllocString ascii: %v", err)
	}
	if h.region[int(asciiRef)+headerSize+layout.CoderOffset] != coderLatin1 {
		t.Error("ascii string should choose LATIN1 coder")
	}

	wideRef, err := h.AllocString("héllo", layout) // has an é > 0xFF-adjacent but within latin1 range
	if err != nil {
		t.Fatalf("AllocString latin1-extended: %v", err)
	}
	if h.region[int(wideRef)+headerSize+layout.CoderOffset] != coderLatin1 {
		t.Error("latin1-range string should still choose LATIN1 coder")
	}

	cjkRef, err := h.AllocString("你好", layout)
	if err != nil {
		t.Fatalf("AllocString cjk: %v", err)
	}
	if h.region[int(cjkRef)+headerSize+layout.CoderOffset] != coderUTF16 {
		t.Error("non-latin1 string should choose UTF16 coder")
	}
}

func TestGetStrFromPoolOrNew(t *testing.T) {
	h := newTestHeap(t)
	interner := sym.New()
	s := interner.Intern("hello")
	layout := StringLayout{ClassID: 10, CoderOffset: 0, ValueOffset: 8, ByteArrayCls: 11}

	ref1, err := h.GetStrFromPoolOrNew(s, "hello", layout)
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := h.GetStrFromPoolOrNew(s, "hello", layout)
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != ref2 {
		t.Errorf("GetStrFromPoolOrNew not pointer-stable: %d != %d", ref1, ref2)
	}
}

func TestMirrorObjects(t *testing.T) {
	h := newTestHeap(t)

	ref1, err := h.GetMirrorRefOrCreate(5, 100, 16)
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := h.GetMirrorRefOrCreate(5, 100, 16)
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != ref2 {
		t.Errorf("mirror not stable across calls: %d != %d", ref1, ref2)
	}

	classID, ok := h.ClassIDFromMirror(ref1)
	if !ok || classID != 5 {
		t.Errorf("ClassIDFromMirror: got (%d, %v), want (5, true)", classID, ok)
	}
}

func TestReadWriteReference(t *testing.T) {
	h := newTestHeap(t)
	ref, _ := h.AllocInstance(8, 1)

	if err := h.WriteField(ref, 0, descriptor.Reference, value.Null()); err != nil {
		t.Fatal(err)
	}
	got := h.ReadField(ref, 0, descriptor.Reference)
	if got.Kind != value.KindNull {
		t.Errorf("null round trip: got %v", got.Kind)
	}

	other, _ := h.AllocInstance(8, 2)
	if err := h.WriteField(ref, 0, descriptor.Reference, value.Ref(other)); err != nil {
		t.Fatal(err)
	}
	got = h.ReadField(ref, 0, descriptor.Reference)
	if got.Kind != value.KindRef || got.Ref != other {
		t.Errorf("ref round trip: got %v", got)
	}
}

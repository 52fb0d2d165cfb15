package frame

import (
	"testing"

	"github.com/classvm/classvm/internal/value"
)

func TestPushPopOperand(t *testing.T) {
	f := NewJavaFrame(2, 4, 1, 1)
	f.PushOperand(value.Integer(7))
	f.PushOperand(value.Integer(9))

	got, err := f.PopInt()
	if err != nil {
		t.Fatal(err)
	}
	if got != 9 {
		t.Errorf("got %d, want 9", got)
	}
	got, err = f.PopInt()
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestTypedPopMismatch(t *testing.T) {
	f := NewJavaFrame(0, 1, 1, 1)
	f.PushOperand(value.Integer(1))
	if _, err := f.PopLong(); err == nil {
		t.Error("PopLong on int value: want error, got nil")
	}
}

func TestPopObjValNullThrows(t *testing.T) {
	f := NewJavaFrame(0, 1, 1, 1)
	f.PushOperand(value.Null())
	_, err := f.PopObjVal()
	if err == nil {
		t.Fatal("PopObjVal on null: want error, got nil")
	}
	if _, ok := err.(*NullPointerException); !ok {
		t.Errorf("got %T, want *NullPointerException", err)
	}
}

func TestPopObjValNonNull(t *testing.T) {
	f := NewJavaFrame(0, 1, 1, 1)
	f.PushOperand(value.Ref(42))
	ref, err := f.PopObjVal()
	if err != nil {
		t.Fatal(err)
	}
	if ref != 42 {
		t.Errorf("got %d, want 42", ref)
	}
}

func TestLocals(t *testing.T) {
	f := NewJavaFrame(3, 0, 1, 1)
	f.SetLocal(0, value.Integer(1))
	f.SetLocal(1, value.Long(2))
	if f.GetLocal(0).I != 1 {
		t.Errorf("local 0: got %d, want 1", f.GetLocal(0).I)
	}
	if f.GetLocal(1).L != 2 {
		t.Errorf("local 1: got %d, want 2", f.GetLocal(1).L)
	}
}

func TestDupTop(t *testing.T) {
	f := NewJavaFrame(0, 4, 1, 1)
	f.PushOperand(value.Integer(5))
	f.DupTop()
	if f.SP != 2 {
		t.Fatalf("SP: got %d, want 2", f.SP)
	}
	top, _ := f.PopInt()
	second, _ := f.PopInt()
	if top != 5 || second != 5 {
		t.Errorf("got [%d %d], want [5 5]", second, top)
	}
}

func TestSwap(t *testing.T) {
	f := NewJavaFrame(0, 4, 1, 1)
	f.PushOperand(value.Integer(1))
	f.PushOperand(value.Integer(2))
	f.Swap()
	top, _ := f.PopInt()
	second, _ := f.PopInt()
	if top != 1 || second != 2 {
		t.Errorf("after swap: got [%d %d], want [2 1]", second, top)
	}
}

func TestDup2TwoCategory1(t *testing.T) {
	f := NewJavaFrame(0, 8, 1, 1)
	f.PushOperand(value.Integer(1))
	f.PushOperand(value.Integer(2))
	f.Dup2()
	if f.SP != 4 {
		t.Fatalf("SP: got %d, want 4", f.SP)
	}
	vals := []int32{}
	for i := 0; i < 4; i++ {
		v, _ := f.PopInt()
		vals = append(vals, v)
	}
	want := []int32{2, 1, 2, 1}
	for i, v := range vals {
		if v != want[i] {
			t.Errorf("index %d: got %d, want %d", i, v, want[i])
		}
	}
}

func TestDup2OneCategory2(t *testing.T) {
	f := NewJavaFrame(0, 4, 1, 1)
	f.PushOperand(value.Long(100))
	f.Dup2()
	if f.SP != 2 {
		t.Fatalf("SP: got %d, want 2", f.SP)
	}
	top, _ := f.PopLong()
	second, _ := f.PopLong()
	if top != 100 || second != 100 {
		t.Errorf("got [%d %d], want [100 100]", second, top)
	}
}

func TestDupX1(t *testing.T) {
	f := NewJavaFrame(0, 4, 1, 1)
	f.PushOperand(value.Integer(1))
	f.PushOperand(value.Integer(2))
	f.DupX1()
	// stack (bottom->top): 2, 1, 2
	if f.SP != 3 {
		t.Fatalf("SP: got %d, want 3", f.SP)
	}
	v2, _ := f.PopInt()
	v1, _ := f.PopInt()
	v0, _ := f.PopInt()
	if v2 != 2 || v1 != 1 || v0 != 2 {
		t.Errorf("got [%d %d %d], want [2 1 2]", v0, v1, v2)
	}
}

func TestStackOverflow(t *testing.T) {
	s := NewStack(2)
	if err := s.Push(&NativeFrame{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(&NativeFrame{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(&NativeFrame{}); err == nil {
		t.Error("third push beyond max depth 2: want error, got nil")
	}
}

func TestStackPushPopTop(t *testing.T) {
	s := NewStack(4)
	f1 := &NativeFrame{MethodID: 1}
	f2 := &NativeFrame{MethodID: 2}
	s.Push(f1)
	s.Push(f2)

	if s.Top() != Frame(f2) {
		t.Error("Top: want f2")
	}
	if s.Depth() != 2 {
		t.Errorf("Depth: got %d, want 2", s.Depth())
	}

	popped := s.Pop()
	if popped != Frame(f2) {
		t.Error("Pop: want f2")
	}
	if s.Top() != Frame(f1) {
		t.Error("Top after pop: want f1")
	}
}

package descriptor

import (
	"testing"

	"github.com/classvm/classvm/internal/sym"
)

func TestInternType(t *testing.T) {
	tbl := NewTable(sym.New())

	tests := []struct {
		name       string
		descriptor string
		wantKind   AllocationType
		wantArray  bool
	}{
		{"int", "I", Int, false},
		{"long", "J", Long, false},
		{"boolean", "Z", Boolean, false},
		{"class ref", "Ljava/lang/String;", Reference, false},
		{"int array", "[I", Reference, true},
		{"2d object array", "[[Ljava/lang/String;", Reference, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tbl.InternType(tt.descriptor)
			if err != nil {
				t.Fatalf("InternType(%q): %v", tt.descriptor, err)
			}
			typ := tbl.Type(id)
			if typ.Kind != tt.wantKind {
				t.Errorf("Kind: got %v, want %v", typ.Kind, tt.wantKind)
			}
			if typ.IsArray() != tt.wantArray {
				t.Errorf("IsArray: got %v, want %v", typ.IsArray(), tt.wantArray)
			}
		})
	}
}

func TestInternTypeIdempotent(t *testing.T) {
	tbl := NewTable(sym.New())
	id1, err := tbl.InternType("Ljava/lang/Object;")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := tbl.InternType("Ljava/lang/Object;")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("InternType not idempotent: got %d and %d", id1, id2)
	}
}

func TestInternTypeInvalid(t *testing.T) {
	tbl := NewTable(sym.New())
	cases := []string{"", "Q", "Ljava/lang/String", "["}
	for _, c := range cases {
		if _, err := tbl.InternType(c); err == nil {
			t.Errorf("InternType(%q): want error, got nil", c)
		}
	}
}

func TestInternMethodDescriptor(t *testing.T) {
	tbl := NewTable(sym.New())
	id, err := tbl.InternMethodDescriptor("(ILjava/lang/String;[I)V")
	if err != nil {
		t.Fatalf("InternMethodDescriptor: %v", err)
	}
	md := tbl.MethodDescriptor(id)
	if len(md.Params) != 3 {
		t.Fatalf("Params: got %d entries, want 3", len(md.Params))
	}
	if tbl.Type(md.Params[0]).Kind != Int {
		t.Errorf("param 0: got %v, want Int", tbl.Type(md.Params[0]).Kind)
	}
	if tbl.Type(md.Params[1]).Kind != Reference {
		t.Errorf("param 1: got %v, want Reference", tbl.Type(md.Params[1]).Kind)
	}
	if !tbl.Type(md.Params[2]).IsArray() {
		t.Errorf("param 2: want array type")
	}
	if md.Ret != VoidReturn {
		t.Errorf("Ret: got %d, want VoidReturn", md.Ret)
	}
}

func TestInternMethodDescriptorNoParams(t *testing.T) {
	tbl := NewTable(sym.New())
	id, err := tbl.InternMethodDescriptor("()I")
	if err != nil {
		t.Fatalf("InternMethodDescriptor: %v", err)
	}
	md := tbl.MethodDescriptor(id)
	if len(md.Params) != 0 {
		t.Errorf("Params: got %d, want 0", len(md.Params))
	}
	if tbl.Type(md.Ret).Kind != Int {
		t.Errorf("Ret kind: got %v, want Int", tbl.Type(md.Ret).Kind)
	}
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		kind AllocationType
		want int
	}{
		{Boolean, 1}, {Byte, 1}, {Short, 2}, {Char, 2},
		{Int, 4}, {Float, 4}, {Long, 8}, {Double, 8}, {Reference, 8},
	}
	for _, tt := range tests {
		if got := tt.kind.ByteSize(); got != tt.want {
			t.Errorf("%v.ByteSize(): got %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIsWide(t *testing.T) {
	if !Long.IsWide() || !Double.IsWide() {
		t.Error("Long and Double must be wide")
	}
	if Int.IsWide() || Reference.IsWide() {
		t.Error("Int and Reference must not be wide")
	}
}

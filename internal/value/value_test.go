package value

import (
	"testing"

	"github.com/classvm/classvm/internal/descriptor"
)

func TestDefaultFor(t *testing.T) {
	tests := []struct {
		name     string
		kind     descriptor.AllocationType
		wantKind Kind
	}{
		{"boolean", descriptor.Boolean, KindInteger},
		{"byte", descriptor.Byte, KindInteger},
		{"int", descriptor.Int, KindInteger},
		{"long", descriptor.Long, KindLong},
		{"float", descriptor.Float, KindFloat},
		{"double", descriptor.Double, KindDouble},
		{"reference", descriptor.Reference, KindNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DefaultFor(tt.kind)
			if v.Kind != tt.wantKind {
				t.Errorf("DefaultFor(%v).Kind: got %v, want %v", tt.kind, v.Kind, tt.wantKind)
			}
		})
	}
}

func TestIsWide(t *testing.T) {
	if !Long(0).IsWide() || !Double(0).IsWide() {
		t.Error("Long and Double values must report IsWide")
	}
	if Integer(0).IsWide() || Ref(1).IsWide() {
		t.Error("Integer and Ref values must not report IsWide")
	}
}

func TestIsNullRef(t *testing.T) {
	if !Null().IsNullRef() {
		t.Error("Null() must be a null ref")
	}
	if !Ref(0).IsNullRef() {
		t.Error("Ref(0) must be a null ref")
	}
	if Ref(8).IsNullRef() {
		t.Error("Ref(8) must not be a null ref")
	}
	if Integer(0).IsNullRef() {
		t.Error("Integer(0) must not be a null ref")
	}
}

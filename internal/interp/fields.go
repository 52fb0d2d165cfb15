package interp

import (
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/rcp"
	"github.com/classvm/classvm/internal/value"
)

// instanceFieldOwner walks classID's superclass chain to find the class
// that actually declares key, mirroring the method area's
// findStaticFieldOwner but for instance fields, which the linker keeps
// only on their declaring class rather than flattening into subclasses.
func (vm *VM) instanceFieldOwner(classID methodarea.ClassId, key methodarea.FieldKey) (methodarea.FieldLayout, bool) {
	for classID != 0 {
		class := vm.area.Class(classID)
		if layout, ok := class.InstanceFieldLayout[key]; ok {
			return layout, true
		}
		classID = class.SuperID
	}
	return methodarea.FieldLayout{}, false
}

func (vm *VM) getstatic(pool *rcp.Pool, idx uint16) (value.Value, error) {
	fv, err := pool.GetFieldView(idx)
	if err != nil {
		return value.Value{}, err
	}
	classID, err := vm.area.GetClassIdOrLoad(fv.ClassSym)
	if err != nil {
		return value.Value{}, err
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return value.Value{}, err
	}
	_, cell, err := vm.area.ResolveStaticField(classID, methodarea.FieldKey{NameSym: fv.NameSym, DescSym: fv.DescSym})
	if err != nil {
		return value.Value{}, err
	}
	return *cell, nil
}

func (vm *VM) putstatic(pool *rcp.Pool, idx uint16, v value.Value) error {
	fv, err := pool.GetFieldView(idx)
	if err != nil {
		return err
	}
	classID, err := vm.area.GetClassIdOrLoad(fv.ClassSym)
	if err != nil {
		return err
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return err
	}
	_, cell, err := vm.area.ResolveStaticField(classID, methodarea.FieldKey{NameSym: fv.NameSym, DescSym: fv.DescSym})
	if err != nil {
		return err
	}
	*cell = v
	return nil
}

func (vm *VM) getfield(pool *rcp.Pool, idx uint16, ref value.HeapRef) (value.Value, error) {
	fv, err := pool.GetFieldView(idx)
	if err != nil {
		return value.Value{}, err
	}
	classID, err := vm.area.GetClassIdOrLoad(fv.ClassSym)
	if err != nil {
		return value.Value{}, err
	}
	layout, ok := vm.instanceFieldOwner(classID, methodarea.FieldKey{NameSym: fv.NameSym, DescSym: fv.DescSym})
	if !ok {
		return value.Value{}, &methodarea.NoSuchField{Class: vm.interner.Resolve(fv.ClassSym), Name: vm.interner.Resolve(fv.NameSym)}
	}
	typ := vm.types.Type(layout.Type).Kind
	return vm.h.ReadField(ref, layout.Offset, typ), nil
}

func (vm *VM) putfield(pool *rcp.Pool, idx uint16, ref value.HeapRef, v value.Value) error {
	fv, err := pool.GetFieldView(idx)
	if err != nil {
		return err
	}
	classID, err := vm.area.GetClassIdOrLoad(fv.ClassSym)
	if err != nil {
		return err
	}
	layout, ok := vm.instanceFieldOwner(classID, methodarea.FieldKey{NameSym: fv.NameSym, DescSym: fv.DescSym})
	if !ok {
		return &methodarea.NoSuchField{Class: vm.interner.Resolve(fv.ClassSym), Name: vm.interner.Resolve(fv.NameSym)}
	}
	typ := vm.types.Type(layout.Type).Kind
	return vm.h.WriteField(ref, layout.Offset, typ, v)
}

package interp

import (
	"github.com/classvm/classvm/internal/frame"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/rcp"
	"github.com/classvm/classvm/internal/value"
)

// popArgs pops the argument values for a method descriptor (excluding an
// implicit receiver, which callers pop and prepend separately) off f in
// declaration order.
func (vm *VM) popArgs(f *frame.JavaFrame, paramCount int) []value.Value {
	args := make([]value.Value, paramCount)
	for i := paramCount - 1; i >= 0; i-- {
		args[i] = f.PopOperand()
	}
	return args
}

// invokestatic resolves and runs a static method, triggering the target
// class's initialization first per §4.7.5.
func (vm *VM) invokestatic(pool *rcp.Pool, idx uint16, f *frame.JavaFrame) error {
	mv, err := pool.GetMethodView(idx)
	if err != nil {
		return err
	}
	classID, err := vm.area.GetClassIdOrLoad(mv.ClassSym)
	if err != nil {
		return err
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return err
	}
	key := methodarea.MethodKey{NameSym: mv.NameSym, DescSym: mv.DescSym}
	methodID, ok := vm.area.Class(classID).StaticMethods[key]
	if !ok {
		return &methodarea.NoSuchMethod{Class: vm.interner.Resolve(mv.ClassSym), Name: vm.interner.Resolve(mv.NameSym), Descriptor: vm.interner.Resolve(mv.DescSym)}
	}
	return vm.invokeAndPush(f, classID, methodID, vm.popArgs(f, vm.paramCount(methodID)))
}

// invokespecial resolves a constructor, private method, or
// super-qualified instance method call: always the statically resolved
// method on the referenced class, never a virtual dispatch.
func (vm *VM) invokespecial(pool *rcp.Pool, idx uint16, f *frame.JavaFrame) error {
	mv, err := pool.GetMethodView(idx)
	if err != nil {
		return err
	}
	classID, err := vm.area.GetClassIdOrLoad(mv.ClassSym)
	if err != nil {
		return err
	}
	key := methodarea.MethodKey{NameSym: mv.NameSym, DescSym: mv.DescSym}
	class := vm.area.Class(classID)
	methodID, ok := class.SpecialMethods[key]
	if !ok {
		methodID, ok = class.VTable[key]
	}
	if !ok {
		return &methodarea.NoSuchMethod{Class: vm.interner.Resolve(mv.ClassSym), Name: vm.interner.Resolve(mv.NameSym), Descriptor: vm.interner.Resolve(mv.DescSym)}
	}
	args := vm.popArgs(f, vm.paramCount(methodID))
	receiver, err := f.PopObjVal()
	if err != nil {
		return err
	}
	args = append([]value.Value{value.Ref(receiver)}, args...)
	return vm.invokeAndPush(f, classID, methodID, args)
}

// invokevirtual dispatches on the receiver's runtime class vtable.
func (vm *VM) invokevirtual(pool *rcp.Pool, idx uint16, f *frame.JavaFrame) error {
	mv, err := pool.GetMethodView(idx)
	if err != nil {
		return err
	}
	key := methodarea.MethodKey{NameSym: mv.NameSym, DescSym: mv.DescSym}
	staticClassID, err := vm.area.GetClassIdOrLoad(mv.ClassSym)
	if err != nil {
		return err
	}
	argCount := vm.paramCountForKey(staticClassID, key)
	args := vm.popArgs(f, argCount)
	receiver, err := f.PopObjVal()
	if err != nil {
		return err
	}
	runtimeClassID := methodarea.ClassId(vm.h.ClassID(receiver))
	methodID, ok := vm.area.Class(runtimeClassID).VTable[key]
	if !ok {
		return &methodarea.NoSuchMethod{Class: vm.interner.Resolve(mv.ClassSym), Name: vm.interner.Resolve(mv.NameSym), Descriptor: vm.interner.Resolve(mv.DescSym)}
	}
	args = append([]value.Value{value.Ref(receiver)}, args...)
	return vm.invokeAndPush(f, runtimeClassID, methodID, args)
}

// invokeinterface dispatches through the receiver's runtime class
// interface_dispatch_table.
func (vm *VM) invokeinterface(pool *rcp.Pool, idx uint16, f *frame.JavaFrame) error {
	mv, err := pool.GetInterfaceMethodView(idx)
	if err != nil {
		return err
	}
	key := methodarea.MethodKey{NameSym: mv.NameSym, DescSym: mv.DescSym}
	ifaceID, err := vm.area.GetClassIdOrLoad(mv.ClassSym)
	if err != nil {
		return err
	}
	argCount := vm.paramCountForKey(ifaceID, key)
	args := vm.popArgs(f, argCount)
	receiver, err := f.PopObjVal()
	if err != nil {
		return err
	}
	runtimeClassID := methodarea.ClassId(vm.h.ClassID(receiver))
	methodID, ok := vm.area.Class(runtimeClassID).InterfaceDispatchTable[key]
	if !ok {
		return &methodarea.NoSuchMethod{Class: vm.interner.Resolve(mv.ClassSym), Name: vm.interner.Resolve(mv.NameSym), Descriptor: vm.interner.Resolve(mv.DescSym)}
	}
	args = append([]value.Value{value.Ref(receiver)}, args...)
	return vm.invokeAndPush(f, runtimeClassID, methodID, args)
}

// invokedynamic is unsupported: no bootstrap-method linkage runs, and
// every call site raises a Java-visible UnsupportedOperationException
// rather than an engine fault, since the operand stack's unwind is
// already well defined by the exception-table search.
func (vm *VM) invokedynamic() error {
	return vm.raiseBuiltin("java/lang/UnsupportedOperationException", "invokedynamic is not implemented")
}

// paramCount returns the number of declared parameters (excluding
// receiver) for an already-resolved method; a long or double counts once.
func (vm *VM) paramCount(methodID methodarea.MethodId) int {
	m := vm.area.Method(methodID)
	return len(vm.types.MethodDescriptor(m.DescriptorID).Params)
}

// paramCountForKey resolves the parameter count straight from the
// invoked descriptor symbol, for virtual/interface call sites where no
// MethodId has been chosen yet (dispatch happens after popping args).
func (vm *VM) paramCountForKey(classID methodarea.ClassId, key methodarea.MethodKey) int {
	descStr := vm.interner.Resolve(key.DescSym)
	descID, err := vm.types.InternMethodDescriptor(descStr)
	if err != nil {
		return 0
	}
	return len(vm.types.MethodDescriptor(descID).Params)
}

// isVoidDescriptor reports whether a method descriptor string declares a
// void return, the one case invokeAndPush must not push a result for.
func isVoidDescriptor(desc string) bool {
	for i := len(desc) - 1; i >= 0; i-- {
		if desc[i] == ')' {
			return desc[i+1:] == "V"
		}
	}
	return false
}

func (vm *VM) invokeAndPush(f *frame.JavaFrame, classID methodarea.ClassId, methodID methodarea.MethodId, args []value.Value) error {
	m := vm.area.Method(methodID)
	result, err := vm.invokeMethod(classID, methodID, args)
	if err != nil {
		return err
	}
	if !isVoidDescriptor(vm.interner.Resolve(m.DescSym)) {
		f.PushOperand(result)
	}
	return nil
}

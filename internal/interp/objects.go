package interp

import (
	"strings"

	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/engineerror"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/rcp"
	"github.com/classvm/classvm/internal/value"
)

func (vm *VM) opNew(pool *rcp.Pool, idx uint16) (value.Value, error) {
	classSym, err := pool.GetClassSym(idx)
	if err != nil {
		return value.Value{}, err
	}
	classID, err := vm.area.GetClassIdOrLoad(classSym)
	if err != nil {
		return value.Value{}, err
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return value.Value{}, err
	}
	class := vm.area.Class(classID)
	ref, err := vm.h.AllocInstance(class.InstanceSize, uint32(classID))
	if err != nil {
		return value.Value{}, err
	}
	return value.Ref(ref), nil
}

// newarrayType maps the newarray instruction's 1-byte type code (JVMS
// Table 6.5.newarray-A) to an AllocationType.
func newarrayType(code uint8) descriptor.AllocationType {
	switch code {
	case ArrTypeBoolean:
		return descriptor.Boolean
	case ArrTypeChar:
		return descriptor.Char
	case ArrTypeFloat:
		return descriptor.Float
	case ArrTypeDouble:
		return descriptor.Double
	case ArrTypeByte:
		return descriptor.Byte
	case ArrTypeShort:
		return descriptor.Short
	case ArrTypeInt:
		return descriptor.Int
	case ArrTypeLong:
		return descriptor.Long
	default:
		return descriptor.Int
	}
}

func (vm *VM) opNewarray(atype uint8, length int32) (value.Value, error) {
	elemType := newarrayType(atype)
	ref, err := vm.h.AllocPrimitiveArray(0, elemType, length)
	if err != nil {
		return value.Value{}, err
	}
	return value.Ref(ref), nil
}

func (vm *VM) opAnewarray(pool *rcp.Pool, idx uint16, length int32) (value.Value, error) {
	elemClassSym, err := pool.GetClassSym(idx)
	if err != nil {
		return value.Value{}, err
	}
	elemClassID, err := vm.area.GetClassIdOrLoad(elemClassSym)
	if err != nil {
		return value.Value{}, err
	}
	ref, err := vm.h.AllocObjectArray(uint32(elemClassID), length)
	if err != nil {
		return value.Value{}, err
	}
	return value.Ref(ref), nil
}

// opMultianewarray allocates a dimensions-deep nested array structure.
// Only the outermost array's element class is resolved from the
// constant pool entry (an N-dimensional array-class descriptor);
// per-level component descriptors are derived by stripping one leading
// '[' at a time.
func (vm *VM) opMultianewarray(pool *rcp.Pool, idx uint16, counts []int32) (value.Value, error) {
	arrClassSym, err := pool.GetClassSym(idx)
	if err != nil {
		return value.Value{}, err
	}
	arrName := vm.interner.Resolve(arrClassSym)
	return vm.buildNestedArray(arrName, counts)
}

func (vm *VM) buildNestedArray(descStr string, counts []int32) (value.Value, error) {
	if len(counts) == 0 || !strings.HasPrefix(descStr, "[") {
		return value.Value{}, engineerror.New(engineerror.KindCorruptClass, "multianewarray: malformed descriptor %q", descStr)
	}
	length := counts[0]
	componentDesc := descStr[1:]

	arrClassSym := vm.interner.Intern(descStr)
	arrClassID, err := vm.area.GetClassIdOrLoad(arrClassSym)
	if err != nil {
		return value.Value{}, err
	}
	ref, err := vm.h.AllocObjectArray(uint32(arrClassID), length)
	if err != nil {
		return value.Value{}, err
	}
	// Dimensions beyond len(counts) (the instruction's dimensions operand)
	// stay null, per JVMS §6.5.multianewarray: only the leading `dimensions`
	// levels get concrete lengths.
	if len(counts) > 1 {
		for i := int32(0); i < length; i++ {
			elem, err := vm.buildNestedArray(componentDesc, counts[1:])
			if err != nil {
				return value.Value{}, err
			}
			if err := vm.h.WriteArrayElement(ref, i, elem); err != nil {
				return value.Value{}, err
			}
		}
	}
	return value.Ref(ref), nil
}

func (vm *VM) opCheckcast(pool *rcp.Pool, idx uint16, ref value.Value) error {
	if ref.IsNullRef() {
		return nil
	}
	classSym, err := pool.GetClassSym(idx)
	if err != nil {
		return err
	}
	runtimeClassID := methodarea.ClassId(vm.h.ClassID(ref.Ref))
	if !vm.area.InstanceOf(runtimeClassID, classSym) {
		return vm.raiseBuiltin("java/lang/ClassCastException", vm.interner.Resolve(vm.area.Class(runtimeClassID).NameSym)+" cannot be cast to "+vm.interner.Resolve(classSym))
	}
	return nil
}

func (vm *VM) opInstanceof(pool *rcp.Pool, idx uint16, ref value.Value) (int32, error) {
	if ref.IsNullRef() {
		return 0, nil
	}
	classSym, err := pool.GetClassSym(idx)
	if err != nil {
		return 0, err
	}
	runtimeClassID := methodarea.ClassId(vm.h.ClassID(ref.Ref))
	if vm.area.InstanceOf(runtimeClassID, classSym) {
		return 1, nil
	}
	return 0, nil
}

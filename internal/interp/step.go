package interp

import (
	"math"

	"github.com/classvm/classvm/internal/classfile"
	"github.com/classvm/classvm/internal/engineerror"
	"github.com/classvm/classvm/internal/frame"
	"github.com/classvm/classvm/internal/rcp"
	"github.com/classvm/classvm/internal/value"
)

// unknownOpcode reports an opcode byte this engine does not recognize.
// Since there is no verifier pass, a malformed or unsupported opcode is
// treated as a fatal engine error rather than a Java-visible exception.
func unknownOpcode(op uint8, pc int) error {
	return engineerror.New(engineerror.KindCorruptClass, "unknown opcode 0x%02x at pc %d", op, pc)
}

// step decodes and executes one instruction at f.PC, returning the
// method's result and done=true on a return opcode. f.PC is left
// pointing at the next instruction unless the handler branched.
func (vm *VM) step(f *frame.JavaFrame, pool *rcp.Pool, code []byte) (value.Value, bool, error) {
	opStart := f.PC
	op := readU8(code, &f.PC)

	switch op {
	case OpNop:

	case OpAconstNull:
		f.PushOperand(value.Null())
	case OpIconstM1:
		f.PushOperand(value.Integer(-1))
	case OpIconst0:
		f.PushOperand(value.Integer(0))
	case OpIconst1:
		f.PushOperand(value.Integer(1))
	case OpIconst2:
		f.PushOperand(value.Integer(2))
	case OpIconst3:
		f.PushOperand(value.Integer(3))
	case OpIconst4:
		f.PushOperand(value.Integer(4))
	case OpIconst5:
		f.PushOperand(value.Integer(5))
	case OpLconst0:
		f.PushOperand(value.Long(0))
	case OpLconst1:
		f.PushOperand(value.Long(1))
	case OpFconst0:
		f.PushOperand(value.Float(0))
	case OpFconst1:
		f.PushOperand(value.Float(1))
	case OpFconst2:
		f.PushOperand(value.Float(2))
	case OpDconst0:
		f.PushOperand(value.Double(0))
	case OpDconst1:
		f.PushOperand(value.Double(1))
	case OpBipush:
		f.PushOperand(value.Integer(int32(readI8(code, &f.PC))))
	case OpSipush:
		f.PushOperand(value.Integer(int32(readI16(code, &f.PC))))

	case OpLdc:
		if err := vm.execLdc(pool, f, int(readU8(code, &f.PC))); err != nil {
			return value.Value{}, false, err
		}
	case OpLdcW:
		if err := vm.execLdc(pool, f, int(readU16(code, &f.PC))); err != nil {
			return value.Value{}, false, err
		}
	case OpLdc2W:
		idx := int(readU16(code, &f.PC))
		v, err := pool.GetConstant(uint16(idx))
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)

	case OpIload, OpLload, OpFload, OpDload, OpAload:
		idx := int(readU8(code, &f.PC))
		f.PushOperand(f.GetLocal(idx))
	case OpIload0, OpLload0, OpFload0, OpDload0, OpAload0:
		f.PushOperand(f.GetLocal(0))
	case OpIload1, OpLload1, OpFload1, OpDload1, OpAload1:
		f.PushOperand(f.GetLocal(1))
	case OpIload2, OpLload2, OpFload2, OpDload2, OpAload2:
		f.PushOperand(f.GetLocal(2))
	case OpIload3, OpLload3, OpFload3, OpDload3, OpAload3:
		f.PushOperand(f.GetLocal(3))

	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		idx := int(readU8(code, &f.PC))
		f.SetLocal(idx, f.PopOperand())
	case OpIstore0, OpLstore0, OpFstore0, OpDstore0, OpAstore0:
		f.SetLocal(0, f.PopOperand())
	case OpIstore1, OpLstore1, OpFstore1, OpDstore1, OpAstore1:
		f.SetLocal(1, f.PopOperand())
	case OpIstore2, OpLstore2, OpFstore2, OpDstore2, OpAstore2:
		f.SetLocal(2, f.PopOperand())
	case OpIstore3, OpLstore3, OpFstore3, OpDstore3, OpAstore3:
		f.SetLocal(3, f.PopOperand())

	case OpIinc:
		idx := int(readU8(code, &f.PC))
		delta := int32(readI8(code, &f.PC))
		cur := f.GetLocal(idx)
		f.SetLocal(idx, value.Integer(cur.I+delta))

	case OpIaload, OpFaload, OpBaload, OpCaload, OpSaload, OpLaload, OpDaload, OpAaload:
		idx, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.h.ReadArrayElement(ref, idx)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)

	case OpIastore, OpFastore, OpBastore, OpCastore, OpSastore, OpLastore, OpDastore, OpAastore:
		v := f.PopOperand()
		idx, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		if err := vm.h.WriteArrayElement(ref, idx, v); err != nil {
			return value.Value{}, false, err
		}

	case OpPop:
		f.PopOperand()
	case OpPop2:
		top := f.PopOperand()
		if !top.IsWide() {
			f.PopOperand()
		}
	case OpDup:
		f.DupTop()
	case OpDupX1:
		f.DupX1()
	case OpDupX2:
		f.DupX2()
	case OpDup2:
		f.Dup2()
	case OpDup2X1:
		f.Dup2X1()
	case OpDup2X2:
		f.Dup2X2()
	case OpSwap:
		f.Swap()

	case OpIadd:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a + b))
	case OpLadd:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a + b))
	case OpFadd:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(a + b))
	case OpDadd:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(a + b))
	case OpIsub:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a - b))
	case OpLsub:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a - b))
	case OpFsub:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(a - b))
	case OpDsub:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(a - b))
	case OpImul:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a * b))
	case OpLmul:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a * b))
	case OpFmul:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(a * b))
	case OpDmul:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(a * b))
	case OpIdiv:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		if b == 0 {
			return value.Value{}, false, vm.raiseBuiltin("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushOperand(value.Integer(a / b))
	case OpLdiv:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		if b == 0 {
			return value.Value{}, false, vm.raiseBuiltin("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushOperand(value.Long(a / b))
	case OpFdiv:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(a / b))
	case OpDdiv:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(a / b))
	case OpIrem:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		if b == 0 {
			return value.Value{}, false, vm.raiseBuiltin("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushOperand(value.Integer(a % b))
	case OpLrem:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		if b == 0 {
			return value.Value{}, false, vm.raiseBuiltin("java/lang/ArithmeticException", "/ by zero")
		}
		f.PushOperand(value.Long(a % b))
	case OpFrem:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(float32(math.Mod(float64(a), float64(b)))))
	case OpDrem:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(math.Mod(a, b)))
	case OpIneg:
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(-a))
	case OpLneg:
		a, _ := f.PopLong()
		f.PushOperand(value.Long(-a))
	case OpFneg:
		a, _ := f.PopFloat()
		f.PushOperand(value.Float(-a))
	case OpDneg:
		a, _ := f.PopDouble()
		f.PushOperand(value.Double(-a))

	case OpIshl:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a << (uint32(b) & 0x1f)))
	case OpLshl:
		b, _ := f.PopInt()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a << (uint32(b) & 0x3f)))
	case OpIshr:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a >> (uint32(b) & 0x1f)))
	case OpLshr:
		b, _ := f.PopInt()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a >> (uint32(b) & 0x3f)))
	case OpIushr:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(int32(uint32(a) >> (uint32(b) & 0x1f))))
	case OpLushr:
		b, _ := f.PopInt()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(int64(uint64(a) >> (uint32(b) & 0x3f))))
	case OpIand:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a & b))
	case OpLand:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a & b))
	case OpIor:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a | b))
	case OpLor:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a | b))
	case OpIxor:
		b, _ := f.PopInt()
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(a ^ b))
	case OpLxor:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Long(a ^ b))

	case OpI2l:
		a, _ := f.PopInt()
		f.PushOperand(value.Long(int64(a)))
	case OpI2f:
		a, _ := f.PopInt()
		f.PushOperand(value.Float(float32(a)))
	case OpI2d:
		a, _ := f.PopInt()
		f.PushOperand(value.Double(float64(a)))
	case OpL2i:
		a, _ := f.PopLong()
		f.PushOperand(value.Integer(int32(a)))
	case OpL2f:
		a, _ := f.PopLong()
		f.PushOperand(value.Float(float32(a)))
	case OpL2d:
		a, _ := f.PopLong()
		f.PushOperand(value.Double(float64(a)))
	case OpF2i:
		a, _ := f.PopFloat()
		f.PushOperand(value.Integer(float32ToInt32(a)))
	case OpF2l:
		a, _ := f.PopFloat()
		f.PushOperand(value.Long(float64ToInt64(float64(a))))
	case OpF2d:
		a, _ := f.PopFloat()
		f.PushOperand(value.Double(float64(a)))
	case OpD2i:
		a, _ := f.PopDouble()
		f.PushOperand(value.Integer(int32(float64ToInt64Clamped(a, math.MinInt32, math.MaxInt32))))
	case OpD2l:
		a, _ := f.PopDouble()
		f.PushOperand(value.Long(float64ToInt64(a)))
	case OpD2f:
		a, _ := f.PopDouble()
		f.PushOperand(value.Float(float32(a)))
	case OpI2b:
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(int32(int8(a))))
	case OpI2c:
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(int32(uint16(a))))
	case OpI2s:
		a, _ := f.PopInt()
		f.PushOperand(value.Integer(int32(int16(a))))

	case OpLcmp:
		b, _ := f.PopLong()
		a, _ := f.PopLong()
		f.PushOperand(value.Integer(cmp64(a, b)))
	case OpFcmpl:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Integer(fcmp(float64(a), float64(b), -1)))
	case OpFcmpg:
		b, _ := f.PopFloat()
		a, _ := f.PopFloat()
		f.PushOperand(value.Integer(fcmp(float64(a), float64(b), 1)))
	case OpDcmpl:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Integer(fcmp(a, b, -1)))
	case OpDcmpg:
		b, _ := f.PopDouble()
		a, _ := f.PopDouble()
		f.PushOperand(value.Integer(fcmp(a, b, 1)))

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		offset := readI16(code, &f.PC)
		v, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		if unaryIntTaken(op, v) {
			f.PC = opStart + int(offset)
		}
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		offset := readI16(code, &f.PC)
		b, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		a, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		if binaryIntTaken(op, a, b) {
			f.PC = opStart + int(offset)
		}
	case OpIfAcmpeq, OpIfAcmpne:
		offset := readI16(code, &f.PC)
		b := f.PopOperand()
		a := f.PopOperand()
		eq := (a.IsNullRef() && b.IsNullRef()) || a.Ref == b.Ref
		if (op == OpIfAcmpeq) == eq {
			f.PC = opStart + int(offset)
		}
	case OpIfnull, OpIfnonnull:
		offset := readI16(code, &f.PC)
		v := f.PopOperand()
		if (op == OpIfnull) == v.IsNullRef() {
			f.PC = opStart + int(offset)
		}
	case OpGoto:
		offset := readI16(code, &f.PC)
		f.PC = opStart + int(offset)
	case OpGotoW:
		offset := readI32(code, &f.PC)
		f.PC = opStart + int(offset)
	case OpJsr:
		offset := readI16(code, &f.PC)
		f.PushOperand(value.Integer(int32(f.PC)))
		f.PC = opStart + int(offset)
	case OpJsrW:
		offset := readI32(code, &f.PC)
		f.PushOperand(value.Integer(int32(f.PC)))
		f.PC = opStart + int(offset)
	case OpRet:
		idx := int(readU8(code, &f.PC))
		f.PC = int(f.GetLocal(idx).I)

	case OpTableswitch:
		if err := vm.execTableswitch(f, code, opStart); err != nil {
			return value.Value{}, false, err
		}
	case OpLookupswitch:
		if err := vm.execLookupswitch(f, code, opStart); err != nil {
			return value.Value{}, false, err
		}

	case OpIreturn, OpFreturn, OpAreturn:
		return f.PopOperand(), true, nil
	case OpLreturn, OpDreturn:
		return f.PopOperand(), true, nil
	case OpReturn:
		return value.Value{}, true, nil

	case OpGetstatic:
		idx := readU16(code, &f.PC)
		v, err := vm.getstatic(pool, idx)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpPutstatic:
		idx := readU16(code, &f.PC)
		v := f.PopOperand()
		if err := vm.putstatic(pool, idx, v); err != nil {
			return value.Value{}, false, err
		}
	case OpGetfield:
		idx := readU16(code, &f.PC)
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.getfield(pool, idx, ref)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpPutfield:
		idx := readU16(code, &f.PC)
		v := f.PopOperand()
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		if err := vm.putfield(pool, idx, ref, v); err != nil {
			return value.Value{}, false, err
		}

	case OpInvokevirtual:
		idx := readU16(code, &f.PC)
		if err := vm.invokevirtual(pool, idx, f); err != nil {
			return value.Value{}, false, err
		}
	case OpInvokespecial:
		idx := readU16(code, &f.PC)
		if err := vm.invokespecial(pool, idx, f); err != nil {
			return value.Value{}, false, err
		}
	case OpInvokestatic:
		idx := readU16(code, &f.PC)
		if err := vm.invokestatic(pool, idx, f); err != nil {
			return value.Value{}, false, err
		}
	case OpInvokeinterface:
		idx := readU16(code, &f.PC)
		readU8(code, &f.PC) // count, unused: argument count is derived from the descriptor
		readU8(code, &f.PC) // reserved, must be zero
		if err := vm.invokeinterface(pool, idx, f); err != nil {
			return value.Value{}, false, err
		}
	case OpInvokedynamic:
		readU16(code, &f.PC)
		readU8(code, &f.PC) // reserved
		readU8(code, &f.PC) // reserved
		if err := vm.invokedynamic(); err != nil {
			return value.Value{}, false, err
		}

	case OpNew:
		idx := readU16(code, &f.PC)
		v, err := vm.opNew(pool, idx)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpNewarray:
		atype := readU8(code, &f.PC)
		length, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.opNewarray(atype, length)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpAnewarray:
		idx := readU16(code, &f.PC)
		length, err := f.PopInt()
		if err != nil {
			return value.Value{}, false, err
		}
		v, err := vm.opAnewarray(pool, idx, length)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpMultianewarray:
		idx := readU16(code, &f.PC)
		dims := int(readU8(code, &f.PC))
		counts := make([]int32, dims)
		for i := dims - 1; i >= 0; i-- {
			n, err := f.PopInt()
			if err != nil {
				return value.Value{}, false, err
			}
			counts[i] = n
		}
		v, err := vm.opMultianewarray(pool, idx, counts)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(v)
	case OpArraylength:
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(value.Integer(vm.h.ArrayLength(ref)))
	case OpCheckcast:
		idx := readU16(code, &f.PC)
		top := f.Peek()
		if err := vm.opCheckcast(pool, idx, top); err != nil {
			return value.Value{}, false, err
		}
	case OpInstanceof:
		idx := readU16(code, &f.PC)
		top := f.PopOperand()
		result, err := vm.opInstanceof(pool, idx, top)
		if err != nil {
			return value.Value{}, false, err
		}
		f.PushOperand(value.Integer(result))
	case OpAthrow:
		ref, err := f.PopObjVal()
		if err != nil {
			return value.Value{}, false, err
		}
		return value.Value{}, false, &Thrown{Ref: ref, Trace: vm.captureTrace()}

	case OpMonitorenter, OpMonitorexit:
		f.PopOperand() // single-mutator engine: locking is a no-op past the pop

	case OpWide:
		if err := vm.execWide(f, code); err != nil {
			return value.Value{}, false, err
		}

	default:
		return value.Value{}, false, unknownOpcode(op, opStart)
	}

	return value.Value{}, false, nil
}

func (vm *VM) execLdc(pool *rcp.Pool, f *frame.JavaFrame, idx int) error {
	tag, err := pool.Tag(uint16(idx))
	if err != nil {
		return err
	}
	switch tag {
	case classfile.TagString:
		s, err := pool.GetStringValue(uint16(idx))
		if err != nil {
			return err
		}
		strSym := vm.interner.Intern(s)
		ref, err := vm.h.GetStrFromPoolOrNew(strSym, s, vm.stringLayout)
		if err != nil {
			return err
		}
		f.PushOperand(value.Ref(ref))
		return nil
	case classfile.TagClass:
		classSym, err := pool.GetClassSym(uint16(idx))
		if err != nil {
			return err
		}
		classID, err := vm.area.GetClassIdOrLoad(classSym)
		if err != nil {
			return err
		}
		mirrorClassID, err := vm.area.GetClassIdOrLoad(vm.interner.Intern("java/lang/Class"))
		if err != nil {
			return err
		}
		ref, err := vm.h.GetMirrorRefOrCreate(uint32(classID), uint32(mirrorClassID), vm.area.Class(mirrorClassID).InstanceSize)
		if err != nil {
			return err
		}
		f.PushOperand(value.Ref(ref))
		return nil
	default:
		v, err := pool.GetConstant(uint16(idx))
		if err != nil {
			return err
		}
		f.PushOperand(v)
		return nil
	}
}

func (vm *VM) execTableswitch(f *frame.JavaFrame, code []byte, opStart int) error {
	index, err := f.PopInt()
	if err != nil {
		return err
	}
	f.PC = align4(f.PC)
	defaultOffset := readI32(code, &f.PC)
	low := readI32(code, &f.PC)
	high := readI32(code, &f.PC)
	if index < low || index > high {
		f.PC = opStart + int(defaultOffset)
		return nil
	}
	entryOffset := int(index-low) * 4
	f.PC += entryOffset
	offset := readI32(code, &f.PC)
	f.PC = opStart + int(offset)
	return nil
}

func (vm *VM) execLookupswitch(f *frame.JavaFrame, code []byte, opStart int) error {
	key, err := f.PopInt()
	if err != nil {
		return err
	}
	f.PC = align4(f.PC)
	defaultOffset := readI32(code, &f.PC)
	n := readI32(code, &f.PC)
	for i := int32(0); i < n; i++ {
		match := readI32(code, &f.PC)
		offset := readI32(code, &f.PC)
		if match == key {
			f.PC = opStart + int(offset)
			return nil
		}
	}
	f.PC = opStart + int(defaultOffset)
	return nil
}

func (vm *VM) execWide(f *frame.JavaFrame, code []byte) error {
	sub := readU8(code, &f.PC)
	idx := int(readU16(code, &f.PC))
	switch sub {
	case OpIload, OpLload, OpFload, OpDload, OpAload:
		f.PushOperand(f.GetLocal(idx))
	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		f.SetLocal(idx, f.PopOperand())
	case OpIinc:
		delta := int32(readI16(code, &f.PC))
		cur := f.GetLocal(idx)
		f.SetLocal(idx, value.Integer(cur.I+delta))
	case OpRet:
		f.PC = int(f.GetLocal(idx).I)
	default:
		return unknownOpcode(sub, f.PC)
	}
	return nil
}

func align4(pc int) int {
	for pc%4 != 0 {
		pc++
	}
	return pc
}

func cmp64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// fcmp implements fcmpl/fcmpg and dcmpl/dcmpg: nanResult is the value
// pushed when either operand is NaN (-1 for the 'l' forms, 1 for 'g').
func fcmp(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func unaryIntTaken(op uint8, v int32) bool {
	switch op {
	case OpIfeq:
		return v == 0
	case OpIfne:
		return v != 0
	case OpIflt:
		return v < 0
	case OpIfge:
		return v >= 0
	case OpIfgt:
		return v > 0
	case OpIfle:
		return v <= 0
	default:
		return false
	}
}

func binaryIntTaken(op uint8, a, b int32) bool {
	switch op {
	case OpIfIcmpeq:
		return a == b
	case OpIfIcmpne:
		return a != b
	case OpIfIcmplt:
		return a < b
	case OpIfIcmpge:
		return a >= b
	case OpIfIcmpgt:
		return a > b
	case OpIfIcmple:
		return a <= b
	default:
		return false
	}
}

// float32ToInt32, float64ToInt64 and float64ToInt64Clamped implement the
// JVM's saturating, NaN-to-zero conversion semantics for f2i, f2l/d2l and
// d2i (JVMS §2.8.3),
// which differ from Go's undefined-on-overflow float-to-int conversion.
func float32ToInt32(f float32) int32 {
	return int32(float64ToInt64Clamped(float64(f), math.MinInt32, math.MaxInt32))
}

func float64ToInt64(f float64) int64 {
	return float64ToInt64Clamped(f, math.MinInt64, math.MaxInt64)
}

func float64ToInt64Clamped(f float64, min, max float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f <= min {
		return int64(min)
	}
	if f >= max {
		if max >= math.MaxInt64 {
			// float64(MaxInt64) rounds up to 2^63, which int64() cannot hold.
			return math.MaxInt64
		}
		return int64(max)
	}
	return int64(f)
}

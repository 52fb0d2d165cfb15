package interp

import (
	"fmt"

	"github.com/classvm/classvm/internal/engineerror"
	"github.com/classvm/classvm/internal/frame"
	"github.com/classvm/classvm/internal/heap"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/value"
)

// invokeMethod is the single entry point for running a method body,
// native or interpreted, from either Execute, RunClinit, or an invoke*
// opcode handler. args holds one Value per JVM argument in declaration
// order (receiver first for instance methods); it does not carry the
// double-slot padding long/double occupy in the class file's local
// variable table.
func (vm *VM) invokeMethod(classID methodarea.ClassId, methodID methodarea.MethodId, args []value.Value) (value.Value, error) {
	m := vm.area.Method(methodID)

	if m.IsNative {
		fn, ok := vm.natives.Lookup(vm.area.Class(classID).NameSym, m.NameSym, m.DescSym)
		if !ok {
			return value.Value{}, &notLinked{Class: vm.interner.Resolve(vm.area.Class(classID).NameSym), Name: vm.interner.Resolve(m.NameSym), Descriptor: vm.interner.Resolve(m.DescSym)}
		}
		vm.frameTrace = append(vm.frameTrace, TraceElement{
			ClassName:  toDotted(vm.interner.Resolve(vm.area.Class(classID).NameSym)),
			MethodName: vm.interner.Resolve(m.NameSym),
			Native:     true,
		})
		defer func() { vm.frameTrace = vm.frameTrace[:len(vm.frameTrace)-1] }()
		return fn(vm, args)
	}

	if m.Code == nil {
		return value.Value{}, engineerror.New(engineerror.KindCorruptClass, "%s.%s%s has no Code attribute", vm.interner.Resolve(vm.area.Class(classID).NameSym), vm.interner.Resolve(m.NameSym), vm.interner.Resolve(m.DescSym))
	}

	f := frame.NewJavaFrame(int(m.Code.MaxLocals), int(m.Code.MaxStack), methodID, classID)
	slot := 0
	for _, a := range args {
		f.SetLocal(slot, a)
		if a.IsWide() {
			slot += 2
		} else {
			slot++
		}
	}
	if err := vm.stack.Push(f); err != nil {
		return value.Value{}, vm.convertHostError(err)
	}
	vm.frameTrace = append(vm.frameTrace, TraceElement{
		ClassName:  toDotted(vm.interner.Resolve(vm.area.Class(classID).NameSym)),
		MethodName: vm.interner.Resolve(m.NameSym),
		javaFrame:  f,
	})

	result, err := vm.executeFrame(f, m)

	vm.stack.Pop()
	vm.frameTrace = vm.frameTrace[:len(vm.frameTrace)-1]
	return result, err
}

// notLinked reports a native method the registry has no body for.
type notLinked struct{ Class, Name, Descriptor string }

func (e *notLinked) Error() string {
	return fmt.Sprintf("unsatisfied link error: %s.%s%s", e.Class, e.Name, e.Descriptor)
}

// executeFrame runs f's bytecode to completion, handling one method
// activation's exception-table search locally per §4.7.4 before letting
// an error propagate to the caller (invokeMethod, which represents the
// next frame down).
func (vm *VM) executeFrame(f *frame.JavaFrame, m *methodarea.Method) (value.Value, error) {
	code := m.Code.Code
	pool := vm.area.Class(f.ClassID).RCP

	for {
		if f.PC >= len(code) {
			return value.Value{}, engineerror.New(engineerror.KindCorruptClass, "fell off the end of %s's code", vm.interner.Resolve(m.NameSym))
		}
		startPC := f.PC
		result, done, err := vm.step(f, pool, code)
		if err != nil {
			thrown, convErr := vm.toThrown(err)
			if convErr != nil {
				return value.Value{}, convErr
			}
			handlerPC, found := vm.findHandler(m, startPC, thrown.Ref)
			if !found {
				return value.Value{}, thrown
			}
			f.SP = 0
			f.PushOperand(value.Ref(thrown.Ref))
			f.PC = handlerPC
			continue
		}
		if done {
			return result, nil
		}
	}
}

// findHandler scans m's exception table for a handler whose range covers
// pc and whose catch type matches (or is catch-all).
func (vm *VM) findHandler(m *methodarea.Method, pc int, exceptionRef value.HeapRef) (int, bool) {
	pool := vm.area.Class(m.ClassID).RCP
	classID := methodarea.ClassId(vm.h.ClassID(exceptionRef))
	for _, eh := range m.Code.ExceptionHandlers {
		if pc < int(eh.StartPC) || pc >= int(eh.EndPC) {
			continue
		}
		if eh.CatchType == 0 {
			return int(eh.HandlerPC), true
		}
		catchSym, err := pool.GetClassSym(eh.CatchType)
		if err != nil {
			continue
		}
		if vm.area.InstanceOf(classID, catchSym) {
			return int(eh.HandlerPC), true
		}
	}
	return 0, false
}

// toThrown maps a host-detected fault to a live Java exception instance.
// engineerror.Fatal values are returned unconverted (as the second
// result) since they represent engine bugs the exception table must
// never catch.
func (vm *VM) toThrown(err error) (*Thrown, error) {
	switch e := err.(type) {
	case *Thrown:
		return e, nil
	case *engineerror.Fatal:
		return nil, e
	case *frame.NullPointerException:
		raised := vm.raiseBuiltin("java/lang/NullPointerException", "")
		return asThrown(raised)
	case *heap.ArrayIndexOutOfBounds:
		raised := vm.raiseBuiltin("java/lang/ArrayIndexOutOfBoundsException", e.Error())
		return asThrown(raised)
	case *heap.NegativeArraySize:
		raised := vm.raiseBuiltin("java/lang/NegativeArraySizeException", e.Error())
		return asThrown(raised)
	case *heap.OutOfMemory:
		raised := vm.raiseBuiltin("java/lang/OutOfMemoryError", e.Error())
		return asThrown(raised)
	case *methodarea.ClassNotFound:
		raised := vm.raiseBuiltin("java/lang/NoClassDefFoundError", e.Error())
		return asThrown(raised)
	case *methodarea.LinkageError:
		raised := vm.raiseBuiltin("java/lang/LinkageError", e.Error())
		return asThrown(raised)
	case *methodarea.NoSuchMethod:
		raised := vm.raiseBuiltin("java/lang/NoSuchMethodError", e.Error())
		return asThrown(raised)
	case *methodarea.NoSuchField:
		raised := vm.raiseBuiltin("java/lang/NoSuchFieldError", e.Error())
		return asThrown(raised)
	case *notLinked:
		raised := vm.raiseBuiltin("java/lang/UnsatisfiedLinkError", e.Error())
		return asThrown(raised)
	case *frame.StackOverflow:
		raised := vm.raiseBuiltin("java/lang/StackOverflowError", "")
		return asThrown(raised)
	default:
		return nil, err
	}
}

func asThrown(err error) (*Thrown, error) {
	if t, ok := err.(*Thrown); ok {
		return t, nil
	}
	return nil, err
}

// convertHostError is invokeMethod's narrower variant of toThrown, for
// spots (stack push) where a frame.StackOverflow needs mapping but the
// caller cannot run a handler search itself (there is no frame yet).
func (vm *VM) convertHostError(err error) error {
	thrown, fatal := vm.toThrown(err)
	if fatal != nil {
		return fatal
	}
	return thrown
}

// Package interp is the interpreter (C7): the dispatch loop, opcode
// handler set, class-initialization gate, exception-handler search, and
// method invocation resolution. It is the component that ties the method
// area, heap, frame stack, and native registry together into a runnable
// engine.
package interp

import (
	"fmt"
	"io"

	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/engineerror"
	"github.com/classvm/classvm/internal/frame"
	"github.com/classvm/classvm/internal/heap"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/natives"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

// VM is the interpreter's top-level state: one instance executes one
// program on one mutator thread, per §5's single-mutator concurrency
// model.
type VM struct {
	interner *sym.Interner
	types    *descriptor.Table
	area     *methodarea.MethodArea
	h        *heap.Heap
	natives  *natives.Registry
	stack    *frame.Stack

	stdout io.Writer
	stderr io.Writer

	stringLayout heap.StringLayout
	stringsReady bool

	objectSym    sym.Sym
	throwableSym sym.Sym

	// frameTrace mirrors the call chain currently active on vm.stack, one
	// entry per pushed frame, most-recent last. Maintained alongside
	// invokeMethod's push/pop (exec.go) since frame.Stack itself exposes no
	// random access for trace capture.
	frameTrace []TraceElement
}

// Config is the subset of the startup configuration the interpreter
// consumes directly (heap/frame sizing); the rest (class path, main
// class) is handled by the caller that drives Execute.
type Config struct {
	HeapCapacity     uint64
	FrameStackSize   int
	OperandStackSize int
}

// New constructs a VM wired to the given method area and heap. The method
// area's Clinit hook is set to this VM, closing the load/link/initialize
// loop described in §4.7.3.
func New(interner *sym.Interner, types *descriptor.Table, area *methodarea.MethodArea, h *heap.Heap, reg *natives.Registry, frameStackSize int, stdout, stderr io.Writer) *VM {
	vm := &VM{
		interner: interner,
		types:    types,
		area:     area,
		h:        h,
		natives:  reg,
		stack:    frame.NewStack(frameStackSize),
		stdout:   stdout,
		stderr:   stderr,

		objectSym:    interner.Intern("java/lang/Object"),
		throwableSym: interner.Intern("java/lang/Throwable"),
	}
	area.Clinit = vm
	return vm
}

// natives.Context / methodarea.ClinitRunner satisfaction.
func (vm *VM) Heap() *heap.Heap               { return vm.h }
func (vm *VM) Area() *methodarea.MethodArea   { return vm.area }
func (vm *VM) Interner() *sym.Interner        { return vm.interner }
func (vm *VM) Stdout() io.Writer              { return vm.stdout }
func (vm *VM) StringLayout() heap.StringLayout { return vm.stringLayout }

// NewString allocates a java/lang/String instance, lazily resolving the
// class's real field layout on first use.
func (vm *VM) NewString(s string) (value.HeapRef, error) {
	if err := vm.ensureStringLayout(); err != nil {
		return 0, err
	}
	return vm.h.AllocString(s, vm.stringLayout)
}

// ReadJavaString reads back the Go string backing a java/lang/String
// instance, for natives (println) that need to format one.
func (vm *VM) ReadJavaString(ref value.HeapRef) (string, error) {
	if err := vm.ensureStringLayout(); err != nil {
		return "", err
	}
	coder := vm.h.ReadField(ref, vm.stringLayout.CoderOffset, descriptor.Byte)
	valueField := vm.h.ReadField(ref, vm.stringLayout.ValueOffset, descriptor.Reference)
	if valueField.IsNullRef() {
		return "", nil
	}
	length := vm.h.ArrayLength(valueField.Ref)
	out := make([]rune, 0, length)
	if coder.I == 0 { // LATIN1
		for i := int32(0); i < length; i++ {
			b, _ := vm.h.ReadArrayElement(valueField.Ref, i)
			out = append(out, rune(byte(b.I)))
		}
	} else { // UTF16, two bytes per unit, little-endian
		for i := int32(0); i < length; i += 2 {
			lo, _ := vm.h.ReadArrayElement(valueField.Ref, i)
			hi, _ := vm.h.ReadArrayElement(valueField.Ref, i+1)
			unit := uint16(byte(lo.I)) | uint16(byte(hi.I))<<8
			out = append(out, rune(unit))
		}
	}
	return string(out), nil
}

// ensureStringLayout resolves java/lang/String's actual instance field
// offsets for "value" ([B) and "coder" (B) the first time a string is
// allocated or read, rather than assuming a fixed layout independent of
// what the loaded class declares.
func (vm *VM) ensureStringLayout() error {
	if vm.stringsReady {
		return nil
	}
	strSym := vm.interner.Intern("java/lang/String")
	strID, err := vm.area.GetClassIdOrLoad(strSym)
	if err != nil {
		return err
	}
	strClass := vm.area.Class(strID)

	valueKey := methodarea.FieldKey{NameSym: vm.interner.Intern("value"), DescSym: vm.interner.Intern("[B")}
	coderKey := methodarea.FieldKey{NameSym: vm.interner.Intern("coder"), DescSym: vm.interner.Intern("B")}
	valueLayout, ok := strClass.InstanceFieldLayout[valueKey]
	if !ok {
		return fmt.Errorf("java/lang/String has no 'value' ([B) field")
	}
	coderLayout, ok := strClass.InstanceFieldLayout[coderKey]
	if !ok {
		return fmt.Errorf("java/lang/String has no 'coder' (B) field")
	}

	byteArrID, err := vm.area.GetClassIdOrLoad(vm.interner.Intern("[B"))
	if err != nil {
		return err
	}

	vm.stringLayout = heap.StringLayout{
		ClassID:      uint32(strID),
		CoderOffset:  coderLayout.Offset,
		ValueOffset:  valueLayout.Offset,
		ByteArrayCls: uint32(byteArrID),
	}
	vm.stringsReady = true
	return nil
}

// RunClinit implements methodarea.ClinitRunner: it invokes a class's
// <clinit> with no arguments and no return value expected.
func (vm *VM) RunClinit(classID methodarea.ClassId, methodID methodarea.MethodId) error {
	_, err := vm.invokeMethod(classID, methodID, nil)
	return err
}

// Execute is the driver entry point (§6's exit-behavior contract): it
// loads mainClass, resolves its public static void main(String[]) method,
// and runs it to completion.
func (vm *VM) Execute(mainClass string) error {
	mainSym := vm.interner.Intern(mainClass)
	classID, err := vm.area.GetClassIdOrLoad(mainSym)
	if err != nil {
		return err
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return vm.reportUncaught(err)
	}

	class := vm.area.Class(classID)
	mainNameSym := vm.interner.Intern("main")
	mainDescSym := vm.interner.Intern("([Ljava/lang/String;)V")
	methodID, ok := class.StaticMethods[methodarea.MethodKey{NameSym: mainNameSym, DescSym: mainDescSym}]
	if !ok {
		return &methodarea.NoSuchMethod{Class: mainClass, Name: "main", Descriptor: "([Ljava/lang/String;)V"}
	}

	stringClassID, err := vm.area.GetClassIdOrLoad(vm.interner.Intern("java/lang/String"))
	if err != nil {
		return err
	}
	argsArray, err := vm.h.AllocObjectArray(uint32(stringClassID), 0)
	if err != nil {
		return err
	}
	_, err = vm.invokeMethod(classID, methodID, []value.Value{value.Ref(argsArray)})
	if err != nil {
		return vm.reportUncaught(err)
	}
	return nil
}

// reportUncaught implements §6's uncaught-exception exit behavior: print
// the captured trace and surface a non-nil error so the driver exits
// non-zero. Fatal engine errors pass through unchanged.
func (vm *VM) reportUncaught(err error) error {
	thrown, ok := err.(*Thrown)
	if !ok {
		return err
	}
	className := "java.lang.Throwable"
	classID := methodarea.ClassId(vm.h.ClassID(thrown.Ref))
	if class := vm.area.Class(classID); class != nil {
		className = toDotted(vm.interner.Resolve(class.NameSym))
	}
	fmt.Fprint(vm.stderr, thrown.PrintStackTrace(className, vm.throwableMessage(thrown.Ref)))
	return thrown
}

// throwableMessage reads the detailMessage field every java.lang.Throwable
// carries, walking up from the instance's own class the way getfield
// resolves an inherited field. Returns "" if the instance predates
// Throwable's field layout being resolvable or the message is null.
func (vm *VM) throwableMessage(ref value.HeapRef) string {
	classID := methodarea.ClassId(vm.h.ClassID(ref))
	key := methodarea.FieldKey{
		NameSym: vm.interner.Intern("detailMessage"),
		DescSym: vm.interner.Intern("Ljava/lang/String;"),
	}
	layout, ok := vm.instanceFieldOwner(classID, key)
	if !ok {
		return ""
	}
	msgVal := vm.h.ReadField(ref, layout.Offset, vm.types.Type(layout.Type).Kind)
	if msgVal.IsNullRef() {
		return ""
	}
	msg, err := vm.ReadJavaString(msgVal.Ref)
	if err != nil {
		return ""
	}
	return msg
}

// raiseBuiltin constructs an instance of a built-in exception/error class
// (e.g. java/lang/ArithmeticException) with the given message, runs its
// constructor, and wraps it as a *Thrown ready for handler-search
// propagation. Used for host-detected conditions (§4.7.4: "exceptions
// originating in host code ... are first mapped to a Java instance").
func (vm *VM) raiseBuiltin(className, message string) error {
	classSym := vm.interner.Intern(className)
	classID, err := vm.area.GetClassIdOrLoad(classSym)
	if err != nil {
		return engineerror.New(engineerror.KindCorruptClass, "raising %s: %v", className, err)
	}
	if err := vm.area.EnsureInitialized(classID); err != nil {
		return err
	}
	class := vm.area.Class(classID)
	ref, err := vm.h.AllocInstance(class.InstanceSize, uint32(classID))
	if err != nil {
		return err
	}

	initName := vm.interner.Intern("<init>")
	msgDesc := vm.interner.Intern("(Ljava/lang/String;)V")
	var ctorKey methodarea.MethodKey
	var ctorArgs []value.Value
	if _, ok := class.SpecialMethods[methodarea.MethodKey{NameSym: initName, DescSym: msgDesc}]; ok {
		msgRef, err := vm.NewString(message)
		if err != nil {
			return err
		}
		ctorKey = methodarea.MethodKey{NameSym: initName, DescSym: msgDesc}
		ctorArgs = []value.Value{value.Ref(ref), value.Ref(msgRef)}
	}
	if ctorArgs == nil {
		noArgDesc := vm.interner.Intern("()V")
		ctorKey = methodarea.MethodKey{NameSym: initName, DescSym: noArgDesc}
		ctorArgs = []value.Value{value.Ref(ref)}
	}
	methodID, ok := class.SpecialMethods[ctorKey]
	if !ok {
		return engineerror.New(engineerror.KindCorruptClass, "%s has no usable constructor", className)
	}
	if _, err := vm.invokeMethod(classID, methodID, ctorArgs); err != nil {
		return err
	}

	return &Thrown{Ref: ref, Trace: vm.captureTrace()}
}

// captureTrace snapshots the active call chain, most-recent frame first,
// matching the order Throwable.printStackTrace prints in. Each bytecode
// frame's current pc is read out now, while it is still live on vm.stack;
// the javaFrame pointer itself is dropped from the snapshot.
func (vm *VM) captureTrace() []TraceElement {
	trace := make([]TraceElement, len(vm.frameTrace))
	for i, te := range vm.frameTrace {
		if te.javaFrame != nil {
			te.PC = te.javaFrame.PC
			te.javaFrame = nil
		}
		trace[len(trace)-1-i] = te
	}
	return trace
}

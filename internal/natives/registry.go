// Package natives is the native method registry consumed by the
// interpreter (§6): a table from (class, name, descriptor) to a Go
// function implementing a JDK native method body. It is grounded on the
// handful of java.lang/java.io natives every minimal class library needs
// to bootstrap (Object, System, PrintStream, Throwable, Class) rather
// than attempting JDK-wide coverage.
package natives

import (
	"fmt"
	"io"

	"github.com/classvm/classvm/internal/heap"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

// Context is the narrow slice of VM state a native method body needs. The
// interpreter's VM type satisfies this structurally; natives never import
// internal/interp, which would cycle back here.
type Context interface {
	Heap() *heap.Heap
	Area() *methodarea.MethodArea
	Interner() *sym.Interner
	Stdout() io.Writer
	StringLayout() heap.StringLayout
	NewString(s string) (value.HeapRef, error)
	ReadJavaString(ref value.HeapRef) (string, error)
}

// Func is a native method body. It returns the result Value (ignored for
// void-returning methods) and an error, which may be an engine fault or a
// *interp.Thrown-like Java exception surfaced by the caller.
type Func func(ctx Context, args []value.Value) (value.Value, error)

// Key identifies one native method. ClassSym is zero for classless
// registrations such as Object.clone on arrays, which every array class
// shares regardless of element type.
type Key struct {
	ClassSym sym.Sym
	NameSym  sym.Sym
	DescSym  sym.Sym
}

// UnsatisfiedLinkError reports a native method with no registered body.
type UnsatisfiedLinkError struct {
	Class, Name, Descriptor string
}

func (e *UnsatisfiedLinkError) Error() string {
	return fmt.Sprintf("unsatisfied link error: %s.%s%s", e.Class, e.Name, e.Descriptor)
}

// Registry is the (class, name, descriptor) -> Func lookup table.
type Registry struct {
	interner *sym.Interner
	table    map[Key]Func
}

// NewRegistry creates an empty registry. Callers typically follow this
// with RegisterBootstrap to install the standard bootstrap set.
func NewRegistry(interner *sym.Interner) *Registry {
	return &Registry{interner: interner, table: make(map[Key]Func)}
}

// Register installs fn for (className, name, descriptor). className == ""
// registers a classless entry.
func (r *Registry) Register(className, name, descriptor string, fn Func) {
	key := Key{NameSym: r.interner.Intern(name), DescSym: r.interner.Intern(descriptor)}
	if className != "" {
		key.ClassSym = r.interner.Intern(className)
	}
	r.table[key] = fn
}

// Lookup finds the native body for (classSym, nameSym, descSym), falling
// back to the classless registration if a class-specific one is absent.
func (r *Registry) Lookup(classSym, nameSym, descSym sym.Sym) (Func, bool) {
	if fn, ok := r.table[Key{ClassSym: classSym, NameSym: nameSym, DescSym: descSym}]; ok {
		return fn, true
	}
	fn, ok := r.table[Key{NameSym: nameSym, DescSym: descSym}]
	return fn, ok
}

// RegisterBootstrap installs the native methods the runtime bootstrap
// classes (Object, System, Throwable, PrintStream, Class) need to get a
// "Hello, World"-class program running without a full JDK class library.
func (r *Registry) RegisterBootstrap(stdout, stderr io.Writer) {
	r.Register("java/lang/Object", "<init>", "()V", func(ctx Context, args []value.Value) (value.Value, error) {
		return value.Null(), nil
	})
	r.Register("java/lang/Object", "hashCode", "()I", func(ctx Context, args []value.Value) (value.Value, error) {
		return value.Integer(int32(args[0].Ref)), nil
	})
	r.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(ctx Context, args []value.Value) (value.Value, error) {
		classID := ctx.Heap().ClassID(args[0].Ref)
		mirrorClassID, err := ctx.Area().GetClassIdOrLoad(ctx.Interner().Intern("java/lang/Class"))
		if err != nil {
			return value.Value{}, err
		}
		ref, err := ctx.Heap().GetMirrorRefOrCreate(classID, uint32(mirrorClassID), ctx.Area().Class(mirrorClassID).InstanceSize)
		if err != nil {
			return value.Value{}, err
		}
		return value.Ref(ref), nil
	})
	r.Register("", "clone", "()Ljava/lang/Object;", func(ctx Context, args []value.Value) (value.Value, error) {
		clone, err := ctx.Heap().CloneObject(args[0].Ref)
		if err != nil {
			return value.Value{}, err
		}
		return value.Ref(clone), nil
	})

	r.Register("java/lang/System", "currentTimeMillis", "()J", func(ctx Context, args []value.Value) (value.Value, error) {
		return value.Long(0), nil // deterministic by design: no wall-clock dependency in the engine core
	})
	r.Register("java/lang/System", "nanoTime", "()J", func(ctx Context, args []value.Value) (value.Value, error) {
		return value.Long(0), nil // same determinism rationale as currentTimeMillis
	})
	r.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", func(ctx Context, args []value.Value) (value.Value, error) {
		if args[0].IsNullRef() {
			return value.Integer(0), nil
		}
		return value.Integer(int32(args[0].Ref)), nil // same ref-as-hash convention as Object.hashCode
	})
	r.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", func(ctx Context, args []value.Value) (value.Value, error) {
		src := args[0].Ref
		srcPos := args[1].I
		dst := args[2].Ref
		dstPos := args[3].I
		length := args[4].I
		if err := ctx.Heap().CopyPrimitiveSlice(src, srcPos, dst, dstPos, length); err != nil {
			return value.Value{}, err
		}
		return value.Null(), nil
	})

	printlnBody := func(w io.Writer) Func {
		return func(ctx Context, args []value.Value) (value.Value, error) {
			s, err := formatPrintArg(ctx, args[1])
			if err != nil {
				return value.Value{}, err
			}
			fmt.Fprintln(w, s)
			return value.Null(), nil
		}
	}
	printBody := func(w io.Writer) Func {
		return func(ctx Context, args []value.Value) (value.Value, error) {
			s, err := formatPrintArg(ctx, args[1])
			if err != nil {
				return value.Value{}, err
			}
			fmt.Fprint(w, s)
			return value.Null(), nil
		}
	}
	for _, desc := range []string{"(Ljava/lang/String;)V", "(I)V", "(J)V", "(C)V", "(Z)V", "(Ljava/lang/Object;)V"} {
		r.Register("java/io/PrintStream", "println", desc, printlnBody(stdout))
		r.Register("java/io/PrintStream", "print", desc, printBody(stdout))
	}

	r.Register("java/lang/Throwable", "fillInStackTrace", "()Ljava/lang/Throwable;", func(ctx Context, args []value.Value) (value.Value, error) {
		return args[0], nil // stack-trace snapshotting happens at throw time in the interpreter, not here
	})

	r.Register("java/lang/Class", "getName", "()Ljava/lang/String;", func(ctx Context, args []value.Value) (value.Value, error) {
		classID, ok := ctx.Heap().ClassIDFromMirror(args[0].Ref)
		if !ok {
			return value.Value{}, fmt.Errorf("getName: %d is not a Class mirror", args[0].Ref)
		}
		class := ctx.Area().Class(methodarea.ClassId(classID))
		name := ctx.Interner().Resolve(class.NameSym)
		ref, err := ctx.NewString(name)
		if err != nil {
			return value.Value{}, err
		}
		return value.Ref(ref), nil
	})
}

func formatPrintArg(ctx Context, v value.Value) (string, error) {
	switch v.Kind {
	case value.KindInteger:
		return fmt.Sprintf("%d", v.I), nil
	case value.KindLong:
		return fmt.Sprintf("%d", v.L), nil
	case value.KindFloat:
		return fmt.Sprintf("%g", v.F), nil
	case value.KindDouble:
		return fmt.Sprintf("%g", v.D), nil
	case value.KindNull:
		return "null", nil
	case value.KindRef:
		if v.Ref == 0 {
			return "null", nil
		}
		return ctx.ReadJavaString(v.Ref)
	default:
		return "", fmt.Errorf("formatPrintArg: unknown kind %v", v.Kind)
	}
}

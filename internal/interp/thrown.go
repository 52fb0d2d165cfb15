package interp

import (
	"fmt"
	"strings"

	"github.com/classvm/classvm/internal/frame"
	"github.com/classvm/classvm/internal/value"
)

// Thrown is a live Java exception propagating through frames: the
// bytecode-visible counterpart to engineerror.Fatal. It carries the
// throwable instance plus a snapshot of the frames that were active when
// it was raised, for printStackTrace.
type Thrown struct {
	Ref   value.HeapRef
	Trace []TraceElement
}

// TraceElement is one captured frame for stack-trace printing: the
// (class_id, method_id, pc) tuple spec §7 calls for, already resolved to
// display strings at capture time.
type TraceElement struct {
	ClassName  string
	MethodName string
	PC         int
	Native     bool

	// javaFrame is the live frame this element was captured from, kept
	// only long enough for captureTrace to read its current PC; it is
	// never copied into a Thrown's Trace.
	javaFrame *frame.JavaFrame
}

func (t *Thrown) Error() string {
	if len(t.Trace) == 0 {
		return fmt.Sprintf("uncaught exception (ref=0x%x)", uint64(t.Ref))
	}
	top := t.Trace[0]
	return fmt.Sprintf("uncaught exception (ref=0x%x) at %s.%s", uint64(t.Ref), top.ClassName, top.MethodName)
}

// toDotted converts a binary class name (java/lang/Object) to the
// source/display form (java.lang.Object) spec §7 and scenario S5 require.
func toDotted(binaryName string) string {
	return strings.ReplaceAll(binaryName, "/", ".")
}

// sourceFile derives a plausible source-file name from a dotted class
// name, the way javac's default SourceFile attribute would (the
// outermost class's simple name plus ".java"). There is no
// SourceFile/LineNumberTable attribute parsed (spec.md non-goal), so this
// is the best available stand-in for the "<source>" component of
// "(<source>:<line>)".
func sourceFile(dottedClassName string) string {
	name := dottedClassName
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '$'); i >= 0 {
		name = name[:i]
	}
	return name + ".java"
}

// PrintStackTrace formats the captured trace per spec §7: "<className>:
// <message>" (message omitted, Java-style, when there is none), then one
// "\tat <class>.<method>(<source>:<line>)" line per frame, most-recent
// first. line is the raw bytecode pc, since no LineNumberTable is parsed.
func (t *Thrown) PrintStackTrace(dottedClassName, message string) string {
	var s string
	if message != "" {
		s = fmt.Sprintf("%s: %s\n", dottedClassName, message)
	} else {
		s = dottedClassName + "\n"
	}
	for _, te := range t.Trace {
		if te.Native {
			s += fmt.Sprintf("\tat %s.%s(Native Method)\n", te.ClassName, te.MethodName)
			continue
		}
		s += fmt.Sprintf("\tat %s.%s(%s:%d)\n", te.ClassName, te.MethodName, sourceFile(te.ClassName), te.PC)
	}
	return s
}

// Package classfile decodes the on-disk class-file format into a structured
// in-memory representation. It is a pure decoder: it knows nothing about
// symbols, linking, or execution. The method area (internal/methodarea)
// consumes it through Parse/ParseFile; this keeps the "parse(bytes) ->
// ClassFile" boundary from §6 explicit, even though both sides live in this
// module.
package classfile

// Access flags (JVMS §4.1, §4.5, §4.6 — the subset this engine inspects).
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// ClassFile is the fully parsed structure of one .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry // 1-indexed; index 0 is nil
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo

	// BootstrapMethods backs invokedynamic call sites (JVMS §4.7.23).
	BootstrapMethods []BootstrapMethod
}

// ConstantPoolEntry is implemented by every constant-pool tag this decoder
// understands.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *ConstantMethodHandle) Tag() uint8 { return TagMethodHandle }

type ConstantMethodType struct{ DescriptorIndex uint16 }

func (c *ConstantMethodType) Tag() uint8 { return TagMethodType }

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantDynamic) Tag() uint8 { return TagDynamic }

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantInvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

// BootstrapMethod is one entry of the class's BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef          uint16 // constant-pool index of a MethodHandle
	BootstrapArguments []uint16
}

// MethodInfo is one method_info structure.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute // nil for abstract/native methods
}

// FieldInfo is one field_info structure.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// ExceptionHandler is one entry of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // constant-pool index of a Class entry, or 0 for catch-all
}

// CodeAttribute is the parsed Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
}

// ClassName resolves the name of the class this file declares.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName resolves the name of the superclass, or "" if this class
// has none (only java/lang/Object).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// FindMethod looks up a declared method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// FindField looks up a declared field by name.
func (cf *ClassFile) FindField(name string) *FieldInfo {
	for i := range cf.Fields {
		f := &cf.Fields[i]
		if f.Name == name {
			return f
		}
	}
	return nil
}

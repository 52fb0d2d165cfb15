package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from disk.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a .class file from r. This is the "parse(bytes) ->
// ClassFile" boundary the method area consumes; it performs no linking,
// symbol resolution, or validation beyond what's needed to decode the
// bytes faithfully.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := range fields {
		var accessFlags, nameIndex, descIndex uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading field %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading field %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading field %d descriptor index: %w", i, err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		descriptor, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}
		if err := skipAttributes(r); err != nil {
			return nil, fmt.Errorf("skipping field %d attributes: %w", i, err)
		}
		fields[i] = FieldInfo{AccessFlags: accessFlags, Name: name, Descriptor: descriptor}
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := range methods {
		var accessFlags, nameIndex, descIndex uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading method %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading method %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading method %d descriptor index: %w", i, err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		descriptor, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}

		var attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading method %d attribute count: %w", i, err)
		}
		var code *CodeAttribute
		for a := uint16(0); a < attrCount; a++ {
			attrName, payload, err := readAttribute(r, pool)
			if err != nil {
				return nil, fmt.Errorf("reading method %d attribute %d: %w", i, a, err)
			}
			if attrName == "Code" {
				code, err = parseCodeAttribute(payload, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing method %d Code attribute: %w", i, err)
				}
			}
		}

		methods[i] = MethodInfo{AccessFlags: accessFlags, Name: name, Descriptor: descriptor, Code: code}
	}
	return methods, nil
}

// readAttribute reads one generic attribute_info (name already resolved)
// and returns its raw payload bytes for further decoding by the caller.
func readAttribute(r io.Reader, pool []ConstantPoolEntry) (name string, payload []byte, err error) {
	var nameIndex uint16
	if err = binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
		return "", nil, fmt.Errorf("reading attribute name index: %w", err)
	}
	name, err = GetUtf8(pool, nameIndex)
	if err != nil {
		return "", nil, fmt.Errorf("resolving attribute name: %w", err)
	}
	var length uint32
	if err = binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", nil, fmt.Errorf("reading attribute length: %w", err)
	}
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return "", nil, fmt.Errorf("reading attribute %s payload: %w", name, err)
	}
	return name, payload, nil
}

func skipAttributes(r io.Reader) error {
	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return fmt.Errorf("reading attribute count: %w", err)
	}
	for i := uint16(0); i < attrCount; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return fmt.Errorf("skipping attribute %d payload: %w", i, err)
		}
	}
	return nil
}

// parseCodeAttribute decodes a Code attribute payload (JVMS §4.7.3). Nested
// attributes (LineNumberTable, StackMapTable, LocalVariableTable — none of
// which this interpreter needs, since it runs without a verifier and
// without source-line tracking) are skipped.
func parseCodeAttribute(payload []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	r := newByteReader(payload)

	maxStack, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("reading max_stack: %w", err)
	}
	maxLocals, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("reading max_locals: %w", err)
	}
	codeLength, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("reading code_length: %w", err)
	}
	code, err := r.bytes(int(codeLength))
	if err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	excCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("reading exception_table_length: %w", err)
	}
	handlers := make([]ExceptionHandler, excCount)
	for i := range handlers {
		startPC, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("reading handler %d start_pc: %w", i, err)
		}
		endPC, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("reading handler %d end_pc: %w", i, err)
		}
		handlerPC, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("reading handler %d handler_pc: %w", i, err)
		}
		catchType, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("reading handler %d catch_type: %w", i, err)
		}
		handlers[i] = ExceptionHandler{StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC, CatchType: catchType}
	}

	// Trailing attributes of Code (LineNumberTable, StackMapTable, ...) are
	// parsed-but-not-enforced per spec.md's non-goals; skip their bytes.
	attrCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("reading code attribute count: %w", err)
	}
	for i := uint16(0); i < attrCount; i++ {
		if _, err := r.u16(); err != nil { // name index
			return nil, fmt.Errorf("reading code attribute %d name index: %w", i, err)
		}
		length, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("reading code attribute %d length: %w", i, err)
		}
		if _, err := r.bytes(int(length)); err != nil {
			return nil, fmt.Errorf("skipping code attribute %d: %w", i, err)
		}
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
	}, nil
}

// parseClassAttributes scans top-level class attributes, extracting
// BootstrapMethods (needed by invokedynamic) and discarding the rest.
func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return fmt.Errorf("reading class attribute count: %w", err)
	}
	for i := uint16(0); i < attrCount; i++ {
		name, payload, err := readAttribute(r, cf.ConstantPool)
		if err != nil {
			return fmt.Errorf("reading class attribute %d: %w", i, err)
		}
		if name == "BootstrapMethods" {
			methods, err := parseBootstrapMethods(payload)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
			cf.BootstrapMethods = methods
		}
	}
	return nil
}

func parseBootstrapMethods(payload []byte) ([]BootstrapMethod, error) {
	r := newByteReader(payload)
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	methods := make([]BootstrapMethod, count)
	for i := range methods {
		methodRef, err := r.u16()
		if err != nil {
			return nil, err
		}
		argCount, err := r.u16()
		if err != nil {
			return nil, err
		}
		args := make([]uint16, argCount)
		for a := range args {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			args[a] = v
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}

// byteReader is a tiny cursor over an in-memory attribute payload; unlike
// the outer io.Reader-based parse, attribute bodies already have a known
// length so a plain slice + offset is simpler than re-wrapping a reader.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint32(r.buf[r.pos])<<24 | uint32(r.buf[r.pos+1])<<16 | uint32(r.buf[r.pos+2])<<8 | uint32(r.buf[r.pos+3])
	r.pos += 4
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Package heap implements the VM's object heap: a single mmap-backed slab
// with a bump-pointer allocator. There is no garbage collector; every
// object allocated for the lifetime of a VM run stays resident, matching
// §4.5's "heap objects live for the entire VM run" invariant.
package heap

import (
	"fmt"
	"math"
	"os"
	"unicode/utf16"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/engineerror"
	"github.com/classvm/classvm/internal/sym"
	"github.com/classvm/classvm/internal/value"
)

const (
	headerSize = 16
	alignment  = 8
)

// header offsets within an object's leading 16 bytes.
const (
	offSize    = 0
	offClassID = 4
	offMarked  = 8
	offIsArray = 9
)

// array payload offsets, relative to the end of the header.
const (
	arrOffLength  = 0
	arrOffElemTyp = 4
	arrOffData    = 8
)

// NegativeArraySize reports an array allocation request with length < 0.
type NegativeArraySize struct{ Length int32 }

func (e *NegativeArraySize) Error() string {
	return fmt.Sprintf("negative array size: %d", e.Length)
}

// ArrayIndexOutOfBounds reports an out-of-range array access.
type ArrayIndexOutOfBounds struct {
	Index, Length int32
}

func (e *ArrayIndexOutOfBounds) Error() string {
	return fmt.Sprintf("array index out of bounds: index %d, length %d", e.Index, e.Length)
}

// OutOfMemory reports a bump allocation that would exceed the slab's
// capacity.
type OutOfMemory struct{ Requested, Available uint64 }

func (e *OutOfMemory) Error() string {
	return fmt.Sprintf("out of memory: requested %d bytes, %d available", e.Requested, e.Available)
}

// Heap owns the mmap'd slab plus the bump cursor and intern pools layered
// on top of it. It is single-writer: callers (the interpreter's single
// mutator goroutine) serialize their own access, per §5.
type Heap struct {
	region mmap.MMap
	file   *os.File
	cursor uint64

	stringPool map[sym.Sym]value.HeapRef
	mirrors    map[uint32]value.HeapRef // class_id -> mirror object
	refToClass map[value.HeapRef]uint32 // mirror HeapRef -> class_id, for ClassIDFromMirror
}

// New creates a heap backed by a newly created, immediately unlinked
// temporary file truncated to capacity bytes and mmap'd RDWR. Using a real
// file descriptor rather than an anonymous mapping follows the only
// mmap-go call this codebase's ancestry makes (a read-only PE-file
// mapping); here the mapping is read-write and the file exists solely to
// back it.
func New(capacity uint64) (*Heap, error) {
	f, err := os.CreateTemp("", "classvm-heap-*")
	if err != nil {
		return nil, fmt.Errorf("creating heap backing file: %w", err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("unlinking heap backing file: %w", err)
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sizing heap backing file: %w", err)
	}

	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap heap region: %w", err)
	}

	return &Heap{
		region:     region,
		file:       f,
		stringPool: make(map[sym.Sym]value.HeapRef),
		mirrors:    make(map[uint32]value.HeapRef),
		refToClass: make(map[value.HeapRef]uint32),
	}, nil
}

// Close unmaps the region and closes the backing file descriptor.
func (h *Heap) Close() error {
	if err := h.region.Unmap(); err != nil {
		return err
	}
	return h.file.Close()
}

func alignUp(n uint64) uint64 {
	return (n + alignment - 1) &^ (alignment - 1)
}

func (h *Heap) bump(size uint64) (value.HeapRef, error) {
	aligned := alignUp(size)
	if h.cursor+aligned > uint64(len(h.region)) {
		return 0, &OutOfMemory{Requested: aligned, Available: uint64(len(h.region)) - h.cursor}
	}
	ref := value.HeapRef(h.cursor)
	h.cursor += aligned
	return ref, nil
}

func (h *Heap) writeHeader(ref value.HeapRef, size, classID uint32, isArray bool) {
	b := h.region[ref:]
	putU32(b[offSize:], size)
	putU32(b[offClassID:], classID)
	b[offMarked] = 0
	if isArray {
		b[offIsArray] = 1
	} else {
		b[offIsArray] = 0
	}
}

// AllocInstance allocates a plain object of instanceSize payload bytes for
// classID, zero-initialized.
func (h *Heap) AllocInstance(instanceSize int, classID uint32) (value.HeapRef, error) {
	total := uint64(headerSize + instanceSize)
	ref, err := h.bump(total)
	if err != nil {
		return 0, err
	}
	h.writeHeader(ref, uint32(total), classID, false)
	return ref, nil
}

// AllocPrimitiveArray allocates an array of length elements of the given
// primitive allocation type.
func (h *Heap) AllocPrimitiveArray(elementClassID uint32, elemType descriptor.AllocationType, length int32) (value.HeapRef, error) {
	if length < 0 {
		return 0, &NegativeArraySize{Length: length}
	}
	dataSize := uint64(length) * uint64(elemType.ByteSize())
	total := uint64(headerSize) + arrOffData + dataSize
	ref, err := h.bump(total)
	if err != nil {
		return 0, err
	}
	h.writeHeader(ref, uint32(total), elementClassID, true)
	arr := h.region[int(ref)+headerSize:]
	putU32(arr[arrOffLength:], uint32(length))
	arr[arrOffElemTyp] = byte(elemType)
	return ref, nil
}

// AllocObjectArray allocates a reference-typed array of length elements,
// each initialized to null.
func (h *Heap) AllocObjectArray(elementClassID uint32, length int32) (value.HeapRef, error) {
	return h.AllocPrimitiveArray(elementClassID, descriptor.Reference, length)
}

// ArrayLength returns the length of the array at ref.
func (h *Heap) ArrayLength(ref value.HeapRef) int32 {
	arr := h.region[int(ref)+headerSize:]
	return int32(getU32(arr[arrOffLength:]))
}

// ArrayElementType returns the allocation type stored in the array's
// header.
func (h *Heap) ArrayElementType(ref value.HeapRef) descriptor.AllocationType {
	arr := h.region[int(ref)+headerSize:]
	return descriptor.AllocationType(arr[arrOffElemTyp])
}

// ClassID returns the class_id stored in an object's header.
func (h *Heap) ClassID(ref value.HeapRef) uint32 {
	return getU32(h.region[int(ref)+offClassID:])
}

// IsArray reports whether the object at ref carries array layout.
func (h *Heap) IsArray(ref value.HeapRef) bool {
	return h.region[int(ref)+offIsArray] == 1
}

// ReadField reads a field of the given type at byte offset fieldOffset
// within an instance's payload.
func (h *Heap) ReadField(ref value.HeapRef, fieldOffset int, typ descriptor.AllocationType) value.Value {
	b := h.region[int(ref)+headerSize+fieldOffset:]
	return readTyped(b, typ)
}

// WriteField writes v (which must match typ) at byte offset fieldOffset
// within an instance's payload.
func (h *Heap) WriteField(ref value.HeapRef, fieldOffset int, typ descriptor.AllocationType, v value.Value) error {
	b := h.region[int(ref)+headerSize+fieldOffset:]
	return writeTyped(b, typ, v)
}

// ReadArrayElement reads element i of the array at ref.
func (h *Heap) ReadArrayElement(ref value.HeapRef, i int32) (value.Value, error) {
	length := h.ArrayLength(ref)
	if i < 0 || i >= length {
		return value.Value{}, &ArrayIndexOutOfBounds{Index: i, Length: length}
	}
	typ := h.ArrayElementType(ref)
	off := int(ref) + headerSize + arrOffData + int(i)*typ.ByteSize()
	return readTyped(h.region[off:], typ), nil
}

// WriteArrayElement writes v to element i of the array at ref.
func (h *Heap) WriteArrayElement(ref value.HeapRef, i int32, v value.Value) error {
	length := h.ArrayLength(ref)
	if i < 0 || i >= length {
		return &ArrayIndexOutOfBounds{Index: i, Length: length}
	}
	typ := h.ArrayElementType(ref)
	off := int(ref) + headerSize + arrOffData + int(i)*typ.ByteSize()
	return writeTyped(h.region[off:], typ, v)
}

// CopyPrimitiveSlice moves length elements from src[srcPos:] to
// dst[dstPos:], bounds-checked against both arrays' lengths. Source and
// destination element types must match; reference-to-reference copies are
// permitted.
func (h *Heap) CopyPrimitiveSlice(src value.HeapRef, srcPos int32, dst value.HeapRef, dstPos int32, length int32) error {
	srcLen := h.ArrayLength(src)
	dstLen := h.ArrayLength(dst)
	if srcPos < 0 || dstPos < 0 || length < 0 || srcPos+length > srcLen || dstPos+length > dstLen {
		return &ArrayIndexOutOfBounds{Index: srcPos + length, Length: srcLen}
	}
	srcType := h.ArrayElementType(src)
	dstType := h.ArrayElementType(dst)
	if srcType != dstType {
		return fmt.Errorf("copy_primitive_slice: element type mismatch (%v vs %v)", srcType, dstType)
	}
	elemSize := srcType.ByteSize()
	srcOff := int(src) + headerSize + arrOffData + int(srcPos)*elemSize
	dstOff := int(dst) + headerSize + arrOffData + int(dstPos)*elemSize
	n := int(length) * elemSize
	copy(h.region[dstOff:dstOff+n], h.region[srcOff:srcOff+n])
	return nil
}

// CloneObject allocates a new object of the same size as src, copies its
// payload bytes verbatim, and resets the mark byte.
func (h *Heap) CloneObject(src value.HeapRef) (value.HeapRef, error) {
	size := getU32(h.region[int(src)+offSize:])
	dst, err := h.bump(uint64(size))
	if err != nil {
		return 0, err
	}
	copy(h.region[dst:uint64(dst)+uint64(size)], h.region[src:uint64(src)+uint64(size)])
	h.region[int(dst)+offMarked] = 0
	return dst, nil
}

// StringLayout describes the layout of java/lang/String instances this
// heap fabricates; the interpreter fills it in once java/lang/String is
// linked and passes it to the heap's string-building calls.
type StringLayout struct {
	ClassID      uint32
	CoderOffset  int // byte offset of the `coder` field
	ValueOffset  int // byte offset of the `value` (byte[]) field reference
	ByteArrayCls uint32
}

const (
	coderLatin1 = 0
	coderUTF16  = 1
)

// AllocString allocates a java/lang/String instance for s, choosing LATIN1
// encoding when every code point fits in 8 bits and UTF16 (little-endian)
// otherwise, per §4.5.
func (h *Heap) AllocString(s string, layout StringLayout) (value.HeapRef, error) {
	runes := []rune(s)
	latin1 := true
	for _, r := range runes {
		if r > 0xFF {
			latin1 = false
			break
		}
	}

	var data []byte
	coder := byte(coderLatin1)
	if latin1 {
		data = make([]byte, len(runes))
		for i, r := range runes {
			data[i] = byte(r)
		}
	} else {
		coder = coderUTF16
		units := utf16.Encode(runes)
		data = make([]byte, len(units)*2)
		for i, u := range units {
			data[i*2] = byte(u)
			data[i*2+1] = byte(u >> 8)
		}
	}

	byteArray, err := h.AllocPrimitiveArray(layout.ByteArrayCls, descriptor.Byte, int32(len(data)))
	if err != nil {
		return 0, err
	}
	arrData := h.region[int(byteArray)+headerSize+arrOffData:]
	copy(arrData, data)

	strRef, err := h.AllocInstance(max(layout.CoderOffset, layout.ValueOffset)+8, layout.ClassID)
	if err != nil {
		return 0, err
	}
	h.region[int(strRef)+headerSize+layout.CoderOffset] = coder
	if err := h.WriteField(strRef, layout.ValueOffset, descriptor.Reference, value.Ref(byteArray)); err != nil {
		return 0, err
	}
	return strRef, nil
}

// GetStrFromPoolOrNew maintains a Sym -> HeapRef intern pool so that ldc of
// the same string constant yields a pointer-equal reference across the VM
// run.
func (h *Heap) GetStrFromPoolOrNew(s sym.Sym, text string, layout StringLayout) (value.HeapRef, error) {
	if ref, ok := h.stringPool[s]; ok {
		return ref, nil
	}
	ref, err := h.AllocString(text, layout)
	if err != nil {
		return 0, err
	}
	h.stringPool[s] = ref
	return ref, nil
}

// GetMirrorRefOrCreate returns the lazily-allocated java/lang/Class mirror
// object for classID, allocating it (and recording the reverse mapping
// used by Class.getName-style natives) on first call.
func (h *Heap) GetMirrorRefOrCreate(classID uint32, mirrorClassID uint32, mirrorInstanceSize int) (value.HeapRef, error) {
	if ref, ok := h.mirrors[classID]; ok {
		return ref, nil
	}
	ref, err := h.AllocInstance(mirrorInstanceSize, mirrorClassID)
	if err != nil {
		return 0, err
	}
	h.mirrors[classID] = ref
	h.refToClass[ref] = classID
	return ref, nil
}

// ClassIDFromMirror reverses GetMirrorRefOrCreate: given a mirror object's
// HeapRef, returns the class_id it stands for.
func (h *Heap) ClassIDFromMirror(ref value.HeapRef) (uint32, bool) {
	id, ok := h.refToClass[ref]
	return id, ok
}

func readTyped(b []byte, typ descriptor.AllocationType) value.Value {
	switch typ {
	case descriptor.Boolean, descriptor.Byte:
		return value.Integer(int32(int8(b[0])))
	case descriptor.Short:
		return value.Integer(int32(int16(getU16(b))))
	case descriptor.Char:
		return value.Integer(int32(getU16(b)))
	case descriptor.Int:
		return value.Integer(int32(getU32(b)))
	case descriptor.Long:
		return value.Long(int64(getU64(b)))
	case descriptor.Float:
		return value.Float(math.Float32frombits(getU32(b)))
	case descriptor.Double:
		return value.Double(math.Float64frombits(getU64(b)))
	case descriptor.Reference:
		ref := value.HeapRef(getU64(b))
		if ref == 0 {
			return value.Null()
		}
		return value.Ref(ref)
	default:
		panic(fmt.Sprintf("heap: unknown allocation type %d", typ))
	}
}

func writeTyped(b []byte, typ descriptor.AllocationType, v value.Value) error {
	switch typ {
	case descriptor.Boolean, descriptor.Byte:
		if v.Kind != value.KindInteger {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected int-kind for %v, got %v", typ, v.Kind)
		}
		b[0] = byte(v.I)
	case descriptor.Short, descriptor.Char:
		if v.Kind != value.KindInteger {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected int-kind for %v, got %v", typ, v.Kind)
		}
		putU16(b, uint16(v.I))
	case descriptor.Int:
		if v.Kind != value.KindInteger {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected int-kind for %v, got %v", typ, v.Kind)
		}
		putU32(b, uint32(v.I))
	case descriptor.Long:
		if v.Kind != value.KindLong {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected long, got %v", v.Kind)
		}
		putU64(b, uint64(v.L))
	case descriptor.Float:
		if v.Kind != value.KindFloat {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected float, got %v", v.Kind)
		}
		putU32(b, math.Float32bits(v.F))
	case descriptor.Double:
		if v.Kind != value.KindDouble {
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected double, got %v", v.Kind)
		}
		putU64(b, math.Float64bits(v.D))
	case descriptor.Reference:
		switch v.Kind {
		case value.KindNull:
			putU64(b, 0)
		case value.KindRef:
			putU64(b, uint64(v.Ref))
		default:
			return engineerror.New(engineerror.KindTypeViolation, "write_field: expected ref-kind, got %v", v.Kind)
		}
	default:
		return engineerror.New(engineerror.KindTypeViolation, "write_field: unknown allocation type %d", typ)
	}
	return nil
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func getU16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

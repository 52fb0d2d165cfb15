package interp

// Bytecode operands are big-endian (JVMS §4.4, §2.11). These helpers
// consume operand bytes from code starting at *pc, advancing *pc past
// what they read. The opcode byte itself must already be consumed by the
// caller before any of these are called.

func readU8(code []byte, pc *int) uint8 {
	v := code[*pc]
	*pc++
	return v
}

func readI8(code []byte, pc *int) int8 {
	return int8(readU8(code, pc))
}

func readU16(code []byte, pc *int) uint16 {
	v := uint16(code[*pc])<<8 | uint16(code[*pc+1])
	*pc += 2
	return v
}

func readI16(code []byte, pc *int) int16 {
	return int16(readU16(code, pc))
}

func readU32(code []byte, pc *int) uint32 {
	v := uint32(code[*pc])<<24 | uint32(code[*pc+1])<<16 | uint32(code[*pc+2])<<8 | uint32(code[*pc+3])
	*pc += 4
	return v
}

func readI32(code []byte, pc *int) int32 {
	return int32(readU32(code, pc))
}

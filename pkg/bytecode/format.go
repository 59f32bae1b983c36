package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ConstKind tags how a constant pool entry's 8-byte payload should be
// interpreted (§6.1).
type ConstKind uint8

const (
	// ConstRawFloat stores the constant as raw IEEE-754 bits
	// (math.Float64bits), used for numeric literals.
	ConstRawFloat ConstKind = 0
	// ConstEncodedValue stores a pre-tagged value.Value bit pattern,
	// used for constants that aren't plain numbers (e.g. pre-interned
	// strings too long to carry inline as an atom).
	ConstEncodedValue ConstKind = 1
)

// Constant is one constant-pool entry.
type Constant struct {
	Kind    ConstKind
	Payload uint64
}

// Float interprets the constant as a float64. It panics if Kind is not
// ConstRawFloat; callers are expected to know a pool's entry kinds from
// the emitting compiler.
func (c Constant) Float() float64 {
	if c.Kind != ConstRawFloat {
		panic("bytecode: Float called on non-float constant")
	}
	return math.Float64frombits(c.Payload)
}

// NewFloatConstant builds a raw-float constant pool entry.
func NewFloatConstant(f float64) Constant {
	return Constant{Kind: ConstRawFloat, Payload: math.Float64bits(f)}
}

// NewEncodedConstant builds a pre-encoded-value constant pool entry.
func NewEncodedConstant(bits uint64) Constant {
	return Constant{Kind: ConstEncodedValue, Payload: bits}
}

// Function is one entry of a container's nested function subtable: a
// compiled function body along with the argument-slot count the call
// protocol pads to (§4.5.5). The rest of its frame shape — plain-local
// and own-cell slot counts — lives on Code itself (Container.LocalCount
// / Container.OwnCellCount), since the top-level container needs the
// same two numbers and isn't wrapped in a Function.
type Function struct {
	ParamCount uint8
	Code       *Container

	// Captures records, for each entry of this function's closed-over
	// variable list, where pkg/vm should read the VarCell reference
	// from when it builds a closure over this Function: the enclosing
	// frame's own-cell block or its own received-capture block. This
	// is compiler/VM wiring metadata, not part of the on-disk §6.1
	// layout: Encode drops it and Decode leaves it nil, so a Function
	// reached only by decoding a persisted container (never compiled
	// in this process) can't be closed over correctly. Live execution
	// always runs against the Container the compiler produced, so this
	// only bites code loaded from disk across a process boundary.
	Captures []CaptureInfo
}

// CaptureInfo is one entry of Function.Captures.
type CaptureInfo struct {
	FromOwnCell bool
	Index       int
}

// Container is a self-contained unit of compiled code: a constant
// pool, an atom (interned string) table, a nested function subtable,
// and the top-level instruction stream, exactly as laid out on disk by
// §6.1. The top-level container produced by compiling a program is the
// root of a tree of Containers, one per function literal.
type Container struct {
	Constants []Constant
	Atoms     []string
	Functions []Function
	Code      []byte

	// LocalCount is the plain-local slot count (§4.3.3: declared names
	// that are neither parameters nor promoted to an own-cell), and
	// OwnCellCount the own-cell slot count (names captured by a nested
	// function, each backed by a heap VarCell so closures can share
	// it). Both describe this container's own frame, whether it's a
	// nested Function's Code or the program's top-level container.
	LocalCount   uint8
	OwnCellCount uint8
}

// Encode serializes c to its on-disk byte layout: little-endian
// throughout, the LocalCount and OwnCellCount bytes, then constant pool,
// atom table and function subtable, then the raw code bytes to the end
// of the buffer.
func (c *Container) Encode() []byte {
	var buf []byte
	buf = append(buf, c.LocalCount, c.OwnCellCount)
	buf = appendU16(buf, len(c.Constants))
	for _, k := range c.Constants {
		buf = append(buf, byte(k.Kind))
		buf = appendU64(buf, k.Payload)
	}
	buf = appendU16(buf, len(c.Atoms))
	for _, s := range c.Atoms {
		buf = appendU16(buf, len(s))
		buf = append(buf, s...)
	}
	buf = appendU16(buf, len(c.Functions))
	for _, fn := range c.Functions {
		buf = append(buf, fn.ParamCount)
		body := fn.Code.Encode()
		buf = appendU32(buf, len(body))
		buf = append(buf, body...)
	}
	buf = append(buf, c.Code...)
	return buf
}

// Decode parses a Container from its on-disk byte layout, including
// every nested function subtable recursively.
func Decode(data []byte) (*Container, error) {
	r := &reader{buf: data}
	c, err := decodeContainer(r)
	if err != nil {
		return nil, err
	}
	c.Code = r.buf[r.pos:]
	return c, nil
}

func decodeContainer(r *reader) (*Container, error) {
	c := &Container{}

	localCount, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("bytecode: local_count: %w", err)
	}
	c.LocalCount = localCount
	ownCellCount, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("bytecode: own_cell_count: %w", err)
	}
	c.OwnCellCount = ownCellCount

	constCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("bytecode: constant_count: %w", err)
	}
	if constCount > 0 {
		c.Constants = make([]Constant, constCount)
	}
	for i := range c.Constants {
		kind, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("bytecode: constant[%d] kind: %w", i, err)
		}
		payload, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("bytecode: constant[%d] payload: %w", i, err)
		}
		c.Constants[i] = Constant{Kind: ConstKind(kind), Payload: payload}
	}

	atomCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("bytecode: atom_count: %w", err)
	}
	if atomCount > 0 {
		c.Atoms = make([]string, atomCount)
	}
	for i := range c.Atoms {
		length, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: atom[%d] length: %w", i, err)
		}
		s, err := r.bytes(length)
		if err != nil {
			return nil, fmt.Errorf("bytecode: atom[%d] bytes: %w", i, err)
		}
		c.Atoms[i] = string(s)
	}

	fnCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("bytecode: function_count: %w", err)
	}
	if fnCount > 0 {
		c.Functions = make([]Function, fnCount)
	}
	for i := range c.Functions {
		paramCount, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("bytecode: function[%d] param_count: %w", i, err)
		}
		codeLen, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("bytecode: function[%d] code_length: %w", i, err)
		}
		body, err := r.bytes(int(codeLen))
		if err != nil {
			return nil, fmt.Errorf("bytecode: function[%d] code_bytes: %w", i, err)
		}
		nested, err := Decode(body)
		if err != nil {
			return nil, fmt.Errorf("bytecode: function[%d] nested container: %w", i, err)
		}
		c.Functions[i] = Function{ParamCount: paramCount, Code: nested}
	}

	return c, nil
}

// reader walks buf sequentially, tracking how many bytes of the
// current nested container have been consumed so Decode can hand the
// remainder to Code.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of buffer")
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func appendU16(buf []byte, v int) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v int) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Disassemble renders c's top-level code (not its nested functions) as
// a human-readable instruction listing, one instruction per line, for
// the disasm CLI command and debugging.
func (c *Container) Disassemble() string {
	out := ""
	pos := 0
	code := c.Code
	for pos < len(code) {
		op := Opcode(code[pos])
		format := FormatOf(op)
		size := format.OperandSize()
		mnemonic := Name(op)
		if Reserved(op) {
			mnemonic += " (reserved)"
		}
		if pos+1+size > len(code) {
			out += fmt.Sprintf("%04d  %-28s <truncated>\n", pos, mnemonic)
			break
		}
		operand := code[pos+1 : pos+1+size]
		out += fmt.Sprintf("%04d  %-28s %s\n", pos, mnemonic, formatOperand(format, operand))
		pos += 1 + size
	}
	return out
}

func formatOperand(f Format, operand []byte) string {
	switch f {
	case FormatNone:
		return ""
	case FormatU8, FormatI8, FormatConst8, FormatAtom8:
		return fmt.Sprintf("%d", operand[0])
	case FormatU16, FormatI16, FormatConst16, FormatAtom16:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint16(operand))
	case FormatU32, FormatI32, FormatLabel:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint32(operand))
	default:
		return ""
	}
}

package bytecode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContainerRoundTripFlat(t *testing.T) {
	c := &Container{
		Constants: []Constant{NewFloatConstant(42), NewFloatConstant(3.5)},
		Atoms:     []string{"x", "foo"},
		Code: []byte{
			byte(OpPushConst8), 0,
			byte(OpGetGlobal8), 1,
			byte(OpReturn),
		},
	}

	data := c.Encode()
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestContainerRoundTripNestedFunctions(t *testing.T) {
	inner := &Container{
		Constants:  []Constant{NewFloatConstant(1)},
		Atoms:      []string{"a"},
		LocalCount: 1,
		Code:       []byte{byte(OpPushConst8), 0, byte(OpReturn)},
	}
	outer := &Container{
		Atoms: []string{"make"},
		Functions: []Function{
			{ParamCount: 2, Code: inner},
		},
		Code: []byte{
			byte(OpPushFunc8), 0,
			byte(OpPutGlobal8), 0,
			byte(OpReturnUndef),
		},
	}

	data := outer.Encode()
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(outer, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestContainerDecodeTruncatedBuffer(t *testing.T) {
	if _, err := Decode([]byte{1, 0}); err == nil {
		t.Fatalf("expected error decoding truncated buffer")
	}
}

func TestConstantFloatRoundTrip(t *testing.T) {
	c := NewFloatConstant(1.5)
	if got := c.Float(); got != 1.5 {
		t.Fatalf("Float() = %v, want 1.5", got)
	}
}

func TestFormatOperandSizes(t *testing.T) {
	cases := map[Format]int{
		FormatNone:    0,
		FormatU8:      1,
		FormatAtom8:   1,
		FormatU16:     2,
		FormatAtom16:  2,
		FormatU32:     4,
		FormatLabel:   4,
	}
	for f, want := range cases {
		if got := f.OperandSize(); got != want {
			t.Errorf("Format(%d).OperandSize() = %d, want %d", f, got, want)
		}
	}
}

func TestDisassembleProducesOneLinePerInstruction(t *testing.T) {
	c := &Container{
		Code: []byte{
			byte(OpPush0),
			byte(OpGetLoc), 3,
			byte(OpAdd),
			byte(OpReturn),
		},
	}
	out := c.Disassemble()
	if got := len(splitLines(out)); got != 4 {
		t.Fatalf("Disassemble produced %d lines, want 4:\n%s", got, out)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func TestReservedOpcodeMarkedInDisassembly(t *testing.T) {
	c := &Container{Code: []byte{byte(OpGetIterator)}}
	out := c.Disassemble()
	if !contains(out, "(reserved)") {
		t.Fatalf("expected reserved marker in disassembly, got: %s", out)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

package ncs

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// program builds raw NCS bytes for decoder tests.
type program struct {
	body []byte
}

func (p *program) raw(b ...byte) *program {
	p.body = append(p.body, b...)
	return p
}

func (p *program) u16(v uint16) *program {
	return p.raw(byte(v>>8), byte(v))
}

func (p *program) u32(v uint32) *program {
	return p.raw(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (p *program) i32(v int32) *program { return p.u32(uint32(v)) }

func (p *program) constInt(v int32) *program {
	return p.raw(byte(OpCONST), byte(QualInt)).i32(v)
}

func (p *program) movsp(off int32) *program {
	return p.raw(byte(OpMOVSP), byte(QualStack)).i32(off)
}

func (p *program) retn() *program {
	return p.raw(byte(OpRETN), 0x00)
}

func (p *program) bytes() []byte {
	out := []byte(magic)
	out = append(out, 0x42)
	out = binary.BigEndian.AppendUint32(out, uint32(headerSize+len(p.body)))
	return append(out, p.body...)
}

func TestReadScriptBasic(t *testing.T) {
	p := new(program)
	p.raw(byte(OpRSADD), byte(QualInt))
	p.constInt(42)
	p.raw(byte(OpCPDOWNSP), byte(QualStack)).i32(-8).u16(4)
	p.movsp(-8)
	p.retn()

	s, err := ReadScript("basic", p.bytes())
	if err != nil {
		t.Fatal(err)
	}
	var got []Op
	for _, in := range s.Instructions {
		got = append(got, in.Op)
	}
	want := []Op{OpRSADD, OpCONST, OpCPDOWNSP, OpMOVSP, OpRETN}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("opcodes (-want +got):\n%s", diff)
	}

	if s.Instructions[1].IntVal != 42 {
		t.Errorf("CONST value = %d, want 42", s.Instructions[1].IntVal)
	}
	cp := s.Instructions[2]
	if cp.Offset != -8 || cp.Size != 4 {
		t.Errorf("CPDOWNSP operands = %d, %d, want -8, 4", cp.Offset, cp.Size)
	}
	if s.Instructions[0].PC != headerSize {
		t.Errorf("first PC = %#x, want %#x", s.Instructions[0].PC, headerSize)
	}
	if s.At(s.Instructions[3].PC).Op != OpMOVSP {
		t.Error("At did not find the MOVSP instruction")
	}
}

func TestReadScriptConsts(t *testing.T) {
	p := new(program)
	p.raw(byte(OpCONST), byte(QualFloat)).u32(math.Float32bits(1.5))
	p.raw(byte(OpCONST), byte(QualString)).u16(5).raw([]byte("hello")...)
	p.raw(byte(OpCONST), byte(QualObject)).u32(0x7F000000)
	p.retn()

	s, err := ReadScript("consts", p.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Instructions[0].FloatVal; got != 1.5 {
		t.Errorf("float const = %g, want 1.5", got)
	}
	if got := s.Instructions[1].StrVal; got != "hello" {
		t.Errorf("string const = %q, want %q", got, "hello")
	}
	if got := s.Instructions[2].ObjVal; got != 0x7F000000 {
		t.Errorf("object const = %#x, want 0x7f000000", got)
	}
}

func TestReadScriptHeaderErrors(t *testing.T) {
	good := new(program).retn().bytes()

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"truncated", good[:5], "truncated header"},
		{"bad magic", append([]byte("NCS V9.9"), good[8:]...), "bad magic"},
		{"bad marker", func() []byte {
			d := append([]byte(nil), good...)
			d[8] = 0x41
			return d
		}(), "bad size marker"},
		{"oversized", func() []byte {
			d := append([]byte(nil), good...)
			binary.BigEndian.PutUint32(d[9:], uint32(len(d)+100))
			return d
		}(), "exceeds file size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadScript(tc.name, tc.data)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestReadScriptBadInstructions(t *testing.T) {
	cases := []struct {
		name string
		prog *program
		want string
	}{
		{"unknown opcode", new(program).raw(0x7E, 0x00), "unknown opcode"},
		{"unaligned movsp", new(program).movsp(-6), "unaligned"},
		{"unaligned copy", func() *program {
			p := new(program)
			return p.raw(byte(OpCPTOPSP), byte(QualStack)).i32(-4).u16(3)
		}(), "unaligned"},
		{"bad rsadd qualifier", new(program).raw(byte(OpRSADD), 0x3A), "bad type qualifier"},
		{"bad unary qualifier", new(program).raw(byte(OpNEG), byte(QualII)), "bad type qualifier"},
		{"bad const qualifier", new(program).raw(byte(OpCONST), byte(QualVV)), "bad type qualifier"},
		{"string past end", func() *program {
			p := new(program)
			return p.raw(byte(OpCONST), byte(QualString)).u16(200)
		}(), "runs past end"},
		{"truncated operand", new(program).raw(byte(OpJMP), 0x00, 0x00), "unexpected end"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadScript(tc.name, tc.prog.bytes())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestReadScriptJumpValidation(t *testing.T) {
	// JMP into the middle of the CONST that follows it.
	p := new(program)
	p.raw(byte(OpJMP), 0x00).i32(8)
	p.constInt(1)
	p.retn()
	if _, err := ReadScript("midjump", p.bytes()); err == nil ||
		!strings.Contains(err.Error(), "not an instruction") {
		t.Errorf("error = %v, want mid-instruction target rejection", err)
	}

	// Backward jump onto a boundary is fine.
	p = new(program)
	p.constInt(1)
	p.raw(byte(OpJZ), 0x00).i32(-6)
	p.retn()
	if _, err := ReadScript("backjump", p.bytes()); err != nil {
		t.Errorf("backward jump rejected: %v", err)
	}
}

func TestEqualStructSize(t *testing.T) {
	p := new(program)
	p.raw(byte(OpEQUAL), byte(QualTT)).u16(8)
	p.retn()
	s, err := ReadScript("tt", p.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Instructions[0].Size; got != 8 {
		t.Errorf("EQUALTT size = %d, want 8", got)
	}
}

func TestInstructionString(t *testing.T) {
	p := new(program)
	p.constInt(7)
	p.raw(byte(OpADD), byte(QualII))
	p.retn()
	s, err := ReadScript("str", p.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Instructions[0].String(); !strings.Contains(got, "CONSTI") || !strings.Contains(got, "7") {
		t.Errorf("CONST line = %q", got)
	}
	if got := s.Instructions[1].String(); !strings.Contains(got, "ADDII") {
		t.Errorf("ADD line = %q", got)
	}
}

package ncs

import (
	"encoding/binary"
	"fmt"
	"math"
)

// headerSize is the fixed NCS header: the 8-byte magic, the program-size
// marker byte 0x42 and a big-endian total size.
const headerSize = 13

const magic = "NCS V1.0"

// ReadScript decodes a complete NCS file.
func ReadScript(name string, data []byte) (*Script, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%s: truncated header (%d bytes)", name, len(data))
	}
	if string(data[:8]) != magic {
		return nil, fmt.Errorf("%s: bad magic %q", name, string(data[:8]))
	}
	if data[8] != 0x42 {
		return nil, fmt.Errorf("%s: bad size marker %#02x", name, data[8])
	}
	total := binary.BigEndian.Uint32(data[9:13])
	if int(total) > len(data) {
		return nil, fmt.Errorf("%s: declared size %d exceeds file size %d", name, total, len(data))
	}

	s := &Script{Name: name, Size: total}
	r := &reader{data: data[:total], pos: headerSize}
	for r.pos < len(r.data) {
		in, err := r.readInst()
		if err != nil {
			return nil, fmt.Errorf("%s: instruction at %#x: %w", name, r.pos, err)
		}
		s.Instructions = append(s.Instructions, in)
	}

	// Jump targets must land on instruction boundaries inside the script.
	for _, in := range s.Instructions {
		if in.Op.IsJump() && s.At(in.Target()) == nil {
			return nil, fmt.Errorf("%s: %s at %#x: target %#x is not an instruction",
				name, in.Op, in.PC, in.Target())
		}
	}
	return s, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u8() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("unexpected end of data")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of data")
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of data")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *reader) readInst() (*Instruction, error) {
	start := r.pos
	op, err := r.u8()
	if err != nil {
		return nil, err
	}
	qual, err := r.u8()
	if err != nil {
		return nil, err
	}
	in := &Instruction{PC: uint32(start), Op: Op(op), Qual: Qual(qual)}
	if !in.Op.Valid() {
		return nil, fmt.Errorf("unknown opcode %#02x", op)
	}

	switch in.Op {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		if in.Offset, err = r.i32(); err != nil {
			return nil, err
		}
		if in.Size, err = r.u16(); err != nil {
			return nil, err
		}
		if in.Offset%CellSize != 0 || in.Size%CellSize != 0 {
			return nil, fmt.Errorf("%s: unaligned operands %d, %d", in.Op, in.Offset, in.Size)
		}

	case OpRSADD:
		if _, ok := in.Qual.ScalarType(); !ok {
			return nil, fmt.Errorf("RSADD: bad type qualifier %#02x", qual)
		}

	case OpCONST:
		if err = r.readConst(in); err != nil {
			return nil, err
		}

	case OpACTION:
		if in.Routine, err = r.u16(); err != nil {
			return nil, err
		}
		if in.ArgCount, err = r.u8(); err != nil {
			return nil, err
		}

	case OpEQUAL, OpNEQUAL:
		if !in.Qual.Valid() {
			return nil, fmt.Errorf("%s: bad type qualifier %#02x", in.Op, qual)
		}
		if in.Qual == QualTT {
			if in.Size, err = r.u16(); err != nil {
				return nil, err
			}
		}

	case OpMOVSP, OpDECISP, OpINCISP, OpDECIBP, OpINCIBP:
		if in.Offset, err = r.i32(); err != nil {
			return nil, err
		}
		if in.Offset%CellSize != 0 {
			return nil, fmt.Errorf("%s: unaligned offset %d", in.Op, in.Offset)
		}

	case OpJMP, OpJSR, OpJZ, OpJNZ:
		if in.Offset, err = r.i32(); err != nil {
			return nil, err
		}

	case OpDESTRUCT:
		if in.Size, err = r.u16(); err != nil {
			return nil, err
		}
		if in.SaveStart, err = r.i16(); err != nil {
			return nil, err
		}
		if in.SaveSize, err = r.u16(); err != nil {
			return nil, err
		}

	case OpSTORE_STATE:
		if in.StateBP, err = r.i32(); err != nil {
			return nil, err
		}
		if in.StateSP, err = r.i32(); err != nil {
			return nil, err
		}

	case OpLOGAND, OpLOGOR, OpINCOR, OpEXCOR, OpBOOLAND,
		OpGEQ, OpGT, OpLT, OpLEQ, OpSHLEFT, OpSHRIGHT, OpUSHRIGHT,
		OpADD, OpSUB, OpMUL, OpDIV, OpMOD:
		if _, _, ok := in.Qual.OperandTypes(); !ok {
			return nil, fmt.Errorf("%s: bad type qualifier %#02x", in.Op, qual)
		}

	case OpNEG, OpCOMP, OpNOT:
		// Qualifier names the single operand type.
		if _, ok := in.Qual.ScalarType(); !ok {
			return nil, fmt.Errorf("%s: bad type qualifier %#02x", in.Op, qual)
		}

	case OpRETN, OpSAVEBP, OpRESTOREBP, OpSTORE_STATEALL, OpNOP:
		// No operands.
	}

	in.Len = uint32(r.pos - start)
	return in, nil
}

func (r *reader) readConst(in *Instruction) error {
	switch in.Qual {
	case QualInt:
		v, err := r.i32()
		if err != nil {
			return err
		}
		in.IntVal = v
	case QualFloat:
		v, err := r.u32()
		if err != nil {
			return err
		}
		in.FloatVal = math.Float32frombits(v)
	case QualString:
		n, err := r.u16()
		if err != nil {
			return err
		}
		if r.pos+int(n) > len(r.data) {
			return fmt.Errorf("CONST: string of %d bytes runs past end of data", n)
		}
		in.StrVal = string(r.data[r.pos : r.pos+int(n)])
		r.pos += int(n)
	case QualObject:
		v, err := r.u32()
		if err != nil {
			return err
		}
		in.ObjVal = v
	default:
		return fmt.Errorf("CONST: bad type qualifier %#02x", byte(in.Qual))
	}
	return nil
}

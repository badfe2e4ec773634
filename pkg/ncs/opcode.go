// Package ncs provides types and decoding for the NWScript compiled-script
// (NCS) stack-machine bytecode format.
package ncs

// Op is an NCS opcode.
type Op byte

const (
	OpCPDOWNSP       Op = 0x01 // copy top down, SP-relative
	OpRSADD          Op = 0x02 // reserve a typed stack cell
	OpCPTOPSP        Op = 0x03 // copy up to top, SP-relative
	OpCONST          Op = 0x04 // push literal
	OpACTION         Op = 0x05 // call engine routine
	OpLOGAND         Op = 0x06
	OpLOGOR          Op = 0x07
	OpINCOR          Op = 0x08 // bitwise or
	OpEXCOR          Op = 0x09 // bitwise xor
	OpBOOLAND        Op = 0x0A // bitwise and
	OpEQUAL          Op = 0x0B
	OpNEQUAL         Op = 0x0C
	OpGEQ            Op = 0x0D
	OpGT             Op = 0x0E
	OpLT             Op = 0x0F
	OpLEQ            Op = 0x10
	OpSHLEFT         Op = 0x11
	OpSHRIGHT        Op = 0x12
	OpUSHRIGHT       Op = 0x13
	OpADD            Op = 0x14
	OpSUB            Op = 0x15
	OpMUL            Op = 0x16
	OpDIV            Op = 0x17
	OpMOD            Op = 0x18
	OpNEG            Op = 0x19
	OpCOMP           Op = 0x1A // bitwise complement
	OpMOVSP          Op = 0x1B // adjust stack pointer
	OpSTORE_STATEALL Op = 0x1C // deprecated form of STORE_STATE
	OpJMP            Op = 0x1D
	OpJSR            Op = 0x1E
	OpJZ             Op = 0x1F
	OpRETN           Op = 0x20
	OpDESTRUCT       Op = 0x21
	OpNOT            Op = 0x22
	OpDECISP         Op = 0x23
	OpINCISP         Op = 0x24
	OpJNZ            Op = 0x25
	OpCPDOWNBP       Op = 0x26 // copy top down, BP-relative
	OpCPTOPBP        Op = 0x27 // copy up to top, BP-relative
	OpDECIBP         Op = 0x28
	OpINCIBP         Op = 0x29
	OpSAVEBP         Op = 0x2A
	OpRESTOREBP      Op = 0x2B
	OpSTORE_STATE    Op = 0x2C
	OpNOP            Op = 0x2D
)

var opNames = map[Op]string{
	OpCPDOWNSP:       "CPDOWNSP",
	OpRSADD:          "RSADD",
	OpCPTOPSP:        "CPTOPSP",
	OpCONST:          "CONST",
	OpACTION:         "ACTION",
	OpLOGAND:         "LOGAND",
	OpLOGOR:          "LOGOR",
	OpINCOR:          "INCOR",
	OpEXCOR:          "EXCOR",
	OpBOOLAND:        "BOOLAND",
	OpEQUAL:          "EQUAL",
	OpNEQUAL:         "NEQUAL",
	OpGEQ:            "GEQ",
	OpGT:             "GT",
	OpLT:             "LT",
	OpLEQ:            "LEQ",
	OpSHLEFT:         "SHLEFT",
	OpSHRIGHT:        "SHRIGHT",
	OpUSHRIGHT:       "USHRIGHT",
	OpADD:            "ADD",
	OpSUB:            "SUB",
	OpMUL:            "MUL",
	OpDIV:            "DIV",
	OpMOD:            "MOD",
	OpNEG:            "NEG",
	OpCOMP:           "COMP",
	OpMOVSP:          "MOVSP",
	OpSTORE_STATEALL: "STORE_STATEALL",
	OpJMP:            "JMP",
	OpJSR:            "JSR",
	OpJZ:             "JZ",
	OpRETN:           "RETN",
	OpDESTRUCT:       "DESTRUCT",
	OpNOT:            "NOT",
	OpDECISP:         "DECISP",
	OpINCISP:         "INCISP",
	OpJNZ:            "JNZ",
	OpCPDOWNBP:       "CPDOWNBP",
	OpCPTOPBP:        "CPTOPBP",
	OpDECIBP:         "DECIBP",
	OpINCIBP:         "INCIBP",
	OpSAVEBP:         "SAVEBP",
	OpRESTOREBP:      "RESTOREBP",
	OpSTORE_STATE:    "STORE_STATE",
	OpNOP:            "NOP",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OP?"
}

// Valid reports whether op is a known NCS opcode.
func (op Op) Valid() bool {
	_, ok := opNames[op]
	return ok
}

// IsJump reports whether op transfers control to an encoded target.
func (op Op) IsJump() bool {
	switch op {
	case OpJMP, OpJSR, OpJZ, OpJNZ:
		return true
	}
	return false
}

// IsConditional reports whether op is a conditional jump.
func (op Op) IsConditional() bool {
	return op == OpJZ || op == OpJNZ
}

// Terminates reports whether control never falls through op to the next
// instruction.
func (op Op) Terminates() bool {
	return op == OpJMP || op == OpRETN
}

package ncs

// CellSize is the size of one stack cell in bytes. Every stack offset and
// copy size in the bytecode is a multiple of it.
const CellSize = 4

// Qual is the operand-type qualifier byte carried by most instructions.
type Qual byte

const (
	QualNone     Qual = 0x00
	QualStack    Qual = 0x01 // CP*/MOVSP/DESTRUCT: untyped stack manipulation
	QualInt      Qual = 0x03
	QualFloat    Qual = 0x04
	QualString   Qual = 0x05
	QualObject   Qual = 0x06
	QualEffect   Qual = 0x10
	QualEvent    Qual = 0x11
	QualLocation Qual = 0x12
	QualTalent   Qual = 0x13
	QualII       Qual = 0x20
	QualFF       Qual = 0x21
	QualOO       Qual = 0x22
	QualSS       Qual = 0x23
	QualTT       Qual = 0x24 // struct comparison, carries a size operand
	QualIF       Qual = 0x25
	QualFI       Qual = 0x26
	QualEE       Qual = 0x30
	QualVV       Qual = 0x3A
	QualVF       Qual = 0x3B
	QualFV       Qual = 0x3C
)

var qualNames = map[Qual]string{
	QualNone: "", QualStack: "", QualInt: "I", QualFloat: "F",
	QualString: "S", QualObject: "O", QualEffect: "E0", QualEvent: "E1",
	QualLocation: "E2", QualTalent: "E3", QualII: "II", QualFF: "FF",
	QualOO: "OO", QualSS: "SS", QualTT: "TT", QualIF: "IF", QualFI: "FI",
	QualEE: "EE", QualVV: "VV", QualVF: "VF", QualFV: "FV",
}

func (q Qual) String() string { return qualNames[q] }

// Valid reports whether q is a known qualifier.
func (q Qual) Valid() bool {
	_, ok := qualNames[q]
	return ok
}

// DataType is the resolved type of a stack value.
type DataType int

const (
	Void DataType = iota
	Int
	Float
	String
	Object
	Vector
	Effect
	Event
	Location
	Talent
	Struct
)

var typeNames = [...]string{
	Void: "void", Int: "int", Float: "float", String: "string",
	Object: "object", Vector: "vector", Effect: "effect", Event: "event",
	Location: "location", Talent: "talent", Struct: "struct",
}

func (t DataType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "type?"
}

// SlotSize returns the number of stack cells a value of this type occupies.
func (t DataType) SlotSize() int {
	if t == Vector {
		return 3
	}
	return 1
}

// ScalarType maps a single-value qualifier to its data type.
func (q Qual) ScalarType() (DataType, bool) {
	switch q {
	case QualInt:
		return Int, true
	case QualFloat:
		return Float, true
	case QualString:
		return String, true
	case QualObject:
		return Object, true
	case QualEffect:
		return Effect, true
	case QualEvent:
		return Event, true
	case QualLocation:
		return Location, true
	case QualTalent:
		return Talent, true
	}
	return Void, false
}

// OperandTypes maps a paired qualifier to its left and right operand types.
func (q Qual) OperandTypes() (left, right DataType, ok bool) {
	switch q {
	case QualII:
		return Int, Int, true
	case QualFF:
		return Float, Float, true
	case QualOO:
		return Object, Object, true
	case QualSS:
		return String, String, true
	case QualIF:
		return Int, Float, true
	case QualFI:
		return Float, Int, true
	case QualEE:
		return Effect, Effect, true
	case QualTT:
		return Struct, Struct, true
	case QualVV:
		return Vector, Vector, true
	case QualVF:
		return Vector, Float, true
	case QualFV:
		return Float, Vector, true
	}
	return Void, Void, false
}

// ArithmeticResult returns the result type of an arithmetic opcode applied to
// operands of this qualifier.
func (q Qual) ArithmeticResult() DataType {
	switch q {
	case QualII:
		return Int
	case QualFF, QualIF, QualFI:
		return Float
	case QualSS:
		return String
	case QualVV, QualVF, QualFV:
		return Vector
	}
	return Int
}

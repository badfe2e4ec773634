// Package actions holds the engine-call signature table: the declared
// parameter and return shapes of the routines reachable through the ACTION
// opcode.
package actions

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/xplshn/ncsdec/pkg/ncs"
)

// Signature describes one engine routine.
type Signature struct {
	ID     uint16
	Name   string
	Params int          // parameter size in stack slots
	Return ncs.DataType // Void when the routine returns nothing
}

// ReturnsVector reports whether the routine's return value occupies three
// stack cells.
func (s Signature) ReturnsVector() bool {
	return s.Return == ncs.Vector
}

// Table maps routine IDs to signatures.
type Table struct {
	sigs map[uint16]Signature
}

// NewTable returns a table seeded with the core signatures every NWScript
// engine exposes. Game-specific tables are merged on top with LoadFile.
func NewTable() *Table {
	t := &Table{sigs: make(map[uint16]Signature)}
	for _, s := range coreSignatures {
		t.sigs[s.ID] = s
	}
	return t
}

// Lookup returns the signature for a routine ID.
func (t *Table) Lookup(id uint16) (Signature, bool) {
	s, ok := t.sigs[id]
	return s, ok
}

// Len returns the number of known routines.
func (t *Table) Len() int { return len(t.sigs) }

// Add inserts or replaces a signature.
func (t *Table) Add(s Signature) { t.sigs[s.ID] = s }

// signatureFile is the TOML shape of an external signature table:
//
//	[[action]]
//	id = 13
//	name = "GetLocalInt"
//	params = 2
//	return = "int"
type signatureFile struct {
	Action []signatureEntry `toml:"action"`
}

type signatureEntry struct {
	ID     uint16 `toml:"id"`
	Name   string `toml:"name"`
	Params int    `toml:"params"`
	Return string `toml:"return"`
}

var returnTypes = map[string]ncs.DataType{
	"":         ncs.Void,
	"void":     ncs.Void,
	"int":      ncs.Int,
	"float":    ncs.Float,
	"string":   ncs.String,
	"object":   ncs.Object,
	"vector":   ncs.Vector,
	"effect":   ncs.Effect,
	"event":    ncs.Event,
	"location": ncs.Location,
	"talent":   ncs.Talent,
}

// LoadFile merges signatures from a TOML file into the table. Entries with
// IDs already present override the built-ins.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f signatureFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, e := range f.Action {
		ret, ok := returnTypes[e.Return]
		if !ok {
			return fmt.Errorf("%s: action %d (%s): unknown return type %q", path, e.ID, e.Name, e.Return)
		}
		if e.Params < 0 {
			return fmt.Errorf("%s: action %d (%s): negative parameter size", path, e.ID, e.Name)
		}
		t.Add(Signature{ID: e.ID, Name: e.Name, Params: e.Params, Return: ret})
	}
	return nil
}

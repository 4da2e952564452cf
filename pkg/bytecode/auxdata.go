package bytecode

import "fmt"

// AuxKind identifies the record type stored in an AuxData entry.
type AuxKind int

const (
	AuxJumpTable AuxKind = iota
	AuxForeach
)

func (k AuxKind) String() string {
	switch k {
	case AuxJumpTable:
		return "jumptable"
	case AuxForeach:
		return "foreach"
	}
	return fmt.Sprintf("AuxKind(%d)", int(k))
}

// AuxData is an instruction-indexed side record.
type AuxData struct {
	Kind      AuxKind      `cbor:"1,keyasint"`
	JumpTable *JumpTable   `cbor:"2,keyasint,omitempty"`
	Foreach   *ForeachInfo `cbor:"3,keyasint,omitempty"`
}

// JumpTable maps exact string keys to jump distances measured from the
// jumpTable instruction. Keys are unique; the first registration wins.
type JumpTable struct {
	Keys    []string `cbor:"1,keyasint"`
	Offsets []int    `cbor:"2,keyasint"`
}

// Lookup returns the distance for key.
func (t *JumpTable) Lookup(key string) (int, bool) {
	for i, k := range t.Keys {
		if k == key {
			return t.Offsets[i], true
		}
	}
	return 0, false
}

// ForeachInfo describes a foreach loop: the temporaries holding each value
// list, the iteration counter, and the variable slots assigned per list.
type ForeachInfo struct {
	ListTemps   []int   `cbor:"1,keyasint"`
	CounterTemp int     `cbor:"2,keyasint"`
	VarSlots    [][]int `cbor:"3,keyasint"`
}

type jumpTableState struct {
	origin  Label
	keys    []string
	targets []Label
}

// NewJumpTable registers an empty jump table and returns its aux index.
func (e *Env) NewJumpTable() int {
	e.aux = append(e.aux, AuxData{Kind: AuxJumpTable})
	e.auxMeta = append(e.auxMeta, &jumpTableState{origin: noLabel})
	return len(e.aux) - 1
}

// EmitJumpTable emits the dispatch instruction for table idx and records it
// as the origin of every distance in the table.
func (e *Env) EmitJumpTable(idx int) {
	e.auxMeta[idx].origin = e.MarkHere()
	e.Emit(OpJumpTable, idx)
}

// AddJumpTableEntry maps key to l. Duplicate keys are ignored and reported
// false.
func (e *Env) AddJumpTableEntry(idx int, key string, l Label) bool {
	jt := e.auxMeta[idx]
	for _, k := range jt.keys {
		if k == key {
			return false
		}
	}
	jt.keys = append(jt.keys, key)
	jt.targets = append(jt.targets, l)
	return true
}

// AddForeach registers a foreach record and returns its aux index.
func (e *Env) AddForeach(info *ForeachInfo) int {
	e.aux = append(e.aux, AuxData{Kind: AuxForeach, Foreach: info})
	e.auxMeta = append(e.auxMeta, nil)
	return len(e.aux) - 1
}

// frozenAux resolves jump table labels into distances.
func (e *Env) frozenAux() ([]AuxData, error) {
	out := make([]AuxData, len(e.aux))
	for i, a := range e.aux {
		out[i] = a
		jt := e.auxMeta[i]
		if a.Kind != AuxJumpTable {
			continue
		}
		origin := e.LabelOffset(jt.origin)
		if origin < 0 {
			return nil, fmt.Errorf("bytecode: jump table %d never emitted", i)
		}
		t := &JumpTable{Keys: append([]string(nil), jt.keys...), Offsets: make([]int, len(jt.keys))}
		for k, l := range jt.targets {
			off := e.LabelOffset(l)
			if off < 0 {
				return nil, fmt.Errorf("bytecode: jump table %d: target for %q unbound", i, jt.keys[k])
			}
			t.Offsets[k] = off - origin
		}
		out[i].JumpTable = t
	}
	return out, nil
}

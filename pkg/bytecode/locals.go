package bytecode

// LocalVar describes one slot of a procedure frame.
type LocalVar struct {
	Name   string `cbor:"1,keyasint"`
	IsArg  bool   `cbor:"2,keyasint,omitempty"`
	IsTemp bool   `cbor:"3,keyasint,omitempty"`
}

// LocalTable maps variable names to frame slots. Temporaries have no name
// and are never returned by Lookup.
type LocalTable struct {
	vars  []LocalVar
	index map[string]int
}

// NewLocalTable creates a table whose first slots are the given parameters.
func NewLocalTable(params ...string) *LocalTable {
	t := &LocalTable{index: make(map[string]int)}
	for _, p := range params {
		if _, dup := t.index[p]; dup {
			continue
		}
		t.index[p] = len(t.vars)
		t.vars = append(t.vars, LocalVar{Name: p, IsArg: true})
	}
	return t
}

// Lookup returns the slot of a named variable.
func (t *LocalTable) Lookup(name string) (int, bool) {
	slot, ok := t.index[name]
	return slot, ok
}

// Find returns the slot of name, allocating one if needed.
func (t *LocalTable) Find(name string) int {
	if slot, ok := t.index[name]; ok {
		return slot
	}
	slot := len(t.vars)
	t.index[name] = slot
	t.vars = append(t.vars, LocalVar{Name: name})
	return slot
}

// NewTemp allocates an unnamed slot.
func (t *LocalTable) NewTemp() int {
	t.vars = append(t.vars, LocalVar{IsTemp: true})
	return len(t.vars) - 1
}

// Len returns the number of slots.
func (t *LocalTable) Len() int { return len(t.vars) }

// Vars returns a copy of the slot descriptors.
func (t *LocalTable) Vars() []LocalVar {
	return append([]LocalVar(nil), t.vars...)
}

func (t *LocalTable) truncate(n int) {
	for _, v := range t.vars[n:] {
		if !v.IsTemp {
			delete(t.index, v.Name)
		}
	}
	t.vars = t.vars[:n]
}

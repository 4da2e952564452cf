package vm

import (
	"sort"
	"strings"

	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// Var is a scalar or an array. An unset variable keeps its identity so
// that links made by global and upvar survive it.
type Var struct {
	value   string
	elems   map[string]string
	defined bool
}

func (v *Var) isArray() bool { return v.defined && v.elems != nil }

func (v *Var) setScalar(s string) {
	v.value, v.elems, v.defined = s, nil, true
}

// Frame is one level of variable scope: the global frame or a procedure
// call.
type Frame struct {
	vars   map[string]*Var
	caller *Frame
	level  int
	words  []string
}

func newFrame(caller *Frame, level int) *Frame {
	return &Frame{vars: make(map[string]*Var), caller: caller, level: level}
}

// local returns the variable called name in f, creating an undefined one.
func (f *Frame) local(name string) *Var {
	v, ok := f.vars[name]
	if !ok {
		v = &Var{}
		f.vars[name] = v
	}
	return v
}

// link makes name in f refer to v.
func (f *Frame) link(name string, v *Var) {
	f.vars[name] = v
}

// names returns the defined variables of f matching pattern.
func (f *Frame) names(pattern string) []string {
	var out []string
	for name, v := range f.vars {
		if v.defined && (pattern == "" || globMatch(pattern, name, false)) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// varRef is a resolved variable reference: a whole variable or one element.
type varRef struct {
	v     *Var
	name  string
	index string
	elem  bool
}

func (r varRef) String() string {
	if r.elem {
		return r.name + "(" + r.index + ")"
	}
	return r.name
}

// resolve finds name in frame f. Qualified names live in the global frame.
func (in *Interp) resolve(f *Frame, name string) *Var {
	if strings.HasPrefix(name, "::") {
		return in.global.local(strings.TrimLeft(name, ":"))
	}
	if parser.IsQualified(name) {
		return in.global.local(name)
	}
	return f.local(name)
}

// lookup resolves a name that may carry an element index.
func (in *Interp) lookup(f *Frame, name string) varRef {
	if base, idx, ok := parser.SplitVarName(name); ok {
		return varRef{v: in.resolve(f, base), name: base, index: idx, elem: true}
	}
	return varRef{v: in.resolve(f, name), name: name}
}

func (in *Interp) element(f *Frame, name, index string) varRef {
	return varRef{v: in.resolve(f, name), name: name, index: index, elem: true}
}

func (r varRef) get() (string, error) {
	v := r.v
	if !r.elem {
		switch {
		case !v.defined:
			return "", errorf("can't read %q: no such variable", r.String())
		case v.isArray():
			return "", errorf("can't read %q: variable is array", r.String())
		}
		return v.value, nil
	}
	switch {
	case !v.defined:
		return "", errorf("can't read %q: no such variable", r.String())
	case !v.isArray():
		return "", errorf("can't read %q: variable isn't array", r.String())
	}
	s, ok := v.elems[r.index]
	if !ok {
		return "", errorf("can't read %q: no such element in array", r.String())
	}
	return s, nil
}

func (r varRef) exists() bool {
	v := r.v
	if !r.elem {
		return v.defined
	}
	if !v.isArray() {
		return false
	}
	_, ok := v.elems[r.index]
	return ok
}

func (r varRef) set(s string) (string, error) {
	v := r.v
	if !r.elem {
		if v.isArray() {
			return "", errorf("can't set %q: variable is array", r.String())
		}
		v.setScalar(s)
		return s, nil
	}
	if v.defined && !v.isArray() {
		return "", errorf("can't set %q: variable isn't array", r.String())
	}
	if !v.defined {
		v.elems, v.value, v.defined = make(map[string]string), "", true
	}
	v.elems[r.index] = s
	return s, nil
}

// getOr returns the current value, or def when the variable or element
// does not exist yet.
func (r varRef) getOr(def string) (string, error) {
	if !r.exists() {
		if r.elem && r.v.defined && !r.v.isArray() {
			return "", errorf("can't set %q: variable isn't array", r.String())
		}
		if !r.elem && r.v.isArray() {
			return "", errorf("can't set %q: variable is array", r.String())
		}
		return def, nil
	}
	return r.get()
}

func (r varRef) unset(complain bool) error {
	v := r.v
	if !r.exists() {
		if !complain {
			return nil
		}
		if r.elem && v.isArray() {
			return errorf("can't unset %q: no such element in array", r.String())
		}
		return errorf("can't unset %q: no such variable", r.String())
	}
	if r.elem {
		delete(v.elems, r.index)
		return nil
	}
	v.value, v.elems, v.defined = "", nil, false
	return nil
}

// ---------------------------------------------------------------------------
// Read-modify-write
// ---------------------------------------------------------------------------

func (r varRef) incr(amount string) (string, error) {
	by, err := expectInt(amount)
	if err != nil {
		return "", err
	}
	cur, err := r.getOr("0")
	if err != nil {
		return "", err
	}
	n, err := expectInt(cur)
	if err != nil {
		return "", err
	}
	return r.set(intNum(n + by).String())
}

func (r varRef) appendString(s string) (string, error) {
	cur, err := r.getOr("")
	if err != nil {
		return "", err
	}
	return r.set(cur + s)
}

func (r varRef) lappend(elems ...string) (string, error) {
	cur, err := r.getOr("")
	if err != nil {
		return "", err
	}
	list, err := splitList(cur)
	if err != nil {
		return "", err
	}
	return r.set(parser.MergeList(append(list, elems...)))
}

package parser

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"a b c", []string{"a", "b", "c"}},
		{"a {b c} \"d e\" f\\ g", []string{"a", "b c", "d e", "f g"}},
		{"{} {a {b}} x", []string{"", "a {b}", "x"}},
		{"\n a\t\tb \n", []string{"a", "b"}},
		{`{a\nb}`, []string{`a\nb`}},
		{`"a\nb"`, []string{"a\nb"}},
		{`\{`, []string{"{"}},
	}
	for _, tt := range tests {
		got, err := SplitList(tt.in)
		if err != nil {
			t.Errorf("SplitList(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitListErrors(t *testing.T) {
	for _, in := range []string{"{a", "\"a", "{a}b", "\"a\"b", "x {a b"} {
		if _, err := SplitList(in); err == nil {
			t.Errorf("SplitList(%q): expected error", in)
		}
	}
}

func TestFindElement(t *testing.T) {
	src := ` {a b} "c\td" e\ f g`
	var got []Element
	pos := 0
	for {
		el, next, found, err := FindElement(src, pos, len(src))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !found {
			break
		}
		got = append(got, el)
		pos = next
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 elements, got %d", len(got))
	}
	literal := []bool{true, false, false, true}
	for i, el := range got {
		if el.Literal != literal[i] {
			t.Errorf("element %d: expected literal=%v", i, literal[i])
		}
	}
	if !got[0].Braced || got[0].Start != 1 || got[0].Size != 5 {
		t.Errorf("Unexpected braced element %+v", got[0])
	}
	if v, _ := got[1].Value(src); v != "c\td" {
		t.Errorf("Expected decoded tab, got %q", v)
	}
	if v, _ := got[2].Value(src); v != "e f" {
		t.Errorf("Expected \"e f\", got %q", v)
	}
}

func TestMergeList(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"a", "b c", ""}, "a {b c} {}"},
		{[]string{"#x", "#y"}, "{#x} #y"},
		{[]string{"{"}, `\{`},
		{[]string{"a}b{"}, `a\}b\{`},
		{[]string{"x\\"}, `x\\`},
		{[]string{"a\nb"}, "{a\nb}"},
		{[]string{"$x", "[y]"}, "{$x} {[y]}"},
		{nil, ""},
	}
	for _, tt := range tests {
		got := MergeList(tt.in)
		if got != tt.want {
			t.Errorf("MergeList(%q) = %q, want %q", tt.in, got, tt.want)
		}
		back, err := SplitList(got)
		if err != nil {
			t.Errorf("SplitList(%q): %v", got, err)
			continue
		}
		if len(back) != len(tt.in) {
			t.Errorf("SplitList(%q) = %q, want %q", got, back, tt.in)
			continue
		}
		for i := range back {
			if back[i] != tt.in[i] {
				t.Errorf("SplitList(%q) = %q, want %q", got, back, tt.in)
				break
			}
		}
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`a\tb`, "a\tb"},
		{`\101\x42C`, "ABC"},
		{`\U0001F600`, "\U0001F600"},
		{`\xzz`, "xzz"},
		{"\\\n   x", " x"},
		{`\777`, "?7"},
		{`trailing\`, `trailing\`},
	}
	for _, tt := range tests {
		got, err := Unescape(tt.in)
		if err != nil {
			t.Errorf("Unescape(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

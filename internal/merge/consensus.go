package merge

import "strings"

// field tracks the agreed value of one entry field across records.
// Empty values carry no opinion. Two different non-empty values conflict
// and the field stays empty from then on.
type field struct {
	value      string
	conflicted bool
}

func (f *field) observe(v string) {
	if f.conflicted || v == "" || v == f.value {
		return
	}
	if f.value == "" {
		f.value = v
		return
	}
	f.conflict()
}

// observePrefix behaves like observe, but when one value is a prefix of
// the other the shorter one wins instead of conflicting.
func (f *field) observePrefix(v string) {
	if f.conflicted || v == "" || v == f.value || f.value == "" {
		f.observe(v)
		return
	}
	switch {
	case strings.HasPrefix(f.value, v):
		f.value = v
	case strings.HasPrefix(v, f.value):
	default:
		f.conflict()
	}
}

func (f *field) conflict() {
	f.value = ""
	f.conflicted = true
}

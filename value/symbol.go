package value

// Span marks a single contiguous range of source text, used by every
// error in the engine's taxonomy (spec.md §7) to point back at the
// offending script text.
type Span struct {
	Offset int
	Length int
}

// Ignored is the symbol text that never unifies (e.g. "_").
const Ignored = "_"

// Symbol is an interned name with a source span. Two symbols compare
// equal (via Equal) whenever their Name matches, regardless of where in
// the source text each occurrence was written.
type Symbol struct {
	Name string
	Span Span
}

// NewSymbol builds a Symbol for name at span.
func NewSymbol(name string, span Span) Symbol {
	return Symbol{Name: name, Span: span}
}

// Equal compares two symbols by name only, per spec.md §3.
func (s Symbol) Equal(o Symbol) bool {
	return s.Name == o.Name
}

// IsIgnored reports whether s is the wildcard symbol, which never binds
// or unifies with anything -- including another occurrence of itself.
func (s Symbol) IsIgnored() bool {
	return s.Name == Ignored
}

func (s Symbol) String() string {
	return s.Name
}

package parse

import (
	"fmt"

	"github.com/cozodb/cozo-go/value"
)

// ParseError is a span-annotated syntax error, spec.md §7's ParseError
// kind. It points at a single source offset with length.
type ParseError struct {
	Span value.Span
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Span.Offset, e.Msg)
}

// UnboundVariable reports a free variable that is never bound anywhere
// in its clause (spec.md §4.4, §7's SafetyError).
type UnboundVariable struct {
	Span value.Span
	Name string
}

func (e *UnboundVariable) Error() string {
	return fmt.Sprintf("unbound variable %q at offset %d", e.Name, e.Span.Offset)
}

// UnsafeNegation reports a negation NNF cannot push any further inward
// because doing so would leave a Unification or Search negated, neither
// of which has a well-defined complement (spec.md §4.4's "forbid
// negation of unifications or searches").
type UnsafeNegation struct {
	Span value.Span
	Kind string // "unification" or "search"
}

func (e *UnsafeNegation) Error() string {
	return fmt.Sprintf("unsafe negation of %s at offset %d", e.Kind, e.Span.Offset)
}

// NamedFieldNotFound reports a NamedFieldRelationApply field name that
// does not match any key or non-key column of the relation it names
// (spec.md §4.4, "unknown field names fail NamedFieldNotFound").
type NamedFieldNotFound struct {
	Span     value.Span
	Relation string
	Field    string
}

func (e *NamedFieldNotFound) Error() string {
	return fmt.Sprintf("eval: NamedFieldNotFound: relation %q has no field %q (offset %d)", e.Relation, e.Field, e.Span.Offset)
}

// Package ir holds the internal typed dataflow graph: tensors, operator
// instances, and the graph that owns both.
package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the seven fatal-or-warning error categories a
// compilation run can produce. Every Kind except UnknownDimension aborts
// the run.
type Kind int

const (
	// BadInput marks a malformed ONNX model: missing fields, invalid enum values.
	BadInput Kind = iota
	// UnsupportedDynamicShape marks an input required to be compile-time
	// constant that is not.
	UnsupportedDynamicShape
	// UnimplementedOperator marks an operator kind with no registry entry.
	UnimplementedOperator
	// UnimplementedFeature marks a known operator used with an unsupported
	// attribute combination.
	UnimplementedFeature
	// IncorrectInput marks a failed type constraint or impossible shape
	// arithmetic.
	IncorrectInput
	// UnresolvableGraph marks a fixed-point resolver pass that made no
	// progress while nodes remained unresolved.
	UnresolvableGraph
	// UnknownDimension is a warning, not a fatal kind: the resolver
	// defaulted a symbolic dimension to 1 and kept going.
	UnknownDimension
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "BadInput"
	case UnsupportedDynamicShape:
		return "UnsupportedDynamicShape"
	case UnimplementedOperator:
		return "UnimplementedOperator"
	case UnimplementedFeature:
		return "UnimplementedFeature"
	case IncorrectInput:
		return "IncorrectInput"
	case UnresolvableGraph:
		return "UnresolvableGraph"
	case UnknownDimension:
		return "UnknownDimension"
	default:
		return "UnknownKind"
	}
}

// Error is a compilation error carrying its Kind and the site where it was
// detected. Site is a short human string ("Conv.resolve", "node[12]") rather
// than a caller() frame: the stack captured by pkg/errors already carries
// the Go-level call site for diagnostics, so Site carries the *domain*
// detection site (which graph node, which pass) requested by the error
// taxonomy.
type Error struct {
	Kind  Kind
	Site  string
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Site, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Fail constructs a Kind-tagged Error at detection site, wrapping it with a
// captured stack via pkg/errors so the top-level CLI handler can print
// `%+v` and show exactly where in this compiler the problem was found.
func Fail(kind Kind, site string, format string, args ...interface{}) error {
	cause := errors.Errorf(format, args...)
	return errors.WithStack(&Error{Kind: kind, Site: site, cause: cause})
}

// Wrap re-tags an existing error with a Kind and detection site, preserving
// its message and stack.
func Wrap(kind Kind, site string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Site: site, cause: err})
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error. ok is false for plain errors, which the CLI treats as an
// uncategorized internal failure.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

package ops

import (
	"github.com/onnx2c/onnx2c/internal/ir"
)

// attrInt reads an int attribute, returning fallback when absent.
func attrInt(attrs ir.AttrMap, name string, fallback int64) int64 {
	if a, ok := attrs[name]; ok {
		return a.I
	}
	return fallback
}

// attrFloat reads a float attribute, returning fallback when absent.
func attrFloat(attrs ir.AttrMap, name string, fallback float32) float32 {
	if a, ok := attrs[name]; ok {
		return a.F
	}
	return fallback
}

// attrString reads a string attribute, returning fallback when absent.
func attrString(attrs ir.AttrMap, name string, fallback string) string {
	if a, ok := attrs[name]; ok {
		return string(a.S)
	}
	return fallback
}

// attrInts reads a repeated-int attribute, returning fallback when absent.
func attrInts(attrs ir.AttrMap, name string, fallback []int64) []int64 {
	if a, ok := attrs[name]; ok {
		if len(a.Ints) > 0 {
			return a.Ints
		}
		return nil
	}
	return fallback
}

// requireKnownAttrs fails with UnimplementedFeature if attrs contains a
// name outside allowed; this is the "conservative default: fail" policy
// spec §4.3 names for parse_attributes on unknown attribute names.
func requireKnownAttrs(site string, attrs ir.AttrMap, allowed ...string) error {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for name := range attrs {
		if !set[name] {
			return ir.Fail(ir.UnimplementedFeature, site, "unknown attribute %q", name)
		}
	}
	return nil
}

// --- type-constraint helpers (spec §4.3) ---

func isHighPrecisionNumeric(d ir.DType) bool {
	return d == ir.DFloat32 || d == ir.DFloat64 || d == ir.DInt32 || d == ir.DInt64
}

func isPlainFloatingPoint(d ir.DType) bool {
	return d == ir.DFloat32 || d == ir.DFloat64
}

func isAllFloatingPoints(d ir.DType) bool {
	return d.IsFloat()
}

func isInt64(d ir.DType) bool { return d == ir.DInt64 }

func is8Bit(d ir.DType) bool { return d == ir.DInt8 || d == ir.DUint8 }

func isSignedInteger(d ir.DType) bool { return d.IsInteger() && d.IsSigned() }

func isUnsignedInteger(d ir.DType) bool { return d.IsInteger() && !d.IsSigned() }

func checkConstraint(site string, name string, d ir.DType, ok bool) error {
	if !ok {
		return ir.Fail(ir.IncorrectInput, site, "%s has unsupported dtype %s", name, d)
	}
	return nil
}

// broadcastShape implements spec §4.3's multidirectional broadcast: pad
// shorter shape with leading 1s, then per-axis dims must be equal or one
// must be 1; result dim is the max.
func broadcastShape(site string, a, b []int64) ([]int64, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		da := int64(1)
		if idx := len(a) - n + i; idx >= 0 {
			da = a[idx]
		}
		db := int64(1)
		if idx := len(b) - n + i; idx >= 0 {
			db = b[idx]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, ir.Fail(ir.IncorrectInput, site, "cannot broadcast dims %d and %d at axis %d", da, db, i)
		}
	}
	return out, nil
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func shapeEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package ir

import "strings"

// Cify canonicalizes an ONNX name into a valid C identifier fragment:
// every character outside [A-Za-z0-9_] becomes one '_', and the result is prefixed
// with "tensor_". Node identifiers use NodeCify instead so that a tensor
// and a node sharing an ONNX name never collide in the emitted C.
func Cify(name string) string {
	return "tensor_" + sanitize(name)
}

// NodeCify canonicalizes an ONNX node name the same way Cify does for
// tensors, but with the "node_" prefix the emitter uses for per-node
// functions (see internal/emit).
func NodeCify(name string) string {
	return "node_" + sanitize(name)
}

func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

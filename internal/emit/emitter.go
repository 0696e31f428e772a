// Package emit prints a resolved graph as a single C translation unit
// (spec §4.7): front matter, global tensor storage, per-node functions,
// and the orchestrating entry() interface function.
package emit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// Options controls code generation, mirroring spec §6's closed
// configuration set for the parts the emitter itself consults.
type Options struct {
	TargetAVR  bool
	NoGlobals  bool
	OnlyInit   bool
}

// Generate walks g and returns the complete generated C translation unit.
func Generate(g *ir.Graph, opts Options) ([]byte, error) {
	var buf bytes.Buffer

	writeFrontMatter(&buf, opts)

	if !opts.NoGlobals {
		writeGlobalStorage(&buf, g, opts)
	}

	if opts.OnlyInit {
		return buf.Bytes(), nil
	}

	for _, op := range g.Nodes {
		writeNodeFunction(&buf, op)
	}

	writeEntryFunction(&buf, g, opts)

	return buf.Bytes(), nil
}

func writeFrontMatter(w *bytes.Buffer, opts Options) {
	fmt.Fprint(w, `#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>
#include <string.h>
#include <math.h>

#define MIN(a, b) ((a) < (b) ? (a) : (b))
#define MAX(a, b) ((a) > (b) ? (a) : (b))
#define CLIP(v, lo, hi) ((v) < (lo) ? (lo) : ((v) > (hi) ? (hi) : (v)))

static inline int clampi(int v, int lo, int hi) { return v < lo ? lo : (v > hi ? hi : v); }
static inline int reflecti(int v, int n) {
  while (v < 0 || v >= n) {
    if (v < 0) v = -v;
    if (v >= n) v = 2 * (n - 1) - v;
  }
  return v;
}
static inline double round_mode_floor_prefer(double x) { return floor(x + 0.5); }
static inline double round_mode_ceil_prefer(double x) { return ceil(x - 0.5); }
static inline double round_mode_floor_only(double x) { return floor(x); }
static inline double round_mode_ceil_only(double x) { return ceil(x); }
`)

	if opts.TargetAVR {
		fmt.Fprint(w, `
#include <avr/pgmspace.h>
#define RD_PROGMEM(ptr) pgm_read_byte(&(ptr))
`)
	} else {
		fmt.Fprint(w, "\n#define RD_PROGMEM(ptr) (ptr)\n")
	}
	fmt.Fprint(w, "\n")
}

// writeGlobalStorage emits one module-scope array declaration per tensor
// with generate=true (spec §4.7 step 2). Tensors assigned to a union
// slot are emitted as a cast view over a shared per-slot buffer instead
// of owning independent storage.
func writeGlobalStorage(w *bytes.Buffer, g *ir.Graph, opts Options) {
	unionSlotSize := make(map[int]int64)
	for _, t := range g.Tensors {
		if t.UnionIndex < 0 || !t.Generate {
			continue
		}
		sz := t.NumElements() * int64(t.DataType.Size())
		if sz > unionSlotSize[t.UnionIndex] {
			unionSlotSize[t.UnionIndex] = sz
		}
	}

	slots := make([]int, 0, len(unionSlotSize))
	for s := range unionSlotSize {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	for _, s := range slots {
		fmt.Fprintf(w, "static uint8_t union_slot_%d[%d];\n", s, unionSlotSize[s])
	}

	for _, t := range g.Tensors {
		if !t.Generate {
			continue
		}
		if t.UnionIndex >= 0 {
			fmt.Fprintf(w, "#define %s (*(%s(*)%s)union_slot_%d)\n",
				t.CName(), t.DataType.CType(), arrayDims(t.Shape), t.UnionIndex)
			continue
		}
		qualifier := ""
		if t.IsConst {
			qualifier = "const "
		}
		fmt.Fprintf(w, "static %s%s %s%s", qualifier, t.DataType.CType(), t.CName(), arrayDims(t.Shape))
		if opts.TargetAVR && t.Initialize {
			fmt.Fprint(w, " PROGMEM")
		}
		if t.Initialize {
			fmt.Fprint(w, " = ")
			writeInitializer(w, t)
		}
		fmt.Fprint(w, ";\n")
	}
	fmt.Fprint(w, "\n")
}

func arrayDims(shape []int64) string {
	s := ""
	for _, d := range shape {
		s += fmt.Sprintf("[%d]", d)
	}
	return s
}

func writeNodeFunction(w *bytes.Buffer, op *ir.Operator) {
	fmt.Fprintf(w, "static void %s(", op.CName())
	op.Behavior.EmitSignature(op, w, true)
	fmt.Fprint(w, ") {\n")
	op.Behavior.EmitBody(op, w)
	fmt.Fprint(w, "}\n\n")
}

// writeEntryFunction emits spec §4.7 step 4: the public entry() that
// mirrors the network's IO and calls every node function in resolution
// order.
func writeEntryFunction(w *bytes.Buffer, g *ir.Graph, opts Options) {
	fmt.Fprint(w, "void entry(")
	first := true
	for _, t := range g.Tensors {
		if !t.IsIO {
			continue
		}
		if !first {
			fmt.Fprint(w, ", ")
		}
		first = false
		if t.Rank() == 0 {
			fmt.Fprintf(w, "%s *%s", t.DataType.CType(), t.CName())
		} else {
			fmt.Fprintf(w, "%s %s%s", t.DataType.CType(), t.CName(), arrayDims(t.Shape))
		}
	}
	fmt.Fprint(w, ") {\n")
	for _, op := range g.Nodes {
		fmt.Fprintf(w, "  %s(", op.CName())
		op.Behavior.EmitSignature(op, w, false)
		fmt.Fprint(w, ");\n")
	}
	fmt.Fprint(w, "}\n")
}

// writeInitializer prints t.Buffer as a flat brace-enclosed C initializer
// list; C permits eliding inner braces for multi-dimensional arrays, so a
// single flat list is valid regardless of t.Shape's rank.
func writeInitializer(w *bytes.Buffer, t *ir.Tensor) {
	n := t.NumElements()
	size := int64(t.DataType.Size())
	fmt.Fprint(w, "{")
	for i := int64(0); i < n; i++ {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		off := i * size
		fmt.Fprint(w, elementLiteral(t.DataType, t.Buffer[off:off+size]))
	}
	fmt.Fprint(w, "}")
}

func elementLiteral(dtype ir.DType, b []byte) string {
	switch dtype {
	case ir.DFloat32:
		s := fmt.Sprintf("%g", math.Float32frombits(binary.LittleEndian.Uint32(b)))
		if !strings.ContainsAny(s, ".e") {
			s += ".0" // "1f" is not a C floating constant; "1.0f" is
		}
		return s + "f"
	case ir.DFloat64:
		return fmt.Sprintf("%g", math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case ir.DInt64:
		return fmt.Sprintf("%d", int64(binary.LittleEndian.Uint64(b)))
	case ir.DUint64:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint64(b))
	case ir.DInt32:
		return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(b)))
	case ir.DUint32:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint32(b))
	case ir.DInt16:
		return fmt.Sprintf("%d", int16(binary.LittleEndian.Uint16(b)))
	case ir.DUint16:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint16(b))
	case ir.DInt8:
		return fmt.Sprintf("%d", int8(b[0]))
	case ir.DUint8, ir.DBool:
		return fmt.Sprintf("%d", b[0])
	default:
		return "0"
	}
}

package ops

import (
	"fmt"

	"github.com/onnx2c/onnx2c/internal/ir"
)

// LSTM implements spec §4.3's recurrent contract. Gate order within the
// concatenated W/R/B tensors follows ONNX's own convention: input, output,
// forget, cell (iofc), not the more common ifco some libraries use.
type LSTM struct {
	hiddenSize int64
	direction  string // forward | reverse | bidirectional
	clip       float32
	hasClip    bool
}

func (l *LSTM) ParseAttributes(op *ir.Operator, attrs ir.AttrMap) error {
	if err := requireKnownAttrs("LSTM.ParseAttributes", attrs,
		"hidden_size", "direction", "activations", "clip", "activation_alpha", "activation_beta", "input_forget"); err != nil {
		return err
	}
	l.hiddenSize = attrInt(attrs, "hidden_size", 0)
	if l.hiddenSize == 0 {
		return ir.Fail(ir.BadInput, "LSTM.ParseAttributes", "hidden_size is required")
	}
	l.direction = attrString(attrs, "direction", "forward")
	if a, ok := attrs["clip"]; ok {
		l.clip = a.F
		l.hasClip = true
	}
	// activations: this compiler supports only the documented defaults
	// (sigmoid, tanh, tanh); a model requesting anything else is rejected
	// rather than silently mis-evaluated.
	if a, ok := attrs["activations"]; ok {
		if len(a.Strings) != 0 {
			defaults := []string{"Sigmoid", "Tanh", "Tanh"}
			for i, s := range a.Strings {
				sv := string(s)
				if sv != defaults[i%3] {
					return ir.Fail(ir.UnimplementedFeature, "LSTM.ParseAttributes", "non-default activation %q unsupported", sv)
				}
			}
		}
	}
	return nil
}

func (l *LSTM) numDirections() int64 {
	if l.direction == "bidirectional" {
		return 2
	}
	return 1
}

func (l *LSTM) Resolve(op *ir.Operator) error {
	if len(op.Inputs) < 3 || op.Inputs[0] == nil || op.Inputs[1] == nil || op.Inputs[2] == nil {
		return ir.Fail(ir.BadInput, "LSTM.Resolve", "missing required input X, W, or R")
	}
	x := op.Inputs[0]
	if err := checkConstraint("LSTM.Resolve", "X", x.DataType, isAllFloatingPoints(x.DataType)); err != nil {
		return err
	}
	seqLen, batch, inputSize := x.Shape[0], x.Shape[1], x.Shape[2]
	dirs := l.numDirections()
	hidden := l.hiddenSize

	yShape := []int64{seqLen, dirs, batch, hidden}
	yhShape := []int64{dirs, batch, hidden}

	if op.OutputUsed[0] {
		y := ir.NewTensor(op.OutputName(0, ""), x.DataType, yShape)
		y.Generate = true
		op.RegisterOutput(y, "y")
	} else {
		// Still registered per spec's "may still require generating an
		// output even when not used externally"; recursive-state outputs
		// below are the motivating case, Y itself we just skip entirely
		// when genuinely unused and non-recursive.
		op.RegisterOutput(nil, "")
		op.Outputs = op.Outputs[:len(op.Outputs)-1]
		op.OutputParams = op.OutputParams[:len(op.OutputParams)-1]
	}

	var initialH, initialC *ir.Tensor
	if len(op.Inputs) > 5 {
		initialH = op.Inputs[5]
	}
	if len(op.Inputs) > 6 {
		initialC = op.Inputs[6]
	}

	yh := l.makeRecurrentState(op, 1, "Y_h", yhShape, x.DataType, initialH)
	yc := l.makeRecurrentState(op, 2, "Y_c", yhShape, x.DataType, initialC)
	op.RegisterOutput(yh, "y_h")
	op.RegisterOutput(yc, "y_c")

	_ = inputSize
	return nil
}

// makeRecurrentState implements spec §4.3's LSTM state-persistence rule:
// if the corresponding initial_h/initial_c input is provided and constant,
// the output tensor aliases it (updated in place across invocations);
// otherwise it owns a zero-initialized, recursive buffer that persists for
// the generated library's lifetime.
func (l *LSTM) makeRecurrentState(op *ir.Operator, outIdx int, label string, shape []int64, dtype ir.DType, initial *ir.Tensor) *ir.Tensor {
	name := op.OutputName(outIdx, label)
	if initial != nil && initial.Initialize {
		t := ir.NewTensor(name, dtype, shape)
		t.AliasOf = initial
		t.IsRecursive = true
		return t
	}
	t := ir.NewTensor(name, dtype, shape)
	t.Initialize = true
	t.IsRecursive = true
	t.Generate = true
	t.Buffer = make([]byte, product(shape)*dtype.Size())
	return t
}

func (l *LSTM) EmitSignature(op *ir.Operator, w writer, decorate bool) {
	emitStandardSignature(op, w, decorate)
}

func (l *LSTM) EmitBody(op *ir.Operator, w writer) {
	x := op.InputParams[0]
	wgt := op.InputParams[1]
	r := op.InputParams[2]
	var bias *ir.Param
	if len(op.InputParams) > 3 && op.InputParams[3].Tensor != nil {
		bias = &op.InputParams[3]
	}

	// y_h/y_c are always the last two registered outputs; y is present
	// only when used (Resolve above conditionally skips it).
	yh := op.OutputParams[len(op.OutputParams)-2]
	yc := op.OutputParams[len(op.OutputParams)-1]
	var y *ir.Param
	if len(op.OutputParams) == 3 {
		y = &op.OutputParams[0]
	}

	seqLen := op.Inputs[0].Shape[0]
	batch := op.Inputs[0].Shape[1]
	inputSize := op.Inputs[0].Shape[2]
	hidden := l.hiddenSize

	dirSpecs := []struct {
		index   int
		reverse bool
	}{}
	switch l.direction {
	case "forward":
		dirSpecs = append(dirSpecs, struct {
			index   int
			reverse bool
		}{0, false})
	case "reverse":
		dirSpecs = append(dirSpecs, struct {
			index   int
			reverse bool
		}{0, true})
	case "bidirectional":
		dirSpecs = append(dirSpecs,
			struct {
				index   int
				reverse bool
			}{0, false},
			struct {
				index   int
				reverse bool
			}{1, true},
		)
	}

	for _, spec := range dirSpecs {
		fmt.Fprintf(w, "  {\n")
		fmt.Fprintf(w, "    const int dir = %d;\n", spec.index)
		timeExpr := "t"
		if spec.reverse {
			fmt.Fprintf(w, "    for (int t = %d - 1; t >= 0; t--) {\n", seqLen)
		} else {
			fmt.Fprintf(w, "    for (int t = 0; t < %d; t++) {\n", seqLen)
		}
		fmt.Fprintf(w, "      for (int b = 0; b < %d; b++) {\n", batch)
		ctype := op.Inputs[0].DataType.CType()
		for _, gate := range []string{"i", "o", "f", "c"} {
			fmt.Fprintf(w, "        %s gate_%s_arr[%d];\n", ctype, gate, hidden)
		}
		for _, gate := range []string{"i", "o", "f", "c"} {
			gateOffset := gateOffsetOf(gate, hidden)
			fmt.Fprintf(w, "        for (int h = 0; h < %d; h++) {\n", hidden)
			fmt.Fprintf(w, "          %s gate_%s = 0;\n", op.Inputs[0].DataType.CType(), gate)
			fmt.Fprintf(w, "          for (int k = 0; k < %d; k++) gate_%s += %s[dir][%d+h][k] * %s[%s][b][k];\n",
				inputSize, gate, wgt.Local, gateOffset, x.Local, timeExpr)
			fmt.Fprintf(w, "          for (int k = 0; k < %d; k++) gate_%s += %s[dir][%d+h][k] * %s[dir][b][k];\n",
				hidden, gate, r.Local, gateOffset, yh.Local)
			if bias != nil {
				fmt.Fprintf(w, "          gate_%s += %s[dir][%d+h] + %s[dir][%d+h];\n", gate, bias.Local, gateOffset, bias.Local, gateOffset+4*int(hidden))
			}
			switch gate {
			case "c":
				fmt.Fprintf(w, "          gate_%s = tanhf(gate_%s);\n", gate, gate)
			default:
				fmt.Fprintf(w, "          gate_%s = 1.0f / (1.0f + expf(-gate_%s));\n", gate, gate)
			}
			fmt.Fprintf(w, "          gate_%s_arr[h] = gate_%s;\n", gate, gate)
			fmt.Fprintf(w, "        }\n")
		}
		fmt.Fprintf(w, "        for (int h = 0; h < %d; h++) {\n", hidden)
		fmt.Fprintf(w, "          %s new_c = gate_f_arr[h] * %s[dir][b][h] + gate_i_arr[h] * gate_c_arr[h];\n", op.Inputs[0].DataType.CType(), yc.Local)
		fmt.Fprintf(w, "          %s new_h = gate_o_arr[h] * tanhf(new_c);\n", op.Inputs[0].DataType.CType())
		fmt.Fprintf(w, "          %s[dir][b][h] = new_c;\n", yc.Local)
		fmt.Fprintf(w, "          %s[dir][b][h] = new_h;\n", yh.Local)
		if y != nil {
			fmt.Fprintf(w, "          %s[%s][dir][b][h] = new_h;\n", y.Local, timeExpr)
		}
		fmt.Fprintf(w, "        }\n")
		fmt.Fprintf(w, "      }\n")
		fmt.Fprintf(w, "    }\n")
		fmt.Fprintf(w, "  }\n")
	}
}

func gateOffsetOf(gate string, hidden int64) int {
	order := map[string]int{"i": 0, "o": 1, "f": 2, "c": 3}
	return order[gate] * int(hidden)
}

// Package pipeline wires the compiler's four stages together: decode ONNX
// bytes, resolve the graph, run the optimization passes, emit C (spec.md's
// Control Flow line: "CLI -> parse ONNX bytes -> Graph builder ->
// optimization passes -> Code emitter -> stdout").
package pipeline

import (
	"github.com/onnx2c/onnx2c/internal/config"
	"github.com/onnx2c/onnx2c/internal/emit"
	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/onnxpb"
	"github.com/onnx2c/onnx2c/internal/ops"
	"github.com/onnx2c/onnx2c/internal/optimize"
)

// Compile runs the full pipeline over raw ONNX model bytes and returns the
// generated C translation unit.
func Compile(data []byte, cfg config.Config, warn func(string, ...interface{})) ([]byte, error) {
	model, err := onnxpb.DecodeModel(data)
	if err != nil {
		return nil, ir.Wrap(ir.BadInput, "pipeline.Compile", err)
	}

	reg := ops.New()
	g, err := ir.BuildGraph(model, reg, ir.Options{
		Quantize:   cfg.Quantize,
		DimDefines: cfg.DimDefines,
		Warn:       warn,
	})
	if err != nil {
		return nil, err
	}

	if cfg.OptFoldCasts {
		optimize.FoldCasts(g)
	}
	if cfg.OptUnionize {
		optimize.Unionize(g)
	}

	return emit.Generate(g, emit.Options{
		TargetAVR: cfg.TargetAVR,
		NoGlobals: cfg.NoGlobals,
		OnlyInit:  cfg.OnlyInit,
	})
}

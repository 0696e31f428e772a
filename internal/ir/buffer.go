package ir

import (
	"encoding/binary"
	"math"

	"github.com/onnx2c/onnx2c/internal/onnxpb"
)

// bufferFromProto packs a TensorProto's data into t's little-endian byte
// buffer layout. raw_data, when present, is ONNX's own packed little-endian
// encoding and is used verbatim; otherwise the typed repeated field for
// dtype is packed here. Target MCUs addressed by this compiler (AVR and
// similar) are little-endian, so no byte-swapping is performed.
// BufferFromProto is the exported form of bufferFromProto, used by
// operators (Constant, ConstantOfShape) that materialize a TensorProto
// found inside an attribute rather than the graph's initializer list.
func BufferFromProto(tp *onnxpb.TensorProto, dtype DType) []byte {
	if tp == nil {
		return nil
	}
	return bufferFromProto(*tp, dtype)
}

func bufferFromProto(tp onnxpb.TensorProto, dtype DType) []byte {
	if len(tp.RawData) > 0 {
		return tp.RawData
	}
	n := int64(1)
	for _, d := range tp.Dims {
		n *= d
	}
	if n == 0 {
		return nil
	}
	buf := make([]byte, 0, int(n)*dtype.Size())
	switch dtype {
	case DFloat32:
		for _, f := range tp.FloatData {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	case DFloat64:
		for _, f := range tp.DoubleData {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
	case DInt64:
		for _, v := range tp.Int64Data {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	case DUint64:
		for _, v := range tp.Uint64Data {
			buf = binary.LittleEndian.AppendUint64(buf, v)
		}
	case DInt32, DUint32:
		for _, v := range tp.Int32Data {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
	case DInt16, DUint16:
		for _, v := range tp.Int32Data {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
	case DInt8, DUint8, DBool:
		for _, v := range tp.Int32Data {
			buf = append(buf, byte(v))
		}
	default:
		return nil
	}
	return buf
}

// Float32At reads the i-th element of t.Buffer as float32. It does not
// check t.DataType; it panics only if the buffer is shorter than i+1
// float32 values.
func (t *Tensor) Float32At(i int64) float32 {
	off := i * 4
	return math.Float32frombits(binary.LittleEndian.Uint32(t.Buffer[off : off+4]))
}

// Float64At reads the i-th element of t.Buffer as float64.
func (t *Tensor) Float64At(i int64) float64 {
	off := i * 8
	return math.Float64frombits(binary.LittleEndian.Uint64(t.Buffer[off : off+8]))
}

// Int64At reads the i-th element of t.Buffer as int64.
func (t *Tensor) Int64At(i int64) int64 {
	off := i * 8
	return int64(binary.LittleEndian.Uint64(t.Buffer[off : off+8]))
}

// AllFloat32 returns every element of a DFloat32 tensor's buffer.
func (t *Tensor) AllFloat32() []float32 {
	n := t.NumElements()
	out := make([]float32, n)
	for i := int64(0); i < n; i++ {
		out[i] = t.Float32At(i)
	}
	return out
}

// AllInt64 returns every element of a DInt64 tensor's buffer.
func (t *Tensor) AllInt64() []int64 {
	n := t.NumElements()
	out := make([]int64, n)
	for i := int64(0); i < n; i++ {
		out[i] = t.Int64At(i)
	}
	return out
}

// SetFloat32Buffer packs vals into t.Buffer as a DFloat32 tensor.
func SetFloat32Buffer(t *Tensor, vals []float32) {
	buf := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	t.Buffer = buf
}

// MakeQuantizedCopy implements spec §4.2's make_quantized_copy: for a
// float32 or float64 tensor, compute max(|min|,|max|) over the buffer, map each element to
// round(x/max*127) clamped to [-127,127], and return a new i8 tensor named
// "<orig>_quantized". Non-float int64 tensors are instead downcast to u16
// with a range check.
func MakeQuantizedCopy(t *Tensor) (*Tensor, error) {
	name := t.Name + "_quantized"
	switch {
	case t.DataType == DFloat32 || t.DataType == DFloat64:
		vals := make([]float32, t.NumElements())
		for i := range vals {
			if t.DataType == DFloat64 {
				vals[i] = float32(t.Float64At(int64(i)))
			} else {
				vals[i] = t.Float32At(int64(i))
			}
		}
		max := float32(0)
		for _, v := range vals {
			a := v
			if a < 0 {
				a = -a
			}
			if a > max {
				max = a
			}
		}
		out := NewTensor(name, DInt8, t.Shape)
		out.IsConst = t.IsConst
		out.Initialize = t.Initialize
		out.Generate = t.Generate
		out.IsQuantized = true
		out.QuantizedScale = max / 127
		buf := make([]byte, len(vals))
		for i, v := range vals {
			q := int32(0)
			if max != 0 {
				q = int32(math.Round(float64(v / max * 127)))
			}
			if q > 127 {
				q = 127
			}
			if q < -127 {
				q = -127
			}
			buf[i] = byte(int8(q))
		}
		out.Buffer = buf
		return out, nil

	case t.DataType == DInt64:
		vals := t.AllInt64()
		out := NewTensor(name, DUint16, t.Shape)
		out.IsConst = t.IsConst
		out.Initialize = t.Initialize
		out.Generate = t.Generate
		buf := make([]byte, 0, len(vals)*2)
		for _, v := range vals {
			if v < 0 || v > math.MaxUint16 {
				return nil, Fail(IncorrectInput, "MakeQuantizedCopy", "int64 value %d out of u16 range for quantized copy of %q", v, t.Name)
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
		out.Buffer = buf
		return out, nil

	default:
		return nil, Fail(IncorrectInput, "MakeQuantizedCopy", "tensor %q has unsupported dtype %s for quantization", t.Name, t.DataType)
	}
}

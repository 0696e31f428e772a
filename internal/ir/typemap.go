package ir

// ONNX TensorProto.DataType enum values, reproduced here as the only
// contract this package has with the upstream schema (onnx.proto3 §TensorProto).
const (
	onnxUndefined = 0
	onnxFloat     = 1
	onnxUint8     = 2
	onnxInt8      = 3
	onnxUint16    = 4
	onnxInt16     = 5
	onnxInt32     = 6
	onnxInt64     = 7
	onnxString    = 8
	onnxBool      = 9
	onnxFloat16   = 10
	onnxDouble    = 11
	onnxUint32    = 12
	onnxUint64    = 13
	onnxBFloat16  = 16
)

// DTypeFromONNX maps an onnx.TensorProto.DataType enum value to this
// package's DType.
func DTypeFromONNX(v int32) DType {
	switch v {
	case onnxFloat:
		return DFloat32
	case onnxUint8:
		return DUint8
	case onnxInt8:
		return DInt8
	case onnxUint16:
		return DUint16
	case onnxInt16:
		return DInt16
	case onnxInt32:
		return DInt32
	case onnxInt64:
		return DInt64
	case onnxString:
		return DString
	case onnxBool:
		return DBool
	case onnxFloat16:
		return DFloat16
	case onnxDouble:
		return DFloat64
	case onnxUint32:
		return DUint32
	case onnxUint64:
		return DUint64
	case onnxBFloat16:
		return DBFloat16
	default:
		return DUndefined
	}
}

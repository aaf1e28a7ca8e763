package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dtype is the element type of a fixed-shape array codec.
type Dtype string

const (
	Float32 Dtype = "float32"
	Float64 Dtype = "float64"
	Int64   Dtype = "int64"
)

// Array builds a dtype-checked codec for fixed-shape numeric arrays.
// Encode validates that the value's element type matches dtype exactly
// and serializes row-major to a little-endian byte buffer; Decode is
// the exact inverse, so Decode(Encode(v)) == v.
func Array(dtype Dtype, shape []int) *DataType {
	return &DataType{
		Identifier: fmt.Sprintf("array.%s[%s]", dtype, strShape(shape)),
		Shape:      shape,
		Encoder:    encodeArray(dtype, shape),
		Decoder:    decodeArray(dtype, shape),
	}
}

// Vector builds a pass-through codec for a float32 vector of the given
// length, for document stores that support native arrays.
func Vector(shape []int) *DataType {
	return &DataType{
		Identifier: fmt.Sprintf("vector[%s]", strShape(shape)),
		Shape:      shape,
	}
}

// SQLVector builds a float64 byte-buffer codec for a vector of the
// given length. Unlike Vector it always goes through the byte path,
// which SQL databases can store as a blob column.
func SQLVector(shape []int) *DataType {
	return &DataType{
		Identifier: fmt.Sprintf("sqlvector[%s]", strShape(shape)),
		Shape:      shape,
		Encoder:    encodeArray(Float64, shape),
		Decoder:    decodeArray(Float64, shape),
	}
}

func encodeArray(dtype Dtype, shape []int) EncodeFunc {
	want := numElements(shape)
	return func(v any) (any, error) {
		switch dtype {
		case Float32:
			vec, ok := v.([]float32)
			if !ok {
				return nil, fmt.Errorf("%w: value is %T, expected []float32", ErrDtypeMismatch, v)
			}
			if len(vec) != want {
				return nil, fmt.Errorf("codec: value has %d elements, shape %v requires %d", len(vec), shape, want)
			}
			buf := make([]byte, 4*len(vec))
			for i, f := range vec {
				binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
			}
			return buf, nil

		case Float64:
			vec, ok := v.([]float64)
			if !ok {
				return nil, fmt.Errorf("%w: value is %T, expected []float64", ErrDtypeMismatch, v)
			}
			if len(vec) != want {
				return nil, fmt.Errorf("codec: value has %d elements, shape %v requires %d", len(vec), shape, want)
			}
			buf := make([]byte, 8*len(vec))
			for i, f := range vec {
				binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
			}
			return buf, nil

		case Int64:
			vec, ok := v.([]int64)
			if !ok {
				return nil, fmt.Errorf("%w: value is %T, expected []int64", ErrDtypeMismatch, v)
			}
			if len(vec) != want {
				return nil, fmt.Errorf("codec: value has %d elements, shape %v requires %d", len(vec), shape, want)
			}
			buf := make([]byte, 8*len(vec))
			for i, n := range vec {
				binary.LittleEndian.PutUint64(buf[8*i:], uint64(n))
			}
			return buf, nil

		default:
			return nil, fmt.Errorf("codec: unsupported dtype %q", dtype)
		}
	}
}

func decodeArray(dtype Dtype, shape []int) DecodeFunc {
	want := numElements(shape)
	return func(v any) (any, error) {
		buf, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("codec: stored value is %T, expected []byte", v)
		}

		switch dtype {
		case Float32:
			if len(buf) != 4*want {
				return nil, fmt.Errorf("codec: buffer has %d bytes, shape %v requires %d", len(buf), shape, 4*want)
			}
			vec := make([]float32, want)
			for i := range vec {
				vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
			}
			return vec, nil

		case Float64:
			if len(buf) != 8*want {
				return nil, fmt.Errorf("codec: buffer has %d bytes, shape %v requires %d", len(buf), shape, 8*want)
			}
			vec := make([]float64, want)
			for i := range vec {
				vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
			}
			return vec, nil

		case Int64:
			if len(buf) != 8*want {
				return nil, fmt.Errorf("codec: buffer has %d bytes, shape %v requires %d", len(buf), shape, 8*want)
			}
			vec := make([]int64, want)
			for i := range vec {
				vec[i] = int64(binary.LittleEndian.Uint64(buf[8*i:]))
			}
			return vec, nil

		default:
			return nil, fmt.Errorf("codec: unsupported dtype %q", dtype)
		}
	}
}

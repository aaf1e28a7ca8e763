// Package codec provides the fixed-shape numeric encode/decode pairs
// used to serialize model outputs for storage and vector search.
//
// Two flavors exist: byte-buffer codecs for SQL-compatible stores
// (values are serialized to a fixed-width little-endian buffer) and
// pass-through codecs for document stores with native array types.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDtypeMismatch is returned when a value handed to a fixed-dtype
// encoder does not have the declared element type. There is no silent
// coercion.
var ErrDtypeMismatch = errors.New("codec: dtype mismatch")

// ErrNoShape is returned when a fixed shape is required (for example
// to derive vector-index dimensionality) but the codec does not
// declare one.
var ErrNoShape = errors.New("codec: no fixed shape declared")

// EncodeFunc serializes a model output for storage. A nil EncodeFunc
// on a DataType means pass-through.
type EncodeFunc func(v any) (any, error)

// DecodeFunc is the inverse of EncodeFunc.
type DecodeFunc func(v any) (any, error)

// DataType couples an identifier and a fixed shape with an
// encode/decode pair. Encoder and Decoder may both be nil for stores
// that accept the value natively.
type DataType struct {
	Identifier string
	Shape      []int
	Encoder    EncodeFunc
	Decoder    DecodeFunc
}

// Encode serializes v for storage. Pass-through when no encoder is set.
func (dt *DataType) Encode(v any) (any, error) {
	if dt.Encoder == nil {
		return v, nil
	}
	return dt.Encoder(v)
}

// Decode deserializes a stored value. Pass-through when no decoder is set.
func (dt *DataType) Decode(v any) (any, error) {
	if dt.Decoder == nil {
		return v, nil
	}
	return dt.Decoder(v)
}

// Dimensions returns the last dimension of the declared shape. It
// fails with ErrNoShape when the codec does not declare one.
func (dt *DataType) Dimensions() (int, error) {
	if len(dt.Shape) == 0 {
		return 0, fmt.Errorf("%w (datatype %q)", ErrNoShape, dt.Identifier)
	}
	return dt.Shape[len(dt.Shape)-1], nil
}

// strShape renders a shape for codec identifiers: [16] -> "16",
// [4,4] -> "4x4".
func strShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, "x")
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

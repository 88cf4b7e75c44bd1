package aggregate

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	arrowmath "github.com/apache/arrow/go/v12/arrow/math"

	"github.com/aaronlmathis/goquery/core"
)

// reduceColumn applies a whole-array reduction for the function kind
// directly on the typed array, yielding a single scalar. ok is false when
// the reduction has no defined value (no non-null input); COUNT always has
// one. Unsupported kind/type pairings return typed errors.
//
// SUM goes through the arrow math kernels where one exists for the type;
// the kernels have no null awareness, so columns containing nulls take the
// loop path instead.
func reduceColumn(kind Kind, col arrow.Array) (core.ScalarValue, bool, error) {
	switch kind {
	case Count:
		return core.Int64Scalar(int64(col.Len() - col.NullN())), true, nil
	case Min, Max:
		return reduceMinMax(kind, col)
	case Sum:
		return reduceSum(col)
	default:
		return core.NullScalar(), false, core.Errorf(core.ErrUnsupportedFunction,
			"reduce", "unsupported aggregate function %s", kind)
	}
}

// valuer is the read surface shared by the typed arrow arrays.
type valuer[T any] interface {
	Len() int
	IsNull(i int) bool
	Value(i int) T
}

func minMaxValues[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | string](arr valuer[T], kind Kind) (T, bool) {
	var best T
	found := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := arr.Value(i)
		if !found {
			best = v
			found = true
			continue
		}
		if (kind == Min && v < best) || (kind == Max && v > best) {
			best = v
		}
	}
	return best, found
}

func reduceMinMax(kind Kind, col arrow.Array) (core.ScalarValue, bool, error) {
	switch arr := col.(type) {
	case *array.Int8:
		v, ok := minMaxValues[int8](arr, kind)
		return core.Int8Scalar(v), ok, nil
	case *array.Int16:
		v, ok := minMaxValues[int16](arr, kind)
		return core.Int16Scalar(v), ok, nil
	case *array.Int32:
		v, ok := minMaxValues[int32](arr, kind)
		return core.Int32Scalar(v), ok, nil
	case *array.Int64:
		v, ok := minMaxValues[int64](arr, kind)
		return core.Int64Scalar(v), ok, nil
	case *array.Uint8:
		v, ok := minMaxValues[uint8](arr, kind)
		return core.Uint8Scalar(v), ok, nil
	case *array.Uint16:
		v, ok := minMaxValues[uint16](arr, kind)
		return core.Uint16Scalar(v), ok, nil
	case *array.Uint32:
		v, ok := minMaxValues[uint32](arr, kind)
		return core.Uint32Scalar(v), ok, nil
	case *array.Uint64:
		v, ok := minMaxValues[uint64](arr, kind)
		return core.Uint64Scalar(v), ok, nil
	case *array.Float32:
		v, ok := minMaxValues[float32](arr, kind)
		return core.Float32Scalar(v), ok, nil
	case *array.Float64:
		v, ok := minMaxValues[float64](arr, kind)
		return core.Float64Scalar(v), ok, nil
	case *array.String:
		v, ok := minMaxValues[string](arr, kind)
		return core.StringScalar(v), ok, nil
	default:
		return core.NullScalar(), false, core.Errorf(core.ErrUnsupportedType,
			"reduce", "%s not supported for array type %s", kind, col.DataType())
	}
}

func sumValues[T int8 | int16 | int32 | int64](arr valuer[T]) (int64, bool) {
	var total int64
	found := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		total += int64(arr.Value(i))
		found = true
	}
	return total, found
}

func sumUnsignedValues[T uint8 | uint16 | uint32 | uint64](arr valuer[T]) (uint64, bool) {
	var total uint64
	found := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		total += uint64(arr.Value(i))
		found = true
	}
	return total, found
}

func sumFloatValues[T float32 | float64](arr valuer[T]) (float64, bool) {
	var total float64
	found := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		total += float64(arr.Value(i))
		found = true
	}
	return total, found
}

func reduceSum(col arrow.Array) (core.ScalarValue, bool, error) {
	switch arr := col.(type) {
	case *array.Int8:
		v, ok := sumValues[int8](arr)
		return core.ScalarValue{Kind: core.KindInt8, Int: v}, ok, nil
	case *array.Int16:
		v, ok := sumValues[int16](arr)
		return core.ScalarValue{Kind: core.KindInt16, Int: v}, ok, nil
	case *array.Int32:
		v, ok := sumValues[int32](arr)
		return core.ScalarValue{Kind: core.KindInt32, Int: v}, ok, nil
	case *array.Int64:
		if arr.NullN() == 0 {
			return core.Int64Scalar(arrowmath.Int64.Sum(arr)), arr.Len() > 0, nil
		}
		v, ok := sumValues[int64](arr)
		return core.Int64Scalar(v), ok, nil
	case *array.Uint8:
		v, ok := sumUnsignedValues[uint8](arr)
		return core.ScalarValue{Kind: core.KindUint8, Uint: v}, ok, nil
	case *array.Uint16:
		v, ok := sumUnsignedValues[uint16](arr)
		return core.ScalarValue{Kind: core.KindUint16, Uint: v}, ok, nil
	case *array.Uint32:
		v, ok := sumUnsignedValues[uint32](arr)
		return core.ScalarValue{Kind: core.KindUint32, Uint: v}, ok, nil
	case *array.Uint64:
		if arr.NullN() == 0 {
			return core.Uint64Scalar(arrowmath.Uint64.Sum(arr)), arr.Len() > 0, nil
		}
		v, ok := sumUnsignedValues[uint64](arr)
		return core.Uint64Scalar(v), ok, nil
	case *array.Float32:
		v, ok := sumFloatValues[float32](arr)
		return core.ScalarValue{Kind: core.KindFloat32, Float: v}, ok, nil
	case *array.Float64:
		if arr.NullN() == 0 {
			return core.Float64Scalar(arrowmath.Float64.Sum(arr)), arr.Len() > 0, nil
		}
		v, ok := sumFloatValues[float64](arr)
		return core.Float64Scalar(v), ok, nil
	default:
		return core.NullScalar(), false, core.Errorf(core.ErrUnsupportedType,
			"reduce", "SUM not supported for array type %s", col.DataType())
	}
}

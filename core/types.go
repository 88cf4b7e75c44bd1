//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoQuery.
//
// GoQuery is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoQuery is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoQuery. If not, see https://www.gnu.org/licenses/.

package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
)

// Package core defines the core types for the GoQuery library.
//
// This file contains the scalar value union used by accumulators and group
// keys, and the row-wise extraction of scalars from Arrow arrays.

// ScalarKind tags the variant held by a ScalarValue. The set of kinds is
// closed; code switching on a kind must handle the default case by returning
// an unsupported-type execution error rather than panicking.
type ScalarKind uint8

const (
	KindNull ScalarKind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
)

// String returns a human-readable name for the scalar kind.
func (k ScalarKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "utf8"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ScalarValue is a tagged union over the primitive types supported by the
// execution layer. It is the unit accumulators consume and produce, and the
// building block of group keys. The zero value is the null scalar.
//
// ScalarValue is comparable: two values are structurally equal iff their
// kinds match and the payload for that kind matches. Integer payloads are
// widened into the Int/Uint fields but keep their original kind, so an
// int32 1 and an int64 1 are distinct key components.
type ScalarValue struct {
	Kind  ScalarKind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
}

// Scalar constructors, one per supported variant.

func NullScalar() ScalarValue             { return ScalarValue{Kind: KindNull} }
func BoolScalar(v bool) ScalarValue       { return ScalarValue{Kind: KindBool, Bool: v} }
func Int8Scalar(v int8) ScalarValue       { return ScalarValue{Kind: KindInt8, Int: int64(v)} }
func Int16Scalar(v int16) ScalarValue     { return ScalarValue{Kind: KindInt16, Int: int64(v)} }
func Int32Scalar(v int32) ScalarValue     { return ScalarValue{Kind: KindInt32, Int: int64(v)} }
func Int64Scalar(v int64) ScalarValue     { return ScalarValue{Kind: KindInt64, Int: v} }
func Uint8Scalar(v uint8) ScalarValue     { return ScalarValue{Kind: KindUint8, Uint: uint64(v)} }
func Uint16Scalar(v uint16) ScalarValue   { return ScalarValue{Kind: KindUint16, Uint: uint64(v)} }
func Uint32Scalar(v uint32) ScalarValue   { return ScalarValue{Kind: KindUint32, Uint: uint64(v)} }
func Uint64Scalar(v uint64) ScalarValue   { return ScalarValue{Kind: KindUint64, Uint: v} }
func Float32Scalar(v float32) ScalarValue { return ScalarValue{Kind: KindFloat32, Float: float64(v)} }
func Float64Scalar(v float64) ScalarValue { return ScalarValue{Kind: KindFloat64, Float: v} }
func StringScalar(v string) ScalarValue   { return ScalarValue{Kind: KindString, Str: v} }

// IsNull reports whether the scalar holds no value.
func (v ScalarValue) IsNull() bool { return v.Kind == KindNull }

// DataType returns the Arrow data type corresponding to the scalar's kind.
// The null kind maps to arrow.Null.
func (v ScalarValue) DataType() arrow.DataType {
	switch v.Kind {
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindInt8:
		return arrow.PrimitiveTypes.Int8
	case KindInt16:
		return arrow.PrimitiveTypes.Int16
	case KindInt32:
		return arrow.PrimitiveTypes.Int32
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindUint8:
		return arrow.PrimitiveTypes.Uint8
	case KindUint16:
		return arrow.PrimitiveTypes.Uint16
	case KindUint32:
		return arrow.PrimitiveTypes.Uint32
	case KindUint64:
		return arrow.PrimitiveTypes.Uint64
	case KindFloat32:
		return arrow.PrimitiveTypes.Float32
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindString:
		return arrow.BinaryTypes.String
	default:
		return arrow.Null
	}
}

// String renders the scalar for diagnostics.
func (v ScalarValue) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.Int, 10)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return strconv.FormatUint(v.Uint, 10)
	case KindFloat32, KindFloat64:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// ScalarAt extracts the value at rowIdx from the given array as a
// ScalarValue. Null slots extract as the null scalar. Array types outside
// the closed scalar union return an unsupported-type execution error.
func ScalarAt(col arrow.Array, rowIdx int) (ScalarValue, error) {
	if col.IsNull(rowIdx) {
		return NullScalar(), nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return BoolScalar(arr.Value(rowIdx)), nil
	case *array.Int8:
		return Int8Scalar(arr.Value(rowIdx)), nil
	case *array.Int16:
		return Int16Scalar(arr.Value(rowIdx)), nil
	case *array.Int32:
		return Int32Scalar(arr.Value(rowIdx)), nil
	case *array.Int64:
		return Int64Scalar(arr.Value(rowIdx)), nil
	case *array.Uint8:
		return Uint8Scalar(arr.Value(rowIdx)), nil
	case *array.Uint16:
		return Uint16Scalar(arr.Value(rowIdx)), nil
	case *array.Uint32:
		return Uint32Scalar(arr.Value(rowIdx)), nil
	case *array.Uint64:
		return Uint64Scalar(arr.Value(rowIdx)), nil
	case *array.Float32:
		return Float32Scalar(arr.Value(rowIdx)), nil
	case *array.Float64:
		return Float64Scalar(arr.Value(rowIdx)), nil
	case *array.String:
		return StringScalar(arr.Value(rowIdx)), nil
	default:
		return NullScalar(), NewError(ErrUnsupportedType, "scalar_at",
			fmt.Errorf("no scalar variant for array type %s", col.DataType()))
	}
}

// CompareScalars orders two scalars of identical kind. A kind mismatch is
// a schema-mismatch error; the bool and null kinds have no ordering and
// return an unsupported-type error.
func CompareScalars(a, b ScalarValue) (int, error) {
	if a.Kind != b.Kind {
		return 0, Errorf(ErrSchemaMismatch, "compare",
			"cannot compare %s with %s", a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return compareOrdered(a.Int, b.Int), nil
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return compareOrdered(a.Uint, b.Uint), nil
	case KindFloat32, KindFloat64:
		return compareOrdered(a.Float, b.Float), nil
	case KindString:
		return strings.Compare(a.Str, b.Str), nil
	default:
		return 0, Errorf(ErrUnsupportedType, "compare",
			"type %s has no ordering", a.Kind)
	}
}

func compareOrdered[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AppendScalar appends the scalar to the given builder, which must match the
// scalar's type (or receive a null). A builder/kind mismatch returns a
// schema-mismatch execution error, as does a narrow-integer scalar whose
// widened payload no longer fits the builder's type (a SUM over a narrow
// integer column can exceed its range).
func AppendScalar(b array.Builder, v ScalarValue) error {
	if v.IsNull() {
		b.AppendNull()
		return nil
	}

	switch bld := b.(type) {
	case *array.BooleanBuilder:
		if v.Kind == KindBool {
			bld.Append(v.Bool)
			return nil
		}
	case *array.Int8Builder:
		if v.Kind == KindInt8 {
			if v.Int < math.MinInt8 || v.Int > math.MaxInt8 {
				return overflowError(v.Int, "int8")
			}
			bld.Append(int8(v.Int))
			return nil
		}
	case *array.Int16Builder:
		if v.Kind == KindInt16 {
			if v.Int < math.MinInt16 || v.Int > math.MaxInt16 {
				return overflowError(v.Int, "int16")
			}
			bld.Append(int16(v.Int))
			return nil
		}
	case *array.Int32Builder:
		if v.Kind == KindInt32 {
			if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
				return overflowError(v.Int, "int32")
			}
			bld.Append(int32(v.Int))
			return nil
		}
	case *array.Int64Builder:
		if v.Kind == KindInt64 {
			bld.Append(v.Int)
			return nil
		}
	case *array.Uint8Builder:
		if v.Kind == KindUint8 {
			if v.Uint > math.MaxUint8 {
				return overflowError(v.Uint, "uint8")
			}
			bld.Append(uint8(v.Uint))
			return nil
		}
	case *array.Uint16Builder:
		if v.Kind == KindUint16 {
			if v.Uint > math.MaxUint16 {
				return overflowError(v.Uint, "uint16")
			}
			bld.Append(uint16(v.Uint))
			return nil
		}
	case *array.Uint32Builder:
		if v.Kind == KindUint32 {
			if v.Uint > math.MaxUint32 {
				return overflowError(v.Uint, "uint32")
			}
			bld.Append(uint32(v.Uint))
			return nil
		}
	case *array.Uint64Builder:
		if v.Kind == KindUint64 {
			bld.Append(v.Uint)
			return nil
		}
	case *array.Float32Builder:
		if v.Kind == KindFloat32 {
			bld.Append(float32(v.Float))
			return nil
		}
	case *array.Float64Builder:
		if v.Kind == KindFloat64 {
			bld.Append(v.Float)
			return nil
		}
	case *array.StringBuilder:
		if v.Kind == KindString {
			bld.Append(v.Str)
			return nil
		}
	default:
		return NewError(ErrUnsupportedType, "append_scalar",
			fmt.Errorf("no builder branch for %T", b))
	}

	return NewError(ErrSchemaMismatch, "append_scalar",
		fmt.Errorf("cannot append %s scalar to %T", v.Kind, b))
}

func overflowError[T int64 | uint64](v T, typeName string) error {
	return Errorf(ErrSchemaMismatch, "append_scalar",
		"value %d overflows %s", v, typeName)
}

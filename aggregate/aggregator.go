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

// aggregator.go - accumulator framework for the aggregate operator
package aggregate

import (
	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/core"
)

// Kind identifies an aggregate function. The set is closed; construction of
// an accumulator for an unhandled kind returns an unsupported-function
// error, never a panic.
type Kind int

const (
	Min Kind = iota
	Max
	Sum
	Count
)

// String returns the SQL name of the aggregate function.
func (k Kind) String() string {
	switch k {
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Sum:
		return "SUM"
	case Count:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// Accumulator holds the running state for one aggregate expression within
// one group. It consumes one scalar at a time; accumulation is commutative
// and associative, so input order never affects the final result.
type Accumulator interface {
	// Accumulate folds one value into the running state. Null values are
	// ignored, except that COUNT counts non-null values only.
	Accumulate(v core.ScalarValue) error
	// Result returns the current running result. ok is false while no
	// value has been accumulated yet (the result materializes as null).
	Result() (value core.ScalarValue, ok bool)
	// DataType returns the declared output type of the accumulator.
	DataType() arrow.DataType
}

// NewAccumulator constructs a fresh accumulator for the given function kind
// and declared output type. MIN and MAX support integer, unsigned, floating
// point, and utf8 types; SUM supports the numeric types; COUNT supports any
// input and always declares int64 output.
func NewAccumulator(kind Kind, dtype arrow.DataType) (Accumulator, error) {
	switch kind {
	case Min, Max:
		if !orderableType(dtype) {
			return nil, core.Errorf(core.ErrUnsupportedFunction, "new_accumulator",
				"%s not supported for type %s", kind, dtype)
		}
		return &minMaxAccumulator{kind: kind, dtype: dtype}, nil
	case Sum:
		if !numericType(dtype) {
			return nil, core.Errorf(core.ErrUnsupportedFunction, "new_accumulator",
				"SUM not supported for type %s", dtype)
		}
		return &sumAccumulator{dtype: dtype}, nil
	case Count:
		return &countAccumulator{}, nil
	default:
		return nil, core.Errorf(core.ErrUnsupportedFunction, "new_accumulator",
			"unsupported aggregate function %s", kind)
	}
}

// minMaxAccumulator tracks the least (kind == Min) or greatest value seen.
type minMaxAccumulator struct {
	kind  Kind
	dtype arrow.DataType
	value core.ScalarValue
	set   bool
}

func (m *minMaxAccumulator) Accumulate(v core.ScalarValue) error {
	if v.IsNull() {
		return nil
	}
	if !m.set {
		m.value = v
		m.set = true
		return nil
	}
	cmp, err := core.CompareScalars(v, m.value)
	if err != nil {
		return err
	}
	if (m.kind == Min && cmp < 0) || (m.kind == Max && cmp > 0) {
		m.value = v
	}
	return nil
}

func (m *minMaxAccumulator) Result() (core.ScalarValue, bool) {
	return m.value, m.set
}

func (m *minMaxAccumulator) DataType() arrow.DataType { return m.dtype }

// sumAccumulator adds values within the declared type's family. The running
// total is held in the widest member of the family and reported with the
// declared kind.
type sumAccumulator struct {
	dtype arrow.DataType
	value core.ScalarValue
	set   bool
}

func (s *sumAccumulator) Accumulate(v core.ScalarValue) error {
	if v.IsNull() {
		return nil
	}
	if !s.set {
		s.value = v
		s.set = true
		return nil
	}
	sum, err := addScalars(s.value, v)
	if err != nil {
		return err
	}
	s.value = sum
	return nil
}

func (s *sumAccumulator) Result() (core.ScalarValue, bool) {
	return s.value, s.set
}

func (s *sumAccumulator) DataType() arrow.DataType { return s.dtype }

// countAccumulator counts non-null values.
type countAccumulator struct {
	count int64
}

func (c *countAccumulator) Accumulate(v core.ScalarValue) error {
	if !v.IsNull() {
		c.count++
	}
	return nil
}

// Result always reports ok: the count of an empty input is 0, not null.
func (c *countAccumulator) Result() (core.ScalarValue, bool) {
	return core.Int64Scalar(c.count), true
}

func (c *countAccumulator) DataType() arrow.DataType { return arrow.PrimitiveTypes.Int64 }

// addScalars adds two scalars of identical kind within their family.
func addScalars(a, b core.ScalarValue) (core.ScalarValue, error) {
	if a.Kind != b.Kind {
		return core.NullScalar(), core.Errorf(core.ErrSchemaMismatch, "add",
			"cannot add %s with %s", a.Kind, b.Kind)
	}
	switch a.Kind {
	case core.KindInt8, core.KindInt16, core.KindInt32, core.KindInt64:
		return core.ScalarValue{Kind: a.Kind, Int: a.Int + b.Int}, nil
	case core.KindUint8, core.KindUint16, core.KindUint32, core.KindUint64:
		return core.ScalarValue{Kind: a.Kind, Uint: a.Uint + b.Uint}, nil
	case core.KindFloat32, core.KindFloat64:
		return core.ScalarValue{Kind: a.Kind, Float: a.Float + b.Float}, nil
	default:
		return core.NullScalar(), core.Errorf(core.ErrUnsupportedType, "add",
			"type %s has no addition", a.Kind)
	}
}

// orderableType reports whether MIN/MAX are defined for the type.
func orderableType(dtype arrow.DataType) bool {
	switch dtype.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.STRING:
		return true
	default:
		return false
	}
}

// numericType reports whether SUM is defined for the type.
func numericType(dtype arrow.DataType) bool {
	switch dtype.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}

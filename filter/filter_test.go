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

package filter

import (
	"context"
	"io"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goquery/core"
	"github.com/aaronlmathis/goquery/datasource"
	"github.com/aaronlmathis/goquery/expr"
)

func valuesSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
}

func valuesBatch(t *testing.T, values []int64, valid []bool) arrow.Record {
	t.Helper()

	b := array.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues(values, valid)
	arr := b.NewArray()
	defer arr.Release()
	return array.NewRecord(valuesSchema(), []arrow.Array{arr}, int64(len(values)))
}

func TestFilter_GreaterThan(t *testing.T) {
	schema := valuesSchema()
	batch := valuesBatch(t, []int64{5, -3, 12, 7, 1}, nil)
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, GreaterThan(v, core.Int64Scalar(4)))
	require.NoError(t, err)
	assert.True(t, rel.Schema().Equal(schema))

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	vals := out.Column(0).(*array.Int64)
	require.EqualValues(t, 3, out.NumRows())
	assert.EqualValues(t, 5, vals.Value(0))
	assert.EqualValues(t, 12, vals.Value(1))
	assert.EqualValues(t, 7, vals.Value(2))

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestFilter_NullComparisonDropsRow(t *testing.T) {
	schema := valuesSchema()
	batch := valuesBatch(t, []int64{10, 0, 20}, []bool{true, false, true})
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, GreaterThan(v, core.Int64Scalar(5)))
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	// The null row compares to null, which does not select.
	require.EqualValues(t, 2, out.NumRows())
	vals := out.Column(0).(*array.Int64)
	assert.EqualValues(t, 10, vals.Value(0))
	assert.EqualValues(t, 20, vals.Value(1))
}

func TestFilter_NotNull(t *testing.T) {
	schema := valuesSchema()
	batch := valuesBatch(t, []int64{1, 0, 3}, []bool{true, false, true})
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, NotNull(v))
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	require.EqualValues(t, 2, out.NumRows())
}

func TestFilter_Equals(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues([]string{"x", "y", "x"}, nil)
	arr := b.NewArray()
	defer arr.Release()
	batch := array.NewRecord(schema, []arrow.Array{arr}, 3)
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	s, err := expr.ColumnByName(schema, "s")
	require.NoError(t, err)

	rel, err := NewRelation(source, Equals(s, core.StringScalar("x")))
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()
	assert.EqualValues(t, 2, out.NumRows())
}

func TestFilter_EmptyResultIsStillABatch(t *testing.T) {
	schema := valuesSchema()
	batch := valuesBatch(t, []int64{1, 2, 3}, nil)
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, GreaterThan(v, core.Int64Scalar(100)))
	require.NoError(t, err)

	// Nothing matches but the input produced a batch, so the filter
	// produces one too, with zero rows.
	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()
	assert.EqualValues(t, 0, out.NumRows())

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestNewRelation_RejectsNonBooleanPredicate(t *testing.T) {
	schema := valuesSchema()
	source, err := datasource.NewMemorySource(schema)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	_, err = NewRelation(source, v)
	assert.True(t, core.IsKind(err, core.ErrSchemaMismatch))
}

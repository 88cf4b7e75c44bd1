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

package aggregate

import (
	"context"
	"io"
	"os"
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

// makeBatch builds a record from rows of scalar values.
func makeBatch(t *testing.T, schema *arrow.Schema, rows [][]core.ScalarValue) arrow.Record {
	t.Helper()

	mem := memory.NewGoAllocator()
	builders := make([]array.Builder, len(schema.Fields()))
	for i, fld := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, fld.Type)
	}
	for _, row := range rows {
		require.Len(t, row, len(builders))
		for i, v := range row {
			require.NoError(t, core.AppendScalar(builders[i], v))
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
		b.Release()
	}
	batch := array.NewRecord(schema, cols, int64(len(rows)))
	for _, col := range cols {
		col.Release()
	}
	return batch
}

func citiesSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "city", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "lng", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
}

func loadCities(t *testing.T, chunkSize int) *datasource.CSVSource {
	t.Helper()

	f, err := os.Open("testdata/uk_cities.csv")
	require.NoError(t, err)

	source, err := datasource.NewCSVSource(f, citiesSchema(),
		datasource.WithCSVChunkSize(chunkSize),
		datasource.WithCSVHasHeaders(true),
	)
	require.NoError(t, err)
	return source
}

func TestAggregate_MinMaxLatitude(t *testing.T) {
	schema := citiesSchema()
	// Small chunk size forces several input batches; the result must
	// still cover all of them.
	source := loadCities(t, 5)
	defer source.Close()

	lat, err := expr.ColumnByName(schema, "lat")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{
		{Kind: Min, Arg: lat, Name: "min_lat"},
		{Kind: Max, Arg: lat, Name: "max_lat"},
	})
	require.NoError(t, err)

	batch, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	require.EqualValues(t, 1, batch.NumRows())
	require.EqualValues(t, 2, batch.NumCols())

	minLat := batch.Column(0).(*array.Float64)
	maxLat := batch.Column(1).(*array.Float64)
	assert.Equal(t, 50.376289, minLat.Value(0))
	assert.Equal(t, 57.477772, maxLat.Value(0))

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestAggregate_CountRows(t *testing.T) {
	schema := citiesSchema()
	source := loadCities(t, 1024)
	defer source.Close()

	city, err := expr.ColumnByName(schema, "city")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{
		{Kind: Count, Arg: city},
	})
	require.NoError(t, err)
	assert.Equal(t, "count(city)", rel.Schema().Field(0).Name)

	batch, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	count := batch.Column(0).(*array.Int64)
	assert.EqualValues(t, 21, count.Value(0))
}

func TestAggregate_GroupedSum(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "region", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "sales", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	// Keys recur across batch boundaries; partials must merge.
	first := makeBatch(t, schema, [][]core.ScalarValue{
		{core.StringScalar("north"), core.Int64Scalar(10)},
		{core.StringScalar("south"), core.Int64Scalar(20)},
		{core.StringScalar("north"), core.Int64Scalar(5)},
	})
	defer first.Release()
	second := makeBatch(t, schema, [][]core.ScalarValue{
		{core.StringScalar("south"), core.Int64Scalar(1)},
		{core.StringScalar("east"), core.Int64Scalar(7)},
		{core.StringScalar("north"), core.Int64Scalar(100)},
	})
	defer second.Release()

	source, err := datasource.NewMemorySource(schema, first, second)
	require.NoError(t, err)
	defer source.Close()

	region, err := expr.ColumnByName(schema, "region")
	require.NoError(t, err)
	sales, err := expr.ColumnByName(schema, "sales")
	require.NoError(t, err)

	rel, err := NewRelation(source, []core.Evaluator{region}, []Expr{
		{Kind: Sum, Arg: sales, Name: "total"},
	})
	require.NoError(t, err)

	batch, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	require.EqualValues(t, 3, batch.NumRows())

	keys := batch.Column(0).(*array.String)
	totals := batch.Column(1).(*array.Int64)

	// Groups come out in first-seen order.
	assert.Equal(t, "north", keys.Value(0))
	assert.EqualValues(t, 115, totals.Value(0))
	assert.Equal(t, "south", keys.Value(1))
	assert.EqualValues(t, 21, totals.Value(1))
	assert.Equal(t, "east", keys.Value(2))
	assert.EqualValues(t, 7, totals.Value(2))

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestAggregate_GroupedSumIntegerKey(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "label", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "value", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	// Integer keys recur across batch boundaries; each must land in
	// exactly one output row.
	first := makeBatch(t, schema, [][]core.ScalarValue{
		{core.Int32Scalar(1), core.Int64Scalar(4)},
		{core.Int32Scalar(2), core.Int64Scalar(6)},
		{core.Int32Scalar(1), core.Int64Scalar(5)},
		{core.Int32Scalar(3), core.Int64Scalar(7)},
	})
	defer first.Release()
	second := makeBatch(t, schema, [][]core.ScalarValue{
		{core.Int32Scalar(2), core.Int64Scalar(15)},
		{core.Int32Scalar(1), core.Int64Scalar(6)},
	})
	defer second.Release()

	source, err := datasource.NewMemorySource(schema, first, second)
	require.NoError(t, err)
	defer source.Close()

	label, err := expr.ColumnByName(schema, "label")
	require.NoError(t, err)
	value, err := expr.ColumnByName(schema, "value")
	require.NoError(t, err)

	rel, err := NewRelation(source, []core.Evaluator{label}, []Expr{
		{Kind: Sum, Arg: value, Name: "total"},
	})
	require.NoError(t, err)

	batch, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	require.EqualValues(t, 3, batch.NumRows())

	keys := batch.Column(0).(*array.Int32)
	totals := batch.Column(1).(*array.Int64)

	assert.EqualValues(t, 1, keys.Value(0))
	assert.EqualValues(t, 15, totals.Value(0))
	assert.EqualValues(t, 2, keys.Value(1))
	assert.EqualValues(t, 21, totals.Value(1))
	assert.EqualValues(t, 3, keys.Value(2))
	assert.EqualValues(t, 7, totals.Value(2))

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestAggregate_SumOverflowNarrowColumn(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
	}, nil)

	// The running total fits int64 but not the column's own int8, so
	// materialization must fail rather than wrap.
	batch := makeBatch(t, schema, [][]core.ScalarValue{
		{core.Int8Scalar(100)},
		{core.Int8Scalar(100)},
	})
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{
		{Kind: Sum, Arg: v, Name: "total"},
	})
	require.NoError(t, err)

	_, err = rel.Next(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.ErrSchemaMismatch))
}

func TestAggregate_NullHandling(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	batch := makeBatch(t, schema, [][]core.ScalarValue{
		{core.Float64Scalar(3.5)},
		{core.NullScalar()},
		{core.Float64Scalar(-1.25)},
		{core.NullScalar()},
	})
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{
		{Kind: Min, Arg: v, Name: "min_v"},
		{Kind: Max, Arg: v, Name: "max_v"},
		{Kind: Sum, Arg: v, Name: "sum_v"},
		{Kind: Count, Arg: v, Name: "n"},
	})
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, -1.25, out.Column(0).(*array.Float64).Value(0))
	assert.Equal(t, 3.5, out.Column(1).(*array.Float64).Value(0))
	assert.Equal(t, 2.25, out.Column(2).(*array.Float64).Value(0))
	assert.EqualValues(t, 2, out.Column(3).(*array.Int64).Value(0))
}

func TestAggregate_EmptyInput(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	source, err := datasource.NewMemorySource(schema)
	require.NoError(t, err)
	defer source.Close()

	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{
		{Kind: Count, Arg: v, Name: "n"},
		{Kind: Min, Arg: v, Name: "min_v"},
	})
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	// COUNT of nothing is zero; MIN of nothing is null.
	require.EqualValues(t, 1, out.NumRows())
	assert.EqualValues(t, 0, out.Column(0).(*array.Int64).Value(0))
	assert.True(t, out.Column(1).IsNull(0))
}

func TestAggregate_EmptyInputGrouped(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	source, err := datasource.NewMemorySource(schema)
	require.NoError(t, err)
	defer source.Close()

	k, err := expr.ColumnByName(schema, "k")
	require.NoError(t, err)
	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, []core.Evaluator{k}, []Expr{
		{Kind: Sum, Arg: v},
	})
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	// No input rows means no groups.
	assert.EqualValues(t, 0, out.NumRows())

	_, err = rel.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestAggregate_NullGroupKey(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	batch := makeBatch(t, schema, [][]core.ScalarValue{
		{core.StringScalar("a"), core.Int64Scalar(1)},
		{core.NullScalar(), core.Int64Scalar(2)},
		{core.NullScalar(), core.Int64Scalar(3)},
	})
	defer batch.Release()

	source, err := datasource.NewMemorySource(schema, batch)
	require.NoError(t, err)
	defer source.Close()

	k, err := expr.ColumnByName(schema, "k")
	require.NoError(t, err)
	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	rel, err := NewRelation(source, []core.Evaluator{k}, []Expr{
		{Kind: Sum, Arg: v, Name: "total"},
	})
	require.NoError(t, err)

	out, err := rel.Next(context.Background())
	require.NoError(t, err)
	defer out.Release()

	// Null keys collapse into a single group of their own.
	require.EqualValues(t, 2, out.NumRows())
	keys := out.Column(0).(*array.String)
	totals := out.Column(1).(*array.Int64)
	assert.Equal(t, "a", keys.Value(0))
	assert.EqualValues(t, 1, totals.Value(0))
	assert.True(t, keys.IsNull(1))
	assert.EqualValues(t, 5, totals.Value(1))
}

func TestNewRelation_Validation(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	source, err := datasource.NewMemorySource(schema)
	require.NoError(t, err)
	defer source.Close()

	s, err := expr.ColumnByName(schema, "s")
	require.NoError(t, err)
	v, err := expr.ColumnByName(schema, "v")
	require.NoError(t, err)

	// No aggregate expressions at all.
	_, err = NewRelation(source, nil, nil)
	assert.Error(t, err)

	// SUM over a string column.
	_, err = NewRelation(source, nil, []Expr{{Kind: Sum, Arg: s}})
	assert.True(t, core.IsKind(err, core.ErrUnsupportedFunction))

	// Declared output type disagrees with the argument type.
	_, err = NewRelation(source, nil, []Expr{
		{Kind: Min, Arg: v, Type: arrow.PrimitiveTypes.Int64},
	})
	assert.True(t, core.IsKind(err, core.ErrSchemaMismatch))
}

func TestAccumulator_OrderInsensitive(t *testing.T) {
	values := []core.ScalarValue{
		core.Int64Scalar(4),
		core.Int64Scalar(-2),
		core.NullScalar(),
		core.Int64Scalar(9),
		core.Int64Scalar(0),
	}
	perms := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	for _, kind := range []Kind{Min, Max, Sum, Count} {
		var want core.ScalarValue
		for i, perm := range perms {
			acc, err := NewAccumulator(kind, arrow.PrimitiveTypes.Int64)
			require.NoError(t, err)
			for _, idx := range perm {
				require.NoError(t, acc.Accumulate(values[idx]))
			}
			got, ok := acc.Result()
			require.True(t, ok)
			if i == 0 {
				want = got
			} else {
				assert.Equal(t, want, got, "kind %s perm %v", kind, perm)
			}
		}
	}
}

func TestAccumulator_MinString(t *testing.T) {
	acc, err := NewAccumulator(Min, arrow.BinaryTypes.String)
	require.NoError(t, err)

	for _, s := range []string{"pear", "apple", "quince"} {
		require.NoError(t, acc.Accumulate(core.StringScalar(s)))
	}
	got, ok := acc.Result()
	require.True(t, ok)
	assert.Equal(t, "apple", got.Str)
}

func TestAggregate_ContextCancelled(t *testing.T) {
	schema := citiesSchema()
	source := loadCities(t, 5)
	defer source.Close()

	lat, err := expr.ColumnByName(schema, "lat")
	require.NoError(t, err)

	rel, err := NewRelation(source, nil, []Expr{{Kind: Min, Arg: lat}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = rel.Next(ctx)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

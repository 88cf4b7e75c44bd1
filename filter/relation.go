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

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/aaronlmathis/goquery/core"
)

// Relation is the filter operator: on every pull it evaluates a boolean
// predicate over the input batch and emits a batch containing only the
// selected rows. A zero-row batch is still a batch; exhaustion comes from
// the input. The output schema is the input schema, unchanged.
type Relation struct {
	input core.Relation
	pred  core.Evaluator
	mem   memory.Allocator
}

// NewRelation constructs the filter operator. The predicate must declare a
// boolean output type.
func NewRelation(input core.Relation, pred core.Evaluator) (*Relation, error) {
	if pred.DataType().ID() != arrow.BOOL {
		return nil, core.Errorf(core.ErrSchemaMismatch, "new_relation",
			"filter predicate %q declares %s, want bool", pred.Name(), pred.DataType())
	}
	return &Relation{input: input, pred: pred, mem: memory.NewGoAllocator()}, nil
}

// Schema implements core.Relation.
func (r *Relation) Schema() *arrow.Schema { return r.input.Schema() }

// Next implements core.Relation.
func (r *Relation) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	batch, err := r.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	predCol, err := r.pred.Evaluate(batch)
	if err != nil {
		return nil, err
	}
	defer predCol.Release()

	mask, ok := predCol.(*array.Boolean)
	if !ok {
		return nil, core.Errorf(core.ErrSchemaMismatch, "filter",
			"predicate %q evaluated to %s, want bool", r.pred.Name(), predCol.DataType())
	}

	selected := make([]int, 0, mask.Len())
	for i := 0; i < mask.Len(); i++ {
		if !mask.IsNull(i) && mask.Value(i) {
			selected = append(selected, i)
		}
	}

	return r.take(batch, selected)
}

// take copies the selected rows of every column into a fresh batch.
func (r *Relation) take(batch arrow.Record, rows []int) (arrow.Record, error) {
	schema := r.input.Schema()
	cols := make([]arrow.Array, batch.NumCols())
	defer func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}()

	for i := 0; i < int(batch.NumCols()); i++ {
		b := array.NewBuilder(r.mem, schema.Field(i).Type)
		for _, row := range rows {
			v, err := core.ScalarAt(batch.Column(i), row)
			if err != nil {
				b.Release()
				return nil, err
			}
			if err := core.AppendScalar(b, v); err != nil {
				b.Release()
				return nil, err
			}
		}
		cols[i] = b.NewArray()
		b.Release()
	}

	return array.NewRecord(schema, cols, int64(len(rows))), nil
}

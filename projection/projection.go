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

// Package projection implements the projection operator: stateless
// per-batch column remapping driven by a list of column evaluators.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"

	"github.com/aaronlmathis/goquery/core"
)

// Relation is the projection operator. On every pull it evaluates each
// configured evaluator against the input batch, in declaration order, and
// assembles the resulting columns into a fresh batch. It keeps no state
// across calls.
type Relation struct {
	schema *arrow.Schema
	input  core.Relation
	exprs  []core.Evaluator
}

// NewRelation constructs the projection operator. The output schema is
// built from each evaluator's declared name and type, nullable by default.
func NewRelation(input core.Relation, exprs []core.Evaluator) (*Relation, error) {
	if len(exprs) == 0 {
		return nil, core.Errorf(core.ErrEvaluation, "new_relation",
			"projection requires at least one expression")
	}
	fields := make([]arrow.Field, len(exprs))
	for i, e := range exprs {
		fields[i] = arrow.Field{Name: e.Name(), Type: e.DataType(), Nullable: true}
	}
	return &Relation{
		schema: arrow.NewSchema(fields, nil),
		input:  input,
		exprs:  exprs,
	}, nil
}

// Schema implements core.Relation.
func (r *Relation) Schema() *arrow.Schema { return r.schema }

// Next implements core.Relation. Any single evaluator failure aborts the
// whole call with that error.
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

	cols := make([]arrow.Array, len(r.exprs))
	defer func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}()

	for i, e := range r.exprs {
		col, err := e.Evaluate(batch)
		if err != nil {
			var ee *core.ExecutionError
			if errors.As(err, &ee) {
				return nil, err
			}
			return nil, core.NewError(core.ErrEvaluation, "project",
				fmt.Errorf("failed to evaluate projection %q: %w", e.Name(), err))
		}
		cols[i] = col
		if !arrow.TypeEqual(col.DataType(), e.DataType()) {
			return nil, core.Errorf(core.ErrSchemaMismatch, "project",
				"projection %q evaluated to %s, declared %s", e.Name(), col.DataType(), e.DataType())
		}
	}

	return array.NewRecord(r.schema, cols, batch.NumRows()), nil
}

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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/aaronlmathis/goquery/core"
)

// Package aggregate implements the aggregate operator: grouped and
// grouping-free aggregation over Arrow record batches.
//
// The operator drains its input to exhaustion and yields exactly one output
// batch covering the entire input, for both the grouped and the
// grouping-free path. Grouping state is held entirely in memory for the
// duration of one aggregation pass and grows with the number of distinct
// group keys; there is no spill to external storage. That is a documented
// design limit of this execution layer, not a bug.

// Expr describes one aggregate expression: the function kind, the argument
// evaluator, and the declared output column name and type.
type Expr struct {
	Kind Kind
	Arg  core.Evaluator
	Name string         // output column name; defaults to kind(arg)
	Type arrow.DataType // declared output type; defaults from Kind and Arg
}

// withDefaults fills in the derivable fields.
func (e Expr) withDefaults() Expr {
	if e.Type == nil {
		if e.Kind == Count {
			e.Type = arrow.PrimitiveTypes.Int64
		} else {
			e.Type = e.Arg.DataType()
		}
	}
	if e.Name == "" {
		e.Name = strings.ToLower(e.Kind.String()) + "(" + e.Arg.Name() + ")"
	}
	return e
}

// Relation is the aggregate operator. Configuration is immutable after
// construction; the operator exclusively owns the right to pull from its
// input for the lifetime of the pipeline.
type Relation struct {
	schema    *arrow.Schema
	input     core.Relation
	groupExpr []core.Evaluator
	aggrExpr  []Expr
	mem       memory.Allocator
	done      bool
}

// Option configures the aggregate relation.
type Option func(*Relation)

// WithAllocator sets the memory allocator used for output materialization.
func WithAllocator(mem memory.Allocator) Option {
	return func(r *Relation) { r.mem = mem }
}

// NewRelation constructs the aggregate operator over the given input.
// groupExpr may be empty for grouping-free aggregation; aggrExpr must not
// be. The output schema is the group-by columns in declaration order
// followed by the aggregate columns in declaration order.
//
// Unsupported function/type pairings and declared-type mismatches are
// rejected here rather than on the first Next call.
func NewRelation(input core.Relation, groupExpr []core.Evaluator, aggrExpr []Expr, options ...Option) (*Relation, error) {
	if len(aggrExpr) == 0 {
		return nil, core.Errorf(core.ErrUnsupportedFunction, "new_relation",
			"aggregate relation requires at least one aggregate expression")
	}

	exprs := make([]Expr, len(aggrExpr))
	for i, e := range aggrExpr {
		exprs[i] = e.withDefaults()
		// Probe construction so config errors surface now.
		if _, err := NewAccumulator(exprs[i].Kind, exprs[i].Type); err != nil {
			return nil, err
		}
		if exprs[i].Kind != Count && !arrow.TypeEqual(exprs[i].Type, exprs[i].Arg.DataType()) {
			return nil, core.Errorf(core.ErrSchemaMismatch, "new_relation",
				"%s declared type %s does not match argument type %s",
				exprs[i].Kind, exprs[i].Type, exprs[i].Arg.DataType())
		}
	}

	fields := make([]arrow.Field, 0, len(groupExpr)+len(exprs))
	for _, g := range groupExpr {
		fields = append(fields, arrow.Field{Name: g.Name(), Type: g.DataType(), Nullable: true})
	}
	for _, e := range exprs {
		fields = append(fields, arrow.Field{Name: e.Name, Type: e.Type, Nullable: true})
	}

	r := &Relation{
		schema:    arrow.NewSchema(fields, nil),
		input:     input,
		groupExpr: groupExpr,
		aggrExpr:  exprs,
		mem:       memory.NewGoAllocator(),
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Schema implements core.Relation.
func (r *Relation) Schema() *arrow.Schema { return r.schema }

// Next implements core.Relation. It pulls the input to exhaustion,
// accumulates, and yields the single result batch; every later call
// returns io.EOF. On error, partial aggregation state is discarded and the
// relation becomes terminal.
func (r *Relation) Next(ctx context.Context) (arrow.Record, error) {
	if r.done {
		return nil, io.EOF
	}
	r.done = true

	var rec arrow.Record
	var err error
	if len(r.groupExpr) == 0 {
		rec, err = r.aggregateAll(ctx)
	} else {
		rec, err = r.aggregateGroups(ctx)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// aggregateAll is the grouping-free path: whole-array reductions per batch,
// merged across batches into one running scalar per aggregate expression.
func (r *Relation) aggregateAll(ctx context.Context) (arrow.Record, error) {
	partials := make([]core.ScalarValue, len(r.aggrExpr))
	has := make([]bool, len(r.aggrExpr))
	for j, expr := range r.aggrExpr {
		// COUNT of an empty input is 0, not null.
		if expr.Kind == Count {
			partials[j] = core.Int64Scalar(0)
			has[j] = true
		}
	}

	for {
		batch, err := r.pull(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if err := r.reduceBatch(batch, partials, has); err != nil {
			batch.Release()
			return nil, err
		}
		batch.Release()
	}

	return r.materializeRow(partials, has)
}

// reduceBatch folds one batch into the running partials.
func (r *Relation) reduceBatch(batch arrow.Record, partials []core.ScalarValue, has []bool) error {
	for j, expr := range r.aggrExpr {
		col, err := expr.Arg.Evaluate(batch)
		if err != nil {
			return evaluationError("aggregate_arg", err)
		}
		if expr.Kind != Count && !arrow.TypeEqual(col.DataType(), expr.Type) {
			col.Release()
			return core.Errorf(core.ErrSchemaMismatch, "aggregate_arg",
				"argument of %s evaluated to %s, declared %s", expr.Kind, col.DataType(), expr.Type)
		}

		v, ok, err := reduceColumn(expr.Kind, col)
		col.Release()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !has[j] {
			partials[j] = v
			has[j] = true
			continue
		}
		merged, err := mergePartial(expr.Kind, partials[j], v)
		if err != nil {
			return err
		}
		partials[j] = merged
	}
	return nil
}

// mergePartial combines two per-batch reduction results for the same
// aggregate expression. MIN/MAX keep the better value; SUM and COUNT add.
func mergePartial(kind Kind, acc, v core.ScalarValue) (core.ScalarValue, error) {
	switch kind {
	case Min, Max:
		cmp, err := core.CompareScalars(v, acc)
		if err != nil {
			return core.NullScalar(), err
		}
		if (kind == Min && cmp < 0) || (kind == Max && cmp > 0) {
			return v, nil
		}
		return acc, nil
	case Sum, Count:
		return addScalars(acc, v)
	default:
		return core.NullScalar(), core.Errorf(core.ErrUnsupportedFunction,
			"merge", "unsupported aggregate function %s", kind)
	}
}

// materializeRow boxes the final scalars into a one-row batch, one column
// per aggregate expression in declaration order.
func (r *Relation) materializeRow(partials []core.ScalarValue, has []bool) (arrow.Record, error) {
	cols := make([]arrow.Array, len(r.aggrExpr))
	defer func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}()

	for j, expr := range r.aggrExpr {
		b := array.NewBuilder(r.mem, expr.Type)
		if has[j] {
			if err := core.AppendScalar(b, partials[j]); err != nil {
				b.Release()
				return nil, err
			}
		} else {
			b.AppendNull()
		}
		cols[j] = b.NewArray()
		b.Release()
	}

	return array.NewRecord(r.schema, cols, 1), nil
}

// aggregateGroups is the grouped path: per-row hash grouping across all
// input batches, then one output row per distinct group key in first-seen
// order.
func (r *Relation) aggregateGroups(ctx context.Context) (arrow.Record, error) {
	m := newGroupingMap()

	for {
		batch, err := r.pull(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if err := r.accumulateBatch(batch, m); err != nil {
			batch.Release()
			return nil, err
		}
		batch.Release()
	}

	return r.materializeGroups(m)
}

// accumulateBatch evaluates the group-by and argument columns once per
// batch, then walks the rows updating each row's group entry.
func (r *Relation) accumulateBatch(batch arrow.Record, m *groupingMap) error {
	groupCols := make([]arrow.Array, len(r.groupExpr))
	defer releaseAll(groupCols)
	for i, g := range r.groupExpr {
		col, err := g.Evaluate(batch)
		if err != nil {
			return evaluationError("group_key", err)
		}
		groupCols[i] = col
		if !arrow.TypeEqual(col.DataType(), g.DataType()) {
			return core.Errorf(core.ErrSchemaMismatch, "group_key",
				"group expression %q evaluated to %s, declared %s", g.Name(), col.DataType(), g.DataType())
		}
	}

	argCols := make([]arrow.Array, len(r.aggrExpr))
	defer releaseAll(argCols)
	for j, expr := range r.aggrExpr {
		col, err := expr.Arg.Evaluate(batch)
		if err != nil {
			return evaluationError("aggregate_arg", err)
		}
		argCols[j] = col
		if expr.Kind != Count && !arrow.TypeEqual(col.DataType(), expr.Type) {
			return core.Errorf(core.ErrSchemaMismatch, "aggregate_arg",
				"argument of %s evaluated to %s, declared %s", expr.Kind, col.DataType(), expr.Type)
		}
	}

	for row := 0; row < int(batch.NumRows()); row++ {
		key, err := buildGroupKey(groupCols, row)
		if err != nil {
			return err
		}
		entry, err := m.lookupOrCreate(key, r.aggrExpr)
		if err != nil {
			return err
		}
		for j := range r.aggrExpr {
			v, err := core.ScalarAt(argCols[j], row)
			if err != nil {
				return err
			}
			if err := entry.accumulate(j, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// materializeGroups assembles the output batch: group-by columns first, in
// declaration order, then aggregate result columns, one row per group entry
// in first-seen order.
func (r *Relation) materializeGroups(m *groupingMap) (arrow.Record, error) {
	numCols := len(r.groupExpr) + len(r.aggrExpr)
	builders := make([]array.Builder, numCols)
	for i, g := range r.groupExpr {
		builders[i] = array.NewBuilder(r.mem, g.DataType())
	}
	for j, expr := range r.aggrExpr {
		builders[len(r.groupExpr)+j] = array.NewBuilder(r.mem, expr.Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, entry := range m.order {
		for i, kv := range entry.key {
			if err := core.AppendScalar(builders[i], kv); err != nil {
				return nil, err
			}
		}
		for j, acc := range entry.accumulators {
			v, ok := acc.Result()
			if !ok {
				builders[len(r.groupExpr)+j].AppendNull()
				continue
			}
			if err := core.AppendScalar(builders[len(r.groupExpr)+j], v); err != nil {
				return nil, err
			}
		}
	}

	cols := make([]arrow.Array, numCols)
	defer releaseAll(cols)
	for i, b := range builders {
		cols[i] = b.NewArray()
	}

	return array.NewRecord(r.schema, cols, int64(m.len())), nil
}

// pull fetches the next input batch, honoring context cancellation.
func (r *Relation) pull(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return r.input.Next(ctx)
}

// evaluationError wraps evaluator failures, preserving already-classified
// execution errors verbatim.
func evaluationError(op string, err error) error {
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return core.NewError(core.ErrEvaluation, op, fmt.Errorf("failed to evaluate argument: %w", err))
}

func releaseAll(cols []arrow.Array) {
	for _, col := range cols {
		if col != nil {
			col.Release()
		}
	}
}

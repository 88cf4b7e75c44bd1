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

package goquery

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/aggregate"
	"github.com/aaronlmathis/goquery/core"
	"github.com/aaronlmathis/goquery/filter"
	"github.com/aaronlmathis/goquery/limit"
	"github.com/aaronlmathis/goquery/projection"
)

// Package goquery provides a columnar query engine for Go built on Apache
// Arrow record batches.
//
// Core Concepts:
//   - core.Relation: pull-based operator interface; Next yields record
//     batches until io.EOF.
//   - core.Source: a Relation over external data (memory, CSV, Parquet,
//     PostgreSQL, MongoDB, S3).
//   - core.Evaluator: a per-batch expression producing one column.
//   - Operators: projection, filter, aggregate (with and without group
//     keys), limit. Operators compose by wrapping each other's Relation.
//   - core.Sink: a destination for result batches (CSV, Parquet).
//
// The QueryBuilder API assembles operator trees fluently:
//
//	q, err := goquery.NewQuery().
//	    From(source).
//	    Filter(filter.GreaterThan(expr.ColumnByName(schema, "lat"), threshold)).
//	    Aggregate(nil, aggregate.Expr{Kind: aggregate.Max, Arg: latCol}).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	defer q.Close()
//	batches, err := q.Collect(context.Background())
//
// All operators stream batch-at-a-time; only the aggregate operator holds
// state proportional to its group count.

// buildStep wraps one operator constructor so configuration errors
// surface at Build time in chain order.
type buildStep func(core.Relation) (core.Relation, error)

// QueryBuilder provides a fluent API for constructing operator trees.
// Use NewQuery() to create a builder, then chain From, Filter, Select,
// Aggregate, and Limit before calling Build.
type QueryBuilder struct {
	source core.Source
	steps  []buildStep
}

// NewQuery creates a new QueryBuilder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{}
}

// From sets the data source for the query.
//
// Returns the builder for chaining.
func (qb *QueryBuilder) From(source core.Source) *QueryBuilder {
	qb.source = source
	return qb
}

// Filter keeps only rows for which pred evaluates to true. The predicate
// must declare a boolean type; null predicate values drop the row.
//
// Returns the builder for chaining.
func (qb *QueryBuilder) Filter(pred core.Evaluator) *QueryBuilder {
	qb.steps = append(qb.steps, func(input core.Relation) (core.Relation, error) {
		return filter.NewRelation(input, pred)
	})
	return qb
}

// Select projects each input batch through the given expressions. The
// output schema is derived from the expressions' names and types.
//
// Returns the builder for chaining.
func (qb *QueryBuilder) Select(exprs ...core.Evaluator) *QueryBuilder {
	qb.steps = append(qb.steps, func(input core.Relation) (core.Relation, error) {
		return projection.NewRelation(input, exprs)
	})
	return qb
}

// Aggregate reduces the input to one row per distinct combination of
// groupBy values, or to a single row when groupBy is empty. The input is
// drained to exhaustion before any result row is produced.
//
// Returns the builder for chaining.
func (qb *QueryBuilder) Aggregate(groupBy []core.Evaluator, aggs ...aggregate.Expr) *QueryBuilder {
	qb.steps = append(qb.steps, func(input core.Relation) (core.Relation, error) {
		return aggregate.NewRelation(input, groupBy, aggs)
	})
	return qb
}

// Limit caps the query output at n rows.
//
// Returns the builder for chaining.
func (qb *QueryBuilder) Limit(n int64) *QueryBuilder {
	qb.steps = append(qb.steps, func(input core.Relation) (core.Relation, error) {
		return limit.NewRelation(input, n)
	})
	return qb
}

// Build validates and constructs the Query from the builder. Operators
// are stacked in the order their builder methods were called.
func (qb *QueryBuilder) Build() (*Query, error) {
	if qb.source == nil {
		return nil, fmt.Errorf("query requires a data source")
	}

	var relation core.Relation = qb.source
	for _, step := range qb.steps {
		next, err := step(relation)
		if err != nil {
			return nil, err
		}
		relation = next
	}

	return &Query{source: qb.source, relation: relation}, nil
}

// Query is a built operator tree ready for execution. A Query is single
// use: once drained it keeps returning io.EOF.
type Query struct {
	source   core.Source
	relation core.Relation
}

// Relation exposes the root of the operator tree for manual iteration.
func (q *Query) Relation() core.Relation {
	return q.relation
}

// Schema returns the schema of the query's result batches.
func (q *Query) Schema() *arrow.Schema {
	return q.relation.Schema()
}

// Collect drains the query and returns every result batch. The caller
// owns the returned records and must Release them.
func (q *Query) Collect(ctx context.Context) ([]arrow.Record, error) {
	var batches []arrow.Record
	for {
		batch, err := q.relation.Next(ctx)
		if err == io.EOF {
			return batches, nil
		}
		if err != nil {
			for _, b := range batches {
				b.Release()
			}
			return nil, err
		}
		batches = append(batches, batch)
	}
}

// Run streams every result batch into sink, then flushes and closes both
// the sink and the query's source.
func (q *Query) Run(ctx context.Context, sink core.Sink) error {
	defer func() {
		q.source.Close()
		sink.Flush()
		sink.Close()
	}()

	for {
		batch, err := q.relation.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		writeErr := sink.Write(ctx, batch)
		batch.Release()
		if writeErr != nil {
			return writeErr
		}
	}
}

// Close releases the query's source.
func (q *Query) Close() error {
	return q.source.Close()
}

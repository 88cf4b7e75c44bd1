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
	"context"

	"github.com/apache/arrow/go/v12/arrow"
)

// Package core defines the core interfaces for the GoQuery library.
//
// GoQuery is a columnar query-execution library for Go built on Apache Arrow
// record batches, designed around a pull-based pipeline of relational
// operators with extensibility, type safety, and minimal dependencies.
//
// This file contains the primary interfaces for relations (operators and
// leaf data sources), column evaluators, and sinks.

// Relation is the pull-iteration contract every operator and data source
// implements. A pipeline is composed by handing one relation to the next as
// its input; the downstream consumer drives execution by pulling.
//
// Relations are single-reader: exactly one consumer may pull from a relation
// at a time, and no locking is performed internally.
type Relation interface {
	// Next returns the next record batch, or io.EOF when the relation is
	// exhausted. Once io.EOF has been returned, every subsequent call
	// returns io.EOF again. The first error encountered is returned
	// verbatim and the relation performs no retry.
	//
	// The returned record is retained for the caller; the caller must
	// Release it when done with it.
	Next(ctx context.Context) (arrow.Record, error)
	// Schema returns the fixed output column layout of this relation. It
	// may be called before, during, or after iteration.
	Schema() *arrow.Schema
}

// Source is a leaf relation backed by an external resource (file, object
// store, database cursor). Implementations stream record batches from the
// resource until it is exhausted.
type Source interface {
	Relation
	// Close releases any resources held by the data source.
	Close() error
}

// Evaluator computes one output column from a record batch. Evaluators are
// produced outside this library (expression compilation is an external
// collaborator); the operators only require that they are pure: no
// observable side effects, and deterministic for a given batch.
type Evaluator interface {
	// Evaluate materializes the column for the given batch. The returned
	// array is retained for the caller.
	Evaluate(batch arrow.Record) (arrow.Array, error)
	// Name returns the declared display name of the output column.
	Name() string
	// DataType returns the declared type of the output column.
	DataType() arrow.DataType
}

// EvaluatorFunc adapts an ordinary function plus declared metadata to the
// Evaluator interface.
type EvaluatorFunc struct {
	ColumnName string
	ColumnType arrow.DataType
	Fn         func(batch arrow.Record) (arrow.Array, error)
}

// Evaluate implements the Evaluator interface for EvaluatorFunc.
func (e *EvaluatorFunc) Evaluate(batch arrow.Record) (arrow.Array, error) {
	return e.Fn(batch)
}

// Name implements the Evaluator interface for EvaluatorFunc.
func (e *EvaluatorFunc) Name() string { return e.ColumnName }

// DataType implements the Evaluator interface for EvaluatorFunc.
func (e *EvaluatorFunc) DataType() arrow.DataType { return e.ColumnType }

// Sink consumes record batches produced by a relation and writes them to a
// destination (e.g., CSV, Parquet).
type Sink interface {
	// Write outputs a single record batch to the sink.
	Write(ctx context.Context, batch arrow.Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the sink.
	Close() error
}

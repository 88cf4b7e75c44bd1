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

// Package expr provides the column evaluators shipped with GoQuery.
//
// Expression compilation proper (building evaluators from a parsed SQL or
// logical plan) lives outside this library; operators accept any
// core.Evaluator. This package covers the hand-constructible case every
// pipeline needs: plain column references.
package expr

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/core"
)

// columnExpr selects one input column by index.
type columnExpr struct {
	index int
	name  string
	dtype arrow.DataType
}

// Column returns an evaluator that selects column index i of each batch.
// The evaluator's declared name and type are taken from the schema field.
func Column(schema *arrow.Schema, i int) (core.Evaluator, error) {
	if i < 0 || i >= len(schema.Fields()) {
		return nil, core.Errorf(core.ErrEvaluation, "column",
			"column index %d out of range for schema with %d fields", i, len(schema.Fields()))
	}
	field := schema.Field(i)
	return &columnExpr{index: i, name: field.Name, dtype: field.Type}, nil
}

// ColumnByName returns an evaluator that selects the named column.
func ColumnByName(schema *arrow.Schema, name string) (core.Evaluator, error) {
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return nil, core.Errorf(core.ErrEvaluation, "column",
			"column %q not found in schema", name)
	}
	return Column(schema, indices[0])
}

// Evaluate implements core.Evaluator.
func (c *columnExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	if c.index >= int(batch.NumCols()) {
		return nil, core.Errorf(core.ErrEvaluation, "column",
			"column index %d out of range for batch with %d columns", c.index, batch.NumCols())
	}
	col := batch.Column(c.index)
	if !arrow.TypeEqual(col.DataType(), c.dtype) {
		return nil, core.NewError(core.ErrSchemaMismatch, "column",
			fmt.Errorf("column %d is %s, declared %s", c.index, col.DataType(), c.dtype))
	}
	col.Retain()
	return col, nil
}

// Name implements core.Evaluator.
func (c *columnExpr) Name() string { return c.name }

// DataType implements core.Evaluator.
func (c *columnExpr) DataType() arrow.DataType { return c.dtype }

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

// Package datasource provides implementations of core.Source for streaming
// Arrow record batches from external resources: in-memory records, CSV,
// Parquet, PostgreSQL, MongoDB, and Amazon S3.
//
// Every source carries a fixed, declared schema; sources never infer one
// from the data mid-stream. Exhaustion is signalled with io.EOF, matching
// the pull-iteration contract of core.Relation.
package datasource

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
)

// newBuilders allocates one array builder per schema field.
func newBuilders(mem memory.Allocator, schema *arrow.Schema) []array.Builder {
	builders := make([]array.Builder, len(schema.Fields()))
	for i, field := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, field.Type)
	}
	return builders
}

// finishRecord drains the builders into a record batch of the given row
// count. The builders themselves stay owned by the caller.
func finishRecord(schema *arrow.Schema, builders []array.Builder, rows int64) arrow.Record {
	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
	}
	rec := array.NewRecord(schema, cols, rows)
	for _, col := range cols {
		col.Release()
	}
	return rec
}

func releaseBuilders(builders []array.Builder) {
	for _, b := range builders {
		b.Release()
	}
}

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

package datasource

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/core"
)

// MemorySource implements core.Source over a fixed slice of record batches.
// It is the embedding and testing workhorse: pipelines over already
// materialized data need no file or network at all.
type MemorySource struct {
	schema  *arrow.Schema
	batches []arrow.Record
	index   int
}

// NewMemorySource creates a source yielding the given batches in order.
// Each batch must match the schema; the source retains the batches until
// they are handed out or the source is closed.
func NewMemorySource(schema *arrow.Schema, batches ...arrow.Record) (*MemorySource, error) {
	for i, batch := range batches {
		if !batch.Schema().Equal(schema) {
			return nil, core.Errorf(core.ErrSchemaMismatch, "memory_source",
				"batch %d schema %s does not match declared schema %s", i, batch.Schema(), schema)
		}
	}
	held := make([]arrow.Record, len(batches))
	for i, batch := range batches {
		batch.Retain()
		held[i] = batch
	}
	return &MemorySource{schema: schema, batches: held}, nil
}

// Schema implements core.Relation.
func (m *MemorySource) Schema() *arrow.Schema { return m.schema }

// Next implements core.Relation.
func (m *MemorySource) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if m.index >= len(m.batches) {
		return nil, io.EOF
	}
	batch := m.batches[m.index]
	m.batches[m.index] = nil
	m.index++
	return batch, nil
}

// Close releases any batches not yet handed out.
func (m *MemorySource) Close() error {
	for i := m.index; i < len(m.batches); i++ {
		if m.batches[i] != nil {
			m.batches[i].Release()
			m.batches[i] = nil
		}
	}
	m.index = len(m.batches)
	return nil
}

// String describes the source for diagnostics.
func (m *MemorySource) String() string {
	return fmt.Sprintf("memory source (%d batches)", len(m.batches))
}

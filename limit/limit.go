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

// Package limit implements the limit operator: it passes batches through
// until a fixed number of rows has been emitted, slicing the final batch at
// the boundary.
package limit

import (
	"context"
	"io"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/goquery/core"
)

// Relation is the limit operator.
type Relation struct {
	input     core.Relation
	remaining int64
}

// NewRelation constructs a limit operator emitting at most n rows.
func NewRelation(input core.Relation, n int64) (*Relation, error) {
	if n < 0 {
		return nil, core.Errorf(core.ErrEvaluation, "new_relation",
			"limit must be non-negative, got %d", n)
	}
	return &Relation{input: input, remaining: n}, nil
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

	if r.remaining <= 0 {
		return nil, io.EOF
	}

	batch, err := r.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	if batch.NumRows() <= r.remaining {
		r.remaining -= batch.NumRows()
		return batch, nil
	}

	sliced := batch.NewSlice(0, r.remaining)
	batch.Release()
	r.remaining = 0
	return sliced, nil
}

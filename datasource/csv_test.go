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
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readCloser struct {
	io.Reader
	closed bool
}

func (rc *readCloser) Close() error {
	rc.closed = true
	return nil
}

func csvTestSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
}

func TestCSVSource_ReadAll(t *testing.T) {
	data := "name,score\nada,10\nbob,20\ncay,30\n"
	rc := &readCloser{Reader: strings.NewReader(data)}

	source, err := NewCSVSource(rc, csvTestSchema())
	require.NoError(t, err)
	defer source.Close()

	batch, err := source.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	require.EqualValues(t, 3, batch.NumRows())
	names := batch.Column(0).(*array.String)
	scores := batch.Column(1).(*array.Int64)
	assert.Equal(t, "ada", names.Value(0))
	assert.EqualValues(t, 30, scores.Value(2))

	_, err = source.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	stats := source.Stats()
	assert.EqualValues(t, 3, stats.RowsRead)
	assert.EqualValues(t, 1, stats.BatchesRead)
}

func TestCSVSource_Chunking(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,score\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("row,1\n")
	}
	rc := &readCloser{Reader: strings.NewReader(sb.String())}

	source, err := NewCSVSource(rc, csvTestSchema(), WithCSVChunkSize(4))
	require.NoError(t, err)
	defer source.Close()

	var rows, batches int64
	for {
		batch, err := source.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows += batch.NumRows()
		batches++
		batch.Release()
	}

	assert.EqualValues(t, 10, rows)
	assert.EqualValues(t, 3, batches)
}

func TestCSVSource_EmptyFieldIsNull(t *testing.T) {
	data := "name,score\nada,\n"
	rc := &readCloser{Reader: strings.NewReader(data)}

	source, err := NewCSVSource(rc, csvTestSchema())
	require.NoError(t, err)
	defer source.Close()

	batch, err := source.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	assert.True(t, batch.Column(1).IsNull(0))
}

func TestCSVSource_NoHeaders(t *testing.T) {
	data := "ada;10\nbob;20\n"
	rc := &readCloser{Reader: strings.NewReader(data)}

	source, err := NewCSVSource(rc, csvTestSchema(),
		WithCSVHasHeaders(false),
		WithCSVComma(';'),
	)
	require.NoError(t, err)
	defer source.Close()

	batch, err := source.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()
	assert.EqualValues(t, 2, batch.NumRows())
}

func TestCSVSource_CloseClosesReader(t *testing.T) {
	rc := &readCloser{Reader: strings.NewReader("name,score\n")}

	source, err := NewCSVSource(rc, csvTestSchema())
	require.NoError(t, err)

	require.NoError(t, source.Close())
	assert.True(t, rc.closed)
}

func TestMemorySource_HandsOutBatchesInOrder(t *testing.T) {
	schema := csvTestSchema()

	data := "name,score\nada,1\nbob,2\n"
	rc := &readCloser{Reader: strings.NewReader(data)}
	csvSource, err := NewCSVSource(rc, schema, WithCSVChunkSize(1))
	require.NoError(t, err)
	defer csvSource.Close()

	var batches []arrow.Record
	for {
		batch, err := csvSource.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		batches = append(batches, batch)
	}
	require.Len(t, batches, 2)
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()

	source, err := NewMemorySource(schema, batches...)
	require.NoError(t, err)
	defer source.Close()

	first, err := source.Next(context.Background())
	require.NoError(t, err)
	defer first.Release()
	assert.Equal(t, "ada", first.Column(0).(*array.String).Value(0))

	second, err := source.Next(context.Background())
	require.NoError(t, err)
	defer second.Release()
	assert.Equal(t, "bob", second.Column(0).(*array.String).Value(0))

	_, err = source.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestMemorySource_SchemaMismatch(t *testing.T) {
	schema := csvTestSchema()
	other := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	data := "name,score\nada,1\n"
	rc := &readCloser{Reader: strings.NewReader(data)}
	csvSource, err := NewCSVSource(rc, schema)
	require.NoError(t, err)
	defer csvSource.Close()

	batch, err := csvSource.Next(context.Background())
	require.NoError(t, err)
	defer batch.Release()

	_, err = NewMemorySource(other, batch)
	assert.Error(t, err)
}

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
	"os"
	"time"

	"github.com/apache/arrow/go/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
)

// ParquetSourceError provides structured error information for parquet
// source operations.
type ParquetSourceError struct {
	Op  string // Operation that failed (e.g., "open_file", "read_batch", "schema")
	Err error  // Underlying error
}

func (e *ParquetSourceError) Error() string {
	return fmt.Sprintf("parquet source %s: %v", e.Op, e.Err)
}

func (e *ParquetSourceError) Unwrap() error {
	return e.Err
}

// ParquetSourceStats holds statistics about the parquet source's
// performance.
type ParquetSourceStats struct {
	RowsRead     int64
	BatchesRead  int64
	ReadDuration time.Duration
	LastReadTime time.Time
}

// ParquetSourceOptions configures the parquet source.
type ParquetSourceOptions struct {
	BatchSize int64    // rows per batch
	Columns   []string // optional column projection
}

// ParquetOption represents a configuration function.
type ParquetOption func(*ParquetSourceOptions)

func WithParquetBatchSize(size int64) ParquetOption {
	return func(opts *ParquetSourceOptions) {
		opts.BatchSize = size
	}
}

func WithParquetColumns(columns ...string) ParquetOption {
	return func(opts *ParquetSourceOptions) {
		// Defensive copy to avoid shared slices
		opts.Columns = make([]string, len(columns))
		copy(opts.Columns, columns)
	}
}

// ParquetSource implements core.Source for Parquet files. Batches come
// straight from the pqarrow record reader; no per-row conversion happens.
type ParquetSource struct {
	fileHandle   *os.File
	reader       *file.Reader
	arrowReader  *pqarrow.FileReader
	recordReader pqarrow.RecordReader
	schema       *arrow.Schema
	stats        ParquetSourceStats
	opts         *ParquetSourceOptions
}

// NewParquetSource opens a Parquet file and prepares an Arrow RecordReader.
func NewParquetSource(filename string, options ...ParquetOption) (*ParquetSource, error) {
	opts := (&ParquetSourceOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetSourceError{Op: "open_file", Err: err}
	}

	source, err := newParquetSource(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	source.fileHandle = f
	return source, nil
}

// newParquetSource builds the reader chain over any seekable byte source.
func newParquetSource(r parquet.ReaderAtSeeker, opts *ParquetSourceOptions) (*ParquetSource, error) {
	parquetReader, err := file.NewParquetReader(r)
	if err != nil {
		return nil, &ParquetSourceError{Op: "create_reader", Err: err}
	}

	allocator := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{
		BatchSize: opts.BatchSize,
	}, allocator)
	if err != nil {
		return nil, &ParquetSourceError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &ParquetSourceError{Op: "get_schema", Err: err}
	}

	// Prepare column index projection if requested
	var colIndices []int
	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			idx := -1
			for i, fld := range schema.Fields() {
				if fld.Name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, &ParquetSourceError{Op: "column_projection",
					Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, idx)
		}
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		return nil, &ParquetSourceError{Op: "create_record_reader", Err: err}
	}

	if len(colIndices) > 0 {
		schema = recordReader.Schema()
	}

	return &ParquetSource{
		reader:       parquetReader,
		arrowReader:  arrowReader,
		recordReader: recordReader,
		schema:       schema,
		opts:         opts,
	}, nil
}

// Schema implements core.Relation.
func (p *ParquetSource) Schema() *arrow.Schema { return p.schema }

// Next implements core.Relation, yielding the next batch of rows from the
// file.
func (p *ParquetSource) Next(ctx context.Context) (arrow.Record, error) {
	start := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(start)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &ParquetSourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	rec, err := p.recordReader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &ParquetSourceError{Op: "read_batch", Err: err}
	}
	if rec == nil || rec.NumRows() == 0 {
		return nil, io.EOF
	}

	rec.Retain()
	p.stats.RowsRead += rec.NumRows()
	p.stats.BatchesRead++
	return rec, nil
}

// Close releases resources and closes the underlying file.
func (p *ParquetSource) Close() error {
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.fileHandle != nil {
		return p.fileHandle.Close()
	}
	return nil
}

// Stats returns statistics about the parquet source's performance.
func (p *ParquetSource) Stats() ParquetSourceStats {
	return p.stats
}

func (opts *ParquetSourceOptions) withDefaults() *ParquetSourceOptions {
	result := &ParquetSourceOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1024
	}
	return result
}

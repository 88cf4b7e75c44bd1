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

package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
)

// ParquetSinkError provides structured error information for Parquet sink
// operations.
type ParquetSinkError struct {
	Op  string // Operation that failed (e.g., "open_file", "write", "close")
	Err error  // Underlying error
}

func (e *ParquetSinkError) Error() string {
	return fmt.Sprintf("parquet sink %s: %v", e.Op, e.Err)
}

func (e *ParquetSinkError) Unwrap() error {
	return e.Err
}

// ParquetSinkStats holds statistics about the Parquet sink's performance.
type ParquetSinkStats struct {
	RowsWritten    int64
	BatchesWritten int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// ParquetSinkOptions configures the Parquet sink.
type ParquetSinkOptions struct {
	Compression  compress.Compression // Column compression codec
	RowGroupSize int64                // Maximum rows per row group
}

// ParquetSinkOption represents a configuration function.
type ParquetSinkOption func(*ParquetSinkOptions)

// WithParquetCompression sets the compression codec.
func WithParquetCompression(compression compress.Compression) ParquetSinkOption {
	return func(opts *ParquetSinkOptions) {
		opts.Compression = compression
	}
}

// WithParquetRowGroupSize sets the maximum rows per row group.
func WithParquetRowGroupSize(size int64) ParquetSinkOption {
	return func(opts *ParquetSinkOptions) {
		opts.RowGroupSize = size
	}
}

// ParquetSink implements core.Sink backed by a Parquet file on disk.
type ParquetSink struct {
	writer *pqarrow.FileWriter
	schema *arrow.Schema
	stats  ParquetSinkStats
	closed bool
}

// NewParquetSink creates the output file (and any missing parent
// directories) and prepares a Parquet writer for the given schema.
func NewParquetSink(filename string, schema *arrow.Schema, options ...ParquetSinkOption) (*ParquetSink, error) {
	opts := &ParquetSinkOptions{Compression: compress.Codecs.Snappy}
	for _, option := range options {
		option(opts)
	}

	if schema == nil {
		return nil, &ParquetSinkError{Op: "validate", Err: fmt.Errorf("schema is required")}
	}

	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &ParquetSinkError{Op: "create_directory", Err: err}
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetSinkError{Op: "open_file", Err: err}
	}

	propOpts := []parquet.WriterProperty{parquet.WithCompression(opts.Compression)}
	if opts.RowGroupSize > 0 {
		propOpts = append(propOpts, parquet.WithMaxRowGroupLength(opts.RowGroupSize))
	}
	props := parquet.NewWriterProperties(propOpts...)

	writer, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, &ParquetSinkError{Op: "create_writer", Err: err}
	}

	return &ParquetSink{
		writer: writer,
		schema: schema,
	}, nil
}

// Write implements core.Sink.
func (p *ParquetSink) Write(ctx context.Context, batch arrow.Record) error {
	start := time.Now()
	defer func() {
		p.stats.WriteDuration += time.Since(start)
		p.stats.LastWriteTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return &ParquetSinkError{Op: "write", Err: ctx.Err()}
	default:
	}

	if p.closed {
		return &ParquetSinkError{Op: "write", Err: fmt.Errorf("sink is closed")}
	}
	if !batch.Schema().Equal(p.schema) {
		return &ParquetSinkError{Op: "write",
			Err: fmt.Errorf("batch schema %s does not match sink schema %s", batch.Schema(), p.schema)}
	}

	if err := p.writer.Write(batch); err != nil {
		return &ParquetSinkError{Op: "write", Err: err}
	}

	p.stats.RowsWritten += batch.NumRows()
	p.stats.BatchesWritten++
	return nil
}

// Flush is a no-op for Parquet. Row groups are finalized on Close.
func (p *ParquetSink) Flush() error {
	return nil
}

// Close finalizes the file footer and closes the output.
func (p *ParquetSink) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.writer.Close(); err != nil {
		return &ParquetSinkError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns statistics about the Parquet sink's performance.
func (p *ParquetSink) Stats() ParquetSinkStats {
	return p.stats
}

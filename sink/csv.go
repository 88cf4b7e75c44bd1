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

// Package sink provides core.Sink implementations that persist record
// batches to external formats. Sinks buffer nothing beyond what the
// underlying writer buffers; Flush pushes pending bytes and Close makes
// the output durable.
package sink

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/csv"
)

// CSVSinkError provides structured error information for CSV sink
// operations.
type CSVSinkError struct {
	Op  string // Operation that failed (e.g., "write", "flush", "close")
	Err error  // Underlying error
}

func (e *CSVSinkError) Error() string {
	return fmt.Sprintf("csv sink %s: %v", e.Op, e.Err)
}

func (e *CSVSinkError) Unwrap() error {
	return e.Err
}

// CSVSinkStats holds statistics about the CSV sink's performance.
type CSVSinkStats struct {
	RowsWritten    int64
	BatchesWritten int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// CSVSinkOptions configures the CSV sink.
type CSVSinkOptions struct {
	Comma       rune // Field delimiter
	WriteHeader bool // Emit a header row before the first batch
	NullValue   string
}

// CSVSinkOption represents a configuration function.
type CSVSinkOption func(*CSVSinkOptions)

// WithCSVSinkComma sets the field delimiter.
func WithCSVSinkComma(comma rune) CSVSinkOption {
	return func(opts *CSVSinkOptions) {
		opts.Comma = comma
	}
}

// WithCSVSinkHeader controls whether a header row is written.
func WithCSVSinkHeader(write bool) CSVSinkOption {
	return func(opts *CSVSinkOptions) {
		opts.WriteHeader = write
	}
}

// WithCSVSinkNullValue sets the string used for null cells.
func WithCSVSinkNullValue(null string) CSVSinkOption {
	return func(opts *CSVSinkOptions) {
		opts.NullValue = null
	}
}

// CSVSink implements core.Sink over an io.WriteCloser. Every batch must
// carry the schema the sink was constructed with.
type CSVSink struct {
	writer *csv.Writer
	closer io.Closer
	schema *arrow.Schema
	stats  CSVSinkStats
	closed bool
}

// NewCSVSink wraps w in a CSV encoder for batches of the given schema.
func NewCSVSink(w io.WriteCloser, schema *arrow.Schema, options ...CSVSinkOption) (*CSVSink, error) {
	opts := &CSVSinkOptions{Comma: ',', WriteHeader: true}
	for _, option := range options {
		option(opts)
	}

	if schema == nil {
		return nil, &CSVSinkError{Op: "validate", Err: fmt.Errorf("schema is required")}
	}

	writer := csv.NewWriter(w, schema,
		csv.WithComma(opts.Comma),
		csv.WithHeader(opts.WriteHeader),
		csv.WithNullWriter(opts.NullValue),
	)

	return &CSVSink{
		writer: writer,
		closer: w,
		schema: schema,
	}, nil
}

// Write implements core.Sink.
func (c *CSVSink) Write(ctx context.Context, batch arrow.Record) error {
	start := time.Now()
	defer func() {
		c.stats.WriteDuration += time.Since(start)
		c.stats.LastWriteTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return &CSVSinkError{Op: "write", Err: ctx.Err()}
	default:
	}

	if c.closed {
		return &CSVSinkError{Op: "write", Err: fmt.Errorf("sink is closed")}
	}
	if !batch.Schema().Equal(c.schema) {
		return &CSVSinkError{Op: "write",
			Err: fmt.Errorf("batch schema %s does not match sink schema %s", batch.Schema(), c.schema)}
	}

	if err := c.writer.Write(batch); err != nil {
		return &CSVSinkError{Op: "write", Err: err}
	}

	c.stats.RowsWritten += batch.NumRows()
	c.stats.BatchesWritten++
	return nil
}

// Flush implements core.Sink.
func (c *CSVSink) Flush() error {
	if c.closed {
		return nil
	}
	if err := c.writer.Flush(); err != nil {
		return &CSVSinkError{Op: "flush", Err: err}
	}
	return nil
}

// Close flushes pending rows and closes the underlying writer.
func (c *CSVSink) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.writer.Flush(); err != nil {
		return &CSVSinkError{Op: "close", Err: err}
	}
	if err := c.closer.Close(); err != nil {
		return &CSVSinkError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns statistics about the CSV sink's performance.
func (c *CSVSink) Stats() CSVSinkStats {
	return c.stats
}

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
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/csv"
)

// CSVSourceError wraps structured error information for the CSV source.
type CSVSourceError struct {
	Op  string
	Err error
}

func (e *CSVSourceError) Error() string {
	return fmt.Sprintf("csv source %s: %v", e.Op, e.Err)
}

func (e *CSVSourceError) Unwrap() error {
	return e.Err
}

// CSVSourceStats holds statistics about the CSV source's performance.
type CSVSourceStats struct {
	RowsRead     int64
	BatchesRead  int64
	ReadDuration time.Duration
	LastReadTime time.Time
}

// CSVSourceOptions configures the CSV source.
type CSVSourceOptions struct {
	Comma      rune
	Comment    rune
	ChunkSize  int  // rows per emitted batch
	HasHeaders bool // skip a leading header row
}

// CSVOption allows functional customization of CSVSource.
type CSVOption func(*CSVSourceOptions)

func WithCSVComma(r rune) CSVOption {
	return func(o *CSVSourceOptions) { o.Comma = r }
}

func WithCSVComment(r rune) CSVOption {
	return func(o *CSVSourceOptions) { o.Comment = r }
}

func WithCSVChunkSize(n int) CSVOption {
	return func(o *CSVSourceOptions) { o.ChunkSize = n }
}

func WithCSVHasHeaders(hasHeaders bool) CSVOption {
	return func(o *CSVSourceOptions) { o.HasHeaders = hasHeaders }
}

// CSVSource implements core.Source for CSV data, decoding rows into typed
// Arrow batches against a declared schema.
type CSVSource struct {
	schema *arrow.Schema
	reader *csv.Reader
	closer io.Closer
	stats  CSVSourceStats
	opts   CSVSourceOptions
}

// NewCSVSource creates a CSVSource reading from r with the declared schema
// and default or overridden options.
func NewCSVSource(r io.ReadCloser, schema *arrow.Schema, options ...CSVOption) (*CSVSource, error) {
	opts := CSVSourceOptions{
		Comma:      ',',
		ChunkSize:  1024,
		HasHeaders: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	csvOpts := []csv.Option{
		csv.WithComma(opts.Comma),
		csv.WithChunk(opts.ChunkSize),
		csv.WithHeader(opts.HasHeaders),
		csv.WithNullReader(true, ""),
	}
	if opts.Comment != 0 {
		csvOpts = append(csvOpts, csv.WithComment(opts.Comment))
	}

	return &CSVSource{
		schema: schema,
		reader: csv.NewReader(r, schema, csvOpts...),
		closer: r,
		opts:   opts,
	}, nil
}

// Schema implements core.Relation.
func (c *CSVSource) Schema() *arrow.Schema { return c.schema }

// Next implements core.Relation.
func (c *CSVSource) Next(ctx context.Context) (arrow.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &CSVSourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if !c.reader.Next() {
		if err := c.reader.Err(); err != nil && err != io.EOF {
			return nil, &CSVSourceError{Op: "read_batch", Err: err}
		}
		return nil, io.EOF
	}

	batch := c.reader.Record()
	batch.Retain()

	c.stats.RowsRead += batch.NumRows()
	c.stats.BatchesRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return batch, nil
}

// Close implements core.Source.
func (c *CSVSource) Close() error {
	c.reader.Release()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns CSV source performance stats.
func (c *CSVSource) Stats() CSVSourceStats {
	return c.stats
}

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
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresSourceError provides structured error information for Postgres
// source operations.
type PostgresSourceError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan")
	Err error  // Underlying error
}

func (e *PostgresSourceError) Error() string {
	return fmt.Sprintf("postgres source %s: %v", e.Op, e.Err)
}

func (e *PostgresSourceError) Unwrap() error {
	return e.Err
}

// PostgresSourceStats holds statistics about the Postgres source's
// performance.
type PostgresSourceStats struct {
	RowsRead       int64
	BatchesRead    int64
	QueryDuration  time.Duration
	ReadDuration   time.Duration
	LastReadTime   time.Time
	ConnectionTime time.Duration
}

// PostgresSourceOptions configures the Postgres source.
type PostgresSourceOptions struct {
	DSN             string        // Database connection string
	Query           string        // SQL query to execute
	Params          []interface{} // Optional query parameters
	BatchSize       int           // Rows per emitted batch
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	MaxOpenConns    int           // Maximum open connections
	MaxIdleConns    int           // Maximum idle connections
	QueryTimeout    time.Duration // Query execution timeout
}

// PostgresOption represents a configuration function.
type PostgresOption func(*PostgresSourceOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresOption {
	return func(opts *PostgresSourceOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresQuery sets the SQL query and optional parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresOption {
	return func(opts *PostgresSourceOptions) {
		opts.Query = query
		if len(params) > 0 {
			opts.Params = make([]interface{}, len(params))
			copy(opts.Params, params)
		}
	}
}

// WithPostgresBatchSize sets the number of rows per emitted batch.
func WithPostgresBatchSize(size int) PostgresOption {
	return func(opts *PostgresSourceOptions) {
		opts.BatchSize = size
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int) PostgresOption {
	return func(opts *PostgresSourceOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
	}
}

// WithPostgresQueryTimeout sets the query execution timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresOption {
	return func(opts *PostgresSourceOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresSource implements core.Source for PostgreSQL query results.
// The caller declares the Arrow schema of the result set; each database
// column is scanned into the matching Arrow builder. NULL values become
// Arrow nulls.
type PostgresSource struct {
	db       *sql.DB
	rows     *sql.Rows
	schema   *arrow.Schema
	mem      memory.Allocator
	stats    PostgresSourceStats
	opts     *PostgresSourceOptions
	finished bool
}

// NewPostgresSource connects, runs the configured query, and prepares to
// stream results as Arrow batches of the declared schema.
func NewPostgresSource(schema *arrow.Schema, options ...PostgresOption) (*PostgresSource, error) {
	opts := (&PostgresSourceOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	if schema == nil {
		return nil, &PostgresSourceError{Op: "validate", Err: fmt.Errorf("schema is required")}
	}
	if opts.DSN == "" {
		return nil, &PostgresSourceError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if opts.Query == "" {
		return nil, &PostgresSourceError{Op: "validate", Err: fmt.Errorf("query is required")}
	}
	for _, fld := range schema.Fields() {
		if !scannableType(fld.Type) {
			return nil, &PostgresSourceError{Op: "validate",
				Err: fmt.Errorf("unsupported column type %s for field %q", fld.Type, fld.Name)}
		}
	}

	startTime := time.Now()
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresSourceError{Op: "connect", Err: err}
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	ctx := context.Background()
	if opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.QueryTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PostgresSourceError{Op: "ping", Err: err}
	}
	connectionTime := time.Since(startTime)

	queryStart := time.Now()
	rows, err := db.QueryContext(ctx, opts.Query, opts.Params...)
	if err != nil {
		db.Close()
		return nil, &PostgresSourceError{Op: "query", Err: err}
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, &PostgresSourceError{Op: "query", Err: err}
	}
	if len(cols) != len(schema.Fields()) {
		rows.Close()
		db.Close()
		return nil, &PostgresSourceError{Op: "query",
			Err: fmt.Errorf("query returned %d columns, schema declares %d", len(cols), len(schema.Fields()))}
	}

	return &PostgresSource{
		db:     db,
		rows:   rows,
		schema: schema,
		mem:    memory.NewGoAllocator(),
		opts:   opts,
		stats: PostgresSourceStats{
			ConnectionTime: connectionTime,
			QueryDuration:  time.Since(queryStart),
		},
	}, nil
}

// Schema implements core.Relation.
func (p *PostgresSource) Schema() *arrow.Schema { return p.schema }

// Next implements core.Relation, accumulating up to BatchSize rows into an
// Arrow record.
func (p *PostgresSource) Next(ctx context.Context) (arrow.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &PostgresSourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.db == nil {
		return nil, &PostgresSourceError{Op: "read", Err: fmt.Errorf("source is closed")}
	}
	if p.finished {
		return nil, io.EOF
	}

	builders := newBuilders(p.mem, p.schema)
	defer releaseBuilders(builders)

	holders := newScanHolders(p.schema)
	rowCount := int64(0)

	for rowCount < int64(p.opts.BatchSize) {
		if !p.rows.Next() {
			if err := p.rows.Err(); err != nil {
				return nil, &PostgresSourceError{Op: "scan", Err: err}
			}
			p.finished = true
			break
		}
		if err := p.rows.Scan(holders...); err != nil {
			return nil, &PostgresSourceError{Op: "scan", Err: err}
		}
		for i, holder := range holders {
			appendHolder(builders[i], holder)
		}
		rowCount++
	}

	if rowCount == 0 {
		return nil, io.EOF
	}

	batch := finishRecord(p.schema, builders, rowCount)
	p.stats.RowsRead += rowCount
	p.stats.BatchesRead++
	return batch, nil
}

// Close releases the result set and the database connection.
func (p *PostgresSource) Close() error {
	var firstErr error
	if p.rows != nil {
		if err := p.rows.Close(); err != nil {
			firstErr = err
		}
		p.rows = nil
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.db = nil
	}
	if firstErr != nil {
		return &PostgresSourceError{Op: "close", Err: firstErr}
	}
	return nil
}

// Stats returns statistics about the Postgres source's performance.
func (p *PostgresSource) Stats() PostgresSourceStats {
	return p.stats
}

func (opts *PostgresSourceOptions) withDefaults() *PostgresSourceOptions {
	result := &PostgresSourceOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1024
	}
	return result
}

// scannableType reports whether the declared field type has a matching
// sql.Null* scan holder.
func scannableType(dtype arrow.DataType) bool {
	switch dtype.ID() {
	case arrow.BOOL, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.FLOAT64, arrow.STRING:
		return true
	default:
		return false
	}
}

func newScanHolders(schema *arrow.Schema) []interface{} {
	holders := make([]interface{}, len(schema.Fields()))
	for i, fld := range schema.Fields() {
		switch fld.Type.ID() {
		case arrow.BOOL:
			holders[i] = &sql.NullBool{}
		case arrow.INT16:
			holders[i] = &sql.NullInt16{}
		case arrow.INT32:
			holders[i] = &sql.NullInt32{}
		case arrow.INT64:
			holders[i] = &sql.NullInt64{}
		case arrow.FLOAT64:
			holders[i] = &sql.NullFloat64{}
		case arrow.STRING:
			holders[i] = &sql.NullString{}
		}
	}
	return holders
}

func appendHolder(b array.Builder, holder interface{}) {
	switch h := holder.(type) {
	case *sql.NullBool:
		if h.Valid {
			b.(*array.BooleanBuilder).Append(h.Bool)
			return
		}
	case *sql.NullInt16:
		if h.Valid {
			b.(*array.Int16Builder).Append(h.Int16)
			return
		}
	case *sql.NullInt32:
		if h.Valid {
			b.(*array.Int32Builder).Append(h.Int32)
			return
		}
	case *sql.NullInt64:
		if h.Valid {
			b.(*array.Int64Builder).Append(h.Int64)
			return
		}
	case *sql.NullFloat64:
		if h.Valid {
			b.(*array.Float64Builder).Append(h.Float64)
			return
		}
	case *sql.NullString:
		if h.Valid {
			b.(*array.StringBuilder).Append(h.String)
			return
		}
	}
	b.AppendNull()
}

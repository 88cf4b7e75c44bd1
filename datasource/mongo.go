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
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSourceError provides structured error information for MongoDB
// source operations.
type MongoSourceError struct {
	Op         string // Operation that failed (e.g., "connect", "find", "decode")
	Collection string // Collection being read, if known
	Err        error  // Underlying error
}

func (e *MongoSourceError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo source %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo source %s: %v", e.Op, e.Err)
}

func (e *MongoSourceError) Unwrap() error {
	return e.Err
}

// MongoSourceStats holds statistics about the MongoDB source's
// performance.
type MongoSourceStats struct {
	RowsRead     int64
	BatchesRead  int64
	ReadDuration time.Duration
	LastReadTime time.Time
	NullCounts   map[string]int64
}

// MongoSourceOptions configures the MongoDB source.
type MongoSourceOptions struct {
	URI        string        // MongoDB connection URI
	Database   string        // Database name
	Collection string        // Collection name
	Filter     bson.M        // Optional query filter
	Sort       bson.M        // Optional sort specification
	Limit      int64         // Optional document limit (0 = no limit)
	BatchSize  int           // Rows per emitted batch
	Timeout    time.Duration // Connect and query timeout
}

// MongoOption represents a configuration function.
type MongoOption func(*MongoSourceOptions)

// WithMongoURI sets the connection URI.
func WithMongoURI(uri string) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.URI = uri
	}
}

// WithMongoDB sets the database name.
func WithMongoDB(database string) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Database = database
	}
}

// WithMongoCollection sets the collection name.
func WithMongoCollection(collection string) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Collection = collection
	}
}

// WithMongoFilter sets the query filter.
func WithMongoFilter(filter bson.M) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Filter = filter
	}
}

// WithMongoSort sets the sort specification.
func WithMongoSort(sort bson.M) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Sort = sort
	}
}

// WithMongoLimit caps the number of documents read.
func WithMongoLimit(limit int64) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Limit = limit
	}
}

// WithMongoBatchSize sets the number of rows per emitted batch.
func WithMongoBatchSize(size int) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.BatchSize = size
	}
}

// WithMongoTimeout sets the connect and query timeout.
func WithMongoTimeout(timeout time.Duration) MongoOption {
	return func(opts *MongoSourceOptions) {
		opts.Timeout = timeout
	}
}

// MongoSource implements core.Source for MongoDB collections. The caller
// declares the Arrow schema; fields are looked up by name in each
// document. A missing field or a value that cannot be converted to the
// declared type becomes an Arrow null.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	cursor     *mongo.Cursor
	schema     *arrow.Schema
	mem        memory.Allocator
	stats      MongoSourceStats
	opts       *MongoSourceOptions
	connected  bool
	finished   bool
}

// NewMongoSource validates configuration and returns a source that
// connects lazily on the first call to Next.
func NewMongoSource(schema *arrow.Schema, opts ...MongoOption) (*MongoSource, error) {
	cfg := (&MongoSourceOptions{}).withDefaults()
	for _, opt := range opts {
		opt(cfg)
	}

	if schema == nil {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("schema is required")}
	}
	if cfg.URI == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("uri is required")}
	}
	if cfg.Database == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("database is required")}
	}
	if cfg.Collection == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("collection is required")}
	}
	for _, fld := range schema.Fields() {
		if !bsonConvertible(fld.Type) {
			return nil, &MongoSourceError{Op: "validate",
				Err: fmt.Errorf("unsupported column type %s for field %q", fld.Type, fld.Name)}
		}
	}

	return &MongoSource{
		schema: schema,
		mem:    memory.NewGoAllocator(),
		opts:   cfg,
		stats:  MongoSourceStats{NullCounts: make(map[string]int64)},
	}, nil
}

// connect establishes the client and opens the Find cursor.
func (m *MongoSource) connect(ctx context.Context) error {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.opts.URI))
	if err != nil {
		return &MongoSourceError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &MongoSourceError{Op: "ping", Err: err}
	}

	m.client = client
	m.collection = client.Database(m.opts.Database).Collection(m.opts.Collection)

	findOpts := options.Find().SetBatchSize(int32(m.opts.BatchSize))
	if m.opts.Sort != nil {
		findOpts.SetSort(m.opts.Sort)
	}
	if m.opts.Limit > 0 {
		findOpts.SetLimit(m.opts.Limit)
	}
	filter := m.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := m.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return &MongoSourceError{Op: "find", Collection: m.opts.Collection, Err: err}
	}

	m.cursor = cursor
	m.connected = true
	return nil
}

// Schema implements core.Relation.
func (m *MongoSource) Schema() *arrow.Schema { return m.schema }

// Next implements core.Relation, accumulating up to BatchSize documents
// into an Arrow record.
func (m *MongoSource) Next(ctx context.Context) (arrow.Record, error) {
	start := time.Now()
	defer func() {
		m.stats.ReadDuration += time.Since(start)
		m.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &MongoSourceError{Op: "read", Collection: m.opts.Collection, Err: ctx.Err()}
	default:
	}

	if m.finished {
		return nil, io.EOF
	}
	if !m.connected {
		if err := m.connect(ctx); err != nil {
			return nil, err
		}
	}

	builders := newBuilders(m.mem, m.schema)
	defer releaseBuilders(builders)

	rowCount := int64(0)
	for rowCount < int64(m.opts.BatchSize) {
		if !m.cursor.Next(ctx) {
			if err := m.cursor.Err(); err != nil {
				return nil, &MongoSourceError{Op: "cursor_next", Collection: m.opts.Collection, Err: err}
			}
			m.finished = true
			break
		}

		var doc bson.M
		if err := m.cursor.Decode(&doc); err != nil {
			return nil, &MongoSourceError{Op: "decode", Collection: m.opts.Collection, Err: err}
		}

		for i, fld := range m.schema.Fields() {
			if !appendBSONValue(builders[i], fld.Type, doc[fld.Name]) {
				m.stats.NullCounts[fld.Name]++
			}
		}
		rowCount++
	}

	if rowCount == 0 {
		return nil, io.EOF
	}

	batch := finishRecord(m.schema, builders, rowCount)
	m.stats.RowsRead += rowCount
	m.stats.BatchesRead++
	return batch, nil
}

// Close tears down the cursor and disconnects the client.
func (m *MongoSource) Close() error {
	ctx := context.Background()
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	var firstErr error
	if m.cursor != nil {
		if err := m.cursor.Close(ctx); err != nil {
			firstErr = err
		}
		m.cursor = nil
	}
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		m.client = nil
	}
	m.connected = false
	if firstErr != nil {
		return &MongoSourceError{Op: "close", Collection: m.opts.Collection, Err: firstErr}
	}
	return nil
}

// Stats returns statistics about the MongoDB source's performance.
func (m *MongoSource) Stats() MongoSourceStats {
	return m.stats
}

func (opts *MongoSourceOptions) withDefaults() *MongoSourceOptions {
	result := &MongoSourceOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1024
	}
	if result.Timeout <= 0 {
		result.Timeout = 30 * time.Second
	}
	return result
}

func bsonConvertible(dtype arrow.DataType) bool {
	switch dtype.ID() {
	case arrow.BOOL, arrow.INT32, arrow.INT64, arrow.FLOAT64, arrow.STRING:
		return true
	default:
		return false
	}
}

// appendBSONValue appends value to b, coercing the BSON representation to
// the declared Arrow type. Returns false when a null was appended instead.
func appendBSONValue(b array.Builder, dtype arrow.DataType, value interface{}) bool {
	if value == nil {
		b.AppendNull()
		return false
	}

	switch dtype.ID() {
	case arrow.BOOL:
		if v, ok := value.(bool); ok {
			b.(*array.BooleanBuilder).Append(v)
			return true
		}
	case arrow.INT32:
		if v, ok := value.(int32); ok {
			b.(*array.Int32Builder).Append(v)
			return true
		}
	case arrow.INT64:
		switch v := value.(type) {
		case int64:
			b.(*array.Int64Builder).Append(v)
			return true
		case int32:
			b.(*array.Int64Builder).Append(int64(v))
			return true
		}
	case arrow.FLOAT64:
		switch v := value.(type) {
		case float64:
			b.(*array.Float64Builder).Append(v)
			return true
		case int64:
			b.(*array.Float64Builder).Append(float64(v))
			return true
		case int32:
			b.(*array.Float64Builder).Append(float64(v))
			return true
		}
	case arrow.STRING:
		if v, ok := value.(string); ok {
			b.(*array.StringBuilder).Append(v)
			return true
		}
	}

	b.AppendNull()
	return false
}

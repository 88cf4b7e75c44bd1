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
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// Configuration validation only; nothing here touches a live server.

func TestNewPostgresSource_Validation(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	_, err := NewPostgresSource(nil, WithPostgresDSN("postgres://x"), WithPostgresQuery("SELECT 1"))
	assert.ErrorContains(t, err, "schema is required")

	_, err = NewPostgresSource(schema, WithPostgresQuery("SELECT 1"))
	assert.ErrorContains(t, err, "dsn is required")

	_, err = NewPostgresSource(schema, WithPostgresDSN("postgres://x"))
	assert.ErrorContains(t, err, "query is required")

	unsupported := arrow.NewSchema([]arrow.Field{
		{Name: "blob", Type: arrow.BinaryTypes.Binary, Nullable: true},
	}, nil)
	_, err = NewPostgresSource(unsupported,
		WithPostgresDSN("postgres://x"), WithPostgresQuery("SELECT 1"))
	assert.ErrorContains(t, err, "unsupported column type")
}

func TestNewMongoSource_Validation(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	_, err := NewMongoSource(nil, WithMongoURI("mongodb://x"))
	assert.ErrorContains(t, err, "schema is required")

	_, err = NewMongoSource(schema, WithMongoDB("db"), WithMongoCollection("c"))
	assert.ErrorContains(t, err, "uri is required")

	_, err = NewMongoSource(schema, WithMongoURI("mongodb://x"), WithMongoCollection("c"))
	assert.ErrorContains(t, err, "database is required")

	_, err = NewMongoSource(schema, WithMongoURI("mongodb://x"), WithMongoDB("db"))
	assert.ErrorContains(t, err, "collection is required")
}

func TestNewMongoSource_OptionsApplied(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	source, err := NewMongoSource(schema,
		WithMongoURI("mongodb://localhost:27017"),
		WithMongoDB("db"),
		WithMongoCollection("events"),
		WithMongoFilter(bson.M{"kind": "click"}),
		WithMongoBatchSize(64),
		WithMongoTimeout(5*time.Second),
	)
	require.NoError(t, err)

	assert.Equal(t, "events", source.opts.Collection)
	assert.Equal(t, bson.M{"kind": "click"}, source.opts.Filter)
	assert.Equal(t, 64, source.opts.BatchSize)
	assert.Equal(t, 5*time.Second, source.opts.Timeout)
	assert.True(t, source.Schema().Equal(schema))

	// Lazy connection: Close before any read is a no-op.
	assert.NoError(t, source.Close())
}

func TestNewS3Source_Validation(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	_, err := NewS3Source(nil, WithS3Bucket("b"))
	assert.ErrorContains(t, err, "schema is required")

	_, err = NewS3Source(schema)
	assert.ErrorContains(t, err, "bucket is required")
}

func TestPostgresOptions_Defaults(t *testing.T) {
	opts := (&PostgresSourceOptions{}).withDefaults()
	assert.Equal(t, 1024, opts.BatchSize)

	opts = (&PostgresSourceOptions{BatchSize: 10}).withDefaults()
	assert.Equal(t, 10, opts.BatchSize)
}

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
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/goquery/core"
)

// S3SourceError provides structured error information for S3 source
// operations.
type S3SourceError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "read")
	Err error  // Underlying error
}

func (e *S3SourceError) Error() string {
	return fmt.Sprintf("s3 source %s: %v", e.Op, e.Err)
}

func (e *S3SourceError) Unwrap() error {
	return e.Err
}

// S3SourceStats holds statistics about the S3 source's performance.
type S3SourceStats struct {
	ObjectsListed  int64
	ObjectsRead    int64
	RowsRead       int64
	BatchesRead    int64
	ReadDuration   time.Duration
	LastReadTime   time.Time
	CurrentObject  string
	ProcessedFiles []string
}

// S3SourceOptions configures the S3 source.
type S3SourceOptions struct {
	Bucket         string          // S3 bucket name
	Prefix         string          // Key prefix filter
	Suffix         string          // Key suffix filter (e.g., ".csv", ".parquet")
	MaxKeys        int32           // Maximum number of objects to list
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	CSVOptions     []CSVOption     // Passed through to CSV objects
}

// S3Option represents a configuration function.
type S3Option func(*S3SourceOptions)

func WithS3Bucket(bucket string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Bucket = bucket
	}
}

func WithS3Prefix(prefix string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Prefix = prefix
	}
}

func WithS3Suffix(suffix string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Suffix = suffix
	}
}

func WithS3Region(region string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(opts *S3SourceOptions) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(opts *S3SourceOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(opts *S3SourceOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

func WithS3MaxKeys(maxKeys int32) S3Option {
	return func(opts *S3SourceOptions) {
		opts.MaxKeys = maxKeys
	}
}

// WithS3CSVOptions forwards CSV options to every .csv object opened by the
// source.
func WithS3CSVOptions(options ...CSVOption) S3Option {
	return func(opts *S3SourceOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// S3Source implements core.Source over a set of S3 objects. Matching
// objects are listed once up front, sorted by key, and read in sequence;
// each object's rows are decoded into batches of the declared schema.
// CSV and Parquet objects are supported, selected by file extension.
type S3Source struct {
	client  *s3.Client
	schema  *arrow.Schema
	opts    *S3SourceOptions
	keys    []string
	index   int
	current core.Source
	stats   S3SourceStats
}

// NewS3Source lists matching objects in the bucket and returns a source
// that streams them in key order.
func NewS3Source(schema *arrow.Schema, options ...S3Option) (*S3Source, error) {
	opts := &S3SourceOptions{MaxKeys: 1000}
	for _, option := range options {
		option(opts)
	}

	if schema == nil {
		return nil, &S3SourceError{Op: "validate", Err: fmt.Errorf("schema is required")}
	}
	if opts.Bucket == "" {
		return nil, &S3SourceError{Op: "validate", Err: fmt.Errorf("bucket is required")}
	}

	cfg, err := newAWSConfig(opts)
	if err != nil {
		return nil, &S3SourceError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	source := &S3Source{
		client: client,
		schema: schema,
		opts:   opts,
	}
	if err := source.listObjects(context.Background()); err != nil {
		return nil, err
	}
	return source, nil
}

func newAWSConfig(opts *S3SourceOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}

func (s *S3Source) listObjects(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.opts.Bucket),
		MaxKeys: &s.opts.MaxKeys,
	}
	if s.opts.Prefix != "" {
		input.Prefix = aws.String(s.opts.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &S3SourceError{Op: "list_objects", Err: err}
		}
		for _, obj := range page.Contents {
			if s.includeKey(*obj.Key) {
				keys = append(keys, *obj.Key)
			}
		}
	}

	sort.Strings(keys)
	s.keys = keys
	s.stats.ObjectsListed = int64(len(keys))
	return nil
}

func (s *S3Source) includeKey(key string) bool {
	if s.opts.Suffix != "" && !strings.HasSuffix(key, s.opts.Suffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv", ".parquet":
		return true
	default:
		return false
	}
}

// Schema implements core.Relation.
func (s *S3Source) Schema() *arrow.Schema { return s.schema }

// Next implements core.Relation, reading across object boundaries until
// every listed object is exhausted.
func (s *S3Source) Next(ctx context.Context) (arrow.Record, error) {
	start := time.Now()
	defer func() {
		s.stats.ReadDuration += time.Since(start)
		s.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &S3SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	for {
		if s.current == nil {
			if s.index >= len(s.keys) {
				return nil, io.EOF
			}
			if err := s.openObject(ctx, s.keys[s.index]); err != nil {
				return nil, err
			}
		}

		batch, err := s.current.Next(ctx)
		if err == io.EOF {
			s.closeCurrent()
			s.index++
			continue
		}
		if err != nil {
			return nil, &S3SourceError{Op: "read", Err: err}
		}

		s.stats.RowsRead += batch.NumRows()
		s.stats.BatchesRead++
		return batch, nil
	}
}

func (s *S3Source) openObject(ctx context.Context, key string) error {
	s.stats.CurrentObject = key

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &S3SourceError{Op: "get_object", Err: fmt.Errorf("object %s: %w", key, err)}
	}

	source, err := s.sourceForObject(result.Body, key)
	if err != nil {
		result.Body.Close()
		return &S3SourceError{Op: "open_object", Err: fmt.Errorf("object %s: %w", key, err)}
	}

	s.current = source
	s.stats.ObjectsRead++
	s.stats.ProcessedFiles = append(s.stats.ProcessedFiles, key)
	return nil
}

func (s *S3Source) sourceForObject(body io.ReadCloser, key string) (core.Source, error) {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv":
		return NewCSVSource(body, s.schema, s.opts.CSVOptions...)
	case ".parquet":
		// Parquet needs random access, so the object is buffered in full.
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, err
		}
		source, err := newParquetSource(bytes.NewReader(data), (&ParquetSourceOptions{}).withDefaults())
		if err != nil {
			return nil, err
		}
		if !source.Schema().Equal(s.schema) {
			source.Close()
			return nil, fmt.Errorf("object schema %s does not match declared schema %s",
				source.Schema(), s.schema)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported object format %q", filepath.Ext(key))
	}
}

func (s *S3Source) closeCurrent() {
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

// Close releases the in-flight object reader, if any.
func (s *S3Source) Close() error {
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		if err != nil {
			return &S3SourceError{Op: "close", Err: err}
		}
	}
	return nil
}

// Stats returns statistics about the S3 source's performance.
func (s *S3Source) Stats() S3SourceStats {
	return s.stats
}

// Keys returns the object keys the source will read, in order.
func (s *S3Source) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

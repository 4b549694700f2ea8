// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcs implements the fs.FS interface using Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Scheme is the URL scheme of Cloud Storage object names.
const Scheme = "gs"

// FS opens objects named gs://bucket/object.
type FS struct {
	client *storage.Client
}

// NewFS constructs an FS. Without options, the client uses the
// application default credentials.
func NewFS(ctx context.Context, opts ...option.ClientOption) (*FS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &FS{client: client}, nil
}

// WithToken returns a client option that authenticates with a fixed
// OAuth2 access token, such as the output of
// "gcloud auth print-access-token".
func WithToken(token string) option.ClientOption {
	return option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// Split splits a gs://bucket/object name into its bucket and object.
func Split(name string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(name, Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("%s: not a %s:// name", name, Scheme)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%s: want %s://bucket/object", name, Scheme)
	}
	return bucket, object, nil
}

// Open implements fs.FS.Open.
func (f *FS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, object, err := Split(name)
	if err != nil {
		return nil, err
	}
	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return r, nil
}

// Close closes the underlying client.
func (f *FS) Close() error {
	return f.client.Close()
}

// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage is an interface over the object stores export archives are
// uploaded to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Type identifies the Blobstore to use.
type Type string

const (
	TypeS3         Type = "S3"
	TypeGCS        Type = "GCS"
	TypeFilesystem Type = "FILESYSTEM"
	TypeMemory     Type = "MEMORY"
)

var ErrNotFound = errors.New("storage object not found")

// Blobstore defines the minimum interface for a blob storage system.
type Blobstore interface {
	// Upload streams body into an object. size is -1 when unknown.
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error

	// PresignURL returns a credential free link to the object valid for ttl.
	PresignURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

	// DeleteObject deletes an object or does nothing if the object doesn't exist.
	DeleteObject(ctx context.Context, bucket, key string) error
}

type Config struct {
	Type      Type
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	// Root is the base directory of the filesystem store.
	Root string
}

// New creates the Blobstore selected by cfg.Type.
func New(ctx context.Context, cfg Config) (Blobstore, error) {
	slog.InfoContext(ctx, "rocrate_exporter.storage.blobstore_selected", slog.String("type", string(cfg.Type)))

	switch cfg.Type {
	case TypeS3:
		return NewAWSS3(ctx, cfg)
	case TypeGCS:
		return NewGoogleCloudStorage(ctx)
	case TypeFilesystem:
		return NewFilesystemStorage(ctx, cfg.Root)
	case TypeMemory:
		return NewMemory(ctx)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

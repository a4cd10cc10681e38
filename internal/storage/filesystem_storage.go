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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Compile-time check to verify implements interface.
var _ Blobstore = (*FilesystemStorage)(nil)

// FilesystemStorage keeps objects under root/bucket/key and hands out file:// links.
// Links do not expire.
type FilesystemStorage struct {
	root string
}

func NewFilesystemStorage(_ context.Context, root string) (Blobstore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage root %q: %w", root, err)
	}
	return &FilesystemStorage{root: abs}, nil
}

func (s *FilesystemStorage) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

func (s *FilesystemStorage) Upload(_ context.Context, bucket, key string, body io.Reader, _ int64, _ string) error {
	dst := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage.Upload: %w", err)
	}
	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storage.Upload: %w", err)
	}
	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage.Upload: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("storage.Upload: %w", err)
	}
	return nil
}

func (s *FilesystemStorage) PresignURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	p := s.path(bucket, key)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage.PresignURL: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

func (s *FilesystemStorage) DeleteObject(_ context.Context, bucket, key string) error {
	if err := os.Remove(s.path(bucket, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage.DeleteObject: %w", err)
	}
	return nil
}

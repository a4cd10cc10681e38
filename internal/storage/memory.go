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
	"fmt"
	"io"
	"path"
	"sync"
	"time"
)

// Compile-time check to verify implements interface.
var _ Blobstore = (*Memory)(nil)

// Memory implements Blobstore and provides the ability write files to
// memory.
type Memory struct {
	lock sync.Mutex
	data map[string][]byte
}

// NewMemory creates a Blobstore that writes data in memory.
func NewMemory(_ context.Context) (*Memory, error) {
	return &Memory{
		data: make(map[string][]byte),
	}, nil
}

func (s *Memory) Upload(ctx context.Context, bucket, key string, body io.Reader, _ int64, _ string) error {
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storage.Upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.data[path.Join(bucket, key)] = contents
	return nil
}

func (s *Memory) PresignURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	pth := path.Join(bucket, key)
	if _, ok := s.data[pth]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("memory://%s?expires=%d", pth, int64(ttl.Seconds())), nil
}

// DeleteObject deletes an object. It returns nil if the object was deleted or
// if the object no longer exists.
func (s *Memory) DeleteObject(_ context.Context, bucket, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.data, path.Join(bucket, key))
	return nil
}

// GetObject returns the contents for the given object. If the object does not
// exist, it returns ErrNotFound.
func (s *Memory) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	v, ok := s.data[path.Join(bucket, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Len reports the number of stored objects.
func (s *Memory) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.data)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrIndexNotFound indicates that no index exists under the requested name.
	ErrIndexNotFound = errors.New("index not found")

	// ErrGenerationMismatch indicates stored vectors come from a different embedding model or dimension.
	ErrGenerationMismatch = errors.New("index generation mismatch")

	// ErrDimensionMismatch indicates a query or pair vector has the wrong number of components.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBuildClosed indicates an index builder was used after Commit or Abort.
	ErrBuildClosed = errors.New("index build already closed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)

// GenerationMismatchError reports an index whose embedding generation differs
// from the one a caller expects.
type GenerationMismatchError struct {
	Index    string
	Stored   string // model@dimension recorded with the index
	Current  string // model@dimension of the active embedder or the observed vectors
	Revision string
}

func (e *GenerationMismatchError) Error() string {
	return fmt.Sprintf("%s: index %q (revision %s) was built with %s, current is %s",
		ErrGenerationMismatch, e.Index, e.Revision, e.Stored, e.Current)
}

// Is matches ErrGenerationMismatch.
func (e *GenerationMismatchError) Is(target error) bool {
	return target == ErrGenerationMismatch
}

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d components, got %d", ErrDimensionMismatch, e.Expected, e.Actual)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

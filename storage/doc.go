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


// Package storage provides the storage abstraction layer for phrasebook.
//
// This package defines repository interfaces that decouple the persisted
// index from the retrieval and ingestion logic, together with the binary
// encodings of stored values.
//
// # Constructor Return Type Pattern
//
// Public constructors of storage implementations return these interfaces:
//
//	corpus, err := badger.NewCorpusRepository(backend)  // returns storage.CorpusRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Architecture
//
//   - IndexCatalog: lookup, listing and deletion of named indexes
//   - CorpusRepository: staged builds plus lexical, exact and vector queries
//     against one index revision
//   - IndexBuilder: all-or-nothing staging of a revision
//   - UserPairRepository: the user-contributed partition, keyed by language
//
// An index is addressed by name. Each build writes a fresh revision and
// Commit switches the name to it in one step, so readers see either the old
// revision or the new one and never a mix.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. An IndexBuilder is used by a
// single goroutine.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage

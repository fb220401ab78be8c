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


// Package search implements the hybrid lexical and semantic re-ranker.
//
// A Searcher answers one translation query against one named corpus index:
//   - Keyword search over the query's source column, filtered by a language
//     consistency heuristic, with an exact match forced to the front
//   - Vector search over the embedded column, scored by distance, target
//     length similarity and agreement with the keyword results
//   - User-contributed pairs, always ahead of corpus matches
//
// Both short-lists may be empty. No match is a normal result, not an error.
package search

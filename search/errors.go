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


package search

import "errors"

var (
	// ErrCorpusRepositoryRequired is returned when a corpus repository is not provided.
	ErrCorpusRepositoryRequired = errors.New("corpus repository required")

	// ErrUserRepositoryRequired is returned when a user pair repository is not provided.
	ErrUserRepositoryRequired = errors.New("user pair repository required")

	// ErrIndexNameRequired is returned when no index identifier is given.
	ErrIndexNameRequired = errors.New("index name required")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrUnsupportedDirection is returned when the query languages do not
	// match the two sides of the index.
	ErrUnsupportedDirection = errors.New("unsupported translation direction")

	// ErrInvalidOption is returned when a searcher option is out of range.
	ErrInvalidOption = errors.New("invalid search option")
)

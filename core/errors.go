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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPair indicates a TranslationPair failed validation.
	ErrInvalidPair = errors.New("invalid translation pair")

	// ErrEmptySourceText indicates the SourceText field is empty.
	ErrEmptySourceText = errors.New("source text cannot be empty")

	// ErrEmptyTargetText indicates the TargetText field is empty.
	ErrEmptyTargetText = errors.New("target text cannot be empty")

	// ErrVectorDimension indicates a vector length differs from the index dimension.
	ErrVectorDimension = errors.New("vector dimension mismatch")

	// ErrInvalidLanguage indicates a language tag could not be parsed.
	ErrInvalidLanguage = errors.New("invalid language")

	// ErrSameLanguage indicates a pair or index declares identical languages on both sides.
	ErrSameLanguage = errors.New("source and target languages must differ")

	// ErrInvalidColumn indicates an unknown column name.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrInvalidIndexName indicates an index identifier is empty or malformed.
	ErrInvalidIndexName = errors.New("invalid index name")
)

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

import (
	"fmt"
	"strings"
)

// ValidatePair validates a TranslationPair according to domain rules.
//
// Validation rules:
//   - SourceText and TargetText must not be blank
//   - SourceLang and TargetLang must be set and differ
//   - Vector, when present, must have exactly dim components (dim > 0)
//
// NOT validated:
//   - ID (assigned by storage)
//   - Note (optional)
func ValidatePair(pair *TranslationPair, dim int) error {
	if pair == nil {
		return fmt.Errorf("%w: pair is nil", ErrInvalidPair)
	}

	if strings.TrimSpace(pair.SourceText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPair, ErrEmptySourceText)
	}

	if strings.TrimSpace(pair.TargetText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPair, ErrEmptyTargetText)
	}

	if err := ValidateLanguages(pair.SourceLang, pair.TargetLang); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPair, err)
	}

	if len(pair.Vector) > 0 && dim > 0 && len(pair.Vector) != dim {
		return fmt.Errorf("%w: %w: expected %d, got %d", ErrInvalidPair, ErrVectorDimension, dim, len(pair.Vector))
	}

	return nil
}

// ValidateLanguages checks that both languages are set and distinct.
func ValidateLanguages(source, target Language) error {
	if source == "" || target == "" {
		return fmt.Errorf("%w: language not set", ErrInvalidLanguage)
	}
	if source == target {
		return fmt.Errorf("%w: %s", ErrSameLanguage, source)
	}
	return nil
}

// ValidateIndexName checks that an index identifier is usable as a storage key.
// Names may contain letters, digits, '.', '_' and '-'.
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidIndexName)
	}
	if len(name) > 128 {
		return fmt.Errorf("%w: name longer than 128 bytes", ErrInvalidIndexName)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidIndexName, name, r)
		}
	}
	return nil
}

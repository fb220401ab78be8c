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


package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusRepositoryRequired is returned when a corpus repository is not provided.
	ErrCorpusRepositoryRequired = errors.New("corpus repository required")

	// ErrEmbedderRequired is returned when a request embeds a column but no embedder is configured.
	ErrEmbedderRequired = errors.New("embedder required to embed a column")

	// ErrLineCountMismatch is matched by *LineCountMismatchError.
	ErrLineCountMismatch = errors.New("line count mismatch")

	// ErrMisalignedCorpus is matched by *BlankLineMisalignedError.
	ErrMisalignedCorpus = errors.New("blank lines are not aligned")

	// ErrEmptyCorpus is returned when the corpus files hold no phrases.
	ErrEmptyCorpus = errors.New("corpus is empty")
)

// LineCountMismatchError reports corpus files whose non-blank line counts differ.
// NotesCount is -1 when no notes file was given.
type LineCountMismatchError struct {
	SourceCount int
	TargetCount int
	NotesCount  int
}

func (e *LineCountMismatchError) Error() string {
	if e.NotesCount >= 0 {
		return fmt.Sprintf("%s: source has %d lines, target has %d, notes has %d",
			ErrLineCountMismatch, e.SourceCount, e.TargetCount, e.NotesCount)
	}
	return fmt.Sprintf("%s: source has %d lines, target has %d", ErrLineCountMismatch, e.SourceCount, e.TargetCount)
}

// Is matches ErrLineCountMismatch.
func (e *LineCountMismatchError) Is(target error) bool {
	return target == ErrLineCountMismatch
}

// BlankLineMisalignedError reports a line that is blank in one file but not
// in another although the counts agree.
type BlankLineMisalignedError struct {
	Line int // 1-based
}

func (e *BlankLineMisalignedError) Error() string {
	return fmt.Sprintf("%s: line %d is blank in some files only", ErrMisalignedCorpus, e.Line)
}

// Is matches ErrMisalignedCorpus.
func (e *BlankLineMisalignedError) Is(target error) bool {
	return target == ErrMisalignedCorpus
}

// RowError attributes a failure to one corpus row.
type RowError struct {
	Line int // 1-based line in the corpus files
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

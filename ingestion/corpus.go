package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 1 << 20

// Row is one aligned entry of a corpus.
type Row struct {
	Line   int // 1-based line number in the corpus files
	Source string
	Target string
	Note   string
}

// Corpus is the validated content of two or three aligned files.
type Corpus struct {
	Rows     []Row
	HasNotes bool
}

// ReadCorpus reads and validates line-aligned corpus files. notesPath may be empty.
// Nothing is returned unless every file agrees on its phrase count and blank positions.
func ReadCorpus(sourcePath, targetPath, notesPath string) (*Corpus, error) {
	source, err := readFileLines(sourcePath)
	if err != nil {
		return nil, err
	}
	target, err := readFileLines(targetPath)
	if err != nil {
		return nil, err
	}
	var notes []string
	if notesPath != "" {
		if notes, err = readFileLines(notesPath); err != nil {
			return nil, err
		}
	}
	return alignLines(source, target, notes, notesPath != "")
}

// ReadCorpusFrom is ReadCorpus over readers. notes may be nil.
func ReadCorpusFrom(source, target, notes io.Reader) (*Corpus, error) {
	src, err := readLines(source)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	tgt, err := readLines(target)
	if err != nil {
		return nil, fmt.Errorf("read target: %w", err)
	}
	var nts []string
	if notes != nil {
		if nts, err = readLines(notes); err != nil {
			return nil, fmt.Errorf("read notes: %w", err)
		}
	}
	return alignLines(src, tgt, nts, notes != nil)
}

func readFileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// readLines returns every line trimmed of surrounding whitespace and of a leading BOM.
func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if len(lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func countNonBlank(lines []string) int {
	n := 0
	for _, line := range lines {
		if line != "" {
			n++
		}
	}
	return n
}

// alignLines checks counts first, then that blank lines sit at the same
// positions. Missing lines past the end of a file count as blank.
func alignLines(source, target, notes []string, hasNotes bool) (*Corpus, error) {
	sourceCount, targetCount := countNonBlank(source), countNonBlank(target)
	notesCount := -1
	if hasNotes {
		notesCount = countNonBlank(notes)
	}
	if sourceCount != targetCount || (hasNotes && notesCount != sourceCount) {
		return nil, &LineCountMismatchError{
			SourceCount: sourceCount,
			TargetCount: targetCount,
			NotesCount:  notesCount,
		}
	}

	at := func(lines []string, i int) string {
		if i < len(lines) {
			return lines[i]
		}
		return ""
	}

	n := max(len(source), len(target), len(notes))
	rows := make([]Row, 0, sourceCount)
	for i := range n {
		src, tgt := at(source, i), at(target, i)
		blank := src == ""
		if (tgt == "") != blank {
			return nil, &BlankLineMisalignedError{Line: i + 1}
		}
		note := ""
		if hasNotes {
			note = at(notes, i)
			if (note == "") != blank {
				return nil, &BlankLineMisalignedError{Line: i + 1}
			}
		}
		if blank {
			continue
		}
		rows = append(rows, Row{Line: i + 1, Source: src, Target: tgt, Note: note})
	}
	return &Corpus{Rows: rows, HasNotes: hasNotes}, nil
}

package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Vocab maps a WordPiece token to its model input ID.
type Vocab map[string]int64

// LoadVocab reads a vocab.txt file with one token per line.
// The zero-based line number is the token ID.
func LoadVocab(path string) (Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab reads a vocabulary with one token per line.
func ReadVocab(r io.Reader) (Vocab, error) {
	vocab := make(Vocab)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(vocab) == 0 {
		return nil, ErrEmptyVocab
	}
	return vocab, nil
}

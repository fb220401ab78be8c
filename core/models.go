package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for translation pairs.
// Corpus pairs receive sequential IDs within an index revision; user pairs
// receive content-based IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Column selects one side of a translation pair.
type Column uint8

const (
	// ColumnNone means no column (used when nothing was embedded).
	ColumnNone Column = iota
	// ColumnSource is the source-language side of a pair.
	ColumnSource
	// ColumnTarget is the target-language side of a pair.
	ColumnTarget
)

// String returns the lowercase name of the column.
func (c Column) String() string {
	switch c {
	case ColumnSource:
		return "source"
	case ColumnTarget:
		return "target"
	default:
		return "none"
	}
}

// Other returns the opposite column. ColumnNone maps to itself.
func (c Column) Other() Column {
	switch c {
	case ColumnSource:
		return ColumnTarget
	case ColumnTarget:
		return ColumnSource
	default:
		return ColumnNone
	}
}

// ParseColumn parses "source", "target" or "none".
func ParseColumn(s string) (Column, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "src":
		return ColumnSource, nil
	case "target", "tgt":
		return ColumnTarget, nil
	case "none", "":
		return ColumnNone, nil
	}
	return ColumnNone, ErrInvalidColumn
}

// TranslationPair is the atomic unit of a corpus.
type TranslationPair struct {
	Id              ID
	SourceText      string
	TargetText      string
	Note            string    // Optional annotation from a third aligned file
	Vector          []float32 // Embedding of the embedded column (not populated on reads)
	UserContributed bool
	SourceLang      Language
	TargetLang      Language
	InsertedAt      time.Time
}

// Text returns the text stored in the given column.
func (p *TranslationPair) Text(c Column) string {
	switch c {
	case ColumnSource:
		return p.SourceText
	case ColumnTarget:
		return p.TargetText
	}
	return ""
}

// Oriented returns the pair as seen from a query whose source language is
// source. If source is the pair's target language, the sides are swapped on a
// copy. The second result reports whether the pair covers that language.
func (p *TranslationPair) Oriented(source Language) (*TranslationPair, bool) {
	switch source {
	case p.SourceLang:
		return p, true
	case p.TargetLang:
		swapped := *p
		swapped.SourceText, swapped.TargetText = p.TargetText, p.SourceText
		swapped.SourceLang, swapped.TargetLang = p.TargetLang, p.SourceLang
		return &swapped, true
	}
	return nil, false
}

// Signal records which retrieval signals produced a candidate.
type Signal uint8

const (
	// SignalLexical marks a candidate found by keyword search.
	SignalLexical Signal = 1 << iota
	// SignalSemantic marks a candidate found by vector search.
	SignalSemantic
	// SignalExact marks a candidate whose source text equals the query.
	SignalExact
	// SignalUser marks a user-contributed candidate.
	SignalUser
)

// Has reports whether all bits in s2 are set.
func (s Signal) Has(s2 Signal) bool {
	return s&s2 == s2
}

// Candidate is a search result produced for a single query. Never persisted.
type Candidate struct {
	Pair         *TranslationPair
	LexicalRank  int     // 1-based native lexical rank, 0 when not a lexical hit
	LexicalScore float64 // native relevance (BM25), higher is better
	Distance     float32 // cosine distance, valid when SignalSemantic is set
	Score        float64 // composite score, lower is better
	Signals      Signal
}

// ColumnStats holds aggregate term statistics for one indexed column.
type ColumnStats struct {
	Docs  uint64
	Terms uint64
}

// AverageLength returns the mean document length in terms.
func (s ColumnStats) AverageLength() float64 {
	if s.Docs == 0 {
		return 0
	}
	return float64(s.Terms) / float64(s.Docs)
}

// IndexInfo describes a persisted corpus index and its active revision.
type IndexInfo struct {
	Name        string
	SourceLang  Language
	TargetLang  Language
	Embedded    Column // Which column carries vectors
	ModelID     string // Embedding model that produced the vectors
	Dimension   int
	Count       int
	Revision    string
	SourceStats ColumnStats
	TargetStats ColumnStats
	CreatedAt   time.Time
}

// ColumnFor returns the column holding text in the given language.
func (i *IndexInfo) ColumnFor(l Language) (Column, bool) {
	switch l {
	case i.SourceLang:
		return ColumnSource, true
	case i.TargetLang:
		return ColumnTarget, true
	}
	return ColumnNone, false
}

// LanguageOf returns the language of the given column.
func (i *IndexInfo) LanguageOf(c Column) Language {
	if c == ColumnTarget {
		return i.TargetLang
	}
	return i.SourceLang
}

// Stats returns the term statistics of a column.
func (i *IndexInfo) Stats(c Column) ColumnStats {
	if c == ColumnTarget {
		return i.TargetStats
	}
	return i.SourceStats
}

// Generation identifies the vector space of the index.
func (i *IndexInfo) Generation() Generation {
	return Generation{ModelID: i.ModelID, Dimension: i.Dimension}
}

// Generation is the embedding space shared by all vectors of an index revision.
type Generation struct {
	ModelID   string
	Dimension int
}

// String renders the generation as model@dimension.
func (g Generation) String() string {
	return g.ModelID + "@" + strconv.Itoa(g.Dimension)
}

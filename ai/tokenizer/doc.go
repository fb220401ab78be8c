// Package tokenizer implements the BERT WordPiece tokenizer used by local
// sentence-embedding models.
//
// Text is cleaned, lowercased with accents stripped (for uncased models),
// split on whitespace, punctuation and CJK characters, and then split into
// subword pieces by greedy longest-match against vocab.txt. Encode produces a
// fixed-length input with [CLS], [SEP], [PAD] and an attention mask.
package tokenizer

package search

import "github.com/poiesic/phrasebook/core"

// pairKey identifies a pair by its folded texts, so a corpus entry and a
// user entry with the same content compare equal.
func pairKey(p *core.TranslationPair) string {
	return core.FoldText(p.SourceText) + "\x00" + core.FoldText(p.TargetText)
}

// isExact reports whether the pair's source text equals the folded query.
func isExact(p *core.TranslationPair, foldedQuery string) bool {
	return foldedQuery != "" && core.FoldText(p.SourceText) == foldedQuery
}

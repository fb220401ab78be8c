package badger

import (
	"cmp"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/phrasebook/core"
	"github.com/poiesic/phrasebook/storage"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// rankBM25 scores every document posted under any of terms and returns the
// best limit hits, ties broken by ascending ID. postingPrefix maps a term to
// the key prefix of its postings. A non-nil accept drops documents before the
// limit applies.
func rankBM25(tx *badger.Txn, postingPrefix func(term string) []byte, terms []string, stats core.ColumnStats, limit int, accept func(core.ID) (bool, error)) ([]storage.LexicalHit, error) {
	if len(terms) == 0 || limit <= 0 || stats.Docs == 0 {
		return []storage.LexicalHit{}, nil
	}

	n := float64(stats.Docs)
	avgLen := stats.AverageLength()
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[core.ID]float64)
	type posting struct {
		id core.ID
		storage.Posting
	}

	for _, term := range uniqueTerms(terms) {
		var postings []posting
		opts := badger.DefaultIteratorOptions
		opts.Prefix = postingPrefix(term)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			id := idFromKey(item.Key())
			err := item.Value(func(val []byte) error {
				p, err := storage.UnmarshalPosting(val)
				if err != nil {
					return err
				}
				postings = append(postings, posting{id: id, Posting: p})
				return nil
			})
			if err != nil {
				iter.Close()
				return nil, err
			}
		}
		iter.Close()

		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			tf := float64(p.TermFreq)
			norm := tf + bm25K1*(1-bm25B+bm25B*float64(p.DocLength)/avgLen)
			scores[p.id] += idf * tf * (bm25K1 + 1) / norm
		}
	}

	hits := make([]storage.LexicalHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, storage.LexicalHit{Id: id, Score: score})
	}
	slices.SortFunc(hits, func(a, b storage.LexicalHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	if accept != nil {
		kept := hits[:0]
		for _, hit := range hits {
			if len(kept) == limit {
				break
			}
			ok, err := accept(hit.Id)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, hit)
			}
		}
		hits = kept
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// termFrequencies counts each distinct term.
func termFrequencies(terms []string) map[string]uint64 {
	tf := make(map[string]uint64, len(terms))
	for _, t := range terms {
		if t != "" {
			tf[t]++
		}
	}
	return tf
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

package badger

import (
	"encoding/binary"

	"github.com/poiesic/phrasebook/core"
)

// Key prefixes for different data types
const (
	indexPrefix     = "idx:"
	revisionPrefix  = "rev:"
	buildPrefix     = "build:"
	userPairPrefix  = "usr:pair:"
	userTermsPrefix = "usr:terms:"
	userPostPrefix  = "usr:post:"
	userExactPrefix = "usr:exact:"
	userStatsPrefix = "usr:stats:"

	pairSegment  = "pair:"
	postSegment  = "post:"
	exactSegment = "exact:"
	vecSegment   = "vec:"
	graphSegment = "hnsw:"
)

// makeIndexKey generates the key holding the active IndexInfo of a named index.
func makeIndexKey(name string) []byte {
	return []byte(indexPrefix + name)
}

// makeRevisionPrefix generates the prefix shared by every key of a revision.
// Format: rev:<revision>:
func makeRevisionPrefix(revision string) []byte {
	return []byte(revisionPrefix + revision + ":")
}

func makeBuildKey(revision string) []byte {
	return []byte(buildPrefix + revision)
}

// appendID writes id in BigEndian order so lexicographic sort matches numeric order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idFromKey reads the trailing 8-byte ID of a key.
func idFromKey(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

func makeRevisionSegment(revision, segment string) []byte {
	prefix := makeRevisionPrefix(revision)
	return append(prefix, segment...)
}

// makePairPrefix format: rev:<revision>:pair:
func makePairPrefix(revision string) []byte {
	return makeRevisionSegment(revision, pairSegment)
}

// makePairKey format: rev:<revision>:pair:<id>
func makePairKey(revision string, id core.ID) []byte {
	return appendID(makePairPrefix(revision), id)
}

// makePostingPrefix format: rev:<revision>:post:<column>:<term>\x00
func makePostingPrefix(revision string, column core.Column, term string) []byte {
	buf := makeRevisionSegment(revision, postSegment)
	buf = append(buf, column.String()...)
	buf = append(buf, ':')
	buf = append(buf, term...)
	return append(buf, 0)
}

// makePostingKey format: rev:<revision>:post:<column>:<term>\x00<id>
func makePostingKey(revision string, column core.Column, term string, id core.ID) []byte {
	return appendID(makePostingPrefix(revision, column, term), id)
}

// makeExactPrefix format: rev:<revision>:exact:<column>:<hash of folded text>
func makeExactPrefix(revision string, column core.Column, text string) []byte {
	buf := makeRevisionSegment(revision, exactSegment)
	buf = append(buf, column.String()...)
	buf = append(buf, ':')
	return appendID(buf, exactHash(text))
}

// makeExactKey format: rev:<revision>:exact:<column>:<hash><id>
func makeExactKey(revision string, column core.Column, text string, id core.ID) []byte {
	return appendID(makeExactPrefix(revision, column, text), id)
}

// makeVectorPrefix format: rev:<revision>:vec:
func makeVectorPrefix(revision string) []byte {
	return makeRevisionSegment(revision, vecSegment)
}

// makeVectorKey format: rev:<revision>:vec:<id>
func makeVectorKey(revision string, id core.ID) []byte {
	return appendID(makeVectorPrefix(revision), id)
}

// makeGraphPrefix format: rev:<revision>:hnsw:
func makeGraphPrefix(revision string) []byte {
	return makeRevisionSegment(revision, graphSegment)
}

// makeGraphChunkKey format: rev:<revision>:hnsw:<chunk>
func makeGraphChunkKey(revision string, chunk uint32) []byte {
	return binary.BigEndian.AppendUint32(makeGraphPrefix(revision), chunk)
}

func makeUserPairKey(id core.ID) []byte {
	return appendID([]byte(userPairPrefix), id)
}

func makeUserTermsKey(id core.ID) []byte {
	return appendID([]byte(userTermsPrefix), id)
}

// makeUserPostingPrefix format: usr:post:<language>:<term>\x00
func makeUserPostingPrefix(language core.Language, term string) []byte {
	buf := []byte(userPostPrefix)
	buf = append(buf, language...)
	buf = append(buf, ':')
	buf = append(buf, term...)
	return append(buf, 0)
}

func makeUserPostingKey(language core.Language, term string, id core.ID) []byte {
	return appendID(makeUserPostingPrefix(language, term), id)
}

// makeUserExactPrefix format: usr:exact:<language>:<hash of folded text>
func makeUserExactPrefix(language core.Language, text string) []byte {
	buf := []byte(userExactPrefix)
	buf = append(buf, language...)
	buf = append(buf, ':')
	return appendID(buf, exactHash(text))
}

func makeUserExactKey(language core.Language, text string, id core.ID) []byte {
	return appendID(makeUserExactPrefix(language, text), id)
}

func makeUserStatsKey(language core.Language) []byte {
	return []byte(userStatsPrefix + string(language))
}

// exactHash keys exact-match lookups by a fixed-size digest of the folded text.
// Readers compare the stored text, so digest collisions are harmless.
func exactHash(text string) core.ID {
	return core.IDFromContent(core.FoldText(text))
}

package storage

import (
	"testing"
	"time"

	"github.com/poiesic/phrasebook/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{0, 42, 18446744073709551615, core.IDFromContent("test content")} {
		decoded, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}

	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestPairRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	pair := &core.TranslationPair{
		Id:              7,
		SourceText:      "Où est la gare ?",
		TargetText:      "Where is the station?",
		Note:            "oo eh la gar",
		Vector:          []float32{1, 2, 3},
		UserContributed: true,
		SourceLang:      "fr",
		TargetLang:      "en",
		InsertedAt:      now,
	}

	decoded, err := UnmarshalPair(MarshalPair(pair))
	require.NoError(t, err)

	want := *pair
	want.Vector = nil
	assert.Equal(t, &want, decoded)
}

func TestPairZeroTime(t *testing.T) {
	decoded, err := UnmarshalPair(MarshalPair(&core.TranslationPair{Id: 1, SourceText: "a", TargetText: "b"}))
	require.NoError(t, err)
	assert.True(t, decoded.InsertedAt.IsZero())
	assert.False(t, decoded.UserContributed)
}

func TestUnmarshalPairTruncated(t *testing.T) {
	data := MarshalPair(&core.TranslationPair{Id: 1, SourceText: "hello", TargetText: "bonjour"})

	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalPair(data[:cut])
		assert.ErrorIs(t, err, ErrSerializationFailed, "cut at %d", cut)
	}
}

func TestUnmarshalPairUnknownVersion(t *testing.T) {
	data := MarshalPair(&core.TranslationPair{Id: 1, SourceText: "a", TargetText: "b"})
	data[0] = 9

	_, err := UnmarshalPair(data)
	require.ErrorIs(t, err, ErrSerializationFailed)
	assert.Contains(t, err.Error(), "version 9")
}

func TestIndexInfoRoundTrip(t *testing.T) {
	info := &core.IndexInfo{
		Name:        "phrases",
		SourceLang:  "en",
		TargetLang:  "fr",
		Embedded:    core.ColumnTarget,
		ModelID:     "minilm/model",
		Dimension:   384,
		Count:       1200,
		Revision:    "6b1f3c1e-3f5b-4a55-9d1c-2a1d7a3c9e10",
		SourceStats: core.ColumnStats{Docs: 1200, Terms: 4800},
		TargetStats: core.ColumnStats{Docs: 1200, Terms: 5100},
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalIndexInfo(MarshalIndexInfo(info))
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.0e-7, 0}
	decoded, err := UnmarshalVector(MarshalVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	empty, err := UnmarshalVector(MarshalVector(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)

	data := MarshalVector(vec)
	_, err = UnmarshalVector(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestPostingAndStats(t *testing.T) {
	p, err := UnmarshalPosting(MarshalPosting(Posting{TermFreq: 3, DocLength: 11}))
	require.NoError(t, err)
	assert.Equal(t, Posting{TermFreq: 3, DocLength: 11}, p)

	s, err := UnmarshalColumnStats(MarshalColumnStats(core.ColumnStats{Docs: 2, Terms: 9}))
	require.NoError(t, err)
	assert.Equal(t, core.ColumnStats{Docs: 2, Terms: 9}, s)
}

func TestBuildRecordRoundTrip(t *testing.T) {
	rec := &BuildRecord{
		Revision:  "r1",
		Index:     "phrases",
		State:     BuildRetired,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	decoded, err := UnmarshalBuildRecord(MarshalBuildRecord(rec))
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestErrorTypes(t *testing.T) {
	genErr := &GenerationMismatchError{Index: "phrases", Stored: "a@384", Current: "b@768", Revision: "r1"}
	assert.ErrorIs(t, genErr, ErrGenerationMismatch)
	assert.Contains(t, genErr.Error(), "a@384")
	assert.Contains(t, genErr.Error(), "b@768")

	dimErr := &DimensionMismatchError{Expected: 384, Actual: 3}
	assert.ErrorIs(t, dimErr, ErrDimensionMismatch)
	assert.Contains(t, dimErr.Error(), "384")
}

func TestTermsRoundTrip(t *testing.T) {
	src, tgt, err := UnmarshalTerms(MarshalTerms([]string{"bonjour", "ami"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"bonjour", "ami"}, src)
	assert.Empty(t, tgt)

	data := MarshalTerms([]string{"bonjour"}, []string{"hello"})
	_, _, err = UnmarshalTerms(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/phrasebook/core"
)

// Encodings are prefixed with a format version so stored values can evolve.
const formatVersion uint64 = 1

// Posting is the stored value of a lexical posting key.
type Posting struct {
	TermFreq  uint64
	DocLength uint64
}

type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) uint64(v uint64) { e.n += varint.Uint64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int(v int)       { e.n += varint.Int.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int64(v int64)   { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) string(v string) { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) bool(v bool) {
	if v {
		e.bs[e.n] = 1
	} else {
		e.bs[e.n] = 0
	}
	e.n++
}
func (e *encoder) time(v time.Time) { e.int64(timeMicros(v)) }

type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	if d.n >= len(d.bs) {
		d.err = ErrTruncatedData
		return false
	}
	v := d.bs[d.n]
	d.n++
	return v == 1
}

func (d *decoder) time() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (d *decoder) version() {
	if v := d.uint64(); d.err == nil && v != formatVersion {
		d.err = fmt.Errorf("unsupported format version %d", v)
	}
}

func (d *decoder) finish(what string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, d.err)
	}
	return nil
}

func timeMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := d.uint64()
	return core.ID(id), d.finish("id")
}

// MarshalPair serializes a TranslationPair to bytes. The vector is stored separately.
func MarshalPair(pair *core.TranslationPair) []byte {
	size := varint.Uint64.Size(formatVersion) +
		varint.Uint64.Size(uint64(pair.Id)) +
		ord.String.Size(pair.SourceText) +
		ord.String.Size(pair.TargetText) +
		ord.String.Size(pair.Note) +
		1 +
		ord.String.Size(string(pair.SourceLang)) +
		ord.String.Size(string(pair.TargetLang)) +
		varint.Int64.Size(timeMicros(pair.InsertedAt))

	e := encoder{bs: make([]byte, size)}
	e.uint64(formatVersion)
	e.uint64(uint64(pair.Id))
	e.string(pair.SourceText)
	e.string(pair.TargetText)
	e.string(pair.Note)
	e.bool(pair.UserContributed)
	e.string(string(pair.SourceLang))
	e.string(string(pair.TargetLang))
	e.time(pair.InsertedAt)
	return e.bs[:e.n]
}

// UnmarshalPair deserializes a TranslationPair from bytes.
func UnmarshalPair(data []byte) (*core.TranslationPair, error) {
	d := decoder{bs: data}
	d.version()
	pair := &core.TranslationPair{
		Id:              core.ID(d.uint64()),
		SourceText:      d.string(),
		TargetText:      d.string(),
		Note:            d.string(),
		UserContributed: d.bool(),
		SourceLang:      core.Language(d.string()),
		TargetLang:      core.Language(d.string()),
		InsertedAt:      d.time(),
	}
	if err := d.finish("translation pair"); err != nil {
		return nil, err
	}
	return pair, nil
}

// MarshalIndexInfo serializes an IndexInfo to bytes.
func MarshalIndexInfo(info *core.IndexInfo) []byte {
	size := varint.Uint64.Size(formatVersion) +
		ord.String.Size(info.Name) +
		ord.String.Size(string(info.SourceLang)) +
		ord.String.Size(string(info.TargetLang)) +
		varint.Uint64.Size(uint64(info.Embedded)) +
		ord.String.Size(info.ModelID) +
		varint.Int.Size(info.Dimension) +
		varint.Int.Size(info.Count) +
		ord.String.Size(info.Revision) +
		columnStatsSize(info.SourceStats) +
		columnStatsSize(info.TargetStats) +
		varint.Int64.Size(timeMicros(info.CreatedAt))

	e := encoder{bs: make([]byte, size)}
	e.uint64(formatVersion)
	e.string(info.Name)
	e.string(string(info.SourceLang))
	e.string(string(info.TargetLang))
	e.uint64(uint64(info.Embedded))
	e.string(info.ModelID)
	e.int(info.Dimension)
	e.int(info.Count)
	e.string(info.Revision)
	e.uint64(info.SourceStats.Docs)
	e.uint64(info.SourceStats.Terms)
	e.uint64(info.TargetStats.Docs)
	e.uint64(info.TargetStats.Terms)
	e.time(info.CreatedAt)
	return e.bs[:e.n]
}

// UnmarshalIndexInfo deserializes an IndexInfo from bytes.
func UnmarshalIndexInfo(data []byte) (*core.IndexInfo, error) {
	d := decoder{bs: data}
	d.version()
	info := &core.IndexInfo{
		Name:       d.string(),
		SourceLang: core.Language(d.string()),
		TargetLang: core.Language(d.string()),
		Embedded:   core.Column(d.uint64()),
		ModelID:    d.string(),
		Dimension:  d.int(),
		Count:      d.int(),
		Revision:   d.string(),
	}
	info.SourceStats = core.ColumnStats{Docs: d.uint64(), Terms: d.uint64()}
	info.TargetStats = core.ColumnStats{Docs: d.uint64(), Terms: d.uint64()}
	info.CreatedAt = d.time()
	if err := d.finish("index info"); err != nil {
		return nil, err
	}
	return info, nil
}

func columnStatsSize(s core.ColumnStats) int {
	return varint.Uint64.Size(s.Docs) + varint.Uint64.Size(s.Terms)
}

// MarshalColumnStats serializes ColumnStats to bytes.
func MarshalColumnStats(s core.ColumnStats) []byte {
	e := encoder{bs: make([]byte, columnStatsSize(s))}
	e.uint64(s.Docs)
	e.uint64(s.Terms)
	return e.bs[:e.n]
}

// UnmarshalColumnStats deserializes ColumnStats from bytes.
func UnmarshalColumnStats(data []byte) (core.ColumnStats, error) {
	d := decoder{bs: data}
	s := core.ColumnStats{Docs: d.uint64(), Terms: d.uint64()}
	return s, d.finish("column stats")
}

// MarshalPosting serializes a Posting to bytes.
func MarshalPosting(p Posting) []byte {
	e := encoder{bs: make([]byte, varint.Uint64.Size(p.TermFreq)+varint.Uint64.Size(p.DocLength))}
	e.uint64(p.TermFreq)
	e.uint64(p.DocLength)
	return e.bs[:e.n]
}

// UnmarshalPosting deserializes a Posting from bytes.
func UnmarshalPosting(data []byte) (Posting, error) {
	d := decoder{bs: data}
	p := Posting{TermFreq: d.uint64(), DocLength: d.uint64()}
	return p, d.finish("posting")
}

// MarshalVector serializes a vector as its length followed by raw float32 components.
func MarshalVector(vec []float32) []byte {
	size := varint.Int.Size(len(vec))
	for _, v := range vec {
		size += raw.Float32.Size(v)
	}
	e := encoder{bs: make([]byte, size)}
	e.int(len(vec))
	for _, v := range vec {
		e.n += raw.Float32.Marshal(v, e.bs[e.n:])
	}
	return e.bs[:e.n]
}

// UnmarshalVector deserializes a vector written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	d := decoder{bs: data}
	length := d.int()
	if d.err == nil && (length < 0 || length*4 > len(data)-d.n) {
		d.err = ErrTruncatedData
	}
	if err := d.finish("vector"); err != nil {
		return nil, err
	}
	vec := make([]float32, length)
	for i := range vec {
		v, n, err := raw.Float32.Unmarshal(data[d.n:])
		if err != nil {
			return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
		}
		vec[i] = v
		d.n += n
	}
	return vec, nil
}

// MarshalBuildRecord serializes a BuildRecord to bytes.
func MarshalBuildRecord(r *BuildRecord) []byte {
	size := varint.Uint64.Size(formatVersion) +
		ord.String.Size(r.Revision) +
		ord.String.Size(r.Index) +
		varint.Uint64.Size(uint64(r.State)) +
		varint.Int64.Size(timeMicros(r.StartedAt))

	e := encoder{bs: make([]byte, size)}
	e.uint64(formatVersion)
	e.string(r.Revision)
	e.string(r.Index)
	e.uint64(uint64(r.State))
	e.time(r.StartedAt)
	return e.bs[:e.n]
}

// UnmarshalBuildRecord deserializes a BuildRecord from bytes.
func UnmarshalBuildRecord(data []byte) (*BuildRecord, error) {
	d := decoder{bs: data}
	d.version()
	r := &BuildRecord{
		Revision:  d.string(),
		Index:     d.string(),
		State:     BuildState(d.uint64()),
		StartedAt: d.time(),
	}
	if err := d.finish("build record"); err != nil {
		return nil, err
	}
	return r, nil
}

func stringsSize(values []string) int {
	size := varint.Int.Size(len(values))
	for _, v := range values {
		size += ord.String.Size(v)
	}
	return size
}

// MarshalTerms serializes the analyzed terms of both sides of a pair.
func MarshalTerms(source, target []string) []byte {
	e := encoder{bs: make([]byte, stringsSize(source)+stringsSize(target))}
	for _, values := range [][]string{source, target} {
		e.int(len(values))
		for _, v := range values {
			e.string(v)
		}
	}
	return e.bs[:e.n]
}

// UnmarshalTerms deserializes terms written by MarshalTerms.
func UnmarshalTerms(data []byte) (source, target []string, err error) {
	d := decoder{bs: data}
	read := func() []string {
		n := d.int()
		if d.err == nil && (n < 0 || n > len(data)) {
			d.err = ErrTruncatedData
		}
		if d.err != nil {
			return nil
		}
		values := make([]string, 0, n)
		for range n {
			values = append(values, d.string())
		}
		return values
	}
	source = read()
	target = read()
	if err := d.finish("terms"); err != nil {
		return nil, nil, err
	}
	return source, target, nil
}

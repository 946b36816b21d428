package storage

import (
	"strings"
	"testing"

	"github.com/poiesic/kbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSerialization(t *testing.T) {
	r := &Record{
		ID: "doc_1700000000000_0",
		Chunk: core.Chunk{
			Content:  "新生儿一天喂奶8到12次。",
			Metadata: core.Metadata{SourcePath: "data/faq/feeding.md", DocType: "faq", Filename: "feeding.md"},
			Ordinal:  2,
		},
		SourceID: core.SourceID("data/faq/feeding.md"),
		Vector:   []float32{0.6, 0.8},
	}

	data, err := MarshalRecord(r)
	require.NoError(t, err)
	assert.Len(t, data, RecordMUS.Size(*r))

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)

	n, err := RecordMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestMarshalRecord_Invalid(t *testing.T) {
	_, err := MarshalRecord(nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = MarshalRecord(&Record{Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = MarshalRecord(&Record{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestUnmarshalRecord_Corrupt(t *testing.T) {
	data, err := MarshalRecord(&Record{ID: "a", Vector: []float32{0.6, 0.8}})
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := UnmarshalRecord(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := UnmarshalRecord(append(append([]byte{}, data...), 0))
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := UnmarshalRecord(nil)
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})
}

func TestValidateCollectionName(t *testing.T) {
	for _, name := range []string{"dream_business_knowledge", "kb-1", "a", "baby.care"} {
		assert.NoError(t, ValidateCollectionName(name), name)
	}
	for _, name := range []string{"", "has space", "with:colon", "_leading", strings.Repeat("a", 64)} {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}

func TestValidateMetadata(t *testing.T) {
	assert.NoError(t, ValidateMetadata(nil))
	assert.NoError(t, ValidateMetadata(map[string]string{"distance": "cosine"}))
	assert.ErrorIs(t, ValidateMetadata(map[string]string{"distance": "l2"}), ErrUnsupportedMetadata)
	assert.ErrorIs(t, ValidateMetadata(map[string]string{"hnsw:space": "cosine"}), ErrUnsupportedMetadata)

	assert.NoError(t, ValidateMetadata(map[string]string{
		MetadataDistance:       DistanceCosine,
		MetadataEmbeddingModel: "all-minilm",
		MetadataDimensions:     "384",
	}))
	assert.ErrorIs(t, ValidateMetadata(map[string]string{MetadataEmbeddingModel: ""}), ErrUnsupportedMetadata)
	assert.ErrorIs(t, ValidateMetadata(map[string]string{MetadataDimensions: "0"}), ErrUnsupportedMetadata)
	assert.ErrorIs(t, ValidateMetadata(map[string]string{MetadataDimensions: "many"}), ErrUnsupportedMetadata)
}

func TestFilter(t *testing.T) {
	r := &Record{Chunk: core.Chunk{Metadata: core.Metadata{DocType: "framework"}}}
	assert.True(t, Filter{}.Matches(r))
	assert.True(t, Filter{DocType: "framework"}.Matches(r))
	assert.False(t, Filter{DocType: "benchmark"}.Matches(r))
}

func TestRankMatches(t *testing.T) {
	matches := []*Match{
		{Record: &Record{ID: "b"}, Score: 0.5},
		{Record: &Record{ID: "a"}, Score: 0.5},
		{Record: &Record{ID: "c"}, Score: 0.9},
		{Record: &Record{ID: "d"}, Score: -0.1},
	}

	ranked := RankMatches(matches, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Record.ID)
	assert.Equal(t, "a", ranked[1].Record.ID)
	assert.Equal(t, "b", ranked[2].Record.ID)

	assert.Len(t, RankMatches(matches, 0), 4)
}

func TestDotProduct(t *testing.T) {
	got, err := DotProduct([]float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 11.0, got, 1e-6)

	t.Run("length mismatch", func(t *testing.T) {
		_, err := DotProduct([]float32{1, 2, 9}, []float32{3})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		_, err = DotProduct(nil, []float32{1})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

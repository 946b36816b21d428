package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_SingleDocument(t *testing.T) {
	ix := Fit([]string{"新生儿一天喂奶8到12次。"}, DefaultOptions())
	require.Equal(t, 1, ix.Len())
	assert.Positive(t, ix.VocabularySize(), "a one document corpus keeps its vocabulary")

	hits := ix.Query("喂奶次数", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Doc)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestFit_Empty(t *testing.T) {
	ix := Fit(nil, DefaultOptions())
	assert.Zero(t, ix.Len())
	assert.Empty(t, ix.Query("anything", 5))
}

func TestQuery_Ranking(t *testing.T) {
	corpus := []string{
		"商业模式 单位经济学 盈利能力",
		"增长策略 客户获取 AARRR漏斗",
		"竞争优势 护城河 可防御性",
		"商业模式 财务模型",
	}
	ix := Fit(corpus, DefaultOptions())

	hits := ix.Query("商业模式 单位经济学", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Doc)
	assert.Equal(t, 3, hits[1].Doc)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	for _, h := range hits {
		assert.LessOrEqual(t, h.Score, 1.0+1e-9)
	}
}

func TestQuery_OnlyPositiveAndTruncated(t *testing.T) {
	corpus := []string{"alpha beta", "alpha gamma", "alpha delta", "epsilon zeta"}
	ix := Fit(corpus, DefaultOptions())

	hits := ix.Query("alpha", 0)
	assert.Len(t, hits, 3)

	hits = ix.Query("alpha", 2)
	assert.Len(t, hits, 2)

	assert.Empty(t, ix.Query("omega", 5))
	assert.Empty(t, ix.Query("   ", 5))
}

func TestQuery_TiesKeepCorpusOrder(t *testing.T) {
	ix := Fit([]string{"same words", "same words", "other text"}, DefaultOptions())

	hits := ix.Query("same words", 0)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Doc)
	assert.Equal(t, 1, hits[1].Doc)
	assert.InDelta(t, hits[0].Score, hits[1].Score, 1e-12)
}

func TestFit_MaxDFPruning(t *testing.T) {
	corpus := []string{"common alpha", "common beta", "common gamma"}
	ix := Fit(corpus, DefaultOptions())

	assert.NotContains(t, ix.Vocabulary(), "common")
	assert.Empty(t, ix.Query("common", 5))
	assert.Len(t, ix.Query("beta", 5), 1)
}

func TestFit_PruningNeverEmptiesVocabulary(t *testing.T) {
	ix := Fit([]string{"same", "same"}, DefaultOptions())
	assert.Equal(t, []string{"same"}, ix.Vocabulary())
	assert.Len(t, ix.Query("same", 5), 2)
}

func TestFit_MaxFeatures(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxFeatures = 2
	ix := Fit([]string{"alpha alpha alpha beta beta gamma", "delta"}, opts)

	// "alpha alpha" and "beta" both occur twice; ties break by term
	assert.Equal(t, []string{"alpha", "alpha alpha"}, ix.Vocabulary())
}

func TestFit_Deterministic(t *testing.T) {
	corpus := []string{"需求分析 目标用户", "市场规模 用户验证", "目标用户 用户验证"}
	a := Fit(corpus, DefaultOptions()).Query("用户", 0)
	b := Fit(corpus, DefaultOptions()).Query("用户", 0)
	assert.Equal(t, a, b)
}

func TestQueryFunc_RestrictsCandidates(t *testing.T) {
	corpus := []string{
		"商业模式 单位经济学 盈利能力",
		"增长策略 客户获取 AARRR漏斗",
		"商业模式 财务模型",
	}
	ix := Fit(corpus, DefaultOptions())

	all := ix.Query("商业模式", 10)
	require.Len(t, all, 2)

	hits := ix.QueryFunc("商业模式", 10, func(doc int) bool { return doc != 0 })
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].Doc)
	// Restricting candidates does not change term weights.
	for _, hit := range all {
		if hit.Doc == 2 {
			assert.InDelta(t, hit.Score, hits[0].Score, 1e-12)
		}
	}

	assert.Empty(t, ix.QueryFunc("商业模式", 10, func(int) bool { return false }))
}

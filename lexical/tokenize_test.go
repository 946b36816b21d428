package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	t.Run("cjk text yields character unigrams and bigrams", func(t *testing.T) {
		terms := Terms("新生儿一天喂奶8到12次。")

		for _, want := range []string{"新", "生", "儿", "喂", "奶", "次", "12", "喂奶", "新生", "12 次"} {
			assert.Contains(t, terms, want)
		}
		assert.NotContains(t, terms, "8", "single digit words are dropped")
		assert.NotContains(t, terms, "。")
	})

	t.Run("latin words are lowercased", func(t *testing.T) {
		terms := Terms("Unit Economics, and LTV")
		assert.Equal(t, []string{"unit", "economics", "and", "ltv", "unit economics", "economics and", "and ltv"}, terms)
	})

	t.Run("single letter words are dropped", func(t *testing.T) {
		assert.Equal(t, []string{"go", "to", "go to"}, Terms("a go to b"))
	})

	t.Run("mixed script", func(t *testing.T) {
		terms := Terms("AARRR漏斗")
		assert.Contains(t, terms, "aarrr")
		assert.Contains(t, terms, "漏斗")
		assert.Contains(t, terms, "aarrr 漏")
	})

	t.Run("empty and punctuation only", func(t *testing.T) {
		assert.Empty(t, Terms(""))
		assert.Empty(t, Terms("。，！ ？"))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Terms("竞争优势 壁垒 护城河"), Terms("竞争优势 壁垒 护城河"))
	})
}

func TestScan(t *testing.T) {
	units := scan("Hello 世界 x 42")
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.text
	}
	assert.Equal(t, []string{"hello", "世", "界", "42"}, texts)
}

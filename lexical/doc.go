// Package lexical implements a TF-IDF term index with cosine similarity
// search. It needs no embedding model and serves as the retrieval method of
// last resort.
//
// Terms are unigrams and bigrams over Unicode word segments. Han ideographs
// and kana are indexed one character at a time, so Chinese or Japanese text
// without spaces still produces matchable terms, and no language-specific
// stop-word list is applied.
package lexical

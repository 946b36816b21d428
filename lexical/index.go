package lexical

import (
	"math"
	"slices"
	"sort"
	"strings"
)

// Options controls vocabulary construction.
type Options struct {
	// MaxFeatures keeps only the most frequent terms across the corpus.
	// Zero keeps every term.
	MaxFeatures int

	// MinDF drops terms found in fewer documents than this.
	MinDF int

	// MaxDF drops terms found in more than this fraction of documents.
	// Pruning is skipped for corpora of fewer than two documents, and when
	// it would remove every term.
	MaxDF float64
}

// DefaultOptions returns the vocabulary limits used by kbase.
func DefaultOptions() Options {
	return Options{
		MaxFeatures: 5000,
		MinDF:       1,
		MaxDF:       0.95,
	}
}

type entry struct {
	term   int
	weight float64
}

// Index is an immutable TF-IDF matrix over a fixed set of documents.
// It is safe for concurrent queries.
type Index struct {
	vocab map[string]int
	idf   []float64
	rows  [][]entry
}

// Hit is a document that matched a query.
type Hit struct {
	Doc   int // Position of the document in the slice given to Fit
	Score float64
}

// Fit builds an index over texts.
func Fit(texts []string, opts Options) *Index {
	n := len(texts)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	freq := make(map[string]int)

	for i, text := range texts {
		c := make(map[string]int)
		for _, term := range Terms(text) {
			c[term]++
		}
		counts[i] = c
		for term, k := range c {
			df[term]++
			freq[term] += k
		}
	}

	vocabulary := selectTerms(df, freq, n, opts)

	ix := &Index{
		vocab: make(map[string]int, len(vocabulary)),
		idf:   make([]float64, len(vocabulary)),
		rows:  make([][]entry, n),
	}
	for i, term := range vocabulary {
		ix.vocab[term] = i
		ix.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
	for i, c := range counts {
		ix.rows[i] = ix.vectorize(c)
	}
	return ix
}

func selectTerms(df, freq map[string]int, n int, opts Options) []string {
	keep := func(pruneMax bool) []string {
		maxDocs := opts.MaxDF * float64(n)
		terms := make([]string, 0, len(df))
		for term, d := range df {
			if d < opts.MinDF {
				continue
			}
			if pruneMax && float64(d) > maxDocs {
				continue
			}
			terms = append(terms, term)
		}
		return terms
	}

	pruneMax := n >= 2 && opts.MaxDF > 0 && opts.MaxDF < 1
	terms := keep(pruneMax)
	if len(terms) == 0 && pruneMax {
		terms = keep(false)
	}

	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if freq[terms[i]] != freq[terms[j]] {
				return freq[terms[i]] > freq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxFeatures]
	}

	slices.Sort(terms)
	return terms
}

// vectorize turns raw term counts into an L2-normalized weight vector.
// Terms outside the vocabulary are ignored.
func (ix *Index) vectorize(counts map[string]int) []entry {
	row := make([]entry, 0, len(counts))
	for term, c := range counts {
		j, ok := ix.vocab[term]
		if !ok {
			continue
		}
		row = append(row, entry{term: j, weight: float64(c) * ix.idf[j]})
	}
	// Sorted before summing so identical documents get bit-identical rows.
	slices.SortFunc(row, func(a, b entry) int { return a.term - b.term })

	var norm float64
	for _, e := range row {
		norm += e.weight * e.weight
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for i := range row {
		row[i].weight /= norm
	}
	return row
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.rows) }

// VocabularySize returns the number of distinct terms kept.
func (ix *Index) VocabularySize() int { return len(ix.vocab) }

// Vocabulary returns the kept terms in sorted order.
func (ix *Index) Vocabulary() []string {
	terms := make([]string, 0, len(ix.vocab))
	for term := range ix.vocab {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms
}

// Query scores every document against text by cosine similarity and
// returns those with a strictly positive score, best first. Documents with
// equal scores keep their corpus order. k <= 0 returns all matches.
func (ix *Index) Query(text string, k int) []Hit {
	return ix.QueryFunc(text, k, nil)
}

// QueryFunc is Query restricted to the documents for which keep returns
// true. Term weights stay those of the whole corpus. A nil keep admits
// every document.
func (ix *Index) QueryFunc(text string, k int, keep func(doc int) bool) []Hit {
	if strings.TrimSpace(text) == "" || len(ix.rows) == 0 {
		return []Hit{}
	}

	counts := make(map[string]int)
	for _, term := range Terms(text) {
		counts[term]++
	}
	query := ix.vectorize(counts)
	if len(query) == 0 {
		return []Hit{}
	}
	weights := make(map[int]float64, len(query))
	for _, e := range query {
		weights[e.term] = e.weight
	}

	hits := make([]Hit, 0)
	for doc, row := range ix.rows {
		if keep != nil && !keep(doc) {
			continue
		}
		var score float64
		for _, e := range row {
			score += e.weight * weights[e.term]
		}
		if score > 0 {
			hits = append(hits, Hit{Doc: doc, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

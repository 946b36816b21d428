package ingestion

// DefaultBatchSize is the number of chunks per embedding request and per
// store write.
const DefaultBatchSize = 100

// Batch is a half-open range [Start, End) of a slice, numbered from zero.
type Batch struct {
	Index int
	Start int
	End   int
}

// Batches splits n items into consecutive ranges of at most size items.
func Batches(n, size int) []Batch {
	if n <= 0 || size <= 0 {
		return nil
	}
	batches := make([]Batch, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		batches = append(batches, Batch{
			Index: len(batches),
			Start: start,
			End:   min(start+size, n),
		})
	}
	return batches
}

package badger

import "fmt"

// Key prefixes for different data types
const (
	collectionPrefix = "kbcol"
	recordPrefix     = "kbrec"
)

// makeCollectionKey generates the key holding a collection's metadata.
func makeCollectionKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, name))
}

// makeCollectionRecordsPrefix covers every generation of a collection.
// Format: prefix:collection:
func makeCollectionRecordsPrefix(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", recordPrefix, name))
}

// makeGenerationPrefix covers the records of one generation.
// Format: prefix:collection:generation:
func makeGenerationPrefix(name, generation string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", recordPrefix, name, generation))
}

// makeRecordKey generates the key of a record within a generation.
// Format: prefix:collection:generation:id
func makeRecordKey(name, generation, id string) []byte {
	return append(makeGenerationPrefix(name, generation), id...)
}

package storage

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
)

const (
	// MetadataDistance names the similarity function of a collection.
	MetadataDistance = "distance"
	// DistanceCosine is the only supported similarity function.
	DistanceCosine = "cosine"

	// MetadataEmbeddingModel names the model that produced the stored vectors.
	MetadataEmbeddingModel = "embedding_model"
	// MetadataDimensions is the length of the stored vectors.
	MetadataDimensions = "dimensions"
)

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,62}$`)

// ValidateCollectionName rejects names that are empty, too long, or contain
// characters outside [A-Za-z0-9_.-].
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// ValidateMetadata checks collection metadata. The distance tag must be
// cosine, the embedding model must be non-empty and dimensions must be a
// positive integer. Unknown keys are rejected so callers can fall back to an
// untagged collection.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		switch key {
		case MetadataDistance:
			if value != DistanceCosine {
				return fmt.Errorf("%w: %s=%q", ErrUnsupportedMetadata, key, value)
			}
		case MetadataEmbeddingModel:
			if value == "" {
				return fmt.Errorf("%w: empty %s", ErrUnsupportedMetadata, key)
			}
		case MetadataDimensions:
			if n, err := strconv.Atoi(value); err != nil || n <= 0 {
				return fmt.Errorf("%w: %s=%q", ErrUnsupportedMetadata, key, value)
			}
		default:
			return fmt.Errorf("%w: key %q", ErrUnsupportedMetadata, key)
		}
	}
	return nil
}

// CloneMetadata returns a non-nil copy of metadata.
func CloneMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	maps.Copy(out, metadata)
	return out
}

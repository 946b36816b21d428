// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kbase/core"
)

const float32Size = 4

var errVectorLength = errors.New("invalid vector length")

// RecordMUS is the MUS serializer for Record. Fields are written in order:
// ID, content, source path, doc type, filename, ordinal, source ID, then the
// vector as a length followed by raw float32 values.
var RecordMUS = recordMUS{}

type recordMUS struct{}

func (recordMUS) strings(r *Record) []*string {
	return []*string{
		&r.ID,
		&r.Chunk.Content,
		&r.Chunk.Metadata.SourcePath,
		&r.Chunk.Metadata.DocType,
		&r.Chunk.Metadata.Filename,
	}
}

func (s recordMUS) Marshal(r Record, bs []byte) (n int) {
	for _, field := range s.strings(&r) {
		n += ord.String.Marshal(*field, bs[n:])
	}
	n += varint.Int.Marshal(r.Chunk.Ordinal, bs[n:])
	n += raw.Uint64.Marshal(uint64(r.SourceID), bs[n:])
	n += varint.Int.Marshal(len(r.Vector), bs[n:])
	for _, v := range r.Vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return n
}

func (s recordMUS) Unmarshal(bs []byte) (r Record, n int, err error) {
	var n1 int
	for _, field := range s.strings(&r) {
		*field, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	r.Chunk.Ordinal, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	var sourceID uint64
	sourceID, n1, err = raw.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.SourceID = core.ID(sourceID)

	var length int
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		err = fmt.Errorf("%w: %d", errVectorLength, length)
		return
	}

	r.Vector = make([]float32, length)
	for i := range r.Vector {
		r.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s recordMUS) Size(r Record) (size int) {
	for _, field := range s.strings(&r) {
		size += ord.String.Size(*field)
	}
	size += varint.Int.Size(r.Chunk.Ordinal)
	size += raw.Uint64.Size(uint64(r.SourceID))
	size += varint.Int.Size(len(r.Vector))
	return size + len(r.Vector)*float32Size
}

func (s recordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	for range s.strings(&Record{}) {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.Uint64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}

	length, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		return n, fmt.Errorf("%w: %d", errVectorLength, length)
	}
	return n + length*float32Size, nil
}

// MarshalRecord serializes a record to bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	if err := ValidateRecord(r); err != nil {
		return nil, err
	}
	buf := make([]byte, RecordMUS.Size(*r))
	RecordMUS.Marshal(*r, buf)
	return buf, nil
}

// UnmarshalRecord deserializes a record from bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	record, n, err := RecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &record, nil
}

// ValidateRecord checks that a record can be stored.
func ValidateRecord(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("%w: %s has no vector", ErrInvalidRecord, r.ID)
	}
	return nil
}

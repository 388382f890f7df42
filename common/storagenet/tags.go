package storagenet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Limits from the data item format.
const (
	maxTags        = 128
	maxTagNameLen  = 1024
	maxTagValueLen = 3072
)

var errTagsInvalid = errors.New("invalid tags")

// encodeTags serializes tags as an Avro array of {name: bytes, value: bytes}
// records. No tags encode to an empty slice.
func encodeTags(tags []Tag) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if len(tags) > maxTags {
		return nil, fmt.Errorf("%w: %d tags exceeds %d", errTagsInvalid, len(tags), maxTags)
	}

	buf := make([]byte, 0, 64)
	buf = appendLong(buf, int64(len(tags)))
	for _, t := range tags {
		if t.Name == "" || len(t.Name) > maxTagNameLen {
			return nil, fmt.Errorf("%w: name length %d", errTagsInvalid, len(t.Name))
		}
		if t.Value == "" || len(t.Value) > maxTagValueLen {
			return nil, fmt.Errorf("%w: value length %d for %q", errTagsInvalid, len(t.Value), t.Name)
		}
		buf = appendBytes(buf, []byte(t.Name))
		buf = appendBytes(buf, []byte(t.Value))
	}
	return appendLong(buf, 0), nil
}

// decodeTags reverses encodeTags.
func decodeTags(data []byte) ([]Tag, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var tags []Tag
	for {
		count, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad block count", errTagsInvalid)
		}
		data = data[n:]
		if count == 0 {
			return tags, nil
		}
		if count < 0 {
			// a negative count is followed by the block size in bytes
			count = -count
			if _, n = binary.Varint(data); n <= 0 {
				return nil, fmt.Errorf("%w: bad block size", errTagsInvalid)
			}
			data = data[n:]
		}
		for i := int64(0); i < count; i++ {
			var name, value []byte
			var err error
			if name, data, err = readBytes(data); err != nil {
				return nil, err
			}
			if value, data, err = readBytes(data); err != nil {
				return nil, err
			}
			tags = append(tags, Tag{Name: string(name), Value: string(value)})
		}
	}
}

// appendLong writes an Avro long, a zigzag varint.
func appendLong(buf []byte, v int64) []byte {
	return binary.AppendVarint(buf, v)
}

func appendBytes(buf, b []byte) []byte {
	buf = appendLong(buf, int64(len(b)))
	return append(buf, b...)
}

func readBytes(data []byte) ([]byte, []byte, error) {
	size, n := binary.Varint(data)
	if n <= 0 || size < 0 || int64(len(data)-n) < size {
		return nil, nil, fmt.Errorf("%w: truncated field", errTagsInvalid)
	}
	data = data[n:]
	return data[:size], data[size:], nil
}

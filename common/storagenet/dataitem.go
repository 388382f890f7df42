package storagenet

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// Ethereum signature layout in a data item.
const (
	sigTypeEthereum = 3
	sigLength       = 65
	ownerLength     = 65
)

// DataItem is a signed, self-describing upload unit accepted by bundlers.
type DataItem struct {
	ID        string
	Signature []byte
	Owner     []byte
	Tags      []Tag
	Data      []byte

	rawTags []byte
}

// NewDataItem builds and signs a data item with no target and no anchor.
func NewDataItem(signer *Signer, data []byte, tags []Tag) (*DataItem, error) {
	rawTags, err := encodeTags(tags)
	if err != nil {
		return nil, err
	}

	item := &DataItem{
		Owner:   signer.Owner(),
		Tags:    tags,
		Data:    data,
		rawTags: rawTags,
	}

	sig, err := signer.Sign(item.signatureData())
	if err != nil {
		return nil, err
	}
	item.Signature = sig
	item.ID = itemID(sig)
	return item, nil
}

// signatureData is the deep hash the signer commits to.
func (d *DataItem) signatureData() []byte {
	return deepHash([][]byte{
		[]byte("dataitem"),
		[]byte("1"),
		[]byte(strconv.Itoa(sigTypeEthereum)),
		d.Owner,
		{}, // target
		{}, // anchor
		d.rawTags,
		d.Data,
	})
}

// Bytes returns the binary encoding posted to a bundler.
func (d *DataItem) Bytes() []byte {
	size := 2 + sigLength + ownerLength + 1 + 1 + 8 + 8 + len(d.rawTags) + len(d.Data)
	buf := make([]byte, 0, size)

	buf = binary.LittleEndian.AppendUint16(buf, sigTypeEthereum)
	buf = append(buf, d.Signature...)
	buf = append(buf, d.Owner...)
	buf = append(buf, 0) // no target
	buf = append(buf, 0) // no anchor
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(d.Tags)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(d.rawTags)))
	buf = append(buf, d.rawTags...)
	return append(buf, d.Data...)
}

// ParseDataItem decodes the binary form produced by Bytes. Targets and
// anchors are rejected.
func ParseDataItem(raw []byte) (*DataItem, error) {
	const header = 2 + sigLength + ownerLength + 1 + 1 + 8 + 8
	if len(raw) < header {
		return nil, errors.New("data item too short")
	}

	if st := binary.LittleEndian.Uint16(raw[0:2]); st != sigTypeEthereum {
		return nil, fmt.Errorf("unsupported signature type %d", st)
	}
	off := 2
	sig := raw[off : off+sigLength]
	off += sigLength
	owner := raw[off : off+ownerLength]
	off += ownerLength

	if raw[off] != 0 || raw[off+1] != 0 {
		return nil, errors.New("data item with target or anchor is not supported")
	}
	off += 2

	numTags := binary.LittleEndian.Uint64(raw[off:])
	off += 8
	tagLen := binary.LittleEndian.Uint64(raw[off:])
	off += 8
	if uint64(len(raw)-off) < tagLen {
		return nil, errors.New("data item tags truncated")
	}

	rawTags := raw[off : off+int(tagLen)]
	off += int(tagLen)
	tags, err := decodeTags(rawTags)
	if err != nil {
		return nil, err
	}
	if uint64(len(tags)) != numTags {
		return nil, fmt.Errorf("data item declares %d tags, found %d", numTags, len(tags))
	}

	return &DataItem{
		ID:        itemID(sig),
		Signature: bytes.Clone(sig),
		Owner:     bytes.Clone(owner),
		Tags:      tags,
		Data:      raw[off:],
		rawTags:   bytes.Clone(rawTags),
	}, nil
}

func itemID(sig []byte) string {
	sum := sha256.Sum256(sig)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

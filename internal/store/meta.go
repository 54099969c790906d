package store

import (
	"encoding/json"
	"fmt"

	"devicekeys/internal/crypto"
	"devicekeys/internal/domain"
)

const (
	metaTypeBytes = "bytes"
	metaTypeUint  = "uint"
)

// metaRecord is the on-disk form of a domain.MetaValue.
type metaRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Bytes string `json:"bytes,omitempty"`
	Uint  uint64 `json:"uint,omitempty"`
}

func encodeMeta(name string, v domain.MetaValue) ([]byte, error) {
	rec := metaRecord{Name: name}
	switch v.Kind {
	case domain.MetaBytes:
		rec.Type = metaTypeBytes
		rec.Bytes = crypto.Encode(v.Bytes)
	case domain.MetaUint:
		rec.Type = metaTypeUint
		rec.Uint = v.Uint
	default:
		return nil, fmt.Errorf("%w: meta %q has unknown kind %d", domain.ErrKeyExport, name, v.Kind)
	}
	return json.Marshal(rec)
}

func decodeMeta(name string, raw []byte) (*domain.MetaValue, error) {
	var rec metaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: meta %q: %w", domain.ErrKeyImport, name, err)
	}
	switch rec.Type {
	case metaTypeBytes:
		b, err := crypto.DecodeStrict(rec.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: meta %q: %w", domain.ErrKeyImport, name, err)
		}
		v := domain.BytesValue(b)
		return &v, nil
	case metaTypeUint:
		v := domain.UintValue(rec.Uint)
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: meta %q has unknown type %q", domain.ErrKeyImport, name, rec.Type)
	}
}

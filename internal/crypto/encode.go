package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Encode returns standard, padded base64 without newlines.
func Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// EncodeURL returns unpadded URL-safe base64, the JWK field encoding.
func EncodeURL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// Codec decodes untrusted base64 leniently. Malformed input is reported
// to its logger.
type Codec struct {
	log zerolog.Logger
}

// NewCodec returns a Codec that warns on log.
func NewCodec(log zerolog.Logger) Codec {
	return Codec{log: log}
}

// Decode accepts standard or URL-safe base64, padded or not. Malformed
// input yields an empty slice and a warning instead of an error, so a
// garbled optional field reads as "absent".
func (c Codec) Decode(s string) []byte {
	out, err := DecodeStrict(s)
	if err != nil {
		c.log.Warn().Err(err).Int("len", len(s)).Msg("Discarding malformed base64 input")
		return []byte{}
	}
	return out
}

// DecodeField is Decode for untyped JSON values. nil and non-string values
// yield an empty slice.
func (c Codec) DecodeField(v any) []byte {
	s, ok := v.(string)
	if !ok {
		if v != nil {
			c.log.Warn().Str("type", fmt.Sprintf("%T", v)).Msg("Discarding non-string base64 field")
		}
		return []byte{}
	}
	return c.Decode(s)
}

// DecodeStrict is the loud variant of Decode for trusted round-trips.
func DecodeStrict(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	norm := strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(norm) % 4; rem != 0 {
		norm += strings.Repeat("=", 4-rem)
	}
	out, err := base64.StdEncoding.DecodeString(norm)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return out, nil
}

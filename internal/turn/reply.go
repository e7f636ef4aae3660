// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseStreamReply extracts the reply from a fully received stream. A JSON
// object with a "reply" field yields that field; anything else is shown as is.
func ParseStreamReply(raw string) string {
	if !gjson.Valid(raw) {
		return raw
	}
	if r := gjson.Get(raw, "reply"); r.Exists() && r.Type != gjson.Null {
		return resultText(r)
	}
	return raw
}

// ParseWholeReply extracts the reply from a complete JSON body, trying
// "reply", then "message", then the compacted body itself.
func ParseWholeReply(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.Wrap(ErrMalformedReply, "reply is not valid JSON")
	}
	for _, key := range []string{"reply", "message"} {
		if r := gjson.GetBytes(body, key); r.Exists() && r.Type != gjson.Null {
			return resultText(r), nil
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return "", errors.Wrap(err, "compact reply")
	}
	return buf.String(), nil
}

func resultText(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

// ChunkDecoder decodes UTF-8 text that arrives in arbitrary byte chunks.
// A rune split across chunks is held back until its remaining bytes arrive.
type ChunkDecoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

// NewChunkDecoder returns a decoder with no pending bytes.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{
		t:   unicode.UTF8.NewDecoder(),
		buf: make([]byte, 4096),
	}
}

// Decode returns the text completed by chunk.
func (d *ChunkDecoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush returns any bytes still pending, replacing an incomplete rune with U+FFFD.
func (d *ChunkDecoder) Flush() string {
	s := d.decode(nil, true)
	d.t.Reset()
	return s
}

func (d *ChunkDecoder) decode(chunk []byte, atEOF bool) string {
	src := append(d.pending, chunk...)
	d.pending = nil

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, atEOF)
		out = append(out, d.buf[:nDst]...)
		src = src[nSrc:]
		if err == transform.ErrShortDst {
			continue
		}
		if err == transform.ErrShortSrc {
			d.pending = append([]byte(nil), src...)
		}
		return string(out)
	}
}

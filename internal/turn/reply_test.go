// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medbot-tui/internal/client"
)

// =============================================================================
// CLASSIFIER TESTS
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"failed to fetch", errors.New("TypeError: Failed to fetch"), ClassNetwork},
		{"refused", errors.New("dial tcp 127.0.0.1:5000: connect: connection refused"), ClassNetwork},
		{"refused upper", errors.New("ECONNREFUSED"), ClassNetwork},
		{"networkerror", errors.New("NetworkError when attempting to fetch resource."), ClassNetwork},
		{"op error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, ClassNetwork},
		{"wrapped op error", errors.Wrap(&net.OpError{Op: "dial", Err: errors.New("i/o timeout")}, "chat request"), ClassNetwork},
		{"http error", &client.HTTPError{StatusCode: 502, Body: "bad gateway"}, ClassServer},
		{"malformed", errors.Wrap(ErrMalformedReply, "reply is not valid JSON"), ClassServer},
		{"plain timeout text", errors.New("request timeout"), ClassServer},
		{"context canceled", errors.Wrap(context.Canceled, "read stream"), ClassCancelled},
		{"user cancel", ErrCancelled, ClassCancelled},
		{"superseded", ErrSuperseded, ClassCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

// =============================================================================
// REPLY PARSING TESTS
// =============================================================================

func TestParseStreamReply(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Hello world", "Hello world"},
		{`{"reply":"ok"}`, "ok"},
		{`{"reply":""}`, ""},
		{`{"reply":42}`, "42"},
		{`{"reply":null}`, `{"reply":null}`},
		{`{"message":"hi"}`, `{"message":"hi"}`},
		{`["reply"]`, `["reply"]`},
		{`{"reply":"unterminated`, `{"reply":"unterminated`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseStreamReply(tt.raw), "raw %q", tt.raw)
	}
}

func TestParseWholeReply(t *testing.T) {
	reply, err := ParseWholeReply([]byte(`{"reply":null,"message":"from message"}`))
	require.NoError(t, err)
	assert.Equal(t, "from message", reply)

	reply, err = ParseWholeReply([]byte(`{"reply":{"text":"nested"}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"text":"nested"}`, reply)

	reply, err = ParseWholeReply([]byte("[1, 2]"))
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", reply)

	_, err = ParseWholeReply([]byte("not json"))
	assert.True(t, errors.Is(err, ErrMalformedReply))

	_, err = ParseWholeReply(nil)
	assert.True(t, errors.Is(err, ErrMalformedReply))
}

// =============================================================================
// DECODER TESTS
// =============================================================================

func TestChunkDecoder_SplitRunes(t *testing.T) {
	// "né 🙂" with the two-byte and four-byte runes split across chunks.
	data := []byte("né 🙂")
	dec := NewChunkDecoder()

	var got string
	got += dec.Decode(data[:2]) // "n" + first byte of é
	assert.Equal(t, "n", got)
	got += dec.Decode(data[2:6]) // rest of é, space, first two bytes of 🙂
	assert.Equal(t, "né ", got)
	got += dec.Decode(data[6:])
	got += dec.Flush()
	assert.Equal(t, "né 🙂", got)
}

func TestChunkDecoder_FlushIncomplete(t *testing.T) {
	dec := NewChunkDecoder()
	assert.Equal(t, "ok", dec.Decode([]byte("ok\xe2\x82")))
	assert.Contains(t, dec.Flush(), "\uFFFD")
}

func TestChunkDecoder_LargeChunk(t *testing.T) {
	dec := NewChunkDecoder()
	big := make([]byte, 10000)
	for i := range big {
		big[i] = 'a'
	}
	assert.Len(t, dec.Decode(big), 10000)
}

// =============================================================================
// POLICY / SESSION TESTS
// =============================================================================

func TestRetryPolicy_LinearDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 800*time.Millisecond, p.Delay(1))
	assert.Equal(t, 1600*time.Millisecond, p.Delay(2))
	assert.Equal(t, 2400*time.Millisecond, p.Delay(3))

	assert.Equal(t, 1, RetryPolicy{}.normalized().MaxAttempts)
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	assert.Regexp(t, regexp.MustCompile(`^session-[0-9a-f]{10}$`), id)
	assert.NotEqual(t, id, NewSessionID())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, Pending.Terminal())
	assert.False(t, Streaming.Terminal())
	assert.True(t, Succeeded.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, Cancelled.Terminal())
	assert.Equal(t, "streaming", Streaming.String())
}

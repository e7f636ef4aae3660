// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/medbot-tui/internal/client"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

const testChatURL = "http://backend.test/chat"

type fakeTarget struct {
	mu        sync.Mutex
	text      string
	history   []string
	onReplace func(string)
}

func (f *fakeTarget) Replace(text string) {
	f.mu.Lock()
	f.text = text
	f.history = append(f.history, text)
	cb := f.onReplace
	f.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (f *fakeTarget) Append(text string) {
	f.mu.Lock()
	f.text += text
	f.history = append(f.history, f.text)
	f.mu.Unlock()
}

func (f *fakeTarget) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func (f *fakeTarget) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

type fakeSink struct {
	mu        sync.Mutex
	users     []string
	bots      []*fakeTarget
	composing []bool
	// onReplace is installed on every new bot bubble.
	onReplace func(string)
}

func (s *fakeSink) UserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, text)
}

func (s *fakeSink) BotMessage() RenderTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := &fakeTarget{onReplace: s.onReplace}
	s.bots = append(s.bots, target)
	return target
}

func (s *fakeSink) SetComposing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing = append(s.composing, on)
}

func (s *fakeSink) bot(i int) *fakeTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bots[i]
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	reqs    []client.ChatRequest
	respond func(ctx context.Context, call int) (*client.ChatResponse, error)
}

func (f *fakeTransport) Chat(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.respond(ctx, call)
}

func (f *fakeTransport) ChatURL() string { return testChatURL }

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// chunkReader returns one part per Read. With block set it waits for ctx
// once the parts run out instead of returning EOF.
type chunkReader struct {
	ctx   context.Context
	parts []string
	block bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		if r.block {
			<-r.ctx.Done()
			return 0, r.ctx.Err()
		}
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts = r.parts[1:]
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func whole(body string) *client.ChatResponse {
	return &client.ChatResponse{Body: io.NopCloser(strings.NewReader(body))}
}

func stream(ctx context.Context, parts ...string) *client.ChatResponse {
	return &client.ChatResponse{Body: &chunkReader{ctx: ctx, parts: parts}, Streaming: true}
}

func stalledStream(ctx context.Context, parts ...string) *client.ChatResponse {
	return &client.ChatResponse{Body: &chunkReader{ctx: ctx, parts: parts, block: true}, Streaming: true}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestController(tr Transport, sink Sink) (*Controller, *sleepRecorder) {
	rec := &sleepRecorder{}
	c := NewController(tr, sink, "session-test").WithSleep(rec.Sleep)
	c.SetTypingDelays(0, 0)
	return c, rec
}

func waitDone(t *testing.T, turns ...*Turn) {
	t.Helper()
	for _, tn := range turns {
		select {
		case <-tn.Done():
		case <-time.After(2 * time.Second):
			require.FailNow(t, "turn did not finish", "turn %s stuck in %s", tn.ID, tn.Status())
		}
	}
}

func errRefused() error {
	return errors.New("dial tcp 127.0.0.1:5000: connect: connection refused")
}

// =============================================================================
// START TURN TESTS
// =============================================================================

// TestStartTurn_EmptyInputIsNoop verifies blank input creates nothing.
func TestStartTurn_EmptyInputIsNoop(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return whole(`{"reply":"x"}`), nil
	}}
	c, _ := newTestController(tr, sink)

	for _, input := range []string{"", "   ", "\n\t "} {
		assert.Nil(t, c.StartTurn(input))
	}
	assert.Empty(t, sink.users)
	assert.Empty(t, sink.bots)
	assert.Empty(t, sink.composing)
	assert.Equal(t, 0, tr.Calls())
}

// TestStartTurn_OneUserAndOneBotBubble verifies a turn's bubbles and wire request.
func TestStartTurn_OneUserAndOneBotBubble(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return whole(`{"reply":"Drink water and rest."}`), nil
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("  I have a headache  ")
	require.NotNil(t, tn)
	waitDone(t, tn)

	assert.Equal(t, []string{"I have a headache"}, sink.users)
	require.Len(t, sink.bots, 1)
	assert.Equal(t, "Drink water and rest.", sink.bot(0).Text())
	assert.Equal(t, Succeeded, tn.Status())
	assert.Equal(t, 1, tn.Attempt())
	assert.Equal(t, "Drink water and rest.", c.LastReply())
	assert.Equal(t, []bool{true, false}, sink.composing)
	assert.Nil(t, c.Current())
	assert.Equal(t, []client.ChatRequest{{SessionID: "session-test", Message: "I have a headache"}}, tr.reqs)
}

// =============================================================================
// REPLY PATH TESTS
// =============================================================================

// TestStreaming_PlainChunks verifies the accumulator is rendered after every chunk.
func TestStreaming_PlainChunks(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return stream(ctx, "Hel", "lo wo", "rld"), nil
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, "Hello world", sink.bot(0).Text())
	assert.Equal(t, []string{"Hel", "Hello wo", "Hello world", "Hello world"}, sink.bot(0).History())
	assert.Equal(t, Succeeded, tn.Status())
	assert.Equal(t, "Hello world", c.LastReply())
}

// TestStreaming_JSONWrapper verifies a streamed JSON object yields its reply field.
func TestStreaming_JSONWrapper(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return stream(ctx, `{"reply":`, `"ok"}`), nil
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, "ok", sink.bot(0).Text())
	assert.Equal(t, "ok", c.LastReply())
}

// TestStreaming_SplitRune verifies a multi-byte rune split across chunks renders intact.
func TestStreaming_SplitRune(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return stream(ctx, "caf\xc3", "\xa9 au lait"), nil
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, "café au lait", sink.bot(0).Text())
	for _, frame := range sink.bot(0).History() {
		assert.NotContains(t, frame, "�")
	}
}

// TestWholeBody_Fallbacks covers the reply, message and stringified-body paths.
func TestWholeBody_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"reply field", `{"reply":"hello"}`, "hello"},
		{"message field", `{"message":"hi"}`, "hi"},
		{"empty reply", `{"reply":""}`, ""},
		{"neither key", `{ "status": "ok" }`, `{"status":"ok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
				return whole(tt.body), nil
			}}
			c, _ := newTestController(tr, sink)

			tn := c.StartTurn("hi")
			waitDone(t, tn)

			assert.Equal(t, Succeeded, tn.Status())
			assert.Equal(t, tt.want, sink.bot(0).Text())
			assert.Equal(t, 1, tr.Calls())
		})
	}
}

// TestReplay_TypesCharacters verifies the cosmetic replay ends on the full reply.
func TestReplay_TypesCharacters(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return whole(`{"reply":"abc"}`), nil
	}}
	c, _ := newTestController(tr, sink)
	c.SetTypingDelays(time.Millisecond, time.Millisecond)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, []string{"abc", "", "a", "ab", "abc"}, sink.bot(0).History())
	assert.Equal(t, []bool{true, false}, sink.composing)
}

// TestReplay_SurvivesSupersede verifies a replay keeps typing into its own
// bubble after a newer turn has started.
func TestReplay_SurvivesSupersede(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		if call == 1 {
			return whole(`{"reply":"abcdefghij"}`), nil
		}
		return whole(`{"reply":"second"}`), nil
	}}
	c, _ := newTestController(tr, sink)
	c.SetTypingDelays(20*time.Millisecond, 20*time.Millisecond)

	first := c.StartTurn("one")
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		started := len(sink.bots) > 0
		sink.mu.Unlock()
		if !started {
			return false
		}
		n := len(sink.bot(0).Text())
		return n >= 2 && n < 10
	}, 2*time.Second, time.Millisecond, "replay never got under way")

	second := c.StartTurn("two")
	waitDone(t, first, second)

	assert.Equal(t, Succeeded, first.Status())
	assert.Equal(t, "abcdefghij", sink.bot(0).Text())
	assert.Equal(t, Succeeded, second.Status())
	assert.Equal(t, "second", sink.bot(1).Text())
	assert.Equal(t, "second", c.LastReply())
}

// =============================================================================
// RETRY TESTS
// =============================================================================

// TestRetry_TwoNetworkFailuresThenSuccess verifies notices and linear delays.
func TestRetry_TwoNetworkFailuresThenSuccess(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		if call < 3 {
			return nil, errRefused()
		}
		return whole(`{"reply":"done"}`), nil
	}}
	c, rec := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, "done", sink.bot(0).Text())
	assert.Equal(t, Succeeded, tn.Status())
	assert.Equal(t, 3, tn.Attempt())

	var notices []string
	for _, frame := range sink.bot(0).History() {
		if strings.HasPrefix(frame, "Network error") {
			notices = append(notices, frame)
		}
	}
	assert.Equal(t, []string{
		"Network error (attempt 1/3). Retrying...",
		"Network error (attempt 2/3). Retrying...",
	}, notices)
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond}, rec.Delays())
}

// TestRetry_AlwaysFails verifies the failure message after the last attempt.
func TestRetry_AlwaysFails(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return nil, errRefused()
	}}
	c, rec := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	text := sink.bot(0).Text()
	assert.Equal(t, Failed, tn.Status())
	assert.Equal(t, 3, tr.Calls())
	assert.Contains(t, text, "Failed after 3 attempts.")
	assert.Contains(t, text, "connection refused")
	assert.Contains(t, text, "\nCheck backend at "+testChatURL)
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond}, rec.Delays())
	assert.Empty(t, c.LastReply())
	assert.Equal(t, []bool{true, false}, sink.composing)
}

// TestRetry_ServerErrorsRetried verifies non-network errors still use every attempt.
func TestRetry_ServerErrorsRetried(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return nil, &client.HTTPError{StatusCode: 500, Body: "boom"}
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, 3, tr.Calls())
	assert.Contains(t, sink.bot(0).History(), "Error: Server error 500: boom")
	assert.Equal(t, "Failed after 3 attempts. Server error 500: boom\nCheck backend at "+testChatURL, sink.bot(0).Text())
}

// TestRetry_MalformedWholeBody verifies a non-JSON whole body counts as a failed attempt.
func TestRetry_MalformedWholeBody(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		if call == 1 {
			return whole("<html>oops</html>"), nil
		}
		return whole(`{"reply":"fine"}`), nil
	}}
	c, rec := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	waitDone(t, tn)

	assert.Equal(t, "fine", sink.bot(0).Text())
	assert.Equal(t, []time.Duration{800 * time.Millisecond}, rec.Delays())
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

// TestCancel_MidStream verifies a user cancel renders the notice and never retries.
func TestCancel_MidStream(t *testing.T) {
	firstChunk := make(chan struct{}, 1)
	sink := &fakeSink{onReplace: func(text string) {
		if text == "Hel" {
			select {
			case firstChunk <- struct{}{}:
			default:
			}
		}
	}}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return stalledStream(ctx, "Hel"), nil
	}}
	c, rec := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	<-firstChunk
	assert.True(t, c.Cancel())
	waitDone(t, tn)

	assert.Equal(t, CancelledText, sink.bot(0).Text())
	assert.Equal(t, Cancelled, tn.Status())
	assert.Equal(t, 1, tr.Calls())
	assert.Empty(t, rec.Delays())
	assert.Equal(t, []bool{true, false}, sink.composing)
	assert.False(t, c.Cancel(), "nothing left to cancel")
}

// TestStartTurn_SupersedesPrevious verifies the older bubble is frozen once a newer turn starts.
func TestStartTurn_SupersedesPrevious(t *testing.T) {
	firstChunk := make(chan struct{}, 1)
	sink := &fakeSink{onReplace: func(text string) {
		if text == "partial" {
			select {
			case firstChunk <- struct{}{}:
			default:
			}
		}
	}}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		if call == 1 {
			return stalledStream(ctx, "partial"), nil
		}
		return whole(`{"reply":"second"}`), nil
	}}
	c, _ := newTestController(tr, sink)

	first := c.StartTurn("one")
	<-firstChunk
	before := sink.bot(0).History()

	second := c.StartTurn("two")
	waitDone(t, first, second)

	assert.Equal(t, before, sink.bot(0).History(), "superseded bubble must not change")
	assert.Equal(t, "partial", sink.bot(0).Text())
	assert.Equal(t, Cancelled, first.Status())
	assert.Equal(t, "second", sink.bot(1).Text())
	assert.Equal(t, Succeeded, second.Status())
	assert.Equal(t, []string{"one", "two"}, sink.users)
	assert.Equal(t, []bool{true, true, false}, sink.composing)
}

// TestClose_CancelsSilently verifies shutdown leaves the bubble untouched.
func TestClose_CancelsSilently(t *testing.T) {
	firstChunk := make(chan struct{}, 1)
	sink := &fakeSink{onReplace: func(text string) {
		select {
		case firstChunk <- struct{}{}:
		default:
		}
	}}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return stalledStream(ctx, "partial"), nil
	}}
	c, _ := newTestController(tr, sink)

	tn := c.StartTurn("hi")
	<-firstChunk
	c.Close()
	waitDone(t, tn)

	assert.Equal(t, "partial", sink.bot(0).Text())
	assert.Equal(t, Cancelled, tn.Status())
}

// TestCancel_DuringBackoff verifies cancellation interrupts the retry wait.
func TestCancel_DuringBackoff(t *testing.T) {
	sink := &fakeSink{}
	tr := &fakeTransport{respond: func(ctx context.Context, call int) (*client.ChatResponse, error) {
		return nil, errRefused()
	}}
	c := NewController(tr, sink, "session-test").WithPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour})
	c.SetTypingDelays(0, 0)

	tn := c.StartTurn("hi")
	require.Eventually(t, func() bool {
		return strings.HasPrefix(sink.bot(0).Text(), "Network error (attempt 1/3)")
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, c.Cancel())
	waitDone(t, tn)

	assert.Equal(t, CancelledText, sink.bot(0).Text())
	assert.Equal(t, 1, tr.Calls())
}

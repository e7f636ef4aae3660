// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medbot-tui/internal/client"
)

// Texts rendered into the bot bubble.
const (
	CancelledText = "[Request cancelled]"
	networkNotice = "Network error (attempt %d/%d). Retrying..."
	failureText   = "Failed after %d attempts. %s\nCheck backend at %s"
)

const (
	// MaxReplySize bounds a whole-body reply.
	MaxReplySize = client.MaxResponseSize

	readChunkSize = 4096
)

// Controller runs chat turns for one session. At most one turn is in
// flight; starting another cancels the previous one.
type Controller struct {
	transport Transport
	sink      Sink
	sessionID string
	log       zerolog.Logger
	sleep     SleepFunc

	ctx  context.Context
	stop context.CancelCauseFunc

	// mu guards current, lastReply, the typing delays and every write a
	// turn makes to its bubble before it succeeds.
	mu          sync.Mutex
	current     *Turn
	lastReply   string
	policy      RetryPolicy
	streamDelay time.Duration
	wholeDelay  time.Duration
}

// NewController creates a controller bound to sessionID.
func NewController(transport Transport, sink Sink, sessionID string) *Controller {
	ctx, stop := context.WithCancelCause(context.Background())
	return &Controller{
		transport:   transport,
		sink:        sink,
		sessionID:   sessionID,
		log:         zerolog.Nop(),
		sleep:       sleepContext,
		ctx:         ctx,
		stop:        stop,
		policy:      DefaultRetryPolicy(),
		streamDelay: DefaultStreamTypingDelay,
		wholeDelay:  DefaultWholeTypingDelay,
	}
}

// WithPolicy sets the retry policy. Call before the first turn.
func (c *Controller) WithPolicy(p RetryPolicy) *Controller {
	c.policy = p.normalized()
	return c
}

// WithSleep replaces the backoff wait. Call before the first turn.
func (c *Controller) WithSleep(fn SleepFunc) *Controller {
	c.sleep = fn
	return c
}

// WithLogger sets the logger. Call before the first turn.
func (c *Controller) WithLogger(log zerolog.Logger) *Controller {
	c.log = log.With().Str("component", "turn").Str("session_id", c.sessionID).Logger()
	return c
}

// SetTypingDelays changes the replay pace for later turns. Zero disables the replay.
func (c *Controller) SetTypingDelays(stream, whole time.Duration) {
	c.mu.Lock()
	c.streamDelay, c.wholeDelay = stream, whole
	c.mu.Unlock()
}

// SessionID returns the session the controller sends with every message.
func (c *Controller) SessionID() string { return c.sessionID }

// LastReply returns the most recent successful reply.
func (c *Controller) LastReply() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReply
}

// Current returns the in-flight turn, or nil.
func (c *Controller) Current() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// StartTurn begins a turn for text and returns without waiting for it.
// Blank text is ignored and yields nil.
func (c *Controller) StartTurn(text string) *Turn {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	t := newTurn(c.ctx, c.sessionID, text)

	c.mu.Lock()
	if prev := c.current; prev != nil {
		prev.cancel(ErrSuperseded)
	}
	c.current = t
	c.sink.UserMessage(text)
	t.target = c.sink.BotMessage()
	c.sink.SetComposing(true)
	c.mu.Unlock()

	c.log.Debug().Str("turn_id", t.ID).Msg("turn started")
	go c.run(t)
	return t
}

// Cancel stops the in-flight turn, which renders CancelledText. It reports
// whether there was a turn to cancel.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Status().Terminal() {
		return false
	}
	c.current.cancel(ErrCancelled)
	return true
}

// Close cancels any in-flight turn without rendering anything.
func (c *Controller) Close() {
	c.stop(ErrClosed)
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

func (c *Controller) run(t *Turn) {
	defer c.finish(t)

	log := c.log.With().Str("turn_id", t.ID).Logger()
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		t.setAttempt(attempt)
		if t.ctx.Err() != nil {
			c.cancelled(t)
			return
		}

		reply, streamed, err := c.attempt(t)
		if err == nil {
			c.succeed(t, reply, streamed)
			return
		}

		class := Classify(err)
		if t.ctx.Err() != nil || class == ClassCancelled {
			c.cancelled(t)
			return
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Stringer("class", class).Msg("chat attempt failed")

		if class == ClassNetwork {
			c.render(t, fmt.Sprintf(networkNotice, attempt, c.policy.MaxAttempts))
		} else {
			c.render(t, "Error: "+err.Error())
		}

		if attempt < c.policy.MaxAttempts {
			if err := c.sleep(t.ctx, c.policy.Delay(attempt)); err != nil {
				c.cancelled(t)
				return
			}
		}
	}
	c.fail(t, lastErr)
}

func (c *Controller) attempt(t *Turn) (reply string, streamed bool, err error) {
	resp, err := c.transport.Chat(t.ctx, client.ChatRequest{SessionID: t.SessionID, Message: t.UserText})
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.Streaming {
		t.setStatus(Streaming)
		reply, err := c.receive(t, resp.Body)
		return reply, true, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxReplySize))
	if err != nil {
		return "", false, errors.Wrap(err, "read reply")
	}
	reply, err = ParseWholeReply(body)
	return reply, false, err
}

// receive renders the accumulated text after every chunk.
func (c *Controller) receive(t *Turn, body io.Reader) (string, error) {
	dec := NewChunkDecoder()
	var acc strings.Builder
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			acc.WriteString(dec.Decode(buf[:n]))
			c.render(t, acc.String())
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "read stream")
		}
		if t.ctx.Err() != nil {
			return "", context.Cause(t.ctx)
		}
	}
	acc.WriteString(dec.Flush())
	return ParseStreamReply(acc.String()), nil
}

// render replaces the bubble text if t is still the current turn.
func (c *Controller) render(t *Turn, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != t {
		return false
	}
	t.setBotText(text)
	t.target.Replace(text)
	return true
}

func (c *Controller) succeed(t *Turn, reply string, streamed bool) {
	c.mu.Lock()
	if c.current != t {
		c.mu.Unlock()
		t.setStatus(Cancelled)
		return
	}
	t.setBotText(reply)
	t.target.Replace(reply)
	c.lastReply = reply
	delay := c.wholeDelay
	if streamed {
		delay = c.streamDelay
	}
	c.mu.Unlock()

	t.setStatus(Succeeded)
	c.log.Debug().Str("turn_id", t.ID).Int("attempt", t.Attempt()).Int("reply_len", len(reply)).Msg("turn succeeded")
	replay(t.target, reply, delay)
}

// replay types text into target one rune at a time. It writes only to the
// turn's own bubble, so it keeps going after a newer turn starts.
func replay(target RenderTarget, text string, delay time.Duration) {
	if delay <= 0 || text == "" {
		return
	}
	target.Replace("")
	for _, r := range text {
		target.Append(string(r))
		time.Sleep(delay)
	}
}

func (c *Controller) fail(t *Turn, err error) {
	t.setStatus(Failed)
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.render(t, fmt.Sprintf(failureText, c.policy.MaxAttempts, msg, c.transport.ChatURL()))
	c.log.Error().Err(err).Str("turn_id", t.ID).Msg("turn failed")
}

// cancelled ends the turn. A superseded or closed turn leaves its bubble as
// it was; any other cancellation is shown.
func (c *Controller) cancelled(t *Turn) {
	t.setStatus(Cancelled)
	cause := context.Cause(t.ctx)
	c.log.Debug().Str("turn_id", t.ID).AnErr("cause", cause).Msg("turn cancelled")
	if cause == nil || errors.Is(cause, ErrCancelled) {
		c.render(t, CancelledText)
	}
}

func (c *Controller) finish(t *Turn) {
	c.mu.Lock()
	if c.current == t {
		c.current = nil
		c.sink.SetComposing(false)
	}
	c.mu.Unlock()
	t.cancel(nil)
	close(t.done)
}

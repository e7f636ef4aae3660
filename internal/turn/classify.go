// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"net"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrCancelled is the cause used when the user cancels a turn.
	ErrCancelled = errors.New("request cancelled")

	// ErrSuperseded is the cause used when a newer turn replaces this one.
	ErrSuperseded = errors.New("superseded by a newer turn")

	// ErrClosed is the cause used when the controller shuts down.
	ErrClosed = errors.New("controller closed")

	// ErrMalformedReply is returned for a whole body that is not JSON.
	ErrMalformedReply = errors.New("malformed reply")
)

// Class groups errors by how a turn reacts to them.
type Class int

const (
	// ClassNone is the class of a nil error.
	ClassNone Class = iota
	// ClassCancelled ends the turn without retrying.
	ClassCancelled
	// ClassNetwork is a transient transport failure.
	ClassNetwork
	// ClassServer is a non-2xx reply or an unusable payload.
	ClassServer
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassCancelled:
		return "cancelled"
	case ClassNetwork:
		return "network"
	case ClassServer:
		return "server"
	}
	return "unknown"
}

// networkMarkers are matched case-insensitively against the error text.
var networkMarkers = []string{"failed to fetch", "refused", "networkerror"}

// Classify maps a transport error onto the retry taxonomy.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrSuperseded) || errors.Is(err, ErrClosed) {
		return ClassCancelled
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return ClassNetwork
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassNetwork
	}
	return ClassServer
}

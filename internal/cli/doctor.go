// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/medbot-tui/internal/voice"
)

// doctorTimeout bounds the whole diagnostic run.
const doctorTimeout = 10 * time.Second

// checkResult is the outcome of one diagnostic.
type checkResult struct {
	Name     string
	OK       bool
	Detail   string
	Required bool
}

func newDoctorCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the backend and speech tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, false); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			results := runChecks(ctx, o)
			out := cmd.OutOrStdout()
			failed := false
			for _, r := range results {
				mark := successStyle.Render("✓")
				if !r.OK {
					mark = warningStyle.Render("!")
					if r.Required {
						mark = errorStyle.Render("✗")
						failed = true
					}
				}
				fmt.Fprintf(out, "%s %-12s %s\n", mark, r.Name, r.Detail)
			}
			if failed {
				return errors.New("backend is not reachable")
			}
			return nil
		},
	}
}

// runChecks runs every diagnostic concurrently. Each check writes only its
// own slot, and a failing check does not stop the others.
func runChecks(ctx context.Context, o *rootOptions) []checkResult {
	results := make([]checkResult, 3)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results[0] = checkBackend(ctx, o)
		return nil
	})
	g.Go(func() error {
		results[1] = checkCapability("recognizer", o.recognizer())
		return nil
	})
	g.Go(func() error {
		results[2] = checkCapability("synthesizer", o.synthesizer())
		return nil
	})
	_ = g.Wait()
	return results
}

func checkBackend(ctx context.Context, o *rootOptions) checkResult {
	c := o.client()
	start := time.Now()
	res := checkResult{Name: "backend", Required: true}
	if _, err := c.Ping(ctx); err != nil {
		res.Detail = fmt.Sprintf("%s: %v", c.BaseURL(), err)
		return res
	}
	res.OK = true
	res.Detail = fmt.Sprintf("%s (%s)", c.BaseURL(), time.Since(start).Round(time.Millisecond))
	return res
}

type capability interface {
	Available() error
}

func checkCapability(name string, c capability) checkResult {
	res := checkResult{Name: name}
	if c == nil {
		res.Detail = "not configured"
		return res
	}
	if err := c.Available(); err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			res.Detail = err.Error()
			return res
		}
		res.Detail = "error: " + err.Error()
		return res
	}
	res.OK = true
	res.Detail = "available"
	return res
}

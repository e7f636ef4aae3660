// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// QAPair is one training example accepted by /train.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TrainResult is the /train reply.
type TrainResult struct {
	Status        string `json:"status"`
	NewTotalPairs int    `json:"new_total_pairs"`
}

// ErrNoPairs is returned when Train is called without any usable pairs.
var ErrNoPairs = errors.New("no QA pairs to train on")

// Train posts QA pairs as the form field "data".
func (c *Client) Train(ctx context.Context, pairs []QAPair) (*TrainResult, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, errors.Wrap(err, "marshal pairs")
	}
	form := url.Values{"data": {string(data)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.do(c.httpClient, req, "train")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	var result TrainResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "parse train response")
	}
	return &result, nil
}

// LoadQAPairs reads a JSON array of QA pairs, rejecting entries with an empty side.
func LoadQAPairs(r io.Reader) ([]QAPair, error) {
	var pairs []QAPair
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return nil, errors.Wrap(err, "decode QA pairs")
	}
	for i, p := range pairs {
		if strings.TrimSpace(p.Question) == "" || strings.TrimSpace(p.Answer) == "" {
			return nil, errors.Errorf("pair %d: question and answer are required", i)
		}
	}
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	return pairs, nil
}

// PingResult is the /ping reply.
type PingResult struct {
	Status string `json:"status"`
}

// Ping checks that the backend is up.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var result PingResult
	if err := c.getJSON(ctx, c.baseURL+"/ping", "ping", &result); err != nil {
		return nil, err
	}
	if result.Status != "ok" {
		return &result, errors.Errorf("backend status %q", result.Status)
	}
	return &result, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// NoTextPlaceholder is shown when OCR produced nothing.
const NoTextPlaceholder = "[no text]"

// Upload sends the file at path to the OCR endpoint and returns the extracted text.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer f.Close()
	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader sends r as multipart field "file" named name.
func (c *Client) UploadReader(ctx context.Context, name string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL(), pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.do(c.httpClient, req, "upload")
	// Unblocks the writer goroutine when the request never drained the pipe.
	pr.Close()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", errors.New("upload: invalid JSON response")
	}
	for _, key := range []string{"extracted_text", "text"} {
		if v := gjson.GetBytes(body, key); v.String() != "" {
			return v.String(), nil
		}
	}
	return NoTextPlaceholder, nil
}

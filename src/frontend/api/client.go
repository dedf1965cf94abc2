// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api is the client of the remote storefront API: auth, catalog,
// orders, addresses, cart and wishlist sync, and the admin endpoints.
//
// Every endpoint may answer with a bare payload or a {"data": ...}
// envelope; Decode resolves that at this boundary. Failures carry a
// human-readable message taken from a {"message"} or {"error"} body when the
// server sends one.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NetworkError means the API could not be reached at all.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("unable to reach the server (%s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

type Config struct {
	// BaseURL is the primary API root, e.g. https://api.example.com/api.
	BaseURL string
	// FallbackURL is tried for auth calls when the primary is unreachable,
	// answers 404, or answers 5xx.
	FallbackURL string
	HTTPClient  *http.Client
	Log         logrus.FieldLogger
}

type Client struct {
	primary  string
	fallback string
	http     *http.Client
	log      logrus.FieldLogger
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		primary:  strings.TrimRight(cfg.BaseURL, "/"),
		fallback: strings.TrimRight(cfg.FallbackURL, "/"),
		http:     hc,
		log:      log,
	}
}

// send performs one request and returns the status and raw body. Only
// transport failures are errors here.
func (c *Client) send(ctx context.Context, method, url, token string, in interface{}) (int, []byte, error) {
	var (
		code int
		body []byte
	)
	g := gout.New(c.http)
	df := g.GET(url)
	switch method {
	case http.MethodPost:
		df = g.POST(url)
	case http.MethodPut:
		df = g.PUT(url)
	case http.MethodPatch:
		df = g.PATCH(url)
	case http.MethodDelete:
		df = g.DELETE(url)
	}
	df = df.WithContext(ctx)
	if token != "" {
		df = df.SetHeader(gout.H{"Authorization": "Bearer " + token})
	}
	if in != nil {
		df = df.SetJSON(in)
	}
	if err := df.Code(&code).BindBody(&body).Do(); err != nil {
		return 0, nil, &NetworkError{URL: url, Err: err}
	}
	c.log.WithField("method", method).WithField("url", url).WithField("status", code).Debug("api call")
	return code, body, nil
}

// call sends a request to the primary API and decodes a 2xx body as T.
func call[T any](ctx context.Context, c *Client, method, path, token string, in interface{}) (T, error) {
	var zero T
	code, body, err := c.send(ctx, method, c.primary+path, token, in)
	if err != nil {
		return zero, err
	}
	return decodeResponse[T](code, body)
}

// exec is call for endpoints whose body is irrelevant on success.
func exec(ctx context.Context, c *Client, method, path, token string, in interface{}) error {
	code, body, err := c.send(ctx, method, c.primary+path, token, in)
	if err != nil {
		return err
	}
	if !ok(code) {
		return &HTTPError{Status: code, Message: errorMessage(code, body)}
	}
	return nil
}

func decodeResponse[T any](code int, body []byte) (T, error) {
	var zero T
	if !ok(code) {
		return zero, &HTTPError{Status: code, Message: errorMessage(code, body)}
	}
	p, err := Decode[T](body)
	if err != nil {
		return zero, errors.Wrap(err, "unexpected response from server")
	}
	return p.Value, nil
}

func ok(code int) bool {
	return code >= 200 && code < 300
}

// errorMessage extracts a readable message from an error body. Non-JSON
// bodies fall back to a generic message with the status.
func errorMessage(code int, body []byte) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"message", "error"} {
			if m := messageOf(obj[k]); m != "" {
				return m
			}
		}
		if data, ok := obj["data"].(map[string]interface{}); ok {
			for _, k := range []string{"message", "error"} {
				if m := messageOf(data[k]); m != "" {
					return m
				}
			}
		}
	}
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("request failed (status %d %s)", code, text)
	}
	return fmt.Sprintf("request failed (status %d)", code)
}

func messageOf(v interface{}) string {
	switch t := v.(type) {
	case nil, bool:
		return ""
	case map[string]interface{}:
		return messageOf(t["message"])
	case []interface{}:
		parts := cast.ToStringSlice(t)
		return strings.TrimSpace(strings.Join(parts, "; "))
	default:
		return strings.TrimSpace(cast.ToString(t))
	}
}

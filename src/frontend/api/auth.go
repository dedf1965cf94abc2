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

package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// AuthResponse is what login and registration answer, bare or enveloped.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

var errNoUser = errors.New("the server did not return an account")

// Login authenticates against the primary API, substituting the fallback
// API once when the primary cannot serve the request.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", Credentials{Email: email, Password: password})
}

// Register creates an account and returns it like Login does.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// VerifyOTP confirms the one-time password mailed to email.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	return exec(ctx, c, http.MethodPost, "/auth/verify-otp", "", map[string]string{"email": email, "otp": otp})
}

func (c *Client) authenticate(ctx context.Context, path string, in interface{}) (*AuthResponse, error) {
	code, body, err := c.send(ctx, http.MethodPost, c.primary+path, "", in)
	if c.fallback != "" && ctx.Err() == nil && shouldFallback(code, err) {
		c.log.WithField("path", path).WithField("status", code).WithField("error", err).
			Warn("primary auth endpoint failed, trying fallback")
		code, body, err = c.send(ctx, http.MethodPost, c.fallback+path, "", in)
	}
	if err != nil {
		return nil, err
	}
	res, err := decodeResponse[AuthResponse](code, body)
	if err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, errNoUser
	}
	return &res, nil
}

// shouldFallback is true for transport failures, a zero status, 404 and
// any 5xx.
func shouldFallback(code int, err error) bool {
	return err != nil || code == 0 || code == http.StatusNotFound || code >= http.StatusInternalServerError
}

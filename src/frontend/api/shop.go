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
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/mattressco/storefront/src/frontend/cart"
	"github.com/mattressco/storefront/src/frontend/wishlist"
)

// Products lists the catalog. query is passed through (category, q, sort).
func (c *Client) Products(ctx context.Context, query url.Values) ([]Product, error) {
	path := "/products"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	products, err := call[[]Product](ctx, c, http.MethodGet, path, "", nil)
	return products, errors.Wrap(err, "could not retrieve products")
}

func (c *Client) Product(ctx context.Context, id string) (*Product, error) {
	p, err := call[Product](ctx, c, http.MethodGet, "/products/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve product %s", id)
	}
	return &p, nil
}

func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	u, err := call[User](ctx, c, http.MethodGet, "/users/profile", token, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not retrieve profile")
	}
	return &u, nil
}

// UpdateProfile sends the changed profile fields. It returns the account
// members the server echoed back, or nil when the reply names no account
// (204, an empty or non-object body, or a bare acknowledgement).
func (c *Client) UpdateProfile(ctx context.Context, token string, fields map[string]interface{}) (map[string]interface{}, error) {
	code, body, err := c.send(ctx, http.MethodPut, c.primary+"/users/profile", token, fields)
	if err != nil {
		return nil, errors.Wrap(err, "could not update profile")
	}
	if !ok(code) {
		return nil, errors.Wrap(&HTTPError{Status: code, Message: errorMessage(code, body)}, "could not update profile")
	}
	if code == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	p, err := Decode[map[string]interface{}](body)
	if err != nil {
		c.log.WithField("error", err).Debug("profile reply is not an object, ignoring it")
		return nil, nil
	}
	account := p.Value
	if nested, ok := account["user"].(map[string]interface{}); ok {
		account = nested
	}
	if !HasIdentity(account) {
		return nil, nil
	}
	return account, nil
}

func (c *Client) Addresses(ctx context.Context, token string) ([]Address, error) {
	addrs, err := call[[]Address](ctx, c, http.MethodGet, "/users/addresses", token, nil)
	return addrs, errors.Wrap(err, "could not retrieve addresses")
}

func (c *Client) PlaceOrder(ctx context.Context, token string, req OrderRequest) (*Order, error) {
	o, err := call[Order](ctx, c, http.MethodPost, "/users/orders", token, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to complete the order")
	}
	return &o, nil
}

func (c *Client) Orders(ctx context.Context, token string) ([]Order, error) {
	orders, err := call[[]Order](ctx, c, http.MethodGet, "/users/orders", token, nil)
	return orders, errors.Wrap(err, "could not retrieve order history")
}

// SyncCart uploads the local cart to the signed-in account.
func (c *Client) SyncCart(ctx context.Context, token string, items []cart.LineItem) error {
	err := exec(ctx, c, http.MethodPost, "/users/cart/sync", token, map[string]interface{}{"items": items})
	return errors.Wrap(err, "failed to sync cart")
}

// SyncWishlist uploads the local wishlist to the signed-in account.
func (c *Client) SyncWishlist(ctx context.Context, token string, entries []wishlist.Entry) error {
	err := exec(ctx, c, http.MethodPost, "/users/wishlist/sync", token, map[string]interface{}{"items": entries})
	return errors.Wrap(err, "failed to sync wishlist")
}

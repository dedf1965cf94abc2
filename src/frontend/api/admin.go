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
	"net/url"

	"github.com/pkg/errors"
)

func (c *Client) AdminOrders(ctx context.Context, token string) ([]Order, error) {
	orders, err := call[[]Order](ctx, c, http.MethodGet, "/admin/orders", token, nil)
	return orders, errors.Wrap(err, "could not retrieve orders")
}

func (c *Client) AdminUpdateOrderStatus(ctx context.Context, token, orderID, status string) (*Order, error) {
	o, err := call[Order](ctx, c, http.MethodPut, "/admin/orders/"+url.PathEscape(orderID)+"/status", token,
		map[string]string{"status": status})
	if err != nil {
		return nil, errors.Wrapf(err, "could not update order %s", orderID)
	}
	return &o, nil
}

func (c *Client) AdminUsers(ctx context.Context, token string) ([]User, error) {
	users, err := call[[]User](ctx, c, http.MethodGet, "/admin/users", token, nil)
	return users, errors.Wrap(err, "could not retrieve users")
}

// AdminSaveProduct creates p when it has no ID and updates it otherwise.
func (c *Client) AdminSaveProduct(ctx context.Context, token string, p Product) (*Product, error) {
	method, path := http.MethodPost, "/admin/products"
	if p.ID != "" {
		method, path = http.MethodPut, "/admin/products/"+url.PathEscape(p.ID)
	}
	saved, err := call[Product](ctx, c, method, path, token, p)
	if err != nil {
		return nil, errors.Wrap(err, "could not save product")
	}
	return &saved, nil
}

func (c *Client) AdminDeleteProduct(ctx context.Context, token, id string) error {
	err := exec(ctx, c, http.MethodDelete, "/admin/products/"+url.PathEscape(id), token, nil)
	return errors.Wrapf(err, "could not delete product %s", id)
}

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

// types.go holds the wire types exchanged with the storefront API.

import (
	"github.com/mattressco/storefront/src/frontend/cart"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account snapshot returned by the auth and profile endpoints
// and persisted as the session user. It is an open record: fields the
// storefront does not model are kept in Extra and written back as
// top-level members.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone,omitempty"`
	Role      string   `json:"role"`
	Address   *Address `json:"address,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Address is a shipping address.
type Address struct {
	ID      string `json:"id,omitempty"`
	Label   string `json:"label,omitempty"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}

// Product is a catalog product.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Images        []string `json:"images,omitempty"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Sizes         []string `json:"sizes,omitempty"`
	Firmness      []string `json:"firmness,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	ReviewCount   int      `json:"reviewCount,omitempty"`
	// Stock is nil when the catalog does not track stock for the product.
	Stock         *int     `json:"stock,omitempty"`
}

// InStock is false only for an explicit stock of zero or less.
func (p *Product) InStock() bool {
	return p.Stock == nil || *p.Stock > 0
}

// Image returns the first product image, if any.
func (p *Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// OrderRequest places an order for the current cart. Payment is simulated
// by the API; PaymentMethod is passed through.
type OrderRequest struct {
	Items         []cart.LineItem `json:"items"`
	Address       Address         `json:"address"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	PaymentMethod string          `json:"paymentMethod"`
	Total         float64         `json:"total"`
}

// Order is a placed order.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId,omitempty"`
	Status    string          `json:"status"`
	Items     []cart.LineItem `json:"items"`
	Total     float64         `json:"total"`
	Address   *Address        `json:"address,omitempty"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
}

// Order statuses accepted by the admin endpoints.
var OrderStatuses = []string{"pending", "processing", "shipped", "delivered", "cancelled"}

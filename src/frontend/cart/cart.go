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

// Package cart owns the shopping cart of one browsing context. Lines are
// unique per (product, size, firmness) and the whole collection is written
// back to storage after every change.
package cart

import (
	"sync"

	"github.com/mattressco/storefront/src/frontend/storage"
)

// LineItem is one cart entry.
type LineItem struct {
	ProductID         string  `json:"productId"`
	Name              string  `json:"name"`
	UnitPrice         float64 `json:"unitPrice"`
	OriginalUnitPrice float64 `json:"originalUnitPrice,omitempty"`
	Image             string  `json:"image"`
	Size              string  `json:"size"`
	Firmness          string  `json:"firmness"`
	Quantity          int     `json:"quantity"`
	MaxQuantity       int     `json:"maxQuantity,omitempty"`
}

// Key identifies a line.
type Key struct {
	ProductID string
	Size      string
	Firmness  string
}

func (l LineItem) Key() Key {
	return Key{ProductID: l.ProductID, Size: l.Size, Firmness: l.Firmness}
}

// Totals is the derived summary of a cart.
type Totals struct {
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// Compute sums unit price times quantity and the quantities themselves.
// Nothing is cached; call it after every change.
func Compute(items []LineItem) Totals {
	var t Totals
	for _, it := range items {
		t.Total += it.UnitPrice * float64(it.Quantity)
		t.ItemCount += it.Quantity
	}
	return t
}

// Cart is the cart state of one browsing context.
type Cart struct {
	mu    sync.Mutex
	store *storage.Store
	items []LineItem
}

// New hydrates a Cart from store.
func New(store *storage.Store) *Cart {
	c := &Cart{store: store}
	c.Reload()
	return c
}

// Reload replaces the in-memory lines with what storage holds. Lines that
// violate the quantity invariant are dropped.
func (c *Cart) Reload() {
	stored := storage.ReadList[LineItem](c.store, storage.CartKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.items[:0]
	for _, it := range stored {
		if it.Quantity > 0 {
			c.items = append(c.items, it)
		}
	}
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LineItem(nil), c.items...)
}

// Totals computes the totals of the current lines.
func (c *Cart) Totals() Totals {
	return Compute(c.Items())
}

// Add puts quantity units of item into the cart. A zero quantity means one.
// Re-adding an existing key accumulates and clamps to the line's max
// quantity, taken from the incoming item when set and from the stored line
// otherwise.
func (c *Cart) Add(item LineItem, quantity int) {
	if quantity == 0 {
		quantity = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.Key()); i >= 0 {
		line := &c.items[i]
		if item.MaxQuantity > 0 {
			line.MaxQuantity = item.MaxQuantity
		}
		line.Quantity = clamp(line.Quantity+quantity, line.MaxQuantity)
		if line.Quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
	} else {
		item.Quantity = clamp(quantity, item.MaxQuantity)
		if item.Quantity > 0 {
			c.items = append(c.items, item)
		}
	}
	c.persist()
}

// SetQuantity sets the quantity of a line verbatim, removing it when
// quantity is not positive. Unlike Add it does not clamp to MaxQuantity.
func (c *Cart) SetQuantity(productID, size, firmness string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(Key{ProductID: productID, Size: size, Firmness: firmness})
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	} else {
		c.items[i].Quantity = quantity
	}
	c.persist()
}

// Remove deletes a line if present.
func (c *Cart) Remove(productID, size, firmness string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(Key{ProductID: productID, Size: size, Firmness: firmness})
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.persist()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.persist()
}

func (c *Cart) indexOf(k Key) int {
	for i, it := range c.items {
		if it.Key() == k {
			return i
		}
	}
	return -1
}

func (c *Cart) persist() {
	storage.WriteList(c.store, storage.CartKey, c.items)
}

func clamp(q, limit int) int {
	if limit > 0 && q > limit {
		return limit
	}
	return q
}

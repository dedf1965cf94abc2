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

// Package wishlist keeps the saved products of one browsing context,
// newest first and at most once per product.
package wishlist

import (
	"sync"

	"github.com/mattressco/storefront/src/frontend/storage"
)

// Entry is a saved product reference.
type Entry struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	Image         string  `json:"image"`
	Category      string  `json:"category,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	ReviewCount   int     `json:"reviewCount,omitempty"`
	InStock       *bool   `json:"inStock,omitempty"`
}

type Wishlist struct {
	mu      sync.RWMutex
	store   *storage.Store
	entries []Entry
	ids     map[string]struct{}
}

// New hydrates a Wishlist from store.
func New(store *storage.Store) *Wishlist {
	w := &Wishlist{store: store}
	w.Reload()
	return w
}

// Reload re-reads the stored entries. Later duplicates of a product are
// dropped so the first (newest) one wins.
func (w *Wishlist) Reload() {
	stored := storage.ReadList[Entry](w.store, storage.WishlistKey)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
	w.ids = make(map[string]struct{}, len(stored))
	for _, e := range stored {
		if _, dup := w.ids[e.ProductID]; dup {
			continue
		}
		w.ids[e.ProductID] = struct{}{}
		w.entries = append(w.entries, e)
	}
}

// Entries returns a copy of the entries, newest first.
func (w *Wishlist) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Entry(nil), w.entries...)
}

func (w *Wishlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

func (w *Wishlist) Contains(productID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.ids[productID]
	return ok
}

// Add prepends e unless its product is already saved. It reports whether
// the wishlist changed.
func (w *Wishlist) Add(e Entry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ids[e.ProductID]; ok {
		return false
	}
	w.entries = append([]Entry{e}, w.entries...)
	w.ids[e.ProductID] = struct{}{}
	w.persist()
	return true
}

// Remove drops the entry for productID.
func (w *Wishlist) Remove(productID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ids[productID]; !ok {
		return
	}
	kept := w.entries[:0]
	for _, e := range w.entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	w.entries = kept
	delete(w.ids, productID)
	w.persist()
}

func (w *Wishlist) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
	w.ids = make(map[string]struct{})
	w.persist()
}

func (w *Wishlist) persist() {
	storage.WriteList(w.store, storage.WishlistKey, w.entries)
}

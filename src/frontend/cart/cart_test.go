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

package cart

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattressco/storefront/src/frontend/storage"
)

func newStore() *storage.Store {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return storage.New(storage.NewMemory(), l)
}

func queen(price float64) LineItem {
	return LineItem{ProductID: "P1", Name: "Cloud Hybrid", UnitPrice: price, Size: "Queen", Firmness: "Medium"}
}

func TestCheckoutScenario(t *testing.T) {
	c := New(newStore())
	assert.Equal(t, Totals{}, c.Totals())

	c.Add(queen(50000), 2)
	assert.Equal(t, Totals{Total: 100000, ItemCount: 2}, c.Totals())

	c.Add(queen(50000), 1)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, Totals{Total: 150000, ItemCount: 3}, c.Totals())

	c.SetQuantity("P1", "Queen", "Medium", 0)
	assert.Empty(t, c.Items())
	assert.Equal(t, Totals{Total: 0, ItemCount: 0}, c.Totals())
}

func TestAddAccumulatesSameKey(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 2)
	c.Add(queen(100), 5)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}

func TestAddDistinctKeys(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 1)
	king := queen(150)
	king.Size = "King"
	c.Add(king, 1)
	firm := queen(100)
	firm.Firmness = "Firm"
	c.Add(firm, 1)

	assert.Len(t, c.Items(), 3)
	assert.Equal(t, Totals{Total: 350, ItemCount: 3}, c.Totals())
}

func TestAddZeroQuantityMeansOne(t *testing.T) {
	c := New(newStore())
	c.Add(queen(10), 0)
	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestAddClampsToMaxQuantity(t *testing.T) {
	c := New(newStore())
	item := queen(100)
	item.MaxQuantity = 5
	c.Add(item, 3)
	c.Add(item, 4)

	assert.Equal(t, 5, c.Items()[0].Quantity)
}

func TestAddClampsWithMaxFromExistingLine(t *testing.T) {
	c := New(newStore())
	limited := queen(100)
	limited.MaxQuantity = 4
	c.Add(limited, 2)
	c.Add(queen(100), 9)

	items := c.Items()
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 4, items[0].MaxQuantity)
}

func TestAddClampsWithMaxFromIncomingItem(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 6)
	limited := queen(100)
	limited.MaxQuantity = 3
	c.Add(limited, 1)

	assert.Equal(t, 3, c.Items()[0].Quantity)
}

func TestAddNegativeQuantityRemovesLine(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 2)
	c.Add(queen(100), -2)
	assert.Empty(t, c.Items())

	c.Add(queen(100), -1)
	assert.Empty(t, c.Items())
}

// SetQuantity keeps parity with the storefront and does not clamp, while
// Add does. This pins the discrepancy until product confirms the intent.
func TestSetQuantityDoesNotClamp(t *testing.T) {
	c := New(newStore())
	item := queen(100)
	item.MaxQuantity = 5
	c.Add(item, 1)
	c.SetQuantity("P1", "Queen", "Medium", 9)

	assert.Equal(t, 9, c.Items()[0].Quantity)
}

func TestSetQuantityNegativeRemoves(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 2)
	c.SetQuantity("P1", "Queen", "Medium", -3)
	assert.Empty(t, c.Items())
}

func TestSetQuantityUnknownLineIsNoop(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 2)
	c.SetQuantity("P2", "Queen", "Medium", 4)
	assert.Equal(t, 2, c.Items()[0].Quantity)
}

func TestRemoveAndClear(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 1)
	king := queen(200)
	king.Size = "King"
	c.Add(king, 1)

	c.Remove("P1", "Twin", "Medium")
	assert.Len(t, c.Items(), 2)

	c.Remove("P1", "Queen", "Medium")
	assert.Equal(t, []LineItem{{ProductID: "P1", Name: "Cloud Hybrid", UnitPrice: 200, Size: "King", Firmness: "Medium", Quantity: 1}}, c.Items())

	c.Clear()
	assert.Empty(t, c.Items())
}

func TestMutationsPersist(t *testing.T) {
	s := newStore()
	c := New(s)
	c.Add(queen(100), 2)

	other := New(s)
	if diff := cmp.Diff(c.Items(), other.Items()); diff != "" {
		t.Errorf("rehydrated cart mismatch (-want +got):\n%s", diff)
	}

	c.Clear()
	other.Reload()
	assert.Empty(t, other.Items())
	assert.Empty(t, storage.ReadList[LineItem](s, storage.CartKey))
}

func TestReloadDropsInvalidLines(t *testing.T) {
	s := newStore()
	storage.WriteList(s, storage.CartKey, []LineItem{
		{ProductID: "P1", Size: "Queen", Quantity: 0},
		{ProductID: "P2", Size: "Queen", Quantity: 2, UnitPrice: 10},
	})
	c := New(s)
	require.Len(t, c.Items(), 1)
	assert.Equal(t, "P2", c.Items()[0].ProductID)
}

func TestItemsReturnsCopy(t *testing.T) {
	c := New(newStore())
	c.Add(queen(100), 1)
	items := c.Items()
	items[0].Quantity = 42
	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestTotalsMatchLinesAfterRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := []string{"Twin", "Queen", "King"}
	firmness := []string{"Soft", "Medium", "Firm"}
	products := []string{"P1", "P2", "P3"}
	prices := map[string]float64{"P1": 100, "P2": 250, "P3": 999}

	c := New(newStore())
	for i := 0; i < 500; i++ {
		p := products[rng.Intn(len(products))]
		s := sizes[rng.Intn(len(sizes))]
		f := firmness[rng.Intn(len(firmness))]
		switch rng.Intn(3) {
		case 0:
			c.Add(LineItem{ProductID: p, Size: s, Firmness: f, UnitPrice: prices[p]}, rng.Intn(4)+1)
		case 1:
			c.SetQuantity(p, s, f, rng.Intn(6)-1)
		case 2:
			c.Remove(p, s, f)
		}

		var want Totals
		seen := map[Key]bool{}
		for _, it := range c.Items() {
			require.Positive(t, it.Quantity)
			require.False(t, seen[it.Key()], "duplicate line %v", it.Key())
			seen[it.Key()] = true
			want.Total += it.UnitPrice * float64(it.Quantity)
			want.ItemCount += it.Quantity
		}
		require.Equal(t, want, c.Totals())
	}
}
